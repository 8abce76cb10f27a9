// Package datepattern extracts a capture date from a media file path.
//
// A Catalog is an ordered list of patterns. The first pattern that matches
// anywhere in the path wins, and its right-most match is parsed according to
// the pattern's Format. Formats that need rewriting before parsing (combined
// tokens, prefixes, season folders) have a post-processing step registered by
// Format; all other formats are parsed as plain layouts.
package datepattern
