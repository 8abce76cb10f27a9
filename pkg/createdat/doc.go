// Package createdat determines the capture timestamp of a single media file.
//
// The path is parsed with a datepattern.Extractor, the embedded capture time
// is read from the file, the filesystem timestamp bounds the result, and
// reconcile.Policy decides. When the embedded time needs correcting an
// optional MetadataWriter performs the write.
package createdat
