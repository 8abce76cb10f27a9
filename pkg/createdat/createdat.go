package createdat

import (
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quidome/media-catalog-go/pkg/datepattern"
	"github.com/quidome/media-catalog-go/pkg/reconcile"
)

// Source describes where a CreatedAt timestamp was derived from.
type Source = reconcile.Source

// Result contains the canonical capture timestamp and its source.
type Result struct {
	CreatedAt time.Time
	Source    Source
}

// DetailedResult contains all considered timestamps from different sources.
type DetailedResult struct {
	// Best is the reconciled timestamp.
	Best Result

	// Metadata is the embedded capture time (EXIF DateTimeOriginal), if any.
	Metadata time.Time

	// Filename is the timestamp parsed from the path, if any.
	Filename time.Time

	// Filestat is the creation timestamp from filesystem metadata.
	Filestat time.Time

	// Match describes the filename pattern that was applied.
	Match datepattern.Match

	// WouldWrite reports that the embedded capture time should be rewritten
	// to Best.CreatedAt. Written reports that the Writer did so.
	WouldWrite bool
	Written    bool

	// MetadataErr is the read or write failure that forced a filename-only
	// decision.
	MetadataErr error
}

// Degraded reports whether metadata I/O failed for this file.
func (d DetailedResult) Degraded() bool {
	return d.MetadataErr != nil
}

// MetadataExtractor extracts an embedded capture timestamp from a media stream.
//
// Implementations return (t, true, nil) when a timestamp is found and
// (time.Time{}, false, nil) when the file has none. An error means the
// metadata could not be read at all.
type MetadataExtractor interface {
	CreatedAt(path string, r io.Reader) (time.Time, bool, error)
}

// Stamp is what gets written back into a file's metadata.
type Stamp struct {
	Taken time.Time
	// Artist is also used for the copyright notice. Empty leaves both alone.
	Artist string
}

// MetadataWriter stores a capture timestamp in a file's embedded metadata.
type MetadataWriter interface {
	WriteCreatedAt(path string, s Stamp) error
}

// Options configures Determine.
type Options struct {
	// Location is used for timestamps that carry no timezone, in filenames and
	// in EXIF. If nil, time.UTC is used. Ignored by a custom Extractor.
	Location *time.Location

	// Extractor parses dates from paths. If nil, the default catalog is used.
	Extractor *datepattern.Extractor

	// Metadata optionally extracts embedded timestamps.
	//
	// If nil, a default EXIF-based extractor is used.
	Metadata MetadataExtractor

	// Writer applies write instructions. If nil, nothing is written and
	// DetailedResult.WouldWrite reports what would have happened.
	Writer MetadataWriter

	// Author is passed to Writer as Stamp.Artist.
	Author string

	Policy reconcile.Policy

	// CreationTime picks the upper bound from the file's stat. If nil, the
	// modification time is used; copies reset it, so it is never older than
	// the actual creation on this medium.
	CreationTime func(fs.FileInfo) time.Time

	// PathPrefix is prepended to the path before date extraction, typically
	// the directory fsys is rooted at. The extracted name always starts with
	// a separator so a top-level year folder is bounded like any other.
	PathPrefix string

	Logger logrus.FieldLogger
}

// Determine returns the canonical capture timestamp for a path.
func Determine(fsys fs.FS, path string, opts Options) (Result, error) {
	detailed, err := DetermineDetailed(fsys, path, opts)
	if err != nil {
		return Result{}, err
	}
	return detailed.Best, nil
}

// DetermineDetailed returns all considered timestamps for a path.
//
// Only a missing path or a directory is an error. Unparsable names and
// unreadable metadata degrade the result instead.
func DetermineDetailed(fsys fs.FS, path string, opts Options) (DetailedResult, error) {
	path = filepath.ToSlash(filepath.Clean(path))

	info, err := fs.Stat(fsys, path)
	if err != nil {
		return DetailedResult{}, err
	}
	if info.IsDir() {
		return DetailedResult{}, fs.ErrInvalid
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("file", path)

	var result DetailedResult

	// Try filename
	extractor := opts.Extractor
	if extractor == nil {
		extractor = datepattern.NewExtractor(datepattern.Options{Location: loc, Logger: log})
	}
	result.Match = extractor.ExtractDetailed(extractionName(opts.PathPrefix, path))
	if t, ok := result.Match.Result.Time(); ok {
		result.Filename = t
	}

	// Try metadata
	metadata := opts.Metadata
	if metadata == nil {
		metadata = exifExtractor{loc: loc}
	}
	in := reconcile.Input{Extraction: result.Match.Result}
	embedded, found, metaErr := readMetadata(fsys, path, metadata)
	switch {
	case metaErr != nil:
		log.WithError(metaErr).Warn("reading embedded metadata failed")
		result.MetadataErr = metaErr
		in.EmbeddedErr = metaErr
	case found:
		result.Metadata = embedded
		in.Embedded, in.HasEmbedded = embedded, true
	}

	// Upper bound
	if opts.CreationTime != nil {
		result.Filestat = opts.CreationTime(info)
	} else {
		result.Filestat = info.ModTime()
	}
	in.Created = result.Filestat

	res := opts.Policy.Reconcile(in)
	result.WouldWrite = res.ShouldWrite

	if res.ShouldWrite && opts.Writer != nil {
		writeErr := opts.Writer.WriteCreatedAt(path, Stamp{Taken: res.Write, Artist: opts.Author})
		if writeErr != nil {
			log.WithError(writeErr).Warn("writing embedded metadata failed")
			result.MetadataErr = writeErr
			in.EmbeddedErr = writeErr
			res = opts.Policy.Reconcile(in)
			result.WouldWrite = res.ShouldWrite
		} else {
			result.Written = true
			log.WithField("taken", res.Write).Debug("embedded capture time updated")
		}
	}

	result.Best = Result{CreatedAt: res.Canonical, Source: res.Source}
	return result, nil
}

func extractionName(prefix, p string) string {
	return path.Join("/", filepath.ToSlash(prefix), p)
}

func readMetadata(fsys fs.FS, path string, metadata MetadataExtractor) (time.Time, bool, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return time.Time{}, false, err
	}
	defer f.Close()
	return metadata.CreatedAt(path, f)
}
