// Package exiftool reads and writes capture metadata through a long-running
// exiftool process.
package exiftool

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/barasher/go-exiftool"
	"github.com/sirupsen/logrus"

	"github.com/quidome/media-catalog-go/pkg/createdat"
)

const (
	tagTaken     = "DateTimeOriginal"
	tagArtist    = "Artist"
	tagCopyright = "Copyright"

	// dateLayout is exiftool's default date format.
	dateLayout = "2006:01:02 15:04:05"
)

// Tool is a createdat.MetadataExtractor and createdat.MetadataWriter backed
// by exiftool. Paths handed to it are resolved against Root. It is safe for
// concurrent use; calls are serialized on the single exiftool process.
type Tool struct {
	root string
	loc  *time.Location
	log  logrus.FieldLogger

	mu sync.Mutex
	et *exiftool.Exiftool
}

var (
	_ createdat.MetadataExtractor = (*Tool)(nil)
	_ createdat.MetadataWriter    = (*Tool)(nil)
)

// Options configures New.
type Options struct {
	// Root is joined with every path. Empty means paths are used as given.
	Root string
	// Location applies to timestamps without a zone. Defaults to UTC.
	Location *time.Location
	Logger   logrus.FieldLogger
}

// New starts exiftool. It fails when the binary is not installed.
func New(opts Options) (*Tool, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize exiftool: %w", err)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Tool{root: opts.Root, loc: loc, log: log, et: et}, nil
}

// Close terminates the exiftool process.
func (t *Tool) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.et == nil {
		return nil
	}
	err := t.et.Close()
	t.et = nil
	return err
}

func (t *Tool) resolve(path string) string {
	if t.root == "" {
		return filepath.FromSlash(path)
	}
	return filepath.Join(t.root, filepath.FromSlash(path))
}

// CreatedAt reads DateTimeOriginal. exiftool opens the file itself, so r is
// not consumed.
func (t *Tool) CreatedAt(path string, _ io.Reader) (time.Time, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.et == nil {
		return time.Time{}, false, errors.New("exiftool: closed")
	}

	infos := t.et.ExtractMetadata(t.resolve(path))
	if len(infos) == 0 {
		return time.Time{}, false, fmt.Errorf("exiftool: no result for %s", path)
	}
	fi := infos[0]
	if fi.Err != nil {
		return time.Time{}, false, fmt.Errorf("exiftool: read %s: %w", path, fi.Err)
	}

	val, err := fi.GetString(tagTaken)
	if errors.Is(err, exiftool.ErrKeyNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("exiftool: read %s: %w", path, err)
	}

	tm, err := time.ParseInLocation(dateLayout, val, t.loc)
	if err != nil {
		t.log.WithFields(logrus.Fields{"file": path, "value": val}).Debug("unparsable DateTimeOriginal")
		return time.Time{}, false, nil
	}
	return tm, true, nil
}

// WriteCreatedAt stores s.Taken as DateTimeOriginal. A non-empty Artist is
// written along with a "<year> <artist>" copyright notice.
func (t *Tool) WriteCreatedAt(path string, s createdat.Stamp) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.et == nil {
		return errors.New("exiftool: closed")
	}

	fm := exiftool.FileMetadata{
		File:   t.resolve(path),
		Fields: map[string]interface{}{},
	}
	fm.SetString(tagTaken, s.Taken.In(t.loc).Format(dateLayout))
	if s.Artist != "" {
		fm.SetString(tagArtist, s.Artist)
		fm.SetString(tagCopyright, Copyright(s.Taken, s.Artist))
	}

	batch := []exiftool.FileMetadata{fm}
	t.et.WriteMetadata(batch)
	if batch[0].Err != nil {
		return fmt.Errorf("exiftool: write %s: %w", path, batch[0].Err)
	}
	return nil
}

// Copyright formats the copyright notice stored with a stamp.
func Copyright(taken time.Time, artist string) string {
	return taken.Format("2006") + " " + artist
}
