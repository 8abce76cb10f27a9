package createdat

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// exifLayout is the EXIF DateTime format. It carries no timezone.
const exifLayout = "2006:01:02 15:04:05"

var exifMarker = []byte("Exif\x00\x00")

// exifExtractor reads DateTimeOriginal, the field the writer maintains.
//
// Files without an EXIF segment (PNG, GIF, JPEG without APP1) have no
// embedded time. A segment that is present but does not decode is an error.
type exifExtractor struct {
	loc *time.Location
}

func (e exifExtractor) CreatedAt(path string, r io.Reader) (time.Time, bool, error) {
	br := bufio.NewReader(r)
	mr := &markReader{r: br}
	if head, _ := br.Peek(4); isTIFFHeader(head) {
		mr.seen = true
	}

	x, err := exif.Decode(mr)
	if err != nil {
		if !mr.seen {
			return time.Time{}, false, nil
		}
		// Errors in optional sub-IFDs still leave the main fields usable.
		if x == nil || exif.IsCriticalError(err) || exif.IsExifError(err) {
			return time.Time{}, false, fmt.Errorf("decode exif: %w", err)
		}
	}

	tag, err := x.Get(exif.DateTimeOriginal)
	if exif.IsTagNotPresentError(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read DateTimeOriginal: %w", err)
	}
	s, err := tag.StringVal()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read DateTimeOriginal: %w", err)
	}

	loc := e.loc
	if loc == nil {
		loc = time.UTC
	}
	// "0000:00:00 00:00:00" and similar placeholders count as missing.
	tm, err := time.ParseInLocation(exifLayout, s, loc)
	if err != nil {
		return time.Time{}, false, nil
	}
	return tm, true, nil
}

func isTIFFHeader(b []byte) bool {
	s := string(b)
	return s == "II*\x00" || s == "MM\x00*"
}

// markReader records whether the EXIF intro marker passed through it.
type markReader struct {
	r    io.Reader
	tail []byte
	seen bool
}

func (m *markReader) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)
	if n > 0 && !m.seen {
		buf := append(m.tail, p[:n]...)
		m.seen = bytes.Contains(buf, exifMarker)
		keep := len(exifMarker) - 1
		if len(buf) > keep {
			buf = buf[len(buf)-keep:]
		}
		m.tail = append([]byte(nil), buf...)
	}
	return n, err
}
