package datepattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Format names how a matched token is turned into a date.
//
// It uses the yyyy/MM/dd/HH/mm/ss notation found in the filenames themselves
// and is translated to a Go layout by Layout.
type Format string

const (
	FormatYearMonthFullDate Format = "yyyy-MM_yyyyMMdd"
	FormatIMGDate           Format = "IMG_yyyyMMdd"
	FormatIOS               Format = "yyyyMMdd_iOS"
	FormatDate              Format = "yyyyMMdd"
	FormatDashDate          Format = "yyyy-MM-dd"
	FormatUnderscoreDate    Format = "yyyy_MM_dd"
	FormatDashYearMonth     Format = "yyyy-MM"
	FormatUnderscoreMonth   Format = "yyyy_MM"
	FormatYearMonth         Format = "yyyyMM"
	FormatYear              Format = "yyyy"
	FormatYearSpace         Format = "yyyy "
	FormatSpaceYear         Format = " yyyy"
	FormatDateTime          Format = "yyyyMMdd_HHmmss"
)

var layoutReplacer = strings.NewReplacer(
	"yyyy", "2006",
	"MM", "01",
	"dd", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

// Layout returns the Go time layout for f.
func (f Format) Layout() string {
	return layoutReplacer.Replace(string(f))
}

// checkTime differs from the Go reference time in every layout element.
var checkTime = time.Date(1999, 12, 31, 11, 59, 58, 123456789, time.FixedZone("XYZ", 3*3600+1800))

var checkReplacer = strings.NewReplacer(
	"yyyy", "1999",
	"MM", "12",
	"dd", "31",
	"HH", "11",
	"mm", "59",
	"ss", "58",
)

// Validate fails when text outside the date tokens would be read as part of
// the Go layout, as with "GX01_yyyyMMdd" where "01" is a month.
func (f Format) Validate() error {
	if f == "" {
		return errors.New("empty format")
	}
	if got, want := checkTime.Format(f.Layout()), checkReplacer.Replace(string(f)); got != want {
		return fmt.Errorf("format %q: literal text collides with Go layout elements", f)
	}
	return nil
}

// Pattern pairs a recognizer with the format of the text it matches.
type Pattern struct {
	Regexp *regexp.Regexp
	Format Format
}

// Catalog is an ordered, read-only list of patterns. Earlier patterns have
// priority over later ones.
type Catalog struct {
	patterns []Pattern
}

// NewCatalog returns a catalog holding a copy of patterns.
func NewCatalog(patterns ...Pattern) (*Catalog, error) {
	out := make([]Pattern, 0, len(patterns))
	for i, p := range patterns {
		if p.Regexp == nil {
			return nil, fmt.Errorf("pattern %d: nil regexp", i)
		}
		if p.Format == "" {
			return nil, fmt.Errorf("pattern %d (%s): empty format", i, p.Regexp)
		}
		out = append(out, p)
	}
	return &Catalog{patterns: out}, nil
}

// Patterns returns a copy of the catalog's patterns in priority order.
func (c *Catalog) Patterns() []Pattern {
	out := make([]Pattern, len(c.patterns))
	copy(out, c.patterns)
	return out
}

// Len reports the number of patterns.
func (c *Catalog) Len() int {
	return len(c.patterns)
}

// With returns a new catalog with extra appended after c's patterns.
func (c *Catalog) With(extra ...Pattern) (*Catalog, error) {
	return NewCatalog(append(c.Patterns(), extra...)...)
}

const (
	year  = `(19|20)\d{2}`
	month = `(0[1-9]|1[012])`
	day   = `(0[1-9]|[12]\d|3[01])`
)

var defaultCatalog = &Catalog{patterns: []Pattern{
	// 2018-04_20180415: album month followed by the file's own date.
	{regexp.MustCompile(year + `-` + month + `_` + year + month + day), FormatYearMonthFullDate},
	{regexp.MustCompile(`IMG_` + year + month + day), FormatIMGDate},
	// 20241017_090331090_iOS: phone backup, HHmmssfff after the date.
	{regexp.MustCompile(year + month + day + `_\d{9}_iOS`), FormatIOS},
	{regexp.MustCompile(year + month + day), FormatDate},
	{regexp.MustCompile(year + `-` + month + `-` + day), FormatDashDate},
	{regexp.MustCompile(year + `_` + month + `_` + day), FormatUnderscoreDate},
	{regexp.MustCompile(year + `-` + month), FormatDashYearMonth},
	{regexp.MustCompile(year + `_` + month), FormatUnderscoreMonth},
	{regexp.MustCompile(year + month), FormatYearMonth},
	{regexp.MustCompile(`[/\\]` + year + `[- ]`), FormatYear},
	{regexp.MustCompile(`[(/\\]` + year + `[)/\\]`), FormatYear},
	{regexp.MustCompile(year + ` `), FormatYearSpace},
	{regexp.MustCompile(` ` + year), FormatSpaceYear},
}}

// DefaultCatalog returns the built-in catalog. It is shared and must not be
// modified; use With to extend it.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}
