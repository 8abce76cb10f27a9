package datepattern

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// PatternSpec is the file form of a Pattern.
//
// Format describes the whole match, literal text included, e.g.
// regex "Screenshot_\d{8}" with format "Screenshot_yyyyMMdd".
type PatternSpec struct {
	Regex  string `yaml:"regex"`
	Format Format `yaml:"format"`
}

// File is a pattern file: extra patterns tried after the built-in ones, and
// an optional replacement for the season rules.
type File struct {
	Patterns []PatternSpec `yaml:"patterns"`
	Seasons  Seasons       `yaml:"seasons,omitempty"`
}

// LoadFile reads a YAML pattern file. A missing file yields an empty File.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("read pattern file: %w", err)
	}
	return DecodeFile(bytes.NewReader(data))
}

// DecodeFile decodes a YAML pattern file from r.
func DecodeFile(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("decode pattern file: %w", err)
	}
	return f, nil
}

// Catalog returns base extended with the file's patterns.
//
// Formats with built-in post-processing are reserved for the built-in
// patterns and rejected here, as are formats whose literal text Go would
// read as layout elements.
func (f File) Catalog(base *Catalog) (*Catalog, error) {
	if base == nil {
		base = DefaultCatalog()
	}
	extra := make([]Pattern, 0, len(f.Patterns))
	for i, ps := range f.Patterns {
		if _, reserved := rewrites[ps.Format]; reserved {
			return nil, fmt.Errorf("pattern %d: format %q is reserved", i, ps.Format)
		}
		if err := ps.Format.Validate(); err != nil {
			return nil, fmt.Errorf("pattern %d: %w", i, err)
		}
		re, err := regexp.Compile(ps.Regex)
		if err != nil {
			return nil, fmt.Errorf("pattern %d: %w", i, err)
		}
		extra = append(extra, Pattern{Regexp: re, Format: ps.Format})
	}
	return base.With(extra...)
}
