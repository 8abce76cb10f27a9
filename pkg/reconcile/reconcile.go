// Package reconcile merges the filename date, the embedded capture time and
// the filesystem timestamp of a media file into one canonical capture date.
//
// Reconcile only decides. When the embedded capture time should be corrected
// the Result says so and the caller performs the write.
package reconcile

import (
	"time"

	"github.com/quidome/media-catalog-go/pkg/datepattern"
)

// Source describes which input the canonical date was taken from.
type Source string

const (
	SourceFilename Source = "filename"
	SourceMetadata Source = "metadata"
	SourceFilestat Source = "filestat"
	SourceFloor    Source = "floor"
)

// DefaultFloor is the fallback date for files without any usable signal.
var DefaultFloor = time.Date(1800, time.January, 1, 0, 0, 0, 0, time.UTC)

// Policy holds the fixed dates used by Reconcile.
type Policy struct {
	// Floor replaces unknown and underflowed dates.
	Floor time.Time
	// MinPlausible is the date an embedded capture time must be after to be
	// trusted.
	MinPlausible time.Time
}

// DefaultPolicy uses DefaultFloor for both dates.
func DefaultPolicy() Policy {
	return Policy{Floor: DefaultFloor, MinPlausible: DefaultFloor}
}

// Input is everything known about one file.
type Input struct {
	Extraction datepattern.Extraction

	// Embedded is the capture time stored in the file, valid when
	// HasEmbedded is true.
	Embedded    time.Time
	HasEmbedded bool

	// EmbeddedErr is set when the embedded metadata could not be read or
	// written. Reconcile then ignores Embedded.
	EmbeddedErr error

	// Created is the filesystem creation timestamp. The canonical date never
	// exceeds it.
	Created time.Time
}

// Result is the reconciled capture date.
type Result struct {
	Canonical time.Time
	Source    Source

	// ShouldWrite asks the caller to store Write as the embedded capture
	// time. Write always equals Canonical.
	ShouldWrite bool
	Write       time.Time

	// Degraded is set when EmbeddedErr forced a filename-only decision.
	Degraded bool
}

// Reconcile computes the canonical capture date for in.
func (p Policy) Reconcile(in Input) Result {
	p = p.withDefaults()

	var res Result
	extracted, known := in.Extraction.Time()

	switch {
	case in.EmbeddedErr != nil:
		res.Degraded = true
		// an unknown extraction yields the sentinel, which the clamp below
		// replaces with the creation time
		res.Canonical, res.Source = in.Extraction.OrSentinel(), SourceFilename

	case !in.HasEmbedded:
		res.ShouldWrite = true
		res.Canonical, res.Source = extracted, SourceFilename
		if !known {
			res.Canonical, res.Source = p.Floor, SourceFloor
		}

	case known:
		switch {
		case in.Embedded.After(extracted):
			res.Canonical, res.Source = extracted, SourceFilename
			res.ShouldWrite = true
		case in.Embedded.After(p.MinPlausible):
			res.Canonical, res.Source = in.Embedded, SourceMetadata
		default:
			res.Canonical, res.Source = extracted, SourceFilename
		}

	default:
		res.Canonical, res.Source = p.Floor, SourceFloor
		if in.Embedded.After(p.MinPlausible) {
			res.Canonical, res.Source = in.Embedded, SourceMetadata
		}
	}

	// A file cannot have been captured after it landed on this medium.
	if res.Canonical.After(in.Created) {
		res.Canonical, res.Source = in.Created, SourceFilestat
	}
	if res.Canonical.Year() <= 1 {
		res.Canonical, res.Source = p.Floor, SourceFloor
	}

	if res.ShouldWrite {
		res.Write = res.Canonical
	}
	return res
}

// Reconcile uses DefaultPolicy.
func Reconcile(in Input) Result {
	return DefaultPolicy().Reconcile(in)
}

func (p Policy) withDefaults() Policy {
	if p.Floor.IsZero() {
		p.Floor = DefaultFloor
	}
	if p.MinPlausible.IsZero() {
		p.MinPlausible = p.Floor
	}
	return p
}
