package datepattern

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// UnknownDate is the far-future value historically used to mean "no date
// found". Extraction.OrSentinel returns it for unknown results.
var UnknownDate = time.Date(9999, time.January, 1, 0, 0, 0, 0, time.UTC)

// reshareMarker marks images saved from a social feed. Their names carry an
// upload counter, not a capture date.
const reshareMarker = "FB_IMG_"

// Extraction is the outcome of Extract: either a known date or unknown.
type Extraction struct {
	t     time.Time
	known bool
}

// Known wraps t as a known extraction.
func Known(t time.Time) Extraction {
	return Extraction{t: t, known: true}
}

// Unknown returns the unknown extraction.
func Unknown() Extraction {
	return Extraction{}
}

// Time returns the extracted date and whether it is known.
func (e Extraction) Time() (time.Time, bool) {
	return e.t, e.known
}

func (e Extraction) IsUnknown() bool {
	return !e.known
}

// OrSentinel returns the date, or UnknownDate when unknown.
func (e Extraction) OrSentinel() time.Time {
	if !e.known {
		return UnknownDate
	}
	return e.t
}

func (e Extraction) String() string {
	if !e.known {
		return "unknown"
	}
	return e.t.Format(time.RFC3339)
}

// Match describes how a name was resolved.
type Match struct {
	// Pattern is the index of the matching catalog pattern, or -1.
	Pattern int
	// Format is the matching pattern's format.
	Format Format
	// Token is the right-most matched text.
	Token string
	// Value and Layout are the token and format after post-processing.
	Value  string
	Layout Format

	Result Extraction
	Err    error
}

// rewriteFunc turns a matched token into the text and format to parse.
type rewriteFunc func(token, name string, seasons Seasons) (string, Format)

var rewrites = map[Format]rewriteFunc{
	FormatYearMonthFullDate: func(token, _ string, _ Seasons) (string, Format) {
		return cut(token, 0, 7), FormatDashYearMonth
	},
	FormatIOS: func(token, _ string, _ Seasons) (string, Format) {
		return cut(token, 0, 15), FormatDateTime
	},
	FormatIMGDate: func(token, _ string, _ Seasons) (string, Format) {
		return cut(token, 4, 12), FormatDate
	},
	FormatYear: func(token, name string, seasons Seasons) (string, Format) {
		// the token is bounded on both sides by a separator or bracket
		value := cut(token, 1, 5)
		if m, ok := seasons.Month(name); ok {
			return fmt.Sprintf("%s-%02d", value, int(m)), FormatDashYearMonth
		}
		return value, FormatYear
	},
	FormatYearSpace: func(token, _ string, _ Seasons) (string, Format) {
		return cut(token, 0, 4), FormatYear
	},
	FormatSpaceYear: func(token, _ string, _ Seasons) (string, Format) {
		return cut(token, 1, 5), FormatYear
	},
}

// cut returns s[i:j], or s unchanged when it is too short; the parse step
// then rejects it.
func cut(s string, i, j int) string {
	if j > len(s) {
		return s
	}
	return s[i:j]
}

// Options configures an Extractor.
type Options struct {
	// Catalog defaults to DefaultCatalog.
	Catalog *Catalog

	// Seasons defaults to DefaultSeasons when nil. An empty, non-nil value
	// disables the season upgrade.
	Seasons Seasons

	// Location is used for the parsed dates, which carry no zone.
	// If nil, time.UTC is used.
	Location *time.Location

	// Logger receives a warning for every matched token that fails to parse.
	// If nil, logrus.StandardLogger() is used.
	Logger logrus.FieldLogger
}

// Extractor resolves names against a catalog. It holds no mutable state and
// is safe for concurrent use.
type Extractor struct {
	catalog *Catalog
	seasons Seasons
	loc     *time.Location
	log     logrus.FieldLogger
}

func NewExtractor(opts Options) *Extractor {
	x := &Extractor{
		catalog: opts.Catalog,
		seasons: opts.Seasons,
		loc:     opts.Location,
		log:     opts.Logger,
	}
	if x.catalog == nil {
		x.catalog = DefaultCatalog()
	}
	if x.seasons == nil {
		x.seasons = DefaultSeasons()
	}
	if x.loc == nil {
		x.loc = time.UTC
	}
	if x.log == nil {
		x.log = logrus.StandardLogger()
	}
	return x
}

var defaultExtractor = NewExtractor(Options{})

// Extract resolves name with the default extractor.
func Extract(name string) Extraction {
	return defaultExtractor.Extract(name)
}

// Extract returns the date encoded in name, or Unknown.
func (x *Extractor) Extract(name string) Extraction {
	return x.ExtractDetailed(name).Result
}

// ExtractDetailed is Extract with the matching details.
func (x *Extractor) ExtractDetailed(name string) Match {
	m := Match{Pattern: -1}
	if strings.Contains(name, reshareMarker) {
		return m
	}

	for i, p := range x.catalog.patterns {
		found := p.Regexp.FindAllString(name, -1)
		if len(found) == 0 {
			continue
		}

		m.Pattern = i
		m.Format = p.Format
		m.Token = found[len(found)-1]
		m.Value, m.Layout = m.Token, p.Format
		if rewrite, ok := rewrites[p.Format]; ok {
			m.Value, m.Layout = rewrite(m.Token, name, x.seasons)
		}

		t, err := time.ParseInLocation(m.Layout.Layout(), m.Value, x.loc)
		if err != nil {
			m.Err = fmt.Errorf("parse %q as %s: %w", m.Value, m.Layout, err)
			x.log.WithFields(logrus.Fields{
				"file":    name,
				"pattern": p.Regexp.String(),
				"format":  string(m.Layout),
				"token":   m.Value,
			}).Warn("filename date did not parse")
			return m
		}
		m.Result = Known(t)
		return m
	}
	return m
}
