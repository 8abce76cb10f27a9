package datepattern

import (
	"strings"
	"time"
)

// SeasonRule upgrades a bare year to a month when Keyword appears in the
// path. The first Override whose Marker is present wins over Month.
type SeasonRule struct {
	Keyword   string           `yaml:"keyword" mapstructure:"keyword"`
	Month     time.Month       `yaml:"month" mapstructure:"month"`
	Overrides []SeasonOverride `yaml:"overrides,omitempty" mapstructure:"overrides"`
}

type SeasonOverride struct {
	Marker string     `yaml:"marker" mapstructure:"marker"`
	Month  time.Month `yaml:"month" mapstructure:"month"`
}

// Seasons is an ordered rule list; the first matching keyword is used.
type Seasons []SeasonRule

// DefaultSeasons is the folder naming convention of the photo archive:
// "01 Winter" is the start of the year, any other Winter folder its end.
func DefaultSeasons() Seasons {
	return Seasons{
		{Keyword: " Winter", Month: time.November, Overrides: []SeasonOverride{{Marker: "01 Winter", Month: time.January}}},
		{Keyword: " Spring", Month: time.April},
		{Keyword: " Summer", Month: time.July},
		{Keyword: " Fall", Month: time.September},
	}
}

// Month returns the month implied by a season keyword in name.
func (s Seasons) Month(name string) (time.Month, bool) {
	for _, rule := range s {
		if rule.Keyword == "" || !strings.Contains(name, rule.Keyword) {
			continue
		}
		for _, o := range rule.Overrides {
			if o.Marker != "" && strings.Contains(name, o.Marker) {
				return o.Month, true
			}
		}
		return rule.Month, true
	}
	return 0, false
}
