// Package config loads media-catalog settings from file, environment and
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/quidome/media-catalog-go/pkg/datepattern"
)

const (
	name      = "media-catalog"
	envPrefix = "MEDIA_CATALOG"

	// DateLayout is accepted for since and floor_date next to RFC 3339.
	DateLayout = "2006-01-02"
)

type Extensions struct {
	Photo []string `mapstructure:"photo"`
	Video []string `mapstructure:"video"`
	Music []string `mapstructure:"music"`
}

type Config struct {
	Author       string              `mapstructure:"author"`
	Database     string              `mapstructure:"database"`
	Extensions   Extensions          `mapstructure:"extensions"`
	ExcludeDirs  []string            `mapstructure:"exclude_dirs"`
	ExcludeNames []string            `mapstructure:"exclude_names"`
	Since        string              `mapstructure:"since"`
	FloorDate    string              `mapstructure:"floor_date"`
	Location     string              `mapstructure:"location"`
	Workers      int                 `mapstructure:"workers"`
	PatternsFile string              `mapstructure:"patterns_file"`
	Seasons      datepattern.Seasons `mapstructure:"seasons"`
}

// Load reads the config file at path, or searches the working directory
// and the user config dir for media-catalog.yaml when path is empty. Only an
// explicit path has to exist. MEDIA_CATALOG_* variables override the file.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, name))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("author", "")
	v.SetDefault("database", "media-catalog.db")
	v.SetDefault("extensions.photo", []string{".jpg", ".jpeg", ".png", ".gif"})
	v.SetDefault("extensions.video", []string{".mp4", ".mov", ".m4v", ".mkv", ".avi", ".webm", ".mts", ".3gp"})
	v.SetDefault("extensions.music", []string{".mp3"})
	v.SetDefault("exclude_dirs", []string{".picasaoriginals"})
	v.SetDefault("exclude_names", []string{".picasa.ini", "thumbs.db", ".ds_store"})
	v.SetDefault("since", "")
	v.SetDefault("floor_date", "1800-01-01")
	v.SetDefault("location", "UTC")
	v.SetDefault("workers", 0)
	v.SetDefault("patterns_file", "")
}

// SinceTime returns the parsed since filter, zero when unset.
func (c *Config) SinceTime() (time.Time, error) {
	return ParseDate(c.Since)
}

// Floor returns the parsed floor date.
func (c *Config) Floor() (time.Time, error) {
	t, err := ParseDate(c.FloorDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("floor_date: %w", err)
	}
	return t, nil
}

// Loc returns the configured location. Empty means UTC.
func (c *Config) Loc() (*time.Location, error) {
	if c.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("location: %w", err)
	}
	return loc, nil
}

// ParseDate accepts an empty string, a plain date or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want %s or RFC 3339", s, DateLayout)
	}
	return t, nil
}
