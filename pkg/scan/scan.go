package scan

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// MediaType matches the catalog's media type ids.
type MediaType int

const (
	MediaPhoto MediaType = 1
	MediaVideo MediaType = 2
	MediaMusic MediaType = 3
)

func (m MediaType) String() string {
	switch m {
	case MediaPhoto:
		return "photo"
	case MediaVideo:
		return "video"
	case MediaMusic:
		return "music"
	default:
		return "unknown"
	}
}

func (m MediaType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

type Options struct {
	MaxDepth int

	PhotoExtensions []string
	VideoExtensions []string
	MusicExtensions []string

	// ExcludeDirs are directory names skipped at any depth.
	ExcludeDirs []string
	// ExcludeNames are file base names skipped at any depth, case-insensitive.
	ExcludeNames []string

	// Since skips files modified before it. Zero disables the filter.
	Since time.Time
}

func DefaultOptions() Options {
	return Options{
		MaxDepth: -1,
		PhotoExtensions: []string{
			".jpg", ".jpeg", ".png", ".gif",
		},
		VideoExtensions: []string{
			".mp4", ".mov", ".m4v", ".mkv", ".avi", ".webm", ".mts", ".3gp",
		},
		MusicExtensions: []string{".mp3"},
		ExcludeDirs:  []string{".picasaoriginals"},
		ExcludeNames: []string{".picasa.ini", "thumbs.db", ".ds_store"},
	}
}

type Record struct {
	Path      string    `json:"path" yaml:"path"`
	Size      int64     `json:"size" yaml:"size"`
	ModTime   time.Time `json:"mod_time" yaml:"mod_time"`
	MediaType MediaType `json:"media_type" yaml:"media_type"`
}

func Scan(fsys fs.FS, root string, opts Options) ([]string, error) {
	records, err := ScanRecords(fsys, root, opts)
	if err != nil {
		return nil, err
	}

	matches := make([]string, 0, len(records))
	for _, r := range records {
		matches = append(matches, r.Path)
	}
	return matches, nil
}

// ScanRecords walks root and returns the media files below it, sorted by
// path relative to root.
func ScanRecords(fsys fs.FS, root string, opts Options) ([]Record, error) {
	if opts.MaxDepth < -1 {
		return nil, fs.ErrInvalid
	}

	photoExts := normalizeExts(opts.PhotoExtensions)
	videoExts := normalizeExts(opts.VideoExtensions)
	musicExts := normalizeExts(opts.MusicExtensions)
	excludeDirs := normalizeNames(opts.ExcludeDirs)
	excludeNames := normalizeNames(opts.ExcludeNames)

	var matches []Record

	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if excludeDirs[strings.ToLower(d.Name())] {
				return fs.SkipDir
			}
			if opts.MaxDepth >= 0 && depth(rel) > opts.MaxDepth {
				return fs.SkipDir
			}
			return nil
		}

		if opts.MaxDepth >= 0 && depth(rel) > opts.MaxDepth {
			return nil
		}
		if excludeNames[strings.ToLower(d.Name())] {
			return nil
		}

		var mediaType MediaType
		ext := strings.ToLower(path.Ext(d.Name()))
		switch {
		case photoExts[ext]:
			mediaType = MediaPhoto
		case videoExts[ext]:
			mediaType = MediaVideo
		case musicExts[ext]:
			mediaType = MediaMusic
		default:
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		if !opts.Since.IsZero() && info.ModTime().Before(opts.Since) {
			return nil
		}

		matches = append(matches, Record{
			Path:      filepath.ToSlash(rel),
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			MediaType: mediaType,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Path < matches[j].Path
	})
	return matches, nil
}

func normalizeExts(exts []string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, ext := range exts {
		e := strings.TrimSpace(strings.ToLower(ext))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		m[e] = true
	}
	return m
}

func normalizeNames(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(strings.ToLower(n)); n != "" {
			m[n] = true
		}
	}
	return m
}

func depth(rel string) int {
	rel = filepath.Clean(rel)
	if rel == "." {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/")
}
