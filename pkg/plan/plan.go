package plan

import (
	"path"
	"strconv"
	"strings"
	"time"
)

// DayLayout is the layout of Operation.DayKey.
const DayLayout = "2006-01-02"

// Operation is the catalog entry planned for one file.
type Operation struct {
	SourcePath string

	Name     string
	Category string
	Menu     string

	TakenAt time.Time
	DayKey  string
	// HourKey is TakenAt as the integer yyyyMMddHH.
	HourKey int64

	SearchStr     string
	ToBeProcessed bool

	// Duplicate is set when an earlier operation in the same plan has the
	// same name. The catalog keeps only the first one.
	Duplicate bool
}

// Build plans the catalog entry for relPath, a slash or backslash separated
// path relative to the library root.
//
// The first directory is the category and the second the menu. Files placed
// directly under the root have neither and are flagged for processing.
func Build(relPath string, takenAt time.Time) Operation {
	relPath = strings.ReplaceAll(relPath, `\`, "/")
	relPath = strings.TrimPrefix(path.Clean("/"+relPath), "/")

	name := path.Base(relPath)
	var dirs []string
	if dir := path.Dir(relPath); dir != "." {
		dirs = strings.Split(dir, "/")
	}

	op := Operation{
		SourcePath: relPath,
		Name:       name,
		TakenAt:    takenAt,
		DayKey:     takenAt.Format(DayLayout),
		HourKey:    HourKey(takenAt),
		SearchStr:  strings.ToLower(name),
	}
	if len(dirs) > 0 {
		op.Category = dirs[0]
	}
	if len(dirs) > 1 {
		op.Menu = dirs[1]
	}
	op.ToBeProcessed = op.Category == "" && op.Menu == ""
	return op
}

// HourKey returns t as the integer yyyyMMddHH.
func HourKey(t time.Time) int64 {
	k, err := strconv.ParseInt(t.Format("2006010215"), 10, 64)
	if err != nil {
		// Years outside 0000-9999 do not format to ten digits.
		return 0
	}
	return k
}

// Plan builds operations for a list of source files.
//
// Files without an entry in takenAtMap are skipped. Name collisions are
// resolved in favour of the first occurrence; later ones are marked
// Duplicate.
func Plan(sources []string, takenAtMap map[string]time.Time) []Operation {
	seen := make(map[string]bool)
	operations := make([]Operation, 0, len(sources))

	for _, src := range sources {
		takenAt, ok := takenAtMap[src]
		if !ok {
			continue
		}

		op := Build(src, takenAt)
		if seen[op.Name] {
			op.Duplicate = true
		}
		seen[op.Name] = true

		operations = append(operations, op)
	}

	return operations
}
