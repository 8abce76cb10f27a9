package ingest

import "fmt"

// Category classifies a per-file failure.
type Category string

const (
	CategoryIO       Category = "io_error"       // stat, open, permissions
	CategoryMetadata Category = "metadata_error" // embedded metadata unreadable or unwritable
	CategoryCatalog  Category = "catalog_error"  // store rejected the record
)

// FileError is a failure tied to a single file. Metadata errors are
// recoverable: the file is still cataloged from its filename.
type FileError struct {
	Path     string
	Category Category
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the file was left out of the catalog.
func (e *FileError) Fatal() bool {
	return e.Category != CategoryMetadata
}
