package ingest

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/quidome/media-catalog-go/pkg/catalog"
	"github.com/quidome/media-catalog-go/pkg/createdat"
	"github.com/quidome/media-catalog-go/pkg/scan"
)

var mtime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func libraryFS() fstest.MapFS {
	file := func() *fstest.MapFile { return &fstest.MapFile{Data: []byte("x"), ModTime: mtime} }
	return fstest.MapFS{
		"lib/Family/2019/IMG_20190101.jpg":     file(),
		"lib/Family/2019/dup/IMG_20190101.jpg": file(),
		"lib/Travel/2018 Summer/beach.png":     file(),
		"lib/unsorted.jpg":                     file(),
		"lib/notes.txt":                        file(),
		"lib/.picasaoriginals/IMG_1.jpg":       file(),
	}
}

func openStore(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func baseOptions(t *testing.T) Options {
	logger, _ := test.NewNullLogger()
	return Options{
		Scan:      scan.DefaultOptions(),
		Determine: createdat.Options{Metadata: &fakeMetadata{}},
		Workers:   3,
		Logger:    logger,
	}
}

func TestRun_CatalogsLibrary(t *testing.T) {
	store := openStore(t)
	writer := &fakeWriter{}
	opts := baseOptions(t)
	opts.Store = store
	opts.Determine.Writer = writer
	opts.Determine.Author = "Jane Doe"

	report, err := Run(context.Background(), libraryFS(), "lib", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Report{Scanned: 4, Cataloged: 3, Duplicates: 1, MetadataWritten: 4}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Fatalf("unexpected report (-want +got):\n%s", diff)
	}

	ctx := context.Background()
	got, err := store.Get(ctx, int(scan.MediaPhoto), "IMG_20190101.jpg")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CategoryTags != "Family" || got.MenuTags != "2019" || got.TakenFileTime != 2019010100 {
		t.Fatalf("unexpected record %+v", got)
	}

	beach, err := store.Get(ctx, int(scan.MediaPhoto), "beach.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if want := time.Date(2018, 7, 1, 0, 0, 0, 0, time.UTC); !beach.TakenDateTime.Equal(want) {
		t.Fatalf("unexpected season date\n got: %v\nwant: %v", beach.TakenDateTime, want)
	}

	unsorted, err := store.Get(ctx, int(scan.MediaPhoto), "unsorted.jpg")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !unsorted.ToBeProcessed || unsorted.SearchStr != "unsorted.jpg" {
		t.Fatalf("unexpected record %+v", unsorted)
	}
	if want := time.Date(1800, 1, 1, 0, 0, 0, 0, time.UTC); !unsorted.TakenDateTime.Equal(want) {
		t.Fatalf("unexpected floor date\n got: %v\nwant: %v", unsorted.TakenDateTime, want)
	}

	for _, s := range writer.all() {
		if s.Artist != "Jane Doe" {
			t.Fatalf("unexpected stamp %+v", s)
		}
	}
}

func TestRun_DryRun(t *testing.T) {
	store := &fakeStore{}
	writer := &fakeWriter{}
	opts := baseOptions(t)
	opts.Store = store
	opts.Determine.Writer = writer
	opts.DryRun = true

	var (
		mu      sync.Mutex
		entries []Entry
	)
	opts.OnEntry = func(e Entry) {
		mu.Lock()
		defer mu.Unlock()
		entries = append(entries, e)
	}

	report, err := Run(context.Background(), libraryFS(), "lib", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Scanned != 4 || report.Cataloged != 0 || report.MetadataWritten != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(writer.all()) != 0 || store.calls != 0 {
		t.Fatalf("dry run changed something")
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if !e.Resolved.WouldWrite {
			t.Fatalf("expected %s to report a pending write", e.Path)
		}
	}
}

func TestRun_TopLevelYearFolder(t *testing.T) {
	file := func() *fstest.MapFile { return &fstest.MapFile{Data: []byte("x"), ModTime: mtime} }
	fsys := fstest.MapFS{
		"2018/01 Winter/photo.jpg": file(),
		"2018/photo.jpg":           file(),
	}
	opts := baseOptions(t)
	opts.DryRun = true

	var (
		mu  sync.Mutex
		got = map[string]time.Time{}
	)
	opts.OnEntry = func(e Entry) {
		mu.Lock()
		defer mu.Unlock()
		got[e.Path] = e.Resolved.Best.CreatedAt
	}

	if _, err := Run(context.Background(), fsys, ".", opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]time.Time{
		"2018/01 Winter/photo.jpg": time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		"2018/photo.jpg":           time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected dates (-want +got):\n%s", diff)
	}
}

func TestRun_MusicDatedByStat(t *testing.T) {
	store := openStore(t)
	writer := &fakeWriter{}
	opts := baseOptions(t)
	opts.Store = store
	opts.Determine.Metadata = &fakeMetadata{failOn: ".mp3"}
	opts.Determine.Writer = writer

	fsys := fstest.MapFS{
		"Music/2019/track_20190101.mp3": &fstest.MapFile{Data: []byte("x"), ModTime: mtime},
	}
	report, err := Run(context.Background(), fsys, ".", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(Report{Scanned: 1, Cataloged: 1}, report); diff != "" {
		t.Fatalf("unexpected report (-want +got):\n%s", diff)
	}
	if len(writer.all()) != 0 {
		t.Fatalf("expected no metadata writes for music")
	}

	got, err := store.Get(context.Background(), int(scan.MediaMusic), "track_20190101.mp3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.TakenDateTime.Equal(mtime) || got.CategoryTags != "Music" || got.MenuTags != "2019" {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestRun_MetadataFailureDegrades(t *testing.T) {
	store := openStore(t)
	opts := baseOptions(t)
	opts.Store = store
	opts.Determine.Metadata = &fakeMetadata{failOn: "beach.png"}

	report, err := Run(context.Background(), libraryFS(), "lib", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Degraded != 1 || report.Failed != 0 || report.Cataloged != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(report.Errors) != 1 || report.Errors[0].Category != CategoryMetadata {
		t.Fatalf("unexpected errors %v", report.Errors)
	}
	if !strings.HasSuffix(report.Errors[0].Path, "beach.png") {
		t.Fatalf("unexpected error path %q", report.Errors[0].Path)
	}
}

func TestRun_StoreFailure(t *testing.T) {
	opts := baseOptions(t)
	opts.Store = &fakeStore{err: errors.New("disk I/O error")}

	report, err := Run(context.Background(), libraryFS(), "lib", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed != 4 || report.Cataloged != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	var paths []string
	for _, fe := range report.Errors {
		if fe.Category != CategoryCatalog || !fe.Fatal() {
			t.Fatalf("unexpected error %v", fe)
		}
		paths = append(paths, fe.Path)
	}
	sort.Strings(paths)
	want := []string{"Family/2019/IMG_20190101.jpg", "Family/2019/dup/IMG_20190101.jpg", "Travel/2018 Summer/beach.png", "unsorted.jpg"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("unexpected paths (-want +got):\n%s", diff)
	}
}

func TestRun_ScanFailure(t *testing.T) {
	opts := baseOptions(t)

	if _, err := Run(context.Background(), fstest.MapFS{}, "missing", opts); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, libraryFS(), "lib", baseOptions(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFileError(t *testing.T) {
	inner := errors.New("boom")
	fe := &FileError{Path: "a.jpg", Category: CategoryIO, Err: inner}

	if !errors.Is(fe, inner) {
		t.Fatalf("expected wrapped error")
	}
	if got, want := fe.Error(), "[io_error] a.jpg: boom"; got != want {
		t.Fatalf("unexpected message\n got: %q\nwant: %q", got, want)
	}
}

type fakeMetadata struct {
	failOn string
}

func (f *fakeMetadata) CreatedAt(path string, r io.Reader) (time.Time, bool, error) {
	if f.failOn != "" && strings.HasSuffix(path, f.failOn) {
		return time.Time{}, false, errors.New("corrupt APP1 segment")
	}
	return time.Time{}, false, nil
}

type fakeWriter struct {
	mu     sync.Mutex
	stamps []createdat.Stamp
}

func (f *fakeWriter) WriteCreatedAt(path string, s createdat.Stamp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stamps = append(f.stamps, s)
	return nil
}

func (f *fakeWriter) all() []createdat.Stamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]createdat.Stamp(nil), f.stamps...)
}

type fakeStore struct {
	err error

	mu    sync.Mutex
	calls int
}

func (f *fakeStore) Insert(ctx context.Context, rec *catalog.Record) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return true, nil
}
