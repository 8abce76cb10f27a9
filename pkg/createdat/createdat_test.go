package createdat_test

import (
	"errors"
	"io"
	"io/fs"
	"testing"
	"testing/fstest"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/quidome/media-catalog-go/pkg/createdat"
	"github.com/quidome/media-catalog-go/pkg/reconcile"
)

func TestDetermine_Reconciliation(t *testing.T) {
	mtime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name          string
		path          string
		modTime       time.Time
		metadataTime  time.Time
		metadataFound bool
		metadataErr   error
		wantTime      time.Time
		wantSource    createdat.Source
		wantWrite     bool
	}{
		{
			name:          "earlier metadata beats filename",
			path:          "root/IMG_20240102.jpg",
			modTime:       mtime,
			metadataTime:  time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC),
			metadataFound: true,
			wantTime:      time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC),
			wantSource:    reconcile.SourceMetadata,
		},
		{
			name:          "filename beats later metadata",
			path:          "root/20240102_030405123_iOS.jpg",
			modTime:       mtime,
			metadataTime:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			metadataFound: true,
			wantTime:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			wantSource:    reconcile.SourceFilename,
			wantWrite:     true,
		},
		{
			name:       "filename used when metadata missing",
			path:       "root/IMG_20240102.jpg",
			modTime:    mtime,
			wantTime:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			wantSource: reconcile.SourceFilename,
			wantWrite:  true,
		},
		{
			name:        "metadata error falls back to filename",
			path:        "root/IMG_20240102.jpg",
			modTime:     mtime,
			metadataErr: errors.New("boom"),
			wantTime:    time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			wantSource:  reconcile.SourceFilename,
		},
		{
			name:        "metadata error without filename date uses mtime",
			path:        "root/holiday.jpg",
			modTime:     mtime,
			metadataErr: errors.New("boom"),
			wantTime:    mtime,
			wantSource:  reconcile.SourceFilestat,
		},
		{
			name:       "floor when nothing is known",
			path:       "root/holiday.jpg",
			modTime:    mtime,
			wantTime:   reconcile.DefaultFloor,
			wantSource: reconcile.SourceFloor,
			wantWrite:  true,
		},
		{
			name:       "season folder",
			path:       "Photos/2018/01 Winter/scan.jpg",
			modTime:    mtime,
			wantTime:   time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
			wantSource: reconcile.SourceFilename,
			wantWrite:  true,
		},
		{
			name:       "clamped to mtime",
			path:       "root/IMG_20240102.jpg",
			modTime:    time.Date(2023, 5, 5, 0, 0, 0, 0, time.UTC),
			wantTime:   time.Date(2023, 5, 5, 0, 0, 0, 0, time.UTC),
			wantSource: reconcile.SourceFilestat,
			wantWrite:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fsys := fstest.MapFS{
				tc.path: &fstest.MapFile{Data: []byte("x"), ModTime: tc.modTime},
			}
			metadata := &fakeMetadataExtractor{createdAt: tc.metadataTime, found: tc.metadataFound, err: tc.metadataErr}
			logger, _ := test.NewNullLogger()

			res, err := createdat.DetermineDetailed(fsys, tc.path, createdat.Options{Metadata: metadata, Logger: logger})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !res.Best.CreatedAt.Equal(tc.wantTime) {
				t.Fatalf("unexpected CreatedAt\n got: %v\nwant: %v", res.Best.CreatedAt, tc.wantTime)
			}
			if res.Best.Source != tc.wantSource {
				t.Fatalf("unexpected Source\n got: %q\nwant: %q", res.Best.Source, tc.wantSource)
			}
			if res.WouldWrite != tc.wantWrite {
				t.Fatalf("unexpected WouldWrite: %v", res.WouldWrite)
			}
			if res.Written {
				t.Fatalf("expected nothing written without a writer")
			}
			if res.Degraded() != (tc.metadataErr != nil) {
				t.Fatalf("unexpected degraded state: %v", res.MetadataErr)
			}
			if metadata.calls != 1 {
				t.Fatalf("expected one metadata read, got %d", metadata.calls)
			}
		})
	}
}

func TestDetermine_WritesInstruction(t *testing.T) {
	path := "root/IMG_20240102.jpg"
	fsys := fstest.MapFS{
		path: &fstest.MapFile{Data: []byte("x"), ModTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	writer := &fakeMetadataWriter{}
	logger, _ := test.NewNullLogger()

	res, err := createdat.DetermineDetailed(fsys, path, createdat.Options{
		Metadata: &fakeMetadataExtractor{},
		Writer:   writer,
		Author:   "Jane Doe",
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Written {
		t.Fatalf("expected the write to be reported")
	}
	if len(writer.stamps) != 1 {
		t.Fatalf("expected one write, got %d", len(writer.stamps))
	}
	want := createdat.Stamp{Taken: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Artist: "Jane Doe"}
	if got := writer.stamps[0]; !got.Taken.Equal(want.Taken) || got.Artist != want.Artist {
		t.Fatalf("unexpected stamp\n got: %+v\nwant: %+v", got, want)
	}
	if writer.paths[0] != path {
		t.Fatalf("unexpected write path %q", writer.paths[0])
	}
}

func TestDetermine_WriteFailureDegrades(t *testing.T) {
	path := "root/holiday.jpg"
	mtime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fsys := fstest.MapFS{
		path: &fstest.MapFile{Data: []byte("x"), ModTime: mtime},
	}
	logger, hook := test.NewNullLogger()

	res, err := createdat.DetermineDetailed(fsys, path, createdat.Options{
		Metadata: &fakeMetadataExtractor{},
		Writer:   &fakeMetadataWriter{err: errors.New("read-only file system")},
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Written {
		t.Fatalf("expected no write to be reported")
	}
	if !res.Degraded() {
		t.Fatalf("expected degraded result")
	}
	if res.WouldWrite {
		t.Fatalf("expected no pending write after a failed write")
	}
	// without a filename date the degraded decision clamps the sentinel to mtime
	if !res.Best.CreatedAt.Equal(mtime) {
		t.Fatalf("unexpected CreatedAt\n got: %v\nwant: %v", res.Best.CreatedAt, mtime)
	}
	if len(hook.AllEntries()) == 0 {
		t.Fatalf("expected the write failure to be logged")
	}
}

func TestDetermine_TopLevelYearFolder(t *testing.T) {
	mtime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name   string
		path   string
		prefix string
		want   time.Time
	}{
		{
			name: "year folder at fs root",
			path: "2018/photo.jpg",
			want: time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "season folder at fs root",
			path: "2018/01 Winter/photo.jpg",
			want: time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "year from the prefix",
			path:   "Summer trip/photo.jpg",
			prefix: "/photos/2016",
			want:   time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "path date beats prefix",
			path:   "IMG_20190304.jpg",
			prefix: "/photos/2016",
			want:   time.Date(2019, 3, 4, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fsys := fstest.MapFS{
				tc.path: &fstest.MapFile{Data: []byte("x"), ModTime: mtime},
			}
			logger, _ := test.NewNullLogger()

			res, err := createdat.DetermineDetailed(fsys, tc.path, createdat.Options{
				Metadata:   &fakeMetadataExtractor{},
				PathPrefix: tc.prefix,
				Logger:     logger,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !res.Best.CreatedAt.Equal(tc.want) || res.Best.Source != reconcile.SourceFilename {
				t.Fatalf("unexpected result\n got: %v (%s)\nwant: %v", res.Best.CreatedAt, res.Best.Source, tc.want)
			}
		})
	}
}

func TestDetermine_CreationTimeOption(t *testing.T) {
	path := "root/IMG_20240102.jpg"
	fsys := fstest.MapFS{
		path: &fstest.MapFile{Data: []byte("x"), ModTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	bound := time.Date(2020, 2, 2, 0, 0, 0, 0, time.UTC)
	logger, _ := test.NewNullLogger()

	res, err := createdat.Determine(fsys, path, createdat.Options{
		Metadata:     &fakeMetadataExtractor{},
		CreationTime: func(fs.FileInfo) time.Time { return bound },
		Logger:       logger,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.CreatedAt.Equal(bound) || res.Source != reconcile.SourceFilestat {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDetermine_MissingFileReturnsError(t *testing.T) {
	fsys := fstest.MapFS{}

	_, err := createdat.Determine(fsys, "root/missing.jpg", createdat.Options{})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestDetermine_DirectoryReturnsError(t *testing.T) {
	fsys := fstest.MapFS{
		"root": &fstest.MapFile{Mode: fs.ModeDir},
	}

	_, err := createdat.Determine(fsys, "root", createdat.Options{})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

type fakeMetadataExtractor struct {
	createdAt time.Time
	found     bool
	err       error

	calls int
}

func (f *fakeMetadataExtractor) CreatedAt(path string, r io.Reader) (time.Time, bool, error) {
	f.calls++
	_, _ = io.ReadAll(r)
	return f.createdAt, f.found, f.err
}

type fakeMetadataWriter struct {
	err error

	paths  []string
	stamps []createdat.Stamp
}

func (f *fakeMetadataWriter) WriteCreatedAt(path string, s createdat.Stamp) error {
	if f.err != nil {
		return f.err
	}
	f.paths = append(f.paths, path)
	f.stamps = append(f.stamps, s)
	return nil
}
