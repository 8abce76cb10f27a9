// Package ingest runs the capture-date pipeline over a directory tree and
// records every media file in the catalog.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/quidome/media-catalog-go/pkg/catalog"
	"github.com/quidome/media-catalog-go/pkg/createdat"
	"github.com/quidome/media-catalog-go/pkg/datepattern"
	"github.com/quidome/media-catalog-go/pkg/plan"
	"github.com/quidome/media-catalog-go/pkg/reconcile"
	"github.com/quidome/media-catalog-go/pkg/scan"
)

// Store receives catalog records. *catalog.Store implements it.
type Store interface {
	Insert(ctx context.Context, rec *catalog.Record) (bool, error)
}

type Options struct {
	Scan      scan.Options
	Determine createdat.Options

	// Store may be nil, in which case nothing is recorded.
	Store Store

	// Workers bounds concurrent files. Zero means GOMAXPROCS.
	Workers int

	// DryRun resolves dates without writing metadata or records.
	DryRun bool

	// OnEntry, if set, is called once per processed file. It may be called
	// from several goroutines at once.
	OnEntry func(Entry)

	Logger logrus.FieldLogger
}

// Entry is the outcome for one file.
type Entry struct {
	Path      string
	Resolved  createdat.DetailedResult
	Record    catalog.Record
	Inserted  bool
	// Duplicate is set when the store already held a record of this name.
	Duplicate bool
	Err       *FileError
}

// Report summarizes a run.
type Report struct {
	Scanned         int
	Cataloged       int
	Duplicates      int
	MetadataWritten int
	Degraded        int
	Failed          int
	Errors          []*FileError
}

// Run scans root in fsys and processes every media file. Per-file failures
// are collected in the report; only a scan failure or cancellation of ctx
// makes Run return an error.
func Run(ctx context.Context, fsys fs.FS, root string, opts Options) (Report, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	records, err := scan.ScanRecords(fsys, root, opts.Scan)
	if err != nil {
		return Report{}, fmt.Errorf("scan %s: %w", root, err)
	}
	log.WithField("files", len(records)).Info("scan complete")

	dopts := opts.Determine
	if dopts.Logger == nil {
		dopts.Logger = log
	}
	if dopts.Extractor == nil {
		dopts.Extractor = datepattern.NewExtractor(datepattern.Options{Location: dopts.Location, Logger: dopts.Logger})
	}
	if opts.DryRun {
		dopts.Writer = nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var (
		mu     sync.Mutex
		report = Report{Scanned: len(records)}
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, rec := range records {
		if gCtx.Err() != nil {
			break
		}
		rec := rec
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			entry := processFile(gCtx, fsys, root, rec, dopts, opts)

			mu.Lock()
			report.add(entry)
			mu.Unlock()

			if entry.Err != nil {
				log.WithError(entry.Err.Err).WithFields(logrus.Fields{
					"file":     entry.Path,
					"category": entry.Err.Category,
				}).Warn("file not processed cleanly")
			}
			if opts.OnEntry != nil {
				opts.OnEntry(entry)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	log.WithFields(logrus.Fields{
		"cataloged":  report.Cataloged,
		"duplicates": report.Duplicates,
		"written":    report.MetadataWritten,
		"degraded":   report.Degraded,
		"failed":     report.Failed,
	}).Info("ingest complete")
	return report, nil
}

func processFile(ctx context.Context, fsys fs.FS, root string, rec scan.Record, dopts createdat.Options, opts Options) Entry {
	entry := Entry{Path: rec.Path}

	var (
		resolved createdat.DetailedResult
		err      error
	)
	if rec.MediaType == scan.MediaMusic {
		resolved, err = statDate(fsys, path.Join(root, rec.Path), dopts)
	} else {
		resolved, err = createdat.DetermineDetailed(fsys, path.Join(root, rec.Path), dopts)
	}
	if err != nil {
		entry.Err = &FileError{Path: rec.Path, Category: CategoryIO, Err: err}
		return entry
	}
	entry.Resolved = resolved
	if resolved.Degraded() {
		entry.Err = &FileError{Path: rec.Path, Category: CategoryMetadata, Err: resolved.MetadataErr}
	}

	entry.Record = NewRecord(rec.MediaType, plan.Build(rec.Path, resolved.Best.CreatedAt))

	if opts.DryRun || opts.Store == nil {
		return entry
	}
	inserted, err := opts.Store.Insert(ctx, &entry.Record)
	if err != nil {
		entry.Err = &FileError{Path: rec.Path, Category: CategoryCatalog, Err: err}
		return entry
	}
	entry.Inserted, entry.Duplicate = inserted, !inserted
	return entry
}

// statDate dates a file by its stat alone. Music is neither renamed by
// devices nor carries EXIF, so neither the name nor metadata is consulted.
func statDate(fsys fs.FS, p string, dopts createdat.Options) (createdat.DetailedResult, error) {
	info, err := fs.Stat(fsys, p)
	if err != nil {
		return createdat.DetailedResult{}, err
	}
	if info.IsDir() {
		return createdat.DetailedResult{}, fs.ErrInvalid
	}

	created := info.ModTime()
	if dopts.CreationTime != nil {
		created = dopts.CreationTime(info)
	}
	return createdat.DetailedResult{
		Best:     createdat.Result{CreatedAt: created, Source: reconcile.SourceFilestat},
		Filestat: created,
	}, nil
}

// NewRecord converts a planned operation into a catalog record.
func NewRecord(mediaType scan.MediaType, op plan.Operation) catalog.Record {
	return catalog.Record{
		MediaTypeID:   int(mediaType),
		Name:          op.Name,
		TakenDateTime: op.TakenAt.UTC().Truncate(time.Second),
		TakenFileTime: op.HourKey,
		CategoryTags:  op.Category,
		MenuTags:      op.Menu,
		ToBeProcessed: op.ToBeProcessed,
		SearchStr:     op.SearchStr,
	}
}

func (r *Report) add(e Entry) {
	if e.Err != nil {
		r.Errors = append(r.Errors, e.Err)
		if e.Err.Fatal() {
			r.Failed++
		}
	}
	if e.Resolved.Written {
		r.MetadataWritten++
	}
	if e.Resolved.Degraded() {
		r.Degraded++
	}
	switch {
	case e.Inserted:
		r.Cataloged++
	case e.Duplicate:
		r.Duplicates++
	}
}
