package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quidome/media-catalog-go/internal/config"
	"github.com/quidome/media-catalog-go/pkg/catalog"
	"github.com/quidome/media-catalog-go/pkg/createdat"
	"github.com/quidome/media-catalog-go/pkg/exiftool"
	"github.com/quidome/media-catalog-go/pkg/ingest"
	"github.com/quidome/media-catalog-go/pkg/scan"
)

func newScanCmd(opts *options) *cobra.Command {
	var (
		maxDepth int
		asJSON   bool
	)

	scanCmd := &cobra.Command{
		Use:   "scan [directory]",
		Short: "Scan a directory for media files",
		Long:  "Scan a directory and print all media files found (relative to the scan root).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			directory := args[0]

			scanOpts, err := opts.scanOptions()
			if err != nil {
				return err
			}
			scanOpts.MaxDepth = maxDepth

			records, err := scan.ScanRecords(os.DirFS(directory), ".", scanOpts)
			if err != nil {
				return err
			}

			if asJSON {
				if records == nil {
					records = []scan.Record{}
				}
				return writeJSON(cmd.OutOrStdout(), records)
			}

			for _, r := range records {
				cmd.Println(r.Path)
			}

			if opts.verbose {
				cmd.PrintErrf("found %d media files\n", len(records))
			}

			return nil
		},
	}

	scanCmd.Flags().IntVar(&maxDepth, "max-depth", -1, "maximum recursion depth (0 = no recursion)")
	scanCmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")

	return scanCmd
}

func newExtractCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "extract [name...]",
		Short: "Print the date encoded in file names or paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			extractor, err := opts.extractor()
			if err != nil {
				return err
			}
			for _, name := range args {
				cmd.Printf("%s -> %s\n", name, extractor.Extract(name))
			}
			return nil
		},
	}
}

type resolvedCandidates struct {
	Metadata string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Filename string `json:"filename,omitempty" yaml:"filename,omitempty"`
	Filestat string `json:"filestat,omitempty" yaml:"filestat,omitempty"`
}

type resolvedFile struct {
	Path       string             `json:"path" yaml:"path"`
	CreatedAt  string             `json:"created_at" yaml:"created_at"`
	Source     string             `json:"source" yaml:"source"`
	Pattern    string             `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Candidates resolvedCandidates `json:"candidates" yaml:"candidates"`
	WouldWrite bool               `json:"would_write" yaml:"would_write"`
	Error      string             `json:"error,omitempty" yaml:"error,omitempty"`
}

func newResolvedFile(e ingest.Entry) resolvedFile {
	r := e.Resolved
	out := resolvedFile{
		Path:       e.Path,
		CreatedAt:  formatTime(r.Best.CreatedAt),
		Source:     string(r.Best.Source),
		WouldWrite: r.WouldWrite,
		Candidates: resolvedCandidates{
			Metadata: formatTime(r.Metadata),
			Filename: formatTime(r.Filename),
			Filestat: formatTime(r.Filestat),
		},
	}
	if r.Match.Pattern >= 0 {
		out.Pattern = string(r.Match.Format)
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return out
}

func newResolveCmd(opts *options) *cobra.Command {
	var asJSON, asYAML bool

	resolveCmd := &cobra.Command{
		Use:   "resolve [directory]",
		Short: "Show the capture date each media file would be cataloged with",
		Long:  "Resolve the capture date of every media file below a directory and report the candidates considered. Nothing is written.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON && asYAML {
				return errors.New("--json and --yaml are mutually exclusive")
			}

			runOpts, err := opts.ingestOptions()
			if err != nil {
				return err
			}
			runOpts.DryRun = true
			runOpts.Determine.PathPrefix = args[0]

			var files []resolvedFile
			entries := make(chan ingest.Entry)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for e := range entries {
					files = append(files, newResolvedFile(e))
				}
			}()
			runOpts.OnEntry = func(e ingest.Entry) { entries <- e }

			_, runErr := ingest.Run(cmd.Context(), os.DirFS(args[0]), ".", runOpts)
			close(entries)
			<-done
			if runErr != nil {
				return runErr
			}

			sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
			if files == nil {
				files = []resolvedFile{}
			}

			switch {
			case asJSON:
				return writeJSON(cmd.OutOrStdout(), files)
			case asYAML:
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(files); err != nil {
					return err
				}
				return enc.Close()
			}

			for _, f := range files {
				line := fmt.Sprintf("%s -> %s (%s)", f.Path, f.CreatedAt, f.Source)
				if f.WouldWrite {
					line += " [write]"
				}
				cmd.Println(line)
			}
			return nil
		},
	}

	resolveCmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	resolveCmd.Flags().BoolVar(&asYAML, "yaml", false, "print results as YAML")

	return resolveCmd
}

func newIngestCmd(opts *options) *cobra.Command {
	var (
		dbPath        string
		writeMetadata bool
		author        string
		since         string
		workers       int
	)

	ingestCmd := &cobra.Command{
		Use:   "ingest [directory]",
		Short: "Resolve capture dates and record every media file in the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			directory := args[0]

			if cmd.Flags().Changed("since") {
				opts.cfg.Since = since
			}
			if cmd.Flags().Changed("workers") {
				opts.cfg.Workers = workers
			}
			if cmd.Flags().Changed("author") {
				opts.cfg.Author = author
			}
			if cmd.Flags().Changed("db") {
				opts.cfg.Database = dbPath
			}

			runOpts, err := opts.ingestOptions()
			if err != nil {
				return err
			}
			runOpts.DryRun = opts.dryRun
			runOpts.Determine.PathPrefix = directory

			if writeMetadata {
				tool, err := exiftool.New(exiftool.Options{
					Root:     directory,
					Location: runOpts.Determine.Location,
					Logger:   opts.log,
				})
				if err != nil {
					return err
				}
				defer tool.Close()
				runOpts.Determine.Metadata = tool
				runOpts.Determine.Writer = tool
			}

			if !opts.dryRun {
				store, err := catalog.Open(opts.cfg.Database)
				if err != nil {
					return err
				}
				defer store.Close()
				runOpts.Store = store
			}

			report, err := ingest.Run(cmd.Context(), os.DirFS(directory), ".", runOpts)
			if err != nil {
				return err
			}

			cmd.Printf("scanned: %d\n", report.Scanned)
			cmd.Printf("cataloged: %d\n", report.Cataloged)
			cmd.Printf("duplicates: %d\n", report.Duplicates)
			cmd.Printf("metadata written: %d\n", report.MetadataWritten)
			cmd.Printf("degraded: %d\n", report.Degraded)
			cmd.Printf("failed: %d\n", report.Failed)
			if opts.verbose {
				for _, fe := range report.Errors {
					cmd.PrintErrln(fe.Error())
				}
			}
			return nil
		},
	}

	ingestCmd.Flags().StringVar(&dbPath, "db", "", "catalog database (default from config)")
	ingestCmd.Flags().BoolVar(&writeMetadata, "write-metadata", false, "repair embedded capture dates with exiftool")
	ingestCmd.Flags().StringVar(&author, "author", "", "artist and copyright holder written with repaired dates")
	ingestCmd.Flags().StringVar(&since, "since", "", "skip files modified before this date ("+config.DateLayout+")")
	ingestCmd.Flags().IntVar(&workers, "workers", 0, "concurrent files (0 = number of CPUs)")

	return ingestCmd
}

func (o *options) ingestOptions() (ingest.Options, error) {
	scanOpts, err := o.scanOptions()
	if err != nil {
		return ingest.Options{}, err
	}
	extractor, err := o.extractor()
	if err != nil {
		return ingest.Options{}, err
	}
	loc, err := o.cfg.Loc()
	if err != nil {
		return ingest.Options{}, err
	}
	policy, err := o.policy()
	if err != nil {
		return ingest.Options{}, err
	}

	return ingest.Options{
		Scan: scanOpts,
		Determine: createdat.Options{
			Location:  loc,
			Extractor: extractor,
			Author:    o.cfg.Author,
			Policy:    policy,
			Logger:    o.log,
		},
		Workers: o.cfg.Workers,
		Logger:  o.log,
	}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
