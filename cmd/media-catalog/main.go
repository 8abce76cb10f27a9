package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quidome/media-catalog-go/internal/config"
	"github.com/quidome/media-catalog-go/pkg/datepattern"
	"github.com/quidome/media-catalog-go/pkg/reconcile"
	"github.com/quidome/media-catalog-go/pkg/scan"
)

const version = "0.2.0"

type options struct {
	verbose    bool
	dryRun     bool
	configPath string

	cfg *config.Config
	log *logrus.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:     "media-catalog",
		Short:   "Resolve capture dates and catalog a media library",
		Long:    "Media Catalog determines the capture date of every photo in a library from its path, embedded metadata and filesystem timestamps, optionally repairs the embedded date, and records each file in a catalog database.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("Media Catalog CLI")
			cmd.Printf("Version: %s\n", version)
			if opts.verbose {
				cmd.Println("Verbose mode: enabled")
			}
			if opts.dryRun {
				cmd.Println("Dry run mode: enabled")
			}
			cmd.Println("")
			cmd.Println("Use --help to see available commands and options")
		},
	}

	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "perform a dry run without making changes")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ./media-catalog.yaml)")

	rootCmd.AddCommand(newScanCmd(opts))
	rootCmd.AddCommand(newExtractCmd(opts))
	rootCmd.AddCommand(newResolveCmd(opts))
	rootCmd.AddCommand(newIngestCmd(opts))

	return rootCmd
}

// setup loads the config and builds the logger. Logs go to stderr, results
// to stdout.
func (o *options) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	o.cfg = cfg

	o.log = logrus.New()
	o.log.SetOutput(cmd.ErrOrStderr())
	o.log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	o.log.SetLevel(logrus.WarnLevel)
	if o.verbose {
		o.log.SetLevel(logrus.DebugLevel)
	}
	return nil
}

func (o *options) scanOptions() (scan.Options, error) {
	since, err := o.cfg.SinceTime()
	if err != nil {
		return scan.Options{}, err
	}
	so := scan.DefaultOptions()
	so.PhotoExtensions = o.cfg.Extensions.Photo
	so.VideoExtensions = o.cfg.Extensions.Video
	so.MusicExtensions = o.cfg.Extensions.Music
	so.ExcludeDirs = o.cfg.ExcludeDirs
	so.ExcludeNames = o.cfg.ExcludeNames
	so.Since = since
	return so, nil
}

func (o *options) extractor() (*datepattern.Extractor, error) {
	loc, err := o.cfg.Loc()
	if err != nil {
		return nil, err
	}

	patterns := datepattern.DefaultCatalog()
	seasons := o.cfg.Seasons
	if o.cfg.PatternsFile != "" {
		file, err := datepattern.LoadFile(o.cfg.PatternsFile)
		if err != nil {
			return nil, err
		}
		if patterns, err = file.Catalog(patterns); err != nil {
			return nil, err
		}
		if file.Seasons != nil {
			seasons = file.Seasons
		}
	}

	return datepattern.NewExtractor(datepattern.Options{
		Catalog:  patterns,
		Seasons:  seasons,
		Location: loc,
		Logger:   o.log,
	}), nil
}

func (o *options) policy() (reconcile.Policy, error) {
	floor, err := o.cfg.Floor()
	if err != nil {
		return reconcile.Policy{}, err
	}
	return reconcile.Policy{Floor: floor, MinPlausible: floor}, nil
}
