package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/rebeliceyang/listinsight/internal/config"
	"github.com/rebeliceyang/listinsight/internal/dataset"
	"github.com/rebeliceyang/listinsight/internal/export"
	"github.com/rebeliceyang/listinsight/internal/history"
	"github.com/rebeliceyang/listinsight/internal/project"
	"github.com/rebeliceyang/listinsight/internal/project_history"
	"github.com/rebeliceyang/listinsight/internal/session"
	"github.com/rebeliceyang/listinsight/internal/view"
)

type options struct {
	configFile      string
	imports         []string
	removeDatasets  []string
	datasetName     string
	primaryKey      string
	filters         []string
	updateFilters   []string
	removeFilters   []int
	toggles         []int
	validate        bool
	syncKey         string
	reset           bool
	tagRow          int
	tagList         string
	setTags         string
	setTagsGiven    bool
	shortlist       string
	note            string
	findings        []string
	exportPath      string
	exportShortlist string
	showInfo        bool
	showShortlist   bool
	searchShortlist string
	completeTag     string
	showHistory     int
	showRecent      bool
	showMostUsed    bool
	forgetProjects  []string
}

func main() {
	flags := pflag.NewFlagSet("listinsight", pflag.ExitOnError)
	opts := &options{}

	flags.StringVar(&opts.configFile, "config", "", "config file (default: search config.yaml)")
	flags.String("root", "", "project root directory")
	flags.String("project", "", "project name, used when creating a project")
	flags.Int("max-cell", 0, "maximum displayed cell width")
	flags.Int("max-rows", 0, "maximum displayed rows per dataset")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("dev", false, "development logging")
	flags.String("encoding", "", "encoding of CSV files that are not UTF-8 (default latin1)")
	flags.StringArrayVar(&opts.imports, "import", nil, "import a CSV, XLSX or parquet file (repeatable)")
	flags.StringArrayVar(&opts.removeDatasets, "remove-dataset", nil, "remove a dataset and its filters from the project (repeatable)")
	flags.StringVar(&opts.datasetName, "dataset", "", "dataset to operate on (default: last imported or first open)")
	flags.StringVar(&opts.primaryKey, "primary-key", "", "set the primary key column of the dataset")
	flags.StringArrayVar(&opts.filters, "filter", nil, `add a filter "ATTR OP VALUE" (repeatable)`)
	flags.StringArrayVar(&opts.updateFilters, "update-filter", nil, `replace a filter "POS ATTR OP VALUE" (repeatable)`)
	flags.IntSliceVar(&opts.removeFilters, "remove-filter", nil, "remove filters by position")
	flags.IntSliceVar(&opts.toggles, "toggle", nil, "toggle filters by position")
	flags.BoolVar(&opts.validate, "validate", false, "check every filter against the dataset columns")
	flags.StringVar(&opts.syncKey, "sync", "", "show only rows with this primary key value in every dataset")
	flags.BoolVar(&opts.reset, "reset", false, "show every row of every dataset")
	flags.IntVar(&opts.tagRow, "row", -1, "visible row to tag or shortlist")
	flags.StringVar(&opts.tagList, "tags", "", "comma separated tags to add to --row")
	flags.StringVar(&opts.setTags, "set-tags", "", "comma separated tags replacing those of --row (empty clears)")
	flags.StringVar(&opts.shortlist, "shortlist", "", "shortlist --row under this title")
	flags.StringVar(&opts.note, "note", "", "shortlist note")
	flags.StringArrayVar(&opts.findings, "finding", nil, "mark a shortlist item as a finding (repeatable)")
	flags.StringVar(&opts.exportPath, "export", "", "export visible rows (.csv, .json, .parquet)")
	flags.StringVar(&opts.exportShortlist, "export-shortlist", "", "export the shortlist to a CSV file")
	flags.BoolVar(&opts.showInfo, "info", false, "print the structure of each dataset")
	flags.BoolVar(&opts.showShortlist, "show-shortlist", false, "print the shortlist")
	flags.StringVar(&opts.searchShortlist, "search-shortlist", "", "print shortlist items matching text")
	flags.StringVar(&opts.completeTag, "complete-tag", "", "print known tags starting with a prefix")
	flags.IntVar(&opts.showHistory, "history", 0, "print the last N filter applications")
	flags.BoolVar(&opts.showRecent, "recent", false, "print recently opened projects")
	flags.BoolVar(&opts.showMostUsed, "most-used", false, "print the most opened projects")
	flags.StringArrayVar(&opts.forgetProjects, "forget-project", nil, "remove a project from the recent list by id (repeatable)")
	_ = flags.Parse(os.Args[1:])
	opts.setTagsGiven = flags.Changed("set-tags")

	cfg, err := config.Load(opts.configFile, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v (using defaults)\n", err)
		cfg = config.GetDefaults()
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), cfg, opts, logger.Sugar(), os.Stdout); err != nil {
		logger.Sugar().Errorw("listinsight failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	z := zap.NewProductionConfig()
	if cfg.Development {
		z = zap.NewDevelopmentConfig()
	}
	z.OutputPaths = []string{"stderr"}

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		z.Level = level
	}

	logger, err := z.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func run(ctx context.Context, cfg *config.Config, opts *options, logger *zap.SugaredLogger, out io.Writer) error {
	settingsPath, err := cfg.SettingsPath()
	if err != nil {
		return err
	}
	settings, err := config.NewSettings(settingsPath)
	if err != nil {
		return err
	}

	var loadOpts []dataset.LoadOption
	if cfg.Data.FallbackEncoding != "" {
		enc, err := dataset.LookupEncoding(cfg.Data.FallbackEncoding)
		if err != nil {
			return err
		}
		loadOpts = append(loadOpts, dataset.WithFallbackEncoding(enc))
	}

	store, err := project.Open(cfg.General.ProjectRoot, cfg.General.ProjectName)
	if err != nil {
		return err
	}

	recent, err := project_history.NewManager(filepath.Dir(settingsPath))
	if err != nil {
		return err
	}
	if err := recent.Add(cfg.General.ProjectRoot, store.Name()); err != nil {
		logger.Warnw("failed to record project history", "error", err)
	}

	filterHistory, err := history.NewStore(filepath.Join(store.Dir(), "history.db"))
	if err != nil {
		return err
	}
	defer func() { _ = filterHistory.Close() }()

	sess, err := session.New(store,
		session.WithLogger(logger),
		session.WithSettings(settings),
		session.WithHistory(filterHistory),
		session.WithLoadOptions(loadOpts...))
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Errorw("failed to close session", "error", err)
		}
	}()

	if _, err := sess.LoadProject(ctx); err != nil {
		return err
	}

	var target *view.View
	for _, path := range opts.imports {
		views, err := sess.Import(ctx, path)
		if err != nil {
			return err
		}
		if len(views) > 0 {
			target = views[len(views)-1]
		}
	}

	for _, name := range opts.removeDatasets {
		if err := removeDataset(sess, name); err != nil {
			return err
		}
		if target != nil && strings.EqualFold(target.Dataset().Name(), name) {
			target = nil
		}
		logger.Infow("dataset removed", "dataset", name)
	}

	if opts.datasetName != "" {
		if target, err = sess.ViewByName(opts.datasetName); err != nil {
			return err
		}
	} else if target == nil {
		if views := sess.Views(); len(views) > 0 {
			target = views[0]
		}
	}

	if err := operate(ctx, sess, target, opts, logger, out); err != nil {
		return err
	}
	if err := curate(ctx, sess, target, opts); err != nil {
		return err
	}

	if opts.exportPath != "" {
		if target == nil {
			return fmt.Errorf("no dataset to export")
		}
		if err := export.Export(target, opts.exportPath); err != nil {
			return err
		}
		logger.Infow("rows exported", "dataset", target.Dataset().Name(), "rows", target.Len(), "file", opts.exportPath)
	}
	if opts.exportShortlist != "" {
		if err := export.ShortlistToCSV(sess.Shortlist().All(), opts.exportShortlist); err != nil {
			return err
		}
		logger.Infow("shortlist exported", "items", len(sess.Shortlist().All()), "file", opts.exportShortlist)
	}

	render(out, sess, target, opts, cfg)

	if opts.completeTag != "" {
		for _, tag := range settings.Complete(opts.completeTag) {
			fmt.Fprintln(out, tag)
		}
	}
	if opts.showHistory > 0 {
		entries, err := filterHistory.Recent(ctx, "", opts.showHistory)
		if err != nil {
			return err
		}
		printHistory(out, entries)
	}

	for _, id := range opts.forgetProjects {
		if err := recent.Delete(id); err != nil {
			return err
		}
	}
	if opts.showRecent {
		if n, err := recent.Prune(project.DirName); err != nil {
			logger.Warnw("failed to prune project history", "error", err)
		} else if n > 0 {
			logger.Infow("forgot missing projects", "count", n)
		}
		printRecent(out, recent.GetRecent(10))
	}
	if opts.showMostUsed {
		printRecent(out, recent.GetMostUsed(10))
	}
	return nil
}
