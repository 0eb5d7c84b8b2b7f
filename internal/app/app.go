package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/guijianchou/IDM-Download-Monitor/internal/analysis"
	"github.com/guijianchou/IDM-Download-Monitor/internal/config"
	"github.com/guijianchou/IDM-Download-Monitor/internal/database"
	"github.com/guijianchou/IDM-Download-Monitor/internal/encryption"
	"github.com/guijianchou/IDM-Download-Monitor/internal/fs"
	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
	"github.com/guijianchou/IDM-Download-Monitor/internal/recordstore"
	"github.com/guijianchou/IDM-Download-Monitor/internal/vault"
)

// ErrHistoryDisabled is returned by history queries when [database] type is "none".
var ErrHistoryDisabled = errors.New("cycle history is disabled")

// MonitorApp is the application layer between the CLI and MonitorService.
// It constructs all dependencies from config, runs the post-cycle steps
// (history, archive, analysis) and owns the lifecycle of the history database
// and the log file. The caller must call Close when done.
type MonitorApp struct {
	cfg       *config.Config
	storePath string
	fsmgr     monitor.FilesystemManager
	store     *recordstore.CSVStore
	history   monitor.History
	vault     monitor.Vault
	encryptor monitor.Encryptor
	service   *monitor.MonitorService
	analyzers *analysis.Registry
	logger    monitor.Logger
	clock     monitor.Clock
	logFile   *os.File
}

// CycleOutcome is a finished cycle plus what the app did after it.
type CycleOutcome struct {
	*monitor.CycleResult

	HistoryID int64 // 0 when history is disabled or recording failed
	Archived  bool
	Reports   []*analysis.Report

	// PostErr collects failures of the post-cycle steps. They never affect the
	// saved table.
	PostErr error
}

// NewMonitorApp creates a fully wired MonitorApp from the given config. cfg.Root
// must already be resolved (see ResolveRoot).
func NewMonitorApp(ctx context.Context, cfg *config.Config) (*MonitorApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	storePath := StorePath(cfg)
	excluded, err := newExcludeMatcher(cfg, storePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	level, _ := config.ParseLevel(cfg.Logging.Level)
	sessionID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, sessionID, level, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &MonitorApp{
		cfg:       cfg,
		storePath: storePath,
		fsmgr:     fs.NewOSFilesystemManager(),
		store:     recordstore.NewCSVStore(storePath),
		logger:    &slogAdapter{l: logger},
		clock:     monitor.RealClock{},
		logFile:   logFile,
	}

	if err := a.openBackends(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.service = monitor.NewMonitorService(serviceOptions(cfg, excluded), a.fsmgr, a.store, a.logger, a.clock, monitor.UUIDGenerator{})
	a.analyzers = analysis.NewDefaultRegistry(a.fsmgr, cfg.Root)
	return a, nil
}

func (a *MonitorApp) openBackends(ctx context.Context) error {
	history, err := database.NewHistoryFromConfig(a.cfg.Database)
	if err != nil {
		return fmt.Errorf("creating history database: %w", err)
	}
	a.history = history
	if a.history != nil {
		if err := a.history.CheckMigrations(); err != nil {
			return fmt.Errorf("history schema out of date: %w", err)
		}
	}

	v, err := vault.NewVaultFromConfig(ctx, a.cfg.Vault)
	if err != nil {
		return fmt.Errorf("creating vault: %w", err)
	}
	a.vault = v

	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	a.encryptor = enc
	return nil
}

// newExcludeMatcher combines the configured exclusions, the store's own
// basename (matched literally), leftovers of an interrupted save and the
// patterns of the root's ignore file.
func newExcludeMatcher(cfg *config.Config, storePath string) (*fs.ExcludeMatcher, error) {
	patterns := append([]string{}, cfg.Organization.ExcludedFiles...)
	patterns = append(patterns, fs.LiteralPattern(filepath.Base(storePath)), recordstore.TempFilePattern)

	extra, err := fs.ParseIgnoreFile(filepath.Join(cfg.Root, fs.IgnoreFileName))
	if err != nil {
		return nil, err
	}
	return fs.NewExcludeMatcher(append(patterns, extra...))
}

func serviceOptions(cfg *config.Config, excluded monitor.NameFilter) monitor.Options {
	return monitor.Options{
		Root:         cfg.Root,
		Incremental:  cfg.Monitoring.Incremental,
		HashFiles:    cfg.Monitoring.HashFiles,
		AutoOrganize: cfg.Organization.AutoOrganize,
		DryRun:       cfg.Organization.DryRun,
		MaxHashSize:  cfg.Performance.MaxHashSizeMB * humanize.MiByte,
		ChunkSize:    cfg.Performance.ChunkSizeBytes,
		Rules:        cfg.CategoryRules(),
		Categories:   cfg.ExtensionTable(),
		Excluded:     excluded,
	}
}

// Config returns the configuration the app was built from.
func (a *MonitorApp) Config() *config.Config { return a.cfg }

// StorePath returns the record store file.
func (a *MonitorApp) StorePath() string { return a.storePath }

// RunCycle runs one monitoring cycle followed by the post-cycle steps. analyze
// enables the analyzers for this cycle. The returned error is the cycle's own
// failure; post-cycle failures are reported in CycleOutcome.PostErr.
func (a *MonitorApp) RunCycle(ctx context.Context, analyze bool) (*CycleOutcome, error) {
	res, err := a.service.RunCycle(ctx)
	return a.afterCycle(context.WithoutCancel(ctx), res, analyze), err
}

// Run monitors continuously until ctx is cancelled. onCycle sees every outcome.
func (a *MonitorApp) Run(ctx context.Context, interval time.Duration, analyze bool, onCycle func(*CycleOutcome)) error {
	a.logger.Info("continuous monitoring started", "root", a.cfg.Root, "interval", interval.String())
	return a.service.Run(ctx, interval, func(res *monitor.CycleResult) {
		out := a.afterCycle(context.WithoutCancel(ctx), res, analyze)
		if onCycle != nil {
			onCycle(out)
		}
	})
}

// Interval returns the configured pause between continuous cycles.
func (a *MonitorApp) Interval() time.Duration {
	return time.Duration(a.cfg.Monitoring.IntervalSeconds) * time.Second
}

func (a *MonitorApp) afterCycle(ctx context.Context, res *monitor.CycleResult, analyze bool) *CycleOutcome {
	out := &CycleOutcome{CycleResult: res}
	var errs []error

	if a.history != nil {
		id, err := a.history.RecordCycle(monitor.NewCycleRecord(res))
		if err != nil {
			errs = append(errs, fmt.Errorf("recording cycle history: %w", err))
		} else {
			out.HistoryID = id
		}
	}

	if res.Saved && a.vault != nil {
		version := out.HistoryID
		if version == 0 {
			version = a.clock.Now().Unix()
		}
		if err := a.archive(ctx, version); err != nil {
			errs = append(errs, err)
		} else {
			out.Archived = true
		}
	}

	if analyze && res.Snapshot != nil {
		reports, err := a.analyzers.Run(ctx, res.Snapshot, res.Previous)
		out.Reports = reports
		if err != nil {
			errs = append(errs, fmt.Errorf("running analyzers: %w", err))
		}
	}

	out.PostErr = errors.Join(errs...)
	if out.PostErr != nil {
		a.logger.Error("post-cycle step failed", "cycle", res.CycleID, "error", out.PostErr)
	}
	return out
}

// Analyze runs the snapshot analyzers over the saved store without a cycle.
func (a *MonitorApp) Analyze(ctx context.Context) ([]*analysis.Report, error) {
	snap, warnings, err := a.store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading record store: %w", err)
	}
	for _, w := range warnings {
		a.logger.Warn("skipped store row", "path", w.Path, "error", w.Err)
	}
	return analysis.NewStoreRegistry(a.fsmgr, a.cfg.Root).Run(ctx, snap, nil)
}

// Clean collapses duplicate content rows in the saved store.
func (a *MonitorApp) Clean(ctx context.Context) (monitor.ChangeSummary, error) {
	return a.service.Clean(ctx)
}

// History returns the most recent cycles, newest first.
func (a *MonitorApp) History(limit int) ([]*monitor.CycleRecord, error) {
	if a.history == nil {
		return nil, ErrHistoryDisabled
	}
	return a.history.ListCycles(limit)
}

// CycleMoves returns the moves one recorded cycle performed.
func (a *MonitorApp) CycleMoves(cycleID string) ([]monitor.Move, error) {
	if a.history == nil {
		return nil, ErrHistoryDisabled
	}
	return a.history.ListMoves(cycleID)
}

// Close closes the history database and the log file.
func (a *MonitorApp) Close() error {
	var firstErr error

	if a.history != nil {
		if err := a.history.Close(); err != nil {
			firstErr = fmt.Errorf("closing history database: %w", err)
		}
		a.history = nil
	}

	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}

	return firstErr
}
