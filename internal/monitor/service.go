package monitor

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// Options configures a MonitorService. The service never modifies them.
type Options struct {
	Root                 string
	Incremental          bool
	HashFiles            bool
	AutoOrganize         bool
	DryRun               bool
	MaxHashSize          int64 // bytes; 0 disables the ceiling
	ChunkSize            int
	Rules                []CategoryRule
	Categories           []ExtensionMapping
	Excluded             NameFilter
	MaxCollisionAttempts int
}

// MonitorService runs monitoring cycles: scan, fingerprint, organize, reconcile
// and persist.
type MonitorService struct {
	opts   Options
	fsmgr  FilesystemManager
	store  RecordStore
	logger Logger
	clock  Clock
	idgen  IDGenerator
}

// NewMonitorService creates a MonitorService with the provided dependencies.
func NewMonitorService(opts Options, fsmgr FilesystemManager, store RecordStore, logger Logger, clock Clock, idgen IDGenerator) *MonitorService {
	return &MonitorService{
		opts:   opts,
		fsmgr:  fsmgr,
		store:  store,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
	}
}

// Root returns the monitored root.
func (s *MonitorService) Root() string { return s.opts.Root }

// RunCycle performs one complete cycle. The returned result is never nil; the error
// is non-nil exactly when the outcome is OutcomeFailed or OutcomeFatalConfig, and
// in both cases the stored table was not written.
func (s *MonitorService) RunCycle(ctx context.Context) (*CycleResult, error) {
	res := &CycleResult{
		CycleID:   s.idgen.New(),
		StartedAt: s.clock.Now(),
		DryRun:    s.opts.DryRun,
	}
	if err := ctx.Err(); err != nil {
		return s.finish(res, OutcomeFailed, err)
	}

	s.logger.Info("cycle started", "cycle", res.CycleID, "root", s.opts.Root, "dry_run", s.opts.DryRun)

	if s.opts.Root == "" || !filepath.IsAbs(s.opts.Root) {
		return s.finish(res, OutcomeFatalConfig, fmt.Errorf("%w: %q is not an absolute path", ErrInvalidRoot, s.opts.Root))
	}
	policy, err := NewCategoryPolicy(s.opts.Rules, s.opts.Categories)
	if err != nil {
		return s.finish(res, OutcomeFatalConfig, fmt.Errorf("loading category policy: %w", err))
	}

	prev, warnings, err := s.store.Load()
	if err != nil {
		return s.finish(res, OutcomeFailed, fmt.Errorf("loading record store: %w", err))
	}
	res.Previous = prev
	s.warn(res, warnings)

	scanner := NewScanner(s.fsmgr, s.opts.Root, policy.Categories(), s.opts.Excluded)
	scan, err := scanner.Scan()
	if err != nil {
		return s.finish(res, OutcomeFailed, fmt.Errorf("scanning: %w", err))
	}
	res.Scanned = len(scan.Files)
	s.warn(res, scan.Warnings)

	fingerprints := s.fingerprint(prev, scan.Files, res)

	// Moves performed, or planned on a dry run, already applied to fingerprints.
	var applied []Move
	if s.opts.AutoOrganize {
		organizer := NewOrganizer(s.fsmgr, s.opts.Root, policy, s.opts.MaxCollisionAttempts)
		relPaths := make([]string, len(fingerprints))
		for i, f := range fingerprints {
			relPaths[i] = f.RelativePath
		}

		plan, err := organizer.Plan(relPaths)
		if err != nil {
			return s.finish(res, outcomeFor(err), fmt.Errorf("planning moves: %w", err))
		}
		res.Planned = plan.Moves
		s.warn(res, plan.Warnings)

		moves := plan.Moves
		if !s.opts.DryRun {
			done, warnings, err := organizer.Execute(plan)
			res.Moves = done
			s.warn(res, warnings)
			if err != nil {
				return s.finish(res, outcomeFor(err), fmt.Errorf("moving files: %w", err))
			}
			moves = done
		}
		for _, mv := range moves {
			s.logger.Info("file organized", "from", mv.From, "to", mv.To, "renamed", mv.Renamed, "dry_run", s.opts.DryRun)
		}
		fingerprints = ApplyMoves(fingerprints, moves)
		applied = moves
	}
	fingerprints = retainUnread(prev, scan, fingerprints, res)

	next, summary := Merge(prev, fingerprints, applied)
	res.Snapshot = next
	res.Summary = summary
	for _, c := range summary.Collapsed {
		s.logger.Debug("identical content collapsed", "path", c.Path, "into", c.Into)
	}

	if !s.opts.DryRun {
		if err := s.store.Save(next); err != nil {
			return s.finish(res, OutcomeFailed, fmt.Errorf("saving record store: %w", err))
		}
		res.Saved = true
	}

	outcome := OutcomeCompleted
	if len(res.Warnings) > 0 {
		outcome = OutcomeCompletedWithWarnings
	}
	return s.finish(res, outcome, nil)
}

// Run repeats RunCycle until ctx is cancelled, sleeping interval between cycles.
// Cancellation is only observed between cycles; a started cycle always runs to
// completion. onCycle, if set, sees every result. A fatal configuration error
// stops the loop; other failed cycles are retried on the next tick.
func (s *MonitorService) Run(ctx context.Context, interval time.Duration, onCycle func(*CycleResult)) error {
	if interval <= 0 {
		return fmt.Errorf("monitoring interval must be positive, got %s", interval)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		res, err := s.RunCycle(context.WithoutCancel(ctx))
		if onCycle != nil {
			onCycle(res)
		}
		if res.Outcome == OutcomeFatalConfig {
			return err
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("continuous monitoring stopped")
			return nil
		case <-timer.C:
		}
	}
}

// Clean rewrites the stored table with duplicate content rows collapsed. Older
// versions of the store could hold the same hash more than once.
func (s *MonitorService) Clean(ctx context.Context) (ChangeSummary, error) {
	if err := ctx.Err(); err != nil {
		return ChangeSummary{}, err
	}
	prev, warnings, err := s.store.Load()
	if err != nil {
		return ChangeSummary{}, fmt.Errorf("loading record store: %w", err)
	}
	for _, w := range warnings {
		s.logger.Warn("skipped store row", "path", w.Path, "error", w.Err)
	}

	next, summary := Merge(prev, prev.Records(), nil)
	if len(summary.Collapsed) == 0 && len(warnings) == 0 {
		return summary, nil
	}
	if s.opts.DryRun {
		return summary, nil
	}
	if err := s.store.Save(next); err != nil {
		return summary, fmt.Errorf("saving record store: %w", err)
	}
	s.logger.Info("record store cleaned", "collapsed", len(summary.Collapsed), "records", next.Len())
	return summary, nil
}

// fingerprint hashes the scanned files, reusing stored hashes for unchanged files
// in incremental mode. A file that cannot be read keeps its previous record.
func (s *MonitorService) fingerprint(prev *Snapshot, files []ScannedFile, res *CycleResult) []FileRecord {
	hasher := NewHasher(s.fsmgr, s.opts.MaxHashSize, s.opts.ChunkSize)
	out := make([]FileRecord, 0, len(files))

	for _, f := range files {
		if s.opts.Incremental {
			if old, ok := prev.ByPath(f.RelativePath); ok && old.Mtime().Equal(f.Modified) {
				res.Reused++
				if old.Skipped() {
					res.Skipped++
				}
				out = append(out, NewFileRecord(f.RelativePath, old.ContentHash, f.Modified))
				continue
			}
		}

		if !s.opts.HashFiles {
			res.Skipped++
			out = append(out, NewFileRecord(f.RelativePath, HashSkipped, f.Modified))
			continue
		}

		hash, err := hasher.Hash(f.AbsPath, f.Size)
		if err != nil {
			s.warn(res, []Warning{{Path: f.RelativePath, Err: err}})
			if old, ok := prev.ByPath(f.RelativePath); ok {
				res.Retained++
				out = append(out, old)
			}
			continue
		}
		if hash == HashSkipped {
			res.Skipped++
		} else {
			res.Hashed++
		}
		out = append(out, NewFileRecord(f.RelativePath, hash, f.Modified))
	}

	return out
}

// retainUnread keeps the previous records of entries the scan saw but could not
// inspect, unless their path or content is already accounted for this cycle.
// They are added after organizing so an uninspected file is never moved.
func retainUnread(prev *Snapshot, scan *ScanResult, fingerprints []FileRecord, res *CycleResult) []FileRecord {
	if len(scan.UnreadFiles) == 0 && len(scan.UnreadFolders) == 0 {
		return fingerprints
	}

	seenPath := make(map[string]bool, len(fingerprints))
	seenID := make(map[string]bool, len(fingerprints))
	for _, f := range fingerprints {
		seenPath[f.RelativePath] = true
		seenID[f.Identity()] = true
	}

	out := fingerprints
	for _, old := range prev.Records() {
		if !scan.Unread(old) || seenPath[old.RelativePath] || seenID[old.Identity()] {
			continue
		}
		res.Retained++
		out = append(out, old)
	}
	return out
}

// ApplyMoves returns a copy of records with every moved path rewritten.
func ApplyMoves(records []FileRecord, moves []Move) []FileRecord {
	if len(moves) == 0 {
		return records
	}
	to := make(map[string]string, len(moves))
	for _, mv := range moves {
		to[mv.From] = mv.To
	}
	out := make([]FileRecord, len(records))
	for i, r := range records {
		if dest, ok := to[r.RelativePath]; ok {
			r = r.relocate(dest)
		}
		out[i] = r
	}
	return out
}

func (s *MonitorService) warn(res *CycleResult, warnings []Warning) {
	for _, w := range warnings {
		s.logger.Warn("file skipped this cycle", "path", w.Path, "error", w.Err)
	}
	res.Warnings = append(res.Warnings, warnings...)
}

func (s *MonitorService) finish(res *CycleResult, outcome Outcome, err error) (*CycleResult, error) {
	res.Outcome = outcome
	res.Err = err
	res.FinishedAt = s.clock.Now()

	if err != nil {
		s.logger.Error("cycle aborted", "cycle", res.CycleID, "outcome", outcome.String(), "error", err)
		return res, err
	}
	s.logger.Info("cycle finished",
		"cycle", res.CycleID,
		"outcome", outcome.String(),
		"scanned", res.Scanned,
		"hashed", res.Hashed,
		"reused", res.Reused,
		"new", len(res.Summary.New),
		"modified", len(res.Summary.Modified),
		"deleted", len(res.Summary.Deleted),
		"moved", len(res.Summary.Moved),
		"warnings", len(res.Warnings),
	)
	return res, nil
}

func outcomeFor(err error) Outcome {
	if IsConfigError(err) {
		return OutcomeFatalConfig
	}
	return OutcomeFailed
}
