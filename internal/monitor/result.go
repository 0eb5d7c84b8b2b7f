package monitor

import "time"

// Outcome classifies a finished cycle for the caller, which picks an exit code.
type Outcome int

const (
	// OutcomeCompleted means the cycle finished without any warning.
	OutcomeCompleted Outcome = iota
	// OutcomeCompletedWithWarnings means some files were skipped this cycle.
	OutcomeCompletedWithWarnings
	// OutcomeFailed means the cycle could not finish; the stored table is unchanged.
	OutcomeFailed
	// OutcomeFatalConfig means the configuration is unsafe or invalid; nothing was
	// touched.
	OutcomeFatalConfig
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCompletedWithWarnings:
		return "warnings"
	case OutcomeFailed:
		return "failed"
	case OutcomeFatalConfig:
		return "fatal-config"
	default:
		return "unknown"
	}
}

// CycleResult is everything one cycle observed and did.
type CycleResult struct {
	CycleID    string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	Outcome    Outcome
	Err        error

	Scanned  int
	Hashed   int
	Reused   int
	Skipped  int // files carrying the hash-skip sentinel this cycle
	Retained int // unreadable files that kept their previous record

	Planned  []Move // organizer plan; equals Moves unless dry run or failures
	Moves    []Move // moves actually performed
	Summary  ChangeSummary
	Warnings []Warning

	Previous *Snapshot
	Snapshot *Snapshot
	Saved    bool
}

// Updated is the number of records that changed in this cycle.
func (r *CycleResult) Updated() int {
	return r.Summary.Total()
}
