package app

import (
	"errors"

	"github.com/guijianchou/IDM-Download-Monitor/internal/config"
	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitConfig   = 2
	ExitWarnings = 3
)

// ExitCode maps a finished cycle to the process exit code. A cycle that
// completed but whose history, archive or analysis step failed counts as
// completed with warnings.
func ExitCode(out *CycleOutcome) int {
	if out == nil || out.CycleResult == nil {
		return ExitFailure
	}
	switch out.Outcome {
	case monitor.OutcomeCompleted:
		if out.PostErr != nil {
			return ExitWarnings
		}
		return ExitOK
	case monitor.OutcomeCompletedWithWarnings:
		return ExitWarnings
	case monitor.OutcomeFatalConfig:
		return ExitConfig
	default:
		return ExitFailure
	}
}

// ExitCodeForError maps an error returned outside a cycle (loading config,
// wiring the app) to an exit code.
func ExitCodeForError(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, config.ErrInvalidConfig), monitor.IsConfigError(err):
		return ExitConfig
	default:
		return ExitFailure
	}
}
