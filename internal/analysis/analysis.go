// Package analysis runs read-only reports over the record store after a cycle.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

// ErrDuplicateAnalyzer is returned when an analyzer name is registered twice.
var ErrDuplicateAnalyzer = errors.New("analyzer already registered")

// Report is the output of one analyzer. Lines are ready for display; Stats holds
// the same numbers keyed by label.
type Report struct {
	Name  string
	Title string
	Lines []string
	Stats map[string]int64
}

// Analyzer inspects the saved snapshot. previous is the snapshot before the cycle
// and may be nil. Analyzers must not modify either snapshot or the filesystem.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, current, previous *monitor.Snapshot) (*Report, error)
}

// AnalyzerError ties a failure to the analyzer that produced it.
type AnalyzerError struct {
	Name string
	Err  error
}

func (e *AnalyzerError) Error() string { return fmt.Sprintf("analyzer %s: %v", e.Name, e.Err) }
func (e *AnalyzerError) Unwrap() error { return e.Err }

// Registry holds analyzers in registration order.
type Registry struct {
	analyzers []Analyzer
	byName    map[string]Analyzer
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Analyzer)}
}

// NewDefaultRegistry registers the built-in analyzers. File sizes are read from
// disk under root through fsmgr.
func NewDefaultRegistry(fsmgr monitor.FilesystemManager, root string) *Registry {
	r := NewRegistry()
	for _, a := range []Analyzer{
		NewFileTypeAnalyzer(),
		NewFileSizeAnalyzer(fsmgr, root),
		NewChangeAnalyzer(),
		NewCategoryAnalyzer(),
	} {
		// Built-in names are distinct.
		_ = r.Register(a)
	}
	return r
}

// NewStoreRegistry registers the built-ins that only need the current snapshot,
// for reports over a saved store outside of a cycle.
func NewStoreRegistry(fsmgr monitor.FilesystemManager, root string) *Registry {
	r := NewRegistry()
	for _, a := range []Analyzer{
		NewFileTypeAnalyzer(),
		NewFileSizeAnalyzer(fsmgr, root),
		NewCategoryAnalyzer(),
	} {
		_ = r.Register(a)
	}
	return r
}

// Register adds a. Names must be unique.
func (r *Registry) Register(a Analyzer) error {
	name := a.Name()
	if name == "" {
		return errors.New("analyzer name is empty")
	}
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAnalyzer, name)
	}
	r.byName[name] = a
	r.analyzers = append(r.analyzers, a)
	return nil
}

// Get returns the analyzer registered under name.
func (r *Registry) Get(name string) (Analyzer, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// Names lists the registered analyzers in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.analyzers))
	for i, a := range r.analyzers {
		names[i] = a.Name()
	}
	return names
}

// Run executes every analyzer in order. A failing analyzer does not stop the
// others; its error is returned joined with the rest as *AnalyzerError values.
func (r *Registry) Run(ctx context.Context, current, previous *monitor.Snapshot) ([]*Report, error) {
	var (
		reports []*Report
		errs    []error
	)
	for _, a := range r.analyzers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rep, err := a.Analyze(ctx, current, previous)
		if err != nil {
			errs = append(errs, &AnalyzerError{Name: a.Name(), Err: err})
			continue
		}
		if rep != nil {
			reports = append(reports, rep)
		}
	}
	return reports, errors.Join(errs...)
}
