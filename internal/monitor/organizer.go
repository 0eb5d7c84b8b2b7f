package monitor

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultMaxCollisionAttempts bounds the numeric suffixes tried for one file.
const DefaultMaxCollisionAttempts = 1000

// Move is one relocation from the root into a category folder.
type Move struct {
	From     string // relative path before the move
	To       string // relative path after the move
	Category string
	Renamed  bool // a numeric suffix was needed to avoid a collision
}

// OrganizePlan is the ordered list of moves the Organizer intends to perform.
type OrganizePlan struct {
	Moves    []Move
	Warnings []Warning
}

// Organizer relocates root-level files into category folders without ever
// overwriting an existing file.
type Organizer struct {
	fsmgr       FilesystemManager
	root        string
	policy      *CategoryPolicy
	maxAttempts int
}

// NewOrganizer creates an Organizer. maxAttempts <= 0 selects the default.
func NewOrganizer(fsmgr FilesystemManager, root string, policy *CategoryPolicy, maxAttempts int) *Organizer {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxCollisionAttempts
	}
	return &Organizer{
		fsmgr:       fsmgr,
		root:        filepath.Clean(root),
		policy:      policy,
		maxAttempts: maxAttempts,
	}
}

// Plan decides where each root-level file goes. It performs no mutation, so the
// same inputs always give the same plan; names chosen earlier in the plan are
// reserved for later files. A containment violation fails the whole plan.
func (o *Organizer) Plan(relPaths []string) (*OrganizePlan, error) {
	plan := &OrganizePlan{}
	reserved := make(map[string]bool)

	for _, rel := range relPaths {
		category, name := SplitRelativePath(rel)
		if category != RootCategory {
			continue
		}
		target, ok := o.policy.Categorize(name)
		if !ok {
			continue
		}
		if _, err := containedDestination(o.root, target, name); err != nil {
			return nil, err
		}

		chosen, renamed, err := o.freeName(target, name, reserved)
		if err != nil {
			plan.Warnings = append(plan.Warnings, Warning{Path: rel, Err: err})
			continue
		}
		to := JoinRelativePath(target, chosen)
		reserved[to] = true
		plan.Moves = append(plan.Moves, Move{From: rel, To: to, Category: target, Renamed: renamed})
	}

	return plan, nil
}

// Execute performs the planned moves and returns those that succeeded, in plan
// order. A destination that appeared after planning is never overwritten; the
// file is left at the root and reported as a warning.
func (o *Organizer) Execute(plan *OrganizePlan) ([]Move, []Warning, error) {
	var (
		done     []Move
		warnings []Warning
	)

	for _, mv := range plan.Moves {
		_, name := SplitRelativePath(mv.To)
		dest, err := containedDestination(o.root, mv.Category, name)
		if err != nil {
			return done, warnings, err
		}
		src := filepath.Join(o.root, filepath.FromSlash(mv.From))

		if err := o.fsmgr.MkdirAll(filepath.Dir(dest)); err != nil {
			warnings = append(warnings, Warning{Path: mv.From, Err: fmt.Errorf("creating category folder: %w", err)})
			continue
		}
		if _, err := o.fsmgr.Lstat(dest); err == nil {
			warnings = append(warnings, Warning{Path: mv.From, Err: fmt.Errorf("destination %s appeared before the move", mv.To)})
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			warnings = append(warnings, Warning{Path: mv.From, Err: fmt.Errorf("checking destination: %w", err)})
			continue
		}
		if err := o.fsmgr.Rename(src, dest); err != nil {
			warnings = append(warnings, Warning{Path: mv.From, Err: fmt.Errorf("moving to %s: %w", mv.To, err)})
			continue
		}
		done = append(done, mv)
	}

	return done, warnings, nil
}

// freeName returns name, or name with _1, _2, ... inserted before the extension,
// whichever is first neither on disk nor reserved.
func (o *Organizer) freeName(category, name string, reserved map[string]bool) (string, bool, error) {
	stem, ext := splitName(name)
	for i := 0; i <= o.maxAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = stem + "_" + strconv.Itoa(i) + ext
		}
		if reserved[JoinRelativePath(category, candidate)] {
			continue
		}
		_, err := o.fsmgr.Lstat(filepath.Join(o.root, category, candidate))
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, i > 0, nil
		}
	}
	return "", false, fmt.Errorf("%w for %s in %s after %d attempts", ErrCollisionExhausted, name, category, o.maxAttempts)
}

// splitName separates the stem from the final extension. Dotfiles such as
// ".profile" have no extension.
func splitName(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	stem = strings.TrimSuffix(name, ext)
	if stem == "" {
		return name, ""
	}
	return stem, ext
}
