package monitor

// Collapse records a scanned file whose content was already claimed by an earlier
// file in the same cycle. The single record now points at Into.
type Collapse struct {
	Path string
	Into string
}

// ChangeSummary describes how one snapshot differs from the previous one.
// The lists are exclusive: a file whose content changed in place is Modified,
// not New, and a relocated file is Moved, not Deleted.
type ChangeSummary struct {
	New       []FileRecord
	Modified  []FileRecord
	Deleted   []FileRecord
	Moved     []Move
	Collapsed []Collapse
}

// Total counts the changed records; collapses are not changes to the store.
func (c ChangeSummary) Total() int {
	return len(c.New) + len(c.Modified) + len(c.Deleted) + len(c.Moved)
}

// Empty reports whether nothing changed.
func (c ChangeSummary) Empty() bool { return c.Total() == 0 }

// Merge builds the post-cycle snapshot from the previous snapshot and the current
// fingerprints, given in scan order. It does not modify its inputs.
//
// Each fingerprint is looked up by identity in the working set built so far. A
// miss inserts a record. A hit at the same path refreshes the record; a hit at a
// different path relocates the existing record in place, so the first scanned file
// owns the slot and no duplicate content is ever stored. Previous records whose
// path was not seen and whose identity was not claimed are dropped as deleted.
//
// moves are the relocations the organizer performed this cycle. They pair up
// hash-skipped records, whose identity is their path, so a reported move of a
// skipped file is summarized as Moved rather than Deleted plus New.
func Merge(prev *Snapshot, current []FileRecord, moves []Move) (*Snapshot, ChangeSummary) {
	var summary ChangeSummary
	working := make([]FileRecord, 0, len(current))
	slots := make(map[string]int, len(current))
	touched := make(map[string]bool, len(current))

	for _, rec := range current {
		touched[rec.RelativePath] = true
		id := rec.Identity()

		i, ok := slots[id]
		if !ok {
			slots[id] = len(working)
			working = append(working, rec)
			continue
		}

		existing := working[i]
		if existing.RelativePath != rec.RelativePath {
			summary.Collapsed = append(summary.Collapsed, Collapse{Path: existing.RelativePath, Into: rec.RelativePath})
		}
		working[i] = rec
	}

	next := NewSnapshot(working)
	summarize(&summary, prev, next, touched, moves)
	return next, summary
}

// Diff compares two stored snapshots.
func Diff(prev, next *Snapshot) ChangeSummary {
	var summary ChangeSummary
	touched := make(map[string]bool, next.Len())
	for _, r := range next.Records() {
		touched[r.RelativePath] = true
	}
	summarize(&summary, prev, next, touched, nil)
	return summary
}

func summarize(summary *ChangeSummary, prev, next *Snapshot, touched map[string]bool, moves []Move) {
	// Skipped records relocated by a reported move, keyed both ways.
	skippedTo := make(map[string]bool)
	skippedFrom := make(map[string]bool)
	for _, mv := range moves {
		old, ok := prev.ByPath(mv.From)
		if !ok || !old.Skipped() || touched[mv.From] {
			continue
		}
		if r, ok := next.ByPath(mv.To); ok && r.Skipped() {
			skippedTo[mv.To] = true
			skippedFrom[mv.From] = true
		}
	}

	for _, r := range next.Records() {
		if old, ok := prev.ByPath(r.RelativePath); ok {
			if old.Identity() != r.Identity() {
				summary.Modified = append(summary.Modified, r)
			}
			continue
		}
		if skippedTo[r.RelativePath] {
			continue
		}
		if _, ok := prev.byIdentityKey(r.Identity()); !ok {
			summary.New = append(summary.New, r)
		}
	}

	for _, old := range prev.Records() {
		if touched[old.RelativePath] {
			continue
		}
		if skippedFrom[old.RelativePath] {
			continue
		}
		if r, ok := next.byIdentityKey(old.Identity()); ok {
			if r.RelativePath != old.RelativePath {
				summary.Moved = append(summary.Moved, Move{From: old.RelativePath, To: r.RelativePath, Category: r.Category})
			}
			continue
		}
		summary.Deleted = append(summary.Deleted, old)
	}

	for _, mv := range moves {
		if skippedFrom[mv.From] {
			r, _ := next.ByPath(mv.To)
			summary.Moved = append(summary.Moved, Move{From: mv.From, To: mv.To, Category: r.Category})
		}
	}
}
