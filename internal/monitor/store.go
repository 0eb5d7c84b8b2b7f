package monitor

// RecordStore persists the fingerprint table between cycles.
type RecordStore interface {
	// Load reads the whole table. A missing table is an empty snapshot.
	// Unparsable rows are skipped and reported as warnings; a file that is not a
	// table at all fails with ErrInvalidTable.
	Load() (*Snapshot, []Warning, error)

	// Save replaces the table atomically.
	Save(snapshot *Snapshot) error
}
