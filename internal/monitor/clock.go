package monitor

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so cycle timing is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the wall-clock time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator names cycles.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs as cycle IDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
