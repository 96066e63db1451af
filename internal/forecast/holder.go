package forecast

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Snapshot pairs a store with the identity it was ingested under. The
// Generation tag lets long-running batch queries detect that the active
// storm or advisory changed underneath them and discard their results
// instead of overwriting fresher ones.
type Snapshot struct {
	Store      *Store
	Source     string // which ingestion source produced it (live, mirror, demo)
	Generation string
	IngestedAt time.Time
}

// Holder publishes the active snapshot. Writes happen only through Swap,
// implemented as an atomic pointer replacement, so readers never need a
// lock and never see a half-built store.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// Swap installs a fully built store as the active snapshot and returns it.
func (h *Holder) Swap(s *Store, source string, now time.Time) *Snapshot {
	snap := &Snapshot{
		Store:      s,
		Source:     source,
		Generation: uuid.NewString(),
		IngestedAt: now,
	}
	h.current.Store(snap)
	return snap
}

// Current returns the active snapshot, or nil before the first ingestion.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Stale reports whether snap has been superseded by a newer ingestion.
func (h *Holder) Stale(snap *Snapshot) bool {
	cur := h.current.Load()
	if cur == nil || snap == nil {
		return true
	}
	return cur.Generation != snap.Generation
}
