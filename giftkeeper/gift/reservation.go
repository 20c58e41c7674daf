package gift

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultReservationTTL is how long a granted reservation blocks other
	// redemption attempts on the same entry.
	DefaultReservationTTL = 5 * time.Minute
	// DefaultReaperHorizon is the age past which the reaper drops abandoned
	// reservation records.
	DefaultReaperHorizon = 10 * time.Minute
	// DefaultReaperPeriod is how often the reaper sweeps.
	DefaultReaperPeriod = time.Minute
)

// ReservationTable grants at most one live reservation per entry, keyed by
// the entry's ID. A reservation is an advisory exclusive right to finish
// delivering that entry; it is not persisted and an empty table after a
// restart is correct. Correctness comes from the TTL check inside
// TryReserve; the reaper only bounds memory from abandoned records.
type ReservationTable struct {
	mu       sync.Mutex
	reserved map[int64]time.Time
	ttl      time.Duration
	horizon  time.Duration

	now func() time.Time
}

func NewReservationTable(ttl, horizon time.Duration) *ReservationTable {
	return &ReservationTable{
		reserved: make(map[int64]time.Time),
		ttl:      ttl,
		horizon:  horizon,
		now:      time.Now,
	}
}

// TryReserve grants a reservation on the entry unless a live one exists.
// An expired record is overwritten. Grant/deny outcomes are totally ordered
// by the table's mutex.
func (t *ReservationTable) TryReserve(entryID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if at, ok := t.reserved[entryID]; ok && now.Sub(at) < t.ttl {
		return false
	}
	t.reserved[entryID] = now
	return true
}

// Release drops the entry's reservation so it is immediately reclaimable.
// Called when a reserved redemption fails, and when the entry itself is
// removed from the store.
func (t *ReservationTable) Release(entryID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.reserved, entryID)
}

// Held reports whether a live reservation exists for the entry.
func (t *ReservationTable) Held(entryID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.reserved[entryID]
	return ok && t.now().Sub(at) < t.ttl
}

// sweep removes records older than the horizon and returns how many it
// dropped.
func (t *ReservationTable) sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	dropped := 0
	for id, at := range t.reserved {
		if now.Sub(at) > t.horizon {
			delete(t.reserved, id)
			dropped++
		}
	}
	return dropped
}

// StartReaper runs the periodic sweep until the context is cancelled.
func (t *ReservationTable) StartReaper(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if dropped := t.sweep(); dropped > 0 {
					slog.Debug("Reaped stale gift reservations",
						slog.String("type", "gift"),
						slog.Int("dropped", dropped))
				}
			}
		}
	}()
}
