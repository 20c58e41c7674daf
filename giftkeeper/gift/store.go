package gift

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// Backend is the persistence contract for the gift pool. Load runs once at
// startup; Save runs after every mutation. A Save failure is reported to the
// log and the in-memory mutation stands — a known durability gap, never a
// reason to roll back or crash.
type Backend interface {
	Load(ctx context.Context) ([]*Entry, error)
	Save(ctx context.Context, entries []*Entry) error
}

// Store owns the live gift entries. All mutation and iteration happens under
// one mutex, so concurrent redemption attempts never see torn state. The
// carrier cache is rebuilt synchronously after each mutation and swapped in
// whole, so readers always get a complete snapshot (possibly one mutation
// stale, never partial).
type Store struct {
	mu      sync.Mutex
	entries []*Entry
	nextID  int64

	// flushMu serializes persistence and cache rebuilds in mutation order.
	// It is taken while mu is still held, so two mutations can never flush
	// their snapshots in the wrong order.
	flushMu sync.Mutex

	carrierMu sync.RWMutex
	carriers  []*Carrier

	backend   Backend
	onRemoved func(entryID int64)
}

// NewStore loads the pool from the backend and seeds the ID counter past the
// highest persisted ID, so new entries can never collide with loaded ones.
func NewStore(ctx context.Context, backend Backend) (*Store, error) {
	entries, err := backend.Load(ctx)
	if err != nil {
		return nil, err
	}

	s := &Store{
		entries: entries,
		nextID:  1,
		backend: backend,
	}
	for _, e := range entries {
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
	}
	s.carriers = buildCarriers(entries)
	return s, nil
}

// OnRemoved registers a hook invoked after an entry leaves the store. The
// service uses it to release the entry's reservation so no record outlives
// its entry.
func (s *Store) OnRemoved(fn func(entryID int64)) {
	s.onRemoved = fn
}

// Add assigns the entry a fresh unique ID, appends it, persists, and
// refreshes the carrier cache. Returns the assigned ID.
func (s *Store) Add(ctx context.Context, entry *Entry) int64 {
	s.mu.Lock()
	entry.ID = s.nextID
	s.nextID++
	if entry.GameID == 0 {
		// A custom game joining no existing carrier gets a private carrier
		// ID derived from the entry ID, negated so it can never collide
		// with a catalog app ID.
		entry.GameID = -entry.ID
	}
	s.entries = append(s.entries, entry)
	snapshot := s.snapshotLocked()
	s.flushMu.Lock()
	s.mu.Unlock()

	s.flush(ctx, snapshot)
	return entry.ID
}

// Remove deletes the entry with the given ID. Reports whether it was
// present. The removal hook fires after the store and cache are consistent.
func (s *Store) Remove(ctx context.Context, entryID int64) bool {
	s.mu.Lock()
	found := false
	for i, e := range s.entries {
		if e.ID == entryID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return false
	}
	snapshot := s.snapshotLocked()
	s.flushMu.Lock()
	s.mu.Unlock()

	s.flush(ctx, snapshot)
	if s.onRemoved != nil {
		s.onRemoved(entryID)
	}
	return true
}

// FindByID returns the live entry with the given ID, or nil.
func (s *Store) FindByID(entryID int64) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == entryID {
			return e
		}
	}
	return nil
}

// AllOf returns the entries contributed by one owner.
func (s *Store) AllOf(ownerID snowflake.ID) []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owned []*Entry
	for _, e := range s.entries {
		if e.OwnerID == ownerID {
			owned = append(owned, e)
		}
	}
	return owned
}

// All returns a snapshot of every live entry.
func (s *Store) All() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Carriers returns the cached carriers filtered for one guild.
func (s *Store) Carriers(spaceID snowflake.ID) []*Carrier {
	s.carrierMu.RLock()
	carriers := s.carriers
	s.carrierMu.RUnlock()
	return filterForSpace(carriers, spaceID)
}

// FindCustomCarrier looks up a cached custom-kind carrier by game name,
// case-insensitively. Used so repeated custom keys for the same game land in
// one carrier.
func (s *Store) FindCustomCarrier(gameName string) *Carrier {
	s.carrierMu.RLock()
	defer s.carrierMu.RUnlock()
	for _, c := range s.carriers {
		if c.Kind == KindCustom && strings.EqualFold(c.GameName, gameName) {
			return c
		}
	}
	return nil
}

func (s *Store) snapshotLocked() []*Entry {
	snapshot := make([]*Entry, len(s.entries))
	copy(snapshot, s.entries)
	return snapshot
}

// flush writes the snapshot to the backend and swaps in a fresh carrier
// cache. Expects flushMu held; releases it.
func (s *Store) flush(ctx context.Context, snapshot []*Entry) {
	defer s.flushMu.Unlock()

	if err := s.backend.Save(ctx, snapshot); err != nil {
		slog.Error("Failed to persist gift pool",
			slog.String("type", "gift"),
			slog.Int("entries", len(snapshot)),
			slog.Any("error", err))
	}

	carriers := buildCarriers(snapshot)
	s.carrierMu.Lock()
	s.carriers = carriers
	s.carrierMu.Unlock()
}
