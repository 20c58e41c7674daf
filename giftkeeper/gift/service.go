package gift

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/disgoorg/snowflake/v2"
)

// Notifier delivers messages to users outside the engine: the key itself,
// approval asks, and informational notices. Any of these may fail (closed
// DMs, unreachable user); delivery failure after a reservation was granted
// must surface as ErrDeliveryFailed so the caller knows the entry survived.
type Notifier interface {
	DeliverKey(ctx context.Context, recipientID snowflake.ID, entry *Entry) error
	NotifyUser(ctx context.Context, userID snowflake.ID, message string) error
	RequestApproval(ctx context.Context, ownerID snowflake.ID, requesterID snowflake.ID, entry *Entry) error
}

// App is a catalog game: its external ID and display name.
type App struct {
	ID   int64
	Name string
}

// Catalog resolves Steam games when Steam-kind entries are added. Claim and
// reservation logic never touches it.
type Catalog interface {
	AppByID(id int64) (App, bool)
	AppByName(name string) (App, bool)
}

// Service is the gift distribution engine: the store, the reservation
// table, and the redemption workflow over them.
type Service struct {
	store    *Store
	claims   *ReservationTable
	catalog  Catalog
	notifier Notifier
}

func NewService(store *Store, claims *ReservationTable, catalog Catalog, notifier Notifier) *Service {
	s := &Service{
		store:    store,
		claims:   claims,
		catalog:  catalog,
		notifier: notifier,
	}
	// Removing an entry must not leave its reservation behind for the
	// reaper to find.
	store.OnRemoved(claims.Release)
	return s
}

// Carriers lists the gifts visible in one guild, grouped by game.
func (s *Service) Carriers(spaceID snowflake.ID) []*Carrier {
	return s.store.Carriers(spaceID)
}

// EntriesOf lists the gifts contributed by one owner, regardless of guild.
func (s *Service) EntriesOf(ownerID snowflake.ID) []*Entry {
	return s.store.AllOf(ownerID)
}

// stateOf derives the workflow state of a live entry.
func (s *Service) stateOf(e *Entry) State {
	if s.claims.Held(e.ID) {
		return StateReserved
	}
	if e.NeedApproval {
		return StatePendingApproval
	}
	return StateAvailable
}

// AddSteamKey contributes a key for the Steam game with the given app ID.
// SpaceID 0 makes the gift visible in every guild.
func (s *Service) AddSteamKey(ctx context.Context, spaceID snowflake.ID, ownerID snowflake.ID, ownerName string, appID int64, key string, needApproval bool) (int64, error) {
	app, ok := s.catalog.AppByID(appID)
	if !ok {
		return 0, fmt.Errorf("steam game %d: %w", appID, ErrNotFound)
	}
	return s.store.Add(ctx, &Entry{
		GameID:       app.ID,
		Kind:         KindSteam,
		GameName:     app.Name,
		Key:          key,
		OwnerID:      ownerID,
		OwnerName:    ownerName,
		SpaceID:      spaceID,
		NeedApproval: needApproval,
	}), nil
}

// AddSteamKeyByName is AddSteamKey with catalog resolution by game name.
func (s *Service) AddSteamKeyByName(ctx context.Context, spaceID snowflake.ID, ownerID snowflake.ID, ownerName string, gameName string, key string, needApproval bool) (int64, error) {
	app, ok := s.catalog.AppByName(gameName)
	if !ok {
		return 0, fmt.Errorf("steam game %q: %w", gameName, ErrNotFound)
	}
	return s.AddSteamKey(ctx, spaceID, ownerID, ownerName, app.ID, key, needApproval)
}

// AddCustomKey contributes a key for a game outside the catalog. If a custom
// carrier with the same name already exists, the new entry joins it instead
// of forming a duplicate carrier under a different GameID.
func (s *Service) AddCustomKey(ctx context.Context, spaceID snowflake.ID, ownerID snowflake.ID, ownerName string, gameName string, key string, needApproval bool) (int64, error) {
	entry := &Entry{
		Kind:         KindCustom,
		GameName:     gameName,
		Key:          key,
		OwnerID:      ownerID,
		OwnerName:    ownerName,
		SpaceID:      spaceID,
		NeedApproval: needApproval,
	}

	if carrier := s.store.FindCustomCarrier(gameName); carrier != nil {
		entry.GameID = carrier.GameID
		entry.GameName = carrier.GameName
	}

	return s.store.Add(ctx, entry), nil
}

// RemoveKey withdraws one of the caller's own gifts from the pool.
func (s *Service) RemoveKey(ctx context.Context, entryID int64, ownerID snowflake.ID) error {
	entry := s.store.FindByID(entryID)
	if entry == nil {
		return ErrNotFound
	}
	if entry.OwnerID != ownerID {
		return ErrUnauthorized
	}
	s.store.Remove(ctx, entryID)
	return nil
}

// RedeemDirect runs the no-approval redemption path: reserve the entry,
// deliver the key, then remove the entry and tell the owner. The reservation
// is taken before delivery is awaited and no engine lock is held while the
// notifier blocks. On delivery failure the reservation is released so the
// entry is immediately reclaimable.
func (s *Service) RedeemDirect(ctx context.Context, entryID int64, ownerID snowflake.ID, recipientID snowflake.ID) error {
	entry := s.store.FindByID(entryID)
	if entry == nil {
		return ErrNotFound
	}
	if entry.OwnerID != ownerID {
		return ErrNotFound
	}
	if entry.NeedApproval {
		return ErrApprovalRequired
	}

	return s.deliver(ctx, entry, recipientID)
}

// RequestApproval forwards a recipient's ask to the gift's owner. No
// reservation is taken: any number of recipients may ask for the same entry,
// and the owner's accept is where contention is resolved.
func (s *Service) RequestApproval(ctx context.Context, entryID int64, ownerID snowflake.ID, requesterID snowflake.ID) error {
	entry := s.store.FindByID(entryID)
	if entry == nil || entry.OwnerID != ownerID {
		return ErrNotFound
	}
	if !entry.NeedApproval {
		return ErrUnauthorized
	}
	if err := s.notifier.RequestApproval(ctx, ownerID, requesterID, entry); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// RespondApproval is the owner's answer to an approval ask. Deny informs the
// requester and leaves the entry untouched. Accept is the real point of
// contention between simultaneously accepted requests, so it reserves and
// delivers exactly like the direct path. An accept by a non-owner, or for an
// entry that is already gone, is rejected without side effects.
func (s *Service) RespondApproval(ctx context.Context, entryID int64, accept bool, ownerID snowflake.ID, requesterID snowflake.ID) error {
	entry := s.store.FindByID(entryID)
	if entry == nil {
		return ErrNotFound
	}
	if entry.OwnerID != ownerID {
		return ErrUnauthorized
	}

	if !accept {
		if err := s.notifier.NotifyUser(ctx, requesterID, fmt.Sprintf("%s has denied your request for %s.", entry.OwnerName, entry.GameName)); err != nil {
			slog.Warn("Failed to notify requester of denial",
				slog.String("type", "gift"),
				slog.String("requester_id", requesterID.String()),
				slog.Any("error", err))
		}
		return nil
	}

	return s.deliver(ctx, entry, requesterID)
}

// deliver is the shared reserved-delivery step of both redemption paths.
func (s *Service) deliver(ctx context.Context, entry *Entry, recipientID snowflake.ID) error {
	if !canReserve(s.stateOf(entry)) {
		return ErrConflict
	}
	if !s.claims.TryReserve(entry.ID) {
		return ErrConflict
	}
	// The grant may have come from a winning delivery removing the entry and
	// releasing its claim between our lookup and our reserve. Only an entry
	// that is still live under our own reservation may be delivered.
	if s.store.FindByID(entry.ID) == nil {
		s.claims.Release(entry.ID)
		return ErrConflict
	}

	if err := s.notifier.DeliverKey(ctx, recipientID, entry); err != nil {
		s.claims.Release(entry.ID)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	// Removal releases the reservation through the store hook.
	if !s.store.Remove(ctx, entry.ID) {
		slog.Warn("Delivered entry was already removed from the pool",
			slog.String("type", "gift"),
			slog.Int64("entry_id", entry.ID))
		s.claims.Release(entry.ID)
	}

	if err := s.notifier.NotifyUser(ctx, entry.OwnerID, fmt.Sprintf("Your key for %s was claimed.", entry.GameName)); err != nil {
		slog.Warn("Failed to notify gift owner",
			slog.String("type", "gift"),
			slog.String("owner_id", entry.OwnerID.String()),
			slog.Any("error", err))
	}

	slog.Info("Gift delivered",
		slog.String("type", "gift"),
		slog.Int64("entry_id", entry.ID),
		slog.String("game", entry.GameName),
		slog.String("recipient_id", recipientID.String()))
	return nil
}
