package gift

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/disgoorg/snowflake/v2"
)

type fakeNotifier struct {
	mu          sync.Mutex
	delivered   []int64
	notices     []snowflake.ID
	asks        []int64
	failDeliver bool
}

func (n *fakeNotifier) DeliverKey(_ context.Context, _ snowflake.ID, entry *Entry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failDeliver {
		return errors.New("dms closed")
	}
	n.delivered = append(n.delivered, entry.ID)
	return nil
}

func (n *fakeNotifier) NotifyUser(_ context.Context, userID snowflake.ID, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, userID)
	return nil
}

func (n *fakeNotifier) RequestApproval(_ context.Context, _ snowflake.ID, _ snowflake.ID, entry *Entry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.asks = append(n.asks, entry.ID)
	return nil
}

func (n *fakeNotifier) deliveredCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.delivered)
}

type fakeCatalog struct {
	apps map[int64]App
}

func (c *fakeCatalog) AppByID(id int64) (App, bool) {
	app, ok := c.apps[id]
	return app, ok
}

func (c *fakeCatalog) AppByName(name string) (App, bool) {
	for _, app := range c.apps {
		if app.Name == name {
			return app, true
		}
	}
	return App{}, false
}

func newTestService(t *testing.T) (*Service, *fakeNotifier) {
	t.Helper()
	store := newTestStore(t, &fakeBackend{})
	claims := NewReservationTable(DefaultReservationTTL, DefaultReaperHorizon)
	notifier := &fakeNotifier{}
	catalog := &fakeCatalog{apps: map[int64]App{400: {ID: 400, Name: "Portal"}}}
	return NewService(store, claims, catalog, notifier), notifier
}

const (
	owner     = snowflake.ID(10)
	recipient = snowflake.ID(20)
)

func TestRedeemDirectEndToEnd(t *testing.T) {
	svc, notifier := newTestService(t)
	ctx := context.Background()

	id, err := svc.AddSteamKey(ctx, 0, owner, "alice", 400, "AAAA-BBBB", false)
	if err != nil {
		t.Fatalf("AddSteamKey: %v", err)
	}

	if err := svc.RedeemDirect(ctx, id, owner, recipient); err != nil {
		t.Fatalf("RedeemDirect: %v", err)
	}

	if notifier.deliveredCount() != 1 {
		t.Errorf("delivered %d keys, want 1", notifier.deliveredCount())
	}
	if len(svc.Carriers(0)) != 0 {
		t.Error("delivered entry still visible")
	}
	if len(svc.EntriesOf(recipient)) != 0 {
		t.Error("recipient must not own the delivered entry")
	}
	if len(notifier.notices) != 1 || notifier.notices[0] != owner {
		t.Errorf("owner notices = %v, want exactly one to the owner", notifier.notices)
	}
}

func TestRedeemDirectUnknownEntry(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.RedeemDirect(context.Background(), 999, owner, recipient); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRedeemDirectRejectsApprovalEntries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, _ := svc.AddSteamKey(ctx, 0, owner, "alice", 400, "AAAA-BBBB", true)
	if err := svc.RedeemDirect(ctx, id, owner, recipient); !errors.Is(err, ErrApprovalRequired) {
		t.Fatalf("err = %v, want ErrApprovalRequired", err)
	}
}

func TestRedeemDirectDeliveryFailureReleases(t *testing.T) {
	svc, notifier := newTestService(t)
	ctx := context.Background()

	id, _ := svc.AddSteamKey(ctx, 0, owner, "alice", 400, "AAAA-BBBB", false)

	notifier.failDeliver = true
	if err := svc.RedeemDirect(ctx, id, owner, recipient); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("err = %v, want ErrDeliveryFailed", err)
	}
	if len(svc.Carriers(0)) != 1 {
		t.Fatal("entry must stay available after delivery failure")
	}

	// The reservation was released, so a retry succeeds immediately.
	notifier.failDeliver = false
	if err := svc.RedeemDirect(ctx, id, owner, recipient); err != nil {
		t.Fatalf("retry after failed delivery: %v", err)
	}
}

func TestRedeemDirectConcurrent(t *testing.T) {
	svc, notifier := newTestService(t)
	ctx := context.Background()

	id, _ := svc.AddSteamKey(ctx, 0, owner, "alice", 400, "AAAA-BBBB", false)

	const attempts = 32
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs <- svc.RedeemDirect(ctx, id, owner, snowflake.ID(1000+n))
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d concurrent redemptions succeeded, want exactly 1", succeeded)
	}
	if notifier.deliveredCount() != 1 {
		t.Fatalf("delivered %d keys, want exactly 1", notifier.deliveredCount())
	}
}

func TestRedeemRejectsEntryRemovedAfterLookup(t *testing.T) {
	svc, notifier := newTestService(t)
	ctx := context.Background()

	id, _ := svc.AddSteamKey(ctx, 0, owner, "alice", 400, "AAAA-BBBB", false)
	entry := svc.store.FindByID(id)

	// A winning redemption removes the entry and releases its reservation
	// between this attempt's lookup and its reserve. The freed reservation
	// must not let the stale entry go out a second time.
	svc.store.Remove(ctx, id)

	if err := svc.deliver(ctx, entry, recipient); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if notifier.deliveredCount() != 0 {
		t.Fatal("a removed entry must never be delivered")
	}
	if svc.claims.Held(id) {
		t.Error("the rejected attempt must not leave a reservation behind")
	}
}

func TestApprovalWorkflow(t *testing.T) {
	svc, notifier := newTestService(t)
	ctx := context.Background()

	id, _ := svc.AddSteamKey(ctx, 0, owner, "alice", 400, "AAAA-BBBB", true)

	// Two recipients ask for the same entry; neither ask reserves it.
	if err := svc.RequestApproval(ctx, id, owner, recipient); err != nil {
		t.Fatalf("first RequestApproval: %v", err)
	}
	if err := svc.RequestApproval(ctx, id, owner, snowflake.ID(21)); err != nil {
		t.Fatalf("second RequestApproval: %v", err)
	}
	if len(notifier.asks) != 2 {
		t.Fatalf("owner received %d asks, want 2", len(notifier.asks))
	}

	// First accept wins, second hits the already-delivered entry.
	if err := svc.RespondApproval(ctx, id, true, owner, recipient); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	err := svc.RespondApproval(ctx, id, true, owner, snowflake.ID(21))
	if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrConflict) {
		t.Fatalf("second accept err = %v, want ErrNotFound or ErrConflict", err)
	}
	if notifier.deliveredCount() != 1 {
		t.Fatalf("delivered %d keys, want exactly 1", notifier.deliveredCount())
	}
}

func TestRespondApprovalGuards(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, _ := svc.AddSteamKey(ctx, 0, owner, "alice", 400, "AAAA-BBBB", true)

	tests := []struct {
		name    string
		entryID int64
		ownerID snowflake.ID
		wantErr error
	}{
		{name: "wrong owner", entryID: id, ownerID: 99, wantErr: ErrUnauthorized},
		{name: "missing entry", entryID: 12345, ownerID: owner, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.RespondApproval(ctx, tt.entryID, true, tt.ownerID, recipient); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if len(svc.Carriers(0)) != 1 {
				t.Fatal("rejected accept must not change entry state")
			}
		})
	}
}

func TestRespondApprovalDeny(t *testing.T) {
	svc, notifier := newTestService(t)
	ctx := context.Background()

	id, _ := svc.AddSteamKey(ctx, 0, owner, "alice", 400, "AAAA-BBBB", true)

	if err := svc.RespondApproval(ctx, id, false, owner, recipient); err != nil {
		t.Fatalf("deny: %v", err)
	}
	if len(svc.Carriers(0)) != 1 {
		t.Fatal("denied entry must stay available")
	}
	if len(notifier.notices) != 1 || notifier.notices[0] != recipient {
		t.Errorf("notices = %v, want denial notice to requester", notifier.notices)
	}
	if notifier.deliveredCount() != 0 {
		t.Error("deny must not deliver the key")
	}
}

func TestAddCustomKeyMergesCarriers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddCustomKey(ctx, 0, owner, "alice", "Indie Gem", "KEY-1", false); err != nil {
		t.Fatalf("first AddCustomKey: %v", err)
	}
	if _, err := svc.AddCustomKey(ctx, 0, recipient, "bob", "indie gem", "KEY-2", false); err != nil {
		t.Fatalf("second AddCustomKey: %v", err)
	}

	carriers := svc.Carriers(0)
	if len(carriers) != 1 {
		t.Fatalf("got %d carriers, want same-named custom keys merged into 1", len(carriers))
	}
	if len(carriers[0].Entries) != 2 {
		t.Fatalf("merged carrier has %d entries, want 2", len(carriers[0].Entries))
	}
	if owners := carriers[0].Owners(); len(owners) != 2 {
		t.Fatalf("merged carrier has %d owner groups, want 2", len(owners))
	}
}

func TestAddSteamKeyUnknownApp(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.AddSteamKey(context.Background(), 0, owner, "alice", 777, "KEY", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := svc.AddSteamKeyByName(context.Background(), 0, owner, "alice", "No Such Game", "KEY", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRemoveKeyOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, _ := svc.AddSteamKey(ctx, 0, owner, "alice", 400, "AAAA-BBBB", false)

	if err := svc.RemoveKey(ctx, id, recipient); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if err := svc.RemoveKey(ctx, id, owner); err != nil {
		t.Fatalf("owner RemoveKey: %v", err)
	}
	if err := svc.RemoveKey(ctx, id, owner); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after removal", err)
	}
}

func TestSpaceVisibility(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddSteamKey(ctx, 555, owner, "alice", 400, "LOCKED", false); err != nil {
		t.Fatalf("AddSteamKey: %v", err)
	}
	if _, err := svc.AddCustomKey(ctx, 0, owner, "alice", "Global Game", "GLOBAL", false); err != nil {
		t.Fatalf("AddCustomKey: %v", err)
	}

	for _, space := range []snowflake.ID{1, 777, 555} {
		carriers := svc.Carriers(space)
		want := 1
		if space == 555 {
			want = 2
		}
		if len(carriers) != want {
			t.Errorf("space %d sees %d carriers, want %d", space, len(carriers), want)
		}
	}
}

func TestDeliveredEntryReleasesReservation(t *testing.T) {
	store := newTestStore(t, &fakeBackend{})
	claims := NewReservationTable(DefaultReservationTTL, DefaultReaperHorizon)
	notifier := &fakeNotifier{}
	svc := NewService(store, claims, &fakeCatalog{apps: map[int64]App{400: {ID: 400, Name: "Portal"}}}, notifier)

	ctx := context.Background()
	id, _ := svc.AddSteamKey(ctx, 0, owner, "alice", 400, "AAAA-BBBB", false)

	if err := svc.RedeemDirect(ctx, id, owner, recipient); err != nil {
		t.Fatalf("RedeemDirect: %v", err)
	}
	if claims.Held(id) {
		t.Error("reservation must be released when its entry is removed")
	}
}

func ExampleService_RedeemDirect() {
	store, _ := NewStore(context.Background(), &fakeBackend{})
	claims := NewReservationTable(DefaultReservationTTL, DefaultReaperHorizon)
	notifier := &fakeNotifier{}
	svc := NewService(store, claims, &fakeCatalog{apps: map[int64]App{400: {ID: 400, Name: "Portal"}}}, notifier)

	id, _ := svc.AddSteamKey(context.Background(), 0, 10, "alice", 400, "AAAA-BBBB", false)
	err := svc.RedeemDirect(context.Background(), id, 10, 20)
	fmt.Println(err)
	// Output: <nil>
}
