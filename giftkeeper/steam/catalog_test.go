package steam

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const appListJSON = `{
	"applist": {
		"apps": [
			{"appid": 400, "name": "Portal"},
			{"appid": 620, "name": "Portal 2"},
			{"appid": 730, "name": "Counter-Strike 2"},
			{"appid": 999, "name": "  "},
			{"appid": 1091500, "name": "Cyberpunk 2077"}
		]
	}
}`

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(appListJSON))
	}))
	t.Cleanup(srv.Close)

	c := NewCatalog(srv.URL)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return c
}

func TestRefreshSkipsBlankNames(t *testing.T) {
	c := newTestCatalog(t)

	if got := len(c.apps); got != 4 {
		t.Fatalf("catalog holds %d apps, want 4 with the blank-named one skipped", got)
	}
	if _, ok := c.AppByID(999); ok {
		t.Error("blank-named app should not resolve")
	}
}

func TestAppByID(t *testing.T) {
	c := newTestCatalog(t)

	app, ok := c.AppByID(620)
	if !ok || app.Name != "Portal 2" {
		t.Fatalf("AppByID(620) = %+v, %v, want Portal 2", app, ok)
	}
	if _, ok := c.AppByID(123456); ok {
		t.Error("unknown app ID should not resolve")
	}
}

func TestAppByNameCaseInsensitive(t *testing.T) {
	c := newTestCatalog(t)

	for _, name := range []string{"Portal 2", "portal 2", "PORTAL 2"} {
		app, ok := c.AppByName(name)
		if !ok || app.ID != 620 {
			t.Errorf("AppByName(%q) = %+v, %v, want app 620", name, app, ok)
		}
	}
	if _, ok := c.AppByName("Portal 3"); ok {
		t.Error("unknown name should not resolve")
	}
}

func TestAppByNameCached(t *testing.T) {
	c := newTestCatalog(t)

	if _, ok := c.AppByName("Cyberpunk 2077"); !ok {
		t.Fatal("first lookup should resolve")
	}
	if _, ok := c.lookups.Get("cyberpunk 2077"); !ok {
		t.Error("resolved name should land in the lookup cache")
	}
}

func TestSearch(t *testing.T) {
	c := newTestCatalog(t)

	results := c.Search("portal", 25)
	if len(results) < 2 {
		t.Fatalf("Search(portal) returned %d results, want at least the two Portal games", len(results))
	}
	for _, app := range results[:2] {
		if app.ID != 400 && app.ID != 620 {
			t.Errorf("top results contain %+v, want the Portal games first", app)
		}
	}

	if got := len(c.Search("portal", 1)); got != 1 {
		t.Errorf("Search with limit 1 returned %d results", got)
	}
	if got := len(c.Search("zzzzzz", 25)); got != 0 {
		t.Errorf("Search with no match returned %d results", got)
	}
}

func TestRefreshBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	if err := NewCatalog(srv.URL).Refresh(context.Background()); err == nil {
		t.Fatal("Refresh against a failing endpoint should error")
	}
}

func TestRefreshPurgesLookupCache(t *testing.T) {
	c := newTestCatalog(t)

	if _, ok := c.AppByName("Portal"); !ok {
		t.Fatal("lookup should resolve")
	}
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if c.lookups.Len() != 0 {
		t.Error("refresh should purge stale lookups")
	}
}
