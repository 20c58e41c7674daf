package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sahilm/fuzzy"
	"golang.org/x/sync/singleflight"

	"github.com/giftkeeper/giftkeeper/giftkeeper/gift"
)

const (
	DefaultAppListURL = "https://api.steampowered.com/ISteamApps/GetAppList/v2/"

	lookupCacheSize = 512
)

type appList struct {
	AppList struct {
		Apps []struct {
			AppID int64  `json:"appid"`
			Name  string `json:"name"`
		} `json:"apps"`
	} `json:"applist"`
}

// Catalog is the Steam app catalog: the full app list held in memory,
// refreshed periodically, with exact lookups served through a small LRU and
// autocomplete served by fuzzy matching over app names. The app list is
// large (~200k entries) so concurrent refreshes are collapsed into one
// fetch.
type Catalog struct {
	mu    sync.RWMutex
	apps  []gift.App
	byID  map[int64]gift.App
	names names

	lookups *lru.Cache
	group   singleflight.Group
	client  *http.Client
	url     string
}

// names adapts the app slice to fuzzy.Source.
type names []gift.App

func (n names) String(i int) string { return n[i].Name }
func (n names) Len() int            { return len(n) }

func NewCatalog(url string) *Catalog {
	if url == "" {
		url = DefaultAppListURL
	}
	lookups, _ := lru.New(lookupCacheSize)
	return &Catalog{
		byID:    make(map[int64]gift.App),
		lookups: lookups,
		client:  &http.Client{Timeout: 30 * time.Second},
		url:     url,
	}
}

// Refresh fetches the app list. Concurrent callers share a single fetch.
func (c *Catalog) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		return nil, c.fetch(ctx)
	})
	return err
}

func (c *Catalog) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch steam app list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("steam app list returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read steam app list: %w", err)
	}

	var list appList
	if err := json.Unmarshal(body, &list); err != nil {
		return fmt.Errorf("failed to decode steam app list: %w", err)
	}

	apps := make([]gift.App, 0, len(list.AppList.Apps))
	byID := make(map[int64]gift.App, len(list.AppList.Apps))
	for _, a := range list.AppList.Apps {
		if strings.TrimSpace(a.Name) == "" {
			continue
		}
		app := gift.App{ID: a.AppID, Name: a.Name}
		apps = append(apps, app)
		byID[a.AppID] = app
	}

	c.mu.Lock()
	c.apps = apps
	c.byID = byID
	c.names = apps
	c.mu.Unlock()
	c.lookups.Purge()

	slog.Info("Loaded steam app list",
		slog.String("type", "steam"),
		slog.Int("apps", len(apps)))
	return nil
}

// StartRefresher re-fetches the app list on the given interval until the
// context is cancelled.
func (c *Catalog) StartRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Refresh(ctx); err != nil {
					slog.Error("Steam app list refresh failed",
						slog.String("type", "steam"),
						slog.Any("error", err))
				}
			}
		}
	}()
}

func (c *Catalog) AppByID(id int64) (gift.App, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	app, ok := c.byID[id]
	return app, ok
}

// AppByName resolves an app by exact name, case-insensitively. Hits are
// cached: the same game names come up again and again while the full list
// scan is linear.
func (c *Catalog) AppByName(name string) (gift.App, bool) {
	key := strings.ToLower(name)
	if cached, ok := c.lookups.Get(key); ok {
		return cached.(gift.App), true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, app := range c.apps {
		if strings.EqualFold(app.Name, name) {
			c.lookups.Add(key, app)
			return app, true
		}
	}
	return gift.App{}, false
}

// Search returns the best fuzzy matches for an autocomplete query.
func (c *Catalog) Search(query string, limit int) []gift.App {
	c.mu.RLock()
	defer c.mu.RUnlock()

	matches := fuzzy.FindFrom(query, c.names)
	if len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]gift.App, 0, len(matches))
	for _, m := range matches {
		results = append(results, c.names[m.Index])
	}
	return results
}
