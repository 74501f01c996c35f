package visibility

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kilianp07/skyplan/core/model"
)

const (
	DefaultExpiration      = 30 * time.Minute
	DefaultCleanupInterval = time.Hour
)

// Cached memoizes an Oracle per (telescope, tile, pointing, range). Windows
// are stored by value and must be treated as read-only by callers.
type Cached struct {
	next  Oracle
	cache *gocache.Cache
}

// NewCached wraps next with an in-memory cache.
func NewCached(next Oracle, expiration, cleanup time.Duration) *Cached {
	return &Cached{next: next, cache: gocache.New(expiration, cleanup)}
}

func cacheKey(tile model.Tile, prof model.TelescopeProfile, start, end time.Time) string {
	return fmt.Sprintf("%s|%s|%.6f|%.6f|%d|%d", prof.ID, tile.ID, tile.CenterRA, tile.CenterDec, start.UnixNano(), end.UnixNano())
}

func (c *Cached) Window(ctx context.Context, tile model.Tile, prof model.TelescopeProfile, start, end time.Time) (model.VisibilityWindow, error) {
	key := cacheKey(tile, prof, start, end)
	if v, ok := c.cache.Get(key); ok {
		if w, ok := v.(model.VisibilityWindow); ok {
			return w, nil
		}
	}
	w, err := c.next.Window(ctx, tile, prof, start, end)
	if err != nil {
		return w, err
	}
	c.cache.SetDefault(key, w)
	return w, nil
}

// Len reports the number of cached windows.
func (c *Cached) Len() int { return c.cache.ItemCount() }

// Flush drops every cached window.
func (c *Cached) Flush() { c.cache.Flush() }
