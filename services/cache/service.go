package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/enum"
	"github.com/mailvault/mailvault/internal/models"
)

type entry struct {
	listing  *models.FolderListing
	storedAt time.Time
}

// listingCache is an in-process TTL cache for folder listings. Entries are
// evicted lazily on read; a full page key includes the view and pagination so
// different windows of the same folder never collide.
type listingCache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]entry
	// account index for O(1) invalidation of every page of one mailbox
	byAccount map[string]map[string]struct{}
}

func NewListingCache(cfg *config.FetchConfig) interfaces.ListingCache {
	return &listingCache{
		ttl:       time.Duration(cfg.CacheTTLSeconds) * time.Second,
		entries:   make(map[string]entry),
		byAccount: make(map[string]map[string]struct{}),
	}
}

func cacheKey(email string, view enum.FolderView, page, pageSize int) string {
	return fmt.Sprintf("%s|%s|%d|%d", email, view, page, pageSize)
}

func (c *listingCache) Get(email string, view enum.FolderView, page, pageSize int) (*models.FolderListing, bool) {
	key := cacheKey(email, view, page, pageSize)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if time.Since(e.storedAt) > c.ttl {
		c.mu.Lock()
		// re-check under the write lock, a Put may have raced the expiry
		if cur, still := c.entries[key]; still && cur.storedAt.Equal(e.storedAt) {
			c.remove(key, email)
		}
		c.mu.Unlock()
		return nil, false
	}

	return e.listing, true
}

func (c *listingCache) Put(listing *models.FolderListing) {
	if listing == nil {
		return
	}
	key := cacheKey(listing.Email, enum.GetFolderView(listing.FolderView), listing.Page, listing.PageSize)

	c.mu.Lock()
	c.entries[key] = entry{listing: listing, storedAt: time.Now()}
	keys, ok := c.byAccount[listing.Email]
	if !ok {
		keys = make(map[string]struct{})
		c.byAccount[listing.Email] = keys
	}
	keys[key] = struct{}{}
	c.mu.Unlock()
}

func (c *listingCache) InvalidateAccount(email string) {
	c.mu.Lock()
	for key := range c.byAccount[email] {
		delete(c.entries, key)
	}
	delete(c.byAccount, email)
	c.mu.Unlock()
}

func (c *listingCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.byAccount = make(map[string]map[string]struct{})
	c.mu.Unlock()
}

// remove must be called with the write lock held.
func (c *listingCache) remove(key, email string) {
	delete(c.entries, key)
	if keys, ok := c.byAccount[email]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(c.byAccount, email)
		}
	}
}
