package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/internal/enum"
	"github.com/mailvault/mailvault/internal/models"
)

func newTestCache(ttlSeconds int) *listingCache {
	return NewListingCache(&config.FetchConfig{CacheTTLSeconds: ttlSeconds}).(*listingCache)
}

func listing(email string, view enum.FolderView, page, pageSize, total int) *models.FolderListing {
	return &models.FolderListing{
		Email:         email,
		FolderView:    view.String(),
		Page:          page,
		PageSize:      pageSize,
		TotalMessages: total,
		FetchedAt:     time.Now(),
	}
}

func TestCache_PutGet(t *testing.T) {
	c := newTestCache(60)

	c.Put(listing("a@example.com", enum.FolderInbox, 1, 20, 42))

	got, ok := c.Get("a@example.com", enum.FolderInbox, 1, 20)
	require.True(t, ok)
	assert.Equal(t, 42, got.TotalMessages)

	_, ok = c.Get("a@example.com", enum.FolderInbox, 2, 20)
	assert.False(t, ok)
	_, ok = c.Get("a@example.com", enum.FolderJunk, 1, 20)
	assert.False(t, ok)
	_, ok = c.Get("a@example.com", enum.FolderInbox, 1, 50)
	assert.False(t, ok)
	_, ok = c.Get("b@example.com", enum.FolderInbox, 1, 20)
	assert.False(t, ok)
}

func TestCache_LastPutWins(t *testing.T) {
	c := newTestCache(60)

	c.Put(listing("a@example.com", enum.FolderInbox, 1, 20, 10))
	c.Put(listing("a@example.com", enum.FolderInbox, 1, 20, 11))

	got, ok := c.Get("a@example.com", enum.FolderInbox, 1, 20)
	require.True(t, ok)
	assert.Equal(t, 11, got.TotalMessages)
}

func TestCache_Expiry(t *testing.T) {
	c := newTestCache(60)
	c.ttl = 20 * time.Millisecond

	c.Put(listing("a@example.com", enum.FolderInbox, 1, 20, 42))

	_, ok := c.Get("a@example.com", enum.FolderInbox, 1, 20)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	_, ok = c.Get("a@example.com", enum.FolderInbox, 1, 20)
	assert.False(t, ok)

	// expired entry was also dropped from the account index
	c.mu.RLock()
	_, indexed := c.byAccount["a@example.com"]
	c.mu.RUnlock()
	assert.False(t, indexed)
}

func TestCache_InvalidateAccount(t *testing.T) {
	c := newTestCache(60)

	c.Put(listing("a@example.com", enum.FolderInbox, 1, 20, 1))
	c.Put(listing("a@example.com", enum.FolderJunk, 1, 20, 2))
	c.Put(listing("b@example.com", enum.FolderInbox, 1, 20, 3))

	c.InvalidateAccount("a@example.com")

	_, ok := c.Get("a@example.com", enum.FolderInbox, 1, 20)
	assert.False(t, ok)
	_, ok = c.Get("a@example.com", enum.FolderJunk, 1, 20)
	assert.False(t, ok)

	got, ok := c.Get("b@example.com", enum.FolderInbox, 1, 20)
	require.True(t, ok)
	assert.Equal(t, 3, got.TotalMessages)
}

func TestCache_Clear(t *testing.T) {
	c := newTestCache(60)

	c.Put(listing("a@example.com", enum.FolderInbox, 1, 20, 1))
	c.Put(listing("b@example.com", enum.FolderAll, 1, 20, 2))

	c.Clear()

	_, ok := c.Get("a@example.com", enum.FolderInbox, 1, 20)
	assert.False(t, ok)
	_, ok = c.Get("b@example.com", enum.FolderAll, 1, 20)
	assert.False(t, ok)
}
