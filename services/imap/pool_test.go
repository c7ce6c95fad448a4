package imap

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/models"
)

type fakeSession struct {
	email     string
	noopErr   error
	loggedOut atomic.Bool
}

func (f *fakeSession) SelectFolder(folder string, readOnly bool) (uint32, error) { return 0, nil }
func (f *fakeSession) SearchAll() ([]uint32, error)                              { return nil, nil }
func (f *fakeSession) FetchHeaders(folder string, seqNums []uint32) ([]models.MessageSummary, error) {
	return nil, nil
}
func (f *fakeSession) FetchMessageByUID(uid uint32) ([]byte, error) { return nil, nil }
func (f *fakeSession) Noop() error                                  { return f.noopErr }
func (f *fakeSession) Logout() error {
	f.loggedOut.Store(true)
	return nil
}

type fakeFactory struct {
	mu       sync.Mutex
	sessions []*fakeSession
	connects int32
}

func (f *fakeFactory) Connect(ctx context.Context, email, accessToken string) (interfaces.MailSession, error) {
	atomic.AddInt32(&f.connects, 1)
	s := &fakeSession{email: email}
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

func newTestPool(t *testing.T, global, perAccount int) (*connectionPool, *fakeFactory) {
	t.Helper()
	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()

	factory := &fakeFactory{}
	cfg := &config.FetchConfig{
		MaxGlobalConnections:     global,
		MaxConnectionsPerAccount: perAccount,
		ConnectionIdleSeconds:    60,
	}
	pool := NewConnectionPool(cfg, appLogger, factory).(*connectionPool)
	t.Cleanup(pool.CloseAll)
	return pool, factory
}

func TestPool_ReusesIdleSession(t *testing.T) {
	pool, factory := newTestPool(t, 5, 2)
	ctx := context.Background()

	s1, err := pool.Acquire(ctx, "a@example.com", "tok")
	require.NoError(t, err)
	pool.Release(s1, true)

	s2, err := pool.Acquire(ctx, "a@example.com", "tok")
	require.NoError(t, err)
	assert.Equal(t, s1.ID, s2.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&factory.connects))
	pool.Release(s2, true)
}

func TestPool_UnhealthyReleaseClosesSession(t *testing.T) {
	pool, factory := newTestPool(t, 5, 2)
	ctx := context.Background()

	s1, err := pool.Acquire(ctx, "a@example.com", "tok")
	require.NoError(t, err)
	pool.Release(s1, false)

	assert.True(t, factory.sessions[0].loggedOut.Load())

	s2, err := pool.Acquire(ctx, "a@example.com", "tok")
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID, s2.ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&factory.connects))
	pool.Release(s2, true)
}

func TestPool_DeadIdleSessionDiscardedOnReuse(t *testing.T) {
	pool, factory := newTestPool(t, 5, 2)
	ctx := context.Background()

	s1, err := pool.Acquire(ctx, "a@example.com", "tok")
	require.NoError(t, err)
	pool.Release(s1, true)

	// connection died while parked
	factory.sessions[0].noopErr = assert.AnError

	s2, err := pool.Acquire(ctx, "a@example.com", "tok")
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID, s2.ID)
	assert.True(t, factory.sessions[0].loggedOut.Load())
	pool.Release(s2, true)
}

func TestPool_PerAccountCapBlocks(t *testing.T) {
	pool, _ := newTestPool(t, 10, 1)
	ctx := context.Background()

	s1, err := pool.Acquire(ctx, "a@example.com", "tok")
	require.NoError(t, err)

	blockedCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(blockedCtx, "a@example.com", "tok")
	require.Error(t, err)

	// other accounts are unaffected by a saturated account
	s2, err := pool.Acquire(ctx, "b@example.com", "tok")
	require.NoError(t, err)

	pool.Release(s1, true)
	pool.Release(s2, true)

	s3, err := pool.Acquire(ctx, "a@example.com", "tok")
	require.NoError(t, err)
	pool.Release(s3, true)
}

func TestPool_GlobalCapNeverExceeded(t *testing.T) {
	const globalCap = 3
	pool, _ := newTestPool(t, globalCap, 2)
	ctx := context.Background()

	var (
		mu         sync.Mutex
		borrowed   int
		maxOut     int
		wg         sync.WaitGroup
		accountSet = []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"}
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := accountSet[i%len(accountSet)]
			s, err := pool.Acquire(ctx, email, "tok")
			if err != nil {
				return
			}
			mu.Lock()
			borrowed++
			if borrowed > maxOut {
				maxOut = borrowed
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			borrowed--
			mu.Unlock()
			pool.Release(s, true)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, maxOut, globalCap)
}

func TestPool_CloseAccountDropsIdleSessions(t *testing.T) {
	pool, factory := newTestPool(t, 5, 2)
	ctx := context.Background()

	s1, err := pool.Acquire(ctx, "a@example.com", "tok")
	require.NoError(t, err)
	pool.Release(s1, true)

	pool.CloseAccount("a@example.com")
	assert.True(t, factory.sessions[0].loggedOut.Load())

	s2, err := pool.Acquire(ctx, "a@example.com", "tok")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&factory.connects))
	pool.Release(s2, true)
}
