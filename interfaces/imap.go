package interfaces

import (
	"context"
	"time"

	"github.com/mailvault/mailvault/internal/models"
)

// MailSession is one live authenticated protocol connection.
type MailSession interface {
	// SelectFolder opens a folder and returns its message count.
	SelectFolder(folder string, readOnly bool) (uint32, error)
	// SearchAll returns every sequence number in the selected folder.
	SearchAll() ([]uint32, error)
	// FetchHeaders fetches envelope-level summaries for the given sequence numbers.
	FetchHeaders(folder string, seqNums []uint32) ([]models.MessageSummary, error)
	// FetchMessageByUID fetches the full raw message body.
	FetchMessageByUID(uid uint32) ([]byte, error)
	Noop() error
	Logout() error
}

// SessionFactory opens authenticated sessions. Injected into the pool and the
// health monitor's probe so tests can substitute fakes.
type SessionFactory interface {
	Connect(ctx context.Context, email, accessToken string) (MailSession, error)
}

// PooledSession is a borrowed session plus its pool bookkeeping. Held by at
// most one worker at a time; returned or discarded via Release.
type PooledSession struct {
	ID        string
	Email     string
	Session   MailSession
	CreatedAt time.Time
	LastUsed  time.Time
}

type ConnectionPool interface {
	// Acquire blocks until both the global and the per-account cap admit a
	// session, reusing a validated idle one when available.
	Acquire(ctx context.Context, email, accessToken string) (*PooledSession, error)
	// Release returns a healthy session to the idle set or discards it.
	Release(session *PooledSession, healthy bool)
	CloseAccount(email string)
	CloseAll()
}
