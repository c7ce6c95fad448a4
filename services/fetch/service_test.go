package fetch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/enum"
	er "github.com/mailvault/mailvault/internal/errors"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/services/cache"
)

type fakeAccounts struct {
	accounts map[string]*models.Account
}

func (f *fakeAccounts) List(ctx context.Context) ([]*models.Account, error)    { return nil, nil }
func (f *fakeAccounts) ListAll(ctx context.Context) ([]*models.Account, error) { return nil, nil }
func (f *fakeAccounts) Get(ctx context.Context, email string) (*models.Account, error) {
	return f.accounts[email], nil
}
func (f *fakeAccounts) Upsert(ctx context.Context, account *models.Account) error { return nil }
func (f *fakeAccounts) Remove(ctx context.Context, email string) error            { return nil }
func (f *fakeAccounts) UpdateCredentialStatus(ctx context.Context, email string, status enum.CredentialStatus) error {
	return nil
}

type fakeOAuth struct {
	revoked        map[string]bool
	forceRefreshes int32
	generation     int32
}

func (f *fakeOAuth) Acquire(ctx context.Context, account *models.Account) (*interfaces.AccessToken, error) {
	if f.revoked[account.Email] {
		return nil, er.NewAuthError(account.Email, er.AuthReasonInvalidGrant, fmt.Errorf("refresh token revoked"))
	}
	gen := atomic.LoadInt32(&f.generation)
	return &interfaces.AccessToken{Token: fmt.Sprintf("tok-%d", gen), ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeOAuth) ForceRefresh(ctx context.Context, account *models.Account) (*interfaces.AccessToken, error) {
	atomic.AddInt32(&f.forceRefreshes, 1)
	atomic.AddInt32(&f.generation, 1)
	return f.Acquire(ctx, account)
}

func (f *fakeOAuth) InvalidateToken(email string) {}
func (f *fakeOAuth) Clear()                       {}

type listingSession struct {
	folders map[string][]models.MessageSummary
	raw     map[uint32][]byte

	selected string
}

func (s *listingSession) SelectFolder(folder string, readOnly bool) (uint32, error) {
	s.selected = folder
	return uint32(len(s.folders[folder])), nil
}

func (s *listingSession) SearchAll() ([]uint32, error) {
	seqNums := make([]uint32, 0, len(s.folders[s.selected]))
	for i := range s.folders[s.selected] {
		seqNums = append(seqNums, uint32(i+1))
	}
	return seqNums, nil
}

func (s *listingSession) FetchHeaders(folder string, seqNums []uint32) ([]models.MessageSummary, error) {
	msgs := s.folders[folder]
	out := make([]models.MessageSummary, 0, len(seqNums))
	for _, n := range seqNums {
		if int(n) >= 1 && int(n) <= len(msgs) {
			out = append(out, msgs[n-1])
		}
	}
	return out, nil
}

func (s *listingSession) FetchMessageByUID(uid uint32) ([]byte, error) {
	raw, ok := s.raw[uid]
	if !ok {
		return nil, er.NewProtocolError(true, fmt.Errorf("message uid %d not found", uid))
	}
	return raw, nil
}

func (s *listingSession) Noop() error   { return nil }
func (s *listingSession) Logout() error { return nil }

type fakePool struct {
	sessions map[string]*listingSession
	// tokens the server side rejects at connect time
	rejectTokens map[string]bool
	acquires     int32
}

func (p *fakePool) Acquire(ctx context.Context, email, accessToken string) (*interfaces.PooledSession, error) {
	atomic.AddInt32(&p.acquires, 1)
	if p.rejectTokens[accessToken] {
		return nil, er.NewAuthError(email, er.AuthReasonInvalidGrant, fmt.Errorf("AUTHENTICATE failed"))
	}
	session, ok := p.sessions[email]
	if !ok {
		return nil, er.NewPoolError(email, er.PoolConnectFailed, fmt.Errorf("no session for %s", email))
	}
	return &interfaces.PooledSession{ID: "sess_test", Email: email, Session: session}, nil
}

func (p *fakePool) Release(session *interfaces.PooledSession, healthy bool) {}
func (p *fakePool) CloseAccount(email string)                              {}
func (p *fakePool) CloseAll()                                              {}

func summaries(folder string, dates ...time.Time) []models.MessageSummary {
	out := make([]models.MessageSummary, 0, len(dates))
	for i, d := range dates {
		out = append(out, models.MessageSummary{
			UID:     uint32(i + 1),
			SeqNum:  uint32(i + 1),
			Folder:  folder,
			Subject: fmt.Sprintf("%s-%d", folder, i+1),
			From:    "Sender <sender@example.com>",
			Date:    d,
		})
	}
	return out
}

func newTestEmailService(accounts *fakeAccounts, oauth *fakeOAuth, pool *fakePool) *emailService {
	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()

	cfg := &config.FetchConfig{
		MaxGlobalConnections:     5,
		MaxConnectionsPerAccount: 2,
		CacheTTLSeconds:          60,
		DefaultPageSize:          20,
	}
	return NewEmailService(cfg, appLogger, accounts, oauth, pool, cache.NewListingCache(cfg)).(*emailService)
}

func activeAccount(email string) *models.Account {
	return &models.Account{Email: email, RefreshToken: "rt", ClientID: "cid"}
}

func TestFetchListing_MergesFoldersNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	session := &listingSession{folders: map[string][]models.MessageSummary{
		"INBOX": summaries("INBOX", base.Add(1*time.Hour), base.Add(3*time.Hour)),
		"Junk":  summaries("Junk", base.Add(2*time.Hour)),
	}}

	svc := newTestEmailService(
		&fakeAccounts{accounts: map[string]*models.Account{"a@example.com": activeAccount("a@example.com")}},
		&fakeOAuth{},
		&fakePool{sessions: map[string]*listingSession{"a@example.com": session}},
	)

	listing, err := svc.FetchListing(context.Background(), "a@example.com", enum.FolderAll, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, listing.TotalMessages)
	require.Len(t, listing.Messages, 3)
	assert.Equal(t, "INBOX-2", listing.Messages[0].Subject)
	assert.Equal(t, "Junk-1", listing.Messages[1].Subject)
	assert.Equal(t, "INBOX-1", listing.Messages[2].Subject)
}

func TestFetchListing_Pagination(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	dates := make([]time.Time, 5)
	for i := range dates {
		dates[i] = base.Add(time.Duration(i) * time.Hour)
	}
	session := &listingSession{folders: map[string][]models.MessageSummary{
		"INBOX": summaries("INBOX", dates...),
	}}

	svc := newTestEmailService(
		&fakeAccounts{accounts: map[string]*models.Account{"a@example.com": activeAccount("a@example.com")}},
		&fakeOAuth{},
		&fakePool{sessions: map[string]*listingSession{"a@example.com": session}},
	)

	page2, err := svc.FetchListing(context.Background(), "a@example.com", enum.FolderInbox, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page2.TotalMessages)
	require.Len(t, page2.Messages, 2)
	// newest-first: page 2 of size 2 holds the 3rd and 4th newest
	assert.Equal(t, "INBOX-3", page2.Messages[0].Subject)
	assert.Equal(t, "INBOX-2", page2.Messages[1].Subject)
}

func TestFetchListing_ServesFromCache(t *testing.T) {
	session := &listingSession{folders: map[string][]models.MessageSummary{
		"INBOX": summaries("INBOX", time.Now()),
	}}
	pool := &fakePool{sessions: map[string]*listingSession{"a@example.com": session}}

	svc := newTestEmailService(
		&fakeAccounts{accounts: map[string]*models.Account{"a@example.com": activeAccount("a@example.com")}},
		&fakeOAuth{},
		pool,
	)

	_, err := svc.FetchListing(context.Background(), "a@example.com", enum.FolderInbox, 1, 10)
	require.NoError(t, err)
	_, err = svc.FetchListing(context.Background(), "a@example.com", enum.FolderInbox, 1, 10)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&pool.acquires))
}

func TestFetchListing_UnknownAccount(t *testing.T) {
	svc := newTestEmailService(&fakeAccounts{accounts: map[string]*models.Account{}}, &fakeOAuth{}, &fakePool{})

	_, err := svc.FetchListing(context.Background(), "ghost@example.com", enum.FolderInbox, 1, 10)
	assert.ErrorIs(t, err, er.ErrAccountNotFound)
}

func TestFetchListing_RetriesWithFreshTokenAfterRejection(t *testing.T) {
	session := &listingSession{folders: map[string][]models.MessageSummary{
		"INBOX": summaries("INBOX", time.Now()),
	}}
	oauth := &fakeOAuth{}
	pool := &fakePool{
		sessions: map[string]*listingSession{"a@example.com": session},
		// the generation-0 token is stale on the server side
		rejectTokens: map[string]bool{"tok-0": true},
	}

	svc := newTestEmailService(
		&fakeAccounts{accounts: map[string]*models.Account{"a@example.com": activeAccount("a@example.com")}},
		oauth,
		pool,
	)

	listing, err := svc.FetchListing(context.Background(), "a@example.com", enum.FolderInbox, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, listing.TotalMessages)
	assert.Equal(t, int32(1), atomic.LoadInt32(&oauth.forceRefreshes))
	assert.Equal(t, int32(2), atomic.LoadInt32(&pool.acquires))
}

func TestFetchMany_IsolatesRevokedAccount(t *testing.T) {
	goodSession := &listingSession{folders: map[string][]models.MessageSummary{
		"INBOX": summaries("INBOX", time.Now()),
	}}

	svc := newTestEmailService(
		&fakeAccounts{accounts: map[string]*models.Account{
			"good@example.com":    activeAccount("good@example.com"),
			"revoked@example.com": activeAccount("revoked@example.com"),
		}},
		&fakeOAuth{revoked: map[string]bool{"revoked@example.com": true}},
		&fakePool{sessions: map[string]*listingSession{"good@example.com": goodSession}},
	)

	results := svc.FetchMany(context.Background(), []string{"good@example.com", "revoked@example.com"}, enum.FolderInbox, 1, 10)
	require.Len(t, results, 2)

	good := results["good@example.com"]
	require.NotNil(t, good)
	assert.Empty(t, good.Error)
	require.NotNil(t, good.Listing)
	assert.Equal(t, 1, good.Listing.TotalMessages)

	revoked := results["revoked@example.com"]
	require.NotNil(t, revoked)
	assert.Nil(t, revoked.Listing)
	assert.Contains(t, revoked.Error, "invalid_grant")
}

func TestFetchMessage_ParsesBodies(t *testing.T) {
	raw := []byte("Message-Id: <msg-1@example.com>\r\n" +
		"From: Sender <sender@example.com>\r\n" +
		"To: user@example.com\r\n" +
		"Subject: Hello\r\n" +
		"Date: Mon, 02 Mar 2026 10:00:00 +0000\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
		"\r\n" +
		"--b1\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain body\r\n" +
		"--b1\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>html body</p>\r\n" +
		"--b1--\r\n")

	session := &listingSession{
		folders: map[string][]models.MessageSummary{"INBOX": {}},
		raw:     map[uint32][]byte{7: raw},
	}

	svc := newTestEmailService(
		&fakeAccounts{accounts: map[string]*models.Account{"a@example.com": activeAccount("a@example.com")}},
		&fakeOAuth{},
		&fakePool{sessions: map[string]*listingSession{"a@example.com": session}},
	)

	detail, err := svc.FetchMessage(context.Background(), "a@example.com", "INBOX", 7)
	require.NoError(t, err)
	assert.Equal(t, "Hello", detail.Subject)
	assert.Equal(t, uint32(7), detail.UID)
	assert.Contains(t, detail.BodyPlain, "plain body")
	assert.Contains(t, detail.BodyHTML, "html body")
	assert.Equal(t, 2026, detail.Date.Year())
}
