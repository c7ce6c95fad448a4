package fetch

import (
	"context"
	"sort"
	"sync"

	"github.com/opentracing/opentracing-go"
	"golang.org/x/sync/errgroup"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/enum"
	er "github.com/mailvault/mailvault/internal/errors"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/internal/utils"
)

type emailService struct {
	cfg      *config.FetchConfig
	log      logger.Logger
	accounts interfaces.AccountRepository
	oauth    interfaces.OAuthService
	pool     interfaces.ConnectionPool
	cache    interfaces.ListingCache
}

func NewEmailService(
	cfg *config.FetchConfig,
	log logger.Logger,
	accounts interfaces.AccountRepository,
	oauth interfaces.OAuthService,
	pool interfaces.ConnectionPool,
	cache interfaces.ListingCache,
) interfaces.EmailService {
	return &emailService{
		cfg:      cfg,
		log:      log,
		accounts: accounts,
		oauth:    oauth,
		pool:     pool,
		cache:    cache,
	}
}

// FetchMany fans one listing request out across accounts. Each account is
// isolated: a revoked credential or a dead connection shows up as that
// account's error while every other listing completes normally.
func (s *emailService) FetchMany(ctx context.Context, emails []string, view enum.FolderView, page, pageSize int) map[string]*models.FetchResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailService.FetchMany")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("accounts.count", len(emails))
	tracing.TagFolder(span, view.String())

	results := make(map[string]*models.FetchResult, len(emails))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxGlobalConnections)

	for _, email := range emails {
		email := email
		g.Go(func() error {
			defer tracing.RecoverAndLogToJaeger(s.log)

			result := &models.FetchResult{Email: email}
			if cached, ok := s.cache.Get(email, view, page, pageSize); ok {
				result.Listing = cached
				result.FromCache = true
			} else {
				listing, err := s.FetchListing(gCtx, email, view, page, pageSize)
				if err != nil {
					s.log.Warnf("[%s] listing fetch failed: %v", email, err)
					result.Error = err.Error()
				} else {
					result.Listing = listing
				}
			}

			mu.Lock()
			results[email] = result
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return results
}

func (s *emailService) FetchListing(ctx context.Context, email string, view enum.FolderView, page, pageSize int) (*models.FolderListing, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailService.FetchListing")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, email)
	tracing.TagFolder(span, view.String())
	span.SetTag("page", page)

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.cfg.DefaultPageSize
	}

	if cached, ok := s.cache.Get(email, view, page, pageSize); ok {
		span.SetTag("cache.hit", true)
		return cached, nil
	}

	account, err := s.accounts.Get(ctx, email)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if account == nil || account.IsDeleted {
		return nil, er.ErrAccountNotFound
	}

	var listing *models.FolderListing
	err = s.withSession(ctx, account, func(session interfaces.MailSession) error {
		var opErr error
		listing, opErr = s.listFolders(session, email, view, page, pageSize)
		return opErr
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	s.cache.Put(listing)
	return listing, nil
}

// withSession runs op on a pooled session, refreshing the access token and
// retrying once when the server rejects the first credential generation.
func (s *emailService) withSession(ctx context.Context, account *models.Account, op func(interfaces.MailSession) error) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		var token *interfaces.AccessToken
		var err error
		if attempt == 0 {
			token, err = s.oauth.Acquire(ctx, account)
		} else {
			token, err = s.oauth.ForceRefresh(ctx, account)
		}
		if err != nil {
			return err
		}

		pooled, err := s.pool.Acquire(ctx, account.Email, token.Token)
		if err != nil {
			if authErr, ok := er.AsAuthError(err); ok && authErr.Reason == er.AuthReasonInvalidGrant && attempt == 0 {
				// cached token may predate a password change, retry fresh
				lastErr = err
				continue
			}
			return err
		}

		err = op(pooled.Session)
		if err != nil {
			authRejected := er.IsAuthFailure(err)
			s.pool.Release(pooled, false)
			if authRejected && attempt == 0 {
				s.oauth.InvalidateToken(account.Email)
				lastErr = err
				continue
			}
			return err
		}

		s.pool.Release(pooled, true)
		return nil
	}
	return lastErr
}

// listFolders walks every mailbox in the view, fetches the newest window of
// headers from each, then merges newest-first and slices the requested page.
func (s *emailService) listFolders(session interfaces.MailSession, email string, view enum.FolderView, page, pageSize int) (*models.FolderListing, error) {
	var (
		merged []models.MessageSummary
		total  int
	)

	// the page window can only contain messages from the newest page*pageSize
	// of each folder, so older headers are never fetched
	window := uint32(page * pageSize)

	for _, folder := range view.Mailboxes() {
		count, err := session.SelectFolder(folder, true)
		if err != nil {
			return nil, err
		}
		total += int(count)
		if count == 0 {
			continue
		}

		from := uint32(1)
		if count > window {
			from = count - window + 1
		}
		seqNums := make([]uint32, 0, count-from+1)
		for n := from; n <= count; n++ {
			seqNums = append(seqNums, n)
		}

		summaries, err := session.FetchHeaders(folder, seqNums)
		if err != nil {
			return nil, err
		}
		merged = append(merged, summaries...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date.After(merged[j].Date)
	})

	start := (page - 1) * pageSize
	if start > len(merged) {
		start = len(merged)
	}
	end := start + pageSize
	if end > len(merged) {
		end = len(merged)
	}

	return &models.FolderListing{
		Email:         email,
		FolderView:    view.String(),
		Page:          page,
		PageSize:      pageSize,
		TotalMessages: total,
		Messages:      merged[start:end],
		FetchedAt:     utils.Now(),
	}, nil
}
