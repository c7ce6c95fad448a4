package oauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/enum"
	er "github.com/mailvault/mailvault/internal/errors"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/tracing"
)

// tokenSafetyMargin is subtracted from expires_in so a token is never handed
// out with only seconds of life left.
const tokenSafetyMargin = 60 * time.Second

const maxRefreshAttempts = 3

type oauthService struct {
	cfg        *config.OAuthConfig
	log        logger.Logger
	accounts   interfaces.AccountRepository
	httpClient *http.Client

	mu     sync.RWMutex
	tokens map[string]*interfaces.AccessToken
}

func NewOAuthService(cfg *config.OAuthConfig, log logger.Logger, accounts interfaces.AccountRepository) interfaces.OAuthService {
	return &oauthService{
		cfg:      cfg,
		log:      log,
		accounts: accounts,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		tokens: make(map[string]*interfaces.AccessToken),
	}
}

func (s *oauthService) Acquire(ctx context.Context, account *models.Account) (*interfaces.AccessToken, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "oauthService.Acquire")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.Email)

	s.mu.RLock()
	cached := s.tokens[account.Email]
	s.mu.RUnlock()
	if cached.Valid(time.Now()) {
		span.SetTag("cache.hit", true)
		return cached, nil
	}

	return s.refresh(ctx, account)
}

func (s *oauthService) ForceRefresh(ctx context.Context, account *models.Account) (*interfaces.AccessToken, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "oauthService.ForceRefresh")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.Email)

	s.InvalidateToken(account.Email)
	return s.refresh(ctx, account)
}

func (s *oauthService) InvalidateToken(email string) {
	s.mu.Lock()
	delete(s.tokens, email)
	s.mu.Unlock()
}

func (s *oauthService) Clear() {
	s.mu.Lock()
	s.tokens = make(map[string]*interfaces.AccessToken)
	s.mu.Unlock()
}

func (s *oauthService) refresh(ctx context.Context, account *models.Account) (*interfaces.AccessToken, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "oauthService.refresh")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.Email)

	if account.RefreshToken == "" || account.ClientID == "" {
		tracing.TraceErr(span, er.ErrAccountIncomplete)
		return nil, er.ErrAccountIncomplete
	}

	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= maxRefreshAttempts; attempt++ {
		token, err := s.exchange(ctx, account)
		if err == nil {
			s.mu.Lock()
			s.tokens[account.Email] = token
			s.mu.Unlock()
			return token, nil
		}
		lastErr = err

		if er.IsInvalidGrant(err) {
			// Revoked consent does not heal with retries. Mark the account
			// so the health monitor and UI see it without another probe.
			if dbErr := s.accounts.UpdateCredentialStatus(ctx, account.Email, enum.CredentialInvalid); dbErr != nil {
				s.log.Errorf("[%s] failed to persist credential status: %v", account.Email, dbErr)
			}
			tracing.TraceErr(span, err)
			return nil, err
		}

		if attempt < maxRefreshAttempts {
			wait := b.Duration()
			s.log.Warnf("[%s] token refresh attempt %d failed, retrying in %s: %v", account.Email, attempt, wait, err)
			select {
			case <-ctx.Done():
				tracing.TraceErr(span, ctx.Err())
				return nil, er.NewAuthError(account.Email, er.AuthReasonNetwork, ctx.Err())
			case <-time.After(wait):
			}
		}
	}

	tracing.TraceErr(span, lastErr)
	return nil, lastErr
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

func (s *oauthService) exchange(ctx context.Context, account *models.Account) (*interfaces.AccessToken, error) {
	form := url.Values{}
	form.Set("client_id", account.ClientID)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", account.RefreshToken)
	form.Set("scope", s.cfg.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, er.NewAuthError(account.Email, er.AuthReasonNetwork, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, er.NewAuthError(account.Email, er.AuthReasonNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, er.NewAuthError(account.Email, er.AuthReasonNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var tr tokenResponse
		if err := json.Unmarshal(body, &tr); err != nil {
			return nil, er.NewAuthError(account.Email, er.AuthReasonNetwork, errors.Wrap(err, "malformed token response"))
		}
		if tr.AccessToken == "" || tr.ExpiresIn <= 0 {
			return nil, er.NewAuthError(account.Email, er.AuthReasonInvalidGrant, errors.New("token response missing access_token"))
		}
		expiresAt := time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenSafetyMargin)
		return &interfaces.AccessToken{Token: tr.AccessToken, ExpiresAt: expiresAt}, nil

	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		var tr tokenResponse
		_ = json.Unmarshal(body, &tr)
		detail := tr.ErrorDesc
		if detail == "" {
			detail = strings.TrimSpace(string(body))
		}
		return nil, er.NewAuthError(account.Email, er.AuthReasonInvalidGrant, errors.Errorf("token endpoint rejected refresh: %s", detail))

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, er.NewAuthError(account.Email, er.AuthReasonRateLimited, errors.Errorf("token endpoint rate limited: %s", resp.Status))

	default:
		return nil, er.NewAuthError(account.Email, er.AuthReasonNetwork, errors.Errorf("token endpoint returned %s", resp.Status))
	}
}
