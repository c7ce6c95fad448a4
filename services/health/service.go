package health

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"

	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/enum"
	er "github.com/mailvault/mailvault/internal/errors"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/internal/utils"
)

// healthService sweeps registered accounts and probes whether their refresh
// tokens still yield working protocol access. Only one sweep runs at a time;
// overlapping triggers are rejected, not queued.
type healthService struct {
	log       logger.Logger
	accounts  interfaces.AccountRepository
	oauth     interfaces.OAuthService
	factory   interfaces.SessionFactory
	checks    interfaces.HealthCheckRepository
	publisher interfaces.EventPublisher

	running int32
}

func NewHealthService(
	log logger.Logger,
	accounts interfaces.AccountRepository,
	oauth interfaces.OAuthService,
	factory interfaces.SessionFactory,
	checks interfaces.HealthCheckRepository,
	publisher interfaces.EventPublisher,
) interfaces.HealthService {
	return &healthService{
		log:       log,
		accounts:  accounts,
		oauth:     oauth,
		factory:   factory,
		checks:    checks,
		publisher: publisher,
	}
}

func (s *healthService) RunOnce(ctx context.Context) (*models.HealthSummary, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "healthService.RunOnce")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return nil, er.ErrSweepInProgress
	}
	defer atomic.StoreInt32(&s.running, 0)

	summary := &models.HealthSummary{
		RunID:     uuid.NewString(),
		StartedAt: utils.Now(),
	}
	span.SetTag("run.id", summary.RunID)

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	summary.Total = len(accounts)

	for _, account := range accounts {
		// a sweep stops between checks, never mid-check
		if ctx.Err() != nil {
			s.log.Warnf("health sweep %s cancelled after %d of %d accounts",
				summary.RunID, summary.Success+summary.Failures, summary.Total)
			break
		}

		previous := account.CredentialStatus

		check := s.probe(ctx, account)
		if recErr := s.checks.Record(ctx, check); recErr != nil {
			s.log.Errorf("[%s] failed to record health check: %v", account.Email, recErr)
		}

		switch check.Status {
		case enum.CredentialHealthy:
			summary.Success++
		case enum.CredentialExpired, enum.CredentialInvalid:
			summary.Failures++
			if previous != enum.CredentialExpired && previous != enum.CredentialInvalid {
				summary.NewlyExpired++
				s.notifyExpired(ctx, account.Email, check.Detail)
			}
		default:
			// transient outage, neither healthy nor proven expired
			summary.Failures++
		}

		if check.Status != enum.CredentialUnknown && check.Status != previous {
			if updErr := s.accounts.UpdateCredentialStatus(ctx, account.Email, check.Status); updErr != nil {
				s.log.Errorf("[%s] failed to update credential status: %v", account.Email, updErr)
			}
		}
	}

	summary.CompletedAt = utils.Now()
	s.log.Infof("health sweep %s done: %d total, %d ok, %d failed, %d newly expired",
		summary.RunID, summary.Total, summary.Success, summary.Failures, summary.NewlyExpired)

	return summary, nil
}

func (s *healthService) CheckAccount(ctx context.Context, email string) (*models.AccountHealthCheck, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "healthService.CheckAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, email)

	account, err := s.accounts.Get(ctx, email)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if account == nil || account.IsDeleted {
		return nil, er.ErrAccountNotFound
	}

	previous := account.CredentialStatus
	check := s.probe(ctx, account)

	if recErr := s.checks.Record(ctx, check); recErr != nil {
		s.log.Errorf("[%s] failed to record health check: %v", email, recErr)
	}
	if check.Status != enum.CredentialUnknown && check.Status != previous {
		if updErr := s.accounts.UpdateCredentialStatus(ctx, email, check.Status); updErr != nil {
			s.log.Errorf("[%s] failed to update credential status: %v", email, updErr)
		}
		if check.Status == enum.CredentialExpired || check.Status == enum.CredentialInvalid {
			s.notifyExpired(ctx, email, check.Detail)
		}
	}

	return check, nil
}

// probe refreshes the token from scratch and opens one protocol session with
// it. A cached token would mask a revoked refresh token, so the cache is
// bypassed on purpose.
func (s *healthService) probe(ctx context.Context, account *models.Account) *models.AccountHealthCheck {
	check := &models.AccountHealthCheck{
		Email:     account.Email,
		CheckedAt: utils.Now(),
	}

	token, err := s.oauth.ForceRefresh(ctx, account)
	if err != nil {
		check.Detail = err.Error()
		if er.IsInvalidGrant(err) {
			check.Status = enum.CredentialExpired
		} else {
			check.Status = enum.CredentialUnknown
		}
		return check
	}

	session, err := s.factory.Connect(ctx, account.Email, token.Token)
	if err != nil {
		check.Detail = err.Error()
		if er.IsAuthFailure(err) || er.IsInvalidGrant(err) {
			check.Status = enum.CredentialExpired
		} else {
			check.Status = enum.CredentialUnknown
		}
		return check
	}
	session.Logout()

	check.Status = enum.CredentialHealthy
	return check
}

func (s *healthService) notifyExpired(ctx context.Context, email, reason string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAccountExpired(ctx, email, reason); err != nil {
		s.log.Warnf("[%s] failed to publish expiry event: %v", email, err)
	}
}
