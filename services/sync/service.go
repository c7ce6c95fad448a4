package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/lib/pq"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/enum"
	er "github.com/mailvault/mailvault/internal/errors"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/internal/utils"
)

// syncService reconciles the local account registry with the backup store.
// Divergence is detected by checksum, never by timestamps, so clock skew
// between replicas cannot corrupt either side. Both directions are idempotent.
type syncService struct {
	log       logger.Logger
	accounts  interfaces.AccountRepository
	backup    interfaces.BackupStore
	publisher interfaces.EventPublisher
	source    string
}

func NewSyncService(
	log logger.Logger,
	accounts interfaces.AccountRepository,
	backup interfaces.BackupStore,
	publisher interfaces.EventPublisher,
	source string,
) interfaces.SyncService {
	if source == "" {
		source = "mailvault"
	}
	return &syncService{
		log:       log,
		accounts:  accounts,
		backup:    backup,
		publisher: publisher,
		source:    source,
	}
}

// backupPayload is the canonical serialized form of an account. Field order
// is fixed and tags are sorted so identical accounts always hash identically.
type backupPayload struct {
	Email        string   `json:"email"`
	RefreshToken string   `json:"refresh_token"`
	ClientID     string   `json:"client_id"`
	Tags         []string `json:"tags"`
	Note         string   `json:"note"`
}

func serializeAccount(account *models.Account) (string, string) {
	tags := make([]string, len(account.Tags))
	copy(tags, account.Tags)
	sort.Strings(tags)

	payload := backupPayload{
		Email:        account.Email,
		RefreshToken: account.RefreshToken,
		ClientID:     account.ClientID,
		Tags:         tags,
		Note:         utils.GetOrDefault(account.Note, ""),
	}

	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return string(data), hex.EncodeToString(sum[:])
}

func deserializeAccount(record *models.AccountBackup) (*models.Account, error) {
	var payload backupPayload
	if err := json.Unmarshal([]byte(record.Data), &payload); err != nil {
		return nil, errors.Wrapf(err, "malformed backup record for %s", record.Email)
	}
	if payload.Email == "" || payload.RefreshToken == "" || payload.ClientID == "" {
		return nil, errors.Wrapf(er.ErrAccountIncomplete, "backup record for %s", record.Email)
	}

	account := &models.Account{
		Email:        payload.Email,
		RefreshToken: payload.RefreshToken,
		ClientID:     payload.ClientID,
		Tags:         pq.StringArray(payload.Tags),
	}
	if payload.Note != "" {
		account.Note = utils.Ptr(payload.Note)
	}
	return account, nil
}

func (s *syncService) Push(ctx context.Context, policy enum.ConflictPolicy) (*models.SyncOutcome, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.Push")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("policy", policy.String())

	if err := s.backup.Ping(ctx); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(er.ErrSyncUnavailable, err.Error())
	}

	locals, err := s.accounts.ListAll(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	records, err := s.backup.ListRecords(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(er.ErrSyncUnavailable, err.Error())
	}
	remote := make(map[string]*models.AccountBackup, len(records))
	for _, r := range records {
		remote[r.Email] = r
	}

	outcome := &models.SyncOutcome{}
	for _, local := range locals {
		record := remote[local.Email]

		if local.IsDeleted {
			if record != nil && !record.IsDeleted {
				if err := s.backup.MarkDeleted(ctx, local.Email, s.source); err != nil {
					tracing.TraceErr(span, err)
					return nil, errors.Wrap(er.ErrSyncUnavailable, err.Error())
				}
				outcome.MarkedDeleted++
			} else {
				outcome.Skipped++
			}
			continue
		}

		data, checksum := serializeAccount(local)

		switch {
		case record == nil:
			if err := s.saveRecord(ctx, local, data, checksum); err != nil {
				tracing.TraceErr(span, err)
				return nil, errors.Wrap(er.ErrSyncUnavailable, err.Error())
			}
			outcome.Added++
		case record.Checksum == checksum && !record.IsDeleted:
			outcome.Skipped++
		case policy == enum.PreferLocal:
			if err := s.saveRecord(ctx, local, data, checksum); err != nil {
				tracing.TraceErr(span, err)
				return nil, errors.Wrap(er.ErrSyncUnavailable, err.Error())
			}
			outcome.Updated++
		default:
			outcome.Skipped++
		}
	}

	s.notifyCompleted(ctx, enum.SyncPush, outcome)
	s.log.Infof("push sync done: %+v", *outcome)
	return outcome, nil
}

func (s *syncService) Pull(ctx context.Context, policy enum.ConflictPolicy) (*models.SyncOutcome, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.Pull")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("policy", policy.String())

	if err := s.backup.Ping(ctx); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(er.ErrSyncUnavailable, err.Error())
	}

	records, err := s.backup.ListRecords(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(er.ErrSyncUnavailable, err.Error())
	}
	locals, err := s.accounts.ListAll(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	local := make(map[string]*models.Account, len(locals))
	for _, a := range locals {
		local[a.Email] = a
	}

	outcome := &models.SyncOutcome{}
	for _, record := range records {
		existing := local[record.Email]

		if record.IsDeleted {
			if existing != nil && !existing.IsDeleted && policy == enum.PreferRemote {
				if err := s.accounts.Remove(ctx, record.Email); err != nil {
					tracing.TraceErr(span, err)
					return nil, err
				}
				outcome.Removed++
			} else {
				outcome.Skipped++
			}
			continue
		}

		incoming, desErr := deserializeAccount(record)
		if desErr != nil {
			s.log.Warnf("[%s] skipping unreadable backup record: %v", record.Email, desErr)
			outcome.Skipped++
			continue
		}

		switch {
		case existing == nil:
			if err := s.accounts.Upsert(ctx, incoming); err != nil {
				tracing.TraceErr(span, err)
				return nil, err
			}
			outcome.Added++
		case existing.IsDeleted || checksumOf(existing) != record.Checksum:
			if policy != enum.PreferRemote {
				outcome.Skipped++
				continue
			}
			// carry health state over, only the credential payload changes
			incoming.CredentialStatus = existing.CredentialStatus
			incoming.LastCheckedAt = existing.LastCheckedAt
			if err := s.accounts.Upsert(ctx, incoming); err != nil {
				tracing.TraceErr(span, err)
				return nil, err
			}
			outcome.Updated++
		default:
			outcome.Skipped++
		}
	}

	s.notifyCompleted(ctx, enum.SyncPull, outcome)
	s.log.Infof("pull sync done: %+v", *outcome)
	return outcome, nil
}

func (s *syncService) saveRecord(ctx context.Context, account *models.Account, data, checksum string) error {
	return s.backup.SaveRecord(ctx, &models.AccountBackup{
		Email:    account.Email,
		Data:     data,
		Checksum: checksum,
		Tags:     account.Tags,
		Note:     account.Note,
		Source:   s.source,
	})
}

func (s *syncService) notifyCompleted(ctx context.Context, direction enum.SyncDirection, outcome *models.SyncOutcome) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishSyncCompleted(ctx, direction.String(),
		outcome.Added, outcome.Updated, outcome.Removed, outcome.Skipped, outcome.MarkedDeleted)
	if err != nil {
		s.log.Warnf("failed to publish sync event: %v", err)
	}
}

func checksumOf(account *models.Account) string {
	_, checksum := serializeAccount(account)
	return checksum
}
