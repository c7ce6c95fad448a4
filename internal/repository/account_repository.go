package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/enum"
	er "github.com/mailvault/mailvault/internal/errors"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/internal/utils"
)

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) interfaces.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) List(ctx context.Context) ([]*models.Account, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "accountRepository.List")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []*models.Account
	result := r.db.Where("is_deleted = ?", false).Order("email asc").Find(&accounts)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return nil, result.Error
	}
	return accounts, nil
}

func (r *accountRepository) ListAll(ctx context.Context) ([]*models.Account, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "accountRepository.ListAll")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []*models.Account
	result := r.db.Order("email asc").Find(&accounts)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return nil, result.Error
	}
	return accounts, nil
}

func (r *accountRepository) Get(ctx context.Context, email string) (*models.Account, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "accountRepository.Get")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, email)

	var account models.Account
	err := r.db.First(&account, "email = ?", email).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) Upsert(ctx context.Context, account *models.Account) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "accountRepository.Upsert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, account.Email)

	if account.Email == "" || account.RefreshToken == "" || account.ClientID == "" {
		tracing.TraceErr(span, er.ErrAccountIncomplete)
		return er.ErrAccountIncomplete
	}

	account.UpdatedAt = utils.Now()
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		UpdateAll: true,
	}).Create(account).Error
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (r *accountRepository) Remove(ctx context.Context, email string) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "accountRepository.Remove")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, email)

	result := r.db.Model(&models.Account{}).
		Where("email = ? AND is_deleted = ?", email, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return er.ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) UpdateCredentialStatus(ctx context.Context, email string, status enum.CredentialStatus) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "accountRepository.UpdateCredentialStatus")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, email)
	span.SetTag("status", string(status))

	err := r.db.Model(&models.Account{}).
		Where("email = ?", email).
		Updates(map[string]interface{}{
			"credential_status": status,
			"last_checked_at":   utils.NowPtr(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}
