package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/internal/utils"
)

type backupRepository struct {
	db *gorm.DB
}

func NewBackupRepository(db *gorm.DB) interfaces.BackupStore {
	return &backupRepository{db: db}
}

func (r *backupRepository) Ping(ctx context.Context) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "backupRepository.Ping")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	sqlDB, err := r.db.DB()
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *backupRepository) GetRecord(ctx context.Context, email string) (*models.AccountBackup, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "backupRepository.GetRecord")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, email)

	var record models.AccountBackup
	err := r.db.First(&record, "email = ?", email).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &record, nil
}

func (r *backupRepository) ListRecords(ctx context.Context) ([]*models.AccountBackup, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "backupRepository.ListRecords")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var records []*models.AccountBackup
	result := r.db.Order("email asc").Find(&records)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return nil, result.Error
	}
	return records, nil
}

func (r *backupRepository) SaveRecord(ctx context.Context, record *models.AccountBackup) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "backupRepository.SaveRecord")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, record.Email)

	record.UpdatedAt = utils.Now()
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		UpdateAll: true,
	}).Create(record).Error
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (r *backupRepository) MarkDeleted(ctx context.Context, email, source string) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "backupRepository.MarkDeleted")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, email)

	err := r.db.Model(&models.AccountBackup{}).
		Where("email = ?", email).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"source":     source,
			"updated_at": utils.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}
