package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/tracing"
)

type healthCheckRepository struct {
	db *gorm.DB
}

func NewHealthCheckRepository(db *gorm.DB) interfaces.HealthCheckRepository {
	return &healthCheckRepository{db: db}
}

func (r *healthCheckRepository) Record(ctx context.Context, check *models.AccountHealthCheck) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "healthCheckRepository.Record")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, check.Email)

	err := r.db.Create(check).Error
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (r *healthCheckRepository) LastByEmail(ctx context.Context, email string) (*models.AccountHealthCheck, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "healthCheckRepository.LastByEmail")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, email)

	var check models.AccountHealthCheck
	err := r.db.Where("email = ?", email).Order("checked_at desc").First(&check).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &check, nil
}
