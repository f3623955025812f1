package persistence

import (
	"context"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCustomerPaymentScheduleRepository implements finance.CustomerPaymentScheduleRepository using GORM
type GormCustomerPaymentScheduleRepository struct {
	db *gorm.DB
}

// NewGormCustomerPaymentScheduleRepository creates a new GormCustomerPaymentScheduleRepository
func NewGormCustomerPaymentScheduleRepository(db *gorm.DB) *GormCustomerPaymentScheduleRepository {
	return &GormCustomerPaymentScheduleRepository{db: db}
}

func (r *GormCustomerPaymentScheduleRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.CustomerPaymentSchedule, error) {
	return r.findOne(r.db.WithContext(ctx), id)
}

func (r *GormCustomerPaymentScheduleRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.CustomerPaymentSchedule, error) {
	return r.findOne(forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormCustomerPaymentScheduleRepository) findOne(db *gorm.DB, id uuid.UUID) (*finance.CustomerPaymentSchedule, error) {
	var model models.CustomerPaymentScheduleModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "payment schedule")
	}
	return model.ToDomain(), nil
}

// FindActiveByCustomer returns the customer's active schedules, next due first
func (r *GormCustomerPaymentScheduleRepository) FindActiveByCustomer(ctx context.Context, customerID uuid.UUID) ([]*finance.CustomerPaymentSchedule, error) {
	var rows []models.CustomerPaymentScheduleModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, finance.ScheduleStatusActive).
		Order("next_payment_date IS NULL, next_payment_date ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	schedules := make([]*finance.CustomerPaymentSchedule, len(rows))
	for i := range rows {
		schedules[i] = rows[i].ToDomain()
	}
	return schedules, nil
}

func (r *GormCustomerPaymentScheduleRepository) Save(ctx context.Context, schedule *finance.CustomerPaymentSchedule) error {
	return saveVersioned(ctx, r.db, schedule, models.CustomerPaymentScheduleModelFromDomain(schedule))
}

var _ finance.CustomerPaymentScheduleRepository = (*GormCustomerPaymentScheduleRepository)(nil)
