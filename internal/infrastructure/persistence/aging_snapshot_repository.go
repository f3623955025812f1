package persistence

import (
	"context"
	"time"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCustomerAgingSnapshotRepository implements finance.CustomerAgingSnapshotRepository using GORM.
// Snapshots are insert-only.
type GormCustomerAgingSnapshotRepository struct {
	db *gorm.DB
}

// NewGormCustomerAgingSnapshotRepository creates a new GormCustomerAgingSnapshotRepository
func NewGormCustomerAgingSnapshotRepository(db *gorm.DB) *GormCustomerAgingSnapshotRepository {
	return &GormCustomerAgingSnapshotRepository{db: db}
}

// Create inserts a snapshot
func (r *GormCustomerAgingSnapshotRepository) Create(ctx context.Context, snapshot *finance.CustomerAgingSnapshot) error {
	model := models.CustomerAgingSnapshotModelFromDomain(snapshot)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err, "aging snapshot")
	}
	return nil
}

// Exists reports whether a snapshot of snapshotType was taken for the customer on date's calendar day
func (r *GormCustomerAgingSnapshotRepository) Exists(ctx context.Context, customerID uuid.UUID, snapshotType finance.SnapshotType, date time.Time) (bool, error) {
	from, to := dayBounds(date)
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.CustomerAgingSnapshotModel{}).
		Where("customer_id = ? AND snapshot_type = ? AND snapshot_date >= ? AND snapshot_date < ?", customerID, snapshotType, from, to).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindLatestByCustomer returns the most recent snapshot of a customer
func (r *GormCustomerAgingSnapshotRepository) FindLatestByCustomer(ctx context.Context, customerID uuid.UUID) (*finance.CustomerAgingSnapshot, error) {
	var model models.CustomerAgingSnapshotModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("snapshot_date DESC, created_at DESC").
		First(&model).Error; err != nil {
		return nil, translateError(err, "aging snapshot")
	}
	return model.ToDomain(), nil
}

// FindByDate returns every snapshot taken on date's calendar day, ordered by customer
func (r *GormCustomerAgingSnapshotRepository) FindByDate(ctx context.Context, date time.Time) ([]*finance.CustomerAgingSnapshot, error) {
	from, to := dayBounds(date)
	var rows []models.CustomerAgingSnapshotModel
	if err := r.db.WithContext(ctx).
		Where("snapshot_date >= ? AND snapshot_date < ?", from, to).
		Order("customer_id ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	snapshots := make([]*finance.CustomerAgingSnapshot, len(rows))
	for i := range rows {
		snapshots[i] = rows[i].ToDomain()
	}
	return snapshots, nil
}

// dayBounds returns [start of day, start of next day) in date's location
func dayBounds(date time.Time) (time.Time, time.Time) {
	from := shared.StartOfDay(date)
	return from, from.AddDate(0, 0, 1)
}

var _ finance.CustomerAgingSnapshotRepository = (*GormCustomerAgingSnapshotRepository)(nil)
