package telemetry

import (
	"context"

	"github.com/erp/arap/internal/domain/trade"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormOutstandingProvider sums open balances straight from the document tables.
type GormOutstandingProvider struct {
	db *gorm.DB
}

// NewGormOutstandingProvider creates a new GormOutstandingProvider.
func NewGormOutstandingProvider(db *gorm.DB) *GormOutstandingProvider {
	return &GormOutstandingProvider{db: db}
}

// OutstandingTotals returns the summed outstanding amount of open sales and purchase orders.
func (p *GormOutstandingProvider) OutstandingTotals(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	receivable, err := p.sumOutstanding(ctx, "sales")
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	payable, err := p.sumOutstanding(ctx, "purchase_orders")
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return receivable, payable, nil
}

func (p *GormOutstandingProvider) sumOutstanding(ctx context.Context, table string) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := p.db.WithContext(ctx).
		Table(table).
		Select("COALESCE(SUM(outstanding_amount), 0) AS total").
		Where("deleted_at IS NULL AND payment_status IN ?", trade.OpenPaymentStatuses()).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}
