package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveVersioned_ConflictOnStaleVersion(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormSaleRepository(db.DB)

	sale, err := trade.NewSale(uuid.New(), "INV-MOCK", amount(100), testDay, nil, testDay)
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE "sales" SET .* WHERE \(?id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "sales" WHERE id = \$1`).
		WithArgs(sale.ID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err = repo.Save(context.Background(), sale)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Equal(t, 1, sale.GetVersion())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveVersioned_UpdateAdvancesVersion(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormSaleRepository(db.DB)

	sale, err := trade.NewSale(uuid.New(), "INV-MOCK", amount(100), testDay, nil, testDay)
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE "sales" SET .*"version"=.* WHERE \(?id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), sale))
	assert.Equal(t, 2, sale.GetVersion())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestForUpdate_LocksRowsOnPostgres(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormSaleRepository(db.DB)
	id := uuid.New()
	customerID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "sales" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "invoice_number", "customer_id", "total_amount", "paid_amount", "outstanding_amount", "payment_status", "version",
		}).AddRow(id.String(), "INV-LOCK", customerID.String(), "100.00", "0.00", "100.00", "unpaid", 3))

	sale, err := repo.FindByIDForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, sale.ID)
	assert.Equal(t, 3, sale.GetVersion())
	assert.Equal(t, trade.PaymentStatusUnpaid, sale.PaymentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestForUpdate_LocksOutstandingSet(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormSaleRepository(db.DB)

	mock.ExpectQuery(`SELECT \* FROM "sales" WHERE \(?customer_id = \$1 AND payment_status IN .*ORDER BY due_date IS NULL, due_date ASC, sale_date ASC.* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	sales, err := repo.FindOutstandingByCustomerForUpdate(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, sales)
	assert.NoError(t, mock.ExpectationsWereMet())
}
