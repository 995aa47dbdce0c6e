package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/AmanCH3/hamro-grocery-backend/models"
	"github.com/AmanCH3/hamro-grocery-backend/repository"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func mockOrder() *models.Order {
	return &models.Order{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		Status:     models.StatusPendingPayment,
		Items:      []models.OrderItem{{ProductID: uuid.New(), Quantity: 3}},
	}
}

func TestSettleSQL_StatusGuardRunsFirst(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Settle(context.Background(), mockOrder(), repository.Settlement{SettledAt: time.Now()})
	assert.ErrorIs(t, err, repository.ErrOrderNotPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleSQL_StockDecrementIsFloorGuarded(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)
	order := mockOrder()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "stock"=stock - $1 WHERE id = $2 AND stock >= $3`)).
		WithArgs(3, order.Items[0].ProductID, 3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Settle(context.Background(), order, repository.Settlement{SettledAt: time.Now()})
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)
	assert.Equal(t, models.StatusPendingPayment, order.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleSQL_StockLockedInProductOrder(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ffffffff-0000-0000-0000-000000000000")
	order := mockOrder()
	order.Items = []models.OrderItem{
		{ProductID: high, Quantity: 1},
		{ProductID: low, Quantity: 2},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "stock"=stock - $1 WHERE id = $2 AND stock >= $3`)).
		WithArgs(2, low, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "stock"=stock - $1 WHERE id = $2 AND stock >= $3`)).
		WithArgs(1, high, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Settle(context.Background(), order, repository.Settlement{SettledAt: time.Now()})
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)
	assert.Equal(t, high, order.Items[0].ProductID, "caller's item order is untouched")
	assert.NoError(t, mock.ExpectationsWereMet())
}
