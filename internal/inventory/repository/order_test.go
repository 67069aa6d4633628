package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRepository_MarkOverdueDelayed(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewOrderRepository(mockDB.DB)

	mockDB.ExpectExec("UPDATE purchase_orders SET status = $1").
		WithArgs(repository.OrderStatusDelayed, repository.OrderStatusOrdered).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.MarkOverdueDelayed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	mockDB.ExpectationsWereMet(t)
}

func TestOrderRepository_MarkDelivered_AlreadyDelivered(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewOrderRepository(mockDB.DB)

	mockDB.ExpectQuery("UPDATE purchase_orders SET").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.MarkDelivered(context.Background(), mockDB.DB, "order-1", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	mockDB.ExpectationsWereMet(t)
}

func TestOrderRepository_HasOutstanding(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewOrderRepository(mockDB.DB)

	mockDB.ExpectQuery("SELECT EXISTS").
		WithArgs("MB-500").
		WillReturnRows(testutil.MockRows("exists").AddRow(true))

	outstanding, err := repo.HasOutstanding(context.Background(), "MB-500")
	require.NoError(t, err)
	assert.True(t, outstanding)

	mockDB.ExpectationsWereMet(t)
}

func TestOrderRepository_FindOutstandingByProduct_None(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewOrderRepository(mockDB.DB)

	mockDB.ExpectQuery("SELECT * FROM purchase_orders").
		WithArgs("MB-500").
		WillReturnError(sql.ErrNoRows)

	order, err := repo.FindOutstandingByProduct(context.Background(), mockDB.DB, "MB-500")
	require.NoError(t, err)
	assert.Nil(t, order)

	mockDB.ExpectationsWereMet(t)
}

func TestOrderRepository_ListActive(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewOrderRepository(mockDB.DB)

	rows := sqlmock.NewRows([]string{
		"id", "lot_id", "quantity_ordered", "ordered_by", "ordered_by_name",
		"order_date", "expected_delivery", "status", "delivered_at", "po_reference",
		"product_code", "product_name", "lot_number", "expiry_date",
	}).
		AddRow("order-1", nil, 10, nil, nil, testTime, testTime.Add(72*time.Hour),
			repository.OrderStatusOrdered, nil, nil, "MB-500", "Microtome Blades", "UNKNOWN", nil).
		AddRow("order-2", nil, 5, nil, nil, testTime, testTime.Add(-24*time.Hour),
			repository.OrderStatusDelayed, nil, nil, "ST-220", "Staining Kit", "LOT9", nil)

	mockDB.ExpectQuery("SELECT * FROM purchase_orders").
		WithArgs(float64(168)).
		WillReturnRows(rows)

	orders, err := repo.ListActive(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, repository.OrderStatusOrdered, orders[0].Status)
	assert.Equal(t, repository.OrderStatusDelayed, orders[1].Status)

	mockDB.ExpectationsWereMet(t)
}
