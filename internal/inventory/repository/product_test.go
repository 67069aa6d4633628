package repository_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRepository_GetByCode_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewProductRepository(mockDB.DB)

	mockDB.ExpectQuery("SELECT * FROM products WHERE LOWER(product_code) = LOWER($1)").
		WithArgs("NOPE").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByCode(context.Background(), "NOPE")
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PRODUCT_NOT_FOUND", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestProductRepository_ListLowStock(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewProductRepository(mockDB.DB)

	rows := testutil.MockRows(
		"id", "product_code", "name", "supplier", "threshold", "lead_time_days",
		"created_at", "updated_at", "total_stock", "remaining_parts",
	).AddRow("prod-1", "MB-500", "Microtome Blades", "LEICA", 5, 2, testTime, testTime, "2.00", 3)

	mockDB.ExpectQuery("FROM products p").WillReturnRows(rows)

	products, err := repo.ListLowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "MB-500", products[0].ProductCode)
	assert.Equal(t, "2", products[0].TotalStock.String())
	assert.Equal(t, 3, products[0].RemainingParts)

	mockDB.ExpectationsWereMet(t)
}

func TestProductRepository_DuplicateNames(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewProductRepository(mockDB.DB)

	mockDB.ExpectQuery("GROUP BY LOWER(TRIM(name))").
		WillReturnRows(testutil.MockRows("min").AddRow("Eosin Y"))

	names, err := repo.DuplicateNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Eosin Y"}, names)

	mockDB.ExpectationsWereMet(t)
}
