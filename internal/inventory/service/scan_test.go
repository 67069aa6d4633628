package service_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScanFixture(t *testing.T) (*testutil.MockDB, *service.ScanService) {
	mockDB := testutil.NewMockDB(t)
	log := logger.New("test", config.EnvDevelopment)

	productRepo := repository.NewProductRepository(mockDB.DB)
	lotRepo := repository.NewLotRepository(mockDB.DB)
	mappingRepo := repository.NewMappingRepository(mockDB.DB)

	return mockDB, service.NewScanService(productRepo, lotRepo, mappingRepo, log)
}

// When a literal code and its leading-zero-stripped form both exist as
// distinct products, the literal code must win and the stripped form must
// never be consulted.
func TestResolveProduct_LiteralCodeWins(t *testing.T) {
	mockDB, svc := newScanFixture(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT * FROM products WHERE LOWER(product_code) = LOWER($1)").
		WithArgs("000123").
		WillReturnRows(testutil.MockRows(
			"id", "product_code", "name", "supplier", "threshold", "lead_time_days",
			"created_at", "updated_at",
		).AddRow("prod-lit", "000123", "Buffered Formalin", "LEICA", 5, 2, testTime, testTime))

	product, err := svc.ResolveProduct(context.Background(), "000123")
	require.NoError(t, err)
	assert.Equal(t, "prod-lit", product.ID)
	assert.Equal(t, "000123", product.ProductCode)

	mockDB.ExpectationsWereMet(t)
}

func TestResolveProduct_FallsBackToStrippedCode(t *testing.T) {
	mockDB, svc := newScanFixture(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT * FROM products WHERE LOWER(product_code) = LOWER($1)").
		WithArgs("000123").
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectQuery("SELECT * FROM products WHERE LOWER(product_code) = LOWER($1)").
		WithArgs("123").
		WillReturnRows(testutil.MockRows(
			"id", "product_code", "name", "supplier", "threshold", "lead_time_days",
			"created_at", "updated_at",
		).AddRow("prod-stripped", "123", "Buffered Formalin", "LEICA", 5, 2, testTime, testTime))

	product, err := svc.ResolveProduct(context.Background(), "000123")
	require.NoError(t, err)
	assert.Equal(t, "prod-stripped", product.ID)

	mockDB.ExpectationsWereMet(t)
}
