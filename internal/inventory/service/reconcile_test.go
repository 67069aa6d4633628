package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type reconcileFixture struct {
	mockDB    *testutil.MockDB
	publisher *testutil.MockPublisher
	svc       *service.ReconcileService
}

func newReconcileFixture(t *testing.T, policy string) *reconcileFixture {
	mockDB := testutil.NewMockDB(t)
	log := logger.New("test", config.EnvDevelopment)

	productRepo := repository.NewProductRepository(mockDB.DB)
	lotRepo := repository.NewLotRepository(mockDB.DB)
	ledgerRepo := repository.NewLedgerRepository(mockDB.DB)
	orderRepo := repository.NewOrderRepository(mockDB.DB)
	mappingRepo := repository.NewMappingRepository(mockDB.DB)

	scan := service.NewScanService(productRepo, lotRepo, mappingRepo, log)
	publisher := testutil.NewMockPublisher()
	eventPub := events.NewWithPublisher(publisher, log)

	svc := service.NewReconcileService(
		mockDB.DB, scan, productRepo, lotRepo, ledgerRepo, orderRepo,
		eventPub, policy, log,
	)

	return &reconcileFixture{mockDB: mockDB, publisher: publisher, svc: svc}
}

func productRow() *sqlmock.Rows {
	return testutil.MockRows(
		"id", "product_code", "name", "supplier", "threshold", "lead_time_days",
		"created_at", "updated_at",
	).AddRow("prod-1", "HX-100", "Hematoxylin", "LEICA", 5, 2, testTime, testTime)
}

func lotColumns() []string {
	return []string{
		"id", "product_id", "lot_number", "expiry_date", "current_stock",
		"units_per_quantity", "accumulated_partial", "product_feature", "location_id",
		"created_at", "updated_at",
	}
}

func orderColumns() []string {
	return []string{
		"id", "lot_id", "quantity_ordered", "ordered_by", "ordered_by_name",
		"order_date", "expected_delivery", "status", "delivered_at", "po_reference",
		"product_code", "product_name", "lot_number", "expiry_date",
	}
}

func (f *reconcileFixture) expectProductLookup() {
	f.mockDB.ExpectQuery("SELECT * FROM products WHERE LOWER(product_code) = LOWER($1)").
		WithArgs("HX-100").
		WillReturnRows(productRow())
}

func TestWithdraw_PartModeRollsOver(t *testing.T) {
	f := newReconcileFixture(t, config.StockPolicyAllow)
	defer f.mockDB.Close()

	f.expectProductLookup()
	f.mockDB.ExpectQuery("SELECT * FROM lots WHERE product_id = $1").
		WithArgs("prod-1", "LOT42").
		WillReturnRows(testutil.MockRows(lotColumns()...).
			AddRow("lot-1", "prod-1", "LOT42", nil, "10.00", 10, 7, "unit", nil, testTime, testTime))
	f.mockDB.ExpectBegin()
	f.mockDB.ExpectQuery("UPDATE lots SET").
		WithArgs("lot-1", 5).
		WillReturnRows(testutil.MockRows("current_stock", "accumulated_partial", "units_per_quantity").
			AddRow("9", 2, 10))
	f.mockDB.ExpectQuery("INSERT INTO withdrawals").
		WillReturnRows(testutil.MockRows("created_at").AddRow(testTime))
	f.mockDB.ExpectCommit()

	w, err := f.svc.Withdraw(context.Background(), service.WithdrawRequest{
		ProductCode: "HX-100",
		LotNumber:   "LOT42",
		Mode:        service.WithdrawModePart,
		Parts:       5,
	})
	require.NoError(t, err)

	assert.Equal(t, repository.WithdrawalTypePart, w.WithdrawalType)
	assert.Equal(t, "1", w.Quantity.String())
	assert.Equal(t, 5, w.PartsWithdrawn)
	assert.Equal(t, "HX-100", w.ProductCode)

	f.publisher.AssertEventPublished(t, messaging.EventWithdrawalRecorded)
	f.mockDB.ExpectationsWereMet(t)
}

func TestWithdraw_LotNotFound(t *testing.T) {
	f := newReconcileFixture(t, config.StockPolicyAllow)
	defer f.mockDB.Close()

	f.expectProductLookup()
	f.mockDB.ExpectQuery("SELECT * FROM lots WHERE product_id = $1").
		WithArgs("prod-1", "MISSING").
		WillReturnError(sql.ErrNoRows)

	_, err := f.svc.Withdraw(context.Background(), service.WithdrawRequest{
		ProductCode: "HX-100",
		LotNumber:   "MISSING",
		Mode:        service.WithdrawModeFull,
	})
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "LOT_NOT_FOUND", appErr.Code)

	f.publisher.AssertNoEventsPublished(t)
	f.mockDB.ExpectationsWereMet(t)
}

func TestWithdraw_PartModeOnVolumeLotRejected(t *testing.T) {
	f := newReconcileFixture(t, config.StockPolicyAllow)
	defer f.mockDB.Close()

	f.expectProductLookup()
	f.mockDB.ExpectQuery("SELECT * FROM lots WHERE product_id = $1").
		WithArgs("prod-1", "LOT42").
		WillReturnRows(testutil.MockRows(lotColumns()...).
			AddRow("lot-1", "prod-1", "LOT42", nil, "500.00", 1, 0, "volume", nil, testTime, testTime))

	_, err := f.svc.Withdraw(context.Background(), service.WithdrawRequest{
		ProductCode: "HX-100",
		LotNumber:   "LOT42",
		Mode:        service.WithdrawModePart,
		Parts:       3,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	f.publisher.AssertNoEventsPublished(t)
	f.mockDB.ExpectationsWereMet(t)
}

// A withdrawal must never decrement stock without its ledger entry; a failed
// append rolls the debit back.
func TestWithdraw_LedgerFailureRollsBack(t *testing.T) {
	f := newReconcileFixture(t, config.StockPolicyAllow)
	defer f.mockDB.Close()

	f.expectProductLookup()
	f.mockDB.ExpectQuery("SELECT * FROM lots WHERE product_id = $1").
		WithArgs("prod-1", "LOT42").
		WillReturnRows(testutil.MockRows(lotColumns()...).
			AddRow("lot-1", "prod-1", "LOT42", nil, "10.00", 1, 0, "unit", nil, testTime, testTime))
	f.mockDB.ExpectBegin()
	f.mockDB.ExpectQuery("UPDATE lots SET").
		WillReturnRows(testutil.MockRows("current_stock").AddRow("9"))
	f.mockDB.ExpectQuery("INSERT INTO withdrawals").
		WillReturnError(assert.AnError)
	f.mockDB.ExpectRollback()

	_, err := f.svc.Withdraw(context.Background(), service.WithdrawRequest{
		ProductCode: "HX-100",
		LotNumber:   "LOT42",
		Mode:        service.WithdrawModeFull,
		Quantity:    decimal.NewFromInt(1),
	})
	require.Error(t, err)

	f.publisher.AssertNoEventsPublished(t)
	f.mockDB.ExpectationsWereMet(t)
}

func TestReceive_QuantityMismatchMutatesNothing(t *testing.T) {
	f := newReconcileFixture(t, config.StockPolicyAllow)
	defer f.mockDB.Close()

	f.expectProductLookup()
	// No transaction is expected: the mismatch must be caught before any
	// lot is touched.

	_, err := f.svc.Receive(context.Background(), service.ReceiveRequest{
		ProductCode:     "HX-100",
		QuantityOrdered: 10,
		Entries: []service.LotBatchEntry{
			{LotNumber: "A", Quantity: 4},
			{LotNumber: "B", Quantity: 5},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrQuantityMismatch))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "QUANTITY_MISMATCH", appErr.Code)

	f.publisher.AssertNoEventsPublished(t)
	f.mockDB.ExpectationsWereMet(t)
}

func TestReceive_ZeroOrderedQuantitySkipsValidation(t *testing.T) {
	f := newReconcileFixture(t, config.StockPolicyAllow)
	defer f.mockDB.Close()

	f.expectProductLookup()
	f.mockDB.ExpectBegin()

	// First lot: created fresh, credited 4.
	f.mockDB.ExpectQuery("INSERT INTO lots").
		WillReturnRows(testutil.MockRows(lotColumns()...).
			AddRow("lot-a", "prod-1", "A", nil, "0.00", 1, 0, "unit", nil, testTime, testTime))
	f.mockDB.ExpectQuery("UPDATE lots SET current_stock = current_stock + $2").
		WithArgs("lot-a", testutil.AnyDecimal{}).
		WillReturnRows(testutil.MockRows("current_stock").AddRow("4"))
	f.mockDB.ExpectQuery("INSERT INTO stock_registrations").
		WillReturnRows(testutil.MockRows("created_at").AddRow(testTime))

	// Second lot: already existed with stock 10, credited 6.
	f.mockDB.ExpectQuery("INSERT INTO lots").
		WillReturnRows(testutil.MockRows(lotColumns()...).
			AddRow("lot-b", "prod-1", "B", nil, "10.00", 1, 0, "unit", nil, testTime, testTime))
	f.mockDB.ExpectQuery("UPDATE lots SET current_stock = current_stock + $2").
		WithArgs("lot-b", testutil.AnyDecimal{}).
		WillReturnRows(testutil.MockRows("current_stock").AddRow("16"))
	f.mockDB.ExpectQuery("INSERT INTO stock_registrations").
		WillReturnRows(testutil.MockRows("created_at").AddRow(testTime))

	f.mockDB.ExpectQuery("SELECT * FROM purchase_orders").
		WithArgs("HX-100").
		WillReturnError(sql.ErrNoRows)
	f.mockDB.ExpectCommit()

	result, err := f.svc.Receive(context.Background(), service.ReceiveRequest{
		ProductCode: "HX-100",
		Entries: []service.LotBatchEntry{
			{LotNumber: "A", Quantity: 4},
			{LotNumber: "B", Quantity: 6},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Lots, 2)
	assert.Equal(t, 10, result.TotalReceived)
	assert.Nil(t, result.Order)
	assert.Equal(t, "16", result.Lots[1].CurrentStock.String())

	f.publisher.AssertEventPublished(t, messaging.EventStockReceived)
	f.mockDB.ExpectationsWereMet(t)
}

func TestReceive_CompletesOutstandingOrder(t *testing.T) {
	f := newReconcileFixture(t, config.StockPolicyAllow)
	defer f.mockDB.Close()

	f.expectProductLookup()
	f.mockDB.ExpectBegin()
	f.mockDB.ExpectQuery("INSERT INTO lots").
		WillReturnRows(testutil.MockRows(lotColumns()...).
			AddRow("lot-a", "prod-1", "LOT42", nil, "0.00", 1, 0, "unit", nil, testTime, testTime))
	f.mockDB.ExpectQuery("UPDATE lots SET current_stock = current_stock + $2").
		WillReturnRows(testutil.MockRows("current_stock").AddRow("10"))
	f.mockDB.ExpectQuery("INSERT INTO stock_registrations").
		WillReturnRows(testutil.MockRows("created_at").AddRow(testTime))

	f.mockDB.ExpectQuery("SELECT * FROM purchase_orders").
		WithArgs("HX-100").
		WillReturnRows(testutil.MockRows(orderColumns()...).
			AddRow("order-1", nil, 10, nil, nil, testTime, testTime.Add(48*time.Hour),
				repository.OrderStatusOrdered, nil, nil, "HX-100", "Hematoxylin", "UNKNOWN", nil))
	f.mockDB.ExpectQuery("UPDATE purchase_orders SET").
		WillReturnRows(testutil.MockRows(orderColumns()...).
			AddRow("order-1", "lot-a", 10, nil, nil, testTime, testTime.Add(48*time.Hour),
				repository.OrderStatusDelivered, testTime, nil, "HX-100", "Hematoxylin", "UNKNOWN", nil))
	f.mockDB.ExpectQuery("INSERT INTO po_completion_logs").
		WillReturnRows(testutil.MockRows("completed_at").AddRow(testTime))
	f.mockDB.ExpectCommit()

	result, err := f.svc.Receive(context.Background(), service.ReceiveRequest{
		ProductCode:     "HX-100",
		QuantityOrdered: 10,
		Entries: []service.LotBatchEntry{
			{LotNumber: "LOT42", Quantity: 10},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, result.Order)
	assert.Equal(t, repository.OrderStatusDelivered, result.Order.Status)

	f.publisher.AssertEventPublished(t, messaging.EventStockReceived)
	f.publisher.AssertEventPublished(t, messaging.EventOrderDelivered)
	f.mockDB.ExpectationsWereMet(t)
}

func TestDiscard_LogsFullStockAndDeletesLot(t *testing.T) {
	f := newReconcileFixture(t, config.StockPolicyAllow)
	defer f.mockDB.Close()

	f.mockDB.ExpectQuery("SELECT * FROM lots WHERE id = $1").
		WithArgs("lot-1").
		WillReturnRows(testutil.MockRows(lotColumns()...).
			AddRow("lot-1", "prod-1", "LOT42", nil, "7.50", 10, 3, "unit", nil, testTime, testTime))
	f.mockDB.ExpectQuery("SELECT * FROM products WHERE id = $1").
		WithArgs("prod-1").
		WillReturnRows(productRow())

	f.mockDB.ExpectBegin()
	f.mockDB.ExpectQuery("INSERT INTO withdrawals").
		WillReturnRows(testutil.MockRows("created_at").AddRow(testTime))
	f.mockDB.ExpectExec("DELETE FROM lots WHERE id = $1").
		WithArgs("lot-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mockDB.ExpectCommit()

	w, err := f.svc.Discard(context.Background(), "lot-1")
	require.NoError(t, err)

	assert.Equal(t, repository.WithdrawalTypeDiscard, w.WithdrawalType)
	assert.Equal(t, "7.5", w.Quantity.String())
	assert.Equal(t, "LOT42", w.LotNumber)

	f.publisher.AssertEventPublished(t, messaging.EventLotDiscarded)
	f.mockDB.ExpectationsWereMet(t)
}

func TestMarkOrderDelivered_AlreadyDeliveredIsNoOp(t *testing.T) {
	f := newReconcileFixture(t, config.StockPolicyAllow)
	defer f.mockDB.Close()

	f.mockDB.ExpectQuery("SELECT * FROM purchase_orders WHERE id = $1").
		WithArgs("order-1").
		WillReturnRows(testutil.MockRows(orderColumns()...).
			AddRow("order-1", nil, 10, nil, nil, testTime, testTime,
				repository.OrderStatusDelivered, testTime, nil, "HX-100", "Hematoxylin", "UNKNOWN", nil))

	order, err := f.svc.MarkOrderDelivered(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, repository.OrderStatusDelivered, order.Status)

	f.publisher.AssertNoEventsPublished(t)
	f.mockDB.ExpectationsWereMet(t)
}
