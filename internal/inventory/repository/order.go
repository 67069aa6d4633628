package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// Purchase order states. Delivered is terminal.
const (
	OrderStatusOrdered   = "Ordered"
	OrderStatusDelayed   = "Delayed"
	OrderStatusDelivered = "Delivered"
)

// PurchaseOrder tracks a replenishment request. Product and lot identity are
// snapshotted at creation so the order stays readable if the lot goes away.
type PurchaseOrder struct {
	ID               string     `db:"id" json:"id"`
	LotID            *string    `db:"lot_id" json:"lot_id,omitempty"`
	QuantityOrdered  int        `db:"quantity_ordered" json:"quantity_ordered"`
	OrderedBy        *string    `db:"ordered_by" json:"ordered_by,omitempty"`
	OrderedByName    *string    `db:"ordered_by_name" json:"ordered_by_name,omitempty"`
	OrderDate        time.Time  `db:"order_date" json:"order_date"`
	ExpectedDelivery time.Time  `db:"expected_delivery" json:"expected_delivery"`
	Status           string     `db:"status" json:"status"`
	DeliveredAt      *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	POReference      *string    `db:"po_reference" json:"po_reference,omitempty"`
	ProductCode      string     `db:"product_code" json:"product_code"`
	ProductName      string     `db:"product_name" json:"product_name"`
	LotNumber        string     `db:"lot_number" json:"lot_number"`
	ExpiryDate       *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
}

// CompletionLog is the append-only record written when a purchase order is
// completed through a receipt
type CompletionLog struct {
	ID              string     `db:"id" json:"id"`
	PurchaseOrderID *string    `db:"purchase_order_id" json:"purchase_order_id,omitempty"`
	ProductCode     string     `db:"product_code" json:"product_code"`
	ProductName     string     `db:"product_name" json:"product_name"`
	LotNumber       string     `db:"lot_number" json:"lot_number"`
	ExpiryDate      *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	QuantityOrdered int        `db:"quantity_ordered" json:"quantity_ordered"`
	OrderedBy       *string    `db:"ordered_by" json:"ordered_by,omitempty"`
	CompletedBy     *string    `db:"completed_by" json:"completed_by,omitempty"`
	OrderDate       time.Time  `db:"order_date" json:"order_date"`
	CompletedAt     time.Time  `db:"completed_at" json:"completed_at"`
	Remarks         *string    `db:"remarks" json:"remarks,omitempty"`
}

// OrderRepository handles purchase order persistence
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create creates a new purchase order
func (r *OrderRepository) Create(ctx context.Context, order *PurchaseOrder) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.Status == "" {
		order.Status = OrderStatusOrdered
	}

	query := `
		INSERT INTO purchase_orders (
			id, lot_id, quantity_ordered, ordered_by, ordered_by_name,
			expected_delivery, status, delivered_at, po_reference,
			product_code, product_name, lot_number, expiry_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING order_date
	`

	return r.db.QueryRowxContext(ctx, query,
		order.ID, order.LotID, order.QuantityOrdered, order.OrderedBy, order.OrderedByName,
		order.ExpectedDelivery, order.Status, order.DeliveredAt, order.POReference,
		order.ProductCode, order.ProductName, order.LotNumber, order.ExpiryDate,
	).Scan(&order.OrderDate)
}

// GetByID gets a purchase order by ID
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*PurchaseOrder, error) {
	var order PurchaseOrder
	query := `SELECT * FROM purchase_orders WHERE id = $1`
	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("purchase order")
		}
		return nil, err
	}
	return &order, nil
}

// MarkOverdueDelayed flips every Ordered order whose expected delivery has
// passed to Delayed. The transition is lazy: it runs before reads of the
// order list rather than on a schedule, and is persisted so later reads see
// Delayed without recomputation.
func (r *OrderRepository) MarkOverdueDelayed(ctx context.Context) (int64, error) {
	query := `
		UPDATE purchase_orders SET status = $1
		WHERE status = $2 AND expected_delivery < NOW()
	`
	result, err := r.db.ExecContext(ctx, query, OrderStatusDelayed, OrderStatusOrdered)
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// ListActive lists orders still in flight plus those delivered within the
// retention window, newest first
func (r *OrderRepository) ListActive(ctx context.Context, retention time.Duration) ([]*PurchaseOrder, error) {
	var orders []*PurchaseOrder
	query := `
		SELECT * FROM purchase_orders
		WHERE status IN ('Ordered', 'Delayed')
		OR (status = 'Delivered' AND delivered_at >= NOW() - INTERVAL '1 hour' * $1)
		ORDER BY order_date DESC
	`
	if err := r.db.SelectContext(ctx, &orders, query, retention.Hours()); err != nil {
		return nil, err
	}
	return orders, nil
}

// HasOutstanding reports whether a product code has an Ordered or Delayed
// purchase order
func (r *OrderRepository) HasOutstanding(ctx context.Context, productCode string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM purchase_orders
			WHERE product_code = $1 AND status IN ('Ordered', 'Delayed')
		)
	`
	if err := r.db.GetContext(ctx, &exists, query, productCode); err != nil {
		return false, err
	}
	return exists, nil
}

// FindOutstandingByProduct returns the most recent Ordered or Delayed order
// for a product code, or nil when none exists
func (r *OrderRepository) FindOutstandingByProduct(ctx context.Context, q sqlx.ExtContext, productCode string) (*PurchaseOrder, error) {
	var order PurchaseOrder
	query := `
		SELECT * FROM purchase_orders
		WHERE product_code = $1 AND status IN ('Ordered', 'Delayed')
		ORDER BY order_date DESC LIMIT 1
	`
	if err := sqlx.GetContext(ctx, q, &order, query, productCode); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// MarkDelivered transitions an order to Delivered and stamps delivered_at.
// Delivered is terminal; an already-delivered order is left untouched.
func (r *OrderRepository) MarkDelivered(ctx context.Context, q sqlx.ExtContext, id string, lotID *string) (*PurchaseOrder, error) {
	var order PurchaseOrder
	query := `
		UPDATE purchase_orders SET
			status = $2, delivered_at = NOW(), lot_id = COALESCE($3, lot_id)
		WHERE id = $1 AND status <> $2
		RETURNING *
	`
	row := q.QueryRowxContext(ctx, query, id, OrderStatusDelivered, lotID)
	if err := row.StructScan(&order); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Conflict("purchase order is already delivered")
		}
		return nil, err
	}
	return &order, nil
}

// CreateCompletionLog appends a completion log entry
func (r *OrderRepository) CreateCompletionLog(ctx context.Context, q sqlx.ExtContext, log *CompletionLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}

	query := `
		INSERT INTO po_completion_logs (
			id, purchase_order_id, product_code, product_name, lot_number, expiry_date,
			quantity_ordered, ordered_by, completed_by, order_date, remarks
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING completed_at
	`

	return q.QueryRowxContext(ctx, query,
		log.ID, log.PurchaseOrderID, log.ProductCode, log.ProductName, log.LotNumber,
		log.ExpiryDate, log.QuantityOrdered, log.OrderedBy, log.CompletedBy,
		log.OrderDate, log.Remarks,
	).Scan(&log.CompletedAt)
}

// ListCompletionLogs lists the most recent completion logs
func (r *OrderRepository) ListCompletionLogs(ctx context.Context, limit int) ([]*CompletionLog, error) {
	var logs []*CompletionLog
	query := `SELECT * FROM po_completion_logs ORDER BY completed_at DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &logs, query, limit); err != nil {
		return nil, err
	}
	return logs, nil
}

// HasOverdueUndelivered reports whether any order past its expected delivery
// is not yet Delivered
func (r *OrderRepository) HasOverdueUndelivered(ctx context.Context) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM purchase_orders
			WHERE expected_delivery < NOW() AND status <> 'Delivered'
		)
	`
	if err := r.db.GetContext(ctx, &exists, query); err != nil {
		return false, err
	}
	return exists, nil
}
