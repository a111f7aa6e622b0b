package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos-settlement-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

const orderColumns = `id, tenant_id, order_number, customer_id, total_amount, paid_amount,
	change_amount, payment_status, payment_method, status, created_at, updated_at`

// GetByID fetches an order by UUID.
func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)
	return r.scanOrder(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches an order by UUID with a row lock, within a
// database transaction.
func (r *OrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1 FOR UPDATE`, orderColumns)
	return r.scanOrder(tx.QueryRow(ctx, query, id))
}

// UpdateSettlement writes the payment-derived fields of an order within a
// database transaction.
func (r *OrderRepo) UpdateSettlement(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, paidAmount, changeAmount int64, status domain.OrderPaymentStatus, method domain.PaymentMethod) error {
	query := `UPDATE orders SET paid_amount = $1, change_amount = $2, payment_status = $3,
		payment_method = $4, updated_at = $5 WHERE id = $6`

	tag, err := tx.Exec(ctx, query, paidAmount, changeAmount, status, method, time.Now(), orderID)
	if err != nil {
		return fmt.Errorf("update order settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", orderID)
	}
	return nil
}

// ListPaidByDate fetches orders fully paid within the day window, with their
// items attached.
func (r *OrderRepo) ListPaidByDate(ctx context.Context, tenantID uuid.UUID, dayStart, dayEnd time.Time) ([]domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders
		WHERE tenant_id = $1 AND payment_status = 'PAID' AND updated_at >= $2 AND updated_at < $3
		ORDER BY updated_at`, orderColumns)

	rows, err := r.pool.Query(ctx, query, tenantID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list paid orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o := domain.Order{}
		err := rows.Scan(
			&o.ID, &o.TenantID, &o.OrderNumber, &o.CustomerID,
			&o.TotalAmount, &o.PaidAmount, &o.ChangeAmount,
			&o.PaymentStatus, &o.PaymentMethod, &o.Status,
			&o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		items, err := r.listItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (r *OrderRepo) listItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	query := `SELECT item_id, quantity, unit_price FROM order_items WHERE order_id = $1`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		it := domain.OrderItem{}
		if err := rows.Scan(&it.ItemID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order item rows: %w", err)
	}
	return items, nil
}

// scanOrder is a helper to scan a single row into an Order.
func (r *OrderRepo) scanOrder(row pgx.Row) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID, &o.TenantID, &o.OrderNumber, &o.CustomerID,
		&o.TotalAmount, &o.PaidAmount, &o.ChangeAmount,
		&o.PaymentStatus, &o.PaymentMethod, &o.Status,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}
