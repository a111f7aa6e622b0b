package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pos-settlement-engine/internal/core/domain"
	"pos-settlement-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `id, payment_number, order_id, tenant_id, amount, payment_method, payment_status,
	gateway_reference, card_mask, cash_received, failure_reason, parent_payment_id,
	original_payment_id, processed_by, processed_at, created_at`

// Create inserts a new payment ledger row within a database transaction.
func (r *PaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PaymentRecord) error {
	query := `INSERT INTO payments (id, payment_number, order_id, tenant_id, amount, payment_method,
		payment_status, gateway_reference, card_mask, cash_received, failure_reason,
		parent_payment_id, original_payment_id, processed_by, processed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.PaymentNumber, p.OrderID, p.TenantID,
		p.Amount, p.Method, p.Status,
		p.GatewayReference, p.CardMask, p.CashReceived, p.FailureReason,
		p.ParentPaymentID, p.OriginalPaymentID, p.ProcessedBy,
		p.ProcessedAt, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByID fetches a payment by UUID.
func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	return r.scanPayment(r.pool.QueryRow(ctx, query, id))
}

// SumNonFailedByOrder sums the signed amounts of the order's parent rows
// whose status is not FAILED, within a database transaction. Child legs of
// MIXED payments carry a parent_payment_id and are excluded.
func (r *PaymentRepo) SumNonFailedByOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE order_id = $1 AND payment_status <> 'FAILED' AND parent_payment_id IS NULL`

	var sum int64
	if err := tx.QueryRow(ctx, query, orderID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum payments by order: %w", err)
	}
	return sum, nil
}

// UpdateStatus updates a payment's status within a database transaction.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus) error {
	query := `UPDATE payments SET payment_status = $1 WHERE id = $2`

	tag, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment not found: %s", id)
	}
	return nil
}

// SumRefundsByOriginal returns the absolute total already refunded against
// the original payment, within a database transaction. Refund rows carry
// negative amounts, so the sum is negated.
func (r *PaymentRepo) SumRefundsByOriginal(ctx context.Context, tx pgx.Tx, originalID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(-SUM(amount), 0) FROM payments
		WHERE original_payment_id = $1 AND payment_status <> 'FAILED'`

	var sum int64
	if err := tx.QueryRow(ctx, query, originalID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum refunds by original: %w", err)
	}
	return sum, nil
}

// NextSequence returns the next per-tenant payment sequence for the day,
// within a database transaction. Callers hold the order row lock, which
// serializes concurrent settlements per order; gaps across orders are
// acceptable for payment numbers.
func (r *PaymentRepo) NextSequence(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, dayStart, dayEnd time.Time) (int64, error) {
	query := `SELECT COUNT(*) + 1 FROM payments
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3 AND parent_payment_id IS NULL`

	var seq int64
	if err := tx.QueryRow(ctx, query, tenantID, dayStart, dayEnd).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next payment sequence: %w", err)
	}
	return seq, nil
}

// List fetches payments with filtering and pagination.
func (r *PaymentRepo) List(ctx context.Context, params ports.PaymentListParams) ([]domain.PaymentRecord, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", argIdx))
	args = append(args, params.TenantID)
	argIdx++

	if params.OrderID != nil {
		conditions = append(conditions, fmt.Sprintf("order_id = $%d", argIdx))
		args = append(args, *params.OrderID)
		argIdx++
	}
	if params.Method != nil {
		conditions = append(conditions, fmt.Sprintf("payment_method = $%d", argIdx))
		args = append(args, *params.Method)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("payment_status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM payments %s", where)
	var total int64
	err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM payments %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		paymentColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.PaymentRecord
	for rows.Next() {
		p := domain.PaymentRecord{}
		err := rows.Scan(
			&p.ID, &p.PaymentNumber, &p.OrderID, &p.TenantID,
			&p.Amount, &p.Method, &p.Status,
			&p.GatewayReference, &p.CardMask, &p.CashReceived, &p.FailureReason,
			&p.ParentPaymentID, &p.OriginalPaymentID, &p.ProcessedBy,
			&p.ProcessedAt, &p.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate payment rows: %w", err)
	}
	return payments, total, nil
}

// GetDailySummary aggregates the day's settlement activity for a tenant.
// Parent rows only; positive amounts are sales, negative amounts refunds.
func (r *PaymentRepo) GetDailySummary(ctx context.Context, tenantID uuid.UUID, dayStart, dayEnd time.Time) (*ports.DailySalesSummary, error) {
	query := `SELECT
		COALESCE(SUM(amount) FILTER (WHERE amount > 0), 0) AS total_sales,
		COUNT(*) FILTER (WHERE amount > 0) AS total_transactions,
		COALESCE(-SUM(amount) FILTER (WHERE amount < 0), 0) AS refunds,
		COALESCE(SUM(amount) FILTER (WHERE amount > 0 AND payment_method = 'CASH'), 0) AS cash,
		COALESCE(SUM(amount) FILTER (WHERE amount > 0 AND payment_method = 'CARD'), 0) AS card,
		COALESCE(SUM(amount) FILTER (WHERE amount > 0 AND payment_method = 'ONLINE'), 0) AS online,
		COALESCE(SUM(amount) FILTER (WHERE amount > 0 AND payment_method = 'POINTS'), 0) AS points,
		COALESCE(SUM(amount) FILTER (WHERE amount > 0 AND payment_method = 'MIXED'), 0) AS mixed
		FROM payments
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
		AND payment_status <> 'FAILED' AND parent_payment_id IS NULL`

	summary := &ports.DailySalesSummary{
		Date:             dayStart.Format("2006-01-02"),
		PaymentBreakdown: make(map[domain.PaymentMethod]int64),
	}
	var cash, card, online, points, mixed int64
	err := r.pool.QueryRow(ctx, query, tenantID, dayStart, dayEnd).Scan(
		&summary.TotalSales, &summary.TotalTransactions, &summary.RefundsAmount,
		&cash, &card, &online, &points, &mixed,
	)
	if err != nil {
		return nil, fmt.Errorf("get daily summary: %w", err)
	}

	summary.PaymentBreakdown[domain.PaymentMethodCash] = cash
	summary.PaymentBreakdown[domain.PaymentMethodCard] = card
	summary.PaymentBreakdown[domain.PaymentMethodOnline] = online
	summary.PaymentBreakdown[domain.PaymentMethodPoints] = points
	summary.PaymentBreakdown[domain.PaymentMethodMixed] = mixed
	if summary.TotalTransactions > 0 {
		summary.AverageTransaction = summary.TotalSales / summary.TotalTransactions
	}
	return summary, nil
}

// scanPayment is a helper to scan a single row into a PaymentRecord.
func (r *PaymentRepo) scanPayment(row pgx.Row) (*domain.PaymentRecord, error) {
	p := &domain.PaymentRecord{}
	err := row.Scan(
		&p.ID, &p.PaymentNumber, &p.OrderID, &p.TenantID,
		&p.Amount, &p.Method, &p.Status,
		&p.GatewayReference, &p.CardMask, &p.CashReceived, &p.FailureReason,
		&p.ParentPaymentID, &p.OriginalPaymentID, &p.ProcessedBy,
		&p.ProcessedAt, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}
