package postgres

import (
	"context"
	"testing"
	"time"

	"pos-settlement-engine/internal/core/domain"
	"pos-settlement-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPayment(orderID, tenantID uuid.UUID) *domain.PaymentRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.PaymentRecord{
		ID:            uuid.New(),
		PaymentNumber: "PAY-20260830-0001",
		OrderID:       orderID,
		TenantID:      tenantID,
		Amount:        150000,
		Method:        domain.PaymentMethodCash,
		Status:        domain.PaymentStatusPaid,
		ProcessedBy:   "cashier1",
		ProcessedAt:   &now,
		CreatedAt:     now,
	}
}

func paymentColumnNames() []string {
	return []string{"id", "payment_number", "order_id", "tenant_id", "amount", "payment_method",
		"payment_status", "gateway_reference", "card_mask", "cash_received", "failure_reason",
		"parent_payment_id", "original_payment_id", "processed_by", "processed_at", "created_at"}
}

func paymentRow(p *domain.PaymentRecord) *pgxmock.Rows {
	return pgxmock.NewRows(paymentColumnNames()).AddRow(
		p.ID, p.PaymentNumber, p.OrderID, p.TenantID,
		p.Amount, p.Method, p.Status,
		p.GatewayReference, p.CardMask, p.CashReceived, p.FailureReason,
		p.ParentPaymentID, p.OriginalPaymentID, p.ProcessedBy,
		p.ProcessedAt, p.CreatedAt,
	)
}

func TestPaymentRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment(uuid.New(), uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(
			p.ID, p.PaymentNumber, p.OrderID, p.TenantID,
			p.Amount, p.Method, p.Status,
			p.GatewayReference, p.CardMask, p.CashReceived, p.FailureReason,
			p.ParentPaymentID, p.OriginalPaymentID, p.ProcessedBy,
			p.ProcessedAt, p.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, p)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment(uuid.New(), uuid.New())

	mock.ExpectQuery("SELECT .+ FROM payments WHERE id").
		WithArgs(p.ID).
		WillReturnRows(paymentRow(p))

	result, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, p.PaymentNumber, result.PaymentNumber)
	assert.Equal(t, p.Amount, result.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM payments WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(paymentColumnNames()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_SumNonFailedByOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	orderID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM payments`).
		WithArgs(orderID).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(120000)))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	sum, err := repo.SumNonFailedByOrder(context.Background(), dbTx, orderID)
	require.NoError(t, err)
	assert.Equal(t, int64(120000), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_SumRefundsByOriginal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	origID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(-SUM\(amount\), 0\) FROM payments`).
		WithArgs(origID).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(40000)))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	sum, err := repo.SumRefundsByOriginal(context.Background(), dbTx, origID)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	paymentID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments SET payment_status").
		WithArgs(domain.PaymentStatusRefunded, paymentID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), dbTx, paymentID, domain.PaymentStatusRefunded)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_NextSequence(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	tenantID := uuid.New()
	dayStart := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) \+ 1 FROM payments`).
		WithArgs(tenantID, dayStart, dayEnd).
		WillReturnRows(pgxmock.NewRows([]string{"seq"}).AddRow(int64(7)))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	seq, err := repo.NextSequence(context.Background(), dbTx, tenantID, dayStart, dayEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	tenantID := uuid.New()
	p := newTestPayment(uuid.New(), tenantID)
	method := domain.PaymentMethodCash

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM payments`).
		WithArgs(tenantID, method).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM payments .+ ORDER BY created_at DESC").
		WithArgs(tenantID, method, 20, 0).
		WillReturnRows(paymentRow(p))

	payments, total, err := repo.List(context.Background(), ports.PaymentListParams{
		TenantID: tenantID,
		Method:   &method,
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, payments, 1)
	assert.Equal(t, p.ID, payments[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_GetDailySummary(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	tenantID := uuid.New()
	dayStart := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	mock.ExpectQuery("SELECT .+ FROM payments").
		WithArgs(tenantID, dayStart, dayEnd).
		WillReturnRows(pgxmock.NewRows(
			[]string{"total_sales", "total_transactions", "refunds", "cash", "card", "online", "points", "mixed"},
		).AddRow(int64(500000), int64(4), int64(50000), int64(200000), int64(150000), int64(0), int64(50000), int64(100000)))

	summary, err := repo.GetDailySummary(context.Background(), tenantID, dayStart, dayEnd)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, "2026-08-30", summary.Date)
	assert.Equal(t, int64(500000), summary.TotalSales)
	assert.Equal(t, int64(4), summary.TotalTransactions)
	assert.Equal(t, int64(50000), summary.RefundsAmount)
	assert.Equal(t, int64(125000), summary.AverageTransaction)
	assert.Equal(t, int64(200000), summary.PaymentBreakdown[domain.PaymentMethodCash])
	assert.Equal(t, int64(100000), summary.PaymentBreakdown[domain.PaymentMethodMixed])
	assert.NoError(t, mock.ExpectationsWereMet())
}
