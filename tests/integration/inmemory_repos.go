package integration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pos-settlement-engine/internal/core/domain"
	"pos-settlement-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Order Repo ---

type inMemoryOrderRepo struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.Order
}

func newInMemoryOrderRepo() *inMemoryOrderRepo {
	return &inMemoryOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
}

func (r *inMemoryOrderRepo) put(o *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
}

func (r *inMemoryOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *inMemoryOrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryOrderRepo) UpdateSettlement(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, paidAmount, changeAmount int64, status domain.OrderPaymentStatus, method domain.PaymentMethod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found")
	}
	o.PaidAmount = paidAmount
	o.ChangeAmount = changeAmount
	o.PaymentStatus = status
	o.PaymentMethod = &method
	o.UpdatedAt = time.Now()
	return nil
}

func (r *inMemoryOrderRepo) ListPaidByDate(ctx context.Context, tenantID uuid.UUID, dayStart, dayEnd time.Time) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Order
	for _, o := range r.orders {
		if o.TenantID == tenantID && o.PaymentStatus == domain.OrderPaymentPaid &&
			!o.UpdatedAt.Before(dayStart) && o.UpdatedAt.Before(dayEnd) {
			result = append(result, *o)
		}
	}
	return result, nil
}

// --- In-Memory Payment Repo ---

type inMemoryPaymentRepo struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*domain.PaymentRecord
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{payments: make(map[uuid.UUID]*domain.PaymentRecord)}
}

func (r *inMemoryPaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PaymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *inMemoryPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPaymentRepo) SumNonFailedByOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, p := range r.payments {
		if p.OrderID == orderID && p.Status != domain.PaymentStatusFailed && p.ParentPaymentID == nil {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (r *inMemoryPaymentRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return fmt.Errorf("payment not found")
	}
	p.Status = status
	return nil
}

func (r *inMemoryPaymentRepo) SumRefundsByOriginal(ctx context.Context, tx pgx.Tx, originalID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, p := range r.payments {
		if p.OriginalPaymentID != nil && *p.OriginalPaymentID == originalID && p.Status != domain.PaymentStatusFailed {
			sum += -p.Amount
		}
	}
	return sum, nil
}

func (r *inMemoryPaymentRepo) NextSequence(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, dayStart, dayEnd time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, p := range r.payments {
		if p.TenantID == tenantID && p.ParentPaymentID == nil &&
			!p.CreatedAt.Before(dayStart) && p.CreatedAt.Before(dayEnd) {
			count++
		}
	}
	return count + 1, nil
}

func (r *inMemoryPaymentRepo) List(ctx context.Context, params ports.PaymentListParams) ([]domain.PaymentRecord, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.PaymentRecord
	for _, p := range r.payments {
		if p.TenantID != params.TenantID {
			continue
		}
		if params.OrderID != nil && p.OrderID != *params.OrderID {
			continue
		}
		if params.Method != nil && p.Method != *params.Method {
			continue
		}
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	total := int64(len(result))

	// Simple pagination
	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.PaymentRecord{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemoryPaymentRepo) GetDailySummary(ctx context.Context, tenantID uuid.UUID, dayStart, dayEnd time.Time) (*ports.DailySalesSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	summary := &ports.DailySalesSummary{
		Date:             dayStart.Format("2006-01-02"),
		PaymentBreakdown: make(map[domain.PaymentMethod]int64),
	}
	for _, p := range r.payments {
		if p.TenantID != tenantID || p.Status == domain.PaymentStatusFailed || p.ParentPaymentID != nil {
			continue
		}
		if p.CreatedAt.Before(dayStart) || !p.CreatedAt.Before(dayEnd) {
			continue
		}
		if p.Amount > 0 {
			summary.TotalSales += p.Amount
			summary.TotalTransactions++
			summary.PaymentBreakdown[p.Method] += p.Amount
		} else {
			summary.RefundsAmount += -p.Amount
		}
	}
	if summary.TotalTransactions > 0 {
		summary.AverageTransaction = summary.TotalSales / summary.TotalTransactions
	}
	return summary, nil
}

// --- In-Memory Loyalty Repo ---

type inMemoryLoyaltyRepo struct {
	mu      sync.RWMutex
	loyalty map[uuid.UUID]*domain.CustomerLoyalty
	ledger  []*domain.LoyaltyTransaction
}

func newInMemoryLoyaltyRepo() *inMemoryLoyaltyRepo {
	return &inMemoryLoyaltyRepo{loyalty: make(map[uuid.UUID]*domain.CustomerLoyalty)}
}

func (r *inMemoryLoyaltyRepo) put(l *domain.CustomerLoyalty) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loyalty[l.CustomerID] = l
}

func (r *inMemoryLoyaltyRepo) GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*domain.CustomerLoyalty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loyalty[customerID]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *inMemoryLoyaltyRepo) GetByCustomerIDForUpdate(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*domain.CustomerLoyalty, error) {
	return r.GetByCustomerID(ctx, customerID)
}

func (r *inMemoryLoyaltyRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, loyalty *domain.CustomerLoyalty) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.loyalty[loyalty.CustomerID]
	if !ok {
		return fmt.Errorf("loyalty not found")
	}
	tier := stored.TierLevel
	cp := *loyalty
	cp.TierLevel = tier // tier is owned by UpdateTier
	r.loyalty[loyalty.CustomerID] = &cp
	return nil
}

func (r *inMemoryLoyaltyRepo) UpdateTier(ctx context.Context, customerID uuid.UUID, tier domain.Tier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.loyalty[customerID]
	if !ok {
		return fmt.Errorf("loyalty not found")
	}
	l.TierLevel = tier
	return nil
}

func (r *inMemoryLoyaltyRepo) CreateTransaction(ctx context.Context, tx pgx.Tx, txn *domain.LoyaltyTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *txn
	r.ledger = append(r.ledger, &cp)
	return nil
}

func (r *inMemoryLoyaltyRepo) ListRecent(ctx context.Context, customerID uuid.UUID, limit int) ([]domain.LoyaltyTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LoyaltyTransaction
	for i := len(r.ledger) - 1; i >= 0 && len(result) < limit; i-- {
		if r.ledger[i].CustomerID == customerID {
			result = append(result, *r.ledger[i])
		}
	}
	return result, nil
}

func (r *inMemoryLoyaltyRepo) HasBirthdayBonus(ctx context.Context, tx pgx.Tx, customerID uuid.UUID, year int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.ledger {
		if t.CustomerID == customerID && t.Type == domain.LoyaltyEarnedBirthday && t.CreatedAt.Year() == year {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryLoyaltyRepo) ListExpirableEarnings(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) ([]domain.LoyaltyTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	expired := make(map[uuid.UUID]bool)
	for _, t := range r.ledger {
		if t.Type == domain.LoyaltyExpired && t.RelatedTxID != nil {
			expired[*t.RelatedTxID] = true
		}
	}
	var result []domain.LoyaltyTransaction
	for _, t := range r.ledger {
		if t.TenantID == tenantID && t.PointsChange > 0 && t.Type.IsEarning() &&
			t.CreatedAt.Before(cutoff) && !expired[t.ID] {
			result = append(result, *t)
		}
	}
	return result, nil
}

// --- In-Memory Staff Repo ---

type inMemoryStaffRepo struct {
	mu    sync.RWMutex
	staff map[uuid.UUID]*domain.Staff
}

func newInMemoryStaffRepo() *inMemoryStaffRepo {
	return &inMemoryStaffRepo{staff: make(map[uuid.UUID]*domain.Staff)}
}

func (r *inMemoryStaffRepo) put(s *domain.Staff) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staff[s.ID] = s
}

func (r *inMemoryStaffRepo) GetByUsername(ctx context.Context, username string) (*domain.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.staff {
		if s.Username == username {
			return s, nil
		}
	}
	return nil, nil
}

// --- Stub Cost Lookup ---

type stubCostLookup struct {
	mu    sync.RWMutex
	costs map[uuid.UUID]int64
}

func newStubCostLookup() *stubCostLookup {
	return &stubCostLookup{costs: make(map[uuid.UUID]int64)}
}

func (l *stubCostLookup) put(itemID uuid.UUID, cost int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.costs[itemID] = cost
}

func (l *stubCostLookup) UnitCost(ctx context.Context, itemID uuid.UUID) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cost, ok := l.costs[itemID]
	if !ok {
		return 0, fmt.Errorf("item cost unknown")
	}
	return cost, nil
}

// --- Stub Gateway ---

type stubGateway struct {
	mu         sync.Mutex
	declineAll bool
	charges    []string
	reversals  []string
	nextRef    int
}

func newStubGateway() *stubGateway {
	return &stubGateway{}
}

func (g *stubGateway) Charge(ctx context.Context, req ports.ChargeRequest) (*ports.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.declineAll {
		return &ports.ChargeResult{Success: false, FailureReason: "declined"}, nil
	}
	g.nextRef++
	ref := fmt.Sprintf("gw-%d", g.nextRef)
	g.charges = append(g.charges, ref)
	return &ports.ChargeResult{Success: true, Reference: ref, CardMask: "**** 4242"}, nil
}

func (g *stubGateway) Reverse(ctx context.Context, reference string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !strings.HasPrefix(reference, "gw-") {
		return fmt.Errorf("unknown reference: %s", reference)
	}
	g.reversals = append(g.reversals, reference)
	return nil
}

// --- Serializing Transactor ---

// lockingTransactor serializes "transactions" with a global mutex, mimicking
// the mutual exclusion the row locks provide in PostgreSQL.
type lockingTransactor struct {
	mu sync.Mutex
}

func newLockingTransactor() *lockingTransactor {
	return &lockingTransactor{}
}

func (t *lockingTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &lockTx{release: &t.mu}, nil
}

// lockTx releases the transactor mutex on Commit or Rollback, whichever
// comes first.
type lockTx struct {
	noopTx
	release *sync.Mutex
	once    sync.Once
}

func (t *lockTx) Commit(ctx context.Context) error {
	t.once.Do(t.release.Unlock)
	return nil
}

func (t *lockTx) Rollback(ctx context.Context) error {
	t.once.Do(t.release.Unlock)
	return nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
