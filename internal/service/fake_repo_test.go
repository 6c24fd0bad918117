package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"salesledger/internal/apperr"
	"salesledger/internal/model"
	"salesledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// memState is the whole in-memory database. Values are stored by value so a
// shallow map copy plus slice copies is a full snapshot.
type memState struct {
	groups    map[uuid.UUID]model.CustomerGroup
	customers map[uuid.UUID]model.Customer
	products  map[uuid.UUID]model.Product
	orders    map[uuid.UUID]model.Order
	payments  []model.Payment
	returns   []model.OrderReturn
	stockLogs []model.StockLog
	audits    []model.AuditLog
	users     map[uuid.UUID]model.User
}

func (s memState) clone() memState {
	c := memState{
		groups:    make(map[uuid.UUID]model.CustomerGroup, len(s.groups)),
		customers: make(map[uuid.UUID]model.Customer, len(s.customers)),
		products:  make(map[uuid.UUID]model.Product, len(s.products)),
		orders:    make(map[uuid.UUID]model.Order, len(s.orders)),
		payments:  append([]model.Payment(nil), s.payments...),
		returns:   make([]model.OrderReturn, 0, len(s.returns)),
		stockLogs: append([]model.StockLog(nil), s.stockLogs...),
		audits:    append([]model.AuditLog(nil), s.audits...),
		users:     make(map[uuid.UUID]model.User, len(s.users)),
	}
	for k, v := range s.groups {
		c.groups[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]model.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	for _, r := range s.returns {
		r.Items = append([]model.OrderReturnItem(nil), r.Items...)
		c.returns = append(c.returns, r)
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

// memStore serialises whole transactions behind one mutex, which is a
// stricter form of the row locks the real repositories take.
type memStore struct {
	mu    sync.Mutex
	state memState
	seq   int

	// failStockLogAfter makes the n-th stock log insert (1-based) fail.
	failStockLogAfter int
	stockLogInserts   int
	// stockLogSeq is not rolled back, like a database sequence.
	stockLogSeq int64
}

func newMemStore() *memStore {
	return &memStore{state: memState{}.clone()}
}

type memTxKey struct{}

// lock takes the store mutex unless ctx is already inside a transaction.
func (m *memStore) lock(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) nextTime() time.Time {
	m.seq++
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Second)
}

type memTxManager struct {
	store *memStore
	// begun counts top-level transactions, including failed ones.
	begun int
}

func (t *memTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.begun++

	snapshot := t.store.state.clone()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		t.store.state = snapshot
		return err
	}
	return nil
}

// --- customers ---

type memCustomerRepo struct{ s *memStore }

func (r memCustomerRepo) Create(ctx context.Context, c *model.Customer) error {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.state.customers {
		if existing.Code == c.Code {
			return fmt.Errorf("%w: idx_customers_code", repository.ErrDuplicateCode)
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	stored := *c
	stored.Group = nil
	stored.TotalDebt = decimal.Zero
	r.s.state.customers[c.ID] = stored
	return nil
}

func (r memCustomerRepo) load(id uuid.UUID) (*model.Customer, error) {
	c, ok := r.s.state.customers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if c.GroupID != nil {
		if g, ok := r.s.state.groups[*c.GroupID]; ok {
			c.Group = &g
		}
	}
	return &c, nil
}

func (r memCustomerRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	defer r.s.lock(ctx)()
	return r.load(id)
}

func (r memCustomerRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	defer r.s.lock(ctx)()
	return r.load(id)
}

func (r memCustomerRepo) List(ctx context.Context, search string, page, limit int) ([]model.Customer, int64, error) {
	defer r.s.lock(ctx)()
	var out []model.Customer
	for id := range r.s.state.customers {
		c, _ := r.load(id)
		if search == "" || strings.Contains(strings.ToLower(c.Name), strings.ToLower(search)) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return paginate(out, page, limit), int64(len(out)), nil
}

func (r memCustomerRepo) AdjustDebt(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	defer r.s.lock(ctx)()
	c, ok := r.s.state.customers[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.TotalDebt = c.TotalDebt.Add(delta)
	r.s.state.customers[id] = c
	return nil
}

func (r memCustomerRepo) CreateGroup(ctx context.Context, g *model.CustomerGroup) error {
	defer r.s.lock(ctx)()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	r.s.state.groups[g.ID] = *g
	return nil
}

func (r memCustomerRepo) FindGroupByID(ctx context.Context, id uuid.UUID) (*model.CustomerGroup, error) {
	defer r.s.lock(ctx)()
	g, ok := r.s.state.groups[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &g, nil
}

func (r memCustomerRepo) ListGroups(ctx context.Context) ([]model.CustomerGroup, error) {
	defer r.s.lock(ctx)()
	out := make([]model.CustomerGroup, 0, len(r.s.state.groups))
	for _, g := range r.s.state.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- products ---

type memProductRepo struct{ s *memStore }

func (r memProductRepo) Create(ctx context.Context, p *model.Product) error {
	defer r.s.lock(ctx)()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	for _, existing := range r.s.state.products {
		if existing.SKU == p.SKU {
			return apperr.ConstraintViolation("duplicate value violates idx_products_sku")
		}
	}
	r.s.state.products[p.ID] = *p
	return nil
}

func (r memProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.state.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r memProductRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return r.FindByID(ctx, id)
}

func (r memProductRepo) List(ctx context.Context, search string, page, limit int) ([]model.Product, int64, error) {
	defer r.s.lock(ctx)()
	var out []model.Product
	for _, p := range r.s.state.products {
		if search == "" || strings.Contains(p.SKU, search) || strings.Contains(p.Name, search) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return paginate(out, page, limit), int64(len(out)), nil
}

func (r memProductRepo) UpdateStock(ctx context.Context, id uuid.UUID, stock int) error {
	defer r.s.lock(ctx)()
	p, ok := r.s.state.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stock < 0 {
		return apperr.ConstraintViolation("violates check constraint chk_products_stock")
	}
	p.Stock = stock
	r.s.state.products[id] = p
	return nil
}

// --- orders ---

type memOrderRepo struct{ s *memStore }

func (r memOrderRepo) Create(ctx context.Context, o *model.Order) error {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.state.orders {
		if existing.Code == o.Code {
			return fmt.Errorf("%w: idx_orders_code", repository.ErrDuplicateCode)
		}
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	stored := *o
	stored.Customer, stored.CreatedBy = nil, nil
	stored.Items = append([]model.OrderItem(nil), o.Items...)
	stored.CreatedAt = r.s.nextTime()
	r.s.state.orders[o.ID] = stored
	return nil
}

func (r memOrderRepo) load(id uuid.UUID, withRelations bool) (*model.Order, error) {
	o, ok := r.s.state.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	o.Items = append([]model.OrderItem(nil), o.Items...)
	sort.Slice(o.Items, func(i, j int) bool { return o.Items[i].LineNo < o.Items[j].LineNo })
	if withRelations {
		if c, ok := r.s.state.customers[o.CustomerID]; ok {
			o.Customer = &c
		}
		if o.CreatedByID != nil {
			if u, ok := r.s.state.users[*o.CreatedByID]; ok {
				o.CreatedBy = &u
			}
		}
	}
	return &o, nil
}

func (r memOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	defer r.s.lock(ctx)()
	return r.load(id, true)
}

func (r memOrderRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	defer r.s.lock(ctx)()
	return r.load(id, false)
}

func (r memOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus) error {
	defer r.s.lock(ctx)()
	o, ok := r.s.state.orders[id]
	if !ok || o.Status != from {
		return repository.ErrStaleRow
	}
	o.Status = to
	r.s.state.orders[id] = o
	return nil
}

func (r memOrderRepo) ApplyPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	defer r.s.lock(ctx)()
	o, ok := r.s.state.orders[id]
	if !ok || o.DebtAmount.LessThan(amount) {
		return repository.ErrStaleRow
	}
	o.PaidAmount = o.PaidAmount.Add(amount)
	o.DebtAmount = o.DebtAmount.Sub(amount)
	r.s.state.orders[id] = o
	return nil
}

func (r memOrderRepo) ApplyRefund(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	defer r.s.lock(ctx)()
	o, ok := r.s.state.orders[id]
	if !ok || o.DebtAmount.LessThan(amount) {
		return repository.ErrStaleRow
	}
	o.RefundedAmount = o.RefundedAmount.Add(amount)
	o.DebtAmount = o.DebtAmount.Sub(amount)
	r.s.state.orders[id] = o
	return nil
}

func (r memOrderRepo) List(ctx context.Context, f repository.OrderFilter) ([]model.Order, int64, error) {
	defer r.s.lock(ctx)()
	var out []model.Order
	for id, o := range r.s.state.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.CustomerID != nil && o.CustomerID != *f.CustomerID {
			continue
		}
		if f.CreatedByID != nil && (o.CreatedByID == nil || *o.CreatedByID != *f.CreatedByID) {
			continue
		}
		loaded, _ := r.load(id, false)
		out = append(out, *loaded)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

// --- payments ---

type memPaymentRepo struct{ s *memStore }

func (r memPaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	defer r.s.lock(ctx)()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = r.s.nextTime()
	r.s.state.payments = append(r.s.state.payments, *p)
	return nil
}

func (r memPaymentRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error) {
	defer r.s.lock(ctx)()
	var out []model.Payment
	for _, p := range r.s.state.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- returns ---

type memReturnRepo struct{ s *memStore }

func (r memReturnRepo) Create(ctx context.Context, ret *model.OrderReturn) error {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.state.returns {
		if existing.Code == ret.Code {
			return fmt.Errorf("%w: idx_order_returns_code", repository.ErrDuplicateCode)
		}
	}
	if ret.ID == uuid.Nil {
		ret.ID = uuid.New()
	}
	stored := *ret
	stored.Items = append([]model.OrderReturnItem(nil), ret.Items...)
	stored.CreatedAt = r.s.nextTime()
	r.s.state.returns = append(r.s.state.returns, stored)
	return nil
}

func (r memReturnRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.OrderReturn, error) {
	defer r.s.lock(ctx)()
	var out []model.OrderReturn
	for _, ret := range r.s.state.returns {
		if ret.OrderID == orderID {
			out = append(out, ret)
		}
	}
	return out, nil
}

func (r memReturnRepo) ReturnedQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error) {
	defer r.s.lock(ctx)()
	returned := make(map[uuid.UUID]int)
	for _, ret := range r.s.state.returns {
		if ret.OrderID != orderID {
			continue
		}
		for _, item := range ret.Items {
			returned[item.OrderItemID] += item.Quantity
		}
	}
	return returned, nil
}

// --- stock logs ---

type memStockLogRepo struct{ s *memStore }

func (r memStockLogRepo) Create(ctx context.Context, l *model.StockLog) error {
	defer r.s.lock(ctx)()
	r.s.stockLogInserts++
	if r.s.failStockLogAfter > 0 && r.s.stockLogInserts == r.s.failStockLogAfter {
		return fmt.Errorf("stock log insert failed")
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	r.s.stockLogSeq++
	l.Seq = r.s.stockLogSeq
	l.CreatedAt = r.s.nextTime()
	r.s.state.stockLogs = append(r.s.state.stockLogs, *l)
	return nil
}

func (r memStockLogRepo) ListByProduct(ctx context.Context, productID uuid.UUID, page, limit int) ([]model.StockLog, int64, error) {
	all, _ := r.AllByProduct(ctx, productID)
	sort.Slice(all, func(i, j int) bool { return all[i].Seq > all[j].Seq })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (r memStockLogRepo) AllByProduct(ctx context.Context, productID uuid.UUID) ([]model.StockLog, error) {
	defer r.s.lock(ctx)()
	var out []model.StockLog
	for _, l := range r.s.state.stockLogs {
		if l.ProductID == productID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// --- audit ---

type memAuditRepo struct{ s *memStore }

func (r memAuditRepo) Log(ctx context.Context, entry *model.AuditLog) error {
	defer r.s.lock(ctx)()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = r.s.nextTime()
	r.s.state.audits = append(r.s.state.audits, *entry)
	return nil
}

func (r memAuditRepo) List(ctx context.Context, f repository.AuditFilter) ([]model.AuditLog, int64, error) {
	defer r.s.lock(ctx)()
	var out []model.AuditLog
	for i := len(r.s.state.audits) - 1; i >= 0; i-- {
		a := r.s.state.audits[i]
		if f.Action != "" && a.Action != f.Action {
			continue
		}
		if f.EntityID != "" && a.EntityID != f.EntityID {
			continue
		}
		if a.UserID != nil {
			if u, ok := r.s.state.users[*a.UserID]; ok {
				a.User = &u
			}
		}
		out = append(out, a)
	}
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

// --- users ---

type memUserRepo struct{ s *memStore }

func (r memUserRepo) Create(ctx context.Context, u *model.User) error {
	defer r.s.lock(ctx)()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = r.s.nextTime()
	u.UpdatedAt = u.CreatedAt
	r.s.state.users[u.ID] = *u
	return nil
}

func (r memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.state.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r memUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	defer r.s.lock(ctx)()
	for _, u := range r.s.state.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memUserRepo) List(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	defer r.s.lock(ctx)()
	out := make([]model.User, 0, len(r.s.state.users))
	for _, u := range r.s.state.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, page, limit), int64(len(out)), nil
}

func (r memUserRepo) Count(ctx context.Context) (int64, error) {
	defer r.s.lock(ctx)()
	return int64(len(r.s.state.users)), nil
}

func paginate[T any](items []T, page, limit int) []T {
	if page <= 0 || limit <= 0 {
		return items
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
