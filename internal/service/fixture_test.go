package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"salesledger/internal/events"
	"salesledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Event)
	}
	return out
}

func (p *recordingPublisher) count(name string) int {
	n := 0
	for _, got := range p.names() {
		if got == name {
			n++
		}
	}
	return n
}

type ledgerFixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memStore
	tx       *memTxManager
	pub      *recordingPublisher
	orders   *orderService
	payments PaymentService
	returns  *returnService
	stock    StockService
	catalog  *catalogService
	userID   string
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	store := newMemStore()
	tx := &memTxManager{store: store}
	pub := &recordingPublisher{}

	customers := memCustomerRepo{store}
	products := memProductRepo{store}
	orders := memOrderRepo{store}
	payments := memPaymentRepo{store}
	returns := memReturnRepo{store}
	stockLogs := memStockLogRepo{store}
	audits := memAuditRepo{store}

	user := model.User{ID: uuid.New(), Username: "sales01", Role: model.RoleSales}
	store.state.users[user.ID] = user

	return &ledgerFixture{
		t:        t,
		ctx:      context.Background(),
		store:    store,
		tx:       tx,
		pub:      pub,
		orders:   NewOrderService(orders, customers, products, payments, audits, tx, pub, 5).(*orderService),
		payments: NewPaymentService(orders, customers, payments, audits, tx, pub),
		returns:  NewReturnService(orders, customers, products, returns, stockLogs, audits, tx, pub, 5).(*returnService),
		stock:    NewStockService(products, stockLogs, audits, tx, pub),
		catalog:  NewCatalogService(products, customers, audits, tx, 5).(*catalogService),
		userID:   user.ID.String(),
	}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func (f *ledgerFixture) seedGroup(pt model.PriceType) uuid.UUID {
	g := model.CustomerGroup{ID: uuid.New(), Name: string(pt) + " group", PriceType: pt}
	f.store.state.groups[g.ID] = g
	return g.ID
}

func (f *ledgerFixture) seedCustomer(groupID *uuid.UUID) uuid.UUID {
	c := model.Customer{
		ID:      uuid.New(),
		Code:    "CUS-" + uuid.NewString()[:8],
		Name:    "Tạp hoá Minh Anh",
		Phone:   "0901234567",
		Address: "12 Lê Lợi, Q1",
		GroupID: groupID,
	}
	f.store.state.customers[c.ID] = c
	return c.ID
}

// seedProduct prices the dealer tiers below retail: wholesale 60%, large 70%, medium 80%.
func (f *ledgerFixture) seedProduct(sku string, retail int64, stock int) uuid.UUID {
	p := model.Product{
		ID:                uuid.New(),
		SKU:               sku,
		Name:              "Product " + sku,
		Unit:              "box",
		WholesalePrice:    dec(retail * 6 / 10),
		LargeDealerPrice:  dec(retail * 7 / 10),
		MediumDealerPrice: dec(retail * 8 / 10),
		RetailPrice:       dec(retail),
		Stock:             stock,
		Active:            true,
	}
	f.store.state.products[p.ID] = p
	return p.ID
}

func (f *ledgerFixture) customer(id uuid.UUID) model.Customer {
	return f.store.state.customers[id]
}

func (f *ledgerFixture) product(id uuid.UUID) model.Product {
	return f.store.state.products[id]
}

func (f *ledgerFixture) order(id uuid.UUID) model.Order {
	return f.store.state.orders[id]
}

func (f *ledgerFixture) createOrder(customerID uuid.UUID, lines ...OrderLineRequest) *model.Order {
	f.t.Helper()
	order, err := f.orders.CreateOrder(f.ctx, f.userID, CreateOrderRequest{CustomerID: customerID, Items: lines})
	if err != nil {
		f.t.Fatalf("CreateOrder failed: %v", err)
	}
	return order
}

// completeOrder walks an order through APPROVED to COMPLETED.
func (f *ledgerFixture) completeOrder(orderID uuid.UUID) {
	f.t.Helper()
	for _, status := range []model.OrderStatus{model.OrderStatusApproved, model.OrderStatusCompleted} {
		if _, err := f.orders.UpdateOrderStatus(f.ctx, f.userID, orderID, status); err != nil {
			f.t.Fatalf("UpdateOrderStatus(%s) failed: %v", status, err)
		}
	}
}

func line(productID uuid.UUID, qty int) OrderLineRequest {
	return OrderLineRequest{ProductID: productID, Quantity: qty}
}

// assertInvariants recomputes every running total from its sources.
func (f *ledgerFixture) assertInvariants() {
	f.t.Helper()
	s := f.store.state

	debtByCustomer := make(map[uuid.UUID]decimal.Decimal)
	for _, o := range s.orders {
		if !o.Total.Equal(o.Subtotal.Sub(o.Discount)) {
			f.t.Errorf("order %s: total %s != subtotal %s - discount %s", o.Code, o.Total, o.Subtotal, o.Discount)
		}
		if sum := o.PaidAmount.Add(o.DebtAmount).Add(o.RefundedAmount); !sum.Equal(o.Total) {
			f.t.Errorf("order %s: paid %s + debt %s + refunded %s != total %s", o.Code, o.PaidAmount, o.DebtAmount, o.RefundedAmount, o.Total)
		}
		if o.Status != model.OrderStatusCancelled {
			debtByCustomer[o.CustomerID] = debtByCustomer[o.CustomerID].Add(o.DebtAmount)
		}
	}
	for _, r := range s.returns {
		if o, ok := s.orders[r.OrderID]; ok && o.Status != model.OrderStatusCancelled {
			debtByCustomer[r.CustomerID] = debtByCustomer[r.CustomerID].Sub(r.CustomerCredit)
		}
	}
	for id, c := range s.customers {
		if !c.TotalDebt.Equal(debtByCustomer[id]) {
			f.t.Errorf("customer %s: total debt %s, orders and returns say %s", c.Code, c.TotalDebt, debtByCustomer[id])
		}
	}

	latest := make(map[uuid.UUID]model.StockLog)
	for _, l := range s.stockLogs {
		if l.AfterQty != l.BeforeQty+l.Quantity {
			f.t.Errorf("stock log %s: %d + %d != %d", l.ID, l.BeforeQty, l.Quantity, l.AfterQty)
		}
		if prev, ok := latest[l.ProductID]; !ok || l.Seq > prev.Seq {
			latest[l.ProductID] = l
		}
	}
	for id, p := range s.products {
		if l, ok := latest[id]; ok && l.AfterQty != p.Stock {
			f.t.Errorf("product %s: stock %d, latest log says %d", p.SKU, p.Stock, l.AfterQty)
		}
		if p.Stock < 0 {
			f.t.Errorf("product %s: negative stock %d", p.SKU, p.Stock)
		}
	}
}

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}
