package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldsales/api/internal/cart"
	"github.com/fieldsales/api/internal/catalog"
	"github.com/fieldsales/api/internal/store"
)

// mockOrderStore implements OrderStore with overridable function fields.
type mockOrderStore struct {
	createHeaderFn func(ctx context.Context, arg store.CreateOrderHeaderParams) (store.OrderHeader, error)
	createItemsFn  func(ctx context.Context, orderID uuid.UUID, items []store.CreateLineItemParams) error
	deleteHeaderFn func(ctx context.Context, orderID uuid.UUID) error

	headerCalls int
	itemsCalls  int
	deleteCalls int
}

func (m *mockOrderStore) CreateOrderHeader(ctx context.Context, arg store.CreateOrderHeaderParams) (store.OrderHeader, error) {
	m.headerCalls++
	return m.createHeaderFn(ctx, arg)
}

func (m *mockOrderStore) CreateLineItems(ctx context.Context, orderID uuid.UUID, items []store.CreateLineItemParams) error {
	m.itemsCalls++
	return m.createItemsFn(ctx, orderID, items)
}

func (m *mockOrderStore) DeleteOrderHeader(ctx context.Context, orderID uuid.UUID) error {
	m.deleteCalls++
	return m.deleteHeaderFn(ctx, orderID)
}

// mockDirectory implements ClientLookup from a plain map.
type mockDirectory map[uuid.UUID]store.Client

func (m mockDirectory) Lookup(id uuid.UUID) (store.Client, bool) {
	c, ok := m[id]
	return c, ok
}

var (
	testAgentID  = uuid.MustParse("4ba7b810-9dad-11d1-80b4-00c04fd430c1")
	testClientID = uuid.MustParse("4ba7b810-9dad-11d1-80b4-00c04fd430c2")
	testOrderID  = uuid.MustParse("4ba7b810-9dad-11d1-80b4-00c04fd430c3")
	productA     = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	productB     = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

// defaultStore returns a mock store where every call succeeds.
func defaultStore() *mockOrderStore {
	return &mockOrderStore{
		createHeaderFn: func(_ context.Context, arg store.CreateOrderHeaderParams) (store.OrderHeader, error) {
			return store.OrderHeader{
				ID:           testOrderID,
				ClientID:     arg.ClientID,
				AgentID:      arg.AgentID,
				DeliveryDate: arg.DeliveryDate,
				TotalItems:   arg.TotalItems,
				TotalAmount:  arg.TotalAmount,
				CreatedAt:    time.Now(),
			}, nil
		},
		createItemsFn: func(_ context.Context, _ uuid.UUID, _ []store.CreateLineItemParams) error {
			return nil
		},
		deleteHeaderFn: func(_ context.Context, _ uuid.UUID) error {
			return nil
		},
	}
}

func testSnapshot() *catalog.Snapshot {
	return catalog.NewSnapshot([]store.Product{
		{ID: productA, Name: "Product A", UnitPrice: decimal.NewFromInt(100), UnitLabel: "box", Active: true},
		{ID: productB, Name: "Product B", UnitPrice: decimal.NewFromInt(50), Active: true},
	})
}

func newTestService(st *mockOrderStore) *OrderService {
	dir := mockDirectory{testClientID: {ID: testClientID, Name: "Corner Market", Address: "12 Main St"}}
	return NewOrderService(st, dir, 1)
}

// basicReq builds a valid request: 2 of product A at 100, 1 of product B at 50.
func basicReq() SubmitRequest {
	c := cart.New()
	c.SetQuantity(productA, 2)
	c.SetQuantity(productB, 1)
	c.SetComment(productB, "no glass bottles")
	return SubmitRequest{
		AgentID:  testAgentID,
		ClientID: testClientID,
		Cart:     c,
		Catalog:  testSnapshot(),
	}
}

// ===================== Validation tests =====================

func TestSubmit_NoClientSelected(t *testing.T) {
	st := defaultStore()
	svc := newTestService(st)

	req := basicReq()
	req.ClientID = uuid.Nil

	_, err := svc.Submit(context.Background(), req)
	if !errors.Is(err, ErrNoClientSelected) {
		t.Fatalf("error: got %v, want ErrNoClientSelected", err)
	}
	if st.headerCalls != 0 || st.itemsCalls != 0 {
		t.Fatal("validation failure must not reach the store")
	}
}

func TestSubmit_EmptyCart(t *testing.T) {
	st := defaultStore()
	svc := newTestService(st)

	req := basicReq()
	req.Cart = cart.New()

	_, err := svc.Submit(context.Background(), req)
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("error: got %v, want ErrEmptyCart", err)
	}
	if st.headerCalls != 0 || st.itemsCalls != 0 {
		t.Fatal("validation failure must not reach the store")
	}
}

func TestSubmit_NilCart(t *testing.T) {
	st := defaultStore()
	svc := newTestService(st)

	req := basicReq()
	req.Cart = nil

	_, err := svc.Submit(context.Background(), req)
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("error: got %v, want ErrEmptyCart", err)
	}
}

func TestSubmit_ClientNotFound(t *testing.T) {
	st := defaultStore()
	svc := newTestService(st)

	req := basicReq()
	req.ClientID = uuid.New() // not in the directory

	_, err := svc.Submit(context.Background(), req)
	if !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("error: got %v, want ErrClientNotFound", err)
	}
	if st.headerCalls != 0 {
		t.Fatal("unknown client must be rejected before the header insert")
	}
}

func TestSubmit_ProductMissingFromCatalog(t *testing.T) {
	st := defaultStore()
	svc := newTestService(st)

	req := basicReq()
	unknown := uuid.New()
	req.Cart.SetQuantity(unknown, 1)

	_, err := svc.Submit(context.Background(), req)
	if !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("error: got %v, want ErrProductUnavailable", err)
	}

	var pErr *ProductUnavailableError
	if !errors.As(err, &pErr) {
		t.Fatal("error should be a *ProductUnavailableError")
	}
	if pErr.ProductID != unknown {
		t.Fatalf("product id: got %s, want %s", pErr.ProductID, unknown)
	}
	if st.headerCalls != 0 {
		t.Fatal("unavailable product must be rejected before the header insert")
	}
}

func TestSubmit_InactiveProduct(t *testing.T) {
	st := defaultStore()
	dir := mockDirectory{testClientID: {ID: testClientID, Name: "Corner Market", Address: "12 Main St"}}
	svc := NewOrderService(st, dir, 1)

	inactive := uuid.New()
	snap := catalog.NewSnapshot([]store.Product{
		{ID: inactive, Name: "Discontinued", UnitPrice: decimal.NewFromInt(5), Active: false},
	})

	c := cart.New()
	c.SetQuantity(inactive, 1)

	_, err := svc.Submit(context.Background(), SubmitRequest{
		AgentID:  testAgentID,
		ClientID: testClientID,
		Cart:     c,
		Catalog:  snap,
	})
	if !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("error: got %v, want ErrProductUnavailable", err)
	}
}

// ===================== Success path =====================

func TestSubmit_Success(t *testing.T) {
	st := defaultStore()
	var gotHeader store.CreateOrderHeaderParams
	baseCreate := st.createHeaderFn
	st.createHeaderFn = func(ctx context.Context, arg store.CreateOrderHeaderParams) (store.OrderHeader, error) {
		gotHeader = arg
		return baseCreate(ctx, arg)
	}
	var gotOrderID uuid.UUID
	var gotItems []store.CreateLineItemParams
	st.createItemsFn = func(_ context.Context, orderID uuid.UUID, items []store.CreateLineItemParams) error {
		gotOrderID = orderID
		gotItems = items
		return nil
	}

	svc := newTestService(st)
	res, err := svc.Submit(context.Background(), basicReq())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if gotHeader.TotalItems != 3 {
		t.Errorf("total items: got %d, want 3", gotHeader.TotalItems)
	}
	if want := decimal.NewFromInt(250); !gotHeader.TotalAmount.Equal(want) {
		t.Errorf("total amount: got %s, want %s", gotHeader.TotalAmount, want)
	}
	if gotHeader.ClientID != testClientID || gotHeader.AgentID != testAgentID {
		t.Errorf("header ids: got client=%s agent=%s", gotHeader.ClientID, gotHeader.AgentID)
	}

	if gotOrderID != testOrderID {
		t.Errorf("line items order id: got %s, want %s", gotOrderID, testOrderID)
	}
	if len(gotItems) != 2 {
		t.Fatalf("line items: got %d, want 2", len(gotItems))
	}
	for _, item := range gotItems {
		switch item.ProductID {
		case productA:
			if item.Quantity != 2 || !item.UnitPrice.Equal(decimal.NewFromInt(100)) {
				t.Errorf("product A item: %+v", item)
			}
			if item.UnitLabel != "box" {
				t.Errorf("product A unit label: got %q, want %q", item.UnitLabel, "box")
			}
			if item.Comment.Valid {
				t.Errorf("product A comment should be null, got %q", item.Comment.String)
			}
		case productB:
			if item.Quantity != 1 || !item.UnitPrice.Equal(decimal.NewFromInt(50)) {
				t.Errorf("product B item: %+v", item)
			}
			// Catalog has no label for product B; the default applies.
			if item.UnitLabel != "unit" {
				t.Errorf("product B unit label: got %q, want %q", item.UnitLabel, "unit")
			}
			if !item.Comment.Valid || item.Comment.String != "no glass bottles" {
				t.Errorf("product B comment: %+v", item.Comment)
			}
		default:
			t.Errorf("unexpected product in line items: %s", item.ProductID)
		}
	}

	if res.Order.ID != testOrderID {
		t.Errorf("result order id: got %s", res.Order.ID)
	}
	if len(res.Items) != 2 {
		t.Errorf("result items: got %d, want 2", len(res.Items))
	}
	if st.deleteCalls != 0 {
		t.Error("success path must not delete the header")
	}
}

func TestSubmit_PricesFromSnapshotNotRecomputed(t *testing.T) {
	// The price written is the one in the snapshot handed to Submit, even if
	// the live catalog has moved on since.
	st := defaultStore()
	var gotItems []store.CreateLineItemParams
	st.createItemsFn = func(_ context.Context, _ uuid.UUID, items []store.CreateLineItemParams) error {
		gotItems = items
		return nil
	}
	svc := newTestService(st)

	snap := catalog.NewSnapshot([]store.Product{
		{ID: productA, Name: "Product A", UnitPrice: decimal.RequireFromString("99.90"), Active: true},
	})
	c := cart.New()
	c.SetQuantity(productA, 1)

	_, err := svc.Submit(context.Background(), SubmitRequest{
		AgentID:  testAgentID,
		ClientID: testClientID,
		Cart:     c,
		Catalog:  snap,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(gotItems) != 1 {
		t.Fatalf("line items: got %d, want 1", len(gotItems))
	}
	if want := decimal.RequireFromString("99.90"); !gotItems[0].UnitPrice.Equal(want) {
		t.Errorf("unit price: got %s, want %s", gotItems[0].UnitPrice, want)
	}
}

// ===================== Delivery date =====================

func TestSubmit_DefaultDeliveryDate(t *testing.T) {
	st := defaultStore()
	var gotHeader store.CreateOrderHeaderParams
	baseCreate := st.createHeaderFn
	st.createHeaderFn = func(ctx context.Context, arg store.CreateOrderHeaderParams) (store.OrderHeader, error) {
		gotHeader = arg
		return baseCreate(ctx, arg)
	}

	svc := newTestService(st)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	}

	req := basicReq() // zero DeliveryDate
	if _, err := svc.Submit(context.Background(), req); err != nil {
		t.Fatalf("submit: %v", err)
	}

	want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if !gotHeader.DeliveryDate.Equal(want) {
		t.Errorf("delivery date: got %s, want %s", gotHeader.DeliveryDate, want)
	}
}

func TestSubmit_CallerSuppliedDeliveryDate(t *testing.T) {
	st := defaultStore()
	var gotHeader store.CreateOrderHeaderParams
	baseCreate := st.createHeaderFn
	st.createHeaderFn = func(ctx context.Context, arg store.CreateOrderHeaderParams) (store.OrderHeader, error) {
		gotHeader = arg
		return baseCreate(ctx, arg)
	}

	svc := newTestService(st)
	req := basicReq()
	req.DeliveryDate = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	if _, err := svc.Submit(context.Background(), req); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !gotHeader.DeliveryDate.Equal(req.DeliveryDate) {
		t.Errorf("delivery date: got %s, want %s", gotHeader.DeliveryDate, req.DeliveryDate)
	}
}

// ===================== Failure and compensation =====================

func TestSubmit_HeaderCreateFails(t *testing.T) {
	st := defaultStore()
	st.createHeaderFn = func(_ context.Context, _ store.CreateOrderHeaderParams) (store.OrderHeader, error) {
		return store.OrderHeader{}, errors.New("connection refused")
	}

	svc := newTestService(st)
	_, err := svc.Submit(context.Background(), basicReq())
	if !errors.Is(err, ErrOrderCreateFailed) {
		t.Fatalf("error: got %v, want ErrOrderCreateFailed", err)
	}
	if st.itemsCalls != 0 {
		t.Error("line items must not be written when the header insert fails")
	}
	if st.deleteCalls != 0 {
		t.Error("nothing to compensate when the header insert fails")
	}
}

func TestSubmit_ItemsCreateFailsCompensatesHeader(t *testing.T) {
	st := defaultStore()
	st.createItemsFn = func(_ context.Context, _ uuid.UUID, _ []store.CreateLineItemParams) error {
		return errors.New("copy failed")
	}
	var deletedID uuid.UUID
	st.deleteHeaderFn = func(_ context.Context, orderID uuid.UUID) error {
		deletedID = orderID
		return nil
	}

	svc := newTestService(st)
	_, err := svc.Submit(context.Background(), basicReq())
	if !errors.Is(err, ErrItemsCreateFailed) {
		t.Fatalf("error: got %v, want ErrItemsCreateFailed", err)
	}
	if st.deleteCalls != 1 {
		t.Fatalf("delete calls: got %d, want 1", st.deleteCalls)
	}
	if deletedID != testOrderID {
		t.Errorf("compensated header id: got %s, want %s", deletedID, testOrderID)
	}
}

func TestSubmit_CompensationFailureKeepsItemsError(t *testing.T) {
	st := defaultStore()
	st.createItemsFn = func(_ context.Context, _ uuid.UUID, _ []store.CreateLineItemParams) error {
		return errors.New("copy failed")
	}
	st.deleteHeaderFn = func(_ context.Context, _ uuid.UUID) error {
		return errors.New("delete timed out")
	}

	svc := newTestService(st)
	_, err := svc.Submit(context.Background(), basicReq())
	if !errors.Is(err, ErrItemsCreateFailed) {
		t.Fatalf("error: got %v, want ErrItemsCreateFailed even when compensation fails", err)
	}
	if st.deleteCalls != 1 {
		t.Fatalf("delete calls: got %d, want 1", st.deleteCalls)
	}
}

func TestSubmit_FailureLeavesCartUntouched(t *testing.T) {
	st := defaultStore()
	st.createItemsFn = func(_ context.Context, _ uuid.UUID, _ []store.CreateLineItemParams) error {
		return errors.New("copy failed")
	}

	svc := newTestService(st)
	req := basicReq()

	_, err := svc.Submit(context.Background(), req)
	if !errors.Is(err, ErrItemsCreateFailed) {
		t.Fatalf("error: got %v, want ErrItemsCreateFailed", err)
	}
	if req.Cart.TotalItemCount() != 3 {
		t.Errorf("cart total after failed submit: got %d, want 3", req.Cart.TotalItemCount())
	}
	if req.Cart.Quantity(productA) != 2 || req.Cart.Quantity(productB) != 1 {
		t.Error("cart quantities changed by a failed submit")
	}
}
