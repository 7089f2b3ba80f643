package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fieldsales/api/internal/cart"
	"github.com/fieldsales/api/internal/catalog"
	"github.com/fieldsales/api/internal/enum"
	"github.com/fieldsales/api/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned by the submission coordinator. All are recoverable: the
// cart is left untouched on every failure path so the agent can retry.
var (
	ErrNoClientSelected   = errors.New("no client selected")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrClientNotFound     = errors.New("client not found")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrOrderCreateFailed  = errors.New("order header create failed")
	ErrItemsCreateFailed  = errors.New("order line items create failed")
)

// ProductUnavailableError reports which cart product is missing from the
// catalog or no longer active. Matches ErrProductUnavailable via errors.Is.
type ProductUnavailableError struct {
	ProductID uuid.UUID
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product unavailable: %s", e.ProductID)
}

func (e *ProductUnavailableError) Unwrap() error { return ErrProductUnavailable }

// OrderStore defines the write methods the coordinator needs. The three calls
// are independent; no transaction spans them. Satisfied by *store.Store.
type OrderStore interface {
	CreateOrderHeader(ctx context.Context, arg store.CreateOrderHeaderParams) (store.OrderHeader, error)
	CreateLineItems(ctx context.Context, orderID uuid.UUID, items []store.CreateLineItemParams) error
	DeleteOrderHeader(ctx context.Context, orderID uuid.UUID) error
}

// ClientLookup resolves a client id against the loaded directory, not the
// caller's UI state. Satisfied by *catalog.Directory.
type ClientLookup interface {
	Lookup(id uuid.UUID) (store.Client, bool)
}

// SubmitRequest is the validated input for one submission attempt.
type SubmitRequest struct {
	AgentID      uuid.UUID
	ClientID     uuid.UUID
	DeliveryDate time.Time // zero value: the configured default lead applies
	Cart         *cart.Cart
	Catalog      *catalog.Snapshot
}

// SubmitResult is the persisted order with the line items as written.
type SubmitResult struct {
	Order store.OrderHeader
	Items []store.CreateLineItemParams
}

// OrderService coordinates the two-phase order write. It is the only
// component that writes to the order store.
//
// A submission either fully succeeds or leaves no trace: if the line-item
// insert fails after the header was created, the header is deleted again. The
// one known gap is a compensating delete that itself fails — that leaves an
// empty header behind, is logged as a warning, and does not change the
// reported outcome.
type OrderService struct {
	store    OrderStore
	clients  ClientLookup
	leadDays int
	now      func() time.Time
}

// NewOrderService creates an OrderService. leadDays is the delivery-date
// default applied when the caller supplies none (1 = tomorrow).
func NewOrderService(store OrderStore, clients ClientLookup, leadDays int) *OrderService {
	return &OrderService{
		store:    store,
		clients:  clients,
		leadDays: leadDays,
		now:      time.Now,
	}
}

// Submit validates the request, snapshots prices, and performs the
// header-then-items write with compensation on partial failure.
//
// The coordinator does not deduplicate retries — submitting the same cart
// twice creates two orders — and does not serialize concurrent calls; the
// session layer guarantees at most one in-flight submission per cart.
func (s *OrderService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	// --- Validate, before any network effect ---
	if req.ClientID == uuid.Nil {
		return nil, ErrNoClientSelected
	}
	if req.Cart == nil || req.Cart.IsEmpty() {
		return nil, ErrEmptyCart
	}
	// Re-verified against the directory, not trusted from UI state: another
	// session may have deleted the client since it was picked.
	if _, ok := s.clients.Lookup(req.ClientID); !ok {
		return nil, ErrClientNotFound
	}

	// --- Join cart with catalog, snapshotting price and unit ---
	entries := req.Cart.Entries()
	items := make([]store.CreateLineItemParams, 0, len(entries))
	totalItems := int32(0)
	totalAmount := decimal.Zero

	for _, e := range entries {
		product, ok := req.Catalog.Get(e.ProductID)
		if !ok || !product.Active {
			return nil, &ProductUnavailableError{ProductID: e.ProductID}
		}

		unitLabel := product.UnitLabel
		if unitLabel == "" {
			unitLabel = enum.UnitLabelDefault
		}

		comment := pgtype.Text{}
		if e.Comment != "" {
			comment = pgtype.Text{String: e.Comment, Valid: true}
		}

		qty := int32(e.Quantity)
		items = append(items, store.CreateLineItemParams{
			ProductID: e.ProductID,
			Quantity:  qty,
			UnitPrice: product.UnitPrice,
			UnitLabel: unitLabel,
			Comment:   comment,
		})
		totalItems += qty
		totalAmount = totalAmount.Add(product.UnitPrice.Mul(decimal.NewFromInt32(qty)))
	}

	deliveryDate := req.DeliveryDate
	if deliveryDate.IsZero() {
		deliveryDate = s.now().AddDate(0, 0, s.leadDays).Truncate(24 * time.Hour)
	}

	// --- Phase 1: header ---
	header, err := s.store.CreateOrderHeader(ctx, store.CreateOrderHeaderParams{
		ClientID:     req.ClientID,
		AgentID:      req.AgentID,
		DeliveryDate: deliveryDate,
		TotalItems:   totalItems,
		TotalAmount:  totalAmount,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOrderCreateFailed, err)
	}

	// --- Phase 2: line items, one batch call ---
	if err := s.store.CreateLineItems(ctx, header.ID, items); err != nil {
		// Compensate: delete the just-created header so no empty order
		// remains. Best effort — a failed delete is a warning only and the
		// outward result stays ErrItemsCreateFailed.
		if delErr := s.store.DeleteOrderHeader(ctx, header.ID); delErr != nil {
			log.Printf("WARN: order %s: compensating header delete failed, empty header may remain: %v",
				header.ID, delErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrItemsCreateFailed, err)
	}

	return &SubmitResult{Order: header, Items: items}, nil
}
