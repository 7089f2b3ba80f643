package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/fieldsales/api/internal/cart"
	"github.com/fieldsales/api/internal/catalog"
	"github.com/fieldsales/api/internal/enum"
	"github.com/fieldsales/api/internal/middleware"
	"github.com/fieldsales/api/internal/service"
	"github.com/fieldsales/api/internal/session"
	"github.com/fieldsales/api/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderSubmitter defines the service method needed by the submit handler.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderSubmitter interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error)
}

// OrderReadStore defines the database methods needed by the review endpoints.
// Satisfied by *store.Store; narrow interface for testability.
type OrderReadStore interface {
	GetOrderHeader(ctx context.Context, id uuid.UUID) (store.OrderHeader, error)
	ListOrderHeaders(ctx context.Context, arg store.ListOrderHeadersParams) ([]store.OrderHeader, error)
	ListLineItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]store.LineItem, error)
}

// OrderHandler handles order submission and review endpoints.
type OrderHandler struct {
	svc      OrderSubmitter
	store    OrderReadStore
	sessions *session.Registry
	catalog  *catalog.Catalog
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderSubmitter, store OrderReadStore, sessions *session.Registry, catalog *catalog.Catalog) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, sessions: sessions, catalog: catalog}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Submit)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// --- Request / Response types ---

type submitOrderRequest struct {
	ClientID     string `json:"client_id"`
	DeliveryDate string `json:"delivery_date"` // RFC3339, optional
}

type orderResponse struct {
	ID           uuid.UUID `json:"id"`
	ClientID     uuid.UUID `json:"client_id"`
	AgentID      uuid.UUID `json:"agent_id"`
	DeliveryDate time.Time `json:"delivery_date"`
	TotalItems   int32     `json:"total_items"`
	TotalAmount  string    `json:"total_amount"`
	CreatedAt    time.Time `json:"created_at"`
}

type lineItemResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	UnitLabel string    `json:"unit_label"`
	Comment   *string   `json:"comment"`
}

type orderDetailResponse struct {
	orderResponse
	Items []lineItemResponse `json:"items"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func toOrderResponse(o store.OrderHeader) orderResponse {
	return orderResponse{
		ID:           o.ID,
		ClientID:     o.ClientID,
		AgentID:      o.AgentID,
		DeliveryDate: o.DeliveryDate,
		TotalItems:   o.TotalItems,
		TotalAmount:  o.TotalAmount.StringFixed(2),
		CreatedAt:    o.CreatedAt,
	}
}

func toLineItemResponse(it store.CreateLineItemParams) lineItemResponse {
	resp := lineItemResponse{
		ProductID: it.ProductID,
		Quantity:  it.Quantity,
		UnitPrice: it.UnitPrice.StringFixed(2),
		UnitLabel: it.UnitLabel,
	}
	if it.Comment.Valid {
		resp.Comment = &it.Comment.String
	}
	return resp
}

// --- Handlers ---

// Submit turns the agent's session cart into a persisted order for the
// requested client. At most one submission per session may be in flight;
// a second attempt while one is outstanding gets 409 rather than a second
// order. The cart is cleared only after the coordinator reports success.
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	clientID := uuid.Nil
	if req.ClientID != "" {
		var err error
		clientID, err = uuid.Parse(req.ClientID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid client_id"})
			return
		}
	}

	var deliveryDate time.Time
	if req.DeliveryDate != "" {
		var err error
		deliveryDate, err = time.Parse(time.RFC3339, req.DeliveryDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid delivery_date"})
			return
		}
	}

	sess := h.sessions.Get(claims.UserID)
	if !sess.TryBeginSubmit() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a submission is already in progress"})
		return
	}
	defer sess.EndSubmit()

	// Submit from a snapshot so a failure leaves the live cart untouched.
	result, err := h.svc.Submit(r.Context(), service.SubmitRequest{
		AgentID:      claims.UserID,
		ClientID:     clientID,
		DeliveryDate: deliveryDate,
		Cart:         sess.SnapshotCart(),
		Catalog:      h.catalog.Snapshot(),
	})
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	// Success is the only path that clears the cart.
	sess.WithCart(func(c *cart.Cart) { c.Reset() })

	resp := orderDetailResponse{orderResponse: toOrderResponse(result.Order)}
	resp.Items = make([]lineItemResponse, len(result.Items))
	for i, it := range result.Items {
		resp.Items[i] = toLineItemResponse(it)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *OrderHandler) writeSubmitError(w http.ResponseWriter, err error) {
	var unavailable *service.ProductUnavailableError
	switch {
	case errors.Is(err, service.ErrNoClientSelected):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no client selected"})
	case errors.Is(err, service.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cart is empty"})
	case errors.Is(err, service.ErrClientNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "client not found"})
	case errors.As(err, &unavailable):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":      "product unavailable",
			"product_id": unavailable.ProductID.String(),
		})
	case errors.Is(err, service.ErrOrderCreateFailed):
		log.Printf("ERROR: submit order: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "order could not be created, please retry"})
	case errors.Is(err, service.ErrItemsCreateFailed):
		log.Printf("ERROR: submit order: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "order items could not be saved, please retry"})
	default:
		log.Printf("ERROR: submit order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// List returns order headers. Agents see their own orders; admins see all
// and may filter by agent_id.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	agentFilter := pgtype.UUID{}
	if claims.Role == enum.UserRoleAdmin {
		if s := r.URL.Query().Get("agent_id"); s != "" {
			id, err := uuid.Parse(s)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid agent_id"})
				return
			}
			agentFilter = pgtype.UUID{Bytes: id, Valid: true}
		}
	} else {
		agentFilter = pgtype.UUID{Bytes: claims.UserID, Valid: true}
	}

	orders, err := h.store.ListOrderHeaders(r.Context(), store.ListOrderHeadersParams{
		AgentID: agentFilter,
		Limit:   int32(limit),
		Offset:  int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := orderListResponse{
		Orders: make([]orderResponse, len(orders)),
		Limit:  limit,
		Offset: offset,
	}
	for i, o := range orders {
		resp.Orders[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single order with its line items. Agents may only read their
// own orders.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrderHeader(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if claims.Role != enum.UserRoleAdmin && order.AgentID != claims.UserID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied"})
		return
	}

	items, err := h.store.ListLineItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := orderDetailResponse{orderResponse: toOrderResponse(order)}
	resp.Items = make([]lineItemResponse, len(items))
	for i, it := range items {
		li := lineItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			UnitLabel: it.UnitLabel,
		}
		if it.Comment.Valid {
			li.Comment = &it.Comment.String
		}
		resp.Items[i] = li
	}
	writeJSON(w, http.StatusOK, resp)
}
