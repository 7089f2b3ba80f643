package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fieldsales/api/internal/cart"
	"github.com/fieldsales/api/internal/catalog"
	"github.com/fieldsales/api/internal/middleware"
	"github.com/fieldsales/api/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CartHandler exposes the cart-mutation API over the agent's session cart.
// Quantities never persist anywhere; the cart lives and dies in memory.
type CartHandler struct {
	sessions *session.Registry
	catalog  *catalog.Catalog
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(sessions *session.Registry, catalog *catalog.Catalog) *CartHandler {
	return &CartHandler{sessions: sessions, catalog: catalog}
}

// RegisterRoutes registers cart endpoints on the given Chi router.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Reset)
	r.Put("/items/{pid}", h.SetQuantity)
	r.Post("/items/{pid}/adjust", h.AdjustQuantity)
	r.Put("/items/{pid}/comment", h.SetComment)
}

// --- Request / Response types ---

type setQuantityRequest struct {
	// Accepts a number or a string; anything unparseable coerces to zero,
	// which removes the entry. Mirrors how the entry screens treat cleared
	// or garbled quantity fields.
	Quantity json.RawMessage `json:"quantity"`
}

type adjustQuantityRequest struct {
	Delta int `json:"delta"`
}

type setCommentRequest struct {
	Comment string `json:"comment"`
}

type cartEntryResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Comment   string    `json:"comment,omitempty"`
}

type cartResponse struct {
	Entries     []cartEntryResponse `json:"entries"`
	TotalItems  int                 `json:"total_items"`
	TotalAmount string              `json:"total_amount"`
}

// --- Handlers ---

// Get returns the session cart with totals priced against the current
// catalog snapshot.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	sess := h.sessions.Get(claims.UserID)
	snap := h.catalog.Snapshot()

	var resp cartResponse
	sess.WithCart(func(c *cart.Cart) {
		entries := c.Entries()
		resp.Entries = make([]cartEntryResponse, len(entries))
		for i, e := range entries {
			resp.Entries[i] = cartEntryResponse{
				ProductID: e.ProductID,
				Quantity:  e.Quantity,
				Comment:   e.Comment,
			}
		}
		resp.TotalItems = c.TotalItemCount()
		resp.TotalAmount = c.TotalAmount(snap).StringFixed(2)
	})

	writeJSON(w, http.StatusOK, resp)
}

// Reset empties the session cart on explicit user request.
func (h *CartHandler) Reset(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	h.sessions.Get(claims.UserID).WithCart(func(c *cart.Cart) { c.Reset() })
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// SetQuantity stores the requested quantity for a product. Invalid input is
// not an error: it degrades to zero, which removes the entry.
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "pid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	qty := coerceQuantity(req.Quantity)
	sess := h.sessions.Get(claims.UserID)
	var stored int
	sess.WithCart(func(c *cart.Cart) {
		c.SetQuantity(productID, qty)
		stored = c.Quantity(productID)
	})

	writeJSON(w, http.StatusOK, map[string]int{"quantity": stored})
}

// AdjustQuantity applies a delta (typically ±1) to a product's quantity.
func (h *CartHandler) AdjustQuantity(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "pid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	var req adjustQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sess := h.sessions.Get(claims.UserID)
	var stored int
	sess.WithCart(func(c *cart.Cart) {
		c.AdjustQuantity(productID, req.Delta)
		stored = c.Quantity(productID)
	})

	writeJSON(w, http.StatusOK, map[string]int{"quantity": stored})
}

// SetComment attaches free text to a cart entry.
func (h *CartHandler) SetComment(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "pid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	var req setCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	h.sessions.Get(claims.UserID).WithCart(func(c *cart.Cart) {
		c.SetComment(productID, req.Comment)
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Helpers ---

// coerceQuantity turns raw user input into a non-negative integer. Numbers
// are truncated toward zero, numeric strings parsed, and everything else
// (null, empty, garbage) becomes zero.
func coerceQuantity(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n < 0 {
			return int(n) // negative still removes; the cart clamps at zero
		}
		return int(n)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return 0
}
