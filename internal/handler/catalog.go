package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/fieldsales/api/internal/catalog"
	"github.com/fieldsales/api/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CatalogHandler serves the session-held product snapshot. Reads never touch
// the database; an explicit refresh is the only way to reload.
type CatalogHandler struct {
	catalog *catalog.Catalog
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(c *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

// RegisterRoutes registers catalog endpoints on the given Chi router.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/refresh", h.Refresh)
}

// --- Response types ---

type productResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	UnitPrice string    `json:"unit_price"`
	UnitLabel string    `json:"unit_label"`
	Category  string    `json:"category"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toProductResponse(p store.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Name:      p.Name,
		UnitPrice: p.UnitPrice.StringFixed(2),
		UnitLabel: p.UnitLabel,
		Category:  p.Category,
		UpdatedAt: p.UpdatedAt,
	}
}

// --- Handlers ---

// List returns the products in the current snapshot.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.catalog.Snapshot()
	products := snap.Products()

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh reloads the snapshot from the product repository. User-initiated;
// there is no automatic retry behind a failed load.
func (h *CatalogHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Load(r.Context()); err != nil {
		log.Printf("ERROR: reload catalog: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to load products"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": h.catalog.Snapshot().Len()})
}
