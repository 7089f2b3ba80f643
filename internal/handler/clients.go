package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/fieldsales/api/internal/catalog"
	"github.com/fieldsales/api/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ClientStore defines the database methods needed by client handlers.
// Satisfied by *store.Store; narrow interface for testability.
type ClientStore interface {
	CreateClient(ctx context.Context, arg store.CreateClientParams) (store.Client, error)
}

// ClientHandler serves the client directory and inline client creation during
// order entry.
type ClientHandler struct {
	store     ClientStore
	directory *catalog.Directory
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(store ClientStore, directory *catalog.Directory) *ClientHandler {
	return &ClientHandler{store: store, directory: directory}
}

// RegisterRoutes registers client endpoints on the given Chi router.
func (h *ClientHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/refresh", h.Refresh)
}

// --- Request / Response types ---

type createClientRequest struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Contact string `json:"contact"`
	Address string `json:"address"`
}

type clientResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

func toClientResponse(c store.Client) clientResponse {
	return clientResponse{
		ID:        c.ID,
		Name:      c.Name,
		Address:   c.Address,
		CreatedAt: c.CreatedAt,
	}
}

// displayName folds the optional company and contact sub-fields into the
// stored display name, the convention the order screens rely on.
func displayName(req createClientRequest) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{req.Name, req.Company, req.Contact} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " - ")
}

// --- Handlers ---

// List returns the clients currently in the directory.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	clients := h.directory.Clients()
	resp := make([]clientResponse, len(clients))
	for i, c := range clients {
		resp[i] = toClientResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create inserts a client through the repository and appends the returned
// record (with its server-assigned id) to the directory so it is immediately
// selectable.
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	name := displayName(req)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address is required"})
		return
	}

	client, err := h.store.CreateClient(r.Context(), store.CreateClientParams{
		Name:    name,
		Address: strings.TrimSpace(req.Address),
	})
	if err != nil {
		log.Printf("ERROR: create client: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.directory.Append(client)
	writeJSON(w, http.StatusCreated, toClientResponse(client))
}

// Refresh reloads the directory from the client repository.
func (h *ClientHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.directory.Load(r.Context()); err != nil {
		log.Printf("ERROR: reload client directory: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to load clients"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": len(h.directory.Clients())})
}
