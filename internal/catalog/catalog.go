// Package catalog provides load-once, read-many views over the product and
// client tables. Loads happen at startup or on an explicit refresh; every read
// in between is a synchronous in-memory lookup.
package catalog

import (
	"context"
	"sync"

	"github.com/fieldsales/api/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductLister is the read side of the product repository.
// Satisfied by *store.Store.
type ProductLister interface {
	ListActiveProducts(ctx context.Context) ([]store.Product, error)
}

// ClientLister is the read side of the client repository.
// Satisfied by *store.Store.
type ClientLister interface {
	ListClients(ctx context.Context) ([]store.Client, error)
}

// Snapshot is an immutable view of the active products at one load. Line-item
// prices and unit labels are captured from a snapshot at submission time, so a
// later reload never rewrites an order already placed.
type Snapshot struct {
	byID    map[uuid.UUID]store.Product
	ordered []store.Product
}

// NewSnapshot builds a snapshot from a product list, preserving its order.
func NewSnapshot(products []store.Product) *Snapshot {
	s := &Snapshot{
		byID:    make(map[uuid.UUID]store.Product, len(products)),
		ordered: products,
	}
	for _, p := range products {
		s.byID[p.ID] = p
	}
	return s
}

// Products returns the products in display order.
func (s *Snapshot) Products() []store.Product {
	return s.ordered
}

// Get looks up a product by id.
func (s *Snapshot) Get(id uuid.UUID) (store.Product, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// PriceOf implements cart.PriceSource.
func (s *Snapshot) PriceOf(id uuid.UUID) (decimal.Decimal, bool) {
	p, ok := s.byID[id]
	if !ok {
		return decimal.Zero, false
	}
	return p.UnitPrice, true
}

// Len returns the number of products in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.ordered)
}

// Catalog holds the current product snapshot. There is no retry loop inside:
// a failed load leaves the collection empty and the error is reported to the
// caller, who decides when to refresh.
type Catalog struct {
	repo ProductLister

	mu   sync.RWMutex
	snap *Snapshot
}

// NewCatalog creates a catalog with an empty snapshot.
func NewCatalog(repo ProductLister) *Catalog {
	return &Catalog{repo: repo, snap: NewSnapshot(nil)}
}

// Load fetches all active products and replaces the snapshot. On failure the
// snapshot is emptied so stale data is never silently served.
func (c *Catalog) Load(ctx context.Context) error {
	products, err := c.repo.ListActiveProducts(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.snap = NewSnapshot(nil)
		return err
	}
	c.snap = NewSnapshot(products)
	return nil
}

// Snapshot returns the current immutable view.
func (c *Catalog) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Directory holds the known clients. Unlike the catalog it supports appending
// a just-created client so it becomes selectable without a full reload.
type Directory struct {
	repo ClientLister

	mu      sync.RWMutex
	byID    map[uuid.UUID]store.Client
	ordered []store.Client
}

// NewDirectory creates an empty client directory.
func NewDirectory(repo ClientLister) *Directory {
	return &Directory{repo: repo, byID: make(map[uuid.UUID]store.Client)}
}

// Load fetches all clients and replaces the directory contents. On failure
// the directory is emptied and the error reported.
func (d *Directory) Load(ctx context.Context) error {
	clients, err := d.repo.ListClients(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID = make(map[uuid.UUID]store.Client, len(clients))
	d.ordered = nil
	if err != nil {
		return err
	}
	d.ordered = clients
	for _, c := range clients {
		d.byID[c.ID] = c
	}
	return nil
}

// Clients returns the known clients in display order.
func (d *Directory) Clients() []store.Client {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ordered
}

// Lookup resolves a client id. Implements service.ClientLookup.
func (d *Directory) Lookup(id uuid.UUID) (store.Client, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byID[id]
	return c, ok
}

// Append adds a client just created through the repository, with its
// server-assigned id, so it is immediately selectable.
func (d *Directory) Append(c store.Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byID[c.ID]; exists {
		return
	}
	d.byID[c.ID] = c
	d.ordered = append(d.ordered, c)
}
