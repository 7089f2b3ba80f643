// Package cart holds the products an agent intends to order before anything
// is persisted. A cart belongs to one session; it performs no I/O and no
// locking of its own.
package cart

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceSource reports the unit price of a product and whether the product is
// known. Satisfied by *catalog.Snapshot.
type PriceSource interface {
	PriceOf(productID uuid.UUID) (decimal.Decimal, bool)
}

// Entry is one cart line: a product, how many, and an optional free-text note.
type Entry struct {
	ProductID uuid.UUID
	Quantity  int
	Comment   string
}

// Cart maps product ids to positive quantities. Quantities of zero or less are
// never stored; setting one removes the entry instead.
type Cart struct {
	quantities map[uuid.UUID]int
	comments   map[uuid.UUID]string
}

// New creates an empty cart.
func New() *Cart {
	return &Cart{
		quantities: make(map[uuid.UUID]int),
		comments:   make(map[uuid.UUID]string),
	}
}

// SetQuantity stores the requested quantity for a product. Anything at or
// below zero removes the entry; invalid user input is coerced to zero upstream
// and degrades to removal rather than an error.
func (c *Cart) SetQuantity(productID uuid.UUID, quantity int) {
	if quantity <= 0 {
		delete(c.quantities, productID)
		return
	}
	c.quantities[productID] = quantity
}

// AdjustQuantity applies a delta (typically ±1) to the stored quantity,
// clamped at zero. Reaching zero removes the entry.
func (c *Cart) AdjustQuantity(productID uuid.UUID, delta int) {
	next := c.quantities[productID] + delta
	if next <= 0 {
		delete(c.quantities, productID)
		return
	}
	c.quantities[productID] = next
}

// SetComment attaches free text to an existing or future entry. It never
// affects quantities. An empty string clears the comment.
func (c *Cart) SetComment(productID uuid.UUID, text string) {
	if text == "" {
		delete(c.comments, productID)
		return
	}
	c.comments[productID] = text
}

// Quantity returns the stored quantity, zero when absent.
func (c *Cart) Quantity(productID uuid.UUID) int {
	return c.quantities[productID]
}

// Comment returns the stored comment, empty when absent.
func (c *Cart) Comment(productID uuid.UUID) string {
	return c.comments[productID]
}

// IsEmpty reports whether no entries remain.
func (c *Cart) IsEmpty() bool {
	return len(c.quantities) == 0
}

// TotalItemCount is the sum of all stored quantities.
func (c *Cart) TotalItemCount() int {
	total := 0
	for _, q := range c.quantities {
		total += q
	}
	return total
}

// TotalAmount sums quantity × unit price over all entries. A product the
// price source does not know contributes zero; the submission coordinator is
// the authoritative guard against unknown products.
func (c *Cart) TotalAmount(prices PriceSource) decimal.Decimal {
	total := decimal.Zero
	for id, q := range c.quantities {
		price, ok := prices.PriceOf(id)
		if !ok {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(q))))
	}
	return total
}

// Entries returns the cart lines in a stable order (by product id), with
// comments attached to present entries.
func (c *Cart) Entries() []Entry {
	entries := make([]Entry, 0, len(c.quantities))
	for id, q := range c.quantities {
		entries = append(entries, Entry{
			ProductID: id,
			Quantity:  q,
			Comment:   c.comments[id],
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ProductID.String() < entries[j].ProductID.String()
	})
	return entries
}

// Clone returns an independent copy. The submit path works from a clone so a
// failed submission leaves the live cart exactly as the agent built it.
func (c *Cart) Clone() *Cart {
	clone := New()
	for id, q := range c.quantities {
		clone.quantities[id] = q
	}
	for id, t := range c.comments {
		clone.comments[id] = t
	}
	return clone
}

// Reset empties the cart. Called only after a successful submission or an
// explicit user reset.
func (c *Cart) Reset() {
	c.quantities = make(map[uuid.UUID]int)
	c.comments = make(map[uuid.UUID]string)
}
