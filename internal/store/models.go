package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// User is an account that can sign in: a field agent or an administrator.
type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	CreatedAt      time.Time
}

// Product is a catalog entry. Prices and unit labels are read-only from the
// order-entry side; only active products are offered for sale.
type Product struct {
	ID        uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	UnitLabel string
	Category  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Client is a customer an order can be placed for.
type Client struct {
	ID        uuid.UUID
	Name      string
	Address   string
	CreatedAt time.Time
}

// OrderHeader is the order record proper. TotalItems and TotalAmount are
// derived from the cart at submission time, never entered independently.
type OrderHeader struct {
	ID           uuid.UUID
	ClientID     uuid.UUID
	AgentID      uuid.UUID
	DeliveryDate time.Time
	TotalItems   int32
	TotalAmount  decimal.Decimal
	CreatedAt    time.Time
}

// LineItem is one product line of an order. UnitPrice and UnitLabel are
// snapshots taken at submission; later catalog changes must not alter them.
type LineItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	UnitPrice decimal.Decimal
	UnitLabel string
	Comment   pgtype.Text
}

// --- Write params ---

type CreateClientParams struct {
	Name    string
	Address string
}

type CreateOrderHeaderParams struct {
	ClientID     uuid.UUID
	AgentID      uuid.UUID
	DeliveryDate time.Time
	TotalItems   int32
	TotalAmount  decimal.Decimal
}

type CreateLineItemParams struct {
	ProductID uuid.UUID
	Quantity  int32
	UnitPrice decimal.Decimal
	UnitLabel string
	Comment   pgtype.Text
}

type ListOrderHeadersParams struct {
	AgentID pgtype.UUID // zero value lists orders for all agents
	Limit   int32
	Offset  int32
}
