package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// DBTX is the subset of the pgx connection surface the store needs.
// Satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store is hand-written data access over the backing tables. The order write
// path deliberately offers no cross-table transaction: header insert, line-item
// insert, and header delete are independent calls, and keeping the submission
// consistent across them is the coordinator's job, not the store's.
type Store struct {
	db DBTX
}

// New creates a Store from a pool or transaction.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// --- Users ---

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, email, hashed_password, full_name, role, created_at
		 FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, email, hashed_password, full_name, role, created_at
		 FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.CreatedAt)
	return u, err
}

// --- Products ---

// ListActiveProducts returns every product offered for sale, in the order the
// entry screens display them.
func (s *Store) ListActiveProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, unit_price::text, unit_label, category, active, created_at, updated_at
		 FROM products WHERE active = true
		 ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		var price string
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.UnitLabel, &p.Category,
			&p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.UnitPrice, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("product %s: parse unit_price: %w", p.ID, err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// --- Clients ---

func (s *Store) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, address, created_at
		 FROM clients ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.CreatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// CreateClient inserts a client; the server assigns id and creation timestamp.
func (s *Store) CreateClient(ctx context.Context, arg CreateClientParams) (Client, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO clients (name, address)
		 VALUES ($1, $2)
		 RETURNING id, name, address, created_at`,
		arg.Name, arg.Address)
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.Address, &c.CreatedAt)
	return c, err
}

// --- Orders ---

// CreateOrderHeader inserts the order header and returns it with the
// store-generated id.
func (s *Store) CreateOrderHeader(ctx context.Context, arg CreateOrderHeaderParams) (OrderHeader, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO orders (client_id, agent_id, delivery_date, total_items, total_amount)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, client_id, agent_id, delivery_date, total_items, total_amount::text, created_at`,
		arg.ClientID, arg.AgentID, arg.DeliveryDate, arg.TotalItems, arg.TotalAmount.StringFixed(2))
	return scanOrderHeader(row)
}

// CreateLineItems inserts all items for an order as one COPY operation. COPY is
// a single statement, so the batch lands entirely or not at all; there is no
// partial-batch state for the coordinator to reason about.
func (s *Store) CreateLineItems(ctx context.Context, orderID uuid.UUID, items []CreateLineItemParams) error {
	rows := make([][]any, len(items))
	for i, it := range items {
		rows[i] = []any{
			orderID,
			it.ProductID,
			it.Quantity,
			decimalToNumeric(it.UnitPrice),
			it.UnitLabel,
			it.Comment,
		}
	}

	n, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"order_items"},
		[]string{"order_id", "product_id", "quantity", "unit_price", "unit_label", "comment"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return err
	}
	if n != int64(len(items)) {
		return fmt.Errorf("order %s: inserted %d of %d line items", orderID, n, len(items))
	}
	return nil
}

// DeleteOrderHeader removes an order header by id. Used only as the
// compensating action after a failed line-item insert.
func (s *Store) DeleteOrderHeader(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return err
}

func (s *Store) GetOrderHeader(ctx context.Context, id uuid.UUID) (OrderHeader, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, client_id, agent_id, delivery_date, total_items, total_amount::text, created_at
		 FROM orders WHERE id = $1`, id)
	return scanOrderHeader(row)
}

func (s *Store) ListOrderHeaders(ctx context.Context, arg ListOrderHeadersParams) ([]OrderHeader, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, client_id, agent_id, delivery_date, total_items, total_amount::text, created_at
		 FROM orders
		 WHERE ($1::uuid IS NULL OR agent_id = $1)
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		arg.AgentID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []OrderHeader
	for rows.Next() {
		o, err := scanOrderHeader(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *Store) ListLineItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]LineItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, order_id, product_id, quantity, unit_price::text, unit_label, comment
		 FROM order_items WHERE order_id = $1
		 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var it LineItem
		var price string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity,
			&price, &it.UnitLabel, &it.Comment); err != nil {
			return nil, err
		}
		it.UnitPrice, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("line item %s: parse unit_price: %w", it.ID, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// --- Helpers ---

func scanOrderHeader(row pgx.Row) (OrderHeader, error) {
	var o OrderHeader
	var total string
	err := row.Scan(&o.ID, &o.ClientID, &o.AgentID, &o.DeliveryDate,
		&o.TotalItems, &total, &o.CreatedAt)
	if err != nil {
		return OrderHeader{}, err
	}
	o.TotalAmount, err = decimal.NewFromString(total)
	if err != nil {
		return OrderHeader{}, fmt.Errorf("order %s: parse total_amount: %w", o.ID, err)
	}
	return o, nil
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
