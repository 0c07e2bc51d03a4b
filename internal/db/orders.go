package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateOrderParams freezes a priced cart into an order row.
type CreateOrderParams struct {
	EstablishmentID uuid.UUID
	Ref             string
	Status          string
	Fulfillment     string
	TableNumber     *int32
	CustomerName    string
	CustomerPhone   string
	Address         *string
	Subtotal        string
	DeliveryFee     string
	Discount        string
	Total           string
	CouponCode      *string
	PaymentMethod   string
	PixPayload      *string
	Note            string
}

const orderCols = `id, establishment_id, ref, status, fulfillment, table_number,
	customer_name, customer_phone, address, subtotal::text, delivery_fee::text,
	discount::text, total::text, coupon_code, payment_method, pix_payload, note,
	created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var (
		o        Order
		subtotal string
		fee      string
		discount string
		total    string
	)
	if err := row.Scan(&o.ID, &o.EstablishmentID, &o.Ref, &o.Status, &o.Fulfillment,
		&o.TableNumber, &o.CustomerName, &o.CustomerPhone, &o.Address,
		&subtotal, &fee, &discount, &total, &o.CouponCode, &o.PaymentMethod,
		&o.PixPayload, &o.Note, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	var err error
	if o.Subtotal, err = parseMoney(subtotal); err != nil {
		return Order{}, err
	}
	if o.DeliveryFee, err = parseMoney(fee); err != nil {
		return Order{}, err
	}
	if o.Discount, err = parseMoney(discount); err != nil {
		return Order{}, err
	}
	o.Total, err = parseMoney(total)
	return o, err
}

// CreateOrder inserts a new order.
func (s *Store) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO orders (establishment_id, ref, status, fulfillment, table_number,
			customer_name, customer_phone, address, subtotal, delivery_fee, discount,
			total, coupon_code, payment_method, pix_payload, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10::numeric,
			$11::numeric, $12::numeric, $13, $14, $15, $16)
		RETURNING `+orderCols,
		arg.EstablishmentID, arg.Ref, arg.Status, arg.Fulfillment, arg.TableNumber,
		arg.CustomerName, arg.CustomerPhone, arg.Address, arg.Subtotal, arg.DeliveryFee,
		arg.Discount, arg.Total, arg.CouponCode, arg.PaymentMethod, arg.PixPayload, arg.Note)
	return scanOrder(row)
}

// AddOrderItemParams is one frozen cart line on an order.
type AddOrderItemParams struct {
	OrderID   uuid.UUID
	Name      string
	UnitPrice string
	Qty       int32
	Addons    []CartItemAddon
	Note      string
	Total     string
}

// AddOrderItem inserts one order line.
func (s *Store) AddOrderItem(ctx context.Context, arg AddOrderItemParams) (OrderItem, error) {
	addons, err := json.Marshal(arg.Addons)
	if err != nil {
		return OrderItem{}, fmt.Errorf("encode order item addons: %w", err)
	}
	if arg.Addons == nil {
		addons = []byte("[]")
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, name, unit_price, qty, addons, note, total)
		VALUES ($1, $2, $3::numeric, $4, $5::jsonb, $6, $7::numeric)
		RETURNING id, order_id, name, unit_price::text, qty, addons, note, total::text`,
		arg.OrderID, arg.Name, arg.UnitPrice, arg.Qty, string(addons), arg.Note, arg.Total)
	return scanOrderItem(row)
}

func scanOrderItem(row interface{ Scan(dest ...any) error }) (OrderItem, error) {
	var (
		it     OrderItem
		price  string
		total  string
		addons []byte
	)
	if err := row.Scan(&it.ID, &it.OrderID, &it.Name, &price, &it.Qty,
		&addons, &it.Note, &total); err != nil {
		return OrderItem{}, err
	}
	var err error
	if it.UnitPrice, err = parseMoney(price); err != nil {
		return OrderItem{}, err
	}
	if it.Total, err = parseMoney(total); err != nil {
		return OrderItem{}, err
	}
	if err := json.Unmarshal(addons, &it.Addons); err != nil {
		return OrderItem{}, fmt.Errorf("decode order item addons: %w", err)
	}
	return it, nil
}

// ListOrderItems returns the lines of one order.
func (s *Store) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, name, unit_price::text, qty, addons, note, total::text
		FROM order_items WHERE order_id = $1 ORDER BY name`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// GetOrder loads one order scoped to the establishment.
func (s *Store) GetOrder(ctx context.Context, establishmentID, id uuid.UUID) (Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+orderCols+` FROM orders
		WHERE id = $1 AND establishment_id = $2`, id, establishmentID)
	return scanOrder(row)
}

// GetOrderByRef loads one order by its short customer-facing reference.
func (s *Store) GetOrderByRef(ctx context.Context, establishmentID uuid.UUID, ref string) (Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+orderCols+` FROM orders
		WHERE establishment_id = $1 AND ref = $2`, establishmentID, ref)
	return scanOrder(row)
}

// ListOrdersParams filters the staff board listing.
type ListOrdersParams struct {
	EstablishmentID uuid.UUID
	Status          string
	Fulfillment     string
	TableNumber     *int32
	Limit           int32
	Offset          int32
}

// ListOrders returns orders newest first, optionally filtered by status,
// fulfillment kind and table number.
func (s *Store) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderCols+` FROM orders
		WHERE establishment_id = $1
			AND ($2 = '' OR status = $2)
			AND ($3 = '' OR fulfillment = $3)
			AND ($4::int IS NULL OR table_number = $4)
		ORDER BY created_at DESC LIMIT $5 OFFSET $6`,
		arg.EstablishmentID, arg.Status, arg.Fulfillment, arg.TableNumber, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateOrderStatus moves an order to a new status only when it is currently
// in the expected one, so concurrent staff clicks cannot double-advance.
func (s *Store) UpdateOrderStatus(ctx context.Context, establishmentID, id uuid.UUID, from, to string) (Order, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE orders SET status = $4, updated_at = now()
		WHERE id = $2 AND establishment_id = $1 AND status = $3
		RETURNING `+orderCols, establishmentID, id, from, to)
	return scanOrder(row)
}

// NextOrderRef allocates the next per-day sequence number for the
// establishment's customer-facing refs. The upsert holds a row lock until the
// surrounding transaction commits, so concurrent checkouts get distinct
// numbers without retrying. The day comes from the caller's clock so the ref
// date prefix and the counter bucket can never disagree.
func (s *Store) NextOrderRef(ctx context.Context, establishmentID uuid.UUID, day time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO order_ref_counters (establishment_id, day, counter)
		VALUES ($1, $2::date, 1)
		ON CONFLICT (establishment_id, day)
		DO UPDATE SET counter = order_ref_counters.counter + 1
		RETURNING counter`,
		establishmentID, day).Scan(&n)
	return n, err
}
