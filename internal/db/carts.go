package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateCart opens a new cart for a shopper session.
func (s *Store) CreateCart(ctx context.Context, establishmentID uuid.UUID, sessionID string, expiresAt time.Time) (Cart, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO carts (establishment_id, session_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING `+cartCols, establishmentID, sessionID, expiresAt)
	return scanCart(row)
}

const cartCols = `id, establishment_id, session_id, coupon_code, created_at, updated_at, expires_at`

func scanCart(row interface{ Scan(dest ...any) error }) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.EstablishmentID, &c.SessionID, &c.CouponCode,
		&c.CreatedAt, &c.UpdatedAt, &c.ExpiresAt)
	return c, err
}

// GetCartBySession loads the newest non-expired cart for a session.
func (s *Store) GetCartBySession(ctx context.Context, establishmentID uuid.UUID, sessionID string) (Cart, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+cartCols+` FROM carts
		WHERE establishment_id = $1 AND session_id = $2 AND expires_at > now()
		ORDER BY created_at DESC LIMIT 1`, establishmentID, sessionID)
	return scanCart(row)
}

// GetCart loads a cart scoped to the establishment.
func (s *Store) GetCart(ctx context.Context, establishmentID, id uuid.UUID) (Cart, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+cartCols+` FROM carts
		WHERE id = $1 AND establishment_id = $2`, id, establishmentID)
	return scanCart(row)
}

// SetCartCoupon attaches or clears the coupon code on a cart.
func (s *Store) SetCartCoupon(ctx context.Context, cartID uuid.UUID, code *string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE carts SET coupon_code = $2, updated_at = now() WHERE id = $1`, cartID, code)
	return err
}

// TouchCart bumps updated_at and extends the expiry window.
func (s *Store) TouchCart(ctx context.Context, cartID uuid.UUID, expiresAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE carts SET updated_at = now(), expires_at = $2 WHERE id = $1`, cartID, expiresAt)
	return err
}

// DeleteCart removes a cart and its items.
func (s *Store) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	return err
}

// DeleteExpiredCarts purges carts past their expiry. Returns rows removed.
func (s *Store) DeleteExpiredCarts(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM carts WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// AddCartItemParams carries a configured product selection.
type AddCartItemParams struct {
	CartID      uuid.UUID
	ProductID   uuid.UUID
	VariationID *uuid.UUID
	Name        string
	UnitPrice   string
	Qty         int32
	Addons      []CartItemAddon
	Note        string
}

const cartItemCols = `id, cart_id, product_id, variation_id, name,
	unit_price::text, qty, addons, note, created_at`

func scanCartItem(row interface{ Scan(dest ...any) error }) (CartItem, error) {
	var (
		it     CartItem
		price  string
		addons []byte
	)
	if err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.VariationID, &it.Name,
		&price, &it.Qty, &addons, &it.Note, &it.CreatedAt); err != nil {
		return CartItem{}, err
	}
	var err error
	if it.UnitPrice, err = parseMoney(price); err != nil {
		return CartItem{}, err
	}
	if err := json.Unmarshal(addons, &it.Addons); err != nil {
		return CartItem{}, fmt.Errorf("decode cart item addons: %w", err)
	}
	return it, nil
}

// AddCartItem inserts a line into the cart.
func (s *Store) AddCartItem(ctx context.Context, arg AddCartItemParams) (CartItem, error) {
	addons, err := json.Marshal(arg.Addons)
	if err != nil {
		return CartItem{}, fmt.Errorf("encode cart item addons: %w", err)
	}
	if arg.Addons == nil {
		addons = []byte("[]")
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO cart_items (cart_id, product_id, variation_id, name, unit_price, qty, addons, note)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7::jsonb, $8)
		RETURNING `+cartItemCols,
		arg.CartID, arg.ProductID, arg.VariationID, arg.Name, arg.UnitPrice,
		arg.Qty, string(addons), arg.Note)
	return scanCartItem(row)
}

// UpdateCartItemQty changes a line's quantity.
func (s *Store) UpdateCartItemQty(ctx context.Context, cartID, itemID uuid.UUID, qty int32) (CartItem, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE cart_items SET qty = $3
		WHERE id = $2 AND cart_id = $1
		RETURNING `+cartItemCols, cartID, itemID, qty)
	return scanCartItem(row)
}

// RemoveCartItem deletes one line from the cart.
func (s *Store) RemoveCartItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $2 AND cart_id = $1`, cartID, itemID)
	return err
}

// ListCartItems returns the cart lines in insertion order.
func (s *Store) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+cartItemCols+` FROM cart_items
		WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CartItem
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ClearCartItems removes every line, keeping the cart row.
func (s *Store) ClearCartItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}
