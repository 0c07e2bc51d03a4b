package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/comanda-app/backend-comanda/internal/coupon"
	"github.com/comanda-app/backend-comanda/internal/db"
	"github.com/comanda-app/backend-comanda/internal/pricing"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrUnavailable is returned when the product cannot be ordered right now.
var ErrUnavailable = errors.New("product unavailable")

// Querier captures the database methods required by the cart service.
type Querier interface {
	CreateCart(ctx context.Context, establishmentID uuid.UUID, sessionID string, expiresAt time.Time) (db.Cart, error)
	GetCartBySession(ctx context.Context, establishmentID uuid.UUID, sessionID string) (db.Cart, error)
	GetCart(ctx context.Context, establishmentID, id uuid.UUID) (db.Cart, error)
	TouchCart(ctx context.Context, cartID uuid.UUID, expiresAt time.Time) error
	SetCartCoupon(ctx context.Context, cartID uuid.UUID, code *string) error
	AddCartItem(ctx context.Context, arg db.AddCartItemParams) (db.CartItem, error)
	UpdateCartItemQty(ctx context.Context, cartID, itemID uuid.UUID, qty int32) (db.CartItem, error)
	RemoveCartItem(ctx context.Context, cartID, itemID uuid.UUID) error
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]db.CartItem, error)
	ClearCartItems(ctx context.Context, cartID uuid.UUID) error
	GetProductByID(ctx context.Context, establishmentID, id uuid.UUID) (db.Product, error)
	GetVariation(ctx context.Context, id uuid.UUID) (db.Variation, error)
	ListAddonOptions(ctx context.Context, productID uuid.UUID) ([]db.AddonOption, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	Q       Querier
	Coupons *coupon.Service
	TTL     time.Duration
	Now     func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 72 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// EnsureCart loads or creates a cart for the shopper session.
func (s *Service) EnsureCart(ctx context.Context, establishmentID uuid.UUID, sessionID string) (db.Cart, error) {
	if s == nil || s.Q == nil {
		return db.Cart{}, errors.New("cart service not configured")
	}
	if sessionID == "" {
		return db.Cart{}, fmt.Errorf("session id is required: %w", ErrInvalidInput)
	}
	expires := s.now().Add(s.ttl())
	cart, err := s.Q.GetCartBySession(ctx, establishmentID, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.Q.CreateCart(ctx, establishmentID, sessionID, expires)
		}
		return db.Cart{}, err
	}
	_ = s.Q.TouchCart(ctx, cart.ID, expires)
	return cart, nil
}

// Load fetches a cart by id, scoped to the establishment.
func (s *Service) Load(ctx context.Context, establishmentID, cartID uuid.UUID) (db.Cart, error) {
	cart, err := s.Q.GetCart(ctx, establishmentID, cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Cart{}, ErrNotFound
		}
		return db.Cart{}, err
	}
	return cart, nil
}

// AddItemInput is one configured product selection.
type AddItemInput struct {
	ProductID   uuid.UUID
	VariationID *uuid.UUID
	AddonIDs    []uuid.UUID
	Qty         int32
	Note        string
}

// AddItem snapshots a configured product into the cart. The unit price and
// add-on prices are frozen at add time so later menu edits don't reprice the
// cart.
func (s *Service) AddItem(ctx context.Context, establishmentID, cartID uuid.UUID, in AddItemInput) (db.CartItem, error) {
	if s == nil || s.Q == nil {
		return db.CartItem{}, errors.New("cart service not configured")
	}
	if in.Qty < 1 {
		return db.CartItem{}, fmt.Errorf("qty must be at least 1: %w", ErrInvalidInput)
	}
	product, err := s.Q.GetProductByID(ctx, establishmentID, in.ProductID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.CartItem{}, fmt.Errorf("unknown product: %w", ErrInvalidInput)
		}
		return db.CartItem{}, err
	}
	if !product.Available {
		return db.CartItem{}, ErrUnavailable
	}

	name := product.Name
	unitPrice := product.BasePrice
	if in.VariationID != nil {
		variation, err := s.Q.GetVariation(ctx, *in.VariationID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return db.CartItem{}, fmt.Errorf("unknown variation: %w", ErrInvalidInput)
			}
			return db.CartItem{}, err
		}
		if variation.ProductID != product.ID {
			return db.CartItem{}, fmt.Errorf("variation does not belong to product: %w", ErrInvalidInput)
		}
		name = product.Name + " " + variation.Name
		unitPrice = variation.Price
	}

	addons, err := s.resolveAddons(ctx, product.ID, in.AddonIDs)
	if err != nil {
		return db.CartItem{}, err
	}

	return s.Q.AddCartItem(ctx, db.AddCartItemParams{
		CartID:      cartID,
		ProductID:   product.ID,
		VariationID: in.VariationID,
		Name:        name,
		UnitPrice:   unitPrice.String(),
		Qty:         in.Qty,
		Addons:      addons,
		Note:        in.Note,
	})
}

func (s *Service) resolveAddons(ctx context.Context, productID uuid.UUID, ids []uuid.UUID) ([]db.CartItemAddon, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	options, err := s.Q.ListAddonOptions(ctx, productID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]db.AddonOption, len(options))
	for _, opt := range options {
		byID[opt.ID] = opt
	}
	out := make([]db.CartItemAddon, 0, len(ids))
	for _, id := range ids {
		opt, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("addon does not belong to product: %w", ErrInvalidInput)
		}
		out = append(out, db.CartItemAddon{Name: opt.Name, UnitPrice: opt.Price})
	}
	return out, nil
}

// UpdateItemQty changes the quantity of one cart line.
func (s *Service) UpdateItemQty(ctx context.Context, cartID, itemID uuid.UUID, qty int32) (db.CartItem, error) {
	if qty < 1 {
		return db.CartItem{}, fmt.Errorf("qty must be at least 1: %w", ErrInvalidInput)
	}
	item, err := s.Q.UpdateCartItemQty(ctx, cartID, itemID, qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.CartItem{}, ErrNotFound
		}
		return db.CartItem{}, err
	}
	return item, nil
}

// PricingLines converts stored cart items into pricing engine lines.
func PricingLines(items []db.CartItem) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		line := pricing.Line{
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Qty:       int(it.Qty),
			Note:      it.Note,
		}
		for _, a := range it.Addons {
			line.Addons = append(line.Addons, pricing.Addon{Name: a.Name, UnitPrice: a.UnitPrice})
		}
		lines = append(lines, line)
	}
	return lines
}

// View is the priced cart payload returned to the storefront.
type View struct {
	CartID     uuid.UUID      `json:"cartId"`
	SessionID  string         `json:"sessionId"`
	Items      []ItemView     `json:"items"`
	CouponCode *string        `json:"couponCode,omitempty"`
	Totals     pricing.Totals `json:"totals"`
}

// ItemView is one priced cart line.
type ItemView struct {
	ID        uuid.UUID          `json:"id"`
	Name      string             `json:"name"`
	UnitPrice string             `json:"unitPrice"`
	Qty       int32              `json:"qty"`
	Addons    []db.CartItemAddon `json:"addons"`
	Note      string             `json:"note,omitempty"`
	LineUnit  string             `json:"lineUnit"`
	LineTotal string             `json:"lineTotal"`
}

// Price assembles the priced view of a cart. The delivery fee previews the
// establishment's configured fee; the final fee depends on the fulfillment
// chosen at checkout.
func (s *Service) Price(ctx context.Context, e db.Establishment, cart db.Cart) (View, error) {
	items, err := s.Q.ListCartItems(ctx, cart.ID)
	if err != nil {
		return View{}, err
	}
	lines := PricingLines(items)

	base, err := pricing.ComputeTotals(lines, decimal.Zero, decimal.Zero)
	if err != nil {
		return View{}, err
	}

	deliveryFee := e.DeliveryFee
	discount := decimal.Zero
	if cart.CouponCode != nil && s.Coupons != nil {
		preview, err := s.Coupons.Preview(ctx, e.ID, *cart.CouponCode, base.Subtotal)
		if err == nil {
			discount = preview.Discount
			if preview.FreeDelivery {
				deliveryFee = decimal.Zero
			}
		}
	}

	totals, err := pricing.ComputeTotals(lines, deliveryFee, discount)
	if err != nil {
		return View{}, err
	}

	view := View{
		CartID:     cart.ID,
		SessionID:  cart.SessionID,
		CouponCode: cart.CouponCode,
		Items:      make([]ItemView, 0, len(items)),
		Totals:     totals,
	}
	for i, it := range items {
		view.Items = append(view.Items, ItemView{
			ID:        it.ID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Qty:       it.Qty,
			Addons:    it.Addons,
			Note:      it.Note,
			LineUnit:  totals.Lines[i].UnitPrice.StringFixed(2),
			LineTotal: totals.Lines[i].Total.StringFixed(2),
		})
	}
	return view, nil
}
