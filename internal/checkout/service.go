package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/comanda-app/backend-comanda/internal/cart"
	"github.com/comanda-app/backend-comanda/internal/coupon"
	"github.com/comanda-app/backend-comanda/internal/db"
	"github.com/comanda-app/backend-comanda/internal/obs"
	"github.com/comanda-app/backend-comanda/internal/pix"
	"github.com/comanda-app/backend-comanda/internal/pricing"
)

// Payment methods accepted at checkout.
const (
	PaymentPix  = "pix"
	PaymentCash = "cash"
	PaymentCard = "card"
)

var (
	// ErrEmptyCart is returned when checking out a cart with no items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrClosed is returned when the establishment is not accepting orders.
	ErrClosed = errors.New("establishment is closed")
	// ErrPixUnavailable is returned when PIX payment was requested but the
	// establishment has no usable PIX key.
	ErrPixUnavailable = errors.New("pix payment unavailable")
	// ErrInvalidInput is returned when the checkout payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// Store captures the database methods required by the checkout service.
type Store interface {
	GetCart(ctx context.Context, establishmentID, id uuid.UUID) (db.Cart, error)
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]db.CartItem, error)
	ClearCartItems(ctx context.Context, cartID uuid.UUID) error
	SetCartCoupon(ctx context.Context, cartID uuid.UUID, code *string) error
	GetCouponByCode(ctx context.Context, establishmentID uuid.UUID, code string) (db.Coupon, error)
	IncrementCouponUsage(ctx context.Context, id uuid.UUID) (bool, error)
	NextOrderRef(ctx context.Context, establishmentID uuid.UUID, day time.Time) (int64, error)
	CreateOrder(ctx context.Context, arg db.CreateOrderParams) (db.Order, error)
	AddOrderItem(ctx context.Context, arg db.AddOrderItemParams) (db.OrderItem, error)
}

// Notifier is told about committed orders; delivery happens out of band.
type Notifier interface {
	OrderCreated(ctx context.Context, order db.Order) error
}

// Input is the checkout payload.
type Input struct {
	CartID        uuid.UUID
	Fulfillment   string
	TableNumber   *int32
	CustomerName  string
	CustomerPhone string
	Address       string
	PaymentMethod string
	Note          string
}

// Output is the created order summary returned to the storefront.
type Output struct {
	OrderID     uuid.UUID      `json:"orderId"`
	Ref         string         `json:"ref"`
	Status      string         `json:"status"`
	Fulfillment string         `json:"fulfillment"`
	Totals      pricing.Totals `json:"totals"`
	PixPayload  *string        `json:"pixPayload,omitempty"`
}

// Service freezes a priced cart into an order.
type Service struct {
	Q        Store
	Pool     *pgxpool.Pool
	WithTx   func(tx pgx.Tx) Store
	Notifier Notifier
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) runTx(ctx context.Context, fn func(Store) error) error {
	if s.Pool == nil || s.WithTx == nil {
		return fn(s.Q)
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(s.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Create validates the cart, resolves the delivery fee and discount, and
// writes the order with a frozen pricing breakdown in one transaction.
func (s *Service) Create(ctx context.Context, e db.Establishment, in Input) (Output, error) {
	if s == nil || s.Q == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	if !e.Open {
		return Output{}, ErrClosed
	}
	if err := validateInput(in); err != nil {
		return Output{}, err
	}

	var out Output
	err := s.runTx(ctx, func(q Store) error {
		cartRow, err := q.GetCart(ctx, e.ID, in.CartID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("unknown cart: %w", ErrInvalidInput)
			}
			return err
		}
		items, err := q.ListCartItems(ctx, cartRow.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		lines := cart.PricingLines(items)
		base, err := pricing.ComputeTotals(lines, decimal.Zero, decimal.Zero)
		if err != nil {
			return err
		}

		deliveryFee := decimal.Zero
		if in.Fulfillment == db.FulfillmentDelivery {
			deliveryFee = e.DeliveryFee
		}

		discount := decimal.Zero
		coupons := &coupon.Service{Q: q, Now: s.Now}
		if cartRow.CouponCode != nil {
			preview, err := coupons.Preview(ctx, e.ID, *cartRow.CouponCode, base.Subtotal)
			if err != nil {
				obs.CouponApplyTotal.WithLabelValues("rejected").Inc()
				return fmt.Errorf("coupon no longer valid: %w", ErrInvalidInput)
			}
			discount = preview.Discount
			if preview.FreeDelivery {
				deliveryFee = decimal.Zero
			}
			if err := coupons.Settle(ctx, e.ID, *cartRow.CouponCode); err != nil {
				obs.CouponApplyTotal.WithLabelValues("rejected").Inc()
				return fmt.Errorf("coupon no longer valid: %w", ErrInvalidInput)
			}
			obs.CouponApplyTotal.WithLabelValues("ok").Inc()
		}

		totals, err := pricing.ComputeTotals(lines, deliveryFee, discount)
		if err != nil {
			return err
		}

		order, err := s.insertOrder(ctx, q, e, cartRow, in, totals)
		if err != nil {
			return err
		}

		for i, it := range items {
			_, err := q.AddOrderItem(ctx, db.AddOrderItemParams{
				OrderID:   order.ID,
				Name:      it.Name,
				UnitPrice: totals.Lines[i].UnitPrice.String(),
				Qty:       it.Qty,
				Addons:    it.Addons,
				Note:      it.Note,
				Total:     totals.Lines[i].Total.String(),
			})
			if err != nil {
				return err
			}
		}

		if err := q.ClearCartItems(ctx, cartRow.ID); err != nil {
			return err
		}
		if cartRow.CouponCode != nil {
			if err := q.SetCartCoupon(ctx, cartRow.ID, nil); err != nil {
				return err
			}
		}

		out = Output{
			OrderID:     order.ID,
			Ref:         order.Ref,
			Status:      order.Status,
			Fulfillment: order.Fulfillment,
			Totals:      totals,
			PixPayload:  order.PixPayload,
		}
		return nil
	})
	if err != nil {
		return Output{}, err
	}

	obs.OrdersCreatedTotal.WithLabelValues(in.Fulfillment).Inc()
	if s.Notifier != nil {
		notifyErr := s.Notifier.OrderCreated(ctx, db.Order{
			ID:              out.OrderID,
			EstablishmentID: e.ID,
			Ref:             out.Ref,
			Status:          out.Status,
			Fulfillment:     out.Fulfillment,
			Total:           out.Totals.Total,
		})
		if notifyErr != nil {
			// The order is already committed; losing the webhook must not
			// fail the checkout, but it has to show up in the logs.
			zerolog.Ctx(ctx).Error().Err(notifyErr).Str("ref", out.Ref).Msg("enqueue order created event")
		}
	}
	return out, nil
}

func (s *Service) insertOrder(ctx context.Context, q Store, e db.Establishment, cartRow db.Cart, in Input, totals pricing.Totals) (db.Order, error) {
	params := db.CreateOrderParams{
		EstablishmentID: e.ID,
		Status:          db.OrderStatusReceived,
		Fulfillment:     in.Fulfillment,
		TableNumber:     in.TableNumber,
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerPhone:   strings.TrimSpace(in.CustomerPhone),
		Subtotal:        totals.Subtotal.String(),
		DeliveryFee:     totals.DeliveryFee.String(),
		Discount:        totals.Discount.String(),
		Total:           totals.Total.String(),
		CouponCode:      cartRow.CouponCode,
		PaymentMethod:   in.PaymentMethod,
		Note:            strings.TrimSpace(in.Note),
	}
	if addr := strings.TrimSpace(in.Address); addr != "" {
		params.Address = &addr
	}

	// The per-day sequence is allocated by an upsert on a counter row, so
	// concurrent checkouts serialize on the row lock instead of colliding on
	// the unique ref index. Date prefix and counter bucket share one clock.
	day := s.now()
	n, err := q.NextOrderRef(ctx, e.ID, day)
	if err != nil {
		return db.Order{}, err
	}
	params.Ref = fmt.Sprintf("%s-%03d", day.Format("20060102"), n)

	if in.PaymentMethod == PaymentPix {
		// The order ref doubles as the PIX txid so payments can be
		// reconciled against the board.
		payload, err := pix.Encode(pix.MerchantProfile{
			PixKey:      e.PixKey,
			DisplayName: e.PixMerchantName,
			City:        e.PixMerchantCity,
		}, pix.PaymentRequest{
			Amount:        totals.Total,
			TransactionID: strings.ReplaceAll(params.Ref, "-", ""),
		})
		if err != nil {
			obs.PixPayloadTotal.WithLabelValues("error").Inc()
			if errors.Is(err, pix.ErrMissingMerchantKey) || errors.Is(err, pix.ErrMerchantKeyTooLong) {
				return db.Order{}, ErrPixUnavailable
			}
			return db.Order{}, err
		}
		obs.PixPayloadTotal.WithLabelValues("ok").Inc()
		params.PixPayload = &payload
	}

	return q.CreateOrder(ctx, params)
}

func validateInput(in Input) error {
	switch in.Fulfillment {
	case db.FulfillmentDelivery:
		if strings.TrimSpace(in.Address) == "" {
			return fmt.Errorf("address is required for delivery: %w", ErrInvalidInput)
		}
	case db.FulfillmentPickup:
	case db.FulfillmentDineIn:
		if in.TableNumber == nil || *in.TableNumber < 1 {
			return fmt.Errorf("tableNumber is required for dine_in: %w", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("unknown fulfillment %q: %w", in.Fulfillment, ErrInvalidInput)
	}
	switch in.PaymentMethod {
	case PaymentPix, PaymentCash, PaymentCard:
	default:
		return fmt.Errorf("unknown payment method %q: %w", in.PaymentMethod, ErrInvalidInput)
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		return fmt.Errorf("customerName is required: %w", ErrInvalidInput)
	}
	return nil
}
