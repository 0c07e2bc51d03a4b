package order

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/comanda-app/backend-comanda/internal/common"
	"github.com/comanda-app/backend-comanda/internal/db"
	"github.com/comanda-app/backend-comanda/internal/tenant"
)

// Querier captures the database methods required by the order handlers.
type Querier interface {
	GetOrder(ctx context.Context, establishmentID, id uuid.UUID) (db.Order, error)
	GetOrderByRef(ctx context.Context, establishmentID uuid.UUID, ref string) (db.Order, error)
	ListOrders(ctx context.Context, arg db.ListOrdersParams) ([]db.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]db.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, establishmentID, id uuid.UUID, from, to string) (db.Order, error)
}

// Notifier enqueues order lifecycle events for webhook delivery.
type Notifier interface {
	OrderStatusChanged(ctx context.Context, o db.Order) error
}

// Handler exposes customer-facing order tracking.
type Handler struct {
	Q        Querier
	Notifier Notifier
}

// View is the order payload shared by tracking and the staff board.
type View struct {
	ID            uuid.UUID  `json:"id"`
	Ref           string     `json:"ref"`
	Status        string     `json:"status"`
	Fulfillment   string     `json:"fulfillment"`
	TableNumber   *int32     `json:"tableNumber,omitempty"`
	CustomerName  string     `json:"customerName"`
	CustomerPhone string     `json:"customerPhone,omitempty"`
	Address       *string    `json:"address,omitempty"`
	Subtotal      string     `json:"subtotal"`
	DeliveryFee   string     `json:"deliveryFee"`
	Discount      string     `json:"discount"`
	Total         string     `json:"total"`
	CouponCode    *string    `json:"couponCode,omitempty"`
	PaymentMethod string     `json:"paymentMethod"`
	PixPayload    *string    `json:"pixPayload,omitempty"`
	Note          string     `json:"note,omitempty"`
	Items         []ItemView `json:"items,omitempty"`
	NextStatuses  []string   `json:"nextStatuses,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// ItemView is one frozen order line.
type ItemView struct {
	Name      string             `json:"name"`
	UnitPrice string             `json:"unitPrice"`
	Qty       int32              `json:"qty"`
	Addons    []db.CartItemAddon `json:"addons"`
	Note      string             `json:"note,omitempty"`
	Total     string             `json:"total"`
}

func toView(o db.Order, items []db.OrderItem, forStaff bool) View {
	view := View{
		ID:            o.ID,
		Ref:           o.Ref,
		Status:        o.Status,
		Fulfillment:   o.Fulfillment,
		TableNumber:   o.TableNumber,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		Address:       o.Address,
		Subtotal:      o.Subtotal.StringFixed(2),
		DeliveryFee:   o.DeliveryFee.StringFixed(2),
		Discount:      o.Discount.StringFixed(2),
		Total:         o.Total.StringFixed(2),
		CouponCode:    o.CouponCode,
		PaymentMethod: o.PaymentMethod,
		PixPayload:    o.PixPayload,
		Note:          o.Note,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	for _, it := range items {
		view.Items = append(view.Items, ItemView{
			Name:      it.Name,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Qty:       it.Qty,
			Addons:    it.Addons,
			Note:      it.Note,
			Total:     it.Total.StringFixed(2),
		})
	}
	if forStaff {
		view.NextStatuses = NextStatuses(o.Fulfillment, o.Status)
	}
	return view
}

// Track handles GET /api/v1/orders/{ref}: anonymous customer tracking by the
// short reference shown after checkout.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	e, ok := tenant.Establishment(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "ESTABLISHMENT_REQUIRED", "request is missing an establishment", nil)
		return
	}
	ref := chi.URLParam(r, "ref")
	o, err := h.Q.GetOrderByRef(r.Context(), e.ID, ref)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	items, err := h.Q.ListOrderItems(r.Context(), o.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order items", nil)
		return
	}
	common.JSONData(w, http.StatusOK, toView(o, items, false))
}

// Cancel handles POST /api/v1/orders/{ref}/cancel. Customers can only back
// out while the order is still waiting for the kitchen; after that they have
// to call the restaurant.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	e, ok := tenant.Establishment(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "ESTABLISHMENT_REQUIRED", "request is missing an establishment", nil)
		return
	}
	ref := chi.URLParam(r, "ref")
	o, err := h.Q.GetOrderByRef(r.Context(), e.ID, ref)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	if o.Status != db.OrderStatusReceived {
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", "order is already being prepared", map[string]any{
			"current": o.Status,
		})
		return
	}
	updated, err := h.Q.UpdateOrderStatus(r.Context(), e.ID, o.ID, db.OrderStatusReceived, db.OrderStatusCancelled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusConflict, "INVALID_STATE", "order status changed concurrently", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to cancel order", nil)
		return
	}
	if h.Notifier != nil {
		if err := h.Notifier.OrderStatusChanged(r.Context(), updated); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("order_ref", updated.Ref).
				Msg("enqueue status notification")
		}
	}
	common.JSONData(w, http.StatusOK, toView(updated, nil, false))
}
