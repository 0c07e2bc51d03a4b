package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/comanda-app/backend-comanda/internal/common"
	"github.com/comanda-app/backend-comanda/internal/tenant"
)

// Handler wires checkout to HTTP.
type Handler struct {
	Svc *Service
}

type checkoutPayload struct {
	CartID        string `json:"cartId" validate:"required,uuid"`
	Fulfillment   string `json:"fulfillment" validate:"required,oneof=delivery pickup dine_in"`
	TableNumber   *int32 `json:"tableNumber"`
	CustomerName  string `json:"customerName" validate:"required"`
	CustomerPhone string `json:"customerPhone"`
	Address       string `json:"address"`
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=pix cash card"`
	Note          string `json:"note"`
}

// Checkout handles POST /api/v1/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	e, ok := tenant.Establishment(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "ESTABLISHMENT_REQUIRED", "request is missing an establishment", nil)
		return
	}
	var payload checkoutPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !common.Validate(w, payload) {
		return
	}
	cartID, err := uuid.Parse(payload.CartID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cartId", nil)
		return
	}
	out, err := h.Svc.Create(r.Context(), e, Input{
		CartID:        cartID,
		Fulfillment:   payload.Fulfillment,
		TableNumber:   payload.TableNumber,
		CustomerName:  payload.CustomerName,
		CustomerPhone: payload.CustomerPhone,
		Address:       payload.Address,
		PaymentMethod: payload.PaymentMethod,
		Note:          payload.Note,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, out)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart is empty", nil)
	case errors.Is(err, ErrClosed):
		common.JSONError(w, http.StatusUnprocessableEntity, "CLOSED", "establishment is not accepting orders", nil)
	case errors.Is(err, ErrPixUnavailable):
		common.JSONError(w, http.StatusUnprocessableEntity, "PIX_UNAVAILABLE", "pix payment is not configured", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
