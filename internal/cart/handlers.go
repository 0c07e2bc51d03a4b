package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/comanda-app/backend-comanda/internal/common"
	"github.com/comanda-app/backend-comanda/internal/coupon"
	"github.com/comanda-app/backend-comanda/internal/db"
	"github.com/comanda-app/backend-comanda/internal/tenant"
)

// Handler wires cart operations to HTTP.
type Handler struct {
	Svc     *Service
	Coupons *coupon.Service
}

func establishmentFrom(w http.ResponseWriter, r *http.Request) (db.Establishment, bool) {
	e, ok := tenant.Establishment(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "ESTABLISHMENT_REQUIRED", "request is missing an establishment", nil)
		return db.Establishment{}, false
	}
	return e, true
}

// Create creates or returns the session's cart.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	e, ok := establishmentFrom(w, r)
	if !ok {
		return
	}
	var payload struct {
		SessionID string `json:"sessionId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	sessionID := strings.TrimSpace(payload.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	cart, err := h.Svc.EnsureCart(r.Context(), e.ID, sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, map[string]any{
		"cartId":    cart.ID,
		"sessionId": cart.SessionID,
	})
}

// Get returns cart contents with the pricing preview.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	e, ok := establishmentFrom(w, r)
	if !ok {
		return
	}
	cart, ok := h.loadCart(w, r, e)
	if !ok {
		return
	}
	view, err := h.Svc.Price(r.Context(), e, cart)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

type addItemPayload struct {
	ProductID   string   `json:"productId" validate:"required,uuid"`
	VariationID *string  `json:"variationId"`
	AddonIDs    []string `json:"addonIds"`
	Qty         int32    `json:"qty" validate:"required,min=1"`
	Note        string   `json:"note"`
}

// AddItem handles POST /api/v1/cart/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	e, ok := establishmentFrom(w, r)
	if !ok {
		return
	}
	cart, ok := h.loadCart(w, r, e)
	if !ok {
		return
	}
	var payload addItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !common.Validate(w, payload) {
		return
	}
	input, err := payload.toInput()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	if _, err := h.Svc.AddItem(r.Context(), e.ID, cart.ID, input); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.Svc.Price(r.Context(), e, cart)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, view)
}

func (p addItemPayload) toInput() (AddItemInput, error) {
	productID, err := uuid.Parse(p.ProductID)
	if err != nil {
		return AddItemInput{}, errors.New("invalid productId")
	}
	input := AddItemInput{
		ProductID: productID,
		Qty:       p.Qty,
		Note:      strings.TrimSpace(p.Note),
	}
	if p.VariationID != nil && strings.TrimSpace(*p.VariationID) != "" {
		id, err := uuid.Parse(strings.TrimSpace(*p.VariationID))
		if err != nil {
			return AddItemInput{}, errors.New("invalid variationId")
		}
		input.VariationID = &id
	}
	for _, raw := range p.AddonIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return AddItemInput{}, errors.New("invalid addonIds entry")
		}
		input.AddonIDs = append(input.AddonIDs, id)
	}
	return input, nil
}

// UpdateItem handles PATCH /api/v1/cart/{id}/items/{itemID}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	e, ok := establishmentFrom(w, r)
	if !ok {
		return
	}
	cart, ok := h.loadCart(w, r, e)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	var payload struct {
		Qty int32 `json:"qty" validate:"required,min=1"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !common.Validate(w, payload) {
		return
	}
	if _, err := h.Svc.UpdateItemQty(r.Context(), cart.ID, itemID, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.Svc.Price(r.Context(), e, cart)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// RemoveItem handles DELETE /api/v1/cart/{id}/items/{itemID}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	e, ok := establishmentFrom(w, r)
	if !ok {
		return
	}
	cart, ok := h.loadCart(w, r, e)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	if err := h.Svc.Q.RemoveCartItem(r.Context(), cart.ID, itemID); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.Svc.Price(r.Context(), e, cart)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// ApplyCoupon handles POST /api/v1/cart/{id}/coupon.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	e, ok := establishmentFrom(w, r)
	if !ok {
		return
	}
	cart, ok := h.loadCart(w, r, e)
	if !ok {
		return
	}
	var payload struct {
		Code string `json:"code" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !common.Validate(w, payload) {
		return
	}

	view, err := h.Svc.Price(r.Context(), e, cart)
	if err != nil {
		h.writeError(w, err)
		return
	}
	code := strings.ToUpper(strings.TrimSpace(payload.Code))
	if _, err := h.Coupons.Preview(r.Context(), e.ID, code, view.Totals.Subtotal); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "NOT_ELIGIBLE", err.Error(), nil)
		return
	}
	if err := h.Svc.Q.SetCartCoupon(r.Context(), cart.ID, &code); err != nil {
		h.writeError(w, err)
		return
	}
	cart.CouponCode = &code
	view, err = h.Svc.Price(r.Context(), e, cart)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// RemoveCoupon handles DELETE /api/v1/cart/{id}/coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	e, ok := establishmentFrom(w, r)
	if !ok {
		return
	}
	cart, ok := h.loadCart(w, r, e)
	if !ok {
		return
	}
	if err := h.Svc.Q.SetCartCoupon(r.Context(), cart.ID, nil); err != nil {
		h.writeError(w, err)
		return
	}
	cart.CouponCode = nil
	view, err := h.Svc.Price(r.Context(), e, cart)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

func (h *Handler) loadCart(w http.ResponseWriter, r *http.Request, e db.Establishment) (db.Cart, bool) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return db.Cart{}, false
	}
	cart, err := h.Svc.Load(r.Context(), e.ID, cartID)
	if err != nil {
		h.writeError(w, err)
		return db.Cart{}, false
	}
	return cart, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrUnavailable):
		common.JSONError(w, http.StatusUnprocessableEntity, "UNAVAILABLE", "product unavailable", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
