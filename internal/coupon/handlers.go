package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/comanda-app/backend-comanda/internal/common"
	"github.com/comanda-app/backend-comanda/internal/db"
	"github.com/comanda-app/backend-comanda/internal/obs"
	"github.com/comanda-app/backend-comanda/internal/tenant"
)

// Store captures the database methods required by the coupon handlers.
type Store interface {
	CreateCoupon(ctx context.Context, arg db.CreateCouponParams) (db.Coupon, error)
	ListCoupons(ctx context.Context, establishmentID uuid.UUID) ([]db.Coupon, error)
	DeleteCoupon(ctx context.Context, establishmentID, id uuid.UUID) error
}

// Handler exposes coupon management and preview endpoints.
type Handler struct {
	Store Store
	Svc   *Service
}

type couponPayload struct {
	Code       string     `json:"code" validate:"required"`
	Kind       string     `json:"kind" validate:"required,oneof=fixed percent free_delivery"`
	Value      string     `json:"value"`
	PercentBps *int32     `json:"percentBps"`
	MinSpend   string     `json:"minSpend"`
	UsageLimit *int32     `json:"usageLimit"`
	ValidFrom  *time.Time `json:"validFrom"`
	ValidTo    *time.Time `json:"validTo"`
}

type couponView struct {
	ID         uuid.UUID  `json:"id"`
	Code       string     `json:"code"`
	Kind       string     `json:"kind"`
	Value      string     `json:"value"`
	PercentBps *int32     `json:"percentBps,omitempty"`
	MinSpend   string     `json:"minSpend"`
	UsageLimit *int32     `json:"usageLimit,omitempty"`
	UsedCount  int32      `json:"usedCount"`
	ValidFrom  *time.Time `json:"validFrom,omitempty"`
	ValidTo    *time.Time `json:"validTo,omitempty"`
}

func toView(c db.Coupon) couponView {
	return couponView{
		ID:         c.ID,
		Code:       c.Code,
		Kind:       c.Kind,
		Value:      c.Value.StringFixed(2),
		PercentBps: c.PercentBps,
		MinSpend:   c.MinSpend.StringFixed(2),
		UsageLimit: c.UsageLimit,
		UsedCount:  c.UsedCount,
		ValidFrom:  c.ValidFrom,
		ValidTo:    c.ValidTo,
	}
}

// Create inserts a new coupon for the staff user's establishment.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	establishmentID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	var payload couponPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !common.Validate(w, payload) {
		return
	}
	params, err := buildCreateParams(establishmentID, payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	c, err := h.Store.CreateCoupon(r.Context(), params)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "coupon code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create coupon", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, toView(c))
}

// List returns the establishment's coupons.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	establishmentID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	coupons, err := h.Store.ListCoupons(r.Context(), establishmentID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list coupons", nil)
		return
	}
	views := make([]couponView, 0, len(coupons))
	for _, c := range coupons {
		views = append(views, toView(c))
	}
	common.JSONData(w, http.StatusOK, views)
}

// Delete removes a coupon.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	establishmentID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid coupon id", nil)
		return
	}
	if err := h.Store.DeleteCoupon(r.Context(), establishmentID, id); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete coupon", nil)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type previewRequest struct {
	Code     string `json:"code" validate:"required"`
	Subtotal string `json:"subtotal" validate:"required"`
}

// Preview returns the simulated discount for the resolved establishment
// without persisting state. Used by the storefront cart.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	e, ok := tenant.Establishment(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "ESTABLISHMENT_REQUIRED", "request is missing an establishment", nil)
		return
	}
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !common.Validate(w, req) {
		return
	}
	subtotal, err := decimal.NewFromString(strings.TrimSpace(req.Subtotal))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid subtotal", nil)
		return
	}
	result, err := h.Svc.Preview(r.Context(), e.ID, req.Code, subtotal)
	if err != nil {
		obs.CouponApplyTotal.WithLabelValues("rejected").Inc()
		common.JSONError(w, http.StatusUnprocessableEntity, "NOT_ELIGIBLE", err.Error(), nil)
		return
	}
	obs.CouponApplyTotal.WithLabelValues("ok").Inc()
	common.JSONData(w, http.StatusOK, result)
}

func buildCreateParams(establishmentID uuid.UUID, payload couponPayload) (db.CreateCouponParams, error) {
	code := strings.ToUpper(strings.TrimSpace(payload.Code))
	if code == "" {
		return db.CreateCouponParams{}, errors.New("code is required")
	}
	kind := strings.ToLower(strings.TrimSpace(payload.Kind))
	value := strings.TrimSpace(payload.Value)
	if value == "" {
		value = "0"
	}
	if _, err := decimal.NewFromString(value); err != nil {
		return db.CreateCouponParams{}, errors.New("invalid value")
	}
	if kind == KindPercent && (payload.PercentBps == nil || *payload.PercentBps <= 0 || *payload.PercentBps > 10000) {
		return db.CreateCouponParams{}, errors.New("percent coupons require percentBps between 1 and 10000")
	}
	minSpend := strings.TrimSpace(payload.MinSpend)
	if minSpend == "" {
		minSpend = "0"
	}
	if _, err := decimal.NewFromString(minSpend); err != nil {
		return db.CreateCouponParams{}, errors.New("invalid minSpend")
	}
	params := db.CreateCouponParams{
		EstablishmentID: establishmentID,
		Code:            code,
		Kind:            kind,
		Value:           value,
		PercentBps:      payload.PercentBps,
		MinSpend:        minSpend,
		UsageLimit:      payload.UsageLimit,
	}
	if payload.ValidFrom != nil {
		from := payload.ValidFrom.Format(time.RFC3339)
		params.ValidFrom = &from
	}
	if payload.ValidTo != nil {
		to := payload.ValidTo.Format(time.RFC3339)
		params.ValidTo = &to
	}
	return params, nil
}
