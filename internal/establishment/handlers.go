// Package establishment holds the master-admin tenant management surface and
// the owner-facing storefront settings.
package establishment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/comanda-app/backend-comanda/internal/auth"
	"github.com/comanda-app/backend-comanda/internal/common"
	"github.com/comanda-app/backend-comanda/internal/db"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Store captures the database methods used by the handlers.
type Store interface {
	CreateEstablishment(ctx context.Context, arg db.CreateEstablishmentParams) (db.Establishment, error)
	UpdateEstablishment(ctx context.Context, arg db.UpdateEstablishmentParams) (db.Establishment, error)
	GetEstablishmentByID(ctx context.Context, id uuid.UUID) (db.Establishment, error)
	ListEstablishments(ctx context.Context, limit, offset int32) ([]db.Establishment, error)
	CreatePlan(ctx context.Context, arg db.CreatePlanParams) (db.Plan, error)
	UpdatePlan(ctx context.Context, arg db.UpdatePlanParams) (db.Plan, error)
	ListPlans(ctx context.Context) ([]db.Plan, error)
	CreateStaffUser(ctx context.Context, arg db.CreateStaffUserParams) (db.StaffUser, error)
	ListStaffUsers(ctx context.Context, establishmentID uuid.UUID) ([]db.StaffUser, error)
	DeleteStaffUser(ctx context.Context, establishmentID, id uuid.UUID) error
}

// Invalidator drops cached storefront views after settings changes.
type Invalidator interface {
	Invalidate(ctx context.Context, slug string, productSlugs ...string) error
}

// Handler wires tenant management to HTTP.
type Handler struct {
	Store Store
	Cache Invalidator
}

// EstablishmentView is the admin-facing tenant payload.
type EstablishmentView struct {
	ID              uuid.UUID  `json:"id"`
	Slug            string     `json:"slug"`
	Name            string     `json:"name"`
	PixKey          string     `json:"pixKey"`
	PixMerchantName string     `json:"pixMerchantName"`
	PixMerchantCity string     `json:"pixMerchantCity"`
	DeliveryFee     string     `json:"deliveryFee"`
	Open            bool       `json:"open"`
	PlanID          *uuid.UUID `json:"planId,omitempty"`
}

func toEstablishmentView(e db.Establishment) EstablishmentView {
	return EstablishmentView{
		ID:              e.ID,
		Slug:            e.Slug,
		Name:            e.Name,
		PixKey:          e.PixKey,
		PixMerchantName: e.PixMerchantName,
		PixMerchantCity: e.PixMerchantCity,
		DeliveryFee:     e.DeliveryFee.StringFixed(2),
		Open:            e.Open,
		PlanID:          e.PlanID,
	}
}

type establishmentPayload struct {
	Slug            string `json:"slug" validate:"required,min=2,max=63"`
	Name            string `json:"name" validate:"required"`
	PixKey          string `json:"pixKey"`
	PixMerchantName string `json:"pixMerchantName"`
	PixMerchantCity string `json:"pixMerchantCity"`
	DeliveryFee     string `json:"deliveryFee"`
	PlanID          string `json:"planId"`
}

// Create handles POST /api/v1/master/establishments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload establishmentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !common.Validate(w, payload) {
		return
	}
	slug := strings.ToLower(strings.TrimSpace(payload.Slug))
	if !slugPattern.MatchString(slug) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "slug must be lowercase letters, digits and hyphens", nil)
		return
	}
	fee, ok := moneyOrZero(w, payload.DeliveryFee, "deliveryFee")
	if !ok {
		return
	}
	planID, ok := optionalUUID(w, payload.PlanID, "planId")
	if !ok {
		return
	}
	e, err := h.Store.CreateEstablishment(r.Context(), db.CreateEstablishmentParams{
		Slug:            slug,
		Name:            strings.TrimSpace(payload.Name),
		PixKey:          strings.TrimSpace(payload.PixKey),
		PixMerchantName: strings.TrimSpace(payload.PixMerchantName),
		PixMerchantCity: strings.TrimSpace(payload.PixMerchantCity),
		DeliveryFee:     fee,
		PlanID:          planID,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "SLUG_TAKEN", "slug is already in use", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create establishment", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, toEstablishmentView(e))
}

// List handles GET /api/v1/master/establishments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	list, err := h.Store.ListEstablishments(r.Context(), int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list establishments", nil)
		return
	}
	views := make([]EstablishmentView, 0, len(list))
	for _, e := range list {
		views = append(views, toEstablishmentView(e))
	}
	common.JSONData(w, http.StatusOK, views)
}

type updatePayload struct {
	Name            string `json:"name" validate:"required"`
	PixKey          string `json:"pixKey"`
	PixMerchantName string `json:"pixMerchantName"`
	PixMerchantCity string `json:"pixMerchantCity"`
	DeliveryFee     string `json:"deliveryFee"`
	Open            bool   `json:"open"`
	PlanID          string `json:"planId"`
}

// Update handles PUT /api/v1/master/establishments/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid establishment id", nil)
		return
	}
	h.applyUpdate(w, r, id)
}

// UpdateSettings handles PUT /api/v1/admin/settings: an owner editing their
// own storefront. The plan stays whatever the master assigned.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	estID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	h.applyUpdate(w, r, estID)
}

// Settings handles GET /api/v1/admin/settings.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	estID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	e, err := h.Store.GetEstablishmentByID(r.Context(), estID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load establishment", nil)
		return
	}
	common.JSONData(w, http.StatusOK, toEstablishmentView(e))
}

func (h *Handler) applyUpdate(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	current, err := h.Store.GetEstablishmentByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "establishment not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load establishment", nil)
		return
	}
	var payload updatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !common.Validate(w, payload) {
		return
	}
	fee, ok := moneyOrZero(w, payload.DeliveryFee, "deliveryFee")
	if !ok {
		return
	}
	planID := current.PlanID
	if claims, _ := common.Staff(r.Context()); claims.Role == auth.RoleMaster {
		planID, ok = optionalUUID(w, payload.PlanID, "planId")
		if !ok {
			return
		}
	}
	e, err := h.Store.UpdateEstablishment(r.Context(), db.UpdateEstablishmentParams{
		ID:              id,
		Name:            strings.TrimSpace(payload.Name),
		PixKey:          strings.TrimSpace(payload.PixKey),
		PixMerchantName: strings.TrimSpace(payload.PixMerchantName),
		PixMerchantCity: strings.TrimSpace(payload.PixMerchantCity),
		DeliveryFee:     fee,
		Open:            payload.Open,
		PlanID:          planID,
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update establishment", nil)
		return
	}
	if h.Cache != nil {
		// Fee and open/closed state are baked into the cached menu.
		_ = h.Cache.Invalidate(r.Context(), e.Slug)
	}
	common.JSONData(w, http.StatusOK, toEstablishmentView(e))
}

// PlanView is the admin-facing plan payload.
type PlanView struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	PriceMonthly string    `json:"priceMonthly"`
	MaxProducts  int32     `json:"maxProducts"`
	Active       bool      `json:"active"`
}

func toPlanView(p db.Plan) PlanView {
	return PlanView{
		ID:           p.ID,
		Name:         p.Name,
		PriceMonthly: p.PriceMonthly.StringFixed(2),
		MaxProducts:  p.MaxProducts,
		Active:       p.Active,
	}
}

type planPayload struct {
	Name         string `json:"name" validate:"required"`
	PriceMonthly string `json:"priceMonthly"`
	MaxProducts  int32  `json:"maxProducts" validate:"gte=0"`
	Active       *bool  `json:"active"`
}

// CreatePlan handles POST /api/v1/master/plans.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var payload planPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !common.Validate(w, payload) {
		return
	}
	price, ok := moneyOrZero(w, payload.PriceMonthly, "priceMonthly")
	if !ok {
		return
	}
	p, err := h.Store.CreatePlan(r.Context(), db.CreatePlanParams{
		Name:         strings.TrimSpace(payload.Name),
		PriceMonthly: price,
		MaxProducts:  payload.MaxProducts,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "NAME_TAKEN", "plan name is already in use", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create plan", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, toPlanView(p))
}

// UpdatePlan handles PUT /api/v1/master/plans/{id}.
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid plan id", nil)
		return
	}
	var payload planPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !common.Validate(w, payload) {
		return
	}
	price, ok := moneyOrZero(w, payload.PriceMonthly, "priceMonthly")
	if !ok {
		return
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	p, err := h.Store.UpdatePlan(r.Context(), db.UpdatePlanParams{
		ID:           id,
		Name:         strings.TrimSpace(payload.Name),
		PriceMonthly: price,
		MaxProducts:  payload.MaxProducts,
		Active:       active,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "plan not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update plan", nil)
		return
	}
	common.JSONData(w, http.StatusOK, toPlanView(p))
}

// ListPlans handles GET /api/v1/master/plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.ListPlans(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list plans", nil)
		return
	}
	views := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		views = append(views, toPlanView(p))
	}
	common.JSONData(w, http.StatusOK, views)
}

// StaffView is the admin-facing staff payload. The password hash never leaves
// the database layer.
type StaffView struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}

func toStaffView(u db.StaffUser) StaffView {
	return StaffView{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

type staffPayload struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=owner staff"`
}

// CreateStaff handles POST /api/v1/admin/staff. Owners can add owners and
// staff to their own establishment; the master role is never assignable here.
func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	estID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	var payload staffPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !common.Validate(w, payload) {
		return
	}
	hash, err := argon2id.CreateHash(payload.Password, argon2id.DefaultParams)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to hash password", nil)
		return
	}
	u, err := h.Store.CreateStaffUser(r.Context(), db.CreateStaffUserParams{
		EstablishmentID: &estID,
		Name:            strings.TrimSpace(payload.Name),
		Email:           strings.TrimSpace(strings.ToLower(payload.Email)),
		PasswordHash:    hash,
		Role:            payload.Role,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "EMAIL_TAKEN", "email is already registered", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create staff user", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, toStaffView(u))
}

// ListStaff handles GET /api/v1/admin/staff.
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	estID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	list, err := h.Store.ListStaffUsers(r.Context(), estID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list staff", nil)
		return
	}
	views := make([]StaffView, 0, len(list))
	for _, u := range list {
		views = append(views, toStaffView(u))
	}
	common.JSONData(w, http.StatusOK, views)
}

// DeleteStaff handles DELETE /api/v1/admin/staff/{id}.
func (h *Handler) DeleteStaff(w http.ResponseWriter, r *http.Request) {
	estID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid staff id", nil)
		return
	}
	if claims, _ := common.Staff(r.Context()); claims.UserID == id.String() {
		common.JSONError(w, http.StatusUnprocessableEntity, "SELF_DELETE", "cannot delete your own account", nil)
		return
	}
	if err := h.Store.DeleteStaffUser(r.Context(), estID, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "staff user not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete staff user", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func moneyOrZero(w http.ResponseWriter, raw, field string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "0", true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", field+" must be a non-negative decimal", nil)
		return "", false
	}
	return d.String(), true
}

func optionalUUID(w http.ResponseWriter, raw, field string) (*uuid.UUID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid "+field, nil)
		return nil, false
	}
	return &id, true
}
