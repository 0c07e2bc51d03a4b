package menu

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/comanda-app/backend-comanda/internal/common"
	"github.com/comanda-app/backend-comanda/internal/db"
	"github.com/comanda-app/backend-comanda/internal/tenant"
)

// AdminStore captures the database methods required by the admin handlers.
type AdminStore interface {
	GetEstablishmentByID(ctx context.Context, id uuid.UUID) (db.Establishment, error)
	CreateCategory(ctx context.Context, establishmentID uuid.UUID, name string, position int32) (db.Category, error)
	DeleteCategory(ctx context.Context, establishmentID, id uuid.UUID) error
	CreateProduct(ctx context.Context, arg db.CreateProductParams) (db.Product, error)
	UpdateProduct(ctx context.Context, arg db.UpdateProductParams) (db.Product, error)
	DeleteProduct(ctx context.Context, establishmentID, id uuid.UUID) error
	GetProductByID(ctx context.Context, establishmentID, id uuid.UUID) (db.Product, error)
	CreateVariation(ctx context.Context, productID uuid.UUID, name, price string) (db.Variation, error)
	DeleteVariation(ctx context.Context, id uuid.UUID) error
	CreateAddonOption(ctx context.Context, productID uuid.UUID, name, price string) (db.AddonOption, error)
	DeleteAddonOption(ctx context.Context, id uuid.UUID) error
}

// Handler exposes public menu endpoints and staff menu management.
type Handler struct {
	Service *Service
	Store   AdminStore
}

// Menu handles GET /api/v1/menu for the resolved establishment.
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	e, ok := tenant.Establishment(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "ESTABLISHMENT_REQUIRED", "request is missing an establishment", nil)
		return
	}
	view, err := h.Service.Menu(r.Context(), e)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// ProductDetail handles GET /api/v1/menu/products/{slug}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	e, ok := tenant.Establishment(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "ESTABLISHMENT_REQUIRED", "request is missing an establishment", nil)
		return
	}
	view, err := h.Service.ProductDetail(r.Context(), e, chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

type categoryPayload struct {
	Name     string `json:"name" validate:"required"`
	Position int32  `json:"position"`
}

// CreateCategory handles POST /api/v1/admin/categories.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	establishmentID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	var payload categoryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !common.Validate(w, payload) {
		return
	}
	c, err := h.Store.CreateCategory(r.Context(), establishmentID, strings.TrimSpace(payload.Name), payload.Position)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create category", nil)
		return
	}
	h.invalidate(r.Context(), establishmentID)
	common.JSONData(w, http.StatusCreated, c)
}

// DeleteCategory handles DELETE /api/v1/admin/categories/{id}.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	establishmentID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid category id", nil)
		return
	}
	if err := h.Store.DeleteCategory(r.Context(), establishmentID, id); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete category", nil)
		return
	}
	h.invalidate(r.Context(), establishmentID)
	common.JSONData(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type productPayload struct {
	CategoryID  *string `json:"categoryId"`
	Name        string  `json:"name" validate:"required"`
	Slug        string  `json:"slug" validate:"required"`
	Description string  `json:"description"`
	BasePrice   string  `json:"basePrice" validate:"required"`
	Available   *bool   `json:"available"`
}

// CreateProduct handles POST /api/v1/admin/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	establishmentID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	var payload productPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !common.Validate(w, payload) {
		return
	}
	if _, err := decimal.NewFromString(payload.BasePrice); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid basePrice", nil)
		return
	}
	categoryID, err := optionalUUID(payload.CategoryID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid categoryId", nil)
		return
	}
	p, err := h.Store.CreateProduct(r.Context(), db.CreateProductParams{
		EstablishmentID: establishmentID,
		CategoryID:      categoryID,
		Name:            strings.TrimSpace(payload.Name),
		Slug:            strings.ToLower(strings.TrimSpace(payload.Slug)),
		Description:     strings.TrimSpace(payload.Description),
		BasePrice:       payload.BasePrice,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "product slug already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create product", nil)
		return
	}
	h.invalidate(r.Context(), establishmentID, p.Slug)
	common.JSONData(w, http.StatusCreated, p.ID)
}

// UpdateProduct handles PUT /api/v1/admin/products/{id}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	establishmentID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var payload productPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.Name == "" || payload.BasePrice == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "name and basePrice are required", nil)
		return
	}
	if _, err := decimal.NewFromString(payload.BasePrice); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid basePrice", nil)
		return
	}
	categoryID, err := optionalUUID(payload.CategoryID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid categoryId", nil)
		return
	}
	available := true
	if payload.Available != nil {
		available = *payload.Available
	}
	p, err := h.Store.UpdateProduct(r.Context(), db.UpdateProductParams{
		ID:              id,
		EstablishmentID: establishmentID,
		CategoryID:      categoryID,
		Name:            strings.TrimSpace(payload.Name),
		Description:     strings.TrimSpace(payload.Description),
		BasePrice:       payload.BasePrice,
		Available:       available,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update product", nil)
		return
	}
	h.invalidate(r.Context(), establishmentID, p.Slug)
	common.JSONData(w, http.StatusOK, p.ID)
}

// DeleteProduct handles DELETE /api/v1/admin/products/{id}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	establishmentID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	p, err := h.Store.GetProductByID(r.Context(), establishmentID, id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete product", nil)
		return
	}
	if err := h.Store.DeleteProduct(r.Context(), establishmentID, id); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete product", nil)
		return
	}
	h.invalidate(r.Context(), establishmentID, p.Slug)
	common.JSONData(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type optionPayload struct {
	Name  string `json:"name" validate:"required"`
	Price string `json:"price" validate:"required"`
}

// CreateVariation handles POST /api/v1/admin/products/{id}/variations.
func (h *Handler) CreateVariation(w http.ResponseWriter, r *http.Request) {
	h.createOption(w, r, func(ctx context.Context, productID uuid.UUID, name, price string) (any, error) {
		return h.Store.CreateVariation(ctx, productID, name, price)
	})
}

// CreateAddon handles POST /api/v1/admin/products/{id}/addons.
func (h *Handler) CreateAddon(w http.ResponseWriter, r *http.Request) {
	h.createOption(w, r, func(ctx context.Context, productID uuid.UUID, name, price string) (any, error) {
		return h.Store.CreateAddonOption(ctx, productID, name, price)
	})
}

func (h *Handler) createOption(w http.ResponseWriter, r *http.Request, insert func(context.Context, uuid.UUID, string, string) (any, error)) {
	establishmentID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	p, err := h.Store.GetProductByID(r.Context(), establishmentID, productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load product", nil)
		return
	}
	var payload optionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !common.Validate(w, payload) {
		return
	}
	if _, err := decimal.NewFromString(payload.Price); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid price", nil)
		return
	}
	created, err := insert(r.Context(), productID, strings.TrimSpace(payload.Name), payload.Price)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create option", nil)
		return
	}
	h.invalidate(r.Context(), establishmentID, p.Slug)
	common.JSONData(w, http.StatusCreated, created)
}

// DeleteVariation handles DELETE /api/v1/admin/variations/{id}.
func (h *Handler) DeleteVariation(w http.ResponseWriter, r *http.Request) {
	h.deleteOption(w, r, h.Store.DeleteVariation)
}

// DeleteAddon handles DELETE /api/v1/admin/addons/{id}.
func (h *Handler) DeleteAddon(w http.ResponseWriter, r *http.Request) {
	h.deleteOption(w, r, h.Store.DeleteAddonOption)
}

func (h *Handler) deleteOption(w http.ResponseWriter, r *http.Request, remove func(context.Context, uuid.UUID) error) {
	establishmentID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid id", nil)
		return
	}
	if err := remove(r.Context(), id); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete option", nil)
		return
	}
	h.invalidate(r.Context(), establishmentID)
	common.JSONData(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) invalidate(ctx context.Context, establishmentID uuid.UUID, productSlugs ...string) {
	e, err := h.Store.GetEstablishmentByID(ctx, establishmentID)
	if err != nil {
		return
	}
	h.Service.Invalidate(ctx, e.Slug, productSlugs...)
}

func optionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code := appErr.Code
		if code == "" {
			code = "INTERNAL"
		}
		message := appErr.Message
		if message == "" {
			message = "internal error"
		}
		common.JSONError(w, status, code, message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
