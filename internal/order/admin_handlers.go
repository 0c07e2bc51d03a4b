package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/comanda-app/backend-comanda/internal/common"
	"github.com/comanda-app/backend-comanda/internal/db"
	"github.com/comanda-app/backend-comanda/internal/obs"
)

// AdminHandler exposes the staff order board.
type AdminHandler struct {
	Q        Querier
	Notifier Notifier
}

// List handles GET /api/v1/admin/orders with optional ?status=,
// ?fulfillment= and ?table= filters. The table filter drives the salão view.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	estID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	status := r.URL.Query().Get("status")
	if status != "" && !db.ValidOrderStatus(status) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status", nil)
		return
	}
	fulfillment := r.URL.Query().Get("fulfillment")
	if fulfillment != "" && !db.ValidFulfillment(fulfillment) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown fulfillment", nil)
		return
	}
	var tableNumber *int32
	if raw := r.URL.Query().Get("table"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n < 1 {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid table number", nil)
			return
		}
		v := int32(n)
		tableNumber = &v
	}
	page, perPage := common.ParsePagination(r, 50)
	orders, err := h.Q.ListOrders(r.Context(), db.ListOrdersParams{
		EstablishmentID: estID,
		Status:          status,
		Fulfillment:     fulfillment,
		TableNumber:     tableNumber,
		Limit:           int32(perPage),
		Offset:          int32((page - 1) * perPage),
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	views := make([]View, 0, len(orders))
	for _, o := range orders {
		views = append(views, toView(o, nil, true))
	}
	common.JSONData(w, http.StatusOK, views)
}

// Get handles GET /api/v1/admin/orders/{id} with the frozen line items.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	estID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	o, err := h.Q.GetOrder(r.Context(), estID, id)
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
	common.JSONData(w, http.StatusOK, toView(o, items, true))
}

type patchStatusPayload struct {
	Status string `json:"status" validate:"required"`
}

// PatchStatus handles PATCH /api/v1/admin/orders/{id}/status. The update is a
// compare-and-set on the current status so two staff devices cannot race the
// same transition.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	estID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var payload patchStatusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !common.Validate(w, payload) {
		return
	}
	if !db.ValidOrderStatus(payload.Status) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status", nil)
		return
	}

	o, err := h.Q.GetOrder(r.Context(), estID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	if !CanTransition(o.Fulfillment, o.Status, payload.Status) {
		obs.OrderStatusTransitions.WithLabelValues(payload.Status, "invalid").Inc()
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", "status transition not allowed", map[string]any{
			"current": o.Status,
			"allowed": NextStatuses(o.Fulfillment, o.Status),
		})
		return
	}

	updated, err := h.Q.UpdateOrderStatus(r.Context(), estID, id, o.Status, payload.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Someone else moved the order between our read and write.
			obs.OrderStatusTransitions.WithLabelValues(payload.Status, "conflict").Inc()
			common.JSONError(w, http.StatusConflict, "INVALID_STATE", "order status changed concurrently", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update order", nil)
		return
	}
	obs.OrderStatusTransitions.WithLabelValues(payload.Status, "ok").Inc()
	if h.Notifier != nil {
		if err := h.Notifier.OrderStatusChanged(r.Context(), updated); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("order_ref", updated.Ref).
				Msg("enqueue status notification")
		}
	}
	common.JSONData(w, http.StatusOK, toView(updated, nil, true))
}
