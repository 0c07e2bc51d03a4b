package order

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/comanda-app/backend-comanda/internal/common"
	"github.com/comanda-app/backend-comanda/internal/db"
	"github.com/comanda-app/backend-comanda/internal/obs"
	"github.com/comanda-app/backend-comanda/internal/tenant"
)

func TestMain(m *testing.M) {
	obs.MustRegisterDomainMetrics("comanda_test", prometheus.NewRegistry())
	m.Run()
}

type fakeQuerier struct {
	orders map[uuid.UUID]db.Order
	items  map[uuid.UUID][]db.OrderItem
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		orders: map[uuid.UUID]db.Order{},
		items:  map[uuid.UUID][]db.OrderItem{},
	}
}

func (f *fakeQuerier) GetOrder(ctx context.Context, establishmentID, id uuid.UUID) (db.Order, error) {
	o, ok := f.orders[id]
	if !ok || o.EstablishmentID != establishmentID {
		return db.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (f *fakeQuerier) GetOrderByRef(ctx context.Context, establishmentID uuid.UUID, ref string) (db.Order, error) {
	for _, o := range f.orders {
		if o.EstablishmentID == establishmentID && o.Ref == ref {
			return o, nil
		}
	}
	return db.Order{}, pgx.ErrNoRows
}

func (f *fakeQuerier) ListOrders(ctx context.Context, arg db.ListOrdersParams) ([]db.Order, error) {
	var out []db.Order
	for _, o := range f.orders {
		if o.EstablishmentID != arg.EstablishmentID {
			continue
		}
		if arg.Status != "" && o.Status != arg.Status {
			continue
		}
		if arg.Fulfillment != "" && o.Fulfillment != arg.Fulfillment {
			continue
		}
		if arg.TableNumber != nil && (o.TableNumber == nil || *o.TableNumber != *arg.TableNumber) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeQuerier) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]db.OrderItem, error) {
	return f.items[orderID], nil
}

func (f *fakeQuerier) UpdateOrderStatus(ctx context.Context, establishmentID, id uuid.UUID, from, to string) (db.Order, error) {
	o, ok := f.orders[id]
	if !ok || o.EstablishmentID != establishmentID || o.Status != from {
		return db.Order{}, pgx.ErrNoRows
	}
	o.Status = to
	f.orders[id] = o
	return o, nil
}

func seedOrder(f *fakeQuerier, estID uuid.UUID, fulfillment, status string) db.Order {
	o := db.Order{
		ID:              uuid.New(),
		EstablishmentID: estID,
		Ref:             "20260510-001",
		Status:          status,
		Fulfillment:     fulfillment,
		CustomerName:    "João",
		Subtotal:        decimal.NewFromInt(61),
		DeliveryFee:     decimal.NewFromInt(8),
		Total:           decimal.NewFromInt(69),
		PaymentMethod:   "cash",
	}
	f.orders[o.ID] = o
	f.items[o.ID] = []db.OrderItem{
		{ID: uuid.New(), OrderID: o.ID, Name: "X-Burguer", UnitPrice: decimal.NewFromInt(28), Qty: 2, Total: decimal.NewFromInt(56)},
	}
	return o
}

func staffRequest(method, target string, body string, estID uuid.UUID, params map[string]string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := common.WithStaff(r.Context(), common.StaffClaims{
		UserID:          uuid.NewString(),
		EstablishmentID: estID.String(),
		Role:            "owner",
	})
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	return r.WithContext(ctx)
}

func TestTrackByRef(t *testing.T) {
	q := newFakeQuerier()
	estID := uuid.New()
	o := seedOrder(q, estID, db.FulfillmentDelivery, db.OrderStatusPreparing)

	h := &Handler{Q: q}
	r := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+o.Ref, nil)
	ctx := tenant.WithEstablishment(r.Context(), db.Establishment{ID: estID, Slug: "cantina"})
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("ref", o.Ref)
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)

	w := httptest.NewRecorder()
	h.Track(w, r.WithContext(ctx))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, o.Ref, body.Data.Ref)
	require.Equal(t, db.OrderStatusPreparing, body.Data.Status)
	require.Equal(t, "69.00", body.Data.Total)
	require.Len(t, body.Data.Items, 1)
	// customers do not see the staff transition hints
	require.Nil(t, body.Data.NextStatuses)
}

func TestTrackUnknownRef(t *testing.T) {
	q := newFakeQuerier()
	estID := uuid.New()

	h := &Handler{Q: q}
	r := httptest.NewRequest(http.MethodGet, "/api/v1/orders/20260510-999", nil)
	ctx := tenant.WithEstablishment(r.Context(), db.Establishment{ID: estID, Slug: "cantina"})
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("ref", "20260510-999")
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)

	w := httptest.NewRecorder()
	h.Track(w, r.WithContext(ctx))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPatchStatusHappyPath(t *testing.T) {
	q := newFakeQuerier()
	estID := uuid.New()
	o := seedOrder(q, estID, db.FulfillmentDelivery, db.OrderStatusReceived)

	h := &AdminHandler{Q: q}
	r := staffRequest(http.MethodPatch, "/api/v1/admin/orders/"+o.ID.String()+"/status",
		`{"status":"preparing"}`, estID, map[string]string{"id": o.ID.String()})

	w := httptest.NewRecorder()
	h.PatchStatus(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, db.OrderStatusPreparing, q.orders[o.ID].Status)

	var body struct {
		Data View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, []string{db.OrderStatusOutForDelivery, db.OrderStatusCancelled}, body.Data.NextStatuses)
}

func TestPatchStatusRejectsSkip(t *testing.T) {
	q := newFakeQuerier()
	estID := uuid.New()
	o := seedOrder(q, estID, db.FulfillmentDelivery, db.OrderStatusReceived)

	h := &AdminHandler{Q: q}
	r := staffRequest(http.MethodPatch, "/api/v1/admin/orders/"+o.ID.String()+"/status",
		`{"status":"delivered"}`, estID, map[string]string{"id": o.ID.String()})

	w := httptest.NewRecorder()
	h.PatchStatus(w, r)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, db.OrderStatusReceived, q.orders[o.ID].Status)
}

func TestPatchStatusOtherEstablishment(t *testing.T) {
	q := newFakeQuerier()
	o := seedOrder(q, uuid.New(), db.FulfillmentDelivery, db.OrderStatusReceived)

	h := &AdminHandler{Q: q}
	r := staffRequest(http.MethodPatch, "/api/v1/admin/orders/"+o.ID.String()+"/status",
		`{"status":"preparing"}`, uuid.New(), map[string]string{"id": o.ID.String()})

	w := httptest.NewRecorder()
	h.PatchStatus(w, r)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListOrdersStatusFilter(t *testing.T) {
	q := newFakeQuerier()
	estID := uuid.New()
	seedOrder(q, estID, db.FulfillmentDelivery, db.OrderStatusReceived)
	seedOrder(q, estID, db.FulfillmentPickup, db.OrderStatusPreparing)

	h := &AdminHandler{Q: q}
	r := staffRequest(http.MethodGet, "/api/v1/admin/orders?status=preparing", "", estID, nil)

	w := httptest.NewRecorder()
	h.List(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, db.OrderStatusPreparing, body.Data[0].Status)
}

type fakeNotifier struct {
	events []db.Order
}

func (f *fakeNotifier) OrderStatusChanged(_ context.Context, o db.Order) error {
	f.events = append(f.events, o)
	return nil
}

func TestCancelFromReceived(t *testing.T) {
	q := newFakeQuerier()
	estID := uuid.New()
	o := seedOrder(q, estID, db.FulfillmentDelivery, db.OrderStatusReceived)

	notifier := &fakeNotifier{}
	h := &Handler{Q: q, Notifier: notifier}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+o.Ref+"/cancel", nil)
	ctx := tenant.WithEstablishment(r.Context(), db.Establishment{ID: estID, Slug: "cantina"})
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("ref", o.Ref)
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)

	w := httptest.NewRecorder()
	h.Cancel(w, r.WithContext(ctx))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, db.OrderStatusCancelled, q.orders[o.ID].Status)
	require.Len(t, notifier.events, 1)
	require.Equal(t, db.OrderStatusCancelled, notifier.events[0].Status)
}

func TestCancelRejectedOncePreparing(t *testing.T) {
	q := newFakeQuerier()
	estID := uuid.New()
	o := seedOrder(q, estID, db.FulfillmentDelivery, db.OrderStatusPreparing)

	h := &Handler{Q: q}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+o.Ref+"/cancel", nil)
	ctx := tenant.WithEstablishment(r.Context(), db.Establishment{ID: estID, Slug: "cantina"})
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("ref", o.Ref)
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)

	w := httptest.NewRecorder()
	h.Cancel(w, r.WithContext(ctx))
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, db.OrderStatusPreparing, q.orders[o.ID].Status)
}

func TestListOrdersTableFilter(t *testing.T) {
	q := newFakeQuerier()
	estID := uuid.New()
	table := int32(7)
	o := seedOrder(q, estID, db.FulfillmentDineIn, db.OrderStatusReceived)
	o.TableNumber = &table
	q.orders[o.ID] = o
	seedOrder(q, estID, db.FulfillmentDineIn, db.OrderStatusReceived)

	h := &AdminHandler{Q: q}
	r := staffRequest(http.MethodGet, "/api/v1/admin/orders?fulfillment=dine_in&table=7", "", estID, nil)

	w := httptest.NewRecorder()
	h.List(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.NotNil(t, body.Data[0].TableNumber)
	require.Equal(t, table, *body.Data[0].TableNumber)
}

func TestPatchStatusNotifies(t *testing.T) {
	q := newFakeQuerier()
	estID := uuid.New()
	o := seedOrder(q, estID, db.FulfillmentPickup, db.OrderStatusReceived)

	notifier := &fakeNotifier{}
	h := &AdminHandler{Q: q, Notifier: notifier}
	r := staffRequest(http.MethodPatch, "/api/v1/admin/orders/"+o.ID.String()+"/status",
		`{"status":"preparing"}`, estID, map[string]string{"id": o.ID.String()})

	w := httptest.NewRecorder()
	h.PatchStatus(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, notifier.events, 1)
	require.Equal(t, db.OrderStatusPreparing, notifier.events[0].Status)
}

func TestListOrdersUnknownStatus(t *testing.T) {
	q := newFakeQuerier()
	estID := uuid.New()

	h := &AdminHandler{Q: q}
	r := staffRequest(http.MethodGet, "/api/v1/admin/orders?status=bogus", "", estID, nil)

	w := httptest.NewRecorder()
	h.List(w, r)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
