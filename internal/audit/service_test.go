package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/comanda-app/backend-comanda/internal/common"
	"github.com/comanda-app/backend-comanda/internal/db"
)

type fakeStore struct {
	inserted []db.InsertAuditLogParams
	rows     []db.AuditLog
}

func (f *fakeStore) InsertAuditLog(_ context.Context, arg db.InsertAuditLogParams) (db.AuditLog, error) {
	f.inserted = append(f.inserted, arg)
	return db.AuditLog{ID: uuid.New(), Action: arg.Action}, nil
}

func (f *fakeStore) ListAuditLogs(_ context.Context, _ db.ListAuditLogsParams) ([]db.AuditLog, error) {
	return f.rows, nil
}

func TestRecordDerivesActionAndResource(t *testing.T) {
	store := &fakeStore{}
	svc := Service{Q: store, Enabled: true}

	err := svc.Record(context.Background(), Entry{
		Method: http.MethodPatch,
		Route:  "/api/v1/admin/orders/{id}/status",
		Status: http.StatusOK,
	})
	require.NoError(t, err)
	require.Len(t, store.inserted, 1)
	require.Equal(t, "PATCH /api/v1/admin/orders/{id}/status", store.inserted[0].Action)
	require.Equal(t, "admin.orders.status", store.inserted[0].Resource)
}

func TestRecordDisabledIsNoop(t *testing.T) {
	store := &fakeStore{}
	svc := Service{Q: store, Enabled: false}

	require.NoError(t, svc.Record(context.Background(), Entry{Method: "POST", Route: "/x"}))
	require.Empty(t, store.inserted)
}

func TestMiddlewareRecordsMutations(t *testing.T) {
	store := &fakeStore{}
	rec := Recorder{Service: Service{Q: store, Enabled: true}}

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	estID := uuid.New()
	staffID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", nil)
	req = req.WithContext(common.WithStaff(req.Context(), common.StaffClaims{
		UserID:          staffID.String(),
		EstablishmentID: estID.String(),
		Role:            "owner",
	}))
	rr := httptest.NewRecorder()
	rec.Middleware(next).ServeHTTP(rr, req)

	require.Len(t, store.inserted, 1)
	entry := store.inserted[0]
	require.Equal(t, int32(http.StatusCreated), entry.Status)
	require.Equal(t, "owner", entry.ActorRole)
	require.NotNil(t, entry.ActorID)
	require.Equal(t, staffID, *entry.ActorID)
	require.NotNil(t, entry.EstablishmentID)
	require.Equal(t, estID, *entry.EstablishmentID)
}

func TestMiddlewareSkipsReads(t *testing.T) {
	store := &fakeStore{}
	rec := Recorder{Service: Service{Q: store, Enabled: true}}

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	rr := httptest.NewRecorder()
	rec.Middleware(next).ServeHTTP(rr, req)

	require.Empty(t, store.inserted)
}
