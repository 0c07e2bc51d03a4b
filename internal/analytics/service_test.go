package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/comanda-app/backend-comanda/internal/db"
)

type fakeQuerier struct {
	salesCalls int
	topCalls   int
	sales      []db.SalesDay
	top        []db.TopProduct
}

func (f *fakeQuerier) SalesByDay(_ context.Context, _ db.SalesByDayParams) ([]db.SalesDay, error) {
	f.salesCalls++
	return f.sales, nil
}

func (f *fakeQuerier) TopProducts(_ context.Context, _ db.TopProductsParams) ([]db.TopProduct, error) {
	f.topCalls++
	return f.top, nil
}

func TestSalesCachesResult(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	q := &fakeQuerier{sales: []db.SalesDay{{
		Day:     time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
		Orders:  12,
		Revenue: decimal.RequireFromString("540.50"),
	}}}
	svc := &Service{Q: q, R: client, TTL: time.Minute}

	estID := uuid.New()
	from := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)

	first, err := svc.Sales(context.Background(), estID, from, to)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.Sales(context.Background(), estID, from, to)
	require.NoError(t, err)
	require.Equal(t, first[0].Orders, second[0].Orders)
	require.True(t, first[0].Revenue.Equal(second[0].Revenue))
	require.Equal(t, 1, q.salesCalls)
}

func TestSalesCacheScopedByEstablishment(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	q := &fakeQuerier{}
	svc := &Service{Q: q, R: client, TTL: time.Minute}

	from := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)

	_, err := svc.Sales(context.Background(), uuid.New(), from, to)
	require.NoError(t, err)
	_, err = svc.Sales(context.Background(), uuid.New(), from, to)
	require.NoError(t, err)
	require.Equal(t, 2, q.salesCalls)
}

func TestTopProductsDefaultsLimit(t *testing.T) {
	q := &fakeQuerier{top: []db.TopProduct{{Name: "X-Burger", Qty: 40}}}
	svc := &Service{Q: q}

	rows, err := svc.TopProducts(context.Background(), uuid.New(), 0, -5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 1, q.topCalls)
}
