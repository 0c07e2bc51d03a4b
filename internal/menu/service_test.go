package menu_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/comanda-app/backend-comanda/internal/db"
	"github.com/comanda-app/backend-comanda/internal/menu"
	"github.com/comanda-app/backend-comanda/internal/tenant"
)

type fakeMenuQueries struct {
	categories []db.Category
	products   []db.Product
	variations map[uuid.UUID][]db.Variation
	addons     map[uuid.UUID][]db.AddonOption
	listCalls  int
}

func (f *fakeMenuQueries) ListCategories(ctx context.Context, establishmentID uuid.UUID) ([]db.Category, error) {
	return f.categories, nil
}

func (f *fakeMenuQueries) ListProducts(ctx context.Context, establishmentID uuid.UUID, availableOnly bool) ([]db.Product, error) {
	f.listCalls++
	if !availableOnly {
		return f.products, nil
	}
	var out []db.Product
	for _, p := range f.products {
		if p.Available {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeMenuQueries) GetProductBySlug(ctx context.Context, establishmentID uuid.UUID, slug string) (db.Product, error) {
	for _, p := range f.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return db.Product{}, pgx.ErrNoRows
}

func (f *fakeMenuQueries) ListVariations(ctx context.Context, productID uuid.UUID) ([]db.Variation, error) {
	return f.variations[productID], nil
}

func (f *fakeMenuQueries) ListAddonOptions(ctx context.Context, productID uuid.UUID) ([]db.AddonOption, error) {
	return f.addons[productID], nil
}

func newFixture(t *testing.T) (*fakeMenuQueries, db.Establishment) {
	t.Helper()
	establishment := db.Establishment{
		ID:          uuid.New(),
		Slug:        "cantina",
		Name:        "Cantina da Praça",
		Open:        true,
		DeliveryFee: decimal.NewFromInt(8),
	}
	catID := uuid.New()
	pizzaID := uuid.New()
	hiddenID := uuid.New()
	queries := &fakeMenuQueries{
		categories: []db.Category{{ID: catID, EstablishmentID: establishment.ID, Name: "Pizzas", Position: 1}},
		products: []db.Product{
			{
				ID:              pizzaID,
				EstablishmentID: establishment.ID,
				CategoryID:      &catID,
				Name:            "Pizza Margherita",
				Slug:            "pizza-margherita",
				BasePrice:       decimal.NewFromInt(40),
				Available:       true,
			},
			{
				ID:              hiddenID,
				EstablishmentID: establishment.ID,
				CategoryID:      &catID,
				Name:            "Fora do Menu",
				Slug:            "fora",
				BasePrice:       decimal.NewFromInt(10),
				Available:       false,
			},
		},
		variations: map[uuid.UUID][]db.Variation{
			pizzaID: {{ID: uuid.New(), ProductID: pizzaID, Name: "Grande", Price: decimal.NewFromInt(55)}},
		},
		addons: map[uuid.UUID][]db.AddonOption{
			pizzaID: {{ID: uuid.New(), ProductID: pizzaID, Name: "Borda recheada", Price: decimal.NewFromInt(6)}},
		},
	}
	return queries, establishment
}

func TestMenuAssembly(t *testing.T) {
	queries, establishment := newFixture(t)
	svc, err := menu.NewService(menu.ServiceConfig{Queries: queries})
	require.NoError(t, err)

	view, err := svc.Menu(context.Background(), establishment)
	require.NoError(t, err)
	require.Equal(t, "cantina", view.Establishment.Slug)
	require.Equal(t, "8.00", view.Establishment.DeliveryFee)
	require.Len(t, view.Categories, 1)
	require.Len(t, view.Categories[0].Products, 1)

	product := view.Categories[0].Products[0]
	require.Equal(t, "pizza-margherita", product.Slug)
	require.Equal(t, "40.00", product.BasePrice)
	require.Len(t, product.Variations, 1)
	require.Equal(t, "55.00", product.Variations[0].Price)
	require.Len(t, product.Addons, 1)
	require.Equal(t, "Borda recheada", product.Addons[0].Name)
}

func TestMenuCached(t *testing.T) {
	queries, establishment := newFixture(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, err := menu.NewService(menu.ServiceConfig{
		Queries: queries,
		Cache:   menu.NewCache(client, time.Minute),
	})
	require.NoError(t, err)

	_, err = svc.Menu(context.Background(), establishment)
	require.NoError(t, err)
	_, err = svc.Menu(context.Background(), establishment)
	require.NoError(t, err)
	require.Equal(t, 1, queries.listCalls)

	svc.Invalidate(context.Background(), establishment.Slug)
	_, err = svc.Menu(context.Background(), establishment)
	require.NoError(t, err)
	require.Equal(t, 2, queries.listCalls)
}

func TestProductDetailNotFound(t *testing.T) {
	queries, establishment := newFixture(t)
	svc, err := menu.NewService(menu.ServiceConfig{Queries: queries})
	require.NoError(t, err)

	handler := &menu.Handler{Service: svc}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/menu/products/nope", nil)
	req = req.WithContext(tenant.WithEstablishment(req.Context(), establishment))
	rec := httptest.NewRecorder()
	handler.ProductDetail(rec, withSlugParam(req, "nope"))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "NOT_FOUND", body.Error.Code)
}

func withSlugParam(req *http.Request, slug string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("slug", slug)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}
