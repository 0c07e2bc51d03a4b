package menu

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/comanda-app/backend-comanda/internal/common"
	"github.com/comanda-app/backend-comanda/internal/db"
	"github.com/comanda-app/backend-comanda/internal/tenant"
)

type queryProvider interface {
	ListCategories(ctx context.Context, establishmentID uuid.UUID) ([]db.Category, error)
	ListProducts(ctx context.Context, establishmentID uuid.UUID, availableOnly bool) ([]db.Product, error)
	GetProductBySlug(ctx context.Context, establishmentID uuid.UUID, slug string) (db.Product, error)
	ListVariations(ctx context.Context, productID uuid.UUID) ([]db.Variation, error)
	ListAddonOptions(ctx context.Context, productID uuid.UUID) ([]db.AddonOption, error)
}

// Service orchestrates menu queries, DTO assembly, and caching.
type Service struct {
	queries queryProvider
	cache   *Cache
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries queryProvider
	Cache   *Cache
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("menu: queries provider is required")
	}
	return &Service{queries: cfg.Queries, cache: cfg.Cache}, nil
}

// CategoryView groups available products for display.
type CategoryView struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Position int32         `json:"position"`
	Products []ProductView `json:"products"`
}

// ProductView is the public menu representation of one product.
type ProductView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	BasePrice   string          `json:"basePrice"`
	Variations  []VariationView `json:"variations"`
	Addons      []AddonView     `json:"addons"`
}

// VariationView is a size/flavour option on the public menu.
type VariationView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

// AddonView is an optional extra on the public menu.
type AddonView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

// MenuView is the full storefront menu payload.
type MenuView struct {
	Establishment EstablishmentView `json:"establishment"`
	Categories    []CategoryView    `json:"categories"`
}

// EstablishmentView is the public header of a menu.
type EstablishmentView struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Open        bool   `json:"open"`
	DeliveryFee string `json:"deliveryFee"`
}

// Menu assembles the full public menu for the establishment, cached per slug.
func (s *Service) Menu(ctx context.Context, e db.Establishment) (MenuView, error) {
	key := menuCacheKey(e.Slug)
	if s.cache != nil {
		var cached MenuView
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			return cached, nil
		}
	}

	categories, err := s.queries.ListCategories(ctx, e.ID)
	if err != nil {
		return MenuView{}, fmt.Errorf("list categories: %w", err)
	}
	products, err := s.queries.ListProducts(ctx, e.ID, true)
	if err != nil {
		return MenuView{}, fmt.Errorf("list products: %w", err)
	}

	byCategory := make(map[uuid.UUID][]ProductView)
	var uncategorised []ProductView
	for _, p := range products {
		view, err := s.productView(ctx, p)
		if err != nil {
			return MenuView{}, err
		}
		if p.CategoryID == nil {
			uncategorised = append(uncategorised, view)
			continue
		}
		byCategory[*p.CategoryID] = append(byCategory[*p.CategoryID], view)
	}

	view := MenuView{
		Establishment: EstablishmentView{
			Slug:        e.Slug,
			Name:        e.Name,
			Open:        e.Open,
			DeliveryFee: e.DeliveryFee.StringFixed(2),
		},
		Categories: make([]CategoryView, 0, len(categories)+1),
	}
	for _, c := range categories {
		products := byCategory[c.ID]
		if products == nil {
			products = []ProductView{}
		}
		view.Categories = append(view.Categories, CategoryView{
			ID:       c.ID.String(),
			Name:     c.Name,
			Position: c.Position,
			Products: products,
		})
	}
	if len(uncategorised) > 0 {
		view.Categories = append(view.Categories, CategoryView{
			Name:     "Outros",
			Products: uncategorised,
		})
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, view)
	}
	return view, nil
}

// ProductDetail returns one product with its variations and add-ons.
func (s *Service) ProductDetail(ctx context.Context, e db.Establishment, slug string) (ProductView, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ProductView{}, &common.AppError{Code: "BAD_REQUEST", Message: "slug is required", HTTPStatus: http.StatusBadRequest}
	}
	key := productCacheKey(e.Slug, slug)
	if s.cache != nil {
		var cached ProductView
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			return cached, nil
		}
	}
	p, err := s.queries.GetProductBySlug(ctx, e.ID, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductView{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return ProductView{}, fmt.Errorf("get product by slug: %w", err)
	}
	view, err := s.productView(ctx, p)
	if err != nil {
		return ProductView{}, err
	}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, view)
	}
	return view, nil
}

// Invalidate drops cached menu payloads after an admin mutation.
func (s *Service) Invalidate(ctx context.Context, establishmentSlug string, productSlugs ...string) error {
	if s.cache == nil {
		return nil
	}
	keys := []string{menuCacheKey(establishmentSlug)}
	for _, slug := range productSlugs {
		if slug != "" {
			keys = append(keys, productCacheKey(establishmentSlug, slug))
		}
	}
	return s.cache.Del(ctx, keys...)
}

func (s *Service) productView(ctx context.Context, p db.Product) (ProductView, error) {
	view := ProductView{
		ID:          p.ID.String(),
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		BasePrice:   p.BasePrice.StringFixed(2),
		Variations:  []VariationView{},
		Addons:      []AddonView{},
	}
	variations, err := s.queries.ListVariations(ctx, p.ID)
	if err != nil {
		return ProductView{}, fmt.Errorf("list variations: %w", err)
	}
	for _, v := range variations {
		view.Variations = append(view.Variations, VariationView{
			ID:    v.ID.String(),
			Name:  v.Name,
			Price: v.Price.StringFixed(2),
		})
	}
	addons, err := s.queries.ListAddonOptions(ctx, p.ID)
	if err != nil {
		return ProductView{}, fmt.Errorf("list addons: %w", err)
	}
	for _, a := range addons {
		view.Addons = append(view.Addons, AddonView{
			ID:    a.ID.String(),
			Name:  a.Name,
			Price: a.Price.StringFixed(2),
		})
	}
	return view, nil
}

func menuCacheKey(slug string) string {
	return tenant.PrefixKey(slug, "menu")
}

func productCacheKey(establishmentSlug, productSlug string) string {
	return tenant.PrefixKey(establishmentSlug, "menu:product:"+productSlug)
}
