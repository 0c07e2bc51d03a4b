package db

import (
	"context"

	"github.com/google/uuid"
)

// CreateCategory inserts a menu category.
func (s *Store) CreateCategory(ctx context.Context, establishmentID uuid.UUID, name string, position int32) (Category, error) {
	var c Category
	err := s.db.QueryRow(ctx, `
		INSERT INTO categories (establishment_id, name, position)
		VALUES ($1, $2, $3)
		RETURNING id, establishment_id, name, position`,
		establishmentID, name, position).
		Scan(&c.ID, &c.EstablishmentID, &c.Name, &c.Position)
	return c, err
}

// ListCategories returns categories for one establishment in display order.
func (s *Store) ListCategories(ctx context.Context, establishmentID uuid.UUID) ([]Category, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, establishment_id, name, position FROM categories
		WHERE establishment_id = $1 ORDER BY position, name`, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.EstablishmentID, &c.Name, &c.Position); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCategory removes a category; products fall back to uncategorised.
func (s *Store) DeleteCategory(ctx context.Context, establishmentID, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM categories WHERE id = $1 AND establishment_id = $2`, id, establishmentID)
	return err
}

// CreateProductParams carries the fields for a new menu product.
type CreateProductParams struct {
	EstablishmentID uuid.UUID
	CategoryID      *uuid.UUID
	Name            string
	Slug            string
	Description     string
	BasePrice       string
}

const productCols = `id, establishment_id, category_id, name, slug, description,
	base_price::text, available, created_at, updated_at`

func scanProduct(row interface{ Scan(dest ...any) error }) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.EstablishmentID, &p.CategoryID, &p.Name, &p.Slug,
		&p.Description, &price, &p.Available, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	var err error
	p.BasePrice, err = parseMoney(price)
	return p, err
}

// CreateProduct inserts a menu product.
func (s *Store) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO products (establishment_id, category_id, name, slug, description, base_price)
		VALUES ($1, $2, $3, $4, $5, $6::numeric)
		RETURNING `+productCols,
		arg.EstablishmentID, arg.CategoryID, arg.Name, arg.Slug, arg.Description, arg.BasePrice)
	return scanProduct(row)
}

// UpdateProductParams carries updatable product fields.
type UpdateProductParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	CategoryID      *uuid.UUID
	Name            string
	Description     string
	BasePrice       string
	Available       bool
}

// UpdateProduct overwrites the mutable columns.
func (s *Store) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE products
		SET category_id = $3, name = $4, description = $5, base_price = $6::numeric,
		    available = $7, updated_at = now()
		WHERE id = $1 AND establishment_id = $2
		RETURNING `+productCols,
		arg.ID, arg.EstablishmentID, arg.CategoryID, arg.Name, arg.Description,
		arg.BasePrice, arg.Available)
	return scanProduct(row)
}

// DeleteProduct removes a product and its options.
func (s *Store) DeleteProduct(ctx context.Context, establishmentID, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM products WHERE id = $1 AND establishment_id = $2`, id, establishmentID)
	return err
}

// ListProducts returns menu products, optionally only the available ones.
func (s *Store) ListProducts(ctx context.Context, establishmentID uuid.UUID, availableOnly bool) ([]Product, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+productCols+` FROM products
		WHERE establishment_id = $1 AND ($2 = false OR available)
		ORDER BY name`, establishmentID, availableOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProductBySlug loads one product by its per-establishment slug.
func (s *Store) GetProductBySlug(ctx context.Context, establishmentID uuid.UUID, slug string) (Product, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+productCols+` FROM products
		WHERE establishment_id = $1 AND slug = $2`, establishmentID, slug)
	return scanProduct(row)
}

// GetProductByID loads one product scoped to the establishment.
func (s *Store) GetProductByID(ctx context.Context, establishmentID, id uuid.UUID) (Product, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+productCols+` FROM products
		WHERE id = $1 AND establishment_id = $2`, id, establishmentID)
	return scanProduct(row)
}

// CreateVariation inserts a product variation.
func (s *Store) CreateVariation(ctx context.Context, productID uuid.UUID, name, price string) (Variation, error) {
	var (
		v   Variation
		raw string
	)
	err := s.db.QueryRow(ctx, `
		INSERT INTO variations (product_id, name, price)
		VALUES ($1, $2, $3::numeric)
		RETURNING id, product_id, name, price::text`, productID, name, price).
		Scan(&v.ID, &v.ProductID, &v.Name, &raw)
	if err != nil {
		return Variation{}, err
	}
	v.Price, err = parseMoney(raw)
	return v, err
}

// GetVariation loads one variation.
func (s *Store) GetVariation(ctx context.Context, id uuid.UUID) (Variation, error) {
	var (
		v   Variation
		raw string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, product_id, name, price::text FROM variations WHERE id = $1`, id).
		Scan(&v.ID, &v.ProductID, &v.Name, &raw)
	if err != nil {
		return Variation{}, err
	}
	v.Price, err = parseMoney(raw)
	return v, err
}

// ListVariations returns variations for one product.
func (s *Store) ListVariations(ctx context.Context, productID uuid.UUID) ([]Variation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, product_id, name, price::text FROM variations
		WHERE product_id = $1 ORDER BY price`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Variation
	for rows.Next() {
		var (
			v   Variation
			raw string
		)
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &raw); err != nil {
			return nil, err
		}
		if v.Price, err = parseMoney(raw); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DeleteVariation removes a variation.
func (s *Store) DeleteVariation(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM variations WHERE id = $1`, id)
	return err
}

// CreateAddonOption inserts a product add-on.
func (s *Store) CreateAddonOption(ctx context.Context, productID uuid.UUID, name, price string) (AddonOption, error) {
	var (
		a   AddonOption
		raw string
	)
	err := s.db.QueryRow(ctx, `
		INSERT INTO addon_options (product_id, name, price)
		VALUES ($1, $2, $3::numeric)
		RETURNING id, product_id, name, price::text`, productID, name, price).
		Scan(&a.ID, &a.ProductID, &a.Name, &raw)
	if err != nil {
		return AddonOption{}, err
	}
	a.Price, err = parseMoney(raw)
	return a, err
}

// ListAddonOptions returns add-ons for one product.
func (s *Store) ListAddonOptions(ctx context.Context, productID uuid.UUID) ([]AddonOption, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, product_id, name, price::text FROM addon_options
		WHERE product_id = $1 ORDER BY name`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AddonOption
	for rows.Next() {
		var (
			a   AddonOption
			raw string
		)
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Name, &raw); err != nil {
			return nil, err
		}
		if a.Price, err = parseMoney(raw); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAddonOption removes an add-on.
func (s *Store) DeleteAddonOption(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM addon_options WHERE id = $1`, id)
	return err
}
