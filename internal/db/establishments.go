package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateEstablishmentParams carries the fields for a new establishment.
type CreateEstablishmentParams struct {
	Slug            string
	Name            string
	PixKey          string
	PixMerchantName string
	PixMerchantCity string
	DeliveryFee     string
	PlanID          *uuid.UUID
}

const establishmentCols = `id, slug, name, pix_key, pix_merchant_name, pix_merchant_city,
	delivery_fee::text, open, plan_id, created_at, updated_at`

func scanEstablishment(row interface{ Scan(dest ...any) error }) (Establishment, error) {
	var (
		e   Establishment
		fee string
	)
	if err := row.Scan(&e.ID, &e.Slug, &e.Name, &e.PixKey, &e.PixMerchantName,
		&e.PixMerchantCity, &fee, &e.Open, &e.PlanID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Establishment{}, err
	}
	var err error
	e.DeliveryFee, err = parseMoney(fee)
	return e, err
}

// CreateEstablishment inserts a new tenant.
func (s *Store) CreateEstablishment(ctx context.Context, arg CreateEstablishmentParams) (Establishment, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO establishments (slug, name, pix_key, pix_merchant_name, pix_merchant_city, delivery_fee, plan_id)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
		RETURNING `+establishmentCols,
		arg.Slug, arg.Name, arg.PixKey, arg.PixMerchantName, arg.PixMerchantCity, arg.DeliveryFee, arg.PlanID)
	return scanEstablishment(row)
}

// UpdateEstablishmentParams carries updatable establishment fields.
type UpdateEstablishmentParams struct {
	ID              uuid.UUID
	Name            string
	PixKey          string
	PixMerchantName string
	PixMerchantCity string
	DeliveryFee     string
	Open            bool
	PlanID          *uuid.UUID
}

// UpdateEstablishment overwrites the mutable columns.
func (s *Store) UpdateEstablishment(ctx context.Context, arg UpdateEstablishmentParams) (Establishment, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE establishments
		SET name = $2, pix_key = $3, pix_merchant_name = $4, pix_merchant_city = $5,
		    delivery_fee = $6::numeric, open = $7, plan_id = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+establishmentCols,
		arg.ID, arg.Name, arg.PixKey, arg.PixMerchantName, arg.PixMerchantCity,
		arg.DeliveryFee, arg.Open, arg.PlanID)
	return scanEstablishment(row)
}

// GetEstablishmentBySlug loads a tenant by its public slug.
func (s *Store) GetEstablishmentBySlug(ctx context.Context, slug string) (Establishment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+establishmentCols+` FROM establishments WHERE slug = $1`, slug)
	return scanEstablishment(row)
}

// GetEstablishmentByID loads a tenant by primary key.
func (s *Store) GetEstablishmentByID(ctx context.Context, id uuid.UUID) (Establishment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+establishmentCols+` FROM establishments WHERE id = $1`, id)
	return scanEstablishment(row)
}

// ListEstablishments returns all tenants ordered by creation.
func (s *Store) ListEstablishments(ctx context.Context, limit, offset int32) ([]Establishment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+establishmentCols+` FROM establishments
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Establishment
	for rows.Next() {
		e, err := scanEstablishment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CreatePlanParams carries the fields for a new subscription plan.
type CreatePlanParams struct {
	Name         string
	PriceMonthly string
	MaxProducts  int32
}

const planCols = `id, name, price_monthly::text, max_products, active, created_at`

func scanPlan(row interface{ Scan(dest ...any) error }) (Plan, error) {
	var (
		p     Plan
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.MaxProducts, &p.Active, &p.CreatedAt); err != nil {
		return Plan{}, err
	}
	var err error
	p.PriceMonthly, err = parseMoney(price)
	return p, err
}

// CreatePlan inserts a subscription plan.
func (s *Store) CreatePlan(ctx context.Context, arg CreatePlanParams) (Plan, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO plans (name, price_monthly, max_products)
		VALUES ($1, $2::numeric, $3)
		RETURNING `+planCols, arg.Name, arg.PriceMonthly, arg.MaxProducts)
	return scanPlan(row)
}

// UpdatePlanParams carries updatable plan fields.
type UpdatePlanParams struct {
	ID           uuid.UUID
	Name         string
	PriceMonthly string
	MaxProducts  int32
	Active       bool
}

// UpdatePlan overwrites the plan's mutable columns.
func (s *Store) UpdatePlan(ctx context.Context, arg UpdatePlanParams) (Plan, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE plans SET name = $2, price_monthly = $3::numeric, max_products = $4, active = $5
		WHERE id = $1
		RETURNING `+planCols, arg.ID, arg.Name, arg.PriceMonthly, arg.MaxProducts, arg.Active)
	return scanPlan(row)
}

// ListPlans returns every plan.
func (s *Store) ListPlans(ctx context.Context) ([]Plan, error) {
	rows, err := s.db.Query(ctx, `SELECT `+planCols+` FROM plans ORDER BY price_monthly`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateStaffUserParams carries the fields for a back-office login.
type CreateStaffUserParams struct {
	EstablishmentID *uuid.UUID
	Name            string
	Email           string
	PasswordHash    string
	Role            string
}

const staffCols = `id, establishment_id, name, email, password_hash, role, created_at`

func scanStaffUser(row interface{ Scan(dest ...any) error }) (StaffUser, error) {
	var u StaffUser
	err := row.Scan(&u.ID, &u.EstablishmentID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	return u, err
}

// CreateStaffUser inserts a back-office login.
func (s *Store) CreateStaffUser(ctx context.Context, arg CreateStaffUserParams) (StaffUser, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO staff_users (establishment_id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+staffCols,
		arg.EstablishmentID, arg.Name, arg.Email, arg.PasswordHash, arg.Role)
	return scanStaffUser(row)
}

// GetStaffUserByEmail loads a login by email.
func (s *Store) GetStaffUserByEmail(ctx context.Context, email string) (StaffUser, error) {
	row := s.db.QueryRow(ctx, `SELECT `+staffCols+` FROM staff_users WHERE email = $1`, email)
	return scanStaffUser(row)
}

// GetStaffUserByID loads a login by primary key.
func (s *Store) GetStaffUserByID(ctx context.Context, id uuid.UUID) (StaffUser, error) {
	row := s.db.QueryRow(ctx, `SELECT `+staffCols+` FROM staff_users WHERE id = $1`, id)
	return scanStaffUser(row)
}

// DeleteStaffUser removes a login scoped to one establishment.
func (s *Store) DeleteStaffUser(ctx context.Context, establishmentID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM staff_users WHERE id = $1 AND establishment_id = $2`, id, establishmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListStaffUsers returns logins for one establishment.
func (s *Store) ListStaffUsers(ctx context.Context, establishmentID uuid.UUID) ([]StaffUser, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+staffCols+` FROM staff_users
		WHERE establishment_id = $1 ORDER BY created_at`, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StaffUser
	for rows.Next() {
		u, err := scanStaffUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
