package db

import (
	"context"

	"github.com/google/uuid"
)

// CreateCouponParams carries the fields for a new promotional code.
type CreateCouponParams struct {
	EstablishmentID uuid.UUID
	Code            string
	Kind            string
	Value           string
	PercentBps      *int32
	MinSpend        string
	UsageLimit      *int32
	ValidFrom       *string
	ValidTo         *string
}

const couponCols = `id, establishment_id, code, kind, value::text, percent_bps,
	min_spend::text, usage_limit, used_count, valid_from, valid_to, created_at`

func scanCoupon(row interface{ Scan(dest ...any) error }) (Coupon, error) {
	var (
		c        Coupon
		value    string
		minSpend string
	)
	if err := row.Scan(&c.ID, &c.EstablishmentID, &c.Code, &c.Kind, &value, &c.PercentBps,
		&minSpend, &c.UsageLimit, &c.UsedCount, &c.ValidFrom, &c.ValidTo, &c.CreatedAt); err != nil {
		return Coupon{}, err
	}
	var err error
	if c.Value, err = parseMoney(value); err != nil {
		return Coupon{}, err
	}
	c.MinSpend, err = parseMoney(minSpend)
	return c, err
}

// CreateCoupon inserts a promotional code.
func (s *Store) CreateCoupon(ctx context.Context, arg CreateCouponParams) (Coupon, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO coupons (establishment_id, code, kind, value, percent_bps, min_spend, usage_limit, valid_from, valid_to)
		VALUES ($1, $2, $3, $4::numeric, $5, $6::numeric, $7, $8::timestamptz, $9::timestamptz)
		RETURNING `+couponCols,
		arg.EstablishmentID, arg.Code, arg.Kind, arg.Value, arg.PercentBps,
		arg.MinSpend, arg.UsageLimit, arg.ValidFrom, arg.ValidTo)
	return scanCoupon(row)
}

// GetCouponByCode loads a coupon by its per-establishment code.
func (s *Store) GetCouponByCode(ctx context.Context, establishmentID uuid.UUID, code string) (Coupon, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+couponCols+` FROM coupons
		WHERE establishment_id = $1 AND code = $2`, establishmentID, code)
	return scanCoupon(row)
}

// ListCoupons returns every coupon for one establishment.
func (s *Store) ListCoupons(ctx context.Context, establishmentID uuid.UUID) ([]Coupon, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+couponCols+` FROM coupons
		WHERE establishment_id = $1 ORDER BY created_at DESC`, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// IncrementCouponUsage bumps used_count only while the limit still allows it.
// Returns false when the limit was already exhausted.
func (s *Store) IncrementCouponUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE coupons SET used_count = used_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteCoupon removes a coupon.
func (s *Store) DeleteCoupon(ctx context.Context, establishmentID, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM coupons WHERE id = $1 AND establishment_id = $2`, id, establishmentID)
	return err
}
