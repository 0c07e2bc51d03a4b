package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SalesDay is one day of the sales report. Cancelled orders are excluded.
type SalesDay struct {
	Day     time.Time       `json:"day"`
	Orders  int64           `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// SalesByDayParams bounds the report, inclusive of From and exclusive of To.
type SalesByDayParams struct {
	EstablishmentID uuid.UUID
	From            time.Time
	To              time.Time
}

// SalesByDay aggregates order counts and revenue per day.
func (s *Store) SalesByDay(ctx context.Context, arg SalesByDayParams) ([]SalesDay, error) {
	rows, err := s.db.Query(ctx, `
		SELECT date_trunc('day', created_at) AS day,
			count(*) AS orders,
			COALESCE(sum(total), 0)::text AS revenue
		FROM orders
		WHERE establishment_id = $1
			AND created_at >= $2 AND created_at < $3
			AND status <> 'cancelled'
		GROUP BY 1 ORDER BY 1`,
		arg.EstablishmentID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SalesDay
	for rows.Next() {
		var (
			d       SalesDay
			revenue string
		)
		if err := rows.Scan(&d.Day, &d.Orders, &revenue); err != nil {
			return nil, err
		}
		if d.Revenue, err = parseMoney(revenue); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// TopProduct is one row of the best-sellers report, grouped by the item
// name frozen on the order line.
type TopProduct struct {
	Name    string          `json:"name"`
	Qty     int64           `json:"qty"`
	Revenue decimal.Decimal `json:"revenue"`
}

// TopProductsParams paginates the best-sellers report.
type TopProductsParams struct {
	EstablishmentID uuid.UUID
	Limit           int32
	Offset          int32
}

// TopProducts returns items ranked by quantity sold.
func (s *Store) TopProducts(ctx context.Context, arg TopProductsParams) ([]TopProduct, error) {
	rows, err := s.db.Query(ctx, `
		SELECT oi.name,
			sum(oi.qty)::bigint AS qty,
			COALESCE(sum(oi.total), 0)::text AS revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.establishment_id = $1 AND o.status <> 'cancelled'
		GROUP BY oi.name
		ORDER BY qty DESC, oi.name
		LIMIT $2 OFFSET $3`,
		arg.EstablishmentID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TopProduct
	for rows.Next() {
		var (
			p       TopProduct
			revenue string
		)
		if err := rows.Scan(&p.Name, &p.Qty, &revenue); err != nil {
			return nil, err
		}
		if p.Revenue, err = parseMoney(revenue); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
