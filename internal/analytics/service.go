// Package analytics serves the owner dashboard reports. Reports are computed
// from the orders tables and cached briefly in redis since the board polls.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/comanda-app/backend-comanda/internal/db"
)

// Querier defines the database access required for reports.
type Querier interface {
	SalesByDay(ctx context.Context, arg db.SalesByDayParams) ([]db.SalesDay, error)
	TopProducts(ctx context.Context, arg db.TopProductsParams) ([]db.TopProduct, error)
}

// Service provides cached access to sales reports.
type Service struct {
	Q   Querier
	R   *redis.Client
	TTL time.Duration
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Sales returns per-day order counts and revenue, inclusive of from and
// exclusive of to.
func (s *Service) Sales(ctx context.Context, establishmentID uuid.UUID, from, to time.Time) ([]db.SalesDay, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	key := fmt.Sprintf("an:sales:%s:%s:%s", establishmentID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if rows, ok := fromCache[[]db.SalesDay](ctx, s, key); ok {
		return rows, nil
	}
	rows, err := s.Q.SalesByDay(ctx, db.SalesByDayParams{
		EstablishmentID: establishmentID,
		From:            from,
		To:              to,
	})
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rows)
	return rows, nil
}

// TopProducts returns best-selling items ordered by quantity sold.
func (s *Service) TopProducts(ctx context.Context, establishmentID uuid.UUID, limit, offset int32) ([]db.TopProduct, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	key := fmt.Sprintf("an:top:%s:%d:%d", establishmentID, limit, offset)
	if rows, ok := fromCache[[]db.TopProduct](ctx, s, key); ok {
		return rows, nil
	}
	rows, err := s.Q.TopProducts(ctx, db.TopProductsParams{
		EstablishmentID: establishmentID,
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rows)
	return rows, nil
}

func fromCache[T any](ctx context.Context, s *Service, key string) (T, bool) {
	var out T
	if s.R == nil || s.TTL <= 0 {
		return out, false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, false
	}
	return out, true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
