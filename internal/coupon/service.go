package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/comanda-app/backend-comanda/internal/db"
)

// Querier captures the database methods required by the coupon service.
type Querier interface {
	GetCouponByCode(ctx context.Context, establishmentID uuid.UUID, code string) (db.Coupon, error)
	IncrementCouponUsage(ctx context.Context, id uuid.UUID) (bool, error)
}

// PreviewResult describes the outcome of evaluating a coupon without mutating state.
type PreviewResult struct {
	Code         string          `json:"code"`
	Discount     decimal.Decimal `json:"discount"`
	FreeDelivery bool            `json:"freeDelivery"`
}

// Service encapsulates coupon evaluation and settlement behaviour.
type Service struct {
	Q   Querier
	Now func() time.Time
}

// Preview performs a dry-run evaluation against the given cart subtotal.
func (s *Service) Preview(ctx context.Context, establishmentID uuid.UUID, code string, subtotal decimal.Decimal) (PreviewResult, error) {
	if s == nil || s.Q == nil {
		return PreviewResult{}, errors.New("coupon service not configured")
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return PreviewResult{}, fmt.Errorf("code is required: %w", ErrNotEligible)
	}
	c, err := s.Q.GetCouponByCode(ctx, establishmentID, trimmed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PreviewResult{}, ErrNotEligible
		}
		return PreviewResult{}, err
	}
	rule := RuleFromModel(c)
	if err := rule.Validate(s.now(), subtotal); err != nil {
		return PreviewResult{}, err
	}
	result := PreviewResult{Code: c.Code, FreeDelivery: rule.FreeDelivery()}
	result.Discount = Compute(subtotal, rule)
	if !result.FreeDelivery && !result.Discount.IsPositive() {
		return PreviewResult{}, ErrNotEligible
	}
	return result, nil
}

// Settle records coupon usage at checkout time. Returns ErrUsageLimitReached
// when a concurrent checkout consumed the last allowed use.
func (s *Service) Settle(ctx context.Context, establishmentID uuid.UUID, code string) error {
	if s == nil || s.Q == nil {
		return errors.New("coupon service not configured")
	}
	if strings.TrimSpace(code) == "" {
		return nil
	}
	c, err := s.Q.GetCouponByCode(ctx, establishmentID, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	ok, err := s.Q.IncrementCouponUsage(ctx, c.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUsageLimitReached
	}
	return nil
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RuleFromModel converts the stored coupon into a Rule used for evaluation.
func RuleFromModel(c db.Coupon) Rule {
	return Rule{
		Code:       c.Code,
		Kind:       c.Kind,
		Value:      c.Value,
		PercentBps: c.PercentBps,
		MinSpend:   c.MinSpend,
		UsageLimit: c.UsageLimit,
		UsedCount:  c.UsedCount,
		ValidFrom:  c.ValidFrom,
		ValidTo:    c.ValidTo,
	}
}
