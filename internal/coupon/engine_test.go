package coupon

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestComputePercent(t *testing.T) {
	percent := int32(2000)
	rule := Rule{Kind: KindPercent, PercentBps: &percent}
	discount := Compute(decimal.NewFromInt(100), rule)
	if !discount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected discount 20, got %s", discount)
	}
}

func TestComputeFixedClampedToSubtotal(t *testing.T) {
	rule := Rule{Kind: KindFixed, Value: decimal.NewFromInt(50)}
	discount := Compute(decimal.NewFromInt(30), rule)
	if !discount.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected discount clamped to 30, got %s", discount)
	}
}

func TestComputeFreeDeliveryNoSubtotalDiscount(t *testing.T) {
	rule := Rule{Kind: KindFreeDelivery, Value: decimal.NewFromInt(10)}
	discount := Compute(decimal.NewFromInt(100), rule)
	if !discount.IsZero() {
		t.Fatalf("expected zero discount for free delivery, got %s", discount)
	}
	if !rule.FreeDelivery() {
		t.Fatal("expected FreeDelivery to report true")
	}
}

func TestValidateWindow(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	rule := Rule{ValidFrom: &future}
	if err := rule.Validate(now, decimal.NewFromInt(100)); !errors.Is(err, ErrCouponInactive) {
		t.Fatalf("expected ErrCouponInactive, got %v", err)
	}

	rule = Rule{ValidTo: &past}
	if err := rule.Validate(now, decimal.NewFromInt(100)); !errors.Is(err, ErrCouponExpired) {
		t.Fatalf("expected ErrCouponExpired, got %v", err)
	}
}

func TestValidateMinSpend(t *testing.T) {
	rule := Rule{MinSpend: decimal.NewFromInt(40)}
	if err := rule.Validate(time.Now(), decimal.NewFromInt(39)); !errors.Is(err, ErrMinimumSpendUnmet) {
		t.Fatalf("expected ErrMinimumSpendUnmet, got %v", err)
	}
	if err := rule.Validate(time.Now(), decimal.NewFromInt(40)); err != nil {
		t.Fatalf("expected min spend met, got %v", err)
	}
}

func TestValidateUsageLimit(t *testing.T) {
	limit := int32(3)
	rule := Rule{UsageLimit: &limit, UsedCount: 3}
	if err := rule.Validate(time.Now(), decimal.NewFromInt(100)); !errors.Is(err, ErrUsageLimitReached) {
		t.Fatalf("expected ErrUsageLimitReached, got %v", err)
	}
}
