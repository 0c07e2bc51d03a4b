package coupon

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Coupon kinds.
const (
	KindFixed        = "fixed"
	KindPercent      = "percent"
	KindFreeDelivery = "free_delivery"
)

var (
	// ErrNotEligible is returned when the coupon cannot be applied to the provided cart.
	ErrNotEligible = errors.New("coupon not eligible")
	// ErrUsageLimitReached indicates the coupon has exhausted its usage quota.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrCouponInactive is returned when attempting to use a coupon before its window opens.
	ErrCouponInactive = errors.New("coupon not active")
	// ErrCouponExpired is returned when the coupon window has closed.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrMinimumSpendUnmet indicates the cart subtotal did not meet the coupon requirement.
	ErrMinimumSpendUnmet = errors.New("coupon minimum spend not met")
)

// Rule captures the runtime constraints of a coupon.
type Rule struct {
	Code       string
	Kind       string
	Value      decimal.Decimal
	PercentBps *int32
	MinSpend   decimal.Decimal
	UsageLimit *int32
	UsedCount  int32
	ValidFrom  *time.Time
	ValidTo    *time.Time
}

// Validate ensures the rule can be applied at the provided instant and cart subtotal.
func (r Rule) Validate(now time.Time, subtotal decimal.Decimal) error {
	if subtotal.LessThan(r.MinSpend) {
		return ErrMinimumSpendUnmet
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrCouponInactive
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrCouponExpired
	}
	if r.UsageLimit != nil && *r.UsageLimit >= 0 && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	return nil
}

// FreeDelivery reports whether the rule waives the delivery fee instead of
// discounting the subtotal.
func (r Rule) FreeDelivery() bool {
	return strings.EqualFold(r.Kind, KindFreeDelivery)
}

// Compute determines the discount amount for the subtotal. Free-delivery
// coupons produce no subtotal discount; the fee waiver happens at checkout.
func Compute(subtotal decimal.Decimal, r Rule) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch {
	case strings.EqualFold(r.Kind, KindPercent):
		if r.PercentBps == nil || *r.PercentBps <= 0 {
			return decimal.Zero
		}
		discount = subtotal.Mul(decimal.NewFromInt32(*r.PercentBps)).Div(decimal.NewFromInt(10000))
	case r.FreeDelivery():
		return decimal.Zero
	default:
		discount = r.Value
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}
