// Package pricing computes cart totals. It is a pure leaf component: the
// delivery fee and discount arrive already resolved (pickup and free-delivery
// promotions zero the fee upstream) and no promotion policy lives here.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidLine is returned when a cart line carries a quantity below 1.
// A non-positive quantity is an upstream bug (a ghost line left behind by a
// failed removal) and must not be priced.
var ErrInvalidLine = errors.New("pricing: invalid cart line")

// Addon is a selected extra priced per unit of the parent line.
type Addon struct {
	Name      string
	UnitPrice decimal.Decimal
}

// Line is one product selection: the base unit price comes from the selected
// variation when present, otherwise from the product itself. Note is display
// only and never affects price.
type Line struct {
	Name      string
	UnitPrice decimal.Decimal
	Qty       int
	Addons    []Addon
	Note      string
}

// LineTotal is the per-line breakdown exposed for display.
type LineTotal struct {
	Name      string
	Qty       int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// Totals aggregates the computed components. Recomputed on every read, never
// stored incrementally.
type Totals struct {
	Lines       []LineTotal
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
}

// ComputeTotals prices the cart under a fixed evaluation order: per-line unit
// price (base + add-ons), line total (unit × qty), subtotal, then
// total = max(0, subtotal + deliveryFee - discount). Intermediate arithmetic
// keeps full precision; rounding to 2 places happens once on the returned
// values. A discount larger than subtotal+fee is absorbed silently, the
// total clamps at zero.
func ComputeTotals(lines []Line, deliveryFee, discount decimal.Decimal) (Totals, error) {
	subtotal := decimal.Zero
	breakdown := make([]LineTotal, 0, len(lines))
	for i, ln := range lines {
		if ln.Qty < 1 {
			return Totals{}, fmt.Errorf("line %d (%s): qty %d: %w", i, ln.Name, ln.Qty, ErrInvalidLine)
		}
		unit := ln.UnitPrice
		for _, ad := range ln.Addons {
			unit = unit.Add(ad.UnitPrice)
		}
		lineTotal := unit.Mul(decimal.NewFromInt(int64(ln.Qty)))
		subtotal = subtotal.Add(lineTotal)
		breakdown = append(breakdown, LineTotal{
			Name:      ln.Name,
			Qty:       ln.Qty,
			UnitPrice: unit.Round(2),
			Total:     lineTotal.Round(2),
		})
	}
	if deliveryFee.IsNegative() {
		deliveryFee = decimal.Zero
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	total := subtotal.Add(deliveryFee).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Totals{
		Lines:       breakdown,
		Subtotal:    subtotal.Round(2),
		DeliveryFee: deliveryFee.Round(2),
		Discount:    discount.Round(2),
		Total:       total.Round(2),
	}, nil
}
