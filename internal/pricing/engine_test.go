package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleLines() []Line {
	return []Line{
		{
			Name:      "X-Burger",
			UnitPrice: dec("10.00"),
			Qty:       3,
			Addons:    []Addon{{Name: "Bacon", UnitPrice: dec("2.00")}},
		},
		{
			Name:      "Pizza Margherita",
			UnitPrice: dec("25.00"),
			Qty:       1,
		},
	}
}

func TestComputeTotals(t *testing.T) {
	totals, err := ComputeTotals(sampleLines(), dec("8.00"), dec("5.00"))
	require.NoError(t, err)

	assert.True(t, totals.Subtotal.Equal(dec("61.00")), "subtotal: %s", totals.Subtotal)
	assert.True(t, totals.Total.Equal(dec("64.00")), "total: %s", totals.Total)
	require.Len(t, totals.Lines, 2)
	assert.True(t, totals.Lines[0].UnitPrice.Equal(dec("12.00")))
	assert.True(t, totals.Lines[0].Total.Equal(dec("36.00")))
	assert.True(t, totals.Lines[1].Total.Equal(dec("25.00")))

	again, err := ComputeTotals(sampleLines(), dec("8.00"), dec("5.00"))
	require.NoError(t, err)
	assert.Equal(t, totals, again, "identical inputs must produce identical totals")
}

func TestComputeTotalsClampsNegativeTotal(t *testing.T) {
	totals, err := ComputeTotals(sampleLines(), dec("8.00"), dec("1000.00"))
	require.NoError(t, err)
	assert.True(t, totals.Total.IsZero(), "total must clamp at zero, got %s", totals.Total)
}

func TestComputeTotalsRejectsZeroQty(t *testing.T) {
	lines := sampleLines()
	lines[1].Qty = 0
	totals, err := ComputeTotals(lines, decimal.Zero, decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidLine)
	assert.Empty(t, totals.Lines, "no partial result on invalid input")
}

func TestComputeTotalsPickupCarriesNoFee(t *testing.T) {
	// Pickup orders resolve to a zero fee upstream; the total must not pick
	// up any fee contribution.
	totals, err := ComputeTotals(sampleLines(), decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, totals.Total.Equal(totals.Subtotal))
}

func TestComputeTotalsRoundsOnceAtTheEnd(t *testing.T) {
	lines := []Line{
		{Name: "Tapioca", UnitPrice: dec("3.333"), Qty: 3},
	}
	totals, err := ComputeTotals(lines, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	// 3.333 × 3 = 9.999 → 10.00 when rounded once; per-unit rounding first
	// would have produced 9.99.
	assert.True(t, totals.Subtotal.Equal(dec("10.00")), "subtotal: %s", totals.Subtotal)
}

func TestComputeTotalsNoteDoesNotAffectPrice(t *testing.T) {
	withNote := sampleLines()
	withNote[0].Note = "sem cebola"
	a, err := ComputeTotals(withNote, dec("8.00"), decimal.Zero)
	require.NoError(t, err)
	b, err := ComputeTotals(sampleLines(), dec("8.00"), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, a.Total.Equal(b.Total))
}

func TestComputeTotalsEmptyCart(t *testing.T) {
	totals, err := ComputeTotals(nil, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.Total.IsZero())
}
