// Package money holds the single implementation of document totals.
//
// Every template, form and persistence path calls Compute so that printed,
// on-screen and stored amounts never diverge. Amounts keep full decimal
// precision; rounding to cents happens once, in Rounded or Format.
package money

import "github.com/shopspring/decimal"

// Line is the minimal view of a billable row needed for totals.
type Line struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Totals is the result of Compute.
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
	GrandTotal decimal.Decimal `json:"total"`
}

var hundred = decimal.NewFromInt(100)

// Compute derives subtotal, tax and grand total from lines and a tax rate
// expressed in percent (20 means 20%).
//
// Quantities, prices and the rate must be non-negative; this is enforced at
// the edit boundary and not re-checked here.
func Compute(lines []Line, taxRatePercent decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Quantity.Mul(l.UnitPrice))
	}
	tax := subtotal.Mul(taxRatePercent).Div(hundred)
	return Totals{
		Subtotal:   subtotal,
		TaxAmount:  tax,
		GrandTotal: subtotal.Add(tax),
	}
}

// Rounded returns the totals rounded to two fractional digits.
func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal:   t.Subtotal.Round(2),
		TaxAmount:  t.TaxAmount.Round(2),
		GrandTotal: t.GrandTotal.Round(2),
	}
}

// Format renders an amount with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// LineTotal is quantity × unit price, unrounded.
func LineTotal(l Line) decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}
