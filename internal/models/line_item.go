package models

import (
	"github.com/shopspring/decimal"

	"github.com/diewo77/briefly/internal/money"
)

// LineItem represents one billable row of a document. Items are replaced
// wholesale when a document is edited, they have no identity of their own
// beyond their position.
type LineItem struct {
	ID         uint `gorm:"primaryKey" json:"-"`
	DocumentID uint `gorm:"index;not null" json:"-"`

	Description string          `gorm:"size:500;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric;not null;default:1" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric;not null" json:"unit_price"`

	// Position for ordering
	Position int `gorm:"default:0" json:"position"`
}

// Line converts the item for the totals calculator.
func (item LineItem) Line() money.Line {
	return money.Line{Quantity: item.Quantity, UnitPrice: item.UnitPrice}
}

// Total is quantity × unit price, unrounded.
func (item LineItem) Total() decimal.Decimal {
	return money.LineTotal(item.Line())
}
