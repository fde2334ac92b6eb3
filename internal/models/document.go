package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/briefly/internal/money"
)

// Kind discriminates the document union stored in the documents table.
type Kind string

const (
	KindBrief   Kind = "brief"
	KindInvoice Kind = "invoice"
)

// Valid reports whether k is one of the known document kinds.
func (k Kind) Valid() bool {
	return k == KindBrief || k == KindInvoice
}

// Status represents the lifecycle state of a document.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusConverted Status = "converted"
	StatusPaid      Status = "paid"
)

// Document is a brief or an invoice. Fields shared by both kinds are always
// meaningful; brief-only and invoice-only fields stay zero for the other kind.
// Implements the Ownable interface for ownership-based authorization.
type Document struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Kind Kind `gorm:"size:20;not null;index" json:"kind"`

	// UserID is the owner of this document (for multi-tenant isolation)
	UserID uint `gorm:"index;not null;uniqueIndex:idx_documents_user_number,priority:1" json:"user_id"`

	ClientID uint    `gorm:"index;not null" json:"client_id"`
	Client   *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	// Number is the human readable, per-owner sequential number (BRF-2026-0001).
	Number string `gorm:"size:50;not null;uniqueIndex:idx_documents_user_number,priority:2" json:"number"`
	Status Status `gorm:"size:20;not null;default:'draft';index" json:"status"`

	Currency string          `gorm:"size:3;not null;default:'EUR'" json:"currency"`
	TaxRate  decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"tax_rate"`

	// Derived from Items and TaxRate, written by the service on every change.
	Subtotal  decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"subtotal"`
	TaxAmount decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"tax_amount"`
	Total     decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"total"`

	IssueDate time.Time  `gorm:"not null" json:"issue_date"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Notes     string     `gorm:"type:text" json:"notes,omitempty"`

	// Public access
	Token               string `gorm:"size:64;not null;uniqueIndex" json:"token"`
	AccessPassword      string `gorm:"size:255" json:"-"`
	IsPasswordProtected bool   `gorm:"not null;default:false" json:"is_password_protected"`

	// Theme names the print template used for this document.
	Theme string `gorm:"size:50" json:"theme,omitempty"`

	// RejectionReason is the client's last rejection, cleared on resend.
	RejectionReason string `gorm:"type:text" json:"rejection_reason,omitempty"`

	// Brief only
	ConvertedInvoiceID *uint `gorm:"index" json:"converted_invoice_id,omitempty"`

	// Invoice only
	SourceBriefID *uint      `gorm:"index" json:"source_brief_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`

	Items []LineItem `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"items"`
}

// GetUserID implements the Ownable interface for authorization.
func (d *Document) GetUserID() uint {
	return d.UserID
}

// IsBrief reports whether the document is a brief.
func (d *Document) IsBrief() bool {
	return d.Kind == KindBrief
}

// IsInvoice reports whether the document is an invoice.
func (d *Document) IsInvoice() bool {
	return d.Kind == KindInvoice
}

// CanEdit returns true while line items and amounts may still change.
func (d *Document) CanEdit() bool {
	return d.Status == StatusDraft || d.Status == StatusRejected
}

// Lines converts the items for the totals calculator.
func (d *Document) Lines() []money.Line {
	lines := make([]money.Line, len(d.Items))
	for i, it := range d.Items {
		lines[i] = it.Line()
	}
	return lines
}

// Recompute refreshes the derived amounts from Items and TaxRate.
func (d *Document) Recompute() money.Totals {
	t := money.Compute(d.Lines(), d.TaxRate)
	d.Subtotal, d.TaxAmount, d.Total = t.Subtotal, t.TaxAmount, t.GrandTotal
	return t
}

// Totals returns the stored derived amounts.
func (d *Document) Totals() money.Totals {
	return money.Totals{Subtotal: d.Subtotal, TaxAmount: d.TaxAmount, GrandTotal: d.Total}
}

// CheckKind is the store-boundary validation of the union discriminant.
func (d *Document) CheckKind() error {
	if !d.Kind.Valid() {
		return fmt.Errorf("unknown document kind %q", d.Kind)
	}
	if d.Kind == KindInvoice && d.ConvertedInvoiceID != nil {
		return fmt.Errorf("invoice %d carries brief-only fields", d.ID)
	}
	if d.Kind == KindBrief && (d.SourceBriefID != nil || d.PaidAt != nil) {
		return fmt.Errorf("brief %d carries invoice-only fields", d.ID)
	}
	return nil
}

// BeforeCreate enforces the discriminant on every insert.
func (d *Document) BeforeCreate(_ *gorm.DB) error {
	return d.CheckKind()
}

// AfterFind enforces the discriminant on every gorm read.
func (d *Document) AfterFind(_ *gorm.DB) error {
	return d.CheckKind()
}

// NumberPrefix returns the numbering prefix for a kind.
func NumberPrefix(k Kind) string {
	if k == KindInvoice {
		return "INV"
	}
	return "BRF"
}

// FormatNumber builds a number in the PREFIX-YYYY-NNNN format.
func FormatNumber(k Kind, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", NumberPrefix(k), year, seq)
}
