package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/briefly/internal/models"
)

// DocumentStore persists briefs and invoices with their line items.
type DocumentStore struct {
	db *gorm.DB
}

func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Transaction runs fn with a store bound to a single database transaction.
func (s *DocumentStore) Transaction(ctx context.Context, fn func(tx *DocumentStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DocumentStore{db: tx})
	})
}

func (s *DocumentStore) loaded(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Client").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") })
}

// FindByID loads a document with its client and items.
func (s *DocumentStore) FindByID(ctx context.Context, id uint) (*models.Document, error) {
	var doc models.Document
	if err := s.loaded(ctx).First(&doc, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// FindByToken loads the document addressed by a public link.
func (s *DocumentStore) FindByToken(ctx context.Context, token string) (*models.Document, error) {
	if token == "" {
		return nil, models.ErrNotFound
	}
	var doc models.Document
	if err := s.loaded(ctx).Where("token = ?", token).First(&doc).Error; err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// List returns the owner's documents of one kind, newest first.
// An empty kind lists both.
func (s *DocumentStore) List(ctx context.Context, userID uint, kind models.Kind) ([]models.Document, error) {
	q := s.db.WithContext(ctx).Preload("Client").Where("user_id = ?", userID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var docs []models.Document
	if err := q.Order("issue_date desc, id desc").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// Create inserts the document and its items.
func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	return s.db.WithContext(ctx).Omit("Client").Create(doc).Error
}

// UpdateContent rewrites the editable fields and replaces the items, but only
// while the stored status still allows editing. It reports whether a row was
// written.
func (s *DocumentStore) UpdateContent(ctx context.Context, doc *models.Document) (bool, error) {
	var written bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Document{}).
			Where("id = ? AND status IN ?", doc.ID, []models.Status{models.StatusDraft, models.StatusRejected}).
			Updates(map[string]any{
				"client_id":  doc.ClientID,
				"currency":   doc.Currency,
				"tax_rate":   doc.TaxRate,
				"subtotal":   doc.Subtotal,
				"tax_amount": doc.TaxAmount,
				"total":      doc.Total,
				"issue_date": doc.IssueDate,
				"due_date":   doc.DueDate,
				"notes":      doc.Notes,
				"theme":      doc.Theme,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		written = true
		return replaceItems(tx, doc.ID, doc.Items)
	})
	return written, err
}

func replaceItems(tx *gorm.DB, documentID uint, items []models.LineItem) error {
	if err := tx.Where("document_id = ?", documentID).Delete(&models.LineItem{}).Error; err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ID = 0
		items[i].DocumentID = documentID
	}
	if err := tx.Create(&items).Error; err != nil {
		return fmt.Errorf("insert items: %w", err)
	}
	return nil
}

// UpdateStatus moves a document from one status to another together with
// any extra columns. The write only happens if the stored status is still
// from; the result reports whether it did.
func (s *DocumentStore) UpdateStatus(ctx context.Context, id uint, from, to models.Status, fields map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range fields {
		values[k] = v
	}
	res := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetPassword stores a password digest, or clears protection when digest is empty.
func (s *DocumentStore) SetPassword(ctx context.Context, id uint, digest string) error {
	res := s.db.WithContext(ctx).Model(&models.Document{}).Where("id = ?", id).
		Updates(map[string]any{
			"access_password":       digest,
			"is_password_protected": digest != "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// NextNumber returns the next free number for the owner, kind and year.
// Soft-deleted rows are included since they still hold their number.
func (s *DocumentStore) NextNumber(ctx context.Context, userID uint, kind models.Kind, year int) (string, error) {
	prefix := fmt.Sprintf("%s-%d-", models.NumberPrefix(kind), year)
	var last []string
	err := s.db.WithContext(ctx).Unscoped().Model(&models.Document{}).
		Where("user_id = ? AND number LIKE ?", userID, prefix+"%").
		// Longer numbers first: the sequence outgrows its zero padding.
		Order("LENGTH(number) desc, number desc").Limit(1).
		Pluck("number", &last).Error
	if err != nil {
		return "", err
	}
	var seq int64 = 1
	if len(last) == 1 {
		n, err := strconv.ParseInt(strings.TrimPrefix(last[0], prefix), 10, 64)
		if err != nil {
			return "", fmt.Errorf("parse number %q: %w", last[0], err)
		}
		seq = n + 1
	}
	return models.FormatNumber(kind, year, seq), nil
}
