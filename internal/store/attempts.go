package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/briefly/internal/models"
)

// AttemptStore is the SQL access attempt log.
type AttemptStore struct {
	db *gorm.DB
}

func NewAttemptStore(db *gorm.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) CountSince(ctx context.Context, documentID uint, identity string, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.AccessAttempt{}).
		Where("document_id = ? AND identity = ? AND created_at >= ?", documentID, identity, since).
		Count(&n).Error
	return n, err
}

func (s *AttemptStore) Record(ctx context.Context, documentID uint, identity string, at time.Time) error {
	return s.db.WithContext(ctx).Create(&models.AccessAttempt{
		DocumentID: documentID,
		Identity:   identity,
		CreatedAt:  at,
	}).Error
}

func (s *AttemptStore) Clear(ctx context.Context, documentID uint, identity string) error {
	return s.db.WithContext(ctx).
		Where("document_id = ? AND identity = ?", documentID, identity).
		Delete(&models.AccessAttempt{}).Error
}

// PurgeBefore deletes every attempt older than before and returns how many
// rows went away.
func (s *AttemptStore) PurgeBefore(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(&models.AccessAttempt{})
	return res.RowsAffected, res.Error
}
