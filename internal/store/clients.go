package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/diewo77/briefly/internal/models"
)

type ClientStore struct {
	db *gorm.DB
}

func NewClientStore(db *gorm.DB) *ClientStore {
	return &ClientStore{db: db}
}

func (s *ClientStore) Create(ctx context.Context, c *models.Client) error {
	return s.db.WithContext(ctx).Create(c).Error
}

// FindByID loads a client regardless of owner; callers check ownership.
func (s *ClientStore) FindByID(ctx context.Context, id uint) (*models.Client, error) {
	var c models.Client
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// List returns the owner's clients by name. A non-empty query filters on
// name or company.
func (s *ClientStore) List(ctx context.Context, userID uint, query string) ([]models.Client, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if query != "" {
		like := "%" + query + "%"
		q = q.Where("LOWER(name) LIKE LOWER(?) OR LOWER(company) LIKE LOWER(?)", like, like)
	}
	var clients []models.Client
	if err := q.Order("name").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}
