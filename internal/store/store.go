// Package store holds the gorm persistence for users, clients, documents
// and access attempts. Lookups that match nothing return models.ErrNotFound.
package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/diewo77/briefly/internal/models"
)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return err
}
