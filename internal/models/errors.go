package models

import "errors"

// ErrNotFound is returned when a document, client or user does not exist,
// or exists but is not visible to the caller.
var ErrNotFound = errors.New("not found")

// All returns every model handled by AutoMigrate, in dependency order.
func All() []any {
	return []any{
		&User{},
		&Client{},
		&Document{},
		&LineItem{},
		&AccessAttempt{},
		&Notification{},
	}
}
