package policy

import "context"

// Ownable is implemented by models that belong to a user.
type Ownable interface {
	GetUserID() uint
}

// OwnershipPolicy allows a user to act on resources they own.
type OwnershipPolicy struct{}

func NewOwnershipPolicy() *OwnershipPolicy {
	return &OwnershipPolicy{}
}

// Can returns true for nil resources (list/create) and for Ownable
// resources owned by userID. Anything else is denied.
func (p *OwnershipPolicy) Can(_ context.Context, userID uint, _ Action, resource any) bool {
	if resource == nil {
		return true
	}
	ownable, ok := resource.(Ownable)
	if !ok {
		return false
	}
	return ownable.GetUserID() == userID
}
