// Package policy is a small Gate/Policy authorization registry. Each
// resource type gets one Policy; the Gate looks the policy up and asks it.
package policy

import (
	"context"
	"errors"
)

// Action describes the kind of operation a user wants to perform.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionList   Action = "list"
	// ActionTransition covers owner-driven status changes (send, convert, mark paid).
	ActionTransition Action = "transition"
)

// Resource types registered by NewOwnerGate.
const (
	ResourceDocument = "document"
	ResourceClient   = "client"
)

// Sentinel errors returned by Gate.Authorize.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNoPolicyDefined = errors.New("no policy defined for resource")
)

// Policy defines authorization rules for a resource type.
// For list/create, resource may be nil.
type Policy[U any] interface {
	Can(ctx context.Context, user U, action Action, resource any) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc[U any] func(ctx context.Context, user U, action Action, resource any) bool

func (f PolicyFunc[U]) Can(ctx context.Context, user U, action Action, resource any) bool {
	return f(ctx, user, action, resource)
}

// Gate is the central authorization checkpoint. A zero-value user is never
// authorized.
type Gate[U comparable] struct {
	policies map[string]Policy[U]
}

func NewGate[U comparable]() *Gate[U] {
	return &Gate[U]{policies: make(map[string]Policy[U])}
}

// Register adds or replaces the policy for resourceType.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	var zero U
	if user == zero {
		return ErrUnauthorized
	}
	p, ok := g.policies[resourceType]
	if !ok {
		return ErrNoPolicyDefined
	}
	if !p.Can(ctx, user, action, resource) {
		return ErrUnauthorized
	}
	return nil
}

func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}

// NewOwnerGate returns a gate where every resource is restricted to its owner.
func NewOwnerGate() *Gate[uint] {
	g := NewGate[uint]()
	owner := NewOwnershipPolicy()
	g.Register(ResourceDocument, owner)
	g.Register(ResourceClient, owner)
	return g
}
