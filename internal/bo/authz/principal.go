// Package authz implements the authorization gate consulted by business
// objects before property reads, property writes and type-level operations.
package authz

import (
	"context"
	"reflect"
	"sync"
)

// Principal is the identity on whose behalf an object is used
type Principal interface {
	Identity() string
	IsInRole(role string) bool
}

// User is a principal with a fixed set of roles
type User struct {
	ID    string
	Roles []string
}

// NewUser creates a principal with the given roles
func NewUser(id string, roles ...string) *User {
	return &User{ID: id, Roles: roles}
}

// Identity returns the user ID
func (u *User) Identity() string {
	return u.ID
}

// IsInRole reports whether the user holds role
func (u *User) IsInRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type anonymous struct{}

func (anonymous) Identity() string     { return "" }
func (anonymous) IsInRole(string) bool { return false }

// Anonymous is the principal used when no one is signed in
var Anonymous Principal = anonymous{}

// PrincipalProvider supplies the current principal
type PrincipalProvider interface {
	Current() Principal
}

// ProviderFunc adapts a function to PrincipalProvider
type ProviderFunc func() Principal

// Current calls f
func (f ProviderFunc) Current() Principal {
	return f()
}

// Session holds the principal of one user session. Replacing it invalidates
// the permission cache of every gate reading from the session.
type Session struct {
	mu        sync.RWMutex
	principal Principal
}

// NewSession creates a session for principal; nil means Anonymous
func NewSession(principal Principal) *Session {
	s := &Session{}
	s.SetPrincipal(principal)
	return s
}

// Current returns the session principal
func (s *Session) Current() Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principal
}

// SetPrincipal replaces the session principal
func (s *Session) SetPrincipal(principal Principal) {
	if principal == nil {
		principal = Anonymous
	}
	s.mu.Lock()
	s.principal = principal
	s.mu.Unlock()
}

// PolicyEvaluator decides whether principal may act on target of objectType.
// Targets are "Property.read", "Property.write" or an operation name.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, principal Principal, objectType, target string) (bool, error)
}

// EvaluatorFunc adapts a function to PolicyEvaluator
type EvaluatorFunc func(ctx context.Context, principal Principal, objectType, target string) (bool, error)

// Evaluate calls f
func (f EvaluatorFunc) Evaluate(ctx context.Context, principal Principal, objectType, target string) (bool, error) {
	return f(ctx, principal, objectType, target)
}

// samePrincipal compares principal references without panicking on
// non-comparable implementations
func samePrincipal(a, b Principal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return a.Identity() == b.Identity()
}
