// Package policy provides role-based authorization for business objects:
// a permission evaluator backed by a role store, and JWT-based principals.
package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/bizobj/internal/bo/authz"
)

// Permission grants a target on an object type, e.g. "Order.create",
// "Order.Total.read" or "Order.*". A "*" segment matches one segment;
// a trailing "*" matches everything that follows.
type Permission string

// Wildcard grants every permission
const Wildcard Permission = "*"

// PermissionFor returns the permission checked for target on objectType
func PermissionFor(objectType, target string) Permission {
	return Permission(objectType + "." + target)
}

// Matches reports whether p grants perm
func (p Permission) Matches(perm Permission) bool {
	pattern := strings.Split(string(p), ".")
	segments := strings.Split(string(perm), ".")
	for i, seg := range pattern {
		if seg == "*" && i == len(pattern)-1 {
			return len(segments) >= len(pattern)
		}
		if i >= len(segments) {
			return false
		}
		if seg != "*" && seg != segments[i] {
			return false
		}
	}
	return len(pattern) == len(segments)
}

// Role is a named set of permissions
type Role struct {
	Name        string
	Permissions []Permission
}

// HasPermission checks if the role grants perm
func (r *Role) HasPermission(perm Permission) bool {
	for _, p := range r.Permissions {
		if p.Matches(perm) {
			return true
		}
	}
	return false
}

// RoleStore supplies role definitions
type RoleStore interface {
	Roles(ctx context.Context) ([]string, error)
	Role(ctx context.Context, name string) (*Role, error)
}

// StaticRoles is an in-memory role table, typically loaded from configuration
type StaticRoles map[string][]Permission

// Roles returns the role names in sorted order
func (s StaticRoles) Roles(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Role returns the named role, or nil when it is not defined
func (s StaticRoles) Role(ctx context.Context, name string) (*Role, error) {
	perms, ok := s[name]
	if !ok {
		return nil, nil
	}
	return &Role{Name: name, Permissions: perms}, nil
}

// ParseRoles builds a static role table from role name to permission strings
func ParseRoles(raw map[string][]string) StaticRoles {
	roles := make(StaticRoles, len(raw))
	for name, perms := range raw {
		list := make([]Permission, 0, len(perms))
		for _, p := range perms {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, Permission(p))
			}
		}
		roles[name] = list
	}
	return roles
}

// Evaluator grants a target when any role held by the principal has a
// matching permission. It implements authz.PolicyEvaluator.
type Evaluator struct {
	store  RoleStore
	logger *zap.Logger
}

// NewEvaluator creates an evaluator over store
func NewEvaluator(store RoleStore, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{store: store, logger: logger}
}

// Evaluate checks the principal's roles against the permission for target
func (e *Evaluator) Evaluate(ctx context.Context, p authz.Principal, objectType, target string) (bool, error) {
	if p == nil {
		return false, nil
	}
	names, err := e.store.Roles(ctx)
	if err != nil {
		return false, fmt.Errorf("list roles: %w", err)
	}

	perm := PermissionFor(objectType, target)
	for _, name := range names {
		if !p.IsInRole(name) {
			continue
		}
		role, err := e.store.Role(ctx, name)
		if err != nil {
			return false, fmt.Errorf("load role %s: %w", name, err)
		}
		if role != nil && role.HasPermission(perm) {
			e.logger.Debug("permission granted",
				zap.String("principal", p.Identity()),
				zap.String("role", name),
				zap.String("permission", string(perm)))
			return true, nil
		}
	}
	return false, nil
}

var _ authz.PolicyEvaluator = (*Evaluator)(nil)
