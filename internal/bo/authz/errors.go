package authz

import (
	"errors"
	"fmt"
)

// ErrNotAuthorized is the sentinel for denied access
var ErrNotAuthorized = errors.New("not authorized")

// AuthorizationError reports an attempt to perform a denied action. Gates
// answer queries with booleans; this error is returned only when a caller
// performs the action anyway.
type AuthorizationError struct {
	ObjectType string
	Target     string
	Principal  string
}

// Error implements the error interface
func (e *AuthorizationError) Error() string {
	who := e.Principal
	if who == "" {
		who = "anonymous"
	}
	return fmt.Sprintf("%s: %s may not %s on %s", ErrNotAuthorized, who, e.Target, e.ObjectType)
}

// Unwrap allows errors.Is(err, ErrNotAuthorized)
func (e *AuthorizationError) Unwrap() error {
	return ErrNotAuthorized
}
