package authz

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEvaluator grants targets per identity and counts evaluations
type countingEvaluator struct {
	mu     sync.Mutex
	grants map[string]map[string]bool
	calls  int
	err    error
}

func newCountingEvaluator() *countingEvaluator {
	return &countingEvaluator{grants: make(map[string]map[string]bool)}
}

func (e *countingEvaluator) grant(identity string, targets ...string) {
	if e.grants[identity] == nil {
		e.grants[identity] = make(map[string]bool)
	}
	for _, t := range targets {
		e.grants[identity][t] = true
	}
}

func (e *countingEvaluator) Evaluate(ctx context.Context, p Principal, objectType, target string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return false, e.err
	}
	return e.grants[p.Identity()][target], nil
}

func TestGate_NoEvaluatorAllows(t *testing.T) {
	g := NewGate("Person")

	assert.True(t, g.CanRead("Name"))
	assert.True(t, g.CanWrite("Name"))
	for _, op := range Operations {
		assert.True(t, g.CanExecute(op), op)
	}
	assert.NoError(t, g.Require(PropertyTarget("Name", Write)))
	assert.Equal(t, Anonymous, g.Principal())
}

func TestGate_Evaluates(t *testing.T) {
	eval := newCountingEvaluator()
	eval.grant("ann", "Name.read", "create")
	session := NewSession(NewUser("ann"))
	g := NewGate("Person", WithEvaluator(eval), WithPrincipalProvider(session))

	tests := []struct {
		name  string
		check func() bool
		want  bool
	}{
		{"read granted", func() bool { return g.CanRead("Name") }, true},
		{"write denied", func() bool { return g.CanWrite("Name") }, false},
		{"create granted", func() bool { return g.CanExecute(Create) }, true},
		{"delete denied", func() bool { return g.CanExecute(Delete) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check())
		})
	}
}

func TestGate_CachesPerPrincipal(t *testing.T) {
	eval := newCountingEvaluator()
	eval.grant("ann", "Name.write")
	session := NewSession(NewUser("ann"))
	g := NewGate("Person", WithEvaluator(eval), WithPrincipalProvider(session))

	for i := 0; i < 5; i++ {
		assert.True(t, g.CanWrite("Name"))
	}
	assert.Equal(t, 1, eval.calls)
	assert.Equal(t, 1, g.Cached())

	// a new principal reference flushes the cache
	session.SetPrincipal(NewUser("bob"))
	assert.False(t, g.CanWrite("Name"))
	assert.Equal(t, 2, eval.calls)

	session.SetPrincipal(NewUser("ann"))
	assert.True(t, g.CanWrite("Name"))
	assert.Equal(t, 3, eval.calls)

	g.Flush()
	assert.Equal(t, 0, g.Cached())
	assert.True(t, g.CanWrite("Name"))
	assert.Equal(t, 4, eval.calls)
}

func TestGate_EvaluationErrorDenies(t *testing.T) {
	eval := newCountingEvaluator()
	eval.grant("ann", "Name.read")
	eval.err = errors.New("policy store unavailable")
	g := NewGate("Person", WithEvaluator(eval), WithPrincipalProvider(NewSession(NewUser("ann"))))

	assert.False(t, g.CanRead("Name"))
	assert.Equal(t, 0, g.Cached(), "failed evaluations are not cached")

	eval.err = nil
	assert.True(t, g.CanRead("Name"))
}

func TestGate_Require(t *testing.T) {
	eval := newCountingEvaluator()
	g := NewGate("Person", WithEvaluator(eval))

	err := g.Require(PropertyTarget("Age", Write))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	var aerr *AuthorizationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "Person", aerr.ObjectType)
	assert.Equal(t, "Age.write", aerr.Target)
	assert.Equal(t, "not authorized: anonymous may not Age.write on Person", err.Error())
}

func TestSession_NilIsAnonymous(t *testing.T) {
	s := NewSession(nil)
	assert.Equal(t, Anonymous, s.Current())
	assert.False(t, s.Current().IsInRole("admin"))
}

func TestUser_IsInRole(t *testing.T) {
	u := NewUser("ann", "clerk", "manager")
	assert.True(t, u.IsInRole("manager"))
	assert.False(t, u.IsInRole("admin"))
	assert.Equal(t, "ann", u.Identity())
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation("edit")
	require.NoError(t, err)
	assert.Equal(t, Edit, op)

	_, err = ParseOperation("archive")
	assert.Error(t, err)
}

type valuePrincipal struct {
	id    string
	roles []string
}

func (v valuePrincipal) Identity() string       { return v.id }
func (v valuePrincipal) IsInRole(r string) bool { return false }

func TestSamePrincipal(t *testing.T) {
	ann := NewUser("ann")
	assert.True(t, samePrincipal(ann, ann))
	assert.False(t, samePrincipal(ann, NewUser("ann")), "distinct references differ")
	assert.True(t, samePrincipal(Anonymous, Anonymous))
	assert.False(t, samePrincipal(nil, ann))

	// non-comparable values fall back to identity
	assert.True(t, samePrincipal(valuePrincipal{id: "x"}, valuePrincipal{id: "x", roles: []string{"a"}}))
	assert.False(t, samePrincipal(valuePrincipal{id: "x"}, valuePrincipal{id: "y"}))
}
