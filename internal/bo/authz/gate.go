package authz

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Gate answers authorization queries for one business type and caches the
// answers for the current principal
type Gate struct {
	objectType string
	evaluator  PolicyEvaluator
	provider   PrincipalProvider
	logger     *zap.Logger
	ctx        context.Context

	mu        sync.Mutex
	principal Principal
	cache     map[string]bool
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithEvaluator sets the policy evaluator. Without one every action is allowed.
func WithEvaluator(evaluator PolicyEvaluator) GateOption {
	return func(g *Gate) {
		g.evaluator = evaluator
	}
}

// WithPrincipalProvider sets where the current principal comes from
func WithPrincipalProvider(provider PrincipalProvider) GateOption {
	return func(g *Gate) {
		if provider != nil {
			g.provider = provider
		}
	}
}

// WithLogger sets the logger for evaluation failures
func WithLogger(logger *zap.Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithContext sets the context handed to the evaluator
func WithContext(ctx context.Context) GateOption {
	return func(g *Gate) {
		if ctx != nil {
			g.ctx = ctx
		}
	}
}

// NewGate creates a gate for objectType
func NewGate(objectType string, opts ...GateOption) *Gate {
	g := &Gate{
		objectType: objectType,
		provider:   ProviderFunc(func() Principal { return Anonymous }),
		logger:     zap.NewNop(),
		ctx:        context.Background(),
		cache:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ObjectType returns the business type the gate answers for
func (g *Gate) ObjectType() string {
	return g.objectType
}

// Principal returns the current principal
func (g *Gate) Principal() Principal {
	p := g.provider.Current()
	if p == nil {
		return Anonymous
	}
	return p
}

// CanRead reports whether the current principal may read property
func (g *Gate) CanRead(property string) bool {
	return g.allowed(PropertyTarget(property, Read))
}

// CanWrite reports whether the current principal may write property
func (g *Gate) CanWrite(property string) bool {
	return g.allowed(PropertyTarget(property, Write))
}

// CanExecute reports whether the current principal may perform op on the type
func (g *Gate) CanExecute(op Operation) bool {
	return g.allowed(OperationTarget(op))
}

// Require returns an *AuthorizationError when target is denied
func (g *Gate) Require(target string) error {
	if g.allowed(target) {
		return nil
	}
	return &AuthorizationError{
		ObjectType: g.objectType,
		Target:     target,
		Principal:  g.Principal().Identity(),
	}
}

// Flush drops every cached answer
func (g *Gate) Flush() {
	g.mu.Lock()
	g.cache = make(map[string]bool)
	g.mu.Unlock()
}

// Cached returns the number of cached answers
func (g *Gate) Cached() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cache)
}

func (g *Gate) allowed(target string) bool {
	if g.evaluator == nil {
		return true
	}

	principal := g.Principal()

	g.mu.Lock()
	if !samePrincipal(principal, g.principal) {
		g.principal = principal
		g.cache = make(map[string]bool)
	}
	if allow, ok := g.cache[target]; ok {
		g.mu.Unlock()
		return allow
	}
	g.mu.Unlock()

	allow, err := g.evaluator.Evaluate(g.ctx, principal, g.objectType, target)
	if err != nil {
		// errors deny and are not cached so the next query retries
		g.logger.Warn("authorization policy evaluation failed",
			zap.String("type", g.objectType),
			zap.String("target", target),
			zap.String("principal", principal.Identity()),
			zap.Error(err),
		)
		return false
	}

	g.mu.Lock()
	if samePrincipal(principal, g.principal) {
		g.cache[target] = allow
	}
	g.mu.Unlock()
	return allow
}
