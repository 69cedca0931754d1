package business

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/bizobj/internal/bo/authz"
	"github.com/conduit-lang/bizobj/internal/bo/rules"
)

const defaultPollInterval = 10 * time.Millisecond

// Runtime carries the services shared by every object created with it
type Runtime struct {
	ctx          context.Context
	logger       *zap.Logger
	scheduler    rules.Scheduler
	owned        *rules.AsyncQueue
	workers      int
	queueSize    int
	evaluator    authz.PolicyEvaluator
	principals   authz.PrincipalProvider
	services     interface{}
	pollInterval time.Duration
}

// Option configures a Runtime
type Option func(*Runtime)

// WithContext sets the context handed to rules and the policy evaluator
func WithContext(ctx context.Context) Option {
	return func(rt *Runtime) {
		if ctx != nil {
			rt.ctx = ctx
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(rt *Runtime) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// WithScheduler sets the scheduler for async rules. The caller owns its lifecycle.
func WithScheduler(s rules.Scheduler) Option {
	return func(rt *Runtime) {
		rt.scheduler = s
	}
}

// WithAsyncWorkers starts a queue owned by the runtime and stopped by Close
func WithAsyncWorkers(workers, queueSize int) Option {
	return func(rt *Runtime) {
		if workers <= 0 {
			workers = 1
		}
		rt.workers = workers
		rt.queueSize = queueSize
	}
}

// WithPolicy sets the authorization policy evaluator
func WithPolicy(evaluator authz.PolicyEvaluator) Option {
	return func(rt *Runtime) {
		rt.evaluator = evaluator
	}
}

// WithPrincipals sets the principal provider
func WithPrincipals(provider authz.PrincipalProvider) Option {
	return func(rt *Runtime) {
		rt.principals = provider
	}
}

// WithServices injects a value every rule can read from its Context
func WithServices(services interface{}) Option {
	return func(rt *Runtime) {
		rt.services = services
	}
}

// WithPollInterval sets how often WaitIdle re-checks busy state
func WithPollInterval(d time.Duration) Option {
	return func(rt *Runtime) {
		if d > 0 {
			rt.pollInterval = d
		}
	}
}

// NewRuntime creates a runtime
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{
		ctx:          context.Background(),
		logger:       zap.NewNop(),
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.workers > 0 {
		rt.owned = rules.NewAsyncQueue(rt.workers, rt.queueSize, rt.logger)
		rt.owned.Start()
		rt.scheduler = rt.owned
	}
	return rt
}

// Logger returns the runtime logger
func (rt *Runtime) Logger() *zap.Logger {
	return rt.logger
}

// Close stops the queue started by WithAsyncWorkers, letting queued rules finish
func (rt *Runtime) Close() {
	if rt.owned != nil {
		rt.owned.Shutdown()
	}
}

func (rt *Runtime) gate(typeName string) *authz.Gate {
	opts := []authz.GateOption{
		authz.WithEvaluator(rt.evaluator),
		authz.WithLogger(rt.logger),
		authz.WithContext(rt.ctx),
	}
	if rt.principals != nil {
		opts = append(opts, authz.WithPrincipalProvider(rt.principals))
	}
	return authz.NewGate(typeName, opts...)
}

func (rt *Runtime) runnerOptions(logger *zap.Logger) []rules.RunnerOption {
	return []rules.RunnerOption{
		rules.WithScheduler(rt.scheduler),
		rules.WithLogger(logger),
		rules.WithServices(rt.services),
	}
}

var defaultRuntime = NewRuntime()
