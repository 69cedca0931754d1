package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/bizobj/internal/bo/authz"
	"github.com/conduit-lang/bizobj/internal/bo/business"
	"github.com/conduit-lang/bizobj/internal/bo/meta"
	"github.com/conduit-lang/bizobj/internal/cli/config"
	"github.com/conduit-lang/bizobj/internal/cli/ui"
	"github.com/conduit-lang/bizobj/internal/logging"
	"github.com/conduit-lang/bizobj/internal/policy"
)

// globalOptions holds the persistent root flags
type globalOptions struct {
	configPath string
	noColor    bool
	logLevel   string
}

// app is the per-invocation environment built from configuration
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	out    *ui.Printer
}

func (o *globalOptions) load(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	logger, err := logging.NewWithWriter(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		logger: logger,
		out:    ui.NewPrinter(cmd.OutOrStdout(), o.noColor),
	}, nil
}

// policyEnabled reports whether any role source is configured
func (a *app) policyEnabled() bool {
	return len(a.cfg.Policy.Roles) > 0 || a.cfg.Policy.Redis.Enabled
}

// roleStore opens Redis when enabled and falls back to the configured role table
func (a *app) roleStore(ctx context.Context) (policy.RoleStore, func(), error) {
	if !a.cfg.Policy.Redis.Enabled {
		return policy.ParseRoles(a.cfg.Policy.Roles), func() {}, nil
	}
	r := a.cfg.Policy.Redis
	store, err := policy.NewRedisRoleStore(ctx, policy.RedisConfig{
		Addr:      r.Addr,
		Password:  r.Password,
		DB:        r.DB,
		KeyPrefix: r.KeyPrefix,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

// tokens returns the JWT service, failing when no secret is configured
func (a *app) tokens() (*policy.TokenService, error) {
	if a.cfg.Policy.JWT.Secret == "" {
		return nil, errors.New("policy.jwt.secret is not configured")
	}
	return policy.NewTokenService(a.cfg.Policy.JWT.Secret, a.cfg.Policy.JWT.TTL), nil
}

// newRuntime builds a business runtime from configuration. The returned
// func releases the async workers and the role store.
func (a *app) newRuntime(ctx context.Context, principals authz.PrincipalProvider, services interface{}) (*business.Runtime, func(), error) {
	opts := []business.Option{
		business.WithContext(ctx),
		business.WithLogger(a.logger),
		business.WithPollInterval(a.cfg.Rules.PollInterval),
		business.WithServices(services),
		business.WithPrincipals(principals),
	}
	if a.cfg.Rules.AsyncWorkers > 0 {
		opts = append(opts, business.WithAsyncWorkers(a.cfg.Rules.AsyncWorkers, a.cfg.Rules.QueueSize))
	}

	release := func() {}
	if a.policyEnabled() {
		store, closeStore, err := a.roleStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		release = closeStore
		opts = append(opts, business.WithPolicy(policy.NewEvaluator(store, a.logger)))
	}

	rt := business.NewRuntime(opts...)
	return rt, func() {
		rt.Close()
		release()
	}, nil
}

// UnknownNameError reports a type or property that is not registered
type UnknownNameError struct {
	Kind        string
	Name        string
	Suggestions []string
}

// Error implements error
func (e *UnknownNameError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

func suggestionsFor(err error) []string {
	var unknown *UnknownNameError
	if errors.As(err, &unknown) {
		return unknown.Suggestions
	}
	return nil
}

func lookupType(name string) (*business.Type, error) {
	t, ok := business.LookupType(name)
	if !ok {
		return nil, &UnknownNameError{Kind: "type", Name: name, Suggestions: ui.Suggest(name, meta.Default.Names(), 3)}
	}
	return t, nil
}

func lookupProperty(t *business.Type, name string) (*meta.PropertyInfo, error) {
	p, ok := t.Info().Lookup(name)
	if !ok {
		var names []string
		for _, prop := range t.Info().Properties() {
			names = append(names, prop.Name())
		}
		return nil, &UnknownNameError{Kind: "property of " + t.Name(), Name: name, Suggestions: ui.Suggest(name, names, 3)}
	}
	return p, nil
}
