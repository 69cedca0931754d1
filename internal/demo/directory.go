package demo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/conduit-lang/bizobj/internal/bo/rules"
)

// Directory answers whether an email address is already registered
type Directory interface {
	EmailTaken(ctx context.Context, email string) (bool, error)
}

// MemoryDirectory is an in-memory Directory with an optional lookup delay
type MemoryDirectory struct {
	mu     sync.RWMutex
	emails map[string]bool
	delay  time.Duration
}

// NewMemoryDirectory creates a directory holding the given addresses
func NewMemoryDirectory(delay time.Duration, emails ...string) *MemoryDirectory {
	d := &MemoryDirectory{emails: make(map[string]bool), delay: delay}
	for _, e := range emails {
		d.Register(e)
	}
	return d
}

// Register adds an address
func (d *MemoryDirectory) Register(email string) {
	d.mu.Lock()
	d.emails[strings.ToLower(email)] = true
	d.mu.Unlock()
}

// EmailTaken reports whether the address is registered
func (d *MemoryDirectory) EmailTaken(ctx context.Context, email string) (bool, error) {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.emails[strings.ToLower(email)], nil
}

// EmailAvailable is an async rule failing when the Directory service
// already knows the address. Without a Directory it passes.
func EmailAvailable(property string) *rules.Rule {
	return rules.NewAsync("EmailAvailable", property, func(ctx *rules.Context) (rules.Result, error) {
		dir, ok := ctx.Services.(Directory)
		if !ok {
			return rules.Pass(), nil
		}
		email, _ := ctx.Primary().(string)
		if email == "" {
			return rules.Pass(), nil
		}
		taken, err := dir.EmailTaken(ctx, email)
		if err != nil {
			return rules.Result{}, err
		}
		if taken {
			return rules.Failf("%s %s is already registered", ctx.Label(property), email), nil
		}
		return rules.Pass(), nil
	})
}
