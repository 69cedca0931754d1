// Package viewmodel orchestrates saving and cancelling a root business object
// on behalf of a UI: it waits for async rules to settle, refuses invalid
// objects, optionally manages the object's edit scopes and reports the
// outcome through callbacks.
package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/bizobj/internal/bo/authz"
	"github.com/conduit-lang/bizobj/internal/bo/business"
	"github.com/conduit-lang/bizobj/internal/bo/notify"
)

// DefaultBusyTimeout bounds how long Save waits for async rules
const DefaultBusyTimeout = 30 * time.Second

var (
	// ErrNoSaver is returned by Save when no Saver is configured
	ErrNoSaver = errors.New("no saver configured")
	// ErrInvalid is returned by Save when the model has Error broken rules
	ErrInvalid = errors.New("model is not valid")
	// ErrNotSavable is returned by Save when the model is valid but still cannot be saved
	ErrNotSavable = errors.New("model is not savable")
	// ErrBusyTimeout is returned when async rules did not settle within the busy timeout
	ErrBusyTimeout = errors.New("timed out waiting for business rules")
)

// Model is a root object a ViewModel can manage
type Model interface {
	business.Trackable
	business.Editable
	business.NotifyChanged
	business.AuthorizationQueryable
	ErrorText() string
	WaitIdle(ctx context.Context) error
	MarkOld()
}

// Saver persists a model. It is the data access collaborator.
type Saver interface {
	Save(ctx context.Context, m Model) error
}

// SaverFunc adapts a function to Saver
type SaverFunc func(ctx context.Context, m Model) error

// Save calls f
func (f SaverFunc) Save(ctx context.Context, m Model) error {
	return f(ctx, m)
}

// ViewModel wraps a root model for a UI
type ViewModel struct {
	model          Model
	saver          Saver
	logger         *zap.Logger
	manageLifetime bool
	busyTimeout    time.Duration

	sub       notify.Subscription
	saving    bool
	errorText string
	err       error

	onSaved []func()
	onError []func(error)
	onEvent []func(notify.Event)

	permsOnce sync.Once
	perms     map[authz.Operation]bool
}

// Option configures a ViewModel
type Option func(*ViewModel)

// WithSaver sets the persistence collaborator
func WithSaver(s Saver) Option {
	return func(vm *ViewModel) {
		vm.saver = s
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(vm *ViewModel) {
		if logger != nil {
			vm.logger = logger
		}
	}
}

// WithBusyTimeout bounds how long Save waits for async rules
func WithBusyTimeout(d time.Duration) Option {
	return func(vm *ViewModel) {
		if d > 0 {
			vm.busyTimeout = d
		}
	}
}

// ManageLifetime makes the view model keep an edit scope open on the model:
// BeginEdit when the model is set and after each save, ApplyEdit before
// saving and CancelEdit on Cancel.
func ManageLifetime() Option {
	return func(vm *ViewModel) {
		vm.manageLifetime = true
	}
}

// New creates a view model for model
func New(model Model, opts ...Option) (*ViewModel, error) {
	vm := &ViewModel{
		logger:      zap.NewNop(),
		busyTimeout: DefaultBusyTimeout,
	}
	for _, opt := range opts {
		opt(vm)
	}
	if err := vm.SetModel(model); err != nil {
		return nil, err
	}
	return vm, nil
}

// Model returns the current model
func (vm *ViewModel) Model() Model {
	return vm.model
}

// SetModel replaces the model, moving the event subscription to the new one
func (vm *ViewModel) SetModel(model Model) error {
	if model == vm.model {
		return nil
	}
	if vm.model != nil {
		vm.model.Unsubscribe(vm.sub)
	}
	vm.model = model
	vm.permsOnce = sync.Once{}
	if model == nil {
		return nil
	}
	if vm.manageLifetime {
		if err := model.BeginEdit(); err != nil {
			return fmt.Errorf("begin edit on model: %w", err)
		}
	}
	vm.sub = model.Subscribe(vm.forward)
	return nil
}

func (vm *ViewModel) forward(e notify.Event) {
	for _, fn := range vm.onEvent {
		fn(e)
	}
}

// OnSaved registers a callback run after a successful save
func (vm *ViewModel) OnSaved(fn func()) {
	vm.onSaved = append(vm.onSaved, fn)
}

// OnError registers a callback run when a save fails
func (vm *ViewModel) OnError(fn func(error)) {
	vm.onError = append(vm.onError, fn)
}

// OnModelEvent registers a callback for the model's change events
func (vm *ViewModel) OnModelEvent(fn func(notify.Event)) {
	vm.onEvent = append(vm.onEvent, fn)
}

// IsBusy reports whether a save is running or the model has outstanding rules
func (vm *ViewModel) IsBusy() bool {
	return vm.saving || (vm.model != nil && vm.model.IsBusy())
}

// ErrorText returns the message of the last failed save
func (vm *ViewModel) ErrorText() string {
	return vm.errorText
}

// Err returns the error of the last failed save
func (vm *ViewModel) Err() error {
	return vm.err
}

// Save waits for async rules, validates and saves the model
func (vm *ViewModel) Save(ctx context.Context) error {
	vm.err = nil
	vm.errorText = ""

	m := vm.model
	if m == nil {
		return vm.fail(errors.New("no model to save"))
	}
	if vm.saver == nil {
		return vm.fail(ErrNoSaver)
	}

	if !m.IsSavable() {
		if m.IsBusy() {
			waitCtx, cancel := context.WithTimeout(ctx, vm.busyTimeout)
			err := m.WaitIdle(waitCtx)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return vm.fail(ctx.Err())
				}
				return vm.fail(fmt.Errorf("%w after %s", ErrBusyTimeout, vm.busyTimeout))
			}
		}
		if !m.IsValid() {
			vm.errorText = m.ErrorText()
			return ErrInvalid
		}
		if !m.IsSavable() {
			return vm.fail(fmt.Errorf("%w: busy=%t valid=%t", ErrNotSavable, m.IsBusy(), m.IsValid()))
		}
	}

	if vm.manageLifetime {
		if err := m.ApplyEdit(); err != nil {
			return vm.fail(err)
		}
	}

	vm.saving = true
	err := vm.saver.Save(ctx, m)
	vm.saving = false
	if err == nil {
		m.MarkOld()
	}

	if vm.manageLifetime && m.EditLevel() == 0 {
		if berr := m.BeginEdit(); berr != nil && err == nil {
			err = berr
		}
	}
	if err != nil {
		return vm.fail(err)
	}

	vm.logger.Debug("model saved")
	for _, fn := range vm.onSaved {
		fn()
	}
	return nil
}

// Cancel discards the model's changes when the lifetime is managed
func (vm *ViewModel) Cancel() error {
	if !vm.manageLifetime || vm.model == nil {
		return nil
	}
	if err := vm.model.CancelEdit(); err != nil {
		return err
	}
	return vm.model.BeginEdit()
}

// Close unsubscribes from the model
func (vm *ViewModel) Close() {
	if vm.model != nil {
		vm.model.Unsubscribe(vm.sub)
	}
}

func (vm *ViewModel) fail(err error) error {
	vm.err = err
	vm.errorText = err.Error()
	vm.logger.Warn("save failed", zap.Error(err))
	for _, fn := range vm.onError {
		fn(err)
	}
	return err
}

// CanCreate reports whether the principal may create objects of the model's type
func (vm *ViewModel) CanCreate() bool {
	return vm.permission(authz.Create)
}

// CanGet reports whether the principal may fetch objects of the model's type
func (vm *ViewModel) CanGet() bool {
	return vm.permission(authz.Get)
}

// CanEdit reports whether the principal may save changes to the model's type
func (vm *ViewModel) CanEdit() bool {
	return vm.permission(authz.Edit)
}

// CanDelete reports whether the principal may delete objects of the model's type
func (vm *ViewModel) CanDelete() bool {
	return vm.permission(authz.Delete)
}

// permission computes the object-level permissions once per model
func (vm *ViewModel) permission(op authz.Operation) bool {
	vm.permsOnce.Do(func() {
		vm.perms = make(map[authz.Operation]bool, len(authz.Operations))
		if vm.model == nil {
			return
		}
		for _, o := range authz.Operations {
			vm.perms[o] = vm.model.CanExecute(o)
		}
	})
	return vm.perms[op]
}
