package business

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/bizobj/internal/bo/authz"
	"github.com/conduit-lang/bizobj/internal/bo/fields"
	"github.com/conduit-lang/bizobj/internal/bo/notify"
	"github.com/conduit-lang/bizobj/internal/bo/rules"
	"github.com/conduit-lang/bizobj/internal/bo/undo"
)

// Object is one business object instance
type Object struct {
	id       uuid.UUID
	typ      *Type
	rt       *Runtime
	logger   *zap.Logger
	store    *fields.Store
	edits    undo.Stack
	broken   *rules.BrokenRules
	runner   *rules.Runner
	gate     *authz.Gate
	notifier *notify.Notifier
	inbox    *mailbox
	links    map[string]*link

	generation uint64
	isNew      bool
	isDeleted  bool
	markDirty  bool
	disposed   bool
}

// link is an attached child and the subscription forwarding its events
type link struct {
	node Node
	sub  notify.Subscription
}

// New creates a new, dirty instance of t. A nil runtime uses a default
// runtime without async support or authorization.
func New(t *Type, rt *Runtime) *Object {
	if rt == nil {
		rt = defaultRuntime
	}
	id := uuid.New()
	logger := rt.logger.With(zap.String("type", t.Name()), zap.String("id", id.String()))

	o := &Object{
		id:        id,
		typ:       t,
		rt:        rt,
		logger:    logger,
		store:     fields.NewStore(t.info),
		broken:    rules.NewBrokenRules(),
		gate:      rt.gate(t.Name()),
		notifier:  notify.NewNotifier(t.Name(), logger),
		inbox:     newMailbox(),
		links:     make(map[string]*link),
		isNew:     true,
		markDirty: true,
	}
	o.runner = rules.NewRunner(t.graph, o.broken, host{o}, rt.runnerOptions(logger)...)
	return o
}

// ID returns the instance identity
func (o *Object) ID() uuid.UUID {
	return o.id
}

// Type returns the business type
func (o *Object) Type() *Type {
	return o.typ
}

// Get returns the value of a property. A property the current principal may
// not read yields its default value.
func (o *Object) Get(name string) interface{} {
	p, ok := o.typ.info.Lookup(name)
	if !ok {
		return nil
	}
	if !o.gate.CanRead(name) {
		return p.Default()
	}
	return o.store.Read(name)
}

// ReadProperty returns the value of a property without an authorization check
func (o *Object) ReadProperty(name string) interface{} {
	return o.store.Read(name)
}

// Set writes a property: authorization, type conversion, store, child
// attachment, rule cascade, then notification. Writing the current value is
// a no-op.
func (o *Object) Set(name string, value interface{}) error {
	if o.disposed {
		return ErrDisposed
	}
	o.drain()

	p, ok := o.typ.info.Lookup(name)
	if !ok {
		return unknownProperty(o.typ.Name(), name)
	}
	if err := o.gate.Require(authz.PropertyTarget(name, authz.Write)); err != nil {
		return err
	}
	v, err := p.Coerce(value)
	if err != nil {
		return &TypeMismatchError{Property: p.ID(), Value: value, Err: err}
	}

	old := o.store.Read(name)
	if p.Equal(old, v) {
		return nil
	}
	if p.IsRelationship() {
		if _, err := o.attach(name, asNode(v), true); err != nil {
			return err
		}
	}
	o.store.Write(name, v)

	rep := o.runner.Run(o.rt.ctx, name)

	o.notifier.PropertyChanged(name)
	for _, affected := range rep.Properties {
		if affected != name {
			o.notifier.PropertyChanged(affected)
		}
	}
	return nil
}

// Load stores a value without authorization, rules, dirty marking or
// notification. Loaders use it to populate fetched objects.
func (o *Object) Load(name string, value interface{}) error {
	if o.disposed {
		return ErrDisposed
	}
	p, ok := o.typ.info.Lookup(name)
	if !ok {
		return unknownProperty(o.typ.Name(), name)
	}
	v, err := p.Coerce(value)
	if err != nil {
		return &TypeMismatchError{Property: p.ID(), Value: value, Err: err}
	}
	if p.IsRelationship() && !p.Equal(o.store.Read(name), v) {
		if _, err := o.attach(name, asNode(v), true); err != nil {
			return err
		}
	}
	o.store.Load(name, v)
	return nil
}

// Child returns the child object held by a relationship property
func (o *Object) Child(name string) (*Object, error) {
	n, err := o.childNode(name)
	if err != nil {
		return nil, err
	}
	child, _ := n.(*Object)
	return child, nil
}

// Children returns the child list held by a relationship property
func (o *Object) Children(name string) (*List, error) {
	n, err := o.childNode(name)
	if err != nil {
		return nil, err
	}
	list, _ := n.(*List)
	return list, nil
}

func (o *Object) childNode(name string) (Node, error) {
	p, ok := o.typ.info.Lookup(name)
	if !ok {
		return nil, unknownProperty(o.typ.Name(), name)
	}
	if !p.IsRelationship() {
		return nil, ErrNotRelationship
	}
	return asNode(o.store.Read(name)), nil
}

// CheckRules runs every rule of the type, as after creating or fetching an object
func (o *Object) CheckRules() {
	if o.disposed {
		return
	}
	o.drain()
	rep := o.runner.CheckRules(o.rt.ctx)
	if rep.Changed {
		for _, p := range rep.Properties {
			o.notifier.PropertyChanged(p)
		}
	}
}

// MarkClean clears the dirty flag of one property
func (o *Object) MarkClean(name string) {
	o.store.MarkClean(name)
}

// MarkNew marks the object as new and dirty
func (o *Object) MarkNew() {
	o.isNew = true
	o.isDeleted = false
	o.markDirty = true
}

// MarkOld marks the object and its children as persisted and clean
func (o *Object) MarkOld() {
	o.isNew = false
	o.markDirty = false
	o.store.MarkAllClean()
	for _, n := range o.childNodes() {
		n.MarkOld()
	}
}

// MarkDeleted flags the object for deletion on the next save
func (o *Object) MarkDeleted() {
	o.isDeleted = true
	o.markDirty = true
}

// MarkDirty marks the object dirty without changing a property
func (o *Object) MarkDirty() {
	o.markDirty = true
}

// Subscribe registers an observer for property, child and busy events
func (o *Object) Subscribe(observer notify.Observer) notify.Subscription {
	return o.notifier.Subscribe(observer)
}

// Unsubscribe removes an observer
func (o *Object) Unsubscribe(sub notify.Subscription) bool {
	return o.notifier.Unsubscribe(sub)
}

// SuspendNotifications holds back events until ResumeNotifications
func (o *Object) SuspendNotifications() {
	o.notifier.Suspend()
}

// ResumeNotifications re-enables events
func (o *Object) ResumeNotifications() {
	o.notifier.Resume()
}

// Dispose detaches the object from its children and observers. Async
// results still in flight are discarded on arrival.
func (o *Object) Dispose() {
	if o.disposed {
		return
	}
	o.disposed = true
	o.generation++
	for name, l := range o.links {
		l.node.Unsubscribe(l.sub)
		delete(o.links, name)
	}
	o.inbox.close()
	o.notifier.Clear()
	o.logger.Debug("object disposed", zap.Int("pending_rules", o.runner.Pending()))
	o.runner.Abandon()
	o.store.ClearBusy()
}

// IsDisposed reports whether Dispose was called
func (o *Object) IsDisposed() bool {
	return o.disposed
}

// ProcessCompletions merges async rule results posted since the last call,
// for the object and every child. It returns the number of results handled.
func (o *Object) ProcessCompletions() int {
	n := o.drain()
	for _, child := range o.childNodes() {
		n += child.ProcessCompletions()
	}
	return n
}

// drain merges the object's own mailbox
func (o *Object) drain() int {
	items := o.inbox.drain()
	for _, c := range items {
		if o.runner.Complete(c) {
			o.notifier.PropertyChanged(c.Rule.Property)
		}
	}
	return len(items)
}

// attach replaces the child held by a relationship property. The old child
// is unsubscribed and returned; the new one is raised to the object's edit
// level when sync is set and its events are forwarded as ChildChanged.
func (o *Object) attach(name string, n Node, sync bool) (Node, error) {
	if n != nil && sync {
		if err := undo.Sync(o.typ.Name(), name, n, o.edits.Level()); err != nil {
			return nil, err
		}
	}
	var dropped Node
	if old, ok := o.links[name]; ok {
		if old.node == n {
			return nil, nil
		}
		old.node.Unsubscribe(old.sub)
		delete(o.links, name)
		dropped = old.node
		if top, ok := o.edits.Peek(); ok && sync {
			frame := top.(*editFrame)
			frame.detached = append(frame.detached, old.node)
		}
	}
	if n == nil {
		return dropped, nil
	}
	l := &link{node: n}
	l.sub = n.Subscribe(func(e notify.Event) {
		o.notifier.Notify(forward(name, e))
	})
	o.links[name] = l
	return dropped, nil
}

// relink reconciles child subscriptions with the values in the store after a
// restore. It returns the children that were unlinked.
func (o *Object) relink() []Node {
	var dropped []Node
	for _, p := range o.typ.info.Relationships() {
		// restored children are settled by the caller
		old, _ := o.attach(p.Name(), asNode(o.store.Read(p.Name())), false)
		if old != nil {
			dropped = append(dropped, old)
		}
	}
	return dropped
}

func (o *Object) linked(n Node) bool {
	for _, l := range o.links {
		if l.node == n {
			return true
		}
	}
	return false
}

// childNodes returns the attached children in declaration order
func (o *Object) childNodes() []Node {
	var nodes []Node
	for _, p := range o.typ.info.Relationships() {
		if l, ok := o.links[p.Name()]; ok {
			nodes = append(nodes, l.node)
		}
	}
	return nodes
}

func (o *Object) node() {}

// host adapts an Object to rules.Host
type host struct {
	o *Object
}

func (h host) View() rules.FieldAccessor {
	return h.o.store.Values()
}

func (h host) Generation() uint64 {
	return h.o.generation
}

func (h host) SetBusy(property string, busy bool) {
	delta := -1
	if busy {
		delta = 1
	}
	if h.o.store.AddBusy(property, delta) {
		h.o.notifier.BusyChanged(property, busy)
	}
}

func (h host) Validated(property string) {
	h.o.store.MarkValidated(property)
}

func (h host) Post(c rules.Completion) {
	h.o.inbox.post(c)
}
