package business

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/bizobj/internal/bo/notify"
	"github.com/conduit-lang/bizobj/internal/bo/undo"
)

type membershipKind int

const (
	memberAdded membershipKind = iota
	memberRemoved
)

// membership records one add or remove made at an edit level
type membership struct {
	kind  membershipKind
	item  *Object
	index int
	level int
}

// List is a child collection of business objects of one type. Removed items
// that were already persisted move to DeletedItems until MarkOld.
type List struct {
	id       uuid.UUID
	itemType *Type
	rt       *Runtime
	logger   *zap.Logger
	items    []*Object
	deleted  []*Object
	subs     map[*Object]notify.Subscription
	notifier *notify.Notifier
	level    int
	log      []membership
}

// NewList creates an empty list of itemType objects
func NewList(itemType *Type, rt *Runtime) *List {
	if rt == nil {
		rt = defaultRuntime
	}
	id := uuid.New()
	source := itemType.Name() + "List"
	logger := rt.logger.With(zap.String("list", source), zap.String("id", id.String()))
	return &List{
		id:       id,
		itemType: itemType,
		rt:       rt,
		logger:   logger,
		subs:     make(map[*Object]notify.Subscription),
		notifier: notify.NewNotifier(source, logger),
	}
}

// ID returns the list identity
func (l *List) ID() uuid.UUID {
	return l.id
}

// ItemType returns the business type of the items
func (l *List) ItemType() *Type {
	return l.itemType
}

// Len returns the number of active items
func (l *List) Len() int {
	return len(l.items)
}

// At returns the item at index i
func (l *List) At(i int) (*Object, error) {
	if i < 0 || i >= len(l.items) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(l.items))
	}
	return l.items[i], nil
}

// Items returns the active items in order
func (l *List) Items() []*Object {
	return append([]*Object(nil), l.items...)
}

// DeletedItems returns removed items that were already persisted
func (l *List) DeletedItems() []*Object {
	return append([]*Object(nil), l.deleted...)
}

// IndexOf returns the position of item, or -1
func (l *List) IndexOf(item *Object) int {
	for i, it := range l.items {
		if it == item {
			return i
		}
	}
	return -1
}

// AddNew creates a new item, runs its rules and appends it
func (l *List) AddNew() (*Object, error) {
	item := New(l.itemType, l.rt)
	item.CheckRules()
	if err := l.Add(item); err != nil {
		return nil, err
	}
	return item, nil
}

// Add appends item
func (l *List) Add(item *Object) error {
	return l.Insert(len(l.items), item)
}

// Insert places item at index i, raising it to the list's edit level
func (l *List) Insert(i int, item *Object) error {
	if item == nil {
		return fmt.Errorf("cannot add nil item to %s list", l.itemType.Name())
	}
	if item.typ.info != l.itemType.info {
		return fmt.Errorf("%w: %s in %s list", ErrItemType, item.typ.Name(), l.itemType.Name())
	}
	if i < 0 || i > len(l.items) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(l.items))
	}
	if l.IndexOf(item) >= 0 {
		return ErrDuplicateItem
	}
	if err := undo.Sync(l.itemType.Name()+"List", item.id.String(), item, l.level); err != nil {
		return err
	}

	l.insert(i, item)
	l.record(memberAdded, item, i)
	l.notifier.ChildChanged([]string{indexSegment(i)}, notify.ChildChange{Kind: notify.ItemAdded, Index: i})
	return nil
}

// RemoveAt removes the item at index i. A persisted item is marked deleted
// and kept in DeletedItems.
func (l *List) RemoveAt(i int) error {
	if i < 0 || i >= len(l.items) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(l.items))
	}
	item := l.items[i]
	l.remove(i)
	if !item.IsNew() {
		item.MarkDeleted()
		l.deleted = append(l.deleted, item)
	}
	l.record(memberRemoved, item, i)
	l.notifier.ChildChanged([]string{indexSegment(i)}, notify.ChildChange{Kind: notify.ItemRemoved, Index: i})
	return nil
}

// Remove removes item. It reports whether the item was a member.
func (l *List) Remove(item *Object) bool {
	i := l.IndexOf(item)
	if i < 0 {
		return false
	}
	return l.RemoveAt(i) == nil
}

func (l *List) insert(i int, item *Object) {
	l.items = append(l.items, nil)
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = item
	l.subs[item] = item.Subscribe(func(e notify.Event) {
		idx := l.IndexOf(item)
		if idx < 0 {
			return
		}
		l.notifier.Notify(forward(indexSegment(idx), e))
	})
}

func (l *List) remove(i int) {
	item := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	if sub, ok := l.subs[item]; ok {
		item.Unsubscribe(sub)
		delete(l.subs, item)
	}
}

func (l *List) record(kind membershipKind, item *Object, index int) {
	if l.level == 0 {
		return
	}
	l.log = append(l.log, membership{kind: kind, item: item, index: index, level: l.level})
}

func (l *List) dropDeleted(item *Object) {
	for i, d := range l.deleted {
		if d == item {
			l.deleted = append(l.deleted[:i], l.deleted[i+1:]...)
			return
		}
	}
}

// members returns the active items followed by the deleted items
func (l *List) members() []*Object {
	all := make([]*Object, 0, len(l.items)+len(l.deleted))
	all = append(all, l.items...)
	return append(all, l.deleted...)
}

// detached returns items referenced by the membership log that are no
// longer members
func (l *List) detached() []*Object {
	seen := make(map[*Object]bool)
	for _, item := range l.members() {
		seen[item] = true
	}
	var out []*Object
	for _, m := range l.log {
		if !seen[m.item] {
			seen[m.item] = true
			out = append(out, m.item)
		}
	}
	return out
}

func (l *List) checkMembers(expected int) error {
	for _, item := range l.members() {
		if err := undo.CheckLevel(l.itemType.Name()+"List", item.id.String(), item, expected); err != nil {
			l.logger.Error("edit level mismatch", zap.Error(err))
			return err
		}
	}
	return nil
}

// EditLevel returns the number of open edit scopes
func (l *List) EditLevel() int {
	return l.level
}

// BeginEdit opens an edit scope on the list and every item
func (l *List) BeginEdit() error {
	if err := l.checkMembers(l.level); err != nil {
		return err
	}
	l.level++
	for _, item := range l.members() {
		if err := item.BeginEdit(); err != nil {
			return err
		}
	}
	return nil
}

// CancelEdit undoes the adds and removes of the innermost scope in reverse
// order, then cancels every item. It is a no-op at edit level zero.
func (l *List) CancelEdit() error {
	if l.level == 0 {
		return nil
	}

	changed := false
	keep := l.log[:0]
	var undoing []membership
	for _, m := range l.log {
		if m.level == l.level {
			undoing = append(undoing, m)
		} else {
			keep = append(keep, m)
		}
	}
	l.log = keep

	var dropped, restored []*Object
	for i := len(undoing) - 1; i >= 0; i-- {
		m := undoing[i]
		switch m.kind {
		case memberAdded:
			if idx := l.IndexOf(m.item); idx >= 0 {
				l.remove(idx)
			}
			dropped = append(dropped, m.item)
		case memberRemoved:
			l.dropDeleted(m.item)
			idx := m.index
			if idx > len(l.items) {
				idx = len(l.items)
			}
			l.insert(idx, m.item)
			restored = append(restored, m.item)
		}
		changed = true
	}

	for _, item := range restored {
		if err := settle(item, l.level, true); err != nil {
			return err
		}
	}
	if err := l.checkMembers(l.level); err != nil {
		return err
	}
	l.level--
	for _, item := range l.members() {
		if err := item.CancelEdit(); err != nil {
			return err
		}
	}
	for _, item := range dropped {
		if l.IndexOf(item) < 0 {
			if err := settle(item, l.level, true); err != nil {
				return err
			}
		}
	}

	if changed {
		l.notifier.ChildChanged(nil, notify.ChildChange{Kind: notify.CollectionReset, Index: -1})
	}
	return nil
}

// ApplyEdit commits the innermost scope into the enclosing one. It is a
// no-op at edit level zero.
func (l *List) ApplyEdit() error {
	if l.level == 0 {
		return nil
	}
	if err := l.checkMembers(l.level); err != nil {
		return err
	}
	l.level--

	for _, item := range l.detached() {
		if err := settle(item, l.level, false); err != nil {
			return err
		}
	}
	keep := l.log[:0]
	for _, m := range l.log {
		if m.level > l.level {
			m.level = l.level
		}
		if m.level > 0 {
			keep = append(keep, m)
		}
	}
	l.log = keep

	for _, item := range l.members() {
		if err := item.ApplyEdit(); err != nil {
			return err
		}
	}
	return nil
}

// IsNew is always false for a list
func (l *List) IsNew() bool {
	return false
}

// IsDeleted is always false for a list
func (l *List) IsDeleted() bool {
	return false
}

// IsDirty reports whether an item changed or was removed
func (l *List) IsDirty() bool {
	if len(l.deleted) > 0 {
		return true
	}
	for _, item := range l.items {
		if item.IsDirty() {
			return true
		}
	}
	return false
}

// IsValid reports whether every active item is valid
func (l *List) IsValid() bool {
	for _, item := range l.items {
		if !item.IsValid() {
			return false
		}
	}
	return true
}

// IsBusy reports whether any item has outstanding async rules
func (l *List) IsBusy() bool {
	for _, item := range l.members() {
		if item.IsBusy() {
			return true
		}
	}
	return false
}

// IsSavable reports whether the list is valid and idle
func (l *List) IsSavable() bool {
	return l.IsValid() && !l.IsBusy()
}

// ErrorText joins the Error messages of the items, prefixed with their position
func (l *List) ErrorText() string {
	var parts []string
	for i, item := range l.items {
		if s := item.ErrorText(); s != "" {
			parts = append(parts, indexSegment(i)+" "+s)
		}
	}
	return strings.Join(parts, "\n")
}

// MarkOld marks every item persisted and forgets the deleted items
func (l *List) MarkOld() {
	for _, item := range l.items {
		item.MarkOld()
	}
	l.deleted = nil
}

// ProcessCompletions merges async rule results of every item
func (l *List) ProcessCompletions() int {
	n := 0
	for _, item := range l.members() {
		n += item.ProcessCompletions()
	}
	return n
}

// Subscribe registers an observer for membership and item events
func (l *List) Subscribe(observer notify.Observer) notify.Subscription {
	return l.notifier.Subscribe(observer)
}

// Unsubscribe removes an observer
func (l *List) Unsubscribe(sub notify.Subscription) bool {
	return l.notifier.Unsubscribe(sub)
}

func (l *List) node() {}

func indexSegment(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}
