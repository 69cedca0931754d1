package demo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/conduit-lang/bizobj/internal/bo/business"
	"github.com/conduit-lang/bizobj/internal/viewmodel"
)

// Record is the persisted form of one object
type Record struct {
	ID     uuid.UUID
	Type   string
	Values map[string]interface{}
	Parent uuid.UUID
}

// Repository is an in-memory store for object graphs. It implements viewmodel.Saver.
type Repository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
	saves   int
}

// NewRepository creates an empty repository
func NewRepository() *Repository {
	return &Repository{records: make(map[uuid.UUID]Record)}
}

// Save persists the object graph behind m. Deleted objects are removed.
func (r *Repository) Save(ctx context.Context, m viewmodel.Model) error {
	root, ok := m.(*business.Object)
	if !ok {
		return fmt.Errorf("repository cannot save %T", m)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	return r.save(root, uuid.Nil)
}

func (r *Repository) save(o *business.Object, parent uuid.UUID) error {
	if o.IsDeleted() {
		r.delete(o.ID())
		return nil
	}

	rec := Record{
		ID:     o.ID(),
		Type:   o.Type().Name(),
		Values: make(map[string]interface{}),
		Parent: parent,
	}
	for _, p := range o.Type().Info().Properties() {
		if p.IsRelationship() {
			continue
		}
		rec.Values[p.Name()] = o.ReadProperty(p.Name())
	}
	r.records[rec.ID] = rec

	for _, p := range o.Type().Info().Relationships() {
		switch child := o.ReadProperty(p.Name()).(type) {
		case *business.Object:
			if child != nil {
				if err := r.save(child, rec.ID); err != nil {
					return err
				}
			}
		case *business.List:
			if child == nil {
				continue
			}
			for _, gone := range child.DeletedItems() {
				r.delete(gone.ID())
			}
			for _, item := range child.Items() {
				if err := r.save(item, rec.ID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *Repository) delete(id uuid.UUID) {
	delete(r.records, id)
	for childID, rec := range r.records {
		if rec.Parent == id {
			r.delete(childID)
		}
	}
}

// Get returns a stored record
func (r *Repository) Get(id uuid.UUID) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	return rec, ok
}

// Children returns the records owned by parent, ordered by type then ID
func (r *Repository) Children(parent uuid.UUID) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Record
	for _, rec := range r.records {
		if rec.Parent == parent {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Len returns the number of stored records
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Saves returns the number of Save calls that reached the store
func (r *Repository) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}

var _ viewmodel.Saver = (*Repository)(nil)
