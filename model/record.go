package model

import (
	"context"

	"github.com/modelbind/relate/utils"
)

// Embedding links an embedded record back to the field on its owner.
// Embedded records have no independent persistence path: saving or
// destroying one is re-expressed through the owner.
type Embedding struct {
	Owner *Record
	Field string
	List  bool
}

// Record is one live instance of a model: a field map plus the
// per-instance relation cache. Records are not safe for concurrent
// mutation; the caller is the single writer.
type Record struct {
	model    *Model
	data     map[string]interface{}
	isNew    bool
	cache    map[string]interface{}
	embedded *Embedding
}

// Model returns the record's type descriptor.
func (r *Record) Model() *Model { return r.model }

// Get returns a field value by name.
func (r *Record) Get(name string) interface{} {
	return r.data[name]
}

// Set writes a field value, coercing it per the field definition.
// Reassigning a relation's join field drops that relation's cache
// entry.
func (r *Record) Set(name string, value interface{}) error {
	if f, ok := r.model.fieldsByName[name]; ok {
		coerced, err := f.Coerce(value)
		if err != nil {
			return err
		}
		value = coerced
	}
	r.data[name] = value

	for _, relName := range r.model.relationOrder {
		rel := r.model.Relations[relName]
		if rel.KeyFrom == name {
			r.UncacheRelation(relName)
			continue
		}
		if p := rel.Polymorphic; p != nil && (p.ForeignKey == name || p.Discriminator == name) {
			r.UncacheRelation(relName)
		}
	}
	return nil
}

// SetAll writes every entry of data through Set.
func (r *Record) SetAll(data map[string]interface{}) error {
	for k, v := range data {
		if err := r.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Data returns a copy of the field map.
func (r *Record) Data() map[string]interface{} {
	clone := make(map[string]interface{}, len(r.data))
	for k, v := range r.data {
		clone[k] = v
	}
	return clone
}

// ID returns the primary key value.
func (r *Record) ID() interface{} {
	return r.data[r.model.idName]
}

// SetID writes the primary key value.
func (r *Record) SetID(id interface{}) {
	r.data[r.model.idName] = id
}

// IsNewRecord reports whether the record has not been persisted yet.
func (r *Record) IsNewRecord() bool { return r.isNew }

// CachedRelation returns the last-resolved value of a relation; the
// second result is false while unresolved.
func (r *Record) CachedRelation(name string) (interface{}, bool) {
	v, ok := r.cache[name]
	return v, ok
}

// CacheRelation stores a resolved relation value.
func (r *Record) CacheRelation(name string, value interface{}) {
	r.cache[name] = value
}

// UncacheRelation drops a relation's cache entry.
func (r *Record) UncacheRelation(name string) {
	delete(r.cache, name)
}

// SetEmbedded marks the record as embedded in owner's field. Set once
// at embed time; Save and Destroy consult it.
func (r *Record) SetEmbedded(owner *Record, field string, list bool) {
	r.embedded = &Embedding{Owner: owner, Field: field, List: list}
	r.isNew = false
}

// EmbeddedIn returns the embedding link, or nil.
func (r *Record) EmbeddedIn() *Embedding { return r.embedded }

// Validate runs the model's validators and returns a ValidationError
// when any fails.
func (r *Record) Validate() error {
	verr := NewValidationError(r.model.name)
	for _, fn := range r.model.validators {
		fn(r, verr)
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// Save persists the record. Embedded records are written back into
// their owner's field and the owner is saved instead.
func (r *Record) Save(ctx context.Context) error {
	if err := r.Validate(); err != nil {
		return err
	}

	if r.embedded != nil {
		if err := r.model.NotifyObserversOf(ctx, EventBeforeSave, r); err != nil {
			return err
		}
		if err := r.propagateEmbedded(ctx); err != nil {
			return err
		}
		return r.model.NotifyObserversOf(ctx, EventAfterSave, r)
	}

	if err := r.model.NotifyObserversOf(ctx, EventBeforeSave, r); err != nil {
		return err
	}

	if r.isNew {
		id, err := r.model.ds.Create(ctx, r.model.name, r.Data(), r.model.idName)
		if err != nil {
			return err
		}
		r.SetID(id)
		r.isNew = false
	} else {
		if err := r.model.ds.Save(ctx, r.model.name, r.ID(), r.Data()); err != nil {
			return err
		}
	}

	return r.model.NotifyObserversOf(ctx, EventAfterSave, r)
}

// propagateEmbedded rewrites the owner's field with this record's data
// and saves the owner.
func (r *Record) propagateEmbedded(ctx context.Context) error {
	owner, field := r.embedded.Owner, r.embedded.Field

	if !r.embedded.List {
		if err := owner.Set(field, r.Data()); err != nil {
			return err
		}
		return owner.Save(ctx)
	}

	list, _ := owner.Get(field).([]interface{})
	replaced := false
	for i, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if utils.IDEqual(entry[r.model.idName], r.ID()) {
			list[i] = r.Data()
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, r.Data())
	}
	if err := owner.Set(field, list); err != nil {
		return err
	}
	return owner.Save(ctx)
}

// UpdateAttributes merges data into the record and saves it.
func (r *Record) UpdateAttributes(ctx context.Context, data map[string]interface{}) error {
	if err := r.SetAll(data); err != nil {
		return err
	}
	return r.Save(ctx)
}

// Destroy removes the record. Embedded records are spliced out of the
// owner's field and the owner is saved.
func (r *Record) Destroy(ctx context.Context) error {
	if err := r.model.NotifyObserversOf(ctx, EventBeforeDelete, r); err != nil {
		return err
	}

	if r.embedded != nil {
		if err := r.removeEmbedded(ctx); err != nil {
			return err
		}
		return r.model.NotifyObserversOf(ctx, EventAfterDelete, r)
	}

	existed, err := r.model.ds.DestroyByID(ctx, r.model.name, r.ID())
	if err != nil {
		return err
	}
	if !existed {
		return &NotFoundError{Model: r.model.name, ID: r.ID()}
	}
	return r.model.NotifyObserversOf(ctx, EventAfterDelete, r)
}

func (r *Record) removeEmbedded(ctx context.Context) error {
	owner, field := r.embedded.Owner, r.embedded.Field

	if !r.embedded.List {
		if err := owner.Set(field, nil); err != nil {
			return err
		}
		return owner.Save(ctx)
	}

	list, _ := owner.Get(field).([]interface{})
	kept := make([]interface{}, 0, len(list))
	for _, item := range list {
		if entry, ok := item.(map[string]interface{}); ok && utils.IDEqual(entry[r.model.idName], r.ID()) {
			continue
		}
		kept = append(kept, item)
	}
	if err := owner.Set(field, kept); err != nil {
		return err
	}
	return owner.Save(ctx)
}
