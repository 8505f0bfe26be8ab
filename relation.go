package relate

import (
	"context"
	"fmt"

	"github.com/modelbind/relate/model"
	"github.com/modelbind/relate/utils"
)

// Relation is the runtime view of one association bound to one record
// instance. Concrete kinds expose their own operation sets; this is the
// shared surface.
type Relation interface {
	Definition() *model.Relation
	Instance() *model.Record

	// Invoke dispatches a caller-supplied method installed on the
	// descriptor.
	Invoke(ctx context.Context, name string, args ...interface{}) (interface{}, error)
}

// constructors is the kind-indexed dispatch table. HasManyThrough and
// HasAndBelongsToMany share the HasMany runtime, which branches on the
// presence of a through model.
var constructors = map[model.RelationKind]func(*model.Relation, *model.Record) Relation{
	model.BelongsTo:           func(def *model.Relation, rec *model.Record) Relation { return &BelongsTo{base(def, rec)} },
	model.HasOne:              func(def *model.Relation, rec *model.Record) Relation { return &HasOne{base(def, rec)} },
	model.HasMany:             func(def *model.Relation, rec *model.Record) Relation { return &HasMany{base(def, rec)} },
	model.HasManyThrough:      func(def *model.Relation, rec *model.Record) Relation { return &HasMany{base(def, rec)} },
	model.HasAndBelongsToMany: func(def *model.Relation, rec *model.Record) Relation { return &HasMany{base(def, rec)} },
	model.EmbedsOne:           func(def *model.Relation, rec *model.Record) Relation { return &EmbedsOne{base(def, rec)} },
	model.EmbedsMany:          func(def *model.Relation, rec *model.Record) Relation { return &EmbedsMany{base(def, rec)} },
	model.ReferencesMany:      func(def *model.Relation, rec *model.Record) Relation { return &ReferencesMany{base(def, rec)} },
}

// Of constructs the runtime relation object for a named association on
// rec. The object is cheap and short-lived; construct one per call.
func Of(rec *model.Record, name string) (Relation, error) {
	def, ok := rec.Model().Relation(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownRelation, name, rec.Model().Name())
	}
	ctor, ok := constructors[def.Kind]
	if !ok {
		return nil, fmt.Errorf("relation %s on %s has unsupported kind %s", name, rec.Model().Name(), def.Kind)
	}
	return ctor(def, rec), nil
}

// BelongsToOf returns the BelongsTo runtime for a named relation.
func BelongsToOf(rec *model.Record, name string) (*BelongsTo, error) {
	rel, err := Of(rec, name)
	if err != nil {
		return nil, err
	}
	r, ok := rel.(*BelongsTo)
	if !ok {
		return nil, fmt.Errorf("relation %s on %s is %s, not belongsTo", name, rec.Model().Name(), rel.Definition().Kind)
	}
	return r, nil
}

// HasOneOf returns the HasOne runtime for a named relation.
func HasOneOf(rec *model.Record, name string) (*HasOne, error) {
	rel, err := Of(rec, name)
	if err != nil {
		return nil, err
	}
	r, ok := rel.(*HasOne)
	if !ok {
		return nil, fmt.Errorf("relation %s on %s is %s, not hasOne", name, rec.Model().Name(), rel.Definition().Kind)
	}
	return r, nil
}

// HasManyOf returns the HasMany runtime for a named relation, covering
// the plain, through and hasAndBelongsToMany kinds.
func HasManyOf(rec *model.Record, name string) (*HasMany, error) {
	rel, err := Of(rec, name)
	if err != nil {
		return nil, err
	}
	r, ok := rel.(*HasMany)
	if !ok {
		return nil, fmt.Errorf("relation %s on %s is %s, not hasMany", name, rec.Model().Name(), rel.Definition().Kind)
	}
	return r, nil
}

// EmbedsOneOf returns the EmbedsOne runtime for a named relation.
func EmbedsOneOf(rec *model.Record, name string) (*EmbedsOne, error) {
	rel, err := Of(rec, name)
	if err != nil {
		return nil, err
	}
	r, ok := rel.(*EmbedsOne)
	if !ok {
		return nil, fmt.Errorf("relation %s on %s is %s, not embedsOne", name, rec.Model().Name(), rel.Definition().Kind)
	}
	return r, nil
}

// EmbedsManyOf returns the EmbedsMany runtime for a named relation.
func EmbedsManyOf(rec *model.Record, name string) (*EmbedsMany, error) {
	rel, err := Of(rec, name)
	if err != nil {
		return nil, err
	}
	r, ok := rel.(*EmbedsMany)
	if !ok {
		return nil, fmt.Errorf("relation %s on %s is %s, not embedsMany", name, rec.Model().Name(), rel.Definition().Kind)
	}
	return r, nil
}

// ReferencesManyOf returns the ReferencesMany runtime for a named
// relation.
func ReferencesManyOf(rec *model.Record, name string) (*ReferencesMany, error) {
	rel, err := Of(rec, name)
	if err != nil {
		return nil, err
	}
	r, ok := rel.(*ReferencesMany)
	if !ok {
		return nil, fmt.Errorf("relation %s on %s is %s, not referencesMany", name, rec.Model().Name(), rel.Definition().Kind)
	}
	return r, nil
}

// relationBase binds one descriptor to one live record. It owns
// neither: descriptors are shared across instances and the record's
// lifetime belongs to the caller.
type relationBase struct {
	def *model.Relation
	rec *model.Record
}

func base(def *model.Relation, rec *model.Record) relationBase {
	return relationBase{def: def, rec: rec}
}

func (b *relationBase) Definition() *model.Relation { return b.def }
func (b *relationBase) Instance() *model.Record     { return b.rec }

// Invoke dispatches a caller-supplied method from the descriptor.
func (b *relationBase) Invoke(ctx context.Context, name string, args ...interface{}) (interface{}, error) {
	fn, ok := b.def.Method(name)
	if !ok {
		return nil, fmt.Errorf("relation %s on %s has no method %s", b.def.Name, b.def.ModelFrom.Name(), name)
	}
	return fn(ctx, b.rec, args...)
}

// targetModel resolves the target, consulting the discriminator field
// for polymorphic belongs-to descriptors.
func (b *relationBase) targetModel() (*model.Model, error) {
	p := b.def.Polymorphic
	if p == nil || p.Invert || b.def.Kind != model.BelongsTo {
		if b.def.ModelTo == nil {
			return nil, fmt.Errorf("relation %s on %s has no resolved target model", b.def.Name, b.def.ModelFrom.Name())
		}
		return b.def.ModelTo, nil
	}

	disc := utils.ToString(b.rec.Get(p.Discriminator))
	if disc == "" {
		return nil, fmt.Errorf("relation %s on %s: discriminator %s is not set", b.def.Name, b.def.ModelFrom.Name(), p.Discriminator)
	}
	m, ok := b.def.ModelFrom.Registry().Lookup(disc)
	if !ok {
		return nil, fmt.Errorf("relation %s on %s: discriminator %s names unknown model %q", b.def.Name, b.def.ModelFrom.Name(), p.Discriminator, disc)
	}
	return m, nil
}

// cachedList reads the relation cache as an ordered list.
func (b *relationBase) cachedList() ([]*model.Record, bool) {
	v, ok := b.rec.CachedRelation(b.def.Name)
	if !ok {
		return nil, false
	}
	list, ok := v.([]*model.Record)
	return list, ok
}

// addToCache inserts target into the cached list, replacing a cached
// record with the same id instead of appending a duplicate. A relation
// that was never resolved stays unresolved.
func (b *relationBase) addToCache(target *model.Record) {
	list, ok := b.cachedList()
	if !ok {
		return
	}
	for i, item := range list {
		if utils.IDEqual(item.ID(), target.ID()) {
			list[i] = target
			b.rec.CacheRelation(b.def.Name, list)
			return
		}
	}
	b.rec.CacheRelation(b.def.Name, append(list, target))
}

// removeFromCache drops the cached record with the given id.
func (b *relationBase) removeFromCache(id interface{}) {
	list, ok := b.cachedList()
	if !ok {
		return
	}
	kept := make([]*model.Record, 0, len(list))
	for _, item := range list {
		if !utils.IDEqual(item.ID(), id) {
			kept = append(kept, item)
		}
	}
	b.rec.CacheRelation(b.def.Name, kept)
}
