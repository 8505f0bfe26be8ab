package model

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/modelbind/relate/query"
)

// RelationKind is the closed set of association kinds.
type RelationKind string

const (
	BelongsTo           RelationKind = "belongsTo"
	HasOne              RelationKind = "hasOne"
	HasMany             RelationKind = "hasMany"
	HasManyThrough      RelationKind = "hasManyThrough"
	HasAndBelongsToMany RelationKind = "hasAndBelongsToMany"
	EmbedsOne           RelationKind = "embedsOne"
	EmbedsMany          RelationKind = "embedsMany"
	ReferencesMany      RelationKind = "referencesMany"
)

// Multiple reports whether the kind resolves to an ordered list.
func (k RelationKind) Multiple() bool {
	switch k {
	case HasMany, HasManyThrough, HasAndBelongsToMany, EmbedsMany, ReferencesMany:
		return true
	}
	return false
}

// PropertiesFunc computes the data copied from source onto target.
type PropertiesFunc func(src, dst *Record) map[string]interface{}

// ScopeFunc computes a relation's filter fragment per call.
type ScopeFunc func(rec *Record, base *query.Filter) *query.Filter

// RelationMethod is a caller-supplied operation bound to one relation
// instance at dispatch time.
type RelationMethod func(ctx context.Context, rec *Record, args ...interface{}) (interface{}, error)

// PropertiesRule configures property copying between the two sides of a
// relation. Exactly one of the three shapes is set: Fn computes the
// data, List copies like-named fields, Map copies dst[value] = src[key].
type PropertiesRule struct {
	Fn   PropertiesFunc
	List []string
	Map  map[string]string
}

// ScopeRule is a relation's static or computed filter fragment.
type ScopeRule struct {
	Where query.Where
	Fn    ScopeFunc
}

// PolymorphicConfig describes dynamic target resolution through a
// discriminator field stored next to the foreign key.
type PolymorphicConfig struct {
	As            string // selector name, e.g. "commentable"
	ForeignKey    string // id field, e.g. "commentableId"
	Discriminator string // type field, e.g. "commentableType"
	Invert        bool   // discriminator lives on the other side
}

// RelationOptions is the descriptor's option bag.
type RelationOptions struct {
	Persistent       bool
	ForceID          bool
	Prepend          bool
	InvertProperties bool
	EmbedProperties  bool
	DisableInclude   bool
	BelongsToRef     bool
}

// Relation is the immutable configuration of one named association on a
// source model. Only the method table may receive additions after
// construction.
//
// Key semantics by kind:
//
//	belongsTo:      KeyFrom = fk on source, KeyTo = pk on target
//	hasOne/hasMany: KeyFrom = pk on source, KeyTo = fk on target
//	through:        KeyFrom = pk on source, KeyTo = fk on through to
//	                source, KeyThrough = fk on through to target
//	embeds*:        KeyFrom = owning field on source, KeyTo = embedded id
//	referencesMany: KeyFrom = id list field on source, KeyTo = pk on target
type Relation struct {
	Name         string
	Kind         RelationKind
	ModelFrom    *Model
	ModelTo      *Model // nil only while polymorphic and unresolved
	KeyFrom      string
	KeyTo        string
	ModelThrough *Model
	KeyThrough   string
	Multiple     bool
	Properties   *PropertiesRule
	Scope        *ScopeRule
	Options      RelationOptions
	Polymorphic  *PolymorphicConfig

	mu      sync.Mutex
	methods map[string]RelationMethod
}

// DefineMethod installs a caller-supplied operation on the relation.
func (r *Relation) DefineMethod(name string, fn RelationMethod) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.methods == nil {
		r.methods = map[string]RelationMethod{}
	}
	r.methods[name] = fn
}

// Method returns a caller-supplied operation by name.
func (r *Relation) Method(name string) (RelationMethod, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn, ok := r.methods[name]
	return fn, ok
}

// MethodNames returns the installed method names, sorted.
func (r *Relation) MethodNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ThroughKeys resolves the two foreign keys on the through model,
// source side first. For self-referential associations the candidates
// are disambiguated by matching KeyTo against the first one; this
// ordering is load-bearing for existing data sets, keep it as is.
func (r *Relation) ThroughKeys() (string, string, error) {
	if r.ModelThrough == nil {
		return "", "", fmt.Errorf("relation %s on %s has no through model", r.Name, r.ModelFrom.Name())
	}

	if r.Polymorphic != nil {
		fk1 := r.KeyTo
		fk2 := r.KeyThrough
		if r.Polymorphic.Invert {
			fk2 = r.Polymorphic.ForeignKey
		}
		return fk1, fk2, nil
	}

	if r.ModelFrom == r.ModelTo {
		keys := r.ModelThrough.belongsToKeys(r.ModelTo)
		if len(keys) < 2 {
			return "", "", fmt.Errorf("through model %s needs two belongsTo relations to %s, found %d",
				r.ModelThrough.Name(), r.ModelTo.Name(), len(keys))
		}
		if r.KeyTo == keys[0] {
			return keys[0], keys[1], nil
		}
		return keys[1], keys[0], nil
	}

	fk1 := r.KeyTo
	if keys := r.ModelThrough.belongsToKeys(r.ModelFrom); len(keys) > 0 {
		fk1 = keys[0]
	}
	fk2 := r.KeyThrough
	if keys := r.ModelThrough.belongsToKeys(r.ModelTo); len(keys) > 0 {
		fk2 = keys[0]
	}
	if fk1 == "" || fk2 == "" {
		return "", "", fmt.Errorf("cannot resolve join keys on %s for relation %s", r.ModelThrough.Name(), r.Name)
	}
	return fk1, fk2, nil
}
