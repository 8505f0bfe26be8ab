package relate

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/modelbind/relate/model"
	"github.com/modelbind/relate/query"
	"github.com/modelbind/relate/utils"
)

// DefineHasOne declares that at most one to record carries a foreign
// key referencing from's primary key.
func DefineHasOne(from *model.Model, to *model.Model, opts Options) (*model.Relation, error) {
	if from == nil {
		return nil, errors.New("hasOne needs a source model")
	}

	name, err := relationName(from, to, opts, false)
	if err != nil {
		return nil, errors.Wrap(err, "define hasOne relation")
	}
	if to == nil {
		to, err = lookupModelTo(from, nil, name, opts, false)
		if err != nil {
			return nil, errors.Wrap(err, "define hasOne relation")
		}
	}

	naming := from.Naming()
	polymorphic, err := normalizePolymorphic(naming, opts.Polymorphic, name)
	if err != nil {
		return nil, errors.Wrapf(err, "define hasOne relation %s on %s", name, from.Name())
	}

	keyFrom := opts.PrimaryKey
	if keyFrom == "" {
		keyFrom = from.IDName()
	}
	keyTo := opts.ForeignKey
	if polymorphic != nil {
		if keyTo == "" {
			keyTo = polymorphic.ForeignKey
		}
		to.DefineProperty(polymorphic.Discriminator, model.FieldString)
	} else if keyTo == "" {
		keyTo = naming.ForeignKeyName(from.Name())
	}
	to.DefineForeignKey(keyTo, from)

	def := &model.Relation{
		Name:        name,
		Kind:        model.HasOne,
		ModelFrom:   from,
		ModelTo:     to,
		KeyFrom:     keyFrom,
		KeyTo:       keyTo,
		Multiple:    false,
		Properties:  opts.propertiesRule(),
		Scope:       opts.scopeRule(),
		Options:     opts.Flags,
		Polymorphic: polymorphic,
	}
	for mname, fn := range opts.Methods {
		def.DefineMethod(mname, fn)
	}
	if err := register(def); err != nil {
		return nil, err
	}

	installRemoteMethods(def, map[string]model.RemoteMethod{
		"get": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			refresh := false
			if len(args) > 0 {
				refresh, _ = args[0].(bool)
			}
			return (&HasOne{base(def, rec)}).Get(ctx, refresh)
		},
		"create": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			data, _ := firstMap(args)
			return (&HasOne{base(def, rec)}).Create(ctx, data)
		},
		"update": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			data, _ := firstMap(args)
			return (&HasOne{base(def, rec)}).Update(ctx, data)
		},
		"destroy": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			return nil, (&HasOne{base(def, rec)}).Destroy(ctx)
		},
	})

	return def, nil
}

// HasOne is the runtime object of a has-one relation bound to one
// record. The target side holds the foreign key.
type HasOne struct {
	relationBase
}

func (r *HasOne) joinWhere() query.Where {
	return query.Where{r.def.KeyTo: r.rec.Get(r.def.KeyFrom)}
}

// Get resolves the owned record, nil when none exists. The resolved
// record's foreign key is verified against the bound record's key.
func (r *HasOne) Get(ctx context.Context, refresh bool) (*model.Record, error) {
	if !refresh {
		if v, ok := r.rec.CachedRelation(r.def.Name); ok {
			cached, _ := v.(*model.Record)
			return cached, nil
		}
	}

	found, err := r.def.ModelTo.FindOne(ctx, r.scopedFilter(r.joinWhere(), nil))
	if err != nil {
		return nil, err
	}
	if found == nil {
		r.rec.CacheRelation(r.def.Name, (*model.Record)(nil))
		return nil, nil
	}

	expected := r.rec.Get(r.def.KeyFrom)
	if !utils.IDEqual(found.Get(r.def.KeyTo), expected) {
		return nil, &KeyMismatchError{Relation: r.def.Name, Field: r.def.KeyTo, Expected: expected, Actual: found.Get(r.def.KeyTo)}
	}

	r.rec.CacheRelation(r.def.Name, found)
	return found, nil
}

// Set points target at the bound record: writes the foreign key and
// discriminator on target, copies configured properties and replaces
// the cache. Persisting target stays with the caller.
func (r *HasOne) Set(target *model.Record) error {
	if target == nil {
		r.rec.CacheRelation(r.def.Name, (*model.Record)(nil))
		return nil
	}
	if err := target.Set(r.def.KeyTo, r.rec.Get(r.def.KeyFrom)); err != nil {
		return err
	}
	if err := r.applyProperties(target); err != nil {
		return err
	}
	r.rec.CacheRelation(r.def.Name, target)
	return nil
}

// Build constructs an unsaved target wired to the bound record.
func (r *HasOne) Build(data map[string]interface{}) (*model.Record, error) {
	target := r.def.ModelTo.New(data)
	if err := r.Set(target); err != nil {
		return nil, err
	}
	return target, nil
}

// Create persists the owned record with find-or-create semantics
// against the join filter. An already existing target is a cardinality
// violation, surfaced as an error instead of being overwritten.
func (r *HasOne) Create(ctx context.Context, data map[string]interface{}) (*model.Record, error) {
	seed := r.def.ModelTo.New(data)
	if err := seed.Set(r.def.KeyTo, r.rec.Get(r.def.KeyFrom)); err != nil {
		return nil, err
	}
	if err := r.applyProperties(seed); err != nil {
		return nil, err
	}

	target, created, err := r.def.ModelTo.FindOrCreate(ctx, r.scopedFilter(r.joinWhere(), nil), seed.Data())
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, &CardinalityError{Relation: r.def.Name, Model: r.def.ModelTo.Name()}
	}

	r.rec.CacheRelation(r.def.Name, target)
	return target, nil
}

// Update merges data into the owned record, rejecting foreign key
// changes.
func (r *HasOne) Update(ctx context.Context, data map[string]interface{}) (*model.Record, error) {
	target, err := r.Get(ctx, false)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, &model.NotFoundError{Model: r.def.ModelTo.Name()}
	}
	if v, ok := data[r.def.KeyTo]; ok && !utils.IDEqual(v, r.rec.Get(r.def.KeyFrom)) {
		return nil, fmt.Errorf("relation %s on %s: %w", r.def.Name, r.def.ModelFrom.Name(), ErrForeignKeyOverride)
	}
	if err := target.UpdateAttributes(ctx, data); err != nil {
		return nil, err
	}
	r.rec.CacheRelation(r.def.Name, target)
	return target, nil
}

// Destroy removes the owned record.
func (r *HasOne) Destroy(ctx context.Context) error {
	target, err := r.Get(ctx, false)
	if err != nil {
		return err
	}
	if target == nil {
		return &model.NotFoundError{Model: r.def.ModelTo.Name()}
	}
	if err := target.Destroy(ctx); err != nil {
		return err
	}
	r.rec.CacheRelation(r.def.Name, (*model.Record)(nil))
	return nil
}
