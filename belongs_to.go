package relate

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/modelbind/relate/model"
	"github.com/modelbind/relate/query"
	"github.com/modelbind/relate/utils"
)

// DefineBelongsTo declares that each from record holds an optional
// foreign key pointing at to's primary key. Pass to as nil for a
// polymorphic relation; the target is then resolved per record from the
// discriminator field.
func DefineBelongsTo(from *model.Model, to *model.Model, opts Options) (*model.Relation, error) {
	if from == nil {
		return nil, errors.New("belongsTo needs a source model")
	}

	name, err := relationName(from, to, opts, false)
	if err != nil {
		return nil, errors.Wrap(err, "define belongsTo relation")
	}

	naming := from.Naming()
	polymorphic, err := normalizePolymorphic(naming, opts.Polymorphic, name)
	if err != nil {
		return nil, errors.Wrapf(err, "define belongsTo relation %s on %s", name, from.Name())
	}

	if to == nil && polymorphic == nil {
		to, err = lookupModelTo(from, nil, name, opts, false)
		if err != nil {
			return nil, errors.Wrap(err, "define belongsTo relation")
		}
	}

	keyFrom := opts.ForeignKey
	keyTo := opts.PrimaryKey
	if polymorphic != nil {
		if keyFrom == "" {
			keyFrom = polymorphic.ForeignKey
		}
		from.DefineProperty(polymorphic.Discriminator, model.FieldString)
	} else {
		if keyFrom == "" {
			keyFrom = naming.ForeignKeyName(name)
		}
		if keyTo == "" {
			keyTo = to.IDName()
		}
	}
	from.DefineForeignKey(keyFrom, to)

	def := &model.Relation{
		Name:        name,
		Kind:        model.BelongsTo,
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
			return (&BelongsTo{base(def, rec)}).Get(ctx, refresh)
		},
		"create": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			data, _ := firstMap(args)
			return (&BelongsTo{base(def, rec)}).Create(ctx, data)
		},
		"update": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			data, _ := firstMap(args)
			return (&BelongsTo{base(def, rec)}).Update(ctx, data)
		},
		"destroy": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			return nil, (&BelongsTo{base(def, rec)}).Destroy(ctx)
		},
	})

	return def, nil
}

// BelongsTo is the runtime object of a belongs-to relation bound to one
// record.
type BelongsTo struct {
	relationBase
}

func (r *BelongsTo) targetKey(target *model.Model) string {
	if r.def.KeyTo != "" {
		return r.def.KeyTo
	}
	return target.IDName()
}

// Get resolves the referenced record. Without refresh a cached value is
// returned as is; with refresh the target is always re-queried. The
// resolved record's key is verified against the stored foreign key and
// a mismatch surfaces as a KeyMismatchError.
func (r *BelongsTo) Get(ctx context.Context, refresh bool) (*model.Record, error) {
	if !refresh {
		if v, ok := r.rec.CachedRelation(r.def.Name); ok {
			cached, _ := v.(*model.Record)
			return cached, nil
		}
	}

	fk := r.rec.Get(r.def.KeyFrom)
	if fk == nil {
		r.rec.CacheRelation(r.def.Name, (*model.Record)(nil))
		return nil, nil
	}

	target, err := r.targetModel()
	if err != nil {
		return nil, err
	}
	keyTo := r.targetKey(target)

	found, err := target.FindOne(ctx, r.scopedFilter(query.Where{keyTo: fk}, nil))
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, &model.NotFoundError{Model: target.Name(), ID: fk}
	}
	if !utils.IDEqual(found.Get(keyTo), fk) {
		return nil, &KeyMismatchError{Relation: r.def.Name, Field: keyTo, Expected: fk, Actual: found.Get(keyTo)}
	}

	r.rec.CacheRelation(r.def.Name, found)
	return found, nil
}

// Set writes the foreign key (and discriminator), copies configured
// properties and replaces the cache. A nil target clears the reference.
func (r *BelongsTo) Set(target *model.Record) error {
	if target == nil {
		if err := r.rec.Set(r.def.KeyFrom, nil); err != nil {
			return err
		}
		if p := r.def.Polymorphic; p != nil {
			if err := r.rec.Set(p.Discriminator, nil); err != nil {
				return err
			}
		}
		r.rec.CacheRelation(r.def.Name, (*model.Record)(nil))
		return nil
	}

	keyTo := r.targetKey(target.Model())
	if err := r.rec.Set(r.def.KeyFrom, target.Get(keyTo)); err != nil {
		return err
	}
	if p := r.def.Polymorphic; p != nil {
		if err := r.rec.Set(p.Discriminator, target.Model().Name()); err != nil {
			return err
		}
	}
	if err := r.applyProperties(target); err != nil {
		return err
	}
	r.rec.CacheRelation(r.def.Name, target)
	return nil
}

// Build constructs an unsaved target record.
func (r *BelongsTo) Build(data map[string]interface{}) (*model.Record, error) {
	target, err := r.targetModel()
	if err != nil {
		return nil, err
	}
	return target.New(data), nil
}

// Create persists a new target, points the bound record at it and saves
// the bound record when it is already persisted.
func (r *BelongsTo) Create(ctx context.Context, data map[string]interface{}) (*model.Record, error) {
	target, err := r.targetModel()
	if err != nil {
		return nil, err
	}
	created, err := target.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := r.Set(created); err != nil {
		return nil, err
	}
	if !r.rec.IsNewRecord() {
		if err := r.rec.Save(ctx); err != nil {
			return nil, err
		}
	}
	return created, nil
}

// Update merges data into the currently referenced record. A payload
// that tries to move the reference is rejected before the update.
func (r *BelongsTo) Update(ctx context.Context, data map[string]interface{}) (*model.Record, error) {
	target, err := r.Get(ctx, false)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, &model.NotFoundError{Model: r.def.ModelFrom.Name(), ID: r.rec.Get(r.def.KeyFrom)}
	}

	keyTo := r.targetKey(target.Model())
	if v, ok := data[keyTo]; ok && !utils.IDEqual(v, target.Get(keyTo)) {
		return nil, fmt.Errorf("relation %s on %s: %w", r.def.Name, r.def.ModelFrom.Name(), ErrForeignKeyOverride)
	}
	if err := target.UpdateAttributes(ctx, data); err != nil {
		return nil, err
	}
	r.rec.CacheRelation(r.def.Name, target)
	return target, nil
}

// Destroy removes the currently referenced record and clears the
// foreign key.
func (r *BelongsTo) Destroy(ctx context.Context) error {
	target, err := r.Get(ctx, false)
	if err != nil {
		return err
	}
	if target == nil {
		return &model.NotFoundError{Model: r.def.ModelFrom.Name(), ID: r.rec.Get(r.def.KeyFrom)}
	}
	if err := target.Destroy(ctx); err != nil {
		return err
	}
	if err := r.Set(nil); err != nil {
		return err
	}
	if !r.rec.IsNewRecord() {
		return r.rec.Save(ctx)
	}
	return nil
}

func firstMap(args []interface{}) (map[string]interface{}, bool) {
	if len(args) == 0 {
		return map[string]interface{}{}, false
	}
	m, ok := args[0].(map[string]interface{})
	if !ok {
		return map[string]interface{}{}, false
	}
	return m, true
}

func indexArg(args []interface{}) (int, bool) {
	if len(args) == 0 {
		return 0, false
	}
	switch v := args[0].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
