package relate

import (
	"context"

	"github.com/pkg/errors"

	"github.com/modelbind/relate/model"
)

// DefineEmbedsOne declares that one to document lives inside a field of
// from. The embedded record has no row of its own; every write is
// re-expressed as a save of the owner.
func DefineEmbedsOne(from *model.Model, to *model.Model, opts Options) (*model.Relation, error) {
	if from == nil {
		return nil, errors.New("embedsOne needs a source model")
	}

	name, err := relationName(from, to, opts, false)
	if err != nil {
		return nil, errors.Wrap(err, "define embedsOne relation")
	}
	if to == nil {
		to, err = lookupModelTo(from, nil, name, opts, false)
		if err != nil {
			return nil, errors.Wrap(err, "define embedsOne relation")
		}
	}

	naming := from.Naming()
	property := opts.Property
	if property == "" {
		property = naming.LowerFirst(to.Name())
	}
	// the accessor and the stored field cannot share a name
	if property == name {
		property = "_" + property
	}
	from.DefineProperty(property, model.FieldObject)

	def := &model.Relation{
		Name:       name,
		Kind:       model.EmbedsOne,
		ModelFrom:  from,
		ModelTo:    to,
		KeyFrom:    property,
		KeyTo:      to.IDName(),
		Multiple:   false,
		Properties: opts.propertiesRule(),
		Scope:      opts.scopeRule(),
		Options:    opts.Flags,
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
			return (&EmbedsOne{base(def, rec)}).Get(ctx, refresh)
		},
		"create": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			data, _ := firstMap(args)
			return (&EmbedsOne{base(def, rec)}).Create(ctx, data)
		},
		"update": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			data, _ := firstMap(args)
			return (&EmbedsOne{base(def, rec)}).Update(ctx, data)
		},
		"destroy": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			return nil, (&EmbedsOne{base(def, rec)}).Destroy(ctx)
		},
	})

	return def, nil
}

// EmbedsOne is the runtime object of an embedsOne relation.
type EmbedsOne struct {
	relationBase
}

// embedded materializes the owning field as a linked record, or nil.
func (r *EmbedsOne) embedded() *model.Record {
	raw, ok := r.rec.Get(r.def.KeyFrom).(map[string]interface{})
	if !ok || raw == nil {
		return nil
	}
	target := r.def.ModelTo.New(raw)
	target.SetEmbedded(r.rec, r.def.KeyFrom, false)
	return target
}

// Get returns the embedded record, serving the cache unless refresh is
// set. An empty field yields nil without error.
func (r *EmbedsOne) Get(ctx context.Context, refresh bool) (*model.Record, error) {
	if !refresh {
		if cached, ok := r.rec.CachedRelation(r.def.Name); ok {
			target, _ := cached.(*model.Record)
			return target, nil
		}
	}
	target := r.embedded()
	r.rec.CacheRelation(r.def.Name, target)
	return target, nil
}

// Build constructs an unsaved embedded record linked to the owner.
func (r *EmbedsOne) Build(data map[string]interface{}) (*model.Record, error) {
	target := r.def.ModelTo.New(data)
	if err := r.applyProperties(target); err != nil {
		return nil, err
	}
	target.SetEmbedded(r.rec, r.def.KeyFrom, false)
	return target, nil
}

// Create embeds a new record, writing the owner through the embedded
// save path. An already occupied field is a cardinality violation.
func (r *EmbedsOne) Create(ctx context.Context, data map[string]interface{}) (*model.Record, error) {
	if r.embedded() != nil {
		return nil, &CardinalityError{Relation: r.def.Name, Model: r.def.ModelFrom.Name()}
	}
	target, err := r.Build(data)
	if err != nil {
		return nil, err
	}
	if r.def.Options.ForceID && target.ID() == nil {
		id, err := r.def.ModelFrom.DataSource().GenerateID(r.def.ModelTo.Name(), target.Data(), r.def.KeyTo)
		if err != nil {
			return nil, err
		}
		target.SetID(id)
	}
	if err := target.Save(ctx); err != nil {
		return nil, err
	}
	r.rec.CacheRelation(r.def.Name, target)
	return target, nil
}

// Update merges data into the embedded record and saves the owner.
func (r *EmbedsOne) Update(ctx context.Context, data map[string]interface{}) (*model.Record, error) {
	target, err := r.Get(ctx, false)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, &model.NotFoundError{Model: r.def.ModelTo.Name()}
	}
	if err := target.UpdateAttributes(ctx, data); err != nil {
		return nil, err
	}
	r.rec.CacheRelation(r.def.Name, target)
	return target, nil
}

// Destroy clears the embedded record, running the embedded model's
// delete hooks. Destroying an empty field is a no-op.
func (r *EmbedsOne) Destroy(ctx context.Context) error {
	target, err := r.Get(ctx, false)
	if err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	if err := target.Destroy(ctx); err != nil {
		return err
	}
	r.rec.CacheRelation(r.def.Name, (*model.Record)(nil))
	return nil
}
