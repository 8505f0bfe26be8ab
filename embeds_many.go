package relate

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/modelbind/relate/model"
	"github.com/modelbind/relate/query"
	"github.com/modelbind/relate/utils"
)

// DefineEmbedsMany declares that a list of to documents lives inside an
// array field of from. Item ids are unique within the list; the owner
// gains a validator enforcing that plus the embedded model's own
// validators per item.
func DefineEmbedsMany(from *model.Model, to *model.Model, opts Options) (*model.Relation, error) {
	if from == nil {
		return nil, errors.New("embedsMany needs a source model")
	}

	name, err := relationName(from, to, opts, true)
	if err != nil {
		return nil, errors.Wrap(err, "define embedsMany relation")
	}
	if to == nil {
		to, err = lookupModelTo(from, nil, name, opts, true)
		if err != nil {
			return nil, errors.Wrap(err, "define embedsMany relation")
		}
	}

	naming := from.Naming()
	property := opts.Property
	if property == "" {
		property = naming.LowerFirst(naming.Pluralize(to.Name()))
	}
	if property == name {
		property = "_" + property
	}
	from.DefineProperty(property, model.FieldArray)

	def := &model.Relation{
		Name:       name,
		Kind:       model.EmbedsMany,
		ModelFrom:  from,
		ModelTo:    to,
		KeyFrom:    property,
		KeyTo:      to.IDName(),
		Multiple:   true,
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

	installEmbedsManyValidators(def)
	installEmbedsManyRemotes(def)

	return def, nil
}

// installEmbedsManyValidators guards the owning field: item ids must be
// unique and every item must satisfy the embedded model's validators.
func installEmbedsManyValidators(def *model.Relation) {
	def.ModelFrom.AddValidator(func(rec *model.Record, verr *model.ValidationError) {
		list, ok := rec.Get(def.KeyFrom).([]interface{})
		if !ok {
			return
		}

		ids := make([]interface{}, 0, len(list))
		for _, item := range list {
			entry, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if id := entry[def.KeyTo]; id != nil {
				ids = append(ids, id)
			}
			embedded := def.ModelTo.New(entry)
			if err := embedded.Validate(); err != nil {
				verr.Add(def.KeyFrom, fmt.Sprintf("invalid item in %s: %v", def.Name, err))
			}
		}
		if utils.HasDuplicateIDs(ids) {
			verr.Add(def.KeyFrom, fmt.Sprintf("contains duplicate %s values in %s", def.KeyTo, def.Name))
		}
	})
}

func installEmbedsManyRemotes(def *model.Relation) {
	installRemoteMethods(def, map[string]model.RemoteMethod{
		"get": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			refresh := false
			if len(args) > 0 {
				refresh, _ = args[0].(bool)
			}
			return (&EmbedsMany{base(def, rec)}).Get(ctx, refresh)
		},
		"findById": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("relation %s: findById needs an id", def.Name)
			}
			return (&EmbedsMany{base(def, rec)}).FindByID(ctx, args[0])
		},
		"create": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			data, _ := firstMap(args)
			return (&EmbedsMany{base(def, rec)}).Create(ctx, data)
		},
		"updateById": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) < 2 {
				return nil, fmt.Errorf("relation %s: updateById needs an id and data", def.Name)
			}
			data, _ := args[1].(map[string]interface{})
			return (&EmbedsMany{base(def, rec)}).UpdateByID(ctx, args[0], data)
		},
		"destroyById": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("relation %s: destroyById needs an id", def.Name)
			}
			return nil, (&EmbedsMany{base(def, rec)}).DestroyByID(ctx, args[0])
		},
		"count": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			return (&EmbedsMany{base(def, rec)}).Count(nil)
		},
		"at": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			i, ok := indexArg(args)
			if !ok {
				return nil, fmt.Errorf("relation %s: at needs an index", def.Name)
			}
			return (&EmbedsMany{base(def, rec)}).At(i)
		},
		"exists": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("relation %s: exists needs an id", def.Name)
			}
			return (&EmbedsMany{base(def, rec)}).Exists(args[0]), nil
		},
		"link": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("relation %s: link needs an id", def.Name)
			}
			data, _ := firstMap(args[1:])
			return (&EmbedsMany{base(def, rec)}).Add(ctx, args[0], data)
		},
		"unlink": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("relation %s: unlink needs an id", def.Name)
			}
			return nil, (&EmbedsMany{base(def, rec)}).Remove(ctx, args[0])
		},
	})
}

// EmbedsMany is the runtime object of an embedsMany relation.
type EmbedsMany struct {
	relationBase
}

// items materializes the owning field as linked records.
func (r *EmbedsMany) items() []*model.Record {
	list, _ := r.rec.Get(r.def.KeyFrom).([]interface{})
	records := make([]*model.Record, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		target := r.def.ModelTo.New(entry)
		target.SetEmbedded(r.rec, r.def.KeyFrom, true)
		records = append(records, target)
	}
	return records
}

// Get returns the embedded records, serving the cache unless refresh is
// set.
func (r *EmbedsMany) Get(ctx context.Context, refresh bool) ([]*model.Record, error) {
	if !refresh {
		if list, ok := r.cachedList(); ok {
			return list, nil
		}
	}
	list := r.items()
	r.rec.CacheRelation(r.def.Name, list)
	return list, nil
}

// At returns the embedded record at a list position.
func (r *EmbedsMany) At(i int) (*model.Record, error) {
	list := r.items()
	if i < 0 || i >= len(list) {
		return nil, fmt.Errorf("relation %s on %s: index %d out of range", r.def.Name, r.def.ModelFrom.Name(), i)
	}
	return list[i], nil
}

// FindByID returns the embedded record with the given id.
func (r *EmbedsMany) FindByID(ctx context.Context, id interface{}) (*model.Record, error) {
	for _, item := range r.items() {
		if utils.IDEqual(item.ID(), id) {
			return item, nil
		}
	}
	return nil, &model.NotFoundError{Model: r.def.ModelTo.Name(), ID: id}
}

// Exists reports whether an embedded record with the given id is
// present.
func (r *EmbedsMany) Exists(id interface{}) bool {
	for _, item := range r.items() {
		if utils.IDEqual(item.ID(), id) {
			return true
		}
	}
	return false
}

// Build constructs an unsaved embedded record linked to the owner,
// assigning a generated id when data carries none.
func (r *EmbedsMany) Build(data map[string]interface{}) (*model.Record, error) {
	target := r.def.ModelTo.New(data)
	if err := r.applyProperties(target); err != nil {
		return nil, err
	}
	if target.ID() == nil && !r.def.Options.Persistent {
		id, err := r.def.ModelFrom.DataSource().GenerateID(r.def.ModelTo.Name(), target.Data(), r.def.KeyTo)
		if err != nil {
			return nil, err
		}
		target.SetID(id)
	}
	target.SetEmbedded(r.rec, r.def.KeyFrom, true)
	return target, nil
}

// Create appends a new embedded record and saves the owner. With the
// Persistent option the record is first written to the embedded model's
// own data source so the connector assigns its id.
func (r *EmbedsMany) Create(ctx context.Context, data map[string]interface{}) (*model.Record, error) {
	if r.def.Options.Persistent {
		created, err := r.def.ModelTo.Create(ctx, data)
		if err != nil {
			return nil, err
		}
		data = created.Data()
	}
	target, err := r.Build(data)
	if err != nil {
		return nil, err
	}
	if err := target.Save(ctx); err != nil {
		return nil, err
	}
	r.addToCache(target)
	return target, nil
}

// UpdateByID merges data into one embedded record and saves the owner.
func (r *EmbedsMany) UpdateByID(ctx context.Context, id interface{}, data map[string]interface{}) (*model.Record, error) {
	target, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v, ok := data[r.def.KeyTo]; ok && !utils.IDEqual(v, id) {
		return nil, fmt.Errorf("relation %s on %s: %w", r.def.Name, r.def.ModelFrom.Name(), ErrForeignKeyOverride)
	}
	if err := target.UpdateAttributes(ctx, data); err != nil {
		return nil, err
	}
	r.addToCache(target)
	return target, nil
}

// DestroyByID splices one embedded record out of the list and saves the
// owner.
func (r *EmbedsMany) DestroyByID(ctx context.Context, id interface{}) error {
	target, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := target.Destroy(ctx); err != nil {
		return err
	}
	r.removeFromCache(id)
	return nil
}

// DestroyAll removes every embedded record matching where, running the
// embedded model's delete hooks per item. A nil where clears the list.
func (r *EmbedsMany) DestroyAll(ctx context.Context, where query.Where) (int64, error) {
	var removed int64
	for _, item := range r.items() {
		if !matchesWhere(item, where) {
			continue
		}
		if err := item.Destroy(ctx); err != nil {
			return removed, err
		}
		removed++
	}
	r.rec.UncacheRelation(r.def.Name)
	return removed, nil
}

// Count returns how many embedded records match where.
func (r *EmbedsMany) Count(where query.Where) (int64, error) {
	var n int64
	for _, item := range r.items() {
		if matchesWhere(item, where) {
			n++
		}
	}
	return n, nil
}

// Add embeds a reference to an existing record of the model the
// embedded model belongs to. The embedded model must declare a
// belongsTo relation; its first one in definition order carries the
// reference key.
func (r *EmbedsMany) Add(ctx context.Context, id interface{}, data map[string]interface{}) (*model.Record, error) {
	ref, err := r.referenceRelation()
	if err != nil {
		return nil, err
	}
	// the referenced record must exist before it can be linked
	if _, err := ref.ModelTo.FindByID(ctx, id); err != nil {
		return nil, err
	}

	item := map[string]interface{}{ref.KeyFrom: id}
	for k, v := range data {
		item[k] = v
	}
	return r.Create(ctx, item)
}

// Remove unembeds the item referencing id through the embedded model's
// belongsTo relation.
func (r *EmbedsMany) Remove(ctx context.Context, id interface{}) error {
	ref, err := r.referenceRelation()
	if err != nil {
		return err
	}
	for _, item := range r.items() {
		if !utils.IDEqual(item.Get(ref.KeyFrom), id) {
			continue
		}
		if err := item.Destroy(ctx); err != nil {
			return err
		}
		r.removeFromCache(item.ID())
		return nil
	}
	return &model.NotFoundError{Model: ref.ModelTo.Name(), ID: id}
}

// referenceRelation returns the embedded model's first belongsTo
// relation in definition order.
func (r *EmbedsMany) referenceRelation() (*model.Relation, error) {
	for _, name := range r.def.ModelTo.RelationNames() {
		rel, _ := r.def.ModelTo.Relation(name)
		if rel != nil && rel.Kind == model.BelongsTo {
			return rel, nil
		}
	}
	return nil, fmt.Errorf("relation %s on %s: embedded model %s declares no belongsTo relation to link through",
		r.def.Name, r.def.ModelFrom.Name(), r.def.ModelTo.Name())
}

// matchesWhere reports whether a record satisfies a flat equality
// filter. Embedded lists are matched in memory, unlike connector-backed
// kinds.
func matchesWhere(rec *model.Record, where query.Where) bool {
	for field, cond := range where {
		if inner, ok := cond.(query.Where); ok {
			if values, ok := inner[query.OpInq].([]interface{}); ok {
				if !utils.ContainsID(values, rec.Get(field)) {
					return false
				}
				continue
			}
			return false
		}
		if !utils.IDEqual(rec.Get(field), cond) {
			return false
		}
	}
	return true
}
