package relate

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/modelbind/relate/model"
	"github.com/modelbind/relate/query"
	"github.com/modelbind/relate/utils"
)

// DefineReferencesMany declares that from holds an ordered list of
// target ids in an array field. The targets live in their own model;
// only the id list is embedded.
func DefineReferencesMany(from *model.Model, to *model.Model, opts Options) (*model.Relation, error) {
	if from == nil {
		return nil, errors.New("referencesMany needs a source model")
	}

	name, err := relationName(from, to, opts, true)
	if err != nil {
		return nil, errors.Wrap(err, "define referencesMany relation")
	}
	if to == nil {
		to, err = lookupModelTo(from, nil, name, opts, true)
		if err != nil {
			return nil, errors.Wrap(err, "define referencesMany relation")
		}
	}

	naming := from.Naming()
	keyFrom := opts.ForeignKey
	if keyFrom == "" {
		keyFrom = naming.LowerFirst(naming.Singularize(name)) + "Ids"
	}
	from.DefineProperty(keyFrom, model.FieldArray)

	def := &model.Relation{
		Name:       name,
		Kind:       model.ReferencesMany,
		ModelFrom:  from,
		ModelTo:    to,
		KeyFrom:    keyFrom,
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

	from.AddValidator(func(rec *model.Record, verr *model.ValidationError) {
		if ids, ok := rec.Get(keyFrom).([]interface{}); ok && utils.HasDuplicateIDs(ids) {
			verr.Add(keyFrom, fmt.Sprintf("contains duplicate %s values in %s", def.KeyTo, def.Name))
		}
	})

	installRemoteMethods(def, map[string]model.RemoteMethod{
		"get": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			refresh := false
			if len(args) > 0 {
				refresh, _ = args[0].(bool)
			}
			return (&ReferencesMany{base(def, rec)}).Get(ctx, refresh)
		},
		"findById": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("relation %s: findById needs an id", def.Name)
			}
			return (&ReferencesMany{base(def, rec)}).FindByID(ctx, args[0])
		},
		"create": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			data, _ := firstMap(args)
			return (&ReferencesMany{base(def, rec)}).Create(ctx, data)
		},
		"link": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("relation %s: link needs an id", def.Name)
			}
			return (&ReferencesMany{base(def, rec)}).Add(ctx, args[0])
		},
		"unlink": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("relation %s: unlink needs an id", def.Name)
			}
			return nil, (&ReferencesMany{base(def, rec)}).Remove(ctx, args[0])
		},
		"exists": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("relation %s: exists needs an id", def.Name)
			}
			return (&ReferencesMany{base(def, rec)}).Exists(ctx, args[0])
		},
		"count": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			return (&ReferencesMany{base(def, rec)}).Count(), nil
		},
		"destroyById": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("relation %s: destroyById needs an id", def.Name)
			}
			return nil, (&ReferencesMany{base(def, rec)}).DestroyByID(ctx, args[0])
		},
		"at": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			i, ok := indexArg(args)
			if !ok {
				return nil, fmt.Errorf("relation %s: at needs an index", def.Name)
			}
			return (&ReferencesMany{base(def, rec)}).At(ctx, i)
		},
	})

	return def, nil
}

// ReferencesMany is the runtime object of a referencesMany relation.
type ReferencesMany struct {
	relationBase
}

// ids returns the stored id list.
func (r *ReferencesMany) ids() []interface{} {
	ids, _ := r.rec.Get(r.def.KeyFrom).([]interface{})
	return ids
}

// Get returns the referenced records in list order, serving the cache
// unless refresh is set.
func (r *ReferencesMany) Get(ctx context.Context, refresh bool) ([]*model.Record, error) {
	if !refresh {
		if list, ok := r.cachedList(); ok {
			return list, nil
		}
	}
	return r.Find(ctx, nil)
}

// Find queries the referenced records with an optional extra filter. An
// unfiltered result replaces the cache.
func (r *ReferencesMany) Find(ctx context.Context, filter *query.Filter) ([]*model.Record, error) {
	list, err := r.def.ModelTo.FindByIDs(ctx, r.ids(), r.scopedFilter(query.Where{}, filter))
	if err != nil {
		return nil, err
	}
	if filter == nil {
		r.rec.CacheRelation(r.def.Name, list)
	}
	return list, nil
}

// FindByID returns one referenced record; an id outside the list is
// not-found regardless of the target's existence.
func (r *ReferencesMany) FindByID(ctx context.Context, id interface{}) (*model.Record, error) {
	if !utils.ContainsID(r.ids(), id) {
		return nil, &model.NotFoundError{Model: r.def.ModelTo.Name(), ID: id}
	}
	return r.def.ModelTo.FindByID(ctx, id)
}

// At returns the referenced record at a list position.
func (r *ReferencesMany) At(ctx context.Context, i int) (*model.Record, error) {
	ids := r.ids()
	if i < 0 || i >= len(ids) {
		return nil, fmt.Errorf("relation %s on %s: index %d out of range", r.def.Name, r.def.ModelFrom.Name(), i)
	}
	return r.def.ModelTo.FindByID(ctx, ids[i])
}

// Exists reports whether id is in the list and the target still exists.
func (r *ReferencesMany) Exists(ctx context.Context, id interface{}) (bool, error) {
	if !utils.ContainsID(r.ids(), id) {
		return false, nil
	}
	return r.def.ModelTo.Exists(ctx, id)
}

// Count returns the length of the id list.
func (r *ReferencesMany) Count() int64 {
	return int64(len(r.ids()))
}

// Build constructs an unsaved target; its id joins the list once Create
// persists it.
func (r *ReferencesMany) Build(data map[string]interface{}) (*model.Record, error) {
	target := r.def.ModelTo.New(data)
	if err := r.applyProperties(target); err != nil {
		return nil, err
	}
	return target, nil
}

// Create persists a new target and appends its id to the list, saving
// the owner.
func (r *ReferencesMany) Create(ctx context.Context, data map[string]interface{}) (*model.Record, error) {
	target, err := r.Build(data)
	if err != nil {
		return nil, err
	}
	if err := target.Save(ctx); err != nil {
		return nil, err
	}
	if err := r.linkID(ctx, target.ID()); err != nil {
		return nil, err
	}
	r.addToCache(target)
	return target, nil
}

// Add links an existing target by id. Linking an already linked id is a
// no-op; the Prepend option puts new ids at the front of the list.
func (r *ReferencesMany) Add(ctx context.Context, id interface{}) (*model.Record, error) {
	target, err := r.def.ModelTo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if utils.ContainsID(r.ids(), id) {
		return target, nil
	}
	if err := r.linkID(ctx, target.ID()); err != nil {
		return nil, err
	}
	r.addToCache(target)
	return target, nil
}

func (r *ReferencesMany) linkID(ctx context.Context, id interface{}) error {
	ids := r.ids()
	if r.def.Options.Prepend {
		ids = append([]interface{}{id}, ids...)
	} else {
		ids = append(ids, id)
	}
	if err := r.rec.Set(r.def.KeyFrom, ids); err != nil {
		return err
	}
	return r.rec.Save(ctx)
}

// Remove splices id out of the list and saves the owner; the target
// itself stays.
func (r *ReferencesMany) Remove(ctx context.Context, id interface{}) error {
	ids := r.ids()
	i := utils.IndexOfID(ids, id)
	if i < 0 {
		return &model.NotFoundError{Model: r.def.ModelTo.Name(), ID: id}
	}
	kept := append(append([]interface{}{}, ids[:i]...), ids[i+1:]...)
	if err := r.rec.Set(r.def.KeyFrom, kept); err != nil {
		return err
	}
	if err := r.rec.Save(ctx); err != nil {
		return err
	}
	r.removeFromCache(id)
	return nil
}

// DestroyByID unlinks id and deletes the target record. A target that
// is already gone is not an error once the link is removed.
func (r *ReferencesMany) DestroyByID(ctx context.Context, id interface{}) error {
	if err := r.Remove(ctx, id); err != nil {
		return err
	}
	target, err := r.def.ModelTo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return err
	}
	return target.Destroy(ctx)
}
