package relate

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/modelbind/relate/model"
	"github.com/modelbind/relate/query"
	"github.com/modelbind/relate/utils"
)

// DefineHasMany declares that many to records carry a foreign key
// referencing from's primary key. With Options.Through the link lives
// in a join model instead and the relation kind is hasManyThrough.
func DefineHasMany(from *model.Model, to *model.Model, opts Options) (*model.Relation, error) {
	if from == nil {
		return nil, errors.New("hasMany needs a source model")
	}

	name, err := relationName(from, to, opts, true)
	if err != nil {
		return nil, errors.Wrap(err, "define hasMany relation")
	}
	if to == nil {
		to, err = lookupModelTo(from, nil, name, opts, true)
		if err != nil {
			return nil, errors.Wrap(err, "define hasMany relation")
		}
	}

	naming := from.Naming()
	polymorphic, err := normalizePolymorphic(naming, opts.Polymorphic, name)
	if err != nil {
		return nil, errors.Wrapf(err, "define hasMany relation %s on %s", name, from.Name())
	}

	keyFrom := opts.PrimaryKey
	if keyFrom == "" {
		keyFrom = from.IDName()
	}

	kind := model.HasMany
	keyTo := opts.ForeignKey
	keyThrough := ""

	if opts.Through != nil {
		kind = model.HasManyThrough
		if keyTo == "" {
			keyTo = naming.ForeignKeyName(from.Name())
		}
		keyThrough = opts.ThroughKey
		if keyThrough == "" {
			keyThrough = naming.ForeignKeyName(to.Name())
		}
		opts.Through.DefineForeignKey(keyTo, from)
		opts.Through.DefineForeignKey(keyThrough, to)
	} else {
		if polymorphic != nil {
			if keyTo == "" {
				keyTo = polymorphic.ForeignKey
			}
			to.DefineProperty(polymorphic.Discriminator, model.FieldString)
		} else if keyTo == "" {
			keyTo = naming.ForeignKeyName(from.Name())
		}
		to.DefineForeignKey(keyTo, from)
	}

	def := &model.Relation{
		Name:         name,
		Kind:         kind,
		ModelFrom:    from,
		ModelTo:      to,
		KeyFrom:      keyFrom,
		KeyTo:        keyTo,
		ModelThrough: opts.Through,
		KeyThrough:   keyThrough,
		Multiple:     true,
		Properties:   opts.propertiesRule(),
		Scope:        opts.scopeRule(),
		Options:      opts.Flags,
		Polymorphic:  polymorphic,
	}
	for mname, fn := range opts.Methods {
		def.DefineMethod(mname, fn)
	}
	if err := register(def); err != nil {
		return nil, err
	}
	installHasManyRemotes(def)

	return def, nil
}

func installHasManyRemotes(def *model.Relation) {
	installRemoteMethods(def, map[string]model.RemoteMethod{
		"get": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			refresh := false
			if len(args) > 0 {
				refresh, _ = args[0].(bool)
			}
			return (&HasMany{base(def, rec)}).Get(ctx, refresh)
		},
		"findById": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("relation %s: findById needs an id", def.Name)
			}
			return (&HasMany{base(def, rec)}).FindByID(ctx, args[0])
		},
		"create": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			data, _ := firstMap(args)
			return (&HasMany{base(def, rec)}).Create(ctx, data)
		},
		"updateById": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) < 2 {
				return nil, fmt.Errorf("relation %s: updateById needs an id and data", def.Name)
			}
			data, _ := args[1].(map[string]interface{})
			return (&HasMany{base(def, rec)}).UpdateByID(ctx, args[0], data)
		},
		"destroyById": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("relation %s: destroyById needs an id", def.Name)
			}
			return nil, (&HasMany{base(def, rec)}).DestroyByID(ctx, args[0])
		},
		"count": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			return (&HasMany{base(def, rec)}).Count(ctx, nil)
		},
		"exists": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("relation %s: exists needs an id", def.Name)
			}
			return (&HasMany{base(def, rec)}).Exists(ctx, args[0])
		},
		"link": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("relation %s: link needs an id", def.Name)
			}
			data, _ := firstMap(args[1:])
			return (&HasMany{base(def, rec)}).Add(ctx, args[0], data)
		},
		"unlink": func(ctx context.Context, rec *model.Record, args ...interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("relation %s: unlink needs an id", def.Name)
			}
			return nil, (&HasMany{base(def, rec)}).Remove(ctx, args[0])
		},
	})
}

// HasMany is the runtime object of the one-to-many kinds: plain
// hasMany, hasManyThrough and hasAndBelongsToMany. The through variants
// carry the link in a join model; the plain variant stores the foreign
// key on the target.
type HasMany struct {
	relationBase
}

func (r *HasMany) through() bool {
	return r.def.ModelThrough != nil
}

func (r *HasMany) sourceKey() interface{} {
	return r.rec.Get(r.def.KeyFrom)
}

func (r *HasMany) joinWhere() query.Where {
	return query.Where{r.def.KeyTo: r.sourceKey()}
}

// Get returns the related records, serving the cache unless refresh is
// set.
func (r *HasMany) Get(ctx context.Context, refresh bool) ([]*model.Record, error) {
	if !refresh {
		if list, ok := r.cachedList(); ok {
			return list, nil
		}
	}
	return r.Find(ctx, nil)
}

// Find queries the related records with an optional extra filter. An
// unfiltered result replaces the cache.
func (r *HasMany) Find(ctx context.Context, filter *query.Filter) ([]*model.Record, error) {
	var (
		list []*model.Record
		err  error
	)
	if r.through() {
		list, err = r.findThrough(ctx, filter)
	} else {
		list, err = r.def.ModelTo.Find(ctx, r.scopedFilter(r.joinWhere(), filter))
	}
	if err != nil {
		return nil, err
	}
	if filter == nil {
		r.rec.CacheRelation(r.def.Name, list)
	}
	return list, nil
}

func (r *HasMany) findThrough(ctx context.Context, filter *query.Filter) ([]*model.Record, error) {
	ids, err := r.linkedIDs(ctx)
	if err != nil {
		return nil, err
	}
	return r.def.ModelTo.FindByIDs(ctx, ids, r.scopedFilter(query.Where{}, filter))
}

// linkedIDs returns the target ids recorded in the join model for the
// bound record.
func (r *HasMany) linkedIDs(ctx context.Context) ([]interface{}, error) {
	fk1, fk2, err := r.def.ThroughKeys()
	if err != nil {
		return nil, err
	}
	joins, err := r.def.ModelThrough.Find(ctx, &query.Filter{Where: query.Where{fk1: r.sourceKey()}})
	if err != nil {
		return nil, err
	}
	ids := make([]interface{}, 0, len(joins))
	for _, join := range joins {
		ids = append(ids, join.Get(fk2))
	}
	return ids, nil
}

// FindByID returns one related record within the relation's scope. For
// the plain kind the record's foreign key is verified against the bound
// record's key; a mismatch is a distinct error from not-found. For the
// through kinds the join row must exist.
func (r *HasMany) FindByID(ctx context.Context, id interface{}) (*model.Record, error) {
	if r.through() {
		fk1, fk2, err := r.def.ThroughKeys()
		if err != nil {
			return nil, err
		}
		join, err := r.def.ModelThrough.FindOne(ctx, &query.Filter{Where: query.Where{fk1: r.sourceKey(), fk2: id}})
		if err != nil {
			return nil, err
		}
		if join == nil {
			return nil, &model.NotFoundError{Model: r.def.ModelTo.Name(), ID: id}
		}
		return r.def.ModelTo.FindByID(ctx, id)
	}

	target, err := r.def.ModelTo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := r.sourceKey()
	if !utils.IDEqual(target.Get(r.def.KeyTo), expected) {
		return nil, &KeyMismatchError{Relation: r.def.Name, Field: r.def.KeyTo, Expected: expected, Actual: target.Get(r.def.KeyTo)}
	}
	return target, nil
}

// Create persists a new related record. Through kinds create the target
// first and then the join row; a failing join row triggers a
// compensating delete of the just-created target.
func (r *HasMany) Create(ctx context.Context, data map[string]interface{}) (*model.Record, error) {
	target, err := r.createOne(ctx, data)
	if err != nil {
		return nil, err
	}
	r.addToCache(target)
	return target, nil
}

// createOne persists without touching the relation cache; CreateMany
// calls it from multiple goroutines and the cache is not safe for
// concurrent writes.
func (r *HasMany) createOne(ctx context.Context, data map[string]interface{}) (*model.Record, error) {
	if r.through() {
		return r.createThrough(ctx, data)
	}

	target, err := r.Build(data)
	if err != nil {
		return nil, err
	}
	if err := target.Save(ctx); err != nil {
		return nil, err
	}
	return target, nil
}

func (r *HasMany) createThrough(ctx context.Context, data map[string]interface{}) (*model.Record, error) {
	seed := r.def.ModelTo.New(data)
	if err := r.applyProperties(seed); err != nil {
		return nil, err
	}
	if err := seed.Save(ctx); err != nil {
		return nil, err
	}

	if _, err := r.link(ctx, seed.ID(), nil); err != nil {
		// best-effort compensation, not a transaction
		_ = seed.Destroy(ctx)
		return nil, err
	}

	return seed, nil
}

// CreateMany persists every item, dispatching them concurrently.
// Completion is reported once all items finished; the first error
// encountered wins and already-created items stay (no aggregate
// rollback).
func (r *HasMany) CreateMany(ctx context.Context, items []map[string]interface{}) ([]*model.Record, error) {
	results := make([]*model.Record, len(items))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i, item := range items {
		wg.Add(1)
		go func(i int, item map[string]interface{}) {
			defer wg.Done()
			created, err := r.createOne(ctx, item)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results[i] = created
		}(i, item)
	}
	wg.Wait()

	// the relation cache is updated once all workers are done
	for _, created := range results {
		if created != nil {
			r.addToCache(created)
		}
	}
	if firstErr != nil {
		return results, firstErr
	}
	return results, nil
}

// Build constructs an unsaved target wired to the bound record. Through
// kinds wire nothing; the join row is created on save through Create.
func (r *HasMany) Build(data map[string]interface{}) (*model.Record, error) {
	target := r.def.ModelTo.New(data)
	if !r.through() {
		if err := target.Set(r.def.KeyTo, r.sourceKey()); err != nil {
			return nil, err
		}
	}
	if err := r.applyProperties(target); err != nil {
		return nil, err
	}
	return target, nil
}

// UpdateByID merges data into one related record, rejecting foreign key
// changes on the plain kind.
func (r *HasMany) UpdateByID(ctx context.Context, id interface{}, data map[string]interface{}) (*model.Record, error) {
	target, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.through() {
		if v, ok := data[r.def.KeyTo]; ok && !utils.IDEqual(v, r.sourceKey()) {
			return nil, fmt.Errorf("relation %s on %s: %w", r.def.Name, r.def.ModelFrom.Name(), ErrForeignKeyOverride)
		}
	}
	if err := target.UpdateAttributes(ctx, data); err != nil {
		return nil, err
	}
	r.addToCache(target)
	return target, nil
}

// DestroyByID removes one related record, along with its join row for
// the through kinds.
func (r *HasMany) DestroyByID(ctx context.Context, id interface{}) error {
	target, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if r.through() {
		if err := r.Remove(ctx, id); err != nil {
			return err
		}
	}
	if err := target.Destroy(ctx); err != nil {
		return err
	}
	r.removeFromCache(id)
	return nil
}

// DestroyAll removes every related record matching where within the
// relation's scope, and the join rows for the through kinds. It reports
// how many targets were removed and drops the cache entry.
func (r *HasMany) DestroyAll(ctx context.Context, where query.Where) (int64, error) {
	if r.through() {
		return r.destroyAllThrough(ctx, where)
	}
	scoped := r.scopedFilter(r.joinWhere(), &query.Filter{Where: where})
	n, err := r.def.ModelTo.DeleteAll(ctx, scoped.Where)
	if err != nil {
		return 0, err
	}
	r.rec.UncacheRelation(r.def.Name)
	return n, nil
}

func (r *HasMany) destroyAllThrough(ctx context.Context, where query.Where) (int64, error) {
	fk1, fk2, err := r.def.ThroughKeys()
	if err != nil {
		return 0, err
	}
	ids, err := r.linkedIDs(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		r.rec.UncacheRelation(r.def.Name)
		return 0, nil
	}

	idName := r.def.ModelTo.IDName()
	targetWhere := query.MergeWhere(query.Where{idName: query.Where{query.OpInq: ids}}, where)
	targets, err := r.def.ModelTo.Find(ctx, &query.Filter{Where: targetWhere})
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, target := range targets {
		if _, err := r.def.ModelThrough.DeleteAll(ctx, query.Where{fk1: r.sourceKey(), fk2: target.ID()}); err != nil {
			return removed, err
		}
		if err := target.Destroy(ctx); err != nil {
			return removed, err
		}
		removed++
	}
	r.rec.UncacheRelation(r.def.Name)
	return removed, nil
}

// Count returns how many related records match where.
func (r *HasMany) Count(ctx context.Context, where query.Where) (int64, error) {
	if r.through() {
		if len(where) == 0 && r.def.Scope == nil && r.def.Polymorphic == nil {
			fk1, _, err := r.def.ThroughKeys()
			if err != nil {
				return 0, err
			}
			return r.def.ModelThrough.Count(ctx, query.Where{fk1: r.sourceKey()})
		}
		ids, err := r.linkedIDs(ctx)
		if err != nil {
			return 0, err
		}
		if len(ids) == 0 {
			return 0, nil
		}
		idName := r.def.ModelTo.IDName()
		scoped := r.scopedFilter(query.Where{idName: query.Where{query.OpInq: ids}}, &query.Filter{Where: where})
		return r.def.ModelTo.Count(ctx, scoped.Where)
	}
	scoped := r.scopedFilter(r.joinWhere(), &query.Filter{Where: where})
	return r.def.ModelTo.Count(ctx, scoped.Where)
}

// Exists reports whether id belongs to the relation. Through kinds
// consult the join model only.
func (r *HasMany) Exists(ctx context.Context, id interface{}) (bool, error) {
	if r.through() {
		fk1, fk2, err := r.def.ThroughKeys()
		if err != nil {
			return false, err
		}
		n, err := r.def.ModelThrough.Count(ctx, query.Where{fk1: r.sourceKey(), fk2: id})
		return n > 0, err
	}

	_, err := r.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Add links an existing target: through kinds find-or-create the join
// row (returning it), the plain kind points the target's foreign key at
// the bound record and saves it (returning the target).
func (r *HasMany) Add(ctx context.Context, id interface{}, data map[string]interface{}) (*model.Record, error) {
	if r.through() {
		join, err := r.link(ctx, id, data)
		if err != nil {
			return nil, err
		}
		target, err := r.def.ModelTo.FindByID(ctx, id)
		if err != nil {
			return join, nil // join row exists even when the target is dark
		}
		r.addToCache(target)
		return join, nil
	}

	target, err := r.def.ModelTo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := target.Set(r.def.KeyTo, r.sourceKey()); err != nil {
		return nil, err
	}
	if err := r.applyProperties(target); err != nil {
		return nil, err
	}
	if err := target.Save(ctx); err != nil {
		return nil, err
	}
	r.addToCache(target)
	return target, nil
}

// link find-or-creates the join row between the bound record and id.
func (r *HasMany) link(ctx context.Context, id interface{}, data map[string]interface{}) (*model.Record, error) {
	fk1, fk2, err := r.def.ThroughKeys()
	if err != nil {
		return nil, err
	}
	joinWhere := query.Where{fk1: r.sourceKey(), fk2: id}
	joinData := map[string]interface{}{fk1: r.sourceKey(), fk2: id}
	for k, v := range data {
		joinData[k] = v
	}
	join, _, err := r.def.ModelThrough.FindOrCreate(ctx, &query.Filter{Where: joinWhere}, joinData)
	return join, err
}

// Remove unlinks a target: through kinds delete the join row, the plain
// kind clears the target's foreign key.
func (r *HasMany) Remove(ctx context.Context, id interface{}) error {
	if r.through() {
		fk1, fk2, err := r.def.ThroughKeys()
		if err != nil {
			return err
		}
		n, err := r.def.ModelThrough.DeleteAll(ctx, query.Where{fk1: r.sourceKey(), fk2: id})
		if err != nil {
			return err
		}
		if n == 0 {
			return &model.NotFoundError{Model: r.def.ModelThrough.Name(), ID: id}
		}
		r.removeFromCache(id)
		return nil
	}

	target, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := target.Set(r.def.KeyTo, nil); err != nil {
		return err
	}
	if err := target.Save(ctx); err != nil {
		return err
	}
	r.removeFromCache(id)
	return nil
}
