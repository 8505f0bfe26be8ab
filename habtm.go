package relate

import (
	"github.com/pkg/errors"

	"github.com/modelbind/relate/model"
)

// DefineHasAndBelongsToMany declares a symmetric many-to-many relation
// backed by an implicit join model. The join model's name is the two
// model names concatenated; an existing model under either ordering is
// reused so both sides of the pair share one join table. Everything
// else delegates to the through machinery.
func DefineHasAndBelongsToMany(from *model.Model, to *model.Model, opts Options) (*model.Relation, error) {
	if from == nil {
		return nil, errors.New("hasAndBelongsToMany needs a source model")
	}

	name, err := relationName(from, to, opts, true)
	if err != nil {
		return nil, errors.Wrap(err, "define hasAndBelongsToMany relation")
	}
	if to == nil {
		to, err = lookupModelTo(from, nil, name, opts, true)
		if err != nil {
			return nil, errors.Wrap(err, "define hasAndBelongsToMany relation")
		}
	}

	through := opts.Through
	if through == nil {
		through, err = joinModelFor(from, to)
		if err != nil {
			return nil, errors.Wrapf(err, "define hasAndBelongsToMany relation %s on %s", name, from.Name())
		}
	}
	opts.Through = through

	poly, err := normalizePolymorphic(from.Naming(), opts.Polymorphic, name)
	if err != nil {
		return nil, errors.Wrapf(err, "define hasAndBelongsToMany relation %s on %s", name, from.Name())
	}
	if err := ensureJoinBelongsTo(through, from, to, poly); err != nil {
		return nil, errors.Wrapf(err, "define hasAndBelongsToMany relation %s on %s", name, from.Name())
	}

	def, err := DefineHasMany(from, to, opts)
	if err != nil {
		return nil, err
	}
	def.Kind = model.HasAndBelongsToMany
	return def, nil
}

// ensureJoinBelongsTo declares the join model's belongsTo relations to
// both sides, so the join rows navigate back like any other model. A
// polymorphic pair gets one belongsTo named by the selector instead of
// a concrete target; relations already present (the inverse side was
// defined first) are reused.
func ensureJoinBelongsTo(through *model.Model, from *model.Model, to *model.Model, poly *model.PolymorphicConfig) error {
	naming := through.Naming()

	declare := func(target *model.Model, opts Options) error {
		name := opts.As
		if name == "" {
			name = naming.LowerFirst(target.Name())
		}
		if _, ok := through.Relation(name); ok {
			return nil
		}
		_, err := DefineBelongsTo(through, target, opts)
		return err
	}

	if poly != nil {
		if _, ok := through.Relation(poly.As); !ok {
			if _, err := DefineBelongsTo(through, nil, Options{As: poly.As, Polymorphic: poly}); err != nil {
				return err
			}
		}
		if poly.Invert {
			return declare(to, Options{})
		}
		return declare(from, Options{})
	}

	if from == to {
		// A self join needs two distinct keys; leave the declarations
		// to the caller via Options.Through.
		return nil
	}
	if err := declare(from, Options{}); err != nil {
		return err
	}
	return declare(to, Options{})
}

// joinModelFor returns the implicit join model of a pair, defining it
// on the source's data source when neither ordering exists yet.
func joinModelFor(from *model.Model, to *model.Model) (*model.Model, error) {
	registry := from.Registry()
	naming := from.Naming()

	forward := naming.JoinModelName(from.Name(), to.Name())
	if m, ok := registry.Lookup(forward); ok {
		return m, nil
	}
	backward := naming.JoinModelName(to.Name(), from.Name())
	if m, ok := registry.Lookup(backward); ok {
		return m, nil
	}
	return registry.Define(forward, from.DataSource())
}
