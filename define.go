package relate

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/modelbind/relate/model"
	"github.com/modelbind/relate/query"
)

// Options configures one relation declaration. Every field is optional;
// factories derive the rest by convention.
type Options struct {
	// As names the relation. Defaults to the target model name in
	// property form, pluralized for multi-valued kinds.
	As string

	// Model names the target when no *model.Model is passed; resolved
	// case-insensitively through the registry, falling back from this
	// name to the relation name (singularized for multi-valued kinds).
	Model string

	// ForeignKey overrides the conventional join field name.
	ForeignKey string

	// PrimaryKey overrides the key on the far side of the join.
	PrimaryKey string

	// Property overrides the owning field of an embedded relation.
	Property string

	// Through names the join model of a many-to-many relation.
	Through *model.Model

	// ThroughKey overrides the through model's foreign key pointing at
	// the target.
	ThroughKey string

	// Polymorphic enables dynamic target resolution. As alone may also
	// carry the selector name.
	Polymorphic *model.PolymorphicConfig

	// Scope and ScopeFn attach a static or computed filter fragment.
	Scope   query.Where
	ScopeFn model.ScopeFunc

	// Property-copy rules; at most one of the three shapes.
	Properties   map[string]string
	PropertyList []string
	PropertiesFn model.PropertiesFunc

	// Flags copies into the descriptor's option bag.
	Flags model.RelationOptions

	// Methods are caller-supplied operations bound per relation instance.
	Methods map[string]model.RelationMethod
}

func (o Options) propertiesRule() *model.PropertiesRule {
	if o.PropertiesFn == nil && len(o.Properties) == 0 && len(o.PropertyList) == 0 {
		return nil
	}
	return &model.PropertiesRule{
		Fn:   o.PropertiesFn,
		List: o.PropertyList,
		Map:  o.Properties,
	}
}

func (o Options) scopeRule() *model.ScopeRule {
	if o.ScopeFn == nil && len(o.Scope) == 0 {
		return nil
	}
	return &model.ScopeRule{Where: o.Scope, Fn: o.ScopeFn}
}

// relationName normalizes the relation name: the As option, the
// polymorphic selector, or the target model name in property form.
func relationName(from *model.Model, to *model.Model, opts Options, multiple bool) (string, error) {
	if opts.As != "" {
		return opts.As, nil
	}
	if opts.Polymorphic != nil && opts.Polymorphic.As != "" {
		return opts.Polymorphic.As, nil
	}
	if to != nil {
		naming := from.Naming()
		name := naming.LowerFirst(to.Name())
		if multiple {
			name = naming.Pluralize(name)
		}
		return name, nil
	}
	if opts.Model != "" {
		naming := from.Naming()
		name := naming.LowerFirst(naming.Camelize(opts.Model))
		if multiple {
			name = naming.Pluralize(name)
		}
		return name, nil
	}
	return "", errors.Errorf("cannot determine a relation name on %s", from.Name())
}

// lookupModelTo resolves the target model: the explicit reference, then
// the Model option, then the relation name itself (singularized when
// the relation is multi-valued). Lookup is case-insensitive.
func lookupModelTo(from *model.Model, to *model.Model, relName string, opts Options, multiple bool) (*model.Model, error) {
	if to != nil {
		return to, nil
	}
	registry := from.Registry()

	if opts.Model != "" {
		if m, ok := registry.Lookup(opts.Model); ok {
			return m, nil
		}
		return nil, errors.Errorf("relation %s on %s: model %s is not defined", relName, from.Name(), opts.Model)
	}

	candidate := relName
	if multiple {
		candidate = from.Naming().Singularize(relName)
	}
	if m, ok := registry.Lookup(candidate); ok {
		return m, nil
	}
	return nil, errors.Errorf("relation %s on %s: cannot resolve a target model", relName, from.Name())
}

// normalizePolymorphic fills in the conventional field names of a
// polymorphic config from its selector.
func normalizePolymorphic(naming model.NamingStrategy, p *model.PolymorphicConfig, relName string) (*model.PolymorphicConfig, error) {
	if p == nil {
		return nil, nil
	}
	cfg := *p
	if cfg.As == "" {
		cfg.As = relName
	}
	if cfg.As == "" {
		return nil, fmt.Errorf("polymorphic relation needs a selector name")
	}
	if cfg.ForeignKey == "" {
		cfg.ForeignKey = naming.PolymorphicKeyName(cfg.As)
	}
	if cfg.Discriminator == "" {
		cfg.Discriminator = naming.DiscriminatorName(cfg.As)
	}
	return &cfg, nil
}

// installRemoteMethods installs the fixed-convention aliases
// (__<verb>__<relation>) on the source model. This is the scope-install
// step every factory runs last.
func installRemoteMethods(def *model.Relation, methods map[string]model.RemoteMethod) {
	for verb, fn := range methods {
		def.ModelFrom.DefineRemoteMethod(fmt.Sprintf("__%s__%s", verb, def.Name), fn)
	}
}

// register stores the descriptor on the source model, wrapping the
// duplicate-name case as a configuration error.
func register(def *model.Relation) error {
	if err := def.ModelFrom.AddRelation(def); err != nil {
		return errors.Wrapf(err, "define %s relation", def.Kind)
	}
	return nil
}
