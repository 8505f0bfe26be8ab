package relate

import (
	"github.com/modelbind/relate/model"
	"github.com/modelbind/relate/query"
)

// scopedFilter merges, in order: the kind-specific join condition, the
// polymorphic discriminator condition, the descriptor's custom scope
// (which may override earlier fields), and finally the caller's
// per-call filter.
func (b *relationBase) scopedFilter(join query.Where, extra *query.Filter) *query.Filter {
	filter := &query.Filter{Where: join.Clone()}
	if filter.Where == nil {
		filter.Where = query.Where{}
	}

	if p := b.def.Polymorphic; p != nil && b.def.Kind != model.BelongsTo {
		filter.Where[p.Discriminator] = b.def.ModelFrom.Name()
	}

	if scope := b.def.Scope; scope != nil {
		if len(scope.Where) > 0 {
			filter.Where = query.MergeWhere(filter.Where, scope.Where)
		}
		if scope.Fn != nil {
			filter = scope.Fn(b.rec, filter)
		}
	}

	return query.MergeFilter(filter, extra)
}

// applyProperties copies configured fields from the bound record onto
// target, then stamps the polymorphic discriminator. With the
// InvertProperties flag the rule reads from the target instead.
func (b *relationBase) applyProperties(target *model.Record) error {
	src, dst := b.rec, target
	if b.def.Options.InvertProperties {
		src, dst = target, b.rec
	}

	if rule := b.def.Properties; rule != nil {
		switch {
		case rule.Fn != nil:
			for k, v := range rule.Fn(src, dst) {
				if err := dst.Set(k, v); err != nil {
					return err
				}
			}
		case len(rule.List) > 0:
			for _, name := range rule.List {
				if err := dst.Set(name, src.Get(name)); err != nil {
					return err
				}
			}
		default:
			for srcKey, dstKey := range rule.Map {
				if err := dst.Set(dstKey, src.Get(srcKey)); err != nil {
					return err
				}
			}
		}
	}

	if p := b.def.Polymorphic; p != nil && b.def.Kind != model.BelongsTo {
		if err := target.Set(p.Discriminator, b.def.ModelFrom.Name()); err != nil {
			return err
		}
	}
	return nil
}
