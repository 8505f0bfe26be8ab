package query

// Where is a storage-neutral condition map. A key either names a field
// compared for equality, or maps to an operator clause such as
// Where{"age": Where{"gt": 21}}.
type Where map[string]interface{}

// Operator names understood by connectors.
const (
	OpInq     = "inq"
	OpNeq     = "neq"
	OpGt      = "gt"
	OpGte     = "gte"
	OpLt      = "lt"
	OpLte     = "lte"
	OpBetween = "between"
)

// Filter describes one query against a model: condition, projection,
// ordering and pagination. The zero value matches everything.
type Filter struct {
	Where  Where
	Fields []string
	Order  []string // "field ASC" / "field DESC", default ASC
	Limit  int
	Skip   int
}

// Clone returns a shallow copy with its own Where map.
func (f *Filter) Clone() *Filter {
	if f == nil {
		return &Filter{}
	}
	clone := *f
	clone.Where = f.Where.Clone()
	clone.Fields = append([]string(nil), f.Fields...)
	clone.Order = append([]string(nil), f.Order...)
	return &clone
}

// Clone returns a copy of the condition map.
func (w Where) Clone() Where {
	if w == nil {
		return nil
	}
	clone := make(Where, len(w))
	for k, v := range w {
		clone[k] = v
	}
	return clone
}

// MergeWhere folds extra into base, extra keys win on conflict. Both
// inputs stay untouched.
func MergeWhere(base, extra Where) Where {
	if len(base) == 0 {
		return extra.Clone()
	}
	merged := base.Clone()
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// MergeFilter folds extra into base: conditions merge with extra winning
// per key, projection/ordering/pagination come from extra when set.
func MergeFilter(base, extra *Filter) *Filter {
	if base == nil {
		return extra.Clone()
	}
	if extra == nil {
		return base.Clone()
	}

	merged := base.Clone()
	merged.Where = MergeWhere(base.Where, extra.Where)
	if len(extra.Fields) > 0 {
		merged.Fields = append([]string(nil), extra.Fields...)
	}
	if len(extra.Order) > 0 {
		merged.Order = append([]string(nil), extra.Order...)
	}
	if extra.Limit > 0 {
		merged.Limit = extra.Limit
	}
	if extra.Skip > 0 {
		merged.Skip = extra.Skip
	}
	return merged
}
