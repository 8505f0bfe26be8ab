package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/modelbind/relate/logger"
	"github.com/modelbind/relate/query"
	"github.com/modelbind/relate/utils"
)

// Memory is the bundled connector. It keeps every model in its own
// non-expiring cache keyed by the string form of the record id, which is
// enough for tests and for prototyping against the relation layer.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*gocache.Cache
}

// NewMemory creates an empty in-memory connector.
func NewMemory() *Memory {
	return &Memory{tables: map[string]*gocache.Cache{}}
}

// Name implements Connector.
func (m *Memory) Name() string {
	return "memory"
}

func (m *Memory) table(model string) *gocache.Cache {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tables[model]; ok {
		return t
	}
	t := gocache.New(gocache.NoExpiration, 0)
	m.tables[model] = t
	return t
}

// GenerateID implements the IDGenerator capability.
func (m *Memory) GenerateID(model string, data map[string]interface{}, idName string) (interface{}, error) {
	return uuid.NewString(), nil
}

// Create implements Connector.
func (m *Memory) Create(ctx context.Context, model string, data map[string]interface{}, idName string) (interface{}, error) {
	stored := cloneRow(data)
	id := stored[idName]
	if id == nil || id == "" {
		id = uuid.NewString()
		stored[idName] = id
	}

	table := m.table(model)
	key := utils.ToString(id)
	if _, exists := table.Get(key); exists {
		return nil, fmt.Errorf("memory: duplicate id %v for model %s", id, model)
	}
	table.Set(key, stored, gocache.NoExpiration)
	return id, nil
}

// Save implements Connector.
func (m *Memory) Save(ctx context.Context, model string, id interface{}, data map[string]interface{}) error {
	table := m.table(model)
	key := utils.ToString(id)
	if _, exists := table.Get(key); !exists {
		return fmt.Errorf("memory: save %s id=%v: %w", model, id, logger.ErrRecordNotFound)
	}
	table.Set(key, cloneRow(data), gocache.NoExpiration)
	return nil
}

// UpdateAttributes implements Connector.
func (m *Memory) UpdateAttributes(ctx context.Context, model string, id interface{}, data map[string]interface{}) error {
	table := m.table(model)
	key := utils.ToString(id)
	existing, ok := table.Get(key)
	if !ok {
		return fmt.Errorf("memory: update %s id=%v: %w", model, id, logger.ErrRecordNotFound)
	}
	merged := cloneRow(existing.(map[string]interface{}))
	for k, v := range data {
		merged[k] = v
	}
	table.Set(key, merged, gocache.NoExpiration)
	return nil
}

// Find implements Connector.
func (m *Memory) Find(ctx context.Context, model string, filter *query.Filter) ([]map[string]interface{}, error) {
	var where query.Where
	if filter != nil {
		where = filter.Where
	}

	rows := m.matching(model, where)

	if filter != nil && len(filter.Order) > 0 {
		if err := orderRows(rows, filter.Order); err != nil {
			return nil, err
		}
	}

	if filter != nil {
		if filter.Skip > 0 {
			if filter.Skip >= len(rows) {
				rows = nil
			} else {
				rows = rows[filter.Skip:]
			}
		}
		if filter.Limit > 0 && filter.Limit < len(rows) {
			rows = rows[:filter.Limit]
		}
		if len(filter.Fields) > 0 {
			for i, row := range rows {
				projected := make(map[string]interface{}, len(filter.Fields))
				for _, f := range filter.Fields {
					if v, ok := row[f]; ok {
						projected[f] = v
					}
				}
				rows[i] = projected
			}
		}
	}

	return rows, nil
}

// Count implements Connector.
func (m *Memory) Count(ctx context.Context, model string, where query.Where) (int64, error) {
	return int64(len(m.matching(model, where))), nil
}

// DeleteAll implements Connector.
func (m *Memory) DeleteAll(ctx context.Context, model string, where query.Where) (int64, error) {
	table := m.table(model)
	var removed int64
	for key, item := range table.Items() {
		if matchWhere(item.Object.(map[string]interface{}), where) {
			table.Delete(key)
			removed++
		}
	}
	return removed, nil
}

// DestroyByID implements Connector.
func (m *Memory) DestroyByID(ctx context.Context, model string, id interface{}) (bool, error) {
	table := m.table(model)
	key := utils.ToString(id)
	if _, ok := table.Get(key); !ok {
		return false, nil
	}
	table.Delete(key)
	return true, nil
}

// matching returns copies of every row satisfying where, in a
// deterministic order.
func (m *Memory) matching(model string, where query.Where) []map[string]interface{} {
	table := m.table(model)
	items := table.Items()

	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var rows []map[string]interface{}
	for _, key := range keys {
		row := items[key].Object.(map[string]interface{})
		if matchWhere(row, where) {
			rows = append(rows, cloneRow(row))
		}
	}
	return rows
}

func cloneRow(row map[string]interface{}) map[string]interface{} {
	clone := make(map[string]interface{}, len(row))
	for k, v := range row {
		clone[k] = v
	}
	return clone
}

func matchWhere(row map[string]interface{}, where query.Where) bool {
	for field, cond := range where {
		actual := row[field]
		switch c := cond.(type) {
		case query.Where:
			if !matchOperators(actual, c) {
				return false
			}
		case map[string]interface{}:
			if !matchOperators(actual, c) {
				return false
			}
		default:
			if !valueEqual(actual, cond) {
				return false
			}
		}
	}
	return true
}

func matchOperators(actual interface{}, ops map[string]interface{}) bool {
	for op, expected := range ops {
		switch op {
		case query.OpInq:
			if !inList(actual, expected) {
				return false
			}
		case query.OpNeq:
			if valueEqual(actual, expected) {
				return false
			}
		case query.OpGt:
			if compareValues(actual, expected) <= 0 {
				return false
			}
		case query.OpGte:
			if compareValues(actual, expected) < 0 {
				return false
			}
		case query.OpLt:
			if compareValues(actual, expected) >= 0 {
				return false
			}
		case query.OpLte:
			if compareValues(actual, expected) > 0 {
				return false
			}
		case query.OpBetween:
			bounds, ok := expected.([]interface{})
			if !ok || len(bounds) != 2 {
				return false
			}
			if compareValues(actual, bounds[0]) < 0 || compareValues(actual, bounds[1]) > 0 {
				return false
			}
		default:
			// unknown operator, treat the clause as a nested equality map
			return valueEqual(actual, ops)
		}
	}
	return true
}

func inList(actual, expected interface{}) bool {
	list, ok := expected.([]interface{})
	if !ok {
		return valueEqual(actual, expected)
	}
	for _, v := range list {
		if valueEqual(actual, v) {
			return true
		}
	}
	return false
}

func valueEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return utils.ToString(a) == utils.ToString(b)
}

// compareValues returns -1, 0 or 1. Numbers compare numerically,
// everything else by string form.
func compareValues(a, b interface{}) int {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(utils.ToString(a), utils.ToString(b))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func orderRows(rows []map[string]interface{}, order []string) error {
	type orderKey struct {
		field string
		desc  bool
	}
	keys := make([]orderKey, 0, len(order))
	for _, clause := range order {
		parts := strings.Fields(clause)
		if len(parts) == 0 {
			continue
		}
		key := orderKey{field: parts[0]}
		if len(parts) > 1 {
			switch strings.ToUpper(parts[1]) {
			case "DESC":
				key.desc = true
			case "ASC":
			default:
				return fmt.Errorf("memory: invalid order direction %q", parts[1])
			}
		}
		keys = append(keys, key)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range keys {
			cmp := compareValues(rows[i][key.field], rows[j][key.field])
			if cmp == 0 {
				continue
			}
			if key.desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return nil
}
