package model

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/modelbind/relate/datasource"
	"github.com/modelbind/relate/query"
	"github.com/modelbind/relate/utils"
)

// Lifecycle events dispatched through NotifyObserversOf.
const (
	EventBeforeSave   = "before save"
	EventAfterSave    = "after save"
	EventBeforeDelete = "before delete"
	EventAfterDelete  = "after delete"
)

// ObserverFunc is a lifecycle hook.
type ObserverFunc func(ctx context.Context, rec *Record) error

// ValidatorFunc inspects a record and records failures.
type ValidatorFunc func(rec *Record, verr *ValidationError)

// RemoteMethod is an operation installed on a model for external
// remote-invocation introspection.
type RemoteMethod func(ctx context.Context, rec *Record, args ...interface{}) (interface{}, error)

// Registry owns the set of defined models and resolves names
// case-insensitively, falling back to singular forms. It is the
// polymorphism resolver: discriminator values are looked up here.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
	byFold map[string]*Model
	naming NamingStrategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		models: map[string]*Model{},
		byFold: map[string]*Model{},
		naming: DefaultNaming,
	}
}

// ModelOption configures a model at definition time.
type ModelOption func(*Model)

// WithIDName overrides the id field name (default "id").
func WithIDName(name string) ModelOption {
	return func(m *Model) { m.idName = name }
}

// WithPluralName overrides the inflected plural model name.
func WithPluralName(name string) ModelOption {
	return func(m *Model) { m.pluralName = name }
}

// Define registers a new model against ds. Redefining a name is a
// configuration error.
func (r *Registry) Define(name string, ds *datasource.DataSource, opts ...ModelOption) (*Model, error) {
	if name == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if ds == nil {
		return nil, fmt.Errorf("model %s needs a data source", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[name]; exists {
		return nil, fmt.Errorf("model %s is already defined", name)
	}

	m := &Model{
		name:          name,
		idName:        "id",
		registry:      r,
		ds:            ds,
		naming:        r.naming,
		fieldsByName:  map[string]*Field{},
		Relations:     map[string]*Relation{},
		observers:     map[string][]ObserverFunc{},
		remoteMethods: map[string]RemoteMethod{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pluralName == "" {
		m.pluralName = r.naming.Pluralize(name)
	}
	m.DefineProperty(m.idName, FieldAny)
	ds.SetIDName(name, m.idName)

	r.models[name] = m
	r.byFold[strings.ToLower(name)] = m
	return m, nil
}

// MustDefine is Define, panicking on configuration errors.
func (r *Registry) MustDefine(name string, ds *datasource.DataSource, opts ...ModelOption) *Model {
	m, err := r.Define(name, ds, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Lookup resolves a model by name: exact, then case-insensitive, then
// the singular form of the name.
func (r *Registry) Lookup(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.models[name]; ok {
		return m, true
	}
	folded := strings.ToLower(name)
	if m, ok := r.byFold[folded]; ok {
		return m, true
	}
	if m, ok := r.byFold[strings.ToLower(r.naming.Singularize(name))]; ok {
		return m, true
	}
	return nil, false
}

// Models returns all defined models sorted by name.
func (r *Registry) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	models := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].name < models[j].name })
	return models
}

// Model is the immutable type descriptor of one record type: field
// definitions, relation registry, lifecycle observers, validators and
// the remote-method table.
type Model struct {
	name       string
	pluralName string
	idName     string
	registry   *Registry
	ds         *datasource.DataSource
	naming     NamingStrategy

	fields       []*Field
	fieldsByName map[string]*Field

	// Relations maps relation name to its descriptor. Names are unique;
	// relationOrder keeps definition order for deterministic scans.
	Relations     map[string]*Relation
	relationOrder []string

	observers     map[string][]ObserverFunc
	validators    []ValidatorFunc
	remoteMethods map[string]RemoteMethod
}

func (m *Model) Name() string        { return m.name }
func (m *Model) PluralName() string  { return m.pluralName }
func (m *Model) IDName() string      { return m.idName }
func (m *Model) String() string      { return m.name }
func (m *Model) Registry() *Registry { return m.registry }
func (m *Model) Naming() NamingStrategy {
	return m.naming
}

// DataSource returns the data source the model persists through.
func (m *Model) DataSource() *datasource.DataSource { return m.ds }

// DefineProperty registers a field. Redefining a name returns the
// existing field untouched.
func (m *Model) DefineProperty(name, fieldType string) *Field {
	if f, ok := m.fieldsByName[name]; ok {
		return f
	}
	f := &Field{Name: name, Type: fieldType}
	m.fields = append(m.fields, f)
	m.fieldsByName[name] = f
	return f
}

// DefineForeignKey registers a join field pointing at to's primary key.
func (m *Model) DefineForeignKey(name string, to *Model) *Field {
	return m.DefineProperty(name, FieldAny)
}

// HasProperty reports whether a field is defined.
func (m *Model) HasProperty(name string) bool {
	_, ok := m.fieldsByName[name]
	return ok
}

// Property returns a field definition by name.
func (m *Model) Property(name string) (*Field, bool) {
	f, ok := m.fieldsByName[name]
	return f, ok
}

// Properties returns the fields in definition order.
func (m *Model) Properties() []*Field {
	return m.fields
}

// AddRelation stores a descriptor in the relation registry. Duplicate
// names are a configuration error.
func (m *Model) AddRelation(rel *Relation) error {
	if rel.Name == "" {
		return fmt.Errorf("relation on %s needs a name", m.name)
	}
	if _, exists := m.Relations[rel.Name]; exists {
		return fmt.Errorf("relation %s is already defined on %s", rel.Name, m.name)
	}
	m.Relations[rel.Name] = rel
	m.relationOrder = append(m.relationOrder, rel.Name)
	return nil
}

// Relation returns a descriptor by name.
func (m *Model) Relation(name string) (*Relation, bool) {
	rel, ok := m.Relations[name]
	return rel, ok
}

// RelationNames returns relation names in definition order.
func (m *Model) RelationNames() []string {
	return m.relationOrder
}

// belongsToKeys returns the foreign keys of every belongsTo relation on
// m pointing at target, in definition order.
func (m *Model) belongsToKeys(target *Model) []string {
	var keys []string
	for _, name := range m.relationOrder {
		rel := m.Relations[name]
		if rel.Kind == BelongsTo && rel.ModelTo == target {
			keys = append(keys, rel.KeyFrom)
		}
	}
	return keys
}

// Observe registers a lifecycle hook for an event.
func (m *Model) Observe(event string, fn ObserverFunc) {
	m.observers[event] = append(m.observers[event], fn)
}

// NotifyObserversOf dispatches an event to its hooks in registration
// order, stopping on the first error.
func (m *Model) NotifyObserversOf(ctx context.Context, event string, rec *Record) error {
	for _, fn := range m.observers[event] {
		if err := fn(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// AddValidator registers a validator run on every save.
func (m *Model) AddValidator(fn ValidatorFunc) {
	m.validators = append(m.validators, fn)
}

// DefineRemoteMethod installs a named operation for external
// introspection; relation factories use this for the __verb__name
// aliases.
func (m *Model) DefineRemoteMethod(name string, fn RemoteMethod) {
	m.remoteMethods[name] = fn
}

// RemoteMethod returns an installed operation by name.
func (m *Model) RemoteMethod(name string) (RemoteMethod, bool) {
	fn, ok := m.remoteMethods[name]
	return fn, ok
}

// RemoteMethodNames returns the installed operation names, sorted.
func (m *Model) RemoteMethodNames() []string {
	names := make([]string, 0, len(m.remoteMethods))
	for name := range m.remoteMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds an unsaved record, applying field defaults and coercion.
func (m *Model) New(data map[string]interface{}) *Record {
	rec := &Record{
		model: m,
		data:  map[string]interface{}{},
		isNew: true,
		cache: map[string]interface{}{},
	}
	for _, f := range m.fields {
		if f.Default != nil {
			rec.data[f.Name] = f.Default
		}
	}
	for k, v := range data {
		// best effort on construction, Save validates
		_ = rec.Set(k, v)
	}
	return rec
}

// hydrate materializes a persisted record from connector data.
func (m *Model) hydrate(data map[string]interface{}) *Record {
	rec := &Record{
		model: m,
		data:  make(map[string]interface{}, len(data)),
		isNew: false,
		cache: map[string]interface{}{},
	}
	for k, v := range data {
		rec.data[k] = v
	}
	return rec
}

// Create persists a new record built from data.
func (m *Model) Create(ctx context.Context, data map[string]interface{}) (*Record, error) {
	rec := m.New(data)
	if err := rec.Save(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

// Find returns the records matching filter.
func (m *Model) Find(ctx context.Context, filter *query.Filter) ([]*Record, error) {
	rows, err := m.ds.Find(ctx, m.name, filter)
	if err != nil {
		return nil, err
	}
	recs := make([]*Record, len(rows))
	for i, row := range rows {
		recs[i] = m.hydrate(row)
	}
	return recs, nil
}

// FindOne returns the first record matching filter, or nil when none
// matches.
func (m *Model) FindOne(ctx context.Context, filter *query.Filter) (*Record, error) {
	limited := filter.Clone()
	limited.Limit = 1
	recs, err := m.Find(ctx, limited)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// FindByID returns the record with the given id or a NotFoundError.
func (m *Model) FindByID(ctx context.Context, id interface{}) (*Record, error) {
	rec, err := m.FindOne(ctx, &query.Filter{Where: query.Where{m.idName: id}})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &NotFoundError{Model: m.name, ID: id}
	}
	return rec, nil
}

// FindByIDs returns the records with the given ids, in id-list order.
// Missing ids are skipped, not reported.
func (m *Model) FindByIDs(ctx context.Context, ids []interface{}, filter *query.Filter) ([]*Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	idFilter := &query.Filter{Where: query.Where{m.idName: query.Where{query.OpInq: ids}}}
	recs, err := m.Find(ctx, query.MergeFilter(idFilter, filter))
	if err != nil {
		return nil, err
	}

	ordered := make([]*Record, 0, len(recs))
	for _, id := range ids {
		for _, rec := range recs {
			if utils.IDEqual(rec.ID(), id) {
				ordered = append(ordered, rec)
				break
			}
		}
	}
	return ordered, nil
}

// FindOrCreate returns the first record matching filter, creating one
// from data when none matches. The bool reports whether a record was
// created.
func (m *Model) FindOrCreate(ctx context.Context, filter *query.Filter, data map[string]interface{}) (*Record, bool, error) {
	rec, err := m.FindOne(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	if rec != nil {
		return rec, false, nil
	}
	rec, err = m.Create(ctx, data)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Count returns how many records match where.
func (m *Model) Count(ctx context.Context, where query.Where) (int64, error) {
	return m.ds.Count(ctx, m.name, where)
}

// DeleteAll removes every record matching where and reports how many.
func (m *Model) DeleteAll(ctx context.Context, where query.Where) (int64, error) {
	return m.ds.DeleteAll(ctx, m.name, where)
}

// Exists reports whether a record with the given id exists.
func (m *Model) Exists(ctx context.Context, id interface{}) (bool, error) {
	n, err := m.Count(ctx, query.Where{m.idName: id})
	return n > 0, err
}
