package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modelbind/relate/logger"
	"github.com/modelbind/relate/query"
)

// DataSource binds a connector to the record layer. It owns the id-name
// registry consulted during relation wiring and traces every connector
// call through its logger.
type DataSource struct {
	connector Connector
	log       logger.Interface

	mu      sync.RWMutex
	idNames map[string]string
}

// Option configures a DataSource.
type Option func(*DataSource)

// WithLogger sets the logger used for operation tracing.
func WithLogger(l logger.Interface) Option {
	return func(ds *DataSource) {
		ds.log = l
	}
}

// New creates a DataSource over connector.
func New(connector Connector, opts ...Option) *DataSource {
	ds := &DataSource{
		connector: connector,
		log:       logger.Default,
		idNames:   map[string]string{},
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

// Connector returns the underlying connector.
func (ds *DataSource) Connector() Connector {
	return ds.connector
}

// Logger returns the logger operations are traced through.
func (ds *DataSource) Logger() logger.Interface {
	return ds.log
}

// SetIDName registers the id field name for a model. Called once when
// the model is defined against this data source.
func (ds *DataSource) SetIDName(model, idName string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.idNames[model] = idName
}

// IDName returns the id field name for a model, defaulting to "id".
func (ds *DataSource) IDName(model string) string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if name, ok := ds.idNames[model]; ok {
		return name
	}
	return "id"
}

// GenerateID produces an id for a record that will not pass through the
// connector's create path. Connectors may provide the capability; the
// fallback is a random UUID.
func (ds *DataSource) GenerateID(model string, data map[string]interface{}, idName string) (interface{}, error) {
	if gen, ok := ds.connector.(IDGenerator); ok {
		return gen.GenerateID(model, data, idName)
	}
	return uuid.NewString(), nil
}

// Create persists a new record and returns its id.
func (ds *DataSource) Create(ctx context.Context, model string, data map[string]interface{}, idName string) (interface{}, error) {
	begin := time.Now()
	id, err := ds.connector.Create(ctx, model, data, idName)
	ds.log.Trace(ctx, begin, func() (string, int64) {
		return fmt.Sprintf("create %s", model), 1
	}, err)
	return id, err
}

// Save replaces a stored record.
func (ds *DataSource) Save(ctx context.Context, model string, id interface{}, data map[string]interface{}) error {
	begin := time.Now()
	err := ds.connector.Save(ctx, model, id, data)
	ds.log.Trace(ctx, begin, func() (string, int64) {
		return fmt.Sprintf("save %s id=%v", model, id), 1
	}, err)
	return err
}

// UpdateAttributes merges data into a stored record.
func (ds *DataSource) UpdateAttributes(ctx context.Context, model string, id interface{}, data map[string]interface{}) error {
	begin := time.Now()
	err := ds.connector.UpdateAttributes(ctx, model, id, data)
	ds.log.Trace(ctx, begin, func() (string, int64) {
		return fmt.Sprintf("update %s id=%v", model, id), 1
	}, err)
	return err
}

// Find returns the records matching filter.
func (ds *DataSource) Find(ctx context.Context, model string, filter *query.Filter) ([]map[string]interface{}, error) {
	begin := time.Now()
	rows, err := ds.connector.Find(ctx, model, filter)
	ds.log.Trace(ctx, begin, func() (string, int64) {
		return fmt.Sprintf("find %s %v", model, filterSummary(filter)), int64(len(rows))
	}, err)
	return rows, err
}

// Count returns how many records match where.
func (ds *DataSource) Count(ctx context.Context, model string, where query.Where) (int64, error) {
	begin := time.Now()
	n, err := ds.connector.Count(ctx, model, where)
	ds.log.Trace(ctx, begin, func() (string, int64) {
		return fmt.Sprintf("count %s %v", model, where), n
	}, err)
	return n, err
}

// DeleteAll removes every record matching where.
func (ds *DataSource) DeleteAll(ctx context.Context, model string, where query.Where) (int64, error) {
	begin := time.Now()
	n, err := ds.connector.DeleteAll(ctx, model, where)
	ds.log.Trace(ctx, begin, func() (string, int64) {
		return fmt.Sprintf("deleteAll %s %v", model, where), n
	}, err)
	return n, err
}

// DestroyByID removes one record, reporting whether it existed.
func (ds *DataSource) DestroyByID(ctx context.Context, model string, id interface{}) (bool, error) {
	begin := time.Now()
	existed, err := ds.connector.DestroyByID(ctx, model, id)
	rows := int64(0)
	if existed {
		rows = 1
	}
	ds.log.Trace(ctx, begin, func() (string, int64) {
		return fmt.Sprintf("destroy %s id=%v", model, id), rows
	}, err)
	return existed, err
}

func filterSummary(filter *query.Filter) string {
	if filter == nil {
		return "{}"
	}
	return fmt.Sprintf("%v", filter.Where)
}
