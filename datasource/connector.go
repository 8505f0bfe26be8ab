package datasource

import (
	"context"

	"github.com/modelbind/relate/query"
)

// Connector is the storage contract the record layer delegates to.
// Implementations receive plain field maps and storage-neutral filters,
// and are free to block; callers pass a context for cancellation.
type Connector interface {
	Name() string

	// Create persists data and returns the record id. When data carries
	// no id under idName the connector assigns one.
	Create(ctx context.Context, model string, data map[string]interface{}, idName string) (interface{}, error)

	// Save replaces the stored record identified by id.
	Save(ctx context.Context, model string, id interface{}, data map[string]interface{}) error

	// UpdateAttributes merges data into the stored record identified by id.
	UpdateAttributes(ctx context.Context, model string, id interface{}, data map[string]interface{}) error

	Find(ctx context.Context, model string, filter *query.Filter) ([]map[string]interface{}, error)
	Count(ctx context.Context, model string, where query.Where) (int64, error)

	// DeleteAll removes every record matching where and reports how many.
	DeleteAll(ctx context.Context, model string, where query.Where) (int64, error)

	// DestroyByID removes one record, reporting whether it existed.
	DestroyByID(ctx context.Context, model string, id interface{}) (bool, error)
}

// IDGenerator is an optional connector capability for producing ids
// ahead of persistence, used for embedded records that never reach the
// connector on their own.
type IDGenerator interface {
	GenerateID(model string, data map[string]interface{}, idName string) (interface{}, error)
}
