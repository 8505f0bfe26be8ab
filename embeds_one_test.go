package relate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelbind/relate/model"
)

func TestEmbedsOneDefaults(t *testing.T) {
	registry, ds := newTestRegistry(t)
	customer := mustDefine(t, registry, "Customer", ds)
	address := mustDefine(t, registry, "Address", ds)

	def, err := DefineEmbedsOne(customer, address, Options{})
	require.NoError(t, err)

	assert.Equal(t, "address", def.Name)
	assert.Equal(t, model.EmbedsOne, def.Kind)
	// the stored field is renamed away from the accessor name
	assert.Equal(t, "_address", def.KeyFrom)
	assert.True(t, customer.HasProperty("_address"))

	f, ok := customer.Property("_address")
	require.True(t, ok)
	assert.Equal(t, model.FieldObject, f.Type)
}

func TestEmbedsOneLifecycle(t *testing.T) {
	ctx := context.Background()
	registry, ds := newTestRegistry(t)
	customer := mustDefine(t, registry, "Customer", ds)
	address := mustDefine(t, registry, "Address", ds)

	_, err := DefineEmbedsOne(customer, address, Options{Property: "billingAddress"})
	require.NoError(t, err)

	rec, err := customer.Create(ctx, map[string]interface{}{"id": "c1"})
	require.NoError(t, err)

	rel, err := EmbedsOneOf(rec, "address")
	require.NoError(t, err)

	got, err := rel.Get(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, got)

	created, err := rel.Create(ctx, map[string]interface{}{"street": "1 Main St", "city": "Berlin"})
	require.NoError(t, err)
	assert.Equal(t, "Berlin", created.Get("city"))

	// the document landed inside the owner's field and was persisted
	stored, err := customer.FindByID(ctx, "c1")
	require.NoError(t, err)
	embedded, ok := stored.Get("billingAddress").(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "1 Main St", embedded["street"])

	// a second create violates the to-one cardinality
	_, err = rel.Create(ctx, map[string]interface{}{"street": "2 Oak Ave"})
	assert.ErrorIs(t, err, ErrCardinality)

	updated, err := rel.Update(ctx, map[string]interface{}{"city": "Hamburg"})
	require.NoError(t, err)
	assert.Equal(t, "Hamburg", updated.Get("city"))

	stored, err = customer.FindByID(ctx, "c1")
	require.NoError(t, err)
	embedded = stored.Get("billingAddress").(map[string]interface{})
	assert.Equal(t, "Hamburg", embedded["city"])

	require.NoError(t, rel.Destroy(ctx))
	got, err = rel.Get(ctx, true)
	require.NoError(t, err)
	assert.Nil(t, got)

	stored, err = customer.FindByID(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, stored.Get("billingAddress"))

	// destroying an empty field is a no-op
	require.NoError(t, rel.Destroy(ctx))
}

func TestEmbedsOneTargetHooks(t *testing.T) {
	ctx := context.Background()
	registry, ds := newTestRegistry(t)
	customer := mustDefine(t, registry, "Customer", ds)
	address := mustDefine(t, registry, "Address", ds)

	var events []string
	address.Observe(model.EventBeforeSave, func(ctx context.Context, rec *model.Record) error {
		events = append(events, "before save")
		return nil
	})
	address.Observe(model.EventAfterDelete, func(ctx context.Context, rec *model.Record) error {
		events = append(events, "after delete")
		return nil
	})

	_, err := DefineEmbedsOne(customer, address, Options{})
	require.NoError(t, err)

	rec, err := customer.Create(ctx, map[string]interface{}{"id": "c1"})
	require.NoError(t, err)

	rel, err := EmbedsOneOf(rec, "address")
	require.NoError(t, err)

	_, err = rel.Create(ctx, map[string]interface{}{"street": "1 Main St"})
	require.NoError(t, err)
	require.NoError(t, rel.Destroy(ctx))

	assert.Equal(t, []string{"before save", "after delete"}, events)
}

func TestEmbedsOneValidation(t *testing.T) {
	ctx := context.Background()
	registry, ds := newTestRegistry(t)
	customer := mustDefine(t, registry, "Customer", ds)
	address := mustDefine(t, registry, "Address", ds)

	address.AddValidator(func(rec *model.Record, verr *model.ValidationError) {
		if rec.Get("street") == nil {
			verr.Add("street", "is required")
		}
	})

	_, err := DefineEmbedsOne(customer, address, Options{})
	require.NoError(t, err)

	rec, err := customer.Create(ctx, map[string]interface{}{"id": "c1"})
	require.NoError(t, err)

	rel, err := EmbedsOneOf(rec, "address")
	require.NoError(t, err)

	_, err = rel.Create(ctx, map[string]interface{}{"city": "Berlin"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrValidation)
}
