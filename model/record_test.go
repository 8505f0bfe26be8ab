package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSetCoercesTypedFields(t *testing.T) {
	registry := NewRegistry()
	m, err := registry.Define("Task", newTestDS())
	require.NoError(t, err)
	m.DefineProperty("weight", FieldNumber)
	m.DefineProperty("done", FieldBoolean)

	rec := m.New(nil)
	require.NoError(t, rec.Set("weight", "12"))
	assert.Equal(t, float64(12), rec.Get("weight"))

	require.NoError(t, rec.Set("done", "true"))
	assert.Equal(t, true, rec.Get("done"))

	assert.Error(t, rec.Set("weight", "not a number"))

	// untyped fields pass through
	require.NoError(t, rec.Set("note", 42))
	assert.Equal(t, 42, rec.Get("note"))
}

func TestRecordSetInvalidatesRelationCache(t *testing.T) {
	registry := NewRegistry()
	ds := newTestDS()
	order, err := registry.Define("Order", ds)
	require.NoError(t, err)
	customer, err := registry.Define("Customer", ds)
	require.NoError(t, err)

	require.NoError(t, order.AddRelation(&Relation{
		Name: "customer", Kind: BelongsTo,
		ModelFrom: order, ModelTo: customer,
		KeyFrom: "customerId", KeyTo: "id",
	}))

	rec := order.New(nil)
	rec.CacheRelation("customer", "sentinel")

	// unrelated writes keep the cache
	require.NoError(t, rec.Set("note", "x"))
	_, ok := rec.CachedRelation("customer")
	assert.True(t, ok)

	// writing the join field drops it
	require.NoError(t, rec.Set("customerId", "c2"))
	_, ok = rec.CachedRelation("customer")
	assert.False(t, ok)
}

func TestRecordSaveAndUpdate(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	m, err := registry.Define("Task", newTestDS())
	require.NoError(t, err)

	rec := m.New(map[string]interface{}{"state": "open"})
	assert.True(t, rec.IsNewRecord())

	require.NoError(t, rec.Save(ctx))
	assert.False(t, rec.IsNewRecord())
	assert.NotNil(t, rec.ID(), "the connector assigns an id on first save")

	require.NoError(t, rec.UpdateAttributes(ctx, map[string]interface{}{"state": "done"}))

	stored, err := m.FindByID(ctx, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, "done", stored.Get("state"))
}

func TestRecordDestroyMissing(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	m, err := registry.Define("Task", newTestDS())
	require.NoError(t, err)

	rec, err := m.Create(ctx, map[string]interface{}{"id": "t1"})
	require.NoError(t, err)
	require.NoError(t, rec.Destroy(ctx))

	err = rec.Destroy(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordValidation(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	m, err := registry.Define("Task", newTestDS())
	require.NoError(t, err)

	m.AddValidator(func(rec *Record, verr *ValidationError) {
		if rec.Get("state") == nil {
			verr.Add("state", "is required")
		}
	})

	rec := m.New(nil)
	err = rec.Save(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string][]string{"state": {"is required"}}, verr.Messages)

	require.NoError(t, rec.Set("state", "open"))
	assert.NoError(t, rec.Save(ctx))
}

func TestRecordEmbeddedSingleSave(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	ds := newTestDS()
	customer, err := registry.Define("Customer", ds)
	require.NoError(t, err)
	address, err := registry.Define("Address", ds)
	require.NoError(t, err)
	customer.DefineProperty("address", FieldObject)

	owner, err := customer.Create(ctx, map[string]interface{}{"id": "c1"})
	require.NoError(t, err)

	doc := address.New(map[string]interface{}{"city": "Berlin"})
	doc.SetEmbedded(owner, "address", false)
	require.NoError(t, doc.Save(ctx))

	stored, err := customer.FindByID(ctx, "c1")
	require.NoError(t, err)
	embedded, ok := stored.Get("address").(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Berlin", embedded["city"])

	// destroying the document clears the owner field
	require.NoError(t, doc.Destroy(ctx))
	stored, err = customer.FindByID(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, stored.Get("address"))
}

func TestRecordEmbeddedListSave(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	ds := newTestDS()
	customer, err := registry.Define("Customer", ds)
	require.NoError(t, err)
	email, err := registry.Define("Email", ds)
	require.NoError(t, err)
	customer.DefineProperty("emails", FieldArray)

	owner, err := customer.Create(ctx, map[string]interface{}{"id": "c1"})
	require.NoError(t, err)

	first := email.New(map[string]interface{}{"id": "e1", "label": "home"})
	first.SetEmbedded(owner, "emails", true)
	require.NoError(t, first.Save(ctx))

	second := email.New(map[string]interface{}{"id": "e2", "label": "work"})
	second.SetEmbedded(owner, "emails", true)
	require.NoError(t, second.Save(ctx))

	list, _ := owner.Get("emails").([]interface{})
	require.Len(t, list, 2)

	// saving an item again replaces its entry instead of appending
	require.NoError(t, first.Set("label", "mobile"))
	require.NoError(t, first.Save(ctx))
	list, _ = owner.Get("emails").([]interface{})
	require.Len(t, list, 2)
	entry := list[0].(map[string]interface{})
	assert.Equal(t, "mobile", entry["label"])

	require.NoError(t, second.Destroy(ctx))
	list, _ = owner.Get("emails").([]interface{})
	require.Len(t, list, 1)
}
