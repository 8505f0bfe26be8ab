package relate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelbind/relate/model"
)

func TestHasOneDefaults(t *testing.T) {
	registry, ds := newTestRegistry(t)
	supplier := mustDefine(t, registry, "Supplier", ds)
	account := mustDefine(t, registry, "Account", ds)

	def, err := DefineHasOne(supplier, account, Options{})
	require.NoError(t, err)

	assert.Equal(t, "account", def.Name)
	assert.Equal(t, model.HasOne, def.Kind)
	assert.Equal(t, "id", def.KeyFrom)
	assert.Equal(t, "supplierId", def.KeyTo)
	assert.True(t, account.HasProperty("supplierId"), "the target side carries the fk")
}

func TestHasOneCreateGetUpdateDestroy(t *testing.T) {
	ctx := context.Background()
	registry, ds := newTestRegistry(t)
	supplier := mustDefine(t, registry, "Supplier", ds)
	account := mustDefine(t, registry, "Account", ds)

	_, err := DefineHasOne(supplier, account, Options{})
	require.NoError(t, err)

	rec, err := supplier.Create(ctx, map[string]interface{}{"id": "s1"})
	require.NoError(t, err)

	rel, err := HasOneOf(rec, "account")
	require.NoError(t, err)

	got, err := rel.Get(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, got, "no owned record yet")

	created, err := rel.Create(ctx, map[string]interface{}{"id": "a1", "balance": 10})
	require.NoError(t, err)
	assert.Equal(t, "s1", created.Get("supplierId"))

	// a second create violates the to-one cardinality
	_, err = rel.Create(ctx, map[string]interface{}{"id": "a2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCardinality)

	got, err = rel.Get(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a1", got.ID())

	updated, err := rel.Update(ctx, map[string]interface{}{"balance": 20})
	require.NoError(t, err)
	assert.Equal(t, 20, updated.Get("balance"))

	_, err = rel.Update(ctx, map[string]interface{}{"supplierId": "someone-else"})
	assert.ErrorIs(t, err, ErrForeignKeyOverride)

	require.NoError(t, rel.Destroy(ctx))
	got, err = rel.Get(ctx, true)
	require.NoError(t, err)
	assert.Nil(t, got)

	// destroying again reports not-found
	assert.ErrorIs(t, rel.Destroy(ctx), model.ErrNotFound)
}

func TestHasOneBuildAndSet(t *testing.T) {
	ctx := context.Background()
	registry, ds := newTestRegistry(t)
	supplier := mustDefine(t, registry, "Supplier", ds)
	account := mustDefine(t, registry, "Account", ds)

	_, err := DefineHasOne(supplier, account, Options{
		PropertyList: []string{"region"},
	})
	require.NoError(t, err)

	rec, err := supplier.Create(ctx, map[string]interface{}{"id": "s1", "region": "emea"})
	require.NoError(t, err)

	rel, err := HasOneOf(rec, "account")
	require.NoError(t, err)

	built, err := rel.Build(map[string]interface{}{"id": "a1"})
	require.NoError(t, err)
	assert.Equal(t, "s1", built.Get("supplierId"))
	assert.Equal(t, "emea", built.Get("region"), "configured properties are copied onto the target")
	assert.True(t, built.IsNewRecord())

	require.NoError(t, built.Save(ctx))

	got, err := rel.Get(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a1", got.ID())
}

func TestHasOnePolymorphic(t *testing.T) {
	ctx := context.Background()
	registry, ds := newTestRegistry(t)
	post := mustDefine(t, registry, "Post", ds)
	photo := mustDefine(t, registry, "Photo", ds)
	image := mustDefine(t, registry, "Image", ds)

	_, err := DefineHasOne(post, image, Options{
		As:          "header",
		Polymorphic: &model.PolymorphicConfig{As: "imageable"},
	})
	require.NoError(t, err)
	_, err = DefineHasOne(photo, image, Options{
		As:          "header",
		Polymorphic: &model.PolymorphicConfig{As: "imageable"},
	})
	require.NoError(t, err)

	p, err := post.Create(ctx, map[string]interface{}{"id": "p1"})
	require.NoError(t, err)
	ph, err := photo.Create(ctx, map[string]interface{}{"id": "p1"})
	require.NoError(t, err)

	postRel, err := HasOneOf(p, "header")
	require.NoError(t, err)
	photoRel, err := HasOneOf(ph, "header")
	require.NoError(t, err)

	created, err := postRel.Create(ctx, map[string]interface{}{"id": "i1"})
	require.NoError(t, err)
	assert.Equal(t, "Post", created.Get("imageableType"))
	assert.Equal(t, "p1", created.Get("imageableId"))

	// the discriminator keeps records with equal owner ids apart
	got, err := photoRel.Get(ctx, true)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = postRel.Get(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "i1", got.ID())
}
