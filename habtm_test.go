package relate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelbind/relate/model"
	"github.com/modelbind/relate/query"
)

func TestHasAndBelongsToManyJoinModel(t *testing.T) {
	registry, ds := newTestRegistry(t)
	assembly := mustDefine(t, registry, "Assembly", ds)
	part := mustDefine(t, registry, "Part", ds)

	def, err := DefineHasAndBelongsToMany(assembly, part, Options{})
	require.NoError(t, err)

	assert.Equal(t, model.HasAndBelongsToMany, def.Kind)
	require.NotNil(t, def.ModelThrough)
	assert.Equal(t, "AssemblyPart", def.ModelThrough.Name())
	assert.Equal(t, "assemblyId", def.KeyTo)
	assert.Equal(t, "partId", def.KeyThrough)

	// the join model navigates back to both sides
	back, ok := def.ModelThrough.Relation("assembly")
	require.True(t, ok)
	assert.Equal(t, model.BelongsTo, back.Kind)
	assert.Equal(t, "assemblyId", back.KeyFrom)
	_, ok = def.ModelThrough.Relation("part")
	require.True(t, ok)

	// the inverse declaration reuses the same join model
	inverse, err := DefineHasAndBelongsToMany(part, assembly, Options{})
	require.NoError(t, err)
	assert.Same(t, def.ModelThrough, inverse.ModelThrough)
}

func TestHasAndBelongsToManyLinking(t *testing.T) {
	ctx := context.Background()
	registry, ds := newTestRegistry(t)
	assembly := mustDefine(t, registry, "Assembly", ds)
	part := mustDefine(t, registry, "Part", ds)

	_, err := DefineHasAndBelongsToMany(assembly, part, Options{})
	require.NoError(t, err)
	_, err = DefineHasAndBelongsToMany(part, assembly, Options{})
	require.NoError(t, err)

	engine, err := assembly.Create(ctx, map[string]interface{}{"id": "eng"})
	require.NoError(t, err)
	bolt, err := part.Create(ctx, map[string]interface{}{"id": "bolt"})
	require.NoError(t, err)

	parts, err := HasManyOf(engine, "parts")
	require.NoError(t, err)

	_, err = parts.Add(ctx, bolt.ID(), nil)
	require.NoError(t, err)

	// adding twice stays a single link
	_, err = parts.Add(ctx, bolt.ID(), nil)
	require.NoError(t, err)

	join, _ := registry.Lookup("AssemblyPart")
	n, err := join.Count(ctx, query.Where{"assemblyId": "eng", "partId": "bolt"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// visible from both sides through the shared join table
	assemblies, err := HasManyOf(bolt, "assemblies")
	require.NoError(t, err)
	list, err := assemblies.Get(ctx, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "eng", list[0].ID())

	require.NoError(t, parts.Remove(ctx, "bolt"))
	ok, err := assemblies.Exists(ctx, "eng")
	require.NoError(t, err)
	assert.False(t, ok)

	// the part itself is untouched
	_, err = part.FindByID(ctx, "bolt")
	require.NoError(t, err)
}
