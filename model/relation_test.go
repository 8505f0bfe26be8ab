package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationKindMultiple(t *testing.T) {
	multiple := []RelationKind{HasMany, HasManyThrough, HasAndBelongsToMany, EmbedsMany, ReferencesMany}
	for _, k := range multiple {
		assert.True(t, k.Multiple(), string(k))
	}
	single := []RelationKind{BelongsTo, HasOne, EmbedsOne}
	for _, k := range single {
		assert.False(t, k.Multiple(), string(k))
	}
}

func TestAddRelationDuplicate(t *testing.T) {
	registry := NewRegistry()
	m, err := registry.Define("Order", newTestDS())
	require.NoError(t, err)

	rel := &Relation{Name: "customer", Kind: BelongsTo, ModelFrom: m}
	require.NoError(t, m.AddRelation(rel))
	require.Error(t, m.AddRelation(rel))
	require.Error(t, m.AddRelation(&Relation{Kind: BelongsTo, ModelFrom: m}), "a nameless relation is rejected")

	assert.Equal(t, []string{"customer"}, m.RelationNames())
}

func TestRelationMethods(t *testing.T) {
	registry := NewRegistry()
	m, err := registry.Define("Order", newTestDS())
	require.NoError(t, err)

	rel := &Relation{Name: "customer", Kind: BelongsTo, ModelFrom: m}
	rel.DefineMethod("b", func(ctx context.Context, rec *Record, args ...interface{}) (interface{}, error) {
		return "b", nil
	})
	rel.DefineMethod("a", func(ctx context.Context, rec *Record, args ...interface{}) (interface{}, error) {
		return "a", nil
	})

	fn, ok := rel.Method("a")
	require.True(t, ok)
	out, err := fn(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "a", out)

	_, ok = rel.Method("c")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, rel.MethodNames())
}

func throughFixture(t *testing.T) (*Model, *Model, *Model) {
	t.Helper()
	registry := NewRegistry()
	ds := newTestDS()
	physician, err := registry.Define("Physician", ds)
	require.NoError(t, err)
	patient, err := registry.Define("Patient", ds)
	require.NoError(t, err)
	appointment, err := registry.Define("Appointment", ds)
	require.NoError(t, err)
	return physician, patient, appointment
}

func TestThroughKeysFromBelongsTo(t *testing.T) {
	physician, patient, appointment := throughFixture(t)

	require.NoError(t, appointment.AddRelation(&Relation{
		Name: "physician", Kind: BelongsTo,
		ModelFrom: appointment, ModelTo: physician,
		KeyFrom: "physicianId", KeyTo: "id",
	}))
	require.NoError(t, appointment.AddRelation(&Relation{
		Name: "patient", Kind: BelongsTo,
		ModelFrom: appointment, ModelTo: patient,
		KeyFrom: "patientId", KeyTo: "id",
	}))

	rel := &Relation{
		Name: "patients", Kind: HasManyThrough,
		ModelFrom: physician, ModelTo: patient, ModelThrough: appointment,
		KeyFrom: "id", KeyTo: "physicianId", KeyThrough: "patientId",
	}

	fk1, fk2, err := rel.ThroughKeys()
	require.NoError(t, err)
	assert.Equal(t, "physicianId", fk1)
	assert.Equal(t, "patientId", fk2)
}

func TestThroughKeysFallbackWithoutBelongsTo(t *testing.T) {
	physician, patient, appointment := throughFixture(t)

	rel := &Relation{
		Name: "patients", Kind: HasManyThrough,
		ModelFrom: physician, ModelTo: patient, ModelThrough: appointment,
		KeyFrom: "id", KeyTo: "physicianId", KeyThrough: "patientId",
	}

	fk1, fk2, err := rel.ThroughKeys()
	require.NoError(t, err)
	assert.Equal(t, "physicianId", fk1)
	assert.Equal(t, "patientId", fk2)
}

func TestThroughKeysSelfReferential(t *testing.T) {
	registry := NewRegistry()
	ds := newTestDS()
	user, err := registry.Define("User", ds)
	require.NoError(t, err)
	follow, err := registry.Define("Follow", ds)
	require.NoError(t, err)

	require.NoError(t, follow.AddRelation(&Relation{
		Name: "follower", Kind: BelongsTo,
		ModelFrom: follow, ModelTo: user,
		KeyFrom: "followerId", KeyTo: "id",
	}))
	require.NoError(t, follow.AddRelation(&Relation{
		Name: "followee", Kind: BelongsTo,
		ModelFrom: follow, ModelTo: user,
		KeyFrom: "followeeId", KeyTo: "id",
	}))

	// KeyTo matching the first declared key keeps declaration order
	followees := &Relation{
		Name: "following", Kind: HasManyThrough,
		ModelFrom: user, ModelTo: user, ModelThrough: follow,
		KeyFrom: "id", KeyTo: "followerId", KeyThrough: "followeeId",
	}
	fk1, fk2, err := followees.ThroughKeys()
	require.NoError(t, err)
	assert.Equal(t, "followerId", fk1)
	assert.Equal(t, "followeeId", fk2)

	// otherwise the pair flips
	followers := &Relation{
		Name: "followers", Kind: HasManyThrough,
		ModelFrom: user, ModelTo: user, ModelThrough: follow,
		KeyFrom: "id", KeyTo: "followeeId", KeyThrough: "followerId",
	}
	fk1, fk2, err = followers.ThroughKeys()
	require.NoError(t, err)
	assert.Equal(t, "followeeId", fk1)
	assert.Equal(t, "followerId", fk2)
}

func TestThroughKeysSelfReferentialNeedsTwoKeys(t *testing.T) {
	registry := NewRegistry()
	ds := newTestDS()
	user, err := registry.Define("User", ds)
	require.NoError(t, err)
	follow, err := registry.Define("Follow", ds)
	require.NoError(t, err)

	rel := &Relation{
		Name: "following", Kind: HasManyThrough,
		ModelFrom: user, ModelTo: user, ModelThrough: follow,
		KeyFrom: "id", KeyTo: "followerId", KeyThrough: "followeeId",
	}
	_, _, err = rel.ThroughKeys()
	require.Error(t, err)
}

func TestThroughKeysPolymorphic(t *testing.T) {
	registry := NewRegistry()
	ds := newTestDS()
	picture, err := registry.Define("Picture", ds)
	require.NoError(t, err)
	employee, err := registry.Define("Employee", ds)
	require.NoError(t, err)
	link, err := registry.Define("PictureLink", ds)
	require.NoError(t, err)

	rel := &Relation{
		Name: "pictures", Kind: HasManyThrough,
		ModelFrom: employee, ModelTo: picture, ModelThrough: link,
		KeyFrom: "id", KeyTo: "imageableId", KeyThrough: "pictureId",
		Polymorphic: &PolymorphicConfig{
			As: "imageable", ForeignKey: "imageableId", Discriminator: "imageableType",
		},
	}
	fk1, fk2, err := rel.ThroughKeys()
	require.NoError(t, err)
	assert.Equal(t, "imageableId", fk1)
	assert.Equal(t, "pictureId", fk2)

	rel.Polymorphic.Invert = true
	rel.Polymorphic.ForeignKey = "pictureId"
	_, fk2, err = rel.ThroughKeys()
	require.NoError(t, err)
	assert.Equal(t, "pictureId", fk2)
}

func TestThroughKeysWithoutThroughModel(t *testing.T) {
	registry := NewRegistry()
	m, err := registry.Define("Order", newTestDS())
	require.NoError(t, err)

	rel := &Relation{Name: "x", Kind: HasMany, ModelFrom: m, ModelTo: m}
	_, _, err = rel.ThroughKeys()
	require.Error(t, err)
}
