package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamingInflection(t *testing.T) {
	n := DefaultNaming

	assert.Equal(t, "Books", n.Pluralize("Book"))
	assert.Equal(t, "Book", n.Singularize("Books"))
	assert.Equal(t, "People", n.Pluralize("Person"))
	assert.Equal(t, "Person", n.Singularize("People"))
}

func TestNamingLowerFirst(t *testing.T) {
	n := DefaultNaming

	assert.Equal(t, "customer", n.LowerFirst("Customer"))
	assert.Equal(t, "", n.LowerFirst(""))
	assert.Equal(t, "already", n.LowerFirst("already"))
}

func TestNamingForeignKeyName(t *testing.T) {
	n := DefaultNaming

	assert.Equal(t, "customerId", n.ForeignKeyName("Customer"))
	assert.Equal(t, "customerId", n.ForeignKeyName("customer"))
}

func TestNamingPolymorphic(t *testing.T) {
	n := DefaultNaming

	assert.Equal(t, "commentableId", n.PolymorphicKeyName("commentable"))
	assert.Equal(t, "commentableType", n.DiscriminatorName("commentable"))
}

func TestNamingJoinModelName(t *testing.T) {
	n := DefaultNaming

	assert.Equal(t, "AssemblyPart", n.JoinModelName("Assembly", "Part"))
}
