package model

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NamingStrategy derives the conventional names the relation factories
// fall back to: plural model names, foreign keys, discriminator fields
// and join model names.
type NamingStrategy struct{}

// DefaultNaming is used wherever no strategy is supplied.
var DefaultNaming = NamingStrategy{}

var titleCaser = cases.Title(language.Und, cases.NoLower)

// Pluralize returns the plural form of name.
func (NamingStrategy) Pluralize(name string) string {
	return inflection.Plural(name)
}

// Singularize returns the singular form of name.
func (NamingStrategy) Singularize(name string) string {
	return inflection.Singular(name)
}

// Camelize turns "author profile" or "author_profile" into "AuthorProfile".
func (ns NamingStrategy) Camelize(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	})
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(titleCaser.String(part))
	}
	return b.String()
}

// LowerFirst lowers the first rune, turning a model name into its
// property-style form.
func (NamingStrategy) LowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// ForeignKeyName derives the default foreign key for base, e.g.
// "Customer" -> "customerId".
func (ns NamingStrategy) ForeignKeyName(base string) string {
	return ns.LowerFirst(ns.Camelize(base)) + "Id"
}

// DiscriminatorName derives the polymorphic type field for a selector,
// e.g. "commentable" -> "commentableType".
func (NamingStrategy) DiscriminatorName(as string) string {
	return as + "Type"
}

// PolymorphicKeyName derives the polymorphic id field for a selector,
// e.g. "commentable" -> "commentableId".
func (NamingStrategy) PolymorphicKeyName(as string) string {
	return as + "Id"
}

// JoinModelName concatenates both model names for an implicit join model.
func (NamingStrategy) JoinModelName(a, b string) string {
	return a + b
}
