package domain

import "fmt"

// LabelKind distinguishes the two user-owned attribute types attached to
// recipes. Both share storage shape and behaviour.
type LabelKind string

const (
	// LabelTag is a free-form category such as "Vegan" or "Breakfast".
	LabelTag LabelKind = "tag"

	// LabelIngredient is a named ingredient such as "Salt".
	LabelIngredient LabelKind = "ingredient"
)

// LabelKinds lists every kind, in a stable order.
var LabelKinds = []LabelKind{LabelTag, LabelIngredient}

// IsValid returns true if the kind is known.
func (k LabelKind) IsValid() bool {
	return k == LabelTag || k == LabelIngredient
}

// String implements fmt.Stringer.
func (k LabelKind) String() string {
	return string(k)
}

// Plural returns the collection name used in payloads and routes.
func (k LabelKind) Plural() string {
	switch k {
	case LabelTag:
		return "tags"
	case LabelIngredient:
		return "ingredients"
	default:
		panic(fmt.Sprintf("unknown label kind %q", string(k)))
	}
}

// Table returns the SQL table storing labels of this kind.
func (k LabelKind) Table() string {
	return k.Plural()
}

// JoinTable returns the SQL table linking recipes to labels of this kind.
func (k LabelKind) JoinTable() string {
	return "recipe_" + k.Plural()
}

// JoinColumn returns the label foreign-key column in JoinTable.
func (k LabelKind) JoinColumn() string {
	return string(k) + "_id"
}

// Label is a tag or an ingredient. Identity within an owner is its name;
// names are compared case-sensitively.
type Label struct {
	ID      int64     `json:"id"`
	OwnerID int64     `json:"-"`
	Kind    LabelKind `json:"-"`
	Name    string    `json:"name"`
}

// String returns the label name.
func (l *Label) String() string {
	return l.Name
}

// LabelRef is an embedded {name} reference inside a recipe payload.
type LabelRef struct {
	Name string `json:"name"`
}
