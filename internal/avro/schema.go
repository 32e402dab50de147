// Package avro holds the in-memory Avro schema model shared by the IDL
// compiler and the source generator, together with the canonical JSON
// writer and the schema document parser.
package avro

import (
	"strings"

	json "github.com/goccy/go-json"
)

// Type identifies the kind of a schema node.
type Type string

const (
	Null    Type = "null"
	Boolean Type = "boolean"
	Int     Type = "int"
	Long    Type = "long"
	Float   Type = "float"
	Double  Type = "double"
	Bytes   Type = "bytes"
	String  Type = "string"

	Record Type = "record"
	Error  Type = "error"
	Enum   Type = "enum"
	Fixed  Type = "fixed"
	Array  Type = "array"
	Map    Type = "map"
	Union  Type = "union"
	Ref    Type = "reference"
)

var primitives = map[Type]bool{
	Null: true, Boolean: true, Int: true, Long: true,
	Float: true, Double: true, Bytes: true, String: true,
}

// IsPrimitive reports whether name is one of the Avro primitive type names.
func IsPrimitive(name string) bool { return primitives[Type(name)] }

// Props holds attributes that are not part of the Avro specification
// (e.g. "java-class"). Values are raw JSON.
type Props map[string]json.RawMessage

// Schema is any node of a schema tree.
type Schema interface {
	Type() Type
}

// NamedSchema is a record, error, enum or fixed definition.
type NamedSchema interface {
	Schema
	Ident() *Named
}

// Named carries the naming attributes of a named schema.
type Named struct {
	Name      string
	Namespace string
	Doc       string
	Aliases   []string
}

func (n *Named) Ident() *Named { return n }

// FullName returns namespace + "." + name, or just the name for the null namespace.
func (n *Named) FullName() string {
	return JoinName(n.Namespace, n.Name)
}

// JoinName qualifies name with namespace unless name is already qualified.
func JoinName(namespace, name string) string {
	if namespace == "" || strings.Contains(name, ".") {
		return name
	}
	return namespace + "." + name
}

// SplitName splits a full name into namespace and simple name.
func SplitName(full string) (namespace, name string) {
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		return full[:i], full[i+1:]
	}
	return "", full
}

// Logical annotates a primitive or fixed schema with a logical type.
type Logical struct {
	Name      string
	Precision int
	Scale     int
}

type PrimitiveSchema struct {
	Kind    Type
	Logical *Logical
	Props   Props
}

func (s *PrimitiveSchema) Type() Type { return s.Kind }

// Field is a single record field.
type Field struct {
	Name    string
	Doc     string
	Type    Schema
	Default json.RawMessage // nil when the field has no default
	Order   string
	Aliases []string
	Props   Props
}

type RecordSchema struct {
	Named
	Fields  []*Field
	IsError bool
	Props   Props
}

func (s *RecordSchema) Type() Type {
	if s.IsError {
		return Error
	}
	return Record
}

type EnumSchema struct {
	Named
	Symbols []string
	Default string
	Props   Props
}

func (s *EnumSchema) Type() Type { return Enum }

type FixedSchema struct {
	Named
	Size    int
	Logical *Logical
	Props   Props
}

func (s *FixedSchema) Type() Type { return Fixed }

type ArraySchema struct {
	Items Schema
	Props Props
}

func (s *ArraySchema) Type() Type { return Array }

type MapSchema struct {
	Values Schema
	Props  Props
}

func (s *MapSchema) Type() Type { return Map }

type UnionSchema struct {
	Types []Schema
}

func (s *UnionSchema) Type() Type { return Union }

// RefSchema is a by-name use of a named schema. Target is nil until the
// name has been resolved.
type RefSchema struct {
	FullName string
	Target   NamedSchema
}

func (s *RefSchema) Type() Type { return Ref }

// Deref follows resolved references. Unresolved references are returned as is.
func Deref(s Schema) Schema {
	for {
		ref, ok := s.(*RefSchema)
		if !ok || ref.Target == nil {
			return s
		}
		s = ref.Target
	}
}

// IsRecord reports whether s is a record or error definition.
func IsRecord(s Schema) bool {
	t := s.Type()
	return t == Record || t == Error
}

// Walk visits s and its children depth first. References are visited but not
// followed. Returning false from fn skips the children of the current node.
func Walk(s Schema, fn func(Schema) bool) {
	if s == nil || !fn(s) {
		return
	}
	switch n := s.(type) {
	case *RecordSchema:
		for _, f := range n.Fields {
			Walk(f.Type, fn)
		}
	case *ArraySchema:
		Walk(n.Items, fn)
	case *MapSchema:
		Walk(n.Values, fn)
	case *UnionSchema:
		for _, t := range n.Types {
			Walk(t, fn)
		}
	}
}

// NamedTypes returns the named schemas defined inline within s, s included,
// in definition order.
func NamedTypes(s Schema) []NamedSchema {
	var out []NamedSchema
	Walk(s, func(n Schema) bool {
		if named, ok := n.(NamedSchema); ok {
			out = append(out, named)
		}
		return true
	})
	return out
}
