package golang

import (
	"strings"

	"github.com/ShardPhoenix/avrogen/internal/avro"
)

const (
	importTime = "time"
	importBig  = "math/big"
)

// goType returns the Go type expression for s. Named types are referenced
// through idents, keyed by full name. Packages the expression needs are added
// to imports.
func goType(s avro.Schema, idents map[string]string, imports map[string]bool) string {
	switch n := s.(type) {
	case *avro.RefSchema:
		if target, ok := avro.Deref(n).(avro.NamedSchema); ok {
			return idents[target.Ident().FullName()]
		}
		return idents[n.FullName]
	case avro.NamedSchema:
		return idents[n.Ident().FullName()]
	case *avro.PrimitiveSchema:
		return primitiveType(n, imports)
	case *avro.ArraySchema:
		return "[]" + goType(n.Items, idents, imports)
	case *avro.MapSchema:
		return "map[string]" + goType(n.Values, idents, imports)
	case *avro.UnionSchema:
		return unionType(n, idents, imports)
	}
	return "any"
}

func primitiveType(p *avro.PrimitiveSchema, imports map[string]bool) string {
	if p.Logical != nil {
		switch p.Logical.Name {
		case "date", "timestamp-millis", "timestamp-micros", "local-timestamp-millis", "local-timestamp-micros":
			if p.Kind == avro.Int || p.Kind == avro.Long {
				imports[importTime] = true
				return "time.Time"
			}
		case "time-millis", "time-micros":
			if p.Kind == avro.Int || p.Kind == avro.Long {
				imports[importTime] = true
				return "time.Duration"
			}
		case "decimal":
			if p.Kind == avro.Bytes {
				imports[importBig] = true
				return "*big.Rat"
			}
		}
	}

	switch p.Kind {
	case avro.Boolean:
		return "bool"
	case avro.Int:
		return "int32"
	case avro.Long:
		return "int64"
	case avro.Float:
		return "float32"
	case avro.Double:
		return "float64"
	case avro.Bytes:
		return "[]byte"
	case avro.String:
		return "string"
	}
	return "any"
}

// unionType maps ["null", T] in either order to a nilable T and every other
// union to any.
func unionType(u *avro.UnionSchema, idents map[string]string, imports map[string]bool) string {
	if len(u.Types) != 2 {
		return "any"
	}
	var other avro.Schema
	nulls := 0
	for _, t := range u.Types {
		if t.Type() == avro.Null {
			nulls++
			continue
		}
		other = t
	}
	if nulls != 1 || other == nil {
		return "any"
	}
	inner := goType(other, idents, imports)
	if nilable(inner) {
		return inner
	}
	return "*" + inner
}

func nilable(t string) bool {
	return t == "any" || strings.HasPrefix(t, "*") || strings.HasPrefix(t, "[]") || strings.HasPrefix(t, "map[")
}
