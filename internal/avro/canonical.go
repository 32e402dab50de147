package avro

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

const indentUnit = "  "

type member struct {
	key string
	val any
}

// object keeps keys in insertion order.
type object []member

func (o *object) add(key string, val any) { *o = append(*o, member{key, val}) }

// MarshalIndent renders s as pretty-printed canonical schema JSON. A named
// type is written in full at its first occurrence and by full name after
// that; every other nested named type is expanded in place.
func MarshalIndent(s Schema) ([]byte, error) {
	return marshal(s, false)
}

func marshal(s Schema, structural bool) ([]byte, error) {
	b := &builder{seen: map[string]bool{}, structural: structural}
	tree, err := b.build(s, "")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeValue(&buf, tree, ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Equal reports deep structural equality of two schemas: kind, names, field
// order and types, defaults, symbols, sizes, logical types and properties.
// Doc strings and aliases are ignored.
func Equal(a, b Schema) bool {
	ab, err := marshal(a, true)
	if err != nil {
		return false
	}
	bb, err := marshal(b, true)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

type builder struct {
	seen map[string]bool
	// structural drops doc and aliases
	structural bool
}

func (b *builder) build(s Schema, enclosingNS string) (any, error) {
	switch n := s.(type) {
	case *PrimitiveSchema:
		if n.Logical == nil && len(n.Props) == 0 {
			return string(n.Kind), nil
		}
		o := object{}
		o.add("type", string(n.Kind))
		addLogical(&o, n.Logical)
		addProps(&o, n.Props)
		return o, nil
	case *RefSchema:
		if n.Target == nil {
			return n.FullName, nil
		}
		return b.build(n.Target, enclosingNS)
	case *RecordSchema:
		o, done := b.named(n, &n.Named, enclosingNS)
		if done {
			return n.FullName(), nil
		}
		fields := make([]any, 0, len(n.Fields))
		for _, f := range n.Fields {
			fo, err := b.field(f, n.Namespace)
			if err != nil {
				return nil, fmt.Errorf("field %s.%s: %w", n.FullName(), f.Name, err)
			}
			fields = append(fields, fo)
		}
		o.add("fields", fields)
		addProps(&o, n.Props)
		return o, nil
	case *EnumSchema:
		o, done := b.named(n, &n.Named, enclosingNS)
		if done {
			return n.FullName(), nil
		}
		symbols := make([]any, 0, len(n.Symbols))
		for _, sym := range n.Symbols {
			symbols = append(symbols, sym)
		}
		o.add("symbols", symbols)
		if n.Default != "" {
			o.add("default", n.Default)
		}
		addProps(&o, n.Props)
		return o, nil
	case *FixedSchema:
		o, done := b.named(n, &n.Named, enclosingNS)
		if done {
			return n.FullName(), nil
		}
		o.add("size", n.Size)
		addLogical(&o, n.Logical)
		addProps(&o, n.Props)
		return o, nil
	case *ArraySchema:
		items, err := b.build(n.Items, enclosingNS)
		if err != nil {
			return nil, err
		}
		o := object{}
		o.add("type", "array")
		o.add("items", items)
		addProps(&o, n.Props)
		return o, nil
	case *MapSchema:
		values, err := b.build(n.Values, enclosingNS)
		if err != nil {
			return nil, err
		}
		o := object{}
		o.add("type", "map")
		o.add("values", values)
		addProps(&o, n.Props)
		return o, nil
	case *UnionSchema:
		branches := make([]any, 0, len(n.Types))
		for _, t := range n.Types {
			v, err := b.build(t, enclosingNS)
			if err != nil {
				return nil, err
			}
			branches = append(branches, v)
		}
		return branches, nil
	case nil:
		return nil, fmt.Errorf("missing schema")
	default:
		return nil, fmt.Errorf("unsupported schema node %T", s)
	}
}

// named writes the naming header. It reports done when the type was already
// written in this document and must be referenced by name instead.
func (b *builder) named(s NamedSchema, n *Named, enclosingNS string) (object, bool) {
	full := n.FullName()
	if b.seen[full] {
		return nil, true
	}
	b.seen[full] = true

	o := object{}
	o.add("type", string(s.Type()))
	o.add("name", n.Name)
	if n.Namespace != "" || enclosingNS != "" {
		o.add("namespace", n.Namespace)
	}
	if b.structural {
		return o, false
	}
	if n.Doc != "" {
		o.add("doc", n.Doc)
	}
	if len(n.Aliases) > 0 {
		o.add("aliases", stringsToAny(n.Aliases))
	}
	return o, false
}

func (b *builder) field(f *Field, enclosingNS string) (object, error) {
	t, err := b.build(f.Type, enclosingNS)
	if err != nil {
		return nil, err
	}
	o := object{}
	o.add("name", f.Name)
	o.add("type", t)
	if f.Doc != "" && !b.structural {
		o.add("doc", f.Doc)
	}
	if f.Default != nil {
		o.add("default", f.Default)
	}
	if f.Order != "" {
		o.add("order", f.Order)
	}
	if len(f.Aliases) > 0 && !b.structural {
		o.add("aliases", stringsToAny(f.Aliases))
	}
	addProps(&o, f.Props)
	return o, nil
}

func addLogical(o *object, l *Logical) {
	if l == nil {
		return
	}
	o.add("logicalType", l.Name)
	if l.Name == "decimal" {
		o.add("precision", l.Precision)
		if l.Scale != 0 {
			o.add("scale", l.Scale)
		}
	}
}

func addProps(o *object, props Props) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o.add(k, props[k])
	}
}

func stringsToAny(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}

func writeValue(buf *bytes.Buffer, v any, indent string) error {
	switch val := v.(type) {
	case string:
		buf.WriteString(QuoteString(val))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case json.RawMessage:
		if err := json.Indent(buf, val, indent, indentUnit); err != nil {
			return fmt.Errorf("indent default value: %w", err)
		}
	case object:
		if len(val) == 0 {
			buf.WriteString("{}")
			return nil
		}
		inner := indent + indentUnit
		buf.WriteString("{\n")
		for i, m := range val {
			buf.WriteString(inner)
			buf.WriteString(QuoteString(m.key))
			buf.WriteString(" : ")
			if err := writeValue(buf, m.val, inner); err != nil {
				return err
			}
			if i < len(val)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString(indent)
		buf.WriteByte('}')
	case []any:
		if len(val) == 0 {
			buf.WriteString("[ ]")
			return nil
		}
		buf.WriteString("[ ")
		for i, e := range val {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := writeValue(buf, e, indent); err != nil {
				return err
			}
		}
		buf.WriteString(" ]")
	default:
		return fmt.Errorf("unexpected value %T", v)
	}
	return nil
}

// QuoteString encodes s as a JSON string without HTML escaping.
func QuoteString(s string) string {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(b.String(), "\n")
}
