package avro

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	json "github.com/goccy/go-json"
)

// Mode selects how named references between schema documents are resolved.
type Mode int

const (
	// MultiPass resolves named references against every document parsed
	// together, re-parsing documents until no further names resolve.
	MultiPass Mode = iota
	// SinglePass requires each document to define every type it uses.
	SinglePass
)

func (m Mode) String() string {
	switch m {
	case SinglePass:
		return "single-pass"
	case MultiPass:
		return "multi-pass"
	default:
		return "unknown"
	}
}

// Definition is the top-level schema of one document.
type Definition struct {
	Schema Schema
	Source string
}

// Registry maps full names to their definitions.
type Registry struct {
	types   map[string]NamedSchema
	sources map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		types:   make(map[string]NamedSchema),
		sources: make(map[string]string),
	}
}

func (r *Registry) Lookup(fullName string) (NamedSchema, bool) {
	s, ok := r.types[fullName]
	return s, ok
}

// Define adds s under its full name. Redefining a name is allowed only with
// a structurally equal schema.
func (r *Registry) Define(s NamedSchema, source string) error {
	full := s.Ident().FullName()
	if prev, ok := r.types[full]; ok {
		if !Equal(prev, s) {
			return &RedefinitionError{Name: full, Sources: []string{r.sources[full], source}}
		}
		return nil
	}
	r.types[full] = s
	r.sources[full] = source
	return nil
}

// Parse parses a self-contained schema document.
func Parse(data []byte) (Schema, error) {
	return ParseWith(data, "", NewRegistry())
}

// ParseWith parses one document, resolving names against reg. The named
// types the document defines are added to reg only when parsing succeeds.
func ParseWith(data []byte, source string, reg *Registry) (Schema, error) {
	p := &docParser{
		source: source,
		reg:    reg,
		local:  make(map[string]NamedSchema),
	}
	s, err := p.parse(json.RawMessage(data), "")
	if err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	if err := p.resolve(); err != nil {
		return nil, err
	}
	for _, d := range p.dupes {
		if !Equal(d.prev, d.next) {
			return nil, &RedefinitionError{Name: d.prev.Ident().FullName(), Sources: []string{source}}
		}
	}
	for _, n := range p.order {
		if err := reg.Define(n, source); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ParseFiles parses the schema files at paths with the given mode and returns
// one Definition per file, in the order of paths.
func ParseFiles(paths []string, mode Mode) ([]Definition, error) {
	data := make([][]byte, len(paths))
	for i, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		data[i] = b
	}

	defs := make([]Definition, len(paths))
	if mode == SinglePass {
		for i, path := range paths {
			s, err := ParseWith(data[i], path, NewRegistry())
			if err != nil {
				return nil, err
			}
			defs[i] = Definition{Schema: s, Source: path}
		}
		return defs, nil
	}

	reg := NewRegistry()
	pending := make([]int, len(paths))
	for i := range paths {
		pending[i] = i
	}
	for len(pending) > 0 {
		var deferred []int
		var unresolved []*UnresolvedError
		for _, i := range pending {
			s, err := ParseWith(data[i], paths[i], reg)
			var ue *UnresolvedError
			if errors.As(err, &ue) {
				deferred = append(deferred, i)
				unresolved = append(unresolved, ue)
				continue
			}
			if err != nil {
				return nil, err
			}
			defs[i] = Definition{Schema: s, Source: paths[i]}
		}
		if len(deferred) == len(pending) {
			return nil, mergeUnresolved(unresolved)
		}
		pending = deferred
	}
	return defs, nil
}

func mergeUnresolved(errs []*UnresolvedError) error {
	names := map[string]bool{}
	out := &UnresolvedError{}
	for _, e := range errs {
		for _, n := range e.Names {
			if !names[n] {
				names[n] = true
				out.Names = append(out.Names, n)
			}
		}
		out.Sources = append(out.Sources, e.Sources...)
	}
	sort.Strings(out.Names)
	return out
}

type dupe struct {
	prev NamedSchema
	next NamedSchema
}

type pendingRef struct {
	ref        *RefSchema
	candidates []string
}

type docParser struct {
	source string
	reg    *Registry
	local  map[string]NamedSchema
	order  []NamedSchema
	refs   []pendingRef
	dupes  []dupe
}

func (p *docParser) lookup(full string) NamedSchema {
	if s, ok := p.local[full]; ok {
		return s
	}
	if s, ok := p.reg.Lookup(full); ok {
		return s
	}
	return nil
}

// reference builds a by-name use of name seen inside namespace ns.
func (p *docParser) reference(name, ns string) *RefSchema {
	candidates := []string{JoinName(ns, name)}
	if candidates[0] != name {
		candidates = append(candidates, name)
	}
	ref := &RefSchema{FullName: candidates[0]}
	for _, c := range candidates {
		if target := p.lookup(c); target != nil {
			ref.FullName = c
			ref.Target = target
			return ref
		}
	}
	p.refs = append(p.refs, pendingRef{ref: ref, candidates: candidates})
	return ref
}

func (p *docParser) resolve() error {
	var missing []string
	seen := map[string]bool{}
	for _, pr := range p.refs {
		for _, c := range pr.candidates {
			if target := p.lookup(c); target != nil {
				pr.ref.FullName = c
				pr.ref.Target = target
				break
			}
		}
		if pr.ref.Target == nil && !seen[pr.ref.FullName] {
			seen[pr.ref.FullName] = true
			missing = append(missing, pr.ref.FullName)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &UnresolvedError{Names: missing, Sources: []string{p.source}}
	}
	return nil
}

var (
	recordKeys    = keySet("type", "name", "namespace", "doc", "aliases", "fields")
	fieldKeys     = keySet("name", "type", "doc", "default", "order", "aliases")
	enumKeys      = keySet("type", "name", "namespace", "doc", "aliases", "symbols", "default")
	fixedKeys     = keySet("type", "name", "namespace", "doc", "aliases", "size", "logicalType", "precision", "scale")
	primitiveKeys = keySet("type", "logicalType", "precision", "scale")
	arrayKeys     = keySet("type", "items")
	mapKeys       = keySet("type", "values")
)

func keySet(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

func (p *docParser) parse(raw json.RawMessage, ns string) (Schema, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty schema")
	}
	switch raw[0] {
	case '"':
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, err
		}
		if IsPrimitive(name) {
			return &PrimitiveSchema{Kind: Type(name)}, nil
		}
		return p.reference(name, ns), nil
	case '[':
		var branches []json.RawMessage
		if err := json.Unmarshal(raw, &branches); err != nil {
			return nil, err
		}
		u := &UnionSchema{}
		for _, b := range branches {
			s, err := p.parse(b, ns)
			if err != nil {
				return nil, err
			}
			if s.Type() == Union {
				return nil, errors.New("unions may not immediately contain other unions")
			}
			u.Types = append(u.Types, s)
		}
		return u, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		return p.parseObject(obj, ns)
	default:
		return nil, fmt.Errorf("unexpected schema %s", raw)
	}
}

func (p *docParser) parseObject(obj map[string]json.RawMessage, ns string) (Schema, error) {
	typ, err := stringAttr(obj, "type", true)
	if err != nil {
		return nil, err
	}
	switch Type(typ) {
	case Record, Error:
		return p.parseRecord(obj, ns, Type(typ) == Error)
	case Enum:
		return p.parseEnum(obj, ns)
	case Fixed:
		return p.parseFixed(obj, ns)
	case Array:
		items, ok := obj["items"]
		if !ok {
			return nil, errors.New("array has no items")
		}
		s, err := p.parse(items, ns)
		if err != nil {
			return nil, err
		}
		return &ArraySchema{Items: s, Props: extraProps(obj, arrayKeys)}, nil
	case Map:
		values, ok := obj["values"]
		if !ok {
			return nil, errors.New("map has no values")
		}
		s, err := p.parse(values, ns)
		if err != nil {
			return nil, err
		}
		return &MapSchema{Values: s, Props: extraProps(obj, mapKeys)}, nil
	}
	if IsPrimitive(typ) {
		logical, err := logicalAttr(obj)
		if err != nil {
			return nil, err
		}
		return &PrimitiveSchema{Kind: Type(typ), Logical: logical, Props: extraProps(obj, primitiveKeys)}, nil
	}
	return p.reference(typ, ns), nil
}

// named parses the naming attributes and returns the namespace that applies
// to the nested definitions.
func (p *docParser) named(obj map[string]json.RawMessage, ns string) (Named, error) {
	name, err := stringAttr(obj, "name", true)
	if err != nil {
		return Named{}, err
	}
	n := Named{Namespace: ns}
	if raw, ok := obj["namespace"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &n.Namespace); err != nil {
			return Named{}, fmt.Errorf("namespace: %w", err)
		}
	}
	n.Namespace, n.Name = splitQualified(n.Namespace, name)
	if n.Doc, err = stringAttr(obj, "doc", false); err != nil {
		return Named{}, err
	}
	if raw, ok := obj["aliases"]; ok {
		if err := json.Unmarshal(raw, &n.Aliases); err != nil {
			return Named{}, fmt.Errorf("aliases: %w", err)
		}
	}
	return n, nil
}

func splitQualified(ns, name string) (string, string) {
	if space, simple := SplitName(name); space != "" {
		return space, simple
	}
	return ns, name
}

// define registers s locally. The previously known definition is returned
// when the name already exists; the caller must then use it instead of s.
func (p *docParser) define(s NamedSchema) (NamedSchema, func()) {
	full := s.Ident().FullName()
	prev := p.lookup(full)
	saved, hadLocal := p.local[full]
	p.local[full] = s
	return prev, func() {
		if prev == nil {
			p.order = append(p.order, s)
			return
		}
		p.dupes = append(p.dupes, dupe{prev: prev, next: s})
		if hadLocal {
			p.local[full] = saved
		} else {
			delete(p.local, full)
		}
	}
}

func (p *docParser) parseRecord(obj map[string]json.RawMessage, ns string, isError bool) (Schema, error) {
	n, err := p.named(obj, ns)
	if err != nil {
		return nil, err
	}
	rec := &RecordSchema{Named: n, IsError: isError, Props: extraProps(obj, recordKeys)}
	prev, done := p.define(rec)

	rawFields, ok := obj["fields"]
	if !ok {
		return nil, fmt.Errorf("record %s has no fields", n.FullName())
	}
	var fields []map[string]json.RawMessage
	if err := json.Unmarshal(rawFields, &fields); err != nil {
		return nil, fmt.Errorf("record %s fields: %w", n.FullName(), err)
	}
	names := map[string]bool{}
	for _, fobj := range fields {
		f, err := p.parseField(fobj, n.Namespace)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", n.FullName(), err)
		}
		if names[f.Name] {
			return nil, fmt.Errorf("record %s: duplicate field %s", n.FullName(), f.Name)
		}
		names[f.Name] = true
		rec.Fields = append(rec.Fields, f)
	}
	done()
	if prev != nil {
		return prev, nil
	}
	return rec, nil
}

func (p *docParser) parseField(obj map[string]json.RawMessage, ns string) (*Field, error) {
	name, err := stringAttr(obj, "name", true)
	if err != nil {
		return nil, fmt.Errorf("field: %w", err)
	}
	rawType, ok := obj["type"]
	if !ok {
		return nil, fmt.Errorf("field %s has no type", name)
	}
	t, err := p.parse(rawType, ns)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	f := &Field{Name: name, Type: t, Props: extraProps(obj, fieldKeys)}
	if f.Doc, err = stringAttr(obj, "doc", false); err != nil {
		return nil, err
	}
	if f.Order, err = stringAttr(obj, "order", false); err != nil {
		return nil, err
	}
	if raw, ok := obj["aliases"]; ok {
		if err := json.Unmarshal(raw, &f.Aliases); err != nil {
			return nil, fmt.Errorf("field %s aliases: %w", name, err)
		}
	}
	if raw, ok := obj["default"]; ok {
		if f.Default, err = CompactJSON(raw); err != nil {
			return nil, fmt.Errorf("field %s default: %w", name, err)
		}
	}
	return f, nil
}

func (p *docParser) parseEnum(obj map[string]json.RawMessage, ns string) (Schema, error) {
	n, err := p.named(obj, ns)
	if err != nil {
		return nil, err
	}
	e := &EnumSchema{Named: n, Props: extraProps(obj, enumKeys)}
	raw, ok := obj["symbols"]
	if !ok {
		return nil, fmt.Errorf("enum %s has no symbols", n.FullName())
	}
	if err := json.Unmarshal(raw, &e.Symbols); err != nil {
		return nil, fmt.Errorf("enum %s symbols: %w", n.FullName(), err)
	}
	if e.Default, err = stringAttr(obj, "default", false); err != nil {
		return nil, err
	}
	prev, done := p.define(e)
	done()
	if prev != nil {
		return prev, nil
	}
	return e, nil
}

func (p *docParser) parseFixed(obj map[string]json.RawMessage, ns string) (Schema, error) {
	n, err := p.named(obj, ns)
	if err != nil {
		return nil, err
	}
	f := &FixedSchema{Named: n, Props: extraProps(obj, fixedKeys)}
	raw, ok := obj["size"]
	if !ok {
		return nil, fmt.Errorf("fixed %s has no size", n.FullName())
	}
	if err := json.Unmarshal(raw, &f.Size); err != nil {
		return nil, fmt.Errorf("fixed %s size: %w", n.FullName(), err)
	}
	if f.Logical, err = logicalAttr(obj); err != nil {
		return nil, err
	}
	prev, done := p.define(f)
	done()
	if prev != nil {
		return prev, nil
	}
	return f, nil
}

func logicalAttr(obj map[string]json.RawMessage) (*Logical, error) {
	name, err := stringAttr(obj, "logicalType", false)
	if err != nil || name == "" {
		return nil, err
	}
	l := &Logical{Name: name}
	if raw, ok := obj["precision"]; ok {
		if err := json.Unmarshal(raw, &l.Precision); err != nil {
			return nil, fmt.Errorf("precision: %w", err)
		}
	}
	if raw, ok := obj["scale"]; ok {
		if err := json.Unmarshal(raw, &l.Scale); err != nil {
			return nil, fmt.Errorf("scale: %w", err)
		}
	}
	return l, nil
}

func stringAttr(obj map[string]json.RawMessage, key string, required bool) (string, error) {
	raw, ok := obj[key]
	if !ok {
		if required {
			return "", fmt.Errorf("missing %q", key)
		}
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%q must be a string", key)
	}
	return s, nil
}

func extraProps(obj map[string]json.RawMessage, known map[string]bool) Props {
	var props Props
	for k, v := range obj {
		if known[k] {
			continue
		}
		c, err := CompactJSON(v)
		if err != nil {
			continue
		}
		if props == nil {
			props = Props{}
		}
		props[k] = c
	}
	return props
}

// CompactJSON returns raw without insignificant whitespace.
func CompactJSON(raw []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}
