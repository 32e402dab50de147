// Package idl parses Avro IDL protocol files into named schema definitions.
package idl

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/ShardPhoenix/avrogen/internal/avro"
)

// Definition is a named type together with the IDL file that declared it.
type Definition struct {
	Schema avro.NamedSchema
	Source string
}

// FullName returns the identity key of the definition.
func (d Definition) FullName() string { return d.Schema.Ident().FullName() }

// ParseError reports malformed IDL.
type ParseError struct {
	Source string
	Line   int
	Col    int
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", e.Source, e.Msg)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.Source, e.Line, e.Col, e.Msg)
}

// ParseFile parses the IDL protocol at path. Files pulled in with
// "import idl" and "import schema" contribute their definitions, which keep
// the imported file as their source.
func ParseFile(path string) ([]Definition, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(src, path)
}

// Parse parses IDL source text. source names the file for error messages and
// is the base for relative imports.
func Parse(src []byte, source string) ([]Definition, error) {
	u := &unit{
		names:   make(map[string]avro.NamedSchema),
		visited: make(map[string]bool),
	}
	if abs, err := filepath.Abs(source); err == nil {
		u.visited[abs] = true
	}
	if err := u.parseSource(string(src), source); err != nil {
		return nil, err
	}
	if err := u.resolve(); err != nil {
		return nil, err
	}
	return u.defs, nil
}

// unit accumulates the definitions of one IDL file and its imports.
type unit struct {
	names   map[string]avro.NamedSchema
	defs    []Definition
	refs    []pendingRef
	visited map[string]bool
}

type pendingRef struct {
	ref        *avro.RefSchema
	candidates []string
	tok        token
	source     string
}

func (u *unit) add(s avro.NamedSchema, source string) {
	full := s.Ident().FullName()
	if _, ok := u.names[full]; !ok {
		u.names[full] = s
	}
	u.defs = append(u.defs, Definition{Schema: s, Source: source})
}

func (u *unit) resolve() error {
	for _, pr := range u.refs {
		for _, c := range pr.candidates {
			if target, ok := u.names[c]; ok {
				pr.ref.FullName = c
				pr.ref.Target = target
				break
			}
		}
		if pr.ref.Target == nil {
			return &ParseError{Source: pr.source, Line: pr.tok.line, Col: pr.tok.col,
				Msg: fmt.Sprintf("undefined name: %s", pr.ref.FullName)}
		}
	}
	return nil
}

func (u *unit) parseSource(src, source string) error {
	toks, err := tokenize(src, source)
	if err != nil {
		return err
	}
	p := &parser{unit: u, toks: toks, source: source}
	return p.protocol()
}

type annotation struct {
	name  string
	value json.RawMessage
	tok   token
}

type parser struct {
	unit      *unit
	toks      []token
	pos       int
	source    string
	namespace string // protocol namespace
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &ParseError{Source: p.source, Line: t.line, Col: t.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) isKeyword(s string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == s
}

func (p *parser) accept(s string) bool {
	if p.isPunct(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(s string) error {
	t := p.next()
	if t.kind != tokPunct || t.text != s {
		return p.errorf(t, "expected %q, found %s", s, t)
	}
	return nil
}

func (p *parser) expectKeyword(s string) error {
	t := p.next()
	if t.kind != tokIdent || t.text != s {
		return p.errorf(t, "expected %q, found %s", s, t)
	}
	return nil
}

func (p *parser) ident() (token, error) {
	t := p.next()
	if t.kind != tokIdent {
		return t, p.errorf(t, "expected identifier, found %s", t)
	}
	return t, nil
}

func (p *parser) integer() (int, error) {
	t := p.next()
	if t.kind != tokNumber {
		return 0, p.errorf(t, "expected integer, found %s", t)
	}
	n, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, p.errorf(t, "invalid integer %s", t.text)
	}
	return n, nil
}

func (p *parser) protocol() error {
	annots, err := p.annotations()
	if err != nil {
		return err
	}
	if err := p.expectKeyword("protocol"); err != nil {
		return err
	}
	if _, err := p.ident(); err != nil {
		return err
	}
	for _, a := range annots {
		if a.name == "namespace" {
			if p.namespace, err = stringValue(a); err != nil {
				return p.errorf(a.tok, "%v", err)
			}
		}
	}
	if err := p.expect("{"); err != nil {
		return err
	}
	for !p.accept("}") {
		if p.peek().kind == tokEOF {
			return p.errorf(p.peek(), "unexpected end of file in protocol body")
		}
		if err := p.declaration(); err != nil {
			return err
		}
	}
	if t := p.peek(); t.kind != tokEOF {
		return p.errorf(t, "unexpected %s after protocol", t)
	}
	return nil
}

func (p *parser) declaration() error {
	doc := p.peek().doc
	annots, err := p.annotations()
	if err != nil {
		return err
	}
	if doc == "" {
		doc = p.peek().doc
	}
	switch {
	case p.isKeyword("import"):
		return p.importDecl()
	case p.isKeyword("record"):
		return p.record(doc, annots, false)
	case p.isKeyword("error"):
		return p.record(doc, annots, true)
	case p.isKeyword("enum"):
		return p.enum(doc, annots)
	case p.isKeyword("fixed"):
		return p.fixed(doc, annots)
	default:
		return p.skipMessage()
	}
}

func (p *parser) annotations() ([]annotation, error) {
	var out []annotation
	for p.peek().kind == tokAnnotation {
		t := p.next()
		if err := p.expect("("); err != nil {
			return nil, err
		}
		v, err := p.jsonValue()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		out = append(out, annotation{name: t.text, value: v, tok: t})
	}
	return out, nil
}

func (p *parser) importDecl() error {
	p.next()
	kind, err := p.ident()
	if err != nil {
		return err
	}
	pathTok := p.next()
	if pathTok.kind != tokString {
		return p.errorf(pathTok, "expected import path, found %s", pathTok)
	}
	if err := p.expect(";"); err != nil {
		return err
	}
	path := pathTok.text
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(p.source), path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		if p.unit.visited[abs] {
			return nil
		}
		p.unit.visited[abs] = true
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return p.errorf(pathTok, "import %s: %v", pathTok.text, err)
	}
	switch kind.text {
	case "idl":
		return p.unit.parseSource(string(src), path)
	case "schema":
		return p.importSchema(src, path, pathTok)
	default:
		return p.errorf(kind, "unsupported import kind %q", kind.text)
	}
}

func (p *parser) importSchema(src []byte, path string, tok token) error {
	reg := avro.NewRegistry()
	for _, s := range p.unit.names {
		if err := reg.Define(s, p.source); err != nil {
			return p.errorf(tok, "%v", err)
		}
	}
	s, err := avro.ParseWith(src, path, reg)
	if err != nil {
		return p.errorf(tok, "import %s: %v", tok.text, err)
	}
	for _, n := range avro.NamedTypes(s) {
		p.unit.add(n, path)
	}
	return nil
}

// named builds the naming attributes shared by records, enums and fixed.
func (p *parser) named(doc string, annots []annotation) (avro.Named, avro.Props, error) {
	nameTok, err := p.ident()
	if err != nil {
		return avro.Named{}, nil, err
	}
	n := avro.Named{Namespace: p.namespace, Doc: doc}
	var props avro.Props
	for _, a := range annots {
		switch a.name {
		case "namespace":
			if n.Namespace, err = stringValue(a); err != nil {
				return avro.Named{}, nil, p.errorf(a.tok, "%v", err)
			}
		case "aliases":
			if err := json.Unmarshal(a.value, &n.Aliases); err != nil {
				return avro.Named{}, nil, p.errorf(a.tok, "@aliases must be a list of strings")
			}
		default:
			if props == nil {
				props = avro.Props{}
			}
			props[a.name] = a.value
		}
	}
	if space, simple := avro.SplitName(nameTok.text); space != "" {
		n.Namespace, n.Name = space, simple
	} else {
		n.Name = nameTok.text
	}
	return n, props, nil
}

func (p *parser) record(doc string, annots []annotation, isError bool) error {
	p.next()
	n, props, err := p.named(doc, annots)
	if err != nil {
		return err
	}
	rec := &avro.RecordSchema{Named: n, IsError: isError, Props: props}
	if err := p.expect("{"); err != nil {
		return err
	}
	seen := map[string]bool{}
	for !p.accept("}") {
		fields, err := p.fields(n.Namespace)
		if err != nil {
			return err
		}
		for _, f := range fields {
			if seen[f.Name] {
				return p.errorf(p.peek(), "record %s: duplicate field %s", n.FullName(), f.Name)
			}
			seen[f.Name] = true
			rec.Fields = append(rec.Fields, f)
		}
	}
	p.unit.add(rec, p.source)
	return nil
}

// fields parses "type name [= default] (, name [= default])* ;".
func (p *parser) fields(ns string) ([]*avro.Field, error) {
	typeDoc := p.peek().doc
	typeAnnots, err := p.annotations()
	if err != nil {
		return nil, err
	}
	if typeDoc == "" {
		typeDoc = p.peek().doc
	}
	typ, nullable, err := p.fieldType(ns, typeAnnots)
	if err != nil {
		return nil, err
	}

	var out []*avro.Field
	for {
		doc := p.peek().doc
		annots, err := p.annotations()
		if err != nil {
			return nil, err
		}
		if doc == "" {
			doc = p.peek().doc
		}
		if doc == "" {
			doc = typeDoc
		}
		nameTok, err := p.ident()
		if err != nil {
			return nil, err
		}
		f := &avro.Field{Name: nameTok.text, Doc: doc, Type: typ}
		for _, a := range annots {
			switch a.name {
			case "order":
				if f.Order, err = stringValue(a); err != nil {
					return nil, p.errorf(a.tok, "%v", err)
				}
			case "aliases":
				if err := json.Unmarshal(a.value, &f.Aliases); err != nil {
					return nil, p.errorf(a.tok, "@aliases must be a list of strings")
				}
			default:
				if f.Props == nil {
					f.Props = avro.Props{}
				}
				f.Props[a.name] = a.value
			}
		}
		if p.accept("=") {
			if f.Default, err = p.jsonValue(); err != nil {
				return nil, err
			}
			if nullable && string(f.Default) != "null" {
				f.Type = nonNullFirst(typ.(*avro.UnionSchema))
			}
		}
		out = append(out, f)
		if !p.accept(",") {
			break
		}
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	return out, nil
}

func nonNullFirst(u *avro.UnionSchema) *avro.UnionSchema {
	return &avro.UnionSchema{Types: []avro.Schema{u.Types[1], u.Types[0]}}
}

var logicalKeywords = map[string]struct {
	kind    avro.Type
	logical string
}{
	"date":               {avro.Int, "date"},
	"time_ms":            {avro.Int, "time-millis"},
	"timestamp_ms":       {avro.Long, "timestamp-millis"},
	"local_timestamp_ms": {avro.Long, "local-timestamp-millis"},
	"uuid":               {avro.String, "uuid"},
}

// fieldType parses a type expression. nullable reports the "T?" shorthand.
func (p *parser) fieldType(ns string, annots []annotation) (avro.Schema, bool, error) {
	t, err := p.ident()
	if err != nil {
		return nil, false, err
	}
	var s avro.Schema
	switch t.text {
	case "array", "map":
		if err := p.expect("<"); err != nil {
			return nil, false, err
		}
		inner, err := p.typeWithAnnotations(ns)
		if err != nil {
			return nil, false, err
		}
		if err := p.expect(">"); err != nil {
			return nil, false, err
		}
		if t.text == "array" {
			s = &avro.ArraySchema{Items: inner}
		} else {
			s = &avro.MapSchema{Values: inner}
		}
	case "union":
		if err := p.expect("{"); err != nil {
			return nil, false, err
		}
		u := &avro.UnionSchema{}
		for {
			branch, err := p.typeWithAnnotations(ns)
			if err != nil {
				return nil, false, err
			}
			u.Types = append(u.Types, branch)
			if !p.accept(",") {
				break
			}
		}
		if err := p.expect("}"); err != nil {
			return nil, false, err
		}
		s = u
	case "decimal":
		if err := p.expect("("); err != nil {
			return nil, false, err
		}
		precision, err := p.integer()
		if err != nil {
			return nil, false, err
		}
		scale := 0
		if p.accept(",") {
			if scale, err = p.integer(); err != nil {
				return nil, false, err
			}
		}
		if err := p.expect(")"); err != nil {
			return nil, false, err
		}
		s = &avro.PrimitiveSchema{Kind: avro.Bytes, Logical: &avro.Logical{Name: "decimal", Precision: precision, Scale: scale}}
	case "void":
		s = &avro.PrimitiveSchema{Kind: avro.Null}
	default:
		if lk, ok := logicalKeywords[t.text]; ok {
			s = &avro.PrimitiveSchema{Kind: lk.kind, Logical: &avro.Logical{Name: lk.logical}}
		} else if avro.IsPrimitive(t.text) {
			s = &avro.PrimitiveSchema{Kind: avro.Type(t.text)}
		} else {
			s = p.reference(t, ns)
		}
	}

	if err := p.applyTypeAnnotations(s, annots); err != nil {
		return nil, false, err
	}
	if p.accept("?") {
		return &avro.UnionSchema{Types: []avro.Schema{&avro.PrimitiveSchema{Kind: avro.Null}, s}}, true, nil
	}
	return s, false, nil
}

func (p *parser) typeWithAnnotations(ns string) (avro.Schema, error) {
	annots, err := p.annotations()
	if err != nil {
		return nil, err
	}
	s, _, err := p.fieldType(ns, annots)
	return s, err
}

func (p *parser) applyTypeAnnotations(s avro.Schema, annots []annotation) error {
	if len(annots) == 0 {
		return nil
	}
	var props *avro.Props
	var logical **avro.Logical
	switch n := s.(type) {
	case *avro.PrimitiveSchema:
		props, logical = &n.Props, &n.Logical
	case *avro.ArraySchema:
		props = &n.Props
	case *avro.MapSchema:
		props = &n.Props
	default:
		return p.errorf(annots[0].tok, "annotations are not allowed on %s types", s.Type())
	}
	for _, a := range annots {
		if logical != nil {
			switch a.name {
			case "logicalType":
				name, err := stringValue(a)
				if err != nil {
					return p.errorf(a.tok, "%v", err)
				}
				if *logical == nil {
					*logical = &avro.Logical{}
				}
				(*logical).Name = name
				continue
			case "precision", "scale":
				n, err := strconv.Atoi(string(a.value))
				if err != nil {
					return p.errorf(a.tok, "@%s must be an integer", a.name)
				}
				if *logical == nil {
					*logical = &avro.Logical{}
				}
				if a.name == "precision" {
					(*logical).Precision = n
				} else {
					(*logical).Scale = n
				}
				continue
			}
		}
		if *props == nil {
			*props = avro.Props{}
		}
		(*props)[a.name] = a.value
	}
	return nil
}

// reference records a by-name type use. Unqualified names are looked up in
// the enclosing type's namespace, then the protocol namespace, then the
// null namespace once the whole unit has been read.
func (p *parser) reference(t token, ns string) *avro.RefSchema {
	var candidates []string
	seen := map[string]bool{}
	for _, c := range []string{avro.JoinName(ns, t.text), avro.JoinName(p.namespace, t.text), t.text} {
		if !seen[c] {
			seen[c] = true
			candidates = append(candidates, c)
		}
	}
	ref := &avro.RefSchema{FullName: candidates[0]}
	p.unit.refs = append(p.unit.refs, pendingRef{ref: ref, candidates: candidates, tok: t, source: p.source})
	return ref
}

func (p *parser) enum(doc string, annots []annotation) error {
	p.next()
	n, props, err := p.named(doc, annots)
	if err != nil {
		return err
	}
	e := &avro.EnumSchema{Named: n, Props: props}
	if err := p.expect("{"); err != nil {
		return err
	}
	seen := map[string]bool{}
	for !p.isPunct("}") {
		sym, err := p.ident()
		if err != nil {
			return err
		}
		if seen[sym.text] {
			return p.errorf(sym, "enum %s: duplicate symbol %s", n.FullName(), sym.text)
		}
		seen[sym.text] = true
		e.Symbols = append(e.Symbols, sym.text)
		if !p.accept(",") {
			break
		}
	}
	if err := p.expect("}"); err != nil {
		return err
	}
	if p.accept("=") {
		def, err := p.ident()
		if err != nil {
			return err
		}
		if !seen[def.text] {
			return p.errorf(def, "enum %s: default %s is not a symbol", n.FullName(), def.text)
		}
		e.Default = def.text
		if err := p.expect(";"); err != nil {
			return err
		}
	}
	p.unit.add(e, p.source)
	return nil
}

func (p *parser) fixed(doc string, annots []annotation) error {
	p.next()
	n, props, err := p.named(doc, annots)
	if err != nil {
		return err
	}
	if err := p.expect("("); err != nil {
		return err
	}
	size, err := p.integer()
	if err != nil {
		return err
	}
	if err := p.expect(")"); err != nil {
		return err
	}
	if err := p.expect(";"); err != nil {
		return err
	}
	f := &avro.FixedSchema{Named: n, Size: size, Props: props}
	if raw, ok := props["logicalType"]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			f.Logical = &avro.Logical{Name: name}
			delete(props, "logicalType")
		}
	}
	p.unit.add(f, p.source)
	return nil
}

// skipMessage consumes a protocol message declaration. Messages carry no
// type definitions of their own.
func (p *parser) skipMessage() error {
	start := p.peek()
	if start.kind == tokPunct && start.text == ";" {
		return p.errorf(start, "unexpected %s", start)
	}
	depth := 0
	for {
		t := p.next()
		switch {
		case t.kind == tokEOF:
			return p.errorf(start, "unterminated declaration")
		case t.kind == tokPunct && (t.text == "(" || t.text == "{" || t.text == "<"):
			depth++
		case t.kind == tokPunct && (t.text == ")" || t.text == "}" || t.text == ">"):
			depth--
			if depth < 0 {
				return p.errorf(t, "unexpected %s", t)
			}
		case t.kind == tokPunct && t.text == ";" && depth == 0:
			return nil
		}
	}
}

// jsonValue parses a JSON literal (used by defaults and annotations) and
// returns it in compact form.
func (p *parser) jsonValue() (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := p.writeJSON(&buf); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}

func (p *parser) writeJSON(buf *bytes.Buffer) error {
	t := p.next()
	switch {
	case t.kind == tokString:
		buf.WriteString(avro.QuoteString(t.text))
	case t.kind == tokNumber:
		if !json.Valid([]byte(t.text)) {
			return p.errorf(t, "invalid number %s", t.text)
		}
		buf.WriteString(t.text)
	case t.kind == tokIdent && (t.text == "true" || t.text == "false" || t.text == "null"):
		buf.WriteString(t.text)
	case t.kind == tokPunct && t.text == "[":
		buf.WriteByte('[')
		for i := 0; !p.accept("]"); i++ {
			if i > 0 {
				if err := p.expect(","); err != nil {
					return err
				}
			}
			if err := p.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case t.kind == tokPunct && t.text == "{":
		buf.WriteByte('{')
		for i := 0; !p.accept("}"); i++ {
			if i > 0 {
				if err := p.expect(","); err != nil {
					return err
				}
			}
			key := p.next()
			if key.kind != tokString {
				return p.errorf(key, "expected object key, found %s", key)
			}
			if err := p.expect(":"); err != nil {
				return err
			}
			buf.WriteString(avro.QuoteString(key.text))
			buf.WriteByte(':')
			if err := p.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return p.errorf(t, "expected JSON value, found %s", t)
	}
	return nil
}

func stringValue(a annotation) (string, error) {
	var s string
	if err := json.Unmarshal(a.value, &s); err != nil {
		return "", fmt.Errorf("@%s must be a string", a.name)
	}
	return s, nil
}
