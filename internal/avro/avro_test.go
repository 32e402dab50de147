package avro_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShardPhoenix/avrogen/internal/avro"
)

func recordA() *avro.RecordSchema {
	return &avro.RecordSchema{
		Named:  avro.Named{Name: "A", Namespace: "ns"},
		Fields: []*avro.Field{{Name: "name", Type: &avro.PrimitiveSchema{Kind: avro.String}}},
	}
}

func recordB(a avro.NamedSchema) *avro.RecordSchema {
	return &avro.RecordSchema{
		Named:  avro.Named{Name: "B", Namespace: "ns"},
		Fields: []*avro.Field{{Name: "a", Type: &avro.RefSchema{FullName: "ns.A", Target: a}}},
	}
}

const canonicalB = `{
  "type" : "record",
  "name" : "B",
  "namespace" : "ns",
  "fields" : [ {
    "name" : "a",
    "type" : {
      "type" : "record",
      "name" : "A",
      "namespace" : "ns",
      "fields" : [ {
        "name" : "name",
        "type" : "string"
      } ]
    }
  } ]
}`

func TestMarshalIndent_ExpandsReferences(t *testing.T) {
	out, err := avro.MarshalIndent(recordB(recordA()))
	require.NoError(t, err)
	assert.Equal(t, canonicalB, string(out))
}

func TestMarshalIndent_RepeatedTypeWrittenByName(t *testing.T) {
	a := recordA()
	pair := &avro.RecordSchema{
		Named: avro.Named{Name: "Pair", Namespace: "ns"},
		Fields: []*avro.Field{
			{Name: "left", Type: &avro.RefSchema{FullName: "ns.A", Target: a}},
			{Name: "right", Type: &avro.RefSchema{FullName: "ns.A", Target: a}},
		},
	}
	out, err := avro.MarshalIndent(pair)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"type" : "ns.A"`)
}

func TestMarshalIndent_RecursiveType(t *testing.T) {
	node := &avro.RecordSchema{Named: avro.Named{Name: "Node", Namespace: "list"}}
	node.Fields = []*avro.Field{
		{Name: "value", Type: &avro.PrimitiveSchema{Kind: avro.Long}},
		{Name: "next", Type: &avro.UnionSchema{Types: []avro.Schema{
			&avro.PrimitiveSchema{Kind: avro.Null},
			&avro.RefSchema{FullName: "list.Node", Target: node},
		}}, Default: []byte("null")},
	}
	out, err := avro.MarshalIndent(node)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"type" : [ "null", "list.Node" ]`)

	parsed, err := avro.Parse(out)
	require.NoError(t, err)
	assert.True(t, avro.Equal(node, parsed))
}

func TestParse_RoundTrip(t *testing.T) {
	parsed, err := avro.Parse([]byte(canonicalB))
	require.NoError(t, err)
	assert.True(t, avro.Equal(recordB(recordA()), parsed))

	named := avro.NamedTypes(parsed)
	require.Len(t, named, 2)
	assert.Equal(t, "ns.B", named[0].Ident().FullName())
	assert.Equal(t, "ns.A", named[1].Ident().FullName())
}

func TestParse_AllKinds(t *testing.T) {
	doc := `{
	  "type": "record", "name": "Everything", "namespace": "x.y", "doc": "all of it",
	  "java-class": "x.Y",
	  "fields": [
	    {"name": "flag", "type": "boolean", "default": true},
	    {"name": "when", "type": {"type": "long", "logicalType": "timestamp-millis"}},
	    {"name": "amount", "type": {"type": "bytes", "logicalType": "decimal", "precision": 9, "scale": 2}},
	    {"name": "suit", "type": {"type": "enum", "name": "Suit", "symbols": ["SPADES", "HEARTS"], "default": "SPADES"}},
	    {"name": "hash", "type": {"type": "fixed", "name": "MD5", "size": 16}},
	    {"name": "tags", "type": {"type": "array", "items": "string"}, "default": []},
	    {"name": "attrs", "type": {"type": "map", "values": "Suit"}},
	    {"name": "maybe", "type": ["null", "MD5"], "default": null, "order": "ignore", "aliases": ["perhaps"]}
	  ]
	}`
	s, err := avro.Parse([]byte(doc))
	require.NoError(t, err)

	rec, ok := s.(*avro.RecordSchema)
	require.True(t, ok)
	assert.Equal(t, "x.y.Everything", rec.FullName())
	assert.Equal(t, "all of it", rec.Doc)
	assert.Equal(t, `"x.Y"`, string(rec.Props["java-class"]))
	require.Len(t, rec.Fields, 8)

	assert.Equal(t, "true", string(rec.Fields[0].Default))
	when := rec.Fields[1].Type.(*avro.PrimitiveSchema)
	assert.Equal(t, "timestamp-millis", when.Logical.Name)
	amount := rec.Fields[2].Type.(*avro.PrimitiveSchema)
	assert.Equal(t, 9, amount.Logical.Precision)
	assert.Equal(t, 2, amount.Logical.Scale)

	suit := rec.Fields[3].Type.(*avro.EnumSchema)
	assert.Equal(t, "x.y.Suit", suit.FullName())
	assert.Equal(t, "SPADES", suit.Default)

	attrs := rec.Fields[6].Type.(*avro.MapSchema)
	ref := attrs.Values.(*avro.RefSchema)
	assert.Same(t, suit, ref.Target)

	maybe := rec.Fields[7]
	assert.Equal(t, "ignore", maybe.Order)
	assert.Equal(t, []string{"perhaps"}, maybe.Aliases)
	assert.Equal(t, avro.Fixed, avro.Deref(maybe.Type.(*avro.UnionSchema).Types[1]).Type())

	out, err := avro.MarshalIndent(s)
	require.NoError(t, err)
	again, err := avro.Parse(out)
	require.NoError(t, err)
	assert.True(t, avro.Equal(s, again))
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"malformed":       `{"type": "record"`,
		"no name":         `{"type": "record", "fields": []}`,
		"no fields":       `{"type": "record", "name": "R"}`,
		"duplicate field": `{"type": "record", "name": "R", "fields": [{"name": "a", "type": "int"}, {"name": "a", "type": "int"}]}`,
		"nested union":    `["null", ["int", "long"]]`,
		"no items":        `{"type": "array"}`,
		"no size":         `{"type": "fixed", "name": "F"}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := avro.Parse([]byte(doc))
			var pe *avro.ParseError
			require.ErrorAs(t, err, &pe)
		})
	}
}

func TestParse_UnresolvedName(t *testing.T) {
	_, err := avro.Parse([]byte(`{"type": "record", "name": "R", "namespace": "ns", "fields": [{"name": "o", "type": "Other"}]}`))
	var ue *avro.UnresolvedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, []string{"ns.Other"}, ue.Names)
}

func TestParse_RedefinitionInDocument(t *testing.T) {
	doc := `{"type": "record", "name": "R", "fields": [
	  {"name": "a", "type": {"type": "enum", "name": "E", "symbols": ["X"]}},
	  {"name": "b", "type": {"type": "enum", "name": "E", "symbols": ["Y"]}}
	]}`
	_, err := avro.Parse([]byte(doc))
	var re *avro.RedefinitionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "E", re.Name)
}

func TestRegistry_Define(t *testing.T) {
	reg := avro.NewRegistry()
	require.NoError(t, reg.Define(recordA(), "one.avsc"))
	require.NoError(t, reg.Define(recordA(), "two.avsc"))

	changed := recordA()
	changed.Fields[0].Type = &avro.PrimitiveSchema{Kind: avro.Int}
	err := reg.Define(changed, "three.avsc")
	var re *avro.RedefinitionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, []string{"one.avsc", "three.avsc"}, re.Sources)
	_, ok := reg.Lookup("ns.A")
	assert.True(t, ok)
}

func writeSchemas(t *testing.T, files map[string]string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"b.avsc", "a.avsc", "c.avsc"} {
		content, ok := files[name]
		if !ok {
			continue
		}
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		paths = append(paths, path)
	}
	return paths
}

// b.avsc refers to ns.A by name; a.avsc defines it. b is listed first so
// resolution needs a second pass.
var crossFile = map[string]string{
	"a.avsc": `{"type": "record", "name": "A", "namespace": "ns", "fields": [{"name": "name", "type": "string"}]}`,
	"b.avsc": `{"type": "record", "name": "B", "namespace": "ns", "fields": [{"name": "a", "type": "A"}]}`,
}

func TestParseFiles_MultiPassResolvesSiblings(t *testing.T) {
	paths := writeSchemas(t, crossFile)

	defs, err := avro.ParseFiles(paths, avro.MultiPass)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, paths[0], defs[0].Source)

	b := defs[0].Schema.(*avro.RecordSchema)
	ref := b.Fields[0].Type.(*avro.RefSchema)
	require.NotNil(t, ref.Target)
	assert.Same(t, defs[1].Schema, ref.Target)
}

func TestParseFiles_SinglePassRejectsSiblingReference(t *testing.T) {
	paths := writeSchemas(t, crossFile)

	_, err := avro.ParseFiles(paths, avro.SinglePass)
	var ue *avro.UnresolvedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, []string{"ns.A"}, ue.Names)
}

func TestParseFiles_SinglePassAcceptsRepeatedTypes(t *testing.T) {
	paths := writeSchemas(t, map[string]string{
		"a.avsc": `{"type": "record", "name": "A", "namespace": "ns", "fields": [{"name": "name", "type": "string"}]}`,
		"b.avsc": canonicalB,
	})
	defs, err := avro.ParseFiles(paths, avro.SinglePass)
	require.NoError(t, err)
	require.Len(t, defs, 2)
}

func TestParseFiles_MultiPassReportsMissing(t *testing.T) {
	paths := writeSchemas(t, map[string]string{
		"b.avsc": crossFile["b.avsc"],
		"c.avsc": `{"type": "record", "name": "C", "fields": [{"name": "z", "type": "Zed"}]}`,
	})
	_, err := avro.ParseFiles(paths, avro.MultiPass)
	var ue *avro.UnresolvedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, []string{"Zed", "ns.A"}, ue.Names)
	assert.Len(t, ue.Sources, 2)
}

func TestParseFiles_MultiPassConflict(t *testing.T) {
	paths := writeSchemas(t, map[string]string{
		"a.avsc": `{"type": "record", "name": "A", "namespace": "ns", "fields": [{"name": "name", "type": "string"}]}`,
		"b.avsc": `{"type": "record", "name": "A", "namespace": "ns", "fields": [{"name": "name", "type": "int"}]}`,
	})
	_, err := avro.ParseFiles(paths, avro.MultiPass)
	var re *avro.RedefinitionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "ns.A", re.Name)
}

func TestParseFiles_MissingFile(t *testing.T) {
	_, err := avro.ParseFiles([]string{filepath.Join(t.TempDir(), "nope.avsc")}, avro.MultiPass)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "single-pass", avro.SinglePass.String())
	assert.Equal(t, "multi-pass", avro.MultiPass.String())
}

func TestEqual_IgnoresDocAndAliases(t *testing.T) {
	documented := recordA()
	documented.Doc = "a person"
	documented.Aliases = []string{"ns.Person"}
	documented.Fields[0].Doc = "full name"
	documented.Fields[0].Aliases = []string{"fullName"}

	assert.True(t, avro.Equal(recordA(), documented))
	assert.True(t, avro.Equal(recordB(recordA()), recordB(documented)))

	out, err := avro.MarshalIndent(documented)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"doc" : "a person"`)
	assert.Contains(t, string(out), `"aliases" : [ "fullName" ]`)

	renamed := recordA()
	renamed.Fields[0].Name = "title"
	assert.False(t, avro.Equal(recordA(), renamed))

	withProp := recordA()
	withProp.Props = avro.Props{"java-class": []byte(`"x.A"`)}
	assert.False(t, avro.Equal(recordA(), withProp))
}

func TestParseFiles_DocOnlyDifferencesAreNotRedefinitions(t *testing.T) {
	paths := writeSchemas(t, map[string]string{
		"a.avsc": `{"type": "record", "name": "A", "namespace": "ns", "doc": "first", "fields": [{"name": "name", "type": "string"}]}`,
		"b.avsc": `{"type": "record", "name": "A", "namespace": "ns", "doc": "second", "fields": [{"name": "name", "type": "string", "aliases": ["old"]}]}`,
	})
	for _, mode := range []avro.Mode{avro.MultiPass, avro.SinglePass} {
		t.Run(mode.String(), func(t *testing.T) {
			defs, err := avro.ParseFiles(paths, mode)
			require.NoError(t, err)
			assert.Len(t, defs, 2)
		})
	}
}
