package idl_test

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShardPhoenix/avrogen/internal/avro"
	"github.com/ShardPhoenix/avrogen/internal/idl"
)

func byName(defs []idl.Definition) map[string]avro.NamedSchema {
	out := map[string]avro.NamedSchema{}
	for _, d := range defs {
		out[d.FullName()] = d.Schema
	}
	return out
}

func names(defs []idl.Definition) []string {
	var out []string
	for _, d := range defs {
		out = append(out, d.FullName())
	}
	sort.Strings(out)
	return out
}

func TestParse_RecordsAndReferences(t *testing.T) {
	src := `
@namespace("ns")
protocol Simple {
  record A { string name; }
  record B { A a; }
}`
	defs, err := idl.Parse([]byte(src), "simple.avdl")
	require.NoError(t, err)
	assert.Equal(t, []string{"ns.A", "ns.B"}, names(defs))

	types := byName(defs)
	b := types["ns.B"].(*avro.RecordSchema)
	ref := b.Fields[0].Type.(*avro.RefSchema)
	assert.Equal(t, "ns.A", ref.FullName)
	assert.Same(t, types["ns.A"], ref.Target)
	for _, d := range defs {
		assert.Equal(t, "simple.avdl", d.Source)
	}
}

func TestParse_FullFeatureSet(t *testing.T) {
	src := `
/** The shop protocol. */
@namespace("shop")
protocol Shop {
  /** Card suits. */
  enum Suit { SPADES, HEARTS, DIAMONDS, CLUBS } = SPADES;

  fixed MD5(16);

  @namespace("shop.common")
  @aliases(["OldMoney"])
  record Money {
    decimal(9, 2) amount;
    string currency = "EUR";
  }

  @java-class("java.util.ArrayList")
  record Order {
    /** Order id. */
    uuid id;
    timestamp_ms createdAt;
    date day;
    time_ms at;
    local_timestamp_ms localAt;
    shop.common.Money total;
    array<shop.common.Money> lines = [];
    map<Suit> suits;
    union { null, string, MD5 } extra = null;
    string? note;
    string? label = "none";
    long @order("descending") @aliases(["seq"]) sequence = 1, other;
    @logicalType("timestamp-micros") long micros;
    Suit suit = "HEARTS";
  }

  error Failure { string message; }

  Order place(Order order) throws Failure;
  void ping() oneway;
}`
	defs, err := idl.Parse([]byte(src), "shop.avdl")
	require.NoError(t, err)
	assert.Equal(t, []string{"shop.Failure", "shop.MD5", "shop.Order", "shop.Suit", "shop.common.Money"}, names(defs))

	types := byName(defs)

	suit := types["shop.Suit"].(*avro.EnumSchema)
	assert.Equal(t, "Card suits.", suit.Doc)
	assert.Equal(t, "SPADES", suit.Default)
	assert.Len(t, suit.Symbols, 4)

	assert.Equal(t, 16, types["shop.MD5"].(*avro.FixedSchema).Size)

	money := types["shop.common.Money"].(*avro.RecordSchema)
	assert.Equal(t, []string{"OldMoney"}, money.Aliases)
	amount := money.Fields[0].Type.(*avro.PrimitiveSchema)
	assert.Equal(t, avro.Bytes, amount.Kind)
	assert.Equal(t, &avro.Logical{Name: "decimal", Precision: 9, Scale: 2}, amount.Logical)
	assert.Equal(t, `"EUR"`, string(money.Fields[1].Default))

	order := types["shop.Order"].(*avro.RecordSchema)
	assert.Equal(t, `"java.util.ArrayList"`, string(order.Props["java-class"]))
	fields := map[string]*avro.Field{}
	for _, f := range order.Fields {
		fields[f.Name] = f
	}
	assert.Equal(t, "Order id.", fields["id"].Doc)
	assert.Equal(t, "uuid", fields["id"].Type.(*avro.PrimitiveSchema).Logical.Name)
	assert.Equal(t, "timestamp-millis", fields["createdAt"].Type.(*avro.PrimitiveSchema).Logical.Name)
	assert.Equal(t, "date", fields["day"].Type.(*avro.PrimitiveSchema).Logical.Name)
	assert.Equal(t, "time-millis", fields["at"].Type.(*avro.PrimitiveSchema).Logical.Name)
	assert.Equal(t, "local-timestamp-millis", fields["localAt"].Type.(*avro.PrimitiveSchema).Logical.Name)

	assert.Same(t, money, fields["total"].Type.(*avro.RefSchema).Target)
	lines := fields["lines"].Type.(*avro.ArraySchema)
	assert.Same(t, money, lines.Items.(*avro.RefSchema).Target)
	assert.Equal(t, "[]", string(fields["lines"].Default))

	extra := fields["extra"].Type.(*avro.UnionSchema)
	require.Len(t, extra.Types, 3)
	assert.Equal(t, "null", string(fields["extra"].Default))

	note := fields["note"].Type.(*avro.UnionSchema)
	assert.Equal(t, avro.Null, note.Types[0].Type())
	label := fields["label"].Type.(*avro.UnionSchema)
	assert.Equal(t, avro.String, label.Types[0].Type())
	assert.Equal(t, avro.Null, label.Types[1].Type())

	assert.Equal(t, "descending", fields["sequence"].Order)
	assert.Equal(t, []string{"seq"}, fields["sequence"].Aliases)
	assert.Equal(t, "1", string(fields["sequence"].Default))
	assert.Nil(t, fields["other"].Default)
	assert.Equal(t, "timestamp-micros", fields["micros"].Type.(*avro.PrimitiveSchema).Logical.Name)

	assert.Equal(t, avro.Error, types["shop.Failure"].Type())
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"missing protocol":   `record A { string a; }`,
		"unterminated":       `protocol P { record A { string a; }`,
		"undefined name":     `protocol P { record A { Missing m; } }`,
		"duplicate field":    `protocol P { record A { string a; int a; } }`,
		"bad enum default":   `protocol P { enum E { X } = Y; }`,
		"bad character":      `protocol P { record A { string a# ; } }`,
		"unterminated str":   `protocol P { record A { string a = "x; } }`,
		"trailing tokens":    `protocol P { } extra`,
		"annotated ref":      `protocol P { record A { string a; } record B { @foo("x") A a; } }`,
		"unknown import":     `protocol P { import protocol "x.avpr"; }`,
		"missing import":     `protocol P { import idl "nope.avdl"; }`,
		"unterminated cmnt":  `protocol P { /* }`,
		"stray semicolon":    `protocol P { ; }`,
		"fixed without size": `protocol P { fixed F; }`,
	}
	dir := t.TempDir()
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := idl.Parse([]byte(src), filepath.Join(dir, "p.avdl"))
			var pe *idl.ParseError
			require.ErrorAs(t, err, &pe)
			assert.NotEmpty(t, pe.Error())
		})
	}
}

func TestParse_ErrorPosition(t *testing.T) {
	_, err := idl.Parse([]byte("protocol P {\n  record A {\n    Missing m;\n  }\n}"), "pos.avdl")
	var pe *idl.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Line)
	assert.Equal(t, 5, pe.Col)
	assert.Equal(t, "pos.avdl:3:5: undefined name: Missing", pe.Error())
}

func TestParseFile_Imports(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}
	common := write("common.avdl", `@namespace("ns") protocol Common { record A { string name; } }`)
	write("extra.avsc", `{"type": "record", "name": "Extra", "namespace": "ns", "fields": [{"name": "a", "type": "A"}]}`)
	main := write("main.avdl", `@namespace("ns") protocol Main {
  import idl "common.avdl";
  import idl "common.avdl";
  import schema "extra.avsc";
  record B { A a; Extra e; }
}`)

	defs, err := idl.ParseFile(main)
	require.NoError(t, err)
	assert.Equal(t, []string{"ns.A", "ns.B", "ns.Extra"}, names(defs))

	sources := map[string]string{}
	for _, d := range defs {
		sources[d.FullName()] = d.Source
	}
	assert.Equal(t, common, sources["ns.A"])
	assert.Equal(t, main, sources["ns.B"])
	assert.Equal(t, filepath.Join(dir, "extra.avsc"), sources["ns.Extra"])

	types := byName(defs)
	extra := types["ns.Extra"].(*avro.RecordSchema)
	assert.Same(t, types["ns.A"], extra.Fields[0].Type.(*avro.RefSchema).Target)
}

func TestParseFile_Missing(t *testing.T) {
	_, err := idl.ParseFile(filepath.Join(t.TempDir(), "missing.avdl"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_TypeNamespaceFallsBackToProtocol(t *testing.T) {
	src := `@namespace("ns")
protocol P {
  record Base { int n; }
  @namespace("other") record Shadow { string s; }
  @namespace("other") record Base { string s; }
  @namespace("other") record User { Base own; Shadow shadow; ns.Base outer; }
  @namespace("third") record Remote { Base base; }
}`
	defs, err := idl.Parse([]byte(src), "p.avdl")
	require.NoError(t, err)
	types := byName(defs)

	user := types["other.User"].(*avro.RecordSchema)
	assert.Equal(t, "other.Base", user.Fields[0].Type.(*avro.RefSchema).FullName)
	assert.Equal(t, "other.Shadow", user.Fields[1].Type.(*avro.RefSchema).FullName)
	assert.Equal(t, "ns.Base", user.Fields[2].Type.(*avro.RefSchema).FullName)

	// nothing named third.Base, so the protocol namespace applies
	remote := types["third.Remote"].(*avro.RecordSchema)
	ref := remote.Fields[0].Type.(*avro.RefSchema)
	assert.Equal(t, "ns.Base", ref.FullName)
	assert.Same(t, types["ns.Base"], ref.Target)
}
