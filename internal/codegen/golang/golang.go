// Package golang renders Avro schema definitions as Go source, one file per
// named type, all in a single package.
package golang

import (
	"bytes"
	"fmt"
	"go/format"
	"log/slog"
	"path"
	"sort"
	"strings"
	"text/template"

	"github.com/ShardPhoenix/avrogen/internal/avro"
	"github.com/ShardPhoenix/avrogen/internal/codegen/common"
)

// NameCollisionError reports distinct Avro names that map to the same Go
// identifier or output file.
type NameCollisionError struct {
	Ident string
	Names []string
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("Go name %s is claimed by %s", e.Ident, strings.Join(e.Names, ", "))
}

// Backend renders Go sources into a single package.
type Backend struct {
	pkg    string
	logger *slog.Logger
	tmpl   *template.Template
}

// New returns a backend writing package pkg.
func New(pkg string, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	funcMap := template.FuncMap{"comment": comment}
	tmpl := template.Must(template.New("file").Funcs(funcMap).Parse(fileTemplate))
	return &Backend{pkg: pkg, logger: logger, tmpl: tmpl}
}

type namedType struct {
	schema avro.NamedSchema
	source string
}

// Render returns formatted Go source keyed by slash-separated path relative to
// the output root. Every named type reachable from defs gets one file;
// identical repeated definitions are rendered once.
func (b *Backend) Render(defs []avro.Definition) (map[string][]byte, error) {
	if !common.IsPackageName(b.pkg) {
		return nil, fmt.Errorf("invalid Go package name %q", b.pkg)
	}

	types, err := collect(defs)
	if err != nil {
		return nil, err
	}
	names := common.SortedStringKeys(types)

	idents, err := assignIdents(types, names)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(names))
	owners := map[string]string{}
	for _, name := range names {
		nt := types[name]
		file := path.Join(b.pkg, fileName(name))
		if prev, ok := owners[file]; ok {
			return nil, &NameCollisionError{Ident: file, Names: []string{prev, name}}
		}
		owners[file] = name

		src, err := b.renderType(nt, idents)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		out[file] = src
		b.logger.Debug("Rendered Go type", "name", name, "file", file)
	}
	return out, nil
}

// collect gathers every named type defined across defs, keyed by full name.
func collect(defs []avro.Definition) (map[string]namedType, error) {
	types := map[string]namedType{}
	for _, def := range defs {
		for _, nt := range avro.NamedTypes(def.Schema) {
			full := nt.Ident().FullName()
			prev, ok := types[full]
			if !ok {
				types[full] = namedType{schema: nt, source: def.Source}
				continue
			}
			if !avro.Equal(prev.schema, nt) {
				return nil, &avro.RedefinitionError{Name: full, Sources: []string{prev.source, def.Source}}
			}
		}
	}
	return types, nil
}

// assignIdents maps each full name to its Go type name and checks that type
// names and enum constants are unique within the package.
func assignIdents(types map[string]namedType, names []string) (map[string]string, error) {
	idents := make(map[string]string, len(names))
	claimed := map[string]string{}
	claim := func(ident, owner string) error {
		if prev, ok := claimed[ident]; ok {
			return &NameCollisionError{Ident: ident, Names: []string{prev, owner}}
		}
		claimed[ident] = owner
		return nil
	}

	for _, name := range names {
		ident := common.ExportedName(types[name].schema.Ident().Name)
		if err := claim(ident, name); err != nil {
			return nil, err
		}
		idents[name] = ident
	}
	for _, name := range names {
		enum, ok := types[name].schema.(*avro.EnumSchema)
		if !ok {
			continue
		}
		for _, sym := range enum.Symbols {
			if err := claim(symbolIdent(idents[name], sym), name+"."+sym); err != nil {
				return nil, err
			}
		}
	}
	return idents, nil
}

func (b *Backend) renderType(nt namedType, idents map[string]string) ([]byte, error) {
	full := nt.schema.Ident().FullName()
	ident := idents[full]

	schema, err := avro.MarshalIndent(nt.schema)
	if err != nil {
		return nil, err
	}

	imports := map[string]bool{}
	data := fileData{
		Source:    full,
		Package:   b.pkg,
		Ident:     ident,
		SchemaVar: "schema" + ident,
		Schema:    string(schema),
	}

	switch s := nt.schema.(type) {
	case *avro.RecordSchema:
		rec := &recordData{Ident: ident, Doc: s.Doc}
		seen := map[string]string{"AvroSchema": "method AvroSchema"}
		for _, f := range s.Fields {
			fid := common.ExportedName(f.Name)
			if prev, ok := seen[fid]; ok {
				return nil, &NameCollisionError{Ident: ident + "." + fid, Names: []string{prev, f.Name}}
			}
			seen[fid] = f.Name
			rec.Fields = append(rec.Fields, fieldData{
				Name:  f.Name,
				Ident: fid,
				Type:  goType(f.Type, idents, imports),
				Doc:   f.Doc,
			})
		}
		data.Record = rec
	case *avro.EnumSchema:
		enum := &enumData{Ident: ident, Doc: s.Doc}
		for _, sym := range s.Symbols {
			enum.Symbols = append(enum.Symbols, symbolData{Name: sym, Ident: symbolIdent(ident, sym)})
		}
		data.Enum = enum
	case *avro.FixedSchema:
		data.Fixed = &fixedData{Ident: ident, Doc: s.Doc, Size: s.Size}
	default:
		return nil, fmt.Errorf("unsupported named type %s", nt.schema.Type())
	}

	for imp := range imports {
		data.Imports = append(data.Imports, imp)
	}
	sort.Strings(data.Imports)

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}
	return src, nil
}

// fileName derives the output file name from a full name, e.g.
// "shop.OrderLine" becomes "shop_order_line_gen.go". The suffix keeps names
// like "ns.Windows" or "ns.Foo_test" from reading as build constraints.
func fileName(fullName string) string {
	return common.ToSnakeCase(fullName) + "_gen.go"
}

func symbolIdent(typeIdent, symbol string) string {
	return typeIdent + common.ExportedName(symbol)
}

func comment(doc string) string {
	lines := strings.Split(strings.TrimSpace(doc), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight("// "+l, " ")
	}
	return strings.Join(lines, "\n")
}
