// Package compile turns IDL protocol files into one canonical schema file per
// record type.
package compile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/ShardPhoenix/avrogen/internal/avro"
	"github.com/ShardPhoenix/avrogen/internal/config"
	"github.com/ShardPhoenix/avrogen/internal/discovery"
	"github.com/ShardPhoenix/avrogen/internal/idl"
)

// ConflictError reports a full name defined with structurally different
// schemas across the input files.
type ConflictError struct {
	Name    string
	Sources []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting definitions of %s in %s", e.Name, strings.Join(e.Sources, ", "))
}

// SchemaFile is a rendered schema ready to be written.
type SchemaFile struct {
	Name    string
	Path    string
	Content []byte
}

// UniqueSet holds exactly one definition per full name.
type UniqueSet struct {
	defs    map[string]idl.Definition
	sources map[string][]string
}

// Names returns the full names in the set, sorted.
func (s *UniqueSet) Names() []string {
	names := make([]string, 0, len(s.defs))
	for n := range s.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the definition kept for name.
func (s *UniqueSet) Get(name string) (idl.Definition, bool) {
	d, ok := s.defs[name]
	return d, ok
}

// Sources lists every file that contributed name.
func (s *UniqueSet) Sources(name string) []string { return s.sources[name] }

// Len is the number of unique full names.
func (s *UniqueSet) Len() int { return len(s.defs) }

// Result summarizes a compile run.
type Result struct {
	Inputs      []string
	Definitions int
	Files       []string
}

// Compiler runs the IDL to schema stage.
type Compiler struct {
	settings config.Settings
	logger   *slog.Logger
}

// New returns a compiler for settings. A nil logger means slog.Default().
func New(settings config.Settings, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{settings: settings, logger: logger}
}

// Discover lists the IDL files under the configured resource directory.
func (c *Compiler) Discover() ([]string, error) {
	return discovery.Find(c.settings.IDLDir(), c.settings.IDLFilter())
}

// Run discovers IDL files and compiles them into the managed schema directory.
func (c *Compiler) Run(ctx context.Context) (*Result, error) {
	files, err := c.Discover()
	if err != nil {
		return nil, fmt.Errorf("discover IDL files: %w", err)
	}
	return c.Compile(ctx, files, c.settings.ManagedSchemaDir())
}

// Compile parses files, merges their definitions and writes one schema file
// per record into outDir. Nothing is written when any step fails.
func (c *Compiler) Compile(ctx context.Context, files []string, outDir string) (*Result, error) {
	res := &Result{Inputs: files}
	if len(files) == 0 {
		c.logger.Debug("No IDL files found", "dir", c.settings.IDLDir())
		return res, nil
	}
	c.logger.Info("Compiling IDL", "files", len(files), "out", outDir)

	defs, err := Parse(ctx, files)
	if err != nil {
		return nil, err
	}
	set, err := Dedupe(defs)
	if err != nil {
		return nil, err
	}
	res.Definitions = set.Len()

	rendered, err := Render(set, outDir, c.settings.SchemaExt())
	if err != nil {
		return nil, err
	}
	if err := Write(ctx, rendered, outDir); err != nil {
		return nil, err
	}
	for _, f := range rendered {
		c.logger.Debug("Wrote schema", "name", f.Name, "path", f.Path)
		res.Files = append(res.Files, f.Path)
	}
	c.logger.Info("Compiled IDL", "definitions", set.Len(), "schemas", len(res.Files))
	return res, nil
}

// Parse parses every IDL file, in path order, and returns all top-level
// definitions including duplicates.
func Parse(ctx context.Context, files []string) ([]idl.Definition, error) {
	sorted := slices.Clone(files)
	sort.Strings(sorted)

	var defs []idl.Definition
	for _, f := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := idl.ParseFile(f)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d...)
	}
	return defs, nil
}

// Dedupe groups defs by full name. Repeated definitions collapse to the first
// one when structurally equal; otherwise a ConflictError is returned for the
// alphabetically first conflicting name.
func Dedupe(defs []idl.Definition) (*UniqueSet, error) {
	set := &UniqueSet{
		defs:    map[string]idl.Definition{},
		sources: map[string][]string{},
	}
	groups := map[string][]idl.Definition{}
	for _, d := range defs {
		name := d.FullName()
		groups[name] = append(groups[name], d)
	}

	names := make([]string, 0, len(groups))
	for n := range groups {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		group := groups[name]
		first := group[0]
		var sources []string
		for _, d := range group {
			if !slices.Contains(sources, d.Source) {
				sources = append(sources, d.Source)
			}
		}
		for _, d := range group[1:] {
			if !avro.Equal(first.Schema, d.Schema) {
				sort.Strings(sources)
				return nil, &ConflictError{Name: name, Sources: sources}
			}
		}
		set.defs[name] = first
		set.sources[name] = sources
	}
	return set, nil
}

// Render produces the canonical schema text of every record or error type in
// set. Enums and fixed types are embedded in the records that use them and get
// no file of their own.
func Render(set *UniqueSet, outDir, ext string) ([]SchemaFile, error) {
	ext = strings.TrimPrefix(ext, ".")
	var out []SchemaFile
	for _, name := range set.Names() {
		def := set.defs[name]
		if !avro.IsRecord(def.Schema) {
			continue
		}
		data, err := avro.MarshalIndent(def.Schema)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		out = append(out, SchemaFile{
			Name:    name,
			Path:    filepath.Join(outDir, name+"."+ext),
			Content: append(data, '\n'),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Write creates outDir if needed and writes every file, replacing existing
// contents.
func Write(ctx context.Context, files []SchemaFile, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.WriteFile(f.Path, f.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	return nil
}
