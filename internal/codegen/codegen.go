// Package codegen turns schema files into generated source files.
package codegen

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/ShardPhoenix/avrogen/internal/avro"
	"github.com/ShardPhoenix/avrogen/internal/codegen/golang"
	"github.com/ShardPhoenix/avrogen/internal/config"
	"github.com/ShardPhoenix/avrogen/internal/discovery"
)

// Backend renders a schema collection into file contents keyed by a
// slash-separated path relative to the output directory.
type Backend interface {
	Render(defs []avro.Definition) (map[string][]byte, error)
}

// BackendFactory builds the backend for a language.
type BackendFactory func(settings config.Settings, logger *slog.Logger) Backend

var backends = map[string]BackendFactory{
	"go": func(settings config.Settings, logger *slog.Logger) Backend {
		return golang.New(settings.Package, logger)
	},
}

// Languages lists the supported backend names.
func Languages() []string {
	var langs []string
	for k := range backends {
		langs = append(langs, k)
	}
	sort.Strings(langs)
	return langs
}

// Result lists the generated files.
type Result struct {
	Managed   []string
	Unmanaged []string
	Files     []string
}

// Generator runs the schema to source stage.
type Generator struct {
	settings config.Settings
	logger   *slog.Logger
	backend  Backend
}

// New returns a generator using the backend named by settings.Lang.
func New(settings config.Settings, logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lang := settings.Lang
	if lang == "" {
		lang = "go"
	}
	factory, ok := backends[lang]
	if !ok {
		return nil, fmt.Errorf("unsupported language '%s' (supported: %v)", lang, Languages())
	}
	return NewWithBackend(settings, logger, factory(settings, logger)), nil
}

// NewWithBackend returns a generator rendering through backend.
func NewWithBackend(settings config.Settings, logger *slog.Logger, backend Backend) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{settings: settings, logger: logger, backend: backend}
}

// Discover lists managed schema files (compiled from IDL) and unmanaged,
// hand-written ones.
func (g *Generator) Discover() (managed, unmanaged []string, err error) {
	flt := g.settings.SchemaFilter()
	managed, err = discovery.Find(g.settings.ManagedSchemaDir(), flt)
	if err != nil {
		return nil, nil, fmt.Errorf("discover managed schemas: %w", err)
	}
	unmanaged, err = discovery.Find(g.settings.SchemaDir(), flt)
	if err != nil {
		return nil, nil, fmt.Errorf("discover schemas: %w", err)
	}
	return managed, unmanaged, nil
}

// Run discovers schema files and generates sources into the managed source
// directory.
func (g *Generator) Run(ctx context.Context) (*Result, error) {
	managed, unmanaged, err := g.Discover()
	if err != nil {
		return nil, err
	}
	return g.Generate(ctx, managed, unmanaged, g.settings.ManagedSourceDir)
}

// Generate parses the schema files, renders them with the backend and writes
// the result under outDir. Nothing is written unless parsing and rendering
// both succeed.
func (g *Generator) Generate(ctx context.Context, managed, unmanaged []string, outDir string) (*Result, error) {
	res := &Result{Managed: managed, Unmanaged: unmanaged}
	mode := g.settings.Mode()
	g.logger.Info("Generating sources",
		"managed", len(managed),
		"unmanaged", len(unmanaged),
		"mode", mode.String(),
		"out", outDir)

	defs, err := Load(managed, unmanaged, mode)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := g.backend.Render(defs)
	if err != nil {
		return nil, fmt.Errorf("render sources: %w", err)
	}

	written, err := Write(ctx, files, outDir)
	if err != nil {
		return nil, err
	}
	res.Files = written
	g.logger.Info("Generated sources", "files", len(written))
	return res, nil
}

// Load parses managed files with MultiPass resolution and unmanaged files
// with mode, and returns the managed definitions followed by the unmanaged
// ones.
func Load(managed, unmanaged []string, mode avro.Mode) ([]avro.Definition, error) {
	managedDefs, err := avro.ParseFiles(managed, avro.MultiPass)
	if err != nil {
		return nil, err
	}
	unmanagedDefs, err := avro.ParseFiles(unmanaged, mode)
	if err != nil {
		return nil, err
	}
	return append(managedDefs, unmanagedDefs...), nil
}

// Write stores files under outDir, creating parent directories, and returns
// the written paths in sorted order.
func Write(ctx context.Context, files map[string][]byte, outDir string) ([]string, error) {
	rels := make([]string, 0, len(files))
	for rel := range files {
		if !filepath.IsLocal(filepath.FromSlash(rel)) {
			return nil, fmt.Errorf("refusing to write outside %s: %s", outDir, rel)
		}
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	written := make([]string, 0, len(rels))
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dest := filepath.Join(outDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", filepath.Dir(dest), err)
		}
		if err := os.WriteFile(dest, files[rel], 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", dest, err)
		}
		written = append(written, dest)
	}
	return written, nil
}
