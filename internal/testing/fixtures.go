// Package testing provides fixtures shared by the package tests.
package testing

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ShardPhoenix/avrogen/internal/config"
)

// SimpleIDL defines ns.A and ns.B, where B references A.
const SimpleIDL = `@namespace("ns")
protocol Simple {
  record A { string name; }
  record B { ns.A a; }
}`

// NewSettings returns default settings with every directory under root.
func NewSettings(t *testing.T, root string) config.Settings {
	t.Helper()
	s := config.Defaults()
	s.ResourceDir = filepath.Join(root, "resources")
	s.ManagedResourceDir = filepath.Join(root, "managed")
	s.ManagedSourceDir = filepath.Join(root, "src")
	return s
}

// WriteFile writes content to path, creating parent directories, and
// returns path.
func WriteFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// WriteTree writes files, keyed by slash-separated path, below root.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		WriteFile(t, filepath.Join(root, filepath.FromSlash(rel)), content)
	}
}

// ListDir returns the entry names of dir, or nil when it does not exist.
func ListDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
