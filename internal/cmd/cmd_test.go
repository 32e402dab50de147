package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	json "github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	htesting "github.com/ShardPhoenix/avrogen/internal/testing"
)

// run parses args like main does and executes the selected command.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("avrogen"), kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)

	var out bytes.Buffer
	kctx.Bind(htesting.Logger())
	kctx.Bind(cli.Options.Settings)
	kctx.BindTo(context.Background(), (*context.Context)(nil))
	kctx.BindTo(&out, (*io.Writer)(nil))
	err = kctx.Run()
	return out.String(), err
}

func layout(t *testing.T) (root string, flags []string) {
	t.Helper()
	root = t.TempDir()
	htesting.WriteFile(t, filepath.Join(root, "res", "avro", "simple.avdl"), htesting.SimpleIDL)
	flags = []string{
		"--resource-dir", filepath.Join(root, "res"),
		"--managed-resource-dir", filepath.Join(root, "managed"),
		"--managed-source-dir", filepath.Join(root, "src"),
	}
	return root, flags
}

func TestCompileIDL(t *testing.T) {
	root, flags := layout(t)
	out, err := run(t, append([]string{"compile-idl"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t,
		filepath.Join(root, "managed", "avro", "ns.A.avsc")+"\n"+
			filepath.Join(root, "managed", "avro", "ns.B.avsc")+"\n",
		out)
	assert.NoDirExists(t, filepath.Join(root, "src"))
}

func TestGenerate(t *testing.T) {
	root, flags := layout(t)
	out, err := run(t, append([]string{"generate", "--package", "model"}, flags...)...)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, filepath.Join(root, "src", "model", "ns_b_gen.go"), lines[3])

	src, err := os.ReadFile(lines[3])
	require.NoError(t, err)
	assert.Contains(t, string(src), "package model")
}

func TestGenerate_InvalidSettings(t *testing.T) {
	_, flags := layout(t)
	_, err := run(t, append([]string{"generate", "--idl-file-extension", "avsc"}, flags...)...)
	require.ErrorContains(t, err, "must differ")
}

func TestTasks(t *testing.T) {
	out, err := run(t, "tasks")
	require.NoError(t, err)
	assert.Contains(t, out, "compile-idl")
	assert.Contains(t, out, "generate-sources")
	assert.Contains(t, out, "(after compile-idl)")
}

func TestConfigInit_Formats(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "avrogen.json")
	_, err := run(t, "config", "init", "--output", jsonPath)
	require.NoError(t, err)
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "avro", got["directory_name"])
	assert.Equal(t, "avdl", got["idl_file_extension"])
	assert.Equal(t, false, got["use_type_repetition"])
	assert.Equal(t, "info", got["log"].(map[string]any)["level"])

	yamlPath := filepath.Join(dir, "nested", "avrogen.yaml")
	_, err = run(t, "config", "init", "--format", "yaml", "--output", yamlPath)
	require.NoError(t, err)
	data, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	got = nil
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, "target/src_managed", got["managed_source_dir"])

	tomlPath := filepath.Join(dir, "avrogen.toml")
	_, err = run(t, "config", "init", "--format", "toml", "--output", tomlPath)
	require.NoError(t, err)
	tree, err := toml.LoadFile(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, "avsc", tree.Get("schema_file_extension"))
	assert.Equal(t, "auto", tree.Get("log.format"))
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avrogen.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, err := run(t, "config", "init", "--output", path)
	require.ErrorContains(t, err, "--force")

	_, err = run(t, "config", "init", "--output", path, "--force")
	require.NoError(t, err)
}

func TestConfigFile_RoundTrip(t *testing.T) {
	root, _ := layout(t)
	cfg := filepath.Join(root, "avrogen.json")
	content := map[string]any{
		"resource_dir":         filepath.Join(root, "res"),
		"managed_resource_dir": filepath.Join(root, "managed"),
		"managed_source_dir":   filepath.Join(root, "src"),
		"package":              "fromfile",
	}
	data, err := json.Marshal(content)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfg, data, 0o644))

	var cli CLI
	parser, err := kong.New(&cli, kong.Name("avrogen"), kong.Configuration(kong.JSON, cfg))
	require.NoError(t, err)
	_, err = parser.Parse([]string{"generate"})
	require.NoError(t, err)
	assert.Equal(t, "fromfile", cli.Options.Settings.Package)
	assert.Equal(t, filepath.Join(root, "src"), cli.Options.Settings.ManagedSourceDir)
	assert.Equal(t, "avro", cli.Options.Settings.DirectoryName)
}

func TestVars(t *testing.T) {
	assert.Equal(t, "0.0.1-dev", Vars()["version"])
}
