// Package config holds the build settings shared by both generation stages.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ShardPhoenix/avrogen/internal/avro"
	"github.com/ShardPhoenix/avrogen/internal/discovery"
)

// Settings configures a pipeline run. It is passed by value into each stage
// and never mutated after parsing.
type Settings struct {
	DirectoryName       string `help:"Subfolder holding IDL and schema resources" default:"avro" env:"AVROGEN_DIRECTORY_NAME"`
	SchemaFileExtension string `help:"Schema file extension" default:"avsc" env:"AVROGEN_SCHEMA_FILE_EXTENSION"`
	IDLFileExtension    string `name:"idl-file-extension" help:"IDL file extension" default:"avdl" env:"AVROGEN_IDL_FILE_EXTENSION"`
	UseTypeRepetition   bool   `help:"Require hand-written schema files to be self-contained (single-pass parsing)" default:"false" env:"AVROGEN_USE_TYPE_REPETITION"`

	ResourceDir        string `help:"Root of hand-written resources" default:"src/main/resources" env:"AVROGEN_RESOURCE_DIR"`
	ManagedResourceDir string `help:"Root of generated schema files" default:"target/resource_managed" env:"AVROGEN_MANAGED_RESOURCE_DIR"`
	ManagedSourceDir   string `help:"Root of generated Go sources" default:"target/src_managed" env:"AVROGEN_MANAGED_SOURCE_DIR"`
	Package            string `help:"Go package name of generated sources" default:"avro" env:"AVROGEN_PACKAGE"`
	Lang               string `help:"Code generation backend" default:"go" enum:"go" env:"AVROGEN_LANG"`
}

// Log configures the process logger.
type Log struct {
	Level  string `help:"Log level" default:"info" enum:"trace,debug,info,warn,error" env:"AVROGEN_LOG_LEVEL"`
	File   string `help:"Also write logs to this file" env:"AVROGEN_LOG_FILE"`
	Format string `help:"Log format (auto picks text on a terminal)" default:"auto" enum:"auto,text,json" env:"AVROGEN_LOG_FORMAT"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		DirectoryName:       "avro",
		SchemaFileExtension: "avsc",
		IDLFileExtension:    "avdl",
		ResourceDir:         "src/main/resources",
		ManagedResourceDir:  "target/resource_managed",
		ManagedSourceDir:    "target/src_managed",
		Package:             "avro",
		Lang:                "go",
	}
}

// Validate checks that the settings describe a usable layout.
func (s Settings) Validate() error {
	var errs []error
	if s.DirectoryName == "" {
		errs = append(errs, errors.New("directory name must not be empty"))
	}
	if strings.Trim(s.SchemaFileExtension, ".") == "" {
		errs = append(errs, errors.New("schema file extension must not be empty"))
	}
	if strings.Trim(s.IDLFileExtension, ".") == "" {
		errs = append(errs, errors.New("IDL file extension must not be empty"))
	}
	if strings.Trim(s.SchemaFileExtension, ".") == strings.Trim(s.IDLFileExtension, ".") {
		errs = append(errs, fmt.Errorf("schema and IDL extensions must differ (both %q)", s.SchemaFileExtension))
	}
	if s.ManagedResourceDir == "" || s.ManagedSourceDir == "" {
		errs = append(errs, errors.New("managed output directories must be set"))
	}
	if s.Package == "" {
		errs = append(errs, errors.New("package must not be empty"))
	}
	return errors.Join(errs...)
}

// Mode returns the resolution mode for hand-written schema files.
func (s Settings) Mode() avro.Mode {
	if s.UseTypeRepetition {
		return avro.SinglePass
	}
	return avro.MultiPass
}

// SchemaExt returns the schema file extension without a leading dot.
func (s Settings) SchemaExt() string { return strings.TrimPrefix(s.SchemaFileExtension, ".") }

// IDLDir is where IDL files are discovered.
func (s Settings) IDLDir() string { return filepath.Join(s.ResourceDir, s.DirectoryName) }

// SchemaDir is where hand-written schema files are discovered.
func (s Settings) SchemaDir() string { return filepath.Join(s.ResourceDir, s.DirectoryName) }

// ManagedSchemaDir receives the schema files compiled from IDL.
func (s Settings) ManagedSchemaDir() string {
	return filepath.Join(s.ManagedResourceDir, s.DirectoryName)
}

func (s Settings) IDLFilter() discovery.Filter {
	return discovery.ExtensionFilter(s.IDLFileExtension)
}

func (s Settings) SchemaFilter() discovery.Filter {
	return discovery.ExtensionFilter(s.SchemaFileExtension)
}
