package cmd

import (
	"github.com/alecthomas/kong"

	"github.com/ShardPhoenix/avrogen/internal/codegen/common"
	"github.com/ShardPhoenix/avrogen/internal/config"
)

// FileSettings is the part of the command line that can also be read from a
// config file.
type FileSettings struct {
	Log      config.Log      `embed:"" prefix:"log."`
	Settings config.Settings `embed:""`
}

// CLI is the root command.
type CLI struct {
	Config  string           `help:"Config file (JSON, YAML or TOML)" type:"path" env:"AVROGEN_CONFIG"`
	Version kong.VersionFlag `help:"Print version and exit"`
	Options FileSettings     `embed:""`

	CompileIDL CompileIDL    `cmd:"" name:"compile-idl" help:"Compile IDL files into canonical schema files"`
	Generate   Generate      `cmd:"" help:"Generate sources from schema files (compiles IDL first)"`
	Tasks      Tasks         `cmd:"" help:"List pipeline tasks and their dependencies"`
	ConfigCmd  ConfigCommand `cmd:"" name:"config" help:"Manage configuration files"`
}

// Vars holds the interpolation variables for the parser.
func Vars() kong.Vars {
	v, err := common.GetVersion()
	if err != nil {
		v = common.Version
	}
	return kong.Vars{"version": v}
}
