package common

import (
	"fmt"
	"strings"
)

// Version is set at build time:
//
//	go build -ldflags "-X github.com/ShardPhoenix/avrogen/internal/codegen/common.Version=x.y.z"
var Version = ""

const devVersion = "0.0.1-dev"

// GetVersion returns the build version without its leading "v", or
// "0.0.1-dev" for untagged builds.
func GetVersion() (string, error) {
	if Version == "" {
		return devVersion, nil
	}
	v := strings.TrimPrefix(Version, "v")
	base, _, _ := strings.Cut(v, "-")
	if strings.Count(base, ".") != 2 {
		return "", fmt.Errorf("invalid version format: %s (expected x.y.z)", Version)
	}
	return v, nil
}
