package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ShardPhoenix/avrogen/internal/build"
	"github.com/ShardPhoenix/avrogen/internal/config"
)

type CompileIDL struct{}

// Run is called by Kong when the compile-idl command is executed.
func (c *CompileIDL) Run(ctx context.Context, logger *slog.Logger, settings config.Settings, out io.Writer) error {
	return runTask(ctx, logger, settings, out, build.TaskCompileIDL)
}

type Generate struct{}

// Run is called by Kong when the generate command is executed.
func (g *Generate) Run(ctx context.Context, logger *slog.Logger, settings config.Settings, out io.Writer) error {
	return runTask(ctx, logger, settings, out, build.TaskGenerateSources)
}

// runTask runs a pipeline task and prints every file it and its
// dependencies wrote, one path per line.
func runTask(ctx context.Context, logger *slog.Logger, settings config.Settings, out io.Writer, task string) error {
	p, err := build.Default(settings, logger)
	if err != nil {
		return err
	}
	results, err := p.Run(ctx, task)
	if err != nil {
		return err
	}
	for _, r := range results {
		for _, f := range r.Files {
			if _, err := fmt.Fprintln(out, f); err != nil {
				return err
			}
		}
	}
	return nil
}

type Tasks struct{}

// Run is called by Kong when the tasks command is executed.
func (t *Tasks) Run(logger *slog.Logger, settings config.Settings, out io.Writer) error {
	p, err := build.Default(settings, logger)
	if err != nil {
		return err
	}
	for _, task := range p.Tasks() {
		line := fmt.Sprintf("%-18s %s", task.Name, task.Description)
		if deps := p.Dependencies(task.Name); len(deps) > 0 {
			line += " (after " + strings.Join(deps, ", ") + ")"
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
