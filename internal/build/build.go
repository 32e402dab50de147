// Package build sequences the generation stages as named tasks with explicit
// "runs after" edges.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ShardPhoenix/avrogen/internal/codegen"
	"github.com/ShardPhoenix/avrogen/internal/compile"
	"github.com/ShardPhoenix/avrogen/internal/config"
	"github.com/ShardPhoenix/avrogen/internal/dag"
)

const (
	TaskCompileIDL      = "compile-idl"
	TaskGenerateSources = "generate-sources"
)

// Task is a unit of work producing files.
type Task struct {
	Name        string
	Description string
	Run         func(ctx context.Context) ([]string, error)
}

// Result records what a task produced.
type Result struct {
	Task     string
	Files    []string
	Duration time.Duration
}

type Pipeline struct {
	graph  *dag.Graph
	tasks  map[string]Task
	logger *slog.Logger
}

func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{graph: dag.New(), tasks: map[string]Task{}, logger: logger}
}

// Register adds a task. Names must be unique.
func (p *Pipeline) Register(t Task) error {
	if t.Name == "" || t.Run == nil {
		return fmt.Errorf("task needs a name and a run function")
	}
	if _, ok := p.tasks[t.Name]; ok {
		return fmt.Errorf("task %q already registered", t.Name)
	}
	p.tasks[t.Name] = t
	p.graph.AddNode(t.Name)
	return nil
}

// DependsOn declares that task runs after dep.
func (p *Pipeline) DependsOn(task, dep string) error {
	for _, name := range []string{task, dep} {
		if _, ok := p.tasks[name]; !ok {
			return &dag.UnknownNodeError{Name: name}
		}
	}
	p.graph.AddEdge(dep, task)
	return nil
}

// Tasks returns the registered tasks in registration order.
func (p *Pipeline) Tasks() []Task {
	var out []Task
	for _, name := range p.graph.Nodes() {
		out = append(out, p.tasks[name])
	}
	return out
}

// Dependencies returns the tasks name directly runs after.
func (p *Pipeline) Dependencies(name string) []string {
	return p.graph.Dependencies(name)
}

// Run executes name after everything it transitively depends on, stopping at
// the first failure.
func (p *Pipeline) Run(ctx context.Context, name string) ([]Result, error) {
	order, err := p.graph.Plan(name)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(order))
	for _, taskName := range order {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		task := p.tasks[taskName]
		p.logger.Debug("Running task", "task", taskName)
		start := time.Now()
		files, err := task.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("%s: %w", taskName, err)
		}
		results = append(results, Result{Task: taskName, Files: files, Duration: time.Since(start)})
		p.logger.Info("Task finished", "task", taskName, "files", len(files), "duration", time.Since(start))
	}
	return results, nil
}

// Default returns the two-stage pipeline: generate-sources runs after
// compile-idl.
func Default(settings config.Settings, logger *slog.Logger) (*Pipeline, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	gen, err := codegen.New(settings, logger)
	if err != nil {
		return nil, err
	}
	compiler := compile.New(settings, logger)

	p := NewPipeline(logger)
	if err := p.Register(Task{
		Name:        TaskCompileIDL,
		Description: "Compile IDL files into canonical schema files",
		Run: func(ctx context.Context) ([]string, error) {
			res, err := compiler.Run(ctx)
			if err != nil {
				return nil, err
			}
			return res.Files, nil
		},
	}); err != nil {
		return nil, err
	}
	if err := p.Register(Task{
		Name:        TaskGenerateSources,
		Description: "Generate sources from schema files",
		Run: func(ctx context.Context) ([]string, error) {
			res, err := gen.Run(ctx)
			if err != nil {
				return nil, err
			}
			return res.Files, nil
		},
	}); err != nil {
		return nil, err
	}
	if err := p.DependsOn(TaskGenerateSources, TaskCompileIDL); err != nil {
		return nil, err
	}
	return p, nil
}
