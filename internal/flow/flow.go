// Package flow plans and executes the stages needed to realise a build
// target.
//
// A Flow walks backwards from the requested target through the
// output-producer map, decides which stages must run based on the staleness
// cache, and then executes them producer-before-consumer while keeping the
// cache current.
package flow

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/symbiflow/sfbuild/internal/catalog"
	"github.com/symbiflow/sfbuild/internal/dep"
	"github.com/symbiflow/sfbuild/internal/depcache"
	"github.com/symbiflow/sfbuild/internal/module"
)

// Options configure a Flow.
type Options struct {
	// Target is the dependency name the operator asked for.
	Target string

	// Platform is the platform name, passed through to every module.
	Platform string

	// Stages are the stage descriptors of the platform flow.
	Stages []*catalog.Stage

	// Values is the merged global value scope.
	Values map[string]any

	// ExplicitPaths are dependency paths spelled out by the project
	// configuration or the operator.
	ExplicitPaths map[string]any

	// Cache is the staleness cache backing rebuild decisions.
	Cache *depcache.Cache

	// Runner invokes stage modules.
	Runner *module.Runner

	// Logger receives diagnostics.
	Logger *slog.Logger

	// Stdout receives progress output. Defaults to os.Stdout.
	Stdout io.Writer
}

// UnreachableInput records a stage that cannot run because a required
// input could not be supplied.
type UnreachableInput struct {
	Stage string
	Input string
}

// Flow is the annotated plan for one build target plus the state needed to
// execute it.
type Flow struct {
	target   string
	platform string

	osMap       map[string]*catalog.Stage
	values      map[string]any
	configPaths map[string]any

	depPaths     map[string]any
	runStages    map[string]bool
	depsRebuilds map[string]int
	unreachable  []UnreachableInput

	cache  *depcache.Cache
	runner *module.Runner
	logger *slog.Logger
	stdout io.Writer
}

// New builds the output-producer map, seeds the explicit dependencies that
// already exist on disk, and runs the planner for the requested target.
func New(ctx context.Context, opts Options) (*Flow, error) {
	osMap, err := mapOutputsToStages(opts.Stages)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	f := &Flow{
		target:       opts.Target,
		platform:     opts.Platform,
		osMap:        osMap,
		values:       opts.Values,
		configPaths:  opts.ExplicitPaths,
		depPaths:     make(map[string]any),
		runStages:    make(map[string]bool),
		depsRebuilds: make(map[string]int),
		cache:        opts.Cache,
		runner:       opts.Runner,
		logger:       logger,
		stdout:       stdout,
	}
	if f.configPaths == nil {
		f.configPaths = make(map[string]any)
	}

	for name, paths := range f.configPaths {
		if dep.Exists(paths) {
			f.depPaths[name] = paths
		}
	}

	if err := f.resolveDep(ctx, f.target, make(map[string]bool)); err != nil {
		return nil, err
	}
	return f, nil
}

// Target returns the requested dependency name.
func (f *Flow) Target() string {
	return f.target
}

// DepPaths returns the resolved path value for every dependency the planner
// touched.
func (f *Flow) DepPaths() map[string]any {
	return f.depPaths
}

// RunStages returns the names of stages that must execute, sorted.
func (f *Flow) RunStages() []string {
	names := make([]string, 0, len(f.runStages))
	for name := range f.runStages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DepsRebuilds reports, per dependency, how many consumers observed it as
// about to differ.
func (f *Flow) DepsRebuilds() map[string]int {
	return f.depsRebuilds
}

// Unreachable lists stages the planner found unable to run together with
// the input that could not be supplied.
func (f *Flow) Unreachable() []UnreachableInput {
	return f.unreachable
}

// mapOutputsToStages associates every produced dependency name with its
// producing stage. Each name may have at most one producer.
func mapOutputsToStages(stages []*catalog.Stage) (map[string]*catalog.Stage, error) {
	osMap := make(map[string]*catalog.Stage)
	for _, stage := range stages {
		for _, output := range stage.Produces {
			if existing, ok := osMap[output.Name]; ok && existing != stage {
				return nil, &MultipleProducersError{
					Artifact: output.Name,
					First:    existing.Name,
					Second:   stage.Name,
				}
			}
			osMap[output.Name] = stage
		}
	}
	return osMap, nil
}

// stageConfig assembles the configuration document for a module invocation:
// resolved take paths (optional takes that did not resolve are omitted),
// output paths, and the global values shadowed by the stage's overrides.
func (f *Flow) stageConfig(s *catalog.Stage) module.Config {
	takes := make(map[string]any)
	for _, take := range s.Takes {
		if paths, ok := f.depPaths[take.Name]; ok && paths != nil {
			takes[take.Name] = paths
		}
	}

	produces := make(map[string]any)
	for _, prod := range s.Produces {
		if paths, ok := f.depPaths[prod.Name]; ok && paths != nil {
			produces[prod.Name] = paths
		} else if paths, ok := f.configPaths[prod.Name]; ok {
			produces[prod.Name] = paths
		}
	}

	values := make(map[string]any, len(f.values)+len(s.ValueOverrides))
	for k, v := range f.values {
		values[k] = v
	}
	for k, v := range s.ValueOverrides {
		values[k] = v
	}

	return module.Config{
		Takes:    takes,
		Produces: produces,
		Values:   values,
		Platform: f.platform,
		Params:   s.Params,
	}
}

// updateStatuses records the current fingerprint of every path inside a
// path value under the given consumer.
func (f *Flow) updateStatuses(paths any, consumer string) {
	dep.Walk(paths, func(p string) {
		f.cache.Update(p, consumer)
	})
}

// depDiffer reports whether any path inside a path value differs from the
// consumer's last observation. A first observation writes the record and
// counts as differing.
func (f *Flow) depDiffer(paths any, consumer string) bool {
	differs := false
	dep.Walk(paths, func(p string) {
		switch f.cache.Status(p, consumer) {
		case depcache.StatusSame:
		case depcache.StatusUntracked:
			f.cache.Update(p, consumer)
			differs = true
		default:
			differs = true
		}
	})
	return differs
}

// depWillDiffer reports whether a dependency will differ for the consumer
// once the build ran: either its producer is scheduled, or its current
// content already differs from the consumer's last observation.
func (f *Flow) depWillDiffer(name string, paths any, consumer string) bool {
	if provider, ok := f.osMap[name]; ok && f.runStages[provider.Name] {
		return true
	}
	return f.depDiffer(paths, consumer)
}
