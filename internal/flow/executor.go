package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/symbiflow/sfbuild/internal/dep"
	"github.com/symbiflow/sfbuild/internal/depcache"
)

// Execute realises the target, runs every scheduled producer in
// producer-before-consumer order, records the target in the cache and
// persists it.
func (f *Flow) Execute(ctx context.Context) error {
	built, err := f.buildDep(ctx, f.target)
	if err != nil {
		return err
	}
	if !built {
		unreachableErr := &UnreachableTargetError{Target: f.target}
		if len(f.unreachable) > 0 {
			unreachableErr.Stage = f.unreachable[0].Stage
			unreachableErr.Input = f.unreachable[0].Input
		}
		return unreachableErr
	}

	f.updateStatuses(f.depPaths[f.target], depcache.TargetConsumer)
	if err := f.cache.Save(); err != nil {
		return err
	}

	fmt.Fprintf(f.stdout, "Target %s -> %s\n", bold(f.target), renderPaths(f.depPaths[f.target]))
	return nil
}

// SaveCache persists the staleness cache in its present state. Used on
// failure paths so that observations made before the failure survive.
func (f *Flow) SaveCache() error {
	return f.cache.Save()
}

// buildDep realises one dependency: nothing to do when it exists on disk
// and its producer is not scheduled, otherwise the producer's takes are
// realised recursively, their fingerprints recorded under the producer,
// and the producer executed.
func (f *Flow) buildDep(ctx context.Context, name string) (bool, error) {
	paths := f.depPaths[name]
	provider := f.osMap[name]
	scheduled := provider != nil && f.runStages[provider.Name]

	if paths == nil {
		f.logger.Warn("dependency is unresolved", slog.String("dependency", name))
		return false, nil
	}
	if dep.Exists(paths) && !scheduled {
		return true, nil
	}
	if provider == nil {
		return false, fmt.Errorf("dependency %s is missing and has no producing stage", name)
	}

	for _, take := range provider.Takes {
		built, err := f.buildDep(ctx, take.Name)
		if err != nil {
			return false, err
		}
		if !built {
			if take.Required {
				return false, &UnreachableTargetError{
					Target: f.target,
					Stage:  provider.Name,
					Input:  take.Name,
				}
			}
			continue
		}
		f.updateStatuses(f.depPaths[take.Name], provider.Name)
		if take.Required && !dep.Exists(f.depPaths[take.Name]) {
			return false, &PromiseViolationError{Stage: provider.Name, Artifact: take.Name}
		}
	}

	fmt.Fprintf(f.stdout, "Running stage %s\n", bold(provider.Name))
	f.logger.Info("executing stage",
		slog.String("stage", provider.Name),
		slog.String("module", provider.Module),
	)

	if err := f.runner.Exec(ctx, provider.Module, f.stageConfig(provider)); err != nil {
		return false, err
	}
	delete(f.runStages, provider.Name)

	for _, prod := range provider.Produces {
		prodPaths, ok := f.depPaths[prod.Name]
		if !ok || prodPaths == nil {
			continue
		}
		if (prod.Required || prod.Name == name) && !dep.Exists(prodPaths) {
			return false, &PromiseViolationError{Stage: provider.Name, Artifact: prod.Name}
		}
	}
	return true, nil
}
