package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/symbiflow/sfbuild/internal/catalog"
	"github.com/symbiflow/sfbuild/internal/dep"
)

// resolveDep back-chains from a dependency to its producing stages. For the
// producer of name (if any) it first resolves every take, decides whether
// the stage must run, then asks the module to map its outputs to paths.
// Each stage is mapped at most once per run, no matter how many of its
// outputs are requested.
func (f *Flow) resolveDep(ctx context.Context, name string, checked map[string]bool) error {
	if _, ok := f.depsRebuilds[name]; !ok {
		f.depsRebuilds[name] = 0
	}

	// An explicitly supplied dependency with no producer needs nothing.
	provider := f.osMap[name]
	if f.depPaths[name] != nil && provider == nil {
		return nil
	}
	if provider == nil || checked[provider.Name] {
		return nil
	}

	for _, take := range provider.Takes {
		if err := f.resolveDep(ctx, take.Name, checked); err != nil {
			return err
		}
		takePaths := f.depPaths[take.Name]

		if takePaths == nil {
			if take.Required {
				f.markUnreachable(provider, take.Name)
				return nil
			}
			continue
		}

		if f.depWillDiffer(take.Name, takePaths, provider.Name) {
			f.runStages[provider.Name] = true
			f.depsRebuilds[take.Name]++
		}
	}

	outputs, err := f.runner.Map(ctx, provider.Module, f.stageConfig(provider))
	if err != nil {
		return err
	}
	checked[provider.Name] = true

	for outName, outPaths := range outputs {
		f.depPaths[outName] = outPaths
		if !dep.Exists(outPaths) {
			f.runStages[provider.Name] = true
		}
	}
	return nil
}

// markUnreachable records and reports a stage that cannot run because a
// required input could not be supplied.
func (f *Flow) markUnreachable(provider *catalog.Stage, input string) {
	f.unreachable = append(f.unreachable, UnreachableInput{
		Stage: provider.Name,
		Input: input,
	})
	f.logger.Warn("stage is unreachable due to unmet dependency",
		slog.String("stage", provider.Name),
		slog.String("dependency", input),
	)
	fmt.Fprintf(f.stdout, "    Stage %s is unreachable due to unmet dependency %s\n",
		bold(provider.Name), bold(input))
}
