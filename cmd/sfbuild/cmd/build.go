package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/symbiflow/sfbuild/internal/catalog"
	"github.com/symbiflow/sfbuild/internal/depcache"
	"github.com/symbiflow/sfbuild/internal/flow"
	"github.com/symbiflow/sfbuild/internal/flowcfg"
	"github.com/symbiflow/sfbuild/internal/module"
	"github.com/symbiflow/sfbuild/internal/observability"
	"github.com/symbiflow/sfbuild/internal/resolve"
)

// runBuild is the driver: it loads the flow documents, constructs the
// resolution environment and the stage catalog, plans the build, and either
// renders information or executes the plan.
func runBuild(cmd *cobra.Command, flowPath string) error {
	ctx := cmd.Context()
	stdout := cmd.OutOrStdout()

	cfg, err := loadToolConfig()
	if err != nil {
		return err
	}
	logger := newRunLogger(cfg)

	fmt.Fprintln(stdout, "sfbuild: Symbiflow Build System")

	if platformName == "" {
		return errors.New("you have to specify a platform name with the `-p` option")
	}

	home, err := sfbuildHome()
	if err != nil {
		return err
	}
	shareDir := cfg.ShareDir(home)

	project, err := flowcfg.LoadProject(flowPath)
	if err != nil {
		return err
	}
	section, ok := project.Platform(platformName)
	if !ok {
		return fmt.Errorf("flow definition %s has no section for platform %s", flowPath, platformName)
	}

	platformFlow, err := loadPlatformFlow(cfg.PlatformsDir(home), platformName, flowPath)
	if err != nil {
		return err
	}

	env := resolve.NewEnv(map[string]any{
		"shareDir": shareDir,
	})
	if device, ok := platformFlow.Values["device"].(string); ok {
		env.Set("noisyWarnings", device+"_noisy_warnings.log")
	}
	env.Add(section.Values)

	runner := module.NewRunner(home, shareDir, stdout, observability.WithComponent(logger, "module"))
	cat, err := catalog.New(home, runner, observability.WithComponent(logger, "catalog"))
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "Scanning modules...")
	stages, err := cat.LoadStages(ctx, platformFlow, env)
	if err != nil {
		return err
	}
	if len(stages) == 0 {
		return errors.New("platform flow does not define any stage")
	}

	if infoMode {
		flow.PrintDepInfo(stdout, stages)
		printDone(cmd)
		return nil
	}

	if targetName == "" {
		return errors.New("please specify the desired target using the `--target` option")
	}

	configPaths, err := flowcfg.ExplicitDeps(project, platformName, env)
	if err != nil {
		return err
	}
	if explicitPaths != "" {
		operatorPaths, err := flowcfg.ParseExplicitPaths(explicitPaths, env)
		if err != nil {
			return err
		}
		for name, paths := range operatorPaths {
			configPaths[name] = paths
		}
	}

	values, err := mergedValues(platformFlow, project, env)
	if err != nil {
		return err
	}

	cache := depcache.Open(cfg.Paths.CacheFile)

	fl, err := flow.New(ctx, flow.Options{
		Target:        targetName,
		Platform:      platformName,
		Stages:        stages,
		Values:        values,
		ExplicitPaths: configPaths,
		Cache:         cache,
		Runner:        runner,
		Logger:        observability.WithComponent(logger, "flow"),
		Stdout:        stdout,
	})
	if err != nil {
		// Planning may already have recorded fresh observations.
		if saveErr := cache.Save(); saveErr != nil {
			logger.Warn("failed to flush cache", slog.String("error", saveErr.Error()))
		}
		return err
	}

	fmt.Fprintln(stdout, "\nProject status:")
	fl.PrintPlan(stdout)
	fmt.Fprintln(stdout)

	if pretend {
		printDone(cmd)
		return nil
	}

	if err := fl.Execute(ctx); err != nil {
		// Keep the observations made before the failure.
		if saveErr := fl.SaveCache(); saveErr != nil {
			logger.Warn("failed to flush cache", slog.String("error", saveErr.Error()))
		}
		return err
	}

	printDone(cmd)
	return nil
}

// loadPlatformFlow reads <platformsDir>/<platform>.yaml, falling back to a
// .json document.
func loadPlatformFlow(platformsDir, platform, flowPath string) (*flowcfg.PlatformFlow, error) {
	yamlPath := filepath.Join(platformsDir, platform+".yaml")
	platformFlow, err := flowcfg.LoadPlatform(yamlPath)
	if err == nil {
		return platformFlow, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		jsonPath := filepath.Join(platformsDir, platform+".json")
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return flowcfg.LoadPlatform(jsonPath)
		}
		return nil, fmt.Errorf(
			"platform flow definition %s for platform %s referenced in flow definition %s cannot be found",
			yamlPath, platform, flowPath)
	}
	return nil, err
}

// mergedValues layers the configured value scopes and resolves every entry,
// letting values reference the environment and each other.
func mergedValues(platformFlow *flowcfg.PlatformFlow, project *flowcfg.ProjectFlow, env *resolve.Env) (map[string]any, error) {
	merged := flowcfg.MergedValues(platformFlow, project, platformName)
	venv := env.Clone()
	venv.Add(merged)
	return venv.ResolveMap(merged)
}
