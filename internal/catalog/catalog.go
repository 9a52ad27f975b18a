// Package catalog discovers stage module collections and instantiates the
// stage descriptors of a platform flow.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/symbiflow/sfbuild/internal/dep"
	"github.com/symbiflow/sfbuild/internal/flowcfg"
	"github.com/symbiflow/sfbuild/internal/module"
	"github.com/symbiflow/sfbuild/internal/resolve"
)

// collectionPattern matches module collection directories inside the
// sfbuild home directory.
var collectionPattern = regexp.MustCompile(`^sf_(.*)_modules$`)

// StageIO is one declared input or output of a stage.
type StageIO struct {
	// Name is the symbolic dependency name with qualifiers stripped.
	Name string

	// Required is false for takes declared with the optional marker.
	Required bool
}

// Stage describes one step of a platform flow. Stages are immutable after
// construction: the name, takes and produces sets stay exactly as the
// module reported them in io mode.
type Stage struct {
	// Name is the stage name, unique within a flow.
	Name string

	// Module is the resolved path of the backing executable.
	Module string

	// Takes lists the dependencies the stage consumes.
	Takes []StageIO

	// Produces lists the dependencies the stage produces.
	Produces []StageIO

	// ValueOverrides shadow the global value scope for this stage only.
	ValueOverrides map[string]any

	// Params are passed to the module verbatim on every invocation.
	Params map[string]any

	// Meta maps produced dependency names to human-readable descriptions.
	Meta map[string]string
}

// Catalog resolves module references and builds stage descriptors.
type Catalog struct {
	home        string
	collections map[string]string
	runner      *module.Runner
	logger      *slog.Logger
}

// New creates a Catalog rooted at the sfbuild home directory. The home is
// scanned once for sf_<collection>_modules directories.
func New(home string, runner *module.Runner, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(home)
	if err != nil {
		return nil, fmt.Errorf("scanning module collections in %s: %w", home, err)
	}
	collections := make(map[string]string)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m := collectionPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		collections[m[1]] = filepath.Join(home, entry.Name())
	}
	logger.Debug("scanned module collections",
		slog.String("home", home),
		slog.Int("count", len(collections)),
	)
	return &Catalog{
		home:        home,
		collections: collections,
		runner:      runner,
		logger:      logger,
	}, nil
}

// Collections returns the discovered collection names in sorted order.
func (c *Catalog) Collections() []string {
	names := make([]string, 0, len(c.collections))
	for name := range c.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveModuleRef resolves a module reference to an executable path. A
// reference is either a bare filesystem path or <collection>:<module-name>;
// more than one ':' is a syntax error.
func (c *Catalog) ResolveModuleRef(ref string) (string, error) {
	parts := strings.Split(ref, ":")
	switch len(parts) {
	case 1:
		return ref, nil
	case 2:
		colPath, ok := c.collections[parts[0]]
		if !ok {
			return "", &UnknownCollectionError{Collection: parts[0], Ref: ref}
		}
		return filepath.Join(colPath, parts[1]), nil
	default:
		return "", &BadModuleRefError{Ref: ref}
	}
}

// LoadStages instantiates a stage descriptor for every module of a platform
// flow. Stage value overrides are deep-resolved against env; each module is
// interrogated in io mode for its takes, produces and metadata.
func (c *Catalog) LoadStages(ctx context.Context, flow *flowcfg.PlatformFlow, env *resolve.Env) ([]*Stage, error) {
	names := make([]string, 0, len(flow.Modules))
	for name := range flow.Modules {
		names = append(names, name)
	}
	sort.Strings(names)

	stages := make([]*Stage, 0, len(names))
	for _, name := range names {
		opts := flow.ModuleOptions[name]
		stage, err := c.newStage(ctx, name, flow.Modules[name], opts, env)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

func (c *Catalog) newStage(ctx context.Context, name, ref string, opts flowcfg.ModuleOptions, env *resolve.Env) (*Stage, error) {
	modPath, err := c.ResolveModuleRef(ref)
	if err != nil {
		return nil, err
	}
	if info, err := os.Lstat(modPath); err != nil || info.IsDir() {
		// A bare reference may still name an executable on PATH.
		found, lookErr := exec.LookPath(modPath)
		if lookErr != nil {
			return nil, &MissingModuleError{Stage: name, Module: modPath}
		}
		modPath = found
	}

	overrides := make(map[string]any)
	if len(opts.Values) > 0 {
		// Stage values may reference each other, so each resolved value
		// is folded back into a stage-local environment before the next
		// one is resolved.
		stageEnv := env.Clone()
		keys := make([]string, 0, len(opts.Values))
		for k := range opts.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			resolved, err := stageEnv.Resolve(opts.Values[k])
			if err != nil {
				return nil, fmt.Errorf("stage %s: %w", name, err)
			}
			stageEnv.Set(k, resolved)
			overrides[k] = resolved
		}
	}

	resp, err := c.runner.IO(ctx, modPath, module.IOConfig{Params: opts.Params})
	if err != nil {
		return nil, err
	}

	stage := &Stage{
		Name:           name,
		Module:         modPath,
		Takes:          parseIOList(resp.Takes),
		Produces:       parseIOList(resp.Produces),
		ValueOverrides: overrides,
		Params:         opts.Params,
		Meta:           resp.Meta,
	}

	c.logger.Debug("loaded stage",
		slog.String("stage", name),
		slog.String("module", modPath),
		slog.Int("takes", len(stage.Takes)),
		slog.Int("produces", len(stage.Produces)),
	)
	return stage, nil
}

func parseIOList(encoded []string) []StageIO {
	ios := make([]StageIO, 0, len(encoded))
	for _, e := range encoded {
		name, required := dep.ParseName(e)
		ios = append(ios, StageIO{Name: name, Required: required})
	}
	return ios
}
