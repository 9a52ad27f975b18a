// Package flowcfg loads and merges the two flow description documents:
// the user's project flow and the platform flow it references.
//
// Documents are YAML; since JSON is a YAML subset, flow files written as
// JSON parse unchanged.
package flowcfg

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/symbiflow/sfbuild/internal/resolve"
)

// ProjectFlow is a user-authored flow document. Platform-specific sections
// live under top-level keys named after the platform.
type ProjectFlow struct {
	Dependencies map[string]any             `yaml:"dependencies"`
	Values       map[string]any             `yaml:"values"`
	Platforms    map[string]ProjectPlatform `yaml:",inline"`
}

// ProjectPlatform is the per-platform section of a project flow.
type ProjectPlatform struct {
	Dependencies map[string]any `yaml:"dependencies"`
	Values       map[string]any `yaml:"values"`
}

// PlatformFlow describes the stages and defaults available for a platform.
type PlatformFlow struct {
	Modules       map[string]string        `yaml:"modules"`
	ModuleOptions map[string]ModuleOptions `yaml:"module_options"`
	Values        map[string]any           `yaml:"values"`
}

// ModuleOptions tweak a single stage: params are passed to the module
// verbatim, values shadow the global scope for that stage only.
type ModuleOptions struct {
	Params map[string]any `yaml:"params"`
	Values map[string]any `yaml:"values"`
}

// LoadProject reads and parses a project flow document.
func LoadProject(path string) (*ProjectFlow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DocumentError{Path: path, Err: err}
	}
	var flow ProjectFlow
	if err := yaml.Unmarshal(data, &flow); err != nil {
		return nil, &DocumentError{Path: path, Err: fmt.Errorf("parsing flow document: %w", err)}
	}
	return &flow, nil
}

// LoadPlatform reads and parses a platform flow document.
func LoadPlatform(path string) (*PlatformFlow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DocumentError{Path: path, Err: err}
	}
	var flow PlatformFlow
	if err := yaml.Unmarshal(data, &flow); err != nil {
		return nil, &DocumentError{Path: path, Err: fmt.Errorf("parsing platform flow document: %w", err)}
	}
	return &flow, nil
}

// Platform returns the project's section for the named platform.
func (p *ProjectFlow) Platform(name string) (ProjectPlatform, bool) {
	section, ok := p.Platforms[name]
	return section, ok
}

// MergedValues layers the value scopes: platform flow values, then project
// values, then the project's per-platform values. Later layers win.
func MergedValues(platform *PlatformFlow, project *ProjectFlow, platformName string) map[string]any {
	values := make(map[string]any)
	for k, v := range platform.Values {
		values[k] = v
	}
	for k, v := range project.Values {
		values[k] = v
	}
	if section, ok := project.Platform(platformName); ok {
		for k, v := range section.Values {
			values[k] = v
		}
	}
	return values
}

// ExplicitDeps collects the dependency paths spelled out by the project,
// global ones first, then per-platform ones, each resolved against env.
func ExplicitDeps(project *ProjectFlow, platformName string, env *resolve.Env) (map[string]any, error) {
	deps := make(map[string]any)
	merge := func(src map[string]any) error {
		if src == nil {
			return nil
		}
		resolved, err := env.ResolveMap(src)
		if err != nil {
			return err
		}
		for k, v := range resolved {
			deps[k] = v
		}
		return nil
	}
	if err := merge(project.Dependencies); err != nil {
		return nil, err
	}
	if section, ok := project.Platform(platformName); ok {
		if err := merge(section.Dependencies); err != nil {
			return nil, err
		}
	}
	return deps, nil
}

// ParseExplicitPaths parses the operator's name=path[,name=path...] override
// list and resolves each path against env.
func ParseExplicitPaths(list string, env *resolve.Env) (map[string]any, error) {
	paths := make(map[string]any)
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, path, ok := strings.Cut(entry, "=")
		if !ok || name == "" || path == "" {
			return nil, &DocumentError{
				Path: entry,
				Err:  fmt.Errorf("explicit path must have the form name=path"),
			}
		}
		resolved, err := env.Resolve(path)
		if err != nil {
			return nil, err
		}
		paths[name] = resolved
	}
	return paths, nil
}

// DocumentError reports a missing or malformed flow document.
type DocumentError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *DocumentError) Error() string {
	return fmt.Sprintf("flow configuration %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *DocumentError) Unwrap() error {
	return e.Err
}
