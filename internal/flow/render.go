package flow

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/symbiflow/sfbuild/internal/catalog"
	"github.com/symbiflow/sfbuild/internal/dep"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	blue   = color.New(color.FgBlue).SprintFunc()
)

// Plan status markers:
//
//	[O] up to date
//	[N] up to date, but consumers observed it as differing
//	[R] exists, will be rebuilt
//	[S] missing, will be built
//	[U] unresolved, has a producer
//	[X] missing, no way to produce it
const (
	markerOK       = "[O]"
	markerNew      = "[N]"
	markerRebuild  = "[R]"
	markerStale    = "[S]"
	markerUnknown  = "[U]"
	markerMissing  = "[X]"
	sourceMissing  = "MISSING"
	sourceUnmapped = "???"
)

// PrintPlan renders the per-dependency plan, one line per dependency the
// planner touched, in lexicographic order.
func (f *Flow) PrintPlan(w io.Writer) {
	deps := make([]string, 0, len(f.depsRebuilds))
	for name := range f.depsRebuilds {
		deps = append(deps, name)
	}
	sort.Strings(deps)

	for _, name := range deps {
		status := red(markerMissing)
		source := yellow(sourceMissing)
		paths := f.depPaths[name]
		provider := f.osMap[name]

		if paths != nil {
			exists := dep.Exists(paths)
			switch {
			case provider != nil && f.runStages[provider.Name]:
				if exists {
					status = yellow(markerRebuild)
				} else {
					status = yellow(markerStale)
				}
				source = fmt.Sprintf("%s -> %s", blue(provider.Name), renderPaths(paths))
			case exists:
				if f.depsRebuilds[name] > 0 {
					status = green(markerNew)
				} else {
					status = green(markerOK)
				}
				source = renderPaths(paths)
			}
		} else if provider != nil {
			status = red(markerUnknown)
			source = fmt.Sprintf("%s -> %s", blue(provider.Name), sourceUnmapped)
		}

		fmt.Fprintf(w, "    %s %s:  %s\n", bold(status), bold(name), source)
	}
}

// renderPaths flattens a path value for display.
func renderPaths(paths any) string {
	switch v := paths.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = renderPaths(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + renderPaths(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}

// PrintDepInfo lists every dependency producible by the given stages with
// its description and producing stage, sorted by dependency name.
func PrintDepInfo(w io.Writer, stages []*catalog.Stage) {
	type entry struct {
		name  string
		stage string
		desc  string
	}
	var entries []entry
	longest := 0
	for _, stage := range stages {
		for _, out := range stage.Produces {
			desc := stage.Meta[out.Name]
			entries = append(entries, entry{name: out.Name, stage: stage.Name, desc: desc})
			if len(out.Name) > longest {
				longest = len(out.Name)
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	fmt.Fprintln(w, "Platform dependencies/targets:")
	indent := strings.Repeat(" ", longest+7)
	for _, e := range entries {
		desc := strings.ReplaceAll(e.desc, "\n", "\n"+indent)
		pad := strings.Repeat(" ", longest-len(e.name)+3)
		fmt.Fprintf(w, "    %s:%s%s\n%s%s\n",
			bold(e.name), pad, desc, indent, dim("module: `"+e.stage+"`"))
	}
}
