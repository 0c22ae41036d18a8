package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Module is a module linked into the binary.
type Module struct {
	Path    string `json:"path" yaml:"path"`
	Version string `json:"version" yaml:"version"`
	Sum     string `json:"sum,omitempty" yaml:"sum,omitempty"`
}

// Details describes the running binary.
type Details struct {
	Version   string   `json:"version" yaml:"version"`
	Build     string   `json:"build" yaml:"build"`
	GoVersion string   `json:"go_version" yaml:"go_version"`
	Main      *Module  `json:"main,omitempty" yaml:"main,omitempty"`
	Deps      []Module `json:"deps" yaml:"deps"`
}

// BuildDetails returns the version of nedump, of the Go toolchain that
// built it and of every module linked in. Replaced modules are reported
// with their replacement.
func BuildDetails() Details {
	v := NEDumpVersion
	fixBuild(&v)
	d := Details{
		Version:   v.Semver(),
		Build:     v.Build,
		GoVersion: runtime.Version(),
		Deps:      []Module{},
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return d
	}
	d.Main = &Module{Path: info.Main.Path, Version: info.Main.Version, Sum: info.Main.Sum}
	for _, dep := range info.Deps {
		if dep.Replace != nil {
			dep = dep.Replace
		}
		d.Deps = append(d.Deps, Module{Path: dep.Path, Version: dep.Version, Sum: dep.Sum})
	}
	return d
}

// BuildInfo returns BuildDetails as text, one module per line.
func BuildInfo() string {
	d := BuildDetails()
	var sb strings.Builder
	sb.WriteString(d.GoVersion)
	sb.WriteByte('\n')
	if d.Main == nil {
		sb.WriteString("not built in module mode\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, " mod\t%s\t%s\t%s\n", d.Main.Path, d.Main.Version, d.Main.Sum)
	for _, dep := range d.Deps {
		fmt.Fprintf(&sb, " dep\t%s\t%s\t%s\n", dep.Path, dep.Version, dep.Sum)
	}
	return sb.String()
}
