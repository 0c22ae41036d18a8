package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Version is a release of nedump.
type Version struct {
	Major    string
	Minor    string
	Patch    string
	Metadata string
	Build    string
}

// NEDumpVersion is the current version of nedump.
var NEDumpVersion = Version{
	Major: "0", Minor: "3", Patch: "1", Metadata: "",
	Build: "$Id$",
}

// Semver returns major.minor.patch, followed by -metadata when set.
func (v Version) Semver() string {
	s := v.Major + "." + v.Minor + "." + v.Patch
	if v.Metadata != "" {
		s += "-" + v.Metadata
	}
	return s
}

func (v Version) String() string {
	fixBuild(&v)
	return fmt.Sprintf("Version: %s\nBuild: %s", v.Semver(), v.Build)
}

// fixBuild replaces an unexpanded $Id$ with the VCS revision recorded by
// the go command, if any.
func fixBuild(v *Version) {
	if !strings.HasPrefix(v.Build, "$Id$") {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			v.Build = setting.Value
			return
		}
	}
}
