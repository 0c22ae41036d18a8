package main

import (
	"os"

	"github.com/go-delve/nedump/cmd/nedump/cmds"
	"github.com/go-delve/nedump/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.NEDumpVersion.Build = Build
	}
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
