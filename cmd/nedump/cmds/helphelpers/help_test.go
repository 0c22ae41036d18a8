package helphelpers

import (
	"testing"

	"github.com/spf13/cobra"
)

func newTree() (root, find, version *cobra.Command) {
	root = &cobra.Command{Use: "nedump"}
	root.PersistentFlags().String("format", "", "")
	root.PersistentFlags().Int("codepage", 0, "")
	root.PersistentFlags().Bool("log", false, "")
	root.Flags().Bool("exports", false, "")
	find = &cobra.Command{Use: "find"}
	version = &cobra.Command{Use: "version"}
	root.AddCommand(find, version)
	return
}

func TestPrepare(t *testing.T) {
	root, find, version := newTree()
	Prepare(find)
	for _, name := range []string{"format", "codepage", "log"} {
		if root.PersistentFlags().Lookup(name).Hidden {
			t.Errorf("%s hidden for find", name)
		}
	}

	Prepare(version)
	if !root.PersistentFlags().Lookup("codepage").Hidden {
		t.Errorf("codepage not hidden for version")
	}
	if root.PersistentFlags().Lookup("log").Hidden || root.PersistentFlags().Lookup("format").Hidden {
		t.Errorf("flag used by version hidden")
	}
	if root.Flags().Lookup("exports").Hidden {
		t.Errorf("root flag hidden for version")
	}
}

func TestPrepareHelp(t *testing.T) {
	root, _, _ := newTree()
	help := &cobra.Command{Use: "log"}
	root.AddCommand(help)
	Prepare(help)
	for _, name := range []string{"format", "codepage", "log"} {
		if !root.PersistentFlags().Lookup(name).Hidden {
			t.Errorf("%s not hidden for log", name)
		}
	}
}
