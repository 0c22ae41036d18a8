package helphelpers

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Prepare prepares cmd flag set for the invocation of its usage function by
// hiding flags that we want cobra to parse but we don't want to show to the
// user.
// The output flags are persistent flags of the root command so that
//
//	nedump --format json find file.exe Get
//
// parses, but --codepage and --no-color do nothing for 'version' and none
// of them apply to the help topics.
//
// Prepare is a destructive command, cmd can not be reused after it has been
// called.
func Prepare(cmd *cobra.Command) {
	switch cmd.Name() {
	case "help", "log":
		hideAllFlags(cmd)
	case "version":
		hideFlag(cmd, "codepage")
		hideFlag(cmd, "no-color")
		hideFlag(cmd, "log-output")
		hideFlag(cmd, "log-dest")
	case "nedump", "find":
		// All flags apply
	}
}

func hideAllFlags(cmd *cobra.Command) {
	for c := cmd; c != nil; c = c.Parent() {
		c.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
			flag.Hidden = true
		})
	}
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		flag.Hidden = true
	})
}

func hideFlag(cmd *cobra.Command, name string) {
	if cmd == nil {
		return
	}
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		flag = cmd.PersistentFlags().Lookup(name)
	}
	if flag != nil {
		flag.Hidden = true
		return
	}
	hideFlag(cmd.Parent(), name)
}
