package cmds

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/go-delve/nedump/cmd/nedump/cmds/helphelpers"
	"github.com/go-delve/nedump/pkg/config"
	"github.com/go-delve/nedump/pkg/logflags"
	"github.com/go-delve/nedump/pkg/mz"
	"github.com/go-delve/nedump/pkg/ne"
	"github.com/go-delve/nedump/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string

	// format is the output format, table, json or yaml.
	format string
	// codepage is the fallback codepage for string resources.
	codepage int
	// noColor disables colored section titles.
	noColor bool
	// all selects every action.
	all bool
	// disasmCount is the number of instructions printed by --disasm.
	disasmCount int

	// selected holds the value of every action flag.
	selected map[string]*bool

	conf *config.Config
)

const defaultDisasmCount = 16

var defaultActions = []string{"header", "segments", "resources", "imports", "exports"}

const nedumpCommandLongDesc = `nedump decodes 16-bit New Executable (NE) images, the format of Windows 3.x
and OS/2 1.x programs and libraries.

Action flags select what is printed. When none is given the actions listed
in the configuration file's default-actions are used, or the header,
segments, resources, imports and exports otherwise.

Malformed tables are decoded as far as possible, the problems found are
logged (see 'nedump help log').`

// New returns an initialized command tree.
func New() *cobra.Command {
	// Config setup and load.
	var err error
	conf, err = config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}

	rootCommand := &cobra.Command{
		Use:          "nedump [flags] file...",
		Short:        "nedump is a decoder for NE executables.",
		Long:         nedumpCommandLongDesc,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logflags.Setup(log, logOutput, logDest)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logflags.Close()
		},
		RunE: dumpCmd,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'nedump help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'nedump help log').")
	rootCommand.PersistentFlags().StringVarP(&format, "format", "f", conf.Format, "Output format: table, json or yaml.")
	rootCommand.PersistentFlags().IntVar(&codepage, "codepage", conf.Codepage(), "Codepage of string resources when the image does not declare one.")
	rootCommand.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output.")

	selected = map[string]*bool{}
	for _, a := range actions {
		selected[a.name] = rootCommand.Flags().Bool(a.name, false, a.help)
	}
	rootCommand.Flags().BoolVarP(&all, "all", "a", false, "Print everything.")
	n := defaultDisasmCount
	if conf.DisasmCount != nil {
		n = *conf.DisasmCount
	}
	rootCommand.Flags().IntVar(&disasmCount, "disasm-count", n, "Number of instructions printed by --disasm.")

	// 'find' subcommand.
	findCommand := &cobra.Command{
		Use:   "find file prefix",
		Short: "Finds exports and imports by name prefix.",
		Long: `Finds the exported and imported functions of file whose name starts with prefix.

Imports by ordinal have no name and are never found.`,
		Args: cobra.ExactArgs(2),
		RunE: findCmd,
	}
	rootCommand.AddCommand(findCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			p := newPrinter(out, format, false)
			if err := p.check(); err != nil {
				return err
			}
			if p.format != "table" {
				return p.value(version.BuildDetails())
			}
			fmt.Fprintf(out, "nedump\n%s\n", version.NEDumpVersion)
			if log {
				fmt.Fprintln(out, version.BuildInfo())
			}
			return nil
		},
	}
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:

	ne		Log header, segment, entry and name table decoding
	resources	Log resource table and resource payload decoding
	imports		Log module reference and import resolution
	cli		Log command line processing

Errors found while decoding are always logged, the components listed above
also log warnings and debug information.

Additionally --log-dest can be used to specify where the logs should be
written. If the argument is a number it will be interpreted as a file
descriptor, otherwise as a file path.
`,
	})

	defaultHelp := rootCommand.HelpFunc()
	rootCommand.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helphelpers.Prepare(cmd)
		defaultHelp(cmd, args)
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

// selectedActions returns the actions to run, in display order.
func selectedActions() ([]action, error) {
	if all {
		return actions, nil
	}
	var r []action
	for _, a := range actions {
		if *selected[a.name] {
			r = append(r, a)
		}
	}
	if len(r) > 0 {
		return r, nil
	}

	names := conf.Actions()
	if len(names) == 0 {
		names = defaultActions
	}
	for _, name := range names {
		a, ok := lookupAction(strings.TrimPrefix(name, "--"))
		if !ok {
			return nil, fmt.Errorf("unknown action %q in default-actions", name)
		}
		r = append(r, a)
	}
	return r, nil
}

func checkCodepage() error {
	if codepage < 1 || codepage > config.MaxCodepage || !ne.Codepage(codepage).Supported() {
		return fmt.Errorf("unsupported codepage %d", codepage)
	}
	return nil
}

func dumpCmd(cmd *cobra.Command, args []string) error {
	if err := checkCodepage(); err != nil {
		return err
	}
	if disasmCount < 0 {
		return fmt.Errorf("negative --disasm-count %d", disasmCount)
	}
	acts, err := selectedActions()
	if err != nil {
		return err
	}
	out, color := output(cmd)
	opts := options{
		format:      format,
		codepage:    codepage,
		color:       color,
		disasmCount: disasmCount,
	}
	return dump(out, args, acts, opts)
}

func findCmd(cmd *cobra.Command, args []string) error {
	out, color := output(cmd)
	p := newPrinter(out, format, color)
	if err := p.check(); err != nil {
		return err
	}
	if err := checkCodepage(); err != nil {
		return err
	}
	return withFile(args[0], &ne.Config{DefaultCodepage: ne.Codepage(codepage)}, func(f *ne.File) error {
		syms := f.Symbols().PrefixSearch(args[1])
		if p.format != "table" {
			return p.encode(args[0], []keyValue{{"symbols", syms}})
		}
		return printSymbols(p, syms)
	})
}

// output returns the writer for the command's output and whether section
// titles should be colored.
func output(cmd *cobra.Command) (io.Writer, bool) {
	out := cmd.OutOrStdout()
	if out != os.Stdout || noColor || (conf.Color != nil && !*conf.Color) {
		return out, false
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return out, false
	}
	return colorable.NewColorableStdout(), true
}

// errUnsupportedFormat is returned for MZ files that are not NE images.
var errUnsupportedFormat = errors.New("unsupported executable format")

// withFile decodes the NE image at path and calls fn with it.
func withFile(path string, cfg *ne.Config, fn func(f *ne.File) error) error {
	logger := logflags.CLILogger()
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()
	fi, err := fh.Stat()
	if err != nil {
		return err
	}

	kind, off, err := mz.DetectFormat(fh, fi.Size())
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	logger.Debugf("%s: %v image at %#x", path, kind, off)
	if kind != mz.FormatNE {
		return fmt.Errorf("%s: %w: %v", path, errUnsupportedFormat, kind)
	}

	f, err := ne.NewFile(fh, fi.Size(), off, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return fn(f)
}

type options struct {
	format      string
	codepage    int
	color       bool
	disasmCount int
}

// dump runs acts on every file of paths, writing to w. Every file is
// processed even if some fail, failures are logged.
func dump(w io.Writer, paths []string, acts []action, opts options) error {
	p := newPrinter(w, opts.format, opts.color)
	if err := p.check(); err != nil {
		return err
	}
	cfg := &ne.Config{DefaultCodepage: ne.Codepage(opts.codepage)}

	failed := 0
	for _, path := range paths {
		err := withFile(path, cfg, func(f *ne.File) error {
			if p.format == "table" {
				if len(paths) > 1 {
					p.title(path)
				}
				for _, a := range acts {
					if err := a.table(p, f, opts); err != nil {
						return err
					}
				}
				return nil
			}
			var doc []keyValue
			for _, a := range acts {
				v, err := a.data(f, opts)
				if err != nil {
					return err
				}
				doc = append(doc, keyValue{a.name, v})
			}
			return p.encode(path, doc)
		})
		if err != nil {
			logflags.CLILogger().Errorf("%v", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be decoded", failed, len(paths))
	}
	return nil
}
