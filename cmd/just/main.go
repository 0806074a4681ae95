// Command just is the CLI entrypoint: global option parsing, justfile
// discovery, and dispatch into one of the read-only introspection actions
// (--dump/--list/--show/--evaluate/--variables/--recipe-exists/--request)
// or the default lex -> parse -> load -> analyze -> plan -> run pipeline
// (spec.md §6.1).
//
// Grounded on cmd/gmx/main.go's read-file -> lex -> parse -> (resolve) ->
// generate -> write shape; subcommand dispatch kept in the same
// one-file-per-concern style as cmd/gmx/{run,build,compile}.go, upgraded
// from stdlib flag to github.com/spf13/pflag (kraklabs-cie/cmd/cie/start.go's
// `flag "github.com/spf13/pflag"` aliasing) since the real CLI surface needs
// repeatable and enum flags the stdlib flag package has no clean support for.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/mtlynch/gojust/internal/analyzer"
	"github.com/mtlynch/gojust/internal/interrupt"
	"github.com/mtlynch/gojust/internal/justfile"
	"github.com/mtlynch/gojust/internal/langerr"
	"github.com/mtlynch/gojust/internal/loader"
)

// globalFlags holds every option spec.md §6.1 lists "before the first recipe
// name".
type globalFlags struct {
	justfilePath     string
	workingDirectory string
	ceiling          string
	dotenvPath       string
	dotenvFilename   string
	color            string
	commandColor     string
	shell            string
	shellArgs        []string
	yes              bool
	dryRun           bool
	quiet            bool
	verbose          bool
	unstable         bool
	timestamps       bool
	timestampFormat  string

	list       bool
	listAll    bool
	groups     bool
	summary    bool
	show       string
	evaluate   bool
	evalName   string
	variables  bool
	dumpFlag   bool
	dumpFormat string

	noDeps       bool
	noAliases    bool
	allowMissing bool
	ifPresent    bool
	recipeExists string
	request      string
	command      []string

	// Wired for CLI surface completeness (spec.md §5 Non-goals): these have
	// no implementation, only a clear "not implemented" failure.
	choose      bool
	chooser     string
	edit        bool
	init        bool
	fmtFlag     bool
	fmtCheck    bool
	completions string
	changelog   bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	setOverrides, rest := extractSetFlags(argv)

	g := &globalFlags{color: "auto", dumpFormat: "json"}
	fs := flag.NewFlagSet("just", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: just [OPTIONS] [RECIPE [ARGS...]]...")
		fs.PrintDefaults()
	}

	fs.StringVarP(&g.justfilePath, "justfile", "f", "", "use PATH as the justfile")
	fs.StringVar(&g.workingDirectory, "working-directory", "", "use PATH as the working directory")
	fs.StringVar(&g.ceiling, "ceiling", os.Getenv("JUST_CEILING"), "stop searching for a justfile at PATH")
	fs.StringVar(&g.dotenvPath, "dotenv-path", "", "search for dotenv file at PATH")
	fs.StringVar(&g.dotenvFilename, "dotenv-filename", "", "use NAME instead of .env")
	fs.StringVar(&g.color, "color", "auto", "print colorful output: auto, always, never")
	fs.StringVar(&g.commandColor, "command-color", "", "echo recipe lines in NAME")
	fs.StringVar(&g.shell, "shell", "", "invoke CMD to run recipes")
	fs.StringArrayVar(&g.shellArgs, "shell-arg", nil, "invoke shell with ARG as an argument (repeatable)")
	fs.BoolVarP(&g.yes, "yes", "y", false, "automatically confirm all recipes")
	fs.BoolVarP(&g.dryRun, "dry-run", "n", false, "print what just would do, without doing it")
	fs.BoolVarP(&g.quiet, "quiet", "q", false, "suppress all recipe output")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "print diagnostic information")
	fs.BoolVar(&g.unstable, "unstable", false, "accepted but has no effect; unstable features are enabled only by `set unstable`")
	fs.BoolVar(&g.timestamps, "timestamps", false, "print a timestamp before each recipe line")
	fs.StringVar(&g.timestampFormat, "timestamp-format", "%H:%M:%S", "timestamp strftime format string")

	fs.BoolVarP(&g.list, "list", "l", false, "list recipes")
	fs.BoolVar(&g.listAll, "list-all", false, "list recipes in this justfile and all submodules")
	fs.BoolVar(&g.groups, "groups", false, "list recipe groups")
	fs.BoolVar(&g.summary, "summary", false, "list recipe names on one line, separated by spaces")
	fs.StringVar(&g.show, "show", "", "show RECIPE's definition")
	fs.BoolVar(&g.evaluate, "evaluate", false, "evaluate and print all variables, or a single NAME")
	fs.BoolVar(&g.variables, "variables", false, "list names of variables")
	fs.BoolVar(&g.dumpFlag, "dump", false, "print the justfile")
	fs.StringVar(&g.dumpFormat, "dump-format", "json", "dump format: just, json")

	fs.BoolVar(&g.noDeps, "no-deps", false, "don't run recipe dependencies")
	fs.BoolVar(&g.noAliases, "no-aliases", false, "don't show aliases in --list")
	fs.BoolVar(&g.allowMissing, "allow-missing", false, "ignore missing recipes")
	fs.BoolVar(&g.ifPresent, "if-present", false, "exit gracefully if recipe is missing")
	fs.StringVar(&g.recipeExists, "recipe-exists", "", "report whether NAME is a known recipe")
	fs.StringVar(&g.request, "request", "", "respond to a JSON introspection request")

	fs.BoolVar(&g.choose, "choose", false, "select a recipe interactively (not implemented)")
	fs.StringVar(&g.chooser, "chooser", "", "interactive chooser command (not implemented)")
	fs.BoolVar(&g.edit, "edit", false, "open the justfile in $EDITOR (not implemented)")
	fs.BoolVar(&g.init, "init", false, "scaffold a new justfile (not implemented)")
	fs.BoolVar(&g.fmtFlag, "fmt", false, "format the justfile (not implemented)")
	fs.BoolVar(&g.fmtCheck, "check", false, "with --fmt, fail instead of writing (not implemented)")
	fs.StringVar(&g.completions, "completions", "", "emit shell completions for SHELL (not implemented)")
	fs.BoolVar(&g.changelog, "changelog", false, "print the changelog (not implemented)")

	if err := fs.Parse(rest); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	if i := fs.ArgsLenAtDash(); i >= 0 && g.command == nil {
		g.command = fs.Args()[i:]
	}

	return dispatch(g, fs.Args(), setOverrides)
}

// extractSetFlags pulls out every `--set KEY VALUE` pair before pflag ever
// sees argv: pflag flags take at most one value each, but spec.md §6.1
// defines `--set` as two separate tokens, matching real just's own
// irregular two-arg parsing of this one flag.
func extractSetFlags(argv []string) (map[string]string, []string) {
	overrides := make(map[string]string)
	var rest []string
	for i := 0; i < len(argv); i++ {
		if argv[i] == "--set" && i+2 < len(argv) {
			overrides[argv[i+1]] = argv[i+2]
			i += 2
			continue
		}
		rest = append(rest, argv[i])
	}
	return overrides, rest
}

func dispatch(g *globalFlags, args []string, setOverrides map[string]string) int {
	if g.workingDirectory != "" {
		if err := os.Chdir(g.workingDirectory); err != nil {
			fmt.Fprintf(os.Stderr, "error: changing to working directory: %v\n", err)
			return 1
		}
	}

	switch {
	case g.choose, g.chooser != "", g.edit, g.init, g.fmtFlag, g.completions != "", g.changelog:
		fmt.Fprintln(os.Stderr, "error: not implemented: this option is an external-collaborator feature outside this build's scope")
		return 1
	}

	if g.request != "" {
		return handleRequest(g.request)
	}

	path, err := locateJustfile(g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	ld := loader.New()
	mod := ld.LoadRoot(path)
	if ld.Errors().HasErrors() {
		return reportErrors(ld.Errors(), g.color)
	}

	a := analyzer.New()
	jf := a.Analyze(mod)
	if a.Errors().HasErrors() {
		return reportErrors(a.Errors(), g.color)
	}
	applyOverrideSettings(jf, g)

	switch {
	case g.dumpFlag:
		return runDump(jf, g)
	case g.recipeExists != "":
		return runRecipeExists(jf, g.recipeExists)
	case g.variables:
		return runVariables(jf)
	case g.evaluate:
		return runEvaluate(jf, g, args)
	case g.show != "":
		return runShow(jf, g.show)
	case g.list, g.listAll:
		return runList(jf, g)
	case g.groups:
		return runGroups(jf)
	case g.summary:
		return runSummary(jf)
	case len(g.command) > 0:
		return runCommand(g)
	}

	h := interrupt.New()
	defer h.Stop()
	return runRecipes(jf, args, setOverrides, g, h)
}

// locateJustfile resolves the path the loader should parse: an explicit
// --justfile, or a ceiling-bounded upward walk from the working directory
// for "justfile", "Justfile", or ".justfile" (spec.md §6.1/§4.4).
func locateJustfile(g *globalFlags) (string, error) {
	if g.justfilePath != "" {
		return g.justfilePath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determining working directory: %w", err)
	}
	ceiling := ""
	if g.ceiling != "" {
		if abs, err := filepath.Abs(g.ceiling); err == nil {
			ceiling = abs
		}
	}

	for {
		for _, name := range []string{"justfile", "Justfile", ".justfile"} {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		if dir == ceiling {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("NoJustfileFound: no justfile found in %q or any parent up to the ceiling", dir)
}

func reportErrors(errs *langerr.List, color string) int {
	colorize := color != "never"
	for _, e := range errs.Errors {
		fmt.Fprintln(os.Stderr, langerr.Render(e, sourceFor(e.Position().File), colorize))
	}
	return 1
}

// sourceFor re-reads the file an error points into so langerr.Render can draw
// its caret-underlined context line; errors with no recoverable source (e.g.
// a run-time failure with no backing file) just render without the snippet.
func sourceFor(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// applyOverrideSettings folds CLI-level overrides of justfile settings
// (--shell, --shell-arg, --dotenv-path, --dotenv-filename, --quiet) on top of
// whatever `set` directives the justfile itself declared; CLI flags win.
func applyOverrideSettings(jf *justfile.Justfile, g *globalFlags) {
	if g.shell != "" {
		jf.Settings.Shell = append([]string{g.shell}, g.shellArgs...)
	}
	if g.dotenvPath != "" {
		jf.Settings.DotenvPath = g.dotenvPath
		jf.Settings.DotenvLoad = true
	}
	if g.dotenvFilename != "" {
		jf.Settings.DotenvFilename = g.dotenvFilename
	}
	if g.quiet {
		jf.Settings.Quiet = true
	}
}

func runCommand(g *globalFlags) int {
	if len(g.command) == 0 {
		fmt.Fprintln(os.Stderr, "error: --command requires a command")
		return 2
	}
	name := g.command[0]
	var cmdArgs []string
	if len(g.command) > 1 {
		cmdArgs = g.command[1:]
	}
	return execDirect(name, cmdArgs)
}

func runRecipeExists(jf *justfile.Justfile, name string) int {
	if _, ok := jf.Recipes[name]; ok {
		return 0
	}
	return 1
}

