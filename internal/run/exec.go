package run

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mtlynch/gojust/internal/eval"
	"github.com/mtlynch/gojust/internal/lang/ast"
	"github.com/mtlynch/gojust/internal/langerr"
	"github.com/mtlynch/gojust/internal/justfile"
)

// executeBody runs recipe's body in one of the three modes spec.md §4.7
// names: an explicit [script(interpreter, args...)] attribute, a `#!`
// shebang on the first rendered line, or the linewise default (each line
// passed as the script argument of the configured shell). args is the recipe's raw invocation
// arguments, threaded through for `set positional-arguments`/
// [positional-arguments] (spec.md §4.6/§6.4): unlike the bound parameter
// values, args preserves invocation order and variadic arguments
// individually, matching $1/$2/.../$@'s shell convention.
func (r *Runner) executeBody(jf *justfile.Justfile, ev *eval.Evaluator, scope *eval.Scope, recipe *ast.Recipe, env []string, args []string) error {
	// Rendering touches the shared per-module Evaluator (its lazy-assignment
	// memo), so it runs under the same lock as bindParameters/
	// buildEnvironment; only the spawned subprocess itself runs unlocked, so
	// [parallel] dependency groups still execute concurrently.
	r.lockState()
	lines, err := renderBody(ev, scope, recipe)
	r.unlockState()
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	workdir := workingDirectory(jf, recipe)
	var positional []string
	if jf.Settings.PositionalArguments || hasAttr(recipe, "positional-arguments") {
		positional = append([]string{recipe.Name}, args...)
	}

	if attr, ok := attrOf(recipe, "script"); ok {
		return r.runScript(recipe, attr.Args, lines, workdir, env, positional)
	}
	if strings.HasPrefix(strings.TrimSpace(lines[0].text), "#!") {
		return r.runShebang(recipe, lines, workdir, env, positional)
	}
	return r.runLinewise(jf, recipe, lines, workdir, env, positional)
}

type renderedLine struct {
	text   string
	quiet  bool
	ignore bool
}

func renderBody(ev *eval.Evaluator, scope *eval.Scope, recipe *ast.Recipe) ([]renderedLine, error) {
	lines := make([]renderedLine, 0, len(recipe.Body))
	for _, l := range recipe.Body {
		text, err := renderLine(ev, scope, l)
		if err != nil {
			return nil, err
		}
		lines = append(lines, renderedLine{text: text, quiet: l.Quiet, ignore: l.Ignore})
	}
	return lines, nil
}

// runLinewise runs each body line as its own invocation of the configured
// shell, echoing the command first unless quieted (spec.md §4.7 default
// execution mode). Grounded on lenticularis39-mk/recipe.go's subprocess:
// here expressed with exec.Command, the line passed as the shell's script
// argument instead of piped through raw os.Pipe + os.StartProcess. When positional is non-nil (`set positional-arguments`/
// [positional-arguments]), it is appended after the script text so the
// shell binds $0 to the recipe name and $1.../$@ to the invocation
// arguments (spec.md §4.6).
func (r *Runner) runLinewise(jf *justfile.Justfile, recipe *ast.Recipe, lines []renderedLine, workdir string, env []string, positional []string) error {
	shell := jf.Settings.Shell
	if len(shell) == 0 {
		shell = justfile.DefaultShell
	}

	for _, line := range lines {
		if line.text == "" {
			continue
		}
		quiet := r.lineIsQuiet(jf, recipe, line)
		if !quiet {
			r.echo(line.text)
		}

		argv := append(append([]string{}, shell[1:]...), line.text)
		argv = append(argv, positional...)
		cmd := exec.Command(shell[0], argv...)
		cmd.Dir = workdir
		cmd.Env = env
		cmd.Stdin = r.opts.Stdin
		cmd.Stdout = r.opts.Stdout
		cmd.Stderr = r.opts.Stderr

		err := r.runCommand(cmd)
		if err != nil && !line.ignore {
			return runErrorFor(recipe, err)
		}
	}
	return nil
}

// runShebang writes the rendered body to an executable tempfile and runs it
// directly (no shell wrapper), per spec.md §4.7's shebang execution mode.
// Grounded on cmd/just/build.go's tempdir + generated-file + exec.Command
// pattern. positional, when non-nil, is appended as argv so the script's
// own $1.../$@ see the invocation arguments (spec.md §4.6).
func (r *Runner) runShebang(recipe *ast.Recipe, lines []renderedLine, workdir string, env []string, positional []string) error {
	script := joinLines(lines)

	tmpDir, err := os.MkdirTemp("", "just-recipe-*")
	if err != nil {
		return fmt.Errorf("creating temp dir for shebang recipe: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, recipe.Name)
	if runtime.GOOS == "windows" {
		return langerr.NewRunError(recipe.Pos, recipe.Name, 1,
			"CygpathFailure: shebang recipes are not supported on windows without a cygpath-capable shell")
	}
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return fmt.Errorf("writing shebang script: %w", err)
	}

	var argv []string
	if len(positional) > 1 {
		argv = positional[1:]
	}
	cmd := exec.Command(path, argv...)
	cmd.Dir = workdir
	cmd.Env = env
	cmd.Stdin = r.opts.Stdin
	cmd.Stdout = r.opts.Stdout
	cmd.Stderr = r.opts.Stderr

	if err := r.runCommand(cmd); err != nil {
		return runErrorFor(recipe, err)
	}
	return nil
}

// runScript runs the body through an explicit [script(interpreter, args...)]
// interpreter instead of a shebang, writing the body to a tempfile the same
// way runShebang does. positional, when non-nil, is appended after the
// script path so the interpreter's own $1.../$@ see the invocation
// arguments (spec.md §4.6).
func (r *Runner) runScript(recipe *ast.Recipe, attrArgs []string, lines []renderedLine, workdir string, env []string, positional []string) error {
	if len(attrArgs) == 0 {
		return langerr.NewRunError(recipe.Pos, recipe.Name, 1, "[script] requires an interpreter argument")
	}
	script := joinLines(lines)

	tmpDir, err := os.MkdirTemp("", "just-recipe-*")
	if err != nil {
		return fmt.Errorf("creating temp dir for script recipe: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	ext := ""
	if attr, ok := attrOf(recipe, "extension"); ok && len(attr.Args) > 0 {
		ext = attr.Args[0]
	}
	path := filepath.Join(tmpDir, recipe.Name+ext)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return fmt.Errorf("writing script body: %w", err)
	}

	interpreter := attrArgs[0]
	interpreterArgs := append(append([]string{}, attrArgs[1:]...), path)
	if len(positional) > 1 {
		interpreterArgs = append(interpreterArgs, positional[1:]...)
	}
	cmd := exec.Command(interpreter, interpreterArgs...)
	cmd.Dir = workdir
	cmd.Env = env
	cmd.Stdin = r.opts.Stdin
	cmd.Stdout = r.opts.Stdout
	cmd.Stderr = r.opts.Stderr

	if err := r.runCommand(cmd); err != nil {
		return runErrorFor(recipe, err)
	}
	return nil
}

// runCommand starts cmd, registering its process with the Runner's
// interrupt.Handler (if any) so SIGINT/SIGTERM/SIGHUP/SIGQUIT forward to it (spec.md
// §4.9), then waits for it to finish and deregisters it.
func (r *Runner) runCommand(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	if r.opts.Interrupt != nil {
		r.opts.Interrupt.SetChild(cmd.Process)
		defer r.opts.Interrupt.SetChild(nil)
	}
	return cmd.Wait()
}

func joinLines(lines []renderedLine) string {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.text
	}
	return strings.Join(texts, "\n") + "\n"
}

func (r *Runner) lineIsQuiet(jf *justfile.Justfile, recipe *ast.Recipe, line renderedLine) bool {
	if line.quiet {
		return true
	}
	if hasAttr(recipe, "no-quiet") {
		return recipe.Quiet
	}
	return r.opts.Quiet || jf.Settings.Quiet || recipe.Quiet
}

// workingDirectory resolves the recipe's working directory: justfile
// directory by default, current directory if [no-cd]/set no-cd applies,
// [working-directory(...)]/set working-directory next, and finally `set
// workdir` as a global override (spec.md §4.7).
func workingDirectory(jf *justfile.Justfile, recipe *ast.Recipe) string {
	base := filepath.Dir(jf.ModulePath)

	if jf.Settings.NoCD || hasAttr(recipe, "no-cd") {
		if cwd, err := os.Getwd(); err == nil {
			base = cwd
		}
	}

	if attr, ok := attrOf(recipe, "working-directory"); ok && len(attr.Args) > 0 {
		base = resolveAgainst(base, attr.Args[0])
	} else if jf.Settings.WorkingDirectory != "" {
		base = resolveAgainst(base, jf.Settings.WorkingDirectory)
	}

	if jf.Settings.Workdir != "" {
		base = resolveAgainst(base, jf.Settings.Workdir)
	}

	return base
}

func resolveAgainst(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// NoExitMessage reports whether recipe carries [no-exit-message], so a
// caller can suppress its own failure banner while still propagating the
// exit code.
func NoExitMessage(recipe *ast.Recipe) bool {
	return hasAttr(recipe, "no-exit-message")
}

func runErrorFor(recipe *ast.Recipe, err error) error {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return langerr.NewRunError(recipe.Pos, recipe.Name, exitErr.ExitCode(), "recipe %q failed with exit code %d", recipe.Name, exitErr.ExitCode())
	}
	return langerr.NewRunError(recipe.Pos, recipe.Name, 1, "recipe %q failed: %v", recipe.Name, err)
}
