// Package run executes a plan.Plan against resolved justfiles: dependency
// scheduling and de-duplication, the six-step environment overlay, the
// three recipe-body execution modes, working-directory resolution,
// OS-gating, confirmation prompts, and [cached] memoization (spec.md §4.7).
//
// Grounded on lenticularis39-mk/recipe.go's dorecipe/subprocess (os.Pipe +
// os.StartProcess + proc.Wait, piping a recipe body to shell stdin) for
// linewise execution, adapted to exec.Command with each line passed as the
// shell's script argument, and on cmd/just/build.go's tempdir + generated-file + exec.Command
// pattern for shebang/script execution.
package run

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/mtlynch/gojust/internal/eval"
	"github.com/mtlynch/gojust/internal/interrupt"
	"github.com/mtlynch/gojust/internal/lang/ast"
	"github.com/mtlynch/gojust/internal/langerr"
	"github.com/mtlynch/gojust/internal/justfile"
	"github.com/mtlynch/gojust/internal/plan"
)

// Options configures a Runner (spec.md §6.1's execution-affecting flags).
type Options struct {
	DryRun     bool
	Yes        bool // bypass [confirm] prompts
	Quiet      bool // global -q/--quiet override
	Verbose    bool
	NoDeps     bool // skip running dependencies
	Color      bool
	Timestamps bool // prefix echoed command lines with a clock time
	Stdout     io.Writer
	Stderr     io.Writer
	Stdin      io.Reader
	Interrupt  *interrupt.Handler // nil disables child-process signal forwarding
}

// Runner executes invocations against one or more justfiles, sharing a
// ran-set and [cached] memo across the whole process run.
type Runner struct {
	opts       Options
	evaluators map[*justfile.Justfile]*eval.Evaluator
	ran        map[string]bool
	cached     map[string]bool

	// mu guards every field above plus Evaluator use, so [parallel]
	// dependency groups (runPriorsParallel) can share one Runner and
	// one per-module Evaluator across goroutines without racing; the actual
	// subprocess (executeBody) runs outside the lock.
	mu sync.Mutex
}

// New creates a Runner with opts, defaulting Stdout/Stderr/Stdin to the
// process's own when left nil.
func New(opts Options) *Runner {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	return &Runner{
		opts:       opts,
		evaluators: make(map[*justfile.Justfile]*eval.Evaluator),
		ran:        make(map[string]bool),
		cached:     make(map[string]bool),
	}
}

// Execute validates and runs every invocation in p, in order.
func (r *Runner) Execute(p *plan.Plan) error {
	for _, inv := range p.Invocations {
		if err := plan.Validate(inv); err != nil {
			return err
		}
		if err := r.runRecipe(inv.Justfile, inv.Recipe, inv.Args); err != nil {
			return err
		}
	}
	return nil
}

// lockState acquires r.mu and, if an interrupt.Handler is wired in, defers
// SIGINT for the duration: spec.md §4.9's example of a blocked critical
// section is "editing the ran-set", which is exactly what these locked
// spans do (ran-set/[cached] map mutation, environment construction).
func (r *Runner) lockState() {
	if r.opts.Interrupt != nil {
		r.opts.Interrupt.Block()
	}
	r.mu.Lock()
}

func (r *Runner) unlockState() {
	r.mu.Unlock()
	if r.opts.Interrupt != nil {
		r.opts.Interrupt.Unblock()
	}
}

// evaluatorFor returns (creating if necessary) the Evaluator for jf.
func (r *Runner) evaluatorFor(jf *justfile.Justfile) *eval.Evaluator {
	if ev, ok := r.evaluators[jf]; ok {
		return ev
	}
	ev := eval.New(jf, eval.NewContext(jf.ModulePath))
	r.evaluators[jf] = ev
	return ev
}

// runRecipe runs one (recipe, args) invocation: OS gating, dependency
// scheduling, [cached]/[confirm] gating, then the recipe body. Safe to call
// from multiple goroutines (runPriorsParallel does); everything but
// the subprocess itself runs under r.mu.
func (r *Runner) runRecipe(jf *justfile.Justfile, recipe *ast.Recipe, args []string) error {
	if !osMatches(recipe) {
		return nil
	}

	r.lockState()
	key := recipeKey(jf, recipe, args)
	if r.ran[key] {
		r.unlockState()
		return nil
	}
	r.ran[key] = true

	ev := r.evaluatorFor(jf)
	scope := ev.RootScope().Push()
	bound, err := bindParameters(ev, scope, recipe.Parameters, args)
	r.unlockState()
	if err != nil {
		return err
	}

	if !r.opts.NoDeps {
		if err := r.runPriors(jf, ev, scope, recipe); err != nil {
			return err
		}
	}

	r.lockState()
	alreadyCached := hasAttr(recipe, "cached") && r.cached[key]
	r.unlockState()
	if alreadyCached {
		return nil
	}

	if hasAttr(recipe, "confirm") && !r.opts.Yes {
		ok, err := r.confirm(recipe)
		if err != nil {
			return err
		}
		if !ok {
			return langerr.NewRunError(recipe.Pos, recipe.Name, 1, "recipe execution declined")
		}
	}

	if r.opts.DryRun {
		r.lockState()
		r.echoBody(jf, ev, scope, recipe)
		r.unlockState()
		return nil
	}

	r.lockState()
	env, err := buildEnvironment(jf, ev, recipe, bound)
	r.unlockState()
	if err != nil {
		return err
	}

	bodyErr := r.executeBody(jf, ev, scope, recipe, env, args)
	if bodyErr != nil {
		if !r.opts.NoDeps {
			// A recovery failure does not replace the body's error.
			_ = r.runRecoveries(jf, ev, scope, recipe)
		}
		return bodyErr
	}

	if hasAttr(recipe, "cached") {
		r.lockState()
		r.cached[key] = true
		r.unlockState()
	}

	if !r.opts.NoDeps {
		if err := r.runSubsequents(jf, ev, scope, recipe); err != nil {
			return err
		}
	}
	return nil
}

// runPriors runs recipe's priors (recipe.Deps, skipping any `||`-marked
// recovery entries): concurrently, all at once, if recipe carries
// [parallel] (spec.md §4.7's "parallel dependency groups"); otherwise
// serially, in declaration order. Priors complete before the body runs
// (spec.md §4.7 "ordering guarantees"); the first failure aborts the rest.
func (r *Runner) runPriors(jf *justfile.Justfile, ev *eval.Evaluator, scope *eval.Scope, recipe *ast.Recipe) error {
	if hasAttr(recipe, "parallel") {
		return r.runPriorsParallel(jf, ev, scope, recipe)
	}

	for _, dep := range recipe.Deps {
		if dep.Recovery {
			continue
		}
		target, depArgs, err := r.resolveDependency(jf, ev, scope, dep)
		if err != nil {
			return err
		}
		if err := r.runRecipe(jf, target, depArgs); err != nil {
			return err
		}
	}
	return nil
}

// runPriorsParallel runs every non-recovery entry of recipe.Deps
// concurrently via an errgroup (grounded on golang.org/x/sync/errgroup as
// the idiomatic replacement for a hand-rolled WaitGroup/semaphore).
func (r *Runner) runPriorsParallel(jf *justfile.Justfile, ev *eval.Evaluator, scope *eval.Scope, recipe *ast.Recipe) error {
	g := new(errgroup.Group)
	for _, dep := range recipe.Deps {
		if dep.Recovery {
			continue
		}
		dep := dep
		g.Go(func() error {
			target, depArgs, err := r.resolveDependency(jf, ev, scope, dep)
			if err != nil {
				return err
			}
			return r.runRecipe(jf, target, depArgs)
		})
	}
	return g.Wait()
}

// runRecoveries runs the `||`-marked entries of recipe.Deps, serially in
// declaration order, after recipe's own body has failed (GLOSSARY
// "Recovery"; spec.md §4.7 step 3). The original body error still
// propagates once recoveries finish running, successful or not — recovery
// runs alongside the failure, it doesn't absolve it.
func (r *Runner) runRecoveries(jf *justfile.Justfile, ev *eval.Evaluator, scope *eval.Scope, recipe *ast.Recipe) error {
	for _, dep := range recipe.Deps {
		if !dep.Recovery {
			continue
		}
		target, depArgs, err := r.resolveDependency(jf, ev, scope, dep)
		if err != nil {
			return err
		}
		if err := r.runRecipe(jf, target, depArgs); err != nil {
			return err
		}
	}
	return nil
}

// runSubsequents runs recipe.Subsequents, serially in declaration order,
// after recipe's own body has completed successfully (GLOSSARY
// "Subsequent"; spec.md §4.7 step 2 / "ordering guarantees": "the body
// completes before subsequents").
func (r *Runner) runSubsequents(jf *justfile.Justfile, ev *eval.Evaluator, scope *eval.Scope, recipe *ast.Recipe) error {
	for _, dep := range recipe.Subsequents {
		target, depArgs, err := r.resolveDependency(jf, ev, scope, dep)
		if err != nil {
			return err
		}
		if err := r.runRecipe(jf, target, depArgs); err != nil {
			return err
		}
	}
	return nil
}

// resolveDependency looks up dep's target recipe, evaluates its argument
// expressions against the caller's scope, and validates them against the
// target's parameters before the dependency runs (spec.md §4.7).
func (r *Runner) resolveDependency(jf *justfile.Justfile, ev *eval.Evaluator, scope *eval.Scope, dep ast.Dependency) (*ast.Recipe, []string, error) {
	r.lockState()
	target, ok := jf.Recipes[dep.Recipe]
	r.unlockState()
	if !ok {
		return nil, nil, langerr.NewRunError(dep.Pos, dep.Recipe, 1, "UnknownDependency: %q", dep.Recipe)
	}

	r.lockState()
	depArgs, err := evalDependencyArgs(ev, scope, dep.Args)
	r.unlockState()
	if err != nil {
		return nil, nil, err
	}
	if err := plan.ValidateArgs(target, depArgs); err != nil {
		return nil, nil, err
	}
	return target, depArgs, nil
}

func (r *Runner) confirm(recipe *ast.Recipe) (bool, error) {
	msg := fmt.Sprintf("Run recipe %q?", recipe.Name)
	for _, attr := range recipe.Attributes {
		if attr.Name == "confirm" && len(attr.Args) > 0 {
			msg = attr.Args[0]
		}
	}
	fmt.Fprintf(r.opts.Stderr, "%s [y/N] ", msg)
	var answer string
	fmt.Fscanln(r.opts.Stdin, &answer)
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func (r *Runner) echoBody(jf *justfile.Justfile, ev *eval.Evaluator, scope *eval.Scope, recipe *ast.Recipe) {
	for _, line := range recipe.Body {
		rendered, err := renderLine(ev, scope, line)
		if err != nil {
			continue
		}
		fmt.Fprintln(r.opts.Stderr, rendered)
	}
}

func (r *Runner) echo(text string) {
	if r.opts.Quiet {
		return
	}
	if r.opts.Timestamps {
		text = time.Now().Format("15:04:05") + " " + text
	}
	if r.opts.Color {
		fmt.Fprintln(r.opts.Stderr, color.New(color.Faint).Sprint(text))
		return
	}
	fmt.Fprintln(r.opts.Stderr, text)
}

func renderLine(ev *eval.Evaluator, scope *eval.Scope, line ast.BodyLine) (string, error) {
	var b strings.Builder
	for _, frag := range line.Fragments {
		if frag.Expr != nil {
			v, err := ev.Eval(frag.Expr, scope)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		} else {
			b.WriteString(frag.Text)
		}
	}
	return b.String(), nil
}

func hasAttr(recipe *ast.Recipe, name string) bool {
	for _, attr := range recipe.Attributes {
		if attr.Name == name {
			return true
		}
	}
	return false
}

func attrOf(recipe *ast.Recipe, name string) (ast.Attribute, bool) {
	for _, attr := range recipe.Attributes {
		if attr.Name == name {
			return attr, true
		}
	}
	return ast.Attribute{}, false
}

// osMatches reports whether recipe's OS-gating attributes (if any) allow it
// to run on the current platform; recipes with none always match.
func osMatches(recipe *ast.Recipe) bool {
	var gated bool
	for _, attr := range recipe.Attributes {
		switch attr.Name {
		case "linux":
			gated = true
			if runtime.GOOS == "linux" {
				return true
			}
		case "macos":
			gated = true
			if runtime.GOOS == "darwin" {
				return true
			}
		case "windows":
			gated = true
			if runtime.GOOS == "windows" {
				return true
			}
		case "unix":
			gated = true
			if runtime.GOOS != "windows" {
				return true
			}
		}
	}
	return !gated
}

// recipeKey identifies a (justfile module, recipe, argument group) for
// ran-set de-duplication and [cached] memoization.
func recipeKey(jf *justfile.Justfile, recipe *ast.Recipe, args []string) string {
	h := sha256.New()
	h.Write([]byte(jf.ModulePath))
	h.Write([]byte{0})
	h.Write([]byte(recipe.Name))
	for _, a := range args {
		h.Write([]byte{0})
		h.Write([]byte(a))
	}
	return hex.EncodeToString(h.Sum(nil))
}
