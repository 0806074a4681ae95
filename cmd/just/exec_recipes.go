// Default action: plan the remaining command-line tokens against the loaded
// justfile and execute them (spec.md §4.6/§4.7), plus direct passthrough
// execution of a command given after `--`.
package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/mtlynch/gojust/internal/interrupt"
	"github.com/mtlynch/gojust/internal/justfile"
	"github.com/mtlynch/gojust/internal/langerr"
	"github.com/mtlynch/gojust/internal/plan"
	"github.com/mtlynch/gojust/internal/run"
)

func runRecipes(jf *justfile.Justfile, args []string, setOverrides map[string]string, g *globalFlags, h *interrupt.Handler) int {
	p, err := plan.Build(jf, args, setOverrides)
	if err != nil {
		if g.allowMissing || g.ifPresent {
			return 0
		}
		return reportPlanOrRunError(err, g.color)
	}

	r := run.New(run.Options{
		DryRun:     g.dryRun,
		Yes:        g.yes,
		Quiet:      g.quiet,
		Verbose:    g.verbose,
		NoDeps:     g.noDeps,
		Color:      g.color != "never",
		Timestamps: g.timestamps,
		Interrupt:  h,
	})

	err = r.Execute(p)
	if err != nil {
		return reportPlanOrRunError(err, g.color)
	}
	return 0
}

// reportPlanOrRunError renders err and maps it to an exit code: a RunError's
// own ExitCode when present (so a failed recipe's exit status propagates
// verbatim, per spec.md §6.1), otherwise a generic failure.
func reportPlanOrRunError(err error, color string) int {
	colorize := color != "never"
	if lerr, ok := err.(langerr.Error); ok {
		fmt.Fprintln(os.Stderr, langerr.Render(lerr, sourceFor(lerr.Position().File), colorize))
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	if rerr, ok := err.(*langerr.RunError); ok && rerr.ExitCode != 0 {
		return rerr.ExitCode
	}
	return 1
}

// execDirect runs name with args directly, bypassing the justfile entirely,
// with stdio passed through. It is reached when command-line tokens follow
// `--`; there is no --command flag.
func execDirect(name string, args []string) int {
	cmd := exec.Command(name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
