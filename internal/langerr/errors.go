// Package langerr defines the structured error taxonomy shared by every
// pipeline stage (lex, parse, load, analyze, eval, plan, run), each carrying
// a source span and rendered with caret-underlined context.
//
// Generalized from the teacher's internal/compiler/errors package: a single
// CompileError{Pos, Message, Phase} plus an ErrorList collector becomes one
// concrete type per phase here, since each phase's errors carry different
// structured detail (a cycle's path, an unknown recipe name, an exit code).
package langerr

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/mtlynch/gojust/internal/lang/token"
)

// Phase names the pipeline stage that produced an error.
type Phase string

const (
	PhaseLex     Phase = "lex"
	PhaseParse   Phase = "parse"
	PhaseLoad    Phase = "load"
	PhaseResolve Phase = "resolve"
	PhaseEval    Phase = "eval"
	PhasePlan    Phase = "plan"
	PhaseRun     Phase = "run"
)

// Error is implemented by every phase-specific error type.
type Error interface {
	error
	Position() token.Position
	Phase() Phase
}

type base struct {
	pos   token.Position
	phase Phase
	msg   string
}

func (b base) Position() token.Position { return b.pos }
func (b base) Phase() Phase             { return b.phase }
func (b base) Error() string            { return fmt.Sprintf("%s: %s", posString(b.pos), b.msg) }

// posString renders a Position as file:line:column, matching the teacher's
// Position.String.
func posString(p token.Position) string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// LexError reports an illegal token or malformed indentation.
type LexError struct{ base }

func NewLexError(pos token.Position, format string, args ...any) *LexError {
	return &LexError{base{pos: pos, phase: PhaseLex, msg: fmt.Sprintf(format, args...)}}
}

// ParseError reports a grammar violation.
type ParseError struct{ base }

func NewParseError(pos token.Position, format string, args ...any) *ParseError {
	return &ParseError{base{pos: pos, phase: PhaseParse, msg: fmt.Sprintf(format, args...)}}
}

// LoadError reports a failed import/mod resolution (missing file, cycle).
type LoadError struct {
	base
	Path  string
	Cycle []string // non-empty for an import cycle
}

func NewLoadError(pos token.Position, path string, format string, args ...any) *LoadError {
	return &LoadError{base: base{pos: pos, phase: PhaseLoad, msg: fmt.Sprintf(format, args...)}, Path: path}
}

// ResolveError reports a name-resolution or analysis failure: unknown
// recipe/variable, duplicate definition, dependency cycle, parameter
// shadowing, or invalid attribute target.
type ResolveError struct {
	base
	Cycle []string // non-empty for a reported cycle, in traversal order
}

func NewResolveError(pos token.Position, format string, args ...any) *ResolveError {
	return &ResolveError{base: base{pos: pos, phase: PhaseResolve, msg: fmt.Sprintf(format, args...)}}
}

// EvalError reports a failure evaluating an expression: unknown function,
// arity mismatch, a failed backtick subprocess, or a user `error()` call.
type EvalError struct {
	base
	ExitCode int // non-zero when caused by a failed subprocess
}

func NewEvalError(pos token.Position, format string, args ...any) *EvalError {
	return &EvalError{base: base{pos: pos, phase: PhaseEval, msg: fmt.Sprintf(format, args...)}}
}

// NewEvalErrorExit reports an EvalError caused by a failed subprocess
// (backtick or `shell()` builtin), carrying its exit code.
func NewEvalErrorExit(pos token.Position, exitCode int, format string, args ...any) *EvalError {
	return &EvalError{base: base{pos: pos, phase: PhaseEval, msg: fmt.Sprintf(format, args...)}, ExitCode: exitCode}
}

// PlanError reports a failure turning CLI tokens into invocations: unknown
// recipe, ambiguous module path, missing required argument, pattern
// validation failure, or too many positional arguments.
type PlanError struct{ base }

func NewPlanError(pos token.Position, format string, args ...any) *PlanError {
	return &PlanError{base{pos: pos, phase: PhasePlan, msg: fmt.Sprintf(format, args...)}}
}

// RunError reports a failure during recipe execution.
type RunError struct {
	base
	Recipe       string
	ExitCode     int
	CygpathFailure bool // Windows-only: failed to translate a shebang path
}

func NewRunError(pos token.Position, recipe string, exitCode int, format string, args ...any) *RunError {
	return &RunError{base: base{pos: pos, phase: PhaseRun, msg: fmt.Sprintf(format, args...)}, Recipe: recipe, ExitCode: exitCode}
}

// List collects errors across a whole pipeline run, in order.
type List struct {
	Errors []Error
}

func (l *List) Add(err Error) {
	l.Errors = append(l.Errors, err)
}

func (l *List) HasErrors() bool {
	return len(l.Errors) > 0
}

func (l *List) Error() string {
	var b strings.Builder
	for _, e := range l.Errors {
		b.WriteString(e.Error())
		b.WriteByte('\n')
	}
	return b.String()
}

// Render writes a caret-underlined rendering of err against source (the full
// text of the file err occurred in), optionally colorized.
func Render(err Error, source string, colorize bool) string {
	pos := err.Position()
	lines := strings.Split(source, "\n")
	var b strings.Builder

	red := func(s string) string { return s }
	bold := func(s string) string { return s }
	if colorize {
		red = func(s string) string { return color.New(color.FgRed, color.Bold).Sprint(s) }
		bold = func(s string) string { return color.New(color.Bold).Sprint(s) }
	}

	fmt.Fprintf(&b, "%s: %s\n", red("error"), err.Error())
	if pos.Line >= 1 && pos.Line <= len(lines) {
		line := lines[pos.Line-1]
		fmt.Fprintf(&b, "  --> %s\n", bold(posString(pos)))
		fmt.Fprintf(&b, "   | %s\n", line)
		col := pos.Column
		if col < 1 {
			col = 1
		}
		length := pos.Length
		if length < 1 {
			length = 1
		}
		fmt.Fprintf(&b, "   | %s%s\n", strings.Repeat(" ", col-1), red(strings.Repeat("^", length)))
	}
	return b.String()
}
