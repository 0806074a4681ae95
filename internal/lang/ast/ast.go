// Package ast defines the justfile abstract syntax tree: a tagged union of
// items and expressions, one struct per syntactic form, following the
// teacher's plain-struct discipline (internal/compiler/ast/ast.go) rather
// than an embedded base type.
package ast

import "github.com/mtlynch/gojust/internal/lang/token"

// Node is implemented by every AST node.
type Node interface {
	TokenLiteral() string
}

// Item is a top-level (or module-nested) construct: a recipe, assignment,
// alias, settings directive, import, mod declaration, or unexport.
type Item interface {
	Node
	itemNode()
}

// Expression is any evaluable sub-expression.
type Expression interface {
	Node
	expressionNode()
}

// File is the root of a parsed justfile.
type File struct {
	Items []Item
}

func (f *File) TokenLiteral() string { return "file" }

// Attribute is a `[name]` or `[name(arg, ...)]` recipe decorator.
type Attribute struct {
	Pos  token.Position
	Name string
	Args []string
}

// Parameter is a recipe parameter: `name`, `name="default"`, or `*name`/`+name`.
type Parameter struct {
	Pos        token.Position
	Name       string
	Default    Expression // nil if required
	Variadic   bool       // true for *name and +name
	AtLeastOne bool       // true for +name specifically
}

// Dependency is one entry of a recipe's dependency or subsequent list:
// `name`, `(name arg)`, or (only within Recipe.Deps) a `||`-joined recovery
// step.
type Dependency struct {
	Pos      token.Position
	Recipe   string
	Args     []Expression
	Recovery bool // true if run only after the owning recipe's own body fails
}

// Recipe is a `name param*: dep* [&& sub*]\n    body` item. Deps holds the
// priors (run before Body) interleaved with any `||`-marked recovery steps
// (Dependency.Recovery, run only after Body fails); Subsequents holds the
// `&&`-introduced list run only after Body succeeds.
type Recipe struct {
	Pos         token.Position
	Attributes  []Attribute
	Name        string
	Parameters  []Parameter
	Deps        []Dependency
	Subsequents []Dependency
	Body        []BodyLine
	Quiet       bool // leading @
}

func (r *Recipe) TokenLiteral() string { return r.Name }
func (r *Recipe) itemNode()            {}

// BodyLine is one line of a recipe body: a mix of literal text and
// interpolation fragments.
type BodyLine struct {
	Fragments []BodyFragment
	Quiet     bool // leading @ on this line, overriding the recipe default
	Ignore    bool // leading - (ignore this line's exit status)
}

// BodyFragment is either literal text or an interpolated expression.
type BodyFragment struct {
	Text string     // set when Expr == nil
	Expr Expression // set for {{ ... }} interpolations
}

// Assignment is a `[export] [lazy] name := expr` module-level binding.
type Assignment struct {
	Pos      token.Position
	Name     string
	Value    Expression
	Exported bool
	Lazy     bool // true when declared with the `lazy` keyword: evaluated on first demand, not eagerly
}

func (a *Assignment) TokenLiteral() string { return a.Name }
func (a *Assignment) itemNode()            {}

// Alias is an `alias name := target` item.
type Alias struct {
	Pos    token.Position
	Name   string
	Target string
}

func (a *Alias) TokenLiteral() string { return a.Name }
func (a *Alias) itemNode()            {}

// Setting is a `set name` or `set name := value` item.
type Setting struct {
	Pos   token.Position
	Name  string
	Value Expression // nil for boolean settings defaulting to true
}

func (s *Setting) TokenLiteral() string { return s.Name }
func (s *Setting) itemNode()            {}

// Import is an `import "path"` or `import? "path"` item.
type Import struct {
	Pos      token.Position
	Path     string
	Optional bool
}

func (i *Import) TokenLiteral() string { return i.Path }
func (i *Import) itemNode()            {}

// Mod is a `mod name` or `mod name "path"` item, optionally `mod? name`.
type Mod struct {
	Pos      token.Position
	Name     string
	Path     string // empty: derive from Name per default resolution
	Optional bool
}

func (m *Mod) TokenLiteral() string { return m.Name }
func (m *Mod) itemNode()            {}

// Unexport is an `unexport NAME` item removing NAME from the child environment.
type Unexport struct {
	Pos  token.Position
	Name string
}

func (u *Unexport) TokenLiteral() string { return u.Name }
func (u *Unexport) itemNode()            {}

// ---- Expressions ----

// StringLiteral covers the four unprefixed string forms (raw/cooked, plain
// and indented); Raw distinguishes escape handling for the evaluator.
type StringLiteral struct {
	Pos   token.Position
	Value string
	Raw   bool
}

func (s *StringLiteral) TokenLiteral() string { return s.Value }
func (s *StringLiteral) expressionNode()      {}

// FormatString is an f-prefixed string split into literal/interpolation
// fragments, reusing BodyFragment's shape.
type FormatString struct {
	Pos       token.Position
	Fragments []BodyFragment
}

func (f *FormatString) TokenLiteral() string { return "f-string" }
func (f *FormatString) expressionNode()      {}

// ShellString is an x-prefixed string, expanded through the shell before use.
type ShellString struct {
	Pos   token.Position
	Value string
	Raw   bool
}

func (s *ShellString) TokenLiteral() string { return s.Value }
func (s *ShellString) expressionNode()      {}

// Identifier references a variable, parameter, or 0-arity function/constant.
type Identifier struct {
	Pos  token.Position
	Name string
}

func (i *Identifier) TokenLiteral() string { return i.Name }
func (i *Identifier) expressionNode()      {}

// Call is a builtin function invocation: `name(arg, ...)`.
type Call struct {
	Pos       token.Position
	Function  string
	Arguments []Expression
}

func (c *Call) TokenLiteral() string { return c.Function }
func (c *Call) expressionNode()      {}

// Backtick is a `` `cmd` `` or indented-backtick subprocess-substitution
// expression.
type Backtick struct {
	Pos    token.Position
	Script string
}

func (b *Backtick) TokenLiteral() string { return b.Script }
func (b *Backtick) expressionNode()      {}

// Concatenation is `a + b`.
type Concatenation struct {
	Pos         token.Position
	Left, Right Expression
}

func (c *Concatenation) TokenLiteral() string { return "+" }
func (c *Concatenation) expressionNode()      {}

// BinaryExpr is `a / b` (path-join, same precedence as `+`) or the unstable
// logical operators `a || b` / `a && b` (empty string is false).
type BinaryExpr struct {
	Pos         token.Position
	Op          token.Type // SLASH, BAR_BAR, or AMP_AMP
	Left, Right Expression
}

func (b *BinaryExpr) TokenLiteral() string { return string(b.Op) }
func (b *BinaryExpr) expressionNode()      {}

// UnaryExpr is a unary prefix operator: `/path` rooted at the justfile
// directory.
type UnaryExpr struct {
	Pos     token.Position
	Op      token.Type // SLASH
	Operand Expression
}

func (u *UnaryExpr) TokenLiteral() string { return string(u.Op) }
func (u *UnaryExpr) expressionNode()      {}

// Conditional is `if left OP right { then } else { otherwise }`.
type Conditional struct {
	Pos       token.Position
	Op        token.Type // EQ_EQ, NOT_EQ, or TILDE_EQ
	Left      Expression
	Right     Expression
	Then      Expression
	Otherwise Expression
}

func (c *Conditional) TokenLiteral() string { return "if" }
func (c *Conditional) expressionNode()      {}

// MatchArm is one `pattern => expr` arm of a match expression.
type MatchArm struct {
	Pattern  Expression // nil for the wildcard `_` arm
	Wildcard bool
	Value    Expression
}

// Match is a `match expr { arm, ... }` expression.
type Match struct {
	Pos     token.Position
	Subject Expression
	Arms    []MatchArm
}

func (m *Match) TokenLiteral() string { return "match" }
func (m *Match) expressionNode()      {}

// ArrayLiteral is a `[a, b, c]` list, used by list-valued settings such as
// `shell` and `windows-shell`.
type ArrayLiteral struct {
	Pos      token.Position
	Elements []Expression
}

func (a *ArrayLiteral) TokenLiteral() string { return "[" }
func (a *ArrayLiteral) expressionNode()      {}

// ParenExpr is a parenthesized expression, kept distinct so the --dump
// serializer can round-trip grouping.
type ParenExpr struct {
	Pos   token.Position
	Inner Expression
}

func (p *ParenExpr) TokenLiteral() string { return "(" }
func (p *ParenExpr) expressionNode()      {}
