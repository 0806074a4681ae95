// Package parser turns a token stream into an *ast.File: a top-level,
// recursive-descent item parser plus a Pratt expression parser, following
// the teacher's two-layer split (internal/compiler/parser/parser.go for
// top-level items, internal/compiler/script/parser.go for expressions).
package parser

import (
	"strings"

	"github.com/mtlynch/gojust/internal/lang/ast"
	"github.com/mtlynch/gojust/internal/lang/lexer"
	"github.com/mtlynch/gojust/internal/lang/token"
	"github.com/mtlynch/gojust/internal/langerr"
)

// Precedence levels, lowest to highest, per spec.md's expression grammar:
// `||`, `&&`, then `+`/`/` at equal precedence (left-associative). Equality
// and regex operators only appear inside `if` conditions and are parsed
// there directly rather than through this table, unlike the teacher's
// larger script/parser.go precedence set.
const (
	_ int = iota
	LOWEST
	OR  // ||
	AND // &&
	SUM // + /
)

var precedences = map[token.Type]int{
	token.BAR_BAR: OR,
	token.AMP_AMP: AND,
	token.PLUS:    SUM,
	token.SLASH:   SUM,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser consumes tokens from a Lexer and builds an *ast.File.
type Parser struct {
	l    *lexer.Lexer
	file string

	curToken  token.Token
	peekToken token.Token

	errors langerr.List

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

// New creates a Parser reading from l.
func New(l *lexer.Lexer, file string) *Parser {
	p := &Parser{l: l, file: file}
	p.registerExpressionParsers()
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) registerExpressionParsers() {
	p.prefixParseFns = map[token.Type]prefixParseFn{
		token.IDENT:                  p.parseIdentifierOrCall,
		token.STRING:                 p.parseRawString,
		token.COOKED_STRING:          p.parseCookedString,
		token.INDENTED_STRING:        p.parseCookedString,
		token.INDENTED_RAW:           p.parseRawString,
		token.FORMAT_STRING:          p.parseFormatString,
		token.FORMAT_COOKED_STRING:   p.parseFormatString,
		token.FORMAT_INDENTED_STRING: p.parseFormatString,
		token.FORMAT_INDENTED_RAW:    p.parseFormatString,
		token.SHELL_STRING:           p.parseShellString,
		token.SHELL_COOKED_STRING:    p.parseShellString,
		token.SHELL_INDENTED_STRING:  p.parseShellString,
		token.SHELL_INDENTED_RAW:     p.parseShellString,
		token.BACKTICK:               p.parseBacktick,
		token.INDENTED_BACK:          p.parseBacktick,
		token.LPAREN:                 p.parseParenExpr,
		token.LBRACKET:               p.parseArrayLiteral,
		token.IF:                    p.parseConditional,
		token.MATCH:                 p.parseMatch,
		token.SLASH:                 p.parseUnarySlash,
	}
	p.infixParseFns = map[token.Type]infixParseFn{
		token.PLUS:    p.parseConcatenation,
		token.SLASH:   p.parseBinary,
		token.BAR_BAR: p.parseBinary,
		token.AMP_AMP: p.parseBinary,
	}
}

// Errors returns every error accumulated while parsing.
func (p *Parser) Errors() *langerr.List { return &p.errors }

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curIs(t token.Type) bool  { return p.curToken.Type == t }
func (p *Parser) peekIs(t token.Type) bool { return p.peekToken.Type == t }

func (p *Parser) expect(t token.Type) bool {
	if p.peekIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected next token to be %s, got %s instead", t, p.peekToken.Type)
	return false
}

func (p *Parser) errorf(format string, args ...any) {
	p.errors.Add(langerr.NewParseError(p.curToken.Pos, format, args...))
}

func peekPrecedence(t token.Type) int {
	if prec, ok := precedences[t]; ok {
		return prec
	}
	return LOWEST
}

// ParseFile parses the whole token stream into an *ast.File. Parse errors are
// collected (not returned directly) so the parser can recover and keep
// reporting further errors in one pass, matching the teacher's ErrorList
// accumulation discipline.
func (p *Parser) ParseFile() *ast.File {
	file := &ast.File{}

	for !p.curIs(token.EOF) {
		if p.curIs(token.EOL) {
			p.nextToken()
			continue
		}

		item := p.parseItem()
		if item != nil {
			file.Items = append(file.Items, item)
		} else {
			p.synchronize()
		}
	}

	return file
}

// synchronize recovers from a parse error by skipping to the next EOL,
// mirroring the teacher's top-level parser.synchronize().
func (p *Parser) synchronize() {
	for !p.curIs(token.EOL) && !p.curIs(token.EOF) {
		p.nextToken()
	}
	if p.curIs(token.EOL) {
		p.nextToken()
	}
}

func (p *Parser) parseItem() ast.Item {
	var attrs []ast.Attribute
	for p.curIs(token.LBRACKET) {
		a, ok := p.parseAttributeLine()
		if !ok {
			return nil
		}
		attrs = append(attrs, a...)
		if p.curIs(token.EOL) {
			p.nextToken()
		}
	}

	switch p.curToken.Type {
	case token.ALIAS:
		return p.parseAlias()
	case token.SET:
		return p.parseSetting()
	case token.IMPORT:
		return p.parseImport()
	case token.MOD:
		return p.parseMod()
	case token.UNEXPORT:
		return p.parseUnexport()
	case token.EXPORT:
		return p.parseAssignment(true)
	case token.LAZY:
		return p.parseLazyAssignment()
	case token.AT, token.IDENT:
		return p.parseRecipeOrAssignment(attrs)
	default:
		p.errorf("unexpected token %s at top level", p.curToken.Type)
		return nil
	}
}

// parseAttributeLine parses one `[name, name(arg, ...), ...]` line.
func (p *Parser) parseAttributeLine() ([]ast.Attribute, bool) {
	pos := p.curToken.Pos
	p.nextToken() // consume '['

	var attrs []ast.Attribute
	for {
		if !p.curIs(token.IDENT) {
			p.errorf("expected attribute name, got %s", p.curToken.Type)
			return nil, false
		}
		a := ast.Attribute{Pos: pos, Name: p.curToken.Literal}
		p.nextToken()

		if p.curIs(token.LPAREN) {
			p.nextToken()
			for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
				switch p.curToken.Type {
				case token.STRING, token.COOKED_STRING, token.IDENT:
					a.Args = append(a.Args, p.curToken.Literal)
				}
				p.nextToken()
				if p.curIs(token.COMMA) {
					p.nextToken()
				}
			}
			p.nextToken() // consume ')'
		}
		attrs = append(attrs, a)

		if p.curIs(token.COMMA) {
			p.nextToken()
			continue
		}
		break
	}

	if !p.curIs(token.RBRACKET) {
		p.errorf("expected ']' to close attribute list, got %s", p.curToken.Type)
		return nil, false
	}
	p.nextToken()
	return attrs, true
}

func (p *Parser) parseAlias() ast.Item {
	pos := p.curToken.Pos
	if !p.expect(token.IDENT) {
		return nil
	}
	name := p.curToken.Literal
	if !p.expect(token.WALRUS) {
		return nil
	}
	if !p.expect(token.IDENT) {
		return nil
	}
	target := p.curToken.Literal
	p.nextToken()
	return &ast.Alias{Pos: pos, Name: name, Target: target}
}

func (p *Parser) parseSetting() ast.Item {
	pos := p.curToken.Pos
	if p.peekIs(token.EXPORT) {
		p.nextToken()
	} else if !p.expect(token.IDENT) {
		return nil
	}
	name := p.curToken.Literal

	var value ast.Expression
	if p.peekIs(token.WALRUS) {
		p.nextToken()
		p.nextToken()
		value = p.parseExpression(LOWEST)
	}
	p.nextToken()
	return &ast.Setting{Pos: pos, Name: name, Value: value}
}

func (p *Parser) parseImport() ast.Item {
	pos := p.curToken.Pos
	optional := false
	if p.peekIs(token.QUESTION) {
		p.nextToken()
		optional = true
	}
	if !p.expectAnyString() {
		return nil
	}
	path := p.curToken.Literal
	p.nextToken()
	return &ast.Import{Pos: pos, Path: path, Optional: optional}
}

func (p *Parser) parseMod() ast.Item {
	pos := p.curToken.Pos
	optional := false
	if p.peekIs(token.QUESTION) {
		p.nextToken()
		optional = true
	}
	if !p.expect(token.IDENT) {
		return nil
	}
	name := p.curToken.Literal

	var path string
	if p.peekIs(token.STRING) || p.peekIs(token.COOKED_STRING) {
		p.nextToken()
		path = p.curToken.Literal
	}
	p.nextToken()
	return &ast.Mod{Pos: pos, Name: name, Path: path, Optional: optional}
}

func (p *Parser) parseUnexport() ast.Item {
	pos := p.curToken.Pos
	if !p.expect(token.IDENT) {
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()
	return &ast.Unexport{Pos: pos, Name: name}
}

func (p *Parser) parseAssignment(exported bool) ast.Item {
	pos := p.curToken.Pos
	if exported {
		if !p.expect(token.IDENT) {
			return nil
		}
	}
	name := p.curToken.Literal
	if !p.expect(token.WALRUS) {
		return nil
	}
	p.nextToken()
	value := p.parseExpression(LOWEST)
	if p.peekIs(token.EOL) {
		p.nextToken()
	}
	p.nextToken()
	return &ast.Assignment{Pos: pos, Name: name, Value: value, Exported: exported}
}

// parseLazyAssignment parses `lazy NAME := EXPR`, evaluated on first demand
// rather than eagerly (spec.md §4.5's evaluation-order contract).
func (p *Parser) parseLazyAssignment() ast.Item {
	pos := p.curToken.Pos
	if !p.expect(token.IDENT) {
		return nil
	}
	name := p.curToken.Literal
	if !p.expect(token.WALRUS) {
		return nil
	}
	p.nextToken()
	value := p.parseExpression(LOWEST)
	if p.peekIs(token.EOL) {
		p.nextToken()
	}
	p.nextToken()
	return &ast.Assignment{Pos: pos, Name: name, Value: value, Lazy: true}
}

// parseRecipeOrAssignment disambiguates `name := expr` (assignment) from a
// recipe header by looking ahead for WALRUS immediately after the name.
func (p *Parser) parseRecipeOrAssignment(attrs []ast.Attribute) ast.Item {
	if p.curIs(token.IDENT) && p.peekIs(token.WALRUS) {
		return p.parseAssignment(false)
	}
	return p.parseRecipe(attrs)
}

func (p *Parser) parseRecipe(attrs []ast.Attribute) ast.Item {
	pos := p.curToken.Pos
	quiet := false
	if p.curIs(token.AT) {
		quiet = true
		p.nextToken()
	}
	if !p.curIs(token.IDENT) {
		p.errorf("expected recipe name, got %s", p.curToken.Type)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	var params []ast.Parameter
	for p.curIs(token.IDENT) || p.curIs(token.ASTERISK) || p.curIs(token.PLUS) {
		params = append(params, p.parseParameter())
	}

	if !p.curIs(token.COLON) {
		p.errorf("expected ':' after recipe header, got %s", p.curToken.Type)
		return nil
	}
	p.nextToken()

	deps, subs := p.parseDependencies()

	if p.curIs(token.EOL) {
		// Arm body capture before the token after INDENT is lexed.
		if p.peekIs(token.INDENT) {
			p.l.ArmBodyCapture(p.peekToken.Literal)
		}
		p.nextToken()
	}

	body := p.parseBody()

	return &ast.Recipe{
		Pos:         pos,
		Attributes:  attrs,
		Name:        name,
		Parameters:  params,
		Deps:        deps,
		Subsequents: subs,
		Body:        body,
		Quiet:       quiet,
	}
}

func (p *Parser) parseParameter() ast.Parameter {
	pos := p.curToken.Pos
	variadic := false
	atLeastOne := false
	if p.curIs(token.ASTERISK) {
		variadic = true
		p.nextToken()
	} else if p.curIs(token.PLUS) {
		variadic = true
		atLeastOne = true
		p.nextToken()
	}

	name := p.curToken.Literal
	p.nextToken()

	var def ast.Expression
	if p.curIs(token.EQUALS) {
		p.nextToken()
		def = p.parseExpression(LOWEST)
		p.nextToken()
	}

	return ast.Parameter{
		Pos:        pos,
		Name:       name,
		Default:    def,
		Variadic:   variadic,
		AtLeastOne: atLeastOne,
	}
}

// parseDependencies parses the dependency list following a recipe header's
// ':', up to (not including) EOL: `deps [ '&&' subs ]` (grammar summary,
// spec.md §4.2). Entries are space-separated; `||` marks every following
// entry, up to the next `&&`, as a recovery step (run only after the
// recipe's own body fails, GLOSSARY "Recovery") — it does not attach to
// whichever dependency happened to precede it. The single `&&` switches from
// the priors list to the subsequents list (run only after the body
// succeeds, GLOSSARY "Subsequent"); recovery marking does not carry across
// it.
func (p *Parser) parseDependencies() (deps []ast.Dependency, subs []ast.Dependency) {
	recovery := false
	inSubs := false

	appendDep := func(d ast.Dependency) {
		if inSubs {
			subs = append(subs, d)
		} else {
			deps = append(deps, d)
		}
	}

	for !p.curIs(token.EOL) && !p.curIs(token.EOF) {
		switch p.curToken.Type {
		case token.AMP_AMP:
			inSubs = true
			recovery = false
			p.nextToken()
		case token.BAR_BAR:
			recovery = true
			p.nextToken()
		case token.LPAREN:
			pos := p.curToken.Pos
			p.nextToken()
			depName := p.curToken.Literal
			p.nextToken()
			var args []ast.Expression
			for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
				args = append(args, p.parseExpression(LOWEST))
				p.nextToken()
				if p.curIs(token.COMMA) {
					p.nextToken()
				}
			}
			p.nextToken() // consume ')'
			appendDep(ast.Dependency{Pos: pos, Recipe: depName, Args: args, Recovery: recovery && !inSubs})
		case token.IDENT:
			appendDep(ast.Dependency{Pos: p.curToken.Pos, Recipe: p.curToken.Literal, Recovery: recovery && !inSubs})
			p.nextToken()
		default:
			return deps, subs
		}
	}
	return deps, subs
}

// parseBody reads the BODY_BLOCK that follows an INDENT (parseRecipe has
// already armed the lexer for body capture) and splits it into fragment
// lines.
func (p *Parser) parseBody() []ast.BodyLine {
	if !p.curIs(token.INDENT) {
		return nil
	}
	p.nextToken() // pulls the BODY_BLOCK token

	var lines []ast.BodyLine
	if p.curIs(token.BODY_BLOCK) {
		raw := p.curToken.Literal
		for _, ln := range strings.Split(raw, "\n") {
			lines = append(lines, p.parseBodyLine(ln))
		}
		p.nextToken()
	}

	if p.curIs(token.DEDENT) {
		p.nextToken()
	}
	return lines
}

func (p *Parser) parseBodyLine(raw string) ast.BodyLine {
	line := ast.BodyLine{}
	for len(raw) > 0 && (raw[0] == '@' || raw[0] == '-') {
		if raw[0] == '@' {
			line.Quiet = true
		} else {
			line.Ignore = true
		}
		raw = raw[1:]
	}

	for {
		idx := strings.Index(raw, "{{")
		if idx < 0 {
			if raw != "" {
				line.Fragments = append(line.Fragments, ast.BodyFragment{Text: raw})
			}
			break
		}
		if idx > 0 {
			line.Fragments = append(line.Fragments, ast.BodyFragment{Text: raw[:idx]})
		}
		raw = raw[idx+2:]
		end := strings.Index(raw, "}}")
		if end < 0 {
			// Unterminated interpolation: treat the rest as literal text so a
			// single malformed line doesn't abort the whole parse.
			line.Fragments = append(line.Fragments, ast.BodyFragment{Text: "{{" + raw})
			break
		}
		exprSrc := strings.TrimSpace(raw[:end])
		expr := ParseExpressionString(exprSrc, p.file)
		line.Fragments = append(line.Fragments, ast.BodyFragment{Expr: expr})
		raw = raw[end+2:]
	}
	return line
}

func (p *Parser) expectAnyString() bool {
	switch p.peekToken.Type {
	case token.STRING, token.COOKED_STRING, token.INDENTED_STRING, token.INDENTED_RAW:
		p.nextToken()
		return true
	}
	p.errorf("expected a string literal, got %s", p.peekToken.Type)
	return false
}

// ---- Expression parsing (Pratt) ----

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.errorf("no prefix parse function for %s", p.curToken.Type)
		return nil
	}
	left := prefix()

	for !p.peekIs(token.EOL) && precedence < peekPrecedence(p.peekToken.Type) {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIdentifierOrCall() ast.Expression {
	tok := p.curToken
	if p.peekIs(token.LPAREN) {
		p.nextToken() // consume '('
		p.nextToken()
		var args []ast.Expression
		for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
			args = append(args, p.parseExpression(LOWEST))
			p.nextToken()
			if p.curIs(token.COMMA) {
				p.nextToken()
			}
		}
		return &ast.Call{Pos: tok.Pos, Function: tok.Literal, Arguments: args}
	}
	return &ast.Identifier{Pos: tok.Pos, Name: tok.Literal}
}

func (p *Parser) parseRawString() ast.Expression {
	return &ast.StringLiteral{Pos: p.curToken.Pos, Value: p.curToken.Literal, Raw: true}
}

func (p *Parser) parseCookedString() ast.Expression {
	return &ast.StringLiteral{Pos: p.curToken.Pos, Value: unescapeCooked(p.curToken.Literal), Raw: false}
}

func (p *Parser) parseFormatString() ast.Expression {
	tok := p.curToken
	raw := tok.Literal
	var fragments []ast.BodyFragment
	for {
		idx := strings.Index(raw, "{{")
		if idx < 0 {
			if raw != "" {
				fragments = append(fragments, ast.BodyFragment{Text: unescapeFormatLiteral(raw)})
			}
			break
		}
		if idx > 0 {
			fragments = append(fragments, ast.BodyFragment{Text: unescapeFormatLiteral(raw[:idx])})
		}
		raw = raw[idx+2:]
		end := strings.Index(raw, "}}")
		if end < 0 {
			fragments = append(fragments, ast.BodyFragment{Text: "{{" + raw})
			break
		}
		exprSrc := strings.TrimSpace(raw[:end])
		fragments = append(fragments, ast.BodyFragment{Expr: ParseExpressionString(exprSrc, p.file)})
		raw = raw[end+2:]
	}
	return &ast.FormatString{Pos: tok.Pos, Fragments: fragments}
}

// unescapeFormatLiteral collapses the `{{{{`/`}}}}` escape sequences a format
// string uses to produce a literal brace pair.
func unescapeFormatLiteral(s string) string {
	s = strings.ReplaceAll(s, "{{{{", "{{")
	s = strings.ReplaceAll(s, "}}}}", "}}")
	return s
}

func (p *Parser) parseShellString() ast.Expression {
	return &ast.ShellString{Pos: p.curToken.Pos, Value: p.curToken.Literal, Raw: false}
}

func (p *Parser) parseBacktick() ast.Expression {
	return &ast.Backtick{Pos: p.curToken.Pos, Script: p.curToken.Literal}
}

func (p *Parser) parseParenExpr() ast.Expression {
	tok := p.curToken
	p.nextToken()
	inner := p.parseExpression(LOWEST)
	if !p.expect(token.RPAREN) {
		return nil
	}
	return &ast.ParenExpr{Pos: tok.Pos, Inner: inner}
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	tok := p.curToken
	p.nextToken()
	var elems []ast.Expression
	for !p.curIs(token.RBRACKET) && !p.curIs(token.EOF) {
		elems = append(elems, p.parseExpression(LOWEST))
		p.nextToken()
		if p.curIs(token.COMMA) {
			p.nextToken()
		}
	}
	return &ast.ArrayLiteral{Pos: tok.Pos, Elements: elems}
}

func (p *Parser) parseConcatenation(left ast.Expression) ast.Expression {
	tok := p.curToken
	p.nextToken()
	right := p.parseExpression(SUM)
	return &ast.Concatenation{Pos: tok.Pos, Left: left, Right: right}
}

// parseBinary parses `/` (path-join) and the unstable `||`/`&&` logical
// operators, all left-associative at their own precedence level.
func (p *Parser) parseBinary(left ast.Expression) ast.Expression {
	tok := p.curToken
	prec := peekPrecedence(tok.Type)
	p.nextToken()
	right := p.parseExpression(prec)
	return &ast.BinaryExpr{Pos: tok.Pos, Op: tok.Type, Left: left, Right: right}
}

// parseUnarySlash parses a leading `/path`, rooted at the justfile directory.
func (p *Parser) parseUnarySlash() ast.Expression {
	tok := p.curToken
	p.nextToken()
	operand := p.parseExpression(SUM)
	return &ast.UnaryExpr{Pos: tok.Pos, Op: token.SLASH, Operand: operand}
}

// parseConditional parses `if left OP right { then } else { otherwise }`.
func (p *Parser) parseConditional() ast.Expression {
	tok := p.curToken
	p.nextToken()

	left := p.parseExpression(LOWEST)
	p.nextToken()

	op := p.curToken.Type
	if op != token.EQ_EQ && op != token.NOT_EQ && op != token.TILDE_EQ {
		p.errorf("expected ==, != or =~ in if condition, got %s", op)
		return nil
	}
	p.nextToken()

	right := p.parseExpression(LOWEST)
	p.nextToken()

	if !p.curIs(token.LBRACE) {
		p.errorf("expected '{' to open if-then block, got %s", p.curToken.Type)
		return nil
	}
	p.nextToken()
	then := p.parseExpression(LOWEST)
	p.nextToken()
	if !p.curIs(token.RBRACE) {
		p.errorf("expected '}' to close if-then block, got %s", p.curToken.Type)
		return nil
	}

	if !p.expect(token.ELSE) {
		return nil
	}
	if !p.expect(token.LBRACE) {
		return nil
	}
	p.nextToken()
	otherwise := p.parseExpression(LOWEST)
	p.nextToken()
	if !p.curIs(token.RBRACE) {
		p.errorf("expected '}' to close if-else block, got %s", p.curToken.Type)
		return nil
	}

	return &ast.Conditional{Pos: tok.Pos, Op: op, Left: left, Right: right, Then: then, Otherwise: otherwise}
}

// parseMatch parses `match expr { pattern => expr, ..., _ => expr }`.
func (p *Parser) parseMatch() ast.Expression {
	tok := p.curToken
	p.nextToken()
	subject := p.parseExpression(LOWEST)
	p.nextToken()

	if !p.curIs(token.LBRACE) {
		p.errorf("expected '{' to open match arms, got %s", p.curToken.Type)
		return nil
	}
	p.nextToken()

	var arms []ast.MatchArm
	for !p.curIs(token.RBRACE) && !p.curIs(token.EOF) {
		var arm ast.MatchArm
		if p.curIs(token.IDENT) && p.curToken.Literal == "_" {
			arm.Wildcard = true
			p.nextToken()
		} else {
			arm.Pattern = p.parseExpression(LOWEST)
			p.nextToken()
		}
		if !p.curIs(token.FAT_ARROW) {
			p.errorf("expected '=>' in match arm, got %s", p.curToken.Type)
			return nil
		}
		p.nextToken()
		arm.Value = p.parseExpression(LOWEST)
		p.nextToken()
		arms = append(arms, arm)

		if p.curIs(token.COMMA) {
			p.nextToken()
		}
	}

	return &ast.Match{Pos: tok.Pos, Subject: subject, Arms: arms}
}

// unescapeCooked processes the backslash escapes of a cooked string,
// including \n \t \r \\ \" \' and the bounded \u{HHHHHH} form.
func unescapeCooked(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case '"':
			b.WriteByte('"')
		case '\'':
			b.WriteByte('\'')
		case 'u':
			if i+1 < len(s) && s[i+1] == '{' {
				end := strings.IndexByte(s[i+2:], '}')
				if end >= 0 {
					hex := s[i+2 : i+2+end]
					if r, ok := parseUnicodeEscape(hex); ok {
						b.WriteRune(r)
						i += 2 + end
						continue
					}
				}
			}
			b.WriteByte('u')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func parseUnicodeEscape(hex string) (rune, bool) {
	var v int64
	for _, c := range hex {
		v *= 16
		switch {
		case c >= '0' && c <= '9':
			v += int64(c - '0')
		case c >= 'a' && c <= 'f':
			v += int64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v += int64(c-'A') + 10
		default:
			return 0, false
		}
	}
	if v < 0 || v > 0x10FFFF {
		return 0, false
	}
	return rune(v), true
}

// ParseExpressionString parses src (e.g. the inside of a `{{ }}`
// interpolation) as a single expression, attributing positions to file.
func ParseExpressionString(src, file string) ast.Expression {
	l := lexer.New(src, file)
	p := New(l, file)
	return p.parseExpression(LOWEST)
}
