package lexer

import (
	"testing"

	"github.com/mtlynch/gojust/internal/lang/token"
)

func collect(t *testing.T, input string) []token.Token {
	t.Helper()
	l := New(input, "test.just")
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
		if len(toks) > 10000 {
			t.Fatalf("runaway lexer, first tokens: %v", toks[:20])
		}
	}
}

func types(toks []token.Token) []token.Type {
	out := make([]token.Type, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestSimpleAssignment(t *testing.T) {
	toks := collect(t, "x := \"hello\"\n")
	got := types(toks)
	want := []token.Type{token.IDENT, token.WALRUS, token.COOKED_STRING, token.EOL, token.EOF}
	if !equalTypes(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestIndentDedent(t *testing.T) {
	src := "build:\n    echo one\n    echo two\ntest:\n    echo three\n"
	toks := collect(t, src)
	var indents, dedents int
	for _, tok := range toks {
		switch tok.Type {
		case token.INDENT:
			indents++
		case token.DEDENT:
			dedents++
		}
	}
	if indents != 2 {
		t.Errorf("expected 2 INDENTs (one per recipe body, since ArmBodyCapture was not requested), got %d", indents)
	}
	if dedents != 1 {
		t.Errorf("expected 1 DEDENT (back to column 0 before the second header), got %d", dedents)
	}
}

func TestBodyCapture(t *testing.T) {
	src := "build:\n    echo one\n    echo two\ntest:\n    echo three\n"
	l := New(src, "test.just")

	// Consume header: IDENT COLON EOL
	for i := 0; i < 3; i++ {
		tok := l.NextToken()
		if tok.Type == token.ILLEGAL {
			t.Fatalf("unexpected illegal token: %+v", tok)
		}
	}

	indent := l.NextToken()
	if indent.Type != token.INDENT {
		t.Fatalf("expected INDENT, got %v", indent.Type)
	}

	l.ArmBodyCapture(indent.Literal)
	body := l.NextToken()
	if body.Type != token.BODY_BLOCK {
		t.Fatalf("expected BODY_BLOCK, got %v (%q)", body.Type, body.Literal)
	}
	want := "echo one\necho two"
	if body.Literal != want {
		t.Fatalf("body = %q, want %q", body.Literal, want)
	}

	dedent := l.NextToken()
	if dedent.Type != token.DEDENT {
		t.Fatalf("expected DEDENT after body, got %v", dedent.Type)
	}

	next := l.NextToken()
	if next.Type != token.IDENT || next.Literal != "test" {
		t.Fatalf("expected next recipe header IDENT 'test', got %v %q", next.Type, next.Literal)
	}
}

func TestInconsistentIndentation(t *testing.T) {
	src := "a:\n  echo x\n echo y\n"
	toks := collect(t, src)
	var sawIllegal bool
	for _, tok := range toks {
		if tok.Type == token.ILLEGAL {
			sawIllegal = true
		}
	}
	if !sawIllegal {
		t.Fatalf("expected an ILLEGAL token for inconsistent leading whitespace, got %v", types(toks))
	}
}

func TestStringForms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want token.Type
	}{
		{"raw", "'abc'", token.STRING},
		{"cooked", "\"abc\"", token.COOKED_STRING},
		{"indented raw", "'''\nabc\n'''", token.INDENTED_RAW},
		{"indented cooked", "\"\"\"\nabc\n\"\"\"", token.INDENTED_STRING},
		{"format cooked", "f\"abc {{x}}\"", token.FORMAT_COOKED_STRING},
		{"shell expand", "x'echo $HOME'", token.SHELL_STRING},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.src, "test.just")
			tok := l.NextToken()
			if tok.Type != tt.want {
				t.Fatalf("got %v (%q), want %v", tok.Type, tok.Literal, tt.want)
			}
		})
	}
}

func TestBacktickForms(t *testing.T) {
	l := New("`echo hi`", "test.just")
	tok := l.NextToken()
	if tok.Type != token.BACKTICK || tok.Literal != "echo hi" {
		t.Fatalf("got %v %q", tok.Type, tok.Literal)
	}

	l2 := New("```\necho hi\necho bye\n```", "test.just")
	tok2 := l2.NextToken()
	if tok2.Type != token.INDENTED_BACK {
		t.Fatalf("got %v %q", tok2.Type, tok2.Literal)
	}
}

func TestInterpolationMarkers(t *testing.T) {
	toks := collect(t, "{{ x }}")
	got := types(toks)
	want := []token.Type{token.INTERP_START, token.IDENT, token.INTERP_END, token.EOF}
	if !equalTypes(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestLineContinuation(t *testing.T) {
	toks := collect(t, "x := \"a\" + \\\n  \"b\"\n")
	got := types(toks)
	want := []token.Type{token.IDENT, token.WALRUS, token.COOKED_STRING, token.PLUS, token.COOKED_STRING, token.EOL, token.EOF}
	if !equalTypes(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCommentsAndBlankLinesDoNotAffectIndentation(t *testing.T) {
	src := "build:\n    # a comment\n\n    echo one\n"
	l := New(src, "test.just")
	for i := 0; i < 3; i++ {
		l.NextToken()
	}
	indent := l.NextToken()
	if indent.Type != token.INDENT {
		t.Fatalf("expected INDENT, got %v", indent.Type)
	}
}

func TestOperators(t *testing.T) {
	toks := collect(t, "a == b != c =~ d && e || f")
	got := types(toks)
	want := []token.Type{
		token.IDENT, token.EQ_EQ, token.IDENT, token.NOT_EQ, token.IDENT,
		token.TILDE_EQ, token.IDENT, token.AMP_AMP, token.IDENT,
		token.BAR_BAR, token.IDENT, token.EOF,
	}
	if !equalTypes(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func equalTypes(a, b []token.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
