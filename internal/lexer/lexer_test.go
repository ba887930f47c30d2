package lexer

import (
	"testing"

	"github.com/avwohl/ucow/internal/diag"
	"github.com/avwohl/ucow/internal/token"
)

func lexAll(t *testing.T, src string) ([]token.Token, *diag.Sink) {
	t.Helper()
	sink := diag.NewSink()
	lx := New(&Source{Text: src}, sink)
	return lx.Tokens(), sink
}

func TestLexerKeywordsIdentsNumbers(t *testing.T) {
	toks, sink := lexAll(t, "var x: uint8 := 0x1_0;\n")
	if sink.HasErrors() {
		t.Fatalf("unexpected errors: %v", sink.Diagnostics())
	}
	var kinds []token.Kind
	for _, tk := range toks {
		kinds = append(kinds, tk.Kind)
	}
	want := []token.Kind{
		token.Keyword, token.Ident, token.Punct, token.Ident,
		token.Operator, token.IntLit, token.Punct, token.EOF,
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(kinds), kinds, len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d kind = %v, want %v", i, kinds[i], want[i])
		}
	}
	if toks[5].IntVal != 0x10 {
		t.Errorf("hex literal with separator = %d, want %d", toks[5].IntVal, 0x10)
	}
}

func TestLexerLineComment(t *testing.T) {
	toks, sink := lexAll(t, "x # trailing comment\n")
	if sink.HasErrors() {
		t.Fatalf("unexpected errors: %v", sink.Diagnostics())
	}
	if len(toks) != 2 || toks[0].Kind != token.Ident || toks[1].Kind != token.EOF {
		t.Fatalf("got %v, want one ident then EOF", toks)
	}
}

func TestLexerAtKeywords(t *testing.T) {
	toks, sink := lexAll(t, "@sizeof @next\n")
	if sink.HasErrors() {
		t.Fatalf("unexpected errors: %v", sink.Diagnostics())
	}
	if toks[0].Kind != token.Keyword || toks[0].Lexeme != "@sizeof" {
		t.Errorf("got %v, want @sizeof keyword", toks[0])
	}
	if toks[1].Kind != token.Keyword || toks[1].Lexeme != "@next" {
		t.Errorf("got %v, want @next keyword", toks[1])
	}
}

func TestLexerBarePointerSigil(t *testing.T) {
	toks, sink := lexAll(t, "@ uint8\n")
	if sink.HasErrors() {
		t.Fatalf("unexpected errors: %v", sink.Diagnostics())
	}
	if toks[0].Kind != token.Operator || toks[0].Lexeme != "@" {
		t.Errorf("bare '@' sigil = %v, want an Operator token", toks[0])
	}
}

func TestLexerUnknownDirectiveReportsError(t *testing.T) {
	_, sink := lexAll(t, "@bogus\n")
	if !sink.HasErrors() {
		t.Fatal("expected an error for an unknown @ directive")
	}
}

func TestLexerStringAndCharLiterals(t *testing.T) {
	toks, sink := lexAll(t, `"hi\n" 'a'` + "\n")
	if sink.HasErrors() {
		t.Fatalf("unexpected errors: %v", sink.Diagnostics())
	}
	if toks[0].Kind != token.StringLit || toks[0].StrVal != "hi\n" {
		t.Errorf("string literal = %+v, want StrVal %q", toks[0], "hi\n")
	}
	if toks[1].Kind != token.CharLit || toks[1].IntVal != int64('a') {
		t.Errorf("char literal = %+v, want IntVal %d", toks[1], int64('a'))
	}
}
