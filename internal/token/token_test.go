package token

import "testing"

func TestKindString(t *testing.T) {
	cases := []struct {
		k    Kind
		want string
	}{
		{Keyword, "keyword"},
		{Ident, "identifier"},
		{IntLit, "integer literal"},
		{EOF, "end of file"},
		{Invalid, "invalid"},
	}
	for _, c := range cases {
		if got := c.k.String(); got != c.want {
			t.Errorf("Kind(%d).String() = %q, want %q", c.k, got, c.want)
		}
	}
}

func TestTokenPredicates(t *testing.T) {
	kw := Token{Kind: Keyword, Lexeme: "while"}
	if !kw.IsKeyword("while") {
		t.Error("IsKeyword(\"while\") = false, want true")
	}
	if kw.IsKeyword("loop") {
		t.Error("IsKeyword(\"loop\") = true, want false")
	}

	op := Token{Kind: Operator, Lexeme: "+"}
	if !op.IsOperator("+") {
		t.Error("IsOperator(\"+\") = false, want true")
	}

	p := Token{Kind: Punct, Lexeme: ";"}
	if !p.IsPunct(";") {
		t.Error("IsPunct(\";\") = false, want true")
	}
}

func TestKeywordsIncludesAtForms(t *testing.T) {
	for _, kw := range []string{"@sizeof", "@bytesof", "@indexof", "@next", "@prev", "@decl", "@impl"} {
		if !Keywords[kw] {
			t.Errorf("Keywords[%q] = false, want true", kw)
		}
	}
}

func TestPosString(t *testing.T) {
	p := Pos{File: "foo.cow", Line: 3, Col: 5}
	if got, want := p.String(), "foo.cow:3:5"; got != want {
		t.Errorf("Pos.String() = %q, want %q", got, want)
	}
}
