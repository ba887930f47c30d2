package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avwohl/ucow/internal/ast"
	"github.com/avwohl/ucow/internal/diag"
	"github.com/avwohl/ucow/internal/lexer"
)

func parseSource(t *testing.T, src string) (*ast.Program, *diag.Sink) {
	t.Helper()
	sink := diag.NewSink()
	toks := lexer.New(&lexer.Source{Text: src}, sink).Tokens()
	prog := New(toks, sink).Parse()
	return prog, sink
}

func TestParseVarDecl(t *testing.T) {
	prog, sink := parseSource(t, "var X: uint8 := 1;\n")
	require.False(t, sink.HasErrors(), "unexpected errors: %v", sink.Diagnostics())
	require.Len(t, prog.Decls, 1)
	v, ok := prog.Decls[0].(*ast.VarDecl)
	require.True(t, ok, "decl is %T, want *ast.VarDecl", prog.Decls[0])
	require.Equal(t, "X", v.Name)
	require.True(t, v.IsPublic)
}

func TestParseSubWithIfAndReturn(t *testing.T) {
	src := `
sub Max(a: uint8, b: uint8): (r: uint8) is
    if a > b then
        r := a;
    else
        r := b;
    end if;
    return;
end sub;
`
	prog, sink := parseSource(t, src)
	require.False(t, sink.HasErrors(), "unexpected errors: %v", sink.Diagnostics())
	require.Len(t, prog.Decls, 1)
	sub, ok := prog.Decls[0].(*ast.SubDecl)
	require.True(t, ok, "decl is %T, want *ast.SubDecl", prog.Decls[0])
	require.Equal(t, "Max", sub.Name)
	require.Len(t, sub.Params, 2)
	require.Len(t, sub.Returns, 1)
	require.Len(t, sub.Body, 2, "want if, return")
	require.IsType(t, &ast.IfStmt{}, sub.Body[0])
}

func TestParseWhileLoop(t *testing.T) {
	src := `
sub Count() is
    var i: uint8 := 0;
    while i < 10 loop
        i := i + 1;
    end loop;
end sub;
`
	prog, sink := parseSource(t, src)
	require.False(t, sink.HasErrors(), "unexpected errors: %v", sink.Diagnostics())
	sub := prog.Decls[0].(*ast.SubDecl)
	require.Len(t, sub.Locals, 1)
	require.Equal(t, "i", sub.Locals[0].Name)
	require.Len(t, sub.Body, 1, "want one while statement")
	ws, ok := sub.Body[0].(*ast.WhileStmt)
	require.True(t, ok, "statement is %T, want *ast.WhileStmt", sub.Body[0])
	cond, ok := ws.Cond.(*ast.BinaryExpr)
	require.True(t, ok, "cond = %#v, want a binary comparison", ws.Cond)
	require.Equal(t, ast.BinLt, cond.Op)
}

func TestParseRecordWithInheritance(t *testing.T) {
	src := `
record Point is
    x: uint8;
    y: uint8;
end record;

record Point3D: Point is
    z: uint8;
end record;
`
	prog, sink := parseSource(t, src)
	require.False(t, sink.HasErrors(), "unexpected errors: %v", sink.Diagnostics())
	require.Len(t, prog.Decls, 2)
	p3 := prog.Decls[1].(*ast.RecordDecl)
	require.Equal(t, "Point3D", p3.Name)
	require.Equal(t, "Point", p3.BaseName)
}

func TestParseErrorRecoverySyncsToTopLevel(t *testing.T) {
	src := "bogus tokens here\nvar X: uint8;\n"
	prog, sink := parseSource(t, src)
	require.True(t, sink.HasErrors(), "expected a parse error for the malformed leading line")
	require.Len(t, prog.Decls, 1, "want the trailing var decl to still parse after resync")
}
