package sem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avwohl/ucow/internal/ast"
	"github.com/avwohl/ucow/internal/diag"
	"github.com/avwohl/ucow/internal/lexer"
	"github.com/avwohl/ucow/internal/parser"
)

func analyze(t *testing.T, src string) (*ast.Program, *Analyzer, *diag.Sink) {
	t.Helper()
	sink := diag.NewSink()
	toks := lexer.New(&lexer.Source{Text: src}, sink).Tokens()
	prog := parser.New(toks, sink).Parse()
	if sink.HasErrors() {
		t.Fatalf("unexpected parse errors: %v", sink.Diagnostics())
	}
	a := New(prog, sink)
	a.Analyze()
	return prog, a, sink
}

func TestRecordLayoutInheritsBaseOffset(t *testing.T) {
	src := `
record Point is
    x: uint8;
    y: uint8;
end record;

record Point3D: Point is
    z: uint8;
end record;
`
	prog, a, sink := analyze(t, src)
	require.False(t, sink.HasErrors(), "unexpected errors: %v", sink.Diagnostics())
	p3 := prog.Decls[1].(*ast.RecordDecl)
	f, ok := p3.Resolved.LookupField("z")
	require.True(t, ok, "Point3D has no field z")
	require.Equal(t, 2, f.Offset, "after Point's two uint8 fields")
	require.Equal(t, 3, p3.Resolved.Size)
	_ = a
}

func TestRecordSelfInheritanceIsRejected(t *testing.T) {
	src := `
record Loopy: Loopy is
    x: uint8;
end record;
`
	_, _, sink := analyze(t, src)
	if !sink.HasErrors() {
		t.Fatal("expected an error for a record inheriting from itself")
	}
}

func TestCallGraphCycleIsRejected(t *testing.T) {
	src := `
@decl sub B(): ();

@impl sub A(): () is
    B();
end sub;

@impl sub B(): () is
    A();
end sub;
`
	_, _, sink := analyze(t, src)
	if !sink.HasErrors() {
		t.Fatal("expected a recursive call graph error")
	}
}

func TestForwardDeclarationWithoutImplIsRejected(t *testing.T) {
	src := `
@decl sub Never(): ();
`
	_, _, sink := analyze(t, src)
	if !sink.HasErrors() {
		t.Fatal("expected an error for a forward declaration with no implementation")
	}
}

func TestComparisonOutsideConditionalContextIsRejected(t *testing.T) {
	src := `
sub F(): (r: uint8) is
    var a: uint8 := 1;
    var b: uint8 := 2;
    r := a < b;
    return;
end sub;
`
	_, _, sink := analyze(t, src)
	if !sink.HasErrors() {
		t.Fatal("expected an error: comparison used as an ordinary value outside a conditional context")
	}
}

func TestComparisonInsideIfConditionIsAccepted(t *testing.T) {
	src := `
sub F(): (r: uint8) is
    var a: uint8 := 1;
    var b: uint8 := 2;
    if a < b then
        r := 1;
    else
        r := 0;
    end if;
    return;
end sub;
`
	_, _, sink := analyze(t, src)
	if sink.HasErrors() {
		t.Fatalf("unexpected errors: %v", sink.Diagnostics())
	}
}

func TestIntegerLiteralAdaptsToDeclaredType(t *testing.T) {
	src := `
sub F(): () is
    var x: uint32 := 5;
    return;
end sub;
`
	prog, _, sink := analyze(t, src)
	if sink.HasErrors() {
		t.Fatalf("unexpected errors: %v", sink.Diagnostics())
	}
	sub := prog.Decls[0].(*ast.SubDecl)
	init := sub.Locals[0].Init
	if init.GetType() == nil || !init.GetType().Equal(ast.UInt32) {
		t.Errorf("literal initializer type = %v, want uint32 (adapted from the untyped literal)", init.GetType())
	}
}

func TestMismatchedOperandTypesAreRejected(t *testing.T) {
	src := `
sub F(): () is
    var a: uint8 := 1;
    var b: uint32 := 2;
    var c: uint32;
    c := a + b;
    return;
end sub;
`
	_, _, sink := analyze(t, src)
	if !sink.HasErrors() {
		t.Fatal("expected a type error: uint8 + uint32 with no implicit conversion")
	}
}

func TestExternForwardDeclarationIsExemptFromImplCheck(t *testing.T) {
	src := `
@decl sub ReadPort(port: uint8): (r: uint8) @extern;
`
	_, _, sink := analyze(t, src)
	require.False(t, sink.HasErrors(), "an @extern @decl needs no @impl: %v", sink.Diagnostics())
}

func TestBreakOutsideLoopIsRejected(t *testing.T) {
	src := `
sub F(): () is
    break;
    return;
end sub;
`
	_, _, sink := analyze(t, src)
	if !sink.HasErrors() {
		t.Fatal("expected an error for break outside a loop")
	}
}
