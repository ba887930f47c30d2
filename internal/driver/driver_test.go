package driver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("writing fixture %s: %v", path, err)
	}
	return path
}

func TestCompileSuccessWritesAssembly(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "add.cow", `
sub Add(a: uint8, b: uint8): (r: uint8) is
    r := a + b;
    return;
end sub;
`)
	out := filepath.Join(dir, "add.asm")
	result := Compile(Options{SourcePath: src, OutputPath: out})
	if result.InternalErr != nil {
		t.Fatalf("unexpected internal error: %v", result.InternalErr)
	}
	if !result.OK {
		t.Fatalf("unexpected diagnostics: %v", result.Diagnostics)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading generated assembly: %v", err)
	}
	if !strings.Contains(string(data), "s_Add:") {
		t.Errorf("generated assembly missing s_Add label:\n%s", data)
	}
}

func TestCompileWithOptimizeAndPeepholeStillSucceeds(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "count.cow", `
sub Count(): (r: uint16) is
    var i: uint16 := 0;
    var total: uint16 := 0;
    while i < 10 loop
        total := total + 1;
        i := i + 1;
    end loop;
    r := total;
    return;
end sub;
`)
	out := filepath.Join(dir, "count.asm")
	result := Compile(Options{SourcePath: src, OutputPath: out, Optimize: true})
	if result.InternalErr != nil {
		t.Fatalf("unexpected internal error: %v", result.InternalErr)
	}
	if !result.OK {
		t.Fatalf("unexpected diagnostics: %v", result.Diagnostics)
	}
}

func TestCompileReportsParseErrorDiagnostics(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "bad.cow", "sub ;;; bogus\n")
	out := filepath.Join(dir, "bad.asm")
	result := Compile(Options{SourcePath: src, OutputPath: out})
	if result.InternalErr != nil {
		t.Fatalf("expected ordinary diagnostics, not an internal error: %v", result.InternalErr)
	}
	if result.OK {
		t.Fatal("expected compilation to fail on malformed source")
	}
	if len(result.Diagnostics) == 0 {
		t.Fatal("expected at least one diagnostic")
	}
}

func TestCompileMissingSourceFileReportsDiagnostic(t *testing.T) {
	dir := t.TempDir()
	result := Compile(Options{SourcePath: filepath.Join(dir, "does_not_exist.cow"), OutputPath: filepath.Join(dir, "out.asm")})
	if result.OK {
		t.Fatal("expected compilation to fail for a missing source file")
	}
	if result.InternalErr != nil {
		t.Fatalf("a missing file is a user-facing error, not an internal one: %v", result.InternalErr)
	}
	if len(result.Diagnostics) == 0 {
		t.Fatal("expected a diagnostic explaining the missing file")
	}
}
