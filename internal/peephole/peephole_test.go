package peephole

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func run(t *testing.T, src string) string {
	t.Helper()
	lines := ParseAll(strings.Split(src, "\n"))
	Optimize(lines)
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	WriteAll(w, lines)
	w.Flush()
	return buf.String()
}

func TestMovSameRegisterEliminated(t *testing.T) {
	out := run(t, "    mov a, a\n    ret\n")
	if strings.Contains(out, "mov") {
		t.Errorf("mov a,a should be eliminated, got:\n%s", out)
	}
}

func TestMviAZeroBecomesXra(t *testing.T) {
	out := run(t, "    mvi a, 0\n    ret\n")
	if !strings.Contains(out, "xra") || strings.Contains(out, "mvi") {
		t.Errorf("mvi a,0 should become xra a, got:\n%s", out)
	}
}

func TestPushPopPairEliminated(t *testing.T) {
	out := run(t, "    push h\n    pop h\n    ret\n")
	if strings.Contains(out, "push") || strings.Contains(out, "pop") {
		t.Errorf("push h / pop h should cancel, got:\n%s", out)
	}
}

func TestDoubleXchgCancels(t *testing.T) {
	out := run(t, "    xchg\n    xchg\n    ret\n")
	if strings.Contains(out, "xchg") {
		t.Errorf("xchg; xchg should cancel, got:\n%s", out)
	}
}

func TestInxDcxPairCancels(t *testing.T) {
	out := run(t, "    inx h\n    dcx h\n    ret\n")
	if strings.Contains(out, "inx") || strings.Contains(out, "dcx") {
		t.Errorf("inx h / dcx h should cancel, got:\n%s", out)
	}
}

func TestLxiDOneThenDadDBecomesInxH(t *testing.T) {
	out := run(t, "    lxi d, 1\n    dad d\n    ret\n")
	if strings.Contains(out, "lxi") || strings.Contains(out, "dad") {
		t.Errorf("lxi d,1 / dad d should become inx h, got:\n%s", out)
	}
	if !strings.Contains(out, "inx  h") && !strings.Contains(out, "inx h") {
		t.Errorf("expected an inx h instruction, got:\n%s", out)
	}
}

func TestCallThenRetBecomesTailJump(t *testing.T) {
	out := run(t, "    call s_Foo\n    ret\n")
	if strings.Contains(out, "call") {
		t.Errorf("call X / ret should become jmp X, got:\n%s", out)
	}
	if !strings.Contains(out, "jmp") {
		t.Errorf("expected a tail jmp, got:\n%s", out)
	}
}

func TestRedundantLdaAfterStaEliminated(t *testing.T) {
	out := run(t, "    sta v_x\n    lda v_x\n    ret\n")
	if strings.Contains(out, "lda") {
		t.Errorf("lda v_x right after sta v_x should be eliminated, got:\n%s", out)
	}
}

func TestRedundantLhldAfterShldEliminated(t *testing.T) {
	out := run(t, "    shld v_x\n    lhld v_x\n    ret\n")
	if strings.Contains(out, "lhld") {
		t.Errorf("lhld v_x right after shld v_x should be eliminated, got:\n%s", out)
	}
}

func TestBranchOverJumpFoldsToInvertedBranch(t *testing.T) {
	src := "    jz skip\n    jmp target\nskip:\n    ret\n"
	out := run(t, src)
	if strings.Contains(out, "jz") || strings.Contains(out, "jmp") {
		t.Errorf("jz skip / jmp target / skip: should fold to jnz target, got:\n%s", out)
	}
	if !strings.Contains(out, "jnz") {
		t.Errorf("expected the inverted branch jnz, got:\n%s", out)
	}
}

func TestUnrelatedInstructionsAreUntouched(t *testing.T) {
	src := "    mov a, b\n    add c\n    ret\n"
	out := run(t, src)
	if !strings.Contains(out, "mov") || !strings.Contains(out, "add") {
		t.Errorf("unrelated instructions should survive unchanged, got:\n%s", out)
	}
}
