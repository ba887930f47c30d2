package codegen

import "testing"

func TestVarLabelGlobalVsLocal(t *testing.T) {
	if got, want := varLabel("", "x"), "v_x"; got != want {
		t.Errorf("varLabel(\"\", x) = %q, want %q", got, want)
	}
	if got, want := varLabel("Count", "i"), "v_Count_i"; got != want {
		t.Errorf("varLabel(Count, i) = %q, want %q", got, want)
	}
}

func TestSubAndSlotLabels(t *testing.T) {
	if got, want := subLabel("Max"), "s_Max"; got != want {
		t.Errorf("subLabel = %q, want %q", got, want)
	}
	if got, want := paramLabel("Max", "a"), "p_Max_a"; got != want {
		t.Errorf("paramLabel = %q, want %q", got, want)
	}
	if got, want := returnLabel("Max", "r"), "r_Max_r"; got != want {
		t.Errorf("returnLabel = %q, want %q", got, want)
	}
}

func TestShouldInlineSmallLowFanoutBody(t *testing.T) {
	if !shouldInline(2, 1) {
		t.Error("a 2-statement body called once should inline: 1*2 < 2+3*1+1")
	}
}

func TestShouldInlineRejectsLargeHighFanoutBody(t *testing.T) {
	if shouldInline(50, 10) {
		t.Error("a 50-statement body called 10 times should not inline: 10*50 is not < 50+30+1")
	}
}

func TestShouldInlineRejectsZeroCallSites(t *testing.T) {
	if shouldInline(1, 0) {
		t.Error("a subroutine with no call sites is never worth inlining")
	}
}

func TestRegTrackerSetHoldsInvalidate(t *testing.T) {
	r := NewRegTracker()
	if r.Holds("a", "v_x") {
		t.Fatal("empty tracker should not report any register as holding a value")
	}
	r.Set("a", "v_x")
	if !r.Holds("a", "v_x") {
		t.Fatal("Set should make Holds report true for the same register and label")
	}
	r.Invalidate("v_x")
	if r.Holds("a", "v_x") {
		t.Fatal("Invalidate should clear the cached value wherever it is held")
	}
}

func TestRegTrackerClobberAll(t *testing.T) {
	r := NewRegTracker()
	r.Set("a", "v_x")
	r.Set("hl", "v_y")
	r.ClobberAll()
	if r.Holds("a", "v_x") || r.Holds("hl", "v_y") {
		t.Fatal("ClobberAll should forget every cached register value")
	}
}
