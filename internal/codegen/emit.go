// Package codegen lowers a semantically resolved, optimized AST to 8080
// assembly text. Subroutine locals and parameters are not stack framed:
// per the data model's no-recursion invariant, every subroutine's
// storage can live in one fixed, statically allocated overlay slot
// shared across all its (non-overlapping, since non-recursive) calls,
// the same static-allocation strategy the 8080/Z80-era Cowgol compiler
// used in practice.
package codegen

import (
	"bufio"
	"fmt"
)

// Emitter formats assembly text. Grounded on lang/ygen/emit.go's
// Emitter, retargeted from the teacher's three-operand WUT-4 RISC
// mnemonics to 8080's two-operand (or zero/one-operand) instruction
// forms and its .org/.db/.dw-style data directives.
type Emitter struct {
	out        *bufio.Writer
	labelCount int
}

// NewEmitter creates an Emitter writing to w.
func NewEmitter(w *bufio.Writer) *Emitter {
	return &Emitter{out: w}
}

// NewLabel generates a unique local label for branch targets that have
// no source-level name (an `if`'s else branch, a loop's back-edge).
func (e *Emitter) NewLabel(prefix string) string {
	label := fmt.Sprintf("L_%s%d", prefix, e.labelCount)
	e.labelCount++
	return label
}

func (e *Emitter) Comment(format string, args ...interface{}) {
	fmt.Fprintf(e.out, "; %s\n", fmt.Sprintf(format, args...))
}

func (e *Emitter) BlankLine() {
	fmt.Fprintln(e.out)
}

func (e *Emitter) Label(name string) {
	fmt.Fprintf(e.out, "%s:\n", name)
}

// Raw emits an unindented line verbatim, used for inline @asm text which
// carries its own formatting.
func (e *Emitter) Raw(text string) {
	fmt.Fprintf(e.out, "%s\n", text)
}

func (e *Emitter) Instr0(op string) {
	fmt.Fprintf(e.out, "    %s\n", op)
}

func (e *Emitter) Instr1(op string, arg interface{}) {
	fmt.Fprintf(e.out, "    %-4s %v\n", op, arg)
}

func (e *Emitter) Instr2(op string, a1, a2 interface{}) {
	fmt.Fprintf(e.out, "    %-4s %v, %v\n", op, a1, a2)
}

// --- data segment helpers ---

func (e *Emitter) Org(addr int) {
	fmt.Fprintf(e.out, "    org 0%04Xh\n", addr)
}

func (e *Emitter) DB(values ...interface{}) {
	fmt.Fprint(e.out, "    db ")
	for i, v := range values {
		if i > 0 {
			fmt.Fprint(e.out, ", ")
		}
		fmt.Fprintf(e.out, "%v", v)
	}
	fmt.Fprintln(e.out)
}

func (e *Emitter) DW(values ...interface{}) {
	fmt.Fprint(e.out, "    dw ")
	for i, v := range values {
		if i > 0 {
			fmt.Fprint(e.out, ", ")
		}
		fmt.Fprintf(e.out, "%v", v)
	}
	fmt.Fprintln(e.out)
}

func (e *Emitter) DS(n int) {
	fmt.Fprintf(e.out, "    ds %d\n", n)
}

func (e *Emitter) Flush() {
	e.out.Flush()
}

// --- mnemonic helpers: the subset of the 8080 instruction set this
// generator emits. Named after the real mnemonics rather than wrapped
// behind an abstraction, matching the teacher's Ldw/Stw/Adi-style
// one-to-one instruction helpers.

func (e *Emitter) Mvi(reg string, imm interface{}) { e.Instr2("mvi", reg, imm) }
func (e *Emitter) Mov(dst, src string)             { e.Instr2("mov", dst, src) }
func (e *Emitter) Lxi(pair string, imm interface{}) { e.Instr2("lxi", pair, imm) }
func (e *Emitter) Lda(addr interface{})             { e.Instr1("lda", addr) }
func (e *Emitter) Sta(addr interface{})             { e.Instr1("sta", addr) }
func (e *Emitter) Lhld(addr interface{})            { e.Instr1("lhld", addr) }
func (e *Emitter) Shld(addr interface{})            { e.Instr1("shld", addr) }
func (e *Emitter) Push(pair string)                 { e.Instr1("push", pair) }
func (e *Emitter) Pop(pair string)                   { e.Instr1("pop", pair) }
func (e *Emitter) Call(label string)                 { e.Instr1("call", label) }
func (e *Emitter) Ret()                              { e.Instr0("ret") }
func (e *Emitter) Jmp(label string)                  { e.Instr1("jmp", label) }
func (e *Emitter) Jz(label string)                   { e.Instr1("jz", label) }
func (e *Emitter) Jnz(label string)                  { e.Instr1("jnz", label) }
func (e *Emitter) Jc(label string)                   { e.Instr1("jc", label) }
func (e *Emitter) Jnc(label string)                  { e.Instr1("jnc", label) }
func (e *Emitter) Pchl()                             { e.Instr0("pchl") }
func (e *Emitter) Xchg()                             { e.Instr0("xchg") }
func (e *Emitter) Inx(pair string)                   { e.Instr1("inx", pair) }
func (e *Emitter) Dcx(pair string)                   { e.Instr1("dcx", pair) }
func (e *Emitter) Dad(pair string)                   { e.Instr1("dad", pair) }
func (e *Emitter) Inr(reg string)                    { e.Instr1("inr", reg) }
func (e *Emitter) Dcr(reg string)                    { e.Instr1("dcr", reg) }
func (e *Emitter) Add(reg string)                    { e.Instr1("add", reg) }
func (e *Emitter) Adc(reg string)                    { e.Instr1("adc", reg) }
func (e *Emitter) Sub(reg string)                    { e.Instr1("sub", reg) }
func (e *Emitter) Sbb(reg string)                    { e.Instr1("sbb", reg) }
func (e *Emitter) Ana(reg string)                    { e.Instr1("ana", reg) }
func (e *Emitter) Ora(reg string)                    { e.Instr1("ora", reg) }
func (e *Emitter) Xra(reg string)                    { e.Instr1("xra", reg) }
func (e *Emitter) Cmp(reg string)                    { e.Instr1("cmp", reg) }
func (e *Emitter) Cpi(imm interface{})               { e.Instr1("cpi", imm) }
func (e *Emitter) Adi(imm interface{})               { e.Instr1("adi", imm) }
func (e *Emitter) Sui(imm interface{})               { e.Instr1("sui", imm) }
func (e *Emitter) Ani(imm interface{})               { e.Instr1("ani", imm) }
func (e *Emitter) Ori(imm interface{})               { e.Instr1("ori", imm) }
func (e *Emitter) Xri(imm interface{})               { e.Instr1("xri", imm) }
func (e *Emitter) Cma()                              { e.Instr0("cma") }
func (e *Emitter) Rlc()                              { e.Instr0("rlc") }
func (e *Emitter) Rrc()                              { e.Instr0("rrc") }
