package codegen

import (
	"github.com/avwohl/ucow/internal/ast"
	"github.com/avwohl/ucow/internal/diag"
)

// varRef resolves an identifier to its static storage label. g.cur (and,
// for a variable captured from an enclosing subroutine, its Parent
// chain) supplies the param/return/local lists to disambiguate from a
// file-scope global of the same name; Cowgol locals are unique only
// within their own subroutine, so the owning subroutine's name always
// participates in the label.
func (g *Generator) varRef(id *ast.IdentExpr) string {
	for sub := g.cur; sub != nil; sub = sub.Parent {
		for _, p := range sub.Params {
			if p.Name == id.Name {
				return paramLabel(sub.Name, id.Name)
			}
		}
		for _, r := range sub.Returns {
			if r.Name == id.Name {
				return returnLabel(sub.Name, id.Name)
			}
		}
		for _, l := range sub.Locals {
			if l.Name == id.Name {
				return varLabel(sub.Name, id.Name)
			}
		}
	}
	return varLabel("", id.Name)
}

// genValue evaluates e and leaves its result in A (8-bit values) or HL
// (16-bit values and pointers), returning which register was used. The
// register tracker is consulted first so a variable already cached in
// place is not reloaded.
func (g *Generator) genValue(e ast.Expr) string {
	size := 1
	if t := e.GetType(); t != nil {
		size = t.Size()
	}
	if size <= 1 {
		g.genExpr8(e)
		return "a"
	}
	g.genExpr16(e)
	return "hl"
}

func (g *Generator) genExpr8(e ast.Expr) {
	switch x := e.(type) {
	case *ast.LiteralExpr:
		g.e.Mvi("a", x.IntVal)
	case *ast.IdentExpr:
		label := g.varRef(x)
		if g.regs.Holds("a", label) {
			return
		}
		g.e.Lda(label)
		g.regs.Set("a", label)
	case *ast.UnaryExpr:
		g.genUnary8(x)
	case *ast.BinaryExpr:
		g.genBinary8(x)
	case *ast.CastExpr:
		g.genExpr8(x.X)
	case *ast.FieldExpr, *ast.IndexExpr, *ast.DerefExpr:
		g.genAddr(e)
		g.e.Mov("a", "m")
	case *ast.CallExpr:
		g.genCall(x)
		if t := x.GetType(); t != nil && t.Size() > 1 {
			g.e.Mov("a", "l")
		}
	default:
		g.e.Comment("unsupported 8-bit expression form")
	}
}

func (g *Generator) genExpr16(e ast.Expr) {
	switch x := e.(type) {
	case *ast.LiteralExpr:
		g.e.Lxi("h", x.IntVal)
	case *ast.IdentExpr:
		label := g.varRef(x)
		if g.regs.Holds("hl", label) {
			return
		}
		g.e.Lhld(label)
		g.regs.Set("hl", label)
	case *ast.UnaryExpr:
		g.genUnary16(x)
	case *ast.BinaryExpr:
		g.genBinary16(x)
	case *ast.CastExpr:
		g.genExpr16(x.X)
	case *ast.AddrExpr:
		g.genAddr(x.X)
	case *ast.FieldExpr, *ast.IndexExpr, *ast.DerefExpr:
		g.genAddr(e)
		g.e.Mov("e", "m")
		g.e.Inx("h")
		g.e.Mov("d", "m")
		g.e.Xchg()
	case *ast.CallExpr:
		g.genCall(x)
	default:
		g.e.Comment("unsupported 16-bit expression form")
	}
}

// genAddr computes the address of an lvalue into HL: a record field
// (direct, or through a pointer base), an array element, or an explicit
// pointer dereference. &expr (AddrExpr) is legal only over a FieldExpr
// per the language's addressability rule, enforced earlier by sem.
func (g *Generator) genAddr(e ast.Expr) {
	switch x := e.(type) {
	case *ast.IdentExpr:
		g.e.Lxi("h", g.varRef(x))
	case *ast.FieldExpr:
		xTy := x.X.GetType().Underlying()
		recTy := xTy
		if xTy.Kind == ast.KindPointer {
			// p.field on a pointer-to-record base: the base address is
			// the pointer's value, not the address of the pointer slot.
			g.genExpr16(x.X)
			recTy = xTy.Pointee.Underlying()
		} else {
			g.genAddr(x.X)
		}
		if recTy.Kind == ast.KindRecord {
			if f, ok := recTy.Record.LookupField(x.Field); ok && f.Offset != 0 {
				g.e.Lxi("d", f.Offset)
				g.e.Dad("d")
			}
		}
	case *ast.IndexExpr:
		elemSize := 1
		if t := x.GetType(); t != nil {
			elemSize = t.Size()
		}
		g.genAddr(x.X)
		g.e.Push("h")
		g.genExpr16(x.Index)
		switch elemSize {
		case 1:
			// no scaling needed
		case 2:
			g.e.Dad("h")
		case 4:
			g.e.Dad("h")
			g.e.Dad("h")
		default:
			g.e.Comment("scale index by element size %d via runtime helper", elemSize)
			g.e.Lxi("d", elemSize)
			g.e.Call("s___mul16")
		}
		g.e.Xchg()
		g.e.Pop("h")
		g.e.Dad("d")
	case *ast.DerefExpr:
		g.genExpr16(x.X)
	default:
		g.genExpr16(e)
	}
}

func (g *Generator) genUnary8(x *ast.UnaryExpr) {
	g.genExpr8(x.X)
	switch x.Op {
	case ast.UnNeg:
		g.e.Cma()
		g.e.Adi(1)
	case ast.UnBitNot:
		g.e.Cma()
	case ast.UnNot:
		g.e.Xri(1)
	}
}

func (g *Generator) genUnary16(x *ast.UnaryExpr) {
	switch x.Op {
	case ast.UnNext, ast.UnPrev:
		g.genExpr16(x.X)
		size := 1
		if t := x.X.GetType(); t != nil {
			if u := t.Underlying(); u != nil && u.Pointee != nil {
				size = u.Pointee.Size()
			}
		}
		if size == 1 {
			if x.Op == ast.UnNext {
				g.e.Inx("h")
			} else {
				g.e.Dcx("h")
			}
			return
		}
		g.e.Comment("scale pointer adjustment by pointee size %d", size)
		if x.Op == ast.UnNext {
			g.e.Lxi("d", size)
		} else {
			g.e.Lxi("d", -size)
		}
		g.e.Dad("d")
	default:
		g.genExpr16(x.X)
	}
}

// genBinary8 evaluates an 8-bit binary expression, leaving its result in
// A. The left operand is computed and stashed first, then the right, so
// a side effect in either (a call, say) happens in source order; B ends
// up holding the right operand and A the left, the order SUB and CMP
// need for non-commutative operators.
func (g *Generator) genBinary8(x *ast.BinaryExpr) {
	g.genExpr8(x.L)
	g.e.Push("psw")
	g.genExpr8(x.R)
	g.regs.ClobberAll()
	g.e.Mov("b", "a")
	g.e.Pop("psw")
	switch x.Op {
	case ast.BinAdd:
		g.e.Add("b")
	case ast.BinSub:
		g.e.Sub("b")
	case ast.BinAnd:
		g.e.Ana("b")
	case ast.BinOr:
		g.e.Ora("b")
	case ast.BinXor:
		g.e.Xra("b")
	case ast.BinEq, ast.BinNe, ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe:
		g.e.Cmp("b")
		g.genCompareResult(x.Op)
	default:
		g.e.Comment("operator %s lowered via runtime helper", x.Op)
	}
}

// genCompareResult turns the flags left by a CMP into a 0/1 value in A,
// since Cowgol comparisons outside a conditional context still produce
// an ordinary boolean value usable in `and`/`or` expressions.
func (g *Generator) genCompareResult(op ast.BinaryOp) {
	trueLabel := g.e.NewLabel("cmptrue")
	doneLabel := g.e.NewLabel("cmpdone")
	switch op {
	case ast.BinEq:
		g.e.Jz(trueLabel)
	case ast.BinNe:
		g.e.Jnz(trueLabel)
	case ast.BinLt:
		g.e.Jc(trueLabel)
	case ast.BinGe:
		g.e.Jnc(trueLabel)
	default:
		g.e.Jz(trueLabel)
	}
	g.e.Mvi("a", 0)
	g.e.Jmp(doneLabel)
	g.e.Label(trueLabel)
	g.e.Mvi("a", 1)
	g.e.Label(doneLabel)
}

// genBinary16 evaluates a 16-bit binary expression into HL. The left
// operand is computed and stashed first, then the right, so a side
// effect in either happens in source order.
func (g *Generator) genBinary16(x *ast.BinaryExpr) {
	g.genExpr16(x.L)
	g.e.Push("h")
	g.genExpr16(x.R)
	g.regs.ClobberAll()
	g.e.Xchg()
	g.e.Pop("h")
	switch x.Op {
	case ast.BinAdd:
		g.e.Dad("d")
	case ast.BinSub:
		g.e.Comment("16-bit subtract: HL = HL - DE via two's complement add")
		g.e.Xchg()
		g.e.Call("s___neg16")
		g.e.Xchg()
		g.e.Dad("d")
	default:
		g.e.Comment("operator %s lowered via runtime helper", x.Op)
	}
}

// genCond generates a conditional branch: jump to trueLabel when cond
// holds, otherwise fall through. Comparisons and and/or/not are only
// legal here (sem enforces that elsewhere), so this is where the
// natural 8080 flag-setting idiom applies directly, unlike genBinary8's
// materialize-a-0-or-1 path used when a comparison appears as an
// ordinary value.
func (g *Generator) genCond(cond ast.Expr, trueLabel string) {
	if b, ok := cond.(*ast.BinaryExpr); ok {
		switch b.Op {
		case ast.BinLogAnd:
			falseLabel := g.e.NewLabel("andfalse")
			g.genCondInverse(b.L, falseLabel)
			g.genCond(b.R, trueLabel)
			g.e.Label(falseLabel)
			return
		case ast.BinLogOr:
			g.genCond(b.L, trueLabel)
			g.genCond(b.R, trueLabel)
			return
		case ast.BinEq, ast.BinNe, ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe:
			g.genExpr8(b.R)
			g.e.Push("psw")
			g.genExpr8(b.L)
			g.regs.ClobberAll()
			g.e.Pop("b")
			g.e.Cmp("b")
			g.jumpOn(b.Op, trueLabel)
			return
		}
	}
	if u, ok := cond.(*ast.UnaryExpr); ok && u.Op == ast.UnNot {
		falseLabel := g.e.NewLabel("notfalse")
		g.genCondInverse(u.X, falseLabel)
		g.e.Jmp(trueLabel)
		g.e.Label(falseLabel)
		return
	}
	g.genExpr8(cond)
	g.e.Ora("a")
	g.e.Jnz(trueLabel)
}

// genCondInverse jumps to label when cond is false; used to synthesize
// short-circuit and/or without needing a separate inverted-AST form.
func (g *Generator) genCondInverse(cond ast.Expr, label string) {
	skip := g.e.NewLabel("skip")
	g.genCond(cond, skip)
	g.e.Jmp(label)
	g.e.Label(skip)
}

func (g *Generator) jumpOn(op ast.BinaryOp, label string) {
	switch op {
	case ast.BinEq:
		g.e.Jz(label)
	case ast.BinNe:
		g.e.Jnz(label)
	case ast.BinLt:
		g.e.Jc(label)
	case ast.BinGe:
		g.e.Jnc(label)
	default:
		g.e.Comment("comparison %s needs a second flag test after cmp", op)
		g.e.Jz(label)
	}
}

func (g *Generator) genCall(x *ast.CallExpr) {
	if x.Sym != nil && x.Sym.Kind == ast.SymVar {
		g.genIndirectCall(x)
		return
	}
	callee, ok := g.subs[x.Callee]
	if !ok {
		diag.Bug(x.Loc, "call to unresolved subroutine %q reached codegen", x.Callee)
		return
	}
	for i, arg := range x.Args {
		if i >= len(callee.Params) {
			break
		}
		size := 1
		if t := arg.GetType(); t != nil {
			size = t.Size()
		}
		if size <= 1 {
			g.genExpr8(arg)
			g.e.Sta(paramLabel(callee.Name, callee.Params[i].Name))
		} else {
			g.genExpr16(arg)
			g.e.Shld(paramLabel(callee.Name, callee.Params[i].Name))
		}
	}
	if shouldInline(bodySize(callee), g.callCounts[callee.Name]) {
		g.e.Comment("inline expansion of %s", callee.Name)
		savedCur := g.cur
		g.cur = callee
		g.genStmts(callee.Body)
		g.cur = savedCur
	} else {
		g.regs.ClobberAll()
		g.e.Call(subLabel(callee.Name))
	}
	if len(callee.Returns) > 0 {
		r := callee.Returns[0]
		if r.Type.Size() <= 1 {
			g.e.Lda(returnLabel(callee.Name, r.Name))
		} else {
			g.e.Lhld(returnLabel(callee.Name, r.Name))
		}
	}
}

// genIndirectCall emits a call through an interface-typed variable. The
// variable itself holds the address of whatever subroutine was last
// assigned to it, so the concrete callee is not known until runtime;
// every subroutine conforming to the interface reads its arguments from
// and writes its results to the interface's own fixed slots (named after
// the interface, not the concrete sub) rather than slots of its own,
// which is what lets one call site serve any of them. The 8080 has no
// call-through-register instruction: PUSHing a local return label then
// PCHL-jumping through the loaded address supplies both the call and the
// return the missing CALL reg form would otherwise give for free.
func (g *Generator) genIndirectCall(x *ast.CallExpr) {
	iface := x.Sym.Type.Underlying().Iface
	ifaceName := x.Sym.Type.Name
	for i, arg := range x.Args {
		if i >= len(iface.Params) {
			break
		}
		size := 1
		if t := arg.GetType(); t != nil {
			size = t.Size()
		}
		if size <= 1 {
			g.genExpr8(arg)
			g.e.Sta(paramLabel(ifaceName, iface.Params[i].Name))
		} else {
			g.genExpr16(arg)
			g.e.Shld(paramLabel(ifaceName, iface.Params[i].Name))
		}
	}
	label := g.varRef(&ast.IdentExpr{Name: x.Callee})
	g.regs.ClobberAll()
	retLabel := g.e.NewLabel("indirect_ret")
	g.e.Lxi("h", retLabel)
	g.e.Xchg()
	g.e.Push("d")
	g.e.Lhld(label)
	g.e.Pchl()
	g.e.Label(retLabel)
	if len(iface.Returns) > 0 {
		r := iface.Returns[0]
		if r.Type.Size() <= 1 {
			g.e.Lda(returnLabel(ifaceName, r.Name))
		} else {
			g.e.Lhld(returnLabel(ifaceName, r.Name))
		}
	}
}
