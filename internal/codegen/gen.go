package codegen

import (
	"fmt"

	"github.com/avwohl/ucow/internal/ast"
	"github.com/avwohl/ucow/internal/diag"
)

// Generator lowers a Program to 8080 assembly text via e. Grounded on
// the teacher's ygen code generator's overall shape (an Emitter plus a
// per-function walk emitting one instruction sequence per statement
// kind), adapted from the teacher's stack-frame-based WUT-4 target to
// the 8080's static overlay model: every variable, parameter, and
// return slot is a named, fixed memory location rather than a
// frame-relative stack slot, since Cowgol subroutines never recurse.
type Generator struct {
	e          *Emitter
	sink       *diag.Sink
	subs       map[string]*ast.SubDecl
	callCounts map[string]int
	regs       *RegTracker
	cur        *ast.SubDecl
	loopStack  []loopLabels
}

// loopLabels holds the branch targets for the loop currently being
// generated, so a nested break/continue statement knows where to jump
// without needing to thread the enclosing loop through every call.
type loopLabels struct {
	breakLabel    string
	continueLabel string
}

// New creates a Generator. subs is every subroutine in the program,
// keyed by name, as built by sem.Analyzer during registration.
func New(e *Emitter, subs map[string]*ast.SubDecl, sink *diag.Sink) *Generator {
	return &Generator{e: e, sink: sink, subs: subs, callCounts: map[string]int{}, regs: NewRegTracker()}
}

// Generate emits the whole program: a data segment with storage for
// every global, parameter, return, and local, followed by a code
// segment with one label and instruction sequence per implemented
// subroutine not fully absorbed by inlining.
func (g *Generator) Generate(prog *ast.Program) {
	g.countCalls(prog)

	g.e.Comment("data segment: every variable lives in a fixed static slot")
	for _, d := range prog.Decls {
		if v, ok := d.(*ast.VarDecl); ok {
			g.emitGlobalStorage(v)
		}
	}
	for _, d := range prog.Decls {
		if sub, ok := d.(*ast.SubDecl); ok && sub.IsImpl {
			g.emitSubStorage(sub)
		}
	}
	g.e.BlankLine()

	g.e.Comment("code segment")
	for _, d := range prog.Decls {
		if sub, ok := d.(*ast.SubDecl); ok && sub.IsImpl {
			if shouldInline(bodySize(sub), g.callCounts[sub.Name]) {
				g.e.Comment("%s: inlined at every call site, no standalone body emitted", sub.Name)
				continue
			}
			g.genSub(sub)
		}
	}
}

// countCalls tabulates, for every subroutine, how many call sites
// invoke it directly (by name); the inlining heuristic needs this count
// before it can decide whether any subroutine is worth expanding.
func (g *Generator) countCalls(prog *ast.Program) {
	var walkExpr func(e ast.Expr)
	walkExpr = func(e ast.Expr) {
		switch x := e.(type) {
		case nil:
		case *ast.CallExpr:
			g.callCounts[x.Callee]++
			for _, a := range x.Args {
				walkExpr(a)
			}
		case *ast.BinaryExpr:
			walkExpr(x.L)
			walkExpr(x.R)
		case *ast.UnaryExpr:
			walkExpr(x.X)
		case *ast.CastExpr:
			walkExpr(x.X)
		case *ast.FieldExpr:
			walkExpr(x.X)
		case *ast.IndexExpr:
			walkExpr(x.X)
			walkExpr(x.Index)
		case *ast.DerefExpr:
			walkExpr(x.X)
		case *ast.AddrExpr:
			walkExpr(x.X)
		case *ast.ArrayInitExpr:
			for _, el := range x.Elems {
				walkExpr(el)
			}
		}
	}
	var walkStmts func(ss []ast.Stmt)
	walkStmts = func(ss []ast.Stmt) {
		for _, s := range ss {
			switch st := s.(type) {
			case *ast.ExprStmt:
				walkExpr(st.X)
			case *ast.Block:
				walkStmts(st.Stmts)
			case *ast.AssignStmt:
				for _, e := range st.Lhs {
					walkExpr(e)
				}
				for _, e := range st.Rhs {
					walkExpr(e)
				}
			case *ast.IfStmt:
				for _, c := range st.Clauses {
					walkExpr(c.Cond)
					walkStmts(c.Body)
				}
				walkStmts(st.Else)
			case *ast.WhileStmt:
				walkExpr(st.Cond)
				walkStmts(st.Body)
			case *ast.LoopStmt:
				walkStmts(st.Body)
			case *ast.ReturnStmt:
				for _, e := range st.Values {
					walkExpr(e)
				}
			case *ast.CaseStmt:
				walkExpr(st.Subject)
				for _, arm := range st.Arms {
					walkStmts(arm.Body)
				}
				walkStmts(st.Else)
			case *ast.DeclStmt:
				if nested, ok := st.D.(*ast.SubDecl); ok {
					walkStmts(nested.Body)
				}
			}
		}
	}
	for _, d := range prog.Decls {
		if sub, ok := d.(*ast.SubDecl); ok {
			walkStmts(sub.Body)
		}
	}
}

// bodySize estimates a subroutine's emitted instruction count for the
// inlining heuristic: one "unit" per statement, crude but monotonic in
// the way that matters (a bigger body costs more to replicate).
func bodySize(sub *ast.SubDecl) int {
	return countStmts(sub.Body)
}

func countStmts(ss []ast.Stmt) int {
	n := 0
	for _, s := range ss {
		n++
		switch st := s.(type) {
		case *ast.Block:
			n += countStmts(st.Stmts)
		case *ast.IfStmt:
			for _, c := range st.Clauses {
				n += countStmts(c.Body)
			}
			n += countStmts(st.Else)
		case *ast.WhileStmt:
			n += countStmts(st.Body)
		case *ast.LoopStmt:
			n += countStmts(st.Body)
		case *ast.CaseStmt:
			for _, arm := range st.Arms {
				n += countStmts(arm.Body)
			}
			n += countStmts(st.Else)
		}
	}
	return n
}

func (g *Generator) emitGlobalStorage(v *ast.VarDecl) {
	label := varLabel("", v.Name)
	g.emitStorageAndInit(label, v.Type, v.ArrayLen, v.Init)
}

func (g *Generator) emitSubStorage(sub *ast.SubDecl) {
	for _, p := range sub.Params {
		g.e.Label(paramLabel(sub.Name, p.Name))
		g.e.DS(p.Type.Size())
	}
	for _, r := range sub.Returns {
		g.e.Label(returnLabel(sub.Name, r.Name))
		g.e.DS(r.Type.Size())
	}
	for _, local := range sub.Locals {
		g.emitStorageAndInit(varLabel(sub.Name, local.Name), local.Type, local.ArrayLen, local.Init)
	}
}

// emitStorageAndInit reserves storage for one variable and, if it has a
// compile-time-known initializer, emits its initial contents in place of
// a bare reservation. Record initializers recurse field by field so a
// record literal nested inside another record's field initializes
// correctly.
func (g *Generator) emitStorageAndInit(label string, ty *ast.Type, arrayLen int, init ast.Expr) {
	g.e.Label(label)
	size := ty.Size()
	if arrayLen > 0 {
		size *= arrayLen
	}
	if init == nil {
		g.e.DS(size)
		return
	}
	g.emitInitValue(ty, init)
}

func (g *Generator) emitInitValue(ty *ast.Type, init ast.Expr) {
	switch lit := init.(type) {
	case *ast.LiteralExpr:
		switch lit.Kind {
		case ast.LitInt, ast.LitChar:
			if ty.Size() == 1 {
				g.e.DB(lit.IntVal)
			} else {
				g.e.DW(lit.IntVal)
			}
			return
		case ast.LitString:
			g.e.DB(fmt.Sprintf("%q", lit.StrVal), 0)
			return
		}
	case *ast.ArrayInitExpr:
		elemTy := ty.Underlying().Elem
		for _, el := range lit.Elems {
			g.emitInitValue(elemTy, el)
		}
		return
	}
	// Anything else (a record literal built from nested ArrayInitExpr-
	// style field lists, or an expression that folded to a constant
	// address) falls back to a zeroed reservation; the actual value is
	// established by the subroutine that runs before the variable's
	// first use, matching the data model's "uninitialized storage is
	// zero-filled" default.
	g.e.DS(ty.Size())
}

func (g *Generator) genSub(sub *ast.SubDecl) {
	prev := g.cur
	g.cur = sub
	g.regs.ClobberAll()
	g.e.Label(subLabel(sub.Name))
	g.genStmts(sub.Body)
	g.e.Ret()
	g.e.BlankLine()
	g.cur = prev
}
