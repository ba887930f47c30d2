package sem

import (
	"github.com/avwohl/ucow/internal/ast"
	"github.com/avwohl/ucow/internal/diag"
)

// typeCheckProgram walks every implemented subroutine, resolving names
// against the lexical scope chain and checking Cowgol's no-implicit-
// conversion arithmetic rule. Grounded on the teacher's typeCheckFunc/
// typeCheckStmt/typeCheckExpr walk, generalized to recurse into nested
// subroutine scopes and to thread an "inCond" flag so comparisons and
// and/or/not can be rejected outside a conditional context, per the data
// model's explicit carve-out (the grammar alone cannot enforce this: `a
// < b` parses identically whether it is an `if` condition or a bare
// expression statement).
func (a *Analyzer) typeCheckProgram() {
	for _, d := range a.prog.Decls {
		if sub, ok := d.(*ast.SubDecl); ok && sub.IsImpl {
			a.typeCheckSub(sub, a.Global)
		}
	}
}

func (a *Analyzer) typeCheckSub(sub *ast.SubDecl, parent *ast.Scope) {
	scope := ast.NewScope(parent, sub)
	for i := range sub.Params {
		p := &sub.Params[i]
		scope.Define(&ast.Symbol{Name: p.Name, Kind: ast.SymVar, Type: p.Type, IsParam: true, Loc: sub.Loc})
	}
	for _, ret := range sub.Returns {
		// named returns are assignable in the body; codegen gives each a fixed result slot
		scope.Define(&ast.Symbol{Name: ret.Name, Kind: ast.SymVar, Type: ret.Type, Loc: sub.Loc})
	}
	for _, local := range sub.Locals {
		a.registerVar(local, scope, false)
		if local.Init != nil {
			sym, _ := scope.Lookup(local.Name)
			declTy := a.checkExpr(local.Init, scope, false)
			if sym != nil && !a.adaptOrMatch(local.Init, declTy, sym.Type) {
				a.sink.Add(diag.Type, local.Loc, "cannot initialize %q of type %s with value of type %s", local.Name, sym.Type, declTy)
			}
		}
	}
	a.checkStmts(sub.Body, scope, sub, false)
}

// adaptOrMatch implements Cowgol's sole exception to "no implicit
// conversion": an untyped integer literal adapts to whatever integral
// type it is used in. Any other type mismatch is rejected. Grounded on
// the teacher's adaptLiteralToType, generalized from the teacher's
// fixed-width int model to Cowgol's explicit 8/16/32-bit integer types.
func (a *Analyzer) adaptOrMatch(e ast.Expr, have, want *ast.Type) bool {
	if have.Equal(want) {
		return true
	}
	if lit, ok := e.(*ast.LiteralExpr); ok && lit.Kind == ast.LitInt && want.IsIntegral() {
		lit.SetType(want)
		return true
	}
	return false
}

func (a *Analyzer) checkStmts(body []ast.Stmt, scope *ast.Scope, sub *ast.SubDecl, inLoop bool) {
	for _, s := range body {
		a.checkStmt(s, scope, sub, inLoop)
	}
}

func (a *Analyzer) checkStmt(s ast.Stmt, scope *ast.Scope, sub *ast.SubDecl, inLoop bool) {
	switch st := s.(type) {
	case *ast.ExprStmt:
		a.checkExpr(st.X, scope, false)
	case *ast.Block:
		a.checkStmts(st.Stmts, scope, sub, inLoop)
	case *ast.AssignStmt:
		for _, l := range st.Lhs {
			if !isAddressable(l) {
				a.sink.Add(diag.Semantic, l.GetLoc(), "left side of assignment is not assignable")
			}
			a.checkExpr(l, scope, false)
		}
		if len(st.Rhs) == 1 && len(st.Lhs) > 1 {
			rt := a.checkExpr(st.Rhs[0], scope, false)
			if call, ok := st.Rhs[0].(*ast.CallExpr); ok {
				a.checkMultiAssign(st.Lhs, call, scope)
			} else {
				_ = rt
				a.sink.Add(diag.Type, st.Loc, "only a multi-return call can be destructured into multiple targets")
			}
			return
		}
		for i, r := range st.Rhs {
			rt := a.checkExpr(r, scope, false)
			if i < len(st.Lhs) {
				lt := st.Lhs[i].GetType()
				if lt != nil && !a.adaptOrMatch(r, rt, lt) {
					a.sink.Add(diag.Type, r.GetLoc(), "cannot assign value of type %s to target of type %s", rt, lt)
				}
			}
		}
	case *ast.IfStmt:
		for _, c := range st.Clauses {
			a.checkExpr(c.Cond, scope, true)
			a.checkStmts(c.Body, scope, sub, inLoop)
		}
		a.checkStmts(st.Else, scope, sub, inLoop)
	case *ast.WhileStmt:
		a.checkExpr(st.Cond, scope, true)
		a.checkStmts(st.Body, scope, sub, true)
	case *ast.LoopStmt:
		a.checkStmts(st.Body, scope, sub, true)
	case *ast.BreakStmt:
		if !inLoop {
			a.sink.Add(diag.Semantic, st.Loc, "break outside a loop")
		}
	case *ast.ContinueStmt:
		if !inLoop {
			a.sink.Add(diag.Semantic, st.Loc, "continue outside a loop")
		}
	case *ast.ReturnStmt:
		// a bare `return;` leaves the named returns as last assigned
		if len(st.Values) != 0 && len(st.Values) != len(sub.Returns) {
			a.sink.Add(diag.Type, st.Loc, "subroutine %q returns %d value(s), %d given", sub.Name, len(sub.Returns), len(st.Values))
		}
		for i, v := range st.Values {
			vt := a.checkExpr(v, scope, false)
			if i < len(sub.Returns) && !a.adaptOrMatch(v, vt, sub.Returns[i].Type) {
				a.sink.Add(diag.Type, v.GetLoc(), "return value %d has type %s, want %s", i+1, vt, sub.Returns[i].Type)
			}
		}
	case *ast.CaseStmt:
		subjTy := a.checkExpr(st.Subject, scope, false)
		for _, arm := range st.Arms {
			for _, v := range arm.Values {
				if _, ok := a.evalConst(v); !ok {
					a.sink.Add(diag.Semantic, v.GetLoc(), "case label must be a constant expression")
				}
				vt := a.checkExpr(v, scope, false)
				a.adaptOrMatch(v, vt, subjTy)
			}
			a.checkStmts(arm.Body, scope, sub, inLoop)
		}
		a.checkStmts(st.Else, scope, sub, inLoop)
	case *ast.AsmStmt:
		// raw assembly text, opaque to the type checker
	case *ast.DeclStmt:
		switch d := st.D.(type) {
		case *ast.ConstDecl:
			a.registerConst(d, scope)
		case *ast.VarDecl:
			a.registerVar(d, scope, false)
		case *ast.RecordDecl:
			rt := &ast.RecordType{Name: d.Name}
			d.Resolved = rt
			a.records[d.Name] = d
			a.typeNames[d.Name] = &ast.Type{Kind: ast.KindRecord, Name: d.Name, Record: rt}
			a.resolveOneRecordLayout(d, nil)
		case *ast.SubDecl:
			a.typeCheckSub(d, scope)
		}
	}
}

func (a *Analyzer) checkMultiAssign(lhs []ast.Expr, call *ast.CallExpr, scope *ast.Scope) {
	sub, ok := a.subs[call.Callee]
	if !ok {
		return
	}
	if len(lhs) != len(sub.Returns) {
		a.sink.Add(diag.Type, call.Loc, "subroutine %q returns %d value(s), %d assignment target(s) given", call.Callee, len(sub.Returns), len(lhs))
		return
	}
	for i, l := range lhs {
		lt := l.GetType()
		if lt != nil && !lt.Equal(sub.Returns[i].Type) {
			a.sink.Add(diag.Type, l.GetLoc(), "cannot assign return value of type %s to target of type %s", sub.Returns[i].Type, lt)
		}
	}
}

func isAddressable(e ast.Expr) bool {
	switch e.(type) {
	case *ast.IdentExpr, *ast.FieldExpr, *ast.IndexExpr, *ast.DerefExpr:
		return true
	}
	return false
}

// checkExpr resolves and type-checks e, recording its resolved type on
// the node via SetType and returning it. inCond reports whether e
// appears directly in a conditional position (an if/while condition, or
// a sub-expression of and/or/not); comparisons and and/or/not are
// semantic errors outside that context even though the grammar accepts
// them anywhere an expression is legal.
func (a *Analyzer) checkExpr(e ast.Expr, scope *ast.Scope, inCond bool) *ast.Type {
	var t *ast.Type
	switch x := e.(type) {
	case *ast.LiteralExpr:
		switch x.Kind {
		case ast.LitInt:
			t = ast.Int16
		case ast.LitChar:
			t = ast.UInt8
		case ast.LitString:
			t = ast.PointerTo(ast.UInt8)
		case ast.LitNil:
			t = ast.PointerTo(nil)
		default:
			t = ast.Invalid
		}
	case *ast.IdentExpr:
		sym, _ := scope.Lookup(x.Name)
		if sym == nil {
			a.sink.Add(diag.Resolution, x.Loc, "undeclared identifier %q", x.Name)
			t = ast.Invalid
		} else {
			x.Sym = sym
			t = sym.Type
		}
	case *ast.FieldExpr:
		xt := a.checkExpr(x.X, scope, false)
		rec := xt.Underlying()
		if rec.Kind == ast.KindPointer {
			rec = rec.Pointee.Underlying()
		}
		if rec.Kind != ast.KindRecord {
			a.sink.Add(diag.Type, x.Loc, "%s is not a record", xt)
			t = ast.Invalid
		} else if f, ok := rec.Record.LookupField(x.Field); ok {
			t = f.Type
		} else {
			a.sink.Add(diag.Resolution, x.Loc, "record %s has no field %q", rec, x.Field)
			t = ast.Invalid
		}
	case *ast.IndexExpr:
		xt := a.checkExpr(x.X, scope, false)
		a.checkExpr(x.Index, scope, false)
		switch xt.Underlying().Kind {
		case ast.KindArray:
			t = xt.Underlying().Elem
		case ast.KindPointer:
			t = xt.Underlying().Pointee
		default:
			a.sink.Add(diag.Type, x.Loc, "%s is not indexable", xt)
			t = ast.Invalid
		}
	case *ast.DerefExpr:
		xt := a.checkExpr(x.X, scope, false)
		if xt.Underlying().Kind != ast.KindPointer {
			a.sink.Add(diag.Type, x.Loc, "cannot dereference non-pointer type %s", xt)
			t = ast.Invalid
		} else {
			t = xt.Underlying().Pointee
		}
	case *ast.AddrExpr:
		if _, ok := x.X.(*ast.FieldExpr); !ok {
			a.sink.Add(diag.Semantic, x.Loc, "'&' may only be applied to a record field")
		}
		xt := a.checkExpr(x.X, scope, false)
		t = ast.PointerTo(xt)
	case *ast.UnaryExpr:
		switch x.Op {
		case ast.UnNot:
			if !inCond {
				a.sink.Add(diag.Semantic, x.Loc, "'not' is only valid in a conditional context")
			}
			a.checkExpr(x.X, scope, true)
			t = ast.UInt8
		case ast.UnNeg, ast.UnBitNot:
			xt := a.checkExpr(x.X, scope, false)
			if !xt.IsIntegral() {
				a.sink.Add(diag.Type, x.Loc, "operand of %s must be integral", unaryOpName(x.Op))
			}
			t = xt
		case ast.UnNext, ast.UnPrev:
			xt := a.checkExpr(x.X, scope, false)
			if !xt.IsPointer() {
				a.sink.Add(diag.Type, x.Loc, "%s only applies to pointer types", unaryOpName(x.Op))
			}
			t = xt
		}
	case *ast.BinaryExpr:
		switch {
		case x.Op.IsComparison():
			if !inCond {
				a.sink.Add(diag.Semantic, x.Loc, "comparison %q is only valid in a conditional context", x.Op)
			}
			lt := a.checkExpr(x.L, scope, false)
			rt := a.checkExpr(x.R, scope, false)
			if !lt.Equal(rt) && !a.adaptOrMatch(x.R, rt, lt) && !a.adaptOrMatch(x.L, lt, rt) {
				a.sink.Add(diag.Type, x.Loc, "cannot compare %s with %s", lt, rt)
			}
			t = ast.UInt8
		case x.Op == ast.BinLogAnd || x.Op == ast.BinLogOr:
			if !inCond {
				a.sink.Add(diag.Semantic, x.Loc, "%q is only valid in a conditional context", x.Op)
			}
			a.checkExpr(x.L, scope, true)
			a.checkExpr(x.R, scope, true)
			t = ast.UInt8
		case x.Op == ast.BinShl || x.Op == ast.BinShr:
			lt := a.checkExpr(x.L, scope, false)
			rt := a.checkExpr(x.R, scope, false)
			if !rt.IsIntegral() {
				a.sink.Add(diag.Type, x.Loc, "shift amount must be integral")
			}
			t = lt
		default:
			lt := a.checkExpr(x.L, scope, false)
			rt := a.checkExpr(x.R, scope, false)
			if !lt.Equal(rt) && !a.adaptOrMatch(x.R, rt, lt) && !a.adaptOrMatch(x.L, lt, rt) {
				a.sink.Add(diag.Type, x.Loc, "operand types do not match: %s vs %s (no implicit conversion)", lt, rt)
			}
			t = lt
		}
	case *ast.CastExpr:
		a.checkExpr(x.X, scope, false)
		x.TargetTy = a.lookupNamedType(x.TargetTy, x.Loc)
		t = x.TargetTy
	case *ast.CallExpr:
		t = a.checkCall(x, scope)
	case *ast.SizeofExpr:
		x.Operand = a.lookupNamedType(x.Operand, x.Loc)
		if x.ByIndex {
			if x.Operand.Size() <= 255 {
				t = ast.UInt8
			} else {
				t = ast.UInt16
			}
		} else {
			t = ast.UInt16
		}
	case *ast.ArrayInitExpr:
		var elemTy *ast.Type = ast.Invalid
		for i, el := range x.Elems {
			et := a.checkExpr(el, scope, false)
			if i == 0 {
				elemTy = et
			}
		}
		t = ast.ArrayOf(elemTy, len(x.Elems))
	default:
		t = ast.Invalid
	}
	e.SetType(t)
	return t
}

func (a *Analyzer) checkCall(x *ast.CallExpr, scope *ast.Scope) *ast.Type {
	if sub, ok := a.subs[x.Callee]; ok {
		x.Sym = sub.ResolvedSym
		a.checkCallArgs(x, sub.Params, scope)
		return returnType(sub.Returns)
	}
	sym, _ := scope.Lookup(x.Callee)
	if sym == nil {
		a.sink.Add(diag.Resolution, x.Loc, "call to undeclared subroutine %q", x.Callee)
		return ast.Invalid
	}
	iface := sym.Type.Underlying()
	if iface.Kind != ast.KindInterface {
		a.sink.Add(diag.Type, x.Loc, "%q is not callable", x.Callee)
		return ast.Invalid
	}
	x.Sym = sym
	a.checkCallArgs(x, iface.Iface.Params, scope)
	return returnType(iface.Iface.Returns)
}

func (a *Analyzer) checkCallArgs(x *ast.CallExpr, params []ast.Param, scope *ast.Scope) {
	if len(x.Args) != len(params) {
		a.sink.Add(diag.Type, x.Loc, "%q takes %d argument(s), %d given", x.Callee, len(params), len(x.Args))
		return
	}
	for i, arg := range x.Args {
		at := a.checkExpr(arg, scope, false)
		if !a.adaptOrMatch(arg, at, params[i].Type) {
			a.sink.Add(diag.Type, arg.GetLoc(), "argument %d to %q has type %s, want %s", i+1, x.Callee, at, params[i].Type)
		}
	}
}

func returnType(returns []ast.Param) *ast.Type {
	if len(returns) == 1 {
		return returns[0].Type
	}
	return ast.VoidTy
}

func unaryOpName(op ast.UnaryOp) string {
	switch op {
	case ast.UnNeg:
		return "-"
	case ast.UnNot:
		return "not"
	case ast.UnBitNot:
		return "~"
	case ast.UnNext:
		return "@next"
	case ast.UnPrev:
		return "@prev"
	}
	return "?"
}
