package optimize

import "github.com/avwohl/ucow/internal/ast"

// ConstantFold collapses arithmetic over two literal operands into a
// single literal, wrapping per maskToType. Grounded on the teacher's
// ypeep single-pass text rewrites, lifted to the AST and run to a
// fixpoint by Run rather than ypeep's own internal loop, since later
// passes (copy propagation, algebraic simplification) can expose new
// constant operands this pass did not see on its first visit.
func ConstantFold(prog *ast.Program) bool {
	changed := false
	forEachSub(prog, func(sub *ast.SubDecl) {
		if rewriteSub(sub, foldExpr) {
			changed = true
		}
	})
	return changed
}

func foldExpr(e ast.Expr) (ast.Expr, bool) {
	switch x := e.(type) {
	case *ast.UnaryExpr:
		lit, ok := asLiteral(x.X)
		if !ok {
			return e, false
		}
		switch x.Op {
		case ast.UnNeg:
			return intLit(-lit.IntVal, x.GetType()), true
		case ast.UnBitNot:
			return intLit(^lit.IntVal, x.GetType()), true
		}
		return e, false
	case *ast.BinaryExpr:
		ll, lok := asLiteral(x.L)
		rl, rok := asLiteral(x.R)
		if !lok || !rok {
			return e, false
		}
		l, r := ll.IntVal, rl.IntVal
		var v int64
		switch x.Op {
		case ast.BinAdd:
			v = l + r
		case ast.BinSub:
			v = l - r
		case ast.BinMul:
			v = l * r
		case ast.BinDiv:
			if r == 0 {
				return e, false
			}
			v = l / r
		case ast.BinMod:
			if r == 0 {
				return e, false
			}
			v = l % r
		case ast.BinAnd:
			v = l & r
		case ast.BinOr:
			v = l | r
		case ast.BinXor:
			v = l ^ r
		case ast.BinShl:
			v = l << uint(r)
		case ast.BinShr:
			v = l >> uint(r)
		case ast.BinEq:
			v = boolInt(l == r)
		case ast.BinNe:
			v = boolInt(l != r)
		case ast.BinLt:
			v = boolInt(l < r)
		case ast.BinLe:
			v = boolInt(l <= r)
		case ast.BinGt:
			v = boolInt(l > r)
		case ast.BinGe:
			v = boolInt(l >= r)
		default:
			return e, false
		}
		return intLit(v, x.GetType()), true
	}
	return e, false
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// constFact records a variable known to hold a particular value or to be
// a copy of another variable at some point in a straight-line statement
// sequence.
type constFact struct {
	val    int64
	isCopy bool
	copyOf string
}

// ConstantPropagate substitutes a literal for a variable read when the
// variable's most recent assignment in the same straight-line sequence
// was to a constant. This is a conservative, block-local version of the
// usual whole-function dataflow: any branch, loop, or statement with a
// call (or another expression isPure rejects) invalidates every fact
// currently held, which is always sound (it only forgoes
// propagation opportunities, never substitutes a stale value) and keeps
// the pass a simple forward sweep rather than a full reaching-definitions
// solver.
func ConstantPropagate(prog *ast.Program) bool {
	changed := false
	forEachSub(prog, func(sub *ast.SubDecl) {
		facts := map[string]constFact{}
		if propagateStmts(sub.Body, facts, true) {
			changed = true
		}
	})
	return changed
}

func propagateStmts(stmts []ast.Stmt, facts map[string]constFact, constOnly bool) bool {
	changed := false
	apply := func(e ast.Expr) (ast.Expr, bool) {
		id, ok := e.(*ast.IdentExpr)
		if !ok {
			return e, false
		}
		f, ok := facts[id.Name]
		if !ok || f.isCopy {
			return e, false
		}
		return intLit(f.val, id.GetType()), true
	}
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.ExprStmt:
			if rewriteExpr(&st.X, apply) {
				changed = true
			}
			if !isPure(st.X) {
				for k := range facts {
					delete(facts, k)
				}
			}
		case *ast.AssignStmt:
			for i := range st.Rhs {
				if rewriteExpr(&st.Rhs[i], apply) {
					changed = true
				}
				if !isPure(st.Rhs[i]) {
					for k := range facts {
						delete(facts, k)
					}
				}
			}
			if len(st.Lhs) == 1 && len(st.Rhs) == 1 {
				if id, ok := st.Lhs[0].(*ast.IdentExpr); ok {
					if lit, ok := asLiteral(st.Rhs[0]); ok {
						facts[id.Name] = constFact{val: lit.IntVal}
						continue
					}
				}
			}
			for _, l := range st.Lhs {
				if id, ok := l.(*ast.IdentExpr); ok {
					delete(facts, id.Name)
				}
			}
		case *ast.IfStmt, *ast.WhileStmt, *ast.LoopStmt, *ast.CaseStmt:
			// A branch point: clear all facts rather than try to merge
			// them across arms, then recurse so propagation still
			// happens freshly within each arm.
			for k := range facts {
				delete(facts, k)
			}
			switch b := s.(type) {
			case *ast.IfStmt:
				for i := range b.Clauses {
					rewriteExpr(&b.Clauses[i].Cond, apply)
					if propagateStmts(b.Clauses[i].Body, map[string]constFact{}, constOnly) {
						changed = true
					}
				}
				if propagateStmts(b.Else, map[string]constFact{}, constOnly) {
					changed = true
				}
			case *ast.WhileStmt:
				rewriteExpr(&b.Cond, apply)
				if propagateStmts(b.Body, map[string]constFact{}, constOnly) {
					changed = true
				}
			case *ast.LoopStmt:
				if propagateStmts(b.Body, map[string]constFact{}, constOnly) {
					changed = true
				}
			case *ast.CaseStmt:
				rewriteExpr(&b.Subject, apply)
				for i := range b.Arms {
					if propagateStmts(b.Arms[i].Body, map[string]constFact{}, constOnly) {
						changed = true
					}
				}
				if propagateStmts(b.Else, map[string]constFact{}, constOnly) {
					changed = true
				}
			}
		case *ast.ReturnStmt:
			for i := range st.Values {
				if rewriteExpr(&st.Values[i], apply) {
					changed = true
				}
			}
		case *ast.DeclStmt:
			if _, ok := st.D.(*ast.SubDecl); ok {
				continue // nested sub bodies are independent optimization units
			}
		}
	}
	return changed
}

// CopyPropagate substitutes y for x at a read of x when the most recent
// assignment was the plain copy `x := y;` and y has not been reassigned
// since. Same block-local conservatism as ConstantPropagate.
func CopyPropagate(prog *ast.Program) bool {
	changed := false
	forEachSub(prog, func(sub *ast.SubDecl) {
		if copyPropagateStmts(sub.Body) {
			changed = true
		}
	})
	return changed
}

func copyPropagateStmts(stmts []ast.Stmt) bool {
	changed := false
	copies := map[string]string{} // var -> var it is currently a copy of
	apply := func(e ast.Expr) (ast.Expr, bool) {
		id, ok := e.(*ast.IdentExpr)
		if !ok {
			return e, false
		}
		src, ok := copies[id.Name]
		if !ok {
			return e, false
		}
		return &ast.IdentExpr{ExprBase: ast.ExprBase{Loc: id.Loc, ExprType: id.GetType()}, Name: src}, true
	}
	invalidate := func(name string) {
		delete(copies, name)
		for k, v := range copies {
			if v == name {
				delete(copies, k)
			}
		}
	}
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.ExprStmt:
			if rewriteExpr(&st.X, apply) {
				changed = true
			}
			if !isPure(st.X) {
				for k := range copies {
					delete(copies, k)
				}
			}
		case *ast.AssignStmt:
			for i := range st.Rhs {
				if rewriteExpr(&st.Rhs[i], apply) {
					changed = true
				}
				if !isPure(st.Rhs[i]) {
					for k := range copies {
						delete(copies, k)
					}
				}
			}
			if len(st.Lhs) == 1 && len(st.Rhs) == 1 {
				dst, dstOk := st.Lhs[0].(*ast.IdentExpr)
				src, srcOk := st.Rhs[0].(*ast.IdentExpr)
				if dstOk && srcOk {
					invalidate(dst.Name)
					copies[dst.Name] = src.Name
					continue
				}
			}
			for _, l := range st.Lhs {
				if id, ok := l.(*ast.IdentExpr); ok {
					invalidate(id.Name)
				}
			}
		case *ast.IfStmt:
			for i := range st.Clauses {
				rewriteExpr(&st.Clauses[i].Cond, apply)
				if copyPropagateStmts(st.Clauses[i].Body) {
					changed = true
				}
			}
			if copyPropagateStmts(st.Else) {
				changed = true
			}
			for k := range copies {
				delete(copies, k)
			}
		case *ast.WhileStmt:
			rewriteExpr(&st.Cond, apply)
			if copyPropagateStmts(st.Body) {
				changed = true
			}
			for k := range copies {
				delete(copies, k)
			}
		case *ast.LoopStmt:
			if copyPropagateStmts(st.Body) {
				changed = true
			}
			for k := range copies {
				delete(copies, k)
			}
		case *ast.CaseStmt:
			rewriteExpr(&st.Subject, apply)
			for i := range st.Arms {
				if copyPropagateStmts(st.Arms[i].Body) {
					changed = true
				}
			}
			if copyPropagateStmts(st.Else) {
				changed = true
			}
			for k := range copies {
				delete(copies, k)
			}
		case *ast.ReturnStmt:
			for i := range st.Values {
				if rewriteExpr(&st.Values[i], apply) {
					changed = true
				}
			}
		}
	}
	return changed
}
