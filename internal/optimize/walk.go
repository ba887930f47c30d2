package optimize

import "github.com/avwohl/ucow/internal/ast"

// rewriteExpr recurses into e's children first (so folds compose bottom
// up: `(1+2)*3` folds its operands before the multiply sees two
// literals), then offers the whole node to fn. fn returns the
// replacement and true if it rewrote the node, or the original node and
// false to leave it alone.
func rewriteExpr(pp *ast.Expr, fn func(ast.Expr) (ast.Expr, bool)) bool {
	if pp == nil || *pp == nil {
		return false
	}
	changed := false
	switch x := (*pp).(type) {
	case *ast.BinaryExpr:
		if rewriteExpr(&x.L, fn) {
			changed = true
		}
		if rewriteExpr(&x.R, fn) {
			changed = true
		}
	case *ast.UnaryExpr:
		if rewriteExpr(&x.X, fn) {
			changed = true
		}
	case *ast.CastExpr:
		if rewriteExpr(&x.X, fn) {
			changed = true
		}
	case *ast.FieldExpr:
		if rewriteExpr(&x.X, fn) {
			changed = true
		}
	case *ast.IndexExpr:
		if rewriteExpr(&x.X, fn) {
			changed = true
		}
		if rewriteExpr(&x.Index, fn) {
			changed = true
		}
	case *ast.DerefExpr:
		if rewriteExpr(&x.X, fn) {
			changed = true
		}
	case *ast.AddrExpr:
		if rewriteExpr(&x.X, fn) {
			changed = true
		}
	case *ast.CallExpr:
		for i := range x.Args {
			if rewriteExpr(&x.Args[i], fn) {
				changed = true
			}
		}
	case *ast.ArrayInitExpr:
		for i := range x.Elems {
			if rewriteExpr(&x.Elems[i], fn) {
				changed = true
			}
		}
	}
	if nv, ok := fn(*pp); ok {
		*pp = nv
		changed = true
	}
	return changed
}

// rewriteStmts applies rewriteExpr to every expression reachable from
// stmts, recursing into every nested statement body except a nested
// subroutine's (forEachSub visits those as their own unit).
func rewriteStmts(stmts []ast.Stmt, fn func(ast.Expr) (ast.Expr, bool)) bool {
	changed := false
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.ExprStmt:
			if rewriteExpr(&st.X, fn) {
				changed = true
			}
		case *ast.Block:
			if rewriteStmts(st.Stmts, fn) {
				changed = true
			}
		case *ast.AssignStmt:
			for i := range st.Lhs {
				if rewriteExpr(&st.Lhs[i], fn) {
					changed = true
				}
			}
			for i := range st.Rhs {
				if rewriteExpr(&st.Rhs[i], fn) {
					changed = true
				}
			}
		case *ast.IfStmt:
			for i := range st.Clauses {
				if rewriteExpr(&st.Clauses[i].Cond, fn) {
					changed = true
				}
				if rewriteStmts(st.Clauses[i].Body, fn) {
					changed = true
				}
			}
			if rewriteStmts(st.Else, fn) {
				changed = true
			}
		case *ast.WhileStmt:
			if rewriteExpr(&st.Cond, fn) {
				changed = true
			}
			if rewriteStmts(st.Body, fn) {
				changed = true
			}
		case *ast.LoopStmt:
			if rewriteStmts(st.Body, fn) {
				changed = true
			}
		case *ast.ReturnStmt:
			for i := range st.Values {
				if rewriteExpr(&st.Values[i], fn) {
					changed = true
				}
			}
		case *ast.CaseStmt:
			if rewriteExpr(&st.Subject, fn) {
				changed = true
			}
			for i := range st.Arms {
				for j := range st.Arms[i].Values {
					if rewriteExpr(&st.Arms[i].Values[j], fn) {
						changed = true
					}
				}
				if rewriteStmts(st.Arms[i].Body, fn) {
					changed = true
				}
			}
			if rewriteStmts(st.Else, fn) {
				changed = true
			}
		}
	}
	return changed
}

// rewriteSub applies fn across a subroutine's local initializers and
// body, but not its nested subroutines (the caller visits those
// separately via forEachSub).
func rewriteSub(sub *ast.SubDecl, fn func(ast.Expr) (ast.Expr, bool)) bool {
	changed := false
	for _, local := range sub.Locals {
		if local.Init != nil && rewriteExpr(&local.Init, fn) {
			changed = true
		}
	}
	if rewriteStmts(sub.Body, fn) {
		changed = true
	}
	return changed
}

// isPure reports whether e can be freely duplicated or reordered: no
// call (could have side effects or be unimplemented-at-fold-time), no
// dereference or index through a pointer (could read mutated memory
// between two evaluations), no address-of.
func isPure(e ast.Expr) bool {
	switch x := e.(type) {
	case *ast.LiteralExpr, *ast.IdentExpr:
		return true
	case *ast.BinaryExpr:
		return isPure(x.L) && isPure(x.R)
	case *ast.UnaryExpr:
		return isPure(x.X)
	case *ast.CastExpr:
		return isPure(x.X)
	case *ast.FieldExpr:
		return isPure(x.X)
	case *ast.SizeofExpr:
		return true
	default:
		return false
	}
}

func asLiteral(e ast.Expr) (*ast.LiteralExpr, bool) {
	lit, ok := e.(*ast.LiteralExpr)
	if !ok || lit.Kind != ast.LitInt {
		return nil, false
	}
	return lit, true
}

func intLit(v int64, t *ast.Type) *ast.LiteralExpr {
	lit := &ast.LiteralExpr{Kind: ast.LitInt, IntVal: maskToType(v, t)}
	lit.SetType(t)
	return lit
}

// maskToType applies the target's 2's complement wraparound, the design
// decision recorded for this compiler's constant folding (see
// DESIGN.md): overflow wraps silently rather than being rejected, matching
// ordinary runtime arithmetic on the 8080 rather than erroring at compile
// time.
func maskToType(v int64, t *ast.Type) int64 {
	width := 16
	signed := true
	if t != nil {
		u := t.Underlying()
		if u.Kind == ast.KindInt {
			width = int(u.Width)
			signed = u.Signed
		} else if u.Kind == ast.KindPointer || u.Kind == ast.KindInterface {
			width = 16
			signed = false
		}
	}
	mask := int64(1)<<uint(width) - 1
	v &= mask
	if signed && v&(int64(1)<<uint(width-1)) != 0 {
		v -= int64(1) << uint(width)
	}
	return v
}
