package optimize

import (
	"fmt"
	"strings"

	"github.com/avwohl/ucow/internal/ast"
)

// CommonSubexprEliminate finds a whole pure expression used verbatim as
// an assignment's right-hand side, a return value, or a bare expression
// statement more than once within the same straight-line block, and
// rewrites every use after the first into a reference to a temporary
// computed once, at the first use's position. Scoped to whole top-level
// expression slots rather than arbitrary nested subexpressions: the
// rewrite only ever needs a stable pointer to the slot it replaces
// (`&stmt.Rhs[i]`), so it never has to reconcile with some other pass
// rewriting the same subtree from the inside out. The temporary is an
// ordinary named local the code generator loads like any other variable,
// so the second occurrence costs a load instead of the whole computation
// again.
func CommonSubexprEliminate(prog *ast.Program) bool {
	changed := false
	forEachSub(prog, func(sub *ast.SubDecl) {
		if nb, ch := cseStmts(sub.Body, sub); ch {
			sub.Body = nb
			changed = true
		}
	})
	return changed
}

// cseSlot remembers where a candidate expression's first occurrence
// lives: outIdx is its statement's position in the output slice being
// built (so a later duplicate can splice a hoisted assignment in ahead
// of it), pp is the exact slot to overwrite once that happens.
type cseSlot struct {
	outIdx int
	pp     *ast.Expr
	ty     *ast.Type
}

func cseStmts(stmts []ast.Stmt, sub *ast.SubDecl) ([]ast.Stmt, bool) {
	pending := map[string]*cseSlot{}
	tempOf := map[string]string{}
	changed := false
	var out []ast.Stmt

	// invalidate drops any candidate (pending or already materialized)
	// whose key mentions a variable that is about to be reassigned, so a
	// later occurrence of what looks like the same expression is never
	// treated as the same value once one of its operands may have
	// changed.
	invalidate := func(name string) {
		marker := "I:" + name
		for k := range pending {
			if strings.Contains(k, marker) {
				delete(pending, k)
			}
		}
		for k := range tempOf {
			if strings.Contains(k, marker) {
				delete(tempOf, k)
			}
		}
	}

	spliceBefore := func(idx int, stmt ast.Stmt) {
		out = append(out, nil)
		copy(out[idx+1:], out[idx:])
		out[idx] = stmt
		for _, p := range pending {
			if p.outIdx >= idx {
				p.outIdx++
			}
		}
	}

	handle := func(pp *ast.Expr, outIdx int) {
		e := *pp
		key, ok := exprKey(e)
		if !ok || !isPure(e) {
			return
		}
		if name, ok := tempOf[key]; ok {
			*pp = tempIdent(name, e.GetType())
			changed = true
			return
		}
		if slot, ok := pending[key]; ok {
			ty := e.GetType()
			name := fmt.Sprintf("__cse%d", len(sub.Locals))
			sub.Locals = append(sub.Locals, &ast.VarDecl{Name: name, Type: ty})
			firstExpr := *slot.pp
			*slot.pp = tempIdent(name, ty)
			spliceBefore(slot.outIdx, &ast.AssignStmt{
				Lhs: []ast.Expr{tempIdent(name, ty)},
				Rhs: []ast.Expr{firstExpr},
			})
			tempOf[key] = name
			delete(pending, key)
			*pp = tempIdent(name, ty)
			changed = true
			return
		}
		pending[key] = &cseSlot{outIdx: outIdx, pp: pp, ty: e.GetType()}
	}

	for _, s := range stmts {
		idx := len(out)
		switch st := s.(type) {
		case *ast.ExprStmt:
			handle(&st.X, idx)
		case *ast.AssignStmt:
			for i := range st.Rhs {
				handle(&st.Rhs[i], idx)
			}
			for _, l := range st.Lhs {
				if id, ok := l.(*ast.IdentExpr); ok {
					invalidate(id.Name)
				}
			}
		case *ast.ReturnStmt:
			for i := range st.Values {
				handle(&st.Values[i], idx)
			}
		case *ast.IfStmt:
			for i := range st.Clauses {
				if nb, ch := cseStmts(st.Clauses[i].Body, sub); ch {
					st.Clauses[i].Body = nb
					changed = true
				}
			}
			if nb, ch := cseStmts(st.Else, sub); ch {
				st.Else = nb
				changed = true
			}
		case *ast.WhileStmt:
			if nb, ch := cseStmts(st.Body, sub); ch {
				st.Body = nb
				changed = true
			}
		case *ast.LoopStmt:
			if nb, ch := cseStmts(st.Body, sub); ch {
				st.Body = nb
				changed = true
			}
		case *ast.CaseStmt:
			for i := range st.Arms {
				if nb, ch := cseStmts(st.Arms[i].Body, sub); ch {
					st.Arms[i].Body = nb
					changed = true
				}
			}
			if nb, ch := cseStmts(st.Else, sub); ch {
				st.Else = nb
				changed = true
			}
		}
		switch s.(type) {
		case *ast.IfStmt, *ast.WhileStmt, *ast.LoopStmt, *ast.CaseStmt:
			// a compound statement ends the straight-line block
			pending = map[string]*cseSlot{}
			tempOf = map[string]string{}
		}
		out = append(out, s)
	}
	return out, changed
}

func tempIdent(name string, ty *ast.Type) ast.Expr {
	return &ast.IdentExpr{ExprBase: ast.ExprBase{ExprType: ty}, Name: name}
}

// exprKey returns a canonical string identifying a pure expression's
// value, or false if e is not a kind worth deduplicating (a bare
// identifier or literal gains nothing from sharing).
func exprKey(e ast.Expr) (string, bool) {
	switch x := e.(type) {
	case *ast.BinaryExpr:
		lk, ok1 := subKey(x.L)
		rk, ok2 := subKey(x.R)
		if !ok1 || !ok2 {
			return "", false
		}
		return fmt.Sprintf("B:%d:%s:%s", x.Op, lk, rk), true
	case *ast.UnaryExpr:
		xk, ok := subKey(x.X)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("U:%d:%s", x.Op, xk), true
	case *ast.FieldExpr:
		xk, ok := subKey(x.X)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("F:%s:%s", x.Field, xk), true
	}
	return "", false
}

func subKey(e ast.Expr) (string, bool) {
	switch x := e.(type) {
	case *ast.LiteralExpr:
		return fmt.Sprintf("L:%d:%d", x.Kind, x.IntVal), true
	case *ast.IdentExpr:
		return "I:" + x.Name, true
	default:
		return exprKey(e)
	}
}
