package sem

import (
	"fmt"

	"github.com/avwohl/ucow/internal/ast"
	"github.com/avwohl/ucow/internal/diag"
)

// checkCallGraph builds the static direct call graph (indirect calls
// through an interface-typed variable are not statically known and are
// excluded, the same way they are excluded from the codegen inlining
// heuristic) and rejects any cycle, since the target has no call stack to
// unwind a recursive call with: every subroutine's locals live in a
// fixed static overlay slot shared across all its invocations.
func (a *Analyzer) checkCallGraph() {
	for name, decl := range a.subs {
		callees := map[string]bool{}
		a.collectCalls(decl.Body, callees)
		a.calls[name] = callees
	}

	const (
		white = iota
		gray
		black
	)
	color := map[string]int{}
	var stack []string

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = gray
		stack = append(stack, name)
		for callee := range a.calls[name] {
			switch color[callee] {
			case gray:
				cycle := append(append([]string{}, stack...), callee)
				a.sink.Add(diag.Semantic, a.subs[name].Loc, "recursive call graph: %s", fmt.Sprint(cycle))
				return true
			case white:
				if visit(callee) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return false
	}
	for name := range a.subs {
		if color[name] == white {
			if visit(name) {
				return
			}
		}
	}
}

func (a *Analyzer) collectCalls(body []ast.Stmt, out map[string]bool) {
	var walkExpr func(e ast.Expr)
	walkExpr = func(e ast.Expr) {
		switch x := e.(type) {
		case nil:
			return
		case *ast.CallExpr:
			if _, isSub := a.subs[x.Callee]; isSub {
				out[x.Callee] = true
			}
			for _, arg := range x.Args {
				walkExpr(arg)
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
					// A nested subroutine is only in the caller's call
					// graph if actually invoked from the body; its own
					// body is checked independently as its own node.
					_ = nested
				}
			}
		}
	}
	walkStmts(body)
}
