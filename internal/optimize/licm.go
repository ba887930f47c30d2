package optimize

import "github.com/avwohl/ucow/internal/ast"

// LICM hoists a leading run of loop-invariant pure assignments out of a
// while/loop body, ahead of the loop. Scoped deliberately to a
// *prefix* of the body (statements that every iteration, and every
// iteration's first instructions, executes unconditionally) so the
// rewrite never needs to reason about whether a later, conditionally
// reached statement actually dominates the loop's remaining iterations.
func LICM(prog *ast.Program) bool {
	changed := false
	forEachSub(prog, func(sub *ast.SubDecl) {
		if nb, ch := licmStmts(sub.Body); ch {
			sub.Body = nb
			changed = true
		}
	})
	return changed
}

func licmStmts(stmts []ast.Stmt) ([]ast.Stmt, bool) {
	var out []ast.Stmt
	changed := false
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.IfStmt:
			for i := range st.Clauses {
				if nb, ch := licmStmts(st.Clauses[i].Body); ch {
					st.Clauses[i].Body = nb
					changed = true
				}
			}
			if ne, ch := licmStmts(st.Else); ch {
				st.Else = ne
				changed = true
			}
			out = append(out, st)
		case *ast.CaseStmt:
			for i := range st.Arms {
				if nb, ch := licmStmts(st.Arms[i].Body); ch {
					st.Arms[i].Body = nb
					changed = true
				}
			}
			if ne, ch := licmStmts(st.Else); ch {
				st.Else = ne
				changed = true
			}
			out = append(out, st)
		case *ast.Block:
			if nb, ch := licmStmts(st.Stmts); ch {
				st.Stmts = nb
				changed = true
			}
			out = append(out, st)
		case *ast.WhileStmt:
			hoisted, rest, ch := hoistInvariantPrefix(st.Body)
			if ch {
				st.Body = rest
				out = append(out, hoisted...)
				changed = true
			}
			if nb, ch2 := licmStmts(st.Body); ch2 {
				st.Body = nb
				changed = true
			}
			out = append(out, st)
		case *ast.LoopStmt:
			hoisted, rest, ch := hoistInvariantPrefix(st.Body)
			if ch {
				st.Body = rest
				out = append(out, hoisted...)
				changed = true
			}
			if nb, ch2 := licmStmts(st.Body); ch2 {
				st.Body = nb
				changed = true
			}
			out = append(out, st)
		default:
			out = append(out, s)
		}
	}
	return out, changed
}

func hoistInvariantPrefix(body []ast.Stmt) ([]ast.Stmt, []ast.Stmt, bool) {
	assigned := map[string]bool{}
	collectAssignedVars(body, assigned)
	var hoisted []ast.Stmt
	i := 0
	for i < len(body) {
		as, ok := body[i].(*ast.AssignStmt)
		if !ok || len(as.Lhs) != 1 || len(as.Rhs) != 1 {
			break
		}
		id, ok := as.Lhs[0].(*ast.IdentExpr)
		if !ok || !isPure(as.Rhs[0]) || referencesAny(as.Rhs[0], assigned) {
			break
		}
		_ = id
		hoisted = append(hoisted, as)
		i++
	}
	return hoisted, body[i:], len(hoisted) > 0
}

func collectAssignedVars(stmts []ast.Stmt, out map[string]bool) {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.AssignStmt:
			for _, l := range st.Lhs {
				if id, ok := l.(*ast.IdentExpr); ok {
					out[id.Name] = true
				}
			}
		case *ast.IfStmt:
			for _, c := range st.Clauses {
				collectAssignedVars(c.Body, out)
			}
			collectAssignedVars(st.Else, out)
		case *ast.WhileStmt:
			collectAssignedVars(st.Body, out)
		case *ast.LoopStmt:
			collectAssignedVars(st.Body, out)
		case *ast.CaseStmt:
			for _, arm := range st.Arms {
				collectAssignedVars(arm.Body, out)
			}
			collectAssignedVars(st.Else, out)
		case *ast.Block:
			collectAssignedVars(st.Stmts, out)
		}
	}
}

func referencesAny(e ast.Expr, names map[string]bool) bool {
	found := false
	var walk func(ast.Expr)
	walk = func(e ast.Expr) {
		if found {
			return
		}
		switch x := e.(type) {
		case *ast.IdentExpr:
			if names[x.Name] {
				found = true
			}
		case *ast.BinaryExpr:
			walk(x.L)
			walk(x.R)
		case *ast.UnaryExpr:
			walk(x.X)
		case *ast.CastExpr:
			walk(x.X)
		case *ast.FieldExpr:
			walk(x.X)
		case *ast.IndexExpr:
			walk(x.X)
			walk(x.Index)
		}
	}
	walk(e)
	return found
}
