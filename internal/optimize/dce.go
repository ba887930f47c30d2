package optimize

import "github.com/avwohl/ucow/internal/ast"

// DeadCodeEliminate drops statements that can never run: anything after
// an unconditional return/break/continue in the same straight-line
// sequence, `if`/`elseif` clauses whose condition folded to a constant
// (keeping only the first always-true clause's body, or the else), and
// `while` loops whose condition folded to a constant false.
func DeadCodeEliminate(prog *ast.Program) bool {
	changed := false
	forEachSub(prog, func(sub *ast.SubDecl) {
		newBody, ch := simplifyStmts(sub.Body)
		if ch {
			sub.Body = newBody
			changed = true
		}
	})
	return changed
}

func simplifyStmts(stmts []ast.Stmt) ([]ast.Stmt, bool) {
	var out []ast.Stmt
	changed := false
	terminated := false
	for _, s := range stmts {
		if terminated {
			changed = true
			continue
		}
		switch st := s.(type) {
		case *ast.IfStmt:
			for i := range st.Clauses {
				nb, ch := simplifyStmts(st.Clauses[i].Body)
				if ch {
					st.Clauses[i].Body = nb
					changed = true
				}
			}
			if ne, ch := simplifyStmts(st.Else); ch {
				st.Else = ne
				changed = true
			}
			var kept []ast.IfClause
			var chosenBody []ast.Stmt
			chose := false
			for i := range st.Clauses {
				if v, ok := constOf(st.Clauses[i].Cond); ok {
					if v != 0 {
						chosenBody = st.Clauses[i].Body
						chose = true
						break
					}
					changed = true
					continue
				}
				kept = append(kept, st.Clauses[i])
			}
			if chose {
				out = append(out, chosenBody...)
				changed = true
				continue
			}
			if len(kept) == 0 {
				out = append(out, st.Else...)
				changed = true
				continue
			}
			if len(kept) != len(st.Clauses) {
				st.Clauses = kept
				changed = true
			}
			out = append(out, st)
		case *ast.WhileStmt:
			if nb, ch := simplifyStmts(st.Body); ch {
				st.Body = nb
				changed = true
			}
			if v, ok := constOf(st.Cond); ok && v == 0 {
				changed = true
				continue
			}
			out = append(out, st)
		case *ast.LoopStmt:
			if nb, ch := simplifyStmts(st.Body); ch {
				st.Body = nb
				changed = true
			}
			out = append(out, st)
		case *ast.CaseStmt:
			for i := range st.Arms {
				if nb, ch := simplifyStmts(st.Arms[i].Body); ch {
					st.Arms[i].Body = nb
					changed = true
				}
			}
			if ne, ch := simplifyStmts(st.Else); ch {
				st.Else = ne
				changed = true
			}
			out = append(out, st)
		case *ast.Block:
			if nb, ch := simplifyStmts(st.Stmts); ch {
				st.Stmts = nb
				changed = true
			}
			out = append(out, st)
		case *ast.ReturnStmt:
			out = append(out, st)
			terminated = true
		case *ast.BreakStmt:
			out = append(out, st)
			terminated = true
		case *ast.ContinueStmt:
			out = append(out, st)
			terminated = true
		default:
			out = append(out, st)
		}
	}
	return out, changed
}

// DeadStoreEliminate removes a pure assignment to a simple variable when
// it is unconditionally overwritten by a later pure assignment before
// being read, the classic "this value is never observed" redundant
// store. Scoped to straight-line regions within one nesting level, like
// ConstantPropagate: entering a branch, loop, or case clears the
// tracked pending stores rather than attempting a merge.
func DeadStoreEliminate(prog *ast.Program) bool {
	changed := false
	forEachSub(prog, func(sub *ast.SubDecl) {
		if nb, ch := deadStoreStmts(sub.Body); ch {
			sub.Body = nb
			changed = true
		}
	})
	return changed
}

func deadStoreStmts(stmts []ast.Stmt) ([]ast.Stmt, bool) {
	pending := map[string]int{}
	remove := map[int]bool{}
	changed := false

	markRead := func(e ast.Expr) {
		var walk func(ast.Expr)
		walk = func(e ast.Expr) {
			switch x := e.(type) {
			case nil:
			case *ast.IdentExpr:
				delete(pending, x.Name)
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
			case *ast.DerefExpr:
				walk(x.X)
			case *ast.AddrExpr:
				walk(x.X)
			case *ast.CallExpr:
				for _, a := range x.Args {
					walk(a)
				}
			case *ast.ArrayInitExpr:
				for _, el := range x.Elems {
					walk(el)
				}
			}
		}
		walk(e)
	}

	for i, s := range stmts {
		switch st := s.(type) {
		case *ast.AssignStmt:
			for _, r := range st.Rhs {
				markRead(r)
			}
			for _, l := range st.Lhs {
				if _, ok := l.(*ast.IdentExpr); !ok {
					markRead(l)
				}
			}
			if len(st.Lhs) == 1 && len(st.Rhs) == 1 {
				if id, ok := st.Lhs[0].(*ast.IdentExpr); ok && isPure(st.Rhs[0]) {
					if prev, had := pending[id.Name]; had {
						remove[prev] = true
						changed = true
					}
					pending[id.Name] = i
					continue
				}
			}
			for _, l := range st.Lhs {
				if id, ok := l.(*ast.IdentExpr); ok {
					delete(pending, id.Name)
				}
			}
		case *ast.ExprStmt:
			markRead(st.X)
			pending = map[string]int{}
		case *ast.ReturnStmt:
			for _, v := range st.Values {
				markRead(v)
			}
			pending = map[string]int{}
		default:
			pending = map[string]int{}
		}
	}
	if len(remove) == 0 {
		return stmts, changed
	}
	out := make([]ast.Stmt, 0, len(stmts)-len(remove))
	for i, s := range stmts {
		if remove[i] {
			continue
		}
		out = append(out, s)
	}
	return out, changed
}

// DeadVariableEliminate drops a local variable's declaration (and its
// slot in the codegen overlay) when nothing in its subroutine ever reads
// it. A store to a dead variable whose right side cannot have a side
// effect is dropped outright; a store whose right side could (a call) is
// kept as a bare expression statement so the call still runs.
func DeadVariableEliminate(prog *ast.Program) bool {
	changed := false
	forEachSub(prog, func(sub *ast.SubDecl) {
		used := map[string]bool{}
		collectReads(sub.Body, used)
		dead := map[string]bool{}
		var liveLocals []*ast.VarDecl
		for _, l := range sub.Locals {
			if used[l.Name] {
				liveLocals = append(liveLocals, l)
			} else {
				dead[l.Name] = true
				changed = true
			}
		}
		if len(liveLocals) != len(sub.Locals) {
			sub.Locals = liveLocals
		}
		if nb, ch := dropDeadStores(sub.Body, dead); ch {
			sub.Body = nb
			changed = true
		}
	})
	return changed
}

// collectReads records every identifier read anywhere in stmts. The sole
// exception is a bare-variable assignment target (`x := ...;`), which is
// a write, not a read, of x.
func collectReads(stmts []ast.Stmt, used map[string]bool) {
	var walkExpr func(ast.Expr)
	walkExpr = func(e ast.Expr) {
		switch x := e.(type) {
		case nil:
		case *ast.IdentExpr:
			used[x.Name] = true
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
		case *ast.CallExpr:
			for _, a := range x.Args {
				walkExpr(a)
			}
		case *ast.ArrayInitExpr:
			for _, el := range x.Elems {
				walkExpr(el)
			}
		}
	}
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.ExprStmt:
			walkExpr(st.X)
		case *ast.Block:
			collectReads(st.Stmts, used)
		case *ast.AssignStmt:
			for _, r := range st.Rhs {
				walkExpr(r)
			}
			for _, l := range st.Lhs {
				if _, ok := l.(*ast.IdentExpr); !ok {
					walkExpr(l)
				}
			}
		case *ast.IfStmt:
			for _, c := range st.Clauses {
				walkExpr(c.Cond)
				collectReads(c.Body, used)
			}
			collectReads(st.Else, used)
		case *ast.WhileStmt:
			walkExpr(st.Cond)
			collectReads(st.Body, used)
		case *ast.LoopStmt:
			collectReads(st.Body, used)
		case *ast.ReturnStmt:
			for _, v := range st.Values {
				walkExpr(v)
			}
		case *ast.CaseStmt:
			walkExpr(st.Subject)
			for _, arm := range st.Arms {
				for _, v := range arm.Values {
					walkExpr(v)
				}
				collectReads(arm.Body, used)
			}
			collectReads(st.Else, used)
		case *ast.DeclStmt:
			if nested, ok := st.D.(*ast.SubDecl); ok {
				collectReads(nested.Body, used)
			}
		}
	}
}

func dropDeadStores(stmts []ast.Stmt, dead map[string]bool) ([]ast.Stmt, bool) {
	var out []ast.Stmt
	changed := false
	for _, s := range stmts {
		if as, ok := s.(*ast.AssignStmt); ok && len(as.Lhs) == 1 && len(as.Rhs) == 1 {
			if id, ok := as.Lhs[0].(*ast.IdentExpr); ok && dead[id.Name] {
				changed = true
				if !isPure(as.Rhs[0]) {
					out = append(out, &ast.ExprStmt{StmtBase: as.StmtBase, X: as.Rhs[0]})
				}
				continue
			}
		}
		out = append(out, s)
	}
	return out, changed
}
