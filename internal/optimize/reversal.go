package optimize

import "github.com/avwohl/ucow/internal/ast"

// LoopReverse rewrites the idiom
//
//	i := 0;
//	while i < bound loop
//	    ...body never reads i...
//	    i := i + 1;
//	end loop;
//
// into a countdown that starts at bound and stops at zero. The 8080 has
// a single-byte "decrement and skip if zero" idiom (DCR/JNZ) but no
// equally cheap "compare to a variable bound and branch" instruction;
// when the loop counter's own value is never read by the body, running
// it backwards preserves the iteration count while letting the code
// generator emit the cheaper test. Left untouched whenever the body
// reads the counter, since then the rewritten value would be observably
// different. When the loop is the subroutine's first statement, the
// counter's declaration initializer (`var i: T := 0;`) serves as the
// `i := 0`.
func LoopReverse(prog *ast.Program) bool {
	changed := false
	forEachSub(prog, func(sub *ast.SubDecl) {
		if nb, ch := reverseStmts(sub.Body); ch {
			sub.Body = nb
			changed = true
		}
		if len(sub.Body) > 0 {
			if wh, ok := sub.Body[0].(*ast.WhileStmt); ok {
				for _, local := range sub.Locals {
					init := &ast.AssignStmt{Lhs: []ast.Expr{&ast.IdentExpr{Name: local.Name}}, Rhs: []ast.Expr{local.Init}}
					if local.Init != nil && tryReverse(init, wh, sub.Body[1:]) {
						local.Init = init.Rhs[0]
						changed = true
						break
					}
				}
			}
		}
	})
	return changed
}

func reverseStmts(stmts []ast.Stmt) ([]ast.Stmt, bool) {
	var out []ast.Stmt
	changed := false
	for i := 0; i < len(stmts); i++ {
		s := stmts[i]
		if wh, ok := s.(*ast.WhileStmt); ok {
			if nb, ch := reverseStmts(wh.Body); ch {
				wh.Body = nb
				changed = true
			}
			if i > 0 {
				if tryReverse(out[len(out)-1], wh, stmts[i+1:]) {
					changed = true
					out = append(out, wh)
					continue
				}
			}
			out = append(out, wh)
			continue
		}
		if ifs, ok := s.(*ast.IfStmt); ok {
			for c := range ifs.Clauses {
				if nb, ch := reverseStmts(ifs.Clauses[c].Body); ch {
					ifs.Clauses[c].Body = nb
					changed = true
				}
			}
			if ne, ch := reverseStmts(ifs.Else); ch {
				ifs.Else = ne
				changed = true
			}
		}
		if cs, ok := s.(*ast.CaseStmt); ok {
			for a := range cs.Arms {
				if nb, ch := reverseStmts(cs.Arms[a].Body); ch {
					cs.Arms[a].Body = nb
					changed = true
				}
			}
			if ne, ch := reverseStmts(cs.Else); ch {
				cs.Else = ne
				changed = true
			}
		}
		if lp, ok := s.(*ast.LoopStmt); ok {
			if nb, ch := reverseStmts(lp.Body); ch {
				lp.Body = nb
				changed = true
			}
		}
		out = append(out, s)
	}
	return out, changed
}

// tryReverse attempts the rewrite with init as the statement immediately
// preceding wh in the same list, mutating init and wh in place. Returns
// whether the rewrite applied.
func tryReverse(init ast.Stmt, wh *ast.WhileStmt, after []ast.Stmt) bool {
	initAssign, ok := init.(*ast.AssignStmt)
	if !ok || len(initAssign.Lhs) != 1 || len(initAssign.Rhs) != 1 {
		return false
	}
	counter, ok := initAssign.Lhs[0].(*ast.IdentExpr)
	if !ok {
		return false
	}
	if v, ok := constOf(initAssign.Rhs[0]); !ok || v != 0 {
		return false
	}
	cond, ok := wh.Cond.(*ast.BinaryExpr)
	if !ok || cond.Op != ast.BinLt {
		return false
	}
	condVar, ok := cond.L.(*ast.IdentExpr)
	if !ok || condVar.Name != counter.Name {
		return false
	}
	bound := cond.R
	if referencesAny(bound, map[string]bool{counter.Name: true}) {
		return false
	}
	if len(wh.Body) == 0 {
		return false
	}
	last, ok := wh.Body[len(wh.Body)-1].(*ast.AssignStmt)
	if !ok || len(last.Lhs) != 1 || len(last.Rhs) != 1 {
		return false
	}
	incTarget, ok := last.Lhs[0].(*ast.IdentExpr)
	if !ok || incTarget.Name != counter.Name {
		return false
	}
	incExpr, ok := last.Rhs[0].(*ast.BinaryExpr)
	if !ok || incExpr.Op != ast.BinAdd {
		return false
	}
	incLhs, ok := incExpr.L.(*ast.IdentExpr)
	if !ok || incLhs.Name != counter.Name {
		return false
	}
	if v, ok := constOf(incExpr.R); !ok || v != 1 {
		return false
	}
	assigned := map[string]bool{}
	collectAssignedVars(wh.Body, assigned)
	if assigned[counter.Name] {
		// reassigned somewhere other than the trailing increment we matched
		count := 0
		for _, s := range wh.Body {
			if as, ok := s.(*ast.AssignStmt); ok && len(as.Lhs) == 1 {
				if id, ok := as.Lhs[0].(*ast.IdentExpr); ok && id.Name == counter.Name {
					count++
				}
			}
		}
		if count != 1 {
			return false
		}
	}
	used := map[string]bool{}
	collectReads(wh.Body[:len(wh.Body)-1], used)
	if used[counter.Name] {
		return false
	}
	if readsBeforeReassign(after, counter.Name) {
		// the rewrite leaves the counter at 0 instead of its original
		// post-loop value, which would be observable here.
		return false
	}

	initAssign.Rhs[0] = bound
	wh.Cond = &ast.BinaryExpr{ExprBase: cond.ExprBase, Op: ast.BinNe, L: condVar, R: initAssign.Rhs[0]}
	wh.Cond.(*ast.BinaryExpr).R = &ast.LiteralExpr{ExprBase: ast.ExprBase{ExprType: condVar.GetType()}, Kind: ast.LitInt, IntVal: 0}
	last.Rhs[0] = &ast.BinaryExpr{ExprBase: incExpr.ExprBase, Op: ast.BinSub, L: incLhs, R: incExpr.R}
	return true
}

// readsBeforeReassign reports whether name is read anywhere in stmts
// before a statement fully overwrites it with a plain `name := expr;`
// assignment. Used to check the statements following a reversed loop,
// since the reversal changes the counter's final value from the loop's
// bound to zero and that difference is only safe to ignore once nothing
// downstream still depends on the original value.
func readsBeforeReassign(stmts []ast.Stmt, name string) bool {
	for _, s := range stmts {
		used := map[string]bool{}
		collectReads([]ast.Stmt{s}, used)
		if used[name] {
			return true
		}
		if as, ok := s.(*ast.AssignStmt); ok && len(as.Lhs) == 1 {
			if id, ok := as.Lhs[0].(*ast.IdentExpr); ok && id.Name == name {
				return false
			}
		}
	}
	return false
}
