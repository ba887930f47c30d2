package optimize

import "github.com/avwohl/ucow/internal/ast"

// AlgebraicSimplify removes operations that are identities or
// annihilators regardless of the other operand's value: x+0, x-0, x*1,
// x*0, x|0, x&x, and their commuted forms.
func AlgebraicSimplify(prog *ast.Program) bool {
	changed := false
	forEachSub(prog, func(sub *ast.SubDecl) {
		if rewriteSub(sub, algebraicSimplify) {
			changed = true
		}
	})
	return changed
}

func algebraicSimplify(e ast.Expr) (ast.Expr, bool) {
	x, ok := e.(*ast.BinaryExpr)
	if !ok {
		return e, false
	}
	lc, lIsConst := constOf(x.L)
	rc, rIsConst := constOf(x.R)
	switch x.Op {
	case ast.BinAdd:
		if rIsConst && rc == 0 {
			return x.L, true
		}
		if lIsConst && lc == 0 {
			return x.R, true
		}
	case ast.BinSub:
		if rIsConst && rc == 0 {
			return x.L, true
		}
		if isSameVar(x.L, x.R) {
			return intLit(0, x.GetType()), true
		}
	case ast.BinMul:
		if rIsConst && rc == 1 {
			return x.L, true
		}
		if lIsConst && lc == 1 {
			return x.R, true
		}
		if (rIsConst && rc == 0) || (lIsConst && lc == 0) {
			return intLit(0, x.GetType()), true
		}
	case ast.BinDiv:
		if rIsConst && rc == 1 {
			return x.L, true
		}
	case ast.BinOr:
		if rIsConst && rc == 0 {
			return x.L, true
		}
		if lIsConst && lc == 0 {
			return x.R, true
		}
		if isSameVar(x.L, x.R) {
			return x.L, true
		}
	case ast.BinAnd:
		if isSameVar(x.L, x.R) {
			return x.L, true
		}
	case ast.BinXor:
		if isSameVar(x.L, x.R) {
			return intLit(0, x.GetType()), true
		}
	}
	return e, false
}

func constOf(e ast.Expr) (int64, bool) {
	lit, ok := asLiteral(e)
	if !ok {
		return 0, false
	}
	return lit.IntVal, true
}

func isSameVar(a, b ast.Expr) bool {
	ai, aok := a.(*ast.IdentExpr)
	bi, bok := b.(*ast.IdentExpr)
	return aok && bok && ai.Name == bi.Name
}

// StrengthReduce replaces multiplication and unsigned division by a
// power of two with a shift, the classic trade the reference pipeline's
// register-starved 8-bit target benefits from most: a SHL/SHR sequence
// is far cheaper than the 8080 has no hardware multiply or divide
// instruction at all, so every multiply this pass removes is a call to a
// software routine avoided entirely.
func StrengthReduce(prog *ast.Program) bool {
	changed := false
	forEachSub(prog, func(sub *ast.SubDecl) {
		if rewriteSub(sub, strengthReduce) {
			changed = true
		}
	})
	return changed
}

func strengthReduce(e ast.Expr) (ast.Expr, bool) {
	x, ok := e.(*ast.BinaryExpr)
	if !ok {
		return e, false
	}
	rc, ok := constOf(x.R)
	if !ok || rc <= 0 {
		return e, false
	}
	shift, isPow2 := log2(rc)
	if !isPow2 {
		return e, false
	}
	switch x.Op {
	case ast.BinMul:
		return &ast.BinaryExpr{ExprBase: x.ExprBase, Op: ast.BinShl, L: x.L, R: intLit(int64(shift), ast.UInt8)}, true
	case ast.BinDiv:
		t := x.GetType()
		if t != nil && t.Underlying().Kind == ast.KindInt && !t.Underlying().Signed {
			return &ast.BinaryExpr{ExprBase: x.ExprBase, Op: ast.BinShr, L: x.L, R: intLit(int64(shift), ast.UInt8)}, true
		}
	}
	return e, false
}

func log2(n int64) (int, bool) {
	if n <= 0 || n&(n-1) != 0 {
		return 0, false
	}
	shift := 0
	for n > 1 {
		n >>= 1
		shift++
	}
	return shift, true
}

// Reassociate folds a constant that sits next to another constant across
// one level of an associative operator, e.g. `(x + 1) + 2` -> `x + 3`,
// exposing constants that ConstantFold's single bottom-up pass could not
// see because they were not direct siblings.
func Reassociate(prog *ast.Program) bool {
	changed := false
	forEachSub(prog, func(sub *ast.SubDecl) {
		if rewriteSub(sub, reassociate) {
			changed = true
		}
	})
	return changed
}

func reassociate(e ast.Expr) (ast.Expr, bool) {
	x, ok := e.(*ast.BinaryExpr)
	if !ok || (x.Op != ast.BinAdd && x.Op != ast.BinMul) {
		return e, false
	}
	inner, ok := x.L.(*ast.BinaryExpr)
	if !ok || inner.Op != x.Op {
		return e, false
	}
	ic, iok := constOf(inner.R)
	oc, ook := constOf(x.R)
	if !iok || !ook {
		return e, false
	}
	var combined int64
	if x.Op == ast.BinAdd {
		combined = ic + oc
	} else {
		combined = ic * oc
	}
	return &ast.BinaryExpr{ExprBase: x.ExprBase, Op: x.Op, L: inner.L, R: intLit(combined, x.GetType())}, true
}

// BooleanSimplify cancels double negation and pushes a "not" through a
// comparison into the comparison's own inverse, which is always a single
// conditional branch instruction on this target whereas a literal "not"
// of a flag has no direct opcode.
func BooleanSimplify(prog *ast.Program) bool {
	changed := false
	forEachSub(prog, func(sub *ast.SubDecl) {
		if rewriteSub(sub, booleanSimplify) {
			changed = true
		}
	})
	return changed
}

var invertedCmp = map[ast.BinaryOp]ast.BinaryOp{
	ast.BinEq: ast.BinNe, ast.BinNe: ast.BinEq,
	ast.BinLt: ast.BinGe, ast.BinGe: ast.BinLt,
	ast.BinLe: ast.BinGt, ast.BinGt: ast.BinLe,
}

func booleanSimplify(e ast.Expr) (ast.Expr, bool) {
	x, ok := e.(*ast.UnaryExpr)
	if !ok || x.Op != ast.UnNot {
		return e, false
	}
	if inner, ok := x.X.(*ast.UnaryExpr); ok && inner.Op == ast.UnNot {
		return inner.X, true
	}
	if cmp, ok := x.X.(*ast.BinaryExpr); ok {
		if inv, ok := invertedCmp[cmp.Op]; ok {
			return &ast.BinaryExpr{ExprBase: cmp.ExprBase, Op: inv, L: cmp.L, R: cmp.R}, true
		}
	}
	return e, false
}

// ComparisonSimplify folds a comparison of a value against itself to the
// constant the comparison must always produce (e.g. `x == x` is always
// true; `x < x` is always false), sparing the generator a branch whose
// outcome is known at compile time.
func ComparisonSimplify(prog *ast.Program) bool {
	changed := false
	forEachSub(prog, func(sub *ast.SubDecl) {
		if rewriteSub(sub, comparisonSimplify) {
			changed = true
		}
	})
	return changed
}

func comparisonSimplify(e ast.Expr) (ast.Expr, bool) {
	x, ok := e.(*ast.BinaryExpr)
	if !ok || !x.Op.IsComparison() || !isSameVar(x.L, x.R) {
		return e, false
	}
	switch x.Op {
	case ast.BinEq, ast.BinLe, ast.BinGe:
		return intLit(1, x.GetType()), true
	case ast.BinNe, ast.BinLt, ast.BinGt:
		return intLit(0, x.GetType()), true
	}
	return e, false
}
