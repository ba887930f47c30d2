package sem

import (
	"github.com/avwohl/ucow/internal/ast"
	"github.com/avwohl/ucow/internal/diag"
)

// evalConst folds e to a compile-time integer constant. It is used for
// const declarations, array lengths, @at(n) offsets, and case-label
// values, all of which the grammar requires to be constant expressions.
// Arithmetic is plain int64: results are not wrapped to any narrower
// declared width here. Width-masked 2's-complement wraparound is applied
// only by the optimizer's constant folding pass (see the Open Questions
// decision recorded in DESIGN.md).
func (a *Analyzer) evalConst(e ast.Expr) (int64, bool) {
	switch x := e.(type) {
	case *ast.LiteralExpr:
		switch x.Kind {
		case ast.LitInt, ast.LitChar:
			return x.IntVal, true
		}
		return 0, false
	case *ast.IdentExpr:
		sym, _ := a.Global.Lookup(x.Name)
		if sym == nil || sym.Kind != ast.SymConst {
			return 0, false
		}
		return sym.ConstVal, true
	case *ast.UnaryExpr:
		v, ok := a.evalConst(x.X)
		if !ok {
			return 0, false
		}
		switch x.Op {
		case ast.UnNeg:
			return -v, true
		case ast.UnBitNot:
			return ^v, true
		case ast.UnNot:
			if v == 0 {
				return 1, true
			}
			return 0, true
		}
		return 0, false
	case *ast.BinaryExpr:
		l, lok := a.evalConst(x.L)
		r, rok := a.evalConst(x.R)
		if !lok || !rok {
			return 0, false
		}
		switch x.Op {
		case ast.BinAdd:
			return l + r, true
		case ast.BinSub:
			return l - r, true
		case ast.BinMul:
			return l * r, true
		case ast.BinDiv:
			if r == 0 {
				a.sink.Add(diag.Semantic, x.Loc, "division by zero in constant expression")
				return 0, false
			}
			return l / r, true
		case ast.BinMod:
			if r == 0 {
				a.sink.Add(diag.Semantic, x.Loc, "division by zero in constant expression")
				return 0, false
			}
			return l % r, true
		case ast.BinAnd:
			return l & r, true
		case ast.BinOr:
			return l | r, true
		case ast.BinXor:
			return l ^ r, true
		case ast.BinShl:
			return l << uint(r), true
		case ast.BinShr:
			return l >> uint(r), true
		}
		return 0, false
	case *ast.SizeofExpr:
		t := a.lookupNamedType(x.Operand, x.Loc)
		if x.ByBytes {
			return int64(t.Size()), true
		}
		return int64(t.Size()), true
	}
	return 0, false
}
