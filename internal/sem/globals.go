package sem

import (
	"github.com/avwohl/ucow/internal/ast"
	"github.com/avwohl/ucow/internal/diag"
)

// registerGlobals binds every top-level const, var, and sub name into the
// global scope, folding const initializers and resolving var types.
// Subroutines are registered recursively so nested subs (which Cowgol
// scopes to their enclosing subroutine, not the file) are reachable by
// name for the call-graph and type-checking passes, matching the
// teacher's single flat symbol table generalized to a name-keyed map per
// nesting level rather than one global table.
func (a *Analyzer) registerGlobals() {
	for _, d := range a.prog.Decls {
		switch decl := d.(type) {
		case *ast.ConstDecl:
			a.registerConst(decl, a.Global)
		case *ast.VarDecl:
			a.registerVar(decl, a.Global, true)
		case *ast.SubDecl:
			a.registerSub(decl)
		}
	}
}

func (a *Analyzer) registerConst(decl *ast.ConstDecl, scope *ast.Scope) {
	v, ok := a.evalConst(decl.Value)
	if !ok {
		a.sink.Add(diag.Semantic, decl.Loc, "%q is not a constant expression", decl.Name)
	}
	ty := decl.Type
	if ty == nil {
		ty = ast.Int16
	} else {
		ty = a.lookupNamedType(ty, decl.Loc)
	}
	sym := &ast.Symbol{Name: decl.Name, Kind: ast.SymConst, Type: ty, ConstVal: v, IsPublic: ast.IsPublic(decl.Name), Loc: decl.Loc, IsGlobal: scope == a.Global}
	if !scope.Define(sym) {
		a.sink.Add(diag.Resolution, decl.Loc, "redefinition of %q", decl.Name)
	}
}

func (a *Analyzer) registerVar(decl *ast.VarDecl, scope *ast.Scope, global bool) {
	ty := a.lookupNamedType(decl.Type, decl.Loc)
	decl.Type = ty
	if decl.Infer {
		ty = ast.Int16 // narrowed by the optimizer's constant-propagation pass when the initializer is known
	}
	sym := &ast.Symbol{
		Name: decl.Name, Kind: ast.SymVar, Type: ty, ArrayLen: decl.ArrayLen,
		IsPublic: decl.IsPublic, Loc: decl.Loc, IsGlobal: global,
	}
	if !scope.Define(sym) {
		a.sink.Add(diag.Resolution, decl.Loc, "redefinition of %q", decl.Name)
	}
}

// registerSub binds decl's name (merging an @decl forward declaration with
// its later @impl, if any) and recurses into nested subroutines found in
// its body.
func (a *Analyzer) registerSub(decl *ast.SubDecl) {
	if existing, ok := a.subs[decl.Name]; ok {
		if existing.IsForward && decl.IsImpl {
			decl.ResolvedSym = existing.ResolvedSym
			a.subs[decl.Name] = decl
		} else if decl.IsForward && existing.IsImpl {
			// implementation already seen; forward decl is redundant but harmless
		} else {
			a.sink.Add(diag.Resolution, decl.Loc, "redefinition of subroutine %q", decl.Name)
		}
	} else {
		a.subs[decl.Name] = decl
		sym := &ast.Symbol{Name: decl.Name, Kind: ast.SymSub, Type: ast.VoidTy, IsPublic: decl.IsPublic, Loc: decl.Loc, Sub: decl, IsGlobal: true}
		decl.ResolvedSym = sym
		if !a.Global.Define(sym) {
			a.sink.Add(diag.Resolution, decl.Loc, "redefinition of %q", decl.Name)
		}
	}
	for i := range decl.Params {
		decl.Params[i].Type = a.lookupNamedType(decl.Params[i].Type, decl.Loc)
	}
	for i := range decl.Returns {
		decl.Returns[i].Type = a.lookupNamedType(decl.Returns[i].Type, decl.Loc)
	}
	for _, stmt := range decl.Body {
		if ds, ok := stmt.(*ast.DeclStmt); ok {
			if nested, ok := ds.D.(*ast.SubDecl); ok {
				a.registerSub(nested)
			}
		}
	}
}

// forwardOnlyCheck reports subroutines declared via @decl but never given
// an @impl body, a dangling reference the linker-free single-module
// pipeline must catch itself since there is no separate link step.
func (a *Analyzer) forwardOnlyCheck() {
	for name, decl := range a.subs {
		if decl.IsForward && !decl.IsImpl && !decl.IsExtern {
			a.sink.Add(diag.Resolution, decl.Loc, "subroutine %q declared but never implemented", name)
		}
	}
}
