// Package sem implements the semantic analyzer: name and type resolution,
// record layout computation, constant folding, and call-graph acyclicity
// checking. Grounded on the phased structure of the reference pipeline's
// semantic analyzer (symbol tables built first, then a type-checking
// walk), generalized from that analyzer's single-function flat-global
// model to Cowgol's nested-subroutine lexical scoping.
package sem

import (
	"github.com/avwohl/ucow/internal/ast"
	"github.com/avwohl/ucow/internal/diag"
	"github.com/avwohl/ucow/internal/token"
)

// Analyzer resolves and type-checks a Program in place.
type Analyzer struct {
	prog   *ast.Program
	sink   *diag.Sink
	Global *ast.Scope

	typeNames map[string]*ast.Type      // record/typedef/interface names -> resolved Type
	records   map[string]*ast.RecordDecl
	subs      map[string]*ast.SubDecl // all subroutines, nested included, keyed by qualified-free name
	calls     map[string]map[string]bool
}

// New creates an Analyzer over prog.
func New(prog *ast.Program, sink *diag.Sink) *Analyzer {
	return &Analyzer{
		prog:      prog,
		sink:      sink,
		Global:    ast.NewScope(nil, nil),
		typeNames: make(map[string]*ast.Type),
		records:   make(map[string]*ast.RecordDecl),
		subs:      make(map[string]*ast.SubDecl),
		calls:     make(map[string]map[string]bool),
	}
}

// Subs returns every subroutine in the program, nested ones included,
// keyed by name, as registered during Analyze. The code generator needs
// this map to resolve a CallExpr's callee and to size its param/return
// storage slots.
func (a *Analyzer) Subs() map[string]*ast.SubDecl {
	return a.subs
}

// Analyze runs all phases. It stops early if an earlier phase reported
// diagnostics, per the "first error in a pass aborts that pass" rule;
// the pipeline driver is responsible for not invoking later stages once
// the sink has errors.
func (a *Analyzer) Analyze() {
	a.registerTypeNames()
	if a.sink.HasErrors() {
		return
	}
	a.resolveRecordLayouts()
	if a.sink.HasErrors() {
		return
	}
	a.registerGlobals()
	if a.sink.HasErrors() {
		return
	}
	a.forwardOnlyCheck()
	if a.sink.HasErrors() {
		return
	}
	a.checkCallGraph()
	if a.sink.HasErrors() {
		return
	}
	a.typeCheckProgram()
}

// registerTypeNames makes a forward-reference pass over every top-level
// record, typedef, and interface declaration so mutually referencing
// types (a field of type Foo declared before Foo itself) resolve
// correctly regardless of declaration order.
func (a *Analyzer) registerTypeNames() {
	for _, d := range a.prog.Decls {
		switch decl := d.(type) {
		case *ast.RecordDecl:
			if _, exists := a.typeNames[decl.Name]; exists {
				a.sink.Add(diag.Resolution, decl.Loc, "redefinition of %q", decl.Name)
				continue
			}
			rt := &ast.RecordType{Name: decl.Name}
			decl.Resolved = rt
			a.records[decl.Name] = decl
			a.typeNames[decl.Name] = &ast.Type{Kind: ast.KindRecord, Name: decl.Name, Record: rt}
		case *ast.InterfaceDecl:
			if _, exists := a.typeNames[decl.Name]; exists {
				a.sink.Add(diag.Resolution, decl.Loc, "redefinition of %q", decl.Name)
				continue
			}
			it := &ast.InterfaceType{Params: decl.Params, Returns: decl.Returns}
			a.typeNames[decl.Name] = &ast.Type{Kind: ast.KindInterface, Name: decl.Name, Iface: it}
		case *ast.TypedefDecl:
			if _, exists := a.typeNames[decl.Name]; exists {
				a.sink.Add(diag.Resolution, decl.Loc, "redefinition of %q", decl.Name)
				continue
			}
			a.typeNames[decl.Name] = &ast.Type{Kind: ast.KindTypedef, Name: decl.Name}
		}
	}
	// Second sub-pass: fill in typedef targets now that every name is
	// registered, so a typedef can alias a record or interface declared
	// later in the file.
	for _, d := range a.prog.Decls {
		if decl, ok := d.(*ast.TypedefDecl); ok {
			resolved := a.lookupNamedType(decl.Target, decl.Loc)
			decl.Target = resolved
			a.typeNames[decl.Name].Target = resolved
		}
	}
}

func (a *Analyzer) resolveRecordLayouts() {
	for _, d := range a.prog.Decls {
		decl, ok := d.(*ast.RecordDecl)
		if !ok {
			continue
		}
		a.resolveOneRecordLayout(decl, nil)
	}
}

// resolveOneRecordLayout computes field offsets and total size for decl,
// following the base chain. visiting guards against a record inheriting
// from itself, directly or transitively.
func (a *Analyzer) resolveOneRecordLayout(decl *ast.RecordDecl, visiting map[string]bool) {
	if decl.Resolved.Size != 0 || len(decl.Resolved.Fields) > 0 {
		return // already laid out
	}
	if visiting == nil {
		visiting = map[string]bool{}
	}
	if visiting[decl.Name] {
		a.sink.Add(diag.Semantic, decl.Loc, "record %q inherits from itself", decl.Name)
		return
	}
	visiting[decl.Name] = true

	var base *ast.RecordType
	offset := 0
	align := 1
	if decl.BaseName != "" {
		baseDecl, ok := a.records[decl.BaseName]
		if !ok {
			a.sink.Add(diag.Resolution, decl.Loc, "undeclared base record %q", decl.BaseName)
		} else {
			a.resolveOneRecordLayout(baseDecl, visiting)
			base = baseDecl.Resolved
			offset = base.Size
		}
	}
	decl.Resolved.Base = base

	for _, f := range decl.Fields {
		ftype := a.fieldType(f)
		size := ftype.Size()
		if f.ArrayLen > 0 {
			size *= f.ArrayLen
		}
		fieldOffset := offset
		if f.AtOffset >= 0 {
			fieldOffset = f.AtOffset
		}
		decl.Resolved.Fields = append(decl.Resolved.Fields, ast.Field{
			Name: f.Name, Type: ftype, Offset: fieldOffset, HasExplicitOffset: f.AtOffset >= 0,
		})
		if f.AtOffset < 0 {
			offset = fieldOffset + size
		} else if fieldOffset+size > offset {
			offset = fieldOffset + size
		}
		if size > align {
			align = size
		}
	}
	decl.Resolved.Size = ast.AlignUp(offset, 1)
	_ = align // alignment is fixed at 1 byte per the data model; kept for clarity
}

func (a *Analyzer) fieldType(f ast.FieldDecl) *ast.Type {
	t := a.lookupNamedType(f.Type, f.Loc)
	if f.ArrayLen > 0 {
		return ast.ArrayOf(t, f.ArrayLen)
	}
	return t
}

// lookupNamedType follows a parser placeholder (KindTypedef with Name set
// and Target nil) to the actual declared type, recursing through pointer
// and array wrappers. Primitive and already-resolved types pass through
// unchanged.
func (a *Analyzer) lookupNamedType(t *ast.Type, loc token.Pos) *ast.Type {
	if t == nil {
		return ast.Invalid
	}
	switch t.Kind {
	case ast.KindPointer:
		return ast.PointerTo(a.lookupNamedType(t.Pointee, loc))
	case ast.KindArray:
		elem := a.lookupNamedType(t.Elem, loc)
		nt := ast.ArrayOf(elem, t.Len)
		nt.LenKnown = t.LenKnown
		return nt
	case ast.KindTypedef:
		if t.Target != nil {
			return t
		}
		resolved, ok := a.typeNames[t.Name]
		if !ok {
			a.sink.Add(diag.Resolution, loc, "undeclared type %q", t.Name)
			return ast.Invalid
		}
		return resolved
	default:
		return t
	}
}
