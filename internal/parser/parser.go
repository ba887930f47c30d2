// Package parser builds a Program AST from a token stream via recursive
// descent with precedence climbing for expressions. There was no
// reference parser to adapt for Cowgol's grammar specifically, so this
// package is written from scratch; it follows the surrounding pipeline's
// established idiom for tokens, AST shape, and diagnostics (the
// Peek/Next/Expect accessor style is grounded on the token reader found
// alongside the reference pipeline's AST package).
package parser

import (
	"github.com/avwohl/ucow/internal/ast"
	"github.com/avwohl/ucow/internal/diag"
	"github.com/avwohl/ucow/internal/token"
)

// Parser consumes a flat token slice and produces a Program.
type Parser struct {
	toks []token.Token
	pos  int
	sink *diag.Sink
}

// New creates a Parser over toks, reporting errors to sink.
func New(toks []token.Token, sink *diag.Sink) *Parser {
	return &Parser{toks: toks, sink: sink}
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF
	}
	return p.toks[p.pos]
}

func (p *Parser) peekAt(n int) token.Token {
	i := p.pos + n
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) atEOF() bool { return p.cur().Kind == token.EOF }

func (p *Parser) errorf(format string, args ...interface{}) {
	p.sink.Add(diag.Parse, p.cur().Pos, format, args...)
}

// expectKeyword consumes the current token if it is the keyword kw,
// otherwise reports a parse error and returns false without consuming.
func (p *Parser) expectKeyword(kw string) bool {
	if p.cur().IsKeyword(kw) {
		p.advance()
		return true
	}
	p.errorf("expected %q, got %s", kw, p.cur())
	return false
}

func (p *Parser) expectPunct(s string) bool {
	if p.cur().IsPunct(s) {
		p.advance()
		return true
	}
	p.errorf("expected %q, got %s", s, p.cur())
	return false
}

func (p *Parser) expectOperator(s string) bool {
	if p.cur().IsOperator(s) {
		p.advance()
		return true
	}
	p.errorf("expected %q, got %s", s, p.cur())
	return false
}

func (p *Parser) expectIdent() (string, token.Pos) {
	if p.cur().Kind == token.Ident {
		t := p.advance()
		return t.Lexeme, t.Pos
	}
	p.errorf("expected identifier, got %s", p.cur())
	return "", p.cur().Pos
}

// syncToTopLevel skips tokens until one that plausibly starts a new
// top-level declaration, so a single malformed declaration does not
// cascade into unrelated errors for the rest of the file.
func (p *Parser) syncToTopLevel() {
	for !p.atEOF() {
		t := p.cur()
		if t.Kind == token.Keyword {
			switch t.Lexeme {
			case "var", "const", "typedef", "record", "interface", "sub", "@decl", "@impl", "@asm":
				return
			}
		}
		p.advance()
	}
}

// Parse builds the Program from the full token stream.
func (p *Parser) Parse() *ast.Program {
	prog := &ast.Program{}
	for !p.atEOF() {
		before := p.pos
		d := p.parseTopDecl()
		if d != nil {
			prog.Decls = append(prog.Decls, d)
		}
		if p.pos == before {
			// Defensive: parseTopDecl must always make progress.
			p.advance()
		}
	}
	return prog
}

func (p *Parser) parseTopDecl() ast.Decl {
	t := p.cur()
	if t.Kind != token.Keyword {
		p.errorf("expected declaration, got %s", t)
		p.syncToTopLevel()
		return nil
	}
	switch t.Lexeme {
	case "var":
		return p.parseVarDecl(true)
	case "const":
		return p.parseConstDecl()
	case "typedef":
		return p.parseTypedefDecl()
	case "record":
		return p.parseRecordDecl()
	case "interface":
		return p.parseInterfaceDecl()
	case "sub", "@decl", "@impl":
		return p.parseSubDecl(nil)
	case "@asm":
		return p.parseAsmDecl()
	default:
		p.errorf("unexpected %s at top level", t)
		p.syncToTopLevel()
		return nil
	}
}

func (p *Parser) parseVarDecl(topLevel bool) *ast.VarDecl {
	pos := p.advance().Pos // 'var'
	name, _ := p.expectIdent()
	d := &ast.VarDecl{ast.DeclBase{Loc: pos}, name, nil, -1, false, nil, topLevel && ast.IsPublic(name)}
	p.expectPunct(":")
	d.Type, d.ArrayLen, d.Infer = p.parseTypeSpec()
	if p.cur().IsOperator(":=") {
		p.advance()
		d.Init = p.parseExpr()
	}
	p.expectPunct(";")
	return d
}

func (p *Parser) parseConstDecl() *ast.ConstDecl {
	pos := p.advance().Pos // 'const'
	name, _ := p.expectIdent()
	d := &ast.ConstDecl{ast.DeclBase{Loc: pos}, name, nil, nil}
	if p.cur().IsPunct(":") {
		p.advance()
		typ, _, _ := p.parseTypeSpec()
		d.Type = typ
	}
	p.expectOperator(":=")
	d.Value = p.parseExpr()
	p.expectPunct(";")
	return d
}

func (p *Parser) parseTypedefDecl() *ast.TypedefDecl {
	pos := p.advance().Pos // 'typedef'
	name, _ := p.expectIdent()
	if p.cur().IsKeyword("@alias") {
		p.advance()
		target, _, _ := p.parseTypeSpec()
		p.expectPunct(";")
		return &ast.TypedefDecl{ast.DeclBase{Loc: pos}, name, target}
	}
	p.expectKeyword("is")
	target, _, _ := p.parseTypeSpec()
	p.expectPunct(";")
	return &ast.TypedefDecl{ast.DeclBase{Loc: pos}, name, target}
}

func (p *Parser) parseRecordDecl() *ast.RecordDecl {
	pos := p.advance().Pos // 'record'
	name, _ := p.expectIdent()
	d := &ast.RecordDecl{DeclBase: ast.DeclBase{Loc: pos}, Name: name}
	if p.cur().IsPunct(":") {
		p.advance()
		base, _ := p.expectIdent()
		d.BaseName = base
	}
	p.expectKeyword("is")
	for !p.cur().IsKeyword("end") && !p.atEOF() {
		fname, floc := p.expectIdent()
		atOff := -1
		if p.cur().IsKeyword("@at") {
			p.advance()
			p.expectPunct("(")
			n := p.parseIntConst()
			atOff = int(n)
			p.expectPunct(")")
		}
		p.expectPunct(":")
		ftyp, arrLen, _ := p.parseTypeSpec()
		p.expectPunct(";")
		d.Fields = append(d.Fields, ast.FieldDecl{Name: fname, Type: ftyp, ArrayLen: arrLen, AtOffset: atOff, Loc: floc})
	}
	p.expectKeyword("end")
	p.expectKeyword("record")
	p.expectPunct(";")
	return d
}

func (p *Parser) parseInterfaceDecl() *ast.InterfaceDecl {
	pos := p.advance().Pos // 'interface'
	name, _ := p.expectIdent()
	p.expectKeyword("is")
	params, returns := p.parseParamsAndReturns()
	p.expectPunct(";")
	p.expectKeyword("end")
	p.expectKeyword("interface")
	p.expectPunct(";")
	return &ast.InterfaceDecl{ast.DeclBase{Loc: pos}, name, params, returns}
}

func (p *Parser) parseAsmDecl() *ast.AsmDecl {
	pos := p.advance().Pos // '@asm'
	text := ""
	if p.cur().Kind == token.StringLit {
		text = p.advance().StrVal
	} else {
		p.errorf("expected string literal after @asm")
	}
	p.expectPunct(";")
	return &ast.AsmDecl{ast.DeclBase{Loc: pos}, text}
}

// parseSubDecl handles `sub`, `@decl sub`, and `@impl sub` forms, sharing
// the signature grammar across all three.
func (p *Parser) parseSubDecl(parent *ast.SubDecl) *ast.SubDecl {
	isForward, isImpl := false, false
	pos := p.cur().Pos
	if p.cur().IsKeyword("@decl") {
		p.advance()
		isForward = true
	} else if p.cur().IsKeyword("@impl") {
		p.advance()
		isImpl = true
	}
	p.expectKeyword("sub")
	name, _ := p.expectIdent()
	d := &ast.SubDecl{DeclBase: ast.DeclBase{Loc: pos}, Name: name, IsForward: isForward, IsImpl: isImpl || !isForward, Parent: parent, IsPublic: ast.IsPublic(name)}
	d.Params, d.Returns = p.parseParamsAndReturns()
	if p.cur().IsKeyword("@extern") {
		p.advance()
		d.IsExtern = true
	}
	if isForward {
		p.expectPunct(";")
		return d
	}
	p.expectKeyword("is")
	p.parseSubBody(d)
	p.expectKeyword("end")
	p.expectKeyword("sub")
	p.expectPunct(";")
	return d
}

func (p *Parser) parseParamsAndReturns() ([]ast.Param, []ast.Param) {
	var params []ast.Param
	if p.cur().IsPunct("(") {
		p.advance()
		for !p.cur().IsPunct(")") && !p.atEOF() {
			name, _ := p.expectIdent()
			p.expectPunct(":")
			typ, _, _ := p.parseTypeSpec()
			params = append(params, ast.Param{Name: name, Type: typ})
			if p.cur().IsPunct(",") {
				p.advance()
			} else {
				break
			}
		}
		p.expectPunct(")")
	}
	var returns []ast.Param
	if p.cur().IsPunct(":") {
		p.advance()
		p.expectPunct("(")
		for !p.cur().IsPunct(")") && !p.atEOF() {
			name, _ := p.expectIdent()
			p.expectPunct(":")
			typ, _, _ := p.parseTypeSpec()
			returns = append(returns, ast.Param{Name: name, Type: typ})
			if p.cur().IsPunct(",") {
				p.advance()
			} else {
				break
			}
		}
		p.expectPunct(")")
	}
	return params, returns
}

// parseSubBody parses the body of a subroutine: an interleaved sequence
// of local declarations, nested subroutines, and statements, terminated
// by the enclosing 'end sub'.
func (p *Parser) parseSubBody(d *ast.SubDecl) {
	for !p.cur().IsKeyword("end") && !p.atEOF() {
		if p.cur().IsKeyword("var") {
			local := p.parseVarDecl(false)
			d.Locals = append(d.Locals, local)
			continue
		}
		if p.cur().IsKeyword("const") || p.cur().IsKeyword("typedef") || p.cur().IsKeyword("record") {
			// Local const/typedef/record declarations are permitted inside a
			// subroutine body; represent them positionally via DeclStmt.
			var decl ast.Decl
			switch {
			case p.cur().IsKeyword("const"):
				decl = p.parseConstDecl()
			case p.cur().IsKeyword("typedef"):
				decl = p.parseTypedefDecl()
			default:
				decl = p.parseRecordDecl()
			}
			d.Body = append(d.Body, &ast.DeclStmt{D: decl})
			continue
		}
		if p.cur().IsKeyword("sub") || p.cur().IsKeyword("@decl") || p.cur().IsKeyword("@impl") {
			nested := p.parseSubDecl(d)
			d.Body = append(d.Body, &ast.DeclStmt{D: nested})
			continue
		}
		d.Body = append(d.Body, p.parseStmt())
	}
}

// ---- Statements ----

func (p *Parser) parseStmtBlock(terminators ...string) []ast.Stmt {
	var stmts []ast.Stmt
	for !p.atEOF() {
		if p.cur().Kind == token.Keyword {
			for _, t := range terminators {
				if p.cur().Lexeme == t {
					return stmts
				}
			}
		}
		stmts = append(stmts, p.parseStmt())
	}
	return stmts
}

func (p *Parser) parseStmt() ast.Stmt {
	t := p.cur()
	switch {
	case t.IsKeyword("if"):
		return p.parseIfStmt()
	case t.IsKeyword("while"):
		return p.parseWhileStmt()
	case t.IsKeyword("loop"):
		return p.parseLoopStmt()
	case t.IsKeyword("break"):
		p.advance()
		p.expectPunct(";")
		return &ast.BreakStmt{ast.StmtBase{Loc: t.Pos}}
	case t.IsKeyword("continue"):
		p.advance()
		p.expectPunct(";")
		return &ast.ContinueStmt{ast.StmtBase{Loc: t.Pos}}
	case t.IsKeyword("return"):
		return p.parseReturnStmt()
	case t.IsKeyword("case"):
		return p.parseCaseStmt()
	case t.IsKeyword("@asm"):
		p.advance()
		text := ""
		if p.cur().Kind == token.StringLit {
			text = p.advance().StrVal
		} else {
			p.errorf("expected string literal after @asm")
		}
		p.expectPunct(";")
		return &ast.AsmStmt{ast.StmtBase{Loc: t.Pos}, text}
	default:
		return p.parseSimpleStmt()
	}
}

func (p *Parser) parseIfStmt() *ast.IfStmt {
	pos := p.advance().Pos // 'if'
	s := &ast.IfStmt{StmtBase: ast.StmtBase{Loc: pos}}
	cond := p.parseExpr()
	p.expectKeyword("then")
	body := p.parseStmtBlock("elseif", "else", "end")
	s.Clauses = append(s.Clauses, ast.IfClause{Cond: cond, Body: body})
	for p.cur().IsKeyword("elseif") {
		p.advance()
		c := p.parseExpr()
		p.expectKeyword("then")
		b := p.parseStmtBlock("elseif", "else", "end")
		s.Clauses = append(s.Clauses, ast.IfClause{Cond: c, Body: b})
	}
	if p.cur().IsKeyword("else") {
		p.advance()
		s.Else = p.parseStmtBlock("end")
	}
	p.expectKeyword("end")
	p.expectKeyword("if")
	p.expectPunct(";")
	return s
}

func (p *Parser) parseWhileStmt() *ast.WhileStmt {
	pos := p.advance().Pos // 'while'
	cond := p.parseExpr()
	p.expectKeyword("loop")
	body := p.parseStmtBlock("end")
	p.expectKeyword("end")
	p.expectKeyword("loop")
	p.expectPunct(";")
	return &ast.WhileStmt{ast.StmtBase{Loc: pos}, cond, body}
}

func (p *Parser) parseLoopStmt() *ast.LoopStmt {
	pos := p.advance().Pos // 'loop'
	body := p.parseStmtBlock("end")
	p.expectKeyword("end")
	p.expectKeyword("loop")
	p.expectPunct(";")
	return &ast.LoopStmt{ast.StmtBase{Loc: pos}, body}
}

func (p *Parser) parseReturnStmt() *ast.ReturnStmt {
	pos := p.advance().Pos // 'return'
	s := &ast.ReturnStmt{StmtBase: ast.StmtBase{Loc: pos}}
	if !p.cur().IsPunct(";") {
		s.Values = append(s.Values, p.parseExpr())
		for p.cur().IsPunct(",") {
			p.advance()
			s.Values = append(s.Values, p.parseExpr())
		}
	}
	p.expectPunct(";")
	return s
}

func (p *Parser) parseCaseStmt() *ast.CaseStmt {
	pos := p.advance().Pos // 'case'
	subj := p.parseExpr()
	p.expectKeyword("is")
	s := &ast.CaseStmt{StmtBase: ast.StmtBase{Loc: pos}, Subject: subj}
	for p.cur().IsKeyword("when") {
		p.advance()
		var values []ast.Expr
		values = append(values, p.parseExpr())
		for p.cur().IsPunct(",") {
			p.advance()
			values = append(values, p.parseExpr())
		}
		p.expectPunct(":")
		body := p.parseStmtBlock("when", "else", "end")
		s.Arms = append(s.Arms, ast.CaseArm{Values: values, Body: body})
	}
	if p.cur().IsKeyword("else") {
		p.advance()
		p.expectPunct(":")
		s.Else = p.parseStmtBlock("end")
	}
	p.expectKeyword("end")
	p.expectKeyword("case")
	p.expectPunct(";")
	return s
}

// parseSimpleStmt parses an assignment or bare expression statement. An
// assignment's left side may be a comma-separated list for destructured
// multi-return calls: `a, b := F();`.
func (p *Parser) parseSimpleStmt() ast.Stmt {
	pos := p.cur().Pos
	first := p.parseExpr()
	lhs := []ast.Expr{first}
	for p.cur().IsPunct(",") {
		p.advance()
		lhs = append(lhs, p.parseExpr())
	}
	if p.cur().IsOperator(":=") {
		p.advance()
		var rhs []ast.Expr
		rhs = append(rhs, p.parseExpr())
		for p.cur().IsPunct(",") {
			p.advance()
			rhs = append(rhs, p.parseExpr())
		}
		p.expectPunct(";")
		return &ast.AssignStmt{ast.StmtBase{Loc: pos}, lhs, rhs}
	}
	if len(lhs) != 1 {
		p.errorf("expected ':=' after expression list")
	}
	p.expectPunct(";")
	return &ast.ExprStmt{ast.StmtBase{Loc: pos}, first}
}

// ---- Types ----

var primitiveTypes = map[string]*ast.Type{
	"int8": ast.Int8, "uint8": ast.UInt8,
	"int16": ast.Int16, "uint16": ast.UInt16,
	"int32": ast.Int32, "uint32": ast.UInt32,
}

// parseTypeSpec parses a type reference, optionally followed by an array
// suffix `[n]` or `[]` (inferred length). It returns the element type
// (without the array wrapper folded in — callers that track ArrayLen
// separately, like field and var declarations, want this split), the
// declared array length (-1 if not an array), and whether the length is
// to be inferred from an initializer.
func (p *Parser) parseTypeSpec() (*ast.Type, int, bool) {
	typ := p.parseTypeRef()
	arrayLen := -1
	infer := false
	if p.cur().IsPunct("[") {
		p.advance()
		if p.cur().IsPunct("]") {
			infer = true
		} else {
			arrayLen = int(p.parseIntConst())
		}
		p.expectPunct("]")
	}
	return typ, arrayLen, infer
}

// parseTypeRef parses a bare type reference: a primitive name, a named
// type (record/typedef/interface, resolved later by sem), or a pointer
// type `@ Type`.
func (p *Parser) parseTypeRef() *ast.Type {
	if p.cur().IsOperator("@") {
		p.advance()
		pointee := p.parseTypeRef()
		return ast.PointerTo(pointee)
	}
	if p.cur().Kind == token.Ident {
		name := p.advance().Lexeme
		if t, ok := primitiveTypes[name]; ok {
			return t
		}
		// Unresolved named type; sem replaces this placeholder once the
		// referenced record/typedef/interface declaration is known.
		return &ast.Type{Kind: ast.KindTypedef, Name: name}
	}
	p.errorf("expected type, got %s", p.cur())
	return ast.Invalid
}

func (p *Parser) parseIntConst() int64 {
	if p.cur().Kind == token.IntLit {
		return p.advance().IntVal
	}
	p.errorf("expected integer constant, got %s", p.cur())
	return 0
}

// ---- Expressions ----
//
// Precedence, loosest to tightest, per the surrounding specification:
// or; and; comparisons; shifts; bitwise (& | ^); additive (+ -);
// multiplicative (* / %); unary; postfix (call/index/field/as); primary.

func (p *Parser) parseExpr() ast.Expr {
	return p.parseOr()
}

func (p *Parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.cur().IsKeyword("or") {
		pos := p.advance().Pos
		right := p.parseAnd()
		left = &ast.BinaryExpr{ExprBase: ast.ExprBase{Loc: pos}, Op: ast.BinLogOr, L: left, R: right}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expr {
	left := p.parseNot()
	for p.cur().IsKeyword("and") {
		pos := p.advance().Pos
		right := p.parseNot()
		left = &ast.BinaryExpr{ExprBase: ast.ExprBase{Loc: pos}, Op: ast.BinLogAnd, L: left, R: right}
	}
	return left
}

func (p *Parser) parseNot() ast.Expr {
	if p.cur().IsKeyword("not") {
		pos := p.advance().Pos
		x := p.parseNot()
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{Loc: pos}, Op: ast.UnNot, X: x}
	}
	return p.parseComparison()
}

var cmpOps = map[string]ast.BinaryOp{
	"==": ast.BinEq, "!=": ast.BinNe, "<": ast.BinLt, "<=": ast.BinLe, ">": ast.BinGt, ">=": ast.BinGe,
}

func (p *Parser) parseComparison() ast.Expr {
	left := p.parseShift()
	if p.cur().Kind == token.Operator {
		if op, ok := cmpOps[p.cur().Lexeme]; ok {
			pos := p.advance().Pos
			right := p.parseShift()
			return &ast.BinaryExpr{ExprBase: ast.ExprBase{Loc: pos}, Op: op, L: left, R: right}
		}
	}
	return left
}

func (p *Parser) parseShift() ast.Expr {
	left := p.parseBitwise()
	for p.cur().IsOperator("<<") || p.cur().IsOperator(">>") {
		t := p.advance()
		op := ast.BinShl
		if t.Lexeme == ">>" {
			op = ast.BinShr
		}
		right := p.parseBitwise()
		left = &ast.BinaryExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Op: op, L: left, R: right}
	}
	return left
}

func (p *Parser) parseBitwise() ast.Expr {
	left := p.parseAdditive()
	for p.cur().IsOperator("&") || p.cur().IsOperator("|") || p.cur().IsOperator("^") {
		t := p.advance()
		var op ast.BinaryOp
		switch t.Lexeme {
		case "&":
			op = ast.BinAnd
		case "|":
			op = ast.BinOr
		default:
			op = ast.BinXor
		}
		right := p.parseAdditive()
		left = &ast.BinaryExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Op: op, L: left, R: right}
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for p.cur().IsOperator("+") || p.cur().IsOperator("-") {
		t := p.advance()
		op := ast.BinAdd
		if t.Lexeme == "-" {
			op = ast.BinSub
		}
		right := p.parseMultiplicative()
		left = &ast.BinaryExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Op: op, L: left, R: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parseUnary()
	for p.cur().IsOperator("*") || p.cur().IsOperator("/") || p.cur().IsOperator("%") {
		t := p.advance()
		var op ast.BinaryOp
		switch t.Lexeme {
		case "*":
			op = ast.BinMul
		case "/":
			op = ast.BinDiv
		default:
			op = ast.BinMod
		}
		right := p.parseUnary()
		left = &ast.BinaryExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Op: op, L: left, R: right}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	t := p.cur()
	switch {
	case t.IsOperator("-"):
		p.advance()
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Op: ast.UnNeg, X: p.parseUnary()}
	case t.IsOperator("~"):
		p.advance()
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Op: ast.UnBitNot, X: p.parseUnary()}
	case t.IsOperator("&"):
		p.advance()
		return &ast.AddrExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, X: p.parseUnary()}
	case t.IsKeyword("@next"):
		p.advance()
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Op: ast.UnNext, X: p.parseUnary()}
	case t.IsKeyword("@prev"):
		p.advance()
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Op: ast.UnPrev, X: p.parseUnary()}
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() ast.Expr {
	x := p.parsePrimary()
	for {
		t := p.cur()
		switch {
		case t.IsPunct("."):
			p.advance()
			name, _ := p.expectIdent()
			x = &ast.FieldExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, X: x, Field: name}
		case t.IsPunct("["):
			p.advance()
			idx := p.parseExpr()
			p.expectPunct("]")
			x = &ast.IndexExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, X: x, Index: idx}
		case t.IsKeyword("as"):
			p.advance()
			typ := p.parseTypeRef()
			x = &ast.CastExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, X: x, TargetTy: typ}
		default:
			return x
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	t := p.cur()
	switch {
	case t.Kind == token.IntLit:
		p.advance()
		return &ast.LiteralExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Kind: ast.LitInt, IntVal: t.IntVal}
	case t.Kind == token.CharLit:
		p.advance()
		return &ast.LiteralExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Kind: ast.LitChar, IntVal: t.IntVal}
	case t.Kind == token.StringLit:
		p.advance()
		return &ast.LiteralExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Kind: ast.LitString, StrVal: t.StrVal}
	case t.IsKeyword("nil"):
		p.advance()
		return &ast.LiteralExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Kind: ast.LitNil}
	case t.IsKeyword("@sizeof"), t.IsKeyword("@bytesof"), t.IsKeyword("@indexof"):
		p.advance()
		byBytes := t.Lexeme == "@bytesof"
		byIndex := t.Lexeme == "@indexof"
		paren := p.cur().IsPunct("(")
		if paren {
			p.advance()
		}
		typ := p.parseTypeRef()
		if paren {
			p.expectPunct(")")
		}
		return &ast.SizeofExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Operand: typ, ByBytes: byBytes, ByIndex: byIndex}
	case t.IsPunct("("):
		p.advance()
		x := p.parseExpr()
		p.expectPunct(")")
		return x
	case t.IsPunct("["):
		p.advance()
		var elems []ast.Expr
		for !p.cur().IsPunct("]") && !p.atEOF() {
			elems = append(elems, p.parseExpr())
			if p.cur().IsPunct(",") {
				p.advance()
			} else {
				break
			}
		}
		p.expectPunct("]")
		return &ast.ArrayInitExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Elems: elems}
	case t.Kind == token.Ident:
		p.advance()
		if p.cur().IsPunct("(") {
			p.advance()
			var args []ast.Expr
			for !p.cur().IsPunct(")") && !p.atEOF() {
				args = append(args, p.parseExpr())
				if p.cur().IsPunct(",") {
					p.advance()
				} else {
					break
				}
			}
			p.expectPunct(")")
			return &ast.CallExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Callee: t.Lexeme, Args: args}
		}
		return &ast.IdentExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Name: t.Lexeme}
	default:
		p.errorf("unexpected token %s in expression", t)
		p.advance()
		return &ast.LiteralExpr{ExprBase: ast.ExprBase{Loc: t.Pos}, Kind: ast.LitInt, IntVal: 0}
	}
}
