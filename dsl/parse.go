package dsl

import (
	"fmt"
	"strconv"
)

// Parse parses a BraneScript compilation unit.
//
// Parsing either succeeds completely or fails with a *ParseError carrying
// the source position of the first malformed construct. Deprecation
// warnings (such as for `on` blocks) are returned alongside the tree.
func Parse(file string, src []byte) (*Program, []Warning, error) {
	toks, err := Scan(file, src)
	if err != nil {
		return nil, nil, err
	}
	p := &parser{file: file, toks: toks}
	prog := &Program{File: file}
	for p.peek().Kind != EOF {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
	return prog, p.warnings, nil
}

type parser struct {
	file     string
	toks     []Token
	pos      int
	warnings []Warning
}

func (p *parser) peek() Token  { return p.toks[p.pos] }
func (p *parser) peek2() Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() Token {
	t := p.toks[p.pos]
	if t.Kind != EOF {
		p.pos++
	}
	return t
}

func (p *parser) got(kind TokenKind) (Token, bool) {
	if p.peek().Kind == kind {
		return p.next(), true
	}
	return Token{}, false
}

func (p *parser) expect(kind TokenKind, context string) (Token, error) {
	t := p.peek()
	if t.Kind != kind {
		return Token{}, p.errorf(t, "expected %s in %s, got %s", kind, context, t)
	}
	return p.next(), nil
}

func (p *parser) errorf(at Token, format string, args ...interface{}) error {
	return &ParseError{File: p.file, Range: at.Range, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) warnf(code WarningCode, rng TextRange, format string, args ...interface{}) {
	p.warnings = append(p.warnings, Warning{Code: code, Range: rng, Msg: fmt.Sprintf(format, args...)})
}

func (p *parser) parseStmt() (Stmt, error) {
	switch p.peek().Kind {
	case IMPORT:
		return p.parseImport()
	case FUNC:
		return p.parseFuncDef()
	case CLASS:
		return p.parseClassDef()
	case IF:
		return p.parseIf()
	case FOR:
		return p.parseFor()
	case WHILE:
		return p.parseWhile()
	case ON:
		return p.parseOn()
	case PARALLEL:
		return p.parseParallel(Token{}, nil)
	case RETURN:
		return p.parseReturn()
	case LET:
		// `let x := parallel ...` is a parallel statement, not a let.
		return p.parseLetOrParallel()
	case LBRACE:
		return p.parseBlock()
	default:
		return p.parseSimpleStmt()
	}
}

func (p *parser) parseImport() (Stmt, error) {
	imp := p.next()
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	version := ""
	if _, ok := p.got(LBRACK); ok {
		v, err := p.expect(SEMVER, "import version")
		if err != nil {
			return nil, err
		}
		version = v.Raw
		if _, err := p.expect(RBRACK, "import version"); err != nil {
			return nil, err
		}
	}
	semi, err := p.expect(SEMICOLON, "import statement")
	if err != nil {
		return nil, err
	}
	return &ImportStmt{
		Import:  imp.Range.Start,
		Package: name,
		Version: version,
		Range:   rangeSpan(imp.Range, semi.Range),
	}, nil
}

func (p *parser) parseFuncDef() (*FuncDefStmt, error) {
	fn := p.next()
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN, "function declaration"); err != nil {
		return nil, err
	}
	var params []*Ident
	if p.peek().Kind != RPAREN {
		for {
			param, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			params = append(params, param)
			if _, ok := p.got(COMMA); !ok {
				break
			}
		}
	}
	if _, err := p.expect(RPAREN, "function declaration"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FuncDefStmt{Func: fn.Range.Start, Name: name, Params: params, Body: body, Def: -1}, nil
}

func (p *parser) parseClassDef() (Stmt, error) {
	cls := p.next()
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE, "class declaration"); err != nil {
		return nil, err
	}
	def := &ClassDefStmt{Class: cls.Range.Start, Name: name, Def: -1}
	for p.peek().Kind != RBRACE {
		if p.peek().Kind == FUNC {
			m, err := p.parseFuncDef()
			if err != nil {
				return nil, err
			}
			def.Defs = append(def.Defs, m)
			continue
		}
		pname, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(COLON, "property declaration"); err != nil {
			return nil, err
		}
		ptype, err := p.parseType()
		if err != nil {
			return nil, err
		}
		semi, err := p.expect(SEMICOLON, "property declaration")
		if err != nil {
			return nil, err
		}
		def.Props = append(def.Props, &PropDecl{
			Name:  pname,
			Type:  ptype,
			Range: rangeSpan(pname.Span(), semi.Range),
		})
	}
	rbrace := p.next()
	def.Range = rangeSpan(cls.Range, rbrace.Range)
	return def, nil
}

// parseType parses a type name: int, string, a class name, or T[] arrays.
func (p *parser) parseType() (DataType, error) {
	name, err := p.expect(IDENT, "type")
	if err != nil {
		return DataType{}, err
	}
	var t DataType
	switch name.Raw {
	case "any":
		t = Any()
	case "bool", "boolean":
		t = Bool()
	case "int", "integer":
		t = Int()
	case "real", "float":
		t = Real()
	case "string":
		t = Str()
	default:
		t = Class(name.Raw)
	}
	for p.peek().Kind == LBRACK && p.peek2().Kind == RBRACK {
		p.next()
		p.next()
		t = Array(t)
	}
	return t, nil
}

func (p *parser) parseIf() (Stmt, error) {
	ifTok := p.next()
	if _, err := p.expect(LPAREN, "if statement"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN, "if statement"); err != nil {
		return nil, err
	}
	trueBlock, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{If: ifTok.Range.Start, Cond: cond, True: trueBlock}
	if _, ok := p.got(ELSE); ok {
		if p.peek().Kind == IF {
			// else-if chains desugar into a nested block.
			nested, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			rng := nested.Span()
			stmt.False = &Block{Lbrace: rng.Start, Stmts: []Stmt{nested}, Rbrace: rng.End}
		} else {
			stmt.False, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		}
	}
	return stmt, nil
}

func (p *parser) parseFor() (Stmt, error) {
	forTok := p.next()
	if _, err := p.expect(LPAREN, "for statement"); err != nil {
		return nil, err
	}
	init, err := p.parseForClause(true)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON, "for statement"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON, "for statement"); err != nil {
		return nil, err
	}
	step, err := p.parseForClause(false)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN, "for statement"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ForStmt{For: forTok.Range.Start, Init: init, Cond: cond, Step: step, Body: body}, nil
}

// parseForClause parses the init or step clause of a for loop, which look
// like let/assign statements without a trailing semicolon.
func (p *parser) parseForClause(allowLet bool) (Stmt, error) {
	if allowLet && p.peek().Kind == LET {
		let := p.next()
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(ASSIGN, "for initializer"); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &LetStmt{
			Let: let.Range.Start, Name: name, Value: value,
			Range: rangeSpan(let.Range, value.Span()),
		}, nil
	}
	target, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(ASSIGN, "for clause"); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &AssignStmt{Target: target, Value: value, Range: rangeSpan(target.Span(), value.Span())}, nil
}

func (p *parser) parseWhile() (Stmt, error) {
	whileTok := p.next()
	if _, err := p.expect(LPAREN, "while statement"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN, "while statement"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{While: whileTok.Range.Start, Cond: cond, Body: body}, nil
}

func (p *parser) parseOn() (Stmt, error) {
	onTok := p.next()
	loc, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &OnStmt{On: onTok.Range.Start, Location: loc, Body: body}
	p.warnf(WarnOnDeprecated, stmt.Span(), "'on' blocks are deprecated; annotate the call site instead")
	return stmt, nil
}

// parseLetOrParallel disambiguates `let x := parallel ...` from a plain let.
func (p *parser) parseLetOrParallel() (Stmt, error) {
	// Lookahead: LET IDENT ASSIGN PARALLEL.
	if p.pos+3 < len(p.toks) &&
		p.toks[p.pos+1].Kind == IDENT &&
		p.toks[p.pos+2].Kind == ASSIGN &&
		p.toks[p.pos+3].Kind == PARALLEL {
		let := p.next()
		name, _ := p.parseIdent()
		p.next() // :=
		return p.parseParallel(let, name)
	}
	return p.parseLet()
}

func (p *parser) parseLet() (Stmt, error) {
	let := p.next()
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(ASSIGN, "let statement"); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	semi, err := p.expect(SEMICOLON, "let statement")
	if err != nil {
		return nil, err
	}
	return &LetStmt{Let: let.Range.Start, Name: name, Value: value, Range: rangeSpan(let.Range, semi.Range)}, nil
}

func (p *parser) parseParallel(let Token, result *Ident) (Stmt, error) {
	par, err := p.expect(PARALLEL, "parallel statement")
	if err != nil {
		return nil, err
	}
	stmt := &ParallelStmt{Parallel: par.Range.Start, Result: result, Def: -1}
	if result != nil {
		stmt.Let = let.Range.Start
	}

	// An optional merge strategy: parallel [all] [ ... ].
	// Disambiguated from the branch list by what follows the bracket.
	if p.peek().Kind == LBRACK {
		switch p.peek2().Kind {
		case IDENT, PLUS, STAR:
			p.next()
			strat := p.next()
			stmt.Strategy = strat.Raw
			if strat.Kind == IDENT && p.peek().Kind == STAR {
				p.next()
				stmt.Strategy += "*"
			}
			if _, err := p.expect(RBRACK, "merge strategy"); err != nil {
				return nil, err
			}
		}
	}

	if _, err := p.expect(LBRACK, "parallel statement"); err != nil {
		return nil, err
	}
	if p.peek().Kind != RBRACK {
		for {
			var branch Stmt
			var err error
			if p.peek().Kind == ON {
				branch, err = p.parseOn()
			} else {
				branch, err = p.parseBlock()
			}
			if err != nil {
				return nil, err
			}
			stmt.Branches = append(stmt.Branches, branch)
			if _, ok := p.got(COMMA); !ok {
				break
			}
		}
	}
	if _, err := p.expect(RBRACK, "parallel statement"); err != nil {
		return nil, err
	}
	semi, err := p.expect(SEMICOLON, "parallel statement")
	if err != nil {
		return nil, err
	}
	start := par.Range
	if result != nil {
		start = let.Range
	}
	stmt.Range = rangeSpan(start, semi.Range)
	return stmt, nil
}

func (p *parser) parseReturn() (Stmt, error) {
	ret := p.next()
	stmt := &ReturnStmt{Return: ret.Range.Start}
	if p.peek().Kind != SEMICOLON {
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Value = value
	}
	semi, err := p.expect(SEMICOLON, "return statement")
	if err != nil {
		return nil, err
	}
	stmt.Range = rangeSpan(ret.Range, semi.Range)
	return stmt, nil
}

func (p *parser) parseBlock() (*Block, error) {
	lbrace, err := p.expect(LBRACE, "block")
	if err != nil {
		return nil, err
	}
	block := &Block{Lbrace: lbrace.Range.Start}
	for p.peek().Kind != RBRACE {
		if p.peek().Kind == EOF {
			return nil, p.errorf(p.peek(), "unexpected end of file in block")
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, stmt)
	}
	rbrace := p.next()
	block.Rbrace = rbrace.Range.Start
	return block, nil
}

// parseSimpleStmt parses an assignment or expression statement.
func (p *parser) parseSimpleStmt() (Stmt, error) {
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind == ASSIGN {
		switch x.(type) {
		case *Ident, *ProjExpr:
		default:
			return nil, p.errorf(p.peek(), "cannot assign to this expression")
		}
		p.next()
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		semi, err := p.expect(SEMICOLON, "assignment")
		if err != nil {
			return nil, err
		}
		return &AssignStmt{Target: x, Value: value, Range: rangeSpan(x.Span(), semi.Range)}, nil
	}
	semi, err := p.expect(SEMICOLON, "expression statement")
	if err != nil {
		return nil, err
	}
	return &ExprStmt{X: x, Range: rangeSpan(x.Span(), semi.Range)}, nil
}

func (p *parser) parseIdent() (*Ident, error) {
	t, err := p.expect(IDENT, "identifier")
	if err != nil {
		return nil, err
	}
	return &Ident{NamePos: t.Range.Start, Name: t.Raw, Def: -1}, nil
}

// Binary operator precedence, loosest first.
var binaryPrec = map[TokenKind]int{
	OR:      1,
	AND:     2,
	EQ:      3,
	NE:      3,
	LT:      4,
	LE:      4,
	GT:      4,
	GE:      4,
	PLUS:    5,
	MINUS:   5,
	STAR:    6,
	SLASH:   6,
	PERCENT: 6,
}

func (p *parser) parseExpr() (Expr, error) { return p.parseBinary(1) }

// parseBinary implements precedence climbing over binaryPrec.
func (p *parser) parseBinary(minPrec int) (Expr, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		prec, ok := binaryPrec[op.Kind]
		if !ok || prec < minPrec {
			return x, nil
		}
		p.next()
		y, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{X: x, OpPos: op.Range.Start, Op: op.Kind, Y: y}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	switch p.peek().Kind {
	case NOT, MINUS:
		op := p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{OpPos: op.Range.Start, Op: op.Kind, X: x}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Kind {
		case LPAREN:
			lparen := p.next()
			call := &CallExpr{Fn: x, Lparen: lparen.Range.Start, Def: -1}
			if p.peek().Kind != RPAREN {
				for {
					arg, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					call.Args = append(call.Args, arg)
					if _, ok := p.got(COMMA); !ok {
						break
					}
				}
			}
			rparen, err := p.expect(RPAREN, "call expression")
			if err != nil {
				return nil, err
			}
			call.Rparen = rparen.Range.Start
			x = call
		case LBRACK:
			lbrack := p.next()
			index, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			rbrack, err := p.expect(RBRACK, "index expression")
			if err != nil {
				return nil, err
			}
			x = &IndexExpr{X: x, Lbrack: lbrack.Range.Start, Index: index, Rbrack: rbrack.Range.Start}
		case DOT:
			dot := p.next()
			name, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			x = &ProjExpr{X: x, Dot: dot.Range.Start, Name: name}
		default:
			return x, nil
		}
	}
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.peek()
	switch t.Kind {
	case INT:
		p.next()
		v, err := strconv.ParseInt(t.Raw, 10, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid integer literal %q: %v", t.Raw, err)
		}
		return &Literal{Kind: LitInt, Raw: t.Raw, Int: v, Range: t.Range}, nil
	case REAL:
		p.next()
		v, err := strconv.ParseFloat(t.Raw, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid real literal %q: %v", t.Raw, err)
		}
		return &Literal{Kind: LitReal, Raw: t.Raw, Real: v, Range: t.Range}, nil
	case STRING:
		p.next()
		return &Literal{Kind: LitString, Raw: t.Raw, Str: t.Text, Range: t.Range}, nil
	case SEMVER:
		p.next()
		return &Literal{Kind: LitSemver, Raw: t.Raw, Str: t.Raw, Range: t.Range}, nil
	case TRUE, FALSE:
		p.next()
		return &Literal{Kind: LitBool, Raw: t.Raw, Bool: t.Kind == TRUE, Range: t.Range}, nil
	case NULL:
		p.next()
		return &Literal{Kind: LitNull, Raw: t.Raw, Range: t.Range}, nil
	case IDENT:
		return p.parseIdent()
	case LPAREN:
		p.next()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN, "parenthesized expression"); err != nil {
			return nil, err
		}
		return x, nil
	case LBRACK:
		lbrack := p.next()
		arr := &ArrayExpr{Lbrack: lbrack.Range.Start}
		if p.peek().Kind != RBRACK {
			for {
				elem, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				arr.Elems = append(arr.Elems, elem)
				if _, ok := p.got(COMMA); !ok {
					break
				}
			}
		}
		rbrack, err := p.expect(RBRACK, "array literal")
		if err != nil {
			return nil, err
		}
		arr.Rbrack = rbrack.Range.Start
		return arr, nil
	case NEW:
		newTok := p.next()
		class, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(LBRACE, "instance expression"); err != nil {
			return nil, err
		}
		inst := &InstanceExpr{New: newTok.Range.Start, Class: class, Def: -1}
		for p.peek().Kind != RBRACE {
			name, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(ASSIGN, "instance property"); err != nil {
				return nil, err
			}
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			inst.Props = append(inst.Props, &PropAssign{
				Name: name, Value: value,
				Range: rangeSpan(name.Span(), value.Span()),
			})
			if _, ok := p.got(COMMA); !ok {
				break
			}
		}
		rbrace, err := p.expect(RBRACE, "instance expression")
		if err != nil {
			return nil, err
		}
		inst.Rbrace = rbrace.Range.Start
		return inst, nil
	}
	return nil, p.errorf(t, "unexpected %s", t)
}
