// Package parse implements the FHIRPath grammar (spec component C3,
// syntactic half): a hand-written precedence-climbing parser over the
// internal/lex token stream, producing an ast.Node tree plus diagnostics.
//
// Every FHIRPath parser in the example pack (the teacher, robertoAraneda-gofhir,
// and gofhir-validator's fhirpath dependency) is ANTLR-generated from a .g4
// grammar; this exercise cannot invoke the ANTLR toolchain, so the grammar
// described in spec.md section 4.3 is implemented directly instead, keeping
// the teacher's error-listener idiom (diagnostics collected rather than
// panicking) in spirit.
package parse

import (
	"fmt"

	"github.com/fhirpath-go/corefhirpath/ast"
	"github.com/fhirpath-go/corefhirpath/diag"
	"github.com/fhirpath-go/corefhirpath/internal/lex"
	"github.com/fhirpath-go/corefhirpath/value"
)

// syncPunct is the set of token texts the parser skips to after a syntax
// error, per spec.md's recovery rule ("the next synchronization token: ,
// ) ] . or top level").
var syncPunct = map[string]bool{",": true, ")": true, "]": true, ".": true}

type parser struct {
	toks  []lex.Token
	pos   int
	diags []diag.Diagnostic
}

// Parse tokenizes and parses src into an AST, collecting both lexical and
// syntactic diagnostics. It never panics: a malformed expression still
// returns a best-effort tree so downstream tooling has something to inspect.
func Parse(src string) (ast.Node, []diag.Diagnostic) {
	toks, lexDiags := lex.Lex(src)
	p := &parser{toks: toks, diags: lexDiags}
	if len(toks) == 1 { // EOF only
		return ast.NewLiteral(ast.Span{}, value.Empty()), p.diags
	}
	node := p.parseExpr(1)
	if !p.atEOF() {
		tok := p.cur()
		p.errf(diag.EUnexpectedToken, tok.Start, tok.End, fmt.Sprintf("unexpected trailing token %q", tok.Text))
	}
	return collapsePaths(node), p.diags
}

func (p *parser) cur() lex.Token  { return p.toks[p.pos] }
func (p *parser) atEOF() bool     { return p.cur().Kind == lex.EOF }
func (p *parser) advance() lex.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errf(code diag.Code, start, end int, detail string) {
	d := diag.New(code, diag.Span{Start: start, End: end})
	d.Detail = detail
	p.diags = append(p.diags, d)
}

// synchronize skips tokens until a recovery point (a synchronization
// punctuation, or EOF) is reached, per spec.md section 4.3.
func (p *parser) synchronize() {
	for !p.atEOF() {
		t := p.cur()
		if (t.Kind == lex.Punct || t.Kind == lex.Operator) && syncPunct[t.Text] {
			return
		}
		p.advance()
	}
}

func span(start, end int) ast.Span { return ast.Span{Start: start, End: end} }

// parseExpr is the precedence-climbing entry point: minPrec is the lowest
// binary operator precedence this call is willing to consume.
func (p *parser) parseExpr(minPrec int) ast.Node {
	left := p.parseUnary()
	for {
		tok := p.cur()
		text := tok.Text

		if tok.Kind == lex.Operator && text == "|" {
			if ast.UnionPrecedence < minPrec {
				break
			}
			p.advance()
			right := p.parseExpr(ast.UnionPrecedence + 1)
			left = ast.NewUnion(span(left.Span().Start, right.Span().End), left, right)
			continue
		}

		if tok.Kind == lex.Keyword && (text == "is" || text == "as") {
			const prec = 10
			if prec < minPrec {
				break
			}
			p.advance()
			target := p.parseTypeName()
			end := p.prevEnd()
			if text == "is" {
				left = ast.NewTypeCheck(span(left.Span().Start, end), left, target)
			} else {
				left = ast.NewTypeCast(span(left.Span().Start, end), left, target)
			}
			continue
		}

		if tok.Kind != lex.Operator && tok.Kind != lex.Keyword {
			break
		}
		op, ok := ast.BinaryOpBySymbol(text)
		if !ok {
			break
		}
		prec := op.Precedence()
		if prec < minPrec {
			break
		}
		p.advance()
		nextMin := prec + 1
		if op.Associativity() == ast.RightAssoc {
			nextMin = prec
		}
		right := p.parseExpr(nextMin)
		left = ast.NewBinary(span(left.Span().Start, right.Span().End), op, left, right)
	}
	return left
}

func (p *parser) prevEnd() int {
	if p.pos == 0 {
		return 0
	}
	return p.toks[p.pos-1].End
}

// parseUnary handles the prefix operators -, +, not, which bind tighter
// than every binary operator (spec.md: "Unary -, +, not bind tighter than
// any binary operator").
func (p *parser) parseUnary() ast.Node {
	tok := p.cur()
	var op ast.UnaryOp
	switch {
	case tok.Kind == lex.Operator && tok.Text == "-":
		op = ast.UnaryMinus
	case tok.Kind == lex.Operator && tok.Text == "+":
		op = ast.UnaryPlus
	case tok.Kind == lex.Keyword && tok.Text == "not":
		op = ast.UnaryNot
	default:
		return p.parsePostfix(p.parsePrimary())
	}
	p.advance()
	operand := p.parseUnary()
	return ast.NewUnary(span(tok.Start, operand.Span().End), op, operand)
}

// parsePostfix consumes the postfix chain (.prop, .method(args), [index])
// that can follow any primary expression.
func (p *parser) parsePostfix(node ast.Node) ast.Node {
	for {
		tok := p.cur()
		switch {
		case tok.Kind == lex.Punct && tok.Text == ".":
			p.advance()
			node = p.parseMemberAccess(node)
		case tok.Kind == lex.Punct && tok.Text == "[":
			p.advance()
			inner := p.parseExpr(1)
			endTok := p.expectPunct("]")
			if isPredicateLike(inner) {
				node = ast.NewFilter(span(node.Span().Start, endTok), node, inner)
			} else {
				node = ast.NewIndexAccess(span(node.Span().Start, endTok), node, inner)
			}
		default:
			return node
		}
	}
}

// isPredicateLike reports whether a bracketed expression looks like a
// where()-style boolean predicate rather than a plain integer index, per
// ast.Filter's doc comment.
func isPredicateLike(n ast.Node) bool {
	switch t := n.(type) {
	case *ast.Binary:
		switch t.Op {
		case ast.OpEq, ast.OpNeq, ast.OpEquiv, ast.OpNequiv,
			ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte,
			ast.OpAnd, ast.OpOr, ast.OpXor, ast.OpImplies,
			ast.OpIn, ast.OpContains:
			return true
		}
		return false
	case *ast.Unary:
		return t.Op == ast.UnaryNot
	case *ast.TypeCheck:
		return true
	default:
		return false
	}
}

func (p *parser) parseMemberAccess(recv ast.Node) ast.Node {
	tok := p.cur()
	name, nameEnd, ok := p.parseIdentifierName()
	if !ok {
		p.errf(diag.EExpectedToken, tok.Start, tok.End, "expected a property or function name after '.'")
		return recv
	}
	if p.cur().Kind == lex.Punct && p.cur().Text == "(" {
		args, endPos := p.parseArgList()
		args = rewriteTypeSpecifierArgs(name, args)
		return ast.NewMethodCall(span(recv.Span().Start, endPos), recv, name, args)
	}
	return ast.NewPropertyAccess(span(recv.Span().Start, nameEnd), recv, name)
}

// parseIdentifierName accepts a plain or delimited identifier. FHIRPath
// allows some keywords to appear as property/function names in member
// position (e.g. Patient.contains isn't legal FHIRPath, but `as`/`is` are
// reserved even here); we accept identifiers and delimited identifiers only.
func (p *parser) parseIdentifierName() (name string, end int, ok bool) {
	tok := p.cur()
	if tok.Kind == lex.Identifier || tok.Kind == lex.DelimitedIdentifier {
		p.advance()
		return tok.Text, tok.End, true
	}
	return "", tok.Start, false
}

func (p *parser) parseArgList() (args []ast.Node, endPos int) {
	p.advance() // '('
	if p.cur().Kind == lex.Punct && p.cur().Text == ")" {
		end := p.advance().End
		return nil, end
	}
	for {
		args = append(args, p.parseExpr(1))
		if p.cur().Kind == lex.Punct && p.cur().Text == "," {
			p.advance()
			continue
		}
		break
	}
	end := p.expectPunct(")")
	return args, end
}

func (p *parser) expectPunct(text string) int {
	tok := p.cur()
	if (tok.Kind == lex.Punct || tok.Kind == lex.Operator) && tok.Text == text {
		p.advance()
		return tok.End
	}
	p.errf(diag.EExpectedToken, tok.Start, tok.End, fmt.Sprintf("expected %q", text))
	p.synchronize()
	return p.prevEnd()
}

func (p *parser) parsePrimary() ast.Node {
	tok := p.cur()
	switch {
	case tok.Kind == lex.Number:
		return p.parseNumberLiteral(tok)
	case tok.Kind == lex.String:
		p.advance()
		return ast.NewLiteral(span(tok.Start, tok.End), value.String(tok.Text))
	case tok.Kind == lex.DateTimeLiteral:
		p.advance()
		v, err := ParseTemporalLiteral(tok.Text)
		if err != nil {
			p.errf(diag.EInvalidDateTime, tok.Start, tok.End, err.Error())
			return ast.NewLiteral(span(tok.Start, tok.End), value.Empty())
		}
		return ast.NewLiteral(span(tok.Start, tok.End), v)
	case tok.Kind == lex.Keyword && tok.Text == "true":
		p.advance()
		return ast.NewLiteral(span(tok.Start, tok.End), value.Boolean(true))
	case tok.Kind == lex.Keyword && tok.Text == "false":
		p.advance()
		return ast.NewLiteral(span(tok.Start, tok.End), value.Boolean(false))
	case tok.Kind == lex.Variable:
		p.advance()
		return ast.NewVariable(span(tok.Start, tok.End), '$', tok.Text)
	case tok.Kind == lex.EnvVariable:
		p.advance()
		return ast.NewVariable(span(tok.Start, tok.End), '%', tok.Text)
	case tok.Kind == lex.Punct && tok.Text == "(":
		p.advance()
		inner := p.parseExpr(1)
		end := p.expectPunct(")")
		return ast.NewParenthesized(span(tok.Start, end), inner)
	case tok.Kind == lex.Punct && tok.Text == "{":
		return p.parseCollectionLiteral(tok)
	case tok.Kind == lex.Identifier || tok.Kind == lex.DelimitedIdentifier:
		p.advance()
		if p.cur().Kind == lex.Punct && p.cur().Text == "(" {
			args, end := p.parseArgList()
			args = rewriteTypeSpecifierArgs(tok.Text, args)
			return ast.NewFunctionCall(span(tok.Start, end), tok.Text, args)
		}
		return ast.NewIdentifier(span(tok.Start, tok.End), tok.Text)
	default:
		p.errf(diag.EUnexpectedToken, tok.Start, tok.End, fmt.Sprintf("unexpected token %q", tok.Text))
		p.synchronize()
		return ast.NewLiteral(span(tok.Start, tok.End), value.Empty())
	}
}

// parseNumberLiteral parses a NUMBER token and, per spec.md section 4.3's
// quantity grammar (`NUMBER unit?`), an immediately following unit — either a
// quoted UCUM string or a bare calendar-duration keyword (year/month/week/
// day/hour/minute/second/millisecond, singular or plural) — folding the pair
// into a single value.Quantity literal rather than leaving the unit token to
// be reported as unexpected trailing input.
func (p *parser) parseNumberLiteral(tok lex.Token) ast.Node {
	p.advance()
	if unit, end, ok := p.parseQuantityUnit(); ok {
		d, err := value.ParseDecimal(tok.Text)
		if err != nil {
			p.errf(diag.EInvalidNumber, tok.Start, tok.End, err.Error())
			return ast.NewLiteral(span(tok.Start, end), value.Empty())
		}
		return ast.NewLiteral(span(tok.Start, end), value.NewQuantity(d, unit))
	}
	if containsDot(tok.Text) {
		d, err := value.ParseDecimal(tok.Text)
		if err != nil {
			p.errf(diag.EInvalidNumber, tok.Start, tok.End, err.Error())
			return ast.NewLiteral(span(tok.Start, tok.End), value.Empty())
		}
		return ast.NewLiteral(span(tok.Start, tok.End), d)
	}
	var n int64
	if _, err := fmt.Sscanf(tok.Text, "%d", &n); err != nil {
		p.errf(diag.EInvalidNumber, tok.Start, tok.End, err.Error())
		return ast.NewLiteral(span(tok.Start, tok.End), value.Empty())
	}
	return ast.NewLiteral(span(tok.Start, tok.End), value.Integer(n))
}

// calendarUnitUCUM maps a bare calendar-duration keyword to its UCUM unit
// code, matching the codes value/quantity.go's ucumFactors table already
// treats as calendar units ("a", "mo") or definite-duration units of the
// corresponding dimension.
var calendarUnitUCUM = map[string]string{
	"year": "a", "years": "a",
	"month": "mo", "months": "mo",
	"week": "wk", "weeks": "wk",
	"day": "d", "days": "d",
	"hour": "h", "hours": "h",
	"minute": "min", "minutes": "min",
	"second": "s", "seconds": "s",
	"millisecond": "ms", "milliseconds": "ms",
}

// parseQuantityUnit consumes a quantity unit token immediately following a
// number, if present: a quoted string (its unescaped text used verbatim as
// the UCUM unit) or a bare calendar-duration keyword. Reports ok=false
// without consuming anything when the current token is neither.
func (p *parser) parseQuantityUnit() (unit string, end int, ok bool) {
	tok := p.cur()
	if tok.Kind == lex.String {
		p.advance()
		return tok.Text, tok.End, true
	}
	if tok.Kind == lex.Identifier {
		if ucum, known := calendarUnitUCUM[tok.Text]; known {
			p.advance()
			return ucum, tok.End, true
		}
	}
	return "", 0, false
}

func containsDot(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return true
		}
	}
	return false
}

func (p *parser) parseCollectionLiteral(open lex.Token) ast.Node {
	p.advance() // '{'
	if p.cur().Kind == lex.Punct && p.cur().Text == "}" {
		end := p.advance().End
		return ast.NewCollectionLiteral(span(open.Start, end), nil)
	}
	var elems []ast.Node
	for {
		elems = append(elems, p.parseExpr(1))
		if p.cur().Kind == lex.Punct && p.cur().Text == "," {
			p.advance()
			continue
		}
		break
	}
	end := p.expectPunct("}")
	return ast.NewCollectionLiteral(span(open.Start, end), elems)
}

// typeSpecifierFuncs names the call-form functions whose sole argument is a
// type specifier (a bare name or Namespace.Name pair) rather than a navigable
// expression, per spec.md 4.6. is/as use the dedicated parseTypeName path
// above instead since they're binary-operator-shaped, not calls.
var typeSpecifierFuncs = map[string]bool{"ofType": true}

// rewriteTypeSpecifierArgs replaces a type-specifier call's single argument
// — parsed generically by parseArgList as an Identifier or a bare
// PropertyAccess chain like FHIR.Patient — with an ast.TypeInfoNode, so eval
// (and the registry's type operations, which read it back out as a
// pre-evaluated value.TypeInfoObject) receive it as a type specifier instead
// of a navigational expression that would try and fail to look up a property
// or resource named "Patient".
func rewriteTypeSpecifierArgs(name string, args []ast.Node) []ast.Node {
	if !typeSpecifierFuncs[name] || len(args) != 1 {
		return args
	}
	tn, ok := typeNameFromExpr(args[0])
	if !ok {
		return args
	}
	args[0] = ast.NewTypeInfoNode(args[0].Span(), tn)
	return args
}

// typeNameFromExpr recovers the ast.TypeName a bare identifier or
// Namespace.Name property-access chain denotes.
func typeNameFromExpr(n ast.Node) (ast.TypeName, bool) {
	switch t := n.(type) {
	case *ast.Identifier:
		return ast.TypeName{Name: t.Name}, true
	case *ast.PropertyAccess:
		if recv, ok := t.Receiver.(*ast.Identifier); ok {
			return ast.TypeName{Namespace: recv.Name, Name: t.Name}, true
		}
	}
	return ast.TypeName{}, false
}

// parseTypeName parses the right-hand operand of is/as: a bare name
// or Namespace.Name pair (never an arbitrary expression, per spec.md 4.3).
func (p *parser) parseTypeName() ast.TypeName {
	first, _, ok := p.parseIdentifierName()
	if !ok {
		tok := p.cur()
		p.errf(diag.EInvalidTypeSpecifier, tok.Start, tok.End, "expected a type name")
		return ast.TypeName{}
	}
	if p.cur().Kind == lex.Punct && p.cur().Text == "." {
		p.advance()
		second, _, ok := p.parseIdentifierName()
		if ok {
			return ast.TypeName{Namespace: first, Name: second}
		}
	}
	return ast.TypeName{Name: first}
}
