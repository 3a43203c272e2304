package ast

import "testing"

func TestOperatorPrecedenceOrdering(t *testing.T) {
	if OpMul.Precedence() <= OpAdd.Precedence() {
		t.Fatal("* should bind tighter than +")
	}
	if OpAdd.Precedence() <= UnionPrecedence {
		t.Fatal("+ should bind tighter than |")
	}
	if UnionPrecedence <= OpLt.Precedence() {
		t.Fatal("| should bind tighter than <")
	}
	if OpAnd.Precedence() <= OpOr.Precedence() {
		t.Fatal("and should bind tighter than or")
	}
	if OpOr.Precedence() <= OpImplies.Precedence() {
		t.Fatal("or should bind tighter than implies")
	}
}

func TestImpliesIsRightAssociative(t *testing.T) {
	if OpImplies.Associativity() != RightAssoc {
		t.Fatal("implies must be right-associative")
	}
	if OpAdd.Associativity() != LeftAssoc {
		t.Fatal("+ must be left-associative")
	}
}

func TestBinaryOpBySymbol(t *testing.T) {
	op, ok := BinaryOpBySymbol("mod")
	if !ok || op != OpMod {
		t.Fatalf("BinaryOpBySymbol(mod) = %v, %v", op, ok)
	}
}

func TestNodeSpans(t *testing.T) {
	n := NewIdentifier(Span{Start: 1, End: 4}, "foo")
	if n.Span() != (Span{Start: 1, End: 4}) {
		t.Fatalf("unexpected span: %+v", n.Span())
	}
}
