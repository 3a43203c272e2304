// Package ast defines the FHIRPath abstract syntax tree (spec component
// C4): a sum type of node variants, each carrying an optional source span,
// plus the operator precedence/associativity tables internal/parse builds
// against. Node constructors are pure; the tree produced by a parse is
// shared by reference (a tree, not a DAG) across evaluation and analysis.
//
// This package exists independent of any parser-generator tree shape
// (unlike the teacher's ANTLR-context-as-AST approach) so that the static
// analyzer (package analysis) and any downstream tooling can walk a stable
// node shape with spans, per the specification's external-interfaces
// requirement.
package ast

import "github.com/fhirpath-go/corefhirpath/value"

// Span is a byte-offset range into the source text that produced a node.
// The zero Span means "no span recorded" (e.g. a node built by a host
// program rather than the parser).
type Span struct {
	Start, End int
}

// Node is the sealed interface implemented by every AST variant.
type Node interface {
	Span() Span
	isNode()
}

type base struct{ span Span }

func (b base) Span() Span { return b.span }
func (base) isNode()      {}

// Literal is a constant value written directly in the source, e.g. 42,
// 'hello', @2020-01-01, true.
type Literal struct {
	base
	Value value.Value
}

func NewLiteral(span Span, v value.Value) *Literal {
	return &Literal{base: base{span}, Value: v}
}

// Identifier is a bare name resolved against the current input — a root
// property, a type name, or (falling back) a type-check-only hit.
type Identifier struct {
	base
	Name string
}

func NewIdentifier(span Span, name string) *Identifier {
	return &Identifier{base: base{span}, Name: name}
}

// FunctionCall invokes a named operation against the current input,
// unchanged (as opposed to MethodCall, which first evaluates a receiver).
type FunctionCall struct {
	base
	Name string
	Args []Node
}

func NewFunctionCall(span Span, name string, args []Node) *FunctionCall {
	return &FunctionCall{base: base{span}, Name: name, Args: args}
}

// MethodCall evaluates Receiver, then invokes Name with the receiver's
// result pushed as the implicit input.
type MethodCall struct {
	base
	Receiver Node
	Name     string
	Args     []Node
}

func NewMethodCall(span Span, recv Node, name string, args []Node) *MethodCall {
	return &MethodCall{base: base{span}, Receiver: recv, Name: name, Args: args}
}

// PropertyAccess reads property Name off every item in Receiver's result.
type PropertyAccess struct {
	base
	Receiver Node
	Name     string
}

func NewPropertyAccess(span Span, recv Node, name string) *PropertyAccess {
	return &PropertyAccess{base: base{span}, Receiver: recv, Name: name}
}

// Path collapses a run of two or more consecutive bare property accesses
// (no calls, no indices in between) into a single node, e.g.
// `Patient.name.given` parses as Path{Base: Identifier("Patient"),
// Segments: ["name", "given"]} rather than nested PropertyAccess. This is a
// parser-level flattening, not a semantic difference: evaluating a Path is
// identical to evaluating the equivalent nested PropertyAccess chain.
type Path struct {
	base
	Base     Node
	Segments []string
}

func NewPath(span Span, baseNode Node, segments []string) *Path {
	return &Path{base: base{span}, Base: baseNode, Segments: segments}
}

// IndexAccess takes the Index-th (0-based) element of Receiver's result.
type IndexAccess struct {
	base
	Receiver Node
	Index    Node
}

func NewIndexAccess(span Span, recv, index Node) *IndexAccess {
	return &IndexAccess{base: base{span}, Receiver: recv, Index: index}
}

// Filter is the bracket-predicate form `base[condition]`: condition is
// evaluated once per element of base (like where()'s lambda), keeping
// elements for which it is true. The parser distinguishes this from
// IndexAccess by inspecting the bracketed expression: a top-level
// comparison/equality/logical/membership operator (or unary not) signals a
// predicate; anything else (an integer literal or arithmetic expression) is
// treated as a plain index.
type Filter struct {
	base
	Receiver  Node
	Condition Node
}

func NewFilter(span Span, recv, cond Node) *Filter {
	return &Filter{base: base{span}, Receiver: recv, Condition: cond}
}

// Binary is a binary operator application.
type Binary struct {
	base
	Op          BinaryOp
	Left, Right Node
}

func NewBinary(span Span, op BinaryOp, left, right Node) *Binary {
	return &Binary{base: base{span}, Op: op, Left: left, Right: right}
}

// Union is the `|` set-union operator. It has its own node (rather than
// being folded into Binary) because its type rules (operand-cardinality,
// not operand-type, driven) differ from every other binary operator.
type Union struct {
	base
	Left, Right Node
}

func NewUnion(span Span, left, right Node) *Union {
	return &Union{base: base{span}, Left: left, Right: right}
}

// Unary is a prefix operator application (+, -, not).
type Unary struct {
	base
	Op      UnaryOp
	Operand Node
}

func NewUnary(span Span, op UnaryOp, operand Node) *Unary {
	return &Unary{base: base{span}, Op: op, Operand: operand}
}

// Lambda is an unevaluated expression passed to a lambda-argument-position
// parameter (where, select, all, ...). Param is non-empty only for
// operations that bind a named (rather than $this-only) parameter; none of
// the core operations do. The evaluator accepts a Lambda node, but the core
// parser never builds one: lambda-position arguments stay plain nodes.
type Lambda struct {
	base
	Param string
	Body  Node
}

func NewLambda(span Span, param string, body Node) *Lambda {
	return &Lambda{base: base{span}, Param: param, Body: body}
}

// CollectionLiteral is an explicit `{e1, e2, ...}` or empty `{}` literal.
type CollectionLiteral struct {
	base
	Elements []Node
}

func NewCollectionLiteral(span Span, elements []Node) *CollectionLiteral {
	return &CollectionLiteral{base: base{span}, Elements: elements}
}

// Parenthesized wraps a parenthesized sub-expression, preserved in the tree
// so diagnostics and pretty-printing can reproduce explicit grouping.
type Parenthesized struct {
	base
	Inner Node
}

func NewParenthesized(span Span, inner Node) *Parenthesized {
	return &Parenthesized{base: base{span}, Inner: inner}
}

// TypeCast is the `as` operator in type-operator form: expr as TypeName.
type TypeCast struct {
	base
	Expr   Node
	Target TypeName
}

func NewTypeCast(span Span, expr Node, target TypeName) *TypeCast {
	return &TypeCast{base: base{span}, Expr: expr, Target: target}
}

// TypeCheck is the `is` operator in type-operator form: expr is TypeName.
type TypeCheck struct {
	base
	Expr   Node
	Target TypeName
}

func NewTypeCheck(span Span, expr Node, target TypeName) *TypeCheck {
	return &TypeCheck{base: base{span}, Expr: expr, Target: target}
}

// Variable is an environment (%name) or lexical ($name) variable reference.
// Sigil is '%' or '$'.
type Variable struct {
	base
	Sigil rune
	Name  string
}

func NewVariable(span Span, sigil rune, name string) *Variable {
	return &Variable{base: base{span}, Sigil: sigil, Name: name}
}

// TypeInfoNode is a bare (namespace.)name type specifier used as the right
// operand of is/as/ofType, reified as a standalone node so it can also be
// evaluated directly (e.g. as an ofType() argument).
type TypeInfoNode struct {
	base
	Target TypeName
}

func NewTypeInfoNode(span Span, target TypeName) *TypeInfoNode {
	return &TypeInfoNode{base: base{span}, Target: target}
}

// TypeName is a (namespace, name) type specifier as written in source; the
// namespace is empty when unqualified (e.g. `Patient` rather than
// `FHIR.Patient`).
type TypeName struct {
	Namespace string
	Name      string
}

func (t TypeName) String() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}
