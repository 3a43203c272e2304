package ast

// BinaryOp identifies a binary operator. Symbols and precedence/associativity
// are exposed through helper methods below, grounded on original_source's
// octofhir-fhirpath/src/ast/operator.rs (operator metadata as data, not a
// switch scattered through the parser).
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv    // /
	OpIntDiv // div
	OpMod    // mod
	OpEq     // =
	OpNeq    // !=
	OpEquiv  // ~
	OpNequiv // !~
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
	OpXor
	OpImplies
	OpIn
	OpContains
	OpIs
	OpAs
)

// Associativity describes how a binary operator groups with itself.
type Associativity int

const (
	LeftAssoc Associativity = iota
	RightAssoc
)

// opInfo is the static metadata for one binary operator.
type opInfo struct {
	symbol        string
	precedence    int // higher binds tighter
	associativity Associativity
}

// operatorTable assigns each of the 22 binary operators below to a
// precedence level between 1 and 12 (tightest = 12). Level 9 belongs to `|`
// (union), which is kept out of this table (see UnionPrecedence), and a
// 13th, tighter-still level is reserved for the prefix unary operators
// (-, +, not). The string-concatenation operator `&` has no entry here, no
// lexer token and no registry operation. Only `implies` is right-associative.
var operatorTable = map[BinaryOp]opInfo{
	OpMul:      {"*", 12, LeftAssoc},
	OpDiv:      {"/", 12, LeftAssoc},
	OpIntDiv:   {"div", 12, LeftAssoc},
	OpMod:      {"mod", 12, LeftAssoc},
	OpAdd:      {"+", 11, LeftAssoc},
	OpSub:      {"-", 11, LeftAssoc},
	OpIs:       {"is", 10, LeftAssoc},
	OpAs:       {"as", 10, LeftAssoc},
	// `|` (union) sits at precedence 9 but is parsed into a dedicated
	// ast.Union node rather than ast.Binary; it has no entry in this map,
	// and its precedence is exposed as UnionPrecedence instead.
	OpLt:       {"<", 8, LeftAssoc},
	OpLte:      {"<=", 8, LeftAssoc},
	OpGt:       {">", 8, LeftAssoc},
	OpGte:      {">=", 8, LeftAssoc},
	OpEq:       {"=", 7, LeftAssoc},
	OpNeq:      {"!=", 7, LeftAssoc},
	OpEquiv:    {"~", 7, LeftAssoc},
	OpNequiv:   {"!~", 7, LeftAssoc},
	OpIn:       {"in", 6, LeftAssoc},
	OpContains: {"contains", 5, LeftAssoc},
	OpAnd:      {"and", 4, LeftAssoc},
	OpXor:      {"xor", 3, LeftAssoc},
	OpOr:       {"or", 2, LeftAssoc},
	OpImplies:  {"implies", 1, RightAssoc},
}

// UnionPrecedence is the precedence level of the `|` union operator,
// between `is`/`as` (10) and the relational operators (8).
const UnionPrecedence = 9

// PrefixPrecedence is the (tightest) binding power of the prefix unary
// operators -, +, not — binding tighter than every binary operator.
const PrefixPrecedence = 13

func (op BinaryOp) Symbol() string {
	return operatorTable[op].symbol
}

func (op BinaryOp) Precedence() int {
	return operatorTable[op].precedence
}

func (op BinaryOp) Associativity() Associativity {
	return operatorTable[op].associativity
}

// binaryOpBySymbol inverts operatorTable for the lexer/parser's token ->
// operator lookup. Multi-word operators (div, mod, and, or, xor, implies,
// in, contains, is, as) are keywords at the lexical layer; symbolic ones
// are punctuation/operator tokens.
var binaryOpBySymbol = func() map[string]BinaryOp {
	m := make(map[string]BinaryOp, len(operatorTable))
	for op, info := range operatorTable {
		m[info.symbol] = op
	}
	return m
}()

// BinaryOpBySymbol looks up a BinaryOp by its source-text symbol.
func BinaryOpBySymbol(symbol string) (BinaryOp, bool) {
	op, ok := binaryOpBySymbol[symbol]
	return op, ok
}

// UnaryOp identifies a prefix unary operator.
type UnaryOp int

const (
	UnaryPlus UnaryOp = iota
	UnaryMinus
	UnaryNot
)

func (op UnaryOp) Symbol() string {
	switch op {
	case UnaryPlus:
		return "+"
	case UnaryMinus:
		return "-"
	default:
		return "not"
	}
}
