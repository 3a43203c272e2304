// Package analysis implements the FHIRPath static Type Analyzer (spec
// component C8): an optional pass over an already-parsed ast.Node tree that
// assigns each node a SemanticInfo (expected input type, inferred return
// type) and accumulates diagnostics for property-not-found,
// function-not-found, arity-mismatch, type-incompatibility, and
// deprecated-usage conditions. It never mutates the tree and never executes
// it — eval is the only package that does that.
//
// Grounded on original_source's fhirpath-registry/src/registry_core.rs for
// the arity/signature checks (mirroring registry.ValidateArity, which eval
// also uses) and on the teacher's resolveType/subTypeOf helpers
// (fhirpath/fhirpathtype.go) for walking property existence against a
// model.Provider. The per-node SemanticInfo shape follows the idea sketched
// by original_source's fhirpath-lsp semantic-tokens feature, restated here
// against this core's own AST instead of an LSP token stream.
package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/fhirpath-go/corefhirpath/ast"
	"github.com/fhirpath-go/corefhirpath/diag"
	"github.com/fhirpath-go/corefhirpath/model"
	"github.com/fhirpath-go/corefhirpath/registry"
)

// SemanticInfo is the static description assigned to one AST node.
type SemanticInfo struct {
	// InputType is the FHIR/System type name the node's receiver is known to
	// have, or "" if analysis could not determine it (an unknown receiver
	// type suppresses property/type diagnostics for that node, per the
	// "tolerate a provider that answers unknown liberally" rule).
	InputType string
	// ReturnType is the inferred or declared result type, or "" if unknown.
	ReturnType string
}

// Report is the result of one Analyze call: every diagnostic raised, plus
// the per-node SemanticInfo map callers (an LSP, a linter) can consult.
type Report struct {
	Diagnostics []diag.Diagnostic
	Nodes       map[ast.Node]SemanticInfo
}

func newReport() *Report {
	return &Report{Nodes: make(map[ast.Node]SemanticInfo)}
}

func (r *Report) record(n ast.Node, info SemanticInfo) SemanticInfo {
	r.Nodes[n] = info
	return info
}

func (r *Report) raise(d diag.Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d)
}

// Analyzer walks an AST against a Registry and (optionally) a model.Provider.
// The zero value is not usable; build one with New.
type Analyzer struct {
	Registry *registry.Registry
}

// New returns an Analyzer backed by reg.
func New(reg *registry.Registry) *Analyzer {
	return &Analyzer{Registry: reg}
}

// Option configures one Analyze call.
type Option func(*config)

type config struct {
	rootType string
}

// WithRootType seeds the analyzer's notion of the root input's FHIR type
// name (e.g. "Patient"), the static analogue of the root value eval.Evaluate
// is called with. Without it, root-relative property checks degrade to
// "unknown" rather than false positives.
func WithRootType(name string) Option {
	return func(c *config) { c.rootType = name }
}

// Analyze walks node, consulting provider (which may be nil — every check
// below degrades to "unknown, skip" rather than a false positive when it
// is) and returns the accumulated Report.
func (a *Analyzer) Analyze(node ast.Node, provider model.Provider, opts ...Option) *Report {
	cfg := config{}
	for _, o := range opts {
		o(&cfg)
	}
	report := newReport()
	w := &walker{analyzer: a, provider: provider, report: report}
	w.walk(node, cfg.rootType)
	return report
}

type walker struct {
	analyzer *Analyzer
	provider model.Provider
	report   *Report
}

// walk analyzes node against curType (the statically-known FHIR/System type
// of node's implicit input, or "" if unknown) and returns node's own result
// type under the same convention.
func (w *walker) walk(node ast.Node, curType string) string {
	if node == nil {
		return ""
	}
	switch n := node.(type) {
	case *ast.Literal:
		rt := n.Value.Type().Name
		w.report.record(n, SemanticInfo{InputType: curType, ReturnType: rt})
		return rt

	case *ast.TypeInfoNode:
		w.report.record(n, SemanticInfo{InputType: curType, ReturnType: "TypeInfo"})
		return n.Target.Name

	case *ast.Variable:
		rt := w.variableType(n, curType)
		w.report.record(n, SemanticInfo{InputType: curType, ReturnType: rt})
		return rt

	case *ast.Identifier:
		rt := w.resolveProperty(n.Span(), curType, n.Name)
		w.report.record(n, SemanticInfo{InputType: curType, ReturnType: rt})
		return rt

	case *ast.Parenthesized:
		rt := w.walk(n.Inner, curType)
		w.report.record(n, SemanticInfo{InputType: curType, ReturnType: rt})
		return rt

	case *ast.CollectionLiteral:
		var elemType string
		for i, el := range n.Elements {
			t := w.walk(el, "")
			if i == 0 {
				elemType = t
			} else if elemType != t {
				elemType = ""
			}
		}
		w.report.record(n, SemanticInfo{InputType: curType, ReturnType: elemType})
		return elemType

	case *ast.Path:
		t := w.walk(n.Base, curType)
		for _, seg := range n.Segments {
			t = w.resolveProperty(n.Span(), t, seg)
		}
		w.report.record(n, SemanticInfo{InputType: curType, ReturnType: t})
		return t

	case *ast.PropertyAccess:
		recvType := w.walk(n.Receiver, curType)
		t := w.resolveProperty(n.Span(), recvType, n.Name)
		w.report.record(n, SemanticInfo{InputType: recvType, ReturnType: t})
		return t

	case *ast.IndexAccess:
		recvType := w.walk(n.Receiver, curType)
		w.walk(n.Index, "")
		w.report.record(n, SemanticInfo{InputType: recvType, ReturnType: recvType})
		return recvType

	case *ast.Filter:
		recvType := w.walk(n.Receiver, curType)
		w.walk(n.Condition, recvType)
		w.report.record(n, SemanticInfo{InputType: recvType, ReturnType: recvType})
		return recvType

	case *ast.MethodCall:
		recvType := w.walk(n.Receiver, curType)
		rt := w.walkCall(n.Span(), n.Name, n.Args, recvType)
		w.report.record(n, SemanticInfo{InputType: recvType, ReturnType: rt})
		return rt

	case *ast.FunctionCall:
		rt := w.walkCall(n.Span(), n.Name, n.Args, curType)
		w.report.record(n, SemanticInfo{InputType: curType, ReturnType: rt})
		return rt

	case *ast.Binary:
		rt := w.walkBinary(n, curType)
		w.report.record(n, SemanticInfo{InputType: curType, ReturnType: rt})
		return rt

	case *ast.Union:
		lt := w.walk(n.Left, curType)
		rtyp := w.walk(n.Right, curType)
		result := lt
		if lt != rtyp {
			result = ""
		}
		w.report.record(n, SemanticInfo{InputType: curType, ReturnType: result})
		return result

	case *ast.Unary:
		operandType := w.walk(n.Operand, curType)
		result := operandType
		if n.Op == ast.UnaryNot {
			result = "Boolean"
		}
		w.report.record(n, SemanticInfo{InputType: curType, ReturnType: result})
		return result

	case *ast.TypeCheck:
		w.walkTypeOperator(n.Expr, n.Target, n.Span(), "is", curType)
		w.report.record(n, SemanticInfo{InputType: curType, ReturnType: "Boolean"})
		return "Boolean"

	case *ast.TypeCast:
		w.walkTypeOperator(n.Expr, n.Target, n.Span(), "as", curType)
		w.report.record(n, SemanticInfo{InputType: curType, ReturnType: n.Target.Name})
		return n.Target.Name

	case *ast.Lambda:
		rt := w.walk(n.Body, curType)
		w.report.record(n, SemanticInfo{InputType: curType, ReturnType: rt})
		return rt

	default:
		return ""
	}
}

// variableType answers the statically-known type of $this/%context-style
// variables; user-defined (defineVariable-bound) names are not tracked
// statically since their type depends on a runtime value, so they report
// unknown rather than a guess.
func (w *walker) variableType(n *ast.Variable, curType string) string {
	switch n.Name {
	case "this":
		return curType
	case "context", "resource", "rootResource":
		return curType
	case "index":
		return "Integer"
	default:
		return ""
	}
}

// resolveProperty answers the type of property name read off curType,
// raising E200 (with an edit-distance suggestion among curType's known
// elements) when curType is known but name is not one of its elements.
// curType == "" means "statically unknown" and is never itself an error.
func (w *walker) resolveProperty(span ast.Span, curType, name string) string {
	if curType == "" || w.provider == nil {
		return ""
	}
	if t, ok := w.provider.PropertyType(curType, name); ok {
		return t.Name
	}
	if w.provider.IsResourceType(name) {
		return name
	}
	refl, ok := w.provider.ReflectType(curType)
	if !ok {
		return ""
	}
	candidates := make([]string, 0, len(refl.Elements))
	for _, el := range refl.Elements {
		candidates = append(candidates, el.Name)
	}
	d := diag.New(diag.EPropertyNotFound, diag.Span{Start: span.Start, End: span.End})
	d.Operation = name
	d.Detail = fmt.Sprintf("%s has no property %q", curType, name)
	if match, ok := closestMatch(name, candidates); ok {
		d.Suggestion = match
	}
	w.report.raise(d)
	return ""
}

// walkCall validates a function/method invocation's name and arity, then
// analyzes each argument — lambda-position arguments against recvType (the
// element a lambda body's $this will bind to at runtime), eager arguments
// against an unknown ("") type, since they evaluate against the outer
// context rather than the receiver.
func (w *walker) walkCall(span ast.Span, name string, args []ast.Node, recvType string) string {
	op, ok := w.analyzer.Registry.Lookup(name)
	if !ok {
		d := diag.New(diag.EFunctionNotFound, diag.Span{Start: span.Start, End: span.End})
		d.Operation = name
		d.Detail = fmt.Sprintf("function %q is not defined", name)
		if match, ok := closestMatch(name, w.analyzer.Registry.Names()); ok {
			d.Suggestion = match
		}
		w.report.raise(d)
		for _, a := range args {
			w.walk(a, "")
		}
		return ""
	}
	meta := op.Metadata()
	if err := registry.ValidateArity(meta, len(args)); err != nil {
		d := diag.New(diag.EInvalidArity, diag.Span{Start: span.Start, End: span.End})
		d.Operation = name
		d.Detail = err.Error()
		w.report.raise(d)
	}
	if deprecated, reason := deprecatedFunctions[name]; deprecated {
		d := diag.New(diag.EDeprecatedFunction, diag.Span{Start: span.Start, End: span.End})
		d.Operation = name
		d.Detail = reason
		w.report.raise(d)
	}
	for i, a := range args {
		if meta.IsLambdaArg(i) {
			w.walk(a, recvType)
			continue
		}
		w.walk(a, "")
	}
	return callReturnType(meta, recvType)
}

// deprecatedFunctions names operations kept for backward compatibility but
// superseded by a preferred alternative. Empty for the shipped core — no
// operation in this registry is actually deprecated — but the seam exists
// because spec.md 4.8 lists "deprecated usage" as a diagnostic category a
// host may extend (e.g. a project-specific registry wrapper that still
// registers a legacy alias).
var deprecatedFunctions = map[string]string{}

// callReturnType approximates a call's result type from its declared
// signature: a concrete declared type is trusted outright; "System.Any"
// (used by most collection-shaping functions: where, select, first, ...)
// is assumed to pass the receiver's element type through unchanged, since
// that is the common case and a wrong guess here only ever suppresses a
// downstream property check rather than producing a false positive.
func callReturnType(meta registry.Metadata, recvType string) string {
	rt := stripNamespace(meta.ReturnType)
	if rt == "Any" || rt == "" {
		return recvType
	}
	return rt
}

func stripNamespace(qualified string) string {
	if i := strings.IndexByte(qualified, '.'); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

// walkTypeOperator validates the cardinality precondition of is/as (spec.md
// 4.6: both require a singleton operand) when that is statically decidable —
// a CollectionLiteral with more than one element can never be a singleton at
// runtime — then, if the operand's static type and the target are both
// known FHIR types with no subtype relation in either direction, raises
// E100: the operator can never produce anything but false/Empty, which is
// very likely not what the author intended.
func (w *walker) walkTypeOperator(expr ast.Node, target ast.TypeName, span ast.Span, operation, curType string) {
	if lit, ok := expr.(*ast.CollectionLiteral); ok && len(lit.Elements) > 1 {
		d := diag.New(diag.EInvalidCardinality, diag.Span{Start: span.Start, End: span.End})
		d.Operation = operation
		d.Detail = fmt.Sprintf("%s requires a singleton operand, got a %d-element collection literal", operation, len(lit.Elements))
		w.report.raise(d)
	}
	exprType := w.walk(expr, curType)
	if exprType != "" && target.Namespace != "System" && w.provider != nil {
		if !w.provider.IsSubtypeOf(exprType, target.Name) && !w.provider.IsSubtypeOf(target.Name, exprType) {
			d := diag.New(diag.ETypeMismatch, diag.Span{Start: span.Start, End: span.End})
			d.Operation = operation
			d.Detail = fmt.Sprintf("%s %s %s can never succeed: %s and %s are unrelated types", exprType, operation, target.Name, exprType, target.Name)
			w.report.raise(d)
		}
	}
}

// arithmeticOps classifies the binary operator symbols whose operands must
// both be numeric (or Quantity); used by walkBinary's static type check.
var arithmeticOps = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "div": true, "mod": true,
}

var numericTypeNames = map[string]bool{
	"Integer": true, "Decimal": true, "Quantity": true, "Long": true,
}

// walkBinary analyzes both operands and, for arithmetic operators with two
// statically-known, different operand types of which at least one is
// non-numeric, raises E101 — a
// conservative check that never fires on an unknown ("") operand type.
func (w *walker) walkBinary(n *ast.Binary, curType string) string {
	lt := w.walk(n.Left, curType)
	rt := w.walk(n.Right, curType)
	symbol := n.Op.Symbol()
	if arithmeticOps[symbol] {
		if lt != "" && rt != "" && (!numericTypeNames[lt] || !numericTypeNames[rt]) && lt != rt {
			d := diag.New(diag.EInvalidOperandTypes, diag.Span{Start: n.Span().Start, End: n.Span().End})
			d.Operation = symbol
			d.Detail = fmt.Sprintf("%s is not defined for %s and %s", symbol, lt, rt)
			w.report.raise(d)
		}
	}
	switch {
	case isComparisonOrLogical(symbol):
		return "Boolean"
	case lt == rt:
		return lt
	default:
		return ""
	}
}

func isComparisonOrLogical(symbol string) bool {
	switch symbol {
	case "=", "!=", "~", "!~", "<", "<=", ">", ">=", "in", "contains", "and", "or", "xor", "implies":
		return true
	}
	return false
}

// closestMatch finds the candidate within an edit-distance threshold of
// name, normalizing both sides to lowerCamelCase first (strcase.ToLowerCamel)
// so a miss that is purely a casing slip — "Family" for "family",
// "birth_date" for "birthDate" — still resolves to the right suggestion
// instead of being penalized by Levenshtein distance for the casing alone.
func closestMatch(name string, candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	normalizedName := strcase.ToLowerCamel(name)
	best := ""
	bestDist := -1
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)
	for _, c := range sorted {
		dist := levenshtein(normalizedName, strcase.ToLowerCamel(c))
		if bestDist == -1 || dist < bestDist {
			bestDist = dist
			best = c
		}
	}
	threshold := len(normalizedName)/2 + 1
	if bestDist < 0 || bestDist > threshold {
		return "", false
	}
	return best, true
}

// levenshtein computes the classic edit distance between a and b. Hand
// rolled rather than imported: no repo in the pack brings in a fuzzy-string
// matching dependency, so this one seam stays on the standard library
// (justified in DESIGN.md).
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			cur[j] = min3(del, ins, sub)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
