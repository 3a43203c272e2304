// Package fhirpath is the public entry point: parse an expression once,
// analyze it statically against a model.Provider, and evaluate it against
// any number of inputs. The three stages are independent (spec.md section 6,
// "Library API (abstract)") — a host can parse-and-cache an Expression, skip
// analysis entirely, or run analysis without ever evaluating.
//
// Grounded on the teacher's fhirpath/expression.go (the Expression/Parse/
// MustParse/Evaluate surface, generalized from its ANTLR tree + package-level
// systemVariables/envStackFrame to this module's ast.Node + eval.Context).
package fhirpath

import (
	"context"
	"fmt"

	"github.com/fhirpath-go/corefhirpath/analysis"
	"github.com/fhirpath-go/corefhirpath/ast"
	"github.com/fhirpath-go/corefhirpath/diag"
	"github.com/fhirpath-go/corefhirpath/eval"
	"github.com/fhirpath-go/corefhirpath/internal/ops"
	"github.com/fhirpath-go/corefhirpath/internal/parse"
	"github.com/fhirpath-go/corefhirpath/model"
	"github.com/fhirpath-go/corefhirpath/registry"
	"github.com/fhirpath-go/corefhirpath/value"
)

// Expression is a parsed FHIRPath expression, ready to analyze and/or
// evaluate any number of times. The zero value is not usable; build one with
// Parse or MustParse.
type Expression struct {
	source string
	node   ast.Node
	diags  []diag.Diagnostic
}

// String returns the original source text the expression was parsed from.
func (e Expression) String() string {
	return e.source
}

// Diagnostics returns the syntax diagnostics collected while parsing, empty
// when the expression parsed cleanly. Parse never discards a malformed
// expression outright — e.Node() still returns a best-effort tree — so a
// host that wants strict behavior should check len(e.Diagnostics()) itself.
func (e Expression) Diagnostics() []diag.Diagnostic {
	return e.diags
}

// Node exposes the underlying AST for tooling (LSPs, linters, formatters)
// that needs to walk spans and node kinds directly, per spec.md section 6's
// requirement that the core "expose enough structure... without reaching
// into internals."
func (e Expression) Node() ast.Node {
	return e.node
}

// Parse parses a FHIRPath expression string into an Expression. Parsing
// never fails outright (spec.md: "syntax errors become diagnostics, not
// exceptions"); a non-empty Diagnostics() signals a malformed expression
// while still returning a best-effort, inspectable tree.
func Parse(source string) Expression {
	node, diags := parse.Parse(source)
	return Expression{source: source, node: node, diags: diags}
}

// MustParse parses source and panics if any diagnostic was raised. Useful
// for hardcoded expressions in tests and examples where a parse failure
// indicates a programming error rather than bad input.
func MustParse(source string) Expression {
	e := Parse(source)
	if len(e.diags) > 0 {
		panic(fmt.Sprintf("fhirpath: MustParse(%q): %v", source, e.diags))
	}
	return e
}

// defaultRegistry is the Registry every package-level Parse/Analyze/Evaluate
// call evaluates against: the closed set of operations internal/ops.Register
// installs, built once at init time per the Registry's write-once/read-many
// contract (spec.md section 5). Hosts that need a custom or extended
// Registry should use NewEvaluator/NewAnalyzer directly instead.
var defaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *registry.Registry {
	reg := registry.New()
	ops.Register(reg)
	return reg
}

// NewEvaluator returns an Evaluator over the default Registry (every
// built-in function and operator). Hosts embedding a custom Registry (e.g.
// one with implementation-guide-specific extension functions registered)
// should call eval.New directly instead.
func NewEvaluator() *eval.Evaluator {
	return eval.New(defaultRegistry)
}

// NewAnalyzer returns an Analyzer over the default Registry, mirroring
// NewEvaluator.
func NewAnalyzer() *analysis.Analyzer {
	return analysis.New(defaultRegistry)
}

// Analyze runs static type analysis (spec component C8) over expr against
// provider, which may be nil to run a best-effort analysis that degrades to
// "unknown" wherever type information would otherwise be needed — the
// analyzer never requires a provider, it simply finds fewer diagnostics
// without one.
func Analyze(expr Expression, provider model.Provider, opts ...analysis.Option) *analysis.Report {
	return NewAnalyzer().Analyze(expr.node, provider, opts...)
}

// Evaluate evaluates expr against target and returns the resulting
// collection. opts configures the evaluation context (Model Provider,
// seeded variables, a trace() sink, a fixed now(), an environment-variable
// fallback resolver); see the eval package's Option constructors.
//
// Example:
//
//	patient, err := model.FromJSON(raw, provider)
//	expr := fhirpath.MustParse("Patient.name.given")
//	result, err := fhirpath.Evaluate(ctx, expr, value.Of(patient), eval.WithProvider(provider))
func Evaluate(ctx context.Context, expr Expression, target value.Value, opts ...eval.Option) (value.Collection, error) {
	return NewEvaluator().Evaluate(ctx, expr.node, target, opts...)
}
