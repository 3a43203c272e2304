// Package registry implements the FHIRPath operation registry (spec
// component C5): a name-keyed table of operation implementations, each
// carrying metadata (category, signature, lambda-argument positions,
// purity, documentation) consulted by both the evaluator and the static
// analyzer.
//
// Grounded on original_source's fhirpath-registry/src/registry_core.rs
// (RegistryOperation trait -> Operation interface, RegistryCore<T>'s
// read/write-locked map -> a sync.RWMutex-guarded map populated once at
// init and read-only thereafter, matching spec.md's Lifecycles section).
// The teacher's own dispatch idiom — a name-keyed map threaded through
// context.Context (fhirpath/functions.go's Functions/WithFunctions) — is
// kept for how callers *reach* the registry (eval.Context carries a
// *registry.Registry handle) even though the registry itself is a typed
// struct here rather than a bare map, so metadata has somewhere to live.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fhirpath-go/corefhirpath/model"
	"github.com/fhirpath-go/corefhirpath/value"
)

// Category classifies an operation for documentation and analyzer purposes.
type Category string

const (
	CategoryArithmetic Category = "arithmetic"
	CategoryComparison Category = "comparison"
	CategoryLogical    Category = "logical"
	CategoryCollection Category = "collection"
	CategoryString     Category = "string"
	CategoryDateTime   Category = "datetime"
	CategoryConversion Category = "conversion"
	CategoryType       Category = "type"
	CategoryUtility    Category = "utility"
)

// Arity describes how many arguments a parameter position accepts.
type Arity int

const (
	Required Arity = iota
	Optional
	Variadic
)

// Param describes one formal parameter of an operation.
type Param struct {
	Name  string
	Arity Arity
	// Lambda marks this parameter as receiving its argument as an
	// unevaluated AST (spec.md 4.3, "Lambda arguments") rather than a
	// pre-evaluated value.Value.
	Lambda bool
}

// Metadata is the static description every registered operation carries,
// per spec.md 4.5.
type Metadata struct {
	Name        string
	Category    Category
	Params      []Param
	ReturnType  string
	Pure        bool // false for now/today/timeOfDay/trace/defineVariable
	Complexity  string
	Doc         string
	LambdaArgs  []int // argument indices (0-based) that are lambda positions
	MinArity    int
	MaxArity    int // -1 = unbounded
}

// Arg is one element of the evaluated (or deferred) argument list an
// Operation receives.
// Exactly one of Value or Lambda is meaningful per element, according to
// whether that position is a lambda parameter per Metadata.LambdaArgs.
type Arg struct {
	Value  value.Value
	Lambda LambdaArg
}

// LambdaArg is a deferred argument: an AST plus a closure the operation
// calls once per element to evaluate it in a derived child scope. The
// concrete type lives in package eval to avoid an import cycle; registry
// only needs the capability shape.
type LambdaArg interface {
	// Eval evaluates the deferred expression against the given element,
	// index, and running total (total is nil outside aggregate), returning
	// the per-call result.
	Eval(ctx context.Context, element value.Value, index int, total value.Value) (value.Value, error)
}

// Tracer is the one user-visible observability seam for the evaluator
// (spec.md 4.6 "trace"), grounded on the teacher's Tracer/StdoutTracer.
type Tracer interface {
	Trace(name string, projection value.Collection)
}

// Context is the read-only view of the evaluation context an Operation
// needs; package eval supplies the concrete implementation (eval.Context),
// kept separate to avoid registry depending on eval (eval depends on
// registry and internal/ops, not the reverse).
type Context interface {
	// Input is the current input collection operations implicitly operate
	// over (the receiver most functions were called against).
	Input() value.Value
	// Root is the unchanging root resource of the whole evaluation.
	Root() value.Value
	// Variable looks up a lexical ($this, $index, $total, or user-defined
	// via defineVariable) or environment (%name) variable by its bare name
	// (sigil stripped).
	Variable(name string) (value.Value, bool)
	// Provider returns the Model Provider capability (spec component C2),
	// or nil if the host supplied none.
	Provider() model.Provider
	// Now returns the instant this evaluation treats as "now", fixed for
	// the duration of one evaluate() call so now()/today()/timeOfDay() are
	// mutually consistent and repeatable within a single run.
	Now() time.Time
	// Tracer returns the installed Tracer, or nil.
	Tracer() Tracer
}

// SyncOp is implemented by operations with a synchronous fast path.
type SyncOp interface {
	// CallSync returns (result, true, nil) on success, or (nil, false, nil)
	// to signal "no sync path, try async", per spec.md's async/sync duality.
	CallSync(ctx context.Context, ectx Context, args []Arg) (value.Value, bool, error)
}

// AsyncOp is implemented by operations that must suspend (e.g. a
// model-provider-backed lookup).
type AsyncOp interface {
	CallAsync(ctx context.Context, ectx Context, args []Arg) (value.Value, error)
}

// Operation is the full capability set an entry may implement: name,
// metadata, and at least one of SyncOp/AsyncOp.
type Operation interface {
	Name() string
	Metadata() Metadata
}

// Registry is a name-keyed, write-once/read-many table of operations. The
// zero value is not usable; call New. Safe for concurrent use by multiple
// evaluations per spec.md section 5 ("the core is re-entrant").
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Operation
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{ops: make(map[string]Operation)}
}

// Register adds or replaces an operation. Intended for init-time use only
// (spec.md Lifecycles: "Registry entries are registered once at process
// start... lookups are read-only"); collisions are resolved last-write-wins.
func (r *Registry) Register(op Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op.Name()] = op
}

// Lookup returns the operation registered under name, if any. O(1) average,
// safe for concurrent callers.
func (r *Registry) Lookup(name string) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

// Names returns every registered operation name, sorted, for tooling
// (documentation, the analyzer's edit-distance suggestions).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ops))
	for n := range r.ops {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ValidateArity checks the number of supplied arguments against an
// operation's signature, producing the E301 condition described in
// spec.md 4.5 ("Argument validation"). Callers turn a non-nil error into a
// diag.Diagnostic at the call site, where a span is available.
func ValidateArity(m Metadata, n int) error {
	if n < m.MinArity {
		return fmt.Errorf("registry: %s expects at least %d argument(s), got %d", m.Name, m.MinArity, n)
	}
	if m.MaxArity >= 0 && n > m.MaxArity {
		return fmt.Errorf("registry: %s expects at most %d argument(s), got %d", m.Name, m.MaxArity, n)
	}
	return nil
}

// OperatorKey namespaces a binary/union operator's source symbol into its
// registry key, e.g. "op:contains". Operator symbols and method names can
// collide in FHIRPath source (the `contains` membership keyword vs the
// string .contains() method); eval looks up Binary/Union nodes under this
// namespaced key and FunctionCall/MethodCall nodes under the bare name, so
// the two never shadow each other in one flat map.
func OperatorKey(symbol string) string { return "op:" + symbol }

// IsLambdaArg reports whether the i-th argument position (0-based) of an
// operation is a lambda position per its metadata.
func (m Metadata) IsLambdaArg(i int) bool {
	for _, idx := range m.LambdaArgs {
		if idx == i {
			return true
		}
	}
	return false
}
