// Package ops implements the FHIRPath function and operator catalogue
// (spec component C6): one file per category, grounded file-by-file on the
// teacher's fhirpath/functions.go (a single 5100-line file mixing every
// category) restructured the way robertoAraneda-gofhir/pkg/fhirpath/funcs
// splits by category.
//
// Every entry is a plain Go function wrapped by fn, which satisfies
// registry.Operation and registry.SyncOp. Arithmetic/comparison reuse
// value.Decimal's apd-backed Cmp/arithmetic helpers directly, the same
// library the teacher threads through context.Context.
package ops

import (
	"context"
	"fmt"

	"github.com/fhirpath-go/corefhirpath/registry"
	"github.com/fhirpath-go/corefhirpath/value"
)

// Func is the shape every operation body implements. ctx carries the
// ambient apd.Context (value.DecimalContext) and cancellation; ectx exposes
// the evaluation context (current input, root, variables, model provider).
type Func func(ctx context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error)

type fn struct {
	meta registry.Metadata
	call Func
}

func (f *fn) Name() string                { return f.meta.Name }
func (f *fn) Metadata() registry.Metadata { return f.meta }

func (f *fn) CallSync(ctx context.Context, ectx registry.Context, args []registry.Arg) (value.Value, bool, error) {
	v, err := f.call(ctx, ectx, args)
	return v, true, err
}

// def registers one operation, filling MinArity/MaxArity from the
// parameter list when the caller leaves them zero-valued.
func def(reg *registry.Registry, m registry.Metadata, call Func) {
	if m.MaxArity == 0 && m.MinArity == 0 {
		m.MinArity, m.MaxArity = arityFromParams(m.Params)
	}
	var lambdaArgs []int
	for i, p := range m.Params {
		if p.Lambda {
			lambdaArgs = append(lambdaArgs, i)
		}
	}
	m.LambdaArgs = lambdaArgs
	reg.Register(&fn{meta: m, call: call})
}

func arityFromParams(params []registry.Param) (min, max int) {
	for _, p := range params {
		switch p.Arity {
		case registry.Required:
			min++
			max++
		case registry.Optional:
			max++
		case registry.Variadic:
			max = -1
		}
	}
	return min, max
}

// Register installs every built-in operation into reg. Intended to be
// called once at process/package init, per spec.md's Registry lifecycle.
func Register(reg *registry.Registry) {
	registerArithmetic(reg)
	registerComparison(reg)
	registerLogical(reg)
	registerCollection(reg)
	registerStrings(reg)
	registerDateTime(reg)
	registerConversion(reg)
	registerTypeOps(reg)
	registerUtility(reg)
}

// --- shared helpers ---------------------------------------------------

func argValue(args []registry.Arg, i int) value.Value {
	if i >= len(args) {
		return value.Empty()
	}
	return args[i].Value
}

func argCollection(args []registry.Arg, i int) value.Collection {
	return value.UnwrapCollection(value.ToCollection(argValue(args, i)))
}

// single extracts the sole element of a collection argument, or ok=false
// if it is empty/multi-valued (callers then return Empty per the
// specification's empty-propagation default).
func single(c value.Collection) (value.Value, bool) {
	if len(c) != 1 {
		return nil, false
	}
	return c[0], true
}

func errf(format string, args ...any) error {
	return fmt.Errorf("ops: "+format, args...)
}
