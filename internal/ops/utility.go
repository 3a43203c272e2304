package ops

import (
	"context"

	"github.com/fhirpath-go/corefhirpath/registry"
	"github.com/fhirpath-go/corefhirpath/value"
)

// registerUtility wires iif, trace, and defineVariable per spec.md 4.6.
// defineVariable's real child-scope-only visibility rule cannot be
// expressed as a pure (args) -> Value function — it needs to extend the
// context seen by the rest of the expression it is piped into — so eval
// special-cases MethodCall/FunctionCall nodes named "defineVariable" the
// same way it special-cases and/or for short-circuiting (see eval.go); the
// registry entry here exists for metadata/arity-checking and analysis
// purposes and, called directly, behaves as the identity function.
func registerUtility(reg *registry.Registry) {
	def(reg, registry.Metadata{
		Name: "iif", Category: registry.CategoryUtility, Pure: true,
		Params: []registry.Param{
			{Name: "criterion", Arity: registry.Required},
			{Name: "trueResult", Arity: registry.Required, Lambda: true},
			{Name: "otherwiseResult", Arity: registry.Optional, Lambda: true},
		},
		ReturnType: "System.Any",
	}, opIif)
	def(reg, registry.Metadata{
		Name: "trace", Category: registry.CategoryUtility, Pure: false,
		Params: []registry.Param{
			{Name: "name", Arity: registry.Required},
			{Name: "projection", Arity: registry.Optional, Lambda: true},
		},
		ReturnType: "System.Any",
	}, opTrace)
	def(reg, registry.Metadata{
		Name: "defineVariable", Category: registry.CategoryUtility, Pure: false,
		Params: []registry.Param{
			{Name: "name", Arity: registry.Required},
			{Name: "expr", Arity: registry.Optional},
		},
		ReturnType: "System.Any",
	}, opDefineVariableIdentity)
}

// opIif implements short-circuiting via the lambda mechanism: criterion is
// pre-evaluated, but trueResult/otherwiseResult are deferred ASTs, so the
// branch not taken is never evaluated, per spec.md 4.6/8's `iif(true, A, B)
// = A` without evaluating B.
func opIif(ctx context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	cond := argValue(args, 0)
	b, known := value.Truthy(cond)
	if !known {
		if len(args) > 2 {
			return args[2].Lambda.Eval(ctx, ectx.Input(), 0, nil)
		}
		return value.Empty(), nil
	}
	if b {
		return args[1].Lambda.Eval(ctx, ectx.Input(), 0, nil)
	}
	if len(args) > 2 {
		return args[2].Lambda.Eval(ctx, ectx.Input(), 0, nil)
	}
	return value.Empty(), nil
}

// opTrace reports the named projection (or the current input, if no
// projection argument is supplied) to the installed Tracer and returns the
// input unchanged, per the teacher's Tracer/WithTracer contract.
func opTrace(ctx context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	input := rawInput(ectx)
	tracer := ectx.Tracer()
	if tracer == nil {
		return input, nil
	}
	name, _ := stringArg(args, 0)
	if len(args) > 1 && args[1].Lambda != nil {
		var projected value.Collection
		for i, el := range input {
			v, err := args[1].Lambda.Eval(ctx, el, i, nil)
			if err != nil {
				continue
			}
			projected = append(projected, value.ToCollection(v)...)
		}
		tracer.Trace(name, projected)
	} else {
		tracer.Trace(name, input)
	}
	return input, nil
}

func opDefineVariableIdentity(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	return rawInput(ectx), nil
}
