package ops

import (
	"context"

	"github.com/fhirpath-go/corefhirpath/registry"
	"github.com/fhirpath-go/corefhirpath/value"
)

// registerLogical wires and or xor implies not per spec.md 4.6 ("Logical"),
// three-valued Kleene logic throughout. and/or are also special-cased in
// eval.Binary for short-circuiting (the RHS expression is never evaluated
// once the LHS alone determines the result); the registry entries here are
// the non-short-circuiting fallback used when both operands are already
// evaluated (analysis, or a host building a Binary node with pre-evaluated
// args directly against the registry).
func registerLogical(reg *registry.Registry) {
	binary := func(symbol string, call Func) {
		def(reg, registry.Metadata{
			Name: registry.OperatorKey(symbol), Category: registry.CategoryLogical, Pure: true,
			Params:     []registry.Param{{Name: "left", Arity: registry.Required}, {Name: "right", Arity: registry.Required}},
			ReturnType: "System.Boolean",
		}, call)
	}
	binary("and", opAnd)
	binary("or", opOr)
	binary("xor", opXor)
	binary("implies", opImplies)

	def(reg, registry.Metadata{
		Name: "not", Category: registry.CategoryLogical, Pure: true,
		Params: []registry.Param{{Name: "operand", Arity: registry.Optional}}, ReturnType: "System.Boolean",
	}, opNot)
}

// tri is an Option<bool>: known=false means unknown/Empty, per spec.md 4.6
// ("Model as a dedicated helper returning Option<bool>").
type tri struct {
	val   bool
	known bool
}

func truthy(v value.Value) tri {
	b, known := value.Truthy(v)
	return tri{val: b, known: known}
}

// And implements Kleene AND: false dominates (false, false) = false even
// when the other side is unknown; otherwise unknown propagates.
func And(l, r tri) tri {
	if l.known && !l.val {
		return tri{val: false, known: true}
	}
	if r.known && !r.val {
		return tri{val: false, known: true}
	}
	if l.known && r.known {
		return tri{val: l.val && r.val, known: true}
	}
	return tri{}
}

// Or implements the conservative Kleene OR adopted per spec.md 9's Open
// Question: true dominates, but any operand that is unknown (rather than
// strictly Boolean false) yields Empty unless the other side is true.
func Or(l, r tri) tri {
	if l.known && l.val {
		return tri{val: true, known: true}
	}
	if r.known && r.val {
		return tri{val: true, known: true}
	}
	if l.known && r.known {
		return tri{val: false, known: true}
	}
	return tri{}
}

func Xor(l, r tri) tri {
	if !l.known || !r.known {
		return tri{}
	}
	return tri{val: l.val != r.val, known: true}
}

// Implies follows the truth table spelled out in spec.md 4.6:
// implies(true, X) = X; implies(false, _) = true; implies(empty, true) =
// true; else Empty.
func Implies(l, r tri) tri {
	if l.known && !l.val {
		return tri{val: true, known: true}
	}
	if l.known && l.val {
		return r
	}
	// l unknown
	if r.known && r.val {
		return tri{val: true, known: true}
	}
	return tri{}
}

func Not(v tri) tri {
	if !v.known {
		return tri{}
	}
	return tri{val: !v.val, known: true}
}

func opAnd(_ context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
	r := And(truthy(argValue(args, 0)), truthy(argValue(args, 1)))
	return value.BoolToValue(r.val, r.known), nil
}

func opOr(_ context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
	r := Or(truthy(argValue(args, 0)), truthy(argValue(args, 1)))
	return value.BoolToValue(r.val, r.known), nil
}

func opXor(_ context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
	r := Xor(truthy(argValue(args, 0)), truthy(argValue(args, 1)))
	return value.BoolToValue(r.val, r.known), nil
}

func opImplies(_ context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
	r := Implies(truthy(argValue(args, 0)), truthy(argValue(args, 1)))
	return value.BoolToValue(r.val, r.known), nil
}

func opNot(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	v := argValue(args, 0)
	if len(args) == 0 {
		v = rawInput(ectx)
	}
	r := Not(truthy(v))
	return value.BoolToValue(r.val, r.known), nil
}
