package ops

import (
	"context"

	"github.com/fhirpath-go/corefhirpath/registry"
	"github.com/fhirpath-go/corefhirpath/value"
)

// registerComparison wires = != ~ !~ < <= > >= in contains per spec.md 4.6
// ("Comparison"). Equality returns Empty when either operand is Empty;
// ordering returns Empty for cross-type or incompatible operands.
func registerComparison(reg *registry.Registry) {
	binary := func(symbol string, call Func) {
		def(reg, registry.Metadata{
			Name: registry.OperatorKey(symbol), Category: registry.CategoryComparison, Pure: true,
			Params:     []registry.Param{{Name: "left", Arity: registry.Required}, {Name: "right", Arity: registry.Required}},
			ReturnType: "System.Boolean",
		}, call)
	}
	binary("=", opEq)
	binary("!=", opNeq)
	binary("~", opEquiv)
	binary("!~", opNequiv)
	binary("<", ordered(func(c int) bool { return c < 0 }))
	binary("<=", ordered(func(c int) bool { return c <= 0 }))
	binary(">", ordered(func(c int) bool { return c > 0 }))
	binary(">=", ordered(func(c int) bool { return c >= 0 }))
	binary("in", opIn)
	binary("contains", opContains)
}

// collectionsEqual implements collection-level "=" for two non-empty
// operands: element-wise deep equality with matching length and order. The
// Empty case is handled by its callers (opEq/opNeq) before it is reached.
func collectionsEqual(l, r value.Collection) (bool, bool) {
	if len(l) != len(r) {
		return false, true
	}
	for i := range l {
		eq, ok := value.Equal(l[i], r[i])
		if !ok {
			return false, false
		}
		if !eq {
			return false, true
		}
	}
	return true, true
}

func opEq(_ context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
	lc := argCollection(args, 0)
	rc := argCollection(args, 1)
	if len(lc) == 0 || len(rc) == 0 {
		return value.Empty(), nil
	}
	eq, known := collectionsEqual(lc, rc)
	return value.BoolToValue(eq, known), nil
}

func opNeq(_ context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
	lc := argCollection(args, 0)
	rc := argCollection(args, 1)
	if len(lc) == 0 || len(rc) == 0 {
		return value.Empty(), nil
	}
	eq, known := collectionsEqual(lc, rc)
	return value.BoolToValue(!eq, known), nil
}

func opEquiv(_ context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
	lc := argCollection(args, 0)
	rc := argCollection(args, 1)
	if len(lc) != len(rc) {
		return value.Of(value.Boolean(false)), nil
	}
	for i := range lc {
		if !value.Equivalent(lc[i], rc[i]) {
			return value.Of(value.Boolean(false)), nil
		}
	}
	return value.Of(value.Boolean(true)), nil
}

func opNequiv(ctx context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	v, err := opEquiv(ctx, ectx, args)
	if err != nil {
		return nil, err
	}
	b, ok := single(value.ToCollection(v))
	if !ok {
		return value.Of(value.Boolean(true)), nil
	}
	return value.Of(value.Boolean(!bool(b.(value.Boolean)))), nil
}

func ordered(pred func(int) bool) Func {
	return func(_ context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
		l, r, empty := operands(args)
		if empty {
			return value.Empty(), nil
		}
		c, ok := value.Compare(l, r)
		if !ok {
			return value.Empty(), nil
		}
		return value.Of(value.Boolean(pred(c))), nil
	}
}

func opIn(_ context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
	lc := argCollection(args, 0)
	rc := argCollection(args, 1)
	if len(lc) == 0 {
		return value.Empty(), nil
	}
	if len(lc) != 1 {
		return value.Of(value.Boolean(false)), nil
	}
	for _, item := range rc {
		if eq, ok := value.Equal(lc[0], item); ok && eq {
			return value.Of(value.Boolean(true)), nil
		}
	}
	return value.Of(value.Boolean(false)), nil
}

func opContains(ctx context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	return opIn(ctx, ectx, []registry.Arg{args[1], args[0]})
}
