package ops

import (
	"context"

	"github.com/fhirpath-go/corefhirpath/registry"
	"github.com/fhirpath-go/corefhirpath/value"
)

// registerCollection wires the collection operations and the
// lambda-bearing filtering/projection operations from spec.md 4.6.
func registerCollection(reg *registry.Registry) {
	unary := func(name, ret string, call Func) {
		def(reg, registry.Metadata{Name: name, Category: registry.CategoryCollection, Pure: true, ReturnType: ret}, call)
	}

	def(reg, registry.Metadata{
		Name: registry.OperatorKey("|"), Category: registry.CategoryCollection, Pure: true,
		Params:     []registry.Param{{Name: "left", Arity: registry.Required}, {Name: "right", Arity: registry.Required}},
		ReturnType: "System.Any",
	}, opUnion)
	def(reg, registry.Metadata{
		Name: "combine", Category: registry.CategoryCollection, Pure: true,
		Params: []registry.Param{{Name: "other", Arity: registry.Required}}, ReturnType: "System.Any",
	}, opCombine)

	unary("first", "System.Any", opFirst)
	unary("last", "System.Any", opLast)
	unary("tail", "System.Any", opTail)
	def(reg, registry.Metadata{
		Name: "skip", Category: registry.CategoryCollection, Pure: true,
		Params: []registry.Param{{Name: "num", Arity: registry.Required}}, ReturnType: "System.Any",
	}, opSkip)
	def(reg, registry.Metadata{
		Name: "take", Category: registry.CategoryCollection, Pure: true,
		Params: []registry.Param{{Name: "num", Arity: registry.Required}}, ReturnType: "System.Any",
	}, opTake)
	unary("single", "System.Any", opSingle)
	unary("distinct", "System.Any", opDistinct)
	unary("isDistinct", "System.Boolean", opIsDistinct)
	unary("count", "System.Integer", opCount)
	unary("empty", "System.Boolean", opEmpty)
	unary("allTrue", "System.Boolean", opAllTrue)
	unary("anyTrue", "System.Boolean", opAnyTrue)
	unary("allFalse", "System.Boolean", opAllFalse)
	unary("anyFalse", "System.Boolean", opAnyFalse)
	unary("children", "System.Any", opChildren)
	unary("descendants", "System.Any", opDescendants)

	def(reg, registry.Metadata{
		Name: "exists", Category: registry.CategoryCollection, Pure: true,
		Params:     []registry.Param{{Name: "criteria", Arity: registry.Optional, Lambda: true}},
		ReturnType: "System.Boolean",
	}, opExists)
	def(reg, registry.Metadata{
		Name: "all", Category: registry.CategoryCollection, Pure: true,
		Params:     []registry.Param{{Name: "criteria", Arity: registry.Required, Lambda: true}},
		ReturnType: "System.Boolean",
	}, opAll)
	def(reg, registry.Metadata{
		Name: "where", Category: registry.CategoryCollection, Pure: true,
		Params:     []registry.Param{{Name: "criteria", Arity: registry.Required, Lambda: true}},
		ReturnType: "System.Any",
	}, opWhere)
	def(reg, registry.Metadata{
		Name: "select", Category: registry.CategoryCollection, Pure: true,
		Params:     []registry.Param{{Name: "projection", Arity: registry.Required, Lambda: true}},
		ReturnType: "System.Any",
	}, opSelect)
	def(reg, registry.Metadata{
		Name: "repeat", Category: registry.CategoryCollection, Pure: true,
		Params:     []registry.Param{{Name: "projection", Arity: registry.Required, Lambda: true}},
		ReturnType: "System.Any",
	}, opRepeat)
	def(reg, registry.Metadata{
		Name: "aggregate", Category: registry.CategoryCollection, Pure: true,
		Params: []registry.Param{
			{Name: "aggregator", Arity: registry.Required, Lambda: true},
			{Name: "init", Arity: registry.Optional},
		},
		ReturnType: "System.Any",
	}, opAggregate)
}

func input(ectx registry.Context) value.Collection {
	return value.UnwrapCollection(value.ToCollection(ectx.Input()))
}

func rawInput(ectx registry.Context) value.Collection {
	return value.ToCollection(ectx.Input())
}

func opUnion(_ context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
	lc := value.ToCollection(argValue(args, 0))
	rc := value.ToCollection(argValue(args, 1))
	return dedupPreserveOrder(value.Flatten(lc, rc)), nil
}

func opCombine(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	return value.Flatten(rawInput(ectx), value.ToCollection(argValue(args, 0))), nil
}

func dedupPreserveOrder(c value.Collection) value.Collection {
	var out value.Collection
	for _, v := range c {
		dup := false
		for _, o := range out {
			if eq, ok := value.Equal(v, o); ok && eq {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}

func opFirst(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	return value.First(rawInput(ectx)), nil
}

func opLast(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	return value.Last(rawInput(ectx)), nil
}

func opTail(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	c := rawInput(ectx)
	if len(c) <= 1 {
		return value.Empty(), nil
	}
	return c[1:], nil
}

func intArg(args []registry.Arg, i int) (int, bool) {
	v, ok := single(argCollection(args, i))
	if !ok {
		return 0, false
	}
	n, ok := v.(value.Integer)
	return int(n), ok
}

func opSkip(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	n, ok := intArg(args, 0)
	c := rawInput(ectx)
	if !ok {
		return value.Empty(), nil
	}
	if n <= 0 {
		return c, nil
	}
	if n >= len(c) {
		return value.Empty(), nil
	}
	return c[n:], nil
}

func opTake(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	n, ok := intArg(args, 0)
	c := rawInput(ectx)
	if !ok || n <= 0 {
		return value.Empty(), nil
	}
	if n > len(c) {
		n = len(c)
	}
	return c[:n], nil
}

func opSingle(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	c, err := value.Single(ectx.Input())
	if err != nil {
		return nil, err
	}
	return c, nil
}

func opDistinct(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	return dedupPreserveOrder(rawInput(ectx)), nil
}

func opIsDistinct(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	c := rawInput(ectx)
	return value.Of(value.Boolean(len(dedupPreserveOrder(c)) == len(c))), nil
}

func opCount(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	return value.Of(value.Integer(len(rawInput(ectx)))), nil
}

func opEmpty(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	return value.Of(value.Boolean(value.IsEmpty(ectx.Input()))), nil
}

func allBooleans(c value.Collection, want bool, vacuous bool) value.Value {
	if len(c) == 0 {
		return value.Of(value.Boolean(vacuous))
	}
	for _, v := range c {
		b, ok := value.Unwrap(v).(value.Boolean)
		if !ok {
			continue
		}
		if bool(b) != want {
			return value.Of(value.Boolean(false))
		}
	}
	return value.Of(value.Boolean(true))
}

func anyBooleans(c value.Collection, want bool) value.Value {
	for _, v := range c {
		if b, ok := value.Unwrap(v).(value.Boolean); ok && bool(b) == want {
			return value.Of(value.Boolean(true))
		}
	}
	return value.Of(value.Boolean(false))
}

func opAllTrue(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	return allBooleans(input(ectx), true, true), nil
}
func opAnyTrue(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	return anyBooleans(input(ectx), true), nil
}
func opAllFalse(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	return allBooleans(input(ectx), false, true), nil
}
func opAnyFalse(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	return anyBooleans(input(ectx), false), nil
}

func opChildren(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	var out value.Collection
	for _, v := range input(ectx) {
		if r, ok := v.(value.Resource); ok {
			out = append(out, r.Children()...)
		}
	}
	return out, nil
}

func opDescendants(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	var out value.Collection
	for _, v := range input(ectx) {
		out = append(out, value.Descendants(v)...)
	}
	return out, nil
}

// evalLambda runs a lambda argument once per element of the receiver
// collection, per spec.md 4.6 ("the criteria and projection arguments are
// lambda expressions: they are evaluated once per element with the element
// bound as the implicit input AND as the variable $this"). Per-element
// failures are skipped (recoverable), matching spec.md 4.7's "Failure
// semantics" for filter/project operations.
func evalLambda(ctx context.Context, arg registry.Arg, c value.Collection) []value.Value {
	out := make([]value.Value, len(c))
	for i, el := range c {
		v, err := arg.Lambda.Eval(ctx, el, i, nil)
		if err != nil {
			out[i] = nil
			continue
		}
		out[i] = v
	}
	return out
}

func opExists(ctx context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	c := rawInput(ectx)
	if len(args) == 0 || args[0].Lambda == nil {
		return value.Of(value.Boolean(len(c) > 0)), nil
	}
	for i, el := range c {
		v, err := args[0].Lambda.Eval(ctx, el, i, nil)
		if err != nil {
			continue
		}
		if b, known := value.Truthy(v); known && b {
			return value.Of(value.Boolean(true)), nil
		}
	}
	return value.Of(value.Boolean(false)), nil
}

func opAll(ctx context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	c := rawInput(ectx)
	for i, el := range c {
		v, err := args[0].Lambda.Eval(ctx, el, i, nil)
		if err != nil {
			continue
		}
		if b, known := value.Truthy(v); !known || !b {
			return value.Of(value.Boolean(false)), nil
		}
	}
	return value.Of(value.Boolean(true)), nil
}

func opWhere(ctx context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	c := rawInput(ectx)
	results := evalLambda(ctx, args[0], c)
	var out value.Collection
	for i, v := range results {
		if v == nil {
			continue
		}
		if b, known := value.Truthy(v); known && b {
			out = append(out, c[i])
		}
	}
	return out, nil
}

func opSelect(ctx context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	c := rawInput(ectx)
	results := evalLambda(ctx, args[0], c)
	var out value.Collection
	for _, v := range results {
		if v == nil {
			continue
		}
		out = append(out, value.ToCollection(v)...)
	}
	return value.Flatten(out), nil
}

// opRepeat iterates the projection to a fixed point, collecting all
// distinct intermediate values, per spec.md 4.6 ("repeat iterates
// projection until fixed point").
func opRepeat(ctx context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	seen := map[string]bool{}
	var out value.Collection
	frontier := rawInput(ectx)
	for len(frontier) > 0 {
		var next value.Collection
		for i, el := range frontier {
			v, err := args[0].Lambda.Eval(ctx, el, i, nil)
			if err != nil {
				continue
			}
			for _, item := range value.ToCollection(v) {
				key := item.String()
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, item)
				next = append(next, item)
			}
		}
		frontier = next
	}
	return out, nil
}

// opAggregate threads $total through the collection per spec.md 4.6 and
// 4.7; unlike where/select, a per-element failure surfaces immediately
// (spec.md 4.7: "aggregate surfaces failures").
func opAggregate(ctx context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	c := rawInput(ectx)
	var total value.Value = value.Empty()
	if len(args) > 1 {
		total = argValue(args, 1)
	}
	for i, el := range c {
		v, err := args[0].Lambda.Eval(ctx, el, i, total)
		if err != nil {
			return nil, err
		}
		total = v
	}
	return total, nil
}
