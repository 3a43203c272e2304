package ops

import (
	"context"
	"math"

	"github.com/cockroachdb/apd/v3"

	"github.com/fhirpath-go/corefhirpath/registry"
	"github.com/fhirpath-go/corefhirpath/value"
)

// registerArithmetic wires +, -, *, /, div, mod per spec.md 4.6
// ("Arithmetic"). Division-by-zero is Empty for every one of /, div, mod —
// the consistent choice the specification explicitly allows in place of
// raising E500 for integer / by zero.
func registerArithmetic(reg *registry.Registry) {
	binary := func(symbol string, call Func) {
		def(reg, registry.Metadata{
			Name: registry.OperatorKey(symbol), Category: registry.CategoryArithmetic, Pure: true,
			Params:     []registry.Param{{Name: "left", Arity: registry.Required}, {Name: "right", Arity: registry.Required}},
			ReturnType: "System.Any",
		}, call)
	}

	binary("+", opAdd)
	binary("-", opSub)
	binary("*", opMul)
	binary("/", opDiv)
	binary("div", opIntDiv)
	binary("mod", opMod)

	def(reg, registry.Metadata{
		Name: "unary-", Category: registry.CategoryArithmetic, Pure: true,
		Params: []registry.Param{{Name: "operand", Arity: registry.Required}}, ReturnType: "System.Any",
	}, opUnaryMinus)
}

func operands(args []registry.Arg) (left, right value.Value, empty bool) {
	lc := argCollection(args, 0)
	rc := argCollection(args, 1)
	if len(lc) == 0 || len(rc) == 0 {
		return nil, nil, true
	}
	l, lok := single(lc)
	r, rok := single(rc)
	if !lok || !rok {
		return nil, nil, true
	}
	return l, r, false
}

func opAdd(ctx context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
	l, r, empty := operands(args)
	if empty {
		return value.Empty(), nil
	}
	if ls, ok := l.(value.String); ok {
		if rs, ok2 := r.(value.String); ok2 {
			return value.Of(value.String(string(ls) + string(rs))), nil
		}
		return value.Empty(), nil
	}
	if lq, ok := l.(value.Quantity); ok {
		rq, ok2 := r.(value.Quantity)
		if !ok2 {
			return value.Empty(), nil
		}
		converted, err := value.ConvertQuantity(ctx, rq, lq.Unit)
		if err != nil {
			return value.Empty(), nil
		}
		return quantityArith(ctx, lq, converted, (*apd.Context).Add)
	}
	return numericArith(ctx, "+", l, r, (*apd.Context).Add, func(a, b int64) (int64, bool) {
		s := a + b
		if (b > 0 && s < a) || (b < 0 && s > a) {
			return 0, false
		}
		return s, true
	})
}

func opSub(ctx context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
	l, r, empty := operands(args)
	if empty {
		return value.Empty(), nil
	}
	if lq, ok := l.(value.Quantity); ok {
		rq, ok2 := r.(value.Quantity)
		if !ok2 {
			return value.Empty(), nil
		}
		converted, err := value.ConvertQuantity(ctx, rq, lq.Unit)
		if err != nil {
			return value.Empty(), nil
		}
		return quantityArith(ctx, lq, converted, (*apd.Context).Sub)
	}
	return numericArith(ctx, "-", l, r, (*apd.Context).Sub, func(a, b int64) (int64, bool) {
		s := a - b
		if (b < 0 && s < a) || (b > 0 && s > a) {
			return 0, false
		}
		return s, true
	})
}

func opMul(ctx context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
	l, r, empty := operands(args)
	if empty {
		return value.Empty(), nil
	}
	if lq, ok := l.(value.Quantity); ok {
		if rq, ok2 := r.(value.Quantity); ok2 {
			dc := value.DecimalContext(ctx)
			var out apd.Decimal
			if _, err := dc.Mul(&out, lq.Value.V, rq.Value.V); err != nil {
				return value.Empty(), nil
			}
			return value.Of(value.NewQuantity(value.NewDecimal(&out), value.FormatProductUnit(lq.Unit, rq.Unit))), nil
		}
	}
	return numericArith(ctx, "*", l, r, (*apd.Context).Mul, func(a, b int64) (int64, bool) {
		if a == 0 || b == 0 {
			return 0, true
		}
		s := a * b
		if s/b != a {
			return 0, false
		}
		return s, true
	})
}

func opDiv(ctx context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
	l, r, empty := operands(args)
	if empty {
		return value.Empty(), nil
	}
	if lq, ok := l.(value.Quantity); ok {
		if rq, ok2 := r.(value.Quantity); ok2 {
			if rq.Value.IsZero() {
				return value.Empty(), nil
			}
			dc := value.DecimalContext(ctx)
			var out apd.Decimal
			if _, err := dc.Quo(&out, lq.Value.V, rq.Value.V); err != nil {
				return value.Empty(), nil
			}
			return value.Of(value.NewQuantity(value.NewDecimal(&out), value.FormatDivisionUnit(lq.Unit, rq.Unit))), nil
		}
	}
	ld, rd, ok := bothDecimal(l, r)
	if !ok {
		return value.Empty(), nil
	}
	if rd.IsZero() {
		return value.Empty(), nil
	}
	dc := value.DecimalContext(ctx)
	var out apd.Decimal
	if _, err := dc.Quo(&out, ld.V, rd.V); err != nil {
		return value.Empty(), nil
	}
	return value.Of(value.NewDecimal(&out)), nil
}

func opIntDiv(ctx context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
	l, r, empty := operands(args)
	if empty {
		return value.Empty(), nil
	}
	ld, rd, ok := bothDecimal(l, r)
	if !ok {
		return value.Empty(), nil
	}
	if rd.IsZero() {
		return value.Empty(), nil
	}
	dc := value.DecimalContext(ctx)
	var quo apd.Decimal
	if _, err := dc.QuoInteger(&quo, ld.V, rd.V); err != nil {
		return value.Empty(), nil
	}
	i, err := quo.Int64()
	if err != nil {
		return nil, overflowErr("div")
	}
	return value.Of(value.Integer(i)), nil
}

func opMod(ctx context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
	l, r, empty := operands(args)
	if empty {
		return value.Empty(), nil
	}
	ld, rd, ok := bothDecimal(l, r)
	if !ok {
		return value.Empty(), nil
	}
	if rd.IsZero() {
		return value.Empty(), nil
	}
	dc := value.DecimalContext(ctx)
	var out apd.Decimal
	if _, err := dc.Rem(&out, ld.V, rd.V); err != nil {
		return value.Empty(), nil
	}
	if _, isInt := l.(value.Integer); isInt {
		if _, isInt2 := r.(value.Integer); isInt2 {
			i, err := out.Int64()
			if err == nil {
				return value.Of(value.Integer(i)), nil
			}
		}
	}
	return value.Of(value.NewDecimal(&out)), nil
}

func opUnaryMinus(ctx context.Context, _ registry.Context, args []registry.Arg) (value.Value, error) {
	c := argCollection(args, 0)
	v, ok := single(c)
	if !ok {
		return value.Empty(), nil
	}
	switch t := v.(type) {
	case value.Integer:
		if t == math.MinInt64 {
			return nil, overflowErr("unary-")
		}
		return value.Of(-t), nil
	case value.Decimal:
		var out apd.Decimal
		out.Neg(t.V)
		return value.Of(value.NewDecimal(&out)), nil
	case value.Quantity:
		var out apd.Decimal
		out.Neg(t.Value.V)
		return value.Of(value.NewQuantity(value.NewDecimal(&out), t.Unit)), nil
	default:
		return value.Empty(), nil
	}
}

// bothDecimal widens two numeric operands (Integer or Decimal) to Decimal
// for arithmetic that always yields Decimal regardless of input type
// (div/mod promote mixed operands, but the integer-int64 fast path is
// recovered explicitly where the specification requires it, e.g. opMod).
func bothDecimal(l, r value.Value) (value.Decimal, value.Decimal, bool) {
	ld, lok := toDecimal(l)
	rd, rok := toDecimal(r)
	return ld, rd, lok && rok
}

func toDecimal(v value.Value) (value.Decimal, bool) {
	switch t := v.(type) {
	case value.Integer:
		return value.DecimalFromInt64(int64(t)), true
	case value.Decimal:
		return t, true
	default:
		return value.Decimal{}, false
	}
}

// numericArith applies an apd binary op when either operand is Decimal
// (promoting Integer to Decimal), or the supplied int64 checked-overflow
// function when both operands are Integer, per spec.md's "Integer +
// Decimal promotes to Decimal" / "checked overflow -> E502" rules.
func numericArith(ctx context.Context, name string, l, r value.Value, apdOp func(*apd.Context, *apd.Decimal, *apd.Decimal, *apd.Decimal) (apd.Condition, error), intOp func(a, b int64) (int64, bool)) (value.Value, error) {
	li, lIsInt := l.(value.Integer)
	ri, rIsInt := r.(value.Integer)
	if lIsInt && rIsInt {
		sum, ok := intOp(int64(li), int64(ri))
		if !ok {
			return nil, overflowErr(name)
		}
		return value.Of(value.Integer(sum)), nil
	}
	ld, lok := toDecimal(l)
	rd, rok := toDecimal(r)
	if !lok || !rok {
		return value.Empty(), nil
	}
	dc := value.DecimalContext(ctx)
	var out apd.Decimal
	if _, err := apdOp(dc, &out, ld.V, rd.V); err != nil {
		return value.Empty(), nil
	}
	return value.Of(value.NewDecimal(&out)), nil
}

func quantityArith(ctx context.Context, l, r value.Quantity, apdOp func(*apd.Context, *apd.Decimal, *apd.Decimal, *apd.Decimal) (apd.Condition, error)) (value.Value, error) {
	dc := value.DecimalContext(ctx)
	var out apd.Decimal
	if _, err := apdOp(dc, &out, l.Value.V, r.Value.V); err != nil {
		return value.Empty(), nil
	}
	return value.Of(value.NewQuantity(value.NewDecimal(&out), l.Unit)), nil
}
