package value

import (
	"reflect"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Equal implements FHIRPath deep equality (the "=" operator body, without
// its Empty-propagation wrapper, which belongs to internal/ops since it
// operates on whole collections). comparable reports whether a and b were
// of comparable kinds at all; when false, callers should treat the result
// as "not equal" only if they know both sides are genuinely incomparable
// (cross-type non-numeric) rather than Empty — in practice internal/ops
// always pre-checks Empty, so comparable=false there simply means false.
func Equal(a, b Value) (equal bool, comparable bool) {
	a, b = Unwrap(a), Unwrap(b)
	switch x := a.(type) {
	case Boolean:
		y, ok := b.(Boolean)
		return ok && x == y, ok
	case Integer:
		switch y := b.(type) {
		case Integer:
			return x == y, true
		case Decimal:
			return DecimalFromInt64(int64(x)).Cmp(y) == 0, true
		}
		return false, false
	case Decimal:
		switch y := b.(type) {
		case Integer:
			return x.Cmp(DecimalFromInt64(int64(y))) == 0, true
		case Decimal:
			return x.Cmp(y) == 0, true
		}
		return false, false
	case String:
		y, ok := b.(String)
		return ok && x == y, ok
	case Date:
		y, ok := b.(Date)
		if !ok {
			if yy, ok2 := b.(DateTime); ok2 {
				c, known := CompareDate(x, yy.ToDate())
				return known && c == 0, known
			}
			return false, false
		}
		c, known := CompareDate(x, y)
		return known && c == 0, known
	case DateTime:
		var y DateTime
		switch yy := b.(type) {
		case DateTime:
			y = yy
		case Date:
			y = yy.ToDateTime()
		default:
			return false, false
		}
		c, known := CompareDateTime(x, y)
		return known && c == 0, known
	case Time:
		y, ok := b.(Time)
		if !ok {
			return false, false
		}
		c, known := CompareTime(x, y)
		return known && c == 0, known
	case Quantity:
		y, ok := b.(Quantity)
		if !ok {
			return false, false
		}
		if calendarEqualityRestricted(x.Unit, y.Unit) {
			return false, false
		}
		converted, err := ConvertQuantity(nil, y, x.Unit)
		if err != nil {
			return false, false
		}
		return x.Value.Cmp(converted.Value) == 0, true
	case TypeInfoObject:
		y, ok := b.(TypeInfoObject)
		return ok && x.Namespace == y.Namespace && x.Name == y.Name, ok
	case Resource:
		y, ok := b.(Resource)
		return ok && reflect.DeepEqual(x.Raw, y.Raw), ok
	default:
		return false, false
	}
}

// Equivalent implements the "~" operator's looser equality: whitespace is
// trimmed and case is folded for strings, numeric comparison tolerates the
// narrower operand's precision, and Date/DateTime/Time allow differing
// precision (treated as not equivalent rather than indeterminate).
func Equivalent(a, b Value) bool {
	a, b = Unwrap(a), Unwrap(b)
	switch x := a.(type) {
	case String:
		y, ok := b.(String)
		if !ok {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(string(x)), strings.TrimSpace(string(y)))
	case Integer, Decimal:
		var xd Decimal
		if i, ok := x.(Integer); ok {
			xd = DecimalFromInt64(int64(i))
		} else {
			xd = x.(Decimal)
		}
		var yd Decimal
		switch y := b.(type) {
		case Integer:
			yd = DecimalFromInt64(int64(y))
		case Decimal:
			yd = y
		default:
			return false
		}
		prec := xd.NumDigits()
		if yd.NumDigits() < prec {
			prec = yd.NumDigits()
		}
		return roundTo(xd, uint32(prec)).Cmp(roundTo(yd, uint32(prec))) == 0
	case Date:
		y, ok := b.(Date)
		if !ok {
			return false
		}
		if x.Precision != y.Precision {
			return false
		}
		c, known := CompareDate(x, y)
		return known && c == 0
	case DateTime:
		y, ok := b.(DateTime)
		if !ok {
			return false
		}
		if x.Precision != y.Precision {
			return false
		}
		c, known := CompareDateTime(x, y)
		return known && c == 0
	case Time:
		y, ok := b.(Time)
		if !ok {
			return false
		}
		if x.Precision != y.Precision {
			return false
		}
		c, known := CompareTime(x, y)
		return known && c == 0
	default:
		eq, ok := Equal(a, b)
		return ok && eq
	}
}

func roundTo(d Decimal, prec uint32) Decimal {
	if prec == 0 {
		prec = 1
	}
	ctx := defaultAPDContext.WithPrecision(prec)
	var out apd.Decimal
	_, _ = ctx.Round(&out, d.V)
	return Decimal{V: &out}
}

// Compare returns an ordering between a and b for the relational operators
// (< <= > >=). ok is false when the operands are not ordered comparable
// (cross-type, incompatible Quantity units, or differing temporal
// precision), which callers fold to Empty.
func Compare(a, b Value) (cmp int, ok bool) {
	a, b = Unwrap(a), Unwrap(b)
	switch x := a.(type) {
	case Integer:
		switch y := b.(type) {
		case Integer:
			return compareInt64(int64(x), int64(y)), true
		case Decimal:
			return DecimalFromInt64(int64(x)).Cmp(y), true
		}
	case Decimal:
		switch y := b.(type) {
		case Integer:
			return x.Cmp(DecimalFromInt64(int64(y))), true
		case Decimal:
			return x.Cmp(y), true
		}
	case String:
		y, ok := b.(String)
		if !ok {
			return 0, false
		}
		return strings.Compare(string(x), string(y)), true
	case Date:
		y, ok := b.(Date)
		if !ok {
			return 0, false
		}
		return CompareDate(x, y)
	case DateTime:
		y, ok := b.(DateTime)
		if !ok {
			return 0, false
		}
		return CompareDateTime(x, y)
	case Time:
		y, ok := b.(Time)
		if !ok {
			return 0, false
		}
		return CompareTime(x, y)
	case Quantity:
		y, ok := b.(Quantity)
		if !ok {
			return 0, false
		}
		converted, err := ConvertQuantity(nil, y, x.Unit)
		if err != nil {
			return 0, false
		}
		return x.Value.Cmp(converted.Value), true
	}
	return 0, false
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
