package ops

import (
	"context"
	"strconv"
	"strings"

	"github.com/fhirpath-go/corefhirpath/internal/parse"
	"github.com/fhirpath-go/corefhirpath/registry"
	"github.com/fhirpath-go/corefhirpath/value"
)

// registerConversion wires the Conversion category from spec.md 4.6: each
// toX has a convertsToX boolean companion that succeeds exactly when toX
// would, per the section's "Each convertsToX is the boolean companion"
// rule — both share the same underlying tryX helper.
func registerConversion(reg *registry.Registry) {
	conv := func(name, ret string, call Func) {
		def(reg, registry.Metadata{Name: name, Category: registry.CategoryConversion, Pure: true, ReturnType: ret}, call)
	}
	conv("toString", "System.String", opToString)
	conv("toInteger", "System.Integer", opToInteger)
	conv("toDecimal", "System.Decimal", opToDecimal)
	conv("toBoolean", "System.Boolean", opToBoolean)
	conv("toDate", "System.Date", opToDate)
	conv("toDateTime", "System.DateTime", opToDateTime)
	conv("toTime", "System.Time", opToTime)
	conv("toQuantity", "System.Quantity", opToQuantity)

	conv("convertsToString", "System.Boolean", convertsTo(tryToString))
	conv("convertsToInteger", "System.Boolean", convertsTo(tryToInteger))
	conv("convertsToDecimal", "System.Boolean", convertsTo(tryToDecimal))
	conv("convertsToBoolean", "System.Boolean", convertsTo(tryToBoolean))
	conv("convertsToDate", "System.Boolean", convertsTo(tryToDate))
	conv("convertsToDateTime", "System.Boolean", convertsTo(tryToDateTime))
	conv("convertsToTime", "System.Boolean", convertsTo(tryToTime))
	conv("convertsToQuantity", "System.Boolean", convertsTo(tryToQuantity))
}

// convertsTo adapts a tryX helper (which returns ok=false on failure) into
// the boolean-returning registry Func its convertsToX entry needs.
func convertsTo(try func(value.Value) (value.Value, bool)) Func {
	return func(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
		v, ok := single(rawInput(ectx))
		if !ok {
			return value.Empty(), nil
		}
		_, convOk := try(v)
		return value.Of(value.Boolean(convOk)), nil
	}
}

func single1(ectx registry.Context) (value.Value, bool) {
	return single(rawInput(ectx))
}

func tryToString(v value.Value) (value.Value, bool) {
	switch t := value.Unwrap(v).(type) {
	case value.String:
		return t, true
	case value.Boolean:
		if t {
			return value.String("true"), true
		}
		return value.String("false"), true
	case value.Integer, value.Decimal, value.Date, value.DateTime, value.Time, value.Quantity:
		return value.String(t.String()), true
	default:
		return nil, false
	}
}

func opToString(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	v, ok := single1(ectx)
	if !ok {
		return value.Empty(), nil
	}
	out, ok := tryToString(v)
	if !ok {
		return value.Empty(), nil
	}
	return value.Of(out), nil
}

// tryToInteger: String -> Integer requires optional sign and digits only,
// per spec.md 4.6.
func tryToInteger(v value.Value) (value.Value, bool) {
	switch t := value.Unwrap(v).(type) {
	case value.Integer:
		return t, true
	case value.Boolean:
		if t {
			return value.Integer(1), true
		}
		return value.Integer(0), true
	case value.String:
		s := strings.TrimSpace(string(t))
		if s == "" {
			return nil, false
		}
		body := s
		if body[0] == '+' || body[0] == '-' {
			body = body[1:]
		}
		if body == "" {
			return nil, false
		}
		for _, r := range body {
			if r < '0' || r > '9' {
				return nil, false
			}
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, false
		}
		return value.Integer(n), true
	default:
		return nil, false
	}
}

func opToInteger(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	v, ok := single1(ectx)
	if !ok {
		return value.Empty(), nil
	}
	out, ok := tryToInteger(v)
	if !ok {
		return value.Empty(), nil
	}
	return value.Of(out), nil
}

// tryToDecimal: String -> Decimal accepts an optional decimal point, per
// spec.md 4.6.
func tryToDecimal(v value.Value) (value.Value, bool) {
	switch t := value.Unwrap(v).(type) {
	case value.Decimal:
		return t, true
	case value.Integer:
		return value.DecimalFromInt64(int64(t)), true
	case value.Boolean:
		if t {
			return value.DecimalFromInt64(1), true
		}
		return value.DecimalFromInt64(0), true
	case value.String:
		d, err := value.ParseDecimal(strings.TrimSpace(string(t)))
		if err != nil {
			return nil, false
		}
		return d, true
	default:
		return nil, false
	}
}

func opToDecimal(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	v, ok := single1(ectx)
	if !ok {
		return value.Empty(), nil
	}
	out, ok := tryToDecimal(v)
	if !ok {
		return value.Empty(), nil
	}
	return value.Of(out), nil
}

func tryToBoolean(v value.Value) (value.Value, bool) {
	switch t := value.Unwrap(v).(type) {
	case value.Boolean:
		return t, true
	case value.Integer:
		switch t {
		case 0:
			return value.Boolean(false), true
		case 1:
			return value.Boolean(true), true
		default:
			return nil, false
		}
	case value.String:
		switch strings.ToLower(strings.TrimSpace(string(t))) {
		case "true", "t", "yes", "y", "1", "1.0":
			return value.Boolean(true), true
		case "false", "f", "no", "n", "0", "0.0":
			return value.Boolean(false), true
		default:
			return nil, false
		}
	default:
		return nil, false
	}
}

func opToBoolean(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	v, ok := single1(ectx)
	if !ok {
		return value.Empty(), nil
	}
	out, ok := tryToBoolean(v)
	if !ok {
		return value.Empty(), nil
	}
	return value.Of(out), nil
}

// tryToDate/tryToDateTime/tryToTime accept the ISO-8601 forms spec.md 4.6
// calls out (YYYY, YYYY-MM, YYYY-MM-DD, and full datetime), delegating the
// actual parsing to internal/parse's date/time literal grammar rather than
// re-implementing it — the same textual grammar backs both @-literals and
// these string conversions.
func tryToDate(v value.Value) (value.Value, bool) {
	switch t := value.Unwrap(v).(type) {
	case value.Date:
		return t, true
	case value.DateTime:
		return t.ToDate(), true
	case value.String:
		parsed, err := parse.ParseTemporalLiteral(string(t))
		if err != nil {
			return nil, false
		}
		switch p := parsed.(type) {
		case value.Date:
			return p, true
		case value.DateTime:
			return p.ToDate(), true
		default:
			return nil, false
		}
	default:
		return nil, false
	}
}

func opToDate(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	v, ok := single1(ectx)
	if !ok {
		return value.Empty(), nil
	}
	out, ok := tryToDate(v)
	if !ok {
		return value.Empty(), nil
	}
	return value.Of(out), nil
}

func tryToDateTime(v value.Value) (value.Value, bool) {
	switch t := value.Unwrap(v).(type) {
	case value.DateTime:
		return t, true
	case value.Date:
		return t.ToDateTime(), true
	case value.String:
		parsed, err := parse.ParseTemporalLiteral(string(t))
		if err != nil {
			return nil, false
		}
		switch p := parsed.(type) {
		case value.DateTime:
			return p, true
		case value.Date:
			return p.ToDateTime(), true
		default:
			return nil, false
		}
	default:
		return nil, false
	}
}

func opToDateTime(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	v, ok := single1(ectx)
	if !ok {
		return value.Empty(), nil
	}
	out, ok := tryToDateTime(v)
	if !ok {
		return value.Empty(), nil
	}
	return value.Of(out), nil
}

func tryToTime(v value.Value) (value.Value, bool) {
	switch t := value.Unwrap(v).(type) {
	case value.Time:
		return t, true
	case value.String:
		s := string(t)
		if strings.HasPrefix(s, "T") {
			s = s[1:]
		}
		parsed, err := parse.ParseTemporalLiteral("T" + s)
		if err != nil {
			return nil, false
		}
		tm, ok := parsed.(value.Time)
		if !ok {
			return nil, false
		}
		return tm, true
	default:
		return nil, false
	}
}

func opToTime(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	v, ok := single1(ectx)
	if !ok {
		return value.Empty(), nil
	}
	out, ok := tryToTime(v)
	if !ok {
		return value.Empty(), nil
	}
	return value.Of(out), nil
}

func tryToQuantity(v value.Value) (value.Value, bool) {
	switch t := value.Unwrap(v).(type) {
	case value.Quantity:
		return t, true
	case value.Integer:
		return value.NewQuantity(value.DecimalFromInt64(int64(t)), "1"), true
	case value.Decimal:
		return value.NewQuantity(t, "1"), true
	case value.String:
		s := strings.TrimSpace(string(t))
		parts := strings.SplitN(s, " ", 2)
		num := parts[0]
		unit := "1"
		if len(parts) == 2 {
			unit = strings.Trim(strings.TrimSpace(parts[1]), "'")
		}
		d, err := value.ParseDecimal(num)
		if err != nil {
			return nil, false
		}
		return value.NewQuantity(d, unit), true
	default:
		return nil, false
	}
}

func opToQuantity(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	v, ok := single1(ectx)
	if !ok {
		return value.Empty(), nil
	}
	out, ok := tryToQuantity(v)
	if !ok {
		return value.Empty(), nil
	}
	return value.Of(out), nil
}
