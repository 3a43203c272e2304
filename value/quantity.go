package value

import (
	"context"
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// Quantity is the System.Quantity variant: a decimal value tagged with a
// UCUM unit string.
type Quantity struct {
	Value Decimal
	Unit  string
}

func (Quantity) sealedValue() {}
func (q Quantity) Type() TypeInfo {
	return TypeInfo{Namespace: NamespaceSystem, Name: "Quantity"}
}
func (q Quantity) String() string {
	return fmt.Sprintf("%s '%s'", q.Value.String(), q.Unit)
}

// NewQuantity builds a Quantity, defaulting an empty unit to the UCUM
// unity unit "1" (e.g. for a bare decimal widened to quantity by toQuantity).
func NewQuantity(v Decimal, unit string) Quantity {
	if unit == "" {
		unit = "1"
	}
	return Quantity{Value: v, Unit: unit}
}

// unitFactor is a conversion-factor table entry: how many of `unit` make up
// one `base` unit.
type unitFactor struct {
	base   string
	factor float64
}

// ucumFactors maps a UCUM unit code to its factor relative to a fixed base
// unit of the same dimension. This is a deliberately small, hand-rolled
// table (grounded on the teacher's own hand-rolled canonicalizeUnit, and on
// google-cql/ucum's map-of-conversion-factors shape) rather than a generic
// UCUM expression evaluator: FHIRPath arithmetic only ever needs to convert
// between two concrete, already-known units, never to parse an arbitrary
// UCUM grammar expression.
var ucumFactors = map[string]unitFactor{
	// mass, base = g
	"g":  {"g", 1},
	"kg": {"g", 1000},
	"mg": {"g", 0.001},
	"ug": {"g", 0.000001},
	"ng": {"g", 0.000000001},
	// length, base = m
	"m":  {"m", 1},
	"km": {"m", 1000},
	"cm": {"m", 0.01},
	"mm": {"m", 0.001},
	"um": {"m", 0.000001},
	// volume, base = L
	"L":  {"L", 1},
	"l":  {"L", 1},
	"mL": {"L", 0.001},
	"ml": {"L", 0.001},
	"dL": {"L", 0.1},
	"cL": {"L", 0.01},
	// time, base = s
	"s":   {"s", 1},
	"ms":  {"s", 0.001},
	"min": {"s", 60},
	"h":   {"s", 3600},
	"d":   {"s", 86400},
	"wk":  {"s", 604800},
	// calendar-duration units: incomparable to their definite-unit
	// counterparts per Quantity Equality ("calendar duration" units may not
	// equal an equivalent definite-duration UCUM unit even though they share
	// a nominal conversion factor), tagged with the "calendar" base so
	// calendarEqualityRestricted below can detect the mismatch.
	"a":  {"cal-a", 1},
	"mo": {"cal-mo", 1},
	// dimensionless
	"1":    {"1", 1},
	"%":    {"1", 0.01},
	"[ppm]": {"1", 0.000001},
}

// canonicalUnit returns the base unit and the multiplier that converts a
// value expressed in `unit` to the equivalent value in that base unit.
func canonicalUnit(unit string) (base string, multiplier float64, known bool) {
	f, ok := ucumFactors[unit]
	if !ok {
		return unit, 1, false
	}
	return f.base, f.factor, true
}

// calendarEqualityRestricted reports whether comparing leftUnit and
// rightUnit falls under the FHIRPath "Quantity Equality" restriction:
// calendar duration units (year 'a', month 'mo') are never equal to a
// definite-duration UCUM unit of the same dimension, even when both
// resolve to the same base, because one is calendar-relative (its exact
// duration depends on which year/month) and the other is not.
func calendarEqualityRestricted(leftUnit, rightUnit string) bool {
	isCalendar := func(u string) bool { return u == "a" || u == "mo" }
	return isCalendar(leftUnit) != isCalendar(rightUnit) &&
		(leftUnit == "a" || leftUnit == "mo" || rightUnit == "a" || rightUnit == "mo") &&
		sameDimension(leftUnit, rightUnit)
}

func sameDimension(a, b string) bool {
	baseA, _, okA := canonicalUnit(a)
	baseB, _, okB := canonicalUnit(b)
	if !okA || !okB {
		return false
	}
	normalize := func(s string) string {
		switch s {
		case "cal-a", "cal-mo":
			return "s"
		default:
			return s
		}
	}
	return normalize(baseA) == normalize(baseB)
}

// ConvertQuantity converts q to the given target unit, returning an error if
// the units are not of compatible dimension. Equal units always succeed,
// even if unknown to the conversion table (no-op conversion).
func ConvertQuantity(ctx context.Context, q Quantity, targetUnit string) (Quantity, error) {
	if q.Unit == targetUnit {
		return q, nil
	}
	baseFrom, factorFrom, okFrom := canonicalUnit(q.Unit)
	baseTo, factorTo, okTo := canonicalUnit(targetUnit)
	if !okFrom || !okTo || baseFrom != baseTo {
		return Quantity{}, fmt.Errorf("value: incompatible units %q and %q", q.Unit, targetUnit)
	}
	ratio := factorFrom / factorTo
	ratioDecimal, err := ParseDecimal(fmt.Sprintf("%.17g", ratio))
	if err != nil {
		return Quantity{}, err
	}
	var out apd.Decimal
	dc := DecimalContext(ctx)
	if _, err := dc.Mul(&out, q.Value.V, ratioDecimal.V); err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: Decimal{V: &out}, Unit: targetUnit}, nil
}

// FormatProductUnit renders the UCUM unit resulting from multiplying two
// quantities, e.g. "m" * "m" -> "m2", "m" * "s" -> "m.s".
func FormatProductUnit(left, right string) string {
	if left == "1" {
		return right
	}
	if right == "1" {
		return left
	}
	if left == right {
		return left + "2"
	}
	return left + "." + right
}

// FormatDivisionUnit renders the UCUM unit resulting from dividing two
// quantities, e.g. "m" / "s" -> "m/s".
func FormatDivisionUnit(numerator, denominator string) string {
	if denominator == "1" {
		return numerator
	}
	if numerator == denominator {
		return "1"
	}
	return numerator + "/" + denominator
}
