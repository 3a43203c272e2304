package value

import (
	"context"
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// defaultDecimalPrecision keeps 34 significant digits (roughly Decimal128),
// well past the FHIRPath-mandated minimum of 18, so intermediate results in
// long arithmetic chains don't lose fractional digits. Carried from the
// teacher's defaultAPDContext.
const defaultDecimalPrecision uint32 = 34

var defaultAPDContext = apd.BaseContext.WithPrecision(defaultDecimalPrecision)

type decimalContextKey struct{}

// WithDecimalContext overrides the apd.Context used for Decimal and
// Quantity arithmetic during an evaluation. Use it to trade precision for
// speed, or to experiment with a tighter context; the zero value (not
// calling this) gets 34 digits of precision.
func WithDecimalContext(ctx context.Context, dc *apd.Context) context.Context {
	return context.WithValue(ctx, decimalContextKey{}, dc)
}

// DecimalContext returns the apd.Context installed by WithDecimalContext, or
// the package default.
func DecimalContext(ctx context.Context) *apd.Context {
	if ctx != nil {
		if dc, ok := ctx.Value(decimalContextKey{}).(*apd.Context); ok {
			return dc
		}
	}
	return defaultAPDContext
}

// Decimal is the System.Decimal variant: an arbitrary-precision base-10
// number backed by apd.Decimal.
type Decimal struct {
	V *apd.Decimal
}

func (Decimal) sealedValue() {}
func (d Decimal) Type() TypeInfo {
	return TypeInfo{Namespace: NamespaceSystem, Name: "Decimal"}
}
func (d Decimal) String() string {
	if d.V == nil {
		return "0"
	}
	return d.V.Text('f')
}

// NewDecimal wraps an *apd.Decimal as a Value.
func NewDecimal(d *apd.Decimal) Decimal { return Decimal{V: d} }

// DecimalFromInt64 builds a Decimal with a zero exponent.
func DecimalFromInt64(i int64) Decimal {
	return Decimal{V: apd.New(i, 0)}
}

// ParseDecimal parses a decimal literal (optional sign, digits, optional
// fractional part) using the package default context's precision rules.
func ParseDecimal(s string) (Decimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("value: invalid decimal %q: %w", s, err)
	}
	return Decimal{V: d}, nil
}

// NumDigits returns the number of significant digits in the decimal's
// coefficient.
func (d Decimal) NumDigits() int64 {
	if d.V == nil {
		return 1
	}
	return d.V.NumDigits()
}

// Scale returns the number of digits after the decimal point (0 if the
// value has no fractional part recorded).
func (d Decimal) Scale() int32 {
	if d.V == nil || d.V.Exponent >= 0 {
		return 0
	}
	return -d.V.Exponent
}

// IsZero reports whether the decimal value is exactly zero.
func (d Decimal) IsZero() bool {
	return d.V == nil || d.V.IsZero()
}

// Cmp returns -1, 0, or 1 comparing d and o numerically (ignoring scale).
func (d Decimal) Cmp(o Decimal) int {
	return d.V.Cmp(o.V)
}
