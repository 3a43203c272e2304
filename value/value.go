// Package value implements the FHIRPath value model (spec component C1): a
// tagged variant type for the System namespace (Boolean, Integer, Decimal,
// String, Date, DateTime, Time, Quantity), the FHIR Resource wrapper, type
// reflection objects, and the Collection that every intermediate result is
// shaped as.
//
// A single Value is conceptually a one-element Collection; most of the
// package's helpers (First, Single, IsEmpty, Truthy) treat the two
// interchangeably, matching the "Empty and a zero-length Collection are
// observationally equivalent" invariant from the specification.
package value

import "fmt"

// Value is the sealed interface implemented by every variant of the
// FHIRPath value model. It is intentionally small: type-specific behavior
// (conversion, comparison, arithmetic) lives in the internal/ops package,
// keyed off a type switch, rather than as methods here, so that adding an
// operation never requires touching the value types themselves.
type Value interface {
	// Type returns the reflected TypeInfo for this value.
	Type() TypeInfo
	// String renders a debug/display form. It is not the FHIRPath
	// toString() conversion (see internal/ops's conversion.go for that);
	// it exists so %v and test failures are readable.
	String() string

	sealedValue()
}

// Collection is an ordered multiset of Values. Collections never nest
// directly: constructors that combine values flatten one level, per the
// specification's Collection invariant.
type Collection []Value

func (Collection) sealedValue() {}

// Type reflects a Collection as System.Any unless it is a singleton, in
// which case it defers to the single element. Callers that need the type of
// a specific element should call Type on that element directly.
func (c Collection) Type() TypeInfo {
	if len(c) == 1 {
		return c[0].Type()
	}
	return TypeInfo{Namespace: NamespaceSystem, Name: "Any"}
}

func (c Collection) String() string {
	if len(c) == 0 {
		return "{}"
	}
	s := "{"
	for i, v := range c {
		if i > 0 {
			s += ", "
		}
		s += v.String()
	}
	return s + "}"
}

// Empty returns the canonical empty collection.
func Empty() Collection { return nil }

// Of wraps a single Value (or nothing) as a Collection. Passing Empty() or
// no argument returns Empty.
func Of(vs ...Value) Collection {
	if len(vs) == 0 || (len(vs) == 1 && IsEmpty(vs[0])) {
		return Empty()
	}
	return Collection(vs)
}

// ToCollection normalizes any Value into a Collection: an existing
// Collection is returned unchanged (already flat, by invariant), anything
// else becomes a one-element Collection, and a nil Value becomes Empty.
func ToCollection(v Value) Collection {
	if v == nil {
		return Empty()
	}
	if c, ok := v.(Collection); ok {
		return c
	}
	return Collection{v}
}

// Flatten concatenates collections, flattening one level: any element that
// is itself a Collection has its members spliced in rather than nested.
func Flatten(cols ...Collection) Collection {
	var out Collection
	for _, c := range cols {
		for _, v := range c {
			if inner, ok := v.(Collection); ok {
				out = append(out, inner...)
				continue
			}
			out = append(out, v)
		}
	}
	return out
}

// IsEmpty reports whether v is Empty or a zero-length Collection.
func IsEmpty(v Value) bool {
	if v == nil {
		return true
	}
	c, ok := v.(Collection)
	return ok && len(c) == 0
}

// First returns the first element of v as a singleton Collection, or Empty.
func First(v Value) Collection {
	c := ToCollection(v)
	if len(c) == 0 {
		return Empty()
	}
	return Collection{c[0]}
}

// Last returns the last element of v as a singleton Collection, or Empty.
func Last(v Value) Collection {
	c := ToCollection(v)
	if len(c) == 0 {
		return Empty()
	}
	return Collection{c[len(c)-1]}
}

// Single returns the sole element of v, or an error if v has more than one
// element. Empty input returns Empty, nil error: "single on empty" is not a
// failure under FHIRPath semantics (it is the caller's job to report
// cardinality errors where the spec requires them, e.g. registry.Metadata).
func Single(v Value) (Collection, error) {
	c := ToCollection(v)
	switch len(c) {
	case 0:
		return Empty(), nil
	case 1:
		return c, nil
	default:
		return nil, fmt.Errorf("value: expected a single element, got %d", len(c))
	}
}

// Truthy implements the three-valued truthiness used by control-flow
// operations (iif's condition, and/or operands). It returns (true, true) for
// a true singleton, (false, true) for a false singleton, and (false, false)
// for anything else — Empty, a multi-element collection, or a singleton
// that is not Boolean — which callers fold back to Value Empty ("unknown").
func Truthy(v Value) (result bool, known bool) {
	c := ToCollection(v)
	if len(c) != 1 {
		return false, false
	}
	b, ok := Unwrap(c[0]).(Boolean)
	if !ok {
		return false, false
	}
	return bool(b), true
}

// BoolToValue lifts an Option<bool>-shaped result (as used by the three
// valued logic helpers) back into a Value: known=false always yields Empty.
func BoolToValue(result, known bool) Collection {
	if !known {
		return Empty()
	}
	return Of(Boolean(result))
}

// TypeName returns the unqualified type name FHIRPath surfaces for a value,
// e.g. via type().name. It is a convenience wrapper over Type().Name.
func TypeName(v Value) string {
	if v == nil {
		return ""
	}
	return v.Type().Name
}
