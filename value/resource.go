package value

import (
	"fmt"
	"sort"
	"strings"
)

// Resource wraps an opaque FHIR JSON tree: a decoded object (map[string]any),
// array ([]any), or nil. Raw is intentionally untyped — the core does not
// know the FHIR schema; a model.Provider consulted by the evaluator supplies
// whatever typing refinement (polymorphic value[x] resolution, resource
// subtype checks) is available.
type Resource struct {
	Raw  any
	Info TypeInfo
}

func (Resource) sealedValue() {}
func (r Resource) Type() TypeInfo { return r.Info }
func (r Resource) String() string {
	return fmt.Sprintf("%s{...}", r.Info.Name)
}

// NewResource wraps a decoded JSON object/array as a Resource with the given
// reflected type.
func NewResource(raw any, info TypeInfo) Resource {
	return Resource{Raw: raw, Info: info}
}

// FHIRPrimitive is a primitive value read from a FHIR resource: it behaves
// exactly like its Underlying System value for every operation (arithmetic,
// comparison, truthiness, conversion) but reflects through the FHIR
// namespace under the FHIR primitive's own type name, per the specification:
// "FHIR primitives preserve the FHIR. namespace when read from a resource;
// System literals use System.".
type FHIRPrimitive struct {
	Underlying Value
	TypeName   string
}

func (FHIRPrimitive) sealedValue() {}
func (p FHIRPrimitive) Type() TypeInfo {
	return TypeInfo{Namespace: NamespaceFHIR, Name: p.TypeName}
}
func (p FHIRPrimitive) String() string { return p.Underlying.String() }

// Unwrap strips a FHIRPrimitive wrapper, returning the underlying System
// value it carries. Every other Value variant is returned unchanged. Callers
// in internal/ops and eval should Unwrap operands before a type switch so
// FHIR-sourced primitives behave identically to System literals.
func Unwrap(v Value) Value {
	if p, ok := v.(FHIRPrimitive); ok {
		return p.Underlying
	}
	return v
}

// UnwrapCollection applies Unwrap to every element of a collection.
func UnwrapCollection(c Collection) Collection {
	out := make(Collection, len(c))
	for i, v := range c {
		out[i] = Unwrap(v)
	}
	return out
}

// jsonPrimitive converts a decoded JSON scalar into a FHIRPrimitive with a
// best-effort FHIR primitive type name. This is the structural fallback used
// when no model.Provider refinement is available; the evaluator overrides
// TypeName using the provider's property_type result when one exists.
func jsonPrimitive(v any, fieldName string) Value {
	switch t := v.(type) {
	case bool:
		return FHIRPrimitive{Underlying: Boolean(t), TypeName: "boolean"}
	case float64:
		if t == float64(int64(t)) {
			return FHIRPrimitive{Underlying: Integer(int64(t)), TypeName: "integer"}
		}
		d, err := ParseDecimal(fmt.Sprintf("%v", t))
		if err != nil {
			return FHIRPrimitive{Underlying: String(fmt.Sprintf("%v", t)), TypeName: "decimal"}
		}
		return FHIRPrimitive{Underlying: d, TypeName: "decimal"}
	case string:
		return FHIRPrimitive{Underlying: String(t), TypeName: primitiveTypeNameForField(fieldName)}
	case nil:
		return nil
	default:
		return nil
	}
}

// primitiveTypeNameForField is a best-effort guess at the FHIR primitive
// type name for a string-valued JSON field, based on common FHIR naming
// conventions (fields ending in "date", "dateTime", "time", "instant",
// "uri"/"url" etc). Without schema information this can only be a fallback;
// a model.Provider, when present, supplies the authoritative type.
func primitiveTypeNameForField(field string) string {
	lower := strings.ToLower(field)
	switch {
	case strings.HasSuffix(lower, "datetime") || strings.HasSuffix(lower, "instant"):
		return "dateTime"
	case strings.HasSuffix(lower, "date"):
		return "date"
	case strings.HasSuffix(lower, "time"):
		return "time"
	case strings.HasSuffix(lower, "uri") || strings.HasSuffix(lower, "url") || strings.HasSuffix(lower, "canonical"):
		return "uri"
	default:
		return "string"
	}
}

// jsonToValue converts a decoded JSON value (object, array, scalar) rooted
// at a field named fieldName into zero or more Values, flattening arrays one
// level per the Collection invariant.
func jsonToValue(v any, fieldName string) []Value {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return []Value{NewResource(t, TypeInfo{Namespace: NamespaceFHIR, Name: strings.ToUpper(fieldName[:1]) + fieldName[1:]})}
	case []any:
		var out []Value
		for _, e := range t {
			out = append(out, jsonToValue(e, fieldName)...)
		}
		return out
	default:
		if val := jsonPrimitive(t, fieldName); val != nil {
			return []Value{val}
		}
		return nil
	}
}

// PropertyValue reads field off the resource, using typeHint (a FHIR type
// name such as "Quantity" or "dateTime") as the authoritative type instead of
// the field-name heuristic jsonToValue falls back to. Used by the evaluator
// to resolve a polymorphic (choice) property — e.g. Observation.value
// resolved to the concrete JSON key "valueQuantity" — where the logical
// property name ("value") no longer matches the field read ("valueQuantity")
// so the heuristic in jsonPrimitive would guess wrong.
func (r Resource) PropertyValue(field, typeHint string) Collection {
	obj, ok := r.Raw.(map[string]any)
	if !ok {
		return Empty()
	}
	raw, present := obj[field]
	if !present {
		return Empty()
	}
	if typeHint == "" {
		return jsonToValue(raw, field)
	}
	return jsonToValueTyped(raw, typeHint)
}

// ResolveChoice finds the concrete JSON key a polymorphic (choice) property
// resolves to, e.g. base="value" with candidates=["Quantity","string",...]
// on an Observation resolves to field="valueQuantity", typeName="Quantity"
// when that key is present. Mirrors model.ResolveChoiceField's intent, but
// operates on the already-decoded Raw map rather than raw JSON bytes, since
// by the time navigation reaches a Resource its JSON has already been
// unmarshaled.
func (r Resource) ResolveChoice(base string, candidates []string) (field, typeName string, ok bool) {
	obj, isMap := r.Raw.(map[string]any)
	if !isMap {
		return "", "", false
	}
	for _, c := range candidates {
		key := base + titleCaseFirst(c)
		if _, present := obj[key]; present {
			return key, c, true
		}
	}
	return "", "", false
}

func titleCaseFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func jsonToValueTyped(v any, typeName string) []Value {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return []Value{NewResource(t, TypeInfo{Namespace: NamespaceFHIR, Name: typeName})}
	case []any:
		var out []Value
		for _, e := range t {
			out = append(out, jsonToValueTyped(e, typeName)...)
		}
		return out
	default:
		if val := jsonPrimitiveTyped(t, typeName); val != nil {
			return []Value{val}
		}
		return nil
	}
}

func jsonPrimitiveTyped(v any, typeName string) Value {
	switch t := v.(type) {
	case bool:
		return FHIRPrimitive{Underlying: Boolean(t), TypeName: typeName}
	case float64:
		if t == float64(int64(t)) {
			return FHIRPrimitive{Underlying: Integer(int64(t)), TypeName: typeName}
		}
		d, err := ParseDecimal(fmt.Sprintf("%v", t))
		if err != nil {
			return FHIRPrimitive{Underlying: String(fmt.Sprintf("%v", t)), TypeName: typeName}
		}
		return FHIRPrimitive{Underlying: d, TypeName: typeName}
	case string:
		return FHIRPrimitive{Underlying: String(t), TypeName: typeName}
	default:
		return nil
	}
}

// Children returns the direct child values of the resource matching any of
// the given field names (all fields if none are given), per the
// specification's children() operation. Fields whose name begins with "_"
// (FHIR primitive extension siblings) are skipped: extension data is not
// itself a navigable value in this contract.
func (r Resource) Children(names ...string) Collection {
	obj, ok := r.Raw.(map[string]any)
	if !ok {
		return Empty()
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out Collection
	for _, k := range keys {
		if strings.HasPrefix(k, "_") || k == "resourceType" {
			continue
		}
		if len(want) > 0 && !want[k] {
			continue
		}
		out = append(out, jsonToValue(obj[k], k)...)
	}
	return out
}

// Descendants returns the transitive closure of Children(), pre-order: each
// child, then recursively the children of any child that is itself a
// Resource.
func Descendants(v Value) Collection {
	var out Collection
	var walk func(Value)
	walk = func(v Value) {
		r, ok := Unwrap(v).(Resource)
		if !ok {
			return
		}
		for _, child := range r.Children() {
			out = append(out, child)
			walk(child)
		}
	}
	walk(v)
	return out
}
