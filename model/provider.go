// Package model defines the FHIRPath Model Provider capability (spec
// component C2): the external contract a host supplies so the core can
// reflect FHIR types, resolve polymorphic properties, and check subtype
// relationships, without the core itself knowing any FHIR schema.
//
// The contract is intentionally narrow (five operations) so that hosts
// ranging from an in-memory test double (Mock) to a full schema-package
// loader can implement it. The core tolerates a provider that returns zero
// values liberally, degrading to dynamic-typing semantics per the
// specification.
package model

// FHIRVersion identifies which FHIR release a Provider reflects.
type FHIRVersion string

const (
	R4  FHIRVersion = "R4"
	R4B FHIRVersion = "R4B"
	R5  FHIRVersion = "R5"
	R6  FHIRVersion = "R6"
)

// Kind classifies a reflected type.
type Kind int

const (
	KindPrimitive Kind = iota
	KindComplex
	KindResource
	KindBackboneElement
)

// Element describes one property of a reflected type.
type Element struct {
	Name string
	// TypeNames lists the possible types for this element. Most elements
	// have exactly one; FHIR "choice" elements (value[x]) list every
	// concrete type the polymorphic property may resolve to.
	TypeNames []string
	// Polymorphic is true for choice elements (e.g. Observation.value[x]);
	// property_type resolves "value" against a concrete receiver by trying
	// "value"+TitleCase(typeName) for each candidate.
	Polymorphic bool
	Min         int
	Max         int // -1 means unbounded ("*")
}

// TypeReflection is the structural description of a FHIR type returned by
// reflect_type/property_type.
type TypeReflection struct {
	Namespace string // "FHIR" or "System"
	Name      string
	Kind      Kind
	BaseType  string // empty for root types
	Elements  []Element
}

// Provider is the capability a host supplies. Every method may be called
// concurrently; implementations that cache must be internally thread-safe
// (spec section 5, "Shared-resource policy").
type Provider interface {
	// ReflectType returns the structural description of a named type, or
	// ok=false if the provider has no knowledge of it. Pure; may cache.
	ReflectType(name string) (t TypeReflection, ok bool)

	// PropertyType resolves the type of a property on a given type,
	// including polymorphic (value[x]) resolution when the property name
	// carries the concrete choice (e.g. "valueQuantity"). ok=false means
	// "unknown", not "does not exist" — callers that need a hard
	// not-found signal should additionally check ReflectType(typeName)'s
	// Elements list.
	PropertyType(typeName, property string) (t TypeReflection, ok bool)

	// IsSubtypeOf reports whether child is a subtype of (or identical to)
	// parent. Reflexive and transitive; "Resource" is the root of every
	// FHIR resource type, "Any" the root of the System namespace.
	IsSubtypeOf(child, parent string) bool

	// IsResourceType reports whether name is a resource schema (as opposed
	// to a complex type or a primitive).
	IsResourceType(name string) bool

	// FHIRVersion reports which release this provider reflects.
	FHIRVersion() FHIRVersion
}
