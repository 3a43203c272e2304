package model

import "strings"

// Mock is an in-memory Provider seeded with a small, hand-authored slice of
// the FHIR type hierarchy — enough for tests and for hosts that have not
// wired a real schema package yet. Grounded on the in-memory schema-map
// pattern used by gofhir-validator's pkg/loader (a name-keyed map of
// schemas, looked up without any I/O).
type Mock struct {
	version  FHIRVersion
	types    map[string]TypeReflection
	resource map[string]bool
}

// NewMock builds a Mock provider for the given FHIR version, seeded with a
// baseline set of System types and a handful of common FHIR resource/complex
// types (Patient, HumanName, Identifier, CodeableConcept, ...). Callers can
// add more via Register.
func NewMock(version FHIRVersion) *Mock {
	m := &Mock{
		version:  version,
		types:    map[string]TypeReflection{},
		resource: map[string]bool{},
	}
	m.seedSystemTypes()
	m.seedBaselineFHIRTypes()
	return m
}

// Register adds or replaces a type reflection.
func (m *Mock) Register(t TypeReflection) {
	key := qualify(t.Name)
	if t.Namespace != "" {
		key = t.Namespace + "." + t.Name
	}
	m.types[key] = t
	if t.Kind == KindResource {
		m.resource[t.Name] = true
	}
}

func (m *Mock) seedSystemTypes() {
	for _, name := range []string{"Any", "Boolean", "Integer", "Long", "Decimal", "String", "Date", "DateTime", "Time", "Quantity"} {
		base := "Any"
		if name == "Any" {
			base = ""
		}
		m.types["System."+name] = TypeReflection{Namespace: "System", Name: name, Kind: KindPrimitive, BaseType: base}
	}
}

func (m *Mock) seedBaselineFHIRTypes() {
	prim := func(name string) TypeReflection {
		return TypeReflection{Namespace: "FHIR", Name: name, Kind: KindPrimitive, BaseType: "Element"}
	}
	for _, name := range []string{"boolean", "integer", "decimal", "string", "uri", "url", "canonical",
		"date", "dateTime", "time", "instant", "code", "id", "markdown", "base64Binary"} {
		m.types["FHIR."+name] = prim(name)
	}

	m.types["FHIR.Element"] = TypeReflection{Namespace: "FHIR", Name: "Element", Kind: KindComplex}
	m.types["FHIR.Resource"] = TypeReflection{Namespace: "FHIR", Name: "Resource", Kind: KindResource}
	m.types["FHIR.DomainResource"] = TypeReflection{Namespace: "FHIR", Name: "DomainResource", Kind: KindResource, BaseType: "Resource"}

	m.types["FHIR.Identifier"] = TypeReflection{Namespace: "FHIR", Name: "Identifier", Kind: KindComplex, BaseType: "Element", Elements: []Element{
		{Name: "use", TypeNames: []string{"code"}, Max: 1},
		{Name: "system", TypeNames: []string{"uri"}, Max: 1},
		{Name: "value", TypeNames: []string{"string"}, Max: 1},
	}}
	m.types["FHIR.CodeableConcept"] = TypeReflection{Namespace: "FHIR", Name: "CodeableConcept", Kind: KindComplex, BaseType: "Element", Elements: []Element{
		{Name: "coding", TypeNames: []string{"Coding"}, Max: -1},
		{Name: "text", TypeNames: []string{"string"}, Max: 1},
	}}
	m.types["FHIR.Coding"] = TypeReflection{Namespace: "FHIR", Name: "Coding", Kind: KindComplex, BaseType: "Element", Elements: []Element{
		{Name: "system", TypeNames: []string{"uri"}, Max: 1},
		{Name: "code", TypeNames: []string{"code"}, Max: 1},
		{Name: "display", TypeNames: []string{"string"}, Max: 1},
	}}
	m.types["FHIR.HumanName"] = TypeReflection{Namespace: "FHIR", Name: "HumanName", Kind: KindComplex, BaseType: "Element", Elements: []Element{
		{Name: "use", TypeNames: []string{"code"}, Max: 1},
		{Name: "text", TypeNames: []string{"string"}, Max: 1},
		{Name: "family", TypeNames: []string{"string"}, Max: 1},
		{Name: "given", TypeNames: []string{"string"}, Max: -1},
	}}
	m.types["FHIR.Quantity"] = TypeReflection{Namespace: "FHIR", Name: "Quantity", Kind: KindComplex, BaseType: "Element", Elements: []Element{
		{Name: "value", TypeNames: []string{"decimal"}, Max: 1},
		{Name: "unit", TypeNames: []string{"string"}, Max: 1},
		{Name: "system", TypeNames: []string{"uri"}, Max: 1},
		{Name: "code", TypeNames: []string{"code"}, Max: 1},
	}}

	m.Register(TypeReflection{Namespace: "FHIR", Name: "Patient", Kind: KindResource, BaseType: "DomainResource", Elements: []Element{
		{Name: "identifier", TypeNames: []string{"Identifier"}, Max: -1},
		{Name: "active", TypeNames: []string{"boolean"}, Max: 1},
		{Name: "name", TypeNames: []string{"HumanName"}, Max: -1},
		{Name: "gender", TypeNames: []string{"code"}, Max: 1},
		{Name: "birthDate", TypeNames: []string{"date"}, Max: 1},
	}})
	m.Register(TypeReflection{Namespace: "FHIR", Name: "Observation", Kind: KindResource, BaseType: "DomainResource", Elements: []Element{
		{Name: "status", TypeNames: []string{"code"}, Max: 1},
		{Name: "code", TypeNames: []string{"CodeableConcept"}, Max: 1},
		{Name: "value", TypeNames: []string{"Quantity", "CodeableConcept", "string", "boolean", "integer", "Range"},
			Polymorphic: true, Max: 1},
	}})
}

func (m *Mock) ReflectType(name string) (TypeReflection, bool) {
	t, ok := m.types[qualify(name)]
	if ok {
		return t, true
	}
	t, ok = m.types["FHIR."+name]
	return t, ok
}

func (m *Mock) PropertyType(typeName, property string) (TypeReflection, bool) {
	t, ok := m.ReflectType(typeName)
	if !ok {
		return TypeReflection{}, false
	}
	for _, el := range t.Elements {
		if el.Name == property {
			return m.firstKnownElementType(el)
		}
		if el.Polymorphic && strings.HasPrefix(property, el.Name) && len(property) > len(el.Name) {
			suffix := property[len(el.Name):]
			for _, candidate := range el.TypeNames {
				if strings.EqualFold(candidate, suffix) {
					return m.ReflectType(candidate)
				}
			}
		}
	}
	if t.BaseType != "" {
		return m.PropertyType(t.BaseType, property)
	}
	return TypeReflection{}, false
}

func (m *Mock) firstKnownElementType(el Element) (TypeReflection, bool) {
	for _, name := range el.TypeNames {
		if t, ok := m.ReflectType(name); ok {
			return t, true
		}
	}
	return TypeReflection{}, false
}

func (m *Mock) IsSubtypeOf(child, parent string) bool {
	if strings.EqualFold(child, parent) {
		return true
	}
	t, ok := m.ReflectType(child)
	if !ok {
		return false
	}
	if t.BaseType == "" {
		return false
	}
	return m.IsSubtypeOf(t.BaseType, parent)
}

func (m *Mock) IsResourceType(name string) bool {
	t, ok := m.ReflectType(name)
	return ok && t.Kind == KindResource
}

func (m *Mock) FHIRVersion() FHIRVersion { return m.version }

func qualify(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return "FHIR." + name
}
