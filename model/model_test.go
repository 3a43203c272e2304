package model_test

import (
	"testing"

	"github.com/fhirpath-go/corefhirpath/model"
)

func TestMockReflectType(t *testing.T) {
	m := model.NewMock(model.R4)

	if _, ok := m.ReflectType("Patient"); !ok {
		t.Fatal("expected Patient to be known")
	}
	if _, ok := m.ReflectType("NoSuchType"); ok {
		t.Fatal("expected NoSuchType to be unknown")
	}
	if _, ok := m.ReflectType("System.Integer"); !ok {
		t.Fatal("expected System.Integer to be known")
	}
}

func TestMockPropertyTypeSimple(t *testing.T) {
	m := model.NewMock(model.R4)

	got, ok := m.PropertyType("Patient", "active")
	if !ok {
		t.Fatal("expected Patient.active to resolve")
	}
	if got.Name != "boolean" {
		t.Fatalf("Patient.active = %q, want boolean", got.Name)
	}
}

func TestMockPropertyTypePolymorphic(t *testing.T) {
	m := model.NewMock(model.R4)

	got, ok := m.PropertyType("Observation", "valueQuantity")
	if !ok {
		t.Fatal("expected Observation.valueQuantity to resolve")
	}
	if got.Name != "Quantity" {
		t.Fatalf("Observation.valueQuantity = %q, want Quantity", got.Name)
	}
}

func TestMockPropertyTypeInherited(t *testing.T) {
	m := model.NewMock(model.R4)

	// text is declared on DomainResource, not on Patient; asking for it
	// through a Patient lens exercises the walk up the BaseType chain.
	m.Register(model.TypeReflection{Namespace: "FHIR", Name: "DomainResource", Kind: model.KindResource, BaseType: "Resource", Elements: []model.Element{
		{Name: "text", TypeNames: []string{"string"}, Max: 1},
	}})
	if _, ok := m.PropertyType("Patient", "text"); !ok {
		t.Fatal("expected Patient.text to resolve via DomainResource")
	}
}

func TestMockIsSubtypeOf(t *testing.T) {
	m := model.NewMock(model.R4)

	cases := []struct {
		child, parent string
		want          bool
	}{
		{"Patient", "DomainResource", true},
		{"Patient", "Resource", true},
		{"Patient", "Patient", true},
		{"Patient", "Observation", false},
		{"HumanName", "Element", true},
	}
	for _, tc := range cases {
		if got := m.IsSubtypeOf(tc.child, tc.parent); got != tc.want {
			t.Errorf("IsSubtypeOf(%s, %s) = %v, want %v", tc.child, tc.parent, got, tc.want)
		}
	}
}

func TestMockIsResourceType(t *testing.T) {
	m := model.NewMock(model.R4)

	if !m.IsResourceType("Patient") {
		t.Fatal("expected Patient to be a resource type")
	}
	if m.IsResourceType("HumanName") {
		t.Fatal("expected HumanName not to be a resource type")
	}
}

func TestFromJSONResolvesResourceType(t *testing.T) {
	raw := []byte(`{"resourceType":"Patient","active":true,"name":[{"family":"Doe"}]}`)

	r, err := model.FromJSON(raw, model.NewMock(model.R4))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got := r.Type().Name; got != "Patient" {
		t.Fatalf("resource type = %q, want Patient", got)
	}
}

func TestFromJSONToleratesUnknownProvider(t *testing.T) {
	raw := []byte(`{"resourceType":"Frobnicator"}`)

	r, err := model.FromJSON(raw, model.NewMock(model.R4))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got := r.Type().Name; got != "Frobnicator" {
		t.Fatalf("resource type = %q, want Frobnicator (degrade to dynamic typing)", got)
	}
}

func TestResolveChoiceField(t *testing.T) {
	m := model.NewMock(model.R4)
	raw := []byte(`{"resourceType":"Observation","status":"final","valueQuantity":{"value":5,"unit":"mg"}}`)

	field, typeName, ok := model.ResolveChoiceField(m, raw, "Observation", "value")
	if !ok {
		t.Fatal("expected value[x] to resolve against valueQuantity")
	}
	if field != "valueQuantity" || typeName != "Quantity" {
		t.Fatalf("got field=%q typeName=%q", field, typeName)
	}
}

func TestResolveChoiceFieldNoMatch(t *testing.T) {
	m := model.NewMock(model.R4)
	raw := []byte(`{"resourceType":"Observation","status":"final"}`)

	if _, _, ok := model.ResolveChoiceField(m, raw, "Observation", "value"); ok {
		t.Fatal("expected no match when no value[x] field is present")
	}
}

func TestResolveEnvVarBuiltins(t *testing.T) {
	if uri, ok := model.ResolveEnvVar("sct"); !ok || uri != "http://snomed.info/sct" {
		t.Fatalf("ResolveEnvVar(sct) = %q, %v", uri, ok)
	}
	if uri, ok := model.ResolveEnvVar("loinc"); !ok || uri != "http://loinc.org" {
		t.Fatalf("ResolveEnvVar(loinc) = %q, %v", uri, ok)
	}
	if uri, ok := model.ResolveEnvVar("ucum"); !ok || uri != "http://unitsofmeasure.org" {
		t.Fatalf("ResolveEnvVar(ucum) = %q, %v", uri, ok)
	}
	if _, ok := model.ResolveEnvVar("vs-administrative-gender"); ok {
		t.Fatal("expected the package-level resolver to leave vs-* to a configured EnvProvider")
	}
}

func TestEnvProviderValueSetAndExtensionPrefixes(t *testing.T) {
	p := model.NewEnvProvider()
	p.RegisterValueSet("administrative-gender", "http://hl7.org/fhir/ValueSet/administrative-gender")
	p.RegisterExtension("patient-birthTime", "http://hl7.org/fhir/StructureDefinition/patient-birthTime")
	p.RegisterCustom("my-ig-flag", "enabled")

	if uri, ok := p.Resolve("vs-administrative-gender"); !ok || uri != "http://hl7.org/fhir/ValueSet/administrative-gender" {
		t.Fatalf("Resolve(vs-administrative-gender) = %q, %v", uri, ok)
	}
	if uri, ok := p.Resolve("ext-patient-birthTime"); !ok || uri != "http://hl7.org/fhir/StructureDefinition/patient-birthTime" {
		t.Fatalf("Resolve(ext-patient-birthTime) = %q, %v", uri, ok)
	}
	if v, ok := p.Resolve("my-ig-flag"); !ok || v != "enabled" {
		t.Fatalf("Resolve(my-ig-flag) = %q, %v", v, ok)
	}
	if _, ok := p.Resolve("vs-unregistered"); ok {
		t.Fatal("expected unregistered value set name to miss")
	}
	if uri, ok := p.Resolve("sct"); !ok || uri != "http://snomed.info/sct" {
		t.Fatalf("Resolve(sct) = %q, %v", uri, ok)
	}
}
