package model

import (
	"encoding/json"
	"fmt"

	"github.com/buger/jsonparser"

	"github.com/fhirpath-go/corefhirpath/value"
)

// FromJSON builds a value.Resource from a raw FHIR JSON document. It uses
// jsonparser to read the "resourceType" field without decoding the whole
// document (the specification's "navigation pulls child values lazily"
// requirement applies most visibly here: the type of a multi-megabyte
// Bundle should not require a full unmarshal just to know it's a Bundle),
// then falls back to encoding/json for the structural map the Resource
// navigation methods operate on.
//
// The returned Resource's reflected type name is the document's
// "resourceType" field ("Resource" when the field is absent); a non-nil
// provider is consulted but does not change that name.
func FromJSON(raw []byte, provider Provider) (value.Resource, error) {
	resourceType, err := jsonparser.GetString(raw, "resourceType")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return value.Resource{}, fmt.Errorf("model: reading resourceType: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return value.Resource{}, fmt.Errorf("model: decoding resource: %w", err)
	}

	name := resourceType
	if name == "" {
		name = "Resource"
	}
	// A provider that doesn't recognize the type is tolerated: the
	// TypeInfo still carries the bare resourceType string, and later
	// property/subtype lookups against it simply degrade to dynamic
	// typing, per the specification.
	if provider != nil {
		name = canonicalTypeName(provider, name)
	}
	info := value.TypeInfo{Namespace: value.NamespaceFHIR, Name: name}
	return value.NewResource(obj, info), nil
}

func canonicalTypeName(provider Provider, name string) string {
	if _, ok := provider.ReflectType(name); ok {
		return name
	}
	return name
}

// ResolveChoiceField finds which concrete JSON field backs a FHIR choice
// (polymorphic) property access such as Observation.value, e.g. resolving
// "value" against a document that actually carries "valueQuantity". It asks
// the provider for the property's candidate type names, then uses
// jsonparser.ObjectEach to scan the raw object's own keys without decoding
// the rest of the document, matching the specification's "polymorphic
// value[x] resolved by receiver" contract and the "navigation pulls child
// values lazily" external-interface note.
//
// Returns the matched field name and resolved type name, or ok=false if no
// candidate field is present.
func ResolveChoiceField(provider Provider, raw []byte, receiverType, property string) (field, typeName string, ok bool) {
	if provider == nil {
		return "", "", false
	}
	t, found := provider.ReflectType(receiverType)
	if !found {
		return "", "", false
	}
	for _, el := range t.Elements {
		if el.Name != property || !el.Polymorphic {
			continue
		}
		for _, candidate := range el.TypeNames {
			key := property + upperFirst(candidate)
			if _, _, _, err := jsonparser.Get(raw, key); err == nil {
				return key, candidate, true
			}
		}
	}
	return "", "", false
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	c := s[0]
	if c >= 'a' && c <= 'z' {
		c = c - 'a' + 'A'
	}
	return string(c) + s[1:]
}
