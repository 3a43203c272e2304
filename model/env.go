package model

import (
	"strings"

	"github.com/fhirpath-go/corefhirpath/value"
)

// EnvProvider resolves %-prefixed environment variables per the FHIRPath
// environment-variables contract: %sct/%loinc/%ucum are fixed system URIs
// present in every context, %vs-[name]/%ext-[name] are host-configured maps
// from an HL7 value-set/extension id to its full canonical URL, and anything
// else falls through to a free-form custom table a host can seed for its own
// implementation-guide-defined externals.
//
// Grounded on original_source's
// octofhir-fhirpath/src/evaluator/environment_variables.rs
// (EnvironmentVariables' sct_url/loinc_url/value_sets/extensions/
// custom_variables fields and its prefix-matching get_variable), and
// mirroring the teacher's systemVariables map in fhirpath/expression.go
// (which seeds "ucum"/"loinc"/"sct" as plain Collection entries) for the
// fixed trio.
type EnvProvider struct {
	SCTURL     string
	LOINCURL   string
	ValueSets  map[string]string
	Extensions map[string]string
	Custom     map[string]string
}

// NewEnvProvider returns an EnvProvider seeded with the two universal URIs
// every FHIRPath context carries ("set for all contexts" per the
// specification); ValueSets/Extensions/Custom start empty for a host to
// populate via RegisterValueSet/RegisterExtension/RegisterCustom.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{
		SCTURL:     "http://snomed.info/sct",
		LOINCURL:   "http://loinc.org",
		ValueSets:  map[string]string{},
		Extensions: map[string]string{},
		Custom:     map[string]string{},
	}
}

// RegisterValueSet adds an HL7 value-set URL resolvable as %vs-name.
func (p *EnvProvider) RegisterValueSet(name, url string) {
	p.ValueSets[name] = url
}

// RegisterExtension adds an HL7 extension URL resolvable as %ext-name.
func (p *EnvProvider) RegisterExtension(name, url string) {
	p.Extensions[name] = url
}

// RegisterCustom adds an implementation-guide-defined %name variable outside
// the sct/loinc/ucum/vs-*/ext-* patterns.
func (p *EnvProvider) RegisterCustom(name, value string) {
	p.Custom[name] = value
}

// Resolve looks up name (the %-sigil already stripped by the caller) and
// returns its URI, or ok=false for anything this provider has no opinion on
// (the caller — eval.Context.Variable — folds that to Empty, never an
// error: an unrecognized environment variable is not itself a failure).
func (p *EnvProvider) Resolve(name string) (string, bool) {
	switch name {
	case "sct":
		return nonEmpty(p.SCTURL)
	case "loinc":
		return nonEmpty(p.LOINCURL)
	case "ucum":
		return "http://unitsofmeasure.org", true
	}
	if rest, ok := strings.CutPrefix(name, "vs-"); ok {
		v, ok := p.ValueSets[rest]
		return v, ok
	}
	if rest, ok := strings.CutPrefix(name, "ext-"); ok {
		v, ok := p.Extensions[rest]
		return v, ok
	}
	v, ok := p.Custom[name]
	return v, ok
}

func nonEmpty(s string) (string, bool) {
	return s, s != ""
}

// Resolver adapts Resolve to the func(string) (value.Value, bool) shape
// eval.WithEnvResolver expects, so a host wires its configured EnvProvider in
// with eval.WithEnvResolver(provider.Resolver()).
func (p *EnvProvider) Resolver() func(string) (value.Value, bool) {
	return func(name string) (value.Value, bool) {
		uri, ok := p.Resolve(name)
		if !ok {
			return nil, false
		}
		return value.Of(value.String(uri)), true
	}
}

// defaultEnvProvider backs the package-level ResolveEnvVar convenience used
// wherever a caller (eval.Context, when no WithEnvResolver/EnvProvider was
// supplied) just wants the universal three URIs without configuring a full
// EnvProvider.
var defaultEnvProvider = NewEnvProvider()

// ResolveEnvVar resolves a %-prefixed environment variable name against the
// built-in sct/loinc/ucum trio only — %vs-*/%ext-*/custom names require a
// host-configured EnvProvider (see EnvProvider.Resolve), since this package
// has no way to know a host's value-set/extension registrations on its own.
// %context, %resource, and %rootResource are NOT handled here — they depend
// on the live evaluation and are resolved directly by package eval.
func ResolveEnvVar(name string) (string, bool) {
	switch name {
	case "sct", "loinc", "ucum":
		return defaultEnvProvider.Resolve(name)
	default:
		return "", false
	}
}
