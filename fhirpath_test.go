package fhirpath_test

import (
	"context"
	"testing"

	"github.com/fhirpath-go/corefhirpath"
	"github.com/fhirpath-go/corefhirpath/diag"
	"github.com/fhirpath-go/corefhirpath/eval"
	"github.com/fhirpath-go/corefhirpath/model"
	"github.com/fhirpath-go/corefhirpath/value"
)

func patient(raw map[string]any) value.Resource {
	raw["resourceType"] = "Patient"
	return value.NewResource(raw, value.TypeInfo{Namespace: value.NamespaceFHIR, Name: "Patient"})
}

func TestParseThenEvaluate(t *testing.T) {
	expr := fhirpath.MustParse("Patient.name.given")
	p := patient(map[string]any{
		"name": []any{map[string]any{"given": []any{"Donald"}}},
	})

	result, err := fhirpath.Evaluate(context.Background(), expr, value.Of(p), eval.WithProvider(model.NewMock(model.R4)))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected one given name, got %v", result)
	}
	given, ok := value.Unwrap(result[0]).(value.String)
	if !ok || string(given) != "Donald" {
		t.Fatalf("got %v, want Donald", result[0])
	}
}

func TestParseCollectsSyntaxDiagnostics(t *testing.T) {
	expr := fhirpath.Parse("Patient..name")
	if len(expr.Diagnostics()) == 0 {
		t.Fatal("expected a syntax diagnostic for a doubled dot")
	}
}

func TestMustParsePanicsOnInvalidSyntax(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected MustParse to panic on invalid syntax")
		}
	}()
	fhirpath.MustParse("Patient..name")
}

func TestAnalyzeFlagsUnknownFunction(t *testing.T) {
	expr := fhirpath.MustParse("name.wher(use = 'official')")
	report := fhirpath.Analyze(expr, model.NewMock(model.R4))

	found := false
	for _, d := range report.Diagnostics {
		if d.Code == diag.EFunctionNotFound {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected E300 for unknown function, got %v", report.Diagnostics)
	}
}

func TestAnalyzeAcceptsValidExpressionWithoutProvider(t *testing.T) {
	expr := fhirpath.MustParse("name.where(use = 'official').family")
	report := fhirpath.Analyze(expr, nil)
	if len(report.Diagnostics) != 0 {
		t.Fatalf("expected no diagnostics analyzing without a provider, got %v", report.Diagnostics)
	}
}

func TestExpressionStringRoundTrips(t *testing.T) {
	const src = "Patient.name.given"
	expr := fhirpath.MustParse(src)
	if expr.String() != src {
		t.Fatalf("String() = %q, want %q", expr.String(), src)
	}
}
