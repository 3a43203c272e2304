package analysis_test

import (
	"testing"

	"github.com/fhirpath-go/corefhirpath/analysis"
	"github.com/fhirpath-go/corefhirpath/diag"
	"github.com/fhirpath-go/corefhirpath/internal/ops"
	"github.com/fhirpath-go/corefhirpath/internal/parse"
	"github.com/fhirpath-go/corefhirpath/model"
	"github.com/fhirpath-go/corefhirpath/registry"
)

func newAnalyzer() *analysis.Analyzer {
	reg := registry.New()
	ops.Register(reg)
	return analysis.New(reg)
}

func codesOf(r *analysis.Report) []diag.Code {
	var out []diag.Code
	for _, d := range r.Diagnostics {
		out = append(out, d.Code)
	}
	return out
}

func containsCode(codes []diag.Code, want diag.Code) bool {
	for _, c := range codes {
		if c == want {
			return true
		}
	}
	return false
}

func TestUnknownFunctionRaisesFunctionNotFound(t *testing.T) {
	a := newAnalyzer()
	node, diags := parse.Parse("name.wher(use = 'official')")
	if len(diags) > 0 {
		t.Fatalf("unexpected parse diagnostics: %v", diags)
	}
	report := a.Analyze(node, nil)
	codes := codesOf(report)
	if !containsCode(codes, diag.EFunctionNotFound) {
		t.Fatalf("expected E300, got %v", codes)
	}
	for _, d := range report.Diagnostics {
		if d.Code == diag.EFunctionNotFound && d.Suggestion != "where" {
			t.Fatalf("expected suggestion 'where', got %q", d.Suggestion)
		}
	}
}

func TestArityMismatchRaisesInvalidArity(t *testing.T) {
	a := newAnalyzer()
	node, diags := parse.Parse("substring()")
	if len(diags) > 0 {
		t.Fatalf("unexpected parse diagnostics: %v", diags)
	}
	report := a.Analyze(node, nil)
	if !containsCode(codesOf(report), diag.EInvalidArity) {
		t.Fatalf("expected E301, got %v", codesOf(report))
	}
}

func TestPropertyNotFoundSuggestsClosestName(t *testing.T) {
	a := newAnalyzer()
	node, diags := parse.Parse("Patient.naem")
	if len(diags) > 0 {
		t.Fatalf("unexpected parse diagnostics: %v", diags)
	}
	provider := model.NewMock(model.R4)
	report := a.Analyze(node, provider, analysis.WithRootType("Patient"))
	found := false
	for _, d := range report.Diagnostics {
		if d.Code == diag.EPropertyNotFound {
			found = true
			if d.Suggestion != "name" {
				t.Fatalf("expected suggestion 'name', got %q", d.Suggestion)
			}
		}
	}
	if !found {
		t.Fatalf("expected E200, got %v", codesOf(report))
	}
}

func TestValidExpressionRaisesNoDiagnostics(t *testing.T) {
	a := newAnalyzer()
	node, diags := parse.Parse("Patient.name.where(use = 'official').family")
	if len(diags) > 0 {
		t.Fatalf("unexpected parse diagnostics: %v", diags)
	}
	provider := model.NewMock(model.R4)
	report := a.Analyze(node, provider, analysis.WithRootType("Patient"))
	if len(report.Diagnostics) != 0 {
		t.Fatalf("expected no diagnostics, got %v", report.Diagnostics)
	}
}

func TestTypeCheckCardinalityOnCollectionLiteral(t *testing.T) {
	a := newAnalyzer()
	node, diags := parse.Parse("{1, 2} is Integer")
	if len(diags) > 0 {
		t.Fatalf("unexpected parse diagnostics: %v", diags)
	}
	report := a.Analyze(node, nil)
	if !containsCode(codesOf(report), diag.EInvalidCardinality) {
		t.Fatalf("expected E104, got %v", codesOf(report))
	}
}

func TestTypeCheckUnrelatedTypesFlagsMismatch(t *testing.T) {
	a := newAnalyzer()
	node, diags := parse.Parse("Patient.name is Quantity")
	if len(diags) > 0 {
		t.Fatalf("unexpected parse diagnostics: %v", diags)
	}
	provider := model.NewMock(model.R4)
	report := a.Analyze(node, provider, analysis.WithRootType("Patient"))
	if !containsCode(codesOf(report), diag.ETypeMismatch) {
		t.Fatalf("expected E100, got %v", codesOf(report))
	}
}
