package diag

import "testing"

func TestNewPopulatesFromRegistry(t *testing.T) {
	d := New(EPropertyNotFound, Span{Start: 3, End: 7})
	if d.Category != CategoryProperty {
		t.Fatalf("category = %v, want %v", d.Category, CategoryProperty)
	}
	if d.Description == "" {
		t.Fatal("expected a description from the registry")
	}
	if d.Span != (Span{Start: 3, End: 7}) {
		t.Fatalf("span = %+v", d.Span)
	}
}

func TestHelpURL(t *testing.T) {
	d := New(EInvalidArity, Span{})
	if got, want := d.HelpURL(), "https://fhirpath-go.dev/errors/E301"; got != want {
		t.Fatalf("HelpURL() = %q, want %q", got, want)
	}
}

func TestErrorStringIncludesSuggestion(t *testing.T) {
	d := New(EFunctionNotFound, Span{})
	d.Suggestion = "substring"
	if got := d.Error(); got == "" {
		t.Fatal("expected non-empty error string")
	}
}

func TestCodeRangesAreClosedButLookupIsSafe(t *testing.T) {
	if _, _, ok := Lookup("E999"); ok {
		t.Fatal("E999 should not be registered")
	}
	if len(Codes()) < 20 {
		t.Fatalf("expected at least 20 registered codes, got %d", len(Codes()))
	}
}
