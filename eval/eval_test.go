package eval_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fhirpath-go/corefhirpath/eval"
	"github.com/fhirpath-go/corefhirpath/internal/ops"
	"github.com/fhirpath-go/corefhirpath/internal/parse"
	"github.com/fhirpath-go/corefhirpath/model"
	"github.com/fhirpath-go/corefhirpath/registry"
	"github.com/fhirpath-go/corefhirpath/value"
)

func newEvaluator() *eval.Evaluator {
	reg := registry.New()
	ops.Register(reg)
	return eval.New(reg)
}

func patientResource(raw map[string]any) value.Resource {
	raw["resourceType"] = "Patient"
	return value.NewResource(raw, value.TypeInfo{Namespace: value.NamespaceFHIR, Name: "Patient"})
}

func mustEval(t *testing.T, ev *eval.Evaluator, expr string, input value.Value, opts ...eval.Option) value.Collection {
	t.Helper()
	node, diags := parse.Parse(expr)
	if len(diags) > 0 {
		t.Fatalf("parse(%q): unexpected diagnostics: %v", expr, diags)
	}
	result, err := ev.Evaluate(context.Background(), node, input, opts...)
	if err != nil {
		t.Fatalf("evaluate(%q): %v", expr, err)
	}
	return result
}

func TestPropertyNavigation(t *testing.T) {
	ev := newEvaluator()
	patient := patientResource(map[string]any{
		"name": []any{
			map[string]any{"family": "Shepard", "given": []any{"John"}},
		},
	})

	got := mustEval(t, ev, "Patient.name.given", value.Of(patient), eval.WithProvider(model.NewMock(model.R4)))
	want := value.Collection{value.FHIRPrimitive{Underlying: value.String("John"), TypeName: "string"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Patient.name.given mismatch (-want +got):\n%s", diff)
	}
}

func TestWhereSelectProjection(t *testing.T) {
	ev := newEvaluator()
	patient := patientResource(map[string]any{
		"name": []any{
			map[string]any{"use": "official", "family": "Shepard"},
			map[string]any{"use": "nickname", "family": "Commander"},
		},
	})

	got := mustEval(t, ev, "name.where(use = 'official').family", value.Of(patient), eval.WithProvider(model.NewMock(model.R4)))
	if len(got) != 1 {
		t.Fatalf("expected a single family name, got %v", got)
	}
	fam, ok := value.Unwrap(got[0]).(value.String)
	if !ok || string(fam) != "Shepard" {
		t.Fatalf("got %v, want Shepard", got[0])
	}
}

func TestAndShortCircuitsRightOperand(t *testing.T) {
	ev := newEvaluator()
	// `undefinedFn()` raises E300 if the right side is ever evaluated, so
	// this checks that a false left operand alone decides the result
	// without error.
	got := mustEval(t, ev, "false and undefinedFn()", value.Empty())
	if len(got) != 1 {
		t.Fatalf("expected singleton result, got %v", got)
	}
	b, ok := got[0].(value.Boolean)
	if !ok || bool(b) {
		t.Fatalf("got %v, want false", got[0])
	}
}

func TestOrShortCircuitsRightOperand(t *testing.T) {
	ev := newEvaluator()
	got := mustEval(t, ev, "true or undefinedFn()", value.Empty())
	if len(got) != 1 {
		t.Fatalf("expected singleton result, got %v", got)
	}
	b, ok := got[0].(value.Boolean)
	if !ok || !bool(b) {
		t.Fatalf("got %v, want true", got[0])
	}
}

func TestIifShortCircuits(t *testing.T) {
	ev := newEvaluator()
	got := mustEval(t, ev, "iif(true, 'yes', undefinedFn())", value.Empty())
	if len(got) != 1 {
		t.Fatalf("expected singleton, got %v", got)
	}
	s, ok := got[0].(value.String)
	if !ok || string(s) != "yes" {
		t.Fatalf("got %v, want 'yes'", got[0])
	}
}

func TestDefineVariableVisibleInNavigationChain(t *testing.T) {
	ev := newEvaluator()
	patient := patientResource(map[string]any{"active": true})

	got := mustEval(t, ev, "Patient.defineVariable('flag', true).select(active = %flag)", value.Of(patient), eval.WithProvider(model.NewMock(model.R4)))
	if len(got) != 1 {
		t.Fatalf("expected singleton, got %v", got)
	}
	b, ok := got[0].(value.Boolean)
	if !ok || !bool(b) {
		t.Fatalf("got %v, want true", got[0])
	}
}

func TestArithmeticIntegerDecimalPromotion(t *testing.T) {
	ev := newEvaluator()
	got := mustEval(t, ev, "1 + 2.5", value.Empty())
	if len(got) != 1 {
		t.Fatalf("expected singleton, got %v", got)
	}
	d, ok := got[0].(value.Decimal)
	if !ok {
		t.Fatalf("got %T, want Decimal", got[0])
	}
	want, err := value.ParseDecimal("3.5")
	if err != nil {
		t.Fatalf("ParseDecimal: %v", err)
	}
	if d.Cmp(want) != 0 {
		t.Fatalf("1 + 2.5 = %v, want 3.5", d)
	}
}

func TestOfTypeFiltersByReflectedType(t *testing.T) {
	ev := newEvaluator()
	patient := patientResource(map[string]any{"active": true})
	other := value.Of(value.Integer(1))[0]

	got := mustEval(t, ev, "(%a | %b).ofType(FHIR.Patient)", value.Empty(),
		eval.WithVariable("a", value.Of(patient)),
		eval.WithVariable("b", other),
		eval.WithProvider(model.NewMock(model.R4)))
	if len(got) != 1 {
		t.Fatalf("expected a single Patient, got %v", got)
	}
	if _, ok := value.Unwrap(got[0]).(value.Resource); !ok {
		t.Fatalf("got %T, want value.Resource", got[0])
	}
}

func TestIndexAccessOutOfBoundsIsEmpty(t *testing.T) {
	ev := newEvaluator()
	got := mustEval(t, ev, "(1 | 2 | 3)[5]", value.Empty())
	if len(got) != 0 {
		t.Fatalf("expected Empty, got %v", got)
	}
}

func TestEnvProviderResolvesValueSetPrefix(t *testing.T) {
	ev := newEvaluator()
	provider := model.NewEnvProvider()
	provider.RegisterValueSet("administrative-gender", "http://hl7.org/fhir/ValueSet/administrative-gender")

	got := mustEval(t, ev, "%vs-administrative-gender", value.Empty(), eval.WithEnvResolver(provider.Resolver()))
	if len(got) != 1 {
		t.Fatalf("expected singleton, got %v", got)
	}
	s, ok := got[0].(value.String)
	if !ok || string(s) != "http://hl7.org/fhir/ValueSet/administrative-gender" {
		t.Fatalf("got %v, want the value-set URL", got[0])
	}
}
