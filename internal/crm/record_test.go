package crm

import (
	"testing"
	"time"
)

func TestStrFallbackChain(t *testing.T) {
	record := Record{
		"Desarollo":   "Riviera", // upstream typo variant
		"Lead_Source": "",
		"Fuente":      "Facebook",
	}

	if got := record.Str(FieldsDevelopment...); got != "Riviera" {
		t.Fatalf("expected typo-variant fallback to yield Riviera, got %q", got)
	}
	if got := record.Str(FieldsSource...); got != "Facebook" {
		t.Fatalf("expected empty canonical field to fall through, got %q", got)
	}
	if got := record.Str("Missing", "Also_Missing"); got != "" {
		t.Fatalf("expected empty string for absent fields, got %q", got)
	}
}

func TestStrResolvesLookupObjects(t *testing.T) {
	record := Record{
		"Owner": map[string]any{"name": "Ana Torres", "id": "99"},
	}
	if got := record.Str(FieldsOwner...); got != "Ana Torres" {
		t.Fatalf("expected owner lookup name, got %q", got)
	}
}

func TestTimeParsing(t *testing.T) {
	record := Record{"Created_Time": "2024-01-15T10:30:00-06:00"}

	created, ok := record.Time(FieldsCreatedTime...)
	if !ok {
		t.Fatal("expected parseable created time")
	}
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.FixedZone("", -6*3600))
	if !created.Equal(want) {
		t.Fatalf("expected %s, got %s", want, created)
	}

	if _, ok := (Record{"Created_Time": "not a date"}).Time(FieldsCreatedTime...); ok {
		t.Fatal("expected unparseable time to report absence")
	}
}

func TestFloatAndBool(t *testing.T) {
	record := Record{
		"Amount":          "1250000.50",
		"Visita_agendada": "sí",
	}

	amount, ok := record.Float(FieldsAmount...)
	if !ok || amount != 1250000.50 {
		t.Fatalf("expected amount 1250000.50, got %f (%t)", amount, ok)
	}
	if !record.Bool(FieldsVisitFlag...) {
		t.Fatal("expected localized truthy string to be true")
	}
	if (Record{}).Bool(FieldsVisitFlag...) {
		t.Fatal("expected absent flag to be false")
	}
}
