package cmd

import (
	"testing"
	"time"

	"maintflow/internal/domain/workorder"
)

func TestParsePartSpec(t *testing.T) {
	part, err := parsePartSpec("12:3")
	if err != nil {
		t.Fatalf("parsePartSpec() error = %v", err)
	}
	if part.CatalogPartID == nil || *part.CatalogPartID != 12 || part.Quantity != 3 || part.UnitCost != nil {
		t.Fatalf("parsePartSpec(catalog) = %+v", part)
	}

	part, err = parsePartSpec("12:3:9.50")
	if err != nil {
		t.Fatalf("parsePartSpec() error = %v", err)
	}
	if part.UnitCost == nil || *part.UnitCost != workorder.Money(950) {
		t.Fatalf("parsePartSpec(override) = %+v", part)
	}

	part, err = parsePartSpec("direct:lip seal:1:50.00")
	if err != nil {
		t.Fatalf("parsePartSpec() error = %v", err)
	}
	if part.CatalogPartID != nil || part.Description != "lip seal" || *part.UnitCost != workorder.Money(5000) {
		t.Fatalf("parsePartSpec(direct) = %+v", part)
	}

	for _, bad := range []string{"", "x:1", "12", "12:two", "direct:seal:1", "12:1:abc"} {
		if _, err := parsePartSpec(bad); err == nil {
			t.Fatalf("parsePartSpec(%q) expected error", bad)
		}
	}
}

func TestParseTime(t *testing.T) {
	got, err := parseTime("2026-04-07T09:00:00Z")
	if err != nil {
		t.Fatalf("parseTime() error = %v", err)
	}
	if !got.Equal(time.Date(2026, 4, 7, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("parseTime() = %v", got)
	}
	if _, err := parseTime("2026-04-07"); err != nil {
		t.Fatalf("parseTime(date) error = %v", err)
	}
	if _, err := parseTime("next tuesday"); err == nil {
		t.Fatalf("parseTime() expected error")
	}
}
