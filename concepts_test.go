package edgar

import (
	"errors"
	"slices"
	"testing"
)

func TestStandardizedLabel(t *testing.T) {
	tests := map[string]string{
		"us-gaap:Assets":                         "Total Assets",
		"US-GAAP:ASSETS":                         "Total Assets",
		"us-gaap:SalesRevenueNet":                "Revenue",
		"dei:EntityCommonStockSharesOutstanding": "Shares Outstanding",
		"us-gaap:NoSuchConcept":                  "",
	}
	for concept, want := range tests {
		if got := StandardizedLabel(concept); got != want {
			t.Errorf("StandardizedLabel(%s) = %q, want %q", concept, got, want)
		}
	}
}

func TestConceptsForLabel(t *testing.T) {
	concepts, err := ConceptsForLabel("Revenue")
	if err != nil {
		t.Fatalf("ConceptsForLabel: %v", err)
	}
	if concepts[0] != "us-gaap:Revenues" {
		t.Errorf("first revenue concept = %s, want us-gaap:Revenues", concepts[0])
	}

	// Returned slice is a copy
	concepts[0] = "mutated"
	again, _ := ConceptsForLabel("Revenue")
	if again[0] != "us-gaap:Revenues" {
		t.Error("ConceptsForLabel exposed the shared mapping")
	}

	if _, err := ConceptsForLabel("Not A Label"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown label: got %v, want ErrNotFound", err)
	}
}

func TestStandardizedLabelsSorted(t *testing.T) {
	labels := StandardizedLabels()
	if len(labels) == 0 {
		t.Fatal("no standardized labels loaded")
	}
	if !slices.IsSorted(labels) {
		t.Errorf("labels not sorted: %v", labels)
	}
	if !slices.Contains(labels, "Total Assets") {
		t.Error("Total Assets missing")
	}
}

func TestNewLabelMapperRejectsBadJSON(t *testing.T) {
	if _, err := newLabelMapper([]byte("{")); err == nil {
		t.Error("expected error for truncated mapping file")
	}
}
