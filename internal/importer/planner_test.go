package importer

import (
	"fmt"
	"testing"

	"product-importer/internal/catalog"
)

func rec(sku string, row int) catalog.ProductRecord {
	return catalog.ProductRecord{SKU: sku, Name: "n", Price: 1, Status: catalog.StatusActive, Row: row}
}

func TestPlannerLastWins(t *testing.T) {
	p := NewPlanner(DedupLastWins)

	if skipped := p.Add(rec("A", 1)); skipped != nil {
		t.Fatalf("unexpected skip: %+v", skipped)
	}
	if skipped := p.Add(rec("B", 2)); skipped != nil {
		t.Fatalf("unexpected skip: %+v", skipped)
	}

	// Re-occurrence displaces the earlier row
	skipped := p.Add(rec("a", 3))
	if skipped == nil {
		t.Fatal("expected the earlier occurrence to be skipped")
	}
	if skipped.Row != 1 || skipped.Kind != OutcomeSkippedDuplicate {
		t.Errorf("unexpected outcome: %+v", skipped)
	}

	if p.Kept() != 2 {
		t.Errorf("expected 2 kept records, got %d", p.Kept())
	}

	batches := p.Batches(10)
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("unexpected batches: %+v", batches)
	}
	// The surviving occurrence of A is row 3, with its casing
	if batches[0][0].SKU != "B" || batches[0][1].SKU != "a" || batches[0][1].Row != 3 {
		t.Errorf("unexpected survivors: %+v", batches[0])
	}
}

func TestPlannerFirstWins(t *testing.T) {
	p := NewPlanner(DedupFirstWins)

	p.Add(rec("A", 1))
	skipped := p.Add(rec("a", 2))
	if skipped == nil || skipped.Row != 2 {
		t.Fatalf("expected the later occurrence skipped, got %+v", skipped)
	}

	batches := p.Batches(10)
	if len(batches) != 1 || len(batches[0]) != 1 || batches[0][0].Row != 1 {
		t.Fatalf("unexpected batches: %+v", batches)
	}
}

func TestPlannerBatchSizes(t *testing.T) {
	p := NewPlanner(DedupLastWins)
	for i := 1; i <= 7; i++ {
		p.Add(rec(fmt.Sprintf("SKU-%d", i), i))
	}

	batches := p.Batches(3)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	sizes := []int{len(batches[0]), len(batches[1]), len(batches[2])}
	if sizes[0] != 3 || sizes[1] != 3 || sizes[2] != 1 {
		t.Errorf("unexpected batch sizes: %v", sizes)
	}

	// Order within and across batches follows retained row order
	if batches[0][0].Row != 1 || batches[2][0].Row != 7 {
		t.Errorf("unexpected ordering: %+v", batches)
	}
}

func TestParseDedupPolicy(t *testing.T) {
	if ParseDedupPolicy("first") != DedupFirstWins {
		t.Error("expected first-wins")
	}
	if ParseDedupPolicy("last") != DedupLastWins {
		t.Error("expected last-wins")
	}
	if ParseDedupPolicy("") != DedupLastWins {
		t.Error("expected default last-wins")
	}
}
