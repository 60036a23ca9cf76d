package importer

import (
	"strings"
	"testing"

	"product-importer/internal/catalog"
)

func mustHeader(t *testing.T, cols ...string) Header {
	t.Helper()
	h, err := ParseHeader(cols)
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	return h
}

func TestParseHeader(t *testing.T) {
	h := mustHeader(t, "SKU", " Name ", "price", "status", "description")
	if h.sku != 0 || h.name != 1 || h.price != 2 || h.status != 3 || h.description != 4 {
		t.Errorf("unexpected column mapping: %+v", h)
	}

	// Extra columns are ignored, order does not matter
	h = mustHeader(t, "vendor", "price", "sku", "name")
	if h.sku != 2 || h.price != 1 {
		t.Errorf("unexpected column mapping: %+v", h)
	}
	if h.status != -1 || h.description != -1 {
		t.Errorf("expected optional columns absent, got %+v", h)
	}
}

func TestParseHeaderMissingColumns(t *testing.T) {
	_, err := ParseHeader([]string{"name", "vendor"})
	if err == nil {
		t.Fatal("expected error for missing columns")
	}
	for _, want := range []string{"sku", "price"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should name missing column %q: %v", want, err)
		}
	}
}

func TestValidateRowAccepted(t *testing.T) {
	h := mustHeader(t, "sku", "name", "price", "status", "description")

	rec, rejected := ValidateRow(h, []string{" ABC-1 ", "Widget", "9.99", "", "A widget"}, 3)
	if rejected != nil {
		t.Fatalf("unexpected rejection: %+v", rejected)
	}
	if rec.SKU != "ABC-1" {
		t.Errorf("expected trimmed sku, got %q", rec.SKU)
	}
	if rec.Price != 9.99 {
		t.Errorf("expected price 9.99, got %v", rec.Price)
	}
	if rec.Status != catalog.StatusActive {
		t.Errorf("expected default status active, got %s", rec.Status)
	}
	if rec.Row != 3 {
		t.Errorf("expected row 3, got %d", rec.Row)
	}

	rec, rejected = ValidateRow(h, []string{"abc-2", "Gadget", "0", "INACTIVE", ""}, 4)
	if rejected != nil {
		t.Fatalf("unexpected rejection: %+v", rejected)
	}
	if rec.Status != catalog.StatusInactive {
		t.Errorf("expected inactive (case-insensitive), got %s", rec.Status)
	}
	if rec.Price != 0 {
		t.Errorf("zero price is valid, got %v", rec.Price)
	}
}

func TestValidateRowCollectsAllReasons(t *testing.T) {
	h := mustHeader(t, "sku", "name", "price", "status")

	_, rejected := ValidateRow(h, []string{"", "", "abc", "maybe"}, 7)
	if rejected == nil {
		t.Fatal("expected rejection")
	}
	if rejected.Row != 7 || rejected.Kind != OutcomeRejected {
		t.Errorf("unexpected outcome: %+v", rejected)
	}
	if len(rejected.Reasons) != 4 {
		t.Errorf("expected 4 reasons, got %d: %v", len(rejected.Reasons), rejected.Reasons)
	}
}

func TestValidateRowNegativePrice(t *testing.T) {
	h := mustHeader(t, "sku", "name", "price")

	_, rejected := ValidateRow(h, []string{"A", "Thing", "-1.50"}, 1)
	if rejected == nil {
		t.Fatal("expected rejection for negative price")
	}
	if len(rejected.Reasons) != 1 || !strings.Contains(rejected.Reasons[0], "non-negative") {
		t.Errorf("unexpected reasons: %v", rejected.Reasons)
	}
}

func TestValidateRowNonFinitePrice(t *testing.T) {
	h := mustHeader(t, "sku", "name", "price")

	// ParseFloat happily parses these, but a price must be a finite number:
	// NaN in particular never compares equal to itself, so an accepted NaN
	// row would reclassify an identical re-import as an update every run.
	for _, raw := range []string{"NaN", "nan", "+Inf", "-Inf", "Infinity"} {
		_, rejected := ValidateRow(h, []string{"A", "Thing", raw}, 1)
		if rejected == nil {
			t.Errorf("price %q should be rejected", raw)
			continue
		}
		if len(rejected.Reasons) != 1 || !strings.Contains(rejected.Reasons[0], "finite") {
			t.Errorf("price %q: unexpected reasons %v", raw, rejected.Reasons)
		}
	}
}

func TestValidateRowRaggedRow(t *testing.T) {
	h := mustHeader(t, "sku", "name", "price")

	// Short row: missing cells read as empty and fail validation
	_, rejected := ValidateRow(h, []string{"A"}, 2)
	if rejected == nil {
		t.Fatal("expected rejection for ragged row")
	}
	if len(rejected.Reasons) != 2 {
		t.Errorf("expected name and price reasons, got %v", rejected.Reasons)
	}
}
