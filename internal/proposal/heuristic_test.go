package proposal

import (
	"strings"
	"testing"
)

func TestFallbackVendorLabels(t *testing.T) {
	cases := []struct {
		text   string
		vendor string
	}{
		{"Vendor: Acme Corp\nmore text", "Acme Corp"},
		{"Company: Widgets Ltd", "Widgets Ltd"},
		{"From: TechSupply Inc", "TechSupply Inc"},
		{"Supplier: Global Trade Co", "Global Trade Co"},
	}

	for _, tc := range cases {
		if got := fallbackVendor(tc.text); got != tc.vendor {
			t.Fatalf("for %q expected %q, got %q", tc.text, tc.vendor, got)
		}
	}
}

func TestFallbackVendorBrandToken(t *testing.T) {
	text := "This quotation covers 20 Lenovo ThinkPad units with standard warranty."
	if got := fallbackVendor(text); got != "Lenovo" {
		t.Fatalf("expected brand token match, got %q", got)
	}

	if got := fallbackVendor("nothing identifiable in this text"); got != "" {
		t.Fatalf("expected empty vendor, got %q", got)
	}
}

func TestFallbackTitle(t *testing.T) {
	if got := fallbackTitle("Subject: Supply of laptops\nbody"); got != "Supply of laptops" {
		t.Fatalf("unexpected title: %q", got)
	}

	// No labeled title: first non-trivial line, truncated to 100 chars.
	long := strings.Repeat("x", 150)
	got := fallbackTitle("hi\n" + long)
	if len([]rune(got)) != 100 {
		t.Fatalf("expected truncation to 100 runes, got %d", len([]rune(got)))
	}
}

func TestFallbackItems(t *testing.T) {
	text := `Items:
- Ergonomic Office Chairs
• Standing Desks
1. Monitor Arms
- Ergonomic Office Chairs
* ok
Product: Cable Trays
`
	items := fallbackItems(text)

	want := []string{"Ergonomic Office Chairs", "Standing Desks", "Monitor Arms", "Cable Trays"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %v", len(want), items)
	}
	for i, item := range want {
		if items[i] != item {
			t.Fatalf("expected item %d to be %q, got %q", i, item, items[i])
		}
	}
}

func TestFallbackPrice(t *testing.T) {
	price := fallbackPrice("Total: Rs.1000\nDelivery: 2 weeks")
	if price.Currency != "INR" {
		t.Fatalf("expected INR, got %q", price.Currency)
	}
	if price.Value != 1000 {
		t.Fatalf("expected 1000, got %v", price.Value)
	}
	if price.Formatted != "₹1,000" {
		t.Fatalf("expected ₹1,000, got %q", price.Formatted)
	}

	missing := fallbackPrice("no price in this text")
	if missing.Value != 0 || missing.Formatted == "" {
		t.Fatalf("expected zero price with non-empty formatted, got %+v", missing)
	}
}

func TestFallbackRecord(t *testing.T) {
	rec := Fallback(sampleProposal)
	if rec.VendorName != "OfficeWorks Corp" {
		t.Fatalf("unexpected vendor: %q", rec.VendorName)
	}
	if len(rec.Items) == 0 {
		t.Fatalf("expected items from bullets")
	}
	if rec.TotalPrice.Currency != "INR" {
		t.Fatalf("expected INR, got %q", rec.TotalPrice.Currency)
	}
}
