package currency

import (
	"testing"
)

func TestNormalizeStringDetectsRupees(t *testing.T) {
	cases := []struct {
		name  string
		input string
		value float64
	}{
		{"rs with dot", "Rs.1000", 1000},
		{"rs without dot", "Rs 1000", 1000},
		{"rs lowercase", "rs.1000", 1000},
		{"rupee glyph", "₹5,000", 5000},
		{"rs with separators", "Rs.1,50,000", 150000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			price := NormalizeString(tc.input)
			if price.Currency != "INR" {
				t.Fatalf("expected INR for %q, got %q", tc.input, price.Currency)
			}
			if price.Value != tc.value {
				t.Fatalf("expected value %v, got %v", tc.value, price.Value)
			}
			if price.Symbol != "₹" {
				t.Fatalf("expected rupee symbol, got %q", price.Symbol)
			}
			if price.Raw != tc.input {
				t.Fatalf("expected raw to be preserved, got %q", price.Raw)
			}
		})
	}
}

func TestNormalizeStringFormatsWithGrouping(t *testing.T) {
	price := NormalizeString("Rs.1000")
	if price.Formatted != "₹1,000" {
		t.Fatalf("expected ₹1,000, got %q", price.Formatted)
	}
}

func TestNormalizeStringCurrencies(t *testing.T) {
	cases := []struct {
		input    string
		currency string
		value    float64
	}{
		{"$14,850", "USD", 14850},
		{"€850", "EUR", 850},
		{"£1,295.50", "GBP", 1295.50},
		{"¥120000", "JPY", 120000},
		{"A$2,000", "AUD", 2000},
		{"C$3,500", "CAD", 3500},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			price := NormalizeString(tc.input)
			if price.Currency != tc.currency {
				t.Fatalf("expected %s, got %s", tc.currency, price.Currency)
			}
			if price.Value != tc.value {
				t.Fatalf("expected %v, got %v", tc.value, price.Value)
			}
			if price.Formatted == "" {
				t.Fatalf("expected non-empty formatted string")
			}
		})
	}
}

func TestNormalizeStringBareNumber(t *testing.T) {
	price := NormalizeString("total 12,500 payable on delivery")
	if price.Currency != "UNKNOWN" {
		t.Fatalf("expected UNKNOWN currency, got %q", price.Currency)
	}
	if price.Value != 12500 {
		t.Fatalf("expected 12500, got %v", price.Value)
	}
	if price.Formatted != "12500" {
		t.Fatalf("expected bare number formatted value, got %q", price.Formatted)
	}
}

func TestNormalizeStringUnparseable(t *testing.T) {
	price := NormalizeString("to be discussed")
	if price.Value != 0 {
		t.Fatalf("expected zero value, got %v", price.Value)
	}
	if price.Currency != "UNKNOWN" {
		t.Fatalf("expected UNKNOWN currency, got %q", price.Currency)
	}
	if price.Formatted != "to be discussed" {
		t.Fatalf("expected original text as formatted, got %q", price.Formatted)
	}
}

func TestNormalizeAbsentInputs(t *testing.T) {
	for _, input := range []any{nil, "", "Not specified", "not specified"} {
		price := Normalize(input)
		if price.Value != 0 {
			t.Fatalf("expected zero value for %v, got %v", input, price.Value)
		}
		if price.Currency != "USD" {
			t.Fatalf("expected USD default for %v, got %q", input, price.Currency)
		}
		if price.Formatted == "" {
			t.Fatalf("expected non-empty formatted string for %v", input)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	original := NormalizeString("Rs.1000")

	again := Normalize(original)
	if again != original {
		t.Fatalf("expected pass-through of normalized price, got %+v", again)
	}

	viaPointer := Normalize(&original)
	if viaPointer != original {
		t.Fatalf("expected pass-through via pointer, got %+v", viaPointer)
	}
}

func TestNormalizeStructuredObject(t *testing.T) {
	price := Normalize(map[string]any{
		"value":     "14850",
		"currency":  "USD",
		"formatted": "$14,850",
	})
	if price.Value != 14850 {
		t.Fatalf("expected 14850, got %v", price.Value)
	}
	if price.Currency != "USD" {
		t.Fatalf("expected USD, got %q", price.Currency)
	}
	if price.Formatted != "$14,850" {
		t.Fatalf("expected formatted to be kept, got %q", price.Formatted)
	}
}

func TestNormalizeStructuredObjectMissingValue(t *testing.T) {
	price := Normalize(map[string]any{"formatted": "Rs.1000"})
	if price.Currency != "INR" {
		t.Fatalf("expected INR reparsed from formatted, got %q", price.Currency)
	}
	if price.Value != 1000 {
		t.Fatalf("expected 1000, got %v", price.Value)
	}
}

func TestNormalizeNeverNegativeOrEmpty(t *testing.T) {
	inputs := []any{
		"-500", "Rs.-100", "$", "....", ",,,", "  ", 42.5,
		map[string]any{"value": -10},
	}
	for _, input := range inputs {
		price := Normalize(input)
		if price.Value < 0 {
			t.Fatalf("negative value for %v: %v", input, price.Value)
		}
		if price.Formatted == "" {
			t.Fatalf("empty formatted string for %v", input)
		}
	}
}
