// Package currency normalizes free-form price and budget strings from vendor
// documents into a canonical Price record. Amounts are never converted between
// currencies; only what the source document stated is recorded.
package currency

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const notSpecified = "not specified"

// Price is the canonical normalized form of a monetary amount.
type Price struct {
	Value        float64 `json:"value" mapstructure:"value"`
	Currency     string  `json:"currency" mapstructure:"currency"`
	CurrencyName string  `json:"currencyName" mapstructure:"currencyName"`
	Symbol       string  `json:"symbol" mapstructure:"symbol"`
	Formatted    string  `json:"formatted" mapstructure:"formatted"`
	Raw          string  `json:"raw" mapstructure:"raw"`
}

type marker struct {
	symbol  string
	code    string
	name    string
	pattern *regexp.Regexp
}

// Rs./₹ come first: models routinely rewrite rupee amounts as dollars, so the
// rupee markers must win before the generic $ pattern gets a chance. A$ and C$
// likewise precede the bare $.
var markers = []marker{
	{"₹", "INR", "Indian Rupees", regexp.MustCompile(`₹\s*([\d][\d,.]*)`)},
	{"₹", "INR", "Indian Rupees", regexp.MustCompile(`(?i)Rs\.?\s*([\d][\d,.]*)`)},
	{"€", "EUR", "Euros", regexp.MustCompile(`€\s*([\d][\d,.]*)`)},
	{"£", "GBP", "British Pounds", regexp.MustCompile(`£\s*([\d][\d,.]*)`)},
	{"¥", "JPY", "Japanese Yen", regexp.MustCompile(`¥\s*([\d][\d,.]*)`)},
	{"A$", "AUD", "Australian Dollars", regexp.MustCompile(`A\$\s*([\d][\d,.]*)`)},
	{"C$", "CAD", "Canadian Dollars", regexp.MustCompile(`C\$\s*([\d][\d,.]*)`)},
	{"$", "USD", "US Dollars", regexp.MustCompile(`\$\s*([\d][\d,.]*)`)},
}

var bareNumber = regexp.MustCompile(`[\d][\d,.]*`)

var printer = message.NewPrinter(language.English)

// Normalize converts a price-like input into a canonical Price. The input may
// be nil, a display string, an already-normalized Price, or an untyped object
// decoded from model JSON. It never fails: unparseable input yields a zero
// value with the original text preserved in Formatted and Raw.
func Normalize(input any) Price {
	switch v := input.(type) {
	case nil:
		return Zero("")
	case Price:
		return v
	case *Price:
		if v == nil {
			return Zero("")
		}
		return *v
	case string:
		return NormalizeString(v)
	case map[string]any:
		return normalizeObject(v)
	default:
		return NormalizeString(fmt.Sprintf("%v", input))
	}
}

// NormalizeString parses a display string such as "Rs.1,000" or "$14,850.50"
// into a Price.
func NormalizeString(raw string) Price {
	text := strings.TrimSpace(raw)
	if text == "" || strings.EqualFold(text, notSpecified) {
		return Zero(raw)
	}

	for _, m := range markers {
		match := m.pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value := parseAmount(match[1])
		return Price{
			Value:        value,
			Currency:     m.code,
			CurrencyName: m.name,
			Symbol:       m.symbol,
			Formatted:    m.symbol + group(value),
			Raw:          raw,
		}
	}

	if match := bareNumber.FindString(text); match != "" {
		value := parseAmount(match)
		return Price{
			Value:        value,
			Currency:     "UNKNOWN",
			CurrencyName: "Unknown Currency",
			Formatted:    strings.ReplaceAll(match, ",", ""),
			Raw:          raw,
		}
	}

	return Price{
		Value:        0,
		Currency:     "UNKNOWN",
		CurrencyName: "Unknown Currency",
		Formatted:    text,
		Raw:          raw,
	}
}

// Zero returns the display-default zero price used for absent amounts.
func Zero(raw string) Price {
	return Price{
		Value:        0,
		Currency:     "USD",
		CurrencyName: "US Dollars",
		Symbol:       "$",
		Formatted:    "$0",
		Raw:          raw,
	}
}

// normalizeObject handles the structured price shape the model sometimes
// returns ({"value": ..., "currency": ..., "formatted": ...}). Present fields
// are kept verbatim; gaps are filled from whichever display string exists.
func normalizeObject(obj map[string]any) Price {
	var price Price
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &price,
	})
	if err == nil {
		err = decoder.Decode(obj)
	}
	if err != nil {
		return Zero(fmt.Sprintf("%v", obj))
	}

	if price.Value < 0 {
		price.Value = 0
	}

	if price.Currency == "" && price.Value == 0 && price.Formatted == "" {
		return Zero(price.Raw)
	}

	// A structured object missing its numeric value but carrying a display
	// string is re-parsed from that string.
	if price.Value == 0 && price.Formatted != "" {
		reparsed := NormalizeString(price.Formatted)
		if reparsed.Value > 0 {
			if price.Currency == "" || price.Currency == reparsed.Currency {
				return reparsed
			}
		}
	}

	if price.Currency == "" {
		price.Currency = "UNKNOWN"
	}
	if price.CurrencyName == "" {
		price.CurrencyName = currencyName(price.Currency)
	}
	if price.Symbol == "" {
		price.Symbol = currencySymbol(price.Currency)
	}
	if price.Formatted == "" {
		price.Formatted = price.Symbol + group(price.Value)
		if price.Formatted == "" {
			price.Formatted = group(price.Value)
		}
	}

	return price
}

func currencyName(code string) string {
	for _, m := range markers {
		if m.code == code {
			return m.name
		}
	}
	return "Unknown Currency"
}

func currencySymbol(code string) string {
	for _, m := range markers {
		if m.code == code {
			return m.symbol
		}
	}
	return ""
}

// parseAmount strips thousands separators and parses the digit run. Trailing
// punctuation left over from sentence context ("1,000.") is tolerated.
func parseAmount(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimRight(s, ".")
	if s == "" {
		return 0
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}

	value := d.InexactFloat64()
	if value < 0 {
		return 0
	}
	return value
}

// group renders the value with locale thousands grouping ("1,000").
func group(value float64) string {
	return printer.Sprint(number.Decimal(value))
}
