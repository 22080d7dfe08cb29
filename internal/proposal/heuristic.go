package proposal

import (
	"regexp"
	"strings"

	"github.com/veremin/rfp-copilot/internal/currency"
)

// The heuristic extractor is a safety net under the model: regex and keyword
// matching over the raw document text. Its quality target is usable defaults,
// not accuracy, and it only runs when the model path fails.

var vendorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Vendor[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)Company[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)From[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)Supplier[:\s]+([^\n]+)`),
}

// Brand tokens scanned for verbatim when no labeled vendor line exists.
var knownVendors = []string{"Dell", "HP", "Lenovo", "Microsoft", "Apple", "IBM", "Cisco", "Oracle"}

var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Proposal[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)Quotation[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)Subject[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)Title[:\s]+([^\n]+)`),
}

var itemPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*[•\-*]\s*(.+)`),
	regexp.MustCompile(`^\s*\d+[.)]\s*(.+)`),
	regexp.MustCompile(`(?i)^Item[:\s]+(.+)`),
	regexp.MustCompile(`(?i)^Product[:\s]+(.+)`),
}

var pricePattern = regexp.MustCompile(`(?i)(?:Total|Price|Cost|Amount)[:\s]*((?:Rs\.?|₹|A\$|C\$|[$€£¥])?\s*[\d][\d,.]*)`)

// Fallback extracts a best-effort record directly from the raw text.
func Fallback(text string) *Record {
	rec := &Record{
		VendorName:    fallbackVendor(text),
		ProposalTitle: fallbackTitle(text),
		TotalPrice:    fallbackPrice(text),
		Budget:        currency.Zero(""),
		Items:         fallbackItems(text),
	}
	return rec
}

func fallbackVendor(text string) string {
	for _, pattern := range vendorPatterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			if vendor := strings.TrimSpace(match[1]); vendor != "" {
				return vendor
			}
		}
	}

	for _, vendor := range knownVendors {
		if strings.Contains(text, vendor) {
			return vendor
		}
	}

	return ""
}

func fallbackTitle(text string) string {
	for _, pattern := range titlePatterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			if title := strings.TrimSpace(match[1]); title != "" {
				return title
			}
		}
	}

	// First non-trivial line works as a title more often than not.
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 10 {
			if runes := []rune(line); len(runes) > 100 {
				return string(runes[:100])
			}
			return line
		}
	}

	return ""
}

func fallbackItems(text string) []string {
	var items []string
	seen := make(map[string]struct{})

	for _, line := range strings.Split(text, "\n") {
		for _, pattern := range itemPatterns {
			match := pattern.FindStringSubmatch(line)
			if match == nil {
				continue
			}
			item := strings.TrimSpace(match[1])
			if len(item) <= 3 {
				continue
			}
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			items = append(items, item)
			break
		}
	}

	return items
}

func fallbackPrice(text string) currency.Price {
	if match := pricePattern.FindStringSubmatch(text); match != nil {
		return currency.NormalizeString(strings.TrimSpace(match[1]))
	}
	return currency.Zero("")
}
