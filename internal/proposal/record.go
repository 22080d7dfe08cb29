// Package proposal turns unstructured vendor proposal documents into
// structured, currency-aware records. The primary path asks the external
// model for a strict JSON extraction; a regex fallback and a fully-defaulted
// floor sit underneath it so the caller always receives a complete record.
package proposal

import (
	"github.com/veremin/rfp-copilot/internal/currency"
)

const (
	// NotSpecified marks a field the document did not provide.
	NotSpecified = "Not specified"
	// UnknownVendor is used when no vendor name could be recovered.
	UnknownVendor = "Unknown Vendor"
)

// Record is the structured extraction result for one vendor document. It is
// created once per uploaded file and immutable thereafter.
type Record struct {
	VendorName        string         `json:"vendorName"`
	ProposalTitle     string         `json:"proposalTitle"`
	TotalPrice        currency.Price `json:"totalPrice"`
	Budget            currency.Price `json:"budget"`
	Items             []string       `json:"items"`
	Specifications    string         `json:"specifications"`
	DeliveryTimeline  string         `json:"deliveryTimeline"`
	Warranty          string         `json:"warranty"`
	PaymentTerms      string         `json:"paymentTerms"`
	ContactInfo       string         `json:"contactInfo"`
	RFPReference      string         `json:"rfpReference"`
	Notes             string         `json:"notes"`
	Summary           string         `json:"summary"`
	CompletenessScore int            `json:"completenessScore"`
	SourceFileName    string         `json:"sourceFileName"`
	SourceFileIndex   int            `json:"sourceFileIndex"`
}

// ItemsFilled reports whether the record carries real line items rather than
// the sentinel placeholder.
func (r *Record) ItemsFilled() bool {
	if len(r.Items) == 0 {
		return false
	}
	return !(len(r.Items) == 1 && r.Items[0] == NotSpecified)
}
