// Package comparison scores extracted proposals against one RFP and selects
// a best proposal. Whatever the model returns, the outcome always contains
// exactly one result per input proposal, index-aligned, with a dereferenceable
// best index.
package comparison

// Result is the per-proposal comparison verdict.
type Result struct {
	ProposalIndex       int      `json:"proposalIndex" mapstructure:"proposalIndex"`
	VendorName          string   `json:"vendorName" mapstructure:"vendorName"`
	CompatibilityScore  int      `json:"compatibilityScore" mapstructure:"compatibilityScore"`
	PriceAnalysis       string   `json:"priceAnalysis" mapstructure:"priceAnalysis"`
	SpecMatchPercentage int      `json:"specMatchPercentage" mapstructure:"specMatchPercentage"`
	DeliveryMatch       string   `json:"deliveryMatch" mapstructure:"deliveryMatch"`
	Strengths           []string `json:"strengths" mapstructure:"strengths"`
	Weaknesses          []string `json:"weaknesses" mapstructure:"weaknesses"`
	AIComments          string   `json:"aiComments" mapstructure:"aiComments"`
}

// Outcome aggregates the ranked comparison across all proposals.
type Outcome struct {
	Results            []Result `json:"results"`
	BestProposalIndex  int      `json:"bestProposalIndex"`
	BestProposalReason string   `json:"bestProposalReason"`
	Summary            string   `json:"summary"`
}
