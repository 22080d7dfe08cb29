// Package rfp holds the Request For Proposal specification that proposals are
// compared against. The specification is read-only within the pipeline.
package rfp

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// NotSpecified is the explicit sentinel for absent fields. It distinguishes
// "field absent" from "field present but empty" across the whole pipeline.
const NotSpecified = "Not specified"

// Item is one required line item of the RFP.
type Item struct {
	Name          string `json:"name" mapstructure:"name"`
	Quantity      int    `json:"quantity" mapstructure:"quantity"`
	Specification string `json:"specification" mapstructure:"specification"`
}

// Specification is the structured procurement requirement document.
type Specification struct {
	ID               string `json:"id" mapstructure:"id"`
	Title            string `json:"title" mapstructure:"title"`
	Description      string `json:"description" mapstructure:"description"`
	Budget           string `json:"budget" mapstructure:"budget"`
	DeliveryTimeline string `json:"deliveryTimeline" mapstructure:"delivery-timeline"`
	PaymentTerms     string `json:"paymentTerms" mapstructure:"payment-terms"`
	Warranty         string `json:"warranty" mapstructure:"warranty"`
	Items            []Item `json:"items" mapstructure:"items"`
}

// Normalize fills absent fields with the sentinel and enforces the minimum
// quantity of one per item. Absence is always represented explicitly, never
// by a missing key.
func (s *Specification) Normalize() {
	s.Title = defaulted(s.Title, "Untitled RFP")
	s.Description = defaulted(s.Description, NotSpecified)
	s.Budget = defaulted(s.Budget, NotSpecified)
	s.DeliveryTimeline = defaulted(s.DeliveryTimeline, NotSpecified)
	s.PaymentTerms = defaulted(s.PaymentTerms, NotSpecified)
	s.Warranty = defaulted(s.Warranty, NotSpecified)

	for i := range s.Items {
		s.Items[i].Name = defaulted(s.Items[i].Name, "Item")
		s.Items[i].Specification = defaulted(s.Items[i].Specification, NotSpecified)
		if s.Items[i].Quantity < 1 {
			s.Items[i].Quantity = 1
		}
	}
}

// ItemSummary renders the line items as "2x Laptop, 10x Dock" for prompts.
func (s *Specification) ItemSummary() string {
	if len(s.Items) == 0 {
		return NotSpecified
	}

	parts := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		parts = append(parts, fmt.Sprintf("%dx %s", item.Quantity, item.Name))
	}
	return strings.Join(parts, ", ")
}

// Load reads a specification from a YAML file.
func Load(path string) (*Specification, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading rfp file: %w", err)
	}

	var spec Specification
	if err := v.Unmarshal(&spec); err != nil {
		return nil, fmt.Errorf("parsing rfp file: %w", err)
	}

	spec.Normalize()
	return &spec, nil
}

func defaulted(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
