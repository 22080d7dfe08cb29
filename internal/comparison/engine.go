package comparison

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/veremin/rfp-copilot/internal/ai"
	"github.com/veremin/rfp-copilot/internal/logger"
	"github.com/veremin/rfp-copilot/internal/proposal"
	"github.com/veremin/rfp-copilot/internal/rfp"
)

//go:embed prompt.md
var promptTemplate string

const (
	systemInstruction = "You are a procurement comparison expert. Analyze proposals against RFP requirements objectively. Return ONLY valid JSON with comparison results."

	defaultMaxLogLength = 200

	compareTemperature = 0.2
	compareMaxTokens   = 2500

	maxListedPoints = 3
)

// Engine runs the comparison of N extracted proposals against one RFP.
type Engine struct {
	generator ai.Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewEngine(generator ai.Generator, log *zap.Logger, maxLogLength int) *Engine {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{generator: generator, logger: log, maxLogLen: maxLogLength}
}

// projection is the compact per-proposal view sent to the model, keeping the
// prompt bounded regardless of how large the source documents were.
type projection struct {
	ProposalIndex    int    `json:"proposalIndex"`
	VendorName       string `json:"vendorName"`
	ProposalTitle    string `json:"proposalTitle"`
	TotalPrice       string `json:"totalPrice"`
	Items            string `json:"items"`
	Specifications   string `json:"specifications"`
	DeliveryTimeline string `json:"deliveryTimeline"`
	Warranty         string `json:"warranty"`
	PaymentTerms     string `json:"paymentTerms"`
	Summary          string `json:"summary"`
}

// modelOutcome mirrors the JSON document the model is asked to produce.
// Results stay untyped so one malformed entry cannot sink the whole decode.
type modelOutcome struct {
	ComparisonResults  []map[string]any `mapstructure:"comparisonResults"`
	BestProposalIndex  any              `mapstructure:"bestProposalIndex"`
	BestProposalReason string           `mapstructure:"bestProposalReason"`
	Summary            string           `mapstructure:"summary"`
}

// Compare scores every proposal against the RFP. It always returns an outcome
// with exactly len(proposals) results in input order and a best index inside
// [0, N-1], degrading to neutral defaults when the model output is unusable.
// The caller guarantees at least one proposal.
func (e *Engine) Compare(ctx context.Context, spec *rfp.Specification, proposals []*proposal.Record) *Outcome {
	prompt := e.buildPrompt(spec, proposals)

	e.logger.Debug("comparison request",
		zap.Int("proposal_count", len(proposals)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.Generate(ctx, &ai.Request{
		System:      systemInstruction,
		Prompt:      prompt,
		Temperature: compareTemperature,
		MaxTokens:   compareMaxTokens,
		ForceJSON:   true,
	})
	if err != nil {
		e.logger.Warn("comparison model call failed, using default outcome", zap.Error(err))
		return e.defaultOutcome(proposals)
	}

	e.logger.Debug("comparison response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
	)

	parsed, ok := parseModelOutcome(raw)
	if !ok {
		e.logger.Warn("comparison response was not parseable JSON, using default outcome",
			zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
		)
		return e.defaultOutcome(proposals)
	}

	return e.reconcile(parsed, proposals)
}

func (e *Engine) buildPrompt(spec *rfp.Specification, proposals []*proposal.Record) string {
	projections := make([]projection, 0, len(proposals))
	for i, p := range proposals {
		projections = append(projections, projection{
			ProposalIndex:    i,
			VendorName:       p.VendorName,
			ProposalTitle:    p.ProposalTitle,
			TotalPrice:       p.TotalPrice.Formatted,
			Items:            strings.Join(p.Items, ", "),
			Specifications:   p.Specifications,
			DeliveryTimeline: p.DeliveryTimeline,
			Warranty:         p.Warranty,
			PaymentTerms:     p.PaymentTerms,
			Summary:          p.Summary,
		})
	}

	proposalsJSON, err := json.MarshalIndent(projections, "", "  ")
	if err != nil {
		proposalsJSON = []byte("[]")
	}

	replacements := []struct{ placeholder, value string }{
		{"{{RFP_TITLE}}", spec.Title},
		{"{{RFP_BUDGET}}", spec.Budget},
		{"{{RFP_DELIVERY}}", spec.DeliveryTimeline},
		{"{{RFP_PAYMENT_TERMS}}", spec.PaymentTerms},
		{"{{RFP_WARRANTY}}", spec.Warranty},
		{"{{RFP_ITEMS}}", spec.ItemSummary()},
		{"{{RFP_DESCRIPTION}}", spec.Description},
		{"{{PROPOSALS_JSON}}", string(proposalsJSON)},
	}

	prompt := promptTemplate
	for _, r := range replacements {
		prompt = strings.ReplaceAll(prompt, r.placeholder, r.value)
	}
	return prompt
}

// reconcile forces the model output into a complete, index-aligned result set:
// for every input index either the model's own result or a neutral default.
func (e *Engine) reconcile(parsed *modelOutcome, proposals []*proposal.Record) *Outcome {
	byIndex := make(map[int]Result, len(parsed.ComparisonResults))
	for _, entry := range parsed.ComparisonResults {
		result, ok := decodeResult(entry)
		if !ok {
			continue
		}
		if _, exists := byIndex[result.ProposalIndex]; exists {
			continue
		}
		byIndex[result.ProposalIndex] = result
	}

	results := make([]Result, 0, len(proposals))
	for i, p := range proposals {
		if result, ok := byIndex[i]; ok {
			result.ProposalIndex = i
			if strings.TrimSpace(result.VendorName) == "" {
				result.VendorName = p.VendorName
			}
			result.CompatibilityScore = clampScore(result.CompatibilityScore)
			result.SpecMatchPercentage = clampScore(result.SpecMatchPercentage)
			result.Strengths = capList(result.Strengths)
			result.Weaknesses = capList(result.Weaknesses)
			results = append(results, result)
			continue
		}

		e.logger.Warn("model skipped a proposal, filling neutral default",
			zap.Int("proposal_index", i),
			zap.String("vendor_name", p.VendorName),
		)
		results = append(results, neutralResult(i, p))
	}

	best := clampBestIndex(parsed.BestProposalIndex, len(proposals))

	reason := strings.TrimSpace(parsed.BestProposalReason)
	if reason == "" {
		reason = "Based on overall compliance"
	}
	summary := strings.TrimSpace(parsed.Summary)
	if summary == "" {
		summary = "AI comparison analysis completed."
	}

	return &Outcome{
		Results:            results,
		BestProposalIndex:  best,
		BestProposalReason: reason,
		Summary:            summary,
	}
}

// defaultOutcome is the floor: a fully-populated neutral ranking used when no
// usable JSON could be recovered at all.
func (e *Engine) defaultOutcome(proposals []*proposal.Record) *Outcome {
	results := make([]Result, 0, len(proposals))
	for i, p := range proposals {
		results = append(results, neutralResult(i, p))
	}

	return &Outcome{
		Results:            results,
		BestProposalIndex:  0,
		BestProposalReason: "Default selection (first proposal)",
		Summary:            "AI comparison encountered parsing issues. Manual review recommended.",
	}
}

func neutralResult(index int, p *proposal.Record) Result {
	vendor := p.VendorName
	if strings.TrimSpace(vendor) == "" {
		vendor = fmt.Sprintf("Vendor %d", index+1)
	}

	return Result{
		ProposalIndex:       index,
		VendorName:          vendor,
		CompatibilityScore:  50,
		PriceAnalysis:       "Not analyzed",
		SpecMatchPercentage: 50,
		DeliveryMatch:       "Not specified",
		Strengths:           []string{"Proposal submitted"},
		Weaknesses:          []string{"Detailed analysis not available"},
		AIComments:          "AI analysis was not completed for this proposal",
	}
}

func parseModelOutcome(raw string) (*modelOutcome, bool) {
	cleaned := extractJSON(raw)

	var doc map[string]any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start == -1 || end <= start {
			return nil, false
		}
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &doc); err != nil {
			return nil, false
		}
	}

	var parsed modelOutcome
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &parsed,
	})
	if err != nil {
		return nil, false
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, false
	}

	return &parsed, true
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func decodeResult(entry map[string]any) (Result, bool) {
	var result Result
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &result,
	})
	if err != nil {
		return Result{}, false
	}
	if err := decoder.Decode(entry); err != nil {
		return Result{}, false
	}
	return result, true
}

// clampBestIndex bounds the model's nominated index: missing or unparseable
// values fall back to the first proposal, values past the end to the last.
func clampBestIndex(v any, n int) int {
	index, ok := coerceInt(v)
	if !ok {
		return 0
	}
	if index < 0 {
		return 0
	}
	if index > n-1 {
		return n - 1
	}
	return index
}

func coerceInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false
		}
		var parsed float64
		if _, err := fmt.Sscanf(trimmed, "%g", &parsed); err != nil {
			return 0, false
		}
		return int(parsed), true
	default:
		return 0, false
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func capList(list []string) []string {
	trimmed := make([]string, 0, len(list))
	for _, item := range list {
		if s := strings.TrimSpace(item); s != "" {
			trimmed = append(trimmed, s)
		}
	}
	if len(trimmed) > maxListedPoints {
		trimmed = trimmed[:maxListedPoints]
	}
	return trimmed
}
