package proposal

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/veremin/rfp-copilot/internal/ai"
	"github.com/veremin/rfp-copilot/internal/currency"
	"github.com/veremin/rfp-copilot/internal/document"
	"github.com/veremin/rfp-copilot/internal/logger"
)

//go:embed prompt.md
var promptTemplate string

//go:embed schema.json
var schemaJSON string

var payloadSchema = jsonschema.MustCompileString("proposal.schema.json", schemaJSON)

const (
	systemInstruction = "You are a procurement data extraction expert. You extract structured data from vendor proposals and return ONLY valid JSON objects. Never add explanations or additional text."

	// minMeaningfulChars is the floor under which a decoded document is not
	// worth sending to the model.
	minMeaningfulChars = 50

	defaultMaxLogLength = 200

	extractTemperature = 0.1
	extractMaxTokens   = 2000
)

// Extractor drives a single proposal document from raw bytes to a validated
// Record. It never fails: every degradation path still produces a complete,
// well-formed record.
type Extractor struct {
	generator ai.Generator
	loader    *document.Loader
	logger    *zap.Logger
	maxLogLen int
}

func NewExtractor(generator ai.Generator, loader *document.Loader, log *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Extractor{
		generator: generator,
		loader:    loader,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// Extract returns the structured record for one uploaded file. The returned
// record is always complete; the error is advisory and non-nil only when no
// text could be extracted from the file at all, in which case the record is a
// placeholder explaining the failure.
func (e *Extractor) Extract(ctx context.Context, data []byte, fileName, mimeType string, index int) (*Record, error) {
	text, err := e.loader.Load(ctx, data, fileName, mimeType)
	if err != nil {
		return e.failedRecord(fileName, index, err.Error()), fmt.Errorf("extract text from %q: %w", fileName, err)
	}

	if document.MeaningfulLength(text) < minMeaningfulChars {
		reason := "file is empty or contains no readable text"
		return e.failedRecord(fileName, index, reason), fmt.Errorf("%s: %s", fileName, reason)
	}

	prompt := buildPrompt(text)

	e.logger.Debug("proposal extraction request",
		zap.String("file_name", fileName),
		zap.Int("file_index", index),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("text_preview", logger.TruncateForLog(text, e.maxLogLen)),
	)

	raw, err := e.generator.Generate(ctx, &ai.Request{
		System:      systemInstruction,
		Prompt:      prompt,
		Temperature: extractTemperature,
		MaxTokens:   extractMaxTokens,
		ForceJSON:   true,
	})
	if err != nil {
		e.logger.Warn("model extraction failed, using heuristic fallback",
			zap.String("file_name", fileName),
			zap.Error(err),
		)
		return e.heuristicRecord(text, fileName, index, "Heuristic extraction: model unavailable"), nil
	}

	e.logger.Debug("proposal extraction response",
		zap.String("file_name", fileName),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
	)

	doc, ok := parseModelDocument(raw)
	if !ok {
		e.logger.Warn("model returned unparseable output, using heuristic fallback",
			zap.String("file_name", fileName),
			zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
		)
		return e.heuristicRecord(text, fileName, index, "Heuristic extraction: model output was not valid JSON"), nil
	}

	payload, err := decodePayload(doc)
	if err != nil {
		e.logger.Warn("model output did not decode into a proposal, using heuristic fallback",
			zap.String("file_name", fileName),
			zap.Error(err),
		)
		return e.heuristicRecord(text, fileName, index, "Heuristic extraction: model output had an unexpected shape"), nil
	}

	return e.normalizedRecord(payload, text, fileName, index), nil
}

// modelPayload mirrors the JSON document the model is asked to produce.
// Price-like fields and items stay untyped here; the model is inconsistent
// about their shape and the normalization step owns the conversion.
type modelPayload struct {
	VendorName       string `mapstructure:"vendorName"`
	ProposalTitle    string `mapstructure:"proposalTitle"`
	Title            string `mapstructure:"title"`
	TotalPrice       any    `mapstructure:"totalPrice"`
	Budget           any    `mapstructure:"budget"`
	Items            any    `mapstructure:"items"`
	Specifications   string `mapstructure:"specifications"`
	DeliveryTimeline string `mapstructure:"deliveryTimeline"`
	Warranty         string `mapstructure:"warranty"`
	PaymentTerms     string `mapstructure:"paymentTerms"`
	ContactInfo      string `mapstructure:"contactInfo"`
	RFPReference     string `mapstructure:"rfpReference"`
	Notes            string `mapstructure:"notes"`
	Summary          string `mapstructure:"summary"`
}

func buildPrompt(text string) string {
	hint := currencyHint(text)
	prompt := strings.ReplaceAll(promptTemplate, "{{CURRENCY_HINT}}", hint)
	return strings.ReplaceAll(prompt, "{{DOCUMENT_TEXT}}", text)
}

// currencyHint pre-scans the document for currency markers so the prompt can
// warn the model against rewriting rupee or euro amounts as dollars.
func currencyHint(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "rs.") || strings.Contains(text, "₹"):
		return `IMPORTANT: The document contains "Rs." or "₹" symbols. When extracting prices, use "Rs." or "₹", NOT "$".`
	case strings.Contains(text, "€"):
		return `IMPORTANT: The document contains "€" symbols. When extracting prices, use "€", NOT "$".`
	default:
		return "- Keep whatever currency symbol the document uses."
	}
}

// parseModelDocument applies the strict-then-braces parse ladder to the raw
// model output and gates the result through the response schema.
func parseModelDocument(raw string) (map[string]any, bool) {
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

	if err := payloadSchema.Validate(doc); err != nil {
		return nil, false
	}

	return doc, true
}

// extractJSON strips markdown code fences the model wraps around its output
// despite being told not to.
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

func decodePayload(doc map[string]any) (*modelPayload, error) {
	var payload modelPayload
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &payload,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("decode model payload: %w", err)
	}
	return &payload, nil
}

// normalizedRecord validates the model payload field by field into a Record,
// filling gaps from the heuristic extractor before falling back to sentinels.
func (e *Extractor) normalizedRecord(payload *modelPayload, text, fileName string, index int) *Record {
	vendor := firstFilled(payload.VendorName, fallbackVendor(text), UnknownVendor)
	title := firstFilled(payload.ProposalTitle, payload.Title, fallbackTitle(text), fileName, "Vendor Proposal")

	items := coerceItems(payload.Items)
	if len(items) == 0 {
		items = fallbackItems(text)
	}
	if len(items) == 0 {
		items = []string{NotSpecified}
	}

	rec := &Record{
		VendorName:       vendor,
		ProposalTitle:    title,
		TotalPrice:       currency.Normalize(payload.TotalPrice),
		Budget:           currency.Normalize(payload.Budget),
		Items:            items,
		Specifications:   sentinelDefault(payload.Specifications),
		DeliveryTimeline: sentinelDefault(payload.DeliveryTimeline),
		Warranty:         sentinelDefault(payload.Warranty),
		PaymentTerms:     sentinelDefault(payload.PaymentTerms),
		ContactInfo:      sentinelDefault(payload.ContactInfo),
		RFPReference:     sentinelDefault(payload.RFPReference),
		Notes:            sentinelDefault(payload.Notes),
		SourceFileName:   fileName,
		SourceFileIndex:  index,
	}

	rec.CompletenessScore = completeness(rec)
	rec.Summary = firstFilled(payload.Summary, synthesizeSummary(rec))

	return rec
}

func (e *Extractor) heuristicRecord(text, fileName string, index int, note string) *Record {
	rec := Fallback(text)

	rec.VendorName = firstFilled(rec.VendorName, UnknownVendor)
	rec.ProposalTitle = firstFilled(rec.ProposalTitle, fileName, "Vendor Proposal")
	if len(rec.Items) == 0 {
		rec.Items = []string{NotSpecified}
	}

	rec.Specifications = NotSpecified
	rec.DeliveryTimeline = NotSpecified
	rec.Warranty = NotSpecified
	rec.PaymentTerms = NotSpecified
	rec.ContactInfo = NotSpecified
	rec.RFPReference = NotSpecified
	rec.Notes = note
	rec.SourceFileName = fileName
	rec.SourceFileIndex = index
	rec.CompletenessScore = completeness(rec)
	rec.Summary = synthesizeSummary(rec)

	return rec
}

func (e *Extractor) failedRecord(fileName string, index int, reason string) *Record {
	return &Record{
		VendorName:        UnknownVendor,
		ProposalTitle:     firstFilled(fileName, "Proposal File"),
		TotalPrice:        currency.Zero(""),
		Budget:            currency.Zero(""),
		Items:             []string{NotSpecified},
		Specifications:    NotSpecified,
		DeliveryTimeline:  NotSpecified,
		Warranty:          NotSpecified,
		PaymentTerms:      NotSpecified,
		ContactInfo:       NotSpecified,
		RFPReference:      NotSpecified,
		Notes:             reason,
		Summary:           fmt.Sprintf("Could not extract text from %s: %s", firstFilled(fileName, "uploaded file"), reason),
		CompletenessScore: 0,
		SourceFileName:    fileName,
		SourceFileIndex:   index,
	}
}

// completeness scores the record over the fixed required-field set: title,
// items, total price, delivery timeline.
func completeness(r *Record) int {
	filled := 0
	total := 4

	if r.ProposalTitle != "" && r.ProposalTitle != NotSpecified {
		filled++
	}
	if r.ItemsFilled() {
		filled++
	}
	if r.TotalPrice.Value > 0 {
		filled++
	}
	if r.DeliveryTimeline != "" && r.DeliveryTimeline != NotSpecified {
		filled++
	}

	return int(math.Round(float64(filled) / float64(total) * 100))
}

func synthesizeSummary(r *Record) string {
	title := r.ProposalTitle
	if runes := []rune(title); len(runes) > 50 {
		title = string(runes[:50])
	}
	return fmt.Sprintf("Proposal from %s for %s", r.VendorName, title)
}

func coerceItems(v any) []string {
	switch items := v.(type) {
	case []any:
		result := make([]string, 0, len(items))
		for _, item := range items {
			s := strings.TrimSpace(fmt.Sprintf("%v", item))
			if s == "" || strings.EqualFold(s, NotSpecified) {
				continue
			}
			result = append(result, s)
		}
		return result
	case []string:
		result := make([]string, 0, len(items))
		for _, item := range items {
			if s := strings.TrimSpace(item); s != "" && !strings.EqualFold(s, NotSpecified) {
				result = append(result, s)
			}
		}
		return result
	case string:
		if s := strings.TrimSpace(items); s != "" && !strings.EqualFold(s, NotSpecified) {
			return []string{s}
		}
		return nil
	default:
		return nil
	}
}

func sentinelDefault(v string) string {
	if strings.TrimSpace(v) == "" {
		return NotSpecified
	}
	return strings.TrimSpace(v)
}

func firstFilled(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && v != NotSpecified {
			return v
		}
	}
	return ""
}
