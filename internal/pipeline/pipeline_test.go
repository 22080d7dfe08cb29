package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/veremin/rfp-copilot/internal/ai"
	"github.com/veremin/rfp-copilot/internal/comparison"
	"github.com/veremin/rfp-copilot/internal/document"
	"github.com/veremin/rfp-copilot/internal/proposal"
	"github.com/veremin/rfp-copilot/internal/rfp"
	"github.com/veremin/rfp-copilot/internal/store"
)

// stubGenerator routes by request temperature: extraction runs cooler than
// comparison, so the two call sites are distinguishable without touching the
// prompt text.
type stubGenerator struct {
	extractResponse string
	compareResponse string
	extractCalls    int
	compareCalls    int
}

func (s *stubGenerator) Generate(_ context.Context, req *ai.Request) (string, error) {
	if req.Temperature < 0.15 {
		s.extractCalls++
		return s.extractResponse, nil
	}
	s.compareCalls++
	return s.compareResponse, nil
}

func (s *stubGenerator) Model() string { return "stub-model" }

type fakeStore struct {
	savedRFPID   string
	savedRecords []*proposal.Record
	savedOutcome *comparison.Outcome
	saveErr      error
}

func (f *fakeStore) SaveComparison(_ context.Context, rfpID string, records []*proposal.Record, outcome *comparison.Outcome) error {
	f.savedRFPID = rfpID
	f.savedRecords = records
	f.savedOutcome = outcome
	return f.saveErr
}

func (f *fakeStore) ListProposals(context.Context, string) ([]store.SavedProposal, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

const proposalText = `Vendor: OfficeWorks Corp
Subject: Laptop Supply Proposal

Items:
- Business Laptop 14 inch
- Docking Station

Total: Rs.450,000
Delivery: 3 weeks from purchase order`

const extractResponse = `{
	"vendorName": "OfficeWorks Corp",
	"proposalTitle": "Laptop Supply Proposal",
	"totalPrice": "Rs.450,000",
	"items": ["Business Laptop 14 inch", "Docking Station"],
	"deliveryTimeline": "3 weeks",
	"summary": "Laptops and docks."
}`

const compareResponse = `{
	"comparisonResults": [
		{"proposalIndex": 0, "vendorName": "OfficeWorks Corp", "compatibilityScore": 80, "priceAnalysis": "Within budget", "specMatchPercentage": 85, "deliveryMatch": "Meets deadline"},
		{"proposalIndex": 1, "vendorName": "OfficeWorks Corp", "compatibilityScore": 70, "priceAnalysis": "Within budget", "specMatchPercentage": 70, "deliveryMatch": "Meets deadline"},
		{"proposalIndex": 2, "vendorName": "Unknown Vendor", "compatibilityScore": 20, "priceAnalysis": "No data", "specMatchPercentage": 0, "deliveryMatch": "Unknown"}
	],
	"bestProposalIndex": 0,
	"bestProposalReason": "Best overall fit",
	"summary": "Three proposals compared."
}`

func newTestPipeline(stub *stubGenerator, st store.Store) *Pipeline {
	log := zap.NewNop()
	loader := document.NewLoader(document.Config{}, log)
	extractor := proposal.NewExtractor(stub, loader, log, 0)
	engine := comparison.NewEngine(stub, log, 0)
	return New(Config{Concurrency: 2}, extractor, engine, st, log)
}

func testSpec() *rfp.Specification {
	return &rfp.Specification{
		ID:     "rfp-1",
		Title:  "Office Laptops",
		Budget: "Rs.500,000",
		Items:  []rfp.Item{{Name: "Laptop", Quantity: 20}},
	}
}

func testUploads() []Upload {
	return []Upload{
		{FileName: "a.txt", MIMEType: "text/plain", Data: []byte(proposalText)},
		{FileName: "b.txt", MIMEType: "text/plain", Data: []byte(proposalText)},
		{FileName: "empty.txt", MIMEType: "text/plain", Data: []byte("   \n ")},
	}
}

func TestRunHappyPathWithOneFailedFile(t *testing.T) {
	stub := &stubGenerator{extractResponse: extractResponse, compareResponse: compareResponse}
	p := newTestPipeline(stub, nil)

	result, err := p.Run(context.Background(), testSpec(), testUploads())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Proposals) != 3 {
		t.Fatalf("expected 3 aligned records, got %d", len(result.Proposals))
	}
	if len(result.Comparison.Results) != 3 {
		t.Fatalf("expected 3 comparison results, got %d", len(result.Comparison.Results))
	}
	for i, rec := range result.Proposals {
		if rec.SourceFileIndex != i {
			t.Fatalf("record %d carries index %d", i, rec.SourceFileIndex)
		}
	}

	// The empty file degrades into a placeholder, not a batch failure.
	if len(result.ExtractionErrors) != 1 || result.ExtractionErrors[0].FileName != "empty.txt" {
		t.Fatalf("unexpected extraction errors: %+v", result.ExtractionErrors)
	}
	if result.Proposals[2].CompletenessScore != 0 {
		t.Fatalf("expected placeholder record for failed file, got %+v", result.Proposals[2])
	}

	if result.Stats.TotalFiles != 3 || result.Stats.Extracted != 2 || result.Stats.FailedToParse != 1 {
		t.Fatalf("unexpected stats: %+v", result.Stats)
	}

	if result.Best.Index != 0 || result.Best.VendorName != "OfficeWorks Corp" {
		t.Fatalf("unexpected best proposal: %+v", result.Best)
	}
	if result.Best.Reason != "Best overall fit" {
		t.Fatalf("unexpected reason: %q", result.Best.Reason)
	}
	if !strings.Contains(result.Best.Price, "450,000") {
		t.Fatalf("expected formatted price, got %q", result.Best.Price)
	}

	if result.BatchID == "" || result.RFPID != "rfp-1" {
		t.Fatalf("expected ids assigned, got batch=%q rfp=%q", result.BatchID, result.RFPID)
	}

	// The model is called once per readable file plus once for the comparison.
	if stub.extractCalls != 2 {
		t.Fatalf("expected 2 extraction calls, got %d", stub.extractCalls)
	}
	if stub.compareCalls != 1 {
		t.Fatalf("expected 1 comparison call, got %d", stub.compareCalls)
	}
}

func TestRunFailsWhenNoFileIsReadable(t *testing.T) {
	stub := &stubGenerator{extractResponse: extractResponse, compareResponse: compareResponse}
	p := newTestPipeline(stub, nil)

	uploads := []Upload{
		{FileName: "a.txt", Data: []byte(" ")},
		{FileName: "b.txt", Data: []byte("")},
	}

	_, err := p.Run(context.Background(), testSpec(), uploads)
	if !errors.Is(err, ErrNoUsableProposals) {
		t.Fatalf("expected ErrNoUsableProposals, got %v", err)
	}
	if stub.compareCalls != 0 {
		t.Fatalf("comparison must not run without usable proposals")
	}
}

func TestRunValidation(t *testing.T) {
	stub := &stubGenerator{extractResponse: extractResponse, compareResponse: compareResponse}
	p := newTestPipeline(stub, nil)
	ctx := context.Background()

	if _, err := p.Run(ctx, nil, testUploads()); err == nil {
		t.Fatalf("expected error for nil spec")
	}
	if _, err := p.Run(ctx, testSpec(), nil); err == nil {
		t.Fatalf("expected error for empty batch")
	}

	many := make([]Upload, 11)
	for i := range many {
		many[i] = Upload{FileName: "f.txt", Data: []byte(proposalText)}
	}
	if _, err := p.Run(ctx, testSpec(), many); err == nil {
		t.Fatalf("expected error for too many files")
	}

	huge := []Upload{{FileName: "big.txt", Data: bytes.Repeat([]byte("a"), 11<<20)}}
	if _, err := p.Run(ctx, testSpec(), huge); err == nil {
		t.Fatalf("expected error for oversized file")
	}
}

func TestRunAssignsRFPIDWhenMissing(t *testing.T) {
	stub := &stubGenerator{extractResponse: extractResponse, compareResponse: compareResponse}
	p := newTestPipeline(stub, nil)

	spec := testSpec()
	spec.ID = ""

	result, err := p.Run(context.Background(), spec, testUploads()[:1])
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.RFPID == "" {
		t.Fatalf("expected generated rfp id")
	}
}

func TestPersist(t *testing.T) {
	stub := &stubGenerator{extractResponse: extractResponse, compareResponse: compareResponse}
	st := &fakeStore{}
	p := newTestPipeline(stub, st)

	result, err := p.Run(context.Background(), testSpec(), testUploads())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := p.Persist(context.Background(), result); err != nil {
		t.Fatalf("persist: %v", err)
	}

	if st.savedRFPID != "rfp-1" {
		t.Fatalf("unexpected rfp id: %q", st.savedRFPID)
	}
	if len(st.savedRecords) != 3 || len(st.savedOutcome.Results) != 3 {
		t.Fatalf("expected aligned records and results, got %d/%d", len(st.savedRecords), len(st.savedOutcome.Results))
	}
}

func TestPersistWithoutStore(t *testing.T) {
	stub := &stubGenerator{extractResponse: extractResponse, compareResponse: compareResponse}
	p := newTestPipeline(stub, nil)

	if err := p.Persist(context.Background(), &Result{}); err == nil {
		t.Fatalf("expected error without a store")
	}
}
