package document

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type stubRunner struct {
	stdout []byte
	stderr []byte
	err    error
	calls  int
}

func (s *stubRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, []byte, error) {
	s.calls++
	return s.stdout, s.stderr, s.err
}

func TestLoadPlainText(t *testing.T) {
	loader := NewLoader(Config{}, zap.NewNop())

	text, err := loader.Load(context.Background(), []byte("Vendor: Acme\nTotal: Rs.1000"), "proposal.txt", "text/plain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Rs.1000") {
		t.Fatalf("expected content to survive, got %q", text)
	}
}

func TestLoadPDFUsesRunner(t *testing.T) {
	runner := &stubRunner{stdout: []byte("PROPOSAL FOR LAPTOPS\nTotal: $5,000")}
	loader := NewLoader(Config{}, zap.NewNop())
	loader.runner = runner

	text, err := loader.Load(context.Background(), []byte("%PDF-1.4 ..."), "proposal.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("expected pdftotext to be invoked once, got %d", runner.calls)
	}
	if !strings.Contains(text, "$5,000") {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestLoadPDFFailureFallsBackToRawBytes(t *testing.T) {
	runner := &stubRunner{err: errors.New("syntax error"), stderr: []byte("broken xref")}
	loader := NewLoader(Config{}, zap.NewNop())
	loader.runner = runner

	text, err := loader.Load(context.Background(), []byte("Vendor: Acme Corp\nTotal: Rs.900"), "mislabeled.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("expected raw-byte fallback to succeed, got %v", err)
	}
	if !strings.Contains(text, "Acme Corp") {
		t.Fatalf("expected salvaged content, got %q", text)
	}
}

func TestLoadPDFFailureWithoutSalvageableText(t *testing.T) {
	runner := &stubRunner{err: errors.New("syntax error")}
	loader := NewLoader(Config{}, zap.NewNop())
	loader.runner = runner

	_, err := loader.Load(context.Background(), []byte{0x00, 0x01, 0x02}, "corrupt.pdf", "application/pdf")
	if err == nil {
		t.Fatalf("expected decode error for binary garbage")
	}
}

func TestLoadNonUTF8Bytes(t *testing.T) {
	loader := NewLoader(Config{}, zap.NewNop())

	text, err := loader.Load(context.Background(), []byte{0xff, 0xfe, 'h', 'i', 0x00}, "weird.bin", "application/octet-stream")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "hi") {
		t.Fatalf("expected valid runes to survive, got %q", text)
	}
}

func TestLoadTruncatesLongText(t *testing.T) {
	loader := NewLoader(Config{MaxChars: 100}, zap.NewNop())

	text, err := loader.Load(context.Background(), []byte(strings.Repeat("a", 500)), "big.txt", "text/plain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len([]rune(text)) != 100 {
		t.Fatalf("expected 100 runes, got %d", len([]rune(text)))
	}
}

func TestMeaningfulLength(t *testing.T) {
	if got := MeaningfulLength("  \n\t "); got != 0 {
		t.Fatalf("expected 0 for whitespace, got %d", got)
	}
	if got := MeaningfulLength("ab c"); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}
