// Package document extracts plain text from uploaded proposal files. PDFs go
// through the poppler pdftotext binary; everything else is treated as UTF-8
// text with a best-effort salvage for malformed bytes.
package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

const (
	// defaultMaxChars bounds the text handed to the model so oversized
	// documents do not blow the prompt budget.
	defaultMaxChars  = 15000
	defaultPdftotext = "pdftotext"
)

// Runner executes an external command and returns its stdout and stderr.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type Config struct {
	// Pdftotext is the binary name or absolute path; empty means "pdftotext".
	Pdftotext string
	// MaxChars truncates extracted text to this rune count; 0 uses the default.
	MaxChars int
}

type Loader struct {
	cfg    Config
	runner Runner
	logger *zap.Logger
}

func NewLoader(cfg Config, logger *zap.Logger) *Loader {
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = defaultPdftotext
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = defaultMaxChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Load extracts plain text from the provided file content. The returned text
// is truncated to the configured bound. An error is returned only when the
// file could not be decoded at all; a legitimately empty document yields an
// empty string and no error.
func (l *Loader) Load(ctx context.Context, data []byte, fileName, mimeType string) (string, error) {
	var text string

	if isPDF(fileName, mimeType) {
		extracted, err := l.pdfToText(ctx, data)
		if err != nil {
			// Degrade to raw-byte decoding; some "PDFs" are mislabeled
			// text files and still carry readable content.
			l.logger.Debug("pdf text extraction failed, using raw-byte fallback",
				zap.String("file_name", fileName),
				zap.Error(err),
			)
			salvaged := salvage(data)
			if MeaningfulLength(salvaged) == 0 {
				return "", fmt.Errorf("decode pdf %q: %w", fileName, err)
			}
			text = salvaged
		} else {
			text = extracted
		}
	} else {
		text = salvage(data)
	}

	return truncate(text, l.cfg.MaxChars), nil
}

func (l *Loader) pdfToText(ctx context.Context, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "rfp-proposal-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := l.runner.Run(ctx, l.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", tmp.Name(), "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	return string(out), nil
}

func isPDF(fileName, mimeType string) bool {
	if strings.EqualFold(strings.TrimSpace(mimeType), "application/pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(fileName), ".pdf")
}

// salvage decodes bytes as UTF-8, dropping invalid sequences and control
// characters that upset downstream prompt construction.
func salvage(data []byte) string {
	text := strings.ToValidUTF8(string(data), "")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}

// MeaningfulLength counts non-whitespace runes, used to decide whether a
// decoded document carries enough content to be worth extracting.
func MeaningfulLength(s string) int {
	count := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			count++
		}
	}
	return count
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
