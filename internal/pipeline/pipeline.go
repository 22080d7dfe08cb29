// Package pipeline drives the end-to-end batch flow: load every uploaded
// proposal file, extract each one independently, run the comparison once over
// all of them, and assemble the externally-visible result. A failure on one
// file never aborts the batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veremin/rfp-copilot/internal/comparison"
	"github.com/veremin/rfp-copilot/internal/proposal"
	"github.com/veremin/rfp-copilot/internal/rfp"
	"github.com/veremin/rfp-copilot/internal/store"
)

const (
	defaultMaxFiles    = 10
	defaultMaxFileSize = 10 << 20 // 10MB
	defaultConcurrency = 4
)

// ErrNoUsableProposals is returned when no uploaded file yielded any
// extractable text at all.
var ErrNoUsableProposals = errors.New("could not extract data from any proposal files")

// Upload is one raw proposal file handed in at the batch boundary.
type Upload struct {
	FileName string
	MIMEType string
	Data     []byte
}

// ExtractionError records a per-file failure without failing the batch.
type ExtractionError struct {
	FileName string `json:"fileName"`
	Error    string `json:"error"`
}

// BestProposal summarizes the recommended proposal for the response.
type BestProposal struct {
	Index              int    `json:"index"`
	VendorName         string `json:"vendorName"`
	FileName           string `json:"fileName"`
	Price              string `json:"price"`
	CompatibilityScore int    `json:"compatibilityScore"`
	Reason             string `json:"reason"`
}

// Stats counts what happened to the batch.
type Stats struct {
	TotalFiles    int `json:"totalFiles"`
	Extracted     int `json:"extracted"`
	FailedToParse int `json:"failedToParse"`
}

// Result is the assembled outcome of one batch compare request.
type Result struct {
	BatchID          string              `json:"batchId"`
	RFPID            string              `json:"rfpId"`
	Proposals        []*proposal.Record  `json:"proposals"`
	Comparison       *comparison.Outcome `json:"comparison"`
	Best             BestProposal        `json:"bestProposal"`
	Stats            Stats               `json:"stats"`
	ExtractionErrors []ExtractionError   `json:"extractionErrors,omitempty"`
}

type Config struct {
	// MaxFiles bounds how many files one batch may carry; 0 uses the default.
	MaxFiles int
	// MaxFileSize bounds a single file in bytes; 0 uses the default.
	MaxFileSize int64
	// Concurrency bounds parallel per-file extractions; 0 uses the default.
	Concurrency int
}

// Pipeline composes the extractor and the comparison engine.
type Pipeline struct {
	cfg       Config
	extractor *proposal.Extractor
	engine    *comparison.Engine
	store     store.Store
	logger    *zap.Logger
}

// New builds a pipeline. The store may be nil when persistence is deferred to
// an explicit Persist call.
func New(cfg Config, extractor *proposal.Extractor, engine *comparison.Engine, st store.Store, log *zap.Logger) *Pipeline {
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = defaultMaxFiles
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Pipeline{
		cfg:       cfg,
		extractor: extractor,
		engine:    engine,
		store:     st,
		logger:    log,
	}
}

// Run executes the batch. Input validation errors and the absence of any
// usable proposal are the only failures surfaced to the caller; everything
// else degrades into the result itself.
func (p *Pipeline) Run(ctx context.Context, spec *rfp.Specification, uploads []Upload) (*Result, error) {
	if spec == nil {
		return nil, errors.New("rfp specification is required")
	}
	if len(uploads) == 0 {
		return nil, errors.New("at least one proposal file is required")
	}
	if len(uploads) > p.cfg.MaxFiles {
		return nil, fmt.Errorf("too many files: %d exceeds the limit of %d", len(uploads), p.cfg.MaxFiles)
	}
	for _, upload := range uploads {
		if int64(len(upload.Data)) > p.cfg.MaxFileSize {
			return nil, fmt.Errorf("file %q exceeds the size limit of %d bytes", upload.FileName, p.cfg.MaxFileSize)
		}
	}

	spec.Normalize()
	if spec.ID == "" {
		spec.ID = uuid.NewString()
	}

	batchID := uuid.NewString()
	p.logger.Info("starting batch comparison",
		zap.String("batch_id", batchID),
		zap.String("rfp_id", spec.ID),
		zap.String("rfp_title", spec.Title),
		zap.Int("file_count", len(uploads)),
	)

	records, extractionErrors := p.extractAll(ctx, uploads)

	usable := len(records) - len(extractionErrors)
	if usable == 0 {
		for _, extErr := range extractionErrors {
			p.logger.Error("extraction failed",
				zap.String("file_name", extErr.FileName),
				zap.String("reason", extErr.Error),
			)
		}
		return nil, ErrNoUsableProposals
	}

	p.logger.Info("extraction completed",
		zap.Int("extracted", usable),
		zap.Int("failed", len(extractionErrors)),
	)

	outcome := p.engine.Compare(ctx, spec, records)

	result := &Result{
		BatchID:          batchID,
		RFPID:            spec.ID,
		Proposals:        records,
		Comparison:       outcome,
		Best:             bestProposal(records, outcome),
		ExtractionErrors: extractionErrors,
		Stats: Stats{
			TotalFiles:    len(uploads),
			Extracted:     usable,
			FailedToParse: len(extractionErrors),
		},
	}

	p.logger.Info("batch comparison completed",
		zap.String("batch_id", batchID),
		zap.String("best_vendor", result.Best.VendorName),
		zap.Int("best_score", result.Best.CompatibilityScore),
	)

	return result, nil
}

// Persist hands the result's records and comparison to the storage
// collaborator, keyed by RFP id and file index.
func (p *Pipeline) Persist(ctx context.Context, result *Result) error {
	if p.store == nil {
		return errors.New("no store configured")
	}
	if result == nil {
		return errors.New("result is required")
	}
	return p.store.SaveComparison(ctx, result.RFPID, result.Proposals, result.Comparison)
}

// extractAll runs per-file extraction with bounded concurrency. Results land
// at their input index so the comparison engine's proposalIndex contract holds
// even when some files fail; failed files still get placeholder records.
func (p *Pipeline) extractAll(ctx context.Context, uploads []Upload) ([]*proposal.Record, []ExtractionError) {
	records := make([]*proposal.Record, len(uploads))
	errs := make([]error, len(uploads))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.cfg.Concurrency)

	for i, upload := range uploads {
		group.Go(func() error {
			rec, err := p.extractor.Extract(groupCtx, upload.Data, upload.FileName, upload.MIMEType, i)
			records[i] = rec
			errs[i] = err
			return nil
		})
	}

	// Extract never returns a group-level error; Wait is only the barrier.
	_ = group.Wait()

	var extractionErrors []ExtractionError
	for i, err := range errs {
		if err == nil {
			continue
		}
		extractionErrors = append(extractionErrors, ExtractionError{
			FileName: uploads[i].FileName,
			Error:    err.Error(),
		})
	}

	return records, extractionErrors
}

// bestProposal zips the winning record with its comparison result by index.
func bestProposal(records []*proposal.Record, outcome *comparison.Outcome) BestProposal {
	index := outcome.BestProposalIndex
	record := records[index]

	return BestProposal{
		Index:              index,
		VendorName:         record.VendorName,
		FileName:           record.SourceFileName,
		Price:              record.TotalPrice.Formatted,
		CompatibilityScore: outcome.Results[index].CompatibilityScore,
		Reason:             outcome.BestProposalReason,
	}
}
