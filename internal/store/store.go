// Package store persists extraction and comparison results. The pipeline
// depends only on the Store interface and hands over immutable value objects;
// how and where they live afterwards is the store's business.
package store

import (
	"context"

	"github.com/veremin/rfp-copilot/internal/comparison"
	"github.com/veremin/rfp-copilot/internal/proposal"
)

// SavedProposal is one persisted proposal row.
type SavedProposal struct {
	ID            string
	RFPID         string
	FileIndex     int
	FileName      string
	VendorName    string
	AIScore       int
	IsRecommended bool
}

// Store receives one extracted record and one comparison result per proposal,
// keyed by RFP id and file index.
type Store interface {
	SaveComparison(ctx context.Context, rfpID string, records []*proposal.Record, outcome *comparison.Outcome) error
	ListProposals(ctx context.Context, rfpID string) ([]SavedProposal, error)
	Close() error
}
