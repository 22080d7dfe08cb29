package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/veremin/rfp-copilot/internal/comparison"
	"github.com/veremin/rfp-copilot/internal/proposal"
)

const schema = `
CREATE TABLE IF NOT EXISTS proposals (
	id              TEXT PRIMARY KEY,
	rfp_id          TEXT NOT NULL,
	file_index      INTEGER NOT NULL,
	file_name       TEXT NOT NULL,
	vendor_name     TEXT NOT NULL,
	extracted       TEXT NOT NULL,
	comparison      TEXT NOT NULL,
	ai_score        INTEGER NOT NULL,
	is_recommended  INTEGER NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL,
	UNIQUE (rfp_id, file_index)
);
CREATE INDEX IF NOT EXISTS idx_proposals_rfp ON proposals (rfp_id);
`

// SQLite is the file-backed Store implementation.
type SQLite struct {
	db *sql.DB
}

// Open creates or opens the database at path and ensures the schema exists.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// SaveComparison stores every record with its index-aligned comparison result
// in a single transaction. Re-running a comparison for the same RFP replaces
// the previous rows.
func (s *SQLite) SaveComparison(ctx context.Context, rfpID string, records []*proposal.Record, outcome *comparison.Outcome) error {
	if outcome == nil || len(outcome.Results) != len(records) {
		return fmt.Errorf("outcome must carry exactly one result per record")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM proposals WHERE rfp_id = ?`, rfpID); err != nil {
		return fmt.Errorf("clear previous results: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i, record := range records {
		extracted, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record %d: %w", i, err)
		}
		result, err := json.Marshal(outcome.Results[i])
		if err != nil {
			return fmt.Errorf("marshal comparison result %d: %w", i, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO proposals (id, rfp_id, file_index, file_name, vendor_name, extracted, comparison, ai_score, is_recommended, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(),
			rfpID,
			i,
			record.SourceFileName,
			record.VendorName,
			string(extracted),
			string(result),
			outcome.Results[i].CompatibilityScore,
			i == outcome.BestProposalIndex,
			now,
		)
		if err != nil {
			return fmt.Errorf("insert proposal %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListProposals returns the persisted proposals for an RFP ordered by score,
// best first.
func (s *SQLite) ListProposals(ctx context.Context, rfpID string) ([]SavedProposal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rfp_id, file_index, file_name, vendor_name, ai_score, is_recommended
		FROM proposals
		WHERE rfp_id = ?
		ORDER BY ai_score DESC, file_index ASC`, rfpID)
	if err != nil {
		return nil, fmt.Errorf("query proposals: %w", err)
	}
	defer rows.Close()

	var proposals []SavedProposal
	for rows.Next() {
		var p SavedProposal
		if err := rows.Scan(&p.ID, &p.RFPID, &p.FileIndex, &p.FileName, &p.VendorName, &p.AIScore, &p.IsRecommended); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		proposals = append(proposals, p)
	}

	return proposals, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
