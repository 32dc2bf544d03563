// Package bigquery persists reconciliation runs and their consolidated
// correction rows. Tables live in a single dataset; the repository holds one
// shared client so a run does not open a connection per operation.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dvloznov/tax-recon/internal/domain"
)

// RunStore is the persistence surface the pipeline depends on. The pipeline
// tests substitute an in-memory implementation.
type RunStore interface {
	StartRun(ctx context.Context, txnCount, disbCount int) (string, error)
	MarkRunFailed(ctx context.Context, runID string, runErr error)
	MarkRunSucceeded(ctx context.Context, runID string, exportableCount int) error
	InsertCorrections(ctx context.Context, runID string, recs []domain.CorrectionRecord) error
}

// Repository is the BigQuery implementation of RunStore.
type Repository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewRepository creates a Repository with a shared BigQuery client.
func NewRepository(ctx context.Context, projectID, datasetID string, opts ...option.ClientOption) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// StartRun records the start of a reconciliation run.
func (r *Repository) StartRun(ctx context.Context, txnCount, disbCount int) (string, error) {
	return StartRunWithClient(ctx, r.client, r.datasetID, txnCount, disbCount)
}

// GetRun reads back the bookkeeping row of one run.
func (r *Repository) GetRun(ctx context.Context, runID string) (*ReconciliationRunRow, error) {
	return GetRunWithClient(ctx, r.client, r.datasetID, runID)
}

// MarkRunFailed records a failed run. Best effort.
func (r *Repository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	MarkRunFailedWithClient(ctx, r.client, r.datasetID, runID, runErr)
}

// MarkRunSucceeded records a successful run and its exportable row count.
func (r *Repository) MarkRunSucceeded(ctx context.Context, runID string, exportableCount int) error {
	return MarkRunSucceededWithClient(ctx, r.client, r.datasetID, runID, exportableCount)
}

// InsertCorrections writes the consolidated correction records for a run.
func (r *Repository) InsertCorrections(ctx context.Context, runID string, recs []domain.CorrectionRecord) error {
	now := time.Now()
	rows := make([]*CorrectionRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, CorrectionRowFromDomain(runID, rec, now))
	}
	return InsertCorrectionsWithClient(ctx, r.client, r.projectID, r.datasetID, rows)
}

// ListCorrectionsByRun reads back the correction rows of one run, ordered the
// same way the CSV export is.
func (r *Repository) ListCorrectionsByRun(ctx context.Context, runID string) ([]*CorrectionRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			transaction_id,
			txn_date,
			ssn,
			participant_name,
			account,
			plan_id,
			engine,
			status,
			current_tax_code_1,
			current_tax_code_2,
			suggested_tax_code_1,
			suggested_tax_code_2,
			new_tax_code,
			suggested_taxable_amt,
			suggested_start_year,
			reasons,
			actions,
			created_ts
		FROM %s.%s
		WHERE run_id = @run_id
		ORDER BY account, ssn, txn_date, transaction_id
	`, r.datasetID, correctionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCorrectionsByRun: query read: %w", err)
	}

	var rows []*CorrectionRow
	for {
		var row CorrectionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCorrectionsByRun: iter next: %w", err)
		}
		rows = append(rows, &row)
	}

	return rows, nil
}
