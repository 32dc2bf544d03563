package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/tax-recon/internal/logger"
)

const runsTable = "reconciliation_runs"

// StartRunWithClient inserts a new row into reconciliation_runs with
// status=RUNNING and returns the generated run_id.
func StartRunWithClient(ctx context.Context, client *bigquery.Client, datasetID string, txnCount, disbCount int) (string, error) {
	runID := uuid.NewString()
	started := time.Now()

	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			run_id,
			started_ts,
			status,
			transaction_count,
			disbursement_count
		)
		VALUES (
			@run_id,
			@started_ts,
			@status,
			@transaction_count,
			@disbursement_count
		)
	`, datasetID, runsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "started_ts", Value: started},
		{Name: "status", Value: "RUNNING"},
		{Name: "transaction_count", Value: txnCount},
		{Name: "disbursement_count", Value: disbCount},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("StartRun: running insert query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("StartRun: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return "", fmt.Errorf("StartRun: job error: %w", err)
	}

	return runID, nil
}

// GetRunWithClient reads back one reconciliation_runs row.
func GetRunWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string) (*ReconciliationRunRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			started_ts,
			finished_ts,
			status,
			error_message,
			transaction_count,
			disbursement_count,
			exportable_count
		FROM %s.%s
		WHERE run_id = @run_id
	`, datasetID, runsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetRun: query read: %w", err)
	}

	var row ReconciliationRunRow
	switch err := it.Next(&row); err {
	case nil:
		return &row, nil
	case iterator.Done:
		return nil, fmt.Errorf("GetRun: run %s not found", runID)
	default:
		return nil, fmt.Errorf("GetRun: iter next: %w", err)
	}
}

// MarkRunFailedWithClient sets status=FAILED, finished_ts and error_message.
// Best effort: the run already failed, so bookkeeping errors are logged, not
// returned.
func MarkRunFailedWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string, runErr error) {
	log := logger.FromContext(ctx)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		const maxLen = 2000
		if len(errMsg) > maxLen {
			errMsg = errMsg[:maxLen]
		}
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, datasetID, runsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "FAILED"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "run_id", Value: runID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkRunFailed: running update query")
		return
	}

	status, err := job.Wait(ctx)
	if err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkRunFailed: waiting for job")
		return
	}
	if err := status.Err(); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkRunFailed: job completed with error")
	}
}

// MarkRunSucceededWithClient sets status=SUCCESS, finished_ts and the
// exportable row count, and clears error_message.
func MarkRunSucceededWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string, exportableCount int) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    exportable_count = @exportable_count,
		    error_message = ""
		WHERE run_id = @run_id
	`, datasetID, runsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "SUCCESS"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "exportable_count", Value: exportableCount},
		{Name: "run_id", Value: runID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("MarkRunSucceeded: running update query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("MarkRunSucceeded: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("MarkRunSucceeded: job error: %w", err)
	}

	return nil
}
