package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

type ReconciliationRunRow struct {
	RunID string `bigquery:"run_id"` // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string `bigquery:"status"`        // RUNNING | SUCCESS | FAILED
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	TransactionCount  bigquery.NullInt64 `bigquery:"transaction_count"`  // NULLABLE
	DisbursementCount bigquery.NullInt64 `bigquery:"disbursement_count"` // NULLABLE
	ExportableCount   bigquery.NullInt64 `bigquery:"exportable_count"`   // NULLABLE
}
