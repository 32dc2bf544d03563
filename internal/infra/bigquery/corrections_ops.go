package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const correctionsTable = "corrections"

// InsertCorrectionsWithClient inserts a batch of CorrectionRow into the
// corrections table using the provided BigQuery client.
func InsertCorrectionsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, rows []*CorrectionRow) error {
	if len(rows) == 0 {
		return nil
	}

	table := client.DatasetInProject(projectID, datasetID).Table(correctionsTable)
	if err := table.Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertCorrections: inserting rows: %w", err)
	}
	return nil
}
