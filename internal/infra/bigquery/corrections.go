package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/tax-recon/internal/domain"
)

type CorrectionRow struct {
	RunID         string `bigquery:"run_id"`         // REQUIRED
	TransactionID string `bigquery:"transaction_id"` // NULLABLE (unmatched transactions have none)

	TxnDate bigquery.NullDate `bigquery:"txn_date"` // NULLABLE

	SSN             string              `bigquery:"ssn"` // REQUIRED
	ParticipantName bigquery.NullString `bigquery:"participant_name"`
	Account         bigquery.NullString `bigquery:"account"`
	PlanID          string              `bigquery:"plan_id"` // REQUIRED

	Engine string `bigquery:"engine"` // REQUIRED
	Status string `bigquery:"status"` // REQUIRED

	CurrentTaxCode1 bigquery.NullString `bigquery:"current_tax_code_1"`
	CurrentTaxCode2 bigquery.NullString `bigquery:"current_tax_code_2"`

	SuggestedTaxCode1 bigquery.NullString `bigquery:"suggested_tax_code_1"`
	SuggestedTaxCode2 bigquery.NullString `bigquery:"suggested_tax_code_2"`
	NewTaxCode        bigquery.NullString `bigquery:"new_tax_code"`

	SuggestedTaxableAmt bigquery.NullFloat64 `bigquery:"suggested_taxable_amt"`
	SuggestedStartYear  bigquery.NullInt64   `bigquery:"suggested_start_year"`

	Reasons []string `bigquery:"reasons"` // REPEATED STRING
	Actions []string `bigquery:"actions"` // REPEATED STRING

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// CorrectionRowFromDomain converts a consolidated correction record into its
// table row, stamped with the run it belongs to.
func CorrectionRowFromDomain(runID string, rec domain.CorrectionRecord, now time.Time) *CorrectionRow {
	row := &CorrectionRow{
		RunID:           runID,
		TransactionID:   rec.TransactionID,
		SSN:             rec.SSN,
		ParticipantName: nullString(rec.ParticipantName),
		Account:         nullString(rec.Account),
		PlanID:          rec.PlanID,
		Engine:          rec.Engine,
		Status:          string(rec.Status),
		CurrentTaxCode1: nullString(rec.CurrentTaxCode1),
		CurrentTaxCode2: nullString(rec.CurrentTaxCode2),
		NewTaxCode:      nullString(rec.NewTaxCode),
		Reasons:         rec.Reasons,
		Actions:         rec.Actions,
		CreatedTS:       now,
	}
	if rec.TxnDate != nil {
		row.TxnDate = bigquery.NullDate{Date: civil.DateOf(*rec.TxnDate), Valid: true}
	}
	if rec.SuggestedTaxCode1 != nil {
		row.SuggestedTaxCode1 = bigquery.NullString{StringVal: *rec.SuggestedTaxCode1, Valid: true}
	}
	if rec.SuggestedTaxCode2 != nil {
		row.SuggestedTaxCode2 = bigquery.NullString{StringVal: *rec.SuggestedTaxCode2, Valid: true}
	}
	if rec.SuggestedTaxableAmt != nil {
		row.SuggestedTaxableAmt = bigquery.NullFloat64{Float64: *rec.SuggestedTaxableAmt, Valid: true}
	}
	if rec.SuggestedStartYear != nil {
		row.SuggestedStartYear = bigquery.NullInt64{Int64: int64(*rec.SuggestedStartYear), Valid: true}
	}
	return row
}

func nullString(s string) bigquery.NullString {
	if s == "" {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: s, Valid: true}
}
