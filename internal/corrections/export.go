package corrections

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// exportHeader is the fixed column order of the corrections file. The
// downstream recordkeeping team loads this file directly, so the order is
// part of the contract.
var exportHeader = []string{
	"transaction_id",
	"txn_date",
	"account",
	"ssn",
	"participant_name",
	"plan_id",
	"engine",
	"status",
	"current_tax_code_1",
	"current_tax_code_2",
	"suggested_tax_code_1",
	"suggested_tax_code_2",
	"new_tax_code",
	"suggested_taxable_amt",
	"suggested_start_year",
	"reasons",
	"actions",
}

// WriteCSV writes the consolidated exportable set. Records are assumed
// already sorted by Consolidate, so two runs over the same input produce
// byte-identical files.
func (c Consolidated) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("corrections.WriteCSV: header: %w", err)
	}
	for _, rec := range c.Exportable {
		row := []string{
			rec.TransactionID,
			timeKey(rec),
			rec.Account,
			rec.SSN,
			rec.ParticipantName,
			rec.PlanID,
			rec.Engine,
			string(rec.Status),
			rec.CurrentTaxCode1,
			rec.CurrentTaxCode2,
			ptrString(rec.SuggestedTaxCode1),
			ptrString(rec.SuggestedTaxCode2),
			rec.NewTaxCode,
			ptrAmount(rec.SuggestedTaxableAmt),
			ptrYear(rec.SuggestedStartYear),
			strings.Join(rec.Reasons, ";"),
			strings.Join(rec.Actions, ";"),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("corrections.WriteCSV: row %s: %w", rec.TransactionID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("corrections.WriteCSV: flush: %w", err)
	}
	return nil
}

func ptrString(p *string) string {
	if p == nil {
		return ""
	}
	if *p == "" {
		return "(blank)"
	}
	return *p
}

func ptrAmount(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

func ptrYear(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
