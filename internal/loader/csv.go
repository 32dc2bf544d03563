// Package loader reads the four raw CSV exports and hands their rows to the
// normalize package. Header names vary between export tools, so each dataset
// carries an alias table mapping observed spellings to canonical column keys.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/tax-recon/internal/domain"
	"github.com/dvloznov/tax-recon/internal/normalize"
)

var transactionAliases = map[string]string{
	"plan_id":         "plan_id",
	"plan":            "plan_id",
	"ssn":             "ssn",
	"ssn_number":      "ssn",
	"gross_amt":       "gross_amt",
	"gross_amount":    "gross_amt",
	"exported_date":   "exported_date",
	"export_date":     "exported_date",
	"trans_id":        "trans_id",
	"dist_name":       "dist_name",
	"distribution":    "dist_name",
	"dist_code":       "dist_code",
	"full_name":       "full_name",
	"participant":     "full_name",
	"tax_year":        "tax_year",
}

var disbursementAliases = map[string]string{
	"plan_id":               "plan_id",
	"plan":                  "plan_id",
	"ssn":                   "ssn",
	"gross_amt":             "gross_amt",
	"gross_amount":          "gross_amt",
	"fed_taxable_amt":       "fed_taxable_amt",
	"federal_taxable":       "fed_taxable_amt",
	"txn_date":              "txn_date",
	"transaction_date":      "txn_date",
	"tax_code_1":            "tax_code_1",
	"tax_code1":             "tax_code_1",
	"tax_code_2":            "tax_code_2",
	"tax_code2":             "tax_code_2",
	"transaction_id":        "transaction_id",
	"txn_id":                "transaction_id",
	"account":               "account",
	"account_number":        "account",
	"participant_name":      "participant_name",
	"roth_start_year":       "roth_start_year",
	"roth_init_year":        "roth_start_year",
	"txn_method":            "txn_method",
	"transaction_method":    "txn_method",
	"federal_taxing_method": "federal_taxing_method",
	"fed_taxing_method":     "federal_taxing_method",
	"tax_form":              "tax_form",
}

var demographicAliases = map[string]string{
	"plan_id":          "plan_id",
	"plan":             "plan_id",
	"ssn":              "ssn",
	"first_name":       "first_name",
	"last_name":        "last_name",
	"dob":              "dob",
	"date_of_birth":    "dob",
	"birth_date":       "dob",
	"term_date":        "term_date",
	"termination_date": "term_date",
}

var basisAliases = map[string]string{
	"plan_id":             "plan_id",
	"plan":                "plan_id",
	"ssn":                 "ssn",
	"first_roth_tax_year": "first_roth_tax_year",
	"first_tax_year":      "first_roth_tax_year",
	"basis_amt":           "basis_amt",
	"basis_amount":        "basis_amt",
	"roth_basis":          "basis_amt",
}

// Transactions reads the plan-system export. Malformed field values never
// fail the load; they surface as validation-issue tokens on the record.
func Transactions(r io.Reader) ([]domain.TransactionRecord, error) {
	rows, err := readRows(r, transactionAliases)
	if err != nil {
		return nil, fmt.Errorf("loader.Transactions: %w", err)
	}
	out := make([]domain.TransactionRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, normalize.Transaction(row))
	}
	return out, nil
}

// Disbursements reads the disbursement-system export.
func Disbursements(r io.Reader) ([]domain.DisbursementRecord, error) {
	rows, err := readRows(r, disbursementAliases)
	if err != nil {
		return nil, fmt.Errorf("loader.Disbursements: %w", err)
	}
	out := make([]domain.DisbursementRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, normalize.Disbursement(row))
	}
	return out, nil
}

// Demographics reads the participant demographics export.
func Demographics(r io.Reader) ([]domain.DemographicRecord, error) {
	rows, err := readRows(r, demographicAliases)
	if err != nil {
		return nil, fmt.Errorf("loader.Demographics: %w", err)
	}
	out := make([]domain.DemographicRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, normalize.Demographic(row))
	}
	return out, nil
}

// Basis reads the Roth basis export.
func Basis(r io.Reader) ([]domain.BasisRecord, error) {
	rows, err := readRows(r, basisAliases)
	if err != nil {
		return nil, fmt.Errorf("loader.Basis: %w", err)
	}
	out := make([]domain.BasisRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, normalize.Basis(row))
	}
	return out, nil
}

// readRows parses a CSV stream into canonical-keyed rows. The first record is
// the header; columns with no alias entry are dropped rather than rejected so
// exports can carry extra columns without breaking the load.
func readRows(r io.Reader, aliases map[string]string) ([]normalize.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // ragged trailing columns appear in real exports
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	keys := make([]string, len(header))
	known := 0
	for i, h := range header {
		if k, ok := aliases[headerKey(h)]; ok {
			keys[i] = k
			known++
		}
	}
	if known == 0 {
		return nil, fmt.Errorf("no recognized columns in header %v", header)
	}

	var rows []normalize.Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(rows)+2, err)
		}
		row := make(normalize.Row, known)
		for i, v := range rec {
			if i < len(keys) && keys[i] != "" {
				row[keys[i]] = strings.TrimSpace(v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// headerKey canonicalizes a raw header cell: lowercased, trimmed, interior
// whitespace and dashes collapsed to single underscores.
func headerKey(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "-", " ")
	return strings.Join(strings.Fields(h), "_")
}
