package normalize

import (
	"time"

	"github.com/dvloznov/tax-recon/internal/domain"
)

// Row is one raw export row keyed by canonical column name. Loaders translate
// the raw spreadsheet headers to canonical names before handing rows here.
type Row map[string]string

func (r Row) get(key string) string { return r[key] }

// issues accumulates validation tokens during record assembly.
type issues struct{ tokens []string }

func (v *issues) add(token string) {
	for _, t := range v.tokens {
		if t == token {
			return
		}
	}
	v.tokens = append(v.tokens, token)
}

func (v *issues) ssn(raw string) string {
	if raw == "" {
		v.add(IssueMissingSSN)
		return ""
	}
	s, ok := SSN(raw)
	if !ok {
		v.add(IssueInvalidSSN)
		return ""
	}
	return s
}

func (v *issues) amount(raw string) float64 {
	if raw == "" {
		return 0
	}
	a, ok := Amount(raw)
	if !ok {
		v.add(IssueInvalidAmount)
		return 0
	}
	if a < 0 {
		v.add(IssueNegativeAmount)
	}
	return a
}

func (v *issues) optAmount(raw string) *float64 {
	if raw == "" {
		return nil
	}
	a, ok := Amount(raw)
	if !ok {
		v.add(IssueInvalidAmount)
		return nil
	}
	return &a
}

func (v *issues) date(raw string) time.Time {
	if raw == "" {
		v.add(IssueInvalidDate)
		return time.Time{}
	}
	d, ok := Date(raw)
	if !ok {
		v.add(IssueInvalidDate)
		return time.Time{}
	}
	return d
}

func (v *issues) optDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	d, ok := Date(raw)
	if !ok {
		v.add(IssueInvalidDate)
		return nil
	}
	return &d
}

func (v *issues) optYear(raw string) *int {
	if raw == "" {
		return nil
	}
	y, ok := Year(raw)
	if !ok {
		v.add(IssueInvalidYear)
		return nil
	}
	return &y
}

func (v *issues) taxCode(raw string) string {
	c, ok := TaxCode(raw)
	if !ok {
		v.add(IssueInvalidTaxCode)
		return ""
	}
	return c
}

// Transaction assembles a canonical TransactionRecord from a raw plan-system
// export row. It never fails: invalid fields become zero values plus a
// validation-issue token on the record.
func Transaction(row Row) domain.TransactionRecord {
	var v issues
	rec := domain.TransactionRecord{
		PlanID:       PlanID(row.get("plan_id")),
		SSN:          v.ssn(row.get("ssn")),
		GrossAmt:     v.amount(row.get("gross_amt")),
		ExportedDate: v.date(row.get("exported_date")),
		TransID:      row.get("trans_id"),
		DistName:     row.get("dist_name"),
		DistCode:     v.taxCode(row.get("dist_code")),
		FullName:     row.get("full_name"),
		TaxYear:      v.optYear(row.get("tax_year")),
	}
	rec.DistCategory = ClassifyDistribution(rec.DistName)
	rec.ValidationIssues = v.tokens
	return rec
}

// Disbursement assembles a canonical DisbursementRecord from a raw
// disbursement-system export row.
func Disbursement(row Row) domain.DisbursementRecord {
	var v issues
	rec := domain.DisbursementRecord{
		PlanID:              PlanID(row.get("plan_id")),
		SSN:                 v.ssn(row.get("ssn")),
		GrossAmt:            v.amount(row.get("gross_amt")),
		FedTaxableAmt:       v.optAmount(row.get("fed_taxable_amt")),
		TxnDate:             v.date(row.get("txn_date")),
		TaxCode1:            v.taxCode(row.get("tax_code_1")),
		TaxCode2:            v.taxCode(row.get("tax_code_2")),
		TransactionID:       row.get("transaction_id"),
		Account:             row.get("account"),
		ParticipantName:     row.get("participant_name"),
		RothStartYear:       v.optYear(row.get("roth_start_year")),
		TxnMethod:           row.get("txn_method"),
		FederalTaxingMethod: row.get("federal_taxing_method"),
		TaxForm:             row.get("tax_form"),
	}
	rec.ValidationIssues = v.tokens
	return rec
}

// Demographic assembles a canonical DemographicRecord. A missing termination
// date is a legitimate value, not an issue; a missing date of birth is left
// nil so the age engine can branch on it.
func Demographic(row Row) domain.DemographicRecord {
	var v issues
	rec := domain.DemographicRecord{
		PlanID:    PlanID(row.get("plan_id")),
		SSN:       v.ssn(row.get("ssn")),
		FirstName: row.get("first_name"),
		LastName:  row.get("last_name"),
		DOB:       v.optDate(row.get("dob")),
		TermDate:  v.optDate(row.get("term_date")),
	}
	rec.ValidationIssues = v.tokens
	return rec
}

// Basis assembles a canonical BasisRecord from a Roth basis export row.
func Basis(row Row) domain.BasisRecord {
	var v issues
	rec := domain.BasisRecord{
		PlanID:           PlanID(row.get("plan_id")),
		SSN:              v.ssn(row.get("ssn")),
		FirstRothTaxYear: v.optYear(row.get("first_roth_tax_year")),
		BasisAmt:         v.amount(row.get("basis_amt")),
	}
	rec.ValidationIssues = v.tokens
	return rec
}
