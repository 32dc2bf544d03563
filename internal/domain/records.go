package domain

import (
	"time"
)

// DistCategory is the normalized distribution category derived from the
// free-text distribution name on the plan-system export.
type DistCategory string

const (
	DistCash            DistCategory = "cash"
	DistRollover        DistCategory = "rollover"
	DistPartialRollover DistCategory = "partial_rollover"
	DistRMD             DistCategory = "rmd"
	DistOther           DistCategory = "other"
)

// MatchStatus classifies the outcome of one disbursement's evaluation. The
// values are part of the export contract and consumed verbatim downstream.
type MatchStatus string

const (
	StatusNoAction         MatchStatus = "match_no_action"
	StatusNeedsCorrection  MatchStatus = "match_needs_correction"
	StatusNeedsReview      MatchStatus = "match_needs_review"
	StatusDateOutOfRange   MatchStatus = "date_out_of_range"
	StatusUnmatchedSource1 MatchStatus = "unmatched_source1"
	StatusUnmatchedSource2 MatchStatus = "unmatched_source2"
	StatusExcludedAge      MatchStatus = "excluded_from_age_engine_rollover_or_inherited"
	StatusInsufficientData MatchStatus = "age_rule_insufficient_data"
)

// Actions attached to correction records.
const (
	ActionUpdate      = "update"
	ActionInvestigate = "investigate"
)

// TransactionRecord is one distribution transaction from the plan-system
// export (source 1). Records are immutable once produced by the normalizer;
// engines only read them.
type TransactionRecord struct {
	PlanID       string
	SSN          string // 9-digit normalized, or "" with a validation issue
	GrossAmt     float64
	ExportedDate time.Time
	DistCategory DistCategory
	TransID      string

	// Carried along for audit and correction-file output.
	DistName string
	DistCode string
	FullName string
	TaxYear  *int

	ValidationIssues []string
}

// DisbursementRecord is one payment row from the disbursement/1099 system
// export (source 2).
type DisbursementRecord struct {
	PlanID        string
	SSN           string
	GrossAmt      float64
	FedTaxableAmt *float64
	TxnDate       time.Time
	TaxCode1      string
	TaxCode2      string
	TransactionID string
	Account       string

	ParticipantName string
	RothStartYear   *int // initial Roth contribution year as reported

	// Fields consumed by the IRA rollover audit.
	TxnMethod           string
	FederalTaxingMethod string
	TaxForm             string

	ValidationIssues []string
}

// DemographicRecord holds participant master data keyed by (plan, SSN).
type DemographicRecord struct {
	PlanID    string
	SSN       string
	FirstName string
	LastName  string
	DOB       *time.Time
	TermDate  *time.Time

	ValidationIssues []string
}

// FullName joins first and last name, trimming when one side is missing.
func (d DemographicRecord) FullName() string {
	switch {
	case d.FirstName == "":
		return d.LastName
	case d.LastName == "":
		return d.FirstName
	default:
		return d.FirstName + " " + d.LastName
	}
}

// BasisRecord holds after-tax (Roth) basis data keyed by (plan, SSN).
type BasisRecord struct {
	PlanID           string
	SSN              string
	FirstRothTaxYear *int
	BasisAmt         float64

	ValidationIssues []string
}
