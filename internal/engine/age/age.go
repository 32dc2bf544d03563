// Package age implements the age-based tax-code classifier for non-Roth
// plans. It joins disbursements to participant demographics and derives the
// expected primary 1099-R code from year-end age attainment.
package age

import (
	"time"

	"github.com/dvloznov/tax-recon/internal/agecalc"
	"github.com/dvloznov/tax-recon/internal/config"
	"github.com/dvloznov/tax-recon/internal/domain"
)

// Reason tokens identify the exact rule branch that produced an expectation,
// so audits can distinguish "rule fired" from "rule could not fire cleanly".
const (
	ReasonNormalDistribution = "age_59_5_or_over_normal_distribution"
	ReasonTermAtOrAfter55    = "terminated_at_or_after_55"
	ReasonTermBefore55       = "terminated_before_55"
	ReasonNoTermUnder55      = "no_term_date_under_55_in_txn_year"
	ReasonNoTerm55Plus       = "no_term_date_55_plus_in_txn_year"
	ReasonRolloverExcluded   = "rollover_code_excluded"
	ReasonInheritedExcluded  = "inherited_plan_excluded"
	ReasonMissingDOB         = "missing_date_of_birth"
	ReasonNoDemographics     = "no_demographic_record"
)

// demoKey joins disbursements to demographics.
type demoKey struct{ planID, ssn string }

// Run produces one correction record per non-Roth disbursement. Roth-plan
// rows are out of scope entirely (the Roth engine owns them); rollover-coded
// and inherited-plan rows are excluded with a dedicated status and never
// carry a suggestion.
func Run(cfg config.Config, disbs []domain.DisbursementRecord, demos []domain.DemographicRecord) []domain.CorrectionRecord {
	demoIdx := make(map[demoKey]*domain.DemographicRecord, len(demos))
	for i := range demos {
		d := &demos[i]
		demoIdx[demoKey{d.PlanID, d.SSN}] = d
	}

	out := make([]domain.CorrectionRecord, 0, len(disbs))
	for i := range disbs {
		d := &disbs[i]
		if cfg.IsRothPlan(d.PlanID) {
			continue
		}
		out = append(out, classify(cfg, d, demoIdx[demoKey{d.PlanID, d.SSN}]))
	}
	return out
}

func classify(cfg config.Config, d *domain.DisbursementRecord, demo *domain.DemographicRecord) domain.CorrectionRecord {
	txnDate := d.TxnDate
	rec := domain.CorrectionRecord{
		Engine:          domain.EngineAge,
		TransactionID:   d.TransactionID,
		TxnDate:         &txnDate,
		SSN:             d.SSN,
		ParticipantName: d.ParticipantName,
		Account:         d.Account,
		PlanID:          d.PlanID,
		CurrentTaxCode1: d.TaxCode1,
		CurrentTaxCode2: d.TaxCode2,
	}
	if demo != nil && rec.ParticipantName == "" {
		rec.ParticipantName = demo.FullName()
	}

	// Exclusions come before any age logic.
	switch {
	case cfg.IsExcludedCode(d.TaxCode1):
		rec.Status = domain.StatusExcludedAge
		rec.AddReason(ReasonRolloverExcluded)
		return rec
	case cfg.IsInherited(d.PlanID):
		rec.Status = domain.StatusExcludedAge
		rec.AddReason(ReasonInheritedExcluded)
		return rec
	}

	if demo == nil {
		rec.Status = domain.StatusInsufficientData
		rec.AddReason(ReasonNoDemographics)
		return rec
	}
	if demo.DOB == nil {
		rec.Status = domain.StatusInsufficientData
		rec.AddReason(ReasonMissingDOB)
		return rec
	}

	expected, reason := ExpectedPrimaryCode(cfg, *demo.DOB, d.TxnDate, demo.TermDate)

	if d.TaxCode1 == expected {
		rec.Status = domain.StatusNoAction
		return rec
	}
	rec.Status = domain.StatusNeedsCorrection
	rec.SuggestedTaxCode1 = &expected
	rec.ComposeNewTaxCode()
	rec.AddReason(reason)
	rec.AddAction(domain.ActionUpdate)
	return rec
}

// ExpectedPrimaryCode derives the expected code from age facts using
// year-end attainment. The Roth engine reuses this tree for its secondary
// code, which is why it is exported.
//
// Decision order:
//   - primary threshold (59.5) attained by txn-year end -> normal code
//   - else, termination date present: secondary threshold (55) attained by
//     term-year end -> separation code, otherwise early code
//   - else, fallback on txn year: 55 attained by txn-year end -> separation
//     code, otherwise early code (dedicated reason tokens so the fallback is
//     auditable as a distinct branch)
func ExpectedPrimaryCode(cfg config.Config, dob, txnDate time.Time, termDate *time.Time) (string, string) {
	txnYear := txnDate.Year()
	if agecalc.AttainedByYearEnd(dob, txnYear, cfg.AgeThresholdPrimary) {
		return cfg.NormalDistCode, ReasonNormalDistribution
	}
	if termDate != nil {
		if agecalc.AttainedByYearEnd(dob, termDate.Year(), cfg.AgeThresholdSecondary) {
			return cfg.Age55PlusCode, ReasonTermAtOrAfter55
		}
		return cfg.Under55Code, ReasonTermBefore55
	}
	if agecalc.AttainedByYearEnd(dob, txnYear, cfg.AgeThresholdSecondary) {
		return cfg.Age55PlusCode, ReasonNoTerm55Plus
	}
	return cfg.Under55Code, ReasonNoTermUnder55
}
