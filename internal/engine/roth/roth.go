// Package roth implements the taxable/basis engine for designated-Roth
// plans. It derives the expected taxable amount, Roth start year, and
// two-part tax code for every in-scope disbursement, combining taxable-rule
// and code-rule outcomes into a single correction record.
package roth

import (
	"math"

	"github.com/dvloznov/tax-recon/internal/agecalc"
	"github.com/dvloznov/tax-recon/internal/config"
	"github.com/dvloznov/tax-recon/internal/domain"
	"github.com/dvloznov/tax-recon/internal/engine/age"
)

// Reason tokens emitted by this engine.
const (
	ReasonBasisCoverage      = "roth_basis_covers_coverage_year_total"
	ReasonQualified          = "qualified_roth_distribution"
	ReasonStartYearMismatch  = "roth_initial_year_mismatch"
	ReasonMissingStartYear   = "missing_first_roth_tax_year"
	ReasonMissingFedTaxable  = "missing_fed_taxable_amt"
	ReasonTaxableProximity   = "taxable_within_proximity_of_gross"
	ReasonAgeCodeMismatch    = "roth_age_tax_code_mismatch"
	ReasonRolloverNormalized = "rollover_code_pair_normalized"
	ReasonDeathNormalized    = "death_code_pair_normalized"
	ReasonExcludedCode       = "roth_engine_code_excluded"
	ReasonInheritedExcluded  = "inherited_plan_excluded"
)

type joinKey struct{ planID, ssn string }

// Run produces one correction record per Roth-plan disbursement.
// Non-Roth plans are out of scope (the age engine owns them); inherited
// plans and configured excluded codes get the shared exclusion status with
// no suggestion.
func Run(cfg config.Config, disbs []domain.DisbursementRecord, demos []domain.DemographicRecord, basis []domain.BasisRecord) []domain.CorrectionRecord {
	demoIdx := make(map[joinKey]*domain.DemographicRecord, len(demos))
	for i := range demos {
		d := &demos[i]
		demoIdx[joinKey{d.PlanID, d.SSN}] = d
	}
	basisIdx := make(map[joinKey]*domain.BasisRecord, len(basis))
	for i := range basis {
		b := &basis[i]
		basisIdx[joinKey{b.PlanID, b.SSN}] = b
	}

	// Gross totals for the basis-coverage year, per participant, across the
	// Roth rows only. The basis-coverage rule compares against the whole
	// year's distributions, not the single row.
	coverage := make(map[joinKey]float64)
	covered := make(map[joinKey]bool)
	for i := range disbs {
		d := &disbs[i]
		if !cfg.IsRothPlan(d.PlanID) || cfg.IsInherited(d.PlanID) {
			continue
		}
		if d.TxnDate.Year() == cfg.BasisCoverageYear {
			k := joinKey{d.PlanID, d.SSN}
			coverage[k] += d.GrossAmt
			covered[k] = true
		}
	}

	out := make([]domain.CorrectionRecord, 0, len(disbs))
	for i := range disbs {
		d := &disbs[i]
		if !cfg.IsRothPlan(d.PlanID) {
			continue
		}
		k := joinKey{d.PlanID, d.SSN}
		rec := analyze(cfg, d, demoIdx[k], basisIdx[k], coverage[k], covered[k])
		out = append(out, rec)
	}
	return out
}

func baseRecord(d *domain.DisbursementRecord, demo *domain.DemographicRecord) domain.CorrectionRecord {
	txnDate := d.TxnDate
	rec := domain.CorrectionRecord{
		Engine:          domain.EngineRoth,
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
	return rec
}

func analyze(cfg config.Config, d *domain.DisbursementRecord, demo *domain.DemographicRecord, bas *domain.BasisRecord, coverageTotal float64, hasCoverage bool) domain.CorrectionRecord {
	rec := baseRecord(d, demo)

	switch {
	case cfg.IsInherited(d.PlanID):
		rec.Status = domain.StatusExcludedAge
		rec.AddReason(ReasonInheritedExcluded)
		return rec
	case cfg.IsRothExcludedCode(d.TaxCode1):
		rec.Status = domain.StatusExcludedAge
		rec.AddReason(ReasonExcludedCode)
		return rec
	}

	// The code rules and the taxable rules are independent: a row in
	// rollover form still gets its taxable, basis, and start-year checks.
	applyCodeRules(cfg, d, demo, &rec)
	applyTaxableRules(cfg, d, bas, demo, coverageTotal, hasCoverage, &rec)

	switch {
	case rec.HasAction(domain.ActionUpdate):
		rec.Status = domain.StatusNeedsCorrection
	case rec.HasAction(domain.ActionInvestigate):
		rec.Status = domain.StatusNeedsReview
	default:
		rec.Status = domain.StatusNoAction
		rec.ClearSuggestions()
	}
	rec.ComposeNewTaxCode()
	return rec
}

// applyCodeRules normalizes rollover/death code pairs and applies the
// age-based Roth expectation to everything else. Rows already in canonical
// rollover or death form are locked: no age-based expectation touches them.
func applyCodeRules(cfg config.Config, d *domain.DisbursementRecord, demo *domain.DemographicRecord, rec *domain.CorrectionRecord) {
	c1, c2 := d.TaxCode1, d.TaxCode2
	roth, rollover, death, rothRollover := cfg.RothCode, cfg.RolloverCode, cfg.DeathCode, cfg.RothRolloverCode

	locked := c1 == rothRollover || (c1 == roth && c2 == death)

	normalized := true
	switch {
	case c1 == roth && c2 == rollover:
		rec.SuggestedTaxCode1 = domain.StringPtr(rothRollover)
		rec.SuggestedTaxCode2 = domain.StringPtr("")
		rec.AddReason(ReasonRolloverNormalized)
	case c1 == rollover && c2 == death:
		rec.SuggestedTaxCode1 = domain.StringPtr(rothRollover)
		rec.SuggestedTaxCode2 = domain.StringPtr(death)
		rec.AddReason(ReasonRolloverNormalized)
	case c1 == rollover && c2 == "":
		rec.SuggestedTaxCode1 = domain.StringPtr(rothRollover)
		rec.SuggestedTaxCode2 = domain.StringPtr("")
		rec.AddReason(ReasonRolloverNormalized)
	case c1 == "" && c2 == rollover:
		rec.SuggestedTaxCode1 = domain.StringPtr(rothRollover)
		rec.SuggestedTaxCode2 = domain.StringPtr("")
		rec.AddReason(ReasonRolloverNormalized)
	case c1 == death && c2 == "":
		rec.SuggestedTaxCode1 = domain.StringPtr(roth)
		rec.SuggestedTaxCode2 = domain.StringPtr(death)
		rec.AddReason(ReasonDeathNormalized)
	case c1 == "" && c2 == death:
		rec.SuggestedTaxCode1 = domain.StringPtr(roth)
		rec.SuggestedTaxCode2 = domain.StringPtr(death)
		rec.AddReason(ReasonDeathNormalized)
	default:
		normalized = false
	}
	if normalized {
		rec.AddAction(domain.ActionUpdate)
		return
	}
	if locked {
		return
	}

	// Remaining rows must carry the Roth primary code; the secondary code
	// follows the same decision tree as the age engine.
	if demo == nil || demo.DOB == nil {
		return
	}
	expected2, branch := age.ExpectedPrimaryCode(cfg, *demo.DOB, d.TxnDate, demo.TermDate)
	if c1 == roth && c2 == expected2 {
		return
	}
	rec.SuggestedTaxCode1 = domain.StringPtr(roth)
	rec.SuggestedTaxCode2 = domain.StringPtr(expected2)
	rec.AddReason(ReasonAgeCodeMismatch)
	rec.AddReason(branch)
	rec.AddAction(domain.ActionUpdate)
}

// applyTaxableRules evaluates the taxable-amount rule chain. The rules are
// mutually exclusive: the first applicable one sets the suggestion and the
// rest are skipped.
func applyTaxableRules(cfg config.Config, d *domain.DisbursementRecord, bas *domain.BasisRecord, demo *domain.DemographicRecord, coverageTotal float64, hasCoverage bool, rec *domain.CorrectionRecord) {
	startYear, startValid := resolveStartYear(cfg, d, bas)

	qualified := false
	if demo != nil && demo.DOB != nil && startValid {
		txnYear := d.TxnDate.Year()
		qualified = agecalc.AttainedByYearEnd(*demo.DOB, txnYear, cfg.QualificationAge) &&
			txnYear-startYear >= cfg.RequiredYearsSinceFirst
	}

	basisYearValid := bas != nil && bas.FirstRothTaxYear != nil && cfg.ValidStartYear(*bas.FirstRothTaxYear)

	switch {
	case bas != nil && hasCoverage && bas.BasisAmt >= coverageTotal:
		suggestTaxableZero(cfg, d, rec, ReasonBasisCoverage)

	case qualified:
		suggestTaxableZero(cfg, d, rec, ReasonQualified)

	case basisYearValid:
		if d.RothStartYear == nil || *d.RothStartYear != *bas.FirstRothTaxYear {
			rec.SuggestedStartYear = bas.FirstRothTaxYear
			rec.AddReason(ReasonStartYearMismatch)
			rec.AddAction(domain.ActionUpdate)
		}

	default:
		// No trustworthy first-tax-year anywhere; never guess a year.
		rec.AddReason(ReasonMissingStartYear)
		rec.AddAction(domain.ActionInvestigate)
	}

	// Proximity review fires only when none of the rules above did.
	if len(rec.Reasons) == 0 || onlyCodeReasons(rec.Reasons) {
		if d.FedTaxableAmt != nil && *d.FedTaxableAmt > 0 &&
			d.GrossAmt <= *d.FedTaxableAmt*cfg.ProximityReviewRatio {
			rec.AddReason(ReasonTaxableProximity)
			rec.AddAction(domain.ActionInvestigate)
		}
	}
}

func suggestTaxableZero(cfg config.Config, d *domain.DisbursementRecord, rec *domain.CorrectionRecord, reason string) {
	switch {
	case d.FedTaxableAmt == nil:
		// A zero suggestion with no recorded taxable amount is a data
		// problem upstream, not a confident correction.
		rec.SuggestedTaxableAmt = domain.Float64Ptr(0)
		rec.AddReason(reason)
		rec.AddReason(ReasonMissingFedTaxable)
		rec.AddAction(domain.ActionInvestigate)
	case math.Abs(*d.FedTaxableAmt) > cfg.TaxableTolerance:
		rec.SuggestedTaxableAmt = domain.Float64Ptr(0)
		rec.AddReason(reason)
		rec.AddAction(domain.ActionUpdate)
	default:
		// Already zero within tolerance; nothing to change.
	}
}

// onlyCodeReasons reports whether every accumulated reason came from the
// code rules, i.e. no taxable rule has fired yet.
func onlyCodeReasons(reasons []string) bool {
	for _, r := range reasons {
		switch r {
		case ReasonBasisCoverage, ReasonQualified, ReasonStartYearMismatch,
			ReasonMissingStartYear, ReasonMissingFedTaxable:
			return false
		}
	}
	return true
}

// resolveStartYear returns the first valid start year among the basis
// record's first-tax-year and the disbursement's reported start year.
func resolveStartYear(cfg config.Config, d *domain.DisbursementRecord, bas *domain.BasisRecord) (int, bool) {
	if bas != nil && bas.FirstRothTaxYear != nil && cfg.ValidStartYear(*bas.FirstRothTaxYear) {
		return *bas.FirstRothTaxYear, true
	}
	if d.RothStartYear != nil && cfg.ValidStartYear(*d.RothStartYear) {
		return *d.RothStartYear, true
	}
	return 0, false
}
