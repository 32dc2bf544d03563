// Package rollover implements the IRA rollover audit: check-distribution
// rollovers out of IRA accounts must not be set up to produce a taxable
// 1099-R form.
package rollover

import (
	"github.com/dvloznov/tax-recon/internal/config"
	"github.com/dvloznov/tax-recon/internal/domain"
	"github.com/dvloznov/tax-recon/internal/normalize"
)

// Canonical values of the two audited fields after normalization.
const (
	methodRollover = "ROLLOVER"
	formNoTax      = "NOTAX"
	form1099R      = "1099R"
)

// Reason tokens emitted by this engine.
const (
	ReasonFormExpectedNoTax   = "ira_rollover_tax_form_1099r_expected_no_tax"
	ReasonMissingTaxingMethod = "missing_federal_taxing_method"
	ReasonMissingTaxForm      = "missing_tax_form"
	ReasonMethodNotRollover   = "federal_taxing_method_not_rollover"
	ReasonUnrecognizedTaxForm = "unrecognized_tax_form"
)

// Run audits IRA check-distribution rollovers. Scope: IRA-pattern plan,
// check-distribution transaction method, and a rollover-type code in either
// code slot. Everything else is silently out of scope.
func Run(cfg config.Config, disbs []domain.DisbursementRecord) []domain.CorrectionRecord {
	var out []domain.CorrectionRecord
	for i := range disbs {
		d := &disbs[i]
		if !inScope(cfg, d) {
			continue
		}
		out = append(out, audit(cfg, d))
	}
	return out
}

func inScope(cfg config.Config, d *domain.DisbursementRecord) bool {
	if !cfg.IsIRAPlan(d.PlanID) {
		return false
	}
	if normalize.SpaceLower(d.TxnMethod) != "check distribution" {
		return false
	}
	for _, c := range []string{d.TaxCode1, d.TaxCode2} {
		if c == cfg.RolloverCode || c == cfg.RothRolloverCode {
			return true
		}
	}
	return false
}

func audit(cfg config.Config, d *domain.DisbursementRecord) domain.CorrectionRecord {
	txnDate := d.TxnDate
	rec := domain.CorrectionRecord{
		Engine:          domain.EngineRollover,
		TransactionID:   d.TransactionID,
		TxnDate:         &txnDate,
		SSN:             d.SSN,
		ParticipantName: d.ParticipantName,
		Account:         d.Account,
		PlanID:          d.PlanID,
		CurrentTaxCode1: d.TaxCode1,
		CurrentTaxCode2: d.TaxCode2,
	}

	method := normalize.CompactUpper(d.FederalTaxingMethod)
	form := normalize.CompactUpper(d.TaxForm)

	switch {
	case method == methodRollover && form == formNoTax:
		rec.Status = domain.StatusNoAction

	case method == methodRollover && form == form1099R:
		// Rollover handling with a taxable form queued: the form setup is
		// wrong, and the fix is mechanical.
		rec.Status = domain.StatusNeedsCorrection
		rec.SuggestedTaxCode1 = domain.StringPtr("0")
		rec.ComposeNewTaxCode()
		rec.AddReason(ReasonFormExpectedNoTax)
		rec.AddAction(domain.ActionUpdate)

	default:
		rec.Status = domain.StatusNeedsReview
		switch {
		case method == "":
			rec.AddReason(ReasonMissingTaxingMethod)
		case method != methodRollover:
			rec.AddReason(ReasonMethodNotRollover)
		}
		switch {
		case form == "":
			rec.AddReason(ReasonMissingTaxForm)
		case form != formNoTax && form != form1099R:
			rec.AddReason(ReasonUnrecognizedTaxForm)
		}
		rec.AddAction(domain.ActionInvestigate)
	}
	return rec
}
