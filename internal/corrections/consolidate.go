// Package corrections merges per-engine correction records into one
// exportable row per disbursement and writes the export artifacts.
package corrections

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/tax-recon/internal/domain"
)

// Reason tokens added during consolidation.
const (
	ReasonMultipleEngines    = "multiple_engines_flagged"
	ReasonSuggestionConflict = "conflicting_suggestions"
)

// Consolidated splits the merged output into the exportable set (flagged
// records with a disbursement identity) and the audit set (everything else:
// clean rows, exclusions, unmatched transactions with no disbursement id).
type Consolidated struct {
	Exportable []domain.CorrectionRecord
	Audit      []domain.CorrectionRecord
}

// Consolidate merges the engine outputs. Pass outputs in engine order; when
// several engines flag the same disbursement the earlier engine's suggestion
// wins and a conflict is surfaced for review rather than silently resolved.
// Reasons and actions are concatenated, never overwritten.
func Consolidate(engineOutputs ...[]domain.CorrectionRecord) Consolidated {
	var res Consolidated

	merged := make(map[string]*domain.CorrectionRecord)
	var order []string

	for _, recs := range engineOutputs {
		for i := range recs {
			rec := recs[i]
			if !rec.Flagged() {
				res.Audit = append(res.Audit, rec)
				continue
			}
			if rec.TransactionID == "" {
				// Flagged but with nothing to key an export row on
				// (e.g. a transaction that matched no disbursement).
				res.Audit = append(res.Audit, rec)
				continue
			}
			prev, ok := merged[rec.TransactionID]
			if !ok {
				r := rec
				merged[rec.TransactionID] = &r
				order = append(order, rec.TransactionID)
				continue
			}
			mergeInto(prev, &rec)
		}
	}

	res.Exportable = make([]domain.CorrectionRecord, 0, len(merged))
	for _, id := range order {
		rec := merged[id]
		rec.ComposeNewTaxCode()
		res.Exportable = append(res.Exportable, *rec)
	}
	sortRecords(res.Exportable)
	sortRecords(res.Audit)
	return res
}

// mergeInto folds a later engine's record into the record kept so far.
func mergeInto(dst, src *domain.CorrectionRecord) {
	if !containsEngine(dst.Engine, src.Engine) {
		dst.Engine = dst.Engine + "," + src.Engine
		dst.AddReason(ReasonMultipleEngines)
	}

	for _, r := range src.Reasons {
		dst.AddReason(r)
	}
	for _, a := range src.Actions {
		dst.AddAction(a)
	}

	// Fill identity fields the first engine may not have carried.
	if dst.ParticipantName == "" {
		dst.ParticipantName = src.ParticipantName
	}
	if dst.Account == "" {
		dst.Account = src.Account
	}
	if dst.TxnDate == nil {
		dst.TxnDate = src.TxnDate
	}

	mergeCodePtr(dst, &dst.SuggestedTaxCode1, src.SuggestedTaxCode1, "tax_code_1")
	mergeCodePtr(dst, &dst.SuggestedTaxCode2, src.SuggestedTaxCode2, "tax_code_2")

	if src.SuggestedTaxableAmt != nil {
		if dst.SuggestedTaxableAmt == nil {
			dst.SuggestedTaxableAmt = src.SuggestedTaxableAmt
		} else if *dst.SuggestedTaxableAmt != *src.SuggestedTaxableAmt {
			dst.AddReason(fmt.Sprintf("%s_taxable_amt_%.2f_vs_%.2f",
				ReasonSuggestionConflict, *dst.SuggestedTaxableAmt, *src.SuggestedTaxableAmt))
			dst.AddAction(domain.ActionInvestigate)
		}
	}
	if src.SuggestedStartYear != nil {
		if dst.SuggestedStartYear == nil {
			dst.SuggestedStartYear = src.SuggestedStartYear
		} else if *dst.SuggestedStartYear != *src.SuggestedStartYear {
			dst.AddReason(fmt.Sprintf("%s_start_year_%d_vs_%d",
				ReasonSuggestionConflict, *dst.SuggestedStartYear, *src.SuggestedStartYear))
			dst.AddAction(domain.ActionInvestigate)
		}
	}

	if src.Status == domain.StatusNeedsCorrection {
		dst.Status = domain.StatusNeedsCorrection
	}
}

func mergeCodePtr(dst *domain.CorrectionRecord, kept **string, incoming *string, field string) {
	if incoming == nil {
		return
	}
	if *kept == nil {
		*kept = incoming
		return
	}
	if **kept != *incoming {
		dst.AddReason(fmt.Sprintf("%s_%s_%s_vs_%s",
			ReasonSuggestionConflict, field, displayCode(**kept), displayCode(*incoming)))
		dst.AddAction(domain.ActionInvestigate)
	}
}

func containsEngine(list, engine string) bool {
	for _, e := range strings.Split(list, ",") {
		if e == engine {
			return true
		}
	}
	return false
}

func displayCode(c string) string {
	if c == "" {
		return "blank"
	}
	return c
}

// sortRecords orders records for byte-identical output across runs.
func sortRecords(recs []domain.CorrectionRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Account != b.Account {
			return a.Account < b.Account
		}
		if a.SSN != b.SSN {
			return a.SSN < b.SSN
		}
		at, bt := timeKey(a), timeKey(b)
		if at != bt {
			return at < bt
		}
		return a.TransactionID < b.TransactionID
	})
}

func timeKey(r domain.CorrectionRecord) string {
	if r.TxnDate == nil {
		return ""
	}
	return r.TxnDate.Format("2006-01-02")
}
