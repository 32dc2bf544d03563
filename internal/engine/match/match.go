// Package match implements the candidate matcher: it pairs plan-system
// transactions with disbursement-system payments on exact keys plus a date
// tolerance window, and applies the inherited-plan tax-code overrides.
package match

import (
	"fmt"
	"math"
	"sort"

	"github.com/dvloznov/tax-recon/internal/config"
	"github.com/dvloznov/tax-recon/internal/domain"
)

// Reason tokens emitted by this engine.
const (
	ReasonInheritedRollover = "inherited_rollover_expected_4G"
	ReasonInheritedCash     = "inherited_cash_expected_4"
	ReasonTieBreakByID      = "duplicate_candidates_tie_break_by_transaction_id"
	ReasonDuplicateReview   = "duplicate_candidates_manual_review"
	ReasonDateOutOfRange    = "disbursement_date_outside_tolerance_window"
	ReasonNoDisbursement    = "no_disbursement_candidate"
	ReasonNoTransaction     = "no_transaction_candidate"
)

// Pair is the matcher's verdict for one transaction: the selected
// disbursement (if any), the classification status, and any suggested codes
// from the inherited-plan rules.
type Pair struct {
	Transaction  domain.TransactionRecord
	Disbursement *domain.DisbursementRecord

	Status  domain.MatchStatus
	LagDays int // valid only when Disbursement is set

	SuggestedTaxCode1 *string
	SuggestedTaxCode2 *string
	Reasons           []string
}

// Result holds one pair per transaction plus the disbursements no
// transaction claimed.
type Result struct {
	Pairs                  []Pair
	UnmatchedDisbursements []domain.DisbursementRecord
}

// key is the exact-match composite key. Gross amount participates at cent
// precision; it is a key, not a tolerance field.
type key struct {
	planID string
	ssn    string
	cents  int64
}

func keyOf(planID, ssn string, amount float64) key {
	return key{planID: planID, ssn: ssn, cents: int64(math.Round(amount * 100))}
}

// Run matches every transaction against the disbursement set and classifies
// the outcome. In-window pairings resolve for every transaction before any
// out-of-window candidate is claimed, so an early transaction whose
// candidates all miss the window cannot starve a later transaction of an
// in-window match. Selection among duplicate in-window candidates is
// deterministic: smallest absolute date lag first, then ascending
// disbursement transaction id, with the tie-break recorded as a reason.
func Run(cfg config.Config, txns []domain.TransactionRecord, disbs []domain.DisbursementRecord) Result {
	groups := make(map[key][]*domain.DisbursementRecord)
	for i := range disbs {
		d := &disbs[i]
		k := keyOf(d.PlanID, d.SSN, d.GrossAmt)
		groups[k] = append(groups[k], d)
	}

	// Process transactions in id order so candidate consumption inside a
	// duplicate-key group does not depend on input ordering.
	ordered := make([]*domain.TransactionRecord, len(txns))
	for i := range txns {
		ordered[i] = &txns[i]
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TransID < ordered[j].TransID
	})

	claimed := make(map[*domain.DisbursementRecord]bool)
	pairsByTxn := make(map[*domain.TransactionRecord]Pair, len(txns))

	var unpaired []*domain.TransactionRecord
	for _, t := range ordered {
		p, ok := matchInWindow(cfg, t, groups[keyOf(t.PlanID, t.SSN, t.GrossAmt)], claimed)
		if !ok {
			unpaired = append(unpaired, t)
			continue
		}
		pairsByTxn[t] = p
	}
	for _, t := range unpaired {
		pairsByTxn[t] = classifyUnpaired(t, groups[keyOf(t.PlanID, t.SSN, t.GrossAmt)], claimed)
	}

	res := Result{Pairs: make([]Pair, 0, len(txns))}
	for i := range txns {
		res.Pairs = append(res.Pairs, pairsByTxn[&txns[i]])
	}
	for i := range disbs {
		if !claimed[&disbs[i]] {
			res.UnmatchedDisbursements = append(res.UnmatchedDisbursements, disbs[i])
		}
	}
	return res
}

type scored struct {
	d   *domain.DisbursementRecord
	lag int
}

func lagDays(t *domain.TransactionRecord, d *domain.DisbursementRecord) int {
	return int(d.TxnDate.Sub(t.ExportedDate).Hours() / 24)
}

func sortByLagThenID(cands []scored) {
	sort.Slice(cands, func(i, j int) bool {
		ai, aj := abs(cands[i].lag), abs(cands[j].lag)
		if ai != aj {
			return ai < aj
		}
		return cands[i].d.TransactionID < cands[j].d.TransactionID
	})
}

// matchInWindow pairs the transaction with its best unclaimed in-window
// candidate. Reports false when no unclaimed candidate falls inside the
// window; nothing is claimed in that case.
func matchInWindow(cfg config.Config, t *domain.TransactionRecord, candidates []*domain.DisbursementRecord, claimed map[*domain.DisbursementRecord]bool) (Pair, bool) {
	var inWindow []scored
	for _, c := range candidates {
		if claimed[c] {
			continue
		}
		lag := lagDays(t, c)
		// Closed asymmetric window: the disbursement never precedes the export.
		if lag >= 0 && lag <= cfg.MaxDateLagDays {
			inWindow = append(inWindow, scored{d: c, lag: lag})
		}
	}
	if len(inWindow) == 0 {
		return Pair{}, false
	}

	p := Pair{Transaction: *t}
	sortByLagThenID(inWindow)
	best := inWindow[0]
	unresolvedTie := false
	if len(inWindow) > 1 && abs(inWindow[1].lag) == abs(best.lag) {
		if inWindow[1].d.TransactionID == best.d.TransactionID {
			// Identical lag and identical id: nothing left to break the tie
			// deterministically, so the pick goes to manual review.
			unresolvedTie = true
			p.Reasons = append(p.Reasons, ReasonDuplicateReview)
		} else {
			p.Reasons = append(p.Reasons, ReasonTieBreakByID)
		}
	}
	claimed[best.d] = true
	p.Disbursement = best.d
	p.LagDays = best.lag

	applyInheritedRules(cfg, &p)
	if unresolvedTie && p.Status == domain.StatusNoAction {
		p.Status = domain.StatusNeedsReview
	}
	return p, true
}

// classifyUnpaired handles a transaction left without an in-window match:
// either nothing is left for its key, or only out-of-window candidates are.
// The nearest rejected candidate stays attached for audit; it is recorded,
// not dropped.
func classifyUnpaired(t *domain.TransactionRecord, candidates []*domain.DisbursementRecord, claimed map[*domain.DisbursementRecord]bool) Pair {
	p := Pair{Transaction: *t}

	var outside []scored
	for _, c := range candidates {
		if claimed[c] {
			continue
		}
		outside = append(outside, scored{d: c, lag: lagDays(t, c)})
	}
	if len(outside) == 0 {
		p.Status = domain.StatusUnmatchedSource1
		p.Reasons = append(p.Reasons, ReasonNoDisbursement)
		return p
	}

	sortByLagThenID(outside)
	best := outside[0]
	claimed[best.d] = true
	p.Disbursement = best.d
	p.LagDays = best.lag
	p.Status = domain.StatusDateOutOfRange
	p.Reasons = append(p.Reasons, ReasonDateOutOfRange,
		fmt.Sprintf("date_lag_days=%d", best.lag))
	return p
}

// applyInheritedRules compares current codes against the inherited-plan
// expectation. Non-inherited mismatches are deliberately left alone here:
// age- and Roth-based code correctness belongs to the other engines.
func applyInheritedRules(cfg config.Config, p *Pair) {
	d := p.Disbursement
	if !cfg.IsInherited(p.Transaction.PlanID) {
		p.Status = domain.StatusNoAction
		return
	}

	expected1 := cfg.DeathCode
	expected2 := ""
	reason := ReasonInheritedCash
	switch p.Transaction.DistCategory {
	case domain.DistRollover, domain.DistPartialRollover:
		expected2 = cfg.RolloverCode
		reason = ReasonInheritedRollover
	}

	if d.TaxCode1 == expected1 && d.TaxCode2 == expected2 {
		p.Status = domain.StatusNoAction
		return
	}
	p.Status = domain.StatusNeedsCorrection
	p.SuggestedTaxCode1 = &expected1
	p.SuggestedTaxCode2 = &expected2
	p.Reasons = append(p.Reasons, reason)
}

// Corrections converts the match result into the shared correction-record
// shape consumed by the consolidator.
func (r Result) Corrections() []domain.CorrectionRecord {
	out := make([]domain.CorrectionRecord, 0, len(r.Pairs)+len(r.UnmatchedDisbursements))
	for _, p := range r.Pairs {
		rec := domain.CorrectionRecord{
			Engine:  domain.EngineMatch,
			SSN:     p.Transaction.SSN,
			PlanID:  p.Transaction.PlanID,
			Status:  p.Status,
			Reasons: append([]string(nil), p.Reasons...),

			ParticipantName: p.Transaction.FullName,
		}
		if p.Disbursement != nil {
			d := p.Disbursement
			txnDate := d.TxnDate
			rec.TransactionID = d.TransactionID
			rec.TxnDate = &txnDate
			rec.Account = d.Account
			rec.CurrentTaxCode1 = d.TaxCode1
			rec.CurrentTaxCode2 = d.TaxCode2
			if d.ParticipantName != "" {
				rec.ParticipantName = d.ParticipantName
			}
		}
		rec.SuggestedTaxCode1 = p.SuggestedTaxCode1
		rec.SuggestedTaxCode2 = p.SuggestedTaxCode2
		rec.ComposeNewTaxCode()
		switch p.Status {
		case domain.StatusNeedsCorrection:
			rec.AddAction(domain.ActionUpdate)
		case domain.StatusNeedsReview:
			rec.AddAction(domain.ActionInvestigate)
		}
		out = append(out, rec)
	}
	for _, d := range r.UnmatchedDisbursements {
		txnDate := d.TxnDate
		rec := domain.CorrectionRecord{
			Engine:          domain.EngineMatch,
			TransactionID:   d.TransactionID,
			TxnDate:         &txnDate,
			SSN:             d.SSN,
			ParticipantName: d.ParticipantName,
			Account:         d.Account,
			PlanID:          d.PlanID,
			CurrentTaxCode1: d.TaxCode1,
			CurrentTaxCode2: d.TaxCode2,
			Status:          domain.StatusUnmatchedSource2,
			Reasons:         []string{ReasonNoTransaction},
		}
		out = append(out, rec)
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
