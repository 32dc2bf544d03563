package match

import (
	"testing"
	"time"

	"github.com/dvloznov/tax-recon/internal/config"
	"github.com/dvloznov/tax-recon/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.InheritedPlanIDs = []string{"P1"}
	return cfg
}

func txn(plan, ssn string, amt float64, exported time.Time, cat domain.DistCategory, id string) domain.TransactionRecord {
	return domain.TransactionRecord{
		PlanID:       plan,
		SSN:          ssn,
		GrossAmt:     amt,
		ExportedDate: exported,
		DistCategory: cat,
		TransID:      id,
	}
}

func disb(plan, ssn string, amt float64, txnDate time.Time, c1, c2, id string) domain.DisbursementRecord {
	return domain.DisbursementRecord{
		PlanID:        plan,
		SSN:           ssn,
		GrossAmt:      amt,
		TxnDate:       txnDate,
		TaxCode1:      c1,
		TaxCode2:      c2,
		TransactionID: id,
	}
}

func TestInheritedCashExpectsDeathCode(t *testing.T) {
	cfg := testConfig()
	txns := []domain.TransactionRecord{
		txn("P1", "111223333", 1000.00, date(2024, 1, 1), domain.DistCash, "T1"),
	}
	disbs := []domain.DisbursementRecord{
		disb("P1", "111223333", 1000.00, date(2024, 1, 5), "1", "", "D1"),
	}

	res := Run(cfg, txns, disbs)
	if len(res.Pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(res.Pairs))
	}
	p := res.Pairs[0]
	if p.Status != domain.StatusNeedsCorrection {
		t.Errorf("status = %q, want %q", p.Status, domain.StatusNeedsCorrection)
	}
	if p.LagDays != 4 {
		t.Errorf("lag = %d, want 4", p.LagDays)
	}
	if p.SuggestedTaxCode1 == nil || *p.SuggestedTaxCode1 != "4" {
		t.Errorf("suggested code 1 = %v, want 4", p.SuggestedTaxCode1)
	}
	if p.SuggestedTaxCode2 == nil || *p.SuggestedTaxCode2 != "" {
		t.Errorf("suggested code 2 = %v, want blank", p.SuggestedTaxCode2)
	}
	if len(res.UnmatchedDisbursements) != 0 {
		t.Errorf("unmatched disbursements = %d", len(res.UnmatchedDisbursements))
	}
}

func TestInheritedRolloverExpectsDeathAndRollover(t *testing.T) {
	cfg := testConfig()
	txns := []domain.TransactionRecord{
		txn("P1", "111223333", 1000.00, date(2024, 1, 1), domain.DistRollover, "T1"),
	}
	disbs := []domain.DisbursementRecord{
		disb("P1", "111223333", 1000.00, date(2024, 1, 5), "1", "", "D1"),
	}

	p := Run(cfg, txns, disbs).Pairs[0]
	if p.Status != domain.StatusNeedsCorrection {
		t.Fatalf("status = %q", p.Status)
	}
	if p.SuggestedTaxCode1 == nil || *p.SuggestedTaxCode1 != "4" ||
		p.SuggestedTaxCode2 == nil || *p.SuggestedTaxCode2 != "G" {
		t.Errorf("suggested = (%v, %v), want (4, G)", p.SuggestedTaxCode1, p.SuggestedTaxCode2)
	}
	found := false
	for _, r := range p.Reasons {
		if r == ReasonInheritedRollover {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v, want %q", p.Reasons, ReasonInheritedRollover)
	}
}

func TestInheritedAlreadyCorrectIsNoAction(t *testing.T) {
	cfg := testConfig()
	txns := []domain.TransactionRecord{
		txn("P1", "111223333", 1000.00, date(2024, 1, 1), domain.DistRollover, "T1"),
	}
	disbs := []domain.DisbursementRecord{
		disb("P1", "111223333", 1000.00, date(2024, 1, 5), "4", "G", "D1"),
	}

	p := Run(cfg, txns, disbs).Pairs[0]
	if p.Status != domain.StatusNoAction {
		t.Errorf("status = %q, want %q", p.Status, domain.StatusNoAction)
	}
	if p.SuggestedTaxCode1 != nil {
		t.Errorf("no-action pair carries a suggestion: %v", *p.SuggestedTaxCode1)
	}
}

func TestNonInheritedMismatchLeftToOtherEngines(t *testing.T) {
	cfg := testConfig()
	txns := []domain.TransactionRecord{
		txn("P2", "111223333", 500.00, date(2024, 3, 1), domain.DistCash, "T1"),
	}
	disbs := []domain.DisbursementRecord{
		disb("P2", "111223333", 500.00, date(2024, 3, 4), "1", "", "D1"),
	}

	p := Run(cfg, txns, disbs).Pairs[0]
	if p.Status != domain.StatusNoAction {
		t.Errorf("status = %q, want %q", p.Status, domain.StatusNoAction)
	}
}

func TestDateOutOfRangeKeepsNearestCandidate(t *testing.T) {
	cfg := testConfig()
	txns := []domain.TransactionRecord{
		txn("P1", "111223333", 1000.00, date(2024, 1, 1), domain.DistCash, "T1"),
	}
	disbs := []domain.DisbursementRecord{
		disb("P1", "111223333", 1000.00, date(2024, 1, 20), "1", "", "D1"),
	}

	res := Run(cfg, txns, disbs)
	p := res.Pairs[0]
	if p.Status != domain.StatusDateOutOfRange {
		t.Fatalf("status = %q, want %q", p.Status, domain.StatusDateOutOfRange)
	}
	if p.Disbursement == nil || p.Disbursement.TransactionID != "D1" {
		t.Fatalf("nearest candidate not attached")
	}
	if p.LagDays != 19 {
		t.Errorf("lag = %d, want 19", p.LagDays)
	}
	wantLag := "date_lag_days=19"
	found := false
	for _, r := range p.Reasons {
		if r == wantLag {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v, want %q", p.Reasons, wantLag)
	}
	// The out-of-range candidate is recorded, not returned as unmatched.
	if len(res.UnmatchedDisbursements) != 0 {
		t.Errorf("unmatched disbursements = %d, want 0", len(res.UnmatchedDisbursements))
	}
}

func TestDisbursementBeforeExportIsOutsideWindow(t *testing.T) {
	cfg := testConfig()
	txns := []domain.TransactionRecord{
		txn("P2", "111223333", 100.00, date(2024, 1, 10), domain.DistCash, "T1"),
	}
	disbs := []domain.DisbursementRecord{
		disb("P2", "111223333", 100.00, date(2024, 1, 8), "7", "", "D1"),
	}

	p := Run(cfg, txns, disbs).Pairs[0]
	if p.Status != domain.StatusDateOutOfRange {
		t.Errorf("status = %q, want %q (window never reaches backwards)", p.Status, domain.StatusDateOutOfRange)
	}
	if p.LagDays != -2 {
		t.Errorf("lag = %d, want -2", p.LagDays)
	}
}

func TestUnmatchedBothSides(t *testing.T) {
	cfg := testConfig()
	txns := []domain.TransactionRecord{
		txn("P2", "111223333", 100.00, date(2024, 1, 10), domain.DistCash, "T1"),
	}
	disbs := []domain.DisbursementRecord{
		disb("P2", "999887777", 100.00, date(2024, 1, 11), "7", "", "D9"),
	}

	res := Run(cfg, txns, disbs)
	if res.Pairs[0].Status != domain.StatusUnmatchedSource1 {
		t.Errorf("pair status = %q, want %q", res.Pairs[0].Status, domain.StatusUnmatchedSource1)
	}
	if len(res.UnmatchedDisbursements) != 1 {
		t.Fatalf("unmatched disbursements = %d, want 1", len(res.UnmatchedDisbursements))
	}

	recs := res.Corrections()
	var unmatched *domain.CorrectionRecord
	for i := range recs {
		if recs[i].Status == domain.StatusUnmatchedSource2 {
			unmatched = &recs[i]
		}
	}
	if unmatched == nil || unmatched.TransactionID != "D9" {
		t.Fatalf("unmatched_source2 record missing or wrong: %+v", unmatched)
	}
}

func TestDuplicateCandidatesTieBreakByID(t *testing.T) {
	cfg := testConfig()
	txns := []domain.TransactionRecord{
		txn("P2", "111223333", 100.00, date(2024, 1, 1), domain.DistCash, "T1"),
	}
	disbs := []domain.DisbursementRecord{
		disb("P2", "111223333", 100.00, date(2024, 1, 3), "7", "", "D2"),
		disb("P2", "111223333", 100.00, date(2024, 1, 3), "7", "", "D1"),
	}

	p := Run(cfg, txns, disbs).Pairs[0]
	if p.Disbursement.TransactionID != "D1" {
		t.Errorf("picked %q, want D1", p.Disbursement.TransactionID)
	}
	found := false
	for _, r := range p.Reasons {
		if r == ReasonTieBreakByID {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v, want %q", p.Reasons, ReasonTieBreakByID)
	}
}

func TestClosestLagWinsOverID(t *testing.T) {
	cfg := testConfig()
	txns := []domain.TransactionRecord{
		txn("P2", "111223333", 100.00, date(2024, 1, 1), domain.DistCash, "T1"),
	}
	disbs := []domain.DisbursementRecord{
		disb("P2", "111223333", 100.00, date(2024, 1, 2), "7", "", "D9"),
		disb("P2", "111223333", 100.00, date(2024, 1, 8), "7", "", "D1"),
	}

	p := Run(cfg, txns, disbs).Pairs[0]
	if p.Disbursement.TransactionID != "D9" {
		t.Errorf("picked %q, want D9 (closest lag wins before id)", p.Disbursement.TransactionID)
	}
}

func TestInWindowMatchNotStarvedByEarlierTransaction(t *testing.T) {
	cfg := testConfig()
	// D1 is 19 days past T1's export (outside the 10-day window) but only 5
	// days past T2's. T1 must not consume D1 as an out-of-range audit
	// attachment before T2 gets its in-window match.
	txns := []domain.TransactionRecord{
		txn("P2", "111223333", 100.00, date(2024, 1, 1), domain.DistCash, "T1"),
		txn("P2", "111223333", 100.00, date(2024, 1, 15), domain.DistCash, "T2"),
	}
	disbs := []domain.DisbursementRecord{
		disb("P2", "111223333", 100.00, date(2024, 1, 20), "7", "", "D1"),
	}

	res := Run(cfg, txns, disbs)
	byTxn := map[string]Pair{}
	for _, p := range res.Pairs {
		byTxn[p.Transaction.TransID] = p
	}

	p2 := byTxn["T2"]
	if p2.Status != domain.StatusNoAction {
		t.Errorf("T2 status = %q, want %q", p2.Status, domain.StatusNoAction)
	}
	if p2.Disbursement == nil || p2.Disbursement.TransactionID != "D1" {
		t.Fatalf("T2 did not get the in-window candidate")
	}
	if p2.LagDays != 5 {
		t.Errorf("T2 lag = %d, want 5", p2.LagDays)
	}

	p1 := byTxn["T1"]
	if p1.Status != domain.StatusUnmatchedSource1 {
		t.Errorf("T1 status = %q, want %q", p1.Status, domain.StatusUnmatchedSource1)
	}
	if len(res.UnmatchedDisbursements) != 0 {
		t.Errorf("unmatched disbursements = %d, want 0", len(res.UnmatchedDisbursements))
	}
}

func TestUnresolvedDuplicateTieGoesToReview(t *testing.T) {
	cfg := testConfig()
	txns := []domain.TransactionRecord{
		txn("P2", "111223333", 100.00, date(2024, 1, 1), domain.DistCash, "T1"),
	}
	// Two literal duplicate rows: same id, same date. No tie-break is
	// possible, so the pick must surface for manual review.
	disbs := []domain.DisbursementRecord{
		disb("P2", "111223333", 100.00, date(2024, 1, 3), "7", "", "D1"),
		disb("P2", "111223333", 100.00, date(2024, 1, 3), "7", "", "D1"),
	}

	res := Run(cfg, txns, disbs)
	p := res.Pairs[0]
	if p.Status != domain.StatusNeedsReview {
		t.Fatalf("status = %q, want %q", p.Status, domain.StatusNeedsReview)
	}
	found := false
	for _, r := range p.Reasons {
		if r == ReasonDuplicateReview {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v, want %q", p.Reasons, ReasonDuplicateReview)
	}

	for _, rec := range res.Corrections() {
		if rec.Status == domain.StatusNeedsReview {
			if !rec.Flagged() {
				t.Errorf("review record not flagged for export")
			}
			if !rec.HasAction(domain.ActionInvestigate) {
				t.Errorf("actions = %v, want investigate", rec.Actions)
			}
		}
	}
}

func TestCandidateConsumptionIsDeterministic(t *testing.T) {
	cfg := testConfig()
	txns := []domain.TransactionRecord{
		txn("P2", "111223333", 100.00, date(2024, 1, 2), domain.DistCash, "T2"),
		txn("P2", "111223333", 100.00, date(2024, 1, 1), domain.DistCash, "T1"),
	}
	disbs := []domain.DisbursementRecord{
		disb("P2", "111223333", 100.00, date(2024, 1, 2), "7", "", "D1"),
		disb("P2", "111223333", 100.00, date(2024, 1, 3), "7", "", "D2"),
	}

	// T1 (processed first by id) takes the closest candidate to Jan 1 that is
	// in window; both are, D1 at lag 1 beats D2 at lag 2. T2 gets D2.
	res := Run(cfg, txns, disbs)
	byTxn := map[string]string{}
	for _, p := range res.Pairs {
		if p.Disbursement != nil {
			byTxn[p.Transaction.TransID] = p.Disbursement.TransactionID
		}
	}
	if byTxn["T1"] != "D1" || byTxn["T2"] != "D2" {
		t.Errorf("assignment = %v, want T1->D1, T2->D2", byTxn)
	}
	if len(res.UnmatchedDisbursements) != 0 {
		t.Errorf("unmatched = %d", len(res.UnmatchedDisbursements))
	}
}
