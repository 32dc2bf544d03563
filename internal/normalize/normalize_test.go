package normalize

import (
	"testing"
	"time"

	"github.com/dvloznov/tax-recon/internal/domain"
)

func TestSSN(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"plain nine digits", "123456789", "123456789", true},
		{"dashed", "123-45-6789", "123456789", true},
		{"float artifact", "123456789.0", "123456789", true},
		{"lost leading zeros", "1234567", "001234567", true},
		{"spaces", " 123456789 ", "123456789", true},
		{"too many digits", "1234567890", "", false},
		{"empty", "", "", false},
		{"letters only", "abc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SSN(tt.raw)
			if got != tt.want || ok != tt.ok {
				t.Errorf("SSN(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTaxCode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"labelled code", "7 - Normal Distributions", "7", true},
		{"labelled letter", "G - Direct Rollover", "G", true},
		{"lowercase", "g", "G", true},
		{"two characters", "4G", "4G", true},
		{"blank is legitimate", "", "", true},
		{"whitespace only", "   ", "", true},
		{"punctuation first", "- 7", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TaxCode(tt.raw)
			if got != tt.want || ok != tt.ok {
				t.Errorf("TaxCode(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDate(t *testing.T) {
	want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2024-01-05", "01/05/2024", "1/5/2024", "2024-01-05 13:22:01"} {
		got, ok := Date(raw)
		if !ok || !got.Equal(want) {
			t.Errorf("Date(%q) = (%v, %v), want (%v, true)", raw, got, ok, want)
		}
	}
	if _, ok := Date("05-01-2024"); ok {
		t.Errorf("Date accepted ambiguous dashed layout")
	}
	if _, ok := Date(""); ok {
		t.Errorf("Date accepted empty input")
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"1000.00", 1000, true},
		{"$1,234.56", 1234.56, true},
		{"(250.00)", -250, true},
		{"-75", -75, true},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, tt := range tests {
		got, ok := Amount(tt.raw)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Amount(%q) = (%v, %v), want (%v, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestYear(t *testing.T) {
	if y, ok := Year("2019.0"); !ok || y != 2019 {
		t.Errorf("Year(2019.0) = (%d, %v), want (2019, true)", y, ok)
	}
	if _, ok := Year("19"); ok {
		t.Errorf("Year accepted two-digit year")
	}
}

func TestClassifyDistribution(t *testing.T) {
	tests := []struct {
		name string
		want domain.DistCategory
	}{
		{"Direct Rollover", domain.DistRollover},
		{"Partial Rollover", domain.DistPartialRollover},
		{"RMD Payment", domain.DistRMD},
		{"Full Liquidation", domain.DistCash},
		{"Recurring Payment", domain.DistCash},
		{"Cash Distribution", domain.DistCash},
		{"Hardship Withdrawal", domain.DistOther},
		{"", domain.DistOther},
	}
	for _, tt := range tests {
		if got := ClassifyDistribution(tt.name); got != tt.want {
			t.Errorf("ClassifyDistribution(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCompactUpper(t *testing.T) {
	for _, raw := range []string{"No Tax", "NO-TAX", "NoTax", " no tax "} {
		if got := CompactUpper(raw); got != "NOTAX" {
			t.Errorf("CompactUpper(%q) = %q, want NOTAX", raw, got)
		}
	}
}

func TestSpaceLower(t *testing.T) {
	if got := SpaceLower("  Check   Distribution "); got != "check distribution" {
		t.Errorf("SpaceLower = %q", got)
	}
}

func TestTransactionBuilderCollectsIssues(t *testing.T) {
	rec := Transaction(Row{
		"plan_id":       "p1",
		"ssn":           "12",
		"gross_amt":     "oops",
		"exported_date": "not-a-date",
		"trans_id":      "T1",
		"dist_name":     "Direct Rollover",
	})
	if rec.PlanID != "P1" {
		t.Errorf("PlanID = %q, want P1", rec.PlanID)
	}
	if rec.DistCategory != domain.DistRollover {
		t.Errorf("DistCategory = %q", rec.DistCategory)
	}
	// 12 zero-fills to a 9-digit value, so only amount and date fail.
	wantIssues := map[string]bool{IssueInvalidAmount: true, IssueInvalidDate: true}
	if len(rec.ValidationIssues) != len(wantIssues) {
		t.Fatalf("ValidationIssues = %v", rec.ValidationIssues)
	}
	for _, iss := range rec.ValidationIssues {
		if !wantIssues[iss] {
			t.Errorf("unexpected issue %q", iss)
		}
	}
}

func TestDisbursementBuilderNeverFails(t *testing.T) {
	rec := Disbursement(Row{
		"plan_id":         "300005R",
		"ssn":             "",
		"gross_amt":       "(100.00)",
		"txn_date":        "2024-02-01",
		"tax_code_1":      "b - Roth",
		"roth_start_year": "2018.0",
	})
	if rec.TaxCode1 != "B" {
		t.Errorf("TaxCode1 = %q, want B", rec.TaxCode1)
	}
	if rec.RothStartYear == nil || *rec.RothStartYear != 2018 {
		t.Errorf("RothStartYear = %v", rec.RothStartYear)
	}
	has := func(token string) bool {
		for _, iss := range rec.ValidationIssues {
			if iss == token {
				return true
			}
		}
		return false
	}
	if !has(IssueMissingSSN) || !has(IssueNegativeAmount) {
		t.Errorf("ValidationIssues = %v", rec.ValidationIssues)
	}
}
