// Package normalize produces validated, typed canonical fields from the raw
// heterogeneous export rows. Field-level problems never fail a record; each
// helper reports ok=false and callers attach a validation-issue token instead.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/tax-recon/internal/domain"
)

// Validation-issue tokens attached to canonical records. Downstream logic
// branches on these rather than on errors.
const (
	IssueInvalidSSN     = "invalid_ssn"
	IssueMissingSSN     = "missing_ssn"
	IssueInvalidDate    = "invalid_date"
	IssueInvalidAmount  = "invalid_amount"
	IssueNegativeAmount = "negative_amount"
	IssueInvalidYear    = "invalid_year"
	IssueInvalidTaxCode = "invalid_tax_code"
)

var (
	nonDigits     = regexp.MustCompile(`\D`)
	floatArtifact = regexp.MustCompile(`^\d+\.0+$`)
	leadingCode   = regexp.MustCompile(`^\s*([A-Za-z0-9]{1,2})`)
)

// SSN normalizes a raw SSN to a 9-digit string. Handles spreadsheet float
// artifacts ("123456789.0"), separators ("123-45-6789"), and short values
// that lost leading zeros. Returns ok=false for anything that cannot be a
// 9-digit SSN; the value is never silently coerced.
func SSN(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if floatArtifact.MatchString(s) {
		s = s[:strings.Index(s, ".")]
	}
	digits := nonDigits.ReplaceAllString(s, "")
	if digits == "" {
		return "", false
	}
	if len(digits) < 9 {
		digits = strings.Repeat("0", 9-len(digits)) + digits
	}
	if len(digits) != 9 {
		return "", false
	}
	return digits, true
}

// TaxCode extracts the leading 1-2 alphanumeric characters of a tax code
// label and uppercases them: "7 - Normal Distributions" -> "7",
// "G - Rollover" -> "G". Blank input yields blank with ok=true (a missing
// secondary code is a legitimate value).
func TaxCode(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", true
	}
	m := leadingCode.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

// PlanID trims and uppercases a plan identifier.
func PlanID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// dateLayouts covers the formats seen in real exports: ISO dates, US slash
// dates, and timestamps that sneak in when a date column was typed as
// datetime.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
}

// Date parses a raw date string into a date-only time.Time (UTC midnight).
func Date(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// Amount parses a money amount, tolerating thousands separators, currency
// symbols, and accounting-style parentheses for negatives.
func Amount(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

// Year parses a 4-digit year, tolerating float artifacts ("2019.0").
func Year(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if floatArtifact.MatchString(s) {
		s = s[:strings.Index(s, ".")]
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1000 || v > 9999 {
		return 0, false
	}
	return v, true
}

// ClassifyDistribution maps the free-text distribution name from the plan
// system to a normalized category. Anything unrecognized is "other".
func ClassifyDistribution(name string) domain.DistCategory {
	text := strings.ToLower(strings.TrimSpace(name))
	if text == "" {
		return domain.DistOther
	}
	switch {
	case strings.Contains(text, "rollover"):
		if strings.Contains(text, "partial") {
			return domain.DistPartialRollover
		}
		return domain.DistRollover
	case strings.Contains(text, "rmd"):
		return domain.DistRMD
	case strings.Contains(text, "liquidation"), strings.Contains(text, "recurring"),
		strings.Contains(text, "cash"):
		return domain.DistCash
	default:
		return domain.DistOther
	}
}

// CompactUpper strips all whitespace and punctuation-dashes and uppercases,
// so "No Tax", "NO-TAX" and "NoTax" compare equal. Used for the free-text
// method/form fields on disbursement rows.
func CompactUpper(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

// SpaceLower collapses runs of whitespace to single spaces and lowercases.
func SpaceLower(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}
