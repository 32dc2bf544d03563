package domain

import (
	"time"
)

// Engine names stamped on correction records so the consolidator can keep
// provenance when several engines flag the same disbursement.
const (
	EngineMatch    = "match"
	EngineAge      = "age"
	EngineRoth     = "roth"
	EngineRollover = "ira_rollover"
)

// CorrectionRecord is the unit of output: one disbursement's comparison
// between current and expected tax treatment, with suggested fields and an
// auditable reason trail. Every engine produces this shape; records from
// different engines stay independent until the consolidator merges them.
type CorrectionRecord struct {
	Engine string

	TransactionID   string
	TxnDate         *time.Time
	SSN             string
	ParticipantName string
	Account         string
	PlanID          string

	CurrentTaxCode1 string
	CurrentTaxCode2 string

	// Suggested codes: nil means no suggestion, "" means "suggest blank".
	SuggestedTaxCode1 *string
	SuggestedTaxCode2 *string
	// NewTaxCode is the combined suggested code, e.g. "4G", "B7", "H".
	NewTaxCode string

	SuggestedTaxableAmt *float64
	SuggestedStartYear  *int

	Status  MatchStatus
	Reasons []string
	Actions []string
}

// AddReason appends a reason token, skipping duplicates so rules that fire
// through several branches do not repeat themselves.
func (c *CorrectionRecord) AddReason(token string) {
	for _, r := range c.Reasons {
		if r == token {
			return
		}
	}
	c.Reasons = append(c.Reasons, token)
}

// AddAction appends an action token, skipping duplicates.
func (c *CorrectionRecord) AddAction(token string) {
	for _, a := range c.Actions {
		if a == token {
			return
		}
	}
	c.Actions = append(c.Actions, token)
}

// HasAction reports whether the record carries the given action token.
func (c *CorrectionRecord) HasAction(token string) bool {
	for _, a := range c.Actions {
		if a == token {
			return true
		}
	}
	return false
}

// Flagged reports whether the record belongs in the exportable set.
func (c *CorrectionRecord) Flagged() bool {
	return c.Status == StatusNeedsCorrection || c.Status == StatusNeedsReview
}

// ComposeNewTaxCode fills NewTaxCode from the suggested code pair. A nil or
// blank second code yields just the first code.
func (c *CorrectionRecord) ComposeNewTaxCode() {
	if c.SuggestedTaxCode1 == nil || *c.SuggestedTaxCode1 == "" {
		c.NewTaxCode = ""
		return
	}
	code := *c.SuggestedTaxCode1
	if c.SuggestedTaxCode2 != nil && *c.SuggestedTaxCode2 != "" {
		code += *c.SuggestedTaxCode2
	}
	c.NewTaxCode = code
}

// ClearSuggestions drops all suggested fields and reasons. Used when a record
// settles on no-action so the invariant "needs_correction implies a populated
// suggestion" also holds in reverse.
func (c *CorrectionRecord) ClearSuggestions() {
	c.SuggestedTaxCode1 = nil
	c.SuggestedTaxCode2 = nil
	c.NewTaxCode = ""
	c.SuggestedTaxableAmt = nil
	c.SuggestedStartYear = nil
	c.Reasons = nil
	c.Actions = nil
}

// StringPtr is a small helper for suggested-code literals.
func StringPtr(s string) *string { return &s }

// Float64Ptr is a small helper for suggested-amount literals.
func Float64Ptr(f float64) *float64 { return &f }

// IntPtr is a small helper for suggested-year literals.
func IntPtr(i int) *int { return &i }
