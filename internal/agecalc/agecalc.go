// Package agecalc computes participant ages for tax-code rules. The rules use
// year-end attainment semantics: a threshold counts as reached if the exact
// birthday (or half-birthday) falls on or before December 31 of the relevant
// year, not only on or before the transaction date itself.
package agecalc

import (
	"math"
	"time"
)

// Age returns the exact fractional age in years between dob and at.
// Returns a negative value if at precedes dob; callers treat that as
// unusable data, not an error.
func Age(dob, at time.Time) float64 {
	return at.Sub(dob).Hours() / 24 / 365.2425
}

// yearsMonths splits a fractional-year threshold like 59.5 into whole years
// and months (59y 6m).
func yearsMonths(threshold float64) (int, int) {
	years := int(threshold)
	months := int(math.Round((threshold - float64(years)) * 12))
	return years, months
}

// AttainedByYearEnd reports whether a participant born on dob reaches the
// given age threshold by December 31 of year. Partial-year attainment counts:
// someone whose half-birthday is December 31 is attained for the whole year.
func AttainedByYearEnd(dob time.Time, year int, threshold float64) bool {
	if dob.IsZero() || year == 0 {
		return false
	}
	years, months := yearsMonths(threshold)
	attainedOn := dob.AddDate(years, months, 0)
	yearEnd := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return !attainedOn.After(yearEnd)
}
