// Package config defines the immutable run configuration shared by every
// engine. The value is passed into each engine call; nothing here is
// package-level mutable state, so engines can run in parallel and tests can
// inject alternate configurations freely.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every threshold, code set, and plan-identification rule the
// engines need. Invalid configuration is fatal at startup: the pipeline
// refuses to run rather than misclassify a tax code with a silent default.
type Config struct {
	// Engine A: matching tolerances and inherited-plan overrides.
	MaxDateLagDays   int      `yaml:"max_date_lag_days"`
	InheritedPlanIDs []string `yaml:"inherited_plan_ids"`

	// Engine B: age thresholds and exclusions.
	AgeThresholdPrimary   float64  `yaml:"age_threshold_primary"`   // 59.5
	AgeThresholdSecondary float64  `yaml:"age_threshold_secondary"` // 55
	ExcludedCodes         []string `yaml:"excluded_codes"`          // rollover-type codes, e.g. G, H

	// Engine C: Roth plan identification and taxable/basis rules.
	RothPlanPrefixes        []string `yaml:"roth_plan_prefixes"`
	RothPlanSuffixes        []string `yaml:"roth_plan_suffixes"`
	RothExcludedCodes       []string `yaml:"roth_excluded_codes"`
	QualificationAge        float64  `yaml:"qualification_age"`
	RequiredYearsSinceFirst int      `yaml:"required_years_since_first"`
	BasisCoverageYear       int      `yaml:"basis_coverage_year"`
	ProximityReviewRatio    float64  `yaml:"proximity_review_ratio"`
	ValidYearMin            int      `yaml:"valid_year_min"`
	ValidYearMax            int      `yaml:"valid_year_max"`
	TaxableTolerance        float64  `yaml:"taxable_tolerance"`

	// Engine D: IRA plan identification.
	IRAPlanPrefixes   []string `yaml:"ira_plan_prefixes"`
	IRAPlanSubstrings []string `yaml:"ira_plan_substrings"`

	// Tax code vocabulary. These are business configuration, not constants:
	// plan sponsors occasionally remap them.
	NormalDistCode   string `yaml:"normal_dist_code"`   // 7
	Age55PlusCode    string `yaml:"age_55_plus_code"`   // 2
	Under55Code      string `yaml:"under_55_code"`      // 1
	DeathCode        string `yaml:"death_code"`         // 4
	RolloverCode     string `yaml:"rollover_code"`      // G
	RothCode         string `yaml:"roth_code"`          // B
	RothRolloverCode string `yaml:"roth_rollover_code"` // H
}

// Default returns the standard production configuration.
func Default() Config {
	year := time.Now().Year()
	return Config{
		MaxDateLagDays:   10,
		InheritedPlanIDs: nil,

		AgeThresholdPrimary:   59.5,
		AgeThresholdSecondary: 55,
		ExcludedCodes:         []string{"G", "H"},

		RothPlanPrefixes:        []string{"300005"},
		RothPlanSuffixes:        []string{"R"},
		RothExcludedCodes:       nil,
		QualificationAge:        59.5,
		RequiredYearsSinceFirst: 5,
		BasisCoverageYear:       year,
		ProximityReviewRatio:    1.15,
		ValidYearMin:            1998, // first year designated Roth accounts existed
		ValidYearMax:            year + 1,
		TaxableTolerance:        0.01,

		IRAPlanPrefixes:   []string{"300001", "300005"},
		IRAPlanSubstrings: []string{"IRA"},

		NormalDistCode:   "7",
		Age55PlusCode:    "2",
		Under55Code:      "1",
		DeathCode:        "4",
		RolloverCode:     "G",
		RothCode:         "B",
		RothRolloverCode: "H",
	}
}

// Load reads a YAML file over the defaults. Missing file is an error; the
// caller decides whether a config file is required.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config.Load: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config.Load: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that could misclassify a tax code.
func (c Config) Validate() error {
	if c.MaxDateLagDays <= 0 {
		return fmt.Errorf("max_date_lag_days must be positive, got %d", c.MaxDateLagDays)
	}
	if c.AgeThresholdPrimary <= 0 || c.AgeThresholdSecondary <= 0 {
		return fmt.Errorf("age thresholds must be positive, got %.2f / %.2f",
			c.AgeThresholdPrimary, c.AgeThresholdSecondary)
	}
	if c.AgeThresholdSecondary > c.AgeThresholdPrimary {
		return fmt.Errorf("age_threshold_secondary %.2f exceeds age_threshold_primary %.2f",
			c.AgeThresholdSecondary, c.AgeThresholdPrimary)
	}
	if c.QualificationAge <= 0 {
		return fmt.Errorf("qualification_age must be positive, got %.2f", c.QualificationAge)
	}
	if c.RequiredYearsSinceFirst <= 0 {
		return fmt.Errorf("required_years_since_first must be positive, got %d", c.RequiredYearsSinceFirst)
	}
	if c.BasisCoverageYear < 1900 {
		return fmt.Errorf("basis_coverage_year %d is not a plausible year", c.BasisCoverageYear)
	}
	if c.ProximityReviewRatio < 1 {
		return fmt.Errorf("proximity_review_ratio must be >= 1, got %.3f", c.ProximityReviewRatio)
	}
	if c.ValidYearMin <= 0 || c.ValidYearMax <= 0 || c.ValidYearMin >= c.ValidYearMax {
		return fmt.Errorf("invalid start-year window [%d, %d]", c.ValidYearMin, c.ValidYearMax)
	}
	if c.TaxableTolerance < 0 {
		return fmt.Errorf("taxable_tolerance must be non-negative, got %.4f", c.TaxableTolerance)
	}
	for name, code := range map[string]string{
		"normal_dist_code":   c.NormalDistCode,
		"age_55_plus_code":   c.Age55PlusCode,
		"under_55_code":      c.Under55Code,
		"death_code":         c.DeathCode,
		"rollover_code":      c.RolloverCode,
		"roth_code":          c.RothCode,
		"roth_rollover_code": c.RothRolloverCode,
	} {
		if code == "" || len(code) > 2 {
			return fmt.Errorf("%s must be a 1-2 character tax code, got %q", name, code)
		}
	}
	if len(c.RothPlanPrefixes) == 0 && len(c.RothPlanSuffixes) == 0 {
		return fmt.Errorf("at least one roth_plan_prefix or roth_plan_suffix is required")
	}
	return nil
}

// IsInherited reports whether a plan's distributions follow death-benefit
// coding rules regardless of age.
func (c Config) IsInherited(planID string) bool {
	for _, id := range c.InheritedPlanIDs {
		if strings.EqualFold(planID, id) {
			return true
		}
	}
	return false
}

// IsRothPlan reports whether a plan identifier matches the configured Roth
// prefix/suffix patterns (case-insensitive).
func (c Config) IsRothPlan(planID string) bool {
	id := strings.ToUpper(strings.TrimSpace(planID))
	if id == "" {
		return false
	}
	for _, p := range c.RothPlanPrefixes {
		if strings.HasPrefix(id, strings.ToUpper(p)) {
			return true
		}
	}
	for _, s := range c.RothPlanSuffixes {
		if strings.HasSuffix(id, strings.ToUpper(s)) {
			return true
		}
	}
	return false
}

// IsIRAPlan reports whether a plan identifier belongs to the IRA account set
// audited by the rollover engine.
func (c Config) IsIRAPlan(planID string) bool {
	id := strings.ToUpper(strings.TrimSpace(planID))
	if id == "" {
		return false
	}
	for _, p := range c.IRAPlanPrefixes {
		if strings.HasPrefix(id, strings.ToUpper(p)) {
			return true
		}
	}
	for _, s := range c.IRAPlanSubstrings {
		if strings.Contains(id, strings.ToUpper(s)) {
			return true
		}
	}
	return false
}

// IsExcludedCode reports whether a primary tax code is in the rollover-type
// set excluded from the age engine.
func (c Config) IsExcludedCode(code string) bool {
	for _, e := range c.ExcludedCodes {
		if strings.EqualFold(code, e) {
			return true
		}
	}
	return false
}

// IsRothExcludedCode reports whether a code keeps a row out of the Roth
// engine entirely.
func (c Config) IsRothExcludedCode(code string) bool {
	for _, e := range c.RothExcludedCodes {
		if strings.EqualFold(code, e) {
			return true
		}
	}
	return false
}

// ValidStartYear reports whether a Roth start year falls in the configured
// sanity window.
func (c Config) ValidStartYear(year int) bool {
	return year >= c.ValidYearMin && year <= c.ValidYearMax
}
