// Package pipeline orchestrates a reconciliation run: fetch the four input
// exports, normalize them, run the engines, consolidate, persist, export.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/tax-recon/internal/config"
	"github.com/dvloznov/tax-recon/internal/corrections"
	"github.com/dvloznov/tax-recon/internal/domain"
	"github.com/dvloznov/tax-recon/internal/engine/match"
	"github.com/dvloznov/tax-recon/internal/gcs"
	"github.com/dvloznov/tax-recon/internal/infra/bigquery"
	"github.com/dvloznov/tax-recon/internal/review"
)

// Step represents a single step in the reconciliation pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// Inputs names the four source exports and the destination of the
// corrections file. Paths may be local files or gs:// URIs.
type Inputs struct {
	TransactionsPath  string
	DisbursementsPath string
	DemographicsPath  string
	BasisPath         string

	OutputPath string
}

// State holds the shared state across all pipeline steps.
type State struct {
	Inputs Inputs
	RunID  string

	TransactionsRaw  []byte
	DisbursementsRaw []byte
	DemographicsRaw  []byte
	BasisRaw         []byte

	Transactions  []domain.TransactionRecord
	Disbursements []domain.DisbursementRecord
	Demographics  []domain.DemographicRecord
	Basis         []domain.BasisRecord

	MatchResult     match.Result
	MatchRecords    []domain.CorrectionRecord
	AgeRecords      []domain.CorrectionRecord
	RothRecords     []domain.CorrectionRecord
	RolloverRecords []domain.CorrectionRecord

	Consolidated corrections.Consolidated
	Notes        []review.Note
}

// Deps carries the external services the steps need. Store and Drafter are
// optional: nil skips persistence or note drafting.
type Deps struct {
	Config  config.Config
	Storage gcs.Storage
	Store   bigquery.RunStore
	Drafter review.Drafter
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially. The first failing step aborts the run
// and, when a run row exists, marks it failed.
func (p *Pipeline) Execute(ctx context.Context, deps Deps, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			if state.RunID != "" && deps.Store != nil {
				deps.Store.MarkRunFailed(ctx, state.RunID, err)
			}
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewReconciliationPipeline creates the standard pipeline.
func NewReconciliationPipeline(deps Deps) *Pipeline {
	return NewPipeline(
		&FetchInputsStep{deps: deps},
		&ParseInputsStep{},
		&StartRunStep{deps: deps},
		&RunEnginesStep{deps: deps},
		&ConsolidateStep{},
		&DraftNotesStep{deps: deps},
		&PersistStep{deps: deps},
		&ExportStep{deps: deps},
		&MarkSuccessStep{deps: deps},
	)
}
