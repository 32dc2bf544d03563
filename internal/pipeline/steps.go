package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/tax-recon/internal/corrections"
	"github.com/dvloznov/tax-recon/internal/domain"
	"github.com/dvloznov/tax-recon/internal/engine/age"
	"github.com/dvloznov/tax-recon/internal/engine/match"
	"github.com/dvloznov/tax-recon/internal/engine/rollover"
	"github.com/dvloznov/tax-recon/internal/engine/roth"
	"github.com/dvloznov/tax-recon/internal/gcs"
	"github.com/dvloznov/tax-recon/internal/loader"
	"github.com/dvloznov/tax-recon/internal/logger"
)

// Step 1: FetchInputsStep reads the four input exports from GCS or local
// disk.
type FetchInputsStep struct {
	deps Deps
}

func (s *FetchInputsStep) Execute(ctx context.Context, state *State) error {
	var err error
	if state.TransactionsRaw, err = s.fetch(ctx, state.Inputs.TransactionsPath); err != nil {
		return fmt.Errorf("fetching transactions export: %w", err)
	}
	if state.DisbursementsRaw, err = s.fetch(ctx, state.Inputs.DisbursementsPath); err != nil {
		return fmt.Errorf("fetching disbursements export: %w", err)
	}
	if state.DemographicsRaw, err = s.fetch(ctx, state.Inputs.DemographicsPath); err != nil {
		return fmt.Errorf("fetching demographics export: %w", err)
	}
	// The basis export only exists for plans with designated-Roth money;
	// an empty path means no Roth basis data this run.
	if state.Inputs.BasisPath != "" {
		if state.BasisRaw, err = s.fetch(ctx, state.Inputs.BasisPath); err != nil {
			return fmt.Errorf("fetching basis export: %w", err)
		}
	}
	return nil
}

func (s *FetchInputsStep) fetch(ctx context.Context, path string) ([]byte, error) {
	if gcs.IsURI(path) {
		return s.deps.Storage.Fetch(ctx, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// Step 2: ParseInputsStep turns the raw CSV bytes into canonical records.
type ParseInputsStep struct{}

func (s *ParseInputsStep) Execute(ctx context.Context, state *State) error {
	var err error
	if state.Transactions, err = loader.Transactions(bytes.NewReader(state.TransactionsRaw)); err != nil {
		return err
	}
	if state.Disbursements, err = loader.Disbursements(bytes.NewReader(state.DisbursementsRaw)); err != nil {
		return err
	}
	if state.Demographics, err = loader.Demographics(bytes.NewReader(state.DemographicsRaw)); err != nil {
		return err
	}
	if len(state.BasisRaw) > 0 {
		if state.Basis, err = loader.Basis(bytes.NewReader(state.BasisRaw)); err != nil {
			return err
		}
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int("transactions", len(state.Transactions)).
		Int("disbursements", len(state.Disbursements)).
		Int("demographics", len(state.Demographics)).
		Int("basis", len(state.Basis)).
		Msg("parsed input exports")
	return nil
}

// Step 3: StartRunStep records the run (status=RUNNING).
type StartRunStep struct {
	deps Deps
}

func (s *StartRunStep) Execute(ctx context.Context, state *State) error {
	if s.deps.Store == nil {
		return nil
	}
	runID, err := s.deps.Store.StartRun(ctx, len(state.Transactions), len(state.Disbursements))
	if err != nil {
		return err
	}
	state.RunID = runID
	return nil
}

// Step 4: RunEnginesStep runs the four engines. They share read-only inputs
// and write disjoint state fields, so they run concurrently.
type RunEnginesStep struct {
	deps Deps
}

func (s *RunEnginesStep) Execute(ctx context.Context, state *State) error {
	cfg := s.deps.Config

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		state.MatchResult = match.Run(cfg, state.Transactions, state.Disbursements)
		state.MatchRecords = state.MatchResult.Corrections()
		return nil
	})
	g.Go(func() error {
		state.AgeRecords = age.Run(cfg, state.Disbursements, state.Demographics)
		return nil
	})
	g.Go(func() error {
		state.RothRecords = roth.Run(cfg, state.Disbursements, state.Demographics, state.Basis)
		return nil
	})
	g.Go(func() error {
		state.RolloverRecords = rollover.Run(cfg, state.Disbursements)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int("match", len(state.MatchRecords)).
		Int("age", len(state.AgeRecords)).
		Int("roth", len(state.RothRecords)).
		Int("ira_rollover", len(state.RolloverRecords)).
		Msg("engines completed")
	return nil
}

// Step 5: ConsolidateStep merges the engine outputs into one row per
// disbursement.
type ConsolidateStep struct{}

func (s *ConsolidateStep) Execute(ctx context.Context, state *State) error {
	state.Consolidated = corrections.Consolidate(
		state.MatchRecords,
		state.AgeRecords,
		state.RothRecords,
		state.RolloverRecords,
	)
	log := logger.FromContext(ctx)
	log.Info().
		Int("exportable", len(state.Consolidated.Exportable)).
		Int("audit", len(state.Consolidated.Audit)).
		Msg("consolidated engine outputs")
	return nil
}

// Step 6: DraftNotesStep drafts reviewer notes for investigate items.
// Advisory only: a drafting failure is logged and the run continues.
type DraftNotesStep struct {
	deps Deps
}

func (s *DraftNotesStep) Execute(ctx context.Context, state *State) error {
	if s.deps.Drafter == nil {
		return nil
	}
	notes, err := s.deps.Drafter.Draft(ctx, state.Consolidated.Exportable)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("reviewer note drafting failed; continuing without notes")
		return nil
	}
	state.Notes = notes
	return nil
}

// Step 7: PersistStep writes the consolidated rows to BigQuery.
type PersistStep struct {
	deps Deps
}

func (s *PersistStep) Execute(ctx context.Context, state *State) error {
	if s.deps.Store == nil {
		return nil
	}
	all := append(append([]domain.CorrectionRecord(nil), state.Consolidated.Exportable...), state.Consolidated.Audit...)
	return s.deps.Store.InsertCorrections(ctx, state.RunID, all)
}

// Step 8: ExportStep writes the corrections CSV to the output path.
type ExportStep struct {
	deps Deps
}

func (s *ExportStep) Execute(ctx context.Context, state *State) error {
	var buf bytes.Buffer
	if err := state.Consolidated.WriteCSV(&buf); err != nil {
		return err
	}
	out := state.Inputs.OutputPath
	if gcs.IsURI(out) {
		if err := s.deps.Storage.Upload(ctx, out, buf.Bytes()); err != nil {
			return err
		}
		log := logger.FromContext(ctx)
		log.Info().
			Str("object", gcs.Filename(out)).
			Msg("uploaded corrections file")
		return nil
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing corrections file %s: %w", out, err)
	}
	return nil
}

// Step 9: MarkSuccessStep marks the run as SUCCESS.
type MarkSuccessStep struct {
	deps Deps
}

func (s *MarkSuccessStep) Execute(ctx context.Context, state *State) error {
	if s.deps.Store == nil || state.RunID == "" {
		return nil
	}
	return s.deps.Store.MarkRunSucceeded(ctx, state.RunID, len(state.Consolidated.Exportable))
}
