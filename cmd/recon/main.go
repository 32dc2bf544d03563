package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/dvloznov/tax-recon/internal/config"
	"github.com/dvloznov/tax-recon/internal/corrections"
	"github.com/dvloznov/tax-recon/internal/domain"
	"github.com/dvloznov/tax-recon/internal/engine/age"
	"github.com/dvloznov/tax-recon/internal/engine/match"
	"github.com/dvloznov/tax-recon/internal/engine/rollover"
	"github.com/dvloznov/tax-recon/internal/engine/roth"
	"github.com/dvloznov/tax-recon/internal/gcs"
	infraBQ "github.com/dvloznov/tax-recon/internal/infra/bigquery"
	"github.com/dvloznov/tax-recon/internal/loader"
	"github.com/dvloznov/tax-recon/internal/logger"
	"github.com/dvloznov/tax-recon/internal/pipeline"
	"github.com/dvloznov/tax-recon/internal/review"
)

func main() {
	// Best effort; production runs configure the environment directly.
	_ = godotenv.Load()

	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runFull(log)
	case "match":
		runMatch(log)
	case "age":
		runEngine(log, "age")
	case "roth":
		runEngine(log, "roth")
	case "ira":
		runEngine(log, "ira")
	case "status":
		runStatus(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("1099-R Reconciliation")
	fmt.Println("\nUsage:")
	fmt.Println("  recon <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run      Run the full reconciliation pipeline")
	fmt.Println("  match    Run only the transaction/disbursement matcher")
	fmt.Println("  age      Run only the age-based tax-code engine")
	fmt.Println("  roth     Run only the Roth taxable/basis engine")
	fmt.Println("  ira      Run only the IRA rollover audit")
	fmt.Println("  status   Show the bookkeeping row of a past run")
	fmt.Println("  help     Show this help message")
	fmt.Println("\nRun 'recon <command> -h' for more information on a command.")
}

// loadConfig loads defaults, optionally overlaid with a YAML file. Invalid
// configuration is fatal: better no run than a misclassified tax code.
func loadConfig(log zerolog.Logger, path string) config.Config {
	if path == "" {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			log.Fatal().Err(err).Msg("Invalid default configuration")
		}
		return cfg
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Loading configuration failed")
	}
	return cfg
}

func runFull(log zerolog.Logger) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	txnPath := fs.String("transactions", "", "Path or gs:// URI of the plan-system transactions export")
	disbPath := fs.String("disbursements", "", "Path or gs:// URI of the disbursement-system export")
	demoPath := fs.String("demographics", "", "Path or gs:// URI of the demographics export")
	basisPath := fs.String("basis", "", "Path or gs:// URI of the Roth basis export (optional)")
	outPath := fs.String("out", "corrections.csv", "Path or gs:// URI for the corrections file")
	cfgPath := fs.String("config", "", "YAML configuration overlay (optional)")
	noBQ := fs.Bool("no-bq", false, "Skip BigQuery run bookkeeping")
	notes := fs.Bool("notes", false, "Draft reviewer notes with Gemini for investigate items")
	fs.Parse(os.Args[2:])

	if *txnPath == "" || *disbPath == "" || *demoPath == "" {
		log.Fatal().Msg("Error: -transactions, -disbursements and -demographics are required")
	}

	cfg := loadConfig(log, *cfgPath)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	deps := pipeline.Deps{
		Config:  cfg,
		Storage: gcs.NewService(),
	}
	if !*noBQ {
		project := os.Getenv("RECON_BQ_PROJECT")
		dataset := os.Getenv("RECON_BQ_DATASET")
		if project == "" || dataset == "" {
			log.Fatal().Msg("Error: RECON_BQ_PROJECT and RECON_BQ_DATASET must be set (or pass -no-bq)")
		}
		repo, err := infraBQ.NewRepository(ctx, project, dataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Creating BigQuery repository failed")
		}
		defer repo.Close()
		deps.Store = repo
	}
	if *notes {
		deps.Drafter = review.NewGeminiDrafter()
	}

	state := &pipeline.State{
		Inputs: pipeline.Inputs{
			TransactionsPath:  *txnPath,
			DisbursementsPath: *disbPath,
			DemographicsPath:  *demoPath,
			BasisPath:         *basisPath,
			OutputPath:        *outPath,
		},
	}

	log.Info().
		Str("transactions", *txnPath).
		Str("disbursements", *disbPath).
		Str("out", *outPath).
		Msg("Starting reconciliation run")

	if err := pipeline.NewReconciliationPipeline(deps).Execute(ctx, deps, state); err != nil {
		log.Fatal().Err(err).Msg("Reconciliation failed")
	}

	fmt.Printf("Reconciliation completed: %d exportable rows, %d audit rows -> %s\n",
		len(state.Consolidated.Exportable), len(state.Consolidated.Audit), *outPath)
}

func runStatus(log zerolog.Logger) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	runID := fs.String("run", "", "Run id to look up")
	fs.Parse(os.Args[2:])

	if *runID == "" {
		log.Fatal().Msg("Error: -run is required")
	}

	project := os.Getenv("RECON_BQ_PROJECT")
	dataset := os.Getenv("RECON_BQ_DATASET")
	if project == "" || dataset == "" {
		log.Fatal().Msg("Error: RECON_BQ_PROJECT and RECON_BQ_DATASET must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewRepository(ctx, project, dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Creating BigQuery repository failed")
	}
	defer repo.Close()

	run, err := repo.GetRun(ctx, *runID)
	if err != nil {
		log.Fatal().Err(err).Msg("Looking up run failed")
	}

	fmt.Printf("run %s: %s (started %s)\n", run.RunID, run.Status, run.StartedTS.Format(time.RFC3339))
	if run.FinishedTS.Valid {
		fmt.Printf("  finished: %s\n", run.FinishedTS.Timestamp.Format(time.RFC3339))
	}
	if run.TransactionCount.Valid {
		fmt.Printf("  transactions: %d, disbursements: %d\n",
			run.TransactionCount.Int64, run.DisbursementCount.Int64)
	}
	if run.ExportableCount.Valid {
		fmt.Printf("  exportable corrections: %d\n", run.ExportableCount.Int64)
	}
	if run.ErrorMessage != "" {
		fmt.Printf("  error: %s\n", run.ErrorMessage)
	}
}

func runMatch(log zerolog.Logger) {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	txnPath := fs.String("transactions", "", "Path of the plan-system transactions export")
	disbPath := fs.String("disbursements", "", "Path of the disbursement-system export")
	outPath := fs.String("out", "match.csv", "Path for the matcher output")
	cfgPath := fs.String("config", "", "YAML configuration overlay (optional)")
	fs.Parse(os.Args[2:])

	if *txnPath == "" || *disbPath == "" {
		log.Fatal().Msg("Error: -transactions and -disbursements are required")
	}

	cfg := loadConfig(log, *cfgPath)

	txns, err := loadTransactions(*txnPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading transactions failed")
	}
	disbs, err := loadDisbursements(*disbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading disbursements failed")
	}

	recs := match.Run(cfg, txns, disbs).Corrections()
	writeCorrections(log, *outPath, recs)
}

// runEngine runs one classification engine against local exports.
func runEngine(log zerolog.Logger, name string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	disbPath := fs.String("disbursements", "", "Path of the disbursement-system export")
	demoPath := fs.String("demographics", "", "Path of the demographics export")
	basisPath := fs.String("basis", "", "Path of the Roth basis export (optional)")
	outPath := fs.String("out", name+".csv", "Path for the engine output")
	cfgPath := fs.String("config", "", "YAML configuration overlay (optional)")
	fs.Parse(os.Args[2:])

	if *disbPath == "" {
		log.Fatal().Msg("Error: -disbursements is required")
	}

	cfg := loadConfig(log, *cfgPath)

	disbs, err := loadDisbursements(*disbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading disbursements failed")
	}

	var demos []domain.DemographicRecord
	if *demoPath != "" {
		if demos, err = loadDemographics(*demoPath); err != nil {
			log.Fatal().Err(err).Msg("Loading demographics failed")
		}
	}

	var recs []domain.CorrectionRecord
	switch name {
	case "age":
		recs = age.Run(cfg, disbs, demos)
	case "roth":
		var basis []domain.BasisRecord
		if *basisPath != "" {
			if basis, err = loadBasis(*basisPath); err != nil {
				log.Fatal().Err(err).Msg("Loading basis failed")
			}
		}
		recs = roth.Run(cfg, disbs, demos, basis)
	case "ira":
		recs = rollover.Run(cfg, disbs)
	}
	writeCorrections(log, *outPath, recs)
}

func writeCorrections(log zerolog.Logger, outPath string, recs []domain.CorrectionRecord) {
	cons := corrections.Consolidate(recs)

	f, err := os.Create(outPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", outPath).Msg("Creating output file failed")
	}
	defer f.Close()

	if err := cons.WriteCSV(f); err != nil {
		log.Fatal().Err(err).Msg("Writing output failed")
	}

	fmt.Printf("Wrote %d exportable rows (%d audit-only) to %s\n",
		len(cons.Exportable), len(cons.Audit), outPath)
}

func loadTransactions(path string) ([]domain.TransactionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return loader.Transactions(f)
}

func loadDisbursements(path string) ([]domain.DisbursementRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return loader.Disbursements(f)
}

func loadDemographics(path string) ([]domain.DemographicRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return loader.Demographics(f)
}

func loadBasis(path string) ([]domain.BasisRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return loader.Basis(f)
}
