// Package main replays a JSON-lines log fixture through in-memory stores and
// prints the resulting pair and position state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"dex-ledger/internal/config"
	"dex-ledger/internal/ethlog"
	"dex-ledger/internal/ingestion"
	"dex-ledger/internal/logging"
	"dex-ledger/internal/orchestrator"
	"dex-ledger/internal/replay"
	"dex-ledger/internal/reporting"
	pgstore "dex-ledger/internal/storage/postgres"
	"dex-ledger/internal/verification"
)

func main() {
	fixture := flag.String("fixture", "", "JSON-lines log fixture (required)")
	configPath := flag.String("config", "", "Path to YAML config")
	user := flag.String("user", "", "Print this address's positions in every traded token")
	verifyDSN := flag.String("verify-dsn", "", "Compare the replayed ledger against this Postgres database")
	format := flag.String("format", "markdown", "Output format: markdown, json, pairs-csv, positions-csv")
	flag.Parse()

	if *fixture == "" {
		logrus.Fatal("--fixture is required")
	}
	var owner *common.Address
	if *user != "" {
		if !common.IsHexAddress(*user) {
			logrus.Fatalf("--user %q is not an address", *user)
		}
		addr := common.HexToAddress(*user)
		owner = &addr
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	cfg.Storage.Backend = "memory"
	cfg.Storage.ClickhouseDSN = ""

	logger, err := logging.New(cfg.Log)
	if err != nil {
		logrus.Fatalf("init logging: %v", err)
	}
	log := logger.WithField("cmd", "replay")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("shutting down")
		cancel()
	}()

	source, err := ingestion.OpenFileSource(*fixture, ethlog.NewDecoder(cfg.Factory()), logger)
	if err != nil {
		log.WithError(err).Fatal("open fixture")
	}
	first, last, ok := source.Bounds()
	if !ok {
		log.Fatal("fixture contains no decodable events")
	}

	orch, err := orchestrator.New(ctx, orchestrator.Options{Config: cfg, Logger: logger})
	if err != nil {
		log.WithError(err).Fatal("assemble components")
	}
	defer orch.Close()

	n, err := replay.NewRunner(source).Run(ctx, first, last, orch.Processor)
	if err != nil {
		log.WithError(err).Fatal("replay failed")
	}

	report, err := reporting.NewBuilder(orch.Stores, orch.Pairs, cfg.Factory()).Build(ctx, owner)
	if err != nil {
		log.WithError(err).Fatal("build report")
	}
	report.Source = *fixture
	report.FromBlock, report.ToBlock = first, last
	report.Events = n
	report.Stats = orch.Processor.Stats()

	if *verifyDSN != "" {
		var users []common.Address
		if owner != nil {
			users = append(users, *owner)
		}
		if err := verify(ctx, *verifyDSN, orch, users, log); err != nil {
			log.WithError(err).Fatal("verification failed")
		}
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.WithError(err).Fatal("encode report")
		}
	case "pairs-csv":
		fmt.Print(reporting.RenderPairsCSV(report))
	case "positions-csv":
		fmt.Print(reporting.RenderPositionsCSV(report))
	default:
		fmt.Print(reporting.RenderMarkdown(report))
	}
}

func verify(ctx context.Context, dsn string, orch *orchestrator.Orchestrator, users []common.Address, log logrus.FieldLogger) error {
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	report, err := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		Stored:        pgstore.NewStores(pool),
		Replayed:      orch.Stores,
		ReplayedPairs: orch.Pairs,
	}).VerifyAll(ctx, users)
	if err != nil {
		return err
	}

	for _, r := range report.Results {
		if r.Match {
			continue
		}
		for _, d := range r.Divergences {
			log.WithFields(logrus.Fields{
				"kind":     r.Kind,
				"key":      r.Key,
				"field":    d.Field,
				"stored":   d.Expected,
				"replayed": d.Actual,
			}).Warn("divergence")
		}
	}
	log.WithFields(logrus.Fields{
		"records":   report.TotalRecords,
		"matched":   report.MatchedRecords,
		"divergent": report.DivergentRecords,
	}).Info("verification complete")

	if report.DivergentRecords > 0 {
		return fmt.Errorf("%d of %d records diverge", report.DivergentRecords, report.TotalRecords)
	}
	return nil
}
