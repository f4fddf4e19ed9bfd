// Package main runs the indexer: it follows the chain from the last
// checkpoint, applies factory and pair events to the ledger and serves the
// read API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"dex-ledger/internal/api"
	"dex-ledger/internal/config"
	"dex-ledger/internal/ingestion"
	"dex-ledger/internal/logging"
	"dex-ledger/internal/observability"
	"dex-ledger/internal/orchestrator"
)

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "Path to YAML config")
	envFile := flag.String("env-file", ".env", "Dotenv file loaded before config")
	once := flag.Bool("once", false, "Sync to the current head and exit")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		logrus.Fatalf("load env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if cfg.RPC.URL == "" {
		logrus.Fatalf("rpc.url is required (or %sRPC_URL)", config.EnvPrefix)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		logrus.Fatalf("init logging: %v", err)
	}
	log := logger.WithField("cmd", "indexer")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("shutting down")
		cancel()

		select {
		case <-sigCh:
			log.Warn("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	client, err := ethclient.DialContext(ctx, cfg.RPC.URL)
	if err != nil {
		log.WithError(err).Fatal("dial rpc")
	}
	defer client.Close()

	// log fetches and metadata calls share one node budget
	limiter := ingestion.NewLimiter(rate.Limit(cfg.RPC.RateLimit), 4)

	orch, err := orchestrator.New(ctx, orchestrator.Options{
		Config: cfg,
		Caller: ingestion.NewLimitedCaller(client, limiter),
		Logger: logger,
	})
	if err != nil {
		log.WithError(err).Fatal("assemble components")
	}
	defer func() {
		if err := orch.Close(); err != nil {
			log.WithError(err).Warn("close stores")
		}
	}()

	known, err := orch.Pairs.Addresses(ctx)
	if err != nil {
		log.WithError(err).Fatal("load known pairs")
	}
	source := ingestion.NewRPCSource(ingestion.RPCSourceOptions{
		Client:     client,
		Factory:    cfg.Factory(),
		KnownPairs: known,
		Limiter:    limiter,
		BlockTimes: orch.BlockTimes,
		Logger:     logger.WithField("component", "rpc_source"),
	})
	log.WithField("pairs", source.PairCount()).Info("rpc source ready")

	follower := ingestion.NewFollower(ingestion.FollowerOptions{
		Head:          client,
		Source:        source,
		Engine:        orch.Processor,
		Progress:      orch.Progress,
		Tx:            orch.Tx,
		StartBlock:    cfg.RPC.StartBlock,
		BatchBlocks:   cfg.RPC.BatchBlocks,
		Confirmations: cfg.RPC.Confirmations,
		PollInterval:  cfg.RPC.PollInterval,
		Logger:        logger.WithField("component", "follower"),
	})

	if *once {
		res, err := follower.SyncOnce(ctx)
		if err != nil {
			log.WithError(err).Fatal("sync failed")
		}
		log.WithFields(logrus.Fields{
			"from":    res.FromBlock,
			"to":      res.ToBlock,
			"windows": res.Windows,
			"events":  res.Events,
		}).Info("sync complete")
		return
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewServer(orch.Stores, observability.Handler(), logger.WithField("component", "api")).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server")
		}
	}()

	runErr := follower.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}

	if runErr != nil {
		log.WithError(runErr).Fatal("indexer stopped")
	}
	log.Info("shutdown complete")
}
