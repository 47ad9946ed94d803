package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/behype/params"
	"github.com/uhyunpark/behype/pkg/api"
	"github.com/uhyunpark/behype/pkg/crypto"
	"github.com/uhyunpark/behype/pkg/exchange"
	"github.com/uhyunpark/behype/pkg/market"
	"github.com/uhyunpark/behype/pkg/service"
	"github.com/uhyunpark/behype/pkg/storage"
	"github.com/uhyunpark/behype/pkg/util"
	"github.com/uhyunpark/behype/pkg/wallet"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.Verbose)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile, "test_mode", cfg.Node.TestMode)

	// ---- Assets ----
	registry := market.DefaultRegistry()
	if cfg.Market.AssetsFile != "" {
		n, err := registry.LoadFile(cfg.Market.AssetsFile)
		if err != nil {
			sugar.Fatalw("assets_file_failed", "path", cfg.Market.AssetsFile, "err", err)
		}
		sugar.Infow("assets_file_loaded", "path", cfg.Market.AssetsFile, "applied", n)
	}

	// ---- Wallet ----
	signer, err := loadSigner(cfg.Node, sugar)
	if err != nil {
		sugar.Fatalw("wallet_key_failed", "path", cfg.Node.KeyFile, "err", err)
	}
	sugar.Infow("wallet_loaded", "address", signer.AddressHex())

	// ---- Exchange ----
	clock := util.RealClock{}
	info, trader, err := exchange.New(cfg, signer, clock, logger.Named("exchange"))
	if err != nil {
		sugar.Fatalw("exchange_init_failed", "err", err)
	}

	// ---- Storage ----
	if err := os.MkdirAll(cfg.Node.DataDir, 0755); err != nil {
		sugar.Fatalw("data_dir_failed", "path", cfg.Node.DataDir, "err", err)
	}
	store, err := storage.NewPebbleStore(filepath.Join(cfg.Node.DataDir, "journal"))
	if err != nil {
		sugar.Fatalw("journal_open_failed", "err", err)
	}
	defer store.Close()

	events, err := storage.NewFileEventLog(filepath.Join(cfg.Node.DataDir, "transactions.log"))
	if err != nil {
		sugar.Fatalw("event_log_open_failed", "err", err)
	}
	defer events.Close()

	// ---- Service ----
	svc, err := service.New(cfg.Market, signer.AddressHex(), service.Deps{
		Registry: registry,
		Info:     info,
		Trader:   trader,
		Store:    store,
		Events:   events,
		Clock:    clock,
		Log:      logger.Named("service"),
	})
	if err != nil {
		sugar.Fatalw("service_init_failed", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API Server ----
	apiServer := api.NewServer(svc, cfg.Node, logger)
	go func() {
		if err := apiServer.Start(ctx, cfg.Node.APIAddr); err != nil {
			sugar.Errorw("api_server_failed", "err", err)
			stop()
		}
	}()

	sugar.Infow("node_starting",
		"reference", cfg.Market.ReferenceAsset,
		"assets", registry.Count(),
		"poll_interval", cfg.Market.PollInterval.String())

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		sugar.Errorw("service_stopped", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("api_shutdown_failed", "err", err)
	}
	sugar.Info("node_stopped")
}

// loadSigner reads the wallet key. Test mode falls back to a throwaway key
// when none is configured.
func loadSigner(cfg params.Node, sugar *zap.SugaredLogger) (*crypto.Signer, error) {
	if cfg.KeyFile != "" {
		signer, err := wallet.LoadKeyFile(cfg.KeyFile)
		if err == nil {
			return signer, nil
		}
		if !cfg.TestMode {
			return nil, err
		}
		sugar.Warnw("wallet_key_missing", "path", cfg.KeyFile, "err", err)
	} else if !cfg.TestMode {
		return nil, errors.New("KEY_FILE is required outside test mode")
	}
	return crypto.GenerateKey()
}
