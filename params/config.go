package params

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// Info configures the public market-data endpoint.
type Info struct {
	URL     string        `validate:"required,url"`
	Timeout time.Duration `validate:"gt=0"`
}

// Gateway configures the endpoint that accepts signed order transactions.
type Gateway struct {
	URL     string `validate:"required,url"`
	ChainID int64  `validate:"gt=0"`
}

type Market struct {
	// ReferenceAsset is the pair whose mid is already quoted in USD.
	ReferenceAsset string `validate:"required,startswith=@"`
	QuoteCoin      string `validate:"required"`
	// AssetsFile optionally overrides tick/lot/display names per asset (YAML).
	AssetsFile    string
	PollInterval  time.Duration `validate:"gte=250000000"`
	FillsDaysBack int           `validate:"gte=1,lte=365"`
}

type Node struct {
	// TestMode swaps the exchange collaborators for canned responses.
	TestMode    bool
	APIAddr     string `validate:"required"`
	LogFile     string
	DataDir     string `validate:"required"`
	KeyFile     string
	CORSOrigins []string
	Verbose     bool
}

type Config struct {
	Info    Info
	Gateway Gateway
	Market  Market
	Node    Node
}

func Default() Config {
	return Config{
		Info: Info{
			URL:     "https://api.hyperliquid.xyz/info",
			Timeout: 10 * time.Second,
		},
		Gateway: Gateway{
			URL:     "http://localhost:8080",
			ChainID: 1337,
		},
		Market: Market{
			ReferenceAsset: "@142", // BTC/USDC spot
			QuoteCoin:      "USDC",
			PollInterval:   15 * time.Second,
			FillsDaysBack:  30,
		},
		Node: Node{
			APIAddr:     ":8090",
			LogFile:     "data/behyped.log",
			DataDir:     "data",
			KeyFile:     "private-key.key",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Info.URL = getEnv("INFO_URL", cfg.Info.URL)
	if ms, ok := getEnvInt("HTTP_TIMEOUT_MS"); ok {
		cfg.Info.Timeout = time.Duration(ms) * time.Millisecond
	}

	cfg.Gateway.URL = getEnv("GATEWAY_URL", cfg.Gateway.URL)
	if id, ok := getEnvInt("CHAIN_ID"); ok {
		cfg.Gateway.ChainID = int64(id)
	}

	cfg.Market.ReferenceAsset = getEnv("REFERENCE_ASSET", cfg.Market.ReferenceAsset)
	cfg.Market.QuoteCoin = getEnv("QUOTE_COIN", cfg.Market.QuoteCoin)
	cfg.Market.AssetsFile = getEnv("ASSETS_FILE", cfg.Market.AssetsFile)
	if ms, ok := getEnvInt("POLL_INTERVAL_MS"); ok {
		cfg.Market.PollInterval = time.Duration(ms) * time.Millisecond
	}
	if days, ok := getEnvInt("FILLS_DAYS_BACK"); ok {
		cfg.Market.FillsDaysBack = days
	}

	if tm := os.Getenv("TEST_MODE"); tm != "" {
		cfg.Node.TestMode = tm == "true"
	}
	if v := os.Getenv("VERBOSE"); v != "" {
		cfg.Node.Verbose = v == "true"
	}
	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.KeyFile = getEnv("KEY_FILE", cfg.Node.KeyFile)

	// Example: "http://localhost:3000,https://app.example"
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Node.CORSOrigins = splitList(origins)
	}

	return cfg
}

var validate = validator.New()

// Validate checks every section and reports all violations at once.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	var merr *multierror.Error
	for _, fe := range fieldErrs {
		merr = multierror.Append(merr, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return merr.ErrorOrNil()
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
