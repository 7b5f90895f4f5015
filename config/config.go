// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreBolt     = "bolt"
	StoreMemory   = "memory"
)

// Asset sources.
const (
	AssetsLocal = "local"
	AssetsR2    = "r2"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string

	StoreBackend string
	RedisURL     string
	DatabaseURL  string
	BoltPath     string
	StoreTimeout time.Duration

	AssetSource  string
	DownloadsDir string
	DownloadPath string
	R2           R2Settings

	AdminToken        string
	ReconcileInterval time.Duration

	Verify VerifySettings
}

type R2Settings struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Endpoint        string
	Prefix          string
}

// VerifySettings configures the optional payment checks done before a
// purchase is recorded. With Enabled=false every claim is trusted.
type VerifySettings struct {
	Enabled bool
	Timeout time.Duration

	EVMRPCURLs map[string]string // chain id -> JSON-RPC endpoint
	EVMPayee   string

	SolanaRPCURL string
	SolanaPayee  string

	BitcoinAPIURL string
	BitcoinPayee  string

	PayPalAPIBase      string
	PayPalClientID     string
	PayPalClientSecret string
}

// LoadEnvFile loads a .env file into the process environment. A missing file
// is not an error; the caller decides whether to warn.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	return godotenv.Load(path)
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getenv("PORT", ":5200"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFormat:    getenv("LOG_FORMAT", "text"),
		StoreBackend: strings.ToLower(getenv("STORE_BACKEND", StoreRedis)),
		RedisURL:     os.Getenv("REDIS_URL"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		BoltPath:     getenv("BOLT_PATH", "data/ledger.db"),
		AssetSource:  strings.ToLower(getenv("ASSET_SOURCE", AssetsLocal)),
		DownloadsDir: getenv("DOWNLOADS_DIR", "downloads"),
		DownloadPath: getenv("DOWNLOAD_PATH", "/api/download"),
		AdminToken:   os.Getenv("ADMIN_TOKEN"),
		R2: R2Settings{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			Endpoint:        os.Getenv("R2_ENDPOINT"),
			Prefix:          os.Getenv("ASSET_PREFIX"),
		},
		Verify: VerifySettings{
			SolanaRPCURL:       getenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
			SolanaPayee:        os.Getenv("SOLANA_PAYEE"),
			BitcoinAPIURL:      getenv("BITCOIN_API_URL", "https://blockstream.info/api"),
			BitcoinPayee:       os.Getenv("BITCOIN_PAYEE"),
			EVMPayee:           os.Getenv("EVM_PAYEE"),
			PayPalAPIBase:      getenv("PAYPAL_API_BASE", "https://api-m.paypal.com"),
			PayPalClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			PayPalClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
		},
	}

	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	origins := getenv("ALLOWED_ORIGINS", "http://localhost:3000")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	var err error
	if cfg.StoreTimeout, err = durationEnv("STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval, err = durationEnv("RECONCILE_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.Verify.Timeout, err = durationEnv("VERIFY_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Verify.Enabled, err = boolEnv("VERIFY_PAYMENTS", false); err != nil {
		return nil, err
	}
	if cfg.Verify.EVMRPCURLs, err = parseChainURLs(os.Getenv("EVM_RPC_URLS")); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL environment variable not set")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable not set")
		}
	case StoreBolt, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (use redis, postgres, bolt or memory)", c.StoreBackend)
	}

	switch c.AssetSource {
	case AssetsLocal:
	case AssetsR2:
		if c.R2.Bucket == "" {
			return fmt.Errorf("R2_BUCKET_NAME environment variable not set")
		}
	default:
		return fmt.Errorf("unknown ASSET_SOURCE %q (use local or r2)", c.AssetSource)
	}

	if c.Verify.Enabled && c.Verify.PayPalClientID != "" && c.Verify.PayPalClientSecret == "" {
		return fmt.Errorf("PAYPAL_CLIENT_SECRET is required when PAYPAL_CLIENT_ID is set")
	}
	return nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

// parseChainURLs reads "1=https://eth.example,137=https://polygon.example".
// Chain ids may be decimal or 0x-prefixed hex; keys are stored in decimal.
func parseChainURLs(raw string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, url, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(url) == "" {
			return nil, fmt.Errorf("invalid EVM_RPC_URLS entry %q (want chainId=url)", pair)
		}
		n, err := strconv.ParseUint(strings.TrimSpace(id), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id in EVM_RPC_URLS entry %q: %w", pair, err)
		}
		out[strconv.FormatUint(n, 10)] = strings.TrimSpace(url)
	}
	return out, nil
}
