// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Adapter keys accepted in quoting.adapters. Order in config is registration order.
const (
	AdapterUniswapV3       = "uniswap-v3"
	AdapterUniswapV2       = "uniswap-v2"
	AdapterOneInch         = "1inch"
	AdapterUniversalRouter = "universal-router"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Chains    []ChainConfig   `mapstructure:"chains"`
	Quoting   QuotingConfig   `mapstructure:"quoting"`
	OneInch   OneInchConfig   `mapstructure:"oneinch"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ChainConfig holds node access for one EVM chain.
type ChainConfig struct {
	ID           uint64        `mapstructure:"id"`
	Name         string        `mapstructure:"name"`
	RPCURL       string        `mapstructure:"rpc_url"`
	WSURL        string        `mapstructure:"ws_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	NativeSymbol string        `mapstructure:"native_symbol"`
}

// QuotingConfig is the per-session engine configuration. It is read once and
// treated as immutable afterwards.
type QuotingConfig struct {
	Adapters        []string                 `mapstructure:"adapters"`
	Debounce        time.Duration            `mapstructure:"debounce"`
	RoundTimeout    time.Duration            `mapstructure:"round_timeout"`
	DefaultTimeout  time.Duration            `mapstructure:"default_timeout"`
	Timeouts        map[string]time.Duration `mapstructure:"timeouts"`
	DefaultSlippage float64                  `mapstructure:"default_slippage"`
	FeeTiers        []uint32                 `mapstructure:"fee_tiers"`
	SnapshotTTL     time.Duration            `mapstructure:"snapshot_ttl"`
	RefreshOnBlock  bool                     `mapstructure:"refresh_on_block"`
}

// TimeoutFor returns the per-source timeout for an adapter key.
func (c *QuotingConfig) TimeoutFor(adapter string) time.Duration {
	if d, ok := c.Timeouts[adapter]; ok && d > 0 {
		return d
	}
	return c.DefaultTimeout
}

// DefaultSlippageDecimal returns the default slippage as a fraction.
func (c *QuotingConfig) DefaultSlippageDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.DefaultSlippage)
}

// OneInchConfig holds the 1inch swap API settings.
type OneInchConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// CacheConfig selects the snapshot store backend.
type CacheConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// ServerConfig holds listener ports.
type ServerConfig struct {
	WSPort     int `mapstructure:"ws_port"`
	HealthPort int `mapstructure:"health_port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Chain returns the configuration of a chain by id.
func (c *Config) Chain(id uint64) (ChainConfig, bool) {
	for _, ch := range c.Chains {
		if ch.ID == id {
			return ch, true
		}
	}
	return ChainConfig{}, false
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("QUOTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyChainEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "QUOTER_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "QUOTER_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "QUOTER_LOG_LEVEL", "LOG_LEVEL")

	// Quoting
	v.BindEnv("quoting.adapters", "QUOTER_ADAPTERS")
	v.BindEnv("quoting.default_slippage", "QUOTER_DEFAULT_SLIPPAGE")

	// 1inch
	v.BindEnv("oneinch.base_url", "QUOTER_ONEINCH_URL", "ONEINCH_URL")
	v.BindEnv("oneinch.api_key", "QUOTER_ONEINCH_API_KEY", "ONEINCH_API_KEY")

	// Cache
	v.BindEnv("cache.backend", "QUOTER_CACHE_BACKEND")
	v.BindEnv("cache.redis_addr", "QUOTER_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("cache.redis_password", "QUOTER_REDIS_PASSWORD", "REDIS_PASSWORD")

	// Telemetry
	v.BindEnv("telemetry.enabled", "QUOTER_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "QUOTER_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "QUOTER_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "QUOTER_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

// applyChainEnv lets QUOTER_RPC_URL_<chainID> and QUOTER_WS_URL_<chainID>
// override list entries, which viper cannot bind directly.
func applyChainEnv(cfg *Config) {
	for i := range cfg.Chains {
		id := strconv.FormatUint(cfg.Chains[i].ID, 10)
		if url := os.Getenv("QUOTER_RPC_URL_" + id); url != "" {
			cfg.Chains[i].RPCURL = url
		}
		if url := os.Getenv("QUOTER_WS_URL_" + id); url != "" {
			cfg.Chains[i].WSURL = url
		}
	}
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "swap-quoter")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Public RPC endpoints, override for anything beyond local use
	v.SetDefault("chains", []map[string]any{
		{"id": 1, "name": "ethereum", "rpc_url": "https://ethereum-rpc.publicnode.com", "native_symbol": "ETH", "poll_interval": "12s"},
		{"id": 42161, "name": "arbitrum", "rpc_url": "https://arbitrum-one-rpc.publicnode.com", "native_symbol": "ETH", "poll_interval": "2s"},
		{"id": 137, "name": "polygon", "rpc_url": "https://polygon-bor-rpc.publicnode.com", "native_symbol": "POL", "poll_interval": "2s"},
		{"id": 8453, "name": "base", "rpc_url": "https://base-rpc.publicnode.com", "native_symbol": "ETH", "poll_interval": "2s"},
		{"id": 56, "name": "bsc", "rpc_url": "https://bsc-rpc.publicnode.com", "native_symbol": "BNB", "poll_interval": "3s"},
	})

	// Quoting defaults
	v.SetDefault("quoting.adapters", []string{AdapterUniswapV3, AdapterUniswapV2, AdapterOneInch, AdapterUniversalRouter})
	v.SetDefault("quoting.debounce", "500ms")
	v.SetDefault("quoting.round_timeout", "15s")
	v.SetDefault("quoting.default_timeout", "8s")
	v.SetDefault("quoting.timeouts", map[string]string{AdapterOneInch: "5s"})
	v.SetDefault("quoting.default_slippage", 0.005)
	v.SetDefault("quoting.fee_tiers", []uint32{500, 3000, 10000})
	v.SetDefault("quoting.snapshot_ttl", "0s")
	v.SetDefault("quoting.refresh_on_block", true)

	// 1inch defaults
	v.SetDefault("oneinch.base_url", "https://api.1inch.dev")
	v.SetDefault("oneinch.requests_per_minute", 60)
	v.SetDefault("oneinch.timeout", "5s")

	// Cache defaults
	v.SetDefault("cache.backend", CacheBackendMemory)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)

	// Server defaults
	v.SetDefault("server.ws_port", 8080)
	v.SetDefault("server.health_port", 8081)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "swap-quoter")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("chains cannot be empty")
	}
	seen := make(map[uint64]bool, len(c.Chains))
	for _, ch := range c.Chains {
		if ch.ID == 0 {
			return fmt.Errorf("chain %q: id is required", ch.Name)
		}
		if seen[ch.ID] {
			return fmt.Errorf("chain %d configured twice", ch.ID)
		}
		seen[ch.ID] = true
		if ch.RPCURL == "" {
			return fmt.Errorf("chain %d: rpc_url is required", ch.ID)
		}
	}

	if len(c.Quoting.Adapters) == 0 {
		return fmt.Errorf("quoting.adapters cannot be empty")
	}
	known := map[string]bool{
		AdapterUniswapV3:       true,
		AdapterUniswapV2:       true,
		AdapterOneInch:         true,
		AdapterUniversalRouter: true,
	}
	for _, a := range c.Quoting.Adapters {
		if !known[a] {
			return fmt.Errorf("unknown adapter %q in quoting.adapters", a)
		}
	}

	if c.Quoting.DefaultSlippage < 0 || c.Quoting.DefaultSlippage > 1 {
		return fmt.Errorf("quoting.default_slippage must be within [0,1], got %v", c.Quoting.DefaultSlippage)
	}
	if c.Quoting.Debounce < 0 {
		return fmt.Errorf("quoting.debounce cannot be negative")
	}
	if c.Quoting.RoundTimeout <= 0 {
		return fmt.Errorf("quoting.round_timeout must be positive")
	}
	if len(c.Quoting.FeeTiers) == 0 {
		return fmt.Errorf("quoting.fee_tiers cannot be empty")
	}

	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for redis backend")
		}
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}

	return nil
}
