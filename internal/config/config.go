// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Execution modes.
const (
	ModeSimulate = "simulate"
	ModeContract = "contract"
)

// Residual policies.
const (
	ResidualForward   = "forward"
	ResidualLiquidate = "liquidate"
)

// Hop venues.
const (
	VenueBalancer = "balancer"
	VenueUniswap  = "uniswap_v3"
	VenueAlgebra  = "algebra"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Futarchy  FutarchyConfig  `mapstructure:"futarchy"`
	Pools     PoolsConfig     `mapstructure:"pools"`
	Arbitrage ArbitrageConfig `mapstructure:"arbitrage"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Health    HealthConfig    `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds chain node configuration.
type EthereumConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	HTTPURL        string        `mapstructure:"http_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RPCRateLimit   float64       `mapstructure:"rpc_rate_limit"` // requests per second, 0 = unlimited
	RPCBurst       int           `mapstructure:"rpc_burst"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// FutarchyConfig identifies the proposal and its conditional pools.
type FutarchyConfig struct {
	ProposalAddress string `mapstructure:"proposal_address"`
	CompanyToken    string `mapstructure:"company_token"`  // collateral A, e.g. GNO
	CurrencyToken   string `mapstructure:"currency_token"` // collateral B, e.g. sDAI
	AlgebraFactory  string `mapstructure:"algebra_factory"`
	YesPool         string `mapstructure:"yes_pool"` // optional override for factory lookup
	NoPool          string `mapstructure:"no_pool"`
	PoolVenue       string `mapstructure:"pool_venue"` // venue of the YES/NO conditional pools
}

// ProposalAddressHex returns the proposal address as common.Address.
func (c *FutarchyConfig) ProposalAddressHex() common.Address {
	return common.HexToAddress(c.ProposalAddress)
}

// CompanyTokenHex returns collateral A as common.Address.
func (c *FutarchyConfig) CompanyTokenHex() common.Address {
	return common.HexToAddress(c.CompanyToken)
}

// CurrencyTokenHex returns collateral B as common.Address.
func (c *FutarchyConfig) CurrencyTokenHex() common.Address {
	return common.HexToAddress(c.CurrencyToken)
}

// AlgebraFactoryHex returns the Algebra factory as common.Address.
func (c *FutarchyConfig) AlgebraFactoryHex() common.Address {
	return common.HexToAddress(c.AlgebraFactory)
}

// HopConfig is one leg of the spot route.
type HopConfig struct {
	Pool     string `mapstructure:"pool"`
	Venue    string `mapstructure:"venue"`
	TokenIn  string `mapstructure:"token_in"`
	TokenOut string `mapstructure:"token_out"`
}

// PoolsConfig holds venue contracts and the spot route from company to currency.
type PoolsConfig struct {
	BalancerVault string      `mapstructure:"balancer_vault"`
	SpotPath      []HopConfig `mapstructure:"spot_path"`
}

// BalancerVaultHex returns the vault address as common.Address.
func (c *PoolsConfig) BalancerVaultHex() common.Address {
	return common.HexToAddress(c.BalancerVault)
}

// ArbitrageConfig holds opportunity detection configuration.
type ArbitrageConfig struct {
	TradeSizes           []float64     `mapstructure:"trade_sizes"` // candidate borrow sizes in currency units
	MinProfit            float64       `mapstructure:"min_profit"`  // currency units
	FlashLoanFeeBps      float64       `mapstructure:"flash_loan_fee_bps"`
	GasLimit             uint64        `mapstructure:"gas_limit"`
	NativePrice          float64       `mapstructure:"native_price"` // native token price in currency units
	MaxLiquidityFraction float64       `mapstructure:"max_liquidity_fraction"`
	Execute              bool          `mapstructure:"execute"`
	EvaluationTimeout    time.Duration `mapstructure:"evaluation_timeout"`
}

// TradeSizesDecimal returns trade sizes as decimal.Decimal slice.
func (c *ArbitrageConfig) TradeSizesDecimal() []decimal.Decimal {
	result := make([]decimal.Decimal, len(c.TradeSizes))
	for i, s := range c.TradeSizes {
		result[i] = decimal.NewFromFloat(s)
	}
	return result
}

// MinProfitDecimal returns min profit as decimal.Decimal.
func (c *ArbitrageConfig) MinProfitDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfit)
}

// FlashLoanFeeDecimal returns the flash-loan fee as a fraction.
func (c *ArbitrageConfig) FlashLoanFeeDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.FlashLoanFeeBps).Div(decimal.NewFromInt(10000))
}

// ExecutionConfig holds execution backend configuration.
type ExecutionConfig struct {
	Mode             string            `mapstructure:"mode"`
	ExecutorAddress  string            `mapstructure:"executor_address"`
	CallerAddress    string            `mapstructure:"caller_address"`
	SlippageBps      float64           `mapstructure:"slippage_bps"`
	ResidualPolicy   string            `mapstructure:"residual_policy"`
	LiquidationPools map[string]string `mapstructure:"liquidation_pools"` // token → pool
	LenderLiquidity  float64           `mapstructure:"lender_liquidity"`
	MergeFee         float64           `mapstructure:"merge_fee"`
}

// SlippageDecimal returns the slippage bound as a fraction.
func (c *ExecutionConfig) SlippageDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.SlippageBps).Div(decimal.NewFromInt(10000))
}

// JournalConfig holds the optional execution journal. An empty DSN disables it.
type JournalConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// Enabled reports whether a journal database is configured.
func (c *JournalConfig) Enabled() bool {
	return c.DSN != ""
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Provider       string `mapstructure:"provider"` // zipkin, otlp_grpc, otlp_http, console, none
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// HealthConfig holds health server configuration.
type HealthConfig struct {
	Port        int           `mapstructure:"port"`
	MaxBlockAge time.Duration `mapstructure:"max_block_age"`
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

	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	// Chain
	v.BindEnv("ethereum.websocket_url", "ARB_ETH_WS_URL", "ETH_WS_URL")
	v.BindEnv("ethereum.http_url", "ARB_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "ARB_ETH_CHAIN_ID", "ETH_CHAIN_ID")
	v.BindEnv("ethereum.rpc_rate_limit", "ARB_RPC_RATE_LIMIT")

	// Futarchy
	v.BindEnv("futarchy.proposal_address", "ARB_PROPOSAL", "FUTARCHY_PROPOSAL")
	v.BindEnv("futarchy.company_token", "ARB_COMPANY_TOKEN")
	v.BindEnv("futarchy.currency_token", "ARB_CURRENCY_TOKEN")
	v.BindEnv("futarchy.algebra_factory", "ARB_ALGEBRA_FACTORY")
	v.BindEnv("futarchy.yes_pool", "ARB_YES_POOL")
	v.BindEnv("futarchy.no_pool", "ARB_NO_POOL")
	v.BindEnv("futarchy.pool_venue", "ARB_POOL_VENUE")

	// Pools
	v.BindEnv("pools.balancer_vault", "ARB_BALANCER_VAULT")

	// Arbitrage
	v.BindEnv("arbitrage.min_profit", "ARB_MIN_PROFIT")
	v.BindEnv("arbitrage.flash_loan_fee_bps", "ARB_FLASH_LOAN_FEE_BPS")
	v.BindEnv("arbitrage.execute", "ARB_EXECUTE")

	// Execution
	v.BindEnv("execution.mode", "ARB_EXECUTION_MODE")
	v.BindEnv("execution.executor_address", "ARB_EXECUTOR", "FUTARCHY_ARB_EXECUTOR")
	v.BindEnv("execution.caller_address", "ARB_CALLER")
	v.BindEnv("execution.residual_policy", "ARB_RESIDUAL_POLICY")

	// Journal
	v.BindEnv("journal.dsn", "ARB_JOURNAL_DSN", "DATABASE_URL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.provider", "ARB_OTEL_PROVIDER")
	v.BindEnv("telemetry.otlp_headers", "ARB_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "futarchy-arbitrage")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Gnosis Chain defaults
	v.SetDefault("ethereum.chain_id", 100)
	v.SetDefault("ethereum.max_reconnects", 0) // infinite
	v.SetDefault("ethereum.initial_backoff", "1s")
	v.SetDefault("ethereum.max_backoff", "30s")
	v.SetDefault("ethereum.poll_interval", "5s")
	v.SetDefault("ethereum.rpc_rate_limit", 20)
	v.SetDefault("ethereum.rpc_burst", 10)
	v.SetDefault("ethereum.request_timeout", "10s")

	// GNO / sDAI on Gnosis, Swapr (Algebra) factory
	v.SetDefault("futarchy.company_token", "0x9C58BAcC331c9aa871AFD802DB6379a98e80CEdb")
	v.SetDefault("futarchy.currency_token", "0xaf204776c7245bF4147c2612BF6e5972Ee483701")
	v.SetDefault("futarchy.algebra_factory", "0xA0864cCA6E114013AB0e27cbd5B6f4c8947da766")
	v.SetDefault("futarchy.pool_venue", VenueAlgebra)

	// Balancer V2 vault
	v.SetDefault("pools.balancer_vault", "0xBA12222222228d8Ba445958a75a0704d566BF2C8")

	// Arbitrage defaults
	v.SetDefault("arbitrage.trade_sizes", []float64{10, 50, 100, 250, 500, 1000})
	v.SetDefault("arbitrage.min_profit", 0.1)
	v.SetDefault("arbitrage.flash_loan_fee_bps", 0)
	v.SetDefault("arbitrage.gas_limit", 1_500_000)
	v.SetDefault("arbitrage.native_price", 1)
	v.SetDefault("arbitrage.max_liquidity_fraction", 0.1)
	v.SetDefault("arbitrage.execute", false)
	v.SetDefault("arbitrage.evaluation_timeout", "20s")

	// Execution defaults
	v.SetDefault("execution.mode", ModeSimulate)
	v.SetDefault("execution.slippage_bps", 50)
	v.SetDefault("execution.residual_policy", ResidualForward)
	v.SetDefault("execution.lender_liquidity", 1_000_000)
	v.SetDefault("execution.merge_fee", 0)

	// Journal defaults
	v.SetDefault("journal.max_conns", 4)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.provider", "zipkin")
	v.SetDefault("telemetry.service_name", "futarchy-arbitrage")
	v.SetDefault("telemetry.prometheus_port", 9090)

	// Health defaults
	v.SetDefault("health.port", 8081)
	v.SetDefault("health.max_block_age", "2m")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required")
	}
	if !common.IsHexAddress(c.Futarchy.ProposalAddress) {
		return fmt.Errorf("invalid futarchy.proposal_address: %q", c.Futarchy.ProposalAddress)
	}
	if !common.IsHexAddress(c.Futarchy.CompanyToken) {
		return fmt.Errorf("invalid futarchy.company_token: %q", c.Futarchy.CompanyToken)
	}
	if !common.IsHexAddress(c.Futarchy.CurrencyToken) {
		return fmt.Errorf("invalid futarchy.currency_token: %q", c.Futarchy.CurrencyToken)
	}
	if c.Futarchy.CompanyTokenHex() == c.Futarchy.CurrencyTokenHex() {
		return fmt.Errorf("futarchy.company_token and futarchy.currency_token must differ")
	}
	for name, addr := range map[string]string{
		"futarchy.yes_pool":        c.Futarchy.YesPool,
		"futarchy.no_pool":         c.Futarchy.NoPool,
		"futarchy.algebra_factory": c.Futarchy.AlgebraFactory,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid %s: %q", name, addr)
		}
	}
	if (c.Futarchy.YesPool == "" || c.Futarchy.NoPool == "") && c.Futarchy.AlgebraFactory == "" {
		return fmt.Errorf("futarchy.algebra_factory is required when yes_pool/no_pool are not set")
	}

	switch c.Futarchy.PoolVenue {
	case VenueUniswap, VenueAlgebra:
	default:
		return fmt.Errorf("invalid futarchy.pool_venue: %q", c.Futarchy.PoolVenue)
	}

	if err := c.Pools.validate(); err != nil {
		return err
	}

	if len(c.Arbitrage.TradeSizes) == 0 {
		return fmt.Errorf("arbitrage.trade_sizes cannot be empty")
	}
	for _, s := range c.Arbitrage.TradeSizes {
		if s <= 0 {
			return fmt.Errorf("arbitrage.trade_sizes must be positive, got %v", s)
		}
	}
	if c.Arbitrage.MaxLiquidityFraction <= 0 || c.Arbitrage.MaxLiquidityFraction > 1 {
		return fmt.Errorf("arbitrage.max_liquidity_fraction must be in (0, 1]")
	}
	if c.Arbitrage.FlashLoanFeeBps < 0 {
		return fmt.Errorf("arbitrage.flash_loan_fee_bps cannot be negative")
	}

	switch c.Execution.Mode {
	case ModeSimulate:
	case ModeContract:
		if !common.IsHexAddress(c.Execution.ExecutorAddress) {
			return fmt.Errorf("execution.executor_address is required in contract mode")
		}
	default:
		return fmt.Errorf("invalid execution.mode: %q", c.Execution.Mode)
	}
	if c.Execution.ResidualPolicy != ResidualForward && c.Execution.ResidualPolicy != ResidualLiquidate {
		return fmt.Errorf("invalid execution.residual_policy: %q", c.Execution.ResidualPolicy)
	}
	if c.Execution.SlippageBps < 0 || c.Execution.SlippageBps >= 10000 {
		return fmt.Errorf("execution.slippage_bps must be in [0, 10000)")
	}
	for token, pool := range c.Execution.LiquidationPools {
		if !common.IsHexAddress(token) || !common.IsHexAddress(pool) {
			return fmt.Errorf("invalid execution.liquidation_pools entry %q: %q", token, pool)
		}
	}
	return nil
}

func (c *PoolsConfig) validate() error {
	if len(c.SpotPath) == 0 {
		return fmt.Errorf("pools.spot_path cannot be empty")
	}
	for i, hop := range c.SpotPath {
		if !common.IsHexAddress(hop.Pool) || !common.IsHexAddress(hop.TokenIn) || !common.IsHexAddress(hop.TokenOut) {
			return fmt.Errorf("pools.spot_path[%d]: invalid address", i)
		}
		switch hop.Venue {
		case VenueBalancer:
			if !common.IsHexAddress(c.BalancerVault) {
				return fmt.Errorf("pools.balancer_vault is required for balancer hops")
			}
		case VenueUniswap, VenueAlgebra:
		default:
			return fmt.Errorf("pools.spot_path[%d]: unknown venue %q", i, hop.Venue)
		}
		if i > 0 && !strings.EqualFold(c.SpotPath[i-1].TokenOut, hop.TokenIn) {
			return fmt.Errorf("pools.spot_path[%d]: token_in does not chain from previous hop", i)
		}
	}
	return nil
}
