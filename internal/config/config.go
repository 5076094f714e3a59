// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/whaleshi/b/internal/contracts"
	"github.com/whaleshi/b/internal/types"
)

type Config struct {
	RPCList []string `mapstructure:"rpc_list"`
	ChainID int64    `mapstructure:"chain_id"`

	FactoryAddress   string `mapstructure:"factory_address"`
	RouterAddress    string `mapstructure:"router_address"`
	WETHAddress      string `mapstructure:"weth_address"`
	MulticallAddress string `mapstructure:"multicall_address"`
	FactoryBuyMethod string `mapstructure:"factory_buy_method"`

	SlippageBps     int           `mapstructure:"slippage_bps"`
	SwapDeadline    time.Duration `mapstructure:"swap_deadline"`
	DefaultGasLimit uint64        `mapstructure:"default_gas_limit"`

	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	ReadRetries int           `mapstructure:"read_retries"`

	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	BalanceInterval time.Duration `mapstructure:"balance_interval"`
	QuoteInterval   time.Duration `mapstructure:"quote_interval"`

	IPFSGateway        string        `mapstructure:"ipfs_gateway"`
	MetadataBatchSize  int           `mapstructure:"metadata_batch_size"`
	MetadataBatchPause time.Duration `mapstructure:"metadata_batch_pause"`
	MetadataTimeout    time.Duration `mapstructure:"metadata_timeout"`

	RedisURL    string `mapstructure:"redis_url"`
	PostgresURL string `mapstructure:"postgres_url"`
	JournalFile string `mapstructure:"journal_file"`
	MetricsAddr string `mapstructure:"metrics_addr"`

	DebugLogging bool   `mapstructure:"debug_logging"`
	Workers      int    `mapstructure:"workers"`
	WalletsFile  string `mapstructure:"wallets_file"`
}

const (
	DefaultChainID            = 196
	DefaultBuyMethod          = "purchase"
	DefaultSwapDeadline       = 20 * time.Minute
	DefaultReadTimeout        = 10 * time.Second
	DefaultReadRetries        = 2
	DefaultRefreshInterval    = 5 * time.Second
	DefaultBalanceInterval    = 3 * time.Second
	DefaultQuoteInterval      = 2 * time.Second
	DefaultIPFSGateway        = "https://ipfs.io/ipfs/"
	DefaultMetadataBatchSize  = 10
	DefaultMetadataBatchPause = 100 * time.Millisecond
	DefaultMetadataTimeout    = 8 * time.Second
	DefaultGasLimit           = 500_000
	DefaultWorkers            = 5
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"rpc_list":             []string{},
		"chain_id":             DefaultChainID,
		"factory_address":      contracts.DefaultFactory.Hex(),
		"router_address":       contracts.DefaultRouter.Hex(),
		"weth_address":         contracts.DefaultWETH.Hex(),
		"multicall_address":    contracts.DefaultMulticall.Hex(),
		"factory_buy_method":   DefaultBuyMethod,
		"slippage_bps":         types.DefaultSlippageBps,
		"swap_deadline":        DefaultSwapDeadline,
		"default_gas_limit":    DefaultGasLimit,
		"read_timeout":         DefaultReadTimeout,
		"read_retries":         DefaultReadRetries,
		"refresh_interval":     DefaultRefreshInterval,
		"balance_interval":     DefaultBalanceInterval,
		"quote_interval":       DefaultQuoteInterval,
		"ipfs_gateway":         DefaultIPFSGateway,
		"metadata_batch_size":  DefaultMetadataBatchSize,
		"metadata_batch_pause": DefaultMetadataBatchPause,
		"metadata_timeout":     DefaultMetadataTimeout,
		"redis_url":            "",
		"postgres_url":         "",
		"journal_file":         "logs/trades.csv",
		"metrics_addr":         "",
		"debug_logging":        false,
		"workers":              DefaultWorkers,
		"wallets_file":         "configs/wallets.yaml",
	}
}

// LoadConfig reads path (json/yaml/toml by extension) and applies LAUNCHPAD_* env overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	bindEnvironment(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

// Default returns the configuration with every default applied and no file read.
func Default() *Config {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}
	if cfg.ChainID <= 0 {
		return errors.New("invalid chain_id")
	}

	for name, addr := range map[string]string{
		"factory_address":   cfg.FactoryAddress,
		"router_address":    cfg.RouterAddress,
		"weth_address":      cfg.WETHAddress,
		"multicall_address": cfg.MulticallAddress,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid %s: %q", name, addr)
		}
	}

	switch cfg.FactoryBuyMethod {
	case "purchase", "buyToken":
	default:
		return fmt.Errorf("invalid factory_buy_method %q", cfg.FactoryBuyMethod)
	}

	if err := (types.SlippageConfig{ToleranceBps: cfg.SlippageBps}).Validate(); err != nil {
		return err
	}
	if err := validateNumericParams(cfg); err != nil {
		return err
	}

	if err := validateURLWithCache(cfg.IPFSGateway, "http"); err != nil {
		return errors.New("ipfs_gateway must be an http(s) URL")
	}
	if cfg.RedisURL != "" {
		if err := validateURLWithCache(cfg.RedisURL, "redis"); err != nil {
			return errors.New("redis_url must use redis:// or rediss://")
		}
	}
	if cfg.PostgresURL != "" {
		if err := validateURLWithCache(cfg.PostgresURL, "postgres"); err != nil {
			return errors.New("postgres_url must use postgres:// or postgresql://")
		}
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.ReadTimeout <= 0 {
		return errors.New("invalid read_timeout")
	}
	if cfg.ReadRetries < 0 {
		return errors.New("invalid read_retries")
	}
	if cfg.SwapDeadline <= 0 {
		return errors.New("invalid swap_deadline")
	}
	if cfg.RefreshInterval <= 0 || cfg.BalanceInterval <= 0 || cfg.QuoteInterval <= 0 {
		return errors.New("poll intervals must be positive")
	}
	if cfg.MetadataBatchSize <= 0 {
		return errors.New("invalid metadata_batch_size")
	}
	if cfg.MetadataBatchPause < 0 {
		return errors.New("invalid metadata_batch_pause")
	}
	if cfg.Workers < 0 {
		return errors.New("invalid workers count")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func bindEnvironment(v *viper.Viper) {
	v.SetEnvPrefix("LAUNCHPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// RPC_LIST arrives as one comma-separated string.
func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	envRPCList := v.GetString("RPC_LIST")
	if envRPCList == "" {
		return
	}
	var cleanRPCs []string
	for _, rpc := range strings.Split(envRPCList, ",") {
		if clean := strings.TrimSpace(rpc); clean != "" {
			cleanRPCs = append(cleanRPCs, clean)
		}
	}
	if len(cleanRPCs) > 0 {
		cfg.RPCList = cleanRPCs
	}
}

// Addresses parses the four contract addresses. Call after LoadConfig validated them.
func (c *Config) Addresses() (factory, router, weth, multicall common.Address) {
	return common.HexToAddress(c.FactoryAddress),
		common.HexToAddress(c.RouterAddress),
		common.HexToAddress(c.WETHAddress),
		common.HexToAddress(c.MulticallAddress)
}
