// internal/config/config.go
package config

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	RPCURL          string   `mapstructure:"rpc_url"`
	RPCFallbackURLs []string `mapstructure:"rpc_fallback_urls"`
	ContractAddress string   `mapstructure:"contract_address"`
	WalletsFile     string   `mapstructure:"wallets_file"`
	CategoriesFile  string   `mapstructure:"categories_file"`

	ExplorerURL    string `mapstructure:"explorer_url"`
	ExplorerAPIKey string `mapstructure:"explorer_api_key"`
	PriceAPIURL    string `mapstructure:"price_api_url"`
	AdvisorAPIKey  string `mapstructure:"advisor_api_key"`
	AdvisorModel   string `mapstructure:"advisor_model"`

	PostgresURL string `mapstructure:"postgres_url"`
	ListenAddr  string `mapstructure:"listen_addr"`

	RefreshDelay int `mapstructure:"refresh_delay"` // milliseconds
	WhaleDelay   int `mapstructure:"whale_delay"`
	PriceDelay   int `mapstructure:"price_delay"`

	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	Retries        int           `mapstructure:"retries"`
	DebugLogging   bool          `mapstructure:"debug_logging"`
	ExportDir      string        `mapstructure:"export_dir"`
}

const (
	DefaultRefreshDelay   = 15000
	DefaultWhaleDelay     = 30000
	DefaultPriceDelay     = 60000
	DefaultRetries        = 3
	DefaultConfirmTimeout = 2 * time.Minute
	DefaultListenAddr     = ":8084"
	DefaultAdvisorModel   = "gemini-2.0-flash"
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"refresh_delay":   DefaultRefreshDelay,
		"whale_delay":     DefaultWhaleDelay,
		"price_delay":     DefaultPriceDelay,
		"retries":         DefaultRetries,
		"confirm_timeout": DefaultConfirmTimeout,
		"listen_addr":     DefaultListenAddr,
		"advisor_model":   DefaultAdvisorModel,
		"categories_file": "configs/categories.yaml",
		"wallets_file":    "configs/wallets.csv",
		"export_dir":      "exports",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.RPCURL == "" {
		return errors.New("missing rpc_url in configuration")
	}
	if err := validateURLWithCache(cfg.RPCURL, "http"); err != nil {
		return errors.New("invalid RPC URL protocol")
	}
	for _, fallback := range cfg.RPCFallbackURLs {
		if err := validateURLWithCache(fallback, "http"); err != nil {
			return errors.New("invalid fallback RPC URL protocol")
		}
	}
	if cfg.ContractAddress == "" {
		return errors.New("missing contract_address in configuration")
	}
	if !strings.HasPrefix(cfg.ContractAddress, "0x") || len(cfg.ContractAddress) != 42 {
		return errors.New("invalid contract_address format")
	}
	if cfg.ExplorerURL != "" {
		if err := validateURLWithCache(cfg.ExplorerURL, "http"); err != nil {
			return errors.New("invalid explorer URL protocol")
		}
	}
	if cfg.PriceAPIURL != "" {
		if err := validateURLWithCache(cfg.PriceAPIURL, "http"); err != nil {
			return errors.New("invalid price API URL protocol")
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.RefreshDelay <= 0 {
		return errors.New("invalid refresh_delay")
	}
	if cfg.WhaleDelay <= 0 {
		return errors.New("invalid whale_delay")
	}
	if cfg.PriceDelay <= 0 {
		return errors.New("invalid price_delay")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.ConfirmTimeout < 0 {
		return errors.New("invalid confirm_timeout")
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

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("MONOFI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if envRPC := v.GetString("RPC_URL"); envRPC != "" {
		cfg.RPCURL = envRPC
	}
	if envKey := v.GetString("ADVISOR_API_KEY"); envKey != "" {
		cfg.AdvisorAPIKey = envKey
	}
	if envKey := v.GetString("EXPLORER_API_KEY"); envKey != "" {
		cfg.ExplorerAPIKey = envKey
	}
	if envURL := v.GetString("POSTGRES_URL"); envURL != "" {
		cfg.PostgresURL = envURL
	}
	return nil
}

// RefreshInterval returns the allocation refresh period.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshDelay) * time.Millisecond
}

// WhaleInterval returns the whale tracker polling period.
func (c *Config) WhaleInterval() time.Duration {
	return time.Duration(c.WhaleDelay) * time.Millisecond
}

// PriceInterval returns the price feed polling period.
func (c *Config) PriceInterval() time.Duration {
	return time.Duration(c.PriceDelay) * time.Millisecond
}

// RPCURLs returns the primary RPC endpoint followed by any fallbacks.
func (c *Config) RPCURLs() []string {
	return append([]string{c.RPCURL}, c.RPCFallbackURLs...)
}
