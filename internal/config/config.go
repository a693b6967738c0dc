// Package config loads configuration from a .env file, environment
// variables, and a dynamic-override JSON sidecar, the way the teacher's
// trading bot loads its own .env-driven configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oak/crypto-sentinel/internal/constant"
	"github.com/spf13/viper"
)

// Config holds all static configuration for the monitoring service.
type Config struct {
	DatabasePath string
	DebugMode    bool

	// LLM providers
	DoubaoAPIKey   string
	DoubaoBaseURL  string
	DoubaoModel    string
	ClaudeAPIKey   string
	ClaudeBaseURL  string
	ClaudeModel    string

	// Binance
	BinanceAPIKey    string
	BinanceAPISecret string
	BinanceTestMode  bool
	BinanceProxy     string

	// Telegram
	TelegramBotToken string
	TelegramChatID   string

	// Monitoring defaults
	PrimarySymbols      []string
	SecondarySymbols    []string
	HeartbeatIntervalS  int
	MonitorIntervalMins int
	CryptoLookbackDays  int

	// Dynamic-config sidecar path
	DynamicConfigPath string
}

// DynamicConfig is the subset of configuration that capabilities can change
// at runtime and that must survive a restart.
type DynamicConfig struct {
	PrimarySymbols     []string `json:"primary_symbols"`
	SecondarySymbols   []string `json:"secondary_symbols"`
	HeartbeatIntervalS int      `json:"heartbeat_interval_seconds"`
}

// envCandidatePaths mirrors the three-candidate .env search the original
// Python controller performed relative to its own file.
func envCandidatePaths(explicit string) []string {
	if explicit != constant.BlankStr {
		return []string{explicit}
	}
	return []string{".env", filepath.Join("..", ".env"), filepath.Join("..", "..", ".env")}
}

// LoadConfig reads the first existing .env candidate path, applies
// environment-variable overrides, and fills in defaults for anything unset.
func LoadConfig(pathToEnv string) (*Config, error) {
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	setDefaults()

	var loaded bool
	for _, candidate := range envCandidatePaths(pathToEnv) {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		viper.SetConfigFile(candidate)
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file %s: %w", candidate, err)
			}
			continue
		}
		loaded = true
		break
	}
	_ = loaded // a missing .env is tolerated; env vars and defaults still apply

	cfg := &Config{
		DatabasePath: viper.GetString("DATABASE_PATH"),
		DebugMode:    viper.GetBool("DEBUG_MODE"),

		DoubaoAPIKey:  viper.GetString("DOUBAO_API_KEY"),
		DoubaoBaseURL: viper.GetString("DOUBAO_BASE_URL"),
		DoubaoModel:   viper.GetString("DOUBAO_MODEL"),
		ClaudeAPIKey:  viper.GetString("CLAUDE_API_KEY"),
		ClaudeBaseURL: viper.GetString("CLAUDE_BASE_URL"),
		ClaudeModel:   viper.GetString("CLAUDE_MODEL"),

		BinanceAPIKey:    viper.GetString("BINANCE_API_KEY"),
		BinanceAPISecret: viper.GetString("BINANCE_API_SECRET"),
		BinanceTestMode:  viper.GetBool("BINANCE_TEST_MODE"),
		BinanceProxy:     viper.GetString("BINANCE_PROXY"),

		TelegramBotToken: viper.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   viper.GetString("TELEGRAM_CHAT_ID"),

		HeartbeatIntervalS:  viper.GetInt("HEARTBEAT_INTERVAL_SECONDS"),
		MonitorIntervalMins: viper.GetInt("MONITOR_INTERVAL_MINUTES"),
		CryptoLookbackDays:  viper.GetInt("CRYPTO_LOOKBACK_DAYS"),
		DynamicConfigPath:   viper.GetString("DYNAMIC_CONFIG_PATH"),
	}

	cfg.PrimarySymbols = splitSymbols(viper.GetString("PRIMARY_SYMBOLS"), []string{"BTCUSDT", "ETHUSDT"})
	cfg.SecondarySymbols = splitSymbols(viper.GetString("SECONDARY_SYMBOLS"), nil)

	if dyn, err := loadDynamicConfig(cfg.DynamicConfigPath); err == nil && dyn != nil {
		if len(dyn.PrimarySymbols) > 0 {
			cfg.PrimarySymbols = dyn.PrimarySymbols
		}
		if len(dyn.SecondarySymbols) > 0 {
			cfg.SecondarySymbols = dyn.SecondarySymbols
		}
		if dyn.HeartbeatIntervalS > 0 {
			cfg.HeartbeatIntervalS = dyn.HeartbeatIntervalS
		}
	}

	return cfg, nil
}

func splitSymbols(raw string, fallback []string) []string {
	if strings.TrimSpace(raw) == constant.BlankStr {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != constant.BlankStr {
			out = append(out, p)
		}
	}
	return out
}

func setDefaults() {
	viper.SetDefault("DATABASE_PATH", "./data/sentinel.db")
	viper.SetDefault("DEBUG_MODE", false)

	viper.SetDefault("DOUBAO_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
	viper.SetDefault("DOUBAO_MODEL", "doubao-pro-32k")
	viper.SetDefault("CLAUDE_BASE_URL", "https://api.anthropic.com/v1")
	viper.SetDefault("CLAUDE_MODEL", "claude-3-5-sonnet-20241022")

	viper.SetDefault("BINANCE_TEST_MODE", true)

	viper.SetDefault("HEARTBEAT_INTERVAL_SECONDS", 300)
	viper.SetDefault("MONITOR_INTERVAL_MINUTES", 30)
	viper.SetDefault("CRYPTO_LOOKBACK_DAYS", 10)
	viper.SetDefault("DYNAMIC_CONFIG_PATH", "./data/dynamic_config.json")
}

// SaveDynamicConfig persists the mutable subset of configuration so it
// survives a restart, mirroring config_manager.save_dynamic_config in the
// original controller.
func SaveDynamicConfig(path string, dyn DynamicConfig) error {
	data, err := json.MarshalIndent(dyn, constant.BlankStr, "  ")
	if err != nil {
		return fmt.Errorf("marshal dynamic config: %w", err)
	}
	if dir := filepath.Dir(path); dir != constant.BlankStr {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dynamic config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func loadDynamicConfig(path string) (*DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var dyn DynamicConfig
	if err := json.Unmarshal(data, &dyn); err != nil {
		return nil, fmt.Errorf("unmarshal dynamic config: %w", err)
	}
	return &dyn, nil
}

// Validate checks the configuration is usable enough to start.
func (c *Config) Validate() error {
	if c.DoubaoAPIKey == constant.BlankStr && c.ClaudeAPIKey == constant.BlankStr {
		return fmt.Errorf("at least one of DOUBAO_API_KEY or CLAUDE_API_KEY is required")
	}
	if c.TelegramBotToken == constant.BlankStr {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}
