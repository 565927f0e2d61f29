package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Liquidity predicates accepted by LIQUIDITY.
const (
	LiquidityAny      = "any"
	LiquidityCovering = "covering"
)

// Config holds all runtime configuration for the trading core.
type Config struct {
	Port     int
	LogLevel string

	StoreDriver string
	SQLitePath  string

	TWAPSlices int
	TWAPWindow time.Duration
	Liquidity  string

	SeedFile string

	AlpacaAPIKey         string
	AlpacaAPISecret      string
	AlpacaDataURL        string
	AlpacaFeed           string
	QuoteRefreshInterval time.Duration // 0 disables periodic refresh

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// HasAlpaca reports whether upstream market-data credentials are set.
func (c *Config) HasAlpaca() bool {
	return c.AlpacaAPIKey != "" && c.AlpacaAPISecret != ""
}

// LoadDotEnv loads variables from the given .env files (".env" when none
// are named) without overriding ones already set. Missing files are
// skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	storeDriver := getStr("STORE_DRIVER", StoreMemory)
	if storeDriver != StoreMemory && storeDriver != StoreSQLite {
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q, must be one of: memory, sqlite", storeDriver)
	}

	twapSlices, err := getInt("TWAP_SLICES", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid TWAP_SLICES: %w", err)
	}
	if twapSlices < 1 {
		return nil, fmt.Errorf("invalid TWAP_SLICES: %d, must be >= 1", twapSlices)
	}

	twapWindow, err := getDuration("TWAP_WINDOW", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid TWAP_WINDOW: %w", err)
	}
	if twapWindow <= 0 {
		return nil, fmt.Errorf("invalid TWAP_WINDOW: %s, must be positive", twapWindow)
	}

	liquidity := getStr("LIQUIDITY", LiquidityAny)
	if liquidity != LiquidityAny && liquidity != LiquidityCovering {
		return nil, fmt.Errorf("invalid LIQUIDITY: %q, must be one of: any, covering", liquidity)
	}

	refreshInterval, err := getDuration("QUOTE_REFRESH_INTERVAL", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid QUOTE_REFRESH_INTERVAL: %w", err)
	}
	if refreshInterval < 0 {
		return nil, fmt.Errorf("invalid QUOTE_REFRESH_INTERVAL: %s, must not be negative", refreshInterval)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:                 port,
		LogLevel:             logLevel,
		StoreDriver:          storeDriver,
		SQLitePath:           getStr("SQLITE_PATH", "tradecore.db"),
		TWAPSlices:           twapSlices,
		TWAPWindow:           twapWindow,
		Liquidity:            liquidity,
		SeedFile:             os.Getenv("SEED_FILE"),
		AlpacaAPIKey:         firstSet("APCA_API_KEY_ID", "ALPACA_API_KEY"),
		AlpacaAPISecret:      firstSet("APCA_API_SECRET_KEY", "ALPACA_API_SECRET"),
		AlpacaDataURL:        os.Getenv("ALPACA_DATA_URL"),
		AlpacaFeed:           getStr("ALPACA_FEED", "iex"),
		QuoteRefreshInterval: refreshInterval,
		ReadTimeout:          readTimeout,
		WriteTimeout:         writeTimeout,
		IdleTimeout:          idleTimeout,
		ShutdownTimeout:      shutdownTimeout,
	}, nil
}

// firstSet returns the value of the first non-empty variable in keys.
// The SDK's canonical APCA_* names win over the ALPACA_* aliases.
func firstSet(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
