// Package config loads the paywalld configuration from YAML, .env files
// and environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	paywall "github.com/lalitcap23/pay-per-api"
	"github.com/lalitcap23/pay-per-api/ledger/solana"
)

// Defaults
const (
	DefaultListen         = ":3000"
	DefaultBaseURL        = "http://localhost:3000"
	DefaultRouter         = "gin"
	DefaultFacilitatorURL = "https://facilitator.corbits.dev"
	DefaultLedgerTimeout  = "10s"
	DefaultCacheTTL       = "10m"
	DefaultTokenMaxSize   = 10000
)

// Config represents the complete paywalld configuration
type Config struct {
	Server     ServerConfig             `yaml:"server"`
	Ledger     LedgerConfig             `yaml:"ledger"`
	Tokens     TokensConfig             `yaml:"tokens"`
	Redemption RedemptionConfig         `yaml:"redemption"`
	Payment    PaymentConfig            `yaml:"payment"`
	Logging    LoggingConfig            `yaml:"logging"`
	Resources  []paywall.ResourceConfig `yaml:"resources"`
}

// ServerConfig holds listener configuration
type ServerConfig struct {
	Listen string `yaml:"listen"`
	// BaseURL is the public URL used in usage hints
	BaseURL string `yaml:"base_url"`
	// Router is one of gin, echo, std
	Router string `yaml:"router"`
	// MCP mounts the MCP SSE endpoint at /mcp
	MCP bool `yaml:"mcp"`
}

// LedgerConfig holds Solana RPC and verification settings
type LedgerConfig struct {
	Network    string `yaml:"network"`
	RPCURL     string `yaml:"rpc_url"`
	Commitment string `yaml:"commitment"`
	// VerificationMode is deep or light
	VerificationMode string `yaml:"verification_mode"`
	// Tolerance is the shortfall accepted, in base units
	Tolerance uint64 `yaml:"tolerance"`

	Timeout  time.Duration `yaml:"-"`
	CacheTTL time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TimeoutRaw  string `yaml:"timeout"`
	CacheTTLRaw string `yaml:"cache_ttl"`
}

// TokensConfig holds token store settings
type TokensConfig struct {
	Policy  string        `yaml:"policy"`
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"-"`
	TTLRaw  string        `yaml:"ttl"`
}

// RedemptionConfig selects where redeemed references are recorded
type RedemptionConfig struct {
	// Backend is memory or sqlite
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// PaymentConfig holds defaults inherited by every resource
type PaymentConfig struct {
	Recipient      string        `yaml:"recipient"`
	Asset          string        `yaml:"asset"`
	FacilitatorURL string        `yaml:"facilitator_url"`
	PaymentTTL     time.Duration `yaml:"-"`
	PaymentTTLRaw  string        `yaml:"payment_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration: two resources on devnet
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:  DefaultListen,
			BaseURL: DefaultBaseURL,
			Router:  DefaultRouter,
			MCP:     true,
		},
		Ledger: LedgerConfig{
			Network:          solana.NetworkDevnet,
			Commitment:       "confirmed",
			VerificationMode: string(paywall.VerificationModeDeep),
			TimeoutRaw:       DefaultLedgerTimeout,
			CacheTTLRaw:      DefaultCacheTTL,
		},
		Tokens: TokensConfig{
			Policy:  string(paywall.TokenPolicySingleUse),
			MaxSize: DefaultTokenMaxSize,
		},
		Redemption: RedemptionConfig{
			Backend: "memory",
		},
		Payment: PaymentConfig{
			FacilitatorURL: DefaultFacilitatorURL,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Resources: []paywall.ResourceConfig{
			{
				Name:        "jokes",
				Path:        "/api/jokes",
				Description: "Premium dad joke API",
				Price:       paywall.Price{Amount: 100, Token: "USDC"},
			},
			{
				Name:        "quotes",
				Path:        "/api/quotes",
				Description: "Premium programming quotes",
				Price:       paywall.Price{Amount: 200, Token: "USDC"},
			},
		},
	}
}

// LoadDotEnv loads .env files into the environment. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads a configuration file over the defaults. An empty path uses the
// defaults alone. Environment variables in the format ${VAR_NAME} are
// expanded, then the well-known variables override the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or empty
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// applyEnv overrides the file with well-known environment variables
func applyEnv(cfg *Config) {
	set := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	set("PAYWALL_LISTEN", &cfg.Server.Listen)
	set("PAYWALL_BASE_URL", &cfg.Server.BaseURL)
	set("PAYWALL_ROUTER", &cfg.Server.Router)
	set("SOLANA_RPC_URL", &cfg.Ledger.RPCURL)
	set("SOLANA_NETWORK", &cfg.Ledger.Network)
	set("VERIFICATION_MODE", &cfg.Ledger.VerificationMode)
	set("PAYWALL_RECIPIENT", &cfg.Payment.Recipient)
	set("PAYWALL_ASSET", &cfg.Payment.Asset)
	set("TOKEN_POLICY", &cfg.Tokens.Policy)
	set("LOG_LEVEL", &cfg.Logging.Level)
	set("LOG_FORMAT", &cfg.Logging.Format)

	if v := os.Getenv("REDEMPTION_DB"); v != "" {
		cfg.Redemption.Backend = "sqlite"
		cfg.Redemption.Path = v
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"ledger.timeout", cfg.Ledger.TimeoutRaw, &cfg.Ledger.Timeout},
		{"ledger.cache_ttl", cfg.Ledger.CacheTTLRaw, &cfg.Ledger.CacheTTL},
		{"tokens.ttl", cfg.Tokens.TTLRaw, &cfg.Tokens.TTL},
		{"payment.payment_ttl", cfg.Payment.PaymentTTLRaw, &cfg.Payment.PaymentTTL},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// resolve fills network defaults and pushes payment defaults into resources
func (c *Config) resolve() error {
	network, err := solana.GetNetworkConfig(c.Ledger.Network)
	if err != nil {
		return fmt.Errorf("validating config: ledger.network: %w", err)
	}
	c.Ledger.Network = network.Name
	if c.Ledger.RPCURL == "" {
		c.Ledger.RPCURL = network.RPCURL
	}
	if c.Payment.Asset == "" {
		c.Payment.Asset = network.USDCMint
	}

	for i := range c.Resources {
		r := &c.Resources[i]
		if r.Asset == "" {
			r.Asset = c.Payment.Asset
		}
		if r.Recipient == "" {
			r.Recipient = c.Payment.Recipient
		}
		if r.Network == "" {
			r.Network = paywall.Network(c.Ledger.Network)
		}
		if r.FacilitatorURL == "" {
			r.FacilitatorURL = c.Payment.FacilitatorURL
		}
		if r.PaymentTTL == 0 {
			r.PaymentTTL = c.Payment.PaymentTTL
		}
		if r.Price.Token == "" {
			r.Price.Token = "USDC"
		}
	}
	return nil
}

// Validate checks the settings the server cannot start without.
// Resource pricing is not checked here; a misconfigured resource is
// still mounted and answers every request with a configuration error.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	switch c.Server.Router {
	case "gin", "echo", "std":
	default:
		return fmt.Errorf("server.router must be gin, echo or std, got %q", c.Server.Router)
	}
	if _, err := c.VerificationMode(); err != nil {
		return fmt.Errorf("ledger.verification_mode: %w", err)
	}
	if _, err := c.TokenPolicy(); err != nil {
		return fmt.Errorf("tokens.policy: %w", err)
	}
	if c.Tokens.MaxSize < 0 {
		return fmt.Errorf("tokens.max_size must not be negative")
	}

	switch c.Redemption.Backend {
	case "memory":
	case "sqlite":
		if c.Redemption.Path == "" {
			return fmt.Errorf("redemption.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("redemption.backend must be memory or sqlite, got %q", c.Redemption.Backend)
	}

	if len(c.Resources) == 0 {
		return fmt.Errorf("at least one resource is required")
	}
	names := make(map[string]bool)
	paths := make(map[string]bool)
	for i, r := range c.Resources {
		if r.Name == "" {
			return fmt.Errorf("resources[%d].name is required", i)
		}
		if !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("resources[%d].path must start with /", i)
		}
		if names[r.Name] || paths[r.Path] {
			return fmt.Errorf("resources[%d] duplicates %q", i, r.Name)
		}
		names[r.Name] = true
		paths[r.Path] = true
	}
	return nil
}

// VerificationMode returns the parsed ledger.verification_mode
func (c *Config) VerificationMode() (paywall.VerificationMode, error) {
	return paywall.ParseVerificationMode(c.Ledger.VerificationMode)
}

// TokenPolicy returns the parsed tokens.policy
func (c *Config) TokenPolicy() (paywall.TokenPolicy, error) {
	return paywall.ParseTokenPolicy(c.Tokens.Policy)
}

// NewLogger builds a slog logger writing to w
func (l LoggingConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(l.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("logging.format must be text or json, got %q", l.Format)
	}
}
