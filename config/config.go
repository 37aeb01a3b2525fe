package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"marketledger/core/state"
	"marketledger/crypto"

	"github.com/BurntSushi/toml"
)

const (
	defaultRPCAddress        = ":8545"
	defaultDataDir           = "./market-data"
	defaultRequestsPerMinute = 600
	defaultBurst             = 60
	defaultFeeBps            = 250
	defaultAuthorityBalance  = 1_000_000_000_000
)

type Config struct {
	RPCAddress             string          `toml:"RPCAddress"`
	DataDir                string          `toml:"DataDir"`
	AuthorityKeystorePath  string          `toml:"AuthorityKeystorePath"`
	AuthorityPassphraseEnv string          `toml:"AuthorityPassphraseEnv"`
	Log                    LogConfig       `toml:"Log"`
	RPC                    RPCConfig       `toml:"RPC"`
	Telemetry              TelemetryConfig `toml:"Telemetry"`
	Rent                   RentConfig      `toml:"Rent"`
	Indexer                IndexerConfig   `toml:"Indexer"`
	Market                 MarketConfig    `toml:"Market"`
	Genesis                GenesisConfig   `toml:"Genesis"`
}

// Load loads the configuration from the given path. A missing file is
// replaced by a default configuration with a freshly generated authority key.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0].String())
	}

	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaultRPCAddress
	}
	if c.RPC.RequestsPerMinute == 0 {
		c.RPC.RequestsPerMinute = defaultRequestsPerMinute
	}
	if c.RPC.Burst == 0 {
		c.RPC.Burst = defaultBurst
	}
	if c.Rent.LamportsPerByteYear == 0 {
		c.Rent.LamportsPerByteYear = state.DefaultLamportsPerByteYear
	}
	if c.Rent.ExemptionThreshold == 0 {
		c.Rent.ExemptionThreshold = state.DefaultExemptionThreshold
	}
	if strings.TrimSpace(c.Indexer.DSN) == "" && c.DataDir != "" {
		c.Indexer.DSN = filepath.Join(c.DataDir, "events.db")
	}
}

// StateRent converts the rent section into the ledger's deposit schedule.
func (c *Config) StateRent() state.Rent {
	return state.Rent{
		LamportsPerByteYear: c.Rent.LamportsPerByteYear,
		ExemptionThreshold:  c.Rent.ExemptionThreshold,
	}
}

// ResolveJWTSecret returns the RPC signing secret, preferring the environment
// variable named by JWTSecretEnv.
func (c *Config) ResolveJWTSecret() (string, error) {
	if env := strings.TrimSpace(c.RPC.JWTSecretEnv); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v, nil
		}
	}
	if secret := strings.TrimSpace(c.RPC.JWTSecret); secret != "" {
		return secret, nil
	}
	return "", fmt.Errorf("rpc: no JWT secret configured")
}

// TelemetryEndpoint returns the OTLP collector endpoint and raw header list,
// letting the standard OTEL_EXPORTER_OTLP_* variables override the file.
func (c *Config) TelemetryEndpoint() (endpoint, headers string) {
	endpoint = strings.TrimSpace(c.Telemetry.Endpoint)
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		endpoint = v
	}
	headers = c.Telemetry.Headers
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")); v != "" {
		headers = v
	}
	return endpoint, headers
}

// GenesisAccounts parses the genesis allocations.
func (c *Config) GenesisAccounts() ([]state.GenesisAccount, error) {
	out := make([]state.GenesisAccount, 0, len(c.Genesis.Accounts))
	for i, acc := range c.Genesis.Accounts {
		addr, err := crypto.ParseAddress(strings.TrimSpace(acc.Address))
		if err != nil {
			return nil, fmt.Errorf("genesis account %d: %w", i, err)
		}
		out = append(out, state.GenesisAccount{Address: addr, Balance: acc.Balance})
	}
	return out, nil
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.AuthorityKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.AuthorityKeystorePath != keystorePath {
		cfg.AuthorityKeystorePath = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file. The new
// authority key is credited in genesis so it can pay for the marketplace
// singletons.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:            defaultRPCAddress,
		DataDir:               defaultDataDir,
		AuthorityKeystorePath: keystorePath,
		Log:                   LogConfig{Level: "info"},
		RPC: RPCConfig{
			JWTSecretEnv:      "MARKET_RPC_JWT_SECRET",
			JWTIssuer:         "marketd",
			RequestsPerMinute: defaultRequestsPerMinute,
			Burst:             defaultBurst,
		},
		Rent: RentConfig{
			LamportsPerByteYear: state.DefaultLamportsPerByteYear,
			ExemptionThreshold:  state.DefaultExemptionThreshold,
		},
		Market: MarketConfig{Bootstrap: true, FeeBps: defaultFeeBps},
		Genesis: GenesisConfig{Accounts: []GenesisAccount{{
			Address: key.Address().Hex(),
			Balance: defaultAuthorityBalance,
		}}},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "authority.keystore")
}
