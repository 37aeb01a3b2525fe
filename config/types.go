package config

// LogConfig selects the log level and an optional rotating log file.
type LogConfig struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
}

// RPCConfig secures and throttles the JSON-RPC endpoint. Callers present an
// HS256 token signed with JWTSecret whose subject is their address.
type RPCConfig struct {
	JWTSecret         string  `toml:"JWTSecret"`
	JWTSecretEnv      string  `toml:"JWTSecretEnv"`
	JWTIssuer         string  `toml:"JWTIssuer"`
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// TelemetryConfig exports traces and HTTP metrics over OTLP/HTTP. The
// OTEL_EXPORTER_OTLP_ENDPOINT and OTEL_EXPORTER_OTLP_HEADERS environment
// variables take precedence over Endpoint and Headers.
type TelemetryConfig struct {
	Enabled  bool   `toml:"Enabled"`
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
}

// RentConfig overrides the storage deposit schedule.
type RentConfig struct {
	LamportsPerByteYear uint64 `toml:"LamportsPerByteYear"`
	ExemptionThreshold  uint64 `toml:"ExemptionThreshold"`
}

// IndexerConfig points the event journal at a database. A postgres:// or
// postgresql:// DSN selects postgres; anything else is a sqlite path.
type IndexerConfig struct {
	DSN string `toml:"DSN"`
}

// MarketConfig bootstraps the marketplace singletons on first start.
type MarketConfig struct {
	Bootstrap bool   `toml:"Bootstrap"`
	FeeBps    uint16 `toml:"FeeBps"`
}

// GenesisAccount is one initial native balance. Address accepts 0x-hex or
// bech32.
type GenesisAccount struct {
	Address string `toml:"Address"`
	Balance uint64 `toml:"Balance"`
}

// GenesisConfig lists the balances credited when the ledger is created.
type GenesisConfig struct {
	Accounts []GenesisAccount `toml:"Accounts"`
}
