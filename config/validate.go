package config

import (
	"fmt"
	"strings"
)

// MaxFeeBps is the highest fee a marketplace may be bootstrapped with.
const MaxFeeBps = 10_000

func ValidateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("datadir: must not be empty")
	}
	if c.RPC.RequestsPerMinute <= 0 {
		return fmt.Errorf("rpc: requests_per_minute <= 0")
	}
	if c.RPC.Burst <= 0 {
		return fmt.Errorf("rpc: burst <= 0")
	}
	if c.Rent.ExemptionThreshold < 1 {
		return fmt.Errorf("rent: exemption_threshold < 1")
	}
	if c.Market.FeeBps > MaxFeeBps {
		return fmt.Errorf("market: fee_bps > %d", MaxFeeBps)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		return fmt.Errorf("log: rotation limits must not be negative")
	}
	if _, err := c.GenesisAccounts(); err != nil {
		return err
	}
	return nil
}
