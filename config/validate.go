package config

import (
	"fmt"
	"strings"
)

var (
	// MaxFeeRateBps caps the configurable settlement fee rate at 10%.
	MaxFeeRateBps = uint32(1_000)
	// DefaultFeeRateBps seeds deployments that leave genesis.FeeRateBps unset.
	DefaultFeeRateBps = uint32(200)
)

// ValidateConfig rejects configurations the daemon cannot safely start with.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		return fmt.Errorf("rpc: RPCAddress must not be empty")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("storage: DataDir must not be empty")
	}
	if cfg.ChainID == 0 {
		return fmt.Errorf("chain: ChainID must be non-zero")
	}
	if cfg.EventBacklog < 0 {
		return fmt.Errorf("events: EventBacklog must not be negative")
	}
	if cfg.Genesis.FeeRateBps > MaxFeeRateBps {
		return fmt.Errorf("genesis: FeeRateBps %d exceeds maximum %d", cfg.Genesis.FeeRateBps, MaxFeeRateBps)
	}
	return nil
}
