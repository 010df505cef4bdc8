package config

// GenesisConfig seeds the admin registry and the settlement token book on the
// node's first start. Addresses are bech32 strings with the msl prefix. A
// blank Owner defers to the node keystore identity; blank Operator and
// Treasury fall back to the owner account.
type GenesisConfig struct {
	Owner      string            `toml:"Owner"`
	Operator   string            `toml:"Operator"`
	Treasury   string            `toml:"Treasury"`
	FeeRateBps uint32            `toml:"FeeRateBps"`
	Alloc      map[string]string `toml:"Alloc"`
}

// LogConfig controls the optional rotating file sink that mirrors the stdout
// JSON log stream. An empty File disables the sink.
type LogConfig struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}
