package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BenjDW/maitre-slither/crypto"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultChainID identifies the local development network. Production
	// deployments override it so resolve signatures cannot cross networks.
	DefaultChainID = uint64(727001)
	// DefaultEventBacklog is the number of settlement events retained for
	// websocket subscribers that reconnect with a cursor.
	DefaultEventBacklog = 1024
)

// Config carries the settlement node runtime settings.
type Config struct {
	RPCAddress   string `toml:"RPCAddress"`
	DataDir      string `toml:"DataDir"`
	ChainID      uint64 `toml:"ChainID"`
	NetworkName  string `toml:"NetworkName"`
	KeystorePath string `toml:"KeystorePath"`
	EventBacklog int    `toml:"EventBacklog"`

	Genesis GenesisConfig `toml:"genesis"`
	Log     LogConfig     `toml:"log"`
}

// Option adjusts how Load resolves external inputs such as the keystore
// passphrase.
type Option func(*loadOptions)

type loadOptions struct {
	passphrase func() (string, error)
}

// WithKeystorePassphrase supplies a fixed passphrase for keystore
// provisioning. Tests use it; daemons should prefer
// WithKeystorePassphraseSource backed by an environment variable or prompt.
func WithKeystorePassphrase(passphrase string) Option {
	return WithKeystorePassphraseSource(func() (string, error) {
		return passphrase, nil
	})
}

// WithKeystorePassphraseSource supplies a lazy passphrase resolver invoked
// only when a keystore actually has to be created.
func WithKeystorePassphraseSource(source func() (string, error)) Option {
	return func(o *loadOptions) {
		o.passphrase = source
	}
}

// Load reads the configuration at path, creating a default file (and owner
// keystore) when none exists yet.
func Load(path string, opts ...Option) (*Config, error) {
	options := &loadOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path, options)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if err := ensureKeystore(path, cfg, options); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "msl-local"
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = DefaultChainID
	}
	if cfg.EventBacklog == 0 {
		cfg.EventBacklog = DefaultEventBacklog
	}
}

func ensureKeystore(configPath string, cfg *Config, options *loadOptions) error {
	keystorePath := cfg.KeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if err := provisionKeystore(keystorePath, options); err != nil {
		return err
	}

	if cfg.KeystorePath != keystorePath {
		cfg.KeystorePath = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file together with a
// freshly generated owner keystore.
func createDefault(path string, options *loadOptions) (*Config, error) {
	keystorePath := defaultKeystorePath(path)
	if err := provisionKeystore(keystorePath, options); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:   ":8080",
		DataDir:      "./slither-data",
		ChainID:      DefaultChainID,
		NetworkName:  "msl-local",
		KeystorePath: keystorePath,
		EventBacklog: DefaultEventBacklog,
		Genesis:      GenesisConfig{FeeRateBps: DefaultFeeRateBps},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func provisionKeystore(path string, options *loadOptions) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	if options == nil || options.passphrase == nil {
		return fmt.Errorf("config: keystore %s does not exist and no passphrase source was provided", path)
	}
	passphrase, err := options.passphrase()
	if err != nil {
		return fmt.Errorf("config: resolve keystore passphrase: %w", err)
	}
	if strings.TrimSpace(passphrase) == "" {
		return fmt.Errorf("config: keystore passphrase cannot be empty")
	}

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	return crypto.SaveToKeystore(path, key, passphrase)
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
	return filepath.Join(dir, "owner.keystore")
}
