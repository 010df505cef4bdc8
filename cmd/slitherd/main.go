package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BenjDW/maitre-slither/cmd/internal/passphrase"
	"github.com/BenjDW/maitre-slither/config"
	"github.com/BenjDW/maitre-slither/core"
	"github.com/BenjDW/maitre-slither/crypto"
	"github.com/BenjDW/maitre-slither/observability/logging"
	"github.com/BenjDW/maitre-slither/rpc"
	"github.com/BenjDW/maitre-slither/storage"
)

const (
	ownerPassEnv = "MSL_OWNER_PASS"
	ownerKeyEnv  = "MSL_OWNER_KEY"
	rpcTokenEnv  = "MSL_RPC_TOKEN"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	allowMigrateFlag := flag.Bool("allow-migrate", false, "Allow starting with a mismatched state schema (manual migrations only)")
	flag.Parse()

	passSource := passphrase.NewSource(ownerPassEnv)

	cfg, err := config.Load(*configFile, config.WithKeystorePassphraseSource(passSource.Get))
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	env := strings.TrimSpace(os.Getenv("MSL_ENV"))
	logOpts := []logging.Option{}
	if strings.TrimSpace(cfg.Log.File) != "" {
		logOpts = append(logOpts, logging.WithRotatingFile(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays))
	}
	logger := logging.Setup("slitherd", env, logOpts...)

	ownerKey, err := resolveOwnerKey(cfg, os.LookupEnv, passSource.Get)
	if err != nil {
		panic(fmt.Sprintf("Failed to load owner key: %v", err))
	}
	ownerAddr := ownerKey.PubKey().Address()

	genesis, err := buildGenesis(cfg, addressBytes(ownerAddr))
	if err != nil {
		panic(fmt.Sprintf("Failed to resolve genesis: %v", err))
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		panic(fmt.Sprintf("Failed to prepare data directory: %v", err))
	}
	if err := writeResolvedGenesis(cfg.DataDir, genesis); err != nil {
		panic(fmt.Sprintf("Failed to write resolved genesis: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	node, err := core.NewNode(db, core.NodeConfig{
		ChainID:      cfg.ChainID,
		Genesis:      genesis,
		EventBacklog: cfg.EventBacklog,
		AllowMigrate: *allowMigrateFlag,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to create node: %v", err))
	}

	if token := strings.TrimSpace(os.Getenv(rpcTokenEnv)); token == "" {
		logger.Warn("RPC mutation auth token not set; mutating methods will be rejected",
			slog.String("variable", rpcTokenEnv))
	} else {
		logger.Info("RPC mutation auth enabled", logging.MaskField("token", token))
	}

	rpcServer := rpc.NewServer(node)
	rpcErrCh := make(chan error, 1)
	go func() {
		rpcErrCh <- rpcServer.Start(cfg.RPCAddress)
		close(rpcErrCh)
	}()

	if err := waitForRPCStartup(cfg.RPCAddress, rpcErrCh, 5*time.Second); err != nil {
		logger.Error("RPC server failed to start", slog.Any("error", err))
		os.Exit(1)
	}

	go func() {
		if err, ok := <-rpcErrCh; ok && err != nil {
			logger.Error("RPC server terminated", slog.Any("error", err))
		}
	}()

	vault := node.VaultAddress()
	logger.Info("Settlement node initialised and running",
		slog.Uint64("chainId", node.ChainID()),
		slog.String("network", cfg.NetworkName),
		slog.String("rpc", cfg.RPCAddress),
		slog.String("owner", ownerAddr.String()),
		slog.String("vault", formatAccount(vault)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("Settlement node shutting down")
}

type envLookupFunc func(string) (string, bool)

// resolveOwnerKey prefers raw key material from the environment so container
// deployments can inject the owner identity without mounting a keystore file.
// Otherwise the encrypted keystore referenced by the config is decrypted.
func resolveOwnerKey(cfg *config.Config, lookup envLookupFunc, resolvePassphrase func() (string, error)) (*crypto.PrivateKey, error) {
	if lookup != nil {
		if material, ok := lookup(ownerKeyEnv); ok && strings.TrimSpace(material) != "" {
			return parsePrivateKeyMaterial(material)
		}
	}

	if strings.TrimSpace(cfg.KeystorePath) == "" {
		return nil, fmt.Errorf("owner keystore path not configured")
	}
	if resolvePassphrase == nil {
		return nil, fmt.Errorf("owner keystore passphrase required; set %s or run interactively", ownerPassEnv)
	}

	pass, err := resolvePassphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain owner keystore passphrase: %w", err)
	}
	if strings.TrimSpace(pass) == "" {
		return nil, fmt.Errorf("owner keystore passphrase cannot be empty")
	}

	key, err := crypto.LoadFromKeystore(cfg.KeystorePath, pass)
	if err != nil {
		return nil, fmt.Errorf("unable to decrypt keystore %s: %w", cfg.KeystorePath, err)
	}
	return key, nil
}

func parsePrivateKeyMaterial(material string) (*crypto.PrivateKey, error) {
	trimmed := strings.TrimSpace(material)
	trimmed = strings.TrimPrefix(trimmed, "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("empty private key material")
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode hex private key: %w", err)
	}
	return crypto.PrivateKeyFromBytes(raw)
}

// buildGenesis parses the configured genesis section and fills blank
// identities from the owner keystore account.
func buildGenesis(cfg *config.Config, owner [20]byte) (core.Genesis, error) {
	spec, err := cfg.Genesis.Spec()
	if err != nil {
		return core.Genesis{}, err
	}
	spec = spec.WithDefaultOwner(owner)

	genesis := core.Genesis{
		Owner:      spec.Owner,
		Operator:   spec.Operator,
		Treasury:   spec.Treasury,
		FeeRateBps: spec.FeeRateBps,
	}
	for _, entry := range spec.Alloc {
		genesis.Alloc = append(genesis.Alloc, core.GenesisAccount{Account: entry.Account, Balance: entry.Balance})
	}
	return genesis, nil
}

type resolvedGenesis struct {
	Owner      string            `json:"owner"`
	Operator   string            `json:"operator"`
	Treasury   string            `json:"treasury"`
	FeeRateBps uint32            `json:"feeRateBps"`
	Alloc      map[string]string `json:"alloc,omitempty"`
}

// writeResolvedGenesis records the identities this boot resolved to. The node
// only applies them on a fresh database, but the artifact gives operators a
// durable record of what the config produced.
func writeResolvedGenesis(dataDir string, genesis core.Genesis) error {
	resolved := resolvedGenesis{
		Owner:      formatAccount(genesis.Owner),
		Operator:   formatAccount(genesis.Operator),
		Treasury:   formatAccount(genesis.Treasury),
		FeeRateBps: genesis.FeeRateBps,
	}
	if len(genesis.Alloc) > 0 {
		resolved.Alloc = make(map[string]string, len(genesis.Alloc))
		for _, entry := range genesis.Alloc {
			resolved.Alloc[formatAccount(entry.Account)] = entry.Balance.String()
		}
	}

	data, err := json.MarshalIndent(resolved, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, "genesis.resolved.json"), data, 0o644)
}

func formatAccount(account [20]byte) string {
	return crypto.MustNewAddress(crypto.MSLPrefix, account[:]).String()
}

func addressBytes(addr crypto.Address) [20]byte {
	var out [20]byte
	copy(out[:], addr.Bytes())
	return out
}

func waitForRPCStartup(addr string, errCh <-chan error, timeout time.Duration) error {
	dialAddr := dialAddressFor(addr)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		conn, err := net.DialTimeout("tcp", dialAddr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case err, ok := <-errCh:
			if !ok || err == nil {
				return fmt.Errorf("RPC server exited before startup confirmation")
			}
			return err
		case <-ticker.C:
		case <-deadline.C:
			return fmt.Errorf("timed out waiting for RPC server to start on %s", addr)
		}
	}
}

func dialAddressFor(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
