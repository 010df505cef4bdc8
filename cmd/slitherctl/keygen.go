package main

import (
	"fmt"
	"io"
	"os"

	"github.com/BenjDW/maitre-slither/cmd/internal/passphrase"
	"github.com/BenjDW/maitre-slither/crypto"
)

func (c *controller) runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("slitherctl keygen", stderr)
	out := fs.String("out", defaultKeystore, "path for the new operator keystore")
	force := fs.Bool("force", false, "overwrite an existing keystore")
	passEnv := fs.String("pass-env", operatorPassEnv, "environment variable holding the keystore passphrase")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if !*force {
		if _, err := os.Stat(*out); err == nil {
			return printError(stderr, fmt.Sprintf("keystore %s already exists; pass --force to overwrite", *out))
		}
	}

	pass, err := passphrase.NewSource(*passEnv).Get()
	if err != nil {
		return printError(stderr, err.Error())
	}

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, fmt.Sprintf("failed to generate operator key: %v", err))
	}
	if err := crypto.SaveToKeystore(*out, key, pass); err != nil {
		return printError(stderr, fmt.Sprintf("failed to write keystore: %v", err))
	}

	// Re-open the file before reporting success so a bad write surfaces now
	// rather than at signing time.
	loaded, err := crypto.LoadFromKeystore(*out, pass)
	if err != nil {
		return printError(stderr, fmt.Sprintf("keystore verification failed: %v", err))
	}
	addr := loaded.PubKey().Address()
	fmt.Fprintf(stdout, "Generated operator key %s\n", addr.String())
	fmt.Fprintf(stdout, "Keystore written to %s\n", *out)
	return 0
}
