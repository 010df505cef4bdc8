package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BenjDW/maitre-slither/crypto"
)

func TestKeygenWritesLoadableKeystore(t *testing.T) {
	t.Setenv(signTestPassEnv, "keygen-pass")
	out := filepath.Join(t.TempDir(), "operator.keystore")

	ctl := &controller{}
	var stdout, stderr bytes.Buffer
	args := []string{"--out", out, "--pass-env", signTestPassEnv}
	if code := ctl.runKeygen(args, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit 0 got %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Generated operator key msl1") {
		t.Fatalf("expected generated address, got %s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "Keystore written to "+out) {
		t.Fatalf("expected keystore path, got %s", stdout.String())
	}

	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat keystore: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 keystore got %o", perm)
	}
	if _, err := crypto.LoadFromKeystore(out, "keygen-pass"); err != nil {
		t.Fatalf("generated keystore must decrypt: %v", err)
	}
}

func TestKeygenRefusesOverwriteWithoutForce(t *testing.T) {
	t.Setenv(signTestPassEnv, "keygen-pass")
	out := filepath.Join(t.TempDir(), "operator.keystore")
	if err := os.WriteFile(out, []byte("existing"), 0o600); err != nil {
		t.Fatalf("seed existing file: %v", err)
	}

	ctl := &controller{}
	var stdout, stderr bytes.Buffer
	args := []string{"--out", out, "--pass-env", signTestPassEnv}
	if code := ctl.runKeygen(args, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1 got %d", code)
	}
	if !strings.Contains(stderr.String(), "already exists") {
		t.Fatalf("expected overwrite refusal, stderr: %s", stderr.String())
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "existing" {
		t.Fatalf("existing keystore must be untouched, got %q err %v", data, err)
	}

	stdout.Reset()
	stderr.Reset()
	args = append(args, "--force")
	if code := ctl.runKeygen(args, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit 0 with --force got %d: %s", code, stderr.String())
	}
	if _, err := crypto.LoadFromKeystore(out, "keygen-pass"); err != nil {
		t.Fatalf("overwritten keystore must decrypt: %v", err)
	}
}
