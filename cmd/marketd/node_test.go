package main

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"marketledger/config"
	"marketledger/crypto"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Indexer.DSN = filepath.Join(dir, "data", "events.db")
	cfg.RPC.JWTSecret = "node-test-secret"
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenNodeBootstrapsMarket(t *testing.T) {
	cfg := testConfig(t)
	authority, err := crypto.KeystoreAddress(cfg.AuthorityKeystorePath)
	if err != nil {
		t.Fatalf("keystore address: %v", err)
	}

	n, err := openNode(cfg, quietLogger(), false, nil)
	if err != nil {
		t.Fatalf("open node: %v", err)
	}
	mcfg, err := n.engine.Config()
	if err != nil {
		t.Fatalf("market config: %v", err)
	}
	if mcfg.Authority != authority || mcfg.FeeBps != cfg.Market.FeeBps {
		t.Fatalf("unexpected market config %+v", mcfg)
	}
	balance, err := n.engine.Balance(authority)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	n.Close()

	reopened, err := openNode(cfg, quietLogger(), false, nil)
	if err != nil {
		t.Fatalf("reopen node: %v", err)
	}
	defer reopened.Close()
	again, err := reopened.engine.Balance(authority)
	if err != nil {
		t.Fatalf("balance after restart: %v", err)
	}
	if again != balance {
		t.Fatalf("genesis reapplied on restart: %d vs %d", again, balance)
	}
	if _, err := reopened.engine.Config(); err != nil {
		t.Fatalf("config lost on restart: %v", err)
	}
}

func TestOpenNodeSkipsBootstrapWhenDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Market.Bootstrap = false
	n, err := openNode(cfg, quietLogger(), false, nil)
	if err != nil {
		t.Fatalf("open node: %v", err)
	}
	defer n.Close()
	if _, err := n.engine.Config(); err == nil {
		t.Fatalf("expected config to stay uninitialised")
	}
}

func TestOpenNodeRequiresAuthorityPassphrase(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuthorityPassphraseEnv = "MARKET_TEST_AUTHORITY_PASS"
	_, err := openNode(cfg, quietLogger(), false, func() (string, error) { return "wrong", nil })
	if err == nil || !strings.Contains(err.Error(), "unlock authority keystore") {
		t.Fatalf("expected keystore unlock failure, got %v", err)
	}
}

func TestOpenNodeMasksJWTSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPC.JWTSecretEnv = ""
	var logs bytes.Buffer
	n, err := openNode(cfg, slog.New(slog.NewTextHandler(&logs, nil)), false, nil)
	if err != nil {
		t.Fatalf("open node: %v", err)
	}
	defer n.Close()
	out := logs.String()
	if strings.Contains(out, cfg.RPC.JWTSecret) {
		t.Fatalf("jwt secret written to logs: %s", out)
	}
	if !strings.Contains(out, "jwt_secret=[REDACTED]") {
		t.Fatalf("expected masked jwt_secret attribute, got %s", out)
	}
}
