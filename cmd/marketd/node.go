package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"marketledger/config"
	"marketledger/core/events"
	"marketledger/core/state"
	"marketledger/crypto"
	"marketledger/indexer"
	"marketledger/native/market"
	"marketledger/observability"
	"marketledger/observability/logging"
	"marketledger/rpc"
	"marketledger/rpc/modules"
	"marketledger/storage"
)

// node owns the long-lived resources behind the daemon.
type node struct {
	db      storage.Database
	state   *state.Manager
	indexer *indexer.Indexer
	engine  *market.Engine
	server  *rpc.Server
}

type passphraseFunc func() (string, error)

func openNode(cfg *config.Config, logger *slog.Logger, allowMigrate bool, passphrase passphraseFunc) (_ *node, err error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare data directory: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	n := &node{db: db}
	defer func() {
		if err != nil {
			n.Close()
		}
	}()

	n.state = state.NewManager(db, cfg.StateRent())
	if err := n.state.EnsureStateVersion(allowMigrate); err != nil {
		return nil, err
	}
	genesis, err := cfg.GenesisAccounts()
	if err != nil {
		return nil, err
	}
	applied, err := n.state.ApplyGenesis(genesis)
	if err != nil {
		return nil, fmt.Errorf("apply genesis: %w", err)
	}
	if applied {
		logger.Info("genesis applied", slog.Int("accounts", len(genesis)))
	}

	ixDB, err := indexer.Open(cfg.Indexer.DSN)
	if err != nil {
		return nil, fmt.Errorf("open event indexer: %w", err)
	}
	n.indexer, err = indexer.New(ixDB, logger.With(slog.String("module", "indexer")))
	if err != nil {
		return nil, fmt.Errorf("migrate event indexer: %w", err)
	}

	n.engine = market.NewEngine(n.state)
	n.engine.SetLogger(logger.With(slog.String("module", "market")))
	n.engine.SetMetrics(observability.Market())
	hub := rpc.NewEventHub()
	n.engine.SetEmitter(events.Fanout{n.indexer, hub})

	if cfg.Market.Bootstrap {
		if err := bootstrapMarket(n.engine, cfg, logger, passphrase); err != nil {
			return nil, err
		}
	}

	jwtCfg := rpc.JWTConfig{Issuer: cfg.RPC.JWTIssuer, ClockSkew: time.Minute}
	if secret, err := cfg.ResolveJWTSecret(); err != nil {
		logger.Warn("no JWT secret configured; mutating RPC methods are disabled")
	} else {
		jwtCfg.Secret = []byte(secret)
		logger.Info("rpc bearer authentication enabled",
			slog.String("issuer", cfg.RPC.JWTIssuer),
			logging.MaskField("jwt_secret", secret))
	}
	n.server = rpc.NewServer(modules.NewMarketModule(n.engine), modules.NewEventsModule(n.indexer), rpc.ServerConfig{
		JWT:               jwtCfg,
		RequestsPerMinute: cfg.RPC.RequestsPerMinute,
		Burst:             cfg.RPC.Burst,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		Logger:            logger.With(slog.String("module", "rpc")),
		Hub:               hub,
		Tracing:           cfg.Telemetry.Enabled,
	})
	return n, nil
}

// bootstrapMarket creates the marketplace singletons on first start. The
// operator must be able to unlock the authority keystore.
func bootstrapMarket(engine *market.Engine, cfg *config.Config, logger *slog.Logger, passphrase passphraseFunc) error {
	if _, err := engine.Config(); err == nil {
		return nil
	} else if !errors.Is(err, market.ErrConfigNotInitialized) && !errors.Is(err, market.ErrRecordNotFound) {
		return fmt.Errorf("read market config: %w", err)
	}
	pass := ""
	if strings.TrimSpace(cfg.AuthorityPassphraseEnv) != "" && passphrase != nil {
		var err error
		if pass, err = passphrase(); err != nil {
			return err
		}
	}
	key, err := crypto.LoadFromKeystore(cfg.AuthorityKeystorePath, pass)
	if err != nil {
		return fmt.Errorf("unlock authority keystore: %w", err)
	}
	mcfg, err := engine.InitializeConfig(key.Address(), cfg.Market.FeeBps)
	if err != nil {
		return fmt.Errorf("initialize market config: %w", err)
	}
	logger.Info("market config initialized",
		slog.String("authority", mcfg.Authority.Hex()),
		slog.Int("fee_bps", int(mcfg.FeeBps)))
	return nil
}

func (n *node) Close() {
	if n == nil {
		return
	}
	if n.indexer != nil {
		_ = n.indexer.Close()
	}
	if n.db != nil {
		n.db.Close()
	}
}
