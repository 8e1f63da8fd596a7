// This program runs one replicated append-only ledger node: it exposes the
// HTTP API described by the spec, mines proof-of-work blocks from admitted
// transactions, and gossips/reconciles with its peers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tracechain/ledger/app/services/ledgernode/handlers"
	"github.com/tracechain/ledger/foundation/blockchain/keystore"
	"github.com/tracechain/ledger/foundation/blockchain/mempool"
	"github.com/tracechain/ledger/foundation/blockchain/peer"
	"github.com/tracechain/ledger/foundation/blockchain/state"
	"github.com/tracechain/ledger/foundation/blockchain/worker"
	"github.com/tracechain/ledger/foundation/events"
	"github.com/tracechain/ledger/foundation/logger"
	"github.com/ardanlabs/conf/v3"
	"go.uber.org/zap"
)

// build is the git version of this program, set at build time with
// -ldflags "-X main.build=...".
var build = "develop"

func main() {
	log, err := logger.New("LEDGERNODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:10s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:30s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			APIHost         string        `conf:"default:0.0.0.0:9000"`
			Port            int           `conf:"default:9000,env:PORT,flag:port"`
			CORSOrigin      string        `conf:"default:*"`
		}
		Node struct {
			Difficulty        int           `conf:"default:2,env:DIFFICULTY,flag:difficulty"`
			DBPath            string        `conf:"default:zblock/blockchain,flag:db"`
			Bootstrap         string        `conf:"default:,env:BOOTSTRAP,flag:bootstrap"`
			KeysDir           string        `conf:"default:zblock/keys,env:KEYS_DIR"`
			RequireSignatures bool          `conf:"default:true"`
			MempoolThreshold  int           `conf:"default:10"`
			MempoolHardCap    int           `conf:"default:500"`
			MaxBlockTxs       int           `conf:"default:50"`
			KnownPeers        []string      `conf:"default:"`
			MineInterval      time.Duration `conf:"default:60s"`
			HealthInterval    time.Duration `conf:"default:30s"`
			SyncInterval      time.Duration `conf:"default:45s"`
			ValidateInterval  time.Duration `conf:"default:20s"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "replicated append-only supply-chain ledger node",
		},
	}

	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Web.Port != 9000 {
		cfg.Web.APIHost = fmt.Sprintf("0.0.0.0:%d", cfg.Web.Port)
	}

	// KEYS_DIR, per §6 of the spec, is read without the NODE_ prefix the
	// rest of this service's environment variables carry.
	if dir := os.Getenv("KEYS_DIR"); dir != "" {
		cfg.Node.KeysDir = dir
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Keystore

	ks, err := keystore.Load(cfg.Node.KeysDir)
	if err != nil {
		return fmt.Errorf("loading keystore: %w", err)
	}
	log.Infow("startup", "status", "keystore loaded", "dir", cfg.Node.KeysDir, "actors", ks.Copy())

	// =========================================================================
	// Ledger State

	knownPeers := peer.NewPeerSet()
	for _, host := range cfg.Node.KnownPeers {
		if host == "" {
			continue
		}
		knownPeers.Add(peer.New(host))
	}

	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	st, err := state.New(state.Config{
		Host:              cfg.Web.APIHost,
		DBPath:            cfg.Node.DBPath,
		Difficulty:        cfg.Node.Difficulty,
		RequireSignatures: cfg.Node.RequireSignatures,
		MaxBlockTxs:       cfg.Node.MaxBlockTxs,
		MempoolConfig: mempool.Config{
			Threshold: cfg.Node.MempoolThreshold,
			HardCap:   cfg.Node.MempoolHardCap,
		},
		KnownPeers: knownPeers,
		Keystore:   ks,
		EvHandler:  ev,
	})
	if err != nil {
		return fmt.Errorf("constructing ledger state: %w", err)
	}
	defer st.Shutdown()

	if valid, msg := st.Valid(); !valid {
		log.Warnw("startup", "status", "local chain failed validation at load, waiting on auto-heal", "message", msg)
	}

	worker.Run(st, worker.Config{
		MineInterval:     cfg.Node.MineInterval,
		HealthInterval:   cfg.Node.HealthInterval,
		SyncInterval:     cfg.Node.SyncInterval,
		ValidateInterval: cfg.Node.ValidateInterval,
	}, ev)

	if cfg.Node.Bootstrap != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := st.Bootstrap(ctx, cfg.Node.Bootstrap); err != nil {
			log.Warnw("startup", "status", "bootstrap join incomplete", "ERROR", err)
		}
		cancel()
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	debugMux := handlers.DebugMux(build, log, st)
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	log.Infow("startup", "status", "initializing API support")

	apiMux := handlers.APIMux(handlers.APIMuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Evts:     evts,
		Origin:   cfg.Web.CORSOrigin,
	})

	api := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      apiMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		evts.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop api service gracefully: %w", err)
		}
	}

	return nil
}
