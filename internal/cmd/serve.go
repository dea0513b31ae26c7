package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aaronzipp/snake-arena/internal/config"
	"github.com/aaronzipp/snake-arena/internal/handlers"
	"github.com/aaronzipp/snake-arena/internal/identity"
	"github.com/aaronzipp/snake-arena/internal/logging"
	"github.com/aaronzipp/snake-arena/internal/persistence"
	"github.com/aaronzipp/snake-arena/internal/persistence/sqlite"
	"github.com/aaronzipp/snake-arena/internal/store"
	"github.com/aaronzipp/snake-arena/internal/telemetry"
	"github.com/aaronzipp/snake-arena/internal/ws"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the game server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the results database and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := logging.Setup(cfg.LogLevel)
		db, err := sqlite.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		logger.Info("database ready", "path", cfg.DatabasePath)
		return db.Close()
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "listen port (overrides PORT)")
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := logging.Setup(cfg.LogLevel)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	gateway := persistence.NewGateway(db, logger, cfg.PersistTimeout)
	hub := ws.NewHub(logger, cfg.CheckOrigin())

	app := &handlers.Context{
		Sessions:    store.NewSessionStore(),
		Identities:  identity.NewCache(),
		Verifier:    verifier,
		Recorder:    gateway,
		Hub:         hub,
		GracePeriod: cfg.GracePeriod,
		PublicURL:   cfg.PublicURL,
		Logger:      logger.With("component", "router"),
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "db", cfg.DatabasePath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	// hijacked websocket connections are not tracked by Shutdown
	hub.CloseAll()
	gateway.Wait()
	logger.Info("server stopped")
	return nil
}

func newVerifier(cfg config.Config) (identity.Verifier, error) {
	jwtCfg := identity.JWTConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	}
	if cfg.JWTPublicKeyFile != "" {
		pem, err := os.ReadFile(cfg.JWTPublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
		jwtCfg.PublicKeyPEM = pem
	}
	v, err := identity.NewJWTVerifier(jwtCfg)
	if err != nil {
		return nil, err
	}
	slog.Debug("token verifier ready", "rs256", len(jwtCfg.PublicKeyPEM) > 0)
	return v, nil
}
