// Package main is the entry point of the briefly server.
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

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/diewo77/briefly/internal/config"
	"github.com/diewo77/briefly/internal/db"
	"github.com/diewo77/briefly/internal/logging"
	"github.com/diewo77/briefly/internal/store"
)

var (
	purgeOlderThan time.Duration
	cfg            *config.Config
	logger         logging.Logger
)

var rootCmd = &cobra.Command{
	Use:           "briefly",
	Short:         "Briefs, invoices and password-gated client approval pages",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load environment variables from .env file
		_ = godotenv.Load()
		cfg = config.Load()
		l, err := logging.New("briefly", cfg.Log.Level)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		conn, err := connect()
		if err != nil {
			return err
		}
		if err := db.Migrate(conn, cfg.Database.Driver, cfg.Database.DSN, cfg.Database.Migrations); err != nil {
			return err
		}
		app, err := NewApp(cfg, conn, logger)
		if err != nil {
			return err
		}
		defer app.Close()
		return serve(cmd.Context(), app)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := connect()
		if err != nil {
			return err
		}
		if err := db.Migrate(conn, cfg.Database.Driver, cfg.Database.DSN, cfg.Database.Migrations); err != nil {
			return err
		}
		logger.Info("migrations completed")
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge-attempts",
	Short: "Delete failed access attempts older than a duration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if purgeOlderThan <= 0 {
			return errors.New("--older-than must be positive")
		}
		conn, err := connect()
		if err != nil {
			return err
		}
		n, err := store.NewAttemptStore(conn).PurgeBefore(cmd.Context(), time.Now().Add(-purgeOlderThan))
		if err != nil {
			return fmt.Errorf("purge attempts: %w", err)
		}
		logger.Infow("access attempts purged", "deleted", n, "older_than", purgeOlderThan.String())
		return nil
	},
}

func init() {
	purgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 7*24*time.Hour, "age of the attempts to delete")
	rootCmd.AddCommand(serveCmd, migrateCmd, purgeCmd)
}

func connect() (*gorm.DB, error) {
	return db.Connect(db.Options{
		Driver:  cfg.Database.Driver,
		DSN:     cfg.Database.DSN,
		Debug:   cfg.Database.Debug,
		Retries: cfg.Database.Retries,
	}, logger)
}

func serve(ctx context.Context, app *App) error {
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("server starting", "port", cfg.Server.Port, "public_base_url", cfg.Server.PublicBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
