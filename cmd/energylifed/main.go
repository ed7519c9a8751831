package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/awaistahir/energy-life/internal/config"
	"github.com/awaistahir/energy-life/internal/engine"
	"github.com/awaistahir/energy-life/internal/log"
	"github.com/awaistahir/energy-life/internal/store"
	"github.com/awaistahir/energy-life/internal/uiapi"
	"github.com/spf13/cobra"
)

func main() {
	var port int
	var dbPath string
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:          "energylifed",
		Short:        "Energy Life HTTP API server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			level, err := log.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			log.SetDefaultLogLevel(level)

			if !cmd.Flags().Changed("port") {
				port = cfg.Port
			}
			if dbPath == "" {
				dbPath = cfg.DBPath
			}
			if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
				return err
			}

			st, err := store.NewStore(dbPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer st.Close()

			srv := uiapi.NewServer(st, engine.NewEstimator(cfg.Heuristics), cfg.Tariff)
			httpServer := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				httpServer.Shutdown(shutdownCtx)
			}()

			log.Ctx(ctx).Info("energy life server starting",
				slog.Int("port", port),
				slog.String("db", dbPath),
			)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			log.Ctx(ctx).Info("server stopped")
			return nil
		},
	}

	rootCmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP port")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "Database path")
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.energylife/config.yaml)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
