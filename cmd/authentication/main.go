// The authentication service issues the JWTs the certification service
// accepts, checking credentials against the configured user directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gartstein/certify/internal/certification/auth"
	"github.com/gartstein/certify/internal/certification/config"
	"github.com/gartstein/certify/internal/certification/directory"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:          "authentication",
		Short:        "Token service for the certification API",
		SilenceUsage: true,
		RunE:         serveRun,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c",
		filepath.Join("internal", "certification", "config", "config.yaml"), "path to config file")
	rootCmd.AddCommand(hashCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func hashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash PASSWORD",
		Short: "Print the bcrypt hash of PASSWORD for the user directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := directory.HashPassword(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}

func serveRun(_ *cobra.Command, _ []string) error {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	dir, err := cfg.Directory()
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/token", auth.TokenHandler(dir, cfg.JWTSecret, cfg.TokenTTL, logger))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AuthPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Authentication service running", zap.String("endpoint", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("HTTP serve error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
