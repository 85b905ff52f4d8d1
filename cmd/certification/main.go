package main

import (
	"os"
	"path/filepath"

	"github.com/gartstein/certify/internal/certification/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const programName = "certification"

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Certification request approval service",
		SilenceUsage: true,
		RunE:         serveRun,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c",
		filepath.Join("internal", "certification", "config", "config.yaml"), "path to config file")

	rootCmd.AddCommand(serveCommand(), migrateCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initLogger initializes a Zap production logger.
func initLogger() *zap.Logger {
	logger, _ := zap.NewProduction()
	return logger.With(zap.String("component", programName))
}

func syncLogger(logger *zap.Logger) {
	_ = logger.Sync()
}

func loadConfig(logger *zap.Logger) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	logger.Info("Configuration loaded",
		zap.String("config", configFile),
		zap.String("db_driver", cfg.DBDriver),
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
	)
	return cfg, nil
}
