// The notifier consumes workflow notifications from Kafka and mails them to
// the users they are addressed to.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gartstein/certify/internal/certification/config"
	"github.com/gartstein/certify/internal/certification/events"
	"github.com/gartstein/certify/internal/certification/notifier"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:          "notifier",
		Short:        "Dispatch certification notifications",
		SilenceUsage: true,
		RunE:         run,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c",
		filepath.Join("internal", "certification", "config", "config.yaml"), "path to config file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if len(cfg.KafkaBrokers) == 0 {
		return errors.New("notifier: KAFKA_BROKERS is required")
	}
	dir, err := cfg.Directory()
	if err != nil {
		return err
	}

	dispatcher := notifier.NewDispatcher(dir, notifier.NewLogMailer(logger), logger)
	consumer := events.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.Topic, logger)
	consumer.RegisterHandler(dispatcher.Handle)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Notifier started",
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.Topic),
		zap.String("group", cfg.ConsumerGroup),
	)
	consumer.Start(ctx)
	<-ctx.Done()

	consumer.Close()
	logger.Info("Notifier stopped")
	return nil
}
