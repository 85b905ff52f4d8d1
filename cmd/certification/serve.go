package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gartstein/certify/internal/certification/config"
	"github.com/gartstein/certify/internal/certification/controller"
	"github.com/gartstein/certify/internal/certification/db"
	"github.com/gartstein/certify/internal/certification/events"
	"github.com/gartstein/certify/internal/certification/handlers"
	"github.com/gartstein/certify/internal/certification/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC health service",
		RunE:  serveRun,
	}
}

func serveRun(_ *cobra.Command, _ []string) error {
	logger := initLogger()
	defer syncLogger(logger)

	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.Database())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close database", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	notifier, closeNotifier, err := initNotifier(cfg, logger, m)
	if err != nil {
		return err
	}
	defer closeNotifier()

	svc := controller.NewCertificationService(repo, notifier, logger, controller.WithMetrics(m))
	handler := handlers.NewCertificationHandler(svc, logger)

	server := handlers.NewServer(cfg.GRPCPort, cfg.HTTPPort, logger)
	if err := server.RegisterHTTPGateway(
		context.Background(),
		handler,
		[]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		cfg.JWTSecret,
		reg,
	); err != nil {
		return fmt.Errorf("failed to register HTTP gateway: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	return waitForShutdown(server, errCh, logger)
}

// initNotifier returns the Kafka producer, or a log notifier when no
// brokers are configured.
func initNotifier(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (controller.Notifier, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("No Kafka brokers configured, notifications will only be logged")
		return events.NewLogNotifier(logger), func() {}, nil
	}

	producer, err := events.NewProducer(cfg.KafkaBrokers, cfg.Topic, logger, events.WithProducerMetrics(m))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize Kafka producer: %w", err)
	}
	return producer, producer.Close, nil
}

// waitForShutdown blocks until an interrupt, SIGTERM or a server failure,
// then shuts the servers down.
func waitForShutdown(server *handlers.Server, errCh <-chan error, logger *zap.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	var err error
	select {
	case sig := <-stop:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err = <-errCh:
		logger.Error("Server failed", zap.Error(err))
	}

	server.Stop()
	logger.Info("Servers stopped properly")
	return err
}
