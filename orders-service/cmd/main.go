package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	ordersgrpc "github.com/Shreyas-s47/cloudykitchen/orders-service/internal/grpc"
	"github.com/Shreyas-s47/cloudykitchen/orders-service/internal/publisher"
	"github.com/Shreyas-s47/cloudykitchen/orders-service/internal/repository"
	"github.com/Shreyas-s47/cloudykitchen/orders-service/internal/service"
	"github.com/Shreyas-s47/cloudykitchen/pkg/config"
	"github.com/Shreyas-s47/cloudykitchen/pkg/logger"
	"github.com/Shreyas-s47/cloudykitchen/pkg/metrics"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.LoadOrders(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New("orders-service", cfg.LogLevel, cfg.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("orders-service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.OrdersConfig, log *zap.Logger) error {
	log.Info("orders-service starting", zap.String("store", cfg.Store))

	repo, err := openRepository(cfg, log)
	if err != nil {
		return err
	}
	defer repo.Close()

	pub := publisher.NewKafkaPublisher(log, cfg.KafkaBrokers...)
	defer func() {
		if err := pub.Close(); err != nil {
			log.Warn("close publisher", zap.Error(err))
		}
	}()

	pollCtx, stopPolling := context.WithCancel(context.Background())
	outbox := publisher.NewOutboxPoller(repo, pub, cfg.OutboxInterval, log)
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		outbox.Run(pollCtx)
	}()
	defer func() {
		stopPolling()
		<-pollDone
	}()

	lifecycle := service.NewLifecycle(repo, log)
	grpcServer := ordersgrpc.NewServer(lifecycle, log)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCPort, err)
	}

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.MetricsPort),
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("orders service listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("serve grpc: %w", err)
		}
	}()
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serve metrics: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down orders service", zap.Stringer("signal", sig))
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		log.Warn("grpc server did not stop in time, forcing")
		grpcServer.Stop()
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics server shutdown", zap.Error(err))
	}

	log.Info("orders service stopped")
	return nil
}

func openRepository(cfg *config.OrdersConfig, log *zap.Logger) (repository.OrderRepository, error) {
	if cfg.Store == "memory" {
		log.Warn("using in-memory order store, orders are lost on restart")
		return repository.NewMemoryRepository(), nil
	}

	creds := &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsPath,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := repo.RunMigrations(creds); err != nil {
		repo.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations completed")
	return repo, nil
}
