package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/cache"
	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/catalog"
	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/checkout"
	carthttp "github.com/Shreyas-s47/cloudykitchen/cart-service/internal/http"
	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/orders"
	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/poller"
	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/repository"
	"github.com/Shreyas-s47/cloudykitchen/cart-service/internal/service"
	"github.com/Shreyas-s47/cloudykitchen/orders-service/pkg/ordersrpc"
	"github.com/Shreyas-s47/cloudykitchen/pkg/circuitbreaker"
	"github.com/Shreyas-s47/cloudykitchen/pkg/config"
	"github.com/Shreyas-s47/cloudykitchen/pkg/logger"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.LoadCart(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New("cart-service", cfg.LogLevel, cfg.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("cart-service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.CartConfig, log *zap.Logger) error {
	ctx := context.Background()

	// Catalog
	products, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer products.Close()
	if err := products.RunMigrations(cfg.CatalogMigrations); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	log.Info("catalog ready", zap.String("path", cfg.CatalogDBPath))

	// Carts
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	defer mongoDB.Client().Disconnect(context.Background())
	if err := repository.CreateIndexes(ctx, mongoDB); err != nil {
		return err
	}
	log.Info("connected to mongodb", zap.String("database", cfg.MongoDBName))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	carts := service.NewCartService(repository.NewMongoRepository(mongoDB), cache.NewRedisCache(redisClient), products, log)

	// Orders
	ordersConn, err := orders.Dial(cfg.OrdersServiceAddr)
	if err != nil {
		return err
	}
	defer ordersConn.Close()
	breaker := circuitbreaker.New(circuitbreaker.DefaultSettings("orders-service"), log)
	ordersClient := orders.NewClient(ordersrpc.NewClient(ordersConn), breaker)

	// Stock side effects of confirmed orders
	stockPoller := poller.NewPoller(products, log, cfg.KafkaBrokers...)
	pollerCtx, stopPoller := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		stockPoller.Run(pollerCtx)
	}()

	handler := carthttp.NewRouter(carthttp.RouterConfig{
		JWTSecret:          []byte(cfg.JWTSecret),
		RequestTimeout:     cfg.RequestTimeout,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	}, carthttp.Handlers{
		Products: carthttp.NewProductHandler(products, log),
		Carts:    carthttp.NewCartHandler(carts, log),
		Checkout: carthttp.NewCheckoutHandler(checkout.NewService(carts, ordersClient, log), log),
		Orders:   carthttp.NewOrdersHandler(ordersClient, log),
	}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("cart service listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var serveErr error
	select {
	case sig := <-quit:
		log.Info("shutting down cart service", zap.Stringer("signal", sig))
	case serveErr = <-errCh:
		log.Error("http server failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", zap.Error(err))
	}

	stopPoller()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("poller stopped cleanly")
	case <-shutdownCtx.Done():
		log.Warn("poller didn't stop in time")
	}
	stockPoller.Close()

	log.Info("cart service stopped")
	return serveErr
}
