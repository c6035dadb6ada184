package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"time"

	_ "github.com/ethaccount/walletcore/docs/swagger"
	"github.com/ethaccount/walletcore/src/handler"
	"github.com/ethaccount/walletcore/src/metrics"
	"github.com/ethaccount/walletcore/src/repository"
	"github.com/ethaccount/walletcore/src/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/rs/zerolog"
	postgresDriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const failedPaymastersPrefix = "walletcore:paymaster"

type Application struct {
	config          AppConfig
	database        *gorm.DB
	redis           *redis.Client
	metricsRegistry *prometheus.Registry

	Networks   *service.NetworkRegistry
	Blockchain *service.BlockchainService
	Refresher  *service.NetworkRefresher
	AccountOps *service.AccountOpService
}

func NewApplication(ctx context.Context, config AppConfig) (*Application, error) {
	logger := zerolog.Ctx(ctx).With().Str("function", "NewApplication").Logger()

	// Connect to database
	database, err := gorm.Open(postgresDriver.Open(*config.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connection to database failed: %w", err)
	}

	// Test database connection
	db, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connection to database failed: %w", err)
	}
	logger.Info().Msg("Database connection established")

	// run migration files
	if err := MigrationUp(*config.DSN, *config.MigrationPath); err != nil {
		return nil, err
	}

	app := &Application{
		config:          config,
		database:        database,
		metricsRegistry: prometheus.NewRegistry(),
	}

	// Paymaster failures are shared through Redis when it is configured
	var failed service.FailedPaymasters = service.NewMemoryFailedPaymasters()
	if *config.RedisAddr != "" {
		redisOpts, err := redis.ParseURL(*config.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		rdb := redis.NewClient(redisOpts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connection to redis failed: %w", err)
		}
		logger.Info().Msg("Redis connection established")
		app.redis = rdb
		failed = repository.NewFailedPaymasterCache(rdb, failedPaymastersPrefix)
	}

	networkRepo := repository.NewNetworkRepository(database)
	app.Networks = service.NewNetworkRegistry(networkRepo)
	if err := app.Networks.Load(ctx); err != nil {
		return nil, err
	}
	logger.Info().Int("network_count", len(app.Networks.List())).Msg("Networks loaded")

	app.Blockchain = service.NewBlockchainService(app.Networks)
	app.Refresher = service.NewNetworkRefresher(app.Networks, service.RefresherConfig{
		RefreshInterval: time.Duration(*config.NetworkRefreshInterval) * time.Second,
	})

	collector := metrics.NewCollector(logger, app.metricsRegistry)
	contracts := *config.Contracts

	var relayer service.RelayerSigner
	if *config.RelayerURL != "" {
		relayer = service.NewAmbireRelayer(*config.RelayerURL)
	} else {
		logger.Warn().Msg("RELAYER_URL not set, hosted paymaster disabled")
	}

	paymasters := service.NewPaymasterFactory(failed, relayer, contracts, collector)
	gasPrices := service.NewGasPriceService(app.Blockchain, app.Blockchain)
	simulator := service.NewAmbireSimulator(service.SimulatorConfig{
		EstimatorBytecode:     *config.EstimatorBytecode,
		EOASimulationBytecode: *config.EOASimulationBytecode,
		Contracts:             contracts,
	})
	if len(*config.EstimatorBytecode) == 0 {
		logger.Warn().Msg("ESTIMATOR_BYTECODE not set, batch simulation disabled")
	}

	orchestrator := service.NewEstimationOrchestrator(simulator, app.Blockchain, gasPrices, paymasters, contracts, collector)
	planner := service.NewBroadcastPlanner(gasPrices, paymasters, contracts)
	sessions := service.NewSessionStore(service.DefaultSessionSize, service.DefaultSessionTTL)

	app.AccountOps = service.NewAccountOpService(app.Networks, app.Blockchain, sessions, orchestrator, planner, contracts)
	return app, nil
}

func (app *Application) Shutdown(ctx context.Context) {
	logger := zerolog.Ctx(ctx).With().Str("function", "Shutdown").Logger()

	if app.Blockchain != nil {
		app.Blockchain.Close()
		logger.Info().Msg("Blockchain clients closed")
	}

	// Close database connection
	if app.database != nil {
		db, err := app.database.DB()
		if err != nil {
			logger.Error().Err(err).Msg("Failed to get underlying database connection")
		} else {
			if err := db.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to close database connection")
			} else {
				logger.Info().Msg("Database connection closed")
			}
		}
	}

	// Close Redis connection
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close redis connection")
		} else {
			logger.Info().Msg("Redis connection closed")
		}
	}
}

func (app *Application) RunHTTPServer(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := zerolog.Ctx(ctx).With().Str("function", "RunHTTPServer").Logger()

	// Set to release mode to disable Gin logger
	gin.SetMode(gin.ReleaseMode)

	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery())

	// Register routes
	app.registerRoutes(ctx, ginRouter)

	// Build HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", *app.config.Port),
		Handler: ginRouter,
	}

	// Start server in goroutine
	go func() {
		zerolog.Ctx(ctx).Info().Msgf("HTTP server is on http://localhost:%s/api/v1/health", *app.config.Port)
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			zerolog.Ctx(ctx).Panic().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	// Wait for context cancellation
	<-ctx.Done()

	logger.Info().Msg("Gracefully shutting down HTTP server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Shutdown server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to shutdown HTTP server gracefully")
	} else {
		logger.Info().Msg("HTTP server shutdown complete")
	}
}

func (app *Application) RunNetworkRefresher(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := zerolog.Ctx(ctx).With().Str("function", "RunNetworkRefresher").Logger()

	if err := app.Refresher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Network refresher exited")
		return
	}
	logger.Info().Msg("Network refresher stopped")
}

func (app *Application) registerRoutes(ctx context.Context, router *gin.Engine) {

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if value, ok := field.Interface().(decimal.Decimal); ok {
				return value.String()
			}
			return nil
		}, decimal.Decimal{})
	}

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = *app.config.AllowOrigins
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-API-Secret"}
	config.AllowCredentials = true

	router.Use(cors.New(config))

	handler.SetMiddlewares(ctx, router)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.metricsRegistry, promhttp.HandlerOpts{})))

	handler.RegisterRoutes(router, handler.Services{
		AccountOps: app.AccountOps,
		Networks:   app.Networks,
	}, *app.config.APISecret)
}
