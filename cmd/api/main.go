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

	"github.com/Jainex17/CoinPlay/internal/auth"
	"github.com/Jainex17/CoinPlay/internal/config"
	"github.com/Jainex17/CoinPlay/internal/ledger"
	"github.com/Jainex17/CoinPlay/internal/logging"
	"github.com/Jainex17/CoinPlay/internal/marketfeed"
	"github.com/Jainex17/CoinPlay/internal/metrics"
	"github.com/Jainex17/CoinPlay/internal/portfolio"
	"github.com/Jainex17/CoinPlay/internal/token"
	"github.com/Jainex17/CoinPlay/internal/trade"
	"github.com/Jainex17/CoinPlay/internal/transaction"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	logger, err := logging.New(logging.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize logger")
	}
	os.Exit(serve(cfg, logger))
}

// serve runs the server and returns the process exit code once the log file
// is closed.
func serve(cfg *config.Config, logger *logging.Logger) int {
	code := 0
	if err := run(cfg, logger.Logger); err != nil {
		logger.WithError(err).Error("Server stopped")
		code = 1
	} else {
		logger.Info("Server exited")
	}
	if err := logger.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "closing log file: %v\n", err)
		return 1
	}
	return code
}

func run(cfg *config.Config, log *logrus.Logger) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()
	if err := ledger.Migrate(db); err != nil {
		return err
	}

	// Redis connection. The feed is optional; trades never wait on it.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Failed to connect to Redis")
		}
		cancel()
	} else {
		log.Warn("REDIS_ADDR not set, market feed disabled")
	}

	router := newRouter(cfg, db, rdb, metrics.New(), log)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "db_driver": cfg.DBDriver}).Info("Starting CoinPlay API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case <-quit:
	}
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DBDriver == config.DriverSQLite {
		return ledger.OpenSQLite(ledger.FileDSN(cfg.SQLitePath))
	}
	return ledger.OpenPostgres(cfg.PostgresDSN(), cfg.DBMaxOpenConns)
}

// newRouter wires the ledger services onto a gin engine. rdb may be nil, in
// which case trades are not published and the feed route is not mounted.
func newRouter(cfg *config.Config, db *gorm.DB, rdb *redis.Client, m *metrics.Metrics, log logrus.FieldLogger) *gin.Engine {
	store := ledger.NewStore(db, ledger.Options{LockTimeout: cfg.DBLockTimeout})
	transactions := transaction.NewTransactionRepository(db)

	var publisher marketfeed.Publisher = marketfeed.NopPublisher{}
	var feed *marketfeed.RedisFeed
	if rdb != nil {
		feed = marketfeed.NewRedisFeed(rdb)
		publisher = feed
	}

	coordinator := trade.NewCoordinator(store, publisher, m, log.WithField("component", "trade"))
	tokenService := token.NewService(store, token.NewTokenRepository(db), transactions, token.Config{
		CreationFee:         cfg.TokenCreationFee,
		InitialTokenReserve: cfg.InitialTokenReserve,
		InitialBaseReserve:  cfg.InitialBaseReserve,
	}, m, log.WithField("component", "token"))
	portfolioService := portfolio.NewService(store, portfolio.NewHoldingRepository(db), transactions)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Security middleware
	router.Use(auth.SecurityHeaders())
	router.Use(auth.SecureCORS(cfg.AllowedOrigins))

	requireAccount := auth.NewAuthMiddleware(store, log.WithField("component", "auth")).RequireAccount()

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
			"service":   "coinplay-api",
		}
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = "unreachable"
		}
		c.JSON(status, body)
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		trade.NewHandler(coordinator).RegisterRoutes(v1, requireAccount)
		token.NewHandler(tokenService).RegisterRoutes(v1, requireAccount)
		portfolio.NewHandler(portfolioService).RegisterRoutes(v1, requireAccount)
		if feed != nil {
			marketfeed.NewRelay(feed, cfg.AllowedOrigins, log.WithField("component", "feed")).RegisterRoutes(v1)
		}
	}
	return router
}
