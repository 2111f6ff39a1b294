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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lalith-99/chatarchive/internal/api"
	"github.com/lalith-99/chatarchive/internal/cache"
	"github.com/lalith-99/chatarchive/internal/config"
	"github.com/lalith-99/chatarchive/internal/db"
	"github.com/lalith-99/chatarchive/internal/middleware"
	"github.com/lalith-99/chatarchive/internal/observ"
	"github.com/lalith-99/chatarchive/internal/repository/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------------------------------------------------------
	// 1. Config and logger
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	shutdownTracer, err := observ.InitTracer(ctx, cfg.OTelEnabled, cfg.OTelEndpoint, "chatarchive-api", logger)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	// ---------------------------------------------------------------
	// 2. Postgres and the page cache
	// ---------------------------------------------------------------
	database, err := db.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	pageCache, err := cache.New(ctx, cfg.RedisURL, cfg.CacheTTL, logger)
	if err != nil {
		return fmt.Errorf("connect to cache: %w", err)
	}
	defer pageCache.Close()

	// ---------------------------------------------------------------
	// 3. Repositories and handlers
	// ---------------------------------------------------------------
	pool := database.Pool()
	users := api.NewUserHandler(postgres.NewUserStore(pool), pageCache, logger)
	channels := api.NewChannelHandler(postgres.NewChannelStore(pool), pageCache, logger)
	messages := api.NewMessageHandler(postgres.NewMessageStore(pool), pageCache, logger)
	emojis := api.NewEmojiHandler(postgres.NewEmojiStore(pool), pageCache, logger)
	tokens := api.NewAuthHandler(postgres.NewAppStore(pool), cfg.JWTSecret, cfg.JWTTTL, logger)

	rateLimit, err := middleware.RateLimit(cfg.RateLimit, middleware.NewRateLimitStore(pageCache.Client(), logger))
	if err != nil {
		return fmt.Errorf("configure rate limit: %w", err)
	}

	// ---------------------------------------------------------------
	// 4. Routes
	// ---------------------------------------------------------------
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Recovery(), middleware.RequestLogger(logger))

	// Public: load balancers and token exchange.
	srv.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	// Every token request runs bcrypt; throttle it per client IP.
	srv.POST("/v1/auth/token", rateLimit, tokens.Token)
	if cfg.MetricsPath != "" {
		srv.GET(cfg.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	slack := srv.Group("/v1/slack")
	slack.Use(middleware.AuthMiddleware(cfg.JWTSecret), rateLimit)
	slack.GET("/users", users.List)
	slack.GET("/users/:id", users.GetByID)
	slack.GET("/channels", channels.List)
	slack.GET("/channels/:channel", channels.GetByID)
	slack.GET("/channels/:channel/members", channels.Members)
	slack.GET("/channels/:channel/messages/:id", messages.Get)
	slack.GET("/messages", messages.List)
	slack.GET("/emojis", emojis.List)

	// ---------------------------------------------------------------
	// 5. Serve until signalled
	// ---------------------------------------------------------------
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting chatarchive API", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
