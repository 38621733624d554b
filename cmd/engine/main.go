// Command engine runs the FireWatch report lifecycle engine: HTTP intake,
// severity classification, routing, notifications, and the audit chain.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/firewatch-ph/firewatch/internal/audit"
	"github.com/firewatch-ph/firewatch/internal/classify"
	"github.com/firewatch-ph/firewatch/internal/handler"
	"github.com/firewatch-ph/firewatch/internal/lifecycle"
	"github.com/firewatch-ph/firewatch/internal/notify"
	"github.com/firewatch-ph/firewatch/internal/session"
	"github.com/firewatch-ph/firewatch/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("engine exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("engine")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("engine.port", 8080)
	viper.SetDefault("engine.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("engine.rate_limit_rps", 20)
	viper.SetDefault("database.url", "")
	viper.SetDefault("classifier.mode", "rules")
	viper.SetDefault("classifier.endpoint", "")
	viper.SetDefault("classifier.timeout", "5s")
	viper.SetDefault("notify.smtp_host", "")
	viper.SetDefault("notify.smtp_port", 587)
	viper.SetDefault("notify.smtp_username", "")
	viper.SetDefault("notify.smtp_password", "")
	viper.SetDefault("notify.from_address", "alerts@firewatch.ph")
	viper.SetDefault("notify.barangay_address", "")
	viper.SetDefault("notify.bfp_address", "")

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	// ── Storage ──────────────────────────────────────────────────────────────
	var (
		st       store.Store
		auditLog audit.Log
	)
	if dbURL := viper.GetString("database.url"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(context.Background()); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")

		st = store.NewPostgresStore(pool)
		auditLog = audit.NewPostgresLog(pool, logger)
	} else {
		logger.Warn("database.url not set, using in-memory storage; reports are lost on restart")
		st = store.NewMemoryStore()
		auditLog = audit.NewMemoryLog()
	}

	// ── Audit chain startup check ────────────────────────────────────────────
	startCtx := context.Background()
	if err := auditLog.Verify(startCtx); err != nil {
		logger.Warn("audit chain integrity check FAILED", zap.Error(err))
	} else {
		n, _ := auditLog.Len(startCtx)
		root, _ := auditLog.Root(startCtx)
		logger.Info("audit chain verified",
			zap.Int("entries", n),
			zap.String("root", root),
		)
	}

	// ── Classifier ───────────────────────────────────────────────────────────
	var classifier classify.Classifier
	switch mode := viper.GetString("classifier.mode"); mode {
	case "rules":
		classifier = classify.NewRuleClassifier()
		logger.Info("classifier: rule-based")
	case "remote":
		endpoint := viper.GetString("classifier.endpoint")
		if endpoint == "" {
			return fmt.Errorf("classifier.mode is remote but classifier.endpoint is empty")
		}
		timeout, _ := time.ParseDuration(viper.GetString("classifier.timeout"))
		if timeout == 0 {
			timeout = classify.DefaultTimeout
		}
		classifier = classify.NewRemoteClassifier(endpoint, timeout)
		logger.Info("classifier: remote", zap.String("endpoint", endpoint))
	case "off":
		logger.Warn("classifier disabled; all reports take the manual severity path")
	default:
		return fmt.Errorf("unknown classifier.mode %q (rules, remote, off)", mode)
	}

	// ── Notification sender ──────────────────────────────────────────────────
	var sender notify.Sender
	if smtpHost := viper.GetString("notify.smtp_host"); smtpHost != "" {
		sender = notify.NewSMTPSender(
			smtpHost,
			viper.GetInt("notify.smtp_port"),
			viper.GetString("notify.smtp_username"),
			viper.GetString("notify.smtp_password"),
			viper.GetString("notify.from_address"),
		)
		logger.Info("SMTP notification sender configured", zap.String("host", smtpHost))
	} else {
		sender = notify.NewNoopSender(logger)
		logger.Info("notification sender: noop (set notify.smtp_host to enable SMTP)")
	}

	recipients := map[notify.Channel]string{
		notify.ChannelBarangay: viper.GetString("notify.barangay_address"),
		notify.ChannelBFP:      viper.GetString("notify.bfp_address"),
	}
	dispatcher := notify.NewDispatcher(st, sender, recipients, logger)
	dispatcher.SetMetricsRecorder(handler.RecordDelivery)

	// ── Lifecycle manager ────────────────────────────────────────────────────
	mgr := lifecycle.NewManager(st, classifier, dispatcher, auditLog, logger)
	mgr.SetMetricsRecorder(func(event string) {
		switch event {
		case "classification_complete":
			handler.RecordClassification("complete")
		case "classification_unavailable":
			handler.RecordClassification("unavailable")
		default:
			handler.RecordTransition(event)
		}
	})
	mgr.SetAuditMetricsRecorder(handler.RecordAuditAppend)
	if timeout, err := time.ParseDuration(viper.GetString("classifier.timeout")); err == nil {
		mgr.SetClassifyTimeout(timeout)
	}

	sessions := session.NewManager(st, logger)

	reportHandler := handler.NewReportHandler(mgr, logger)
	sessionHandler := handler.NewSessionHandler(sessions, logger)
	auditHandler := handler.NewAuditHandler(auditLog, logger)

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := viper.GetStringSlice("engine.cors_origins")
	corsConfig := cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Operator-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Security headers
	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	if rps := viper.GetInt("engine.rate_limit_rps"); rps > 0 {
		router.Use(handler.RateLimiter(rps, rps*2, logger))
	}

	router.Use(handler.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/api/v1")
	reportHandler.Register(v1)
	sessionHandler.Register(v1)
	auditHandler.Register(v1)

	// ── Serve ────────────────────────────────────────────────────────────────
	port := viper.GetInt("engine.port")
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("engine HTTP listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	<-quit
	logger.Info("shutting down engine...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	// Drain in-flight classifications, then notification queues.
	mgr.Wait()
	dispatcher.Close()

	logger.Info("engine stopped")
	return nil
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
