package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/maisoong/exchange_backend/config"
	"github.com/maisoong/exchange_backend/middlewares"
	"github.com/maisoong/exchange_backend/models"
	"github.com/maisoong/exchange_backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPort = "3001"

// gatedHandler answers the startup probe and returns 503 for everything
// else until the real router is installed.
type gatedHandler struct {
	router atomic.Pointer[gin.Engine]
}

func (g *gatedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if router := g.router.Load(); router != nil {
		router.ServeHTTP(w, r)
		return
	}
	if r.URL.Path == "/healthz" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
}

func correlationIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	// Production requires an explicit allowlist; elsewhere allow all.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if config.IsProduction() {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", "x-correlation-id")
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	return cors.New(corsConfig)
}

func rateLimiterFromEnv(client *redis.Client) *middlewares.RateLimiter {
	if !config.RateLimitEnabled() || client == nil {
		return nil
	}
	limit := int64(600)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}
	windowSec := int64(60)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			windowSec = n
		}
	}
	return middlewares.NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
}

type routerOptions struct {
	rateLimiter  *middlewares.RateLimiter
	loginBuckets *middlewares.LoginThrottle
}

func newRouter(ledger *models.Ledger, logger *logrus.Logger, opts routerOptions) *gin.Engine {
	utils.RegisterJSONFieldNames(binding.Validator.Engine())
	r := gin.New()
	r.Use(correlationIdMiddleware())
	r.Use(corsMiddleware())
	if opts.rateLimiter != nil {
		r.Use(opts.rateLimiter.RateLimitMiddleware)
	}
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/health", healthHandler(ledger))

	if opts.loginBuckets == nil {
		opts.loginBuckets = middlewares.NewLoginThrottle(6*time.Second, 10)
	}
	auth := r.Group("/auth", opts.loginBuckets.Middleware())
	auth.POST("/login", loginHandler(ledger, logger))
	auth.POST("/register", registerHandler(ledger, logger))

	api := r.Group("/", middlewares.AuthMiddleware(), middlewares.RequireAuth(), middlewares.LoaderMiddleware(ledger))

	api.GET("/suppliers", listSuppliersHandler(ledger, logger))
	api.GET("/suppliers/dashboard", dashboardHandler(ledger, logger))
	api.POST("/suppliers/card-order", saveCardOrderHandler(ledger, logger))
	api.GET("/suppliers/:id", supplierDetailHandler(ledger, logger))
	api.POST("/suppliers", createSupplierHandler(ledger, logger))
	api.PUT("/suppliers/:id", updateSupplierHandler(ledger, logger))
	api.DELETE("/suppliers/:id", middlewares.RequireAdmin(), deleteSupplierHandler(ledger, logger))

	api.GET("/purchases", listPurchasesHandler(ledger, logger))
	api.POST("/purchases", createPurchaseHandler(ledger, logger))
	api.DELETE("/purchases/:id", deletePurchaseHandler(ledger, logger))

	api.GET("/sales", listSalesHandler(ledger, logger))
	api.POST("/sales", createSaleHandler(ledger, logger))
	api.GET("/sales/:id", getSaleHandler(ledger, logger))
	api.DELETE("/sales/:id", deleteSaleHandler(ledger, logger))
	api.GET("/receipt/:id", receiptHandler(ledger, logger))

	api.GET("/daily-summary", listDailySummariesHandler(ledger, logger))
	api.GET("/daily-summary/today", todaySummaryHandler(ledger, logger))
	api.POST("/daily-summary/ensure", ensureSummaryHandler(ledger, logger))
	api.POST("/daily-summary/recompute", recomputeSummaryHandler(ledger, logger))
	api.POST("/daily-summary/close-day", closeDayHandler(ledger, logger))

	api.GET("/rate-history", listRateHistoryHandler(ledger, logger))
	api.GET("/rate-history/stats", rateStatsHandler(ledger, logger))

	api.GET("/alerts/low-balance", lowBalanceHandler(ledger, logger))
	api.GET("/reports/profit", profitReportHandler(ledger, logger))
	api.GET("/export/daily/:date", exportDailyHandler(ledger, logger))
	api.POST("/export/daily/:date/archive", archiveDailyHandler(ledger, logger))

	api.GET("/settings", getSettingsHandler(ledger, logger))
	api.PUT("/settings", middlewares.RequireAdmin(), updateSettingsHandler(ledger, logger))

	r.NoRoute(customNotFoundHandler)
	return r
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func ledgerOptions(logger *logrus.Logger, rdb *redis.Client) []models.Option {
	opts := []models.Option{models.WithLogger(logger)}
	if rdb != nil {
		opts = append(opts, models.WithLocker(config.GetRedisLock()), models.WithRedisCache(rdb))
	}
	opts = append(opts, models.WithReceiptSequencer(models.NewReceiptSequencer(config.ReceiptSequenceMode(), rdb)))
	if publisher := config.NewPubSubPublisherFromEnv(); publisher != nil {
		opts = append(opts, models.WithEventPublisher(publisher))
	}
	if uploader := utils.NewGCSUploaderFromEnv(); uploader != nil {
		opts = append(opts, models.WithExportUploader(uploader))
	}
	return opts
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Listen before dependencies are up so the startup probe passes.
	gate := &gatedHandler{}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           gate,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	db := config.ConnectDatabaseWithRetry()
	rdb := config.ConnectRedisWithRetry(sigCtx)

	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can block tables; run it as a job when SKIP_MIGRATIONS=true.
	if !config.SkipMigrations() {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	ledger := models.NewLedger(db, ledgerOptions(logger, rdb)...)
	gate.router.Store(newRouter(ledger, logger, routerOptions{rateLimiter: rateLimiterFromEnv(rdb)}))

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on :", port)

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	config.ClosePubSub()
	if rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			username, _ := utils.GetUsernameFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"path":          c.FullPath(),
				"status":        c.Writer.Status(),
				"correlationId": cid,
				"username":      username,
			}).Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
