package admin

import (
	"errors"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/luma/beacon/internal/meta"
	"github.com/luma/beacon/storage"
)

type Options struct {
	Store storage.Store

	// Gatherer is served on /metrics. Defaults to the prometheus default
	// registry.
	Gatherer prometheus.Gatherer

	// Debug puts gin in debug mode
	Debug bool

	Log *zap.Logger
}

// NewRouter builds the admin HTTP routes.
func NewRouter(options Options) *gin.Engine {
	if options.Gatherer == nil {
		options.Gatherer = prometheus.DefaultGatherer
	}

	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	r := setupRouter(options.Debug, options.Log)

	// Ping test
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"keys":   options.Store.Len(),
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, meta.GetInfo())
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(options.Gatherer, promhttp.HandlerOpts{})))

	r.GET("/debug/store", func(c *gin.Context) {
		backup, err := options.Store.Backup()
		if err != nil {
			options.Log.Error("Failed to back up the store", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Data(http.StatusOK, "application/json; charset=utf-8", backup)
	})

	// Replaces the whole store with a document in the format GET returns
	r.POST("/debug/store", func(c *gin.Context) {
		backup, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := options.Store.Restore(backup); err != nil {
			if errors.Is(err, storage.ErrInvalidBackup) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			options.Log.Error("Failed to restore the store", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		options.Log.Info("Restored the store", zap.Int("keys", options.Store.Len()))
		c.JSON(http.StatusOK, gin.H{"keys": options.Store.Len()})
	})

	return r
}

func setupRouter(debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Logs every request except health checks, RFC3339 in UTC
	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health", "/metrics"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}
