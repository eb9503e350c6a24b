package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xyths/ticket-market/metrics"
)

type Config struct {
	Listen string `json:"listen"`
	// Mode is "dev" for gin debug logging, anything else is release.
	Mode            string `json:"mode"`
	ShutdownTimeout string `json:"shutdownTimeout"`
}

// NewEngine builds the router with every route of h plus health and metrics.
func NewEngine(cfg Config, h *Handler) *gin.Engine {
	if strings.EqualFold(cfg.Mode, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(metrics.Middleware())

	h.Register(engine)
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return engine
}

// Serve runs the HTTP server until ctx is done, then shuts it down.
func Serve(ctx context.Context, cfg Config, engine *gin.Engine, sugar *zap.SugaredLogger) error {
	timeout := 10 * time.Second
	if cfg.ShutdownTimeout != "" {
		d, err := time.ParseDuration(cfg.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("shutdown timeout %s format error: %w", cfg.ShutdownTimeout, err)
		}
		timeout = d
	}
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		sugar.Infof("http server listening on %s", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		sugar.Info("http server shutdown requested")
	case err := <-errCh:
		sugar.Errorf("http server error: %s", err)
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
