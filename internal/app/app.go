package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/you/findmyseat/domain"
	"github.com/you/findmyseat/internal/config"
	httpx "github.com/you/findmyseat/internal/http"
	"github.com/you/findmyseat/internal/http/handlers"
	"github.com/you/findmyseat/internal/http/middleware"
)

// NewLogger builds the process logger and installs it as the zap global
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Env == "development" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(strings.ToLower(cfg.LogLevel))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// Router builds the intent gateway over the container's services
func Router(c *Container) (*gin.Engine, error) {
	metrics, err := middleware.NewMetrics(c.Registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	return httpx.BuildRouter(httpx.Routes{
		Auth:      handlers.NewAuthHandlers(c.Flow),
		State:     handlers.NewStateHandlers(c.Flow, c.Admin),
		Admin:     handlers.NewAdminHandlers(c.Admin),
		Organizer: handlers.NewOrganizerHandlers(c.Organizer),
		Policies:  &handlers.PolicyHandlers{Policy: c.Policy},
		Sessions:  middleware.NewAuthMW(c.Users, c.Admins),
		Casbin:    middleware.NewCasbinMW(c.Policy, c.Logger.Named("casbin")),
		Metrics:   metrics,
		Gatherer:  c.Registry,
		Logger:    c.Logger.Named("http"),
	}), nil
}

// Run serves the intent gateway until ctx is cancelled
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	c, err := NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	r, err := Router(c)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("api", cfg.APIBaseURL))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// CheckStorage opens the configured client state storage, round-trips a
// key through it and reports each step to w
func CheckStorage(ctx context.Context, cfg *config.Config, w io.Writer) error {
	fmt.Fprintf(w, "Storage driver: %s\n", cfg.StorageDriver)

	c, err := NewContainer(cfg, zap.NewNop())
	if err != nil {
		return err
	}
	defer c.Close()
	fmt.Fprintln(w, "✓ storage connection successful")

	const checkKey = "storage_check"
	if err := c.State.Set(ctx, checkKey, "ok"); err != nil {
		return fmt.Errorf("write check key: %w", err)
	}
	v, err := c.State.Get(ctx, checkKey)
	if err != nil {
		return fmt.Errorf("read check key: %w", err)
	}
	if v != "ok" {
		return fmt.Errorf("read check key: got %q", v)
	}
	if err := c.State.Delete(ctx, checkKey); err != nil {
		return fmt.Errorf("delete check key: %w", err)
	}
	if _, err := c.State.Get(ctx, checkKey); !errors.Is(err, domain.ErrKeyNotFound) {
		return fmt.Errorf("check key still present after delete: %v", err)
	}
	fmt.Fprintln(w, "✓ state round trip successful")

	fmt.Fprintf(w, "✓ intent policies loaded (%d)\n", len(c.Policy.Rules()))
	return nil
}
