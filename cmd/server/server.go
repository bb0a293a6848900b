package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	fixRouter "github.com/festy23/code_janitor/internal/fixer/router"
	"github.com/festy23/code_janitor/internal/health"
	issueRouter "github.com/festy23/code_janitor/internal/issue/router"
	"github.com/festy23/code_janitor/internal/middleware"
	"github.com/festy23/code_janitor/internal/scheduler"
	statisticsRouter "github.com/festy23/code_janitor/internal/statistics/router"
)

const shutdownTimeout = 30 * time.Second

// newRouter wires the HTTP surface.
func newRouter(a *app) *gin.Engine {
	gin.SetMode(a.cfg.GinMode)
	r := gin.New()
	r.Use(middleware.Logger(a.logger), middleware.Recovery(a.logger), middleware.CORS(a.cfg.Server.CORSOrigins))

	healthHandler := health.New(a.db, version, a.logger)
	r.GET("/", healthHandler.Info)
	r.GET("/health", healthHandler.Check)
	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	api := r.Group("/api")
	issueRouter.RegisterRoutes(api, a.db, a.logger)
	statisticsRouter.RegisterRoutes(api, a.db, a.logger)
	if a.fixer != nil {
		fixRouter.RegisterRoutes(api, a.fixer, a.logger)
	}
	return r
}

// serve runs the HTTP server and, unless disabled, the scheduler until SIGINT or SIGTERM.
func serve(ctx context.Context, a *app, withScheduler bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if n, err := a.fixer.ResetInterruptedFixes(ctx); err != nil {
		a.logger.Errorw("failed to reset interrupted fixes", "error", err)
	} else if n > 0 {
		a.logger.Warnw("reset fixes interrupted by previous shutdown", "count", n)
	}

	var sched *scheduler.Scheduler
	if withScheduler {
		sched = scheduler.New(a.fixer, a.cfg.Janitor, a.metrics, a.logger)
		if err := sched.Start(ctx); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:         a.cfg.Server.GetAddress(),
		Handler:      newRouter(a),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infow("server starting", "address", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		a.logger.Errorw("server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Errorw("server shutdown failed", "error", err)
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			a.logger.Errorw("scheduler shutdown failed", "error", err)
		}
	}
	a.logger.Info("server stopped")
	return serveErr
}
