package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brewbuds/server/api/rest"
	"github.com/brewbuds/server/api/sse"
	mw "github.com/brewbuds/server/middleware"
	"github.com/brewbuds/server/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret must be set (BREWBUDS_SECURITY_JWT_SECRET)")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	logger := a.logger
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.close(shutdownCtx)
	}()

	if err := scheduleRankings(a); err != nil {
		return err
	}
	scheduleMaintenance(a)

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger), mw.Metrics())
	r.Use(mw.RateLimit(cfg.Security))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", mw.IPWhitelist(cfg.Server.AdminIPs), gin.WrapH(promhttp.Handler()))

	rest.Mount(r, rest.Deps{
		DB:        a.db,
		Cache:     a.cache,
		Security:  cfg.Security,
		AdminIPs:  cfg.Server.AdminIPs,
		Sched:     a.sched,
		Audit:     a.audit,
		Logger:    logger,
		Users:     a.users,
		Rel:       a.rel,
		Feed:      a.feed,
		Records:   a.records,
		Posts:     a.posts,
		Comments:  a.comments,
		Likes:     a.likes,
		Notes:     a.notes,
		Beans:     a.beans,
		Recommend: a.recommend,
		Ranking:   a.ranking,
		Notify:    a.notify,
		Photos:    a.photos,
		Reports:   a.reports,
		Events:    a.events,
	})

	sseH := sse.NewHandler(a.notify, a.cache, cfg.Security, logger)
	r.GET("/sse", sseH.ServeSSE)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	return nil
}

// scheduleRankings registers the weekly warm jobs and optionally runs them
// once shortly after startup.
func scheduleRankings(a *app) error {
	rc := a.cfg.Ranking
	day, err := scheduler.ParseWeekday(rc.WarmWeekday)
	if err != nil {
		return err
	}
	warm := func(name string, fn func(context.Context) error) scheduler.TaskFn {
		return func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			start := time.Now()
			if err := fn(ctx); err != nil {
				a.logger.Error("ranking warm failed", zap.String("task", name), zap.Error(err))
				return
			}
			a.logger.Info("ranking warmed", zap.String("task", name), zap.Duration("took", time.Since(start)))
		}
	}
	posts := warm("warm_top_posts", a.ranking.WarmTopPosts)
	beans := warm("warm_top_beans", a.ranking.WarmTopBeans)
	a.sched.AddWeekly("warm_top_posts", day, rc.WarmHour, 0, posts)
	a.sched.AddWeekly("warm_top_beans", day, rc.WarmHour, 0, beans)
	if rc.WarmOnStart {
		a.sched.AddDelay("warm_on_start", 5*time.Second, func() {
			posts()
			beans()
		})
	}
	return nil
}

// scheduleMaintenance registers the read-notification purge. A non-positive
// interval or retention disables it.
func scheduleMaintenance(a *app) {
	nc := a.cfg.Notify
	if nc.PurgeInterval <= 0 || nc.ReadRetention <= 0 {
		return
	}
	a.sched.AddTicker("purge_read_notifications", nc.PurgeInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := a.notify.PurgeRead(ctx, time.Now().Add(-nc.ReadRetention))
		if err != nil {
			a.logger.Error("notification purge failed", zap.Error(err))
			return
		}
		if n > 0 {
			a.logger.Info("read notifications purged", zap.Int64("count", n))
		}
	})
}
