package cmd

import (
	"context"
	"fmt"

	"github.com/brewbuds/server/audit"
	"github.com/brewbuds/server/cache"
	"github.com/brewbuds/server/config"
	dbadapter "github.com/brewbuds/server/db"
	"github.com/brewbuds/server/logging"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/push"
	"github.com/brewbuds/server/scheduler"
	"github.com/brewbuds/server/service/bean"
	"github.com/brewbuds/server/service/comment"
	"github.com/brewbuds/server/service/event"
	"github.com/brewbuds/server/service/feed"
	"github.com/brewbuds/server/service/like"
	"github.com/brewbuds/server/service/note"
	"github.com/brewbuds/server/service/notify"
	"github.com/brewbuds/server/service/photo"
	"github.com/brewbuds/server/service/post"
	"github.com/brewbuds/server/service/ranking"
	"github.com/brewbuds/server/service/recommend"
	"github.com/brewbuds/server/service/record"
	"github.com/brewbuds/server/service/relationship"
	"github.com/brewbuds/server/service/report"
	"github.com/brewbuds/server/service/user"
	"github.com/brewbuds/server/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds the long-lived components shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	cache  cache.Cache
	pubsub cache.PubSub
	sched  *scheduler.Scheduler
	audit  *audit.Service

	notify    *notify.Service
	rel       *relationship.Service
	users     *user.Service
	feed      *feed.Service
	likes     *like.Service
	notes     *note.Service
	comments  *comment.Service
	photos    *photo.Service
	records   *record.Service
	posts     *post.Service
	beans     *bean.Service
	recommend *recommend.Service
	ranking   *ranking.Service
	reports   *report.Service
	events    *event.Service
}

// openBase creates the logger and migrated database.
func openBase(cfg *config.Config) (*app, error) {
	logger, err := logging.New(cfg.Log, cfg.Server.Debug)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	db, err := dbadapter.Open(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))
	return &app{cfg: cfg, logger: logger, db: db}, nil
}

// newApp wires every service.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a, err := openBase(cfg)
	if err != nil {
		return nil, err
	}
	logger := a.logger

	cacheConfig := cache.FromConfig(cfg.Cache)
	if a.cache, err = cache.NewCache(cacheConfig); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if a.pubsub, err = cache.NewPubSub(cacheConfig); err != nil {
		return nil, fmt.Errorf("pubsub: %w", err)
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if cfg.Storage.Endpoint == "" {
		logger.Warn("storage.endpoint is not set; photos are kept in memory")
	}

	var pusher push.Pusher = push.Nop{}
	if cfg.Push.Enabled {
		pusher = push.NewBreaker(push.NewExpo(), cfg.Push.FailureThreshold, cfg.Push.OpenTimeout, logger)
	}

	a.sched = scheduler.New(logger)
	a.audit = audit.New(a.db, logger)
	a.notify = notify.New(a.db, a.pubsub, pusher, cfg.Push.QueueSize, logger)

	a.rel = relationship.New(a.db, a.notify, logger)
	a.users = user.New(a.db, a.cache, a.rel, cfg.Security, logger)
	a.feed = feed.New(a.db, a.cache, a.rel, cfg.Feed, logger)
	a.likes = like.New(a.db, a.rel, a.notify, logger)
	a.notes = note.New(a.db)
	a.comments = comment.New(a.db, a.rel, a.likes, a.notify, logger)
	a.photos = photo.New(a.db, store, cfg.Storage.MaxUploadMB, logger)
	a.records = record.New(a.db, a.rel, a.likes, a.notes, a.comments, a.photos, logger)
	a.posts = post.New(a.db, a.rel, a.likes, a.notes, a.comments, a.photos, logger)
	a.beans = bean.New(a.db, a.cache, a.notes, logger)
	a.recommend = recommend.New(a.db, cfg.Recommend, logger)
	a.ranking = ranking.New(a.db, a.cache, a.rel, cfg.Ranking, logger)
	a.reports = report.New(a.db)
	a.events = event.New(a.db)
	return a, nil
}

// close stops background workers in dependency order.
func (a *app) close(ctx context.Context) {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.notify != nil {
		a.notify.Stop()
	}
	if a.audit != nil {
		a.audit.Stop(ctx)
	}
	_ = a.logger.Sync()
}
