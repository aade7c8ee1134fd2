// Package ranking keeps the weekly top posts and top beans in the cache.
package ranking

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/cache"
	"github.com/brewbuds/server/config"
	"github.com/brewbuds/server/metrics"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/relationship"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// Window is how far back a ranking looks.
	Window = 7 * 24 * time.Hour
	// TTL outlives one weekly warm cycle so readers never see a gap.
	TTL = 8 * 24 * time.Hour
)

// BeanEntry is one row of the top beans ranking.
type BeanEntry struct {
	Rank    int   `json:"rank"`
	BeanID  int64 `json:"bean_id"`
	Records int64 `json:"records"`
}

type Service struct {
	db       *gorm.DB
	cache    cache.Cache
	rel      *relationship.Service
	topPosts int
	topBeans int
	logger   *zap.Logger
	now      func() time.Time
}

func New(db *gorm.DB, c cache.Cache, rel *relationship.Service, cfg config.RankingConfig, logger *zap.Logger) *Service {
	if cfg.TopPosts <= 0 {
		cfg.TopPosts = 10
	}
	if cfg.TopBeans <= 0 {
		cfg.TopBeans = 10
	}
	return &Service{
		db:       db,
		cache:    c,
		rel:      rel,
		topPosts: cfg.TopPosts,
		topBeans: cfg.TopBeans,
		logger:   logger,
		now:      time.Now,
	}
}

func (svc *Service) since() time.Time { return svc.now().Add(-Window) }

func (svc *Service) computeTopPosts(ctx context.Context, subject string) ([]int64, error) {
	q := svc.db.WithContext(ctx).Model(&model.Post{}).
		Where("posts.created_at >= ?", svc.since()).
		Where("posts.author_id IN (?)", svc.db.Model(&model.User{}).Select("id").Where("is_active = ?", true))
	if subject != "" {
		q = q.Where("posts.subject = ?", subject)
	}
	var ids []int64
	err := q.Order("like_count DESC, view_count DESC, id DESC").Limit(svc.topPosts).Pluck("id", &ids).Error
	return ids, err
}

func (svc *Service) storeTopPosts(ctx context.Context, subject string, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	return cache.SetJSON(ctx, svc.cache, cache.TopPostsKey(subject), ids, TTL)
}

// WarmTopPosts rebuilds the top posts of the last week for every subject
// and for all subjects together.
func (svc *Service) WarmTopPosts(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.RankingWarmDuration.WithLabelValues("posts").Observe(time.Since(start).Seconds())
	}()
	for _, subject := range append([]string{""}, model.Subjects...) {
		ids, err := svc.computeTopPosts(ctx, subject)
		if err != nil {
			return err
		}
		if err := svc.storeTopPosts(ctx, subject, ids); err != nil {
			return err
		}
	}
	svc.logger.Info("top posts warmed", zap.Int("subjects", len(model.Subjects)+1))
	return nil
}

// TopPostIDs returns the cached top posts of a subject ("" for all),
// recomputing them on a miss. Authors hidden from viewer are removed.
func (svc *Service) TopPostIDs(ctx context.Context, viewer int64, subject string) ([]int64, error) {
	if subject != "" && !model.ValidSubject(subject) {
		return nil, apperr.Validation("unknown subject %q", subject)
	}
	ids, found, err := cache.GetJSON[[]int64](ctx, svc.cache, cache.TopPostsKey(subject))
	switch {
	case err != nil:
		return nil, err
	case found:
		metrics.RecordRankingRead("posts", true)
	default:
		metrics.RecordRankingRead("posts", false)
		if ids, err = svc.computeTopPosts(ctx, subject); err != nil {
			return nil, err
		}
		if err := svc.storeTopPosts(ctx, subject, ids); err != nil {
			svc.logger.Warn("top posts not cached", zap.String("subject", subject), zap.Error(err))
		}
	}
	return svc.withoutHidden(ctx, viewer, &model.Post{}, "author_id", ids)
}

// withoutHidden drops ids whose owner column points at a user hidden from
// viewer, keeping the order.
func (svc *Service) withoutHidden(ctx context.Context, viewer int64, table interface{}, column string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return []int64{}, nil
	}
	hidden, err := svc.rel.HiddenUserIDs(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if len(hidden) == 0 {
		return ids, nil
	}
	var drop []int64
	if err := svc.db.WithContext(ctx).Model(table).
		Where("id IN ? AND "+column+" IN ?", ids, hidden).Pluck("id", &drop).Error; err != nil {
		return nil, err
	}
	skip := make(map[int64]bool, len(drop))
	for _, id := range drop {
		skip[id] = true
	}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

type beanCount struct {
	BeanID int64
	N      int64
}

func (svc *Service) computeTopBeans(ctx context.Context) ([]beanCount, error) {
	var rows []beanCount
	err := svc.db.WithContext(ctx).Model(&model.TastedRecord{}).
		Select("bean_id, COUNT(*) AS n").
		Where("created_at >= ?", svc.since()).
		Group("bean_id").
		Order("n DESC, bean_id ASC").
		Limit(svc.topBeans).
		Scan(&rows).Error
	return rows, err
}

// WarmTopBeans rebuilds the sorted set of beans with the most tasted
// records in the last week.
func (svc *Service) WarmTopBeans(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.RankingWarmDuration.WithLabelValues("beans").Observe(time.Since(start).Seconds())
	}()
	rows, err := svc.computeTopBeans(ctx)
	if err != nil {
		return err
	}
	members := make([]cache.ZMember, len(rows))
	for i, r := range rows {
		members[i] = cache.ZMember{Member: strconv.FormatInt(r.BeanID, 10), Score: float64(r.N)}
	}
	if err := svc.cache.ZReplace(ctx, cache.TopBeansKey, members, TTL); err != nil {
		return err
	}
	if err := svc.cache.Set(ctx, cache.TopBeansWarmedKey, svc.now().UTC().Format(time.RFC3339), TTL); err != nil {
		return err
	}
	svc.logger.Info("top beans warmed", zap.Int("beans", len(rows)))
	return nil
}

// TopBeans returns the cached bean ranking, rebuilding it on a miss. An
// empty ranking stays empty until the next warm. User beans created by
// someone hidden from viewer are removed.
func (svc *Service) TopBeans(ctx context.Context, viewer int64) ([]BeanEntry, error) {
	members, err := svc.cache.ZRevRangeWithScores(ctx, cache.TopBeansKey, 0, int64(svc.topBeans-1))
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		warmed, err := svc.cache.Exists(ctx, cache.TopBeansWarmedKey)
		if err != nil {
			return nil, err
		}
		metrics.RecordRankingRead("beans", warmed)
		if warmed {
			return []BeanEntry{}, nil
		}
		if err := svc.WarmTopBeans(ctx); err != nil {
			return nil, err
		}
		if members, err = svc.cache.ZRevRangeWithScores(ctx, cache.TopBeansKey, 0, int64(svc.topBeans-1)); err != nil {
			return nil, err
		}
	} else {
		metrics.RecordRankingRead("beans", true)
	}

	ranked := make([]beanCount, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m.Member, 10, 64)
		if err != nil {
			continue
		}
		ranked = append(ranked, beanCount{BeanID: id, N: int64(m.Score)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].N != ranked[j].N {
			return ranked[i].N > ranked[j].N
		}
		return ranked[i].BeanID < ranked[j].BeanID
	})
	ids := make([]int64, len(ranked))
	scores := make(map[int64]int64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.BeanID
		scores[r.BeanID] = r.N
	}
	ids, err = svc.withoutHidden(ctx, viewer, &model.Bean{}, "creator_id", ids)
	if err != nil {
		return nil, err
	}
	entries := make([]BeanEntry, len(ids))
	for i, id := range ids {
		entries[i] = BeanEntry{Rank: i + 1, BeanID: id, Records: scores[id]}
	}
	return entries, nil
}

// Refresh runs both warm jobs.
func (svc *Service) Refresh(ctx context.Context) error {
	if err := svc.WarmTopPosts(ctx); err != nil {
		return err
	}
	return svc.WarmTopBeans(ctx)
}
