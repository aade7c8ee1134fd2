// Package recommend suggests beans whose taste profile clusters with the
// user's preferred taste.
package recommend

import (
	"context"
	"sort"

	"github.com/brewbuds/server/config"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/bean"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	model  *KMeans
	limit  int
	logger *zap.Logger
}

// New loads the model at cfg.ModelPath. A missing or broken model is
// logged and recommendations fall back to popular beans.
func New(db *gorm.DB, cfg config.RecommendConfig, logger *zap.Logger) *Service {
	svc := &Service{db: db, limit: cfg.Limit, logger: logger}
	if svc.limit <= 0 {
		svc.limit = 10
	}
	if cfg.ModelPath == "" {
		return svc
	}
	m, err := LoadModel(cfg.ModelPath)
	if err != nil {
		logger.Warn("bean recommendation model not loaded", zap.String("path", cfg.ModelPath), zap.Error(err))
		return svc
	}
	svc.model = m
	logger.Info("bean recommendation model loaded", zap.Int("clusters", len(m.Centroids)))
	return svc
}

// WithModel replaces the loaded model.
func (svc *Service) WithModel(m *KMeans) *Service {
	svc.model = m
	return svc
}

// Recommend returns up to limit beans for userID: same-cluster beans the
// user has not recorded yet, best rated first, padded with popular beans.
func (svc *Service) Recommend(ctx context.Context, userID int64, limit int) ([]model.Bean, error) {
	if limit <= 0 {
		limit = svc.limit
	}
	db := svc.db.WithContext(ctx)

	var recorded []int64
	if userID != 0 {
		if err := db.Model(&model.TastedRecord{}).Where("author_id = ?", userID).
			Distinct("bean_id").Pluck("bean_id", &recorded).Error; err != nil {
			return nil, err
		}
	}
	exclude := make(map[int64]bool, len(recorded))
	for _, id := range recorded {
		exclude[id] = true
	}

	picked, err := svc.clustered(ctx, userID, exclude, limit)
	if err != nil {
		return nil, err
	}
	for _, b := range picked {
		exclude[b.ID] = true
	}
	if len(picked) < limit {
		popular, err := svc.Popular(ctx, limit-len(picked), exclude)
		if err != nil {
			return nil, err
		}
		picked = append(picked, popular...)
	}
	return picked, nil
}

func (svc *Service) clustered(ctx context.Context, userID int64, exclude map[int64]bool, limit int) ([]model.Bean, error) {
	if svc.model == nil || userID == 0 {
		return nil, nil
	}
	var detail model.UserDetail
	err := svc.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&detail).Error
	if err != nil {
		return nil, err
	}
	pref := detail.PreferredBeanTaste.Data()
	if pref.IsZero() {
		return nil, nil
	}
	cluster, err := svc.model.Predict(pref.Vector())
	if err != nil {
		return nil, err
	}

	var beans []model.Bean
	if err := svc.db.WithContext(ctx).Joins("Taste").Scopes(bean.Listed).Find(&beans).Error; err != nil {
		return nil, err
	}
	var out []model.Bean
	for _, b := range beans {
		if b.Taste == nil || exclude[b.ID] {
			continue
		}
		c, err := svc.model.Predict(b.Taste.Profile().Vector())
		if err != nil {
			return nil, err
		}
		if c == cluster {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AvgStar != out[j].AvgStar {
			return out[i].AvgStar > out[j].AvgStar
		}
		if out[i].RecordCount != out[j].RecordCount {
			return out[i].RecordCount > out[j].RecordCount
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Popular returns the most recorded listed beans not in exclude.
func (svc *Service) Popular(ctx context.Context, limit int, exclude map[int64]bool) ([]model.Bean, error) {
	q := svc.db.WithContext(ctx).Preload("Taste").Scopes(bean.Listed)
	if len(exclude) > 0 {
		ids := make([]int64, 0, len(exclude))
		for id := range exclude {
			ids = append(ids, id)
		}
		q = q.Where("beans.id NOT IN ?", ids)
	}
	var beans []model.Bean
	err := q.Order("beans.record_count DESC, beans.avg_star DESC, beans.id ASC").Limit(limit).Find(&beans).Error
	return beans, err
}
