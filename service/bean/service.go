// Package bean serves the bean catalogue: search, detail and the user's
// recent search terms.
package bean

import (
	"context"
	"errors"
	"strings"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/cache"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/match"
	"github.com/brewbuds/server/service/note"
	"github.com/brewbuds/server/service/paging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxRecentSearches is how many search terms are remembered per user.
const MaxRecentSearches = 10

var orderings = map[string]string{
	"-record_count": "record_count DESC, avg_star DESC, id ASC",
	"-avg_star":     "avg_star DESC, record_count DESC, id ASC",
	"name":          "name ASC, id ASC",
}

// SearchRequest filters the catalogue. Zero values mean no filter.
type SearchRequest struct {
	Q             string   `form:"q"`
	BeanType      string   `form:"bean_type"`
	OriginCountry string   `form:"origin_country"`
	IsDecaf       *bool    `form:"is_decaf"`
	AvgStarMin    *float64 `form:"avg_star_min"`
	AvgStarMax    *float64 `form:"avg_star_max"`
	RoastMin      *int     `form:"roast_min"`
	RoastMax      *int     `form:"roast_max"`
	Ordering      string   `form:"ordering"`
	paging.Request
}

// View is a bean with the viewer's note flag.
type View struct {
	model.Bean
	IsUserNoted bool `json:"is_user_noted"`
}

type Service struct {
	db     *gorm.DB
	cache  cache.Cache
	notes  *note.Service
	logger *zap.Logger
}

func New(db *gorm.DB, c cache.Cache, notes *note.Service, logger *zap.Logger) *Service {
	return &Service{db: db, cache: c, notes: notes, logger: logger}
}

// Listed scopes beans to the official catalogue plus user beans that have
// at least one record.
func Listed(db *gorm.DB) *gorm.DB {
	return db.Where("beans.is_official = ? OR beans.record_count > ?", true, 0)
}

// Search filters and orders the catalogue. A non-empty query from a signed
// in user is remembered as a recent search.
func (svc *Service) Search(ctx context.Context, viewer int64, req SearchRequest) (paging.Result[View], error) {
	page := req.Request.Normalize()
	if req.Ordering == "" {
		req.Ordering = "-record_count"
	}
	order, ok := orderings[req.Ordering]
	if !ok {
		return paging.Result[View]{}, apperr.Validation("unknown ordering %q", req.Ordering)
	}
	if req.BeanType != "" && req.BeanType != model.BeanTypeSingle && req.BeanType != model.BeanTypeBlend {
		return paging.Result[View]{}, apperr.Validation("bean_type must be single or blend")
	}

	q := svc.db.WithContext(ctx).Model(&model.Bean{}).Scopes(Listed)
	term := strings.TrimSpace(req.Q)
	if term != "" {
		q = q.Where("name"+match.Like, match.Contains(term))
	}
	if req.BeanType != "" {
		q = q.Where("bean_type = ?", req.BeanType)
	}
	if req.OriginCountry != "" {
		q = q.Where("origin_country"+match.Like, match.Contains(req.OriginCountry))
	}
	if req.IsDecaf != nil {
		q = q.Where("is_decaf = ?", *req.IsDecaf)
	}
	if req.AvgStarMin != nil {
		q = q.Where("avg_star >= ?", *req.AvgStarMin)
	}
	if req.AvgStarMax != nil {
		q = q.Where("avg_star <= ?", *req.AvgStarMax)
	}
	if req.RoastMin != nil {
		q = q.Where("roasting_point >= ?", *req.RoastMin)
	}
	if req.RoastMax != nil {
		q = q.Where("roasting_point <= ?", *req.RoastMax)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return paging.Result[View]{}, err
	}
	var beans []model.Bean
	if err := q.Preload("Taste").Order(order).Offset(page.Offset()).Limit(page.Size).Find(&beans).Error; err != nil {
		return paging.Result[View]{}, err
	}
	views, err := svc.enrich(ctx, viewer, beans)
	if err != nil {
		return paging.Result[View]{}, err
	}

	if viewer != 0 && term != "" {
		if err := svc.AddRecent(ctx, viewer, term); err != nil {
			svc.logger.Warn("recent search not saved", zap.Int64("user_id", viewer), zap.Error(err))
		}
	}
	return paging.New(views, total, page), nil
}

// Get returns one bean with its taste profile.
func (svc *Service) Get(ctx context.Context, viewer, id int64) (*View, error) {
	var b model.Bean
	err := svc.db.WithContext(ctx).Preload("Taste").First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("bean not found")
	}
	if err != nil {
		return nil, err
	}
	views, err := svc.enrich(ctx, viewer, []model.Bean{b})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Load fetches beans by id in the given order, skipping missing ones.
func (svc *Service) Load(ctx context.Context, viewer int64, ids []int64) ([]View, error) {
	if len(ids) == 0 {
		return []View{}, nil
	}
	var beans []model.Bean
	if err := svc.db.WithContext(ctx).Preload("Taste").Where("id IN ?", ids).Find(&beans).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]model.Bean, len(beans))
	for _, b := range beans {
		byID[b.ID] = b
	}
	ordered := make([]model.Bean, 0, len(beans))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			ordered = append(ordered, b)
		}
	}
	return svc.enrich(ctx, viewer, ordered)
}

func (svc *Service) enrich(ctx context.Context, viewer int64, beans []model.Bean) ([]View, error) {
	ids := make([]int64, len(beans))
	for i, b := range beans {
		ids[i] = b.ID
	}
	noted, err := svc.notes.NotedIDs(ctx, viewer, model.ObjectBean, ids)
	if err != nil {
		return nil, err
	}
	views := make([]View, len(beans))
	for i, b := range beans {
		views[i] = View{Bean: b, IsUserNoted: noted[b.ID]}
	}
	return views, nil
}

// AddRecent pushes term to the front of the user's recent searches.
func (svc *Service) AddRecent(ctx context.Context, userID int64, term string) error {
	key := cache.RecentSearchKey(userID)
	if err := svc.cache.LRem(ctx, key, term); err != nil {
		return err
	}
	if err := svc.cache.LPush(ctx, key, term); err != nil {
		return err
	}
	return svc.cache.LTrim(ctx, key, 0, MaxRecentSearches-1)
}

// Recent returns the user's recent search terms, newest first.
func (svc *Service) Recent(ctx context.Context, userID int64) ([]string, error) {
	return svc.cache.LRange(ctx, cache.RecentSearchKey(userID), 0, MaxRecentSearches-1)
}

// RemoveRecent forgets one term.
func (svc *Service) RemoveRecent(ctx context.Context, userID int64, term string) error {
	return svc.cache.LRem(ctx, cache.RecentSearchKey(userID), term)
}

// ClearRecent forgets every term.
func (svc *Service) ClearRecent(ctx context.Context, userID int64) error {
	return svc.cache.Del(ctx, cache.RecentSearchKey(userID))
}
