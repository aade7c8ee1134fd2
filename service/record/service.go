// Package record manages tasted records: a user's tasting journal entries.
package record

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/comment"
	"github.com/brewbuds/server/service/like"
	"github.com/brewbuds/server/service/match"
	"github.com/brewbuds/server/service/note"
	"github.com/brewbuds/server/service/paging"
	"github.com/brewbuds/server/service/photo"
	"github.com/brewbuds/server/service/relationship"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReviewInput is the structured taste review of a record.
type ReviewInput struct {
	Star       float64    `json:"star"`
	Flavor     string     `json:"flavor"`
	Body       int        `json:"body"`
	Acidity    int        `json:"acidity"`
	Bitterness int        `json:"bitterness"`
	Sweetness  int        `json:"sweetness"`
	Place      string     `json:"place"`
	TastedAt   *time.Time `json:"tasted_at"`
}

// Validate checks the star is 0.5..5 in half steps and every axis is 0..5.
func (r ReviewInput) Validate() error {
	if r.Star < 0.5 || r.Star > 5 || math.Mod(r.Star*2, 1) != 0 {
		return apperr.Validation("star must be between 0.5 and 5 in steps of 0.5")
	}
	for name, v := range map[string]int{"body": r.Body, "acidity": r.Acidity, "bitterness": r.Bitterness, "sweetness": r.Sweetness} {
		if v < 0 || v > 5 {
			return apperr.Validation("%s must be between 0 and 5", name)
		}
	}
	return nil
}

func (r ReviewInput) apply(m *model.BeanTasteReview) {
	m.Star = r.Star
	m.Flavor = r.Flavor
	m.Body = r.Body
	m.Acidity = r.Acidity
	m.Bitterness = r.Bitterness
	m.Sweetness = r.Sweetness
	m.Place = r.Place
	m.TastedAt = r.TastedAt
}

// BeanInput picks an existing bean by ID or describes a new user bean.
type BeanInput struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	BeanType      string `json:"bean_type"`
	IsDecaf       bool   `json:"is_decaf"`
	OriginCountry string `json:"origin_country"`
	Region        string `json:"region"`
	Roastery      string `json:"roastery"`
	RoastingPoint int    `json:"roasting_point"`
	Process       string `json:"process"`
	Variety       string `json:"variety"`
	Extraction    string `json:"extraction"`
}

type CreateInput struct {
	Content   string      `json:"content"`
	Tag       string      `json:"tag"`
	IsPrivate bool        `json:"is_private"`
	Bean      BeanInput   `json:"bean"`
	Review    ReviewInput `json:"taste_review"`
	PhotoIDs  []int64     `json:"photos"`
}

// UpdateInput changes only the fields that are set.
type UpdateInput struct {
	Content   *string      `json:"content"`
	Tag       *string      `json:"tag"`
	IsPrivate *bool        `json:"is_private"`
	Review    *ReviewInput `json:"taste_review"`
	PhotoIDs  *[]int64     `json:"photos"`
}

// View is a record enriched for one viewer.
type View struct {
	model.TastedRecord
	IsUserLiked  bool  `json:"is_user_liked"`
	IsUserNoted  bool  `json:"is_user_noted"`
	CommentCount int64 `json:"comment_count"`
}

type Service struct {
	db       *gorm.DB
	rel      *relationship.Service
	likes    *like.Service
	notes    *note.Service
	comments *comment.Service
	photos   *photo.Service
	logger   *zap.Logger
}

func New(db *gorm.DB, rel *relationship.Service, likes *like.Service, notes *note.Service,
	comments *comment.Service, photos *photo.Service, logger *zap.Logger) *Service {
	return &Service{db: db, rel: rel, likes: likes, notes: notes, comments: comments, photos: photos, logger: logger}
}

func (svc *Service) resolveBean(tx *gorm.DB, userID int64, in BeanInput) (int64, error) {
	if in.ID != 0 {
		var n int64
		if err := tx.Model(&model.Bean{}).Where("id = ?", in.ID).Count(&n).Error; err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, apperr.NotFound("bean not found")
		}
		return in.ID, nil
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return 0, apperr.Validation("bean id or name is required")
	}
	if in.BeanType == "" {
		in.BeanType = model.BeanTypeSingle
	}
	if in.BeanType != model.BeanTypeSingle && in.BeanType != model.BeanTypeBlend {
		return 0, apperr.Validation("bean_type must be single or blend")
	}
	if in.RoastingPoint < 0 || in.RoastingPoint > 5 {
		return 0, apperr.Validation("roasting_point must be 0 to 5, 0 meaning unknown")
	}
	b := &model.Bean{
		Name:          name,
		BeanType:      in.BeanType,
		IsDecaf:       in.IsDecaf,
		OriginCountry: in.OriginCountry,
		Region:        in.Region,
		Roastery:      in.Roastery,
		RoastingPoint: in.RoastingPoint,
		Process:       in.Process,
		Variety:       in.Variety,
		Extraction:    in.Extraction,
		IsUserCreated: true,
		CreatorID:     &userID,
	}
	if err := tx.Create(b).Error; err != nil {
		return 0, err
	}
	return b.ID, nil
}

// RecomputeBean refreshes a bean's average star and record count.
func RecomputeBean(tx *gorm.DB, beanID int64) error {
	var count int64
	if err := tx.Model(&model.TastedRecord{}).Where("bean_id = ?", beanID).Count(&count).Error; err != nil {
		return err
	}
	var avg float64
	if err := tx.Table("bean_taste_reviews r").
		Joins("JOIN tasted_records t ON t.id = r.record_id").
		Where("t.bean_id = ?", beanID).
		Select("COALESCE(AVG(r.star), 0)").Scan(&avg).Error; err != nil {
		return err
	}
	return tx.Model(&model.Bean{}).Where("id = ?", beanID).Updates(map[string]interface{}{
		"avg_star":     math.Round(avg*100) / 100,
		"record_count": count,
	}).Error
}

// Create writes a record with its review and photos.
func (svc *Service) Create(ctx context.Context, userID int64, in CreateInput) (*View, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return nil, apperr.Validation("content is required")
	}
	if err := in.Review.Validate(); err != nil {
		return nil, err
	}
	if len(in.PhotoIDs) > photo.MaxPerObject {
		return nil, apperr.Validation("at most %d photos", photo.MaxPerObject)
	}

	var rec model.TastedRecord
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		beanID, err := svc.resolveBean(tx, userID, in.Bean)
		if err != nil {
			return err
		}
		rec = model.TastedRecord{
			AuthorID:  userID,
			BeanID:    beanID,
			Content:   in.Content,
			Tag:       in.Tag,
			IsPrivate: in.IsPrivate,
		}
		if err := tx.Omit("Author", "Bean", "TasteReview", "Photos").Create(&rec).Error; err != nil {
			return err
		}
		review := model.BeanTasteReview{RecordID: rec.ID}
		in.Review.apply(&review)
		if err := tx.Create(&review).Error; err != nil {
			return err
		}
		if err := photo.Attach(tx, userID, in.PhotoIDs, "record_id", rec.ID); err != nil {
			return err
		}
		return RecomputeBean(tx, beanID)
	})
	if err != nil {
		return nil, err
	}
	return svc.Get(ctx, userID, rec.ID)
}

func (svc *Service) load(ctx context.Context, q *gorm.DB) *gorm.DB {
	return q.WithContext(ctx).
		Preload("Author").
		Preload("Bean").
		Preload("Bean.Taste").
		Preload("TasteReview").
		Preload("Photos", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
}

// Get returns one record. Private records are only visible to their author.
func (svc *Service) Get(ctx context.Context, viewer, id int64) (*View, error) {
	var rec model.TastedRecord
	err := svc.load(ctx, svc.db).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && rec.IsPrivate && rec.AuthorID != viewer) {
		return nil, apperr.NotFound("tasted record not found")
	}
	if err != nil {
		return nil, err
	}
	blocked, err := svc.rel.IsBlockedEither(ctx, viewer, rec.AuthorID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, apperr.Forbidden("blocked user's record")
	}
	views, err := svc.enrich(ctx, viewer, []model.TastedRecord{rec})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (svc *Service) own(ctx context.Context, userID, id int64) (*model.TastedRecord, error) {
	var rec model.TastedRecord
	err := svc.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("tasted record not found")
	}
	if err != nil {
		return nil, err
	}
	if rec.AuthorID != userID {
		if rec.IsPrivate {
			return nil, apperr.NotFound("tasted record not found")
		}
		return nil, apperr.Forbidden("not your tasted record")
	}
	return &rec, nil
}

// Update changes the author's own record.
func (svc *Service) Update(ctx context.Context, userID, id int64, in UpdateInput) (*View, error) {
	rec, err := svc.own(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if in.Content != nil {
		c := strings.TrimSpace(*in.Content)
		if c == "" {
			return nil, apperr.Validation("content is required")
		}
		fields["content"] = c
	}
	if in.Tag != nil {
		fields["tag"] = *in.Tag
	}
	if in.IsPrivate != nil {
		fields["is_private"] = *in.IsPrivate
	}
	if in.Review != nil {
		if err := in.Review.Validate(); err != nil {
			return nil, err
		}
	}

	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fields) > 0 {
			if err := tx.Model(&model.TastedRecord{}).Where("id = ?", rec.ID).Updates(fields).Error; err != nil {
				return err
			}
		}
		if in.Review != nil {
			var review model.BeanTasteReview
			if err := tx.Where("record_id = ?", rec.ID).FirstOrInit(&review, model.BeanTasteReview{RecordID: rec.ID}).Error; err != nil {
				return err
			}
			in.Review.apply(&review)
			if err := tx.Save(&review).Error; err != nil {
				return err
			}
			if err := RecomputeBean(tx, rec.BeanID); err != nil {
				return err
			}
		}
		if in.PhotoIDs != nil {
			return photo.Attach(tx, userID, *in.PhotoIDs, "record_id", rec.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return svc.Get(ctx, userID, rec.ID)
}

// Delete removes the author's own record with its review, photos, comments,
// likes, notes and post links.
func (svc *Service) Delete(ctx context.Context, userID, id int64) error {
	rec, err := svc.own(ctx, userID, id)
	if err != nil {
		return err
	}
	var keys []string
	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := comment.Purge(tx, model.ObjectRecord, rec.ID); err != nil {
			return err
		}
		if err := tx.Where("object_type = ? AND object_id = ?", model.ObjectRecord, rec.ID).Delete(&model.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("object_type = ? AND object_id = ?", model.ObjectRecord, rec.ID).Delete(&model.Note{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM post_tasted_records WHERE tasted_record_id = ?", rec.ID).Error; err != nil {
			return err
		}
		if err := tx.Where("record_id = ?", rec.ID).Delete(&model.BeanTasteReview{}).Error; err != nil {
			return err
		}
		var err error
		if keys, err = photo.Detach(tx, "record_id", rec.ID); err != nil {
			return err
		}
		if err := tx.Delete(&model.TastedRecord{}, rec.ID).Error; err != nil {
			return err
		}
		return RecomputeBean(tx, rec.BeanID)
	})
	if err != nil {
		return err
	}
	svc.photos.RemoveObjects(ctx, keys)
	return nil
}

func (svc *Service) page(ctx context.Context, viewer int64, q *gorm.DB, req paging.Request) (paging.Result[View], error) {
	req = req.Normalize()
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return paging.Result[View]{}, err
	}
	var recs []model.TastedRecord
	if err := svc.load(ctx, q).Order("tasted_records.created_at DESC, tasted_records.id DESC").
		Offset(req.Offset()).Limit(req.Size).Find(&recs).Error; err != nil {
		return paging.Result[View]{}, err
	}
	views, err := svc.enrich(ctx, viewer, recs)
	if err != nil {
		return paging.Result[View]{}, err
	}
	return paging.New(views, total, req), nil
}

// ListByAuthor lists an author's records, newest first. Other viewers only
// see public ones.
func (svc *Service) ListByAuthor(ctx context.Context, viewer, authorID int64, req paging.Request) (paging.Result[View], error) {
	blocked, err := svc.rel.IsBlockedEither(ctx, viewer, authorID)
	if err != nil {
		return paging.Result[View]{}, err
	}
	if blocked {
		return paging.Result[View]{}, apperr.Forbidden("blocked user's records")
	}
	q := svc.db.WithContext(ctx).Model(&model.TastedRecord{}).Where("author_id = ?", authorID)
	if viewer != authorID {
		q = q.Where("is_private = ?", false)
	}
	return svc.page(ctx, viewer, q, req)
}

// ListByBean lists a bean's public records, hiding blocked authors.
func (svc *Service) ListByBean(ctx context.Context, viewer, beanID int64, req paging.Request) (paging.Result[View], error) {
	q, err := svc.visible(ctx, viewer)
	if err != nil {
		return paging.Result[View]{}, err
	}
	return svc.page(ctx, viewer, q.Where("bean_id = ?", beanID), req)
}

// Search matches content, tag or bean name.
func (svc *Service) Search(ctx context.Context, viewer int64, term string, req paging.Request) (paging.Result[View], error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return paging.Result[View]{}, apperr.Validation("q is required")
	}
	q, err := svc.visible(ctx, viewer)
	if err != nil {
		return paging.Result[View]{}, err
	}
	pattern := match.Contains(term)
	beans := svc.db.Model(&model.Bean{}).Select("id").Where("name"+match.Like, pattern)
	q = q.Where("tasted_records.content"+match.Like+" OR tasted_records.tag"+match.Like+" OR tasted_records.bean_id IN (?)", pattern, pattern, beans)
	return svc.page(ctx, viewer, q, req)
}

// visible scopes records to public ones (plus the viewer's own) by authors
// not hidden from viewer.
func (svc *Service) visible(ctx context.Context, viewer int64) (*gorm.DB, error) {
	hidden, err := svc.rel.HiddenUserIDs(ctx, viewer)
	if err != nil {
		return nil, err
	}
	q := svc.db.WithContext(ctx).Model(&model.TastedRecord{}).
		Where("tasted_records.is_private = ? OR tasted_records.author_id = ?", false, viewer)
	if len(hidden) > 0 {
		q = q.Where("tasted_records.author_id NOT IN ?", hidden)
	}
	return q, nil
}

// Load fetches records by id in the given order. Missing or private ones
// are skipped.
func (svc *Service) Load(ctx context.Context, viewer int64, ids []int64) ([]View, error) {
	if len(ids) == 0 {
		return []View{}, nil
	}
	var recs []model.TastedRecord
	if err := svc.load(ctx, svc.db).Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]model.TastedRecord, len(recs))
	for _, r := range recs {
		if r.IsPrivate && r.AuthorID != viewer {
			continue
		}
		byID[r.ID] = r
	}
	ordered := make([]model.TastedRecord, 0, len(byID))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
		}
	}
	return svc.enrich(ctx, viewer, ordered)
}

func (svc *Service) enrich(ctx context.Context, viewer int64, recs []model.TastedRecord) ([]View, error) {
	ids := make([]int64, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	liked, err := svc.likes.LikedIDs(ctx, viewer, model.ObjectRecord, ids)
	if err != nil {
		return nil, err
	}
	noted, err := svc.notes.NotedIDs(ctx, viewer, model.ObjectRecord, ids)
	if err != nil {
		return nil, err
	}
	counts, err := svc.comments.Counts(ctx, model.ObjectRecord, ids)
	if err != nil {
		return nil, err
	}
	views := make([]View, len(recs))
	for i, r := range recs {
		if r.Author != nil {
			pub := r.Author.Public()
			r.Author = &pub
		}
		if r.Photos == nil {
			r.Photos = []model.Photo{}
		}
		views[i] = View{TastedRecord: r, IsUserLiked: liked[r.ID], IsUserNoted: noted[r.ID], CommentCount: counts[r.ID]}
	}
	return views, nil
}
