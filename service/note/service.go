// Package note saves posts, tasted records and beans to a user's notes.
package note

import (
	"context"
	"errors"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/paging"
	"gorm.io/gorm"
)

// Item is a saved note with a summary of the noted object.
type Item struct {
	model.Note
	Post   *model.Post         `json:"post,omitempty"`
	Record *model.TastedRecord `json:"tasted_record,omitempty"`
	Bean   *model.Bean         `json:"bean,omitempty"`
}

type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (svc *Service) objectExists(ctx context.Context, userID int64, objectType string, objectID int64) error {
	db := svc.db.WithContext(ctx)
	var n int64
	var err error
	switch objectType {
	case model.ObjectPost:
		err = db.Model(&model.Post{}).Where("id = ?", objectID).Count(&n).Error
	case model.ObjectRecord:
		err = db.Model(&model.TastedRecord{}).
			Where("id = ? AND (is_private = ? OR author_id = ?)", objectID, false, userID).Count(&n).Error
	case model.ObjectBean:
		err = db.Model(&model.Bean{}).Where("id = ?", objectID).Count(&n).Error
	default:
		return apperr.Validation("cannot note %q", objectType)
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("%s not found", objectType)
	}
	return nil
}

// Create saves the object to the user's notes.
func (svc *Service) Create(ctx context.Context, userID int64, objectType string, objectID int64) (*model.Note, error) {
	if err := svc.objectExists(ctx, userID, objectType, objectID); err != nil {
		return nil, err
	}
	var existing model.Note
	err := svc.db.WithContext(ctx).
		Where("user_id = ? AND object_type = ? AND object_id = ?", userID, objectType, objectID).
		Take(&existing).Error
	if err == nil {
		return nil, apperr.Conflict("already noted")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	n := &model.Note{UserID: userID, ObjectType: objectType, ObjectID: objectID}
	if err := svc.db.WithContext(ctx).Create(n).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("already noted")
		}
		return nil, err
	}
	return n, nil
}

func (svc *Service) Delete(ctx context.Context, userID int64, objectType string, objectID int64) error {
	res := svc.db.WithContext(ctx).
		Where("user_id = ? AND object_type = ? AND object_id = ?", userID, objectType, objectID).
		Delete(&model.Note{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("note not found")
	}
	return nil
}

// NotedIDs reports which of ids userID has noted.
func (svc *Service) NotedIDs(ctx context.Context, userID int64, objectType string, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(ids))
	if userID == 0 || len(ids) == 0 {
		return out, nil
	}
	var noted []int64
	err := svc.db.WithContext(ctx).Model(&model.Note{}).
		Where("user_id = ? AND object_type = ? AND object_id IN ?", userID, objectType, ids).
		Pluck("object_id", &noted).Error
	for _, id := range noted {
		out[id] = true
	}
	return out, err
}

// List returns the user's notes, newest first, optionally of one type.
func (svc *Service) List(ctx context.Context, userID int64, objectType string, req paging.Request) (paging.Result[Item], error) {
	req = req.Normalize()
	q := svc.db.WithContext(ctx).Model(&model.Note{}).Where("user_id = ?", userID)
	if objectType != "" {
		q = q.Where("object_type = ?", objectType)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return paging.Result[Item]{}, err
	}
	var notes []model.Note
	if err := q.Order("created_at DESC, id DESC").Offset(req.Offset()).Limit(req.Size).Find(&notes).Error; err != nil {
		return paging.Result[Item]{}, err
	}

	byType := map[string][]int64{}
	for _, n := range notes {
		byType[n.ObjectType] = append(byType[n.ObjectType], n.ObjectID)
	}
	db := svc.db.WithContext(ctx)
	posts := map[int64]*model.Post{}
	if ids := byType[model.ObjectPost]; len(ids) > 0 {
		var rows []model.Post
		if err := db.Preload("Author").Where("id IN ?", ids).Find(&rows).Error; err != nil {
			return paging.Result[Item]{}, err
		}
		for i := range rows {
			if rows[i].Author != nil {
				pub := rows[i].Author.Public()
				rows[i].Author = &pub
			}
			posts[rows[i].ID] = &rows[i]
		}
	}
	records := map[int64]*model.TastedRecord{}
	if ids := byType[model.ObjectRecord]; len(ids) > 0 {
		var rows []model.TastedRecord
		if err := db.Preload("Bean").Preload("Photos").Where("id IN ?", ids).Find(&rows).Error; err != nil {
			return paging.Result[Item]{}, err
		}
		for i := range rows {
			records[rows[i].ID] = &rows[i]
		}
	}
	beans := map[int64]*model.Bean{}
	if ids := byType[model.ObjectBean]; len(ids) > 0 {
		var rows []model.Bean
		if err := db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
			return paging.Result[Item]{}, err
		}
		for i := range rows {
			beans[rows[i].ID] = &rows[i]
		}
	}

	items := make([]Item, 0, len(notes))
	for _, n := range notes {
		it := Item{Note: n}
		switch n.ObjectType {
		case model.ObjectPost:
			it.Post = posts[n.ObjectID]
		case model.ObjectRecord:
			it.Record = records[n.ObjectID]
		case model.ObjectBean:
			it.Bean = beans[n.ObjectID]
		}
		items = append(items, it)
	}
	return paging.New(items, total, req), nil
}
