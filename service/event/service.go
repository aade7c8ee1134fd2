// Package event lists app events and promotions.
package event

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/paging"
	"gorm.io/gorm"
)

// List filters.
const (
	StatusOngoing = "ongoing"
	StatusEnded   = "ended"
	StatusAll     = "all"
)

type CreateInput struct {
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	ImageURL string    `json:"image_url"`
	Link     string    `json:"link"`
	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// List returns events of the given status, latest start first.
func (svc *Service) List(ctx context.Context, status string, req paging.Request) (paging.Result[model.Event], error) {
	req = req.Normalize()
	now := svc.now()
	q := svc.db.WithContext(ctx).Model(&model.Event{})
	switch status {
	case "", StatusAll:
	case StatusOngoing:
		q = q.Where("start_at <= ? AND end_at >= ?", now, now)
	case StatusEnded:
		q = q.Where("end_at < ?", now)
	default:
		return paging.Result[model.Event]{}, apperr.Validation("unknown status %q", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return paging.Result[model.Event]{}, err
	}
	var events []model.Event
	if err := q.Order("start_at DESC, id DESC").Offset(req.Offset()).Limit(req.Size).Find(&events).Error; err != nil {
		return paging.Result[model.Event]{}, err
	}
	return paging.New(events, total, req), nil
}

func (svc *Service) Get(ctx context.Context, id int64) (*model.Event, error) {
	var e model.Event
	err := svc.db.WithContext(ctx).First(&e, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("event not found")
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (svc *Service) Create(ctx context.Context, in CreateInput) (*model.Event, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if in.StartAt.IsZero() || in.EndAt.IsZero() {
		return nil, apperr.Validation("start_at and end_at are required")
	}
	if !in.EndAt.After(in.StartAt) {
		return nil, apperr.Validation("end_at must be after start_at")
	}
	e := &model.Event{
		Title:    title,
		Content:  in.Content,
		ImageURL: in.ImageURL,
		Link:     in.Link,
		StartAt:  in.StartAt,
		EndAt:    in.EndAt,
	}
	if err := svc.db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}
