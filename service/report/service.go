// Package report files and moderates user reports.
package report

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/paging"
	"gorm.io/gorm"
)

const maxReason = 255

type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

// owner returns the user responsible for the reported object.
func (svc *Service) owner(ctx context.Context, reporterID int64, objectType string, objectID int64) (int64, error) {
	db := svc.db.WithContext(ctx)
	var ids []int64
	var err error
	switch objectType {
	case model.ObjectPost:
		err = db.Model(&model.Post{}).Where("id = ?", objectID).Pluck("author_id", &ids).Error
	case model.ObjectRecord:
		err = db.Model(&model.TastedRecord{}).
			Where("id = ? AND (is_private = ? OR author_id = ?)", objectID, false, reporterID).
			Pluck("author_id", &ids).Error
	case model.ObjectComment:
		err = db.Model(&model.Comment{}).Where("id = ? AND is_deleted = ?", objectID, false).Pluck("author_id", &ids).Error
	case model.ObjectUser:
		err = db.Model(&model.User{}).Where("id = ? AND is_active = ?", objectID, true).Pluck("id", &ids).Error
	default:
		return 0, apperr.Validation("cannot report %q", objectType)
	}
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, apperr.NotFound("%s not found", objectType)
	}
	return ids[0], nil
}

// Create files a pending report.
func (svc *Service) Create(ctx context.Context, reporterID int64, objectType string, objectID int64, reason string) (*model.Report, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("reason is required")
	}
	if utf8.RuneCountInString(reason) > maxReason {
		return nil, apperr.Validation("reason is longer than %d characters", maxReason)
	}
	ownerID, err := svc.owner(ctx, reporterID, objectType, objectID)
	if err != nil {
		return nil, err
	}
	if ownerID == reporterID {
		return nil, apperr.Validation("cannot report your own %s", objectType)
	}

	var pending int64
	if err := svc.db.WithContext(ctx).Model(&model.Report{}).
		Where("reporter_id = ? AND object_type = ? AND object_id = ? AND status = ?",
			reporterID, objectType, objectID, model.ReportPending).
		Count(&pending).Error; err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, apperr.Conflict("already reported")
	}

	r := &model.Report{
		ReporterID: reporterID,
		ObjectType: objectType,
		ObjectID:   objectID,
		Reason:     reason,
		Status:     model.ReportPending,
	}
	if err := svc.db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// List returns reports newest first, optionally of one status.
func (svc *Service) List(ctx context.Context, status string, req paging.Request) (paging.Result[model.Report], error) {
	req = req.Normalize()
	q := svc.db.WithContext(ctx).Model(&model.Report{})
	if status != "" {
		if status != model.ReportPending && status != model.ReportResolved && status != model.ReportRejected {
			return paging.Result[model.Report]{}, apperr.Validation("unknown status %q", status)
		}
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return paging.Result[model.Report]{}, err
	}
	var reports []model.Report
	if err := q.Order("created_at DESC, id DESC").Offset(req.Offset()).Limit(req.Size).Find(&reports).Error; err != nil {
		return paging.Result[model.Report]{}, err
	}
	return paging.New(reports, total, req), nil
}

// Resolve closes a pending report as resolved or rejected.
func (svc *Service) Resolve(ctx context.Context, id int64, status string) (*model.Report, error) {
	if status != model.ReportResolved && status != model.ReportRejected {
		return nil, apperr.Validation("status must be resolved or rejected")
	}
	var r model.Report
	err := svc.db.WithContext(ctx).First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("report not found")
	}
	if err != nil {
		return nil, err
	}
	if r.Status != model.ReportPending {
		return nil, apperr.Conflict("report is already %s", r.Status)
	}
	res := svc.db.WithContext(ctx).Model(&model.Report{}).
		Where("id = ? AND status = ?", id, model.ReportPending).
		Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Conflict("report was resolved concurrently")
	}
	r.Status = status
	return &r, nil
}
