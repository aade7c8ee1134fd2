// Package photo uploads images to object storage and attaches them to posts
// and tasted records.
package photo

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path"
	"strings"
	"time"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxPerObject is the most photos one upload or one post/record may carry.
const MaxPerObject = 10

type Service struct {
	db       *gorm.DB
	store    storage.Store
	maxBytes int64
	logger   *zap.Logger
}

func New(db *gorm.DB, store storage.Store, maxUploadMB int, logger *zap.Logger) *Service {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &Service{db: db, store: store, maxBytes: int64(maxUploadMB) << 20, logger: logger}
}

// ObjectKey builds photos/<yyyy>/<mm>/<uuid><ext>.
func ObjectKey(now time.Time, ext string) string {
	return fmt.Sprintf("photos/%04d/%02d/%s%s", now.Year(), int(now.Month()), uuid.NewString(), ext)
}

func (svc *Service) put(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	if fh.Size > svc.maxBytes {
		return "", apperr.Validation("%s exceeds %d MB", fh.Filename, svc.maxBytes>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", apperr.Validation("%s is not an image", fh.Filename)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return "", err
	}
	ext := mt.Extension()
	if ext == "" {
		ext = strings.ToLower(path.Ext(fh.Filename))
	}
	key := ObjectKey(time.Now(), ext)
	if err := svc.store.Put(ctx, key, f, fh.Size, mt.String()); err != nil {
		return "", fmt.Errorf("photo: store %s: %w", key, err)
	}
	return key, nil
}

// Upload stores every file and returns the new, unattached photos. Nothing
// is kept when any file fails.
func (svc *Service) Upload(ctx context.Context, uploaderID int64, files []*multipart.FileHeader) ([]model.Photo, error) {
	if len(files) == 0 {
		return nil, apperr.Validation("no images")
	}
	if len(files) > MaxPerObject {
		return nil, apperr.Validation("at most %d images", MaxPerObject)
	}
	var keys []string
	cleanup := func() { svc.RemoveObjects(context.WithoutCancel(ctx), keys) }

	for _, fh := range files {
		key, err := svc.put(ctx, fh)
		if err != nil {
			cleanup()
			return nil, err
		}
		keys = append(keys, key)
	}

	photos := make([]model.Photo, len(keys))
	for i, k := range keys {
		photos[i] = model.Photo{UploaderID: uploaderID, ObjectKey: k, URL: svc.store.URL(k)}
	}
	if err := svc.db.WithContext(ctx).Create(&photos).Error; err != nil {
		cleanup()
		return nil, err
	}
	return photos, nil
}

// Delete removes an unattached photo owned by uploaderID.
func (svc *Service) Delete(ctx context.Context, uploaderID, id int64) error {
	var p model.Photo
	err := svc.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("photo not found")
	}
	if err != nil {
		return err
	}
	if p.UploaderID != uploaderID {
		return apperr.Forbidden("not your photo")
	}
	if p.PostID != nil || p.RecordID != nil {
		return apperr.Conflict("photo is attached")
	}
	if err := svc.db.WithContext(ctx).Delete(&p).Error; err != nil {
		return err
	}
	svc.RemoveObjects(ctx, []string{p.ObjectKey})
	return nil
}

// Attach points ids at the given post or record inside tx, replacing the
// previous set. Photos must belong to uploaderID and be free or already
// attached to the same target. Detached photos become free again.
func Attach(tx *gorm.DB, uploaderID int64, ids []int64, column string, targetID int64) error {
	if column != "post_id" && column != "record_id" {
		return fmt.Errorf("photo: bad attach column %q", column)
	}
	if len(ids) > MaxPerObject {
		return apperr.Validation("at most %d photos", MaxPerObject)
	}
	detach := tx.Model(&model.Photo{}).Where(column+" = ?", targetID)
	if len(ids) > 0 {
		detach = detach.Where("id NOT IN ?", ids)
	}
	if err := detach.Update(column, nil).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	var n int64
	if err := tx.Model(&model.Photo{}).
		Where("id IN ? AND uploader_id = ? AND post_id IS NULL AND record_id IS NULL", ids, uploaderID).
		Or("id IN ? AND "+column+" = ?", ids, targetID).
		Count(&n).Error; err != nil {
		return err
	}
	if n != int64(len(uniq(ids))) {
		return apperr.Validation("photos must be your own unattached uploads")
	}
	return tx.Model(&model.Photo{}).Where("id IN ?", ids).Update(column, targetID).Error
}

// Detach deletes the photo rows of a target inside tx and returns their
// object keys so the caller can remove the objects after commit.
func Detach(tx *gorm.DB, column string, targetID int64) ([]string, error) {
	if column != "post_id" && column != "record_id" {
		return nil, fmt.Errorf("photo: bad detach column %q", column)
	}
	var keys []string
	if err := tx.Model(&model.Photo{}).Where(column+" = ?", targetID).Pluck("object_key", &keys).Error; err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return keys, tx.Where(column+" = ?", targetID).Delete(&model.Photo{}).Error
}

// RemoveObjects deletes stored objects, logging failures.
func (svc *Service) RemoveObjects(ctx context.Context, keys []string) {
	for _, k := range keys {
		if err := svc.store.Delete(ctx, k); err != nil {
			svc.logger.Warn("photo object delete failed", zap.String("key", k), zap.Error(err))
		}
	}
}

func uniq(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
