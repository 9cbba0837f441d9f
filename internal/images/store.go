// Package images keeps request images in two places: a row per image in
// Postgres and the file itself in the object store under
// "{requestID}/{name}".
//
// The two writes are never atomic. Creation writes the blob before the row and
// removal deletes the row regardless of the blob outcome, so an interrupted
// operation leaves an unreferenced object behind rather than a row pointing
// at nothing. Reconciler finds and removes those objects.
package images

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"purchasedesk/internal/metrics"
	"purchasedesk/internal/utils"
	"purchasedesk/pkg/types"

	"github.com/sirupsen/logrus"
)

const (
	CodeBlobWriteFailed = "BLOB_WRITE_FAILED"
	CodeRowWriteFailed  = "ROW_WRITE_FAILED"
	CodeInvalidFile     = "INVALID_FILE"
)

type RequestFinder interface {
	Request(ctx context.Context, requestID string) (*types.Request, error)
}

type Repository interface {
	CreateImage(ctx context.Context, image *types.ImageRecord) error
	ImageByRequestIDAndID(ctx context.Context, requestID string, imageID int64) (*types.ImageRecord, error)
	ImagesByRequestID(ctx context.Context, requestID string) ([]*types.ImageRecord, error)
	UpdateImageName(ctx context.Context, requestID string, imageID int64, name string) error
	DeleteImage(ctx context.Context, requestID string, imageID int64) error
	DeleteImagesByRequestID(ctx context.Context, requestID string) (int64, error)
}

type BlobStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
	StatObject(ctx context.Context, key string) (*types.BlobInfo, error)
	PublicURL(key string) string
}

type AssetStore struct {
	requests RequestFinder
	repo     Repository
	blobs    BlobStore
	logger   logrus.FieldLogger
	newName  func(fileName string) string
}

func NewAssetStore(requests RequestFinder, repo Repository, blobs BlobStore, logger logrus.FieldLogger) *AssetStore {
	return &AssetStore{
		requests: requests,
		repo:     repo,
		blobs:    blobs,
		logger:   logger.WithField("component", "images"),
		newName:  GenerateName,
	}
}

// GenerateName returns a fresh random file name that keeps the lower cased
// extension of fileName.
func GenerateName(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return utils.NanoID() + ext
}

// Upload stores each file independently. Per file failures are collected in
// the result; the error return is reserved for problems that affect the
// whole batch.
func (s *AssetStore) Upload(ctx context.Context, requestID string, files []types.ImageUpload) (*types.UploadResult, error) {
	if len(files) == 0 {
		return nil, types.InvalidInputf("at least one file is required")
	}

	if _, err := s.requests.Request(ctx, requestID); err != nil {
		return nil, types.StoreError(err, "fetch request")
	}

	result := &types.UploadResult{
		Uploaded: make([]*types.ImageRecord, 0, len(files)),
		Errors:   make([]types.FileError, 0),
	}

	for i, file := range files {
		image, fileErr := s.uploadOne(ctx, requestID, file)
		if fileErr != nil {
			fileErr.Index = i
			result.Errors = append(result.Errors, *fileErr)
			continue
		}
		result.Uploaded = append(result.Uploaded, image)
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"uploaded":   len(result.Uploaded),
		"failed":     len(result.Errors),
	}).Info("images uploaded")

	return result, nil
}

func (s *AssetStore) uploadOne(ctx context.Context, requestID string, file types.ImageUpload) (*types.ImageRecord, *types.FileError) {
	if len(file.Data) == 0 {
		return nil, &types.FileError{FileName: file.FileName, Code: CodeInvalidFile, Message: "file is empty"}
	}

	name := s.newName(file.FileName)
	key := types.ImageObjectKey(requestID, name)
	logger := s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"file_name":  file.FileName,
		"object_key": key,
	})

	if err := s.blobs.PutObject(ctx, key, file.Data, file.ContentType); err != nil {
		logger.WithError(err).Error("failed to write image blob")
		return nil, &types.FileError{FileName: file.FileName, Code: CodeBlobWriteFailed, Message: "could not store file"}
	}

	image := &types.ImageRecord{
		RequestID: requestID,
		Name:      name,
	}
	if err := s.repo.CreateImage(ctx, image); err != nil {
		logger.WithError(err).Error("failed to insert image row after blob write")
		if delErr := s.blobs.DeleteObject(ctx, key); delErr != nil {
			logger.WithError(delErr).Warn("image blob left without row")
			metrics.SoftWarning("images", "orphaned_blob")
		}
		return nil, &types.FileError{FileName: file.FileName, Code: CodeRowWriteFailed, Message: "could not record file"}
	}

	image.URL = s.blobs.PublicURL(key)
	return image, nil
}

// List returns the request's images in insertion order.
func (s *AssetStore) List(ctx context.Context, requestID string) ([]*types.ImageRecord, error) {
	if _, err := s.requests.Request(ctx, requestID); err != nil {
		return nil, types.StoreError(err, "fetch request")
	}

	images, err := s.repo.ImagesByRequestID(ctx, requestID)
	if err != nil {
		return nil, types.StoreError(err, "list images")
	}

	for _, image := range images {
		image.URL = s.blobs.PublicURL(types.ImageObjectKey(requestID, image.Name))
	}

	return images, nil
}

// Info merges the row with whatever metadata the object store returns. The
// row is authoritative; blob fields stay empty when the lookup fails.
func (s *AssetStore) Info(ctx context.Context, requestID string, imageID int64) (*types.ImageInfo, error) {
	image, err := s.repo.ImageByRequestIDAndID(ctx, requestID, imageID)
	if err != nil {
		return nil, types.StoreError(err, "fetch image")
	}

	key := types.ImageObjectKey(requestID, image.Name)
	image.URL = s.blobs.PublicURL(key)

	info := &types.ImageInfo{
		ImageRecord: image,
		ObjectKey:   key,
	}

	blob, err := s.blobs.StatObject(ctx, key)
	if err != nil {
		s.logger.WithError(err).
			WithField("request_id", requestID).
			WithField("image_id", imageID).
			WithField("object_key", key).
			Warn("failed to read image blob metadata")
		return info, nil
	}

	info.Size = blob.Size
	info.ContentType = blob.ContentType
	info.ETag = blob.ETag
	info.LastModified = blob.LastModified

	return info, nil
}

// Replace uploads file under a new name, points the row at it and only then
// removes the previous blob.
func (s *AssetStore) Replace(ctx context.Context, requestID string, imageID int64, file *types.ImageUpload) (*types.ReplaceResult, error) {
	if file == nil || len(file.Data) == 0 {
		return nil, types.InvalidInputf("a replacement file is required")
	}

	image, err := s.repo.ImageByRequestIDAndID(ctx, requestID, imageID)
	if err != nil {
		return nil, types.StoreError(err, "fetch image")
	}

	oldName := image.Name
	oldKey := types.ImageObjectKey(requestID, oldName)
	newName := s.newName(file.FileName)
	newKey := types.ImageObjectKey(requestID, newName)

	logger := s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"image_id":   imageID,
		"old_key":    oldKey,
		"new_key":    newKey,
	})

	if err := s.blobs.PutObject(ctx, newKey, file.Data, file.ContentType); err != nil {
		return nil, types.StoreError(err, "write replacement blob")
	}

	if err := s.repo.UpdateImageName(ctx, requestID, imageID, newName); err != nil {
		logger.WithError(err).Error("replacement blob written but row update failed")
		metrics.SoftWarning("images", "orphaned_blob")
		return nil, types.StoreError(err, "update image row")
	}

	result := &types.ReplaceResult{
		OldName:        oldName,
		NewName:        newName,
		OldBlobDeleted: true,
	}

	if err := s.blobs.DeleteObject(ctx, oldKey); err != nil {
		logger.WithError(err).Warn("failed to delete replaced image blob")
		metrics.SoftWarning("images", "blob_delete_failed")
		result.OldBlobDeleted = false
	}

	image.Name = newName
	image.URL = s.blobs.PublicURL(newKey)
	result.Image = image

	logger.Info("image replaced")

	return result, nil
}

// Delete removes one image. The row is deleted even when the blob delete
// fails.
func (s *AssetStore) Delete(ctx context.Context, requestID string, imageID int64) (*types.DeleteResult, error) {
	image, err := s.repo.ImageByRequestIDAndID(ctx, requestID, imageID)
	if err != nil {
		return nil, types.StoreError(err, "fetch image")
	}

	key := types.ImageObjectKey(requestID, image.Name)
	logger := s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"image_id":   imageID,
		"object_key": key,
	})

	result := &types.DeleteResult{
		ImageID:     imageID,
		Name:        image.Name,
		BlobDeleted: true,
	}

	if err := s.blobs.DeleteObject(ctx, key); err != nil {
		logger.WithError(err).Warn("failed to delete image blob, removing row anyway")
		metrics.SoftWarning("images", "blob_delete_failed")
		result.BlobDeleted = false
	}

	if err := s.repo.DeleteImage(ctx, requestID, imageID); err != nil {
		return nil, types.StoreError(err, "delete image row")
	}

	logger.Info("image deleted")

	return result, nil
}

// DeleteAll removes every image of a request. Blob failures are collected and
// do not stop the row delete.
func (s *AssetStore) DeleteAll(ctx context.Context, requestID string) (*types.DeleteAllResult, error) {
	if _, err := s.requests.Request(ctx, requestID); err != nil {
		return nil, types.StoreError(err, "fetch request")
	}

	images, err := s.repo.ImagesByRequestID(ctx, requestID)
	if err != nil {
		return nil, types.StoreError(err, "list images")
	}

	result := &types.DeleteAllResult{
		Errors: make([]types.BlobError, 0),
	}

	for _, image := range images {
		key := types.ImageObjectKey(requestID, image.Name)
		if err := s.blobs.DeleteObject(ctx, key); err != nil {
			s.logger.WithError(err).
				WithField("request_id", requestID).
				WithField("image_id", image.ID).
				WithField("object_key", key).
				Warn("failed to delete image blob during bulk delete")
			metrics.SoftWarning("images", "blob_delete_failed")
			result.Errors = append(result.Errors, types.BlobError{
				ImageID: image.ID,
				Name:    image.Name,
				Message: fmt.Sprintf("failed to delete %s", key),
			})
			continue
		}
		result.BlobsDeleted++
	}

	rows, err := s.repo.DeleteImagesByRequestID(ctx, requestID)
	if err != nil {
		return nil, types.StoreError(err, "delete image rows")
	}
	result.RowsDeleted = rows

	s.logger.WithFields(logrus.Fields{
		"request_id":    requestID,
		"rows_deleted":  result.RowsDeleted,
		"blobs_deleted": result.BlobsDeleted,
		"blob_errors":   len(result.Errors),
	}).Info("request images deleted")

	return result, nil
}
