package store

import (
	"context"
	"fmt"
	"time"

	"purchasedesk/internal/utils"
	"purchasedesk/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const imageTableName = "purchasedesk.request_images"

var imageColumns = utils.StructTagValues(types.ImageRecord{})

type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

// CreateImage inserts the row and sets the generated ID on image.
func (r *ImageRepository) CreateImage(ctx context.Context, image *types.ImageRecord) error {
	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now()
	}

	query, args, err := psql().
		Insert(imageTableName).
		Columns("request_id", "name", "created_at").
		Values(image.RequestID, image.Name, image.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert image query: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&image.ID)
	return utils.ErrorWrapOrNil(err, "failed to create image")
}

// ImageByRequestIDAndID scopes the lookup to the owning request so an image
// id from another request never resolves.
func (r *ImageRepository) ImageByRequestIDAndID(ctx context.Context, requestID string, imageID int64) (*types.ImageRecord, error) {
	query, args, err := psql().
		Select(imageColumns...).
		From(imageTableName).
		Where(sq.Eq{"id": imageID, "request_id": requestID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate image query: %w", err)
	}

	var image = new(types.ImageRecord)
	err = pgxscan.Get(ctx, r.pool, image, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}

	return image, nil
}

// ImagesByRequestID returns images in insertion order.
func (r *ImageRepository) ImagesByRequestID(ctx context.Context, requestID string) ([]*types.ImageRecord, error) {
	query, args, err := psql().
		Select(imageColumns...).
		From(imageTableName).
		Where(sq.Eq{"request_id": requestID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate images query: %w", err)
	}

	var images = make([]*types.ImageRecord, 0)
	err = pgxscan.Select(ctx, r.pool, &images, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch images: %w", err)
	}

	return images, nil
}

// AllImages is used by the reconciliation sweep.
func (r *ImageRepository) AllImages(ctx context.Context) ([]*types.ImageRecord, error) {
	query, args, err := psql().
		Select(imageColumns...).
		From(imageTableName).
		OrderBy("request_id ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate all images query: %w", err)
	}

	var images = make([]*types.ImageRecord, 0)
	err = pgxscan.Select(ctx, r.pool, &images, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch all images: %w", err)
	}

	return images, nil
}

func (r *ImageRepository) UpdateImageName(ctx context.Context, requestID string, imageID int64, name string) error {
	query, args, err := psql().
		Update(imageTableName).
		Set("name", name).
		Where(sq.Eq{"id": imageID, "request_id": requestID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update image query for image %d: %w", imageID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update image name: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrImageNotFound
	}

	return nil
}

func (r *ImageRepository) DeleteImage(ctx context.Context, requestID string, imageID int64) error {
	query, args, err := psql().
		Delete(imageTableName).
		Where(sq.Eq{"id": imageID, "request_id": requestID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete image query for image %d: %w", imageID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrImageNotFound
	}

	return nil
}

// DeleteImagesByRequestID removes every image row of a request in one
// statement and reports how many rows went away.
func (r *ImageRepository) DeleteImagesByRequestID(ctx context.Context, requestID string) (int64, error) {
	query, args, err := psql().
		Delete(imageTableName).
		Where(sq.Eq{"request_id": requestID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate delete images query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete images: %w", err)
	}

	return tag.RowsAffected(), nil
}
