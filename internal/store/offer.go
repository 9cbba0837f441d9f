package store

import (
	"context"
	"fmt"
	"strings"

	"purchasedesk/internal/utils"
	"purchasedesk/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const offerTableName = "purchasedesk.request_offers"

var offerColumns = utils.StructTagValues(types.OfferRecord{})

type OfferRepository struct {
	pool *pgxpool.Pool
}

func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

func (r *OfferRepository) CreateOffer(ctx context.Context, offer *types.OfferRecord) error {
	query, args, err := psql().
		Insert(offerTableName).
		SetMap(utils.StructToMap(offer)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert offer query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create offer")
}

// UpdateOffer writes only the given columns and returns the updated row.
func (r *OfferRepository) UpdateOffer(ctx context.Context, offerID string, columns map[string]any) (*types.OfferRecord, error) {
	query, args, err := psql().
		Update(offerTableName).
		SetMap(columns).
		Where(sq.Eq{"id": offerID}).
		Suffix("RETURNING " + strings.Join(offerColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate update offer query for offer %s: %w", offerID, err)
	}

	var offer types.OfferRecord
	err = pgxscan.Get(ctx, r.pool, &offer, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrOfferNotFound
		}
		return nil, fmt.Errorf("failed to update offer: %w", err)
	}

	return &offer, nil
}

func (r *OfferRepository) DeleteOffer(ctx context.Context, offerID string) error {
	query, args, err := psql().
		Delete(offerTableName).
		Where(sq.Eq{"id": offerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete offer query for offer %s: %w", offerID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete offer: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrOfferNotFound
	}

	return nil
}

func (r *OfferRepository) OffersByRequestID(ctx context.Context, requestID string) ([]*types.OfferRecord, error) {
	query, args, err := psql().
		Select(offerColumns...).
		From(offerTableName).
		Where(sq.Eq{"request_id": requestID}).
		OrderBy("offer_date DESC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate offers query: %w", err)
	}

	var offers = make([]*types.OfferRecord, 0)
	err = pgxscan.Select(ctx, r.pool, &offers, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch offers: %w", err)
	}

	return offers, nil
}
