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

const requestTableName = "purchasedesk.requests"

var requestColumns = utils.StructTagValues(types.Request{})

type RequestRepository struct {
	pool *pgxpool.Pool
}

func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{pool: pool}
}

func (r *RequestRepository) Request(ctx context.Context, requestID string) (*types.Request, error) {
	query, args, err := psql().
		Select(requestColumns...).
		From(requestTableName).
		Where(sq.Eq{"id": requestID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate request query: %w", err)
	}

	var request = new(types.Request)
	err = pgxscan.Get(ctx, r.pool, request, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to fetch request: %w", err)
	}

	return request, nil
}

// UpsertRequest is used by the seed command; production rows come from intake.
func (r *RequestRepository) UpsertRequest(ctx context.Context, request *types.Request) error {
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now()
	}

	query, args, err := psql().
		Insert(requestTableName).
		SetMap(utils.StructToMap(request)).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			make = EXCLUDED.make,
			model = EXCLUDED.model,
			year = EXCLUDED.year,
			mileage_km = EXCLUDED.mileage_km,
			condition = EXCLUDED.condition,
			contact_name = EXCLUDED.contact_name,
			contact_email = EXCLUDED.contact_email,
			contact_phone = EXCLUDED.contact_phone`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate upsert request query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to upsert request")
}
