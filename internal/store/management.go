package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"purchasedesk/internal/utils"
	"purchasedesk/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const managementTableName = "purchasedesk.request_management"

var managementColumns = utils.StructTagValues(types.ManagementRecord{})

type ManagementRepository struct {
	pool *pgxpool.Pool
}

func NewManagementRepository(pool *pgxpool.Pool) *ManagementRepository {
	return &ManagementRepository{pool: pool}
}

// Management returns nil, nil when the request has no management row yet.
func (r *ManagementRepository) Management(ctx context.Context, requestID string) (*types.ManagementRecord, error) {
	query, args, err := psql().
		Select(managementColumns...).
		From(managementTableName).
		Where(sq.Eq{"request_id": requestID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate management query: %w", err)
	}

	var record types.ManagementRecord
	err = pgxscan.Get(ctx, r.pool, &record, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch management record: %w", err)
	}

	return &record, nil
}

// UpsertManagement replaces the whole row in a single statement.
func (r *ManagementRepository) UpsertManagement(ctx context.Context, record *types.ManagementRecord) error {
	record.UpdatedAt = time.Now()

	query, args, err := psql().
		Insert(managementTableName).
		SetMap(utils.StructToMap(record)).
		Suffix(`ON CONFLICT (request_id) DO UPDATE SET
			notes = EXCLUDED.notes,
			range_min = EXCLUDED.range_min,
			range_max = EXCLUDED.range_max,
			registration_cost = EXCLUDED.registration_cost,
			transport_cost = EXCLUDED.transport_cost,
			purchase_price = EXCLUDED.purchase_price,
			sale_price = EXCLUDED.sale_price,
			close_reason = EXCLUDED.close_reason,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate upsert management query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to upsert management record")
}

// UpdateCloseReason only touches close_reason. It never creates a row and
// returns nil, nil when there is nothing to update.
func (r *ManagementRepository) UpdateCloseReason(ctx context.Context, requestID string, closeReason *types.CloseReason) (*types.ManagementRecord, error) {
	query, args, err := psql().
		Update(managementTableName).
		Set("close_reason", closeReason).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"request_id": requestID}).
		Suffix("RETURNING " + strings.Join(managementColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate update close reason query: %w", err)
	}

	var record types.ManagementRecord
	err = pgxscan.Get(ctx, r.pool, &record, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update close reason: %w", err)
	}

	return &record, nil
}
