package store

import (
	"context"
	"fmt"

	"purchasedesk/internal/utils"
	"purchasedesk/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const statusTableName = "purchasedesk.request_status"

var statusColumns = utils.StructTagValues(types.StatusRecord{})

// StatusRepository is the append-only status log. Rows are never updated.
type StatusRepository struct {
	pool *pgxpool.Pool
}

func NewStatusRepository(pool *pgxpool.Pool) *StatusRepository {
	return &StatusRepository{pool: pool}
}

func (r *StatusRepository) AppendStatus(ctx context.Context, record *types.StatusRecord) error {
	query, args, err := psql().
		Insert(statusTableName).
		Columns("request_id", "status", "change_date", "final_outcome", "close_reason", "notes").
		Values(record.RequestID, record.Status, record.ChangeDate, record.FinalOutcome, record.CloseReason, record.Notes).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate append status query: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&record.ID)
	return utils.ErrorWrapOrNil(err, "failed to append status")
}

// LatestStatus returns nil, nil when the request has no history.
func (r *StatusRepository) LatestStatus(ctx context.Context, requestID string) (*types.StatusRecord, error) {
	query, args, err := psql().
		Select(statusColumns...).
		From(statusTableName).
		Where(sq.Eq{"request_id": requestID}).
		OrderBy("change_date DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate latest status query: %w", err)
	}

	var record types.StatusRecord
	err = pgxscan.Get(ctx, r.pool, &record, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch latest status: %w", err)
	}

	return &record, nil
}

// StatusHistory returns every record for a request, oldest first.
func (r *StatusRepository) StatusHistory(ctx context.Context, requestID string) ([]*types.StatusRecord, error) {
	query, args, err := psql().
		Select(statusColumns...).
		From(statusTableName).
		Where(sq.Eq{"request_id": requestID}).
		OrderBy("change_date ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate status history query: %w", err)
	}

	var records = make([]*types.StatusRecord, 0)
	err = pgxscan.Select(ctx, r.pool, &records, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status history: %w", err)
	}

	return records, nil
}
