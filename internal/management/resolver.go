// Package management owns the per request management record: price range,
// costs, operator notes and the close reason.
//
// Writes replace the whole record. Partial edits go through Overlay, which
// reads, mutates and writes back the full row, so two concurrent edits of
// different fields resolve as last write wins over the entire record.
package management

import (
	"context"

	"purchasedesk/pkg/types"

	"github.com/sirupsen/logrus"
)

type Repository interface {
	Management(ctx context.Context, requestID string) (*types.ManagementRecord, error)
	UpsertManagement(ctx context.Context, record *types.ManagementRecord) error
	UpdateCloseReason(ctx context.Context, requestID string, closeReason *types.CloseReason) (*types.ManagementRecord, error)
}

type RequestFinder interface {
	Request(ctx context.Context, requestID string) (*types.Request, error)
}

type Resolver struct {
	requests RequestFinder
	repo     Repository
	logger   logrus.FieldLogger
}

func NewResolver(requests RequestFinder, repo Repository, logger logrus.FieldLogger) *Resolver {
	return &Resolver{
		requests: requests,
		repo:     repo,
		logger:   logger.WithField("component", "management"),
	}
}

// Get returns the stored record or nil when none exists.
func (r *Resolver) Get(ctx context.Context, requestID string) (*types.ManagementRecord, error) {
	record, err := r.repo.Management(ctx, requestID)
	if err != nil {
		return nil, types.StoreError(err, "fetch management record")
	}
	return record, nil
}

// Resolve is Get with zero valued defaults in place of a missing record.
func (r *Resolver) Resolve(ctx context.Context, requestID string) (*types.ManagementRecord, error) {
	record, err := r.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if record == nil {
		return types.DefaultManagementRecord(requestID), nil
	}

	return record, nil
}

// Upsert stores record as the complete management state of its request.
func (r *Resolver) Upsert(ctx context.Context, record *types.ManagementRecord) error {
	if record == nil || record.RequestID == "" {
		return types.InvalidInputf("request id is required")
	}

	if _, err := r.requests.Request(ctx, record.RequestID); err != nil {
		return types.StoreError(err, "fetch request")
	}

	if err := r.repo.UpsertManagement(ctx, record); err != nil {
		return types.StoreError(err, "upsert management record")
	}

	return nil
}

// Overlay applies mutate to the current record (or the defaults) and writes
// the result back as a full record.
func (r *Resolver) Overlay(ctx context.Context, requestID string, mutate func(*types.ManagementRecord)) (*types.ManagementRecord, error) {
	if _, err := r.requests.Request(ctx, requestID); err != nil {
		return nil, types.StoreError(err, "fetch request")
	}

	record, err := r.Resolve(ctx, requestID)
	if err != nil {
		return nil, err
	}

	mutate(record)
	record.RequestID = requestID

	if err := r.repo.UpsertManagement(ctx, record); err != nil {
		return nil, types.StoreError(err, "upsert management record")
	}

	return record, nil
}

// UpdateFinalOutcome persists closeReason on an existing record. finalOutcome
// has no column and only lives in the status history. When the request has no
// management record the call does nothing and returns nil.
func (r *Resolver) UpdateFinalOutcome(ctx context.Context, requestID string, finalOutcome *types.FinalOutcome, closeReason *types.CloseReason) (*types.ManagementRecord, error) {
	record, err := r.repo.UpdateCloseReason(ctx, requestID, closeReason)
	if err != nil {
		return nil, types.StoreError(err, "update close reason")
	}

	if record == nil {
		r.logger.WithField("request_id", requestID).Debug("no management record, close reason not stored")
		return nil, nil
	}

	fields := logrus.Fields{"request_id": requestID}
	if finalOutcome != nil {
		fields["final_outcome"] = finalOutcome.String()
	}
	if closeReason != nil {
		fields["close_reason"] = closeReason.String()
	}
	r.logger.WithFields(fields).Debug("close reason stored on management record")

	return record, nil
}
