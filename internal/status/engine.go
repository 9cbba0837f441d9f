// Package status records the handling stages of a purchase request.
//
// The history is an append-only log. There is no transition table: any status
// may follow any other, including going back to an earlier stage.
package status

import (
	"context"
	"time"

	"purchasedesk/internal/metrics"
	"purchasedesk/pkg/types"

	"github.com/sirupsen/logrus"
)

type RequestFinder interface {
	Request(ctx context.Context, requestID string) (*types.Request, error)
}

type Repository interface {
	AppendStatus(ctx context.Context, record *types.StatusRecord) error
	LatestStatus(ctx context.Context, requestID string) (*types.StatusRecord, error)
	StatusHistory(ctx context.Context, requestID string) ([]*types.StatusRecord, error)
}

// OutcomeRecorder receives the close reason once a request reaches its
// final status. management.Resolver implements it.
type OutcomeRecorder interface {
	UpdateFinalOutcome(ctx context.Context, requestID string, finalOutcome *types.FinalOutcome, closeReason *types.CloseReason) (*types.ManagementRecord, error)
}

type Engine struct {
	requests RequestFinder
	repo     Repository
	outcomes OutcomeRecorder
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewEngine(requests RequestFinder, repo Repository, outcomes OutcomeRecorder, logger logrus.FieldLogger) *Engine {
	return &Engine{
		requests: requests,
		repo:     repo,
		outcomes: outcomes,
		logger:   logger.WithField("component", "status"),
		now:      time.Now,
	}
}

// ChangeStatus appends a status record. When the new status is final and an
// outcome or close reason is given, the close reason is also written to the
// management record; a failure there is reported in Warnings and does not
// undo the append.
func (e *Engine) ChangeStatus(ctx context.Context, change types.StatusChange) (*types.StatusChangeResult, error) {
	if change.RequestID == "" {
		return nil, types.InvalidInputf("request id is required")
	}

	if !change.Status.Valid() {
		return nil, types.InvalidInputf("status %d is not a recognized status code", int(change.Status))
	}

	if _, err := e.requests.Request(ctx, change.RequestID); err != nil {
		return nil, types.StoreError(err, "fetch request")
	}

	latest, err := e.repo.LatestStatus(ctx, change.RequestID)
	if err != nil {
		return nil, types.StoreError(err, "fetch latest status")
	}

	// Postgres keeps microseconds; the returned record must match what is read back.
	changeDate := e.now().UTC().Truncate(time.Microsecond)
	if latest != nil && latest.ChangeDate.After(changeDate) {
		changeDate = latest.ChangeDate
	}

	record := &types.StatusRecord{
		RequestID:    change.RequestID,
		Status:       change.Status,
		ChangeDate:   changeDate,
		FinalOutcome: change.FinalOutcome,
		CloseReason:  change.CloseReason,
		Notes:        change.Notes,
	}

	if err := e.repo.AppendStatus(ctx, record); err != nil {
		return nil, types.StoreError(err, "append status")
	}

	logger := e.logger.WithFields(logrus.Fields{
		"request_id": change.RequestID,
		"status":     change.Status.String(),
	})
	logger.Info("status changed")

	result := &types.StatusChangeResult{
		Record:          record,
		Warnings:        make([]string, 0),
		RequiredActions: make([]types.AutomaticAction, 0),
	}

	if change.Status != types.StatusFinalOutcome {
		return result, nil
	}

	result.RequiredActions = types.ActionsForCloseReason(change.CloseReason)

	if change.FinalOutcome == nil && change.CloseReason == nil {
		return result, nil
	}

	_, err = e.outcomes.UpdateFinalOutcome(ctx, change.RequestID, change.FinalOutcome, change.CloseReason)
	if err != nil {
		logger.WithError(err).Warn("status stored but close reason could not be written to management record")
		metrics.SoftWarning("status", "management_update_failed")
		result.Warnings = append(result.Warnings, "status saved, but the close reason could not be stored on the management record")
	}

	return result, nil
}

// CurrentStatus returns the latest record, or the synthesized AwaitingCall
// default when the request has no history.
func (e *Engine) CurrentStatus(ctx context.Context, requestID string) (*types.StatusRecord, error) {
	request, err := e.requests.Request(ctx, requestID)
	if err != nil {
		return nil, types.StoreError(err, "fetch request")
	}

	latest, err := e.repo.LatestStatus(ctx, requestID)
	if err != nil {
		return nil, types.StoreError(err, "fetch latest status")
	}

	if latest == nil {
		return types.DefaultStatus(request), nil
	}

	return latest, nil
}

// History returns all records, oldest first.
func (e *Engine) History(ctx context.Context, requestID string) ([]*types.StatusRecord, error) {
	if _, err := e.requests.Request(ctx, requestID); err != nil {
		return nil, types.StoreError(err, "fetch request")
	}

	history, err := e.repo.StatusHistory(ctx, requestID)
	if err != nil {
		return nil, types.StoreError(err, "fetch status history")
	}

	return history, nil
}

// Overview loads the request, its history and current status in one pass.
func (e *Engine) Overview(ctx context.Context, requestID string) (*types.StatusOverview, error) {
	request, err := e.requests.Request(ctx, requestID)
	if err != nil {
		return nil, types.StoreError(err, "fetch request")
	}

	history, err := e.repo.StatusHistory(ctx, requestID)
	if err != nil {
		return nil, types.StoreError(err, "fetch status history")
	}

	current := types.DefaultStatus(request)
	if len(history) > 0 {
		current = history[len(history)-1]
	}

	return &types.StatusOverview{
		Request: request,
		Current: current,
		History: history,
	}, nil
}
