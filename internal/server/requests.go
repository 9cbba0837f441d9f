package server

import (
	"context"
	"net/http"
	"time"

	"purchasedesk/pkg/types"

	"github.com/sirupsen/logrus"
)

type statusBody struct {
	Status       *types.StatusCode   `json:"status" form:"status" validate:"required"`
	FinalOutcome *types.FinalOutcome `json:"finalOutcome" form:"final_outcome"`
	CloseReason  *types.CloseReason  `json:"closeReason" form:"close_reason"`
	Notes        *string             `json:"notes" form:"notes" validate:"omitempty,max=4000"`
}

func (s *Service) handlePutStatus(w http.ResponseWriter, r *http.Request) {
	var ctx = r.Context()

	id, err := requestID(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}

	var body = new(statusBody)
	if err := decodeBody(w, r, body); err != nil {
		s.handleError(w, r, err, logrus.Fields{"request_id": id})
		return
	}

	result, err := s.statuses.ChangeStatus(ctx, types.StatusChange{
		RequestID:    id,
		Status:       *body.Status,
		FinalOutcome: body.FinalOutcome,
		CloseReason:  body.CloseReason,
		Notes:        body.Notes,
	})
	if err != nil {
		s.handleError(w, r, err, logrus.Fields{"request_id": id})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	var ctx = r.Context()

	id, err := requestID(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}

	fields := logrus.Fields{"request_id": id}

	overview, err := s.statuses.Overview(ctx, id)
	if err != nil {
		s.handleError(w, r, err, fields)
		return
	}

	record, err := s.management.Resolve(ctx, id)
	if err != nil {
		s.handleError(w, r, err, fields)
		return
	}

	offers, err := s.offers.ListByRequest(ctx, id)
	if err != nil {
		s.handleError(w, r, err, fields)
		return
	}

	writeJSON(w, http.StatusOK, types.RequestDetail{
		Request:       overview.Request,
		CurrentStatus: overview.Current,
		StatusHistory: overview.History,
		Management:    record,
		Offers:        offers,
	})
}

func (s *Service) handleStatusCodes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, types.Catalogue())
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.logger.WithError(err).Warn("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
