package server

import (
	"net/http"

	"purchasedesk/pkg/types"

	"github.com/sirupsen/logrus"
)

// handlePutManagement replaces the whole record. Fields missing from the body
// are reset to their zero value.
func (s *Service) handlePutManagement(w http.ResponseWriter, r *http.Request) {
	var ctx = r.Context()

	id, err := requestID(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}

	fields := logrus.Fields{"request_id": id}

	var body = new(types.ManagementPatch)
	if err := decodeBody(w, r, body); err != nil {
		s.handleError(w, r, err, fields)
		return
	}

	record := types.DefaultManagementRecord(id)
	body.Apply(record)

	if err := s.management.Upsert(ctx, record); err != nil {
		s.handleError(w, r, err, fields)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// handlePatchManagement overlays the supplied fields onto the stored record.
func (s *Service) handlePatchManagement(w http.ResponseWriter, r *http.Request) {
	var ctx = r.Context()

	id, err := requestID(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}

	fields := logrus.Fields{"request_id": id}

	var body = new(types.ManagementPatch)
	if err := decodeBody(w, r, body); err != nil {
		s.handleError(w, r, err, fields)
		return
	}

	if body.Empty() {
		s.handleError(w, r, types.InvalidInputf("at least one field must be supplied"), fields)
		return
	}

	record, err := s.management.Overlay(ctx, id, body.Apply)
	if err != nil {
		s.handleError(w, r, err, fields)
		return
	}

	writeJSON(w, http.StatusOK, record)
}
