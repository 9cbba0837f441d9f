package server

import (
	"net/http"

	"purchasedesk/pkg/types"

	"github.com/sirupsen/logrus"
)

func (s *Service) handleGetOffers(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}

	offers, err := s.offers.ListByRequest(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err, logrus.Fields{"request_id": id})
		return
	}

	writeJSON(w, http.StatusOK, offers)
}

func (s *Service) handlePostOffer(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		s.handleError(w, r, err, nil)
		return
	}

	fields := logrus.Fields{"request_id": id}

	var body = new(types.OfferInput)
	if err := decodeBody(w, r, body); err != nil {
		s.handleError(w, r, err, fields)
		return
	}

	offer, err := s.offers.Add(r.Context(), id, body)
	if err != nil {
		s.handleError(w, r, err, fields)
		return
	}

	writeJSON(w, http.StatusCreated, offer)
}

func (s *Service) handlePatchOffer(w http.ResponseWriter, r *http.Request) {
	offerID := pathParam(r, "offerID")
	fields := logrus.Fields{"offer_id": offerID}

	var body = new(types.OfferPatch)
	if err := decodeBody(w, r, body); err != nil {
		s.handleError(w, r, err, fields)
		return
	}

	offer, err := s.offers.Update(r.Context(), offerID, body)
	if err != nil {
		s.handleError(w, r, err, fields)
		return
	}

	writeJSON(w, http.StatusOK, offer)
}

func (s *Service) handleDeleteOffer(w http.ResponseWriter, r *http.Request) {
	offerID := pathParam(r, "offerID")

	if err := s.offers.Delete(r.Context(), offerID); err != nil {
		s.handleError(w, r, err, logrus.Fields{"offer_id": offerID})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": offerID})
}
