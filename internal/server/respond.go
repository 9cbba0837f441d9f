package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"purchasedesk/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const (
	codeInvalidInput     = "INVALID_INPUT"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codeNotFound         = "NOT_FOUND"
	codeStoreUnavailable = "STORE_UNAVAILABLE"
	codeInternalError    = "INTERNAL_ERROR"
)

const maxJSONBodyBytes = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeErrorDetails(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message, Details: details}})
}

func (s *Service) internalServerError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal server error")
}

// handleError maps component errors onto the error envelope. Only store and
// unexpected failures are logged; the rest are the caller's mistake.
func (s *Service) handleError(w http.ResponseWriter, r *http.Request, err error, fields logrus.Fields) {
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, codeInvalidInput, clientMessage(err, types.ErrInvalidInput))
	case errors.Is(err, types.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, types.ErrStoreUnavailable):
		s.logger.WithError(err).WithFields(fields).WithField("path", r.URL.Path).Error("store operation failed")
		writeError(w, http.StatusInternalServerError, codeStoreUnavailable, "a backing store is unavailable")
	default:
		s.logger.WithError(err).WithFields(fields).WithField("path", r.URL.Path).Error("unexpected error")
		s.internalServerError(w)
	}
}

// clientMessage strips the sentinel prefix from an InvalidInputf error.
func clientMessage(err, sentinel error) string {
	msg := err.Error()
	if trimmed, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return trimmed
	}
	return msg
}

// decodeBody fills v from a JSON or form encoded body and validates it.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
		var err error
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(maxJSONBodyBytes)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return types.InvalidInputf("failed to parse form")
		}
		if err := decoder.Decode(v, r.PostForm); err != nil {
			return types.InvalidInputf("failed to decode form: %s", err)
		}
	default:
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return types.InvalidInputf("invalid json body: %s", err)
		}
	}

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return types.InvalidInputf("%s failed %s validation", verrs[0].Field(), verrs[0].Tag())
		}
		return types.InvalidInputf("%s", err)
	}

	return nil
}

func pathParam(r *http.Request, name string) string {
	return flow.Param(r.Context(), name)
}

func requestID(r *http.Request) (string, error) {
	id := strings.TrimSpace(pathParam(r, "id"))
	if id == "" {
		return "", types.InvalidInputf("request id is required")
	}
	return id, nil
}

func formatCount(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
