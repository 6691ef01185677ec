package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/lettings-match/internal/campaign"
)

type errorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP status codes. Internal error
// details are logged, not returned.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *campaign.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request", Problems: verr.Problems})
	case errors.Is(err, campaign.ErrValidationFailure):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, campaign.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, campaign.ErrNoPropertiesMatched):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "no properties matched the campaign criteria"})
	default:
		logger.Error("request error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &campaign.ValidationError{Problems: []string{"malformed JSON body: " + err.Error()}}
	}
	return nil
}
