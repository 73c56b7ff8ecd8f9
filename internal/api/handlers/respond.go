package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondData(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// pathDate reads and validates the {date} route variable.
// 잘못된 날짜는 400 으로 응답하고 false 반환.
func pathDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := mux.Vars(r)["date"]
	if _, err := contracts.ParseIngestDate(date); err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return "", false
	}
	return date, true
}

// statusFor maps a reader error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrNotFound), errors.Is(err, contracts.ErrPartitionNotFound):
		return http.StatusNotFound
	case errors.Is(err, contracts.ErrInvalidDate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
