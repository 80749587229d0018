package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"courseta-backend/internal/models"
	"courseta-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError emits the flat {"error": ...} payload. The chat page checks
// this field regardless of status code, so every error path goes through
// here.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

func handleServiceError(w http.ResponseWriter, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Message)
		return
	}
	var uerr *services.UpstreamError
	if errors.As(err, &uerr) {
		writeError(w, http.StatusBadGateway, uerr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "An unexpected error occurred")
}

// clientKey identifies a browser for relay-side follow-up context. No
// cookies: the remote IP (set by the RealIP middleware) is enough for a
// single-course deployment.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
