package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/guard"
	"github.com/skwf/portal/portal"
	"github.com/skwf/portal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeRedirect answers a guard redirect. The body carries the target so
// API clients that do not follow Location still learn where to go.
func writeRedirect(w http.ResponseWriter, status int, target guard.Area, msg string) {
	w.Header().Set("Location", areaLocation(target))
	writeJSON(w, status, ErrorResponse{Error: msg, Redirect: string(target)})
}

func areaLocation(area guard.Area) string {
	return "/api/v1/areas" + area.Path()
}

func mapError(w http.ResponseWriter, err error) {
	var (
		verr   *portal.ValidationError
		na     *portal.NotAllowedError
		apiErr *apiclient.Error
	)
	switch {
	case errors.As(err, &verr):
		resp := ErrorResponse{Error: "invalid input"}
		for _, f := range verr.Fields {
			resp.Fields = append(resp.Fields, FieldError{Field: f.Field, Message: f.Message})
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, portal.ErrSessionInvalidated):
		writeRedirect(w, http.StatusUnauthorized, guard.AreaLogin, "your account no longer exists")
	case errors.As(err, &na) && na.Decision.Pending():
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &na):
		writeRedirect(w, http.StatusForbidden, na.Decision.Target, err.Error())
	case errors.Is(err, session.ErrNoSession):
		writeRedirect(w, http.StatusUnauthorized, guard.AreaLogin, err.Error())
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, ErrorResponse{Error: apiErr.Message, PaymentPending: apiErr.PaymentPending})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
