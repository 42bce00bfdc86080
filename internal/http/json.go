package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	domainauth "github.com/target/cse-console/internal/domain/auth"
	apperrors "github.com/target/cse-console/internal/errors"
	"github.com/target/cse-console/internal/service"
)

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": p.Err.Error()})
}

var errMissingUserID = errors.New("user id is required")

// accessDeniedMessage is the only text an operator sees for any failed admin check.
const accessDeniedMessage = "Access Denied"

// classified is an error reduced to what the operator may see.
type classified struct {
	Status  int
	Code    string
	Message string
}

// classify maps component errors onto HTTP responses. Every role and admin failure
// collapses onto one access-denied response that never says which check failed.
func classify(err error) classified {
	switch {
	case domainauth.IsAccessDenial(err):
		return classified{http.StatusForbidden, "access_denied", accessDeniedMessage}
	case errors.Is(err, domainauth.ErrInvalidCredentials):
		return classified{http.StatusUnauthorized, "invalid_credentials", "Invalid login credentials"}
	case errors.Is(err, domainauth.ErrWriteTransport):
		return classified{http.StatusBadGateway, "update_failed", apperrors.Message(err, "The access store rejected the update")}
	case errors.Is(err, domainauth.ErrNetwork):
		return classified{http.StatusBadGateway, "network_error", "Could not reach the identity service. Please try again."}
	case errors.Is(err, service.ErrDirectoryClosed):
		return classified{http.StatusConflict, "admin_session_closed", "The admin session has ended. Sign in again."}
	default:
		return classified{http.StatusInternalServerError, "internal", "Something went wrong"}
	}
}

// writeClassified writes err as a JSON error after classification.
func writeClassified(w http.ResponseWriter, err error) {
	c := classify(err)
	WriteJSON(w, c.Status, map[string]string{"error": c.Code, "message": c.Message})
}
