package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/filescloud/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Anything unrecognized
// becomes a generic 500 so internal detail never reaches the client.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, common.ErrNotFoundOrForbidden),
		errors.Is(err, common.ErrTokenNotFound),
		errors.Is(err, common.ErrorNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrLinkExpired):
		status, msg = http.StatusGone, "link expired"
	case errors.Is(err, common.ErrDownloadLimitExceeded):
		status, msg = http.StatusGone, "download limit exceeded"
	case errors.Is(err, common.ErrPasswordRequired):
		status, msg = http.StatusUnauthorized, "password required"
	case errors.Is(err, common.ErrPasswordMismatch):
		status, msg = http.StatusUnauthorized, "password mismatch"
	case errors.Is(err, common.ErrUnsupportedType):
		status, msg = http.StatusUnsupportedMediaType, "unsupported file type"
	case errors.Is(err, common.ErrPayloadTooLarge):
		status, msg = http.StatusRequestEntityTooLarge, "payload too large"
	case errors.Is(err, common.ErrUsernameTaken):
		status, msg = http.StatusConflict, "username taken"
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrRefreshTokenExpired):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrStorageWriteFailed):
		status, msg = http.StatusInternalServerError, "storage write failed"
	}

	writeJSON(w, status, errorResponse{Error: msg})
}
