package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/RowanDark/cipherlab/internal/cipher"
	"github.com/RowanDark/cipherlab/internal/cipherr"
	"github.com/RowanDark/cipherlab/internal/history"
	"github.com/RowanDark/cipherlab/internal/service"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto status codes. Cipher taxonomy errors
// carry their kind so clients can tell a bad key from a bad ciphertext.
func writeError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "canceled"
	case errors.Is(err, cipher.ErrUnknownOperation):
		return http.StatusBadRequest, "unknown_operation"
	case errors.Is(err, cipher.ErrRecipeNotFound), errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrHistoryDisabled):
		return http.StatusServiceUnavailable, "history_disabled"
	}
	if kind, ok := cipherr.KindOf(err); ok {
		return http.StatusUnprocessableEntity, string(kind)
	}
	return http.StatusInternalServerError, "internal"
}
