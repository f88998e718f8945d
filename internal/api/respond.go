package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"marketplace/internal/devhub"
	"marketplace/internal/logging"
	"marketplace/internal/services"
	"marketplace/internal/store"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError renders err. Form errors become {"errors"}, wizard redirects
// answer 200 with {"redirect"}, and everything else maps through
// services.HTTPStatus.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if path, ok := devhub.AsRedirect(err); ok {
		writeJSON(w, http.StatusOK, RedirectResponse{Redirect: path})
		return
	}
	if fe, ok := devhub.AsFormErrors(err); ok {
		writeJSON(w, http.StatusBadRequest, FormErrorResponse{Errors: fe})
		return
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), logger), "request failed", "api_error",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
		if status == http.StatusInternalServerError {
			writeJSON(w, status, ErrorResponse{Error: "internal error"})
			return
		}
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	default:
		return services.HTTPStatus(err)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return services.Wrap(services.ErrValidation, "api", "decode", "invalid JSON body", err)
	}
	return nil
}
