package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/dieharders/ai-text-server-sub000/pkg/inference"
)

const maxBodyBytes = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

func writeEnvelope(w http.ResponseWriter, status int, env inference.Envelope) {
	writeJSON(w, status, env)
}

func ok(w http.ResponseWriter, message string, data any) {
	writeEnvelope(w, http.StatusOK, inference.OK(message, data))
}

func fail(w http.ResponseWriter, status int, err error) {
	writeEnvelope(w, status, inference.Fail(err))
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v
// untouched.
func decodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps an inference failure onto an HTTP status. Problems with
// the request or server state are client errors; model and tool failures
// are server errors.
func statusFor(err error) int {
	switch inference.KindOf(err) {
	case inference.KindConfigurationError,
		inference.KindToolNotFoundError,
		inference.KindInvalidToolDefinition:
		return http.StatusBadRequest
	case inference.KindPreconditionError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
