package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"cashledger/internal/idempotency"

	"go.uber.org/zap"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "X-Idempotency-Replayed"
	maxIdempotencyKey = 200
)

type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (*idempotency.Response, error)
	Save(ctx context.Context, key string, resp idempotency.Response) error
	Release(ctx context.Context, key string) error
}

// Idempotency replays the stored response of a POST carrying an
// Idempotency-Key already seen for the same user. Responses with a 5xx status
// are not stored. A nil store disables the middleware.
func Idempotency(store IdempotencyStore, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if r.Method != http.MethodPost || raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(raw) > maxIdempotencyKey {
				writeError(w, http.StatusBadRequest, "invalid_idempotency_key", "idempotency key is too long")
				return
			}
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
				return
			}
			key := idempotency.Key(userID, raw)

			stored, err := store.Reserve(r.Context(), key)
			switch {
			case errors.Is(err, idempotency.ErrInProgress):
				writeError(w, http.StatusConflict, "request_in_progress", "a request with this idempotency key is still being processed")
				return
			case err != nil:
				// The cache is an optimisation; serve the request without it.
				logger.Warn("idempotency cache unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			case stored != nil:
				if stored.ContentType != "" {
					w.Header().Set("Content-Type", stored.ContentType)
				}
				w.Header().Set(ReplayedHeader, "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Body)
				return
			}

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			ctx := context.WithoutCancel(r.Context())
			if rec.status >= http.StatusInternalServerError {
				if err := store.Release(ctx, key); err != nil {
					logger.Warn("idempotency release failed", zap.String("key", key), zap.Error(err))
				}
				return
			}
			resp := idempotency.Response{
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			}
			if err := store.Save(ctx, key, resp); err != nil {
				logger.Warn("idempotency save failed", zap.String("key", key), zap.Error(err))
			}
		})
	}
}

type recordingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (w *recordingWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	w.body.Write(p)
	return w.ResponseWriter.Write(p)
}
