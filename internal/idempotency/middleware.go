package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RaikyD/dealer-orders-service/internal/logger"
)

const (
	HeaderKey    = "Idempotency-Key"
	HeaderReplay = "X-Idempotent-Replay"

	// maxBody matches the JSON decoder limit used by the handlers.
	maxBody = 1 << 20
)

// IdentityFunc names the caller so keys are scoped per user.
type IdentityFunc func(r *http.Request) string

// Middleware replays the stored response for a repeated Idempotency-Key.
// Requests without the header, or with a nil store, pass straight through.
func Middleware(store Store, ttl time.Duration, identity IdentityFunc) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(HeaderKey))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
			if err != nil {
				respond(w, http.StatusBadRequest, "unable to read request body")
				return
			}
			if len(body) > maxBody {
				respond(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			who := "anonymous"
			if identity != nil {
				if id := strings.TrimSpace(identity(r)); id != "" {
					who = id
				}
			}
			scoped := sha256Hex([]byte(who + "|" + key))
			fingerprint := sha256Hex([]byte(r.Method + "|" + r.URL.Path + "|" + who + "|" + string(body)))

			state, rec, err := store.Reserve(r.Context(), scoped, fingerprint, ttl)
			switch {
			case errors.Is(err, ErrFingerprintMismatch):
				respond(w, http.StatusConflict, "idempotency key already used for a different request")
				return
			case err != nil:
				logger.Error("idempotency reserve failed", "err", err)
				respond(w, http.StatusInternalServerError, "unable to process idempotency key")
				return
			}

			switch state {
			case ReservationCompleted:
				for name, values := range rec.Headers {
					w.Header()[name] = values
				}
				w.Header().Set(HeaderReplay, "true")
				w.WriteHeader(rec.Status)
				_, _ = w.Write(rec.Body)
				return
			case ReservationPending:
				respond(w, http.StatusConflict, "another request is processing this idempotency key")
				return
			}

			rw := &recorder{header: http.Header{}, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			// The outcome is persisted even if the client has gone away.
			persistCtx := context.WithoutCancel(r.Context())
			// Only successful outcomes are pinned to the key; failures may be retried.
			if rw.status >= 200 && rw.status < 300 {
				err = store.Save(persistCtx, scoped, Record{
					Fingerprint: fingerprint,
					Status:      rw.status,
					Headers:     rw.header,
					Body:        rw.body.Bytes(),
				}, ttl)
			} else {
				err = store.Release(persistCtx, scoped)
			}
			if err != nil {
				logger.Warn("idempotency state not persisted", "err", err)
			}

			for name, values := range rw.header {
				w.Header()[name] = values
			}
			w.WriteHeader(rw.status)
			_, _ = w.Write(rw.body.Bytes())
		})
	}
}

// recorder buffers the downstream response so it can be stored before it is sent.
type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
	wrote  bool
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) {
	if r.wrote {
		return
	}
	r.status = status
	r.wrote = true
}

func (r *recorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.body.Write(b)
}

func respond(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
