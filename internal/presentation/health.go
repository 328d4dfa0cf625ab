package presentation

import (
	"context"
	"net/http"
	"time"

	"github.com/RaikyD/dealer-orders-service/internal/presentation/helpers"
	"github.com/go-chi/chi/v5"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// MountHealth exposes liveness plus a database ping.
func MountHealth(r chi.Router, db Pinger) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if db != nil {
			if err := db.Ping(ctx); err != nil {
				helpers.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "db": err.Error()})
				return
			}
		}
		helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
