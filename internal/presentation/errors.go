package presentation

import (
	"errors"
	"net/http"
	"strings"

	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/RaikyD/dealer-orders-service/internal/logger"
	"github.com/RaikyD/dealer-orders-service/internal/presentation/helpers"
)

type errorBody struct {
	Success *bool  `json:"success,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

var sentinels = []struct {
	err    error
	status int
}{
	{domain.ErrValidation, http.StatusBadRequest},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrConflict, http.StatusConflict},
}

// statusOf maps a service error to its HTTP status and client-facing body.
func statusOf(err error) (int, errorBody) {
	if rej, ok := domain.CouponRejection(err); ok {
		status := http.StatusForbidden
		if rej.Reason == domain.ReasonNotFound {
			status = http.StatusNotFound
		}
		return status, errorBody{Reason: string(rej.Reason), Message: rej.Message}
	}

	switch {
	case errors.Is(err, domain.ErrNotOutForDelivery):
		return http.StatusBadRequest, errorBody{Reason: "not_out_for_delivery", Message: trimSentinel(err, domain.ErrValidation)}
	case errors.Is(err, domain.ErrInvalidPIN):
		return http.StatusBadRequest, errorBody{Reason: "invalid_pin", Message: trimSentinel(err, domain.ErrValidation)}
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.status, errorBody{Message: trimSentinel(err, s.err)}
		}
	}
	return http.StatusInternalServerError, errorBody{Message: "internal server error"}
}

func trimSentinel(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	helpers.WriteJSON(w, status, body)
}
