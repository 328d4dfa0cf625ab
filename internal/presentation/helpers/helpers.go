package helpers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// UserHeader carries the caller id set by the auth gateway.
const UserHeader = "X-User-ID"

func DecodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(io.LimitReader(r, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func HttpError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"message": msg})
}

func UserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}
