// Package runs serves the planning run log over HTTP.
package runs

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/skyplan/core/runlog"
)

// History looks up past runs.
type History interface {
	History(ctx context.Context, q runlog.Query) ([]runlog.Record, error)
}

// NewHandler returns an HTTP handler exposing run records via GET /api/runs.
// Requests must include an Authorization header with "Bearer <token>" when
// token is non-empty.
func NewHandler(h History, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !Authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		q, err := parseQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := h.History(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []runlog.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// NewRecordHandler returns one run by the "id" route parameter, or 404.
func NewRecordHandler(h History, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !Authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		records, err := h.History(r.Context(), runlog.Query{RunID: chi.URLParam(r, "id")})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if len(records) == 0 {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records[0]); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// Authorized checks the bearer token. An empty token admits every request.
func Authorized(r *http.Request, token string) bool {
	return token == "" || r.Header.Get("Authorization") == "Bearer "+token
}

func parseQuery(r *http.Request) (runlog.Query, error) {
	v := r.URL.Query()
	q := runlog.Query{TelescopeID: v.Get("telescope_id")}
	var err error
	if s := v.Get("start"); s != "" {
		if q.Start, err = time.Parse(time.RFC3339, s); err != nil {
			return q, err
		}
	}
	if s := v.Get("end"); s != "" {
		if q.End, err = time.Parse(time.RFC3339, s); err != nil {
			return q, err
		}
	}
	if s := v.Get("min_probability"); s != "" {
		if q.MinProbability, err = strconv.ParseFloat(s, 64); err != nil {
			return q, err
		}
	}
	return q, nil
}
