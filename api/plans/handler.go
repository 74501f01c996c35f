// Package plans accepts probability grids over HTTP and answers with a
// coverage plan.
package plans

import (
	"context"
	"errors"
	"net/http"

	"github.com/kilianp07/skyplan/api/runs"
	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/core/planner"
	"github.com/kilianp07/skyplan/pkg/export"
)

// MaxGridBytes bounds the request body.
const MaxGridBytes = 256 << 20

// Planner runs a plan for a grid.
type Planner interface {
	Plan(ctx context.Context, g *model.ProbabilityGrid) (*planner.Result, error)
}

// NewHandler returns an HTTP handler for POST /api/plans. The body is a JSON
// grid; the response is the plan and its summary. Invalid input maps to 400
// and a grid no telescope can cover to 422.
func NewHandler(p Planner, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !runs.Authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		g, err := model.DecodeGrid(http.MaxBytesReader(w, r.Body, MaxGridBytes))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res, err := p.Plan(r.Context(), g)
		if err != nil {
			http.Error(w, err.Error(), status(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := export.WriteJSON(w, res.Plan, res.Summary); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

func status(err error) int {
	switch {
	case errors.Is(err, model.ErrInputInvalid):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNoCoverage), errors.Is(err, model.ErrInsufficientVisibility):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
