package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// StandingsDependencies defines the interface for global standings reads.
type StandingsDependencies interface {
	Standings(ctx context.Context, limit int) ([]Entry, error)
	StandingFor(ctx context.Context, username string) (Entry, error)
	MaxStandingsLimit() int
}

// StandingsHandler handles standings requests.
type StandingsHandler struct {
	deps StandingsDependencies
}

// NewStandingsHandler creates a new standings handler.
func NewStandingsHandler(deps StandingsDependencies) *StandingsHandler {
	return &StandingsHandler{deps: deps}
}

// HandleGetStandings handles GET /standings?limit=N. Without a limit the
// largest allowed page is returned.
func (h *StandingsHandler) HandleGetStandings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_standings"
	maxLimit := h.deps.MaxStandingsLimit()
	n, err := intQuery(r, "limit", maxLimit)
	if err == nil && n < 1 {
		err = fmt.Errorf("limit must be between 1 and %d", maxLimit)
	}
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if n > maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	entries, err := h.deps.Standings(r.Context(), n)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGetStanding handles GET /standings/{username}.
func (h *StandingsHandler) HandleGetStanding(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_standing"
	username := strings.TrimSpace(chi.URLParam(r, "username"))
	if username == "" {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}
	entry, err := h.deps.StandingFor(r.Context(), username)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
