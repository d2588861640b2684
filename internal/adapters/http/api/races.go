package api

import (
	"context"
	"net/http"

	service "github.com/okian/gridpick/internal/app"
	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/registry"
)

// RaceDependencies defines the calendar reads.
type RaceDependencies interface {
	Races(ctx context.Context, when service.When) ([]model.Race, error)
	Race(ctx context.Context, id int64) (model.Race, error)
	NextRace(ctx context.Context) (model.Race, error)
}

// RaceHandler serves the race calendar and the driver registry.
type RaceHandler struct {
	deps RaceDependencies
}

// NewRaceHandler creates a new race handler.
func NewRaceHandler(deps RaceDependencies) *RaceHandler {
	return &RaceHandler{deps: deps}
}

type driversResponse struct {
	Drivers []model.Driver `json:"drivers"`
	Teams   []model.Team   `json:"teams"`
}

// HandleDrivers handles GET /drivers.
func (h *RaceHandler) HandleDrivers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, driversResponse{
		Drivers: registry.Drivers(),
		Teams:   registry.Teams(),
	})
}

// HandleListRaces handles GET /races?when=all|upcoming|past.
func (h *RaceHandler) HandleListRaces(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_races"
	when, err := service.ParseWhen(r.URL.Query().Get("when"))
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	races, err := h.deps.Races(r.Context(), when)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	if races == nil {
		races = []model.Race{}
	}
	writeJSON(w, http.StatusOK, races)
}

// HandleGetRace handles GET /races/{raceID}.
func (h *RaceHandler) HandleGetRace(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_race"
	id, err := idParam(r, "raceID")
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	race, err := h.deps.Race(r.Context(), id)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, race)
}

// HandleNextRace handles GET /races/next.
func (h *RaceHandler) HandleNextRace(w http.ResponseWriter, r *http.Request) {
	race, err := h.deps.NextRace(r.Context())
	if err != nil {
		fail(w, Wrap("api.next_race", err))
		return
	}
	writeJSON(w, http.StatusOK, race)
}
