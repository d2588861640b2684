package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	service "github.com/okian/gridpick/internal/app"
	"github.com/okian/gridpick/internal/domain/model"
)

// RivalryDependencies defines the participant side of the rivalry lifecycle.
type RivalryDependencies interface {
	Rivalries(ctx context.Context) ([]model.Rivalry, error)
	Rivalry(ctx context.Context, id string) (model.Rivalry, error)
	Challenge(ctx context.Context, req service.ChallengeRequest) (model.Rivalry, error)
	AcceptRivalry(ctx context.Context, id, driver string) (model.Rivalry, error)
	DeclineRivalry(ctx context.Context, id string) (model.Rivalry, error)
}

// RivalryHandler handles rivalry requests.
type RivalryHandler struct {
	deps RivalryDependencies
}

// NewRivalryHandler creates a new rivalry handler.
func NewRivalryHandler(deps RivalryDependencies) *RivalryHandler {
	return &RivalryHandler{deps: deps}
}

type acceptRequest struct {
	Driver string `json:"driver"`
}

// HandleList handles GET /rivalries.
func (h *RivalryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Rivalries(r.Context())
	respondList(w, "api.list_rivalries", rows, err)
}

// HandleGet handles GET /rivalries/{rivalryID}.
func (h *RivalryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rivalry"
	id, ok := rivalryID(w, r, op)
	if !ok {
		return
	}
	rv, err := h.deps.Rivalry(r.Context(), id)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

// HandleChallenge handles POST /rivalries.
func (h *RivalryHandler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	const op = "api.challenge"
	var req service.ChallengeRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	rv, err := h.deps.Challenge(r.Context(), req)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

// HandleAccept handles POST /rivalries/{rivalryID}/accept. The body names
// the opponent's driver.
func (h *RivalryHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	const op = "api.accept_rivalry"
	id, ok := rivalryID(w, r, op)
	if !ok {
		return
	}
	var req acceptRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	rv, err := h.deps.AcceptRivalry(r.Context(), id, req.Driver)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

// HandleDecline handles POST /rivalries/{rivalryID}/decline.
func (h *RivalryHandler) HandleDecline(w http.ResponseWriter, r *http.Request) {
	const op = "api.decline_rivalry"
	id, ok := rivalryID(w, r, op)
	if !ok {
		return
	}
	rv, err := h.deps.DeclineRivalry(r.Context(), id)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

func rivalryID(w http.ResponseWriter, r *http.Request, op string) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "rivalryID"))
	if id == "" {
		fail(w, NewKind(op, ErrBadRequest))
		return "", false
	}
	return id, true
}
