package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/gridpick/internal/app"
	"github.com/okian/gridpick/internal/domain/grading"
	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/settlement"
)

// AdminDependencies defines the privileged operations. Routes are behind
// auth.RequireAdmin; the service checks the session again.
type AdminDependencies interface {
	Settle(ctx context.Context, result model.RaceResult) (settlement.Outcome, error)
	AdminBallots(ctx context.Context, raceID int64) ([]service.AdminBallot, error)
	Grade(ctx context.Context, ballotID int64, adj grading.Adjustment) (grading.State, error)
	GradeState(ballotID int64) (grading.State, bool)
	RecordRivalryRace(ctx context.Context, id string, raceID int64, challengerPts, opponentPts int) (model.Rivalry, error)
}

// AdminHandler handles admin requests.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

type settleRequest struct {
	QualiP1 string `json:"quali_p1_driver"`
	QualiP2 string `json:"quali_p2_driver"`
	QualiP3 string `json:"quali_p3_driver"`
	RaceP1  string `json:"race_p1_driver"`
	RaceP2  string `json:"race_p2_driver"`
	RaceP3  string `json:"race_p3_driver"`
}

type gradeRequest struct {
	Adjustment string `json:"adjustment"`
}

type gradeResponse struct {
	grading.State
	Adjustments []grading.Adjustment `json:"adjustments"`
}

type rivalryRaceRequest struct {
	RaceID           int64 `json:"race_id"`
	ChallengerPoints int   `json:"challenger_points"`
	OpponentPoints   int   `json:"opponent_points"`
}

// HandleSettle handles POST /admin/races/{raceID}/settle. The outcome is
// rendered for the admin whether or not the scoring API accepted it, so
// any answer from upstream is a 200 and "ok" tells the two apart.
func (h *AdminHandler) HandleSettle(w http.ResponseWriter, r *http.Request) {
	const op = "api.settle"
	raceID, err := idParam(r, "raceID")
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req settleRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	out, err := h.deps.Settle(r.Context(), model.RaceResult{
		RaceID:  raceID,
		QualiP1: req.QualiP1,
		QualiP2: req.QualiP2,
		QualiP3: req.QualiP3,
		RaceP1:  req.RaceP1,
		RaceP2:  req.RaceP2,
		RaceP3:  req.RaceP3,
	})
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleBallots handles GET /admin/races/{raceID}/ballots.
func (h *AdminHandler) HandleBallots(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_ballots"
	raceID, err := idParam(r, "raceID")
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	rows, err := h.deps.AdminBallots(r.Context(), raceID)
	respondList(w, op, rows, err)
}

// HandleGrade handles POST /admin/ballots/{ballotID}/grade. The new score
// is returned at once as pending; persistence finishes in the background.
func (h *AdminHandler) HandleGrade(w http.ResponseWriter, r *http.Request) {
	const op = "api.grade"
	ballotID, err := idParam(r, "ballotID")
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req gradeRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	adj, err := grading.ParseAdjustment(req.Adjustment)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	st, err := h.deps.Grade(r.Context(), ballotID, adj)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, gradeResponse{State: st, Adjustments: grading.Adjustments()})
}

// HandleGradeState handles GET /admin/ballots/{ballotID}/grade.
func (h *AdminHandler) HandleGradeState(w http.ResponseWriter, r *http.Request) {
	const op = "api.grade_state"
	ballotID, err := idParam(r, "ballotID")
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	st, ok := h.deps.GradeState(ballotID)
	if !ok {
		fail(w, WrapKind(op, ErrNotFound, errors.New("ballot has not been graded")))
		return
	}
	writeJSON(w, http.StatusOK, gradeResponse{State: st, Adjustments: grading.Adjustments()})
}

// HandleRivalryRace handles POST /admin/rivalries/{rivalryID}/races.
func (h *AdminHandler) HandleRivalryRace(w http.ResponseWriter, r *http.Request) {
	const op = "api.rivalry_race"
	id, ok := rivalryID(w, r, op)
	if !ok {
		return
	}
	var req rivalryRaceRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.RaceID <= 0 {
		fail(w, WrapKind(op, ErrBadRequest, errors.New("race_id is required")))
		return
	}
	rv, err := h.deps.RecordRivalryRace(r.Context(), id, req.RaceID, req.ChallengerPoints, req.OpponentPoints)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rv)
}
