package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/gridpick/internal/adapters/scoringapi"
	service "github.com/okian/gridpick/internal/app"
	"github.com/okian/gridpick/internal/domain/model"
)

// LeagueDependencies defines the league operations. They all proxy the
// scoring API with the caller's token.
type LeagueDependencies interface {
	PublicLeagues(ctx context.Context) ([]model.League, error)
	LeagueOverview(ctx context.Context) (service.LeagueOverview, error)
	MyLeagues(ctx context.Context) ([]model.League, error)
	CreateLeague(ctx context.Context, in scoringapi.LeagueInput) (model.League, error)
	JoinLeague(ctx context.Context, code string) (model.League, error)
	InviteToLeague(ctx context.Context, leagueID int64, username string) (string, error)
	LeaveLeague(ctx context.Context, leagueID int64) (string, error)
	DeleteLeague(ctx context.Context, leagueID int64) (string, error)
	SyncLeaguePoints(ctx context.Context, leagueID int64) (string, error)
	LeagueStandings(ctx context.Context, leagueID int64) ([]model.Membership, error)
	LeagueMembers(ctx context.Context, leagueID int64) ([]model.Membership, error)
	LeagueGradingQueue(ctx context.Context, leagueID int64) ([]model.Ballot, error)
	LeagueActivity(ctx context.Context, leagueID int64) ([]model.LeagueActivity, error)
}

// LeagueHandler handles league requests.
type LeagueHandler struct {
	deps LeagueDependencies
}

// NewLeagueHandler creates a new league handler.
func NewLeagueHandler(deps LeagueDependencies) *LeagueHandler {
	return &LeagueHandler{deps: deps}
}

type joinRequest struct {
	InviteCode string `json:"invite_code"`
}

type inviteRequest struct {
	Username string `json:"username"`
}

// HandlePublic handles GET /leagues/public.
func (h *LeagueHandler) HandlePublic(w http.ResponseWriter, r *http.Request) {
	leagues, err := h.deps.PublicLeagues(r.Context())
	respondList(w, "api.public_leagues", leagues, err)
}

// HandleOverview handles GET /leagues: the caller's leagues and the public
// directory in one response.
func (h *LeagueHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.LeagueOverview(r.Context())
	if err != nil {
		fail(w, Wrap("api.league_overview", err))
		return
	}
	if out.Mine == nil {
		out.Mine = []model.League{}
	}
	if out.Public == nil {
		out.Public = []model.League{}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleMine handles GET /leagues/mine.
func (h *LeagueHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	leagues, err := h.deps.MyLeagues(r.Context())
	respondList(w, "api.my_leagues", leagues, err)
}

// HandleCreate handles POST /leagues.
func (h *LeagueHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_league"
	var in scoringapi.LeagueInput
	if err := decodeJSON(r, &in); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		fail(w, WrapKind(op, ErrBadRequest, errors.New("league name is required")))
		return
	}
	l, err := h.deps.CreateLeague(r.Context(), in)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// HandleJoin handles POST /leagues/join.
func (h *LeagueHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	const op = "api.join_league"
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	code := strings.TrimSpace(req.InviteCode)
	if code == "" {
		fail(w, WrapKind(op, ErrBadRequest, errors.New("invite_code is required")))
		return
	}
	l, err := h.deps.JoinLeague(r.Context(), code)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// HandleInvite handles POST /leagues/{leagueID}/invite.
func (h *LeagueHandler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	const op = "api.invite_to_league"
	id, ok := leagueID(w, r, op)
	if !ok {
		return
	}
	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		fail(w, WrapKind(op, ErrBadRequest, errors.New("username is required")))
		return
	}
	msg, err := h.deps.InviteToLeague(r.Context(), id, username)
	respondMessage(w, op, msg, err)
}

// HandleLeave handles POST /leagues/{leagueID}/leave.
func (h *LeagueHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, "api.leave_league", h.deps.LeaveLeague)
}

// HandleDelete handles DELETE /leagues/{leagueID}.
func (h *LeagueHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, "api.delete_league", h.deps.DeleteLeague)
}

// HandleSync handles POST /leagues/{leagueID}/sync.
func (h *LeagueHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, "api.sync_league", h.deps.SyncLeaguePoints)
}

// HandleStandings handles GET /leagues/{leagueID}/standings.
func (h *LeagueHandler) HandleStandings(w http.ResponseWriter, r *http.Request) {
	const op = "api.league_standings"
	if id, ok := leagueID(w, r, op); ok {
		rows, err := h.deps.LeagueStandings(r.Context(), id)
		respondList(w, op, rows, err)
	}
}

// HandleMembers handles GET /leagues/{leagueID}/members.
func (h *LeagueHandler) HandleMembers(w http.ResponseWriter, r *http.Request) {
	const op = "api.league_members"
	if id, ok := leagueID(w, r, op); ok {
		rows, err := h.deps.LeagueMembers(r.Context(), id)
		respondList(w, op, rows, err)
	}
}

// HandleGrading handles GET /leagues/{leagueID}/grading.
func (h *LeagueHandler) HandleGrading(w http.ResponseWriter, r *http.Request) {
	const op = "api.league_grading"
	if id, ok := leagueID(w, r, op); ok {
		rows, err := h.deps.LeagueGradingQueue(r.Context(), id)
		respondList(w, op, rows, err)
	}
}

// HandleActivity handles GET /leagues/{leagueID}/activity.
func (h *LeagueHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	const op = "api.league_activity"
	if id, ok := leagueID(w, r, op); ok {
		rows, err := h.deps.LeagueActivity(r.Context(), id)
		respondList(w, op, rows, err)
	}
}

func (h *LeagueHandler) command(w http.ResponseWriter, r *http.Request, op string,
	fn func(context.Context, int64) (string, error),
) {
	id, ok := leagueID(w, r, op)
	if !ok {
		return
	}
	msg, err := fn(r.Context(), id)
	respondMessage(w, op, msg, err)
}

func leagueID(w http.ResponseWriter, r *http.Request, op string) (int64, bool) {
	id, err := idParam(r, "leagueID")
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return 0, false
	}
	return id, true
}

// respondList writes rows, or an empty array rather than null.
func respondList[T any](w http.ResponseWriter, op string, rows []T, err error) {
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	if rows == nil {
		rows = []T{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func respondMessage(w http.ResponseWriter, op, msg string, err error) {
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}
