// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/okian/gridpick/internal/adapters/auth"
	"github.com/okian/gridpick/internal/domain/types"
	"github.com/okian/gridpick/pkg/logger"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// Dependencies required by HTTP handlers. Each handler group declares the
// narrow slice it needs; the service satisfies all of them.
type Dependencies interface {
	StatsProvider
	RaceDependencies
	BallotDependencies
	StandingsDependencies
	LeagueDependencies
	RivalryDependencies
	AdminDependencies
	NotificationDependencies
}

// Entry mirrors the read shape returned by standings queries.
type Entry = types.Entry

// Server wires HTTP routes for the BFF.
type Server struct {
	verifier *auth.Verifier
	origins  []string
	log      logger.Logger

	healthHandler        *HealthHandler
	statsHandler         *StatsHandler
	raceHandler          *RaceHandler
	ballotHandler        *BallotHandler
	standingsHandler     *StandingsHandler
	leagueHandler        *LeagueHandler
	rivalryHandler       *RivalryHandler
	adminHandler         *AdminHandler
	notificationsHandler *NotificationsHandler
}

// NewServer creates a new API server with all handlers. Tokens are checked
// with verifier.
func NewServer(deps Dependencies, verifier *auth.Verifier, opts ...Option) *Server {
	s := &Server{verifier: verifier}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("api")
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.raceHandler = NewRaceHandler(deps)
	s.ballotHandler = NewBallotHandler(deps)
	s.standingsHandler = NewStandingsHandler(deps)
	s.leagueHandler = NewLeagueHandler(deps)
	s.rivalryHandler = NewRivalryHandler(deps)
	s.adminHandler = NewAdminHandler(deps)
	s.notificationsHandler = NewNotificationsHandler(deps, s.origins, s.log)
	return s
}

// Routes builds the router. Callers may mount more routes on the result.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware, RequestLogger(s.log))
	if len(s.origins) > 0 {
		r.Use(CORS(s.origins))
	}
	r.Use(s.verifier.Authenticate(authError))

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Get("/drivers", s.raceHandler.HandleDrivers)
	r.Get("/races", s.raceHandler.HandleListRaces)
	r.Get("/races/next", s.raceHandler.HandleNextRace)
	r.Get("/races/{raceID}", s.raceHandler.HandleGetRace)

	r.Get("/standings", s.standingsHandler.HandleGetStandings)
	r.Get("/standings/{username}", s.standingsHandler.HandleGetStanding)

	r.Get("/leagues/public", s.leagueHandler.HandlePublic)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(authError))

		r.Get("/races/{raceID}/confidence", s.ballotHandler.HandleConfidence)
		r.Post("/races/{raceID}/ballot", s.ballotHandler.HandleSubmit)

		r.Get("/leagues", s.leagueHandler.HandleOverview)
		r.Post("/leagues", s.leagueHandler.HandleCreate)
		r.Get("/leagues/mine", s.leagueHandler.HandleMine)
		r.Post("/leagues/join", s.leagueHandler.HandleJoin)
		r.Route("/leagues/{leagueID}", func(r chi.Router) {
			r.Delete("/", s.leagueHandler.HandleDelete)
			r.Post("/invite", s.leagueHandler.HandleInvite)
			r.Post("/leave", s.leagueHandler.HandleLeave)
			r.Post("/sync", s.leagueHandler.HandleSync)
			r.Get("/standings", s.leagueHandler.HandleStandings)
			r.Get("/members", s.leagueHandler.HandleMembers)
			r.Get("/grading", s.leagueHandler.HandleGrading)
			r.Get("/activity", s.leagueHandler.HandleActivity)
		})

		r.Get("/rivalries", s.rivalryHandler.HandleList)
		r.Post("/rivalries", s.rivalryHandler.HandleChallenge)
		r.Get("/rivalries/{rivalryID}", s.rivalryHandler.HandleGet)
		r.Post("/rivalries/{rivalryID}/accept", s.rivalryHandler.HandleAccept)
		r.Post("/rivalries/{rivalryID}/decline", s.rivalryHandler.HandleDecline)

		r.Get("/notifications", s.notificationsHandler.HandleRecent)
		r.Delete("/notifications/{notificationID}", s.notificationsHandler.HandleDismiss)
		r.Get("/notifications/ws", s.notificationsHandler.HandleSocket)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAdmin(authError))
		r.Post("/races/{raceID}/settle", s.adminHandler.HandleSettle)
		r.Get("/races/{raceID}/ballots", s.adminHandler.HandleBallots)
		r.Post("/ballots/{ballotID}/grade", s.adminHandler.HandleGrade)
		r.Get("/ballots/{ballotID}/grade", s.adminHandler.HandleGradeState)
		r.Post("/rivalries/{rivalryID}/races", s.adminHandler.HandleRivalryRace)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = rootMessage(err)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail classifies err and writes it.
func fail(w http.ResponseWriter, err error) {
	status, code, msg := classify(err)
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// authError renders failures from the auth middleware in the API's shape.
func authError(w http.ResponseWriter, _ *http.Request, err error) {
	fail(w, err)
}

// decodeJSON reads a single JSON document from the request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// idParam parses a positive integer route parameter.
func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// intQuery parses an optional integer query parameter, returning def when
// it is absent.
func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}
