package api

import (
	"context"
	"net/http"
	"strconv"

	service "github.com/okian/gridpick/internal/app"
	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/submission"
)

// BallotDependencies defines ballot entry: the confidence hint shown while
// picking and the one-shot submit.
type BallotDependencies interface {
	Confidence(ctx context.Context, q service.ConfidenceQuery) (service.ConfidenceResult, error)
	SubmitBallot(ctx context.Context, b model.Ballot) (submission.Result, error)
}

// BallotHandler handles ballot requests.
type BallotHandler struct {
	deps BallotDependencies
}

// NewBallotHandler creates a new ballot handler.
func NewBallotHandler(deps BallotDependencies) *BallotHandler {
	return &BallotHandler{deps: deps}
}

// ballotRequest is the body of POST /races/{raceID}/ballot. The race and
// user come from the path and the session.
type ballotRequest struct {
	QualiP1 string `json:"quali_p1_driver"`
	QualiP2 string `json:"quali_p2_driver"`
	QualiP3 string `json:"quali_p3_driver"`
	RaceP1  string `json:"race_p1_driver"`
	RaceP2  string `json:"race_p2_driver"`
	RaceP3  string `json:"race_p3_driver"`
	Bonus1  string `json:"bonus_1"`
	Bonus2  string `json:"bonus_2"`
	Bonus3  string `json:"bonus_3"`
}

func (b ballotRequest) ballot(raceID int64) model.Ballot {
	return model.Ballot{
		RaceID:  raceID,
		QualiP1: b.QualiP1,
		QualiP2: b.QualiP2,
		QualiP3: b.QualiP3,
		RaceP1:  b.RaceP1,
		RaceP2:  b.RaceP2,
		RaceP3:  b.RaceP3,
		Bonus1:  b.Bonus1,
		Bonus2:  b.Bonus2,
		Bonus3:  b.Bonus3,
	}
}

type submitResponse struct {
	Message       string       `json:"message"`
	ServerMessage string       `json:"server_message,omitempty"`
	Ballot        model.Ballot `json:"ballot"`
}

// HandleSubmit handles POST /races/{raceID}/ballot.
func (h *BallotHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_ballot"
	raceID, err := idParam(r, "raceID")
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req ballotRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.SubmitBallot(r.Context(), req.ballot(raceID))
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{
		Message:       res.Message,
		ServerMessage: res.ServerMessage,
		Ballot:        res.Ballot,
	})
}

// HandleConfidence handles GET /races/{raceID}/confidence?slot=&driver=&seq=.
// An empty result is a 200 with "no_data": true; the client shows no bar.
func (h *BallotHandler) HandleConfidence(w http.ResponseWriter, r *http.Request) {
	const op = "api.confidence"
	raceID, err := idParam(r, "raceID")
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	q := r.URL.Query()
	slot, err := model.ParseSlot(q.Get("slot"))
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	var seq uint64
	if raw := q.Get("seq"); raw != "" {
		seq, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			fail(w, WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	res, err := h.deps.Confidence(r.Context(), service.ConfidenceQuery{
		RaceID: raceID,
		Slot:   slot,
		Driver: q.Get("driver"),
		Seq:    seq,
	})
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
