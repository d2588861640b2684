package ballotsim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/okian/gridpick/internal/adapters/auth"
	"github.com/okian/gridpick/internal/domain/confidence"
	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/registry"
	"github.com/okian/gridpick/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const simSecret = "sim-secret"

// fakeBFF keeps ballots in memory and answers the three routes the
// simulation uses the way the real router does.
type fakeBFF struct {
	mu         sync.Mutex
	verifier   *auth.Verifier
	ballots    map[string]model.Ballot
	noDupCheck bool
}

func newFakeBFF() *fakeBFF {
	return &fakeBFF{verifier: auth.NewVerifier(simSecret, ""), ballots: map[string]model.Ballot{}}
}

func (f *fakeBFF) handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/races/{raceID}/ballot", f.submit)
	r.Get("/races/{raceID}/confidence", f.confidence)
	return r
}

func (f *fakeBFF) session(w http.ResponseWriter, r *http.Request) (model.Session, bool) {
	sess, err := f.verifier.Parse(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if err != nil {
		writeTestJSON(w, http.StatusUnauthorized, apiError{Code: "auth_required", Message: err.Error()})
		return model.Session{}, false
	}
	return sess, true
}

func (f *fakeBFF) submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := f.session(w, r)
	if !ok {
		return
	}
	raceID, _ := strconv.ParseInt(chi.URLParam(r, "raceID"), 10, 64)
	var body ballotBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeTestJSON(w, http.StatusBadRequest, apiError{Code: "validation"})
		return
	}
	b := model.Ballot{
		UserID: sess.UserID, RaceID: raceID,
		QualiP1: body.QualiP1, QualiP2: body.QualiP2, QualiP3: body.QualiP3,
		RaceP1: body.RaceP1, RaceP2: body.RaceP2, RaceP3: body.RaceP3,
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.ballots[sess.UserID]; dup && !f.noDupCheck {
		writeTestJSON(w, http.StatusConflict, apiError{Code: "duplicate", Message: "already submitted"})
		return
	}
	f.ballots[sess.UserID] = b
	writeTestJSON(w, http.StatusCreated, map[string]any{"message": "ok", "ballot": b})
}

func (f *fakeBFF) confidence(w http.ResponseWriter, r *http.Request) {
	if _, ok := f.session(w, r); !ok {
		return
	}
	slot, err := model.ParseSlot(r.URL.Query().Get("slot"))
	if err != nil {
		writeTestJSON(w, http.StatusBadRequest, apiError{Code: "validation"})
		return
	}
	f.mu.Lock()
	picks := make([]string, 0, len(f.ballots))
	for _, b := range f.ballots {
		picks = append(picks, b.Pick(slot))
	}
	f.mu.Unlock()
	s, ok := confidence.Compute(picks, r.URL.Query().Get("driver"))
	if !ok {
		writeTestJSON(w, http.StatusOK, confidenceBody{NoData: true})
		return
	}
	writeTestJSON(w, http.StatusOK, confidenceBody{Sample: &s})
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGenerator(t *testing.T) {
	_ = logger.Init(logger.WithOutput(&bytes.Buffer{}))

	Convey("Given a seeded generator", t, func() {
		g := NewGenerator(42, DefaultSkew)

		Convey("When ballots are drawn", func() {
			ballots := make([]model.Ballot, 2000)
			for i := range ballots {
				ballots[i] = g.Ballot(7)
			}

			Convey("Then every pick is a selectable driver and no session repeats one", func() {
				for _, b := range ballots {
					So(b.RaceID, ShouldEqual, 7)
					for _, slot := range model.Slots() {
						So(registry.IsSelectable(b.Pick(slot)), ShouldBeTrue)
					}
					So(b.QualiP1, ShouldNotEqual, b.QualiP2)
					So(b.QualiP1, ShouldNotEqual, b.QualiP3)
					So(b.QualiP2, ShouldNotEqual, b.QualiP3)
					So(b.RaceP1, ShouldNotEqual, b.RaceP2)
					So(b.RaceP1, ShouldNotEqual, b.RaceP3)
					So(b.RaceP2, ShouldNotEqual, b.RaceP3)
				}
			})

			Convey("Then the front of the popularity order wins pole most often", func() {
				picks := make([]string, len(ballots))
				for i, b := range ballots {
					picks[i] = b.QualiP1
				}
				So(favourite(picks), ShouldEqual, g.quali[0])
			})
		})

		Convey("When a second generator uses the same seed", func() {
			other := NewGenerator(42, DefaultSkew)

			Convey("Then it draws the same ballots", func() {
				for i := 0; i < 20; i++ {
					So(other.Ballot(1), ShouldResemble, g.Ballot(1))
				}
			})
		})

		Convey("When players are created", func() {
			v := auth.NewVerifier(simSecret, "gridpick")
			players, err := g.Players(context.Background(), 5, 3, v)

			Convey("Then each carries a token for its own user", func() {
				So(err, ShouldBeNil)
				So(players, ShouldHaveLength, 5)
				for _, p := range players {
					sess, err := v.Parse(p.Token)
					So(err, ShouldBeNil)
					So(sess.UserID, ShouldEqual, p.UserID)
					So(sess.Username, ShouldEqual, p.Username)
					So(sess.Admin, ShouldBeFalse)
					So(p.Ballot.UserID, ShouldEqual, p.UserID)
				}
			})
		})
	})
}

func TestExpectations(t *testing.T) {
	Convey("Given accepted players", t, func() {
		mk := func(q1 string) Player {
			return Player{Ballot: model.Ballot{
				QualiP1: q1, QualiP2: "Lando Norris", QualiP3: "Oscar Piastri",
				RaceP1: "Max Verstappen", RaceP2: "Lando Norris", RaceP3: "Oscar Piastri",
			}}
		}
		players := []Player{mk("Max Verstappen"), mk("Max Verstappen"), mk("Charles Leclerc")}

		Convey("When expectations are computed", func() {
			checks := Expectations(players)

			Convey("Then every slot targets its favourite", func() {
				So(checks, ShouldHaveLength, len(model.Slots()))
				So(checks[0].Slot, ShouldEqual, model.SlotQualiP1)
				So(checks[0].Driver, ShouldEqual, "Max Verstappen")
				So(checks[0].Expected.Matching, ShouldEqual, 2)
				So(checks[0].Expected.Total, ShouldEqual, 3)
				So(checks[0].Expected.Percentage, ShouldEqual, 67)
			})

			Convey("Then a matching server sample passes", func() {
				So(Compare(checks[0], checks[0].Expected, true), ShouldBeNil)
			})

			Convey("Then disagreements are reported as mismatches", func() {
				got := checks[0].Expected
				got.Matching = 1
				So(errors.Is(Compare(checks[0], got, true), ErrMismatch), ShouldBeTrue)
				So(errors.Is(Compare(checks[0], confidence.Sample{}, false), ErrMismatch), ShouldBeTrue)

				got = checks[0].Expected
				got.Total = 10
				So(Compare(checks[0], got, true).Error(), ShouldContainSubstring, "not empty")
			})
		})

		Convey("When there are none", func() {
			So(Expectations(nil), ShouldBeNil)
		})
	})
}

func TestClassifySubmit(t *testing.T) {
	Convey("Given submit answers", t, func() {
		So(classifySubmit(http.StatusCreated, ""), ShouldEqual, OutcomeCreated)
		So(classifySubmit(http.StatusConflict, "duplicate"), ShouldEqual, OutcomeDuplicate)
		So(classifySubmit(http.StatusConflict, "in_flight"), ShouldEqual, OutcomeInFlight)
		So(classifySubmit(http.StatusUnprocessableEntity, "validation"), ShouldEqual, OutcomeRejected)
		So(classifySubmit(http.StatusBadGateway, "upstream_error"), ShouldEqual, OutcomeFailed)
	})
}

func TestRun(t *testing.T) {
	_ = logger.Init(logger.WithOutput(&bytes.Buffer{}))

	Convey("Given a BFF with an empty race", t, func() {
		bff := newFakeBFF()
		srv := httptest.NewServer(bff.handler())
		defer srv.Close()

		cfg := &Config{
			BaseURL:         srv.URL,
			RaceID:          9,
			Users:           60,
			Workers:         8,
			Secret:          simSecret,
			DuplicateSample: 5,
			Seed:            7,
		}

		Convey("When the simulation runs", func() {
			stats, err := Run(context.Background(), cfg)

			Convey("Then every ballot is created, repeats are duplicates and every slot verifies", func() {
				So(err, ShouldBeNil)
				So(stats.Generated, ShouldEqual, 60)
				So(stats.Created, ShouldEqual, 60)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Resubmitted, ShouldEqual, 5)
				So(stats.ResubmitDuplicates, ShouldEqual, 5)
				So(stats.SlotsVerified, ShouldEqual, len(model.Slots()))
				So(stats.SlotMismatches, ShouldEqual, 0)
			})
		})

		Convey("When the race already holds a ballot", func() {
			bff.ballots["someone-else"] = model.Ballot{
				QualiP1: "Max Verstappen", QualiP2: "Lando Norris", QualiP3: "Oscar Piastri",
				RaceP1: "Max Verstappen", RaceP2: "Lando Norris", RaceP3: "Oscar Piastri",
			}
			stats, err := Run(context.Background(), cfg)

			Convey("Then verification reports the mismatch", func() {
				So(errors.Is(err, ErrMismatch), ShouldBeTrue)
				So(stats.SlotMismatches, ShouldEqual, len(model.Slots()))
			})
		})

		Convey("When the server accepts repeated ballots", func() {
			bff.noDupCheck = true
			_, err := Run(context.Background(), cfg)

			Convey("Then the duplicate check fails", func() {
				So(errors.Is(err, ErrDuplicateNotReported), ShouldBeTrue)
			})
		})

		Convey("When the secret does not match the server's", func() {
			cfg.Secret = "wrong"
			stats, err := Run(context.Background(), cfg)

			Convey("Then no ballot is created and the run fails", func() {
				So(errors.Is(err, ErrNothingAccepted), ShouldBeTrue)
				So(stats.Created, ShouldEqual, 0)
				So(stats.Rejected, ShouldEqual, 60)
				So(stats.SlotsVerified, ShouldEqual, 0)
			})
		})
	})

	Convey("Given an incomplete config", t, func() {
		_, err := Run(context.Background(), &Config{BaseURL: "http://localhost:1"})

		Convey("Then Run refuses to start", func() {
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
		})
	})
}
