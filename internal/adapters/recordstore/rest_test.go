package recordstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/gridpick/internal/adapters/recordstore"
	"github.com/okian/gridpick/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type capture struct {
	method string
	path   string
	query  map[string][]string
	header http.Header
	body   []byte
}

func restServer(t *testing.T, status int, body string, c *capture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.method = r.Method
		c.path = r.URL.Path
		c.query = r.URL.Query()
		c.header = r.Header.Clone()
		c.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRESTStoreSelect(t *testing.T) {
	Convey("Given a PostgREST backend", t, func() {
		c := &capture{}
		srv := restServer(t, http.StatusOK, `[{"race_p1_driver":"Max Verstappen"},{"race_p1_driver":null}]`, c)
		store := recordstore.NewRESTStore(srv.URL+"/", "anon-key")

		Convey("When selecting with filters, order and limit", func() {
			recs, err := store.Select(context.Background(), recordstore.Query{
				Table:   recordstore.TablePredictions,
				Columns: []string{"race_p1_driver"},
				Filters: []recordstore.Filter{recordstore.Eq("race_id", int64(4)), {Column: "manual_score", Op: recordstore.OpGte, Value: 10}},
				Order:   []recordstore.Order{{Column: "created_at", Desc: true}, {Column: "id"}},
				Limit:   50,
				Offset:  100,
			})

			Convey("Then the PostgREST URL and headers are used", func() {
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 2)
				So(c.method, ShouldEqual, http.MethodGet)
				So(c.path, ShouldEqual, "/rest/v1/predictions")
				So(c.query["select"], ShouldResemble, []string{"race_p1_driver"})
				So(c.query["race_id"], ShouldResemble, []string{"eq.4"})
				So(c.query["manual_score"], ShouldResemble, []string{"gte.10"})
				So(c.query["order"], ShouldResemble, []string{"created_at.desc,id.asc"})
				So(c.query["limit"], ShouldResemble, []string{"50"})
				So(c.query["offset"], ShouldResemble, []string{"100"})
				So(c.header.Get("apikey"), ShouldEqual, "anon-key")
				So(c.header.Get("Authorization"), ShouldEqual, "Bearer anon-key")
			})
		})

		Convey("When the table is not allowed", func() {
			_, err := store.Select(context.Background(), recordstore.Query{Table: "auth_users"})

			Convey("Then no request is made", func() {
				So(errors.Is(err, recordstore.ErrUnknownTable), ShouldBeTrue)
				So(c.method, ShouldBeEmpty)
			})
		})

		Convey("When a column looks like an injection", func() {
			_, err := store.Select(context.Background(), recordstore.Query{
				Table:   recordstore.TableRaces,
				Filters: []recordstore.Filter{recordstore.Eq("id;drop", 1)},
			})
			So(errors.Is(err, recordstore.ErrInvalidQuery), ShouldBeTrue)
		})
	})
}

func TestRESTStoreWrites(t *testing.T) {
	Convey("Given a PostgREST backend", t, func() {
		Convey("When inserting", func() {
			c := &capture{}
			srv := restServer(t, http.StatusCreated, `[{"id":"r-1","status":"pending"}]`, c)
			store := recordstore.NewRESTStore(srv.URL, "k")

			rec, err := store.Insert(context.Background(), recordstore.TableRivalries, recordstore.Record{"status": "pending"})

			Convey("Then the stored representation is returned", func() {
				So(err, ShouldBeNil)
				So(rec["id"], ShouldEqual, "r-1")
				So(c.method, ShouldEqual, http.MethodPost)
				So(c.header.Get("Prefer"), ShouldEqual, "return=representation")
				var sent map[string]any
				So(json.Unmarshal(c.body, &sent), ShouldBeNil)
				So(sent["status"], ShouldEqual, "pending")
			})
		})

		Convey("When updating", func() {
			c := &capture{}
			srv := restServer(t, http.StatusNoContent, ``, c)
			store := recordstore.NewRESTStore(srv.URL, "k")

			err := store.Update(context.Background(), recordstore.TableRivalries, recordstore.Eq("id", "r-1"), recordstore.Record{"status": "active"})

			Convey("Then a PATCH is scoped by the key", func() {
				So(err, ShouldBeNil)
				So(c.method, ShouldEqual, http.MethodPatch)
				So(c.query["id"], ShouldResemble, []string{"eq.r-1"})
			})
		})

		Convey("When the backend reports a unique violation", func() {
			c := &capture{}
			srv := restServer(t, http.StatusConflict,
				`{"code":"23505","message":"duplicate key value violates unique constraint \"predictions_user_race\"","details":"Key exists"}`, c)
			store := recordstore.NewRESTStore(srv.URL, "k")

			_, err := store.Insert(context.Background(), recordstore.TablePredictions, recordstore.Record{"user_id": "u"})

			Convey("Then it is recognisable as a duplicate", func() {
				So(errors.Is(err, recordstore.ErrDuplicate), ShouldBeTrue)
				var be *recordstore.BackendError
				So(errors.As(err, &be), ShouldBeTrue)
				So(be.Status, ShouldEqual, 409)
				So(be.Message, ShouldContainSubstring, "Key exists")
			})
		})

		Convey("When the patch is empty", func() {
			store := recordstore.NewRESTStore("http://127.0.0.1:1", "k")
			err := store.Update(context.Background(), recordstore.TableRivalries, recordstore.Eq("id", "x"), recordstore.Record{})
			So(errors.Is(err, recordstore.ErrInvalidQuery), ShouldBeTrue)
		})
	})
}
