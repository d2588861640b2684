package auth_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/okian/gridpick/internal/adapters/auth"
	"github.com/okian/gridpick/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestVerifier(t *testing.T) {
	Convey("Given a verifier", t, func() {
		now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
		v := auth.NewVerifier("s3cret", "gridpick", auth.WithClock(func() time.Time { return now }))

		Convey("When a minted token is parsed", func() {
			tok, err := v.Mint(model.Session{UserID: "u-1", Username: "lights_out", Admin: true}, time.Hour)
			So(err, ShouldBeNil)

			s, err := v.Parse(tok)

			Convey("Then the session round-trips", func() {
				So(err, ShouldBeNil)
				So(s.UserID, ShouldEqual, "u-1")
				So(s.Username, ShouldEqual, "lights_out")
				So(s.Admin, ShouldBeTrue)
				So(s.Token, ShouldEqual, tok)
				So(s.ExpiresAt.Equal(now.Add(time.Hour)), ShouldBeTrue)
				So(s.Authenticated(), ShouldBeTrue)
			})
		})

		Convey("When the token has expired", func() {
			tok, _ := v.Mint(model.Session{UserID: "u-1"}, -time.Minute)
			_, err := v.Parse(tok)
			So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
		})

		Convey("When the token was signed with another key", func() {
			other := auth.NewVerifier("other", "gridpick", auth.WithClock(func() time.Time { return now }))
			tok, _ := other.Mint(model.Session{UserID: "u-1"}, time.Hour)
			_, err := v.Parse(tok)
			So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
		})

		Convey("When the issuer differs", func() {
			other := auth.NewVerifier("s3cret", "someone-else", auth.WithClock(func() time.Time { return now }))
			tok, _ := other.Mint(model.Session{UserID: "u-1"}, time.Hour)
			_, err := v.Parse(tok)
			So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
		})

		Convey("When the token uses the none algorithm", func() {
			tok, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
				"sub": "u-1", "exp": now.Add(time.Hour).Unix(), "iss": "gridpick",
			}).SignedString(jwt.UnsafeAllowNoneSignatureType)
			_, err := v.Parse(tok)
			So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
		})

		Convey("When the token is empty", func() {
			_, err := v.Parse("")
			So(errors.Is(err, auth.ErrMissingToken), ShouldBeTrue)
		})

		Convey("When the role claim is admin without a username", func() {
			tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub": "u-9", "exp": now.Add(time.Hour).Unix(), "iss": "gridpick", "is_admin": true,
			}).SignedString([]byte("s3cret"))
			s, err := v.Parse(tok)
			So(err, ShouldBeNil)
			So(s.Admin, ShouldBeTrue)
			So(s.Username, ShouldEqual, "u-9")
		})
	})
}

func TestMiddleware(t *testing.T) {
	Convey("Given routes guarded by the middleware", t, func() {
		v := auth.NewVerifier("s3cret", "")
		userTok, _ := v.Mint(model.Session{UserID: "u-1"}, time.Hour)
		adminTok, _ := v.Mint(model.Session{UserID: "u-2", Admin: true}, time.Hour)

		var seen model.Session
		ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = auth.FromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})
		authn := v.Authenticate(nil)
		userRoute := authn(auth.RequireAuth(nil)(ok))
		adminRoute := authn(auth.RequireAdmin(nil)(ok))
		openRoute := authn(ok)

		serve := func(h http.Handler, target, tok string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tok != "" {
				req.Header.Set("Authorization", "Bearer "+tok)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			return rec
		}

		Convey("Anonymous requests pass open routes but not guarded ones", func() {
			So(serve(openRoute, "/", "").Code, ShouldEqual, http.StatusNoContent)
			rec := serve(userRoute, "/", "")
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
			So(rec.Body.String(), ShouldContainSubstring, `"auth_required"`)
		})

		Convey("A user token reaches user routes with its session", func() {
			So(serve(userRoute, "/", userTok).Code, ShouldEqual, http.StatusNoContent)
			So(seen.UserID, ShouldEqual, "u-1")
		})

		Convey("A user token is forbidden on admin routes", func() {
			rec := serve(adminRoute, "/", userTok)
			So(rec.Code, ShouldEqual, http.StatusForbidden)
			So(rec.Body.String(), ShouldContainSubstring, `"forbidden"`)
		})

		Convey("An admin token reaches admin routes", func() {
			So(serve(adminRoute, "/", adminTok).Code, ShouldEqual, http.StatusNoContent)
		})

		Convey("A token in the query string is accepted", func() {
			So(serve(userRoute, "/?token="+userTok, "").Code, ShouldEqual, http.StatusNoContent)
		})

		Convey("A malformed token is rejected even on open routes", func() {
			So(serve(openRoute, "/", "garbage").Code, ShouldEqual, http.StatusUnauthorized)
		})
	})
}
