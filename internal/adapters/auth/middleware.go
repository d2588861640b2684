package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorHandler renders an authentication or authorization failure.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Authenticate attaches the session of a valid token to the request
// context. Requests without a token pass through anonymously; requests with
// a bad token are rejected.
func (v *Verifier) Authenticate(onErr ErrorHandler) func(http.Handler) http.Handler {
	if onErr == nil {
		onErr = DefaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := TokenFromRequest(r)
			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}
			s, err := v.Parse(tok)
			if err != nil {
				onErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

// RequireAuth rejects requests that carry no session.
func RequireAuth(onErr ErrorHandler) func(http.Handler) http.Handler {
	if onErr == nil {
		onErr = DefaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				onErr(w, r, ErrMissingToken)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects requests whose session is not an admin.
func RequireAdmin(onErr ErrorHandler) func(http.Handler) http.Handler {
	if onErr == nil {
		onErr = DefaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := FromContext(r.Context())
			if !ok {
				onErr(w, r, ErrMissingToken)
				return
			}
			if !s.Admin {
				onErr(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DefaultErrorHandler writes {"code","message"} with 401 or 403.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status, code := http.StatusUnauthorized, "auth_required"
	if errors.Is(err, ErrForbidden) {
		status, code = http.StatusForbidden, "forbidden"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": err.Error()})
}
