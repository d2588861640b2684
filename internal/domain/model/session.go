package model

import "time"

// Session is the authenticated caller of a request. Token is the bearer
// credential forwarded to the scoring API.
type Session struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Admin     bool      `json:"admin"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticated reports whether the session identifies a user.
func (s Session) Authenticated() bool { return s.UserID != "" && s.Token != "" }
