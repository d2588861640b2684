package model

import "time"

// GradeJob asks for one ballot's manual score to be persisted. Seq orders jobs
// for the same ballot; a job is stale once a higher Seq exists.
type GradeJob struct {
	ID         string    `json:"id"`
	BallotID   int64     `json:"ballot_id"`
	Score      int       `json:"score"`
	Seq        uint64    `json:"seq"`
	Token      string    `json:"-"`
	UserID     string    `json:"user_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
