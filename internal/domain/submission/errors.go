package submission

import (
	"errors"
	"strings"
)

// Kind classifies a failed submission.
type Kind int

// Failure kinds.
const (
	KindValidation Kind = iota + 1
	KindAuth
	KindInFlight
	KindDuplicate
	KindRejected
	KindTransport
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth_required"
	case KindInFlight:
		return "in_flight"
	case KindDuplicate:
		return "duplicate"
	case KindRejected:
		return "rejected"
	case KindTransport:
		return "transport"
	case KindBusy:
		return "busy"
	}
	return "unknown"
}

var (
	// ErrAuthRequired is returned when there is no authenticated session.
	ErrAuthRequired = errors.New("authentication required")
	// ErrMissingRequiredPick is returned when qualifying P1 or race P1 is blank.
	ErrMissingRequiredPick = errors.New("qualifying P1 and race P1 are required")
	// ErrUnknownDriver is returned for a pick that names no known driver.
	ErrUnknownDriver = errors.New("unknown driver")
	// ErrWindowClosed is returned once qualifying has started.
	ErrWindowClosed = errors.New("predictions are closed for this race")
	// ErrInFlight is returned while an earlier submit for the same ballot runs.
	ErrInFlight = errors.New("submission already in progress")
	// ErrBusy is returned when too many submissions are running at once.
	ErrBusy = errors.New("too many submissions in progress")
	// ErrDuplicate is returned when the backend already holds a ballot.
	ErrDuplicate = errors.New("ballot already submitted")
	// ErrRejected is returned for any other backend refusal.
	ErrRejected = errors.New("submission rejected")
	// ErrTransport is returned when the backend could not be reached.
	ErrTransport = errors.New("prediction server unreachable")
)

// User-facing messages.
const (
	MsgSubmitted = "✅ Predictions submitted!"
	MsgDuplicate = "You have already submitted predictions for this race. Only one ballot per race is allowed."
	MsgTransport = "System error: could not reach the prediction server. Please try again."
	MsgLogin     = "Please log in to submit predictions."
	MsgRequired  = "Qualifying P1 and Race P1 are required."
	MsgClosed    = "Predictions are closed for this race."
	MsgInFlight  = "Your predictions are already being submitted."
	MsgBusy      = "System busy: too many predictions are being submitted. Please try again shortly."
	rejectPrefix = "Submission failed: "
)

// Error is a classified submission failure. Message is safe to show.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a submission error, or 0.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// statusError is satisfied by upstream errors that carry an HTTP response.
type statusError interface {
	error
	StatusCode() int
	DetailText() string
}

// transportError is satisfied by upstream errors raised before any response.
type transportError interface {
	error
	Transport() bool
}

var duplicateMarkers = []string{"duplicate key", "unique constraint", "already exists", "23505"}

// isDuplicateDetail reports whether a backend message describes a
// uniqueness violation.
func isDuplicateDetail(detail string) bool {
	d := strings.ToLower(detail)
	for _, m := range duplicateMarkers {
		if strings.Contains(d, m) {
			return true
		}
	}
	return false
}

// classify turns an upstream error into a submission Error.
func classify(err error) *Error {
	var te transportError
	if errors.As(err, &te) && te.Transport() {
		return &Error{Kind: KindTransport, Message: MsgTransport, Err: errors.Join(ErrTransport, err)}
	}
	var se statusError
	if errors.As(err, &se) {
		detail := se.DetailText()
		if se.StatusCode() == 409 || isDuplicateDetail(detail) {
			return &Error{Kind: KindDuplicate, Message: MsgDuplicate, Err: errors.Join(ErrDuplicate, err)}
		}
		return &Error{Kind: KindRejected, Message: rejectPrefix + detail, Err: errors.Join(ErrRejected, err)}
	}
	if isDuplicateDetail(err.Error()) {
		return &Error{Kind: KindDuplicate, Message: MsgDuplicate, Err: errors.Join(ErrDuplicate, err)}
	}
	return &Error{Kind: KindTransport, Message: MsgTransport, Err: errors.Join(ErrTransport, err)}
}
