package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/gridpick/internal/adapters/auth"
	"github.com/okian/gridpick/internal/adapters/recordstore"
	"github.com/okian/gridpick/internal/adapters/repository"
	"github.com/okian/gridpick/internal/adapters/scoringapi"
	service "github.com/okian/gridpick/internal/app"
	"github.com/okian/gridpick/internal/domain/grading"
	"github.com/okian/gridpick/internal/domain/rivalry"
	"github.com/okian/gridpick/internal/domain/settlement"
	"github.com/okian/gridpick/internal/domain/submission"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
)

// Error codes written in the {"code","message"} body.
const (
	codeAuthRequired = "auth_required"
	codeForbidden    = "forbidden"
	codeValidation   = "validation"
	codeDuplicate    = "duplicate"
	codeInFlight     = "in_flight"
	codeStale        = "stale"
	codeConflict     = "conflict"
	codeNotFound     = "not_found"
	codeNotLoaded    = "not_loaded"
	codeBackpressure = "backpressure"
	codeUpstream     = "upstream_error"
	codeSystem       = "system_error"
	codeInternal     = "internal_error"
)

// OpError tags an error with the handler operation that produced it. Kind,
// when set, is one of the sentinels above and is matched by errors.Is.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	switch {
	case e.Err != nil && e.Kind != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return e.Op
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *OpError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap tags err with op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// NewKind returns an error of the given kind without a cause.
func NewKind(op string, kind error) error {
	return &OpError{Op: op, Kind: kind}
}

// WrapKind tags err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &OpError{Op: op, Kind: kind, Err: err}
}

// classify maps an error to the HTTP status, error code and message sent to
// the client. Submission errors carry their own user-facing message.
func classify(err error) (int, string, string) {
	var se *submission.Error
	if errors.As(err, &se) {
		switch se.Kind {
		case submission.KindValidation:
			return http.StatusUnprocessableEntity, codeValidation, se.Message
		case submission.KindAuth:
			return http.StatusUnauthorized, codeAuthRequired, se.Message
		case submission.KindInFlight:
			return http.StatusConflict, codeInFlight, se.Message
		case submission.KindDuplicate:
			return http.StatusConflict, codeDuplicate, se.Message
		case submission.KindRejected:
			return http.StatusBadGateway, codeUpstream, se.Message
		case submission.KindTransport:
			return http.StatusServiceUnavailable, codeSystem, se.Message
		case submission.KindBusy:
			return http.StatusTooManyRequests, codeBackpressure, se.Message
		}
	}

	var apiErr *scoringapi.APIError
	switch {
	case errors.Is(err, service.ErrAuthRequired),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, codeAuthRequired, rootMessage(err)
	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, grading.ErrForbidden),
		errors.Is(err, settlement.ErrForbidden),
		errors.Is(err, rivalry.ErrNotParticipant):
		return http.StatusForbidden, codeForbidden, rootMessage(err)
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidFilter),
		errors.Is(err, service.ErrInvalidLimit),
		errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, grading.ErrUnknownAdjustment),
		errors.Is(err, grading.ErrInvalidBallot):
		return http.StatusBadRequest, codeValidation, rootMessage(err)
	case errors.Is(err, settlement.ErrIncomplete),
		errors.Is(err, rivalry.ErrInvalidChallenge):
		return http.StatusUnprocessableEntity, codeValidation, rootMessage(err)
	case errors.Is(err, rivalry.ErrInvalidTransition):
		return http.StatusConflict, codeConflict, rootMessage(err)
	case errors.Is(err, grading.ErrNotLoaded):
		return http.StatusConflict, codeNotLoaded, rootMessage(err)
	case errors.Is(err, service.ErrStale):
		return http.StatusConflict, codeStale, rootMessage(err)
	case errors.Is(err, recordstore.ErrDuplicate):
		return http.StatusConflict, codeDuplicate, rootMessage(err)
	case errors.Is(err, ErrNotFound),
		errors.Is(err, recordstore.ErrNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrNoUpcoming):
		return http.StatusNotFound, codeNotFound, rootMessage(err)
	case errors.Is(err, grading.ErrQueueFull):
		return http.StatusTooManyRequests, codeBackpressure, rootMessage(err)
	case errors.Is(err, scoringapi.ErrTransport):
		return http.StatusServiceUnavailable, codeSystem, "System error: the scoring service is unreachable"
	case errors.As(err, &apiErr):
		return upstreamStatus(apiErr)
	}
	return http.StatusInternalServerError, codeInternal, http.StatusText(http.StatusInternalServerError)
}

// upstreamStatus passes scoring API client errors through and reports
// everything else as a bad gateway.
func upstreamStatus(e *scoringapi.APIError) (int, string, string) {
	switch e.Status {
	case http.StatusUnauthorized:
		return http.StatusUnauthorized, codeAuthRequired, e.DetailText()
	case http.StatusForbidden:
		return http.StatusForbidden, codeForbidden, e.DetailText()
	case http.StatusNotFound:
		return http.StatusNotFound, codeNotFound, e.DetailText()
	case http.StatusConflict:
		return http.StatusConflict, codeDuplicate, e.DetailText()
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return e.Status, codeValidation, e.DetailText()
	}
	return http.StatusBadGateway, codeUpstream, e.DetailText()
}

// rootMessage strips OpError tags so clients see the underlying reason.
func rootMessage(err error) string {
	var oe *OpError
	for errors.As(err, &oe) {
		switch {
		case oe.Err != nil:
			err = oe.Err
		case oe.Kind != nil:
			return oe.Kind.Error()
		default:
			return oe.Op
		}
	}
	return err.Error()
}
