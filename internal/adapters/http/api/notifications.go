package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/okian/gridpick/internal/adapters/auth"
	"github.com/okian/gridpick/internal/domain/notify"
	"github.com/okian/gridpick/pkg/logger"
	"github.com/okian/gridpick/pkg/metrics"
)

// Websocket timings.
const (
	wsWriteTimeout = 3 * time.Second
	wsPingInterval = 30 * time.Second
	wsBacklog      = 20
)

// NotificationDependencies defines notification history and the live feed.
type NotificationDependencies interface {
	RecentNotifications(ctx context.Context, n int) ([]notify.Notification, error)
	DismissNotification(ctx context.Context, id string) (bool, error)
	Notifications() *notify.Service
}

// NotificationsHandler serves notification history over HTTP and pushes
// new notifications over a websocket.
type NotificationsHandler struct {
	deps    NotificationDependencies
	origins []string
	log     logger.Logger
	sockets atomic.Int64
}

// NewNotificationsHandler creates a notifications handler. origins are the
// extra page origins allowed to open the websocket.
func NewNotificationsHandler(deps NotificationDependencies, origins []string, log logger.Logger) *NotificationsHandler {
	return &NotificationsHandler{deps: deps, origins: originPatterns(origins), log: log}
}

// socketMessage is the envelope for every websocket frame in both
// directions.
type socketMessage struct {
	Type         string               `json:"type"`
	ID           string               `json:"id,omitempty"`
	Notification *notify.Notification `json:"notification,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// HandleRecent handles GET /notifications?limit=N.
func (h *NotificationsHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	const op = "api.recent_notifications"
	n, err := intQuery(r, "limit", 0)
	if err == nil && n < 0 {
		err = errors.New("limit must not be negative")
	}
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	rows, err := h.deps.RecentNotifications(r.Context(), n)
	respondList(w, op, rows, err)
}

// HandleDismiss handles DELETE /notifications/{notificationID}.
func (h *NotificationsHandler) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	const op = "api.dismiss_notification"
	id := chi.URLParam(r, "notificationID")
	ok, err := h.deps.DismissNotification(r.Context(), id)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	if !ok {
		fail(w, NewKind(op, ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSocket handles GET /notifications/ws. The caller first receives its
// recent history, oldest first, then every new notification addressed to it
// or broadcast. Clients may send {"type":"dismiss","id":"..."}.
func (h *NotificationsHandler) HandleSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		fail(w, auth.ErrMissingToken)
		return
	}

	// The server's write timeout would otherwise cut long-lived sockets.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.log.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	metrics.UpdateWebsocketSubscribers(int(h.sockets.Add(1)))
	defer func() { metrics.UpdateWebsocketSubscribers(int(h.sockets.Add(-1))) }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before reading the backlog so nothing falls in between.
	feed, unsubscribe := h.deps.Notifications().Subscribe(ctx)
	defer unsubscribe()

	backlog, err := h.deps.RecentNotifications(ctx, wsBacklog)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "history unavailable")
		return
	}
	seen := make(map[string]struct{}, len(backlog))
	for i := len(backlog) - 1; i >= 0; i-- {
		n := backlog[i]
		seen[n.ID] = struct{}{}
		if err := writeSocket(ctx, conn, socketMessage{Type: "notification", Notification: &n}); err != nil {
			return
		}
	}

	// Writer goroutine
	go func() {
		defer cancel()
		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				pctx, pcancel := context.WithTimeout(ctx, wsWriteTimeout)
				err := conn.Ping(pctx)
				pcancel()
				if err != nil {
					return
				}
			case n, open := <-feed:
				if !open {
					return
				}
				if !n.VisibleTo(sess.UserID) {
					continue
				}
				if _, dup := seen[n.ID]; dup {
					continue
				}
				if err := writeSocket(ctx, conn, socketMessage{Type: "notification", Notification: &n}); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					h.log.Debug(ctx, "websocket read failed", logger.String("user_id", sess.UserID), logger.Error(err))
				}
			}
			return
		}

		var msg socketMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = writeSocket(ctx, conn, socketMessage{Type: "error", Error: "bad json"})
			continue
		}
		switch msg.Type {
		case "dismiss":
			ok, err := h.deps.DismissNotification(ctx, msg.ID)
			if err == nil && !ok {
				err = ErrNotFound
			}
			if err != nil {
				_ = writeSocket(ctx, conn, socketMessage{Type: "error", ID: msg.ID, Error: err.Error()})
				continue
			}
			_ = writeSocket(ctx, conn, socketMessage{Type: "dismissed", ID: msg.ID})
		default:
			_ = writeSocket(ctx, conn, socketMessage{Type: "error", Error: "unknown type"})
		}
	}
}

func writeSocket(ctx context.Context, conn *websocket.Conn, msg socketMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

// originPatterns turns configured origins into host patterns for the
// websocket origin check.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			o = u.Host
		}
		out = append(out, o)
	}
	return out
}
