// Package notify delivers short user-facing notifications to whoever is
// listening: HTTP pollers read the history, websocket clients subscribe.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gridpick/pkg/logger"
	"github.com/okian/gridpick/pkg/metrics"
)

// Level is the severity shown with a notification.
type Level string

// Notification levels.
const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one message. UserID scopes it to a single user; empty
// means everyone.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// VisibleTo reports whether userID should see n.
func (n Notification) VisibleTo(userID string) bool {
	return n.UserID == "" || n.UserID == userID
}

type subscriber struct {
	ch   chan Notification
	once sync.Once
}

func (s *subscriber) close() { s.once.Do(func() { close(s.ch) }) }

// Service fans notifications out to subscribers and keeps a bounded history.
// Construct one per process and pass it to the components that publish.
type Service struct {
	mu         sync.RWMutex
	history    []Notification
	maxHistory int
	bufferSize int
	subs       map[uint64]*subscriber
	nextSub    uint64
	now        func() time.Time
	log        logger.Logger
}

// New creates a notification service.
func New(opts ...Option) *Service {
	s := &Service{
		maxHistory: 50,
		bufferSize: 16,
		subs:       make(map[uint64]*subscriber),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("notify")
	}
	return s
}

// Publish stamps n with an id and time, records it and delivers it to every
// subscriber. Subscribers whose buffer is full miss the message.
func (s *Service) Publish(ctx context.Context, n Notification) Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	if n.Level == "" {
		n.Level = LevelInfo
	}

	s.mu.Lock()
	s.history = append(s.history, n)
	if s.maxHistory > 0 && len(s.history) > s.maxHistory {
		s.history = append(s.history[:0:0], s.history[len(s.history)-s.maxHistory:]...)
	}
	dropped := 0
	for _, sub := range s.subs {
		select {
		case sub.ch <- n:
		default:
			dropped++
		}
	}
	s.mu.Unlock()

	metrics.RecordNotificationPublished(string(n.Level))
	for i := 0; i < dropped; i++ {
		metrics.RecordNotificationDropped()
	}
	if dropped > 0 {
		s.log.Debug(ctx, "notification dropped for slow subscribers",
			logger.String("id", n.ID),
			logger.Int("dropped", dropped))
	}
	return n
}

// Info publishes an info notification.
func (s *Service) Info(ctx context.Context, userID, msg string) Notification {
	return s.Publish(ctx, Notification{Level: LevelInfo, Message: msg, UserID: userID})
}

// Success publishes a success notification.
func (s *Service) Success(ctx context.Context, userID, msg string) Notification {
	return s.Publish(ctx, Notification{Level: LevelSuccess, Message: msg, UserID: userID})
}

// Warning publishes a warning notification.
func (s *Service) Warning(ctx context.Context, userID, msg string) Notification {
	return s.Publish(ctx, Notification{Level: LevelWarning, Message: msg, UserID: userID})
}

// Error publishes an error notification.
func (s *Service) Error(ctx context.Context, userID, msg string) Notification {
	return s.Publish(ctx, Notification{Level: LevelError, Message: msg, UserID: userID})
}

// Subscribe returns a channel receiving every notification published after
// the call. The channel is closed when ctx is done or cancel is called.
func (s *Service) Subscribe(ctx context.Context) (<-chan Notification, func()) {
	sub := &subscriber{ch: make(chan Notification, s.bufferSize)}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			sub.close()
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return sub.ch, cancel
}

// Subscribers returns the number of live subscriptions.
func (s *Service) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Recent returns up to n of the newest notifications, newest first.
// n <= 0 returns the whole history.
func (s *Service) Recent(n int) []Notification {
	return s.RecentFor("", n)
}

// RecentFor is Recent restricted to notifications visible to userID.
// An empty userID sees everything.
func (s *Service) RecentFor(userID string, n int) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Notification, 0, len(s.history))
	for i := len(s.history) - 1; i >= 0; i-- {
		if userID != "" && !s.history[i].VisibleTo(userID) {
			continue
		}
		out = append(out, s.history[i])
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}

// Dismiss removes a notification from the history.
func (s *Service) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.history {
		if n.ID == id {
			s.history = append(s.history[:i], s.history[i+1:]...)
			return true
		}
	}
	return false
}
