package recordstore

import (
	"net/http"
	"time"

	"github.com/okian/gridpick/pkg/logger"
)

// RESTOption configures a RESTStore.
type RESTOption func(*RESTStore)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) RESTOption {
	return func(s *RESTStore) {
		s.http = hc
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(d time.Duration) RESTOption {
	return func(s *RESTStore) {
		if d > 0 {
			s.http.Timeout = d
		}
	}
}

// WithRESTLogger sets the logger.
func WithRESTLogger(l logger.Logger) RESTOption {
	return func(s *RESTStore) {
		s.log = l
	}
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithUnique declares a uniqueness constraint over columns of table.
func WithUnique(table string, columns ...string) MemoryOption {
	return func(m *MemoryStore) {
		m.unique[table] = append(m.unique[table], columns)
	}
}

// BallotsOption configures Ballots.
type BallotsOption func(*Ballots)

// WithPageSize sets how many rows SlotPicks requests at a time.
func WithPageSize(n int) BallotsOption {
	return func(b *Ballots) {
		if n > 0 {
			b.pageSize = n
		}
	}
}
