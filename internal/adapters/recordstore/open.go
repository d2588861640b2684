package recordstore

import (
	"context"
	"fmt"
	"time"
)

// Drivers accepted by Open.
const (
	DriverREST     = "rest"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Settings selects and configures a backend.
type Settings struct {
	Driver  string
	URL     string
	APIKey  string
	DSN     string
	Timeout time.Duration
}

// Open builds the store named by s.Driver. The returned close function
// releases backend resources and is never nil.
func Open(ctx context.Context, s Settings) (Store, func(), error) {
	switch s.Driver {
	case DriverREST, "":
		return NewRESTStore(s.URL, s.APIKey, WithTimeout(s.Timeout)), func() {}, nil
	case DriverPostgres:
		pg, err := NewPostgresStore(ctx, s.DSN)
		if err != nil {
			return nil, func() {}, err
		}
		return pg, pg.Close, nil
	case DriverMemory:
		return NewMemoryStore(WithUnique(TablePredictions, "user_id", "race_id")), func() {}, nil
	}
	return nil, func() {}, fmt.Errorf("%w: %q", ErrUnknownDriver, s.Driver)
}
