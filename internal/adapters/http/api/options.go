package api

import "github.com/okian/gridpick/pkg/logger"

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins enables CORS for origins and lets their pages open the
// notification websocket. "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = append([]string(nil), origins...)
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}
