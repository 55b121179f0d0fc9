package mockbackend

import "time"

// faults are injected failures, switchable while the server runs.
type faults struct {
	loginStatus      int
	navigationStatus int
	navigationDelay  time.Duration
}

// WithLoginFailure makes POST /login answer with status.
func WithLoginFailure(status int) Option {
	return func(s *Server) {
		s.faults.loginStatus = status
	}
}

// WithNavigationFailure makes GET /navigation answer with status.
func WithNavigationFailure(status int) Option {
	return func(s *Server) {
		s.faults.navigationStatus = status
	}
}

// WithNavigationDelay holds GET /navigation for d before answering.
func WithNavigationDelay(d time.Duration) Option {
	return func(s *Server) {
		s.faults.navigationDelay = d
	}
}

// SetLoginFailure switches the login fault; 0 clears it.
func (s *Server) SetLoginFailure(status int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.faults.loginStatus = status
}

// SetNavigationFailure switches the navigation fault; 0 clears it.
func (s *Server) SetNavigationFailure(status int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.faults.navigationStatus = status
}

// SetNavigationDelay switches the navigation delay; 0 clears it.
func (s *Server) SetNavigationDelay(d time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.faults.navigationDelay = d
}

func (s *Server) currentFaults() faults {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.faults
}
