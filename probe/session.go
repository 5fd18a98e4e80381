package probe

// Session is a local negotiation object that gathers candidates against the
// configured servers.
type Session interface {
	// OnCandidate registers fn for gathered candidates. fn receives nil when
	// gathering is complete.
	OnCandidate(fn func(*Candidate))

	// Negotiate opens a data channel and sets a local offer, which starts
	// gathering.
	Negotiate() error

	Close() error
}

// ErrorReporter is implemented by sessions that surface non-fatal
// candidate errors during gathering.
type ErrorReporter interface {
	OnCandidateError(fn func(error))
}

// SessionFactory builds a session using only server, gathering under policy.
type SessionFactory interface {
	NewSession(server IceServerConfig, policy TransportPolicy) (Session, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(server IceServerConfig, policy TransportPolicy) (Session, error)

// NewSession implements SessionFactory.
func (f SessionFactoryFunc) NewSession(server IceServerConfig, policy TransportPolicy) (Session, error) {
	return f(server, policy)
}
