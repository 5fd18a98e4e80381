package probe

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

// ErrProbeTimeout is returned when no qualifying candidate was gathered.
var ErrProbeTimeout = errors.New("ice probe timed out")

// ErrNegotiation wraps failures to build the session or its local offer.
var ErrNegotiation = errors.New("ice probe negotiation failed")

// DefaultTimeout bounds a probe whose policy has no timeout.
const DefaultTimeout = 5 * time.Second

// TransportPolicy restricts which candidates a session gathers.
type TransportPolicy string

const (
	TransportAll   TransportPolicy = "all"
	TransportRelay TransportPolicy = "relay"
)

// ICETransportPolicy converts p to its pion value.
func (p TransportPolicy) ICETransportPolicy() webrtc.ICETransportPolicy {
	if p == TransportRelay {
		return webrtc.ICETransportPolicyRelay
	}
	return webrtc.ICETransportPolicyAll
}

// CandidateType is an ICE candidate type as reported in candidate lines.
type CandidateType string

const (
	CandidateAny   CandidateType = ""
	CandidateHost  CandidateType = "host"
	CandidateSrflx CandidateType = "srflx"
	CandidatePrflx CandidateType = "prflx"
	CandidateRelay CandidateType = "relay"
)

// IceServerConfig describes one STUN or TURN server.
type IceServerConfig struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// Validate checks that the server has at least one stun or turn URL.
func (s IceServerConfig) Validate() error {
	if len(s.URLs) == 0 {
		return errors.New("ice server has no urls")
	}
	for _, u := range s.URLs {
		if !strings.HasPrefix(u, "stun:") && !strings.HasPrefix(u, "stuns:") &&
			!strings.HasPrefix(u, "turn:") && !strings.HasPrefix(u, "turns:") {
			return fmt.Errorf("ice server url %q: unsupported scheme", u)
		}
	}
	return nil
}

// String returns the first URL, for logs.
func (s IceServerConfig) String() string {
	if len(s.URLs) == 0 {
		return ""
	}
	return s.URLs[0]
}

// ICEServer converts s to its pion value.
func (s IceServerConfig) ICEServer() webrtc.ICEServer {
	server := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
	if s.Credential != "" {
		server.Credential = s.Credential
	}
	return server
}

// Policy controls one probe.
type Policy struct {
	TransportPolicy       TransportPolicy
	RequiredCandidateType CandidateType
	Timeout               time.Duration
}

func (p Policy) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

// Candidate is one gathered local candidate.
type Candidate struct {
	Type    CandidateType
	Address string
	Port    int
	// Raw is the SDP candidate line; empty when the candidate carries no
	// connection data.
	Raw string
}

// matches reports whether c qualifies for required.
func (c *Candidate) matches(required CandidateType) bool {
	if c.Raw == "" {
		return false
	}
	if required == CandidateAny {
		return true
	}
	return c.Type == required || strings.Contains(c.Raw, string(required))
}
