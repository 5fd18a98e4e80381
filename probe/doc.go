// Package probe checks whether an ICE server is usable before it is offered
// to a peer connection.
//
// # Overview
//
// A probe opens a throwaway session configured with only the target server,
// forces candidate gathering with a data channel, and watches the gathered
// candidates. The first usable signal decides the outcome: a candidate with
// an address, or the end of gathering. If a qualifying candidate was seen the
// probe succeeds; otherwise it fails with ErrProbeTimeout, also when the
// countdown expires first.
//
//	prober := probe.NewProber(probe.NewPionFactory(nil), m)
//	ok, err := prober.Probe(ctx, probe.IceServerConfig{
//	    URLs:       []string{"turn:turn.example.org:3478"},
//	    Username:   "user",
//	    Credential: "secret",
//	}, probe.Policy{
//	    TransportPolicy:       probe.TransportRelay,
//	    RequiredCandidateType: probe.CandidateRelay,
//	    Timeout:               5 * time.Second,
//	})
//
// Filter probes a list of servers concurrently and keeps the reachable ones.
//
// # Sessions
//
// The negotiation primitive is the Session interface. NewPionFactory backs
// it with a pion/webrtc peer connection whose internal logs are routed to
// logrus through LoggerFactory.
package probe
