package probe

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

// PionFactory builds sessions on pion/webrtc peer connections.
type PionFactory struct {
	api *webrtc.API
}

// NewPionFactory returns a factory using settings, or a default setting
// engine when nil. A settings engine without a logger factory gets the
// logrus bridge.
func NewPionFactory(settings *webrtc.SettingEngine) *PionFactory {
	if settings == nil {
		settings = &webrtc.SettingEngine{}
	}
	if settings.LoggerFactory == nil {
		settings.LoggerFactory = NewLoggerFactory()
	}
	return &PionFactory{api: webrtc.NewAPI(webrtc.WithSettingEngine(*settings))}
}

// NewSession implements SessionFactory.
func (f *PionFactory) NewSession(server IceServerConfig, policy TransportPolicy) (Session, error) {
	pc, err := f.api.NewPeerConnection(webrtc.Configuration{
		ICEServers:         []webrtc.ICEServer{server.ICEServer()},
		ICETransportPolicy: policy.ICETransportPolicy(),
	})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	return &pionSession{pc: pc, server: server.String()}, nil
}

type pionSession struct {
	pc     *webrtc.PeerConnection
	server string

	closeOnce sync.Once
	closeErr  error
}

func (s *pionSession) OnCandidate(fn func(*Candidate)) {
	s.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			fn(nil)
			return
		}
		fn(&Candidate{
			Type:    CandidateType(c.Typ.String()),
			Address: c.Address,
			Port:    int(c.Port),
			Raw:     c.ToJSON().Candidate,
		})
	})
	s.pc.OnICEGatheringStateChange(func(state webrtc.ICEGatheringState) {
		logrus.WithFields(logrus.Fields{
			"function": "pionSession.OnICEGatheringStateChange",
			"server":   s.server,
			"state":    state.String(),
		}).Debug("ICE gathering state changed")
	})
}

func (s *pionSession) Negotiate() error {
	if _, err := s.pc.CreateDataChannel("probe", nil); err != nil {
		return fmt.Errorf("create data channel: %w", err)
	}
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return nil
}

func (s *pionSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.pc.Close()
	})
	return s.closeErr
}
