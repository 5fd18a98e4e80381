package peerkit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerkit/audiomix"
	"github.com/opd-ai/peerkit/capture"
	"github.com/opd-ai/peerkit/codec"
	"github.com/opd-ai/peerkit/config"
	"github.com/opd-ai/peerkit/file"
	"github.com/opd-ai/peerkit/limits"
	"github.com/opd-ai/peerkit/media"
	"github.com/opd-ai/peerkit/metrics"
	"github.com/opd-ai/peerkit/probe"
	"github.com/opd-ai/peerkit/signal"
	"github.com/opd-ai/peerkit/vad"
)

// ErrNotRunning is returned by operations on a killed Runtime.
var ErrNotRunning = errors.New("peerkit runtime is not running")

// Options contains configuration options for creating a Runtime.
type Options struct {
	ICEServers  []probe.IceServerConfig
	ProbePolicy probe.Policy

	SpeakingThreshold float64
	VoiceInterval     time.Duration
	FFTSize           int

	Speed        file.SpeedOptions
	StallTimeout time.Duration

	MaxDecompressedSize int64
	CompressionLevel    int

	// SessionFactory builds probe sessions. Nil uses pion/webrtc.
	SessionFactory probe.SessionFactory
	// Metrics receives every component's metrics. Nil creates a private registry.
	Metrics *metrics.Metrics
}

// NewOptions returns the default options.
func NewOptions() *Options {
	return OptionsFromConfig(config.Default())
}

// OptionsFromConfig converts a loaded configuration to Options.
func OptionsFromConfig(c *config.Config) *Options {
	return &Options{
		ICEServers:          append([]probe.IceServerConfig(nil), c.ICEServers...),
		ProbePolicy:         c.Probe.Policy(),
		SpeakingThreshold:   c.Voice.SpeakingThreshold,
		VoiceInterval:       c.Voice.Interval(),
		FFTSize:             c.Voice.FFTSize,
		Speed:               file.SpeedOptions{SampleInterval: c.Transfer.SampleInterval(), WindowSize: c.Transfer.WindowSize},
		StallTimeout:        c.Transfer.StallTimeout(),
		MaxDecompressedSize: c.Codec.MaxDecompressedBytes,
		CompressionLevel:    c.Codec.CompressionLevel,
	}
}

// Runtime wires the transport support components of one client together.
type Runtime struct {
	options *Options
	metrics *metrics.Metrics

	// peersMu serializes copy-on-write updates of peers.
	peersMu sync.Mutex

	capture    *capture.Coordinator
	prober     *probe.Prober
	transfers  *file.Manager
	inflater   *codec.Client[codec.DecompressRequest, codec.DecompressResponse]
	deflater   *codec.Client[codec.CompressRequest, codec.CompressResponse]
	archiver   *codec.Client[codec.ArchiveRequest, codec.ArchiveResponse]
	peers      *signal.Value[map[string]*audiomix.Peer]
	aggregator *audiomix.Aggregator
	localVoice *vad.Meter

	mu      sync.Mutex
	running bool
	meters  []*vad.Meter
	players []*audiomix.Player
}

// New creates a running Runtime.
func New(options *Options) (*Runtime, error) {
	if options == nil {
		options = NewOptions()
	}
	if options.MaxDecompressedSize <= 0 {
		options.MaxDecompressedSize = limits.MaxDecompressedSize
	}
	for i, server := range options.ICEServers {
		if err := server.Validate(); err != nil {
			return nil, fmt.Errorf("ice server %d: %w", i, err)
		}
	}

	m := options.Metrics
	if m == nil {
		m = metrics.New()
	}
	factory := options.SessionFactory
	if factory == nil {
		factory = probe.NewPionFactory(nil)
	}

	r := &Runtime{
		options:   options,
		metrics:   m,
		capture:   capture.NewCoordinator(),
		prober:    probe.NewProber(factory, m),
		transfers: file.NewManager(options.Speed, options.StallTimeout),
		inflater:  codec.NewClient(codec.NewInflater(m, options.MaxDecompressedSize)),
		deflater:  codec.NewClient(codec.NewDeflater(m, options.CompressionLevel)),
		archiver:  codec.NewArchiveClient(m),
		peers:     signal.NewValue(map[string]*audiomix.Peer{}),
		running:   true,
	}
	r.aggregator = audiomix.NewAggregator(r.peers, m)
	r.localVoice = vad.NewMeter(r.capture.Active(), r.voiceOptions())

	logrus.WithFields(logrus.Fields{
		"function":    "New",
		"ice_servers": len(options.ICEServers),
	}).Info("Runtime created")
	return r, nil
}

func (r *Runtime) voiceOptions() vad.Options {
	return vad.Options{
		SpeakingThreshold: r.options.SpeakingThreshold,
		Interval:          r.options.VoiceInterval,
		FFTSize:           r.options.FFTSize,
		Metrics:           r.metrics,
	}
}

// Metrics returns the metrics shared by every component.
func (r *Runtime) Metrics() *metrics.Metrics { return r.metrics }

// Capture returns the local stream coordinator.
func (r *Runtime) Capture() *capture.Coordinator { return r.capture }

// Prober returns the ICE connectivity prober.
func (r *Runtime) Prober() *probe.Prober { return r.prober }

// Transfers returns the file transfer registry.
func (r *Runtime) Transfers() *file.Manager { return r.transfers }

// Aggregator returns the combined remote audio.
func (r *Runtime) Aggregator() *audiomix.Aggregator { return r.aggregator }

// LocalSpeaking reports whether the local user is speaking on the active stream.
func (r *Runtime) LocalSpeaking() *signal.Value[bool] { return r.localVoice.Speaking() }

// IsRunning reports whether Kill has not been called.
func (r *Runtime) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Peers returns the peer mapping the aggregator follows. Its subscribers run
// while peer updates are serialized and must not call SetPeerStream or
// RemovePeer.
func (r *Runtime) Peers() *signal.Value[map[string]*audiomix.Peer] {
	return r.peers
}

// SetPeerStream records stream for peer id, adding the peer if needed. A nil
// stream keeps the peer without media.
func (r *Runtime) SetPeerStream(id string, stream *media.Stream) {
	r.peersMu.Lock()
	current := r.peers.Get()
	if peer, ok := current[id]; ok {
		r.peersMu.Unlock()
		peer.Stream.Set(stream)
		return
	}

	next := make(map[string]*audiomix.Peer, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[id] = audiomix.NewPeer(id, stream)
	r.peers.Set(next)
	r.peersMu.Unlock()
}

// RemovePeer forgets peer id.
func (r *Runtime) RemovePeer(id string) {
	r.peersMu.Lock()
	defer r.peersMu.Unlock()

	current := r.peers.Get()
	if _, ok := current[id]; !ok {
		return
	}
	next := make(map[string]*audiomix.Peer, len(current))
	for k, v := range current {
		if k != id {
			next[k] = v
		}
	}
	r.peers.Set(next)
}

// PeerIDs returns the known peers in sorted order.
func (r *Runtime) PeerIDs() []string {
	current := r.peers.Get()
	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewPlayer plays the combined remote audio on out until Kill.
func (r *Runtime) NewPlayer(ctx context.Context, out audiomix.Output) (*audiomix.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil, ErrNotRunning
	}
	p := audiomix.NewPlayer(ctx, r.aggregator.Stream(), out, r.metrics)
	r.players = append(r.players, p)
	return p, nil
}

// MeterPeer returns a voice activity meter following peer id's stream.
func (r *Runtime) MeterPeer(id string) (*vad.Meter, error) {
	peer, ok := r.peers.Get()[id]
	if !ok {
		return nil, fmt.Errorf("unknown peer %s", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil, ErrNotRunning
	}
	m := vad.NewMeter(peer.Stream, r.voiceOptions())
	r.meters = append(r.meters, m)
	return m, nil
}

// ReachableServers probes the configured ICE servers and returns the usable ones.
func (r *Runtime) ReachableServers(ctx context.Context) []probe.IceServerConfig {
	return r.prober.Filter(ctx, r.options.ICEServers, r.options.ProbePolicy)
}

// Inflate decompresses an incoming payload on the inflater worker.
func (r *Runtime) Inflate(ctx context.Context, data []byte) ([]byte, error) {
	resp, err := r.inflater.Do(ctx, codec.DecompressRequest{Data: data})
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	return resp.Data, nil
}

// Deflate compresses an outgoing payload on the deflater worker.
func (r *Runtime) Deflate(ctx context.Context, data []byte) ([]byte, error) {
	resp, err := r.deflater.Do(ctx, codec.CompressRequest{Data: data})
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	return resp.Data, nil
}

// Archive packs a folder into a zip Blob on the archiver worker.
func (r *Runtime) Archive(ctx context.Context, folder string, files map[string][]byte) (*codec.Blob, error) {
	resp, err := r.archiver.Do(ctx, codec.ArchiveRequest{FolderName: folder, FileMap: files})
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	return resp.Data, nil
}

// Reset stops all local media.
func (r *Runtime) Reset() {
	r.capture.Reset()
}

// Kill stops the Runtime and releases all resources.
func (r *Runtime) Kill() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	meters := r.meters
	players := r.players
	r.meters = nil
	r.players = nil
	r.mu.Unlock()

	for _, p := range players {
		p.Close()
	}
	for _, m := range meters {
		m.Close()
	}
	r.localVoice.Close()
	r.aggregator.Close()
	r.capture.Reset()
	r.transfers.Close()
	r.inflater.Close()
	r.deflater.Close()
	r.archiver.Close()

	logrus.WithFields(logrus.Fields{
		"function": "Kill",
	}).Info("Runtime stopped")
}
