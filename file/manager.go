package file

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Manager tracks the transfers of one client and owns their speed estimators.
type Manager struct {
	speedOpts    SpeedOptions
	stallTimeout time.Duration

	mu        sync.RWMutex
	transfers map[transferKey]*Transfer
}

// transferKey uniquely identifies a file transfer.
type transferKey struct {
	peerID string
	id     string
}

// NewManager creates a manager whose transfers use speedOpts and stallTimeout.
func NewManager(speedOpts SpeedOptions, stallTimeout time.Duration) *Manager {
	logrus.WithFields(logrus.Fields{
		"function":        "NewManager",
		"sample_interval": speedOpts.SampleInterval,
		"window_size":     speedOpts.WindowSize,
	}).Info("Creating new file transfer manager")

	return &Manager{
		speedOpts:    speedOpts,
		stallTimeout: stallTimeout,
		transfers:    make(map[transferKey]*Transfer),
	}
}

// SendFile registers an outgoing transfer.
func (m *Manager) SendFile(peerID, id, fileName string, fileSize uint64) (*Transfer, error) {
	return m.add(peerID, id, fileName, fileSize, TransferDirectionOutgoing)
}

// ReceiveFile registers an incoming transfer.
func (m *Manager) ReceiveFile(peerID, id, fileName string, fileSize uint64) (*Transfer, error) {
	return m.add(peerID, id, fileName, fileSize, TransferDirectionIncoming)
}

func (m *Manager) add(peerID, id, fileName string, fileSize uint64, direction TransferDirection) (*Transfer, error) {
	if _, err := ValidatePath(fileName); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := transferKey{peerID: peerID, id: id}
	if _, exists := m.transfers[key]; exists {
		return nil, fmt.Errorf("transfer already exists for peer %s file %s", peerID, id)
	}

	t := NewTransfer(peerID, id, fileName, fileSize, direction, m.speedOpts)
	t.SetStallTimeout(m.stallTimeout)
	m.transfers[key] = t
	return t, nil
}

// GetTransfer returns a registered transfer.
func (m *Manager) GetTransfer(peerID, id string) (*Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transfers[transferKey{peerID: peerID, id: id}]
	if !ok {
		return nil, fmt.Errorf("no transfer for peer %s file %s", peerID, id)
	}
	return t, nil
}

// Remove forgets a transfer and stops its estimator.
func (m *Manager) Remove(peerID, id string) {
	key := transferKey{peerID: peerID, id: id}
	m.mu.Lock()
	t, ok := m.transfers[key]
	delete(m.transfers, key)
	m.mu.Unlock()

	if ok {
		t.Speed().Stop()
	}
}

// Transfers returns every registered transfer ordered by peer and id.
func (m *Manager) Transfers() []*Transfer {
	m.mu.RLock()
	out := make([]*Transfer, 0, len(m.transfers))
	for _, t := range m.transfers {
		out = append(out, t)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].PeerID != out[j].PeerID {
			return out[i].PeerID < out[j].PeerID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CheckTimeouts runs stall detection on every transfer and returns the ones
// that were failed by it.
func (m *Manager) CheckTimeouts() []*Transfer {
	var stalled []*Transfer
	for _, t := range m.Transfers() {
		if err := t.CheckTimeout(); err != nil {
			stalled = append(stalled, t)
		}
	}
	return stalled
}

// Close cancels every unfinished transfer.
func (m *Manager) Close() {
	for _, t := range m.Transfers() {
		if err := t.Cancel(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Manager.Close",
				"peer_id":  t.PeerID,
				"id":       t.ID,
				"error":    err.Error(),
			}).Debug("Transfer already finished")
		}
		t.Speed().Stop()
	}
}
