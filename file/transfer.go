package file

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrDirectoryTraversal indicates an attempt to access files outside allowed directories.
var ErrDirectoryTraversal = errors.New("path contains directory traversal")

// ErrChunkTooLarge indicates that a chunk exceeds the maximum allowed size.
var ErrChunkTooLarge = errors.New("chunk size exceeds maximum allowed")

// ErrFileNameTooLong indicates that a file name exceeds the maximum allowed length.
var ErrFileNameTooLong = errors.New("file name too long")

// ErrTransferStalled indicates that a transfer has not received data within the timeout period.
var ErrTransferStalled = errors.New("transfer stalled: no data received within timeout period")

// ErrTransferCancelled is passed to the completion callback of a cancelled transfer.
var ErrTransferCancelled = errors.New("transfer cancelled")

// TransferDirection indicates whether a transfer is incoming or outgoing.
type TransferDirection uint8

const (
	// TransferDirectionIncoming represents a file being received.
	TransferDirectionIncoming TransferDirection = iota
	// TransferDirectionOutgoing represents a file being sent.
	TransferDirectionOutgoing
)

func (d TransferDirection) String() string {
	if d == TransferDirectionOutgoing {
		return "outgoing"
	}
	return "incoming"
}

// TransferState represents the current state of a file transfer.
type TransferState uint8

const (
	// TransferStatePending indicates the transfer is waiting to start.
	TransferStatePending TransferState = iota
	// TransferStateRunning indicates the transfer is in progress.
	TransferStateRunning
	// TransferStatePaused indicates the transfer is temporarily paused.
	TransferStatePaused
	// TransferStateCompleted indicates the transfer has finished successfully.
	TransferStateCompleted
	// TransferStateCancelled indicates the transfer was cancelled.
	TransferStateCancelled
	// TransferStateError indicates the transfer failed due to an error.
	TransferStateError
)

func (s TransferState) String() string {
	switch s {
	case TransferStatePending:
		return "pending"
	case TransferStateRunning:
		return "running"
	case TransferStatePaused:
		return "paused"
	case TransferStateCompleted:
		return "completed"
	case TransferStateCancelled:
		return "cancelled"
	case TransferStateError:
		return "error"
	default:
		return "unknown"
	}
}

// ChunkSize is the default data channel message size in bytes.
const ChunkSize = 16384

// MaxChunkSize is the largest chunk a single data channel message may carry.
const MaxChunkSize = 65536

// MaxFileNameLength is the maximum allowed file name length in bytes.
const MaxFileNameLength = 255

// DefaultStallTimeout is the default timeout duration for detecting stalled transfers.
const DefaultStallTimeout = 30 * time.Second

// TimeProvider abstracts time operations for deterministic testing.
type TimeProvider interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// DefaultTimeProvider uses the standard library time functions.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// Since returns the duration since t.
func (DefaultTimeProvider) Since(t time.Time) time.Duration { return time.Since(t) }

var defaultTimeProvider TimeProvider = DefaultTimeProvider{}

// Transfer is one file moving between the local client and a peer. Its byte
// counter feeds a SpeedEstimator while the transfer is running.
type Transfer struct {
	PeerID      string
	ID          string
	Direction   TransferDirection
	FileName    string
	FileSize    uint64
	State       TransferState
	StartTime   time.Time
	Transferred uint64
	FileHandle  *os.File
	Error       error

	progressCallback func(uint64)
	completeCallback func(error)
	// notify holds callbacks queued under mu; they run after it is released.
	notify []func()

	mu            sync.Mutex
	lastChunkTime time.Time
	stallTimeout  time.Duration
	timeProvider  TimeProvider
	speed         *SpeedEstimator
}

// NewTransfer creates a pending transfer. speedOpts configures the
// throughput estimator that runs while the transfer is active.
func NewTransfer(peerID, id, fileName string, fileSize uint64, direction TransferDirection, speedOpts SpeedOptions) *Transfer {
	logrus.WithFields(logrus.Fields{
		"function":  "NewTransfer",
		"peer_id":   peerID,
		"id":        id,
		"file_name": fileName,
		"file_size": fileSize,
		"direction": direction,
	}).Info("Creating new file transfer")

	tp := defaultTimeProvider
	t := &Transfer{
		PeerID:        peerID,
		ID:            id,
		Direction:     direction,
		FileName:      fileName,
		FileSize:      fileSize,
		State:         TransferStatePending,
		lastChunkTime: tp.Now(),
		stallTimeout:  DefaultStallTimeout,
		timeProvider:  tp,
	}
	t.speed = NewSpeedEstimator(t.TransferredBytes, speedOpts)
	return t
}

// SetTimeProvider sets a custom time provider for deterministic testing.
// It also resets lastChunkTime and is shared with the speed estimator.
func (t *Transfer) SetTimeProvider(tp TimeProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeProvider = tp
	t.lastChunkTime = tp.Now()
	t.speed.SetTimeProvider(tp)
}

// ValidatePath checks if a file path is safe from directory traversal attacks.
// It returns the cleaned path or an error if the path contains traversal attempts.
func ValidatePath(path string) (string, error) {
	if len(filepath.Base(path)) > MaxFileNameLength {
		return "", ErrFileNameTooLong
	}

	cleanedPath := filepath.Clean(path)
	for _, part := range strings.Split(filepath.ToSlash(cleanedPath), "/") {
		if part == ".." {
			return "", ErrDirectoryTraversal
		}
	}
	return cleanedPath, nil
}

// Start opens the file and begins the transfer. A paused transfer may be
// started again, which behaves like Resume.
func (t *Transfer) Start() error {
	t.mu.Lock()
	resumed, err := t.startLocked()
	t.mu.Unlock()
	if err != nil {
		return err
	}

	t.speed.Start()

	logrus.WithFields(logrus.Fields{
		"function":  "Start",
		"peer_id":   t.PeerID,
		"id":        t.ID,
		"file_name": t.FileName,
		"direction": t.Direction,
		"resumed":   resumed,
	}).Info("File transfer started successfully")
	return nil
}

func (t *Transfer) startLocked() (bool, error) {
	switch t.State {
	case TransferStatePaused:
		t.State = TransferStateRunning
		t.lastChunkTime = t.timeProvider.Now()
		return true, nil
	case TransferStatePending:
	default:
		logrus.WithFields(logrus.Fields{
			"function":      "Start",
			"peer_id":       t.PeerID,
			"id":            t.ID,
			"current_state": t.State,
		}).Error("Transfer cannot be started in current state")
		return false, errors.New("transfer cannot be started in current state")
	}

	safePath, err := ValidatePath(t.FileName)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "Start",
			"peer_id":   t.PeerID,
			"id":        t.ID,
			"file_name": t.FileName,
			"error":     err.Error(),
		}).Error("File path validation failed")
		t.Error = err
		t.State = TransferStateError
		return false, err
	}
	t.FileName = safePath

	if t.Direction == TransferDirectionOutgoing {
		t.FileHandle, err = os.Open(t.FileName)
	} else {
		t.FileHandle, err = os.Create(t.FileName)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "Start",
			"peer_id":   t.PeerID,
			"id":        t.ID,
			"file_name": t.FileName,
			"direction": t.Direction,
			"error":     err.Error(),
		}).Error("Failed to open file for transfer")
		t.Error = err
		t.State = TransferStateError
		return false, err
	}

	t.State = TransferStateRunning
	t.StartTime = t.timeProvider.Now()
	t.lastChunkTime = t.StartTime
	return false, nil
}

// Pause temporarily halts the file transfer and its speed sampling.
func (t *Transfer) Pause() error {
	t.mu.Lock()
	if t.State != TransferStateRunning {
		t.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":      "Pause",
			"peer_id":       t.PeerID,
			"id":            t.ID,
			"current_state": t.State,
		}).Error("Transfer is not running and cannot be paused")
		return errors.New("transfer is not running")
	}
	t.State = TransferStatePaused
	t.mu.Unlock()

	t.speed.Stop()

	logrus.WithFields(logrus.Fields{
		"function": "Pause",
		"peer_id":  t.PeerID,
		"id":       t.ID,
	}).Info("File transfer paused")
	return nil
}

// Resume continues a paused file transfer.
func (t *Transfer) Resume() error {
	t.mu.Lock()
	if t.State != TransferStatePaused {
		t.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":      "Resume",
			"peer_id":       t.PeerID,
			"id":            t.ID,
			"current_state": t.State,
		}).Error("Transfer is not paused and cannot be resumed")
		return errors.New("transfer is not paused")
	}
	t.State = TransferStateRunning
	t.lastChunkTime = t.timeProvider.Now()
	t.mu.Unlock()

	t.speed.Start()
	return nil
}

// Cancel aborts the file transfer.
func (t *Transfer) Cancel() error {
	t.mu.Lock()
	defer t.unlockAndNotify()

	if t.finished() {
		return errors.New("transfer already finished")
	}

	t.closeHandle("Cancel")
	t.State = TransferStateCancelled
	t.speed.Stop()
	t.queueComplete(ErrTransferCancelled)
	return nil
}

func (t *Transfer) finished() bool {
	return t.State == TransferStateCompleted || t.State == TransferStateCancelled || t.State == TransferStateError
}

// WriteChunk appends data to an incoming transfer.
func (t *Transfer) WriteChunk(data []byte) error {
	t.mu.Lock()
	defer t.unlockAndNotify()

	if len(data) > MaxChunkSize {
		logrus.WithFields(logrus.Fields{
			"function":       "WriteChunk",
			"peer_id":        t.PeerID,
			"id":             t.ID,
			"chunk_size":     len(data),
			"max_chunk_size": MaxChunkSize,
		}).Error("Chunk size exceeds maximum allowed")
		return ErrChunkTooLarge
	}
	if t.Direction != TransferDirectionIncoming {
		return errors.New("cannot write to outgoing transfer")
	}
	if t.State != TransferStateRunning {
		return errors.New("transfer is not running")
	}

	if _, err := t.FileHandle.Write(data); err != nil {
		t.fail(err)
		return err
	}

	t.advance(uint64(len(data)))
	if t.Transferred >= t.FileSize {
		t.complete()
	}
	return nil
}

// ReadChunk reads the next chunk of an outgoing transfer.
func (t *Transfer) ReadChunk(size int) ([]byte, error) {
	t.mu.Lock()
	defer t.unlockAndNotify()

	if size > MaxChunkSize {
		logrus.WithFields(logrus.Fields{
			"function":       "ReadChunk",
			"peer_id":        t.PeerID,
			"id":             t.ID,
			"chunk_size":     size,
			"max_chunk_size": MaxChunkSize,
		}).Error("Chunk size exceeds maximum allowed")
		return nil, ErrChunkTooLarge
	}
	if t.Direction != TransferDirectionOutgoing {
		return nil, errors.New("cannot read from incoming transfer")
	}
	if t.State != TransferStateRunning {
		return nil, errors.New("transfer is not running")
	}

	chunk := make([]byte, size)
	n, err := t.FileHandle.Read(chunk)
	if err != nil && err != io.EOF {
		t.fail(err)
		return nil, err
	}

	t.advance(uint64(n))
	if err == io.EOF || t.Transferred >= t.FileSize {
		t.complete()
	}
	if n == 0 {
		return nil, io.EOF
	}
	return chunk[:n], nil
}

func (t *Transfer) advance(n uint64) {
	t.Transferred += n
	t.lastChunkTime = t.timeProvider.Now()
	if cb := t.progressCallback; cb != nil {
		transferred := t.Transferred
		t.notify = append(t.notify, func() { cb(transferred) })
	}
}

func (t *Transfer) queueComplete(err error) {
	if cb := t.completeCallback; cb != nil {
		t.notify = append(t.notify, func() { cb(err) })
	}
}

// unlockAndNotify releases mu and then runs the callbacks queued while it
// was held, so handlers may call back into the transfer.
func (t *Transfer) unlockAndNotify() {
	pending := t.notify
	t.notify = nil
	t.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

func (t *Transfer) closeHandle(function string) {
	if t.FileHandle == nil {
		return
	}
	if err := t.FileHandle.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  function,
			"peer_id":   t.PeerID,
			"id":        t.ID,
			"file_name": t.FileName,
			"error":     err.Error(),
		}).Warn("Failed to close file handle")
	}
	t.FileHandle = nil
}

func (t *Transfer) complete() {
	t.closeHandle("complete")
	t.State = TransferStateCompleted
	t.speed.Stop()

	logrus.WithFields(logrus.Fields{
		"function":    "complete",
		"peer_id":     t.PeerID,
		"id":          t.ID,
		"transferred": t.Transferred,
	}).Info("File transfer completed")

	t.queueComplete(nil)
}

func (t *Transfer) fail(err error) {
	t.closeHandle("fail")
	t.Error = err
	t.State = TransferStateError
	t.speed.Stop()
	t.queueComplete(err)
}

// TransferredBytes returns the byte counter. It is the accessor the speed
// estimator samples.
func (t *Transfer) TransferredBytes() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Transferred
}

// GetState returns the current state.
func (t *Transfer) GetState() TransferState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.State
}

// OnProgress sets a callback invoked with the byte counter after each chunk.
func (t *Transfer) OnProgress(callback func(uint64)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progressCallback = callback
}

// OnComplete sets a callback invoked once the transfer finishes, with nil on success.
func (t *Transfer) OnComplete(callback func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completeCallback = callback
}

// GetProgress returns the current progress of the transfer as a percentage.
func (t *Transfer) GetProgress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.FileSize == 0 {
		return 0.0
	}
	return float64(t.Transferred) / float64(t.FileSize) * 100.0
}

// Speed returns the estimator fed by this transfer.
func (t *Transfer) Speed() *SpeedEstimator {
	return t.speed
}

// GetSpeed returns the windowed transfer speed in bytes per second, or 0
// before the first measurement.
func (t *Transfer) GetSpeed() float64 {
	speed, _ := t.speed.Average()
	return speed
}

// GetEstimatedTimeRemaining returns the estimated time remaining for the transfer.
func (t *Transfer) GetEstimatedTimeRemaining() time.Duration {
	speed, ok := t.speed.Average()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State != TransferStateRunning || !ok || speed <= 0 || t.Transferred >= t.FileSize {
		return 0
	}
	secondsRemaining := float64(t.FileSize-t.Transferred) / speed
	return time.Duration(secondsRemaining * float64(time.Second))
}

// SetStallTimeout configures the stall detection window. Zero disables it.
func (t *Transfer) SetStallTimeout(timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stallTimeout = timeout
}

// GetStallTimeout returns the current stall timeout duration.
func (t *Transfer) GetStallTimeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stallTimeout
}

// IsStalled reports whether a running transfer has seen no data within the
// stall timeout.
func (t *Transfer) IsStalled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stalledLocked()
}

func (t *Transfer) stalledLocked() bool {
	if t.stallTimeout == 0 || t.State != TransferStateRunning {
		return false
	}
	return t.timeProvider.Since(t.lastChunkTime) >= t.stallTimeout
}

// CheckTimeout fails a stalled transfer with ErrTransferStalled. It is meant
// to be called periodically by the owner of the transfer.
func (t *Transfer) CheckTimeout() error {
	t.mu.Lock()
	defer t.unlockAndNotify()

	if !t.stalledLocked() {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function":             "CheckTimeout",
		"peer_id":              t.PeerID,
		"id":                   t.ID,
		"stall_timeout":        t.stallTimeout,
		"time_since_last_data": t.timeProvider.Since(t.lastChunkTime),
		"transferred":          t.Transferred,
		"file_size":            t.FileSize,
	}).Warn("Transfer stalled: no data received within timeout period")

	t.fail(ErrTransferStalled)
	return ErrTransferStalled
}
