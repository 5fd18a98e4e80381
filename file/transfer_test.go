package file

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIncoming(t *testing.T, size uint64) *Transfer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "incoming.bin")
	return NewTransfer("peer-1", "file-1", path, size, TransferDirectionIncoming, SpeedOptions{SampleInterval: time.Hour})
}

func newOutgoing(t *testing.T, content []byte) *Transfer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "outgoing.bin")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return NewTransfer("peer-1", "file-2", path, uint64(len(content)), TransferDirectionOutgoing, SpeedOptions{SampleInterval: time.Hour})
}

// TestTransferStateTransitions tests valid and invalid state transitions.
func TestTransferStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(tr *Transfer) error
		operation     func(tr *Transfer) error
		wantState     TransferState
		errorContains string
	}{
		{
			name:      "pending to running via start",
			operation: (*Transfer).Start,
			wantState: TransferStateRunning,
		},
		{
			name:          "pending cannot pause",
			operation:     (*Transfer).Pause,
			wantState:     TransferStatePending,
			errorContains: "not running",
		},
		{
			name:          "pending cannot resume",
			operation:     (*Transfer).Resume,
			wantState:     TransferStatePending,
			errorContains: "not paused",
		},
		{
			name:      "pending can cancel",
			operation: (*Transfer).Cancel,
			wantState: TransferStateCancelled,
		},
		{
			name:      "running to paused",
			setup:     (*Transfer).Start,
			operation: (*Transfer).Pause,
			wantState: TransferStatePaused,
		},
		{
			name:          "running cannot start again",
			setup:         (*Transfer).Start,
			operation:     (*Transfer).Start,
			wantState:     TransferStateRunning,
			errorContains: "cannot be started",
		},
		{
			name: "paused to running via resume",
			setup: func(tr *Transfer) error {
				if err := tr.Start(); err != nil {
					return err
				}
				return tr.Pause()
			},
			operation: (*Transfer).Resume,
			wantState: TransferStateRunning,
		},
		{
			name: "paused to running via start",
			setup: func(tr *Transfer) error {
				if err := tr.Start(); err != nil {
					return err
				}
				return tr.Pause()
			},
			operation: (*Transfer).Start,
			wantState: TransferStateRunning,
		},
		{
			name: "cancelled cannot cancel again",
			setup: func(tr *Transfer) error {
				return tr.Cancel()
			},
			operation:     (*Transfer).Cancel,
			wantState:     TransferStateCancelled,
			errorContains: "already finished",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newIncoming(t, 1024)
			defer tr.Speed().Stop()
			if tt.setup != nil {
				require.NoError(t, tt.setup(tr))
			}

			err := tt.operation(tr)
			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, tr.GetState())
		})
	}
}

func TestTransferStartRejectsTraversal(t *testing.T) {
	tr := NewTransfer("peer", "id", "../../etc/passwd", 10, TransferDirectionIncoming, SpeedOptions{})
	err := tr.Start()
	assert.ErrorIs(t, err, ErrDirectoryTraversal)
	assert.Equal(t, TransferStateError, tr.GetState())
	assert.False(t, tr.Speed().Running())
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr error
	}{
		{path: "a/b/../c.txt", want: filepath.Clean("a/c.txt")},
		{path: "../secret", wantErr: ErrDirectoryTraversal},
		{path: "/tmp/../../x", want: filepath.Clean("/x")},
		{path: "dir/" + strings.Repeat("n", MaxFileNameLength+1), wantErr: ErrFileNameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ValidatePath(tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransferWriteChunkCompletes(t *testing.T) {
	tr := newIncoming(t, 8)
	var progress []uint64
	var done error = errors.New("not called")
	tr.OnProgress(func(n uint64) { progress = append(progress, n) })
	tr.OnComplete(func(err error) { done = err })

	require.NoError(t, tr.Start())
	require.NoError(t, tr.WriteChunk([]byte("abcd")))
	assert.InDelta(t, 50.0, tr.GetProgress(), 1e-9)
	require.NoError(t, tr.WriteChunk([]byte("efgh")))

	assert.Equal(t, []uint64{4, 8}, progress)
	assert.NoError(t, done)
	assert.Equal(t, TransferStateCompleted, tr.GetState())
	assert.False(t, tr.Speed().Running())

	data, err := os.ReadFile(tr.FileName)
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", string(data))
}

func TestTransferChunkErrors(t *testing.T) {
	in := newIncoming(t, 1024)
	defer in.Speed().Stop()

	assert.EqualError(t, in.WriteChunk([]byte("x")), "transfer is not running")
	assert.ErrorIs(t, in.WriteChunk(make([]byte, MaxChunkSize+1)), ErrChunkTooLarge)

	require.NoError(t, in.Start())
	_, err := in.ReadChunk(10)
	assert.EqualError(t, err, "cannot read from incoming transfer")

	out := newOutgoing(t, []byte("payload"))
	defer out.Speed().Stop()
	require.NoError(t, out.Start())
	assert.EqualError(t, out.WriteChunk([]byte("x")), "cannot write to outgoing transfer")
	_, err = out.ReadChunk(MaxChunkSize + 1)
	assert.ErrorIs(t, err, ErrChunkTooLarge)
}

func TestTransferReadChunkUntilEOF(t *testing.T) {
	tr := newOutgoing(t, []byte("0123456789"))
	require.NoError(t, tr.Start())

	var got []byte
	for {
		chunk, err := tr.ReadChunk(4)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, chunk...)
		if tr.GetState() == TransferStateCompleted {
			break
		}
	}
	assert.Equal(t, "0123456789", string(got))
	assert.Equal(t, TransferStateCompleted, tr.GetState())
	assert.Equal(t, uint64(10), tr.TransferredBytes())
}

func TestTransferSpeedFromCounter(t *testing.T) {
	tr := newIncoming(t, 1<<20)
	tp := newMockTimeProvider()
	tr.SetTimeProvider(tp)
	require.NoError(t, tr.Start())
	defer tr.Speed().Stop()

	assert.Equal(t, 0.0, tr.GetSpeed())
	assert.Equal(t, time.Duration(0), tr.GetEstimatedTimeRemaining())

	for i := 0; i < 4; i++ {
		require.NoError(t, tr.WriteChunk(make([]byte, 1024)))
		tp.advance(time.Second)
		tr.Speed().Sample()
	}

	assert.InDelta(t, 1024.0, tr.GetSpeed(), 1e-9)
	remaining := float64(1<<20-4*1024) / 1024
	assert.InDelta(t, remaining, tr.GetEstimatedTimeRemaining().Seconds(), 1e-6)
}

func TestTransferStallDetection(t *testing.T) {
	tr := newIncoming(t, 1024)
	tp := newMockTimeProvider()
	tr.SetTimeProvider(tp)
	tr.SetStallTimeout(10 * time.Second)
	assert.Equal(t, 10*time.Second, tr.GetStallTimeout())

	tp.advance(time.Hour)
	assert.False(t, tr.IsStalled(), "pending transfers never stall")

	require.NoError(t, tr.Start())
	tp.advance(5 * time.Second)
	assert.False(t, tr.IsStalled())
	require.NoError(t, tr.WriteChunk([]byte("x")))

	tp.advance(9 * time.Second)
	assert.NoError(t, tr.CheckTimeout())

	var completeErr error
	tr.OnComplete(func(err error) { completeErr = err })
	tp.advance(2 * time.Second)
	assert.True(t, tr.IsStalled())
	assert.ErrorIs(t, tr.CheckTimeout(), ErrTransferStalled)
	assert.ErrorIs(t, completeErr, ErrTransferStalled)
	assert.Equal(t, TransferStateError, tr.GetState())
	assert.False(t, tr.Speed().Running())
}

func TestTransferStallDisabled(t *testing.T) {
	tr := newIncoming(t, 1024)
	tp := newMockTimeProvider()
	tr.SetTimeProvider(tp)
	tr.SetStallTimeout(0)
	require.NoError(t, tr.Start())
	defer tr.Speed().Stop()

	tp.advance(time.Hour)
	assert.False(t, tr.IsStalled())
	assert.NoError(t, tr.CheckTimeout())
}

func TestTransferCancelNotifies(t *testing.T) {
	tr := newIncoming(t, 1024)
	require.NoError(t, tr.Start())

	var got error
	tr.OnComplete(func(err error) { got = err })
	require.NoError(t, tr.Cancel())
	assert.ErrorIs(t, got, ErrTransferCancelled)
	assert.False(t, tr.Speed().Running())
}

// TestTransferCallbacksMayReadState checks that handlers run after the
// transfer lock is released.
func TestTransferCallbacksMayReadState(t *testing.T) {
	await := func(t *testing.T, fn func()) {
		t.Helper()
		done := make(chan struct{})
		go func() {
			defer close(done)
			fn()
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("callback calling back into the transfer never returned")
		}
	}

	t.Run("write completes", func(t *testing.T) {
		tr := newIncoming(t, 4)
		var progress float64
		var state TransferState
		tr.OnProgress(func(uint64) { progress = tr.GetProgress() })
		tr.OnComplete(func(error) { state = tr.GetState() })
		require.NoError(t, tr.Start())

		await(t, func() { assert.NoError(t, tr.WriteChunk([]byte("abcd"))) })
		assert.InDelta(t, 100.0, progress, 1e-9)
		assert.Equal(t, TransferStateCompleted, state)
	})

	t.Run("read reaches end", func(t *testing.T) {
		tr := newOutgoing(t, []byte("abcd"))
		var sent uint64
		tr.OnComplete(func(error) { sent = tr.TransferredBytes() })
		require.NoError(t, tr.Start())

		await(t, func() {
			_, err := tr.ReadChunk(ChunkSize)
			assert.NoError(t, err)
		})
		assert.Equal(t, uint64(4), sent)
	})

	t.Run("cancel", func(t *testing.T) {
		tr := newIncoming(t, 1024)
		var state TransferState
		tr.OnComplete(func(error) { state = tr.GetState() })
		require.NoError(t, tr.Start())

		await(t, func() { assert.NoError(t, tr.Cancel()) })
		assert.Equal(t, TransferStateCancelled, state)
	})

	t.Run("stall", func(t *testing.T) {
		tr := newIncoming(t, 1024)
		tp := newMockTimeProvider()
		tr.SetTimeProvider(tp)
		tr.SetStallTimeout(time.Second)
		var state TransferState
		tr.OnComplete(func(error) { state = tr.GetState() })
		require.NoError(t, tr.Start())

		tp.advance(2 * time.Second)
		await(t, func() { assert.ErrorIs(t, tr.CheckTimeout(), ErrTransferStalled) })
		assert.Equal(t, TransferStateError, state)
	})
}
