package limits

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePayloadSize(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		max     int
		wantErr error
	}{
		{name: "empty", size: 0, max: 10, wantErr: ErrPayloadEmpty},
		{name: "at_limit", size: 10, max: 10},
		{name: "over_limit", size: 11, max: 10, wantErr: ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayloadSize(make([]byte, tt.size), tt.max)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCompressedPayload(t *testing.T) {
	if err := ValidateCompressedPayload(nil); !errors.Is(err, ErrPayloadEmpty) {
		t.Errorf("expected ErrPayloadEmpty, got %v", err)
	}
	if err := ValidateCompressedPayload([]byte{1, 2, 3}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateArchive(t *testing.T) {
	if err := ValidateArchive(0, 0); err != nil {
		t.Errorf("empty archive should be valid: %v", err)
	}
	err := ValidateArchive(MaxArchiveEntries+1, 0)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if !strings.Contains(err.Error(), "entries") {
		t.Errorf("error should mention entries: %v", err)
	}
	if err := ValidateArchive(1, MaxArchiveSize+1); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge for size, got %v", err)
	}
}

func TestValidatePathLength(t *testing.T) {
	if err := ValidatePathLength("a/b.txt"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidatePathLength(strings.Repeat("a", MaxPathLength+1)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}
