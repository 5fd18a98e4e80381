// Package limits provides centralized payload size limits for the transfer codecs.
// This ensures consistent validation across the workers and the transfer layer.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxCompressedPayload is the largest compressed chunk accepted by the inflater.
	// Chunks above this size are rejected before any decompression work happens.
	MaxCompressedPayload = 64 * 1024 * 1024

	// MaxDecompressedSize caps the output of a single inflate job.
	// This prevents a small hostile payload from expanding into memory exhaustion.
	MaxDecompressedSize = 256 * 1024 * 1024

	// MaxArchiveEntries is the maximum number of files packed into one archive.
	MaxArchiveEntries = 10000

	// MaxArchiveSize is the maximum total size of the raw bytes packed into one archive.
	MaxArchiveSize = 1024 * 1024 * 1024

	// MaxPathLength is the maximum length of a single archive entry path in bytes.
	// The zip format stores names with a 16-bit length.
	MaxPathLength = 65535
)

var (
	// ErrPayloadEmpty indicates an empty payload was provided
	ErrPayloadEmpty = errors.New("empty payload")

	// ErrTooLarge indicates a payload exceeds its maximum size
	ErrTooLarge = errors.New("payload too large")
)

// ValidatePayloadSize validates a payload against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidatePayloadSize(payload []byte, maxSize int) error {
	if len(payload) == 0 {
		return ErrPayloadEmpty
	}
	if len(payload) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrTooLarge, len(payload), maxSize)
	}
	return nil
}

// ValidateCompressedPayload validates an inflate input against MaxCompressedPayload.
func ValidateCompressedPayload(payload []byte) error {
	if len(payload) == 0 {
		return ErrPayloadEmpty
	}
	if len(payload) > MaxCompressedPayload {
		return fmt.Errorf("%w: compressed size %d exceeds limit %d", ErrTooLarge, len(payload), MaxCompressedPayload)
	}
	return nil
}

// ValidateArchive validates the entry count and total size of an archive request.
// Empty archives are allowed; a folder may legitimately contain no files.
func ValidateArchive(entries int, totalSize int64) error {
	if entries > MaxArchiveEntries {
		return fmt.Errorf("%w: %d entries exceeds limit %d", ErrTooLarge, entries, MaxArchiveEntries)
	}
	if totalSize > MaxArchiveSize {
		return fmt.Errorf("%w: archive size %d exceeds limit %d", ErrTooLarge, totalSize, MaxArchiveSize)
	}
	return nil
}

// ValidatePathLength validates an archive entry path against MaxPathLength.
func ValidatePathLength(path string) error {
	if len(path) > MaxPathLength {
		return fmt.Errorf("%w: path length %d exceeds limit %d", ErrTooLarge, len(path), MaxPathLength)
	}
	return nil
}
