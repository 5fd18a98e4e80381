package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/opd-ai/peerkit/limits"
	"github.com/opd-ai/peerkit/metrics"
)

// Worker names used in logs and metrics.
const (
	InflaterName = "inflater"
	DeflaterName = "deflater"
	ArchiverName = "archiver"
)

// Inflate decompresses a raw DEFLATE payload of at most
// limits.MaxCompressedPayload bytes into at most maxSize bytes.
func Inflate(data []byte, maxSize int64) ([]byte, error) {
	if err := limits.ValidateCompressedPayload(data); err != nil {
		return nil, err
	}

	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	if int64(len(out)) > maxSize {
		return nil, fmt.Errorf("%w: decompressed size exceeds limit %d", limits.ErrTooLarge, maxSize)
	}
	return out, nil
}

// Deflate compresses data as raw DEFLATE at the given level. Inputs the
// receiving inflater would refuse to expand are rejected.
func Deflate(data []byte, level int) ([]byte, error) {
	if err := limits.ValidatePayloadSize(data, limits.MaxDecompressedSize); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return buf.Bytes(), nil
}

// HandleDecompress answers one decompression request, capping output at maxSize.
func HandleDecompress(req DecompressRequest, maxSize int64) DecompressResponse {
	out, err := Inflate(req.Data, maxSize)
	if err != nil {
		return DecompressResponse{Context: req.Context, Error: err.Error()}
	}
	return DecompressResponse{Data: out, Context: req.Context}
}

// HandleCompress answers one compression request.
func HandleCompress(req CompressRequest, level int) CompressResponse {
	out, err := Deflate(req.Data, level)
	if err != nil {
		return CompressResponse{Context: req.Context, Error: err.Error()}
	}
	return CompressResponse{Data: out, Context: req.Context}
}

// NewInflater starts a decompression worker.
func NewInflater(m *metrics.Metrics, maxSize int64) *Worker[DecompressRequest, DecompressResponse] {
	if maxSize <= 0 {
		maxSize = limits.MaxDecompressedSize
	}
	return NewWorker(InflaterName, func(req DecompressRequest) DecompressResponse {
		return HandleDecompress(req, maxSize)
	}, m)
}

// NewDeflater starts a compression worker.
func NewDeflater(m *metrics.Metrics, level int) *Worker[CompressRequest, CompressResponse] {
	return NewWorker(DeflaterName, func(req CompressRequest) CompressResponse {
		return HandleCompress(req, level)
	}, m)
}

// NewInflateClient starts an inflater with the default size cap and a client for it.
func NewInflateClient(m *metrics.Metrics) *Client[DecompressRequest, DecompressResponse] {
	return NewClient(NewInflater(m, limits.MaxDecompressedSize))
}

// NewDeflateClient starts a deflater with the default level and a client for it.
func NewDeflateClient(m *metrics.Metrics) *Client[CompressRequest, CompressResponse] {
	return NewClient(NewDeflater(m, flate.DefaultCompression))
}
