package codec

import (
	"errors"

	"golang.org/x/crypto/blake2b"
)

// ArchiveType is the media type of archives built by the archiver.
const ArchiveType = "application/zip"

// Response is implemented by every worker response. It reports the output
// size and failure of a job for metrics.
type Response interface {
	outcome() (outputBytes int, err error)
}

// DecompressRequest asks the inflater to decompress Data. Context is
// returned untouched in the response.
type DecompressRequest struct {
	Data    []byte
	Context any
}

// DecompressResponse carries either Data or a non-empty Error.
type DecompressResponse struct {
	Data    []byte
	Context any
	Error   string
}

func (r DecompressResponse) outcome() (int, error) {
	if r.Error != "" {
		return 0, errors.New(r.Error)
	}
	return len(r.Data), nil
}

// CompressRequest asks the deflater to compress Data.
type CompressRequest struct {
	Data    []byte
	Context any
}

// CompressResponse carries either Data or a non-empty Error.
type CompressResponse struct {
	Data    []byte
	Context any
	Error   string
}

func (r CompressResponse) outcome() (int, error) {
	if r.Error != "" {
		return 0, errors.New(r.Error)
	}
	return len(r.Data), nil
}

// ArchiveRequest asks the archiver to pack FileMap, keyed by path, into
// FolderName.zip. A nil file is stored as an empty entry.
type ArchiveRequest struct {
	FolderName string
	FileMap    map[string][]byte
}

// ArchiveResponse carries either the archive or a non-empty Error.
type ArchiveResponse struct {
	Data  *Blob
	Error string
}

func (r ArchiveResponse) outcome() (int, error) {
	if r.Error != "" {
		return 0, errors.New(r.Error)
	}
	if r.Data == nil {
		return 0, nil
	}
	return len(r.Data.Data), nil
}

// Blob is a named binary payload with a media type.
type Blob struct {
	Name string
	Type string
	Data []byte
}

// Size returns the payload length in bytes.
func (b *Blob) Size() int {
	return len(b.Data)
}

// Digest returns the BLAKE2b-256 checksum of the payload.
func (b *Blob) Digest() [blake2b.Size256]byte {
	return blake2b.Sum256(b.Data)
}
