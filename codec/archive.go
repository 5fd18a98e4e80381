package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/opd-ai/peerkit/limits"
	"github.com/opd-ai/peerkit/metrics"
)

// ErrInvalidPath is returned for archive entry paths that are empty,
// absolute, not clean, or escape the folder.
var ErrInvalidPath = errors.New("invalid archive path")

// DefaultFolderName names archives whose request has no folder name.
const DefaultFolderName = "archive"

// ValidateEntryPath checks that p is a clean relative slash path inside the
// archive folder.
func ValidateEntryPath(p string) error {
	if err := limits.ValidatePathLength(p); err != nil {
		return err
	}
	switch {
	case p == "",
		strings.HasPrefix(p, "/"),
		strings.HasSuffix(p, "/"),
		strings.Contains(p, "\\"),
		path.Clean(p) != p:
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." || part == "." {
			return fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return nil
}

// Archive packs files into an uncompressed zip named folder.zip. Entries
// are written in path order; a nil file becomes an empty entry.
func Archive(folder string, files map[string][]byte) (*Blob, error) {
	var total int64
	paths := make([]string, 0, len(files))
	for p, data := range files {
		if err := ValidateEntryPath(p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
		total += int64(len(data))
	}
	if err := limits.ValidateArchive(len(paths), total); err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range paths {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p, Method: zip.Store})
		if err != nil {
			return nil, fmt.Errorf("archive %q: %w", p, err)
		}
		if _, err := w.Write(files[p]); err != nil {
			return nil, fmt.Errorf("archive %q: %w", p, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}

	if folder == "" {
		folder = DefaultFolderName
	}
	return &Blob{Name: folder + ".zip", Type: ArchiveType, Data: buf.Bytes()}, nil
}

// Unarchive reads back the files of a zip built by Archive.
func Unarchive(data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("unarchive: %w", err)
	}
	if err := limits.ValidateArchive(len(zr.File), 0); err != nil {
		return nil, err
	}

	files := make(map[string][]byte, len(zr.File))
	var total int64
	for _, f := range zr.File {
		if err := ValidateEntryPath(f.Name); err != nil {
			return nil, err
		}
		content, err := readEntry(f, limits.MaxArchiveSize-total)
		if err != nil {
			return nil, err
		}
		total += int64(len(content))
		files[f.Name] = content
	}
	return files, nil
}

func readEntry(f *zip.File, remaining int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("unarchive %q: %w", f.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, remaining+1))
	if err != nil {
		return nil, fmt.Errorf("unarchive %q: %w", f.Name, err)
	}
	if int64(len(content)) > remaining {
		return nil, fmt.Errorf("%w: archive exceeds %d bytes", limits.ErrTooLarge, int64(limits.MaxArchiveSize))
	}
	return content, nil
}

// HandleArchive answers one archive request.
func HandleArchive(req ArchiveRequest) ArchiveResponse {
	blob, err := Archive(req.FolderName, req.FileMap)
	if err != nil {
		return ArchiveResponse{Error: err.Error()}
	}
	return ArchiveResponse{Data: blob}
}

// NewArchiver starts an archive worker.
func NewArchiver(m *metrics.Metrics) *Worker[ArchiveRequest, ArchiveResponse] {
	return NewWorker(ArchiverName, HandleArchive, m)
}

// NewArchiveClient starts an archiver and a client for it.
func NewArchiveClient(m *metrics.Metrics) *Client[ArchiveRequest, ArchiveResponse] {
	return NewClient(NewArchiver(m))
}
