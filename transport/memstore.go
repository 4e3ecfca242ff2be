package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// ChunkSize is the granularity of copy, hash, and fetch progress.
const ChunkSize = 64 * 1024

// MemStore is an in-memory content-addressed blob store implementing
// Transport. Blobs are keyed by their BLAKE2b-256 digest. Stores can be
// connected to each other to form a loopback network, which is how local
// transfers and tests exercise the full fetch path.
type MemStore struct {
	nodeID string

	mu    sync.RWMutex
	blobs map[Hash][]byte
	peers map[string]*MemStore
}

// NewMemStore creates an empty store with a fresh node identity.
func NewMemStore() *MemStore {
	s := &MemStore{
		nodeID: uuid.New().String(),
		blobs:  make(map[Hash][]byte),
		peers:  make(map[string]*MemStore),
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewMemStore",
		"node_id":  s.nodeID,
	}).Debug("Created in-memory blob store")

	return s
}

// NodeID returns the store's node identifier.
func (s *MemStore) NodeID() string {
	return s.nodeID
}

// Connect registers peer so blobs published under its node ID become
// fetchable from this store.
func (s *MemStore) Connect(peer *MemStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[peer.nodeID] = peer
}

// HasBlob reports whether the store holds the given hash.
func (s *MemStore) HasBlob(h Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[h]
	return ok
}

// put stores data under its digest and returns the hash.
func (s *MemStore) put(data []byte) Hash {
	h := Hash(blake2b.Sum256(data))
	s.mu.Lock()
	s.blobs[h] = data
	s.mu.Unlock()
	return h
}

// get returns the blob bytes for h, locally or from a connected peer.
func (s *MemStore) get(nodeID string, h Hash) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.blobs[h]
	peer := s.peers[nodeID]
	s.mu.RUnlock()

	if ok {
		return data, nil
	}
	if nodeID == s.nodeID || peer == nil {
		return nil, fmt.Errorf("%w: node %s", ErrNoProvider, nodeID)
	}

	peer.mu.RLock()
	data, ok = peer.blobs[h]
	peer.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrBlobNotFound, h[:8])
	}
	return data, nil
}

// ImportFile reads the file at path into the store, streaming copy progress
// while reading and hash progress while computing the content address.
func (s *MemStore) ImportFile(ctx context.Context, path string) (UploadStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %q: %w", path, err)
	}

	return &memUploadStream{
		store: s,
		file:  f,
		size:  uint64(info.Size()),
	}, nil
}

// PublishManifest stores the serialized manifest as a blob and builds the
// ticket pointing at it.
func (s *MemStore) PublishManifest(ctx context.Context, m Manifest) (Ticket, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return Ticket{}, fmt.Errorf("failed to encode manifest: %w", err)
	}
	h := s.put(data)

	logrus.WithFields(logrus.Fields{
		"function":    "PublishManifest",
		"node_id":     s.nodeID,
		"entry_count": len(m.Entries),
		"total_bytes": m.TotalSize(),
	}).Info("Published share manifest")

	return Ticket{NodeID: s.nodeID, Hash: h}, nil
}

// ResolveManifest fetches the manifest blob a ticket points at and decodes it.
func (s *MemStore) ResolveManifest(ctx context.Context, t Ticket) (Manifest, error) {
	data, err := s.get(t.NodeID, t.Hash)
	if err != nil {
		return Manifest{}, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: manifest undecodable: %v", ErrBadTicket, err)
	}
	return m, nil
}

// FetchBlob transfers one blob from the ticket's provider into the local
// store, chunk by chunk.
func (s *MemStore) FetchBlob(ctx context.Context, t Ticket, h Hash) (DownloadStream, error) {
	return &memDownloadStream{store: s, nodeID: t.NodeID, hash: h}, nil
}

// ExportBlob writes a locally held blob to destPath, creating parent
// directories as needed.
func (s *MemStore) ExportBlob(ctx context.Context, h Hash, destPath string) error {
	s.mu.RLock()
	data, ok := s.blobs[h]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %x", ErrBlobNotFound, h[:8])
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %q: %w", destPath, err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", destPath, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "ExportBlob",
		"dest":     destPath,
		"bytes":    len(data),
	}).Debug("Exported blob to filesystem")

	return nil
}

// upload stream phases
const (
	uploadPhaseSize = iota
	uploadPhaseCopy
	uploadPhaseHash
	uploadPhaseDone
	uploadPhaseEOF
)

// memUploadStream produces the Size, CopyProgress, HashProgress, Done
// sequence lazily: each Next call does one chunk of work.
type memUploadStream struct {
	store *MemStore
	file  *os.File
	size  uint64

	phase  int
	data   []byte
	copied uint64
	hashed uint64
}

func (u *memUploadStream) Next(ctx context.Context) (UploadEvent, error) {
	if err := ctx.Err(); err != nil {
		u.cleanup()
		return UploadEvent{}, err
	}

	switch u.phase {
	case uploadPhaseSize:
		u.phase = uploadPhaseCopy
		return UploadEvent{Kind: UploadSize, Bytes: u.size}, nil

	case uploadPhaseCopy:
		buf := make([]byte, ChunkSize)
		n, err := u.file.Read(buf)
		if n > 0 {
			u.data = append(u.data, buf[:n]...)
			u.copied += uint64(n)
			return UploadEvent{Kind: UploadCopyProgress, Bytes: u.copied}, nil
		}
		if err == io.EOF {
			u.file.Close()
			u.file = nil
			u.phase = uploadPhaseHash
			return u.Next(ctx)
		}
		u.cleanup()
		return UploadEvent{}, fmt.Errorf("read failed: %w", err)

	case uploadPhaseHash:
		remaining := uint64(len(u.data)) - u.hashed
		if remaining > ChunkSize {
			remaining = ChunkSize
		}
		u.hashed += remaining
		if u.hashed < uint64(len(u.data)) {
			return UploadEvent{Kind: UploadHashProgress, Bytes: u.hashed}, nil
		}
		u.phase = uploadPhaseDone
		return UploadEvent{Kind: UploadHashProgress, Bytes: u.hashed}, nil

	case uploadPhaseDone:
		h := u.store.put(u.data)
		u.data = nil
		u.phase = uploadPhaseEOF
		return UploadEvent{Kind: UploadDone, Bytes: u.size, Hash: h}, nil

	default:
		return UploadEvent{}, io.EOF
	}
}

func (u *memUploadStream) cleanup() {
	if u.file != nil {
		u.file.Close()
		u.file = nil
	}
	u.phase = uploadPhaseEOF
}

// download stream phases
const (
	downloadPhaseProvider = iota
	downloadPhaseCopy
	downloadPhasePart
	downloadPhaseEOF
)

// memDownloadStream produces TryProvider, then chunked Progress, then
// PartComplete. The provider lookup happens on the first Next call so
// missing blobs surface as stream errors, matching a real transport where
// the dial fails after the stream is handed out.
type memDownloadStream struct {
	store  *MemStore
	nodeID string
	hash   Hash

	phase  int
	data   []byte
	copied uint64
}

func (d *memDownloadStream) Next(ctx context.Context) (DownloadEvent, error) {
	if err := ctx.Err(); err != nil {
		d.phase = downloadPhaseEOF
		return DownloadEvent{}, err
	}

	switch d.phase {
	case downloadPhaseProvider:
		d.phase = downloadPhaseCopy
		return DownloadEvent{Kind: DownloadTryProvider}, nil

	case downloadPhaseCopy:
		if d.data == nil {
			data, err := d.store.get(d.nodeID, d.hash)
			if err != nil {
				d.phase = downloadPhaseEOF
				return DownloadEvent{}, err
			}
			d.data = data
		}

		remaining := uint64(len(d.data)) - d.copied
		if remaining > ChunkSize {
			remaining = ChunkSize
		}
		d.copied += remaining
		if d.copied < uint64(len(d.data)) {
			return DownloadEvent{Kind: DownloadProgress, Bytes: d.copied}, nil
		}
		d.phase = downloadPhasePart
		return DownloadEvent{Kind: DownloadProgress, Bytes: d.copied}, nil

	case downloadPhasePart:
		d.store.mu.Lock()
		d.store.blobs[d.hash] = d.data
		d.store.mu.Unlock()
		d.phase = downloadPhaseEOF
		return DownloadEvent{Kind: DownloadPartComplete, Bytes: d.copied}, nil

	default:
		return DownloadEvent{}, io.EOF
	}
}
