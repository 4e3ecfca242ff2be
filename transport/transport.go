// Package transport defines the boundary to the peer-to-peer blob transfer
// layer: pull-based progress streams for imports and fetches, the ticket
// codec peers exchange, and an in-memory content-addressed store that
// implements the boundary for loopback use and tests.
package transport

import (
	"context"
	"errors"
)

// ErrBlobNotFound indicates a requested hash is not present in the store or
// reachable from any provider.
var ErrBlobNotFound = errors.New("blob not found")

// ErrNoProvider indicates no peer could supply the requested blob.
var ErrNoProvider = errors.New("no provider for blob")

// ErrTruncatedStream indicates a progress stream reached EOF before its
// terminal primitive.
var ErrTruncatedStream = errors.New("stream ended before completion")

// Hash is a 32-byte content address.
type Hash [32]byte

// UploadEventKind discriminates upload progress primitives.
type UploadEventKind uint8

const (
	// UploadSize announces the total byte size, emitted first.
	UploadSize UploadEventKind = iota
	// UploadCopyProgress carries cumulative bytes copied into the store.
	UploadCopyProgress
	// UploadHashProgress carries cumulative bytes hashed for the outboard.
	UploadHashProgress
	// UploadDone terminates the stream and carries the content hash.
	UploadDone
)

// UploadEvent is one progress primitive from an import. Bytes is the total
// size for UploadSize and a cumulative count for the progress kinds; Hash is
// set only on UploadDone.
type UploadEvent struct {
	Kind  UploadEventKind
	Bytes uint64
	Hash  Hash
}

// DownloadEventKind discriminates download progress primitives.
type DownloadEventKind uint8

const (
	// DownloadTryProvider signals an attempt to fetch from a provider.
	DownloadTryProvider DownloadEventKind = iota
	// DownloadProgress carries cumulative bytes received.
	DownloadProgress
	// DownloadPartComplete signals the blob finished transferring.
	DownloadPartComplete
)

// DownloadEvent is one progress primitive from a fetch.
type DownloadEvent struct {
	Kind  DownloadEventKind
	Bytes uint64
}

// UploadStream is a finite, non-restartable sequence of upload primitives.
// Next returns io.EOF after the final primitive; any other error terminates
// the stream early.
type UploadStream interface {
	Next(ctx context.Context) (UploadEvent, error)
}

// DownloadStream is a finite, non-restartable sequence of download
// primitives, with the same termination contract as UploadStream.
type DownloadStream interface {
	Next(ctx context.Context) (DownloadEvent, error)
}

// ManifestEntry names one file within a published share.
type ManifestEntry struct {
	Name         string `json:"name"`
	RelativePath string `json:"relativePath"`
	Size         uint64 `json:"size"`
	Hash         Hash   `json:"hash"`
}

// Manifest is the metadata a peer fetches before downloading blobs. Its
// serialized form is itself stored as a blob, and the ticket points at it.
type Manifest struct {
	Name    string          `json:"name"`
	Entries []ManifestEntry `json:"entries"`
}

// TotalSize sums the sizes of all manifest entries.
func (m *Manifest) TotalSize() uint64 {
	var total uint64
	for _, e := range m.Entries {
		total += e.Size
	}
	return total
}

// Transport is the external collaborator performing blob storage and the
// wire protocol. The orchestrator consumes its progress streams without
// knowledge of the underlying concurrency model.
type Transport interface {
	// NodeID returns the local node identifier embedded in tickets.
	NodeID() string

	// ImportFile adds the file at path to the local store, streaming
	// size, copy, and hash progress before the terminal Done primitive.
	ImportFile(ctx context.Context, path string) (UploadStream, error)

	// PublishManifest stores the manifest and returns the ticket a peer
	// needs to fetch the share.
	PublishManifest(ctx context.Context, m Manifest) (Ticket, error)

	// ResolveManifest fetches and decodes the manifest a ticket points at.
	ResolveManifest(ctx context.Context, t Ticket) (Manifest, error)

	// FetchBlob transfers one blob from the ticket's provider, streaming
	// byte progress.
	FetchBlob(ctx context.Context, t Ticket, h Hash) (DownloadStream, error)

	// ExportBlob writes a locally held blob to destPath.
	ExportBlob(ctx context.Context, h Hash, destPath string) error
}
