package ginseng

import (
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alDuncanson/ginseng/fsutil"
	"github.com/alDuncanson/ginseng/progress"
	"github.com/alDuncanson/ginseng/transport"
)

// maxUploadConcurrency caps the upload worker pool. Hashing scales with
// cores, but past eight workers the gains disappear into I/O contention.
const maxUploadConcurrency = 8

// defaultDownloadConcurrency bounds download fan-out. Network transfers are
// limited by peer bandwidth and connection overhead, not cores, so the
// budget is a fixed small constant.
const defaultDownloadConcurrency = 6

// Options contains configuration for creating a Core.
type Options struct {
	// UploadConcurrency bounds concurrent upload workers.
	// Zero selects min(NumCPU, 8).
	UploadConcurrency int
	// DownloadConcurrency bounds concurrent download workers.
	// Zero selects 6.
	DownloadConcurrency int
	// EmitInterval is the minimum spacing between throttled progress
	// events. Zero selects 100 ms.
	EmitInterval time.Duration
	// EventBuffer is the event channel capacity. Zero selects 128.
	EventBuffer int
	// DownloadDir overrides where received files are written. Empty
	// selects the platform downloads directory.
	DownloadDir string
}

// NewOptions creates a new default Options.
func NewOptions() *Options {
	return &Options{
		EmitInterval: progress.DefaultEmitInterval,
	}
}

// uploadLimit resolves the effective upload concurrency.
func (o *Options) uploadLimit() int {
	if o.UploadConcurrency > 0 {
		return o.UploadConcurrency
	}
	n := runtime.NumCPU()
	if n > maxUploadConcurrency {
		n = maxUploadConcurrency
	}
	if n < 1 {
		n = 1
	}
	return n
}

// downloadLimit resolves the effective download concurrency.
func (o *Options) downloadLimit() int {
	if o.DownloadConcurrency > 0 {
		return o.DownloadConcurrency
	}
	return defaultDownloadConcurrency
}

// ShareMetadata summarizes a resolved share for the consumer.
type ShareMetadata struct {
	Name       string `json:"name"`
	FileCount  uint64 `json:"fileCount"`
	TotalBytes uint64 `json:"totalBytes"`
}

// DownloadResult is returned by DownloadFiles on success.
type DownloadResult struct {
	Metadata     ShareMetadata `json:"metadata"`
	DownloadPath string        `json:"downloadPath"`
}

// Core is the transfer-orchestration engine. One Core serves any number of
// sequential or concurrent sessions; each session gets its own tracker and
// emitter, so sessions never share mutable state.
type Core struct {
	options   *Options
	transport transport.Transport
}

// New creates a Core backed by an in-memory loopback blob store.
func New(options *Options) (*Core, error) {
	return NewWithTransport(options, transport.NewMemStore())
}

// NewWithTransport creates a Core over a caller-supplied transport.
func NewWithTransport(options *Options, t transport.Transport) (*Core, error) {
	if options == nil {
		options = NewOptions()
	}

	logrus.WithFields(logrus.Fields{
		"function":             "NewWithTransport",
		"node_id":              t.NodeID(),
		"upload_concurrency":   options.uploadLimit(),
		"download_concurrency": options.downloadLimit(),
	}).Info("Created ginseng core")

	return &Core{options: options, transport: t}, nil
}

// NewEmitter creates an event emitter configured with the core's throttle
// interval and buffer size. Each session needs its own.
func (c *Core) NewEmitter() *progress.Emitter {
	return progress.NewEmitter(c.options.EmitInterval, c.options.EventBuffer)
}

// NodeInfo returns the local node identifier.
func (c *Core) NodeInfo() string {
	return c.transport.NodeID()
}

// downloadDir resolves the destination root for received files.
func (c *Core) downloadDir() (string, error) {
	if c.options.DownloadDir != "" {
		return c.options.DownloadDir, nil
	}
	return fsutil.DownloadsDir()
}
