package ginseng

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alDuncanson/ginseng/progress"
	"github.com/alDuncanson/ginseng/transport"
)

// fakeTransport wraps the in-memory store with per-file error injection so
// tests can exercise the failure-isolation paths deterministically.
type fakeTransport struct {
	*transport.MemStore

	mu        sync.Mutex
	importErr map[string]error // keyed by file base name
	exportErr map[string]error // keyed by destination base name
	fetchErr  map[string]error // keyed by manifest entry name
	truncate  map[string]bool  // import streams that EOF before Done
	manifest  transport.Manifest
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		MemStore:  transport.NewMemStore(),
		importErr: make(map[string]error),
		exportErr: make(map[string]error),
		fetchErr:  make(map[string]error),
		truncate:  make(map[string]bool),
	}
}

func (f *fakeTransport) ImportFile(ctx context.Context, path string) (transport.UploadStream, error) {
	f.mu.Lock()
	err := f.importErr[filepath.Base(path)]
	truncate := f.truncate[filepath.Base(path)]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	stream, err := f.MemStore.ImportFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if truncate {
		return &truncatedUploadStream{inner: stream}, nil
	}
	return stream, nil
}

// truncatedUploadStream replays an import stream but ends it right where
// the Done primitive would have appeared.
type truncatedUploadStream struct {
	inner transport.UploadStream
}

func (s *truncatedUploadStream) Next(ctx context.Context) (transport.UploadEvent, error) {
	ev, err := s.inner.Next(ctx)
	if err != nil {
		return ev, err
	}
	if ev.Kind == transport.UploadDone {
		return transport.UploadEvent{}, io.EOF
	}
	return ev, nil
}

func (f *fakeTransport) PublishManifest(ctx context.Context, m transport.Manifest) (transport.Ticket, error) {
	f.mu.Lock()
	f.manifest = m
	f.mu.Unlock()
	return f.MemStore.PublishManifest(ctx, m)
}

func (f *fakeTransport) FetchBlob(ctx context.Context, t transport.Ticket, h transport.Hash) (transport.DownloadStream, error) {
	f.mu.Lock()
	var err error
	for _, e := range f.manifest.Entries {
		if e.Hash == h {
			err = f.fetchErr[e.Name]
			break
		}
	}
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.MemStore.FetchBlob(ctx, t, h)
}

func (f *fakeTransport) ExportBlob(ctx context.Context, h transport.Hash, destPath string) error {
	f.mu.Lock()
	err := f.exportErr[filepath.Base(destPath)]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemStore.ExportBlob(ctx, h, destPath)
}

// writeTestFile creates a file of the given size with repeating content
// derived from its name, so downloads can be verified byte for byte.
func writeTestFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	data := bytes.Repeat([]byte(name+"\n"), size/(len(name)+1)+1)[:size]
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// collectEvents drains a closed emitter into a slice. The orchestrations
// close their emitter after the terminal event, so ranging terminates.
func collectEvents(e *progress.Emitter) []progress.Event {
	var events []progress.Event
	for ev := range e.Events() {
		events = append(events, ev)
	}
	return events
}

// lastTransferEvent returns the final event carrying a full transfer
// snapshot, which for a well-behaved session is the terminal event.
func lastTransferEvent(t *testing.T, events []progress.Event) progress.Event {
	t.Helper()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Transfer != nil {
			return events[i]
		}
	}
	t.Fatal("no event with a transfer snapshot was emitted")
	return progress.Event{}
}
