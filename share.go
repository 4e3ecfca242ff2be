package ginseng

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alDuncanson/ginseng/fsutil"
	"github.com/alDuncanson/ginseng/progress"
	"github.com/alDuncanson/ginseng/transport"
)

// ShareFiles imports the given files and directories into the blob store
// and returns the ticket a peer needs to fetch them. Session events stream
// through emitter, which the session owns from this point: it is closed
// once the terminal event has been emitted.
//
// Pre-flight faults (missing path, empty list) fail the session before any
// worker spawns. Once workers are running, individual file failures are
// isolated to their entries and the session still completes.
func (c *Core) ShareFiles(ctx context.Context, paths []string, emitter *progress.Emitter) (string, error) {
	defer emitter.Close()

	files, err := fsutil.EnumerateFiles(paths)
	if err != nil {
		c.emitPreflightFailure(emitter, progress.TransferTypeUpload, err)
		return "", err
	}

	descriptors := make([]progress.FileDescriptor, len(files))
	for i, f := range files {
		descriptors[i] = progress.FileDescriptor{
			Name:         f.Name,
			RelativePath: f.RelativePath,
			Size:         f.Size,
		}
	}

	tracker, err := progress.NewTracker(progress.TransferTypeUpload, descriptors)
	if err != nil {
		c.emitPreflightFailure(emitter, progress.TransferTypeUpload, err)
		return "", err
	}
	transferID := tracker.TransferID()
	emitter.Emit(progress.TransferStarted(tracker.Snapshot()))

	tracker.SetStage(progress.StageConnecting)
	emitter.Emit(progress.StageChanged(transferID, progress.StageConnecting, ""))

	tracker.SetStage(progress.StageTransferring)
	emitter.Emit(progress.StageChanged(transferID, progress.StageTransferring, ""))

	// Each worker owns exactly one file end-to-end and records its content
	// hash on success. hashes is indexed by descriptor position; the mutex
	// only guards the has-completed bookkeeping, never any I/O.
	ids := tracker.FileIDs()
	hashes := make([]transport.Hash, len(files))
	completed := make([]bool, len(files))
	var resultMu sync.Mutex

	runWorkers(len(files), c.options.uploadLimit(), func(i int) {
		hash, err := c.uploadWorker(ctx, tracker, emitter, ids[i], files[i].Path)
		if err != nil {
			return
		}
		resultMu.Lock()
		hashes[i] = hash
		completed[i] = true
		resultMu.Unlock()
	})

	tracker.SetStage(progress.StageFinalizing)
	emitter.Emit(progress.StageChanged(transferID, progress.StageFinalizing, ""))

	manifest := transport.Manifest{Name: shareName(paths, files)}
	for i, f := range files {
		if !completed[i] {
			continue
		}
		manifest.Entries = append(manifest.Entries, transport.ManifestEntry{
			Name:         f.Name,
			RelativePath: f.RelativePath,
			Size:         f.Size,
			Hash:         hashes[i],
		})
	}

	ticket, err := c.transport.PublishManifest(ctx, manifest)
	if err != nil {
		err = fmt.Errorf("failed to publish manifest: %w", err)
		tracker.SetError(err.Error())
		emitter.Emit(progress.TransferFailed(tracker.Snapshot(), err.Error()))
		return "", err
	}

	tracker.Complete()
	emitter.Emit(progress.TransferCompleted(tracker.Snapshot()))

	snap := tracker.Snapshot()
	logrus.WithFields(logrus.Fields{
		"function":        "ShareFiles",
		"transfer_id":     transferID,
		"completed_files": snap.CompletedFiles,
		"failed_files":    snap.FailedFiles,
		"total_bytes":     fsutil.FormatBytes(snap.TotalBytes),
	}).Info("Share session completed")

	return ticket.String(), nil
}

// uploadWorker drives one file through the import stream, feeding byte
// deltas into the tracker. Errors freeze the entry as failed and never
// propagate to sibling workers.
func (c *Core) uploadWorker(ctx context.Context, tracker *progress.Tracker, emitter *progress.Emitter, fileID progress.FileID, path string) (transport.Hash, error) {
	if err := tracker.StartFile(fileID); err != nil {
		return transport.Hash{}, err
	}
	c.emitFileProgress(tracker, emitter, fileID)

	stream, err := c.transport.ImportFile(ctx, path)
	if err != nil {
		return transport.Hash{}, c.failFile(tracker, emitter, fileID, err)
	}

	var hash transport.Hash
	done := false
	for {
		ev, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return transport.Hash{}, c.failFile(tracker, emitter, fileID, err)
		}

		switch ev.Kind {
		case transport.UploadSize:
			logrus.WithFields(logrus.Fields{
				"function": "uploadWorker",
				"file_id":  fileID,
				"size":     ev.Bytes,
			}).Debug("Import size announced")
		case transport.UploadCopyProgress:
			tracker.UpdateFile(fileID, ev.Bytes)
			c.emitFileProgress(tracker, emitter, fileID)
			emitter.Emit(progress.TransferProgressed(tracker.Snapshot()))
		case transport.UploadHashProgress:
			// Hashing does not move transferred bytes; the copy phase
			// already accounted for them.
			logrus.WithFields(logrus.Fields{
				"function": "uploadWorker",
				"file_id":  fileID,
				"hashed":   ev.Bytes,
			}).Debug("Outboard hash progress")
		case transport.UploadDone:
			hash = ev.Hash
			done = true
		}
	}

	// An import that never reached Done produced no usable hash; treating
	// it as completed would publish a zero hash in the manifest.
	if !done {
		return transport.Hash{}, c.failFile(tracker, emitter, fileID,
			fmt.Errorf("importing %q: %w", filepath.Base(path), transport.ErrTruncatedStream))
	}

	tracker.MarkTerminal(fileID, progress.FileStatusCompleted, "")
	c.emitFileProgress(tracker, emitter, fileID)
	emitter.Emit(progress.TransferProgressed(tracker.Snapshot()))

	return hash, nil
}

// failFile freezes the entry as failed with the captured error and emits
// its terminal transition.
func (c *Core) failFile(tracker *progress.Tracker, emitter *progress.Emitter, fileID progress.FileID, err error) error {
	logrus.WithFields(logrus.Fields{
		"function":    "failFile",
		"transfer_id": tracker.TransferID(),
		"file_id":     fileID,
		"error":       err.Error(),
	}).Warn("File transfer failed")

	tracker.MarkTerminal(fileID, progress.FileStatusFailed, err.Error())
	c.emitFileProgress(tracker, emitter, fileID)
	emitter.Emit(progress.TransferProgressed(tracker.Snapshot()))
	return err
}

// emitFileProgress emits the entry's current state; terminal transitions
// pass the throttle unconditionally.
func (c *Core) emitFileProgress(tracker *progress.Tracker, emitter *progress.Emitter, fileID progress.FileID) {
	f, err := tracker.File(fileID)
	if err != nil {
		return
	}
	emitter.Emit(progress.FileProgressed(tracker.TransferID(), f))
}

// emitPreflightFailure reports a session that died before any file entry
// was created: a bare failed transfer with an empty file list.
func (c *Core) emitPreflightFailure(emitter *progress.Emitter, transferType progress.TransferType, err error) {
	t := progress.NewTransfer(uuid.New().String(), transferType)
	t.Stage = progress.StageFailed
	t.Error = err.Error()
	emitter.Emit(progress.TransferFailed(t, err.Error()))

	logrus.WithFields(logrus.Fields{
		"function":      "emitPreflightFailure",
		"transfer_type": transferType,
		"error":         err.Error(),
	}).Error("Session failed before any worker spawned")
}

// shareName derives the human-readable share name: a single path keeps its
// own name, anything else is described by file count.
func shareName(paths []string, files []fsutil.FileInfo) string {
	if len(paths) == 1 {
		return fsutil.FileName(paths[0])
	}
	return fmt.Sprintf("%d files", len(files))
}
