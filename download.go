package ginseng

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/alDuncanson/ginseng/fsutil"
	"github.com/alDuncanson/ginseng/progress"
	"github.com/alDuncanson/ginseng/transport"
)

// DownloadFiles fetches the share a ticket points at and exports its files
// under the configured download directory. Session events stream through
// emitter, which is closed after the terminal event.
//
// A malformed ticket, an unresolvable manifest, or a destination directory
// that cannot be created all fail the session before workers spawn. After
// that, per-file failures only mark their own entries.
func (c *Core) DownloadFiles(ctx context.Context, ticketStr string, emitter *progress.Emitter) (*DownloadResult, error) {
	defer emitter.Close()

	ticket, err := transport.ParseTicket(ticketStr)
	if err != nil {
		c.emitPreflightFailure(emitter, progress.TransferTypeDownload, err)
		return nil, err
	}

	// The manifest resolve is the connect phase, but there is no entry list
	// to report against until it succeeds, so the started event waits for it.
	manifest, err := c.transport.ResolveManifest(ctx, ticket)
	if err != nil {
		err = fmt.Errorf("failed to resolve manifest: %w", err)
		c.emitPreflightFailure(emitter, progress.TransferTypeDownload, err)
		return nil, err
	}

	descriptors := make([]progress.FileDescriptor, len(manifest.Entries))
	for i, e := range manifest.Entries {
		descriptors[i] = progress.FileDescriptor{
			Name:         e.Name,
			RelativePath: e.RelativePath,
			Size:         e.Size,
		}
	}

	tracker, err := progress.NewTracker(progress.TransferTypeDownload, descriptors)
	if err != nil {
		c.emitPreflightFailure(emitter, progress.TransferTypeDownload, err)
		return nil, err
	}
	transferID := tracker.TransferID()
	emitter.Emit(progress.TransferStarted(tracker.Snapshot()))

	tracker.SetStage(progress.StageConnecting)
	emitter.Emit(progress.StageChanged(transferID, progress.StageConnecting, ""))

	root, err := c.downloadDir()
	if err != nil {
		err = fmt.Errorf("failed to resolve download directory: %w", err)
		tracker.SetError(err.Error())
		emitter.Emit(progress.TransferFailed(tracker.Snapshot(), err.Error()))
		return nil, err
	}
	// The share name is peer-supplied; only its base name may become a
	// directory component.
	destDir := filepath.Join(root, fsutil.FileName(manifest.Name))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		err = fmt.Errorf("failed to create download directory %q: %w", destDir, err)
		tracker.SetError(err.Error())
		emitter.Emit(progress.TransferFailed(tracker.Snapshot(), err.Error()))
		return nil, err
	}

	tracker.SetStage(progress.StageTransferring)
	emitter.Emit(progress.StageChanged(transferID, progress.StageTransferring, ""))

	ids := tracker.FileIDs()
	runWorkers(len(manifest.Entries), c.options.downloadLimit(), func(i int) {
		c.downloadWorker(ctx, tracker, emitter, ids[i], ticket, manifest.Entries[i], destDir)
	})

	tracker.SetStage(progress.StageFinalizing)
	emitter.Emit(progress.StageChanged(transferID, progress.StageFinalizing, ""))

	tracker.Complete()
	emitter.Emit(progress.TransferCompleted(tracker.Snapshot()))

	snap := tracker.Snapshot()
	logrus.WithFields(logrus.Fields{
		"function":        "DownloadFiles",
		"transfer_id":     transferID,
		"completed_files": snap.CompletedFiles,
		"failed_files":    snap.FailedFiles,
		"total_bytes":     fsutil.FormatBytes(snap.TotalBytes),
		"download_path":   destDir,
	}).Info("Download session completed")

	return &DownloadResult{
		Metadata: ShareMetadata{
			Name:       manifest.Name,
			FileCount:  uint64(len(manifest.Entries)),
			TotalBytes: manifest.TotalSize(),
		},
		DownloadPath: destDir,
	}, nil
}

// downloadWorker fetches one blob and exports it to its destination path.
// The export happens here, inside the worker, so an entry is only marked
// completed once its bytes are actually on disk.
func (c *Core) downloadWorker(ctx context.Context, tracker *progress.Tracker, emitter *progress.Emitter, fileID progress.FileID, ticket transport.Ticket, entry transport.ManifestEntry, destDir string) {
	if err := tracker.StartFile(fileID); err != nil {
		return
	}
	c.emitFileProgress(tracker, emitter, fileID)

	stream, err := c.transport.FetchBlob(ctx, ticket, entry.Hash)
	if err != nil {
		c.failFile(tracker, emitter, fileID, err)
		return
	}

	for {
		ev, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			c.failFile(tracker, emitter, fileID, err)
			return
		}

		switch ev.Kind {
		case transport.DownloadTryProvider:
			logrus.WithFields(logrus.Fields{
				"function": "downloadWorker",
				"file_id":  fileID,
				"name":     entry.Name,
			}).Debug("Contacting provider")
		case transport.DownloadProgress:
			tracker.UpdateFile(fileID, ev.Bytes)
			c.emitFileProgress(tracker, emitter, fileID)
			emitter.Emit(progress.TransferProgressed(tracker.Snapshot()))
		case transport.DownloadPartComplete:
			// Blob is held locally now; fall through to the export below
			// once the stream terminates.
		}
	}

	// The manifest came from a peer; its relative paths are untrusted.
	destPath, err := fsutil.SecurePath(destDir, entry.RelativePath)
	if err != nil {
		c.failFile(tracker, emitter, fileID, err)
		return
	}
	if err := c.transport.ExportBlob(ctx, entry.Hash, destPath); err != nil {
		c.failFile(tracker, emitter, fileID, fmt.Errorf("failed to export %q: %w", entry.Name, err))
		return
	}

	tracker.MarkTerminal(fileID, progress.FileStatusCompleted, "")
	c.emitFileProgress(tracker, emitter, fileID)
	emitter.Emit(progress.TransferProgressed(tracker.Snapshot()))
}
