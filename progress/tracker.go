package progress

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrEmptyFileList indicates a tracker was initialized with no files.
var ErrEmptyFileList = errors.New("no files provided")

// ErrUnknownFile indicates an operation referenced a file ID that is not
// part of the transfer.
var ErrUnknownFile = errors.New("unknown file id")

// ErrNotTerminal indicates MarkTerminal was called with a non-terminal status.
var ErrNotTerminal = errors.New("status is not terminal")

// ErrCancelled is reserved for transfer cancellation, which is not currently
// supported.
var ErrCancelled = errors.New("transfer cancelled")

// Tracker holds the session and per-file state of one transfer behind a
// concurrency-safe boundary. It is the only component permitted to mutate
// that state; workers and consumers interact with it exclusively through its
// methods and receive value snapshots.
//
// A single mutex guards the whole session. Updates only mutate in-memory
// counters and never block on I/O, so hold times stay short even with many
// workers.
type Tracker struct {
	mu       sync.RWMutex
	transfer Transfer
	index    map[FileID]int
	rates    map[FileID]*rateMeter
	session  rateMeter
	clock    TimeProvider
}

// NewTracker builds the tracker for one transfer session. Every descriptor
// becomes a pending FileProgress entry with its byte total fixed; order is
// preserved. It fails if the descriptor list is empty.
func NewTracker(transferType TransferType, descriptors []FileDescriptor) (*Tracker, error) {
	if len(descriptors) == 0 {
		return nil, ErrEmptyFileList
	}

	transfer := NewTransfer(uuid.New().String(), transferType)
	index := make(map[FileID]int, len(descriptors))
	rates := make(map[FileID]*rateMeter, len(descriptors))

	for i, d := range descriptors {
		entry := NewFileProgress(d.Name, d.RelativePath, d.Size)
		transfer.Files = append(transfer.Files, entry)
		transfer.TotalBytes += d.Size
		index[entry.FileID] = i
		rates[entry.FileID] = &rateMeter{}
	}
	transfer.TotalFiles = uint64(len(descriptors))

	logrus.WithFields(logrus.Fields{
		"function":      "NewTracker",
		"transfer_id":   transfer.TransferID,
		"transfer_type": transferType,
		"total_files":   transfer.TotalFiles,
		"total_bytes":   transfer.TotalBytes,
	}).Info("Initialized transfer session")

	return &Tracker{
		transfer: transfer,
		index:    index,
		rates:    rates,
		clock:    DefaultTimeProvider{},
	}, nil
}

// SetTimeProvider sets a custom time provider for deterministic testing.
func (tr *Tracker) SetTimeProvider(tp TimeProvider) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.clock = tp
}

// TransferID returns the session identity.
func (tr *Tracker) TransferID() TransferID {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.transfer.TransferID
}

// FileIDs returns the file IDs in descriptor order, letting the caller map
// each worker to its entry.
func (tr *Tracker) FileIDs() []FileID {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	ids := make([]FileID, len(tr.transfer.Files))
	for i := range tr.transfer.Files {
		ids[i] = tr.transfer.Files[i].FileID
	}
	return ids
}

// Snapshot returns an immutable deep copy of the session, atomic with
// respect to concurrent updates: aggregate counters and file entries are
// always mutually consistent within one snapshot.
func (tr *Tracker) Snapshot() Transfer {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.transfer.clone()
}

// SetStage advances the session stage. Terminal stages never regress;
// attempts to leave one are ignored.
func (tr *Tracker) SetStage(stage TransferStage) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.transfer.Stage.IsTerminal() {
		logrus.WithFields(logrus.Fields{
			"function":    "SetStage",
			"transfer_id": tr.transfer.TransferID,
			"current":     tr.transfer.Stage,
			"requested":   stage,
		}).Warn("Ignoring stage change on terminal session")
		return
	}
	tr.transfer.Stage = stage
}

// StartFile marks the entry as transferring. Calling it on a terminal entry
// is an error; calling it twice is harmless.
func (tr *Tracker) StartFile(fileID FileID) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	entry, err := tr.entry(fileID)
	if err != nil {
		return err
	}
	if entry.Status.IsTerminal() {
		return fmt.Errorf("file %s already terminal: %w", fileID, ErrNotTerminal)
	}
	entry.Status = FileStatusTransferring
	return nil
}

// UpdateFile sets the entry's cumulative transferred byte count and
// recomputes the session aggregates, rates, and ETA. Byte counts are
// monotonic within an entry's lifecycle: a value lower than the recorded one
// is ignored, as is any update to a frozen (terminal) entry. Counts are
// clamped to the entry's fixed total.
func (tr *Tracker) UpdateFile(fileID FileID, transferredBytes uint64) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	entry, err := tr.entry(fileID)
	if err != nil {
		return err
	}
	if entry.Status.IsTerminal() {
		return nil
	}
	if transferredBytes < entry.TransferredBytes {
		logrus.WithFields(logrus.Fields{
			"function":    "UpdateFile",
			"transfer_id": tr.transfer.TransferID,
			"file_id":     fileID,
			"recorded":    entry.TransferredBytes,
			"proposed":    transferredBytes,
		}).Debug("Ignoring non-monotonic progress update")
		return nil
	}
	if transferredBytes > entry.TotalBytes {
		transferredBytes = entry.TotalBytes
	}

	entry.TransferredBytes = transferredBytes

	now := tr.clock.Now()
	meter := tr.rates[fileID]
	meter.observe(transferredBytes, now)
	entry.TransferRate = meter.rate()

	tr.transfer.recalculateTotals()
	tr.updateSessionRate(now)
	return nil
}

// MarkTerminal transitions the entry to a terminal status, freezing its byte
// count, and updates the session counters. Completed entries snap to their
// full byte total. A second terminal transition for the same entry is
// ignored so the first outcome wins.
func (tr *Tracker) MarkTerminal(fileID FileID, status FileStatus, errMsg string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("cannot mark %s terminal with status %q: %w", fileID, status, ErrNotTerminal)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	entry, err := tr.entry(fileID)
	if err != nil {
		return err
	}
	if entry.Status.IsTerminal() {
		return nil
	}

	entry.Status = status
	entry.Error = errMsg
	if status == FileStatusCompleted {
		entry.TransferredBytes = entry.TotalBytes
	}

	logrus.WithFields(logrus.Fields{
		"function":    "MarkTerminal",
		"transfer_id": tr.transfer.TransferID,
		"file_id":     fileID,
		"file_name":   entry.Name,
		"status":      status,
		"error":       errMsg,
	}).Info("File reached terminal status")

	tr.transfer.recalculateTotals()
	tr.updateSessionRate(tr.clock.Now())
	return nil
}

// File returns a copy of one entry's current state.
func (tr *Tracker) File(fileID FileID) (FileProgress, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	i, ok := tr.index[fileID]
	if !ok {
		return FileProgress{}, fmt.Errorf("%w: %s", ErrUnknownFile, fileID)
	}
	return tr.transfer.Files[i], nil
}

// SetError marks the whole session failed with an error message. Used for
// pre-flight and whole-batch faults only; per-file failures go through
// MarkTerminal and never fail the session.
func (tr *Tracker) SetError(errMsg string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.transfer.Stage.IsTerminal() {
		return
	}
	tr.transfer.Error = errMsg
	tr.transfer.Stage = StageFailed

	logrus.WithFields(logrus.Fields{
		"function":    "SetError",
		"transfer_id": tr.transfer.TransferID,
		"error":       errMsg,
	}).Error("Transfer session failed")
}

// Complete marks the session completed. The session completes even when
// individual files failed; failedFiles > 0 inside a completed session is
// valid and surfaced to the consumer.
func (tr *Tracker) Complete() {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.transfer.Stage.IsTerminal() {
		return
	}
	tr.transfer.Stage = StageCompleted

	logrus.WithFields(logrus.Fields{
		"function":        "Complete",
		"transfer_id":     tr.transfer.TransferID,
		"completed_files": tr.transfer.CompletedFiles,
		"failed_files":    tr.transfer.FailedFiles,
		"total_bytes":     tr.transfer.TotalBytes,
	}).Info("Transfer session completed")
}

// entry returns a mutable pointer to the entry; callers hold tr.mu.
func (tr *Tracker) entry(fileID FileID) (*FileProgress, error) {
	i, ok := tr.index[fileID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFile, fileID)
	}
	return &tr.transfer.Files[i], nil
}

// updateSessionRate refreshes the aggregate rate and ETA; callers hold tr.mu.
func (tr *Tracker) updateSessionRate(now time.Time) {
	tr.session.observe(tr.transfer.TransferredBytes, now)
	tr.transfer.TransferRate = tr.session.rate()

	if tr.transfer.TransferRate > 0 {
		remaining := tr.transfer.TotalBytes - tr.transfer.TransferredBytes
		tr.transfer.EtaSeconds = remaining / tr.transfer.TransferRate
	} else {
		tr.transfer.EtaSeconds = 0
	}
}
