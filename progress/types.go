package progress

import (
	"time"

	"github.com/google/uuid"
)

// TransferID uniquely identifies a transfer session.
type TransferID = string

// FileID uniquely identifies a file within a transfer.
type FileID = string

// TransferType is the direction of a transfer.
type TransferType string

const (
	// TransferTypeUpload indicates files are being shared.
	TransferTypeUpload TransferType = "upload"
	// TransferTypeDownload indicates files are being received.
	TransferTypeDownload TransferType = "download"
)

// TransferStage is the coarse lifecycle phase of a transfer session.
// Terminal stages are entered exactly once; no stage regresses.
type TransferStage string

const (
	// StageInitializing covers input enumeration and validation.
	StageInitializing TransferStage = "initializing"
	// StageConnecting covers peer discovery and handshake.
	StageConnecting TransferStage = "connecting"
	// StageTransferring covers active byte transfer by workers.
	StageTransferring TransferStage = "transferring"
	// StageFinalizing covers post-transfer steps such as writing manifests.
	StageFinalizing TransferStage = "finalizing"
	// StageCompleted is the successful terminal stage.
	StageCompleted TransferStage = "completed"
	// StageFailed is the failure terminal stage.
	StageFailed TransferStage = "failed"
	// StageCancelled is reserved; cancellation is not currently supported.
	StageCancelled TransferStage = "cancelled"
)

// IsTerminal reports whether the stage is a terminal stage.
func (s TransferStage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed || s == StageCancelled
}

// FileStatus is the lifecycle status of one file within a transfer.
type FileStatus string

const (
	// FileStatusPending indicates the file is queued but not yet started.
	FileStatusPending FileStatus = "pending"
	// FileStatusTransferring indicates the file is actively transferring.
	FileStatusTransferring FileStatus = "transferring"
	// FileStatusCompleted indicates the file transferred successfully.
	FileStatusCompleted FileStatus = "completed"
	// FileStatusFailed indicates the file transfer failed.
	FileStatusFailed FileStatus = "failed"
	// FileStatusSkipped indicates the file was skipped, e.g. already present.
	FileStatusSkipped FileStatus = "skipped"
)

// IsTerminal reports whether the status is terminal. Terminal entries are
// frozen: neither their byte count nor their status changes afterwards.
func (s FileStatus) IsTerminal() bool {
	return s == FileStatusCompleted || s == FileStatusFailed || s == FileStatusSkipped
}

// FileDescriptor names one file to be transferred, with its size obtained
// eagerly before the session starts.
type FileDescriptor struct {
	Name         string
	RelativePath string
	Size         uint64
}

// FileProgress is the progress record for one file within a transfer.
type FileProgress struct {
	FileID           FileID     `json:"fileId"`
	Name             string     `json:"name"`
	RelativePath     string     `json:"relativePath"`
	TotalBytes       uint64     `json:"totalBytes"`
	TransferredBytes uint64     `json:"transferredBytes"`
	Status           FileStatus `json:"status"`
	TransferRate     uint64     `json:"transferRate,omitempty"`
	Error            string     `json:"error,omitempty"`
}

// NewFileProgress creates a pending progress record for one file.
func NewFileProgress(name, relativePath string, totalBytes uint64) FileProgress {
	return FileProgress{
		FileID:       uuid.New().String(),
		Name:         name,
		RelativePath: relativePath,
		TotalBytes:   totalBytes,
		Status:       FileStatusPending,
	}
}

// IsComplete reports whether the file has reached a terminal status.
func (f *FileProgress) IsComplete() bool {
	return f.Status.IsTerminal()
}

// Transfer is the aggregate progress view of one transfer session. It is
// always handed out as a value copy; consumers never hold a reference into
// tracker-owned state.
type Transfer struct {
	TransferID       TransferID     `json:"transferId"`
	TransferType     TransferType   `json:"transferType"`
	Stage            TransferStage  `json:"stage"`
	TotalFiles       uint64         `json:"totalFiles"`
	CompletedFiles   uint64         `json:"completedFiles"`
	FailedFiles      uint64         `json:"failedFiles"`
	TotalBytes       uint64         `json:"totalBytes"`
	TransferredBytes uint64         `json:"transferredBytes"`
	TransferRate     uint64         `json:"transferRate,omitempty"`
	StartTime        int64          `json:"startTime"`
	EtaSeconds       uint64         `json:"etaSeconds,omitempty"`
	Files            []FileProgress `json:"files"`
	Error            string         `json:"error,omitempty"`
}

// NewTransfer creates an empty transfer session in the initializing stage.
func NewTransfer(id TransferID, transferType TransferType) Transfer {
	return Transfer{
		TransferID:   id,
		TransferType: transferType,
		Stage:        StageInitializing,
		StartTime:    time.Now().Unix(),
		Files:        []FileProgress{},
	}
}

// recalculateTotals rederives the aggregate counters from the file entries.
// Aggregates are never tracked independently, so they cannot drift from the
// per-file state. Skipped entries count as completed for session accounting.
func (t *Transfer) recalculateTotals() {
	var transferred, completed, failed uint64
	for i := range t.Files {
		transferred += t.Files[i].TransferredBytes
		switch t.Files[i].Status {
		case FileStatusCompleted, FileStatusSkipped:
			completed++
		case FileStatusFailed:
			failed++
		}
	}
	t.TransferredBytes = transferred
	t.CompletedFiles = completed
	t.FailedFiles = failed
}

// clone returns a deep copy of the transfer, safe to hand to consumers.
func (t *Transfer) clone() Transfer {
	out := *t
	out.Files = make([]FileProgress, len(t.Files))
	copy(out.Files, t.Files)
	return out
}
