package progress

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestNewTrackerEmptyList(t *testing.T) {
	_, err := NewTracker(TransferTypeUpload, nil)
	if !errors.Is(err, ErrEmptyFileList) {
		t.Errorf("Expected ErrEmptyFileList, got %v", err)
	}
}

func TestNewTrackerInitialState(t *testing.T) {
	tracker, err := NewTracker(TransferTypeUpload, testDescriptors())
	if err != nil {
		t.Fatalf("NewTracker failed: %v", err)
	}

	snap := tracker.Snapshot()
	if snap.TransferID == "" {
		t.Error("Expected non-empty transfer ID")
	}
	if snap.TransferType != TransferTypeUpload {
		t.Errorf("Expected upload type, got %v", snap.TransferType)
	}
	if snap.Stage != StageInitializing {
		t.Errorf("Expected initializing stage, got %v", snap.Stage)
	}
	if snap.TotalFiles != 3 {
		t.Errorf("Expected 3 total files, got %d", snap.TotalFiles)
	}
	if snap.TotalBytes != 35*1024*1024 {
		t.Errorf("Expected 35 MB total, got %d", snap.TotalBytes)
	}
	if snap.TransferredBytes != 0 {
		t.Errorf("Expected 0 transferred bytes, got %d", snap.TransferredBytes)
	}
	for _, f := range snap.Files {
		if f.Status != FileStatusPending {
			t.Errorf("Expected pending status for %s, got %v", f.Name, f.Status)
		}
		if f.FileID == "" {
			t.Error("Expected non-empty file ID")
		}
	}
}

func TestTotalBytesImmutableAfterInitialize(t *testing.T) {
	tracker, _ := NewTracker(TransferTypeDownload, testDescriptors())
	ids := tracker.FileIDs()
	want := tracker.Snapshot().TotalBytes

	tracker.StartFile(ids[0])
	tracker.UpdateFile(ids[0], 1024)
	tracker.MarkTerminal(ids[0], FileStatusCompleted, "")
	tracker.MarkTerminal(ids[1], FileStatusFailed, "peer unreachable")
	tracker.Complete()

	if got := tracker.Snapshot().TotalBytes; got != want {
		t.Errorf("TotalBytes changed from %d to %d", want, got)
	}
}

func TestUpdateFileMonotonic(t *testing.T) {
	tracker, _ := NewTracker(TransferTypeUpload, testDescriptors())
	ids := tracker.FileIDs()

	if err := tracker.StartFile(ids[0]); err != nil {
		t.Fatalf("StartFile failed: %v", err)
	}
	if err := tracker.UpdateFile(ids[0], 5000); err != nil {
		t.Fatalf("UpdateFile failed: %v", err)
	}

	// A lower value must be ignored, not applied.
	if err := tracker.UpdateFile(ids[0], 100); err != nil {
		t.Fatalf("UpdateFile failed: %v", err)
	}

	f, err := tracker.File(ids[0])
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if f.TransferredBytes != 5000 {
		t.Errorf("Expected 5000 transferred bytes, got %d", f.TransferredBytes)
	}
}

func TestUpdateFileClampedToTotal(t *testing.T) {
	tracker, _ := NewTracker(TransferTypeUpload, testDescriptors())
	ids := tracker.FileIDs()

	tracker.StartFile(ids[2])
	tracker.UpdateFile(ids[2], 1<<40) // far beyond the 5 MB total

	f, _ := tracker.File(ids[2])
	if f.TransferredBytes != f.TotalBytes {
		t.Errorf("Expected clamp to %d, got %d", f.TotalBytes, f.TransferredBytes)
	}
}

func TestUpdateFileUnknownID(t *testing.T) {
	tracker, _ := NewTracker(TransferTypeUpload, testDescriptors())
	err := tracker.UpdateFile("nope", 1)
	if !errors.Is(err, ErrUnknownFile) {
		t.Errorf("Expected ErrUnknownFile, got %v", err)
	}
}

func TestMarkTerminalFreezesEntry(t *testing.T) {
	tracker, _ := NewTracker(TransferTypeDownload, testDescriptors())
	ids := tracker.FileIDs()

	tracker.StartFile(ids[1])
	tracker.UpdateFile(ids[1], 4096)
	if err := tracker.MarkTerminal(ids[1], FileStatusFailed, "stream severed"); err != nil {
		t.Fatalf("MarkTerminal failed: %v", err)
	}

	// Frozen: neither bytes nor status may change.
	tracker.UpdateFile(ids[1], 999999)
	if err := tracker.MarkTerminal(ids[1], FileStatusCompleted, ""); err != nil {
		t.Fatalf("Second MarkTerminal should be ignored, got error: %v", err)
	}

	f, _ := tracker.File(ids[1])
	if f.Status != FileStatusFailed {
		t.Errorf("Expected failed status to stick, got %v", f.Status)
	}
	if f.TransferredBytes != 4096 {
		t.Errorf("Expected frozen byte count 4096, got %d", f.TransferredBytes)
	}
	if f.Error != "stream severed" {
		t.Errorf("Expected error message preserved, got %q", f.Error)
	}
}

func TestMarkTerminalRejectsNonTerminalStatus(t *testing.T) {
	tracker, _ := NewTracker(TransferTypeUpload, testDescriptors())
	ids := tracker.FileIDs()

	err := tracker.MarkTerminal(ids[0], FileStatusTransferring, "")
	if !errors.Is(err, ErrNotTerminal) {
		t.Errorf("Expected ErrNotTerminal, got %v", err)
	}
}

func TestMarkCompletedSnapsToTotal(t *testing.T) {
	tracker, _ := NewTracker(TransferTypeUpload, testDescriptors())
	ids := tracker.FileIDs()

	tracker.StartFile(ids[0])
	tracker.UpdateFile(ids[0], 1234)
	tracker.MarkTerminal(ids[0], FileStatusCompleted, "")

	f, _ := tracker.File(ids[0])
	if f.TransferredBytes != f.TotalBytes {
		t.Errorf("Expected completed entry at full total %d, got %d", f.TotalBytes, f.TransferredBytes)
	}
}

func TestAggregatesDerivedFromEntries(t *testing.T) {
	tracker, _ := NewTracker(TransferTypeUpload, testDescriptors())
	ids := tracker.FileIDs()

	tracker.StartFile(ids[0])
	tracker.StartFile(ids[1])
	tracker.UpdateFile(ids[0], 1000)
	tracker.UpdateFile(ids[1], 2000)

	snap := tracker.Snapshot()
	if snap.TransferredBytes != 3000 {
		t.Errorf("Expected aggregate 3000, got %d", snap.TransferredBytes)
	}

	var sum uint64
	for _, f := range snap.Files {
		sum += f.TransferredBytes
	}
	if snap.TransferredBytes != sum {
		t.Errorf("Aggregate %d does not match entry sum %d", snap.TransferredBytes, sum)
	}
}

// Scenario: all three files complete successfully.
func TestAllFilesComplete(t *testing.T) {
	tracker, _ := NewTracker(TransferTypeUpload, testDescriptors())

	for _, id := range tracker.FileIDs() {
		tracker.StartFile(id)
		tracker.MarkTerminal(id, FileStatusCompleted, "")
	}
	tracker.Complete()

	snap := tracker.Snapshot()
	if snap.CompletedFiles != 3 {
		t.Errorf("Expected 3 completed files, got %d", snap.CompletedFiles)
	}
	if snap.FailedFiles != 0 {
		t.Errorf("Expected 0 failed files, got %d", snap.FailedFiles)
	}
	if snap.TransferredBytes != 35*1024*1024 {
		t.Errorf("Expected 35 MB transferred, got %d", snap.TransferredBytes)
	}
	if snap.Stage != StageCompleted {
		t.Errorf("Expected completed stage, got %v", snap.Stage)
	}
	if snap.CompletedFiles+snap.FailedFiles != snap.TotalFiles {
		t.Error("Expected terminal counter equality at terminal stage")
	}
}

// Scenario: one file fails mid-way, the session still completes.
func TestOneFailureDoesNotFailSession(t *testing.T) {
	tracker, _ := NewTracker(TransferTypeUpload, testDescriptors())
	ids := tracker.FileIDs()

	tracker.StartFile(ids[0])
	tracker.MarkTerminal(ids[0], FileStatusCompleted, "")
	tracker.StartFile(ids[1])
	tracker.UpdateFile(ids[1], 7*1024*1024)
	tracker.MarkTerminal(ids[1], FileStatusFailed, "transport error: stream severed")
	tracker.StartFile(ids[2])
	tracker.MarkTerminal(ids[2], FileStatusCompleted, "")
	tracker.Complete()

	snap := tracker.Snapshot()
	if snap.Stage != StageCompleted {
		t.Errorf("Expected completed stage despite failure, got %v", snap.Stage)
	}
	if snap.CompletedFiles != 2 {
		t.Errorf("Expected 2 completed files, got %d", snap.CompletedFiles)
	}
	if snap.FailedFiles != 1 {
		t.Errorf("Expected 1 failed file, got %d", snap.FailedFiles)
	}

	failed := snap.Files[1]
	if failed.Status != FileStatusFailed {
		t.Errorf("Expected failed status, got %v", failed.Status)
	}
	if failed.Error == "" {
		t.Error("Expected non-empty error on failed entry")
	}
	for _, i := range []int{0, 2} {
		if snap.Files[i].Status != FileStatusCompleted {
			t.Errorf("Sibling entry %d affected by failure: %v", i, snap.Files[i].Status)
		}
	}
}

func TestSetErrorEntersFailedStageOnce(t *testing.T) {
	tracker, _ := NewTracker(TransferTypeDownload, testDescriptors())

	tracker.SetError("unable to resolve ticket")
	tracker.Complete() // must not overwrite the terminal stage
	tracker.SetStage(StageTransferring)

	snap := tracker.Snapshot()
	if snap.Stage != StageFailed {
		t.Errorf("Expected failed stage to stick, got %v", snap.Stage)
	}
	if snap.Error != "unable to resolve ticket" {
		t.Errorf("Expected error preserved, got %q", snap.Error)
	}
}

func TestSnapshotIdempotent(t *testing.T) {
	tracker, _ := NewTracker(TransferTypeUpload, testDescriptors())
	ids := tracker.FileIDs()
	tracker.StartFile(ids[0])
	tracker.UpdateFile(ids[0], 12345)

	a := tracker.Snapshot()
	b := tracker.Snapshot()
	if !reflect.DeepEqual(a, b) {
		t.Error("Consecutive snapshots without updates differ")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tracker, _ := NewTracker(TransferTypeUpload, testDescriptors())
	snap := tracker.Snapshot()
	snap.Files[0].TransferredBytes = 999

	if f, _ := tracker.File(tracker.FileIDs()[0]); f.TransferredBytes != 0 {
		t.Error("Mutating a snapshot leaked into tracker state")
	}
}

// Concurrent updates to different files must not lose each other's writes,
// and every observed snapshot must satisfy the session invariants.
func TestConcurrentUpdatesNoLostWrites(t *testing.T) {
	descriptors := make([]FileDescriptor, 16)
	for i := range descriptors {
		descriptors[i] = FileDescriptor{Name: "f", RelativePath: "f", Size: 1 << 20}
	}
	tracker, _ := NewTracker(TransferTypeDownload, descriptors)
	ids := tracker.FileIDs()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id FileID) {
			defer wg.Done()
			tracker.StartFile(id)
			for b := uint64(0); b <= 1<<20; b += 4096 {
				tracker.UpdateFile(id, b)
			}
			tracker.MarkTerminal(id, FileStatusCompleted, "")
		}(id)
	}

	done := make(chan struct{})
	go func() {
		// Snapshot continuously while workers run; every view must be
		// internally consistent.
		for {
			select {
			case <-done:
				return
			default:
			}
			snap := tracker.Snapshot()
			var sum uint64
			for _, f := range snap.Files {
				if f.TransferredBytes > f.TotalBytes {
					t.Errorf("Entry exceeds total: %d > %d", f.TransferredBytes, f.TotalBytes)
				}
				sum += f.TransferredBytes
			}
			if snap.TransferredBytes != sum {
				t.Errorf("Torn snapshot: aggregate %d != sum %d", snap.TransferredBytes, sum)
			}
			if snap.CompletedFiles+snap.FailedFiles > snap.TotalFiles {
				t.Errorf("Counter invariant violated: %d+%d > %d",
					snap.CompletedFiles, snap.FailedFiles, snap.TotalFiles)
			}
		}
	}()

	wg.Wait()
	close(done)
	tracker.Complete()

	snap := tracker.Snapshot()
	if snap.CompletedFiles != 16 {
		t.Errorf("Lost updates: expected 16 completed files, got %d", snap.CompletedFiles)
	}
	if snap.TransferredBytes != snap.TotalBytes {
		t.Errorf("Expected all bytes transferred, got %d of %d", snap.TransferredBytes, snap.TotalBytes)
	}
}

func TestSessionRateAndEta(t *testing.T) {
	tracker, _ := NewTracker(TransferTypeDownload, []FileDescriptor{
		{Name: "big.bin", RelativePath: "big.bin", Size: 10 * 1024 * 1024},
	})
	clock := newMockTimeProvider()
	tracker.SetTimeProvider(clock)
	id := tracker.FileIDs()[0]

	tracker.StartFile(id)
	tracker.UpdateFile(id, 0)
	clock.Advance(time.Second)
	tracker.UpdateFile(id, 1024*1024) // 1 MB/s

	snap := tracker.Snapshot()
	if snap.TransferRate == 0 {
		t.Fatal("Expected non-zero transfer rate")
	}
	if snap.EtaSeconds == 0 {
		t.Error("Expected non-zero ETA while bytes remain")
	}

	f, _ := tracker.File(id)
	if f.TransferRate == 0 {
		t.Error("Expected non-zero per-file rate")
	}
}
