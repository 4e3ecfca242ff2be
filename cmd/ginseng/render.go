package main

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/alDuncanson/ginseng/fsutil"
	"github.com/alDuncanson/ginseng/progress"
)

// renderer turns the session event stream into a terminal progress bar.
// It runs on the single consumer goroutine, so no locking is needed.
type renderer struct {
	bar       *progressbar.ProgressBar
	operation string // "Sending" or "Receiving"
}

func newRenderer(operation string) *renderer {
	return &renderer{operation: operation}
}

func (r *renderer) handle(ev progress.Event) {
	switch ev.Kind {
	case progress.EventTransferStarted:
		r.start(ev.Transfer)
	case progress.EventTransferProgress:
		r.update(ev.Transfer)
	case progress.EventFileProgress:
		if ev.File.Status == progress.FileStatusFailed {
			fmt.Fprintf(os.Stderr, "\n%s failed: %s\n", ev.File.Name, ev.File.Error)
		}
	case progress.EventStageChanged:
		if r.bar != nil {
			r.bar.Describe(fmt.Sprintf("%s (%s)", r.operation, ev.Stage))
		}
	case progress.EventTransferCompleted:
		r.finish(ev.Transfer)
	case progress.EventTransferFailed:
		if r.bar != nil {
			_ = r.bar.Exit()
		}
		fmt.Fprintf(os.Stderr, "\nTransfer failed: %s\n", ev.Error)
	}
}

func (r *renderer) start(t *progress.Transfer) {
	r.bar = progressbar.NewOptions64(int64(t.TotalBytes),
		progressbar.OptionSetDescription(fmt.Sprintf("%s %d files", r.operation, t.TotalFiles)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
	)
}

func (r *renderer) update(t *progress.Transfer) {
	if r.bar == nil {
		return
	}
	_ = r.bar.Set64(int64(t.TransferredBytes))
	r.bar.Describe(fmt.Sprintf("%s (%d/%d files, %s/s)",
		r.operation, t.CompletedFiles, t.TotalFiles, fsutil.FormatBytes(t.TransferRate)))
}

func (r *renderer) finish(t *progress.Transfer) {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
	fmt.Printf("\n%s complete: %d files, %s", r.operation, t.CompletedFiles, fsutil.FormatBytes(t.TransferredBytes))
	if t.FailedFiles > 0 {
		fmt.Printf(" (%d failed)", t.FailedFiles)
	}
	fmt.Println()
}
