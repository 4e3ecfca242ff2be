// Package progress implements concurrency-safe progress aggregation for
// multi-file transfer sessions, with rate-limited structured event delivery
// to a single consumer.
//
// # Overview
//
// The package provides four components:
//
//   - Tracker: the single owner of a session's mutable state. Workers report
//     byte counts and terminal statuses through it; everyone else sees only
//     immutable snapshots.
//   - RateLimiter: the pure decision of whether a non-critical event may be
//     emitted, with terminal events always exempt.
//   - Event: the tagged union delivered to the consumer, serialized as
//     {"event": ..., "data": {...}}.
//   - Emitter: the ordered event channel combining the two, owned by one
//     session and read by exactly one consumer.
//
// # Tracking a session
//
//	tracker, err := progress.NewTracker(progress.TransferTypeUpload, descriptors)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// From a worker goroutine:
//	tracker.StartFile(fileID)
//	tracker.UpdateFile(fileID, bytesSoFar)
//	tracker.MarkTerminal(fileID, progress.FileStatusCompleted, "")
//
//	// From anywhere:
//	snapshot := tracker.Snapshot()
//
// Session aggregates (transferredBytes, completedFiles, failedFiles) are
// rederived from the file entries on every update, so they can never drift,
// and every snapshot is internally consistent.
//
// # Emitting events
//
//	emitter := progress.NewEmitter(progress.DefaultEmitInterval, 0)
//	go consume(emitter.Events())
//
//	emitter.Emit(progress.TransferStarted(tracker.Snapshot()))    // always delivered
//	emitter.Emit(progress.TransferProgressed(tracker.Snapshot())) // throttled
//
// Per-file terminal transitions, stage changes, and session start/terminal
// events bypass the throttle; intermediate progress events share one 100 ms
// budget per session.
package progress
