// Package ginseng implements the transfer-orchestration core of a
// peer-to-peer file-sharing application: it drives many per-file transfers
// in parallel under a bounded concurrency budget, aggregates their byte
// progress into one coherent session view, and streams rate-limited
// structured events to a single consumer.
//
// Example:
//
//	core, err := ginseng.New(ginseng.NewOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	emitter := core.NewEmitter()
//	go func() {
//	    for ev := range emitter.Events() {
//	        fmt.Printf("%s\n", ev.Kind)
//	    }
//	}()
//
//	ticket, err := core.ShareFiles(context.Background(), []string{"notes.pdf"}, emitter)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("share with:", ticket)
//
// A session either returns a result or an error, and every error is also
// mirrored into the event stream, so a consumer never needs to reconcile
// the method's own return against background failures.
package ginseng
