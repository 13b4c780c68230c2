// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// Board mutations, issue creation and authorization denials all trigger side effects
// (audit writes, realtime emits, automation runs, webhooks) that must never affect the
// primary request. This package gives those side effects an independent goroutine with
// its own error boundary.
//
// # Key Functions
//
// SafeGo: fire-and-forget with panic recovery, timeout and logging
//
//	async.SafeGo(r.Context(), 5*time.Second, "audit board.dnd.move", func(ctx context.Context) error {
//		return auditLogger.Log(ctx, event)
//	})
//
// Runner: the same, with a Wait for graceful shutdown and tests
//
//	runner := async.NewRunner()
//	runner.Go(ctx, time.Second, "emit", emit)
//	runner.Wait(5 * time.Second)
//
// WorkerPool: bounded concurrency with error collection, used for webhook delivery
//
//	pool := async.NewWorkerPool(ctx, 4, "webhook delivery", 15*time.Second)
//	defer pool.Shutdown(5 * time.Second)
package async
