// Package hookline provides a priority-aware background job engine with
// reliable webhook delivery. It offers library-first job processing with
// bounded concurrency, retry/backoff with per-attempt history, and
// at-least-once delivery of signed HTTP callbacks.
//
// Hookline is designed as a library, not a service. Construct an engine,
// register handlers, and enqueue work:
//
//	eng, err := engine.New(hookline.DefaultConfig(),
//	    engine.WithLogger(logger),
//	)
//	eng.Register(job.TypeImmediate, "send-invoice", invoiceHandler)
//	execID, err := eng.Enqueue(ctx, def)
//
// # Architecture
//
// The engine owns all state explicitly — there are no package-level
// singletons. A single in-process priority queue feeds a fixed-size worker
// pool; a pure backoff policy decides retry delays; lifecycle observers
// subscribe through the hook registry. The webhook subsystem is an ordinary
// job handler layered on top of the generic engine.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package hookline
