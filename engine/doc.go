// Package engine wires all hookline subsystems together and provides the
// primary application-level API for registering and enqueuing work.
//
// The engine package exists to break an import cycle: the root hookline
// package defines Entity and Config (imported by job, queue, webhook, etc.)
// and therefore cannot import those packages back. Engine sits above all
// subsystem packages and below the application layer.
//
// # Building an Engine
//
//	eng, err := engine.New(hookline.DefaultConfig(),
//	    engine.WithLogger(logger),
//	    engine.WithStore(memory.New()),
//	    engine.WithBackoff(backoff.DefaultStrategy()),
//	)
//
// # Registering and Enqueuing Work
//
//	eng.Register(job.TypeImmediate, "send-email", emailHandler)
//
//	execID, err := eng.Enqueue(ctx, job.Definition{
//	    JobID: "invoice-123",
//	    Name:  "send-email",
//	    Type:  job.TypeImmediate,
//	})
//
// Recurring definitions go through the scheduler instead:
//
//	err := eng.RegisterRecurring(job.Definition{
//	    JobID:    "nightly-report",
//	    Name:     "build-report",
//	    Type:     job.TypeRecurring,
//	    CronExpr: "0 2 * * *",
//	})
//
// # Webhooks
//
// When a store is configured, the engine registers the webhook delivery
// handler and exposes a Publisher for fanning events out to subscribers:
//
//	eng.Publisher().Publish(ctx, webhook.NewEvent("order.created", payload))
package engine
