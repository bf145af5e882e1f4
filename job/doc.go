// Package job defines the core data model of the engine: the caller-supplied
// Definition, the engine-owned Execution that tracks one definition across
// all of its attempts, the terminal Result record, the Handler contract
// implemented by job producers, and the typed handler Registry.
//
// A Definition is immutable once enqueued. The engine wraps it in an
// Execution whose state only the queue and dispatcher mutate; callers
// observe outcomes through Result records and lifecycle hooks.
package job
