// Package queue implements the in-process priority queue and job store at
// the heart of the engine.
//
// Pending executions are held in a single ordered list: immediate jobs sit
// at the front, everything else is placed by stable insertion sort on
// ascending priority (FIFO within a band). Dequeue skips entries whose
// next-retry time has not passed. The queue also tracks the processing set
// (executions currently inside a handler), the active execution records,
// and bounded completed/failed result histories.
//
// An execution is in at most one of the pending ordering and the processing
// set at any time, never both. All mutation happens under one mutex through
// the public methods; lifecycle hooks are emitted only after the
// corresponding mutation has completed.
package queue
