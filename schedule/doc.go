// Package schedule expands recurring job definitions into queue
// instances. The queue itself never expands recurrences; the Scheduler
// owns that, running a tick loop that enqueues an eligible instance every
// time a registered definition's cron expression fires.
//
// Expressions use standard 5-field cron syntax plus descriptors like
// "@every 30s" and "@hourly". The scheduler is single-process: running
// two of them against the same queue double-fires entries.
package schedule
