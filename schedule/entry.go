package schedule

import (
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/hookline/hookline/job"
)

// Entry is one registered recurring definition plus its firing state.
type Entry struct {
	// Name identifies the entry; it is the definition's logical job ID.
	Name string

	// Definition is the template each fired instance is built from.
	Definition job.Definition

	// Enabled gates firing. Disabled entries stay registered.
	Enabled bool

	// LastRunAt is when the entry last fired.
	LastRunAt *time.Time

	// NextRunAt is when the entry fires next.
	NextRunAt time.Time

	schedule cronlib.Schedule
}
