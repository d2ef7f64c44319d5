package blog

import "github.com/teranos/autoblog/errors"

var (
	// ErrNotFound is returned when a job, topic, site or schedule does not exist.
	ErrNotFound = errors.Wrap(errors.ErrNotFound, "blog")

	// ErrInvalidTransition is returned when a job status change is not allowed
	// from the job's current status.
	ErrInvalidTransition = errors.Wrap(errors.ErrConflict, "invalid job status transition")

	// ErrScheduleClaimed is returned when a conditional schedule update loses
	// to a concurrent sweep.
	ErrScheduleClaimed = errors.Wrap(errors.ErrConflict, "schedule already claimed")
)
