// Package batch implements the lifecycle coordinator for bulk
// asynchronous task-group jobs: submitting input files as remote task
// groups, polling until each group finishes, fetching structured
// outputs, and merging them back onto the original rows. Every stage
// handoff goes through a durable state store rather than memory, which
// is what makes a run idempotent and resumable after a crash.
package batch
