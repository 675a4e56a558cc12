// Package job runs the per-file conversion state machine.
//
// A detected file moves through readiness, claim, and conversion. Tool
// failures loop back to readiness after an exponential backoff until the
// retry budget runs out, at which point the file is poisoned in history and
// left alone until an operator resets it. The claim marker is released on
// every exit from a claimed attempt, including panics and cancellation.
package job
