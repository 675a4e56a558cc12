// Package daemon coordinates the long-running reframe process.
//
// It wires configuration, the history store, the conversion runner, and the
// directory watcher into a single lifecycle with flock-based locking so only
// one instance processes a state directory. Startup runs preflight checks,
// resets attempts a previous crash left "converting", sweeps stale claim
// markers, and optionally exposes Prometheus metrics.
//
// Keep orchestration logic here: conversion semantics live in the job
// package while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
