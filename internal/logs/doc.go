// Package logs reads the daemon's run log and per-output ffmpeg logs for the
// CLI.
//
// Last returns the final N lines of a file with bounded memory. Follow keeps
// reading as the file grows and starts over when the reframe.log pointer is
// swapped to a new run or the file is truncated.
package logs
