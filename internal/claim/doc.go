// Package claim implements the marker-file ledger that gives one conversion
// attempt exclusive ownership of a source video.
//
// A claim is a sidecar file next to the source (clip.mp4.processing) created
// with O_EXCL, so the filesystem arbitrates between concurrent attempts in one
// process and across processes. The marker records who created it; markers
// whose owner died on this host, or that outlived the stale window, may be
// reclaimed. The converted output is checked before any marker is created,
// because an existing output means the work is already done.
package claim
