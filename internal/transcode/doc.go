// Package transcode builds the ffmpeg invocation that turns a horizontal video
// into a vertical one and runs it as a blocking subprocess.
//
// The composition is a blurred, cropped copy of the source filling the frame,
// a centered sharp band of the source on top, and an optional logo below the
// band. ffmpeg writes to a hidden partial file that is published with a
// no-clobber link, so an existing output is never overwritten.
package transcode
