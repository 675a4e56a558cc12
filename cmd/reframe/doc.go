// Command reframe watches a directory for horizontal videos and converts each
// one into a 9:16 vertical video with ffmpeg.
//
// "reframe run" starts the watcher; the remaining commands convert files
// once, inspect conversion history and claim markers, and check the install.
package main
