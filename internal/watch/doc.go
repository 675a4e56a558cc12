// Package watch turns directory activity into conversion work.
//
// A Source reports paths that appeared in the input directory. NotifySource
// uses inotify through fsnotify; PollSource lists the directory on an
// interval for filesystems that do not deliver inotify events (SMB/NFS
// mounts). The Dispatcher filters those paths and hands each accepted file to
// its own goroutine so a slow conversion never blocks detection of the next
// file.
package watch
