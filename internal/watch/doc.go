// Package watch turns external changes into session requests.
//
// FileWatcher follows one file through fsnotify and fires after a quiet
// period, so an editor's burst of writes becomes a single reload. Poller
// fetches a tree from a static file server at a fixed interval. Both only
// produce requests; decoding a watched file and every mutation of the live
// graph happen on the session's Run goroutine.
package watch
