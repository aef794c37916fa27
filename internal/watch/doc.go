// Package watch reloads an env file whenever it changes on disk.
//
// A Watcher listens for fsnotify events on the file's directory and falls
// back to polling the modification time when events are unavailable or when
// polling is requested. Each change reloads the file with override enabled
// and then runs an optional callback. Reload and callback failures are logged
// and never stop the watcher.
package watch
