// Package log defines the leveled logging interface the storage adapter,
// expiry reaper, command engine, and TCP dispatcher all log through.
//
// GologLogger wraps github.com/kataras/golog — each subsystem gets its own
// component-prefixed instance via NewComponentLogger, so log lines from
// storage, the reaper, and the server are distinguishable on a shared
// stderr stream. NoOpLogger discards everything and is the default when a
// caller doesn't supply one.
package log
