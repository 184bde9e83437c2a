package mirror

import "errors"

// Sentinel error kinds for the taxonomy a caller (the Command Dispatcher)
// needs to distinguish. Use errors.Is against these, not string matching.
var (
	// ErrUsage marks an operation invoked against a mirror or argument
	// combination it does not support, e.g. update_bootstrap on a host
	// that is not on the bootstrap allowlist.
	ErrUsage = errors.New("invalid mirror operation")

	// ErrClobberNeeded marks a mirror so corrupt that fetch cannot
	// proceed; the caller must delete it and rebuild from scratch. A
	// second ErrClobberNeeded within the same populate call is not
	// retried again and propagates to the caller.
	ErrClobberNeeded = errors.New("git cache is corrupt")

	// ErrFilesystemTransient marks a filesystem operation (rename,
	// recursive delete) that raced with something else (a background
	// indexer, an antivirus scanner) and is worth retrying.
	ErrFilesystemTransient = errors.New("transient filesystem error")

	// ErrZipUnreliable marks update_bootstrap refusing to run because no
	// trustworthy external zip tool is available on this host.
	ErrZipUnreliable = errors.New("zip tool is not reliably available on this host")

	// ErrBootstrapUnavailable marks an operation that needed the object
	// store but none is configured; populate degrades gracefully around
	// this (TryBootstrap never errors), but update_bootstrap cannot.
	ErrBootstrapUnavailable = errors.New("bootstrap archive store unavailable")

	// ErrConfigMissing names the condition of no CLI override and no
	// global cache.cachepath git configuration. cachepath.Resolve reports
	// that condition with its own cachepath.ErrConfigMissing, a distinct
	// value that does not match this one under errors.Is.
	ErrConfigMissing = errors.New("no cache path configured")
)

// corruptMarker is the fixed line the engine emits before attempting a
// clobber-and-rebuild recovery, so operators grepping logs across many
// mirrors see one consistent phrase.
const corruptMarker = "git cache is corrupt"
