// Package session provides durable per-session working directories.
//
// The session package owns the mapping from an opaque session key to a
// dedicated directory under a configurable base directory. A session's
// directory is created lazily on first access and persists across
// executions until explicitly cleared; the directory itself is the only
// persistent state — no metadata files are written.
//
// Usage:
//
//	store, err := session.New(logger, "./sessions")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dir, err := store.Resolve("my-session")
package session
