// Package inmemorystore provides a thread-safe, in-memory implementation
// of the stagestore.Store interface. It is suitable for command-line builds,
// watch sessions and tests, where stage state does not need to be persisted.
package inmemorystore
