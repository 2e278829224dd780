// Package history keeps an in-memory, bounded log of execution records.
// Nothing is persisted; records are lost on restart.
package history
