// Package jobs manages the durable job and user records backed by SQLite.
//
// Job rows are created once by the submission path, mutated only through
// Advance afterwards, and never deleted; the cleanup sweeper nulls artifact
// columns while leaving identity and timestamps intact.
package jobs
