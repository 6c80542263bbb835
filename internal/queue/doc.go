// Package queue provides the per-stage FIFO work queues backed by redis
// lists. Job ids are the only payload; a blocking pop hands each id to
// exactly one worker, which is what gives stage workers mutual exclusion
// over a job without any additional locking.
package queue
