// Package batcher chunks and ingests large point sets with a dynamically
// tuned batch size and semaphore-bounded parallelism. Chunk failures are
// isolated: siblings continue, and the caller receives a structured report
// listing failed chunks by original index for targeted re-submission.
package batcher
