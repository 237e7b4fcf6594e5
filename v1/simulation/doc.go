// Package simulation provides an in-memory vectordb.Backend that scores
// every stored point by brute force. It reimplements the engine's filter
// semantics exactly, so code written against the Backend interface can be
// tested deterministically without a live vector store. Injected latency
// (base plus bounded random jitter) exercises timeout and concurrency
// paths.
package simulation
