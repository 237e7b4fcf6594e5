// Package search implements the retrieval engine's query modes over any
// vectordb.Backend:
//
//   - Search / SearchBatch: single and batched similarity queries, with
//     optional cross-list deduplication by id
//   - HybridSearch: concurrent dense + sparse sub-searches fused with
//     Reciprocal Rank Fusion (k=60)
//   - MultiStageSearch: cheap coarse candidate retrieval followed by exact
//     re-scoring with the collection's distance metric
//   - SearchDiverse: Maximal Marginal Relevance selection balancing
//     relevance against redundancy
//
// Filters are validated client-side before any network call; validation
// failures are non-retryable. The engine trusts the backend's descending
// score ordering and verifies it, returning ErrScoreOrder on violation.
// Where two results tie on score, derived orderings (fusion, re-ranking,
// document aggregation) break the tie by ascending id so output is
// deterministic.
package search
