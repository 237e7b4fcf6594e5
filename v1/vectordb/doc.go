// Package vectordb defines the backend-agnostic data model for the vector
// retrieval engine: points, dense/sparse/named vectors, scored results,
// search and scroll requests, the filter tree with its fluent builder and
// validator, and the Backend capability interface implemented by the live
// Qdrant client and the in-memory simulation backend.
//
// The package is deliberately free of wire-protocol types. Adapters convert
// these structures to their native representation (see v1/qdrant), which
// keeps application code independent of any single vector database SDK.
//
// # Filters
//
// A Filter holds three sibling condition lists with the usual boolean
// semantics: Must (AND), Should (OR, with an optional minimum-match count)
// and MustNot (AND NOT). Conditions are built fluently:
//
//	f, err := vectordb.NewFilter().
//	    Match("tenant_id", "acme").
//	    Between("price", 10, 100).
//	    ArrayContainsAny("tags", "go", "rust").
//	    Build()
//
// Build runs Validate, which rejects structurally invalid filters (all
// three lists empty, conflicting field conditions, empty field keys) before
// anything reaches the network.
//
// # Backends
//
// Backend is the single dispatch point between the live client and the
// simulation backend. Code written against it (the search engine, the
// adaptive batcher, the retrieval helpers) runs unchanged on either.
package vectordb
