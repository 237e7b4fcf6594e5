// Package retrieval composes the search engine into higher-level helpers
// for augmented-generation workloads: contextual retrieval (each hit
// returned with the surrounding chunks of its document) and document-level
// retrieval (chunk hits grouped and scored per document).
package retrieval
