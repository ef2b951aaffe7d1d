// Package vectorstore provides vector storage for document chunks and
// semantic-cache entries.
//
// The Store interface is the similarity-search port consumed by the query
// pipeline: batched inserts, top-k search, and top-k search with distance
// scores. Two implementations are provided:
//
//   - ChromemStore: embedded chromem-go database (default). Pure Go, data
//     persisted to gob files, one store per collection on a shared DB.
//   - QdrantStore: external Qdrant server via langchaingo.
//
// Scoring convention: Search orders results highest-similarity-first;
// SearchWithScore reports cosine distance (1 - similarity), so lower is
// closer. The semantic cache declares a hit when distance falls below its
// threshold.
//
// BatchAdd layers ingestion discipline over any Store: fixed-size batches
// with an inter-batch pause, and exponential backoff retry for
// rate-limit-class failures from the embedding or indexing backend.
package vectorstore
