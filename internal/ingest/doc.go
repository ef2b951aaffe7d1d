// Package ingest loads source documents, splits them into chunks, and
// feeds the chunks to the vector index in rate-limited batches.
//
// Two source kinds are supported: web pages fetched over HTTP with the
// article body extracted from the markup, and local PDF files extracted
// page by page. A directory watcher can auto-ingest PDFs dropped into a
// configured folder.
package ingest
