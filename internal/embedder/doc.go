// Package embedder turns file text and search queries into vector
// embeddings.
//
// A Provider always returns a vector of its fixed dimension. Failures are
// absorbed: empty input or a backend error yields a zero vector, so the
// indexing pipeline and query path never have to branch on embedding
// errors.
//
// Two providers are available. HTTPProvider calls an OpenAI-compatible
// embeddings endpoint with retry and an LRU cache keyed by content hash.
// HashProvider derives a deterministic vector from SHA-256 of the input
// and needs no network at all; the factory falls back to it when the
// HTTP backend does not respond at startup.
package embedder
