// Package vectorstore holds (passage, vector, source) rows in memory
// and answers top-k cosine-similarity queries with a brute-force linear
// scan.
//
// The store's vector dimension is fixed by the first insert. Vectors of
// any other dimension — inserted or queried — are zero-padded or
// truncated to match rather than rejected, since a dimension drift
// (e.g. after an embedding model change) should degrade results, not
// break ingestion. Rows are append-only; Clear is the only mutator that
// removes them.
package vectorstore
