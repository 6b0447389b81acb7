// Package embedding orchestrates batched embedding generation over an
// external provider with a durable content-addressed cache in front.
//
// Input passages are partitioned into fixed-size batches dispatched to a
// bounded worker pool; each batch first separates cached items from a
// residual list and issues at most one provider call for the residual.
// A provider-side size rejection degrades that batch to per-item calls.
//
// Every unit of work is tagged with its original index and results are
// reassembled by index, so the returned sequence always aligns with the
// input even when batches complete out of order or individual items
// fail. Failed items carry their error in Result rather than being
// dropped, which would silently shift the chunk-to-embedding
// correspondence consumed downstream.
package embedding
