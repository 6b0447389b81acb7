// Package engine ties the pipeline together: documents are chunked,
// embedded, and stored; queries are embedded, matched against the
// store, and answered by a completion model over the retrieved context.
// Query results are cached durably so repeated questions cost nothing.
package engine
