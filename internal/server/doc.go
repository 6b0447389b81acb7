// Package server exposes the document QA pipeline over HTTP: document
// ingestion, querying, cache administration, and a health check. Errors
// are returned as JSON objects with an "error" field; credential
// failures map to 502 so clients can distinguish them from internal
// faults.
package server
