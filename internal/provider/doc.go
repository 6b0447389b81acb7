// Package provider defines the two external calls the system depends
// on — embedding generation and chat completion — and implements them
// against OpenAI-compatible APIs (Mistral, OpenAI).
//
// Failures are classified into a small taxonomy callers can branch on:
//
//   - ErrBatchTooLarge: the embedding batch exceeded the provider's
//     size or token limit; recoverable by per-item calls.
//   - ErrInvalidCredentials: authentication failed; actionable by the
//     user, never retried.
//   - ErrProviderFailed: everything else; retried with exponential
//     backoff before being surfaced.
//
// The client keeps a bounded LRU of recent embedding responses keyed by
// content digest, separate from the durable TTL cache owned by the
// embedding orchestrator.
package provider
