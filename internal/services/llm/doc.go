// Package llm wraps an OpenAI-compatible chat completion API for transcript
// correction.
//
// The client retries transient failures (HTTP 408/429/5xx, network timeouts,
// empty completions) with exponential backoff, honoring Retry-After headers
// when present. Content extraction tolerates common provider quirks such as
// streaming-style delta payloads returned for non-streaming requests.
package llm
