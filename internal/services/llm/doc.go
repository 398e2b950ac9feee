// Package llm provides an OpenRouter-compatible chat client that writes the
// text artifacts of a story.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive a JSON payload.
// Client.WriteScript, ImagePrompt, Translate, WriteMetadata: the prompts used
// by the generate_script, generate_image, translate_unit, and
// generate_metadata handlers.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// Within a single call the client retries HTTP 408/429/5xx, empty content,
// and network timeouts with a short exponential backoff. Anything still
// failing surfaces to the job queue, whose own retry policy takes over.
// Errors carry a classification: 401/403 are configuration failures, other
// 4xx are validation failures, and everything else is transient.
package llm
