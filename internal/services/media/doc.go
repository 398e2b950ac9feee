// Package media talks to the media-generation service that turns prompts and
// narration into images, audio, rendered video, thumbnails, and uploads.
//
// The service is an HTTP JSON API. Every long-running operation is a single
// blocking POST; the worker lane holding the job keeps its lease alive with
// heartbeats while the call is in flight. Responses with 4xx status codes are
// classified as validation failures (except 408 and 429); everything else is
// transient and left to the job retry policy.
package media
