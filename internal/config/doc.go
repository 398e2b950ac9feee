// Package config loads, normalizes, and validates Lost Archives configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and DATABASE_URL. The Config type centralizes every knob
// the worker daemon and CLI need: storage, worker lanes, retry budget,
// pipeline shape, and external service credentials.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical language tags, and clear validation errors.
package config
