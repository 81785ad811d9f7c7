// Package config loads, normalizes, and validates leadflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, optionally replaces the scoring rule table
// with a YAML rules document, and honours environment fallbacks such as
// LEADFLOW_NTFY_TOPIC. A loaded Config is treated as immutable: the scoring
// rule table it carries is one version for the life of the process.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
