// Package config loads, normalizes, and validates bindery configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for
// vendor credentials. The Config type centralizes every knob the daemon
// and CLI need: document directories, vendor API credentials, notification
// settings, and reconciliation timing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
