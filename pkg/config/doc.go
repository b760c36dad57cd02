// Package config loads the sentinel configuration once at startup.
//
// Values come from Default, then an optional YAML file (path argument or the
// SENTINEL_CONFIG variable), then SENTINEL_* environment overrides. Validate
// aggregates every problem into a single multierror; an empty priority list is
// reported as ErrNoTargets and is the one fatal startup condition.
package config
