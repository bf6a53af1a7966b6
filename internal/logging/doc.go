// Package logging wraps log/slog with the handlers and attribute conventions
// used across the pipeline: a console handler for interactive use, a JSON
// handler for everything else, and standardized field keys.
package logging
