// Package config loads the peerkit YAML configuration.
//
// Load starts from Default, overlays the file, and validates every section.
// Durations are written as integer milliseconds or seconds, as the field
// names say.
package config
