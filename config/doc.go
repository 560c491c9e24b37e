// Package config loads service configuration from YAML files, .env files,
// and environment variables, in that order of increasing precedence. The
// root Config composes the per-subsystem sections; everything is immutable
// after startup.
package config
