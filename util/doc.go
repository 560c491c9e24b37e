// Package util provides small shared helpers for parsing and sanitization.
package util
