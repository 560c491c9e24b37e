// Package api exposes the transcription service over HTTP. It binds and
// validates requests, delegates to the upload store and the transcription
// pipeline, and maps typed failures onto HTTP responses.
package api
