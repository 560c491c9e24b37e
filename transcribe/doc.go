// Package transcribe orchestrates the full voice-note transcription flow:
// resolve the uploaded asset, probe and normalize its audio, acquire a
// bounded concurrency slot, ensure the speech model is ready, run inference
// under a deadline, and score the result.
//
// Jobs are tracked in an in-memory registry for the duration of their flight
// and support best-effort cooperative cancellation. Converted intermediate
// files are deleted on every exit path.
package transcribe
