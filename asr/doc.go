// Package asr manages the process-wide speech recognition model.
//
// The model is an expensive-to-initialize singleton. Manager guards it with a
// one-shot, mutex-protected load: under concurrent demand exactly one caller
// performs the load while the rest wait on a condition variable. A failed
// load leaves the manager in a retryable state.
//
// The actual inference backend is abstracted behind the Engine and Model
// interfaces; the whispercpp subpackage provides the production
// implementation.
package asr
