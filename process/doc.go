// Package process executes external tools (ffmpeg, ffprobe) as subprocesses
// with captured output, exit codes, and context-driven termination.
package process
