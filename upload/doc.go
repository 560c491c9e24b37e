// Package upload stores submitted audio files on disk, one file per upload
// under a per-upload directory named by a generated id. It validates size
// and content type at intake and resolves upload ids back to asset paths for
// the transcription pipeline.
package upload
