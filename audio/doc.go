// Package audio inspects uploaded audio assets and normalizes them into the
// canonical format the speech model requires: 16 kHz, mono, 16-bit PCM WAV.
//
// Probing and transcoding are delegated to the external ffprobe and ffmpeg
// tools. Probing failures are treated fail-safe: an asset that cannot be
// inspected is assumed to need conversion.
package audio
