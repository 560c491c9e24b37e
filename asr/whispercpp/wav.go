package whispercpp

import (
	"encoding/binary"
	"fmt"
	"os"
)

// DecodeWAVFile reads a 16-bit PCM WAV file and returns normalized float32
// samples in [-1, 1). Only the canonical format produced by the audio
// normalizer is accepted.
func DecodeWAVFile(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeWAV(data)
}

// DecodeWAV parses WAV bytes. It walks the RIFF chunk list, validates the
// fmt chunk describes 16-bit PCM, and converts the data chunk to floats.
func DecodeWAV(data []byte) ([]float32, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	var pcm []byte
	sawFmt := false
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body // tolerate truncated final chunk
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			bitsPerSample := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if audioFormat != 1 {
				return nil, fmt.Errorf("unsupported audio format %d, want PCM", audioFormat)
			}
			if bitsPerSample != 16 {
				return nil, fmt.Errorf("unsupported bit depth %d, want 16", bitsPerSample)
			}
			sawFmt = true
		case "data":
			pcm = data[body : body+size]
		}
		// Chunks are word-aligned.
		off = body + size + (size & 1)
	}

	if !sawFmt {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if pcm == nil {
		return nil, fmt.Errorf("missing data chunk")
	}
	return pcmToFloat32(pcm)
}

func pcmToFloat32(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("odd PCM byte count %d for 16-bit audio", len(pcm))
	}
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return samples, nil
}
