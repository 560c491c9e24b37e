package transcribe

import (
	"math"
	"strings"

	"github.com/skillsenselab/dialtone/asr"
)

// Confidence estimates transcription reliability in [0, 1].
//
// When segments carry average log-probabilities the score is the mean of
// clamp(avg_logprob + 1.0, 0, 1) over those segments, rounded to two
// decimals. Otherwise it falls back on text length: empty text scores 0.1,
// under five words 0.6, under twenty words 0.7, anything longer 0.8.
func Confidence(segments []asr.Segment, text string) float64 {
	var sum float64
	n := 0
	for _, s := range segments {
		if s.AvgLogProb == nil {
			continue
		}
		sum += clamp(*s.AvgLogProb+1.0, 0.0, 1.0)
		n++
	}
	if n > 0 {
		return round2(sum / float64(n))
	}

	words := len(strings.Fields(strings.TrimSpace(text)))
	switch {
	case words == 0:
		return 0.1
	case words < 5:
		return 0.6
	case words < 20:
		return 0.7
	default:
		return 0.8
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
