package scripts

import (
	"math"
	"strings"
	"time"
)

// Rough CPU real-time factors per model size.
var speedFactors = map[string]float64{
	"tiny":     0.1,
	"small":    0.2,
	"medium":   0.4,
	"large":    0.8,
	"large-v3": 1.0,
}

// EstimateTranscriptionTime guesses how long a model needs for audio of the
// given length. Unknown sizes are treated like "small".
func EstimateTranscriptionTime(model string, audio time.Duration) time.Duration {
	factor, ok := speedFactors[strings.ToLower(model)]
	if !ok {
		factor = speedFactors["small"]
	}
	return time.Duration(math.Round(float64(audio) * factor))
}
