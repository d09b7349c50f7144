package transcript

import (
	"math"
	"strings"

	"github.com/nijaru/yt-transcript/models"
)

// Normalize shapes raw segments into a successful result. Segments whose
// trimmed text is empty are dropped; the rest are joined by single spaces.
// Times are rounded to 2 places and probabilities to 3. AverageConfidence
// is the mean of all word probabilities and stays nil when no segment
// carries words.
func Normalize(segments []models.TranscriptSegment, language string, languageProbability *float64) models.TranscriptResult {
	kept := make([]models.TranscriptSegment, 0, len(segments))
	texts := make([]string, 0, len(segments))

	var probSum float64
	var probCount int

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		out := models.TranscriptSegment{
			Text:  text,
			Start: Round2(seg.Start),
			End:   Round2(seg.End),
		}
		if seg.Words != nil {
			out.Words = make([]models.WordTiming, 0, len(seg.Words))
			for _, w := range seg.Words {
				p := Round3(w.Probability)
				out.Words = append(out.Words, models.WordTiming{
					Word:        w.Word,
					Start:       Round2(w.Start),
					End:         Round2(w.End),
					Probability: p,
				})
				probSum += p
				probCount++
			}
		}

		kept = append(kept, out)
		texts = append(texts, text)
	}

	result := models.Succeeded(strings.Join(texts, " "))
	result.Segments = kept
	if language != "" {
		result.Language = &language
	}
	if languageProbability != nil {
		p := Round3(*languageProbability)
		result.LanguageProbability = &p
	}
	if probCount > 0 {
		avg := Round3(probSum / float64(probCount))
		result.AverageConfidence = &avg
	}
	return result
}

// Round2 rounds time-like values.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round3 rounds probability-like values.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
