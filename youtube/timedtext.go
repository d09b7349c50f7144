package youtube

import (
	"bytes"
	"encoding/xml"
	"html"
	"strconv"
	"strings"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
)

// timedtextDoc covers both shapes the timedtext endpoint answers with:
// <transcript><text start dur> (seconds) and the srv3
// <timedtext><body><p t d> (milliseconds) format.
type timedtextDoc struct {
	XMLName xml.Name
	Texts   []timedtextText `xml:"text"`
	Body    struct {
		Paragraphs []timedtextParagraph `xml:"p"`
	} `xml:"body"`
}

type timedtextText struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Text  string `xml:",chardata"`
}

type timedtextParagraph struct {
	T     string `xml:"t,attr"`
	D     string `xml:"d,attr"`
	Text  string `xml:",chardata"`
	Spans []struct {
		Text string `xml:",chardata"`
	} `xml:"s"`
}

// ParseTimedText decodes a timedtext document into segments. Entity
// references are unescaped and line breaks inside a cue become spaces.
func ParseTimedText(data []byte) ([]models.TranscriptSegment, error) {
	const op = "youtube.ParseTimedText"

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.Wrap(errors.ErrCaptionsNotFound, "empty timedtext document")
	}

	var doc timedtextDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "%s: decode timedtext", op)
	}

	var segments []models.TranscriptSegment
	for _, t := range doc.Texts {
		start := parseFloat(t.Start)
		segments = append(segments, models.TranscriptSegment{
			Text:  cleanCaption(t.Text),
			Start: start,
			End:   start + parseFloat(t.Dur),
		})
	}

	for _, p := range doc.Body.Paragraphs {
		text := p.Text
		if len(p.Spans) > 0 {
			var sb strings.Builder
			for _, s := range p.Spans {
				sb.WriteString(s.Text)
			}
			text = sb.String()
		}
		start := parseFloat(p.T) / 1000
		segments = append(segments, models.TranscriptSegment{
			Text:  cleanCaption(text),
			Start: start,
			End:   start + parseFloat(p.D)/1000,
		})
	}

	if len(segments) == 0 {
		return nil, errors.Wrap(errors.ErrCaptionsNotFound, "timedtext document has no cues")
	}
	return segments, nil
}

func cleanCaption(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
