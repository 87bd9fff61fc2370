package channel

import "unicode/utf8"

const (
	singleSegmentChars = 160
	multiSegmentChars  = 153
	costPerSegment     = 0.05
)

type SMSInfo struct {
	Characters   int     `json:"characters"`
	Messages     int     `json:"messages"`
	CostEstimate float64 `json:"cost_estimate"`
}

// EstimateSMS returns segment count and cost for text. Empty text counts as
// one segment.
func EstimateSMS(text string) SMSInfo {
	chars := utf8.RuneCountInString(text)
	parts := 1
	if chars > singleSegmentChars {
		parts = (chars + multiSegmentChars - 1) / multiSegmentChars
	}
	return SMSInfo{
		Characters:   chars,
		Messages:     parts,
		CostEstimate: float64(parts) * costPerSegment,
	}
}
