package scraper

import (
	"regexp"
	"strings"
)

// BotDetector recognises challenge and access-denied pages, so a failed
// extraction can be reported as a block rather than a missing price.
type BotDetector struct {
	challengePatterns []*regexp.Regexp
	blockPatterns     []*regexp.Regexp
}

// NewBotDetector creates a new bot detector
func NewBotDetector() *BotDetector {
	return &BotDetector{
		challengePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bcaptcha\b`),
			regexp.MustCompile(`(?i)recaptcha|hcaptcha|turnstile`),
			regexp.MustCompile(`(?i)verify (?:that )?you are (?:a )?human`),
			regexp.MustCompile(`(?i)press (?:&|and) hold`),
			regexp.MustCompile(`(?i)checking your browser`),
			regexp.MustCompile(`(?i)unusual (?:traffic|activity)`),
		},
		blockPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)access denied`),
			regexp.MustCompile(`(?i)403 forbidden`),
			regexp.MustCompile(`(?i)429 too many requests`),
			regexp.MustCompile(`(?i)request (?:was )?blocked`),
			regexp.MustCompile(`(?i)bot detected`),
		},
	}
}

// Detect scores the page text and title. A page is treated as a bot wall
// when it matches a challenge pattern, or a block pattern on a short page.
func (bd *BotDetector) Detect(pageText, pageTitle string) (bool, string) {
	content := strings.ToLower(pageTitle + " " + pageText)

	var reasons []string
	score := 0.0
	for _, pattern := range bd.challengePatterns {
		if pattern.MatchString(content) {
			score += 0.5
			reasons = append(reasons, "challenge: "+pattern.String())
		}
	}
	for _, pattern := range bd.blockPatterns {
		if pattern.MatchString(content) {
			score += 0.3
			reasons = append(reasons, "block: "+pattern.String())
		}
	}
	if score > 0 && len(content) < 2000 {
		score += 0.2
	}
	return score >= 0.5, strings.Join(reasons, "; ")
}

// DetectSnapshot runs Detect over a captured page.
func (bd *BotDetector) DetectSnapshot(s *Snapshot) (bool, string) {
	if bd == nil || s == nil {
		return false, ""
	}
	title := strings.TrimSpace(s.Doc.Find("title").First().Text())
	return bd.Detect(s.Text, title)
}
