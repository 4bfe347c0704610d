package pipeline

import (
	"regexp"
	"strings"
)

type DetectResult struct {
	IsProposal bool
	Score      float64
	Reason     string
}

// Terms a vendor tends to use when proposing a sell-out rebate, Dutch
// variants included.
var proposalKeywords = []string{
	"rebate", "korting", "discount", "refund", "claim",
	"terugbetaling", "vergoeding", "sell-out", "actie",
}

var (
	isoDatePattern  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	currencyPattern = regexp.MustCompile(`(?i)€|\beur\b|\beuro\b`)
)

// DetectRebateProposal scores subject and body against rebate vocabulary,
// period dates and money amounts. It only gates whether extraction is worth
// calling; a wrong negative costs a proposal, a wrong positive costs one
// extraction call with zero items.
func DetectRebateProposal(subject, body string, threshold float64) DetectResult {
	subject = strings.ToLower(subject)
	body = strings.ToLower(body)

	score := 0.0
	for _, kw := range proposalKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(body, kw) {
			score += 0.15
		}
	}

	dateHits := len(isoDatePattern.FindAllString(body, -1))
	if dateHits >= 2 {
		score += 0.2
	} else if dateHits == 1 {
		score += 0.1
	}

	if currencyPattern.MatchString(body) {
		score += 0.15
	}

	if score > 1 {
		score = 1
	}

	isProposal := score >= threshold
	reason := "rules_negative"
	if isProposal {
		reason = "rules_positive"
	}
	return DetectResult{IsProposal: isProposal, Score: score, Reason: reason}
}
