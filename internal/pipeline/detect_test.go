package pipeline

import "testing"

func TestDetectRebateProposalPositive(t *testing.T) {
	subject := "Sell-out rebate proposal Q3"
	body := "We offer a rebate of €7,50 per unit for PX-789, valid 2025-07-01 to 2025-09-30."
	res := DetectRebateProposal(subject, body, 0.45)
	if !res.IsProposal {
		t.Fatalf("expected proposal, score=%.2f", res.Score)
	}
	if res.Reason != "rules_positive" {
		t.Fatalf("reason=%s", res.Reason)
	}
}

func TestDetectRebateProposalNegative(t *testing.T) {
	subject := "Monthly newsletter"
	body := "Here is what happened at our company this month. New office, new faces."
	res := DetectRebateProposal(subject, body, 0.45)
	if res.IsProposal {
		t.Fatalf("expected no proposal, score=%.2f", res.Score)
	}
	if res.Reason != "rules_negative" {
		t.Fatalf("reason=%s", res.Reason)
	}
}

func TestDetectScoreIsCapped(t *testing.T) {
	subject := "rebate korting discount refund claim"
	body := "rebate korting discount refund claim terugbetaling vergoeding sell-out actie € 2025-01-01 2025-02-01"
	res := DetectRebateProposal(subject, body, 0.45)
	if res.Score != 1 {
		t.Fatalf("score=%.2f", res.Score)
	}
}

func TestDetectDutchVocabulary(t *testing.T) {
	res := DetectRebateProposal("Korting actie", "Wij bieden een vergoeding van € 5 per stuk van 2025-03-01 tot 2025-04-01.", 0.45)
	if !res.IsProposal {
		t.Fatalf("expected proposal, score=%.2f", res.Score)
	}
}
