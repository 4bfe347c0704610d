package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"rebatedesk/internal"
	"rebatedesk/internal/config"
	"rebatedesk/internal/events"
	"rebatedesk/internal/refdata"
	"rebatedesk/internal/storage"
)

// CandidateExtractor is the extraction-service boundary: subject and body
// text in, loosely typed candidate records out. An empty slice means the
// service found nothing structured; that is a valid outcome, not an error.
type CandidateExtractor interface {
	ExtractCandidates(ctx context.Context, subject, body string) ([]any, error)
}

type ProcessingService struct {
	db        *storage.DB
	cfg       config.Config
	extractor CandidateExtractor
	obs       events.Observer
}

func NewProcessingService(db *storage.DB, cfg config.Config, extractor CandidateExtractor, obs events.Observer) *ProcessingService {
	if obs == nil {
		obs = events.Discard
	}
	return &ProcessingService{db: db, cfg: cfg, extractor: extractor, obs: obs}
}

type ProcessResult struct {
	EmailID int
	Status  string
	Items   int
	Desired int
	Flagged int
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) (int, int, error) {
	pending, err := s.db.ListEmailsByStatus("fetched", limit)
	if err != nil {
		return 0, 0, err
	}
	processedEmails := 0
	processedItems := 0
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(ctx, email)
		if err != nil {
			return processedEmails, processedItems, err
		}
		processedEmails++
		processedItems += res.Items
	}
	return processedEmails, processedItems, nil
}

// ProcessEmail runs the full pipeline for one stored email: content
// extraction, sender check, proposal detection, candidate extraction,
// normalization, validation, lookup build and desirability evaluation.
// Validation issues are recorded but never block evaluation.
func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.EmailRow) (ProcessResult, error) {
	start := time.Now()
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	content, err := ExtractEmailContent(raw)
	if err != nil {
		return ProcessResult{}, err
	}

	if err := s.db.ClearEmailProcessing(email.ID); err != nil {
		return ProcessResult{}, err
	}

	if !s.senderKnown(email.Sender) {
		s.obs.Observe(events.Event{
			Stage:     events.StageDetect,
			Level:     events.LevelWarn,
			ItemIndex: -1,
			Message:   fmt.Sprintf("sender %q is not a known vendor address, rejected", email.Sender),
		})
		return s.finish(email.ID, "rejected", nil, nil, start)
	}

	subject := firstNonEmpty(content.Subject, email.Subject)
	detect := DetectRebateProposal(subject, content.Body, s.cfg.DetectThreshold)
	s.obs.Observe(events.Event{
		Stage:     events.StageDetect,
		Level:     events.LevelInfo,
		ItemIndex: -1,
		Message:   fmt.Sprintf("score=%.2f reason=%s", detect.Score, detect.Reason),
	})
	if !detect.IsProposal {
		return s.finish(email.ID, "skipped", nil, nil, start)
	}

	candidates, err := s.extractor.ExtractCandidates(ctx, subject, content.Body)
	if err != nil {
		return ProcessResult{}, err
	}
	s.obs.Observe(events.Event{
		Stage:     events.StageExtract,
		Level:     events.LevelInfo,
		ItemIndex: -1,
		Message:   fmt.Sprintf("extraction service returned %d candidate(s)", len(candidates)),
	})

	items := NormalizeCandidates(candidates, s.obs)

	codes, err := s.db.ListValidCodes()
	if err != nil {
		return ProcessResult{}, err
	}
	issues := ValidateItems(items, codes, s.obs)

	// The lookup is rebuilt from current reference data on every batch,
	// never cached across runs.
	refRows, err := s.db.ListReferenceRows()
	if err != nil {
		return ProcessResult{}, err
	}
	lookup := refdata.BuildLookup(refRows, s.cfg.ReferenceColumns(), s.obs)

	items = EvaluateItems(items, lookup, s.obs)

	if err := s.db.InsertRebateItems(email.ID, items); err != nil {
		return ProcessResult{}, err
	}
	if err := s.db.InsertItemIssues(email.ID, issues); err != nil {
		return ProcessResult{}, err
	}

	return s.finish(email.ID, "processed", items, issues, start)
}

func (s *ProcessingService) finish(emailID int, status string, items []internal.RebateItem, issues []internal.ItemIssues, start time.Time) (ProcessResult, error) {
	if err := s.db.UpdateEmailStatus(emailID, status); err != nil {
		return ProcessResult{}, err
	}

	desired := 0
	for _, item := range items {
		if item.IsDesired != nil && *item.IsDesired {
			desired++
		}
	}

	result := ProcessResult{
		EmailID: emailID,
		Status:  status,
		Items:   len(items),
		Desired: desired,
		Flagged: len(issues),
	}

	_ = s.db.InsertRun(traceID(), emailID,
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		map[string]int{"items": result.Items, "desired": result.Desired, "flagged": result.Flagged},
	)
	return result, nil
}

// senderKnown implements the known-vendor allow list. An empty list means
// the check is disabled.
func (s *ProcessingService) senderKnown(sender string) bool {
	if len(s.cfg.KnownSenders) == 0 {
		return true
	}
	lowered := strings.ToLower(sender)
	for _, known := range s.cfg.KnownSenders {
		if known != "" && strings.Contains(lowered, strings.ToLower(known)) {
			return true
		}
	}
	return false
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
