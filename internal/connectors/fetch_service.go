package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"rebatedesk/internal"
	"rebatedesk/internal/storage"
)

type FetchService struct {
	db         *storage.DB
	connector  MailConnector
	rawMailDir string
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector) *FetchService {
	return &FetchService{db: db, connector: connector, rawMailDir: rawMailDir}
}

func (s *FetchService) FetchAndStore(label, fromFilter string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(label, fromFilter, max)
	if err != nil {
		return FetchResult{}, err
	}

	stored := 0
	for _, msg := range messages {
		if _, err := s.store(msg); err != nil {
			return FetchResult{}, err
		}
		stored++
	}

	return FetchResult{Fetched: len(messages), Stored: stored}, nil
}

// store writes the raw message to disk keyed by content hash and records it
// with status "fetched". Re-fetching the same message is a no-op on disk and
// an upsert in the database.
func (s *FetchService) store(msg internal.FetchedMailMessage) (internal.EmailRow, error) {
	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return internal.EmailRow{}, err
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.EmailRow{}, err
		}
	}

	return s.db.UpsertEmail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, "fetched")
}
