package connectors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"

	"polecheck/internal"
	"polecheck/internal/storage"
)

// FetchService copies messages from a mailbox into the raw mail directory and
// queues them for processing.
type FetchService struct {
	db         *storage.DB
	connector  MailConnector
	rawMailDir string
}

type FetchResult struct {
	Fetched int
	Stored  int
	Skipped int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector) *FetchService {
	return &FetchService{db: db, connector: connector, rawMailDir: rawMailDir}
}

// FetchAndStore saves every fetched message and records it as pending.
// Messages already past the pending state are left alone.
func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		existing, err := s.db.GetEmailByProviderMessageID(msg.Provider, msg.MessageID)
		if err != nil {
			return res, err
		}
		if existing != nil && existing.Status != "fetched" {
			res.Skipped++
			continue
		}
		if _, err := s.Store(msg); err != nil {
			return res, err
		}
		res.Stored++
	}

	return res, nil
}

// Store writes msg as <sha256>.eml, once per distinct body, and upserts its
// email row with status "fetched".
func (s *FetchService) Store(msg internal.FetchedMailMessage) (internal.EmailRow, error) {
	sum := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(sum[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return internal.EmailRow{}, err
	}
	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.EmailRow{}, err
		}
	}

	return s.db.UpsertEmail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, "fetched")
}
