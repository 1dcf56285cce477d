package listener

import (
	"context"
	"fmt"
	"strings"
	"time"

	"polecheck/internal/config"
	"polecheck/internal/connectors"
	gmailconnector "polecheck/internal/connectors/gmail"
	imapconnector "polecheck/internal/connectors/imap"
	"polecheck/internal/pipeline"
	"polecheck/internal/storage"
)

// ConnectorFactory builds the mailbox connector for a provider name.
type ConnectorFactory func(ctx context.Context, provider string, cfg config.Config) (connectors.MailConnector, error)

type Service struct {
	db         *storage.DB
	cfg        config.Config
	newConnect ConnectorFactory
}

type CycleResult struct {
	Provider  string
	Fetched   int
	Stored    int
	Processed int
	Artifacts int
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg, newConnect: MakeConnector}
}

// WithConnectorFactory swaps how connectors are built.
func (s *Service) WithConnectorFactory(f ConnectorFactory) *Service {
	s.newConnect = f
	return s
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		res, err := s.RunCycle(ctx)
		if err != nil {
			fmt.Printf("listener cycle error: %v\n", err)
		} else {
			fmt.Printf("listener cycle done provider=%s fetched=%d stored=%d processed=%d artifacts=%d\n",
				res.Provider, res.Fetched, res.Stored, res.Processed, res.Artifacts)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunCycle fetches new mail for the configured provider and processes the
// pending backlog once.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	res := CycleResult{Provider: provider}

	mailConnector, err := s.newConnect(ctx, provider, s.cfg)
	if err != nil {
		return res, err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return res, err
	}
	res.Fetched = fetchResult.Fetched
	res.Stored = fetchResult.Stored

	processor := pipeline.NewProcessingService(s.db, s.cfg)
	res.Processed, res.Artifacts, err = processor.ProcessPending(s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return res, err
	}
	return res, nil
}

func MakeConnector(ctx context.Context, provider string, cfg config.Config) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}
