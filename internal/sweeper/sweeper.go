package sweeper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"polecheck/internal/config"
	"polecheck/internal/storage"
)

const lastRunKey = "sweeper.last_run"

// Sweeper expires uploads and processed artifacts once they outlive the TTL.
type Sweeper struct {
	db       *storage.DB
	dirs     []string
	ttl      time.Duration
	interval time.Duration
}

type Result struct {
	FilesRemoved     int
	ArtifactsExpired int
}

func New(db *storage.DB, cfg config.Config) *Sweeper {
	interval := time.Duration(cfg.SweepIntervalSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		db:       db,
		dirs:     []string{cfg.UploadsDir, cfg.ProcessedDir},
		ttl:      cfg.FileTTL(),
		interval: interval,
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.interval):
		}

		res, err := s.Sweep(time.Now())
		if err != nil {
			fmt.Printf("sweeper error: %v\n", err)
			continue
		}
		if res.FilesRemoved > 0 || res.ArtifactsExpired > 0 {
			fmt.Printf("sweeper done files=%d artifacts=%d\n", res.FilesRemoved, res.ArtifactsExpired)
		}
	}
}

// Sweep removes regular files modified before now-ttl and drops artifact rows
// created before the same cutoff. Files that vanish or cannot be removed are
// skipped.
func (s *Sweeper) Sweep(now time.Time) (Result, error) {
	cutoff := now.Add(-s.ttl)
	res := Result{}

	for _, dir := range s.dirs {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return res, err
		}
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
				res.FilesRemoved++
			}
		}
	}

	expired, err := s.db.ListArtifactsCreatedBefore(cutoff)
	if err != nil {
		return res, err
	}
	for _, artifact := range expired {
		for _, p := range []string{artifact.Path, artifact.XLSXPath} {
			if p == "" {
				continue
			}
			if err := os.Remove(p); err == nil {
				res.FilesRemoved++
			}
		}
		if err := s.db.DeleteArtifact(artifact.ID); err != nil {
			return res, err
		}
		res.ArtifactsExpired++
	}

	if err := s.db.SetMetadata(lastRunKey, now.UTC().Format(time.RFC3339)); err != nil {
		return res, err
	}
	return res, nil
}
