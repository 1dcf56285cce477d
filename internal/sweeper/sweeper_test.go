package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polecheck/internal"
	"polecheck/internal/config"
	"polecheck/internal/storage"
)

func setup(t *testing.T) (*Sweeper, *storage.DB, config.Config) {
	t.Helper()
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		UploadsDir:       filepath.Join(tmp, "uploads"),
		ProcessedDir:     filepath.Join(tmp, "processed"),
		FileTTLMin:       60,
		SweepIntervalSec: 1,
	}
	require.NoError(t, os.MkdirAll(cfg.UploadsDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.ProcessedDir, 0o755))
	return New(db, cfg), db, cfg
}

func writeAged(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestSweep_RemovesExpiredFiles(t *testing.T) {
	s, db, cfg := setup(t)
	now := time.Now()

	oldUpload := filepath.Join(cfg.UploadsDir, "upload_old.kml")
	freshUpload := filepath.Join(cfg.UploadsDir, "upload_new.kml")
	oldCSV := filepath.Join(cfg.ProcessedDir, "pole_data_old.csv")
	writeAged(t, oldUpload, now.Add(-2*time.Hour))
	writeAged(t, freshUpload, now.Add(-10*time.Minute))
	writeAged(t, oldCSV, now.Add(-61*time.Minute))
	require.NoError(t, os.Mkdir(filepath.Join(cfg.UploadsDir, "nested"), 0o755))

	res, err := s.Sweep(now)
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesRemoved)

	assert.NoFileExists(t, oldUpload)
	assert.NoFileExists(t, oldCSV)
	assert.FileExists(t, freshUpload)
	assert.DirExists(t, filepath.Join(cfg.UploadsDir, "nested"))

	last, err := db.GetMetadata("sweeper.last_run")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, now.UTC().Format(time.RFC3339), *last)
}

func TestSweep_ExpiresArtifactRows(t *testing.T) {
	s, db, cfg := setup(t)
	now := time.Now()

	csvPath := filepath.Join(cfg.ProcessedDir, "pole_data_a.csv")
	writeAged(t, csvPath, now)

	_, err := db.InsertArtifact(internal.ArtifactRow{
		Filename: "pole_data_a.csv",
		Path:     csvPath,
		XLSXPath: filepath.Join(cfg.ProcessedDir, "pole_data_a.xlsx"),
		Source:   string(internal.SourceUpload),
	}, nil, now.Add(-3*time.Hour))
	require.NoError(t, err)
	_, err = db.InsertArtifact(internal.ArtifactRow{Filename: "pole_data_b.csv", Path: "/nonexistent", Source: "cli"}, nil, now)
	require.NoError(t, err)

	res, err := s.Sweep(now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ArtifactsExpired)
	assert.NoFileExists(t, csvPath)

	rows, err := db.ListArtifacts(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "pole_data_b.csv", rows[0].Filename)
}

func TestSweep_MissingDirectories(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	s := New(db, config.Config{UploadsDir: filepath.Join(tmp, "none"), FileTTLMin: 60})
	res, err := s.Sweep(time.Now())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
