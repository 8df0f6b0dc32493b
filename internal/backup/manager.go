package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/studsched/studsched-bot/internal/logger"
	"github.com/studsched/studsched-bot/internal/storage"
)

// Manager periodically uploads a compressed database snapshot and can
// restore the last one onto an empty data directory.
type Manager struct {
	store    ObjectStore
	key      string
	interval time.Duration
	tempDir  string
	log      *logger.Logger
}

// NewManager creates a snapshot manager. tempDir defaults to the OS temp
// directory.
func NewManager(store ObjectStore, key string, interval time.Duration, tempDir string, log *logger.Logger) *Manager {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Manager{
		store:    store,
		key:      key,
		interval: interval,
		tempDir:  tempDir,
		log:      log.WithModule("backup"),
	}
}

// RestoreIfMissing downloads and decompresses the latest snapshot when no
// database file exists yet. A missing remote snapshot means a fresh start,
// not an error.
func (m *Manager) RestoreIfMissing(ctx context.Context, dbPath string) error {
	if _, err := os.Stat(dbPath); err == nil {
		m.log.WithField("path", dbPath).Debug("database exists, skipping restore")
		return nil
	}

	body, err := m.store.Download(ctx, m.key)
	if errors.Is(err, ErrNotFound) {
		m.log.Info("no remote snapshot, starting with an empty database")
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	defer body.Close()

	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("restore snapshot: create data dir: %w", err)
		}
	}
	if err := DecompressStream(body, dbPath); err != nil {
		// A half-written file must not be opened as the live database.
		_ = os.Remove(dbPath)
		return fmt.Errorf("restore snapshot: %w", err)
	}

	m.log.WithField("path", dbPath).Info("database restored from snapshot")
	return nil
}

// UploadSnapshot takes a consistent copy of the database, compresses it and
// uploads it under the configured key.
func (m *Manager) UploadSnapshot(ctx context.Context, db *storage.DB) error {
	runID := uuid.NewString()
	snapshotPath := filepath.Join(m.tempDir, fmt.Sprintf("studsched_%s.db", runID))
	compressedPath := snapshotPath + ".zst"
	defer os.Remove(snapshotPath)
	defer os.Remove(compressedPath)

	if err := db.CreateSnapshot(ctx, snapshotPath); err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}
	if err := CompressFile(snapshotPath, compressedPath); err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}

	compressed, err := os.Open(compressedPath)
	if err != nil {
		return fmt.Errorf("upload snapshot: open compressed file: %w", err)
	}
	defer compressed.Close()

	size, _ := compressed.Seek(0, io.SeekEnd)
	if _, err := compressed.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("upload snapshot: rewind: %w", err)
	}

	if err := m.store.Upload(ctx, m.key, compressed, "application/zstd"); err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}

	m.log.WithFields(map[string]any{
		"snapshot_id":      runID,
		"compressed_bytes": size,
	}).Info("snapshot uploaded")
	return nil
}

// Run uploads snapshots on the configured interval until ctx is cancelled,
// then takes one final snapshot so a shutdown never loses more than the
// last few seconds of writes.
func (m *Manager) Run(ctx context.Context, db *storage.DB) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.WithField("interval", m.interval.String()).Info("snapshot loop started")
	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := m.UploadSnapshot(finalCtx, db); err != nil {
				m.log.WithError(err).Error("final snapshot failed")
			}
			m.log.Info("snapshot loop stopped")
			return
		case <-ticker.C:
			if err := m.UploadSnapshot(ctx, db); err != nil {
				m.log.WithError(err).Error("periodic snapshot failed")
			}
		}
	}
}
