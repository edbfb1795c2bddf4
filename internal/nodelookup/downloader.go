// Package nodelookup adapts the teacher's astdb downloader and node-lookup
// cache into a component that enriches link names with the callsign and
// description AllStarLink's public node database carries, plus a
// negative-ID text-node naming scheme for Echolink/IAX peers that never
// appear in astdb.
package nodelookup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Entry is one parsed astdb record.
type Entry struct {
	Node        int
	Callsign    string
	Description string
	Location    string
	LastSeen    time.Time
}

// Store persists Entry rows; satisfied by a GORM-backed repository in
// production and an in-memory fake in tests.
type Store interface {
	BulkUpsert(ctx context.Context, entries []Entry, batchSize int) error
	DeleteStaleBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountStaleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Downloader fetches astdb.txt from the AllStarLink node-database mirror
// and imports it into a Store, same shape as the teacher's astdb
// downloader but against this repo's Entry/Store types instead of
// backend/models.NodeInfo directly.
type Downloader struct {
	URL         string
	FilePath    string
	UpdateHours int
	CleanupDays int

	logger *zap.Logger
	store  Store
}

// NewDownloader builds a Downloader with the teacher's defaults: daily
// refresh, one-week staleness cutoff.
func NewDownloader(url, filePath string, updateHours int, store Store, logger *zap.Logger) *Downloader {
	if url == "" {
		url = "http://allmondb.allstarlink.org/"
	}
	if updateHours <= 0 {
		updateHours = 24
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		URL: url, FilePath: filePath, UpdateHours: updateHours,
		CleanupDays: 7, store: store, logger: logger,
	}
}

// Download fetches the astdb file and atomically replaces FilePath.
func (d *Downloader) Download(ctx context.Context) error {
	d.logger.Info("downloading astdb", zap.String("url", d.URL), zap.String("dest", d.FilePath))

	tmpPath := d.FilePath + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("nodelookup: create temp file: %w", err)
	}
	defer func() { _ = tmpFile.Close() }()
	defer func() { _ = os.Remove(tmpPath) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return fmt.Errorf("nodelookup: build request: %w", err)
	}
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("nodelookup: http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nodelookup: http status %d", resp.StatusCode)
	}

	written, err := io.Copy(tmpFile, resp.Body)
	if err != nil {
		return fmt.Errorf("nodelookup: write file: %w", err)
	}
	d.logger.Info("downloaded astdb", zap.Int64("bytes", written))

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("nodelookup: close temp file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(d.FilePath), 0o755); err != nil {
		return fmt.Errorf("nodelookup: create directory: %w", err)
	}
	if err := os.Rename(tmpPath, d.FilePath); err != nil {
		return fmt.Errorf("nodelookup: rename file: %w", err)
	}
	return nil
}

// DownloadAndImport downloads then imports into the store, if one is set.
func (d *Downloader) DownloadAndImport(ctx context.Context) error {
	if err := d.Download(ctx); err != nil {
		return fmt.Errorf("nodelookup: download: %w", err)
	}
	if d.store == nil {
		d.logger.Info("no store configured, keeping file only")
		return nil
	}
	return d.ImportToStore(ctx)
}

// ParseFile streams and parses the pipe-delimited astdb format:
// NodeID|Callsign|Description|Location.
func ParseFile(r io.Reader, now time.Time) ([]Entry, int, int) {
	scanner := bufio.NewScanner(r)
	var entries []Entry
	lineCount, skipped := 0, 0
	for scanner.Scan() {
		lineCount++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			skipped++
			continue
		}
		node, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			skipped++
			continue
		}
		e := Entry{Node: node, Callsign: strings.TrimSpace(parts[1]), LastSeen: now}
		if len(parts) > 2 {
			e.Description = strings.TrimSpace(parts[2])
		}
		if len(parts) > 3 {
			e.Location = strings.TrimSpace(parts[3])
		}
		entries = append(entries, e)
	}
	return entries, lineCount, skipped
}

// ImportToStore parses FilePath and bulk-upserts into the configured
// store in 1000-row batches, then prunes stale rows.
func (d *Downloader) ImportToStore(ctx context.Context) error {
	if d.store == nil {
		return fmt.Errorf("nodelookup: no store configured")
	}
	file, err := os.Open(d.FilePath)
	if err != nil {
		return fmt.Errorf("nodelookup: open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	entries, lineCount, skipped := ParseFile(file, time.Now())
	d.logger.Info("parsed astdb", zap.Int("lines", lineCount), zap.Int("skipped", skipped), zap.Int("parsed", len(entries)))

	const batch = 1000
	for i := 0; i < len(entries); i += batch {
		end := i + batch
		if end > len(entries) {
			end = len(entries)
		}
		ictx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := d.store.BulkUpsert(ictx, entries[i:end], 500)
		cancel()
		if err != nil {
			return fmt.Errorf("nodelookup: bulk upsert: %w", err)
		}
	}

	if d.CleanupDays > 0 {
		if err := d.CleanupStale(ctx); err != nil {
			d.logger.Warn("cleanup failed", zap.Error(err))
		}
	}
	return nil
}

// CleanupStale removes entries not refreshed within CleanupDays.
func (d *Downloader) CleanupStale(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -d.CleanupDays)
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	count, err := d.store.CountStaleBefore(cctx, cutoff)
	if err != nil {
		return fmt.Errorf("nodelookup: count stale: %w", err)
	}
	if count == 0 {
		return nil
	}
	d.logger.Info("cleaning up stale nodes", zap.Int64("count", count))
	deleted, err := d.store.DeleteStaleBefore(cctx, cutoff)
	if err != nil {
		return fmt.Errorf("nodelookup: delete stale: %w", err)
	}
	d.logger.Info("deleted stale nodes", zap.Int64("deleted", deleted))
	return nil
}
