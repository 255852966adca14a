package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/feed"
	"github.com/alanyoungcy/triarb/internal/notify"
	"github.com/alanyoungcy/triarb/internal/report"
	"github.com/alanyoungcy/triarb/internal/scale"
	"github.com/alanyoungcy/triarb/internal/service"
)

// s3Scheme marks a replay input stored in the configured bucket.
const s3Scheme = "s3://"

// ReplayMode replays the three CSV histories through the books and detector,
// then logs, writes, stores, uploads and announces the report.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	tri, err := buildTriangle(a.cfg.Triangle)
	if err != nil {
		return err
	}

	pairs := a.cfg.Triangle.Pairs()
	var streams [3][]domain.TimedUpdate
	for i, path := range a.cfg.Replay.Files() {
		streams[i], err = loadReplayInput(ctx, deps.BlobReader, path, i, pairs[i].Scale())
		if err != nil {
			return fmt.Errorf("app: replay input pair%d: %w", i+1, err)
		}
		a.logger.InfoContext(ctx, "replay input loaded",
			slog.String("symbol", pairs[i].Symbol),
			slog.String("path", path),
			slog.Int("updates", len(streams[i])),
		)
	}
	updates := feed.Merge(streams[:]...)

	rep, err := service.NewReplayService(tri, deps.Metrics, a.logger).Run(ctx, updates)
	if err != nil {
		return fmt.Errorf("app: replay: %w", err)
	}
	report.Log(ctx, a.logger, rep)

	key := report.ObjectKey(a.cfg.Replay.ReportPrefix, rep, time.Now())
	if err := a.writeLocalReport(key, rep); err != nil {
		return err
	}
	if deps.Replays != nil {
		if err := deps.Replays.InsertReplay(ctx, key, rep); err != nil {
			return fmt.Errorf("app: store replay report: %w", err)
		}
	}
	if a.cfg.Replay.UploadReport && deps.BlobWriter != nil {
		if err := report.Upload(ctx, deps.BlobWriter, key, rep); err != nil {
			return fmt.Errorf("app: upload replay report: %w", err)
		}
		a.logger.InfoContext(ctx, "replay report uploaded", slog.String("key", key))
	}

	title, body := notify.ReplayMessage(rep)
	if err := deps.Notifier.Notify(ctx, notify.EventReplayDone, title, body); err != nil {
		a.logger.WarnContext(ctx, "replay notification failed", slog.String("error", err.Error()))
	}
	return nil
}

func (a *App) writeLocalReport(key string, rep domain.ReplayReport) error {
	if a.cfg.Replay.ReportDir == "" {
		return nil
	}
	path := filepath.Join(a.cfg.Replay.ReportDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("app: create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("app: create report: %w", err)
	}
	if err := report.WriteCSV(f, rep); err != nil {
		f.Close()
		return fmt.Errorf("app: write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("app: close report: %w", err)
	}
	a.logger.Info("replay report written", slog.String("path", path))
	return nil
}

// loadReplayInput reads a local CSV, or an object when path starts with
// s3:// (the key is everything after the scheme).
func loadReplayInput(ctx context.Context, blobs domain.BlobReader, path string, pair int, sp scale.Pair) ([]domain.TimedUpdate, error) {
	key, remote := strings.CutPrefix(path, s3Scheme)
	if !remote {
		return feed.LoadCSV(path, pair, sp)
	}
	if blobs == nil {
		return nil, fmt.Errorf("%s requires s3 to be enabled", path)
	}
	body, err := blobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return feed.ReadCSV(body, pair, sp)
}
