// Package report renders replay results for operators: a structured log
// line, a two-column summary CSV and an optional upload to object storage.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// multipartThreshold is the payload size above which uploads are split.
const multipartThreshold = 5 * 1024 * 1024

func rows(r domain.ReplayReport) [][2]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	i := func(v int64) string { return strconv.FormatInt(v, 10) }
	ts := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339Nano)
	}

	out := [][2]string{
		{"triangle", r.Triangle},
		{"updates_applied", i(r.UpdatesApplied)},
		{"updates_rejected", i(r.UpdatesRejected)},
		{"detections", i(r.Detections)},
		{"opportunities", i(r.Opportunities)},
		{"forward_count", i(r.ForwardCount)},
		{"reverse_count", i(r.ReverseCount)},
		{"total_profit", f(r.TotalProfit)},
		{"avg_profit_bps", f(r.AvgProfitBps)},
		{"first_update", ts(r.FirstUpdate)},
		{"last_update", ts(r.LastUpdate)},
		{"elapsed", r.Elapsed.String()},
	}
	if b := r.Best; b != nil {
		out = append(out,
			[2]string{"best_path", b.Opportunity.Path.String()},
			[2]string{"best_profit_bps", f(b.Opportunity.ProfitBps)},
			[2]string{"best_profit", f(b.Opportunity.ProfitAmount)},
			[2]string{"best_detected_at", ts(b.DetectedAt)},
		)
		for n, leg := range b.Legs {
			out = append(out, [2]string{
				fmt.Sprintf("best_leg%d", n+1),
				fmt.Sprintf("%s %s %s", leg.Symbol, leg.Side, f(leg.Price)),
			})
		}
	}
	return out
}

// WriteCSV writes the report as metric,value rows under a header.
func WriteCSV(w io.Writer, r domain.ReplayReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"metric", "value"}); err != nil {
		return fmt.Errorf("report: write csv: %w", err)
	}
	for _, row := range rows(r) {
		if err := cw.Write(row[:]); err != nil {
			return fmt.Errorf("report: write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: write csv: %w", err)
	}
	return nil
}

// Log emits the report as one structured record.
func Log(ctx context.Context, logger *slog.Logger, r domain.ReplayReport) {
	attrs := []slog.Attr{
		slog.String("triangle", r.Triangle),
		slog.Int64("updates_applied", r.UpdatesApplied),
		slog.Int64("updates_rejected", r.UpdatesRejected),
		slog.Int64("detections", r.Detections),
		slog.Int64("opportunities", r.Opportunities),
		slog.Int64("forward", r.ForwardCount),
		slog.Int64("reverse", r.ReverseCount),
		slog.Float64("total_profit", r.TotalProfit),
		slog.Float64("avg_profit_bps", r.AvgProfitBps),
		slog.Duration("elapsed", r.Elapsed),
	}
	if b := r.Best; b != nil {
		attrs = append(attrs, slog.Group("best",
			slog.String("path", b.Opportunity.Path.String()),
			slog.Float64("profit_bps", b.Opportunity.ProfitBps),
			slog.Time("detected_at", b.DetectedAt),
		))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "replay report", attrs...)
}

// ObjectKey names the uploaded summary: prefix/<triangle>/<UTC stamp>.csv.
func ObjectKey(prefix string, r domain.ReplayReport, at time.Time) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(r.Triangle)
	return path.Join(prefix, name, at.UTC().Format("20060102T150405Z")+".csv")
}

// Upload writes the CSV summary to blob under key.
func Upload(ctx context.Context, blob domain.BlobWriter, key string, r domain.ReplayReport) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, r); err != nil {
		return err
	}
	var err error
	if buf.Len() > multipartThreshold {
		err = blob.PutMultipart(ctx, key, &buf, multipartThreshold)
	} else {
		err = blob.Put(ctx, key, &buf, "text/csv")
	}
	if err != nil {
		return fmt.Errorf("report: upload %s: %w", key, err)
	}
	return nil
}
