package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/scale"
)

// LoadCSV reads a historical update file for one pair. The first row is a
// header. Each row is timestamp,price,quantity,side with optional trailing
// columns. Rows with an unrecognised side are skipped; unparsable numbers
// fail the load. The result is ordered by timestamp.
func LoadCSV(path string, pair int, sp scale.Pair) ([]domain.TimedUpdate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed: load csv: %w", err)
	}
	defer f.Close()

	ups, err := ReadCSV(f, pair, sp)
	if err != nil {
		return nil, fmt.Errorf("feed: load csv %s: %w", path, err)
	}
	return ups, nil
}

// ReadCSV is LoadCSV over an arbitrary reader.
func ReadCSV(r io.Reader, pair int, sp scale.Pair) ([]domain.TimedUpdate, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var out []domain.TimedUpdate
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 || len(rec) < 4 {
			continue
		}

		side, ok := domain.ParseSide(rec[3])
		if !ok {
			continue
		}
		ts, err := parseTimestamp(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: timestamp: %w", line, err)
		}
		price, err := sp.ParsePrice(rec[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: price: %w", line, err)
		}
		qty, err := sp.ParseQuantity(rec[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: quantity: %w", line, err)
		}
		out = append(out, domain.TimedUpdate{
			Pair:   pair,
			Time:   ts,
			Update: domain.SetLevel(side, price, qty),
		})
	}

	slices.SortStableFunc(out, func(a, b domain.TimedUpdate) int {
		return a.Time.Compare(b.Time)
	})
	return out, nil
}

// Merge interleaves per-pair streams by timestamp. Ties keep argument order,
// so the first stream wins.
func Merge(streams ...[]domain.TimedUpdate) []domain.TimedUpdate {
	n := 0
	for _, s := range streams {
		n += len(s)
	}
	out := make([]domain.TimedUpdate, 0, n)
	for _, s := range streams {
		out = append(out, s...)
	}
	slices.SortStableFunc(out, func(a, b domain.TimedUpdate) int {
		return a.Time.Compare(b.Time)
	})
	return out
}

// parseTimestamp accepts integer unix milliseconds or RFC 3339.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
