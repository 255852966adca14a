package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/triarb/internal/config"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/notify"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type memReplays struct {
	ids     []string
	reports []domain.ReplayReport
}

func (m *memReplays) InsertReplay(_ context.Context, id string, r domain.ReplayReport) error {
	m.ids = append(m.ids, id)
	m.reports = append(m.reports, r)
	return nil
}

func TestBuildTriangle(t *testing.T) {
	cfg := config.Defaults()
	tri, err := buildTriangle(cfg.Triangle)
	if err != nil {
		t.Fatal(err)
	}
	if tri.Name() != "ETH-USD/BTC-USD/ETH-BTC" {
		t.Fatalf("name = %q", tri.Name())
	}

	cfg.Triangle.CrossDirection = "sideways"
	if _, err := buildTriangle(cfg.Triangle); !errors.Is(err, domain.ErrInvalidTriangle) {
		t.Fatalf("bad cross direction: err = %v", err)
	}

	cfg = config.Defaults()
	cfg.Triangle.Pair2.MaxPrice = cfg.Triangle.Pair2.MinPrice - 1
	if _, err := buildTriangle(cfg.Triangle); err == nil {
		t.Fatal("inverted price range accepted")
	}
}

func TestReplayModeWritesAndStoresReport(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Mode = "replay"
	cfg.Replay.Pair1File = writeFile(t, dir, "eth_usd.csv",
		"timestamp,price,quantity,side\n1700000000000,3146.52,1,ask\n")
	cfg.Replay.Pair2File = writeFile(t, dir, "btc_usd.csv",
		"timestamp,price,quantity,side\n1700000000001,89903.62,1,bid\n")
	cfg.Replay.Pair3File = writeFile(t, dir, "eth_btc.csv",
		"timestamp,price,quantity,side\n1700000000002,0.03519046,1,bid\n1700000000003,0.5,1,bid\n")
	cfg.Replay.ReportDir = filepath.Join(dir, "out")

	replays := &memReplays{}
	deps := &Dependencies{
		Replays:  replays,
		Notifier: notify.NewNotifier(nil, nil, discard()),
	}
	a := New(&cfg, discard())
	if err := a.ReplayMode(context.Background(), deps); err != nil {
		t.Fatal(err)
	}

	if len(replays.reports) != 1 {
		t.Fatalf("stored reports = %d", len(replays.reports))
	}
	rep := replays.reports[0]
	if rep.UpdatesApplied != 3 || rep.UpdatesRejected != 1 {
		t.Fatalf("applied/rejected = %d/%d", rep.UpdatesApplied, rep.UpdatesRejected)
	}
	if rep.Opportunities != 1 || rep.ForwardCount != 1 || rep.Best == nil {
		t.Fatalf("report = %+v", rep)
	}
	if bps := rep.Best.Opportunity.ProfitBps; bps < 24 || bps > 25 {
		t.Fatalf("best profit = %.4f bps", bps)
	}

	if !strings.HasPrefix(replays.ids[0], "replay/ETH-USD_BTC-USD_ETH-BTC/") {
		t.Fatalf("report id = %q", replays.ids[0])
	}
	written := filepath.Join(cfg.Replay.ReportDir, filepath.FromSlash(replays.ids[0]))
	data, err := os.ReadFile(written)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "opportunities,1") {
		t.Fatalf("report csv:\n%s", data)
	}
}

type memBlobs map[string]string

func (m memBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s, ok := m[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(s)), nil
}

func TestLoadReplayInputFromBucket(t *testing.T) {
	sp := config.Defaults().Triangle.Pair1.Scale()
	blobs := memBlobs{"inputs/eth.csv": "ts,price,qty,side\n2024-01-01T00:00:00Z,3000.5,2,bid\n"}

	ups, err := loadReplayInput(context.Background(), blobs, "s3://inputs/eth.csv", 0, sp)
	if err != nil {
		t.Fatal(err)
	}
	if len(ups) != 1 || ups[0].Update.Price != 30_005_000 {
		t.Fatalf("updates = %+v", ups)
	}

	if _, err := loadReplayInput(context.Background(), blobs, "s3://missing.csv", 0, sp); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing object: err = %v", err)
	}
	if _, err := loadReplayInput(context.Background(), nil, "s3://inputs/eth.csv", 0, sp); err == nil {
		t.Fatal("s3 input without a reader accepted")
	}
}

func TestRunBench(t *testing.T) {
	tri, err := buildTriangle(config.Defaults().Triangle)
	if err != nil {
		t.Fatal(err)
	}
	results := runBench(tri, 2000, 200)
	if len(results) != 5 {
		t.Fatalf("results = %d", len(results))
	}
	for _, r := range results {
		if r.N != 2000 {
			t.Errorf("%s: n = %d", r.Op, r.N)
		}
		if r.P50 > r.P95 || r.P95 > r.P99 || r.P99 > r.Max {
			t.Errorf("%s: percentiles out of order: %+v", r.Op, r)
		}
	}
	for _, b := range tri.Books() {
		if _, ok := b.BestBid(); !ok {
			t.Errorf("%s has no bids after bench", b.Symbol())
		}
	}
}

func TestSummarise(t *testing.T) {
	s := make([]time.Duration, 100)
	for i := range s {
		s[len(s)-1-i] = time.Duration(i+1) * time.Microsecond
	}
	r := summarise("x", s)
	if r.P50 != 51*time.Microsecond || r.P99 != 99*time.Microsecond || r.Max != 100*time.Microsecond {
		t.Fatalf("summary = %+v", r)
	}
	if r.Mean != 50500*time.Nanosecond {
		t.Fatalf("mean = %v", r.Mean)
	}
	if empty := summarise("y", nil); empty.N != 0 || empty.Max != 0 {
		t.Fatalf("empty summary = %+v", empty)
	}
}

func TestRateWindow(t *testing.T) {
	if n, w := rateWindow(20, 40); n != 40 || w != 2*time.Second {
		t.Fatalf("rateWindow(20, 40) = %d, %v", n, w)
	}
	if n, w := rateWindow(5, 0); n != 1 || w != 200*time.Millisecond {
		t.Fatalf("rateWindow(5, 0) = %d, %v", n, w)
	}
	if n, _ := rateWindow(0, 10); n != 0 {
		t.Fatalf("disabled limit = %d", n)
	}
}
