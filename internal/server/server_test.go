package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/server/handler"
	"github.com/alanyoungcy/triarb/internal/server/middleware"
)

type fakeBooks struct{ views []domain.BookView }

func (f fakeBooks) Views() []domain.BookView { return f.views }
func (f fakeBooks) Synced() bool             { return true }
func (f fakeBooks) View(symbol string) (domain.BookView, bool) {
	for _, v := range f.views {
		if v.Symbol == symbol {
			return v, true
		}
	}
	return domain.BookView{}, false
}

type fakeArb struct {
	recs  []domain.OpportunityRecord
	limit int
	err   error
}

func (f *fakeArb) ListRecent(_ context.Context, limit int) ([]domain.OpportunityRecord, error) {
	f.limit = limit
	return f.recs, f.err
}

type fakeStream struct {
	msgs  []domain.StreamMessage
	after string
}

func (f *fakeStream) StreamRead(_ context.Context, _ string, lastID string, _ int) ([]domain.StreamMessage, error) {
	f.after = lastID
	return f.msgs, nil
}

func newTestServer(t *testing.T, cfg Config, arb *fakeArb, stream *fakeStream, checks map[string]handler.Check) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bid := domain.Price(31_465_000)
	books := fakeBooks{views: []domain.BookView{
		{Symbol: "ETH-USD", BestBid: &bid, Synced: true},
		{Symbol: "BTC-USD"},
	}}
	var sr handler.StreamReader
	if stream != nil {
		sr = stream
	}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "triarb_up 1\n")
	})
	h := Handlers{
		Health:  handler.NewHealthHandler(checks, logger),
		Status:  handler.NewStatusHandler("live", "ETH/BTC/USD", books, nil, time.Now()),
		Books:   handler.NewBookHandler(books),
		Arb:     handler.NewArbHandler(arb, sr, "stream:arb", logger),
		Metrics: metrics,
	}
	return NewServer(cfg, h, middleware.NewLocalLimiter(), logger).Handler()
}

func do(t *testing.T, h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBooksEndpoints(t *testing.T) {
	h := newTestServer(t, Config{}, &fakeArb{}, nil, nil)

	rec := do(t, h, http.MethodGet, "/api/books", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Books []domain.BookView `json:"books"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Books) != 2 || list.Books[0].BestBid == nil || *list.Books[0].BestBid != 31_465_000 {
		t.Fatalf("books = %+v", list.Books)
	}

	rec = do(t, h, http.MethodGet, "/api/books/eth-usd", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if rec = do(t, h, http.MethodGet, "/api/books/DOGE-USD", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown symbol status = %d", rec.Code)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatal("missing request id")
	}
}

func TestOpportunitiesRecentLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"?limit=5", 5},
		{"?limit=5000", 200},
		{"?limit=-1", 20},
		{"?limit=abc", 20},
	}
	for _, tt := range tests {
		arb := &fakeArb{}
		h := newTestServer(t, Config{}, arb, nil, nil)
		rec := do(t, h, http.MethodGet, "/api/opportunities/recent"+tt.query, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%q: status = %d", tt.query, rec.Code)
		}
		if arb.limit != tt.want {
			t.Errorf("%q: limit = %d, want %d", tt.query, arb.limit, tt.want)
		}
		if body := rec.Body.String(); body != `{"opportunities":[]}` {
			t.Errorf("%q: body = %s", tt.query, body)
		}
	}
}

func TestOpportunitiesRecentError(t *testing.T) {
	h := newTestServer(t, Config{}, &fakeArb{err: errors.New("db down")}, nil, nil)
	if rec := do(t, h, http.MethodGet, "/api/opportunities/recent", nil); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestOpportunityStream(t *testing.T) {
	h := newTestServer(t, Config{}, &fakeArb{}, nil, nil)
	if rec := do(t, h, http.MethodGet, "/api/opportunities/stream", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("no stream status = %d", rec.Code)
	}

	stream := &fakeStream{msgs: []domain.StreamMessage{
		{ID: "1-0", Payload: []byte(`{"id":"a"}`)},
		{ID: "2-0", Payload: []byte(`not json`)},
		{ID: "3-0", Payload: []byte(`{"id":"b"}`)},
	}}
	h = newTestServer(t, Config{}, &fakeArb{}, stream, nil)
	rec := do(t, h, http.MethodGet, "/api/opportunities/stream?after=0-5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if stream.after != "0-5" {
		t.Fatalf("after = %q", stream.after)
	}
	var resp struct {
		Entries []struct {
			ID string `json:"id"`
		} `json:"entries"`
		Next string `json:"next"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Entries) != 2 || resp.Next != "3-0" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestHealthReportsFailingChecks(t *testing.T) {
	checks := map[string]handler.Check{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("refused") },
	}
	h := newTestServer(t, Config{APIKey: "secret"}, &fakeArb{}, nil, checks)
	rec := do(t, h, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "degraded" || resp.Checks["redis"] != "ok" || resp.Checks["postgres"] != "refused" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestAuth(t *testing.T) {
	h := newTestServer(t, Config{APIKey: "secret"}, &fakeArb{}, nil, nil)
	tests := []struct {
		name   string
		target string
		hdr    map[string]string
		want   int
	}{
		{"missing", "/api/books", nil, http.StatusUnauthorized},
		{"wrong", "/api/books", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"bearer", "/api/books", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"header", "/api/status", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"health is public", "/api/health", nil, http.StatusOK},
		{"metrics is public", "/metrics", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodGet, tt.target, tt.hdr); rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, Config{RateLimit: 2, RateWindow: time.Hour}, &fakeArb{}, nil, nil)
	hdr := map[string]string{"X-Forwarded-For": "10.0.0.1"}
	for i := range 2 {
		if rec := do(t, h, http.MethodGet, "/api/status", hdr); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := do(t, h, http.MethodGet, "/api/status", hdr)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("third request status = %d", rec.Code)
	}
	other := map[string]string{"X-Forwarded-For": "10.0.0.2"}
	if rec := do(t, h, http.MethodGet, "/api/status", other); rec.Code != http.StatusOK {
		t.Fatalf("other client status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, Config{CORSOrigins: []string{"https://dash.example"}, APIKey: "secret"}, &fakeArb{}, nil, nil)
	rec := do(t, h, http.MethodOptions, "/api/books", map[string]string{"Origin": "https://dash.example"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example" {
		t.Fatalf("allow origin = %q", got)
	}
	rec = do(t, h, http.MethodOptions, "/api/books", map[string]string{"Origin": "https://evil.example"})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("disallowed origin echoed: %q", got)
	}
}
