package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/triarb/internal/config"
	"github.com/alanyoungcy/triarb/internal/feed"
	"github.com/alanyoungcy/triarb/internal/notify"
	"github.com/alanyoungcy/triarb/internal/server"
	"github.com/alanyoungcy/triarb/internal/server/handler"
	"github.com/alanyoungcy/triarb/internal/server/middleware"
	"github.com/alanyoungcy/triarb/internal/server/ws"
	"github.com/alanyoungcy/triarb/internal/service"
)

// LiveMode runs one feed per pair, the detection loop, the top-of-book
// mirror and the monitoring server until ctx is cancelled.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	startedAt := time.Now().UTC()
	tri, err := buildTriangle(a.cfg.Triangle)
	if err != nil {
		return err
	}
	eng := a.cfg.Engine

	books := service.NewBookService(tri.Books(), service.BookConfig{
		ViewDepth:    eng.ViewDepth,
		ViewInterval: eng.ViewInterval.Duration,
	}, deps.Metrics, a.logger)
	arb := service.NewArbService(deps.Opportunities, deps.SignalBus, deps.Notifier, deps.Metrics, service.ArbConfig{
		Cooldown:     eng.NotifyCooldown.Duration,
		RecentSize:   eng.RecentSize,
		NotifyPerMin: eng.NotifyPerMin,
		NotifyBurst:  eng.NotifyBurst,
	}, a.logger)
	detection := service.NewDetectionService(tri, books, arb, deps.Metrics, eng.DetectInterval.Duration, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	sink := newAlertingSink(books, deps.Notifier, a.cfg.Triangle.Pairs(), a.logger)
	fc := feed.CoinbaseConfig{
		URL:              a.cfg.Feed.WSURL,
		Channel:          a.cfg.Feed.Channel,
		ReconnectMin:     a.cfg.Feed.ReconnectMin.Duration,
		ReconnectMax:     a.cfg.Feed.ReconnectMax.Duration,
		HeartbeatTimeout: a.cfg.Feed.HeartbeatTimeout.Duration,
		HandshakeTimeout: a.cfg.Feed.HandshakeTimeout.Duration,
	}
	for i, p := range a.cfg.Triangle.Pairs() {
		f := feed.NewCoinbaseFeed(fc, i, p.Scale(), sink, deps.Metrics, a.logger)
		g.Go(func() error { return f.Run(ctx) })
	}

	g.Go(func() error { return detection.Run(ctx) })

	if deps.BookCache != nil {
		g.Go(func() error { return books.RunMirror(ctx, deps.BookCache, eng.ViewInterval.Duration) })
	}

	if a.cfg.Server.Enabled {
		srv, hub := a.buildServer(deps, tri.Name(), books, arb, detection, startedAt)
		if hub != nil {
			g.Go(func() error { return hub.Run(ctx) })
		}
		g.Go(func() error { return srv.Run(ctx) })
	}

	a.logger.InfoContext(ctx, "live mode running",
		slog.String("triangle", tri.Name()),
		slog.Bool("server", a.cfg.Server.Enabled),
		slog.Bool("mirror", deps.BookCache != nil),
	)
	return g.Wait()
}

func (a *App) buildServer(deps *Dependencies, triangle string, books *service.BookService, arb *service.ArbService,
	detection *service.DetectionService, startedAt time.Time) (*server.Server, *ws.Hub) {
	sc := a.cfg.Server

	var hub *ws.Hub
	var stream handler.StreamReader
	if deps.SignalBus != nil {
		stream = deps.SignalBus
		hub = ws.NewHub(deps.SignalBus, ws.Config{
			Channels:  []string{service.ArbChannel},
			Mode:      a.cfg.Mode,
			Triangle:  triangle,
			StartedAt: startedAt,
		}, a.logger)
	}

	h := server.Handlers{
		Health: handler.NewHealthHandler(deps.Checks, a.logger),
		Status: handler.NewStatusHandler(a.cfg.Mode, triangle, books, detection, startedAt),
		Books:  handler.NewBookHandler(books),
		Arb:    handler.NewArbHandler(arb, stream, service.ArbStream, a.logger),
		Hub:    hub,
	}
	if deps.Metrics != nil {
		h.Metrics = deps.Metrics.Handler()
	}

	limit, window := rateWindow(sc.RatePerSec, sc.RateBurst)
	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewLocalLimiter()
	}
	return server.NewServer(server.Config{
		Port:        sc.Port,
		CORSOrigins: sc.CORSOrigins,
		APIKey:      sc.APIKey,
		RateLimit:   limit,
		RateWindow:  window,
	}, h, limiter, a.logger), hub
}

// rateWindow expresses a sustained rate and burst as "burst requests per
// window". A non-positive rate disables limiting.
func rateWindow(perSec float64, burst int) (int, time.Duration) {
	if perSec <= 0 {
		return 0, 0
	}
	burst = max(burst, 1)
	return burst, time.Duration(float64(burst) / perSec * float64(time.Second))
}

// alertingSink forwards to the book owner and raises a feed_resync alert
// when a synced pair drops, at most once a minute across all pairs.
type alertingSink struct {
	feed.Sink
	notifier *notify.Notifier
	symbols  [3]string
	limiter  *rate.Limiter
	logger   *slog.Logger
}

var _ feed.Sink = (*alertingSink)(nil)

func newAlertingSink(inner feed.Sink, n *notify.Notifier, pairs [3]config.PairConfig, logger *slog.Logger) *alertingSink {
	s := &alertingSink{
		Sink:     inner,
		notifier: n,
		limiter:  rate.NewLimiter(rate.Every(time.Minute), 1),
		logger:   logger,
	}
	for i, p := range pairs {
		s.symbols[i] = p.Symbol
	}
	return s
}

func (s *alertingSink) Desync(pair int) {
	s.Sink.Desync(pair)
	if !s.notifier.Enabled(notify.EventFeedResync) || !s.limiter.Allow() {
		return
	}
	symbol := s.symbols[pair]
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.Notify(ctx, notify.EventFeedResync,
			"Feed resync: "+symbol, symbol+" lost sync and is resubscribing"); err != nil {
			s.logger.Warn("feed resync alert failed", slog.String("error", err.Error()))
		}
	}()
}
