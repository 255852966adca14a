package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

func newTestBookService(t *testing.T, interval time.Duration) *BookService {
	t.Helper()
	return NewBookService(testBooks(t), BookConfig{ViewDepth: 5, ViewInterval: interval}, nil, quietLogger())
}

func drainWake(s *BookService) bool {
	select {
	case <-s.Wake():
		return true
	default:
		return false
	}
}

func TestSnapshotSyncsEachPair(t *testing.T) {
	s := newTestBookService(t, 0)
	if s.Synced() {
		t.Fatal("fresh service should not be synced")
	}
	snaps := profitableSnapshots()
	for i := range snaps {
		s.Snapshot(i, snaps[i], time.Now())
		if want := i == 2; s.Synced() != want {
			t.Fatalf("after %d snapshots Synced() = %v, want %v", i+1, s.Synced(), want)
		}
	}
	if !drainWake(s) {
		t.Fatal("snapshot should wake the detector")
	}
	if drainWake(s) {
		t.Fatal("wake signals should coalesce")
	}

	v, ok := s.View("ETH-USD")
	if !ok || v.BestAsk == nil || *v.BestAsk != ethAsk || !v.Synced {
		t.Fatalf("ETH-USD view = %+v", v)
	}
	if len(v.Asks) != 1 || v.Asks[0].PriceDecimal != 3146.52 {
		t.Fatalf("asks = %+v", v.Asks)
	}
}

func TestSnapshotReplacesPreviousState(t *testing.T) {
	s := newTestBookService(t, 0)
	s.Snapshot(0, []domain.Update{domain.SetLevel(domain.Bid, 30_000_000, lot)}, time.Now())
	s.Snapshot(0, []domain.Update{domain.SetLevel(domain.Bid, 29_000_000, lot)}, time.Now())

	b := s.Books()[0]
	if _, ok := b.QuantityAt(30_000_000, domain.Bid); ok {
		t.Fatal("level from the previous snapshot survived")
	}
	if p, ok := b.BestBid(); !ok || p != 29_000_000 {
		t.Fatalf("best bid = %d, %v", p, ok)
	}
}

func TestApplyBeforeSnapshotIsDropped(t *testing.T) {
	s := newTestBookService(t, 0)
	s.Apply(1, []domain.Update{domain.SetLevel(domain.Bid, btcBid, lot)}, time.Now())
	if _, ok := s.Books()[1].BestBid(); ok {
		t.Fatal("update before snapshot was applied")
	}
	if drainWake(s) {
		t.Fatal("dropped batch should not wake the detector")
	}
}

func TestApplySkipsRejectedUpdates(t *testing.T) {
	s := newTestBookService(t, 0)
	s.Snapshot(1, nil, time.Now())
	drainWake(s)

	s.Apply(1, []domain.Update{
		domain.SetLevel(domain.Bid, 1, lot), // below range
		domain.SetLevel(domain.Bid, btcBid, -5),
		domain.SetLevel(domain.Bid, btcBid, lot),
	}, time.Now())

	if p, ok := s.Books()[1].BestBid(); !ok || p != btcBid {
		t.Fatalf("best bid = %d, %v; valid update should still apply", p, ok)
	}
	if !drainWake(s) {
		t.Fatal("applied batch should wake the detector")
	}
}

func TestDesyncClearsBook(t *testing.T) {
	s := newTestBookService(t, 0)
	s.Snapshot(2, profitableSnapshots()[2], time.Now())
	s.Desync(2)

	if _, ok := s.Books()[2].BestBid(); ok {
		t.Fatal("desync should clear the book")
	}
	v, _ := s.View("ETH-BTC")
	if v.Synced || v.BestBid != nil {
		t.Fatalf("view after desync = %+v", v)
	}
}

func TestViewsAreThrottled(t *testing.T) {
	s := newTestBookService(t, time.Hour)
	s.Snapshot(0, nil, time.Now())
	s.Apply(0, []domain.Update{domain.SetLevel(domain.Ask, ethAsk, lot)}, time.Now())

	v, _ := s.View("ETH-USD")
	if v.BestAsk != nil {
		t.Fatal("view refreshed inside the throttle interval")
	}
	if views := s.Views(); len(views) != 3 {
		t.Fatalf("Views() returned %d views, want 3", len(views))
	}
	if _, ok := s.View("DOGE-USD"); ok {
		t.Fatal("unknown symbol should have no view")
	}
}

func TestRunMirrorWritesTopOfBook(t *testing.T) {
	s := newTestBookService(t, 0)
	snaps := profitableSnapshots()
	for i := range snaps {
		s.Snapshot(i, snaps[i], time.Now())
	}

	cache := &fakeCache{}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.RunMirror(ctx, cache, 5*time.Millisecond) }()

	eventually(t, func() bool {
		top, err := cache.GetTop(ctx, "ETH-BTC")
		return err == nil && top.HasBid && top.BestBid == 0.03519046 && !top.HasAsk
	})
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("RunMirror() = %v, want context.Canceled", err)
	}
}
