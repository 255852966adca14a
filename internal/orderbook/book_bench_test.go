package orderbook

import (
	"math/rand"
	"testing"

	"github.com/alanyoungcy/triarb/internal/domain"
)

func benchBook(b *testing.B) *Book {
	b.Helper()
	book := newTestBook(b)
	for i := domain.Price(0); i < 200; i++ {
		mustSet(b, book, testMin+1000-i, domain.Quantity(i+1), domain.Bid)
		mustSet(b, book, testMin+1001+i, domain.Quantity(i+1), domain.Ask)
	}
	return book
}

func BenchmarkSetTopOfBook(b *testing.B) {
	book := benchBook(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = book.Set(testMin+1000, domain.Quantity(i&1023+1), domain.Bid)
	}
}

func BenchmarkRemoveBestAndRestore(b *testing.B) {
	book := benchBook(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = book.Remove(testMin+1001, domain.Ask)
		_ = book.Set(testMin+1001, 5, domain.Ask)
	}
}

func BenchmarkApplyRandom(b *testing.B) {
	book := benchBook(b)
	rng := rand.New(rand.NewSource(3))
	updates := make([]domain.Update, 4096)
	for i := range updates {
		side := domain.Side(rng.Intn(2))
		price := domain.Price(testMin + 900 + rng.Int63n(200))
		if rng.Intn(4) == 0 {
			updates[i] = domain.RemoveLevel(side, price)
		} else {
			updates[i] = domain.SetLevel(side, price, domain.Quantity(rng.Intn(100)+1))
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = book.Apply(updates[i&4095])
	}
}

func BenchmarkBestBid(b *testing.B) {
	book := benchBook(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = book.BestBid()
	}
}

func BenchmarkSpread(b *testing.B) {
	book := benchBook(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = book.Spread()
	}
}

func BenchmarkQuantityAt(b *testing.B) {
	book := benchBook(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = book.QuantityAt(testMin+950+domain.Price(i&63), domain.Bid)
	}
}

func BenchmarkAppendTopLevels(b *testing.B) {
	book := benchBook(b)
	buf := make([]domain.PriceLevel, 0, 10)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf = book.AppendTopLevels(buf[:0], domain.Ask, 10)
	}
}
