package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

func TestReadCSV(t *testing.T) {
	in := `timestamp,price,quantity,side,exchange
1700000000200,3000.25,1.5,bid,coinbase
1700000000100,3001.00,2,SELL
1700000000150,3000.00,1,trade
1700000000300,3002,0,ask
bad
`
	ups, err := ReadCSV(strings.NewReader(in), 2, testPair)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	want := []domain.TimedUpdate{
		{Pair: 2, Time: time.UnixMilli(1700000000100).UTC(), Update: domain.SetLevel(domain.Ask, 300_100, 200_000_000)},
		{Pair: 2, Time: time.UnixMilli(1700000000200).UTC(), Update: domain.SetLevel(domain.Bid, 300_025, 150_000_000)},
		{Pair: 2, Time: time.UnixMilli(1700000000300).UTC(), Update: domain.SetLevel(domain.Ask, 300_200, 0)},
	}
	if len(ups) != len(want) {
		t.Fatalf("got %d updates, want %d: %+v", len(ups), len(want), ups)
	}
	for i := range want {
		if !ups[i].Time.Equal(want[i].Time) || ups[i].Update != want[i].Update || ups[i].Pair != want[i].Pair {
			t.Errorf("update %d = %+v, want %+v", i, ups[i], want[i])
		}
	}
}

func TestReadCSVRFC3339(t *testing.T) {
	in := "time,price,size,side\n2024-03-01T12:00:00.5Z,3000,1,buy\n"
	ups, err := ReadCSV(strings.NewReader(in), 0, testPair)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	want := time.Date(2024, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	if len(ups) != 1 || !ups[0].Time.Equal(want) {
		t.Fatalf("got %+v, want one update at %v", ups, want)
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"timestamp", "yesterday,3000,1,bid", "line 2: timestamp"},
		{"price", "1,3000.x,1,bid", "line 2: price"},
		{"quantity", "1,3000,-1,bid", "line 2: quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader("h,h,h,h\n"+tt.row+"\n"), 0, testPair)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eth_usd.csv")
	if err := os.WriteFile(path, []byte("t,p,q,s\n1,3000,1,bid\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	ups, err := LoadCSV(path, 0, testPair)
	if err != nil || len(ups) != 1 {
		t.Fatalf("LoadCSV = %v, %v", ups, err)
	}
	if _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), 0, testPair); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestMergeIsStableAcrossPairs(t *testing.T) {
	at := func(ms int64) time.Time { return time.UnixMilli(ms) }
	a := []domain.TimedUpdate{{Pair: 0, Time: at(1)}, {Pair: 0, Time: at(3)}}
	b := []domain.TimedUpdate{{Pair: 1, Time: at(1)}, {Pair: 1, Time: at(2)}}
	c := []domain.TimedUpdate{{Pair: 2, Time: at(0)}}

	got := Merge(a, b, c)
	wantPairs := []int{2, 0, 1, 1, 0}
	if len(got) != len(wantPairs) {
		t.Fatalf("merged %d updates, want %d", len(got), len(wantPairs))
	}
	for i, p := range wantPairs {
		if got[i].Pair != p {
			t.Fatalf("order = %+v, want pairs %v", got, wantPairs)
		}
	}
}

func TestSyntheticStaysInRange(t *testing.T) {
	ups := Synthetic(0, testPair, 3000, 0.02, 1_000)
	if len(ups) != 2_000 {
		t.Fatalf("len = %d, want 2000", len(ups))
	}
	for i, u := range ups {
		if !testPair.Contains(u.Update.Price) {
			t.Fatalf("update %d price %d outside range", i, u.Update.Price)
		}
		if u.Update.Quantity <= 0 || u.Update.Quantity > testPair.MaxQuantity {
			t.Fatalf("update %d quantity %d invalid", i, u.Update.Quantity)
		}
		if i > 0 && u.Time.Before(ups[i-1].Time) {
			t.Fatalf("update %d goes back in time", i)
		}
	}
	if ups[0].Update.Side != domain.Bid || ups[1].Update.Side != domain.Ask {
		t.Fatal("updates should alternate bid then ask")
	}
}
