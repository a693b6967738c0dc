package indicators

import (
	"math"
	"testing"
)

func syntheticCloses(n int) []float64 {
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		if i%2 == 0 {
			price += 1.5
		} else {
			price -= 0.5
		}
		closes[i] = price
	}
	return closes
}

func TestComputeNoNaNInLastRows(t *testing.T) {
	closes := syntheticCloses(60)
	snap := Compute(closes)

	rows := snap.LastComplete(closes, 10)
	if len(rows) != 10 {
		t.Fatalf("LastComplete() returned %d rows, want 10", len(rows))
	}
	for _, i := range rows {
		if math.IsNaN(snap.SMA20[i]) || math.IsNaN(snap.SMA50[i]) || math.IsNaN(snap.RSI14[i]) ||
			math.IsNaN(snap.MACD[i]) || math.IsNaN(snap.Signal[i]) {
			t.Fatalf("row %d contains NaN", i)
		}
	}
}

func TestRSIBounds(t *testing.T) {
	closes := syntheticCloses(60)
	values := rsi(closes, 14)
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if v < 0 || v > 100 {
			t.Fatalf("rsi[%d] = %f, out of [0,100] bounds", i, v)
		}
	}
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = float64(i)
	}
	values := rsi(closes, 14)
	if values[29] != 100 {
		t.Fatalf("rsi for monotone increasing series = %f, want 100", values[29])
	}
}

func TestFormatTableEmptyWhenInsufficientData(t *testing.T) {
	closes := syntheticCloses(10)
	snap := Compute(closes)
	got := snap.FormatTable(closes, 10)
	if got != "（无完整指标行）" {
		t.Fatalf("FormatTable() = %q, want fallback string", got)
	}
}
