// Package indicators computes the technical indicator set the technical
// analyst role reports on, following the teacher's hand-rolled math.Stdlib
// style in internal/dataflows rather than pulling in a TA library the pack
// never uses.
package indicators

import (
	"fmt"
	"math"
	"strings"
)

// Snapshot holds one indicator value per closing-price index, aligned with
// the input series. Entries before a window has filled are NaN.
type Snapshot struct {
	SMA20  []float64
	SMA50  []float64
	RSI14  []float64
	MACD   []float64
	Signal []float64
}

// Compute builds the full indicator set over a closing-price series.
func Compute(closes []float64) *Snapshot {
	return &Snapshot{
		SMA20:  sma(closes, 20),
		SMA50:  sma(closes, 50),
		RSI14:  rsi(closes, 14),
		MACD:   macd(closes),
		Signal: signalLine(macd(closes), 9),
	}
}

func sma(data []float64, period int) []float64 {
	out := make([]float64, len(data))
	for i := range out {
		out[i] = math.NaN()
	}
	for i := period - 1; i < len(data); i++ {
		var sum float64
		for j := i - period + 1; j <= i; j++ {
			sum += data[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// rsi computes RSI using a simple rolling mean of gains and losses over the
// window, not Wilder's exponential smoothing.
func rsi(data []float64, period int) []float64 {
	out := make([]float64, len(data))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(data) <= period {
		return out
	}

	gains := make([]float64, len(data))
	losses := make([]float64, len(data))
	for i := 1; i < len(data); i++ {
		delta := data[i] - data[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	for i := period; i < len(data); i++ {
		var gainSum, lossSum float64
		for j := i - period + 1; j <= i; j++ {
			gainSum += gains[j]
			lossSum += losses[j]
		}
		avgGain := gainSum / float64(period)
		avgLoss := lossSum / float64(period)

		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - (100 / (1 + rs))
	}
	return out
}

func ema(data []float64, period int) []float64 {
	out := make([]float64, len(data))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(data) < period {
		return out
	}

	var seed float64
	for i := 0; i < period; i++ {
		seed += data[i]
	}
	seed /= float64(period)
	out[period-1] = seed

	k := 2.0 / (float64(period) + 1)
	for i := period; i < len(data); i++ {
		out[i] = data[i]*k + out[i-1]*(1-k)
	}
	return out
}

func macd(closes []float64) []float64 {
	fast := ema(closes, 12)
	slow := ema(closes, 26)
	out := make([]float64, len(closes))
	for i := range out {
		if math.IsNaN(fast[i]) || math.IsNaN(slow[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = fast[i] - slow[i]
	}
	return out
}

// signalLine is the EMA-9 of the MACD line, skipping leading NaNs.
func signalLine(macdLine []float64, period int) []float64 {
	out := make([]float64, len(macdLine))
	for i := range out {
		out[i] = math.NaN()
	}

	start := -1
	for i, v := range macdLine {
		if !math.IsNaN(v) {
			start = i
			break
		}
	}
	if start == -1 || len(macdLine)-start < period {
		return out
	}

	window := macdLine[start:]
	windowEMA := ema(window, period)
	for i, v := range windowEMA {
		out[start+i] = v
	}
	return out
}

// LastComplete returns the indices of the last n rows (timestamp-ordered)
// of the snapshot for which every field is non-NaN; it returns indices
// only, not the rows' closing prices.
func (s *Snapshot) LastComplete(closes []float64, n int) []int {
	var complete []int
	for i := range closes {
		if math.IsNaN(s.SMA20[i]) || math.IsNaN(s.SMA50[i]) || math.IsNaN(s.RSI14[i]) ||
			math.IsNaN(s.MACD[i]) || math.IsNaN(s.Signal[i]) {
			continue
		}
		complete = append(complete, i)
	}
	if len(complete) > n {
		complete = complete[len(complete)-n:]
	}
	return complete
}

// FormatTable renders the last n complete rows as a markdown-style table for
// inclusion in an LLM user message.
func (s *Snapshot) FormatTable(closes []float64, n int) string {
	rows := s.LastComplete(closes, n)
	if len(rows) == 0 {
		return "（无完整指标行）"
	}

	var sb strings.Builder
	sb.WriteString("| idx | close | SMA20 | SMA50 | RSI14 | MACD | Signal |\n")
	sb.WriteString("|---|---|---|---|---|---|---|\n")
	for _, i := range rows {
		fmt.Fprintf(&sb, "| %d | %.4f | %.4f | %.4f | %.2f | %.4f | %.4f |\n",
			i, closes[i], s.SMA20[i], s.SMA50[i], s.RSI14[i], s.MACD[i], s.Signal[i])
	}
	return sb.String()
}
