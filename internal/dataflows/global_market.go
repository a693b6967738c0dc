package dataflows

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/oak/crypto-sentinel/internal/model"
)

const coinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// GlobalMarket fetches the CoinGecko-shaped data the market-sentiment and
// macro analysts read: total market cap/volume, BTC/ETH dominance, the
// fear & greed index, trending coins, and major-coin performance.
type GlobalMarket struct {
	httpClient *http.Client
	baseURL    string
}

// NewGlobalMarket builds a GlobalMarket client against the public CoinGecko
// API (no key required for the endpoints this service reads).
func NewGlobalMarket() *GlobalMarket {
	return &GlobalMarket{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    coinGeckoBaseURL,
	}
}

func (g *GlobalMarket) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko %s: status %d", path, resp.StatusCode)
	}
	return body, nil
}

// FetchGlobalMarketData returns /global's data section: total market cap,
// total volume, and market cap percentage by coin (used for BTC/ETH
// dominance).
func (g *GlobalMarket) FetchGlobalMarketData(ctx context.Context) (map[string]any, error) {
	body, err := g.get(ctx, "/global")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch global market data: %w", err)
	}

	var parsed struct {
		Data map[string]any `json:"data"`
	}
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse global market data: %w", err)
	}
	return parsed.Data, nil
}

// FetchFearGreedIndex reads alternative.me's fear & greed index (the same
// source CoinGecko-adjacent dashboards use; CoinGecko itself has no
// equivalent endpoint).
func (g *GlobalMarket) FetchFearGreedIndex(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.alternative.me/fng/?limit=1", nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fear & greed index: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []map[string]any `json:"data"`
	}
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse fear & greed index: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("fear & greed index returned no data")
	}
	return parsed.Data[0], nil
}

// FetchTrendingCoins returns /search/trending's coin list.
func (g *GlobalMarket) FetchTrendingCoins(ctx context.Context) ([]map[string]any, error) {
	body, err := g.get(ctx, "/search/trending")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trending coins: %w", err)
	}

	var parsed struct {
		Coins []struct {
			Item map[string]any `json:"item"`
		} `json:"coins"`
	}
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse trending coins: %w", err)
	}

	coins := make([]map[string]any, 0, len(parsed.Coins))
	for _, c := range parsed.Coins {
		coins = append(coins, c.Item)
	}
	return coins, nil
}

var majorCoinIDs = []string{"bitcoin", "ethereum", "binancecoin", "solana", "ripple"}

// FetchMajorCoinsPerformance returns /coins/markets data for a fixed basket
// of large-cap coins.
func (g *GlobalMarket) FetchMajorCoinsPerformance(ctx context.Context) ([]map[string]any, error) {
	ids := ""
	for i, id := range majorCoinIDs {
		if i > 0 {
			ids += ","
		}
		ids += id
	}

	body, err := g.get(ctx, "/coins/markets?vs_currency=usd&ids="+ids+"&price_change_percentage=24h")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch major coins performance: %w", err)
	}

	var parsed []map[string]any
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse major coins performance: %w", err)
	}
	return parsed, nil
}

// FetchKline satisfies pipeline.MarketDataProvider by adapting GetOHLCV's
// Binance candles into model.Candle, using a fixed 1h timeframe and 14-day
// lookback; the configured CryptoLookbackDays is not read here.
func (m *MarketData) FetchKline(ctx context.Context, symbol string) ([]model.Candle, error) {
	ohlcv, err := m.GetOHLCV(ctx, symbol, "1h", 14)
	if err != nil {
		return nil, err
	}

	candles := make([]model.Candle, len(ohlcv))
	for i, c := range ohlcv {
		candles[i] = model.Candle{
			Timestamp: c.Timestamp,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
	}
	return candles, nil
}
