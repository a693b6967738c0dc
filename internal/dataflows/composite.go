package dataflows

// Composite joins MarketData (Binance klines) and GlobalMarket (CoinGecko
// global/fear-greed/trending data) behind the single five-method interface
// internal/pipeline.MarketDataProvider expects. The two concrete types come
// from separate upstreams (an exchange and a data aggregator) and were kept
// separate rather than merged, since MarketData still exposes methods
// (raw OHLCV, funding rate) the pipeline never needs.
type Composite struct {
	*MarketData
	*GlobalMarket
}

// NewComposite wires a MarketData and GlobalMarket pair into one
// pipeline.MarketDataProvider.
func NewComposite(market *MarketData, global *GlobalMarket) *Composite {
	return &Composite{MarketData: market, GlobalMarket: global}
}
