// Package brokerage wraps the Binance USDT-M futures account, position, and
// order endpoints behind the shapes spec.md §6 names, grounded on the
// teacher's internal/executors/binance_executor.go client construction and
// field parsing (NewClient, proxy wiring, GetAccountSummary/GetCurrentPosition).
package brokerage

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/bytedance/sonic"

	"github.com/oak/crypto-sentinel/internal/config"
	"github.com/oak/crypto-sentinel/internal/logger"
)

// Client talks to Binance USDT-M perpetual futures.
type Client struct {
	client *futures.Client
	log    *logger.ColorLogger
}

// New builds a brokerage Client, wiring the optional HTTP proxy the same
// way the teacher's BinanceExecutor does.
func New(cfg *config.Config, log *logger.ColorLogger) *Client {
	futures.UseTestnet = cfg.BinanceTestMode
	client := futures.NewClient(cfg.BinanceAPIKey, cfg.BinanceAPISecret)

	if cfg.BinanceProxy != "" {
		if proxyURL, err := url.Parse(cfg.BinanceProxy); err == nil {
			client.HTTPClient = &http.Client{
				Transport: &http.Transport{
					Proxy:           http.ProxyURL(proxyURL),
					TLSClientConfig: &tls.Config{InsecureSkipVerify: false},
				},
				Timeout: 30 * time.Second,
			}
		} else {
			log.Warning(fmt.Sprintf("代理 URL 解析失败: %v，将不使用代理", err))
		}
	}

	return &Client{client: client, log: log}
}

// AccountBalance is the §6 getAccountBalance response shape.
type AccountBalance struct {
	Success               bool         `json:"success"`
	AccountType           string       `json:"account_type"`
	TotalWalletBalance    float64      `json:"total_wallet_balance"`
	AvailableBalance      float64      `json:"available_balance"`
	TotalUnrealizedProfit float64      `json:"total_unrealized_profit"`
	TotalMarginBalance    float64      `json:"total_margin_balance"`
	USDTBalance           *USDTBalance `json:"usdt_balance,omitempty"`
	Error                 string       `json:"error,omitempty"`
}

// USDTBalance is the nested per-asset balance the §6 shape names.
type USDTBalance struct {
	Balance          float64 `json:"balance"`
	AvailableBalance float64 `json:"available_balance"`
}

// GetAccountBalance fetches the futures account snapshot.
func (c *Client) GetAccountBalance(ctx context.Context) AccountBalance {
	account, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return AccountBalance{Success: false, Error: err.Error()}
	}

	total, _ := strconv.ParseFloat(account.TotalWalletBalance, 64)
	avail, _ := strconv.ParseFloat(account.AvailableBalance, 64)
	unrealized, _ := strconv.ParseFloat(account.TotalUnrealizedProfit, 64)
	margin, _ := strconv.ParseFloat(account.TotalMarginBalance, 64)

	usdt := &USDTBalance{Balance: total, AvailableBalance: avail}
	for _, asset := range account.Assets {
		if asset.Asset == "USDT" {
			balance, _ := strconv.ParseFloat(asset.WalletBalance, 64)
			available, _ := strconv.ParseFloat(asset.AvailableBalance, 64)
			usdt = &USDTBalance{Balance: balance, AvailableBalance: available}
			break
		}
	}

	return AccountBalance{
		Success:               true,
		AccountType:           "USDT_FUTURES",
		TotalWalletBalance:    total,
		AvailableBalance:      avail,
		TotalUnrealizedProfit: unrealized,
		TotalMarginBalance:    margin,
		USDTBalance:           usdt,
	}
}

// Position is one open futures position, filtered to positionAmt != 0.
type Position struct {
	Symbol           string  `json:"symbol"`
	PositionSide     string  `json:"position_side"`
	PositionAmt      float64 `json:"position_amt"`
	EntryPrice       float64 `json:"entry_price"`
	MarkPrice        float64 `json:"mark_price"`
	UnrealizedProfit float64 `json:"unrealized_profit"`
	Leverage         int     `json:"leverage"`
	LiquidationPrice float64 `json:"liquidation_price"`
}

// Positions is the §6 getCurrentPositions response shape.
type Positions struct {
	Success       bool       `json:"success"`
	Positions     []Position `json:"positions"`
	PositionCount int        `json:"position_count"`
	Error         string     `json:"error,omitempty"`
}

// GetCurrentPositions returns every open position (positionAmt != 0).
func (c *Client) GetCurrentPositions(ctx context.Context) Positions {
	risks, err := c.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return Positions{Success: false, Error: err.Error()}
	}

	var out []Position
	for _, r := range risks {
		amt, _ := strconv.ParseFloat(r.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(r.EntryPrice, 64)
		mark, _ := strconv.ParseFloat(r.MarkPrice, 64)
		unrealized, _ := strconv.ParseFloat(r.UnRealizedProfit, 64)
		liquidation, _ := strconv.ParseFloat(r.LiquidationPrice, 64)
		leverage, _ := strconv.Atoi(r.Leverage)

		side := "LONG"
		if amt < 0 {
			side = "SHORT"
		}

		out = append(out, Position{
			Symbol:           r.Symbol,
			PositionSide:     side,
			PositionAmt:      amt,
			EntryPrice:       entry,
			MarkPrice:        mark,
			UnrealizedProfit: unrealized,
			Leverage:         leverage,
			LiquidationPrice: liquidation,
		})
	}

	return Positions{Success: true, Positions: out, PositionCount: len(out)}
}

// AccountBalanceJSON implements internal/pipeline.AccountProvider, giving
// the trader role a JSON account snapshot without that package importing
// brokerage types directly.
func (c *Client) AccountBalanceJSON(ctx context.Context) string {
	data, err := sonic.MarshalString(c.GetAccountBalance(ctx))
	if err != nil {
		return `{"success":false,"error":"marshal failed"}`
	}
	return data
}

// CurrentPositionsJSON implements internal/pipeline.AccountProvider.
func (c *Client) CurrentPositionsJSON(ctx context.Context) string {
	data, err := sonic.MarshalString(c.GetCurrentPositions(ctx))
	if err != nil {
		return `{"success":false,"error":"marshal failed"}`
	}
	return data
}

// OrderResult is the brokerage response for placeFuturesOrder, passed back
// to the caller as-is per spec.md §6.
type OrderResult struct {
	Success bool   `json:"success"`
	OrderID int64  `json:"order_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PlaceFuturesOrder places a market or limit order. price is only used when
// orderType is "LIMIT".
func (c *Client) PlaceFuturesOrder(ctx context.Context, symbol, side string, quantity float64, orderType, price string) OrderResult {
	if orderType == "" {
		orderType = "MARKET"
	}

	svc := c.client.NewCreateOrderService().
		Symbol(symbol).
		Side(futures.SideType(side)).
		Type(futures.OrderType(orderType)).
		Quantity(fmt.Sprintf("%.8f", quantity))

	if orderType == "LIMIT" && price != "" {
		svc = svc.Price(price).TimeInForce(futures.TimeInForceTypeGTC)
	}

	order, err := svc.Do(ctx)
	if err != nil {
		c.log.Error(fmt.Sprintf("下单失败: %v", err))
		return OrderResult{Success: false, Error: err.Error()}
	}

	return OrderResult{Success: true, OrderID: order.OrderID, Status: string(order.Status)}
}
