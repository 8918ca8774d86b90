package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"dexsync/internal/application/port"
	"dexsync/internal/domain/model"
)

// Client queries the remote ledger/indexer service. Each category is an
// independent sub-fetch with its own timeout; a failed category comes
// back empty and is reported in the batch's SourceErrors.
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

type balancesResp struct {
	Balances []struct {
		ChainID   string `json:"chainId"`
		Symbol    string `json:"symbol"`
		Denom     string `json:"denom"`
		Amount    string `json:"amount"`
		Available string `json:"available"`
		Locked    string `json:"locked"`
	} `json:"balances"`
}

type positionsResp struct {
	Positions []struct {
		PositionID    string `json:"positionId"`
		Market        string `json:"market"`
		Size          string `json:"size"`
		EntryPrice    string `json:"entryPrice"`
		UnrealizedPnl string `json:"unrealizedPnl"`
		Status        string `json:"status"`
		CreatedAt     int64  `json:"createdAt"`
		UpdatedAt     int64  `json:"updatedAt"`
	} `json:"positions"`
}

type addressResp struct {
	Subaccounts []struct {
		SubaccountNumber int `json:"subaccountNumber"`
	} `json:"subaccounts"`
}

type orderResp struct {
	OrderID       string `json:"orderId"`
	Market        string `json:"market"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Size          string `json:"size"`
	RemainingSize string `json:"remainingSize"`
	Price         string `json:"price"`
	Status        string `json:"status"`
	CreatedAt     int64  `json:"createdAt"`
}

type fillsResp struct {
	Fills []struct {
		FillID    string `json:"fillId"`
		OrderID   string `json:"orderId"`
		Market    string `json:"market"`
		Side      string `json:"side"`
		Size      string `json:"size"`
		Price     string `json:"price"`
		Fee       string `json:"fee"`
		CreatedAt int64  `json:"createdAt"`
	} `json:"fills"`
}

type transfersResp struct {
	Transfers []struct {
		TxHash      string `json:"txHash"`
		Type        string `json:"type"`
		Amount      string `json:"amount"`
		Denom       string `json:"denom"`
		Status      string `json:"status"`
		CreatedAt   int64  `json:"createdAt"`
		ConfirmedAt int64  `json:"confirmedAt"`
	} `json:"transfers"`
}

type marketsResp struct {
	Markets map[string]struct {
		Ticker                    string `json:"ticker"`
		StepSize                  string `json:"stepSize"`
		TickSize                  string `json:"tickSize"`
		MinOrderSize              string `json:"minOrderSize"`
		InitialMarginFraction     string `json:"initialMarginFraction"`
		MaintenanceMarginFraction string `json:"maintenanceMarginFraction"`
		Status                    string `json:"status"`
	} `json:"markets"`
}

// FetchAll fans out one sub-fetch per category and joins the results
// into a single batch. A sub-fetch failure never cancels the others.
func (c *Client) FetchAll(ctx context.Context, accountID, baseURL string) *model.Batch {
	base := c.baseURL
	if baseURL != "" {
		base = strings.TrimRight(baseURL, "/")
	}

	batch := &model.Batch{WalletAddress: accountID}
	var mu sync.Mutex
	var wg sync.WaitGroup

	run := func(category string, fetch func(ctx context.Context) ([]model.Record, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			recs, err := fetch(cctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("category", category).Str("account", accountID).Msg("sub-fetch failed")
				batch.SourceErrors = append(batch.SourceErrors, fmt.Sprintf("%s: %v", category, err))
				return
			}
			batch.Records = append(batch.Records, recs...)
		}()
	}

	run("balances", func(ctx context.Context) ([]model.Record, error) {
		return c.fetchBalances(ctx, base, accountID)
	})
	run("positions", func(ctx context.Context) ([]model.Record, error) {
		return c.fetchPositions(ctx, base, accountID)
	})
	run("orders", func(ctx context.Context) ([]model.Record, error) {
		return c.fetchOrders(ctx, base, accountID)
	})
	run("fills", func(ctx context.Context) ([]model.Record, error) {
		return c.fetchFills(ctx, base, accountID)
	})
	run("transfers", func(ctx context.Context) ([]model.Record, error) {
		return c.fetchTransfers(ctx, base, accountID)
	})
	run("markets", func(ctx context.Context) ([]model.Record, error) {
		return c.fetchMarkets(ctx, base)
	})

	wg.Wait()
	return batch
}

func (c *Client) fetchBalances(ctx context.Context, base, addr string) ([]model.Record, error) {
	var resp balancesResp
	if err := c.getJSON(ctx, base+"/v4/balances?address="+url.QueryEscape(addr), &resp); err != nil {
		return nil, err
	}
	recs := make([]model.Record, 0, len(resp.Balances))
	for _, b := range resp.Balances {
		amount := model.NormalizeAmount(b.Amount)
		available := b.Available
		if available == "" {
			// no breakdown from upstream: the full balance is available
			available = amount
		}
		recs = append(recs, model.Balance{
			WalletAddress: addr,
			ChainID:       b.ChainID,
			TokenSymbol:   b.Symbol,
			TokenDenom:    b.Denom,
			Amount:        amount,
			Available:     available,
			Locked:        model.NormalizeAmount(b.Locked),
		})
	}
	return recs, nil
}

func (c *Client) fetchPositions(ctx context.Context, base, addr string) ([]model.Record, error) {
	var resp positionsResp
	if err := c.getJSON(ctx, base+"/v4/perpetualPositions?address="+url.QueryEscape(addr), &resp); err != nil {
		return nil, err
	}
	recs := make([]model.Record, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		pos := model.Position{
			WalletAddress: addr,
			PositionID:    p.PositionID,
			Market:        p.Market,
			EntryPrice:    model.NormalizeAmount(p.EntryPrice),
			UnrealizedPnl: model.NormalizeAmount(p.UnrealizedPnl),
			Status:        p.Status,
			CreatedAt:     p.CreatedAt,
			UpdatedAt:     p.UpdatedAt,
		}
		if pos.Status == "" {
			pos.Status = model.PositionOpen
		}
		side, abs, err := model.SideFromSize(p.Size)
		if err != nil {
			// malformed size stays on the record and surfaces as a
			// per-record error downstream
			pos.Size = p.Size
		} else {
			pos.Side = side
			pos.Size = abs
		}
		recs = append(recs, pos)
	}
	return recs, nil
}

// fetchOrders resolves the account's subaccounts, then fetches orders
// per subaccount. One subaccount's failure is logged and skipped; the
// upstream cannot distinguish that from an empty subaccount.
func (c *Client) fetchOrders(ctx context.Context, base, addr string) ([]model.Record, error) {
	var ar addressResp
	if err := c.getJSON(ctx, base+"/v4/addresses/"+url.PathEscape(addr), &ar); err != nil {
		return nil, err
	}

	var recs []model.Record
	for _, sub := range ar.Subaccounts {
		u := fmt.Sprintf("%s/v4/orders?address=%s&subaccountNumber=%d", base, url.QueryEscape(addr), sub.SubaccountNumber)
		var orders []orderResp
		if err := c.getJSON(ctx, u, &orders); err != nil {
			log.Warn().Err(err).Str("account", addr).Int("subaccount", sub.SubaccountNumber).Msg("subaccount order fetch skipped")
			continue
		}
		for _, o := range orders {
			size := model.NormalizeAmount(o.Size)
			remaining := o.RemainingSize
			if remaining == "" {
				remaining = size
			}
			recs = append(recs, model.Order{
				OrderID:       o.OrderID,
				WalletAddress: addr,
				Market:        o.Market,
				Side:          o.Side,
				Type:          o.Type,
				Size:          size,
				RemainingSize: remaining,
				Price:         model.NormalizeAmount(o.Price),
				Status:        o.Status,
				CreatedAt:     o.CreatedAt,
			})
		}
	}
	return recs, nil
}

func (c *Client) fetchFills(ctx context.Context, base, addr string) ([]model.Record, error) {
	var resp fillsResp
	if err := c.getJSON(ctx, base+"/v4/fills?address="+url.QueryEscape(addr), &resp); err != nil {
		return nil, err
	}
	recs := make([]model.Record, 0, len(resp.Fills))
	for _, f := range resp.Fills {
		recs = append(recs, model.Fill{
			FillID:        f.FillID,
			WalletAddress: addr,
			OrderID:       f.OrderID,
			Market:        f.Market,
			Side:          f.Side,
			Size:          model.NormalizeAmount(f.Size),
			Price:         model.NormalizeAmount(f.Price),
			Fee:           model.NormalizeAmount(f.Fee),
			CreatedAt:     f.CreatedAt,
		})
	}
	return recs, nil
}

func (c *Client) fetchTransfers(ctx context.Context, base, addr string) ([]model.Record, error) {
	var resp transfersResp
	if err := c.getJSON(ctx, base+"/v4/transfers?address="+url.QueryEscape(addr), &resp); err != nil {
		return nil, err
	}
	recs := make([]model.Record, 0, len(resp.Transfers))
	for _, t := range resp.Transfers {
		recs = append(recs, model.Transfer{
			TxHash:        t.TxHash,
			WalletAddress: addr,
			Type:          t.Type,
			Amount:        model.NormalizeAmount(t.Amount),
			Denom:         t.Denom,
			Status:        t.Status,
			CreatedAt:     t.CreatedAt,
			ConfirmedAt:   t.ConfirmedAt,
		})
	}
	return recs, nil
}

func (c *Client) fetchMarkets(ctx context.Context, base string) ([]model.Record, error) {
	var resp marketsResp
	if err := c.getJSON(ctx, base+"/v4/perpetualMarkets", &resp); err != nil {
		return nil, err
	}
	recs := make([]model.Record, 0, len(resp.Markets))
	for key, m := range resp.Markets {
		id := m.Ticker
		if id == "" {
			id = key
		}
		recs = append(recs, model.Market{
			MarketID:                  id,
			StepSize:                  model.NormalizeAmount(m.StepSize),
			TickSize:                  model.NormalizeAmount(m.TickSize),
			MinOrderSize:              model.NormalizeAmount(m.MinOrderSize),
			InitialMarginFraction:     model.NormalizeAmount(m.InitialMarginFraction),
			MaintenanceMarginFraction: model.NormalizeAmount(m.MaintenanceMarginFraction),
			Status:                    m.Status,
		})
	}
	return recs, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("indexer http %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ port.Fetcher = (*Client)(nil)
