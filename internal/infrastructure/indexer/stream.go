package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"dexsync/internal/domain/model"
)

// BatchSink receives incremental batches decoded off the stream.
type BatchSink func(ctx context.Context, account string, batch *model.Batch)

// Stream subscribes to the indexer's per-account channels and turns
// channel updates into small ledger batches. Fetch remains the source
// of truth; the stream only shortens the staleness window.
type Stream struct {
	wsURL    string
	accounts []string
	sink     BatchSink
}

func NewStream(wsURL string, accounts []string, sink BatchSink) *Stream {
	return &Stream{
		wsURL:    strings.TrimSpace(wsURL),
		accounts: accounts,
		sink:     sink,
	}
}

type subscribeReq struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	ID      string `json:"id"`
}

type streamMsg struct {
	Type     string          `json:"type"`
	ID       string          `json:"id"`
	Contents json.RawMessage `json:"contents"`
	Message  string          `json:"message,omitempty"`
}

// Run connects, subscribes, and reconnects with exponential backoff
// until the context is done.
func (s *Stream) Run(ctx context.Context) error {
	if s.wsURL == "" {
		return errors.New("stream ws_url empty")
	}
	if len(s.accounts) == 0 {
		return errors.New("stream has no accounts to subscribe")
	}

	backoff := 500 * time.Millisecond
	maxBackoff := 10 * time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		log.Info().Str("url", s.wsURL).Int("accounts", len(s.accounts)).Msg("stream connecting")
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		conn, _, err := websocket.DefaultDialer.DialContext(cctx, s.wsURL, nil)
		cancel()
		if err != nil {
			log.Error().Err(err).Msg("stream dial failed")
			time.Sleep(backoff)
			backoff = minDur(backoff*2, maxBackoff)
			continue
		}

		subscribed := true
		for _, acct := range s.accounts {
			if err := conn.WriteJSON(subscribeReq{Type: "subscribe", Channel: "v4_subaccounts", ID: acct}); err != nil {
				log.Error().Err(err).Str("account", acct).Msg("stream subscribe failed")
				subscribed = false
				break
			}
		}
		if !subscribed {
			_ = conn.Close()
			time.Sleep(backoff)
			backoff = minDur(backoff*2, maxBackoff)
			continue
		}

		backoff = 500 * time.Millisecond
		log.Info().Msg("stream connected")

		err = readLoop(ctx, conn, func(b []byte) {
			s.handleMessage(ctx, b)
		})
		_ = conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("stream disconnected, reconnecting")
		time.Sleep(backoff)
		backoff = minDur(backoff*2, maxBackoff)
	}
}

func (s *Stream) handleMessage(ctx context.Context, b []byte) {
	var msg streamMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		log.Error().Err(err).Msg("stream message unmarshal failed")
		return
	}

	switch msg.Type {
	case "subscribed", "connected":
		return
	case "error":
		log.Error().Str("message", msg.Message).Msg("stream error message")
		return
	case "channel_data":
	default:
		return
	}
	if msg.ID == "" || len(msg.Contents) == 0 {
		return
	}

	var contents struct {
		Fills     []fillUpdate     `json:"fills"`
		Orders    []orderResp      `json:"orders"`
		Transfers []transferUpdate `json:"transfers"`
	}
	if err := json.Unmarshal(msg.Contents, &contents); err != nil {
		log.Error().Err(err).Msg("stream contents unmarshal failed")
		return
	}

	batch := &model.Batch{WalletAddress: msg.ID}
	for _, f := range contents.Fills {
		batch.Add(model.Fill{
			FillID:        f.FillID,
			WalletAddress: msg.ID,
			OrderID:       f.OrderID,
			Market:        f.Market,
			Side:          f.Side,
			Size:          model.NormalizeAmount(f.Size),
			Price:         model.NormalizeAmount(f.Price),
			Fee:           model.NormalizeAmount(f.Fee),
			CreatedAt:     f.CreatedAt,
		})
	}
	for _, o := range contents.Orders {
		size := model.NormalizeAmount(o.Size)
		remaining := o.RemainingSize
		if remaining == "" {
			remaining = size
		}
		batch.Add(model.Order{
			OrderID:       o.OrderID,
			WalletAddress: msg.ID,
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
	for _, t := range contents.Transfers {
		batch.Add(model.Transfer{
			TxHash:        t.TxHash,
			WalletAddress: msg.ID,
			Type:          t.Type,
			Amount:        model.NormalizeAmount(t.Amount),
			Denom:         t.Denom,
			Status:        t.Status,
			CreatedAt:     t.CreatedAt,
			ConfirmedAt:   t.ConfirmedAt,
		})
	}

	if len(batch.Records) > 0 {
		s.sink(ctx, msg.ID, batch)
	}
}

type fillUpdate struct {
	FillID    string `json:"fillId"`
	OrderID   string `json:"orderId"`
	Market    string `json:"market"`
	Side      string `json:"side"`
	Size      string `json:"size"`
	Price     string `json:"price"`
	Fee       string `json:"fee"`
	CreatedAt int64  `json:"createdAt"`
}

type transferUpdate struct {
	TxHash      string `json:"txHash"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Denom       string `json:"denom"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
	ConfirmedAt int64  `json:"confirmedAt"`
}

func readLoop(ctx context.Context, conn *websocket.Conn, onMsg func([]byte)) error {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(25 * time.Second)
	defer pingTicker.Stop()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			onMsg(b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		}
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
