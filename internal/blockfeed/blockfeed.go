// Package blockfeed watches an EVM node's newHeads subscription so a
// long-running caller can invalidate per-block caches (price, base fee) the
// moment a new block lands (spec.md §5: "Writes to these caches use
// last-writer-wins semantics"). The reconnect-with-backoff loop is adapted
// from defistate-defistate-client-go/streams/jsonrpc/client's Client.run;
// the wire transport itself is adapted from the teacher's
// monitorSolanaAccounts, which dials a raw gorilla/websocket connection
// instead of a higher-level RPC subscription helper.
package blockfeed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/longtrieuuit/defi-arbitrage/internal/logging"
)

const (
	initialReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay     = 30 * time.Second
)

// Watcher maintains a newHeads subscription against an EVM websocket
// endpoint and invokes a callback with each new block number.
type Watcher struct {
	wsURL string
	log   logging.Logger
}

// New returns a Watcher for the given websocket RPC endpoint. log may be
// nil, in which case logging.Nop is used.
func New(wsURL string, log logging.Logger) *Watcher {
	if log == nil {
		log = logging.Nop
	}
	return &Watcher{wsURL: wsURL, log: log}
}

// Run blocks, dialing wsURL and reconnecting with exponential backoff on any
// failure, until ctx is cancelled. onHead is invoked once per new block
// header with its block number.
func (w *Watcher) Run(ctx context.Context, onHead func(blockNumber uint64)) error {
	delay := initialReconnectDelay

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		w.log.Info("connecting to block feed", "url", w.wsURL)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.wsURL, nil)
		if err != nil {
			w.log.Warn("block feed dial failed, retrying", "error", err, "delay", delay)
			if !sleep(ctx, delay) {
				return ctx.Err()
			}
			delay = nextDelay(delay)
			continue
		}

		delay = initialReconnectDelay
		err = w.subscribeAndProcess(ctx, conn, onHead)
		conn.Close()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			w.log.Warn("block feed subscription failed, reconnecting", "error", err, "delay", delay)
			if !sleep(ctx, delay) {
				return ctx.Err()
			}
			delay = nextDelay(delay)
		}
	}
}

type subscribeRequest struct {
	JSONRPC string   `json:"jsonrpc"`
	ID      int      `json:"id"`
	Method  string   `json:"method"`
	Params  []string `json:"params"`
}

type subscribeConfirmation struct {
	ID     int    `json:"id"`
	Result string `json:"result"`
}

type subscriptionNotification struct {
	Method string `json:"method"`
	Params struct {
		Subscription string `json:"subscription"`
		Result       struct {
			Number string `json:"number"`
		} `json:"result"`
	} `json:"params"`
}

func (w *Watcher) subscribeAndProcess(ctx context.Context, conn *websocket.Conn, onHead func(blockNumber uint64)) error {
	req := subscribeRequest{JSONRPC: "2.0", ID: 1, Method: "eth_subscribe", Params: []string{"newHeads"}}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("blockfeed: subscribing: %w", err)
	}

	var confirm subscribeConfirmation
	if err := conn.ReadJSON(&confirm); err != nil {
		return fmt.Errorf("blockfeed: reading subscription confirmation: %w", err)
	}
	if confirm.Result == "" {
		return fmt.Errorf("blockfeed: subscription rejected")
	}

	done := make(chan error, 1)
	go func() {
		for {
			var notif subscriptionNotification
			if err := conn.ReadJSON(&notif); err != nil {
				done <- err
				return
			}
			if notif.Method != "eth_subscription" {
				continue
			}
			blockNumber, err := parseHexUint64(notif.Params.Result.Number)
			if err != nil {
				w.log.Warn("block feed received unparseable header", "error", err)
				continue
			}
			onHead(blockNumber)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func parseHexUint64(hex string) (uint64, error) {
	hex = strings.TrimPrefix(hex, "0x")
	return strconv.ParseUint(hex, 16, 64)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > maxReconnectDelay {
		return maxReconnectDelay
	}
	return d
}
