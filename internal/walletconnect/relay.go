package walletconnect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Relay publish tags for the sign protocol.
const (
	tagSessionProposeResponse = 1101
	tagSessionSettle          = 1102
	tagSessionRequestResponse = 1109
)

// Relay message TTLs in seconds.
const (
	ttlResponse = 300
	ttlSettle   = 86400
)

const relayCallTimeout = 30 * time.Second

// relayInbound is a message received on a subscribed topic, still sealed.
type relayInbound struct {
	Topic   string
	Message string
}

type relayRequest struct {
	ID      int64  `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type relayResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

type relayFrame struct {
	ID      int64           `json:"id"`
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type subscriptionParams struct {
	ID   string `json:"id"`
	Data struct {
		Topic   string `json:"topic"`
		Message string `json:"message"`
	} `json:"data"`
}

// relayClient is a JSON-RPC client over a single relay websocket.
type relayClient struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[int64]chan relayResponse

	nextID atomic.Int64

	incoming chan relayInbound
	done     chan struct{}
	closeOne sync.Once
}

// dialRelay connects to the relay endpoint. The project ID authenticates
// the client with public relay infrastructure.
func dialRelay(ctx context.Context, relayURL, projectID string) (*relayClient, error) {
	endpoint := fmt.Sprintf("%s?projectId=%s", relayURL, projectID)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}

	r := &relayClient{
		conn:     conn,
		pending:  make(map[int64]chan relayResponse),
		incoming: make(chan relayInbound, 64),
		done:     make(chan struct{}),
	}
	r.nextID.Store(time.Now().UnixMicro())

	go r.readLoop()

	return r, nil
}

// Messages returns the stream of sealed messages from subscribed topics.
func (r *relayClient) Messages() <-chan relayInbound {
	return r.incoming
}

// Subscribe registers interest in a topic.
func (r *relayClient) Subscribe(ctx context.Context, topic string) error {
	_, err := r.call(ctx, "irn_subscribe", map[string]any{"topic": topic})
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	return nil
}

// Unsubscribe drops interest in a topic.
func (r *relayClient) Unsubscribe(ctx context.Context, topic string) error {
	_, err := r.call(ctx, "irn_unsubscribe", map[string]any{"topic": topic})
	if err != nil {
		return fmt.Errorf("failed to unsubscribe from topic %s: %w", topic, err)
	}
	return nil
}

// Publish sends a sealed message to a topic.
func (r *relayClient) Publish(ctx context.Context, topic, message string, ttl, tag int) error {
	_, err := r.call(ctx, "irn_publish", map[string]any{
		"topic":   topic,
		"message": message,
		"ttl":     ttl,
		"tag":     tag,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// Close tears down the websocket and fails all in-flight calls.
func (r *relayClient) Close() error {
	var err error
	r.closeOne.Do(func() {
		close(r.done)
		err = r.conn.Close()
	})
	return err
}

// call performs one JSON-RPC request/response exchange.
func (r *relayClient) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := r.nextID.Add(1)
	respCh := make(chan relayResponse, 1)

	r.pendingMu.Lock()
	r.pending[id] = respCh
	r.pendingMu.Unlock()

	defer func() {
		r.pendingMu.Lock()
		delete(r.pending, id)
		r.pendingMu.Unlock()
	}()

	if err := r.write(relayRequest{ID: id, JSONRPC: "2.0", Method: method, Params: params}); err != nil {
		return nil, err
	}

	timeout := time.NewTimer(relayCallTimeout)
	defer timeout.Stop()

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, fmt.Errorf("relay error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout.C:
		return nil, fmt.Errorf("relay call %s timed out", method)
	case <-r.done:
		return nil, fmt.Errorf("relay connection closed")
	}
}

func (r *relayClient) write(v any) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("failed to write to relay: %w", err)
	}
	return nil
}

// readLoop dispatches inbound frames: subscription events go to the
// incoming channel, everything else resolves a pending call.
func (r *relayClient) readLoop() {
	defer close(r.incoming)

	for {
		var frame relayFrame
		if err := r.conn.ReadJSON(&frame); err != nil {
			select {
			case <-r.done:
			default:
				slog.Error("relay read failed", "error", err)
				r.Close()
			}
			return
		}

		if frame.Method == "irn_subscription" {
			var params subscriptionParams
			if err := json.Unmarshal(frame.Params, &params); err != nil {
				slog.Warn("malformed relay subscription event", "error", err)
				continue
			}

			// Ack so the relay does not redeliver.
			if err := r.write(map[string]any{"id": frame.ID, "jsonrpc": "2.0", "result": true}); err != nil {
				slog.Warn("failed to ack relay subscription event", "error", err)
			}

			select {
			case r.incoming <- relayInbound{Topic: params.Data.Topic, Message: params.Data.Message}:
			case <-r.done:
				return
			}
			continue
		}

		r.pendingMu.Lock()
		respCh, ok := r.pending[frame.ID]
		r.pendingMu.Unlock()
		if !ok {
			slog.Debug("relay response for unknown call", "id", frame.ID)
			continue
		}
		respCh <- relayResponse{ID: frame.ID, Result: frame.Result, Error: frame.Error}
	}
}
