package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"weibalance/internal/jsonrpc"
)

// DefaultHandshakeTimeout bounds the WebSocket opening handshake when the
// dial context carries no earlier deadline.
const DefaultHandshakeTimeout = 10 * time.Second

var errConnClosed = errors.New("connection closed")

// WSClient owns a single WebSocket connection to an RPC endpoint and
// matches JSON-RPC responses to requests by id. It does not reconnect: once
// the connection drops every pending and future request fails.
type WSClient struct {
	endpoint string
	logger   zerolog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	pending   map[int64]chan *jsonrpc.Response
	pendingMu sync.Mutex
	reqID     int64
	closed    bool

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// DialWSClient opens the WebSocket connection and starts the reader goroutine
func DialWSClient(ctx context.Context, wsURL string, logger zerolog.Logger) (*WSClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: DefaultHandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect WebSocket: %w", err)
	}

	c := &WSClient{
		endpoint: redactURL(wsURL),
		logger:   logger,
		conn:     conn,
		pending:  make(map[int64]chan *jsonrpc.Response),
	}
	c.logger.Debug().Str("endpoint", c.endpoint).Msg("WebSocket connected")

	c.wg.Add(1)
	go c.readLoop()
	return c, nil
}

// Close closes the connection, fails pending requests and waits for the
// reader to exit. It is safe to call more than once.
func (c *WSClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()

		err = c.conn.Close()
		c.failPending()
		c.wg.Wait()
		c.logger.Debug().Str("endpoint", c.endpoint).Msg("WebSocket disconnected")
	})
	return err
}

// SendRequest sends an RPC request and waits for the response. The request
// id is replaced with a connection-local sequence number and restored on
// the returned response.
func (c *WSClient) SendRequest(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	reqID := atomic.AddInt64(&c.reqID, 1)
	respChan := make(chan *jsonrpc.Response, 1)

	c.pendingMu.Lock()
	if c.closed {
		c.pendingMu.Unlock()
		return nil, errConnClosed
	}
	c.pending[reqID] = respChan
	c.pendingMu.Unlock()

	wsReq := *req
	wsReq.ID = jsonrpc.NewIDInt(reqID)

	reqBytes, err := wsReq.Bytes()
	if err != nil {
		c.forget(reqID)
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	}
	writeErr := c.conn.WriteMessage(websocket.TextMessage, reqBytes)
	c.writeMu.Unlock()
	if writeErr != nil {
		c.forget(reqID)
		return nil, fmt.Errorf("failed to send request: %w", writeErr)
	}

	select {
	case resp := <-respChan:
		if resp == nil {
			return nil, errConnClosed
		}
		resp.ID = req.ID
		return resp, nil
	case <-ctx.Done():
		c.forget(reqID)
		return nil, ctx.Err()
	}
}

// Call sends method with params and decodes the result into result.
// A JSON-RPC error object from the node is returned as *jsonrpc.Error.
func (c *WSClient) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	req, err := jsonrpc.NewRequest(method, params, jsonrpc.NewIDNull())
	if err != nil {
		return err
	}

	resp, err := c.SendRequest(ctx, req)
	if err != nil {
		return err
	}
	if resp.HasError() {
		return resp.Error
	}
	if resp.ResultIsNull() {
		return fmt.Errorf("empty result for %s", method)
	}
	if err := resp.GetResultAs(result); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

func (c *WSClient) forget(reqID int64) {
	c.pendingMu.Lock()
	delete(c.pending, reqID)
	c.pendingMu.Unlock()
}

func (c *WSClient) failPending() {
	c.pendingMu.Lock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

func (c *WSClient) readLoop() {
	defer c.wg.Done()
	defer c.failPending()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Debug().Str("endpoint", c.endpoint).Err(err).Msg("WebSocket connection lost")
			}
			return
		}
		c.dispatchMessage(data)
	}
}

func (c *WSClient) dispatchMessage(data []byte) {
	var base struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		c.logger.Warn().
			Str("endpoint", c.endpoint).
			Err(err).
			Int("len", len(data)).
			Msg("ws message parse error")
		return
	}
	if base.Method != "" {
		// Notifications carry no id and are not expected on this connection.
		return
	}

	resp, err := jsonrpc.ParseResponse(data)
	if err != nil {
		return
	}
	reqID, ok := resp.ID.Int64()
	if !ok {
		return
	}

	c.pendingMu.Lock()
	ch, exists := c.pending[reqID]
	if exists {
		delete(c.pending, reqID)
	}
	c.pendingMu.Unlock()

	if exists {
		ch <- resp
	}
}
