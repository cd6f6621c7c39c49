package companion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/selene-app/selene/internal/chart"
	"github.com/selene-app/selene/internal/config"
	"github.com/selene-app/selene/internal/domain"
	"github.com/selene-app/selene/internal/events"
	"github.com/selene-app/selene/internal/protocol"
)

var (
	// ErrNoAPIKey means the capability probe reported that the backend has
	// no usable credential. Connecting again without one cannot succeed.
	ErrNoAPIKey = errors.New("backend has no API key configured")
	// ErrNotConnected means an operation needed an open socket.
	ErrNotConnected = errors.New("companion is not connected")
)

const (
	probeTimeout         = 5 * time.Second
	defaultInsightWindow = 3 * time.Second
)

// apiKeyStatus is the capability probe response shape.
type apiKeyStatus struct {
	HasAPIKey bool `json:"has_api_key"`
}

// Client owns the companion socket: connect, capability check, reconnect
// with backoff, heartbeat, and teardown. No other component holds the
// socket handle.
type Client struct {
	cfg   *config.Config
	http  *http.Client
	conv  *Conversation
	disp  *Dispatcher
	state *chart.Store

	reconnect     *reconnector
	insightWindow time.Duration

	mu         sync.Mutex
	conn       *websocket.Conn
	connecting bool
	sessionID  string
	readCancel context.CancelFunc
}

// NewClient wires a client to the chart store and event bus. The returned
// client starts disconnected; call Connect to open the channel.
func NewClient(cfg *config.Config, state *chart.Store, bus *events.Bus) *Client {
	conv := NewConversation()
	c := &Client{
		cfg:           cfg,
		http:          &http.Client{Timeout: probeTimeout},
		conv:          conv,
		state:         state,
		reconnect:     newReconnector(cfg.Reconnect.BaseDelay, cfg.Reconnect.MaxDelay, cfg.Reconnect.MaxRetries),
		insightWindow: defaultInsightWindow,
	}
	c.disp = NewDispatcher(state, bus, conv)
	c.disp.report = c.reportToolCall
	return c
}

// Conversation returns the state store consumed by the chat surface.
func (c *Client) Conversation() *Conversation {
	return c.conv
}

// Dispatcher returns the tool dispatcher, exposed for its CurrentAction
// descriptor.
func (c *Client) Dispatcher() *Dispatcher {
	return c.disp
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	return c.conv.Status()
}

// SessionID returns the backend-assigned session id, empty while
// disconnected.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Connect opens the companion socket. It is a no-op when already open or
// while another Connect is in flight; the probe and dial run outside the
// lock, so overlapping calls (reconnect timer plus a manual retry) must not
// both pass the guard. The capability probe runs first: a definite "no API
// key" answer is terminal until the caller disconnects and reconnects, while
// a probe that itself fails is treated as best-effort and the dial proceeds
// anyway.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil || c.connecting {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
	}()

	hasKey, err := c.probeAPIKey(ctx)
	if err != nil {
		slog.Debug("Capability probe failed, proceeding anyway", "error", err)
	} else if !hasKey {
		c.conv.setStatus(StatusNoAPIKey)
		slog.Warn("Backend reports no API key, not connecting")
		return ErrNoAPIKey
	}

	c.conv.setStatus(StatusConnecting)

	conn, _, err := websocket.Dial(ctx, c.cfg.SocketURL(), nil)
	if err != nil {
		c.conv.setStatus(StatusDisconnected)
		c.reconnect.Settle(false)
		c.scheduleReconnect()
		return fmt.Errorf("dial companion socket: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.conn != nil {
		// Another socket was installed while this dial was in flight.
		// Exactly one connection may be live; the newcomer is closed.
		c.mu.Unlock()
		cancel()
		if err := conn.Close(websocket.StatusNormalClosure, "superseded"); err != nil {
			slog.Debug("Failed to close superseded socket", "error", err)
		}
		return nil
	}
	c.conn = conn
	c.readCancel = cancel
	c.mu.Unlock()

	go c.readLoop(readCtx, conn)

	slog.Info("Companion socket opened", "url", c.cfg.SocketURL())
	return nil
}

// Disconnect cancels any pending reconnect, closes the socket, and clears
// the session id. Idempotent.
func (c *Client) Disconnect() {
	c.reconnect.Cancel()

	c.mu.Lock()
	conn := c.conn
	cancel := c.readCancel
	c.conn = nil
	c.readCancel = nil
	c.sessionID = ""
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if err := conn.Close(websocket.StatusNormalClosure, "client closing"); err != nil {
			slog.Debug("Failed to close companion socket", "error", err)
		}
	}

	c.conv.setStatus(StatusDisconnected)
}

// SendMessage sends a user chat message together with a fresh context
// snapshot. A new empty assistant message is appended before the request
// goes out, closing the previous streaming slot.
func (c *Client) SendMessage(ctx context.Context, content string) error {
	c.mu.Lock()
	conn := c.conn
	sessionID := c.sessionID
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	c.conv.Append(domain.RoleUser, content)
	c.conv.Append(domain.RoleAssistant, "")
	c.conv.SetGenerating(true)
	c.conv.SetMood(domain.MoodThinking)

	app, chartCtx, prefs := c.state.Snapshot()
	frame := protocol.NewChatMessage(content, sessionID, app, chartCtx, prefs)
	if err := c.writeJSON(ctx, conn, frame); err != nil {
		c.conv.SetGenerating(false)
		c.conv.SetMood(domain.MoodIdle)
		return fmt.Errorf("send chat message: %w", err)
	}
	return nil
}

// ClearHistory asks the backend to reset conversation state and empties the
// local log. The local log is cleared even when the socket is down. An
// in-flight streaming response is not aborted, only no longer displayed.
func (c *Client) ClearHistory(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	sessionID := c.sessionID
	c.mu.Unlock()

	var sendErr error
	if conn != nil {
		sendErr = c.writeJSON(ctx, conn, protocol.NewClearHistory(sessionID))
	}

	c.conv.Clear()

	if sendErr != nil {
		return fmt.Errorf("send clear_history: %w", sendErr)
	}
	return nil
}

// RunHeartbeat sends a keepalive ping at the configured interval for the
// lifetime of ctx. The ticker belongs to the hosting surface, not to any
// single connect/disconnect cycle; pings are silently skipped while the
// socket is down.
func (c *Client) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Heartbeat.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sendHeartbeat(ctx)
		case <-ctx.Done():
			slog.Debug("Heartbeat stopped", "reason", ctx.Err())
			return
		}
	}
}

// sendHeartbeat transmits one ping if the socket is open and reports
// whether a frame went out.
func (c *Client) sendHeartbeat(ctx context.Context) bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return false
	}
	if err := c.writeJSON(ctx, conn, protocol.NewPing()); err != nil {
		slog.Debug("Heartbeat send failed", "error", err)
		return false
	}
	return true
}

// probeAPIKey performs the capability probe against the backend.
func (c *Client) probeAPIKey(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ProbeURL(), nil)
	if err != nil {
		return false, fmt.Errorf("build probe request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("probe api key status: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("Failed to close probe response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("probe returned status %d", resp.StatusCode)
	}

	var status apiKeyStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, fmt.Errorf("decode probe response: %w", err)
	}
	return status.HasAPIKey, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.handleReadError(conn, err)
			return
		}
		c.handleRaw(data)
	}
}

// handleReadError tears down state after a read failure and schedules a
// reconnect unless the socket was closed deliberately.
func (c *Client) handleReadError(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// Manual disconnect or a stale loop; nothing to do.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.readCancel = nil
	c.mu.Unlock()

	if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
		slog.Info("Companion socket closed", "error", err)
		c.conv.setStatus(StatusDisconnected)
	} else {
		slog.Warn("Companion socket error", "error", err)
		c.conv.setStatus(StatusError)
	}

	c.conv.SetGenerating(false)
	c.conv.SetMood(domain.MoodIdle)

	c.reconnect.Settle(false)
	c.scheduleReconnect()
}

// scheduleReconnect arms the backoff timer. Never called after a no_api_key
// verdict: a reconnect without a credential cannot succeed.
func (c *Client) scheduleReconnect() {
	if c.conv.Status() == StatusNoAPIKey {
		return
	}
	c.reconnect.Schedule(func() {
		if err := c.Connect(context.Background()); err != nil {
			slog.Debug("Reconnect attempt failed", "error", err)
		}
	})
}

// handleRaw decodes and applies one inbound frame. Malformed frames are
// discarded; nothing thrown here may take down the read loop.
func (c *Client) handleRaw(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Frame handler panicked", "panic", r)
		}
	}()

	frame, err := protocol.Decode(data)
	if err != nil {
		slog.Warn("Discarding malformed frame", "error", err)
		return
	}
	c.handleFrame(frame)
}

func (c *Client) handleFrame(frame any) {
	switch f := frame.(type) {
	case *protocol.ConnectedFrame:
		c.mu.Lock()
		c.sessionID = f.SessionID
		c.mu.Unlock()
		c.conv.setStatus(StatusConnected)
		c.reconnect.Settle(true)
		slog.Info("Companion session established", "session_id", f.SessionID)

	case *protocol.ThinkingFrame:
		c.conv.SetMood(domain.MoodThinking)

	case *protocol.TextDeltaFrame:
		c.conv.AppendToLast(f.Content)
		c.conv.SetMood(domain.MoodSpeaking)

	case *protocol.ToolCallFrame:
		call := domain.ToolCall{
			ID:      f.ID,
			Name:    f.Name,
			Input:   f.Input,
			Execute: f.ExecuteOn,
		}
		if err := c.conv.AddToolCall(call); err != nil {
			slog.Warn("Dropping duplicate tool call", "id", f.ID, "error", err)
			return
		}
		if f.ExecuteOn == domain.ExecuteFrontend {
			c.disp.Dispatch(call)
		}

	case *protocol.ToolResultFrame:
		if err := c.conv.SettleToolCall(f.ID, domain.ToolCallCompleted, f.Result); err != nil {
			slog.Warn("Unmatched tool result", "id", f.ID, "error", err)
		}

	case *protocol.CompleteFrame:
		c.conv.SetGenerating(false)
		c.conv.SetMood(domain.MoodIdle)

	case *protocol.ErrorFrame:
		c.conv.SetGenerating(false)
		c.conv.SetMood(domain.MoodIdle)
		c.conv.Append(domain.RoleAssistant, "Something went astray: "+f.Error)

	case *protocol.InsightFrame:
		c.conv.AddInsight(domain.Insight{Message: f.Message, Trigger: f.Trigger})
		c.conv.SetMood(domain.MoodCurious)
		time.AfterFunc(c.insightWindow, func() {
			if c.conv.Mood() == domain.MoodCurious {
				c.conv.SetMood(domain.MoodIdle)
			}
		})

	case *protocol.PongFrame:
		// Heartbeat acknowledgment.

	case *protocol.UnknownFrame:
		slog.Debug("Ignoring unrecognized frame", "type", f.Type)
	}
}

// reportToolCall sends the settled status of a frontend-executed tool back
// over the socket so the backend can resume generation.
func (c *Client) reportToolCall(call domain.ToolCall) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	frame := protocol.ToolResultFrame{
		Type:   protocol.TypeToolResult,
		ID:     call.ID,
		Name:   call.Name,
		Status: call.Status,
		Result: call.Result,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.writeJSON(ctx, conn, frame); err != nil {
		slog.Debug("Failed to report tool result", "id", call.ID, "error", err)
	}
}

func (c *Client) writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
