package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/coverbridge/coverbridge/internal/agent"
	"github.com/coverbridge/coverbridge/internal/convlog"
	"github.com/coverbridge/coverbridge/internal/observability"
)

// session is one extension connection: a read loop, a write loop, a
// dispatcher draining the action queue, and one conversation turn at
// a time.
type session struct {
	server *Server
	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	id   string
	conv *convlog.Session

	// turnMu serializes conversation turns; each turn still runs off
	// the read loop so action results keep flowing while it blocks.
	turnMu  sync.Mutex
	history []agent.CompletionMessage

	tabMu sync.Mutex
	tab   *TabInfo

	closeOnce sync.Once
}

func newSession(server *Server, conn *websocket.Conn) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		server: server,
		conn:   conn,
		send:   make(chan []byte, 64),
		ctx:    ctx,
		cancel: cancel,
		id:     uuid.NewString(),
	}
	if server.opts.ConvStore != nil {
		conv, err := server.opts.ConvStore.StartSession()
		if err != nil {
			server.logger.Error(ctx, "failed to start conversation log", "error", err)
		} else {
			s.conv = conv
		}
	}
	return s
}

func (s *session) run() {
	s.server.logger.Info(s.ctx, "extension connected", "session_id", s.id)
	go s.writeLoop()
	go s.dispatchLoop()
	s.readLoop()
	s.close()
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.conn.Close()
		if s.conv != nil {
			_ = s.conv.Close()
		}
		s.server.logger.Info(context.Background(), "extension disconnected", "session_id", s.id)
	})
}

func (s *session) readLoop() {
	s.conn.SetReadLimit(wsMaxPayloadBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		env, err := validateInbound(data)
		if err != nil {
			s.sendError(fmt.Sprintf("invalid envelope: %v", err))
			continue
		}
		s.countEnvelope(env.Type, "inbound")

		switch env.Type {
		case EnvelopeMessage:
			// Never on the read loop: action results must keep
			// arriving while the turn blocks on the rendezvous.
			go s.handleMessage(env)

		case EnvelopeBrowserActionResult:
			s.server.opts.Rendezvous.Deliver(env.Token, env.Result)

		case EnvelopeActionResponse:
			approved := env.Approved != nil && *env.Approved
			s.server.opts.Rendezvous.Deliver(env.Token, map[string]any{"approved": approved})

		case EnvelopeTabState:
			s.tabMu.Lock()
			s.tab = env.Tab
			s.tabMu.Unlock()
		}
	}
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.close()
				return
			}
		}
	}
}

// dispatchLoop forwards queued browser actions to the extension. A
// write failure is logged and the loop continues; the submitting
// adapter times out on its own.
func (s *session) dispatchLoop() {
	for {
		action, err := s.server.opts.Rendezvous.Next(s.ctx)
		if err != nil {
			return
		}
		env := &Envelope{
			Type:   EnvelopeBrowserAction,
			Token:  action.ID,
			Action: action.Kind,
			Params: action.Parameters,
		}
		if err := s.sendEnvelope(env); err != nil {
			s.server.logger.Warn(s.ctx, "failed to dispatch browser action",
				"token", action.ID, "kind", action.Kind, "error", err)
			continue
		}
		s.logEvent(convlog.EventBrowserAction, map[string]any{
			"token":  action.ID,
			"action": action.Kind,
		})
	}
}

func (s *session) handleMessage(env *Envelope) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	turnID := uuid.NewString()
	ctx := observability.AddSessionID(s.ctx, s.id)
	ctx = observability.AddTurnID(ctx, turnID)

	s.logEvent(convlog.EventUserMessage, map[string]any{"text": env.Text})
	s.countEnvelope(EnvelopeResponseStart, "outbound")
	_ = s.sendEnvelope(&Envelope{Type: EnvelopeResponseStart})

	// response_end goes out no matter how the turn finishes.
	defer func() {
		s.countEnvelope(EnvelopeResponseEnd, "outbound")
		_ = s.sendEnvelope(&Envelope{Type: EnvelopeResponseEnd})
	}()

	loop := agent.NewLoop(
		s.server.opts.Provider,
		s.server.opts.Registry,
		s.server.opts.LoopConfig,
		s.server.opts.Logger,
		s.server.opts.Metrics,
	)

	s.history = append(s.history, agent.CompletionMessage{
		Role:    "user",
		Content: s.composeUserContent(env),
	})

	chunks := make(chan *agent.ResponseChunk, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range chunks {
			out := &Envelope{Type: EnvelopeResponseChunk, Text: chunk.Text, Tool: chunk.ToolName}
			s.countEnvelope(EnvelopeResponseChunk, "outbound")
			_ = s.sendEnvelope(out)
			if chunk.ToolName != "" {
				s.logEvent(convlog.EventToolCall, map[string]any{"tool": chunk.ToolName})
			}
		}
	}()

	history, reply, err := loop.Run(ctx, s.history, chunks)
	close(chunks)
	<-done

	s.history = history
	if err != nil {
		s.server.logger.Error(ctx, "conversation turn failed", "error", err)
		s.logEvent(convlog.EventError, map[string]any{"error": err.Error()})
		s.sendError("The assistant hit an internal error. Please try again.")
		return
	}
	s.logEvent(convlog.EventAgentResponse, map[string]any{"text": reply})
}

// composeUserContent folds the active tab context into the user turn
// so the model knows what page the user is looking at.
func (s *session) composeUserContent(env *Envelope) string {
	tab := env.Tab
	if tab == nil {
		s.tabMu.Lock()
		tab = s.tab
		s.tabMu.Unlock()
	}
	if tab == nil || (tab.URL == "" && tab.Title == "") {
		return env.Text
	}
	var b strings.Builder
	b.WriteString(env.Text)
	b.WriteString("\n\n[Current browser tab: ")
	if tab.Title != "" {
		fmt.Fprintf(&b, "%q ", tab.Title)
	}
	b.WriteString(tab.URL)
	b.WriteString("]")
	return b.String()
}

func (s *session) sendEnvelope(env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if len(data) > wsMaxPayloadBytes {
		return fmt.Errorf("envelope too large")
	}
	select {
	case s.send <- data:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *session) sendError(message string) {
	s.countEnvelope(EnvelopeError, "outbound")
	_ = s.sendEnvelope(&Envelope{Type: EnvelopeError, Message: message})
}

func (s *session) logEvent(eventType string, data map[string]any) {
	if s.conv == nil {
		return
	}
	if err := s.conv.Log(eventType, data); err != nil {
		s.server.logger.Warn(s.ctx, "failed to log conversation event", "event", eventType, "error", err)
	}
}

func (s *session) countEnvelope(kind, direction string) {
	if s.server.opts.Metrics != nil {
		s.server.opts.Metrics.EnvelopeCounter.WithLabelValues(kind, direction).Inc()
	}
}
