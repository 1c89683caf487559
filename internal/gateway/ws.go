package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/chat"
	"github.com/flemzord/scout/internal/progress"
	"github.com/flemzord/scout/internal/security"
)

// FrameType identifies a server-to-client websocket message.
type FrameType string

// Frame types streamed while a question is answered.
const (
	FrameStep   FrameType = "step"
	FrameAnswer FrameType = "answer"
	FrameError  FrameType = "error"
)

// Frame is the wire format of every server-to-client websocket message.
// Clients send {"question": "..."} and receive zero or more step frames
// followed by exactly one answer or error frame.
type Frame struct {
	Type  FrameType    `json:"type"`
	Event *agent.Event `json:"event,omitempty"`
	Reply *chat.Reply  `json:"reply,omitempty"`
	Error string       `json:"error,omitempty"`
}

// stepBuffer is the progress channel capacity per question.
const stepBuffer = 16

// handleWebsocket returns an http.HandlerFunc for GET /ws/sessions/{id}.
// Questions on one connection are answered one at a time.
func (g *Gateway) handleWebsocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(w, r)
		if !ok {
			return
		}
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: g.config.AllowedOrigins,
		})
		if err != nil {
			g.logger.Error("websocket accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()
		conn.SetReadLimit(int64(g.config.MaxBodyBytes))

		g.readLoop(r.Context(), conn, r, id)
	}
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, r *http.Request, id string) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				_ = conn.Close(websocket.StatusNormalClosure, "")
			}
			return
		}

		question, err := g.decodeQuestion(data)
		if err != nil {
			if g.send(ctx, conn, Frame{Type: FrameError, Error: err.Error()}) != nil {
				return
			}
			continue
		}
		if g.limiter != nil {
			if err := g.limiter.AllowKey(security.KindAsk, clientKey(r)); err != nil {
				g.emit(security.AuditEvent{
					Type:       security.EventRateLimit,
					SessionID:  id,
					RemoteAddr: r.RemoteAddr,
					Detail:     security.KindAsk,
				})
				if g.send(ctx, conn, Frame{Type: FrameError, Error: err.Error()}) != nil {
					return
				}
				continue
			}
		}

		g.emit(security.AuditEvent{Type: security.EventAsk, SessionID: id, RemoteAddr: r.RemoteAddr})
		if err := g.streamAsk(ctx, conn, id, question); err != nil {
			g.logger.Debug("websocket closed mid-answer", "session", id, "error", err)
			return
		}
	}
}

type askOutcome struct {
	reply chat.Reply
	err   error
}

// streamAsk answers one question, forwarding progress events as they
// happen. It returns an error only when the connection is unusable.
func (g *Gateway) streamAsk(ctx context.Context, conn *websocket.Conn, id, question string) error {
	askCtx, cancel := context.WithTimeout(ctx, g.config.AskTimeout)
	defer cancel()

	sink := progress.NewChannelSink(stepBuffer)
	done := make(chan askOutcome, 1)
	go func() {
		reply, err := g.assistant.Ask(askCtx, id, question, sink)
		sink.Close()
		done <- askOutcome{reply: reply, err: err}
	}()

	var writeErr error
	for ev := range sink.Events() {
		if writeErr != nil {
			continue
		}
		if writeErr = g.send(ctx, conn, Frame{Type: FrameStep, Event: &ev}); writeErr != nil {
			cancel()
		}
	}
	out := <-done
	if writeErr != nil {
		return writeErr
	}

	if out.err != nil {
		status, msg := askFailure(out.err)
		g.logger.Warn("ask failed", "session", id, "status", status, "error", out.err)
		return g.send(ctx, conn, Frame{Type: FrameError, Error: msg})
	}
	return g.send(ctx, conn, Frame{Type: FrameAnswer, Reply: &out.reply})
}

func (g *Gateway) send(ctx context.Context, conn *websocket.Conn, f Frame) error {
	data, err := jsonAPI.Marshal(f)
	if err != nil {
		return fmt.Errorf("gateway: encode frame: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
