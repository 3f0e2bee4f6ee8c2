package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tereo-quiz-service/internal/app"
	"tereo-quiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(service *app.QuizService, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Option string `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type reportedPayload struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ServeWS upgrades the request, starts a quiz session for the caller and
// streams its snapshots until the socket closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		// older clients send camelCase
		userID = r.URL.Query().Get("userId")
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session, err := h.service.StartSession(ctx, userID, limit)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	sessionID := session.ID()
	defer h.service.End(sessionID)

	updates, unsubscribe, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer unsubscribe()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer; gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("ws write error", zap.String("session_id", sessionID), zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				if !forward(send, closeSignals, outboundMessage[any]{Type: "state", Payload: snap}) {
					return
				}
				if snap.Phase == domain.PhaseFinished {
					h.sendOutcome(ctx, send, closeSignals, sessionID)
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid select payload"}})
				continue
			}
			if _, _, err := h.service.Select(ctx, sessionID, payload.Option); err != nil {
				reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			}
		case "advance":
			if _, _, err := h.service.Advance(ctx, sessionID); err != nil {
				reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			}
		default:
			reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	cancel()
	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// sendOutcome emits the final result, then the settled mistake report.
func (h *WSHandler) sendOutcome(ctx context.Context, send chan<- outboundMessage[any], closeSignals <-chan struct{}, sessionID string) {
	completion, err := h.service.Completion(sessionID)
	if err != nil {
		forward(send, closeSignals, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	if !forward(send, closeSignals, outboundMessage[any]{Type: "finished", Payload: completion.Result}) {
		return
	}

	reported := reportedPayload{OK: true}
	if _, err := h.service.AwaitReport(ctx, sessionID); err != nil {
		reported = reportedPayload{OK: false, Error: err.Error()}
	}
	forward(send, closeSignals, outboundMessage[any]{Type: "reported", Payload: reported})
}

func forward(send chan<- outboundMessage[any], closeSignals <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-closeSignals:
		return false
	}
}
