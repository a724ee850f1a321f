package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"summeriq/internal/docs"
	"summeriq/internal/events"
	"summeriq/internal/logging"
	"summeriq/internal/project"
)

// EventSource is what the progress socket needs from the project service.
type EventSource interface {
	Meta(ctx context.Context, id string) (*project.Meta, error)
	GetDocumentation(ctx context.Context, id string) (*docs.FinalDocument, error)
}

// EventsHandler streams project progress over a websocket. A client may
// send {"type":"generate"} to start documentation and watch it progress.
type EventsHandler struct {
	src EventSource
	bus *events.Broadcaster
	log *zap.Logger
}

func NewEventsHandler(src EventSource, bus *events.Broadcaster, log *zap.Logger) *EventsHandler {
	return &EventsHandler{src: src, bus: bus, log: logging.OrNop(log)}
}

const (
	eventsWSWriteWait = 10 * time.Second
	eventsWSPongWait  = 60 * time.Second
	eventsWSPingEvery = (eventsWSPongWait * 9) / 10
)

var eventsWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type eventsWSInbound struct {
	Type string `json:"type"`
}

type eventsWSOutbound struct {
	Type    string        `json:"type"`
	Project string        `json:"project,omitempty"`
	Event   *events.Event `json:"event,omitempty"`
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message,omitempty"`
}

func (h *EventsHandler) HandleEventsWS(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if _, err := h.src.Meta(r.Context(), id); err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err.Error())
		return
	}

	conn, err := eventsWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(eventsWSPongWait)); err != nil {
		h.log.Warn("events ws set read deadline failed", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsWSPongWait))
	})

	sub := h.bus.Subscribe(id)
	defer h.bus.Unsubscribe(sub)

	writeCh := make(chan eventsWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(eventsWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case evt, ok := <-sub:
				if !ok {
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(eventsWSOutbound{Type: "event", Project: id, Event: &evt}); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	pushEventsWS(writeCh, eventsWSOutbound{Type: "subscribed", Project: id})

	for {
		var in eventsWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushEventsWS(writeCh, eventsWSOutbound{Type: "pong"})
		case "generate":
			// Detached from the socket; progress arrives through the broadcaster.
			go func() {
				if _, err := h.src.GetDocumentation(context.WithoutCancel(ctx), id); err != nil {
					h.log.Warn("documentation failed", zap.String("project", id), zap.Error(err))
				}
			}()
			pushEventsWS(writeCh, eventsWSOutbound{Type: "generate_ack", Project: id})
		case "":
			pushEventsWS(writeCh, eventsWSOutbound{Type: "error", Code: "invalid_argument", Message: "type is required"})
		default:
			pushEventsWS(writeCh, eventsWSOutbound{Type: "error", Code: "invalid_argument", Message: "unsupported type: " + in.Type})
		}
	}
}

// pushEventsWS never blocks; when the queue is full the oldest message is
// dropped.
func pushEventsWS(writeCh chan eventsWSOutbound, out eventsWSOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
