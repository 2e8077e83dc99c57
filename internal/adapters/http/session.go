package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/samirrijal/cityview/internal/adapters/mapsurface"
	"github.com/samirrijal/cityview/internal/core/domain"
	"github.com/samirrijal/cityview/internal/core/usecases"
	"github.com/samirrijal/cityview/internal/pkg/metrics"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

var errSessionClosed = errors.New("session closed")

// sessionMessage is sent from client to drive its view session.
type sessionMessage struct {
	Action string `json:"action"` // "ready" | "select"
	View   string `json:"view"`
}

type sessionHello struct {
	Type    string             `json:"type"`
	Session string             `json:"session"`
	Views   []domain.NamedView `json:"views"`
}

type sessionError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// outbox queues outgoing frames so producers never block on the socket.
// A single writer goroutine drains it in order.
type outbox struct {
	mu     sync.Mutex
	queue  [][]byte
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newOutbox() *outbox {
	return &outbox{wake: make(chan struct{}, 1), done: make(chan struct{})}
}

func (o *outbox) push(frame []byte) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return errSessionClosed
	}
	o.queue = append(o.queue, frame)
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
	return nil
}

func (o *outbox) pushJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return o.push(data)
}

func (o *outbox) close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.done)
	}
	o.mu.Unlock()
}

func (o *outbox) take() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	q := o.queue
	o.queue = nil
	return q
}

// run writes frames until the outbox is closed or a write fails.
func (o *outbox) run(write func(frame []byte) error, ping func() error) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-o.wake:
			for _, frame := range o.take() {
				if err := write(frame); err != nil {
					o.close()
					return
				}
			}
		case <-ticker.C:
			if err := ping(); err != nil {
				o.close()
				return
			}
		case <-o.done:
			for _, frame := range o.take() {
				_ = write(frame)
			}
			return
		}
	}
}

// wsSurface is the mapsurface.Surface of one session.
type wsSurface struct {
	out *outbox
}

func (s wsSurface) Send(cmd mapsurface.Command) error {
	return s.out.pushJSON(cmd)
}

// SessionHandler serves one interactive view session per connection.
// The client announces {"action":"ready"} once its map is mounted and then
// sends {"action":"select","view":"cityA"}. The server answers with map
// commands and {"type":"state"} view models.
func SessionHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		sessionID := uuid.NewString()
		log := slog.Default().With("session", sessionID)
		log.Info("session connected", "remote", c.RemoteAddr().String())

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		out := newOutbox()
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			out.run(
				func(frame []byte) error {
					_ = c.SetWriteDeadline(time.Now().Add(writeWait))
					return c.WriteMessage(websocket.TextMessage, frame)
				},
				func() error {
					_ = c.SetWriteDeadline(time.Now().Add(writeWait))
					return c.WriteMessage(websocket.PingMessage, nil)
				},
			)
		}()

		ctx, cancel := context.WithCancel(context.Background())
		var (
			capability mapsurface.Capability
			coord      *usecases.Coordinator
		)
		defer func() {
			cancel()
			if coord != nil {
				coord.Close()
				metrics.ActiveSessions.Dec()
			}
			out.close()
			<-writerDone
			log.Info("session closed")
		}()

		fail := func(code, msg string) {
			_ = out.pushJSON(sessionError{Type: "error", Code: code, Message: msg})
		}

		_ = out.pushJSON(sessionHello{Type: "hello", Session: sessionID, Views: deps.Registry.List()})

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m sessionMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				fail("bad_request", "invalid JSON")
				continue
			}

			switch m.Action {
			case "ready":
				if coord != nil {
					fail("already_ready", "session already started")
					continue
				}
				capability.Confirm()
				adapter, err := mapsurface.New(&capability, wsSurface{out: out}, deps.Session.Icon,
					mapsurface.WithPointIcon(deps.Session.PointIcon))
				if err != nil {
					fail("map_unavailable", err.Error())
					continue
				}

				cfg := deps.Session.Coordinator
				cfg.SessionID = sessionID
				coord = usecases.NewCoordinator(ctx, deps.Registry, deps.Searcher, adapter, deps.Events, cfg)
				metrics.ActiveSessions.Inc()

				presenter := NewPresenter(deps.Registry, adapter, out.pushJSON, log)
				coord.Subscribe(presenter.Render)
				if err := coord.Start(ctx); err != nil {
					log.Warn("session bootstrap failed", "error", err)
					fail("map_unavailable", err.Error())
					continue
				}
				if deps.Session.Prefetch {
					coord.Prefetch(ctx)
				}

			case "select":
				if coord == nil {
					fail("not_ready", "send {\"action\":\"ready\"} once the map is mounted")
					continue
				}
				if err := coord.Select(ctx, domain.ViewID(m.View)); err != nil {
					fail("unknown_view", err.Error())
				}

			default:
				fail("bad_request", "unknown action: "+m.Action)
			}
		}
	}
}
