package http

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/cityview/internal/adapters/nats"
	"github.com/samirrijal/cityview/internal/pkg/metrics"
)

// relayMessage is sent from client to subscribe/unsubscribe to event channels.
type relayMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "fetches" | "selections" (default: fetches)
	View    string `json:"view"`    // view filter for fetches (optional, "" = all)
}

// relaySubject maps a client request onto a NATS subject.
func relaySubject(m relayMessage) (string, bool) {
	switch m.Channel {
	case "", "fetches":
		if strings.ContainsAny(m.View, ".*> ") {
			return "", false
		}
		if m.View != "" {
			return "cityview.fetch." + m.View + ".>", true
		}
		return natsadapter.SubjectFetchWildcard, true
	case "selections":
		return natsadapter.SubjectViewSelected, true
	}
	return "", false
}

// EventsHandler returns a handler that relays session events from NATS to
// observers, e.g. an operations dashboard.
// Clients send JSON: {"action":"subscribe","channel":"fetches","view":"cityA"}
func EventsHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("events client connected", "remote", remoteAddr)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		// Helper: thread-safe write
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		forward := func(msg *nats.Msg) {
			_ = writeJSON(relayedEvent{Subject: msg.Subject, Data: json.RawMessage(msg.Data)})
		}

		// Auto-subscribe to all fetch outcomes by default
		sub, err := nc.Subscribe(natsadapter.SubjectFetchWildcard, forward)
		if err != nil {
			slog.Warn("events default subscribe", "error", err)
			return
		}
		subs[natsadapter.SubjectFetchWildcard] = sub

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m relayMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subject, ok := relaySubject(m)
			if !ok {
				_ = writeJSON(map[string]string{"error": "unknown channel or invalid view: " + m.Channel})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, forward)
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		// Cleanup
		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("events client disconnected", "remote", remoteAddr)
	}
}

// relayedEvent wraps a relayed message with its subject.
type relayedEvent struct {
	Subject string          `json:"subject"`
	Data    json.RawMessage `json:"data"`
}
