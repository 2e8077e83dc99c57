package http_test

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/fasthttp/websocket"

	handler "github.com/samirrijal/cityview/internal/adapters/http"
	"github.com/samirrijal/cityview/internal/adapters/mapsurface"
	"github.com/samirrijal/cityview/internal/core/domain"
)

// sessionFrame is the union of every server frame the client can receive.
type sessionFrame struct {
	Type       string `json:"type"`
	Code       string `json:"code"`
	Session    string `json:"session"`
	ActiveView string `json:"active_view"`
	Points     int    `json:"points"`
	Label      string `json:"label"`
	Buttons    []struct {
		View      string `json:"view"`
		Indicator string `json:"indicator"`
		Count     int    `json:"count"`
	} `json:"buttons"`
	Icon *struct {
		URL string `json:"icon_url"`
	} `json:"icon"`
}

func (f sessionFrame) button(view domain.ViewID) (indicator string, count int) {
	for _, b := range f.Buttons {
		if b.View == string(view) {
			return b.Indicator, b.Count
		}
	}
	return "", 0
}

type sessionClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialSession(t *testing.T, deps *handler.Dependencies) *sessionClient {
	t.Helper()
	app := setupApp(deps)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &sessionClient{t: t, conn: conn}
}

func (c *sessionClient) send(action, view string) {
	c.t.Helper()
	msg, _ := json.Marshal(map[string]string{"action": action, "view": view})
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		c.t.Fatalf("send %s: %v", action, err)
	}
}

func (c *sessionClient) next() sessionFrame {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	var f sessionFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		c.t.Fatalf("decode %s: %v", raw, err)
	}
	return f
}

// until reads frames until match reports true and returns everything read.
func (c *sessionClient) until(match func(sessionFrame) bool) []sessionFrame {
	c.t.Helper()
	var seen []sessionFrame
	for i := 0; i < 100; i++ {
		f := c.next()
		seen = append(seen, f)
		if match(f) {
			return seen
		}
	}
	c.t.Fatalf("no matching frame in %d frames", len(seen))
	return nil
}

func sessionDeps(t *testing.T) *handler.Dependencies {
	return makeDeps(t, &mockSearcher{searchFn: restaurantsAround(2)}, func(d *handler.Dependencies) {
		d.Session.Prefetch = true
		d.Session.Icon = mapsurface.LeafletIcon
		d.Session.PointIcon = mapsurface.RestaurantIcon
	})
}

func TestSession_SelectBeforeReady(t *testing.T) {
	c := dialSession(t, sessionDeps(t))

	if hello := c.next(); hello.Type != "hello" || hello.Session == "" {
		t.Fatalf("expected hello with session id, got %+v", hello)
	}

	c.send("select", "cityA")
	f := c.next()
	if f.Type != "error" || f.Code != "not_ready" {
		t.Fatalf("expected not_ready error, got %+v", f)
	}

	c.send("zoom", "")
	if f := c.next(); f.Code != "bad_request" {
		t.Errorf("expected bad_request for unknown action, got %+v", f)
	}
}

func TestSession_ReadyPositionsMapAndPrefetches(t *testing.T) {
	c := dialSession(t, sessionDeps(t))
	c.next() // hello

	c.send("ready", "")

	want := []string{"default_icon", "set_view", "fly_to_bounds"}
	for _, typ := range want {
		if f := c.next(); f.Type != typ {
			t.Fatalf("expected %s, got %+v", typ, f)
		}
	}

	c.until(func(f sessionFrame) bool {
		if f.Type != "state" {
			return false
		}
		a, na := f.button(domain.ViewCityA)
		b, nb := f.button(domain.ViewCityB)
		return a == "count" && na == 2 && b == "count" && nb == 2
	})

	c.send("ready", "")
	c.until(func(f sessionFrame) bool { return f.Code == "already_ready" })
}

func TestSession_SelectMovesCameraBeforeMarkers(t *testing.T) {
	c := dialSession(t, sessionDeps(t))
	c.next() // hello
	c.send("ready", "")
	// Drain until both prefetches have landed so no frame is pending.
	c.until(func(f sessionFrame) bool {
		_, na := f.button(domain.ViewCityA)
		_, nb := f.button(domain.ViewCityB)
		return f.Type == "state" && na == 2 && nb == 2
	})

	c.send("select", "cityA")
	frames := c.until(func(f sessionFrame) bool {
		return f.Type == "state" && f.ActiveView == string(domain.ViewCityA) && f.Points == 2
	})

	if frames[0].Type != "fly_to_bounds" {
		t.Fatalf("expected fly_to_bounds first, got %q", frames[0].Type)
	}
	var here, points int
	for _, f := range frames {
		if f.Type != "marker" {
			continue
		}
		if f.Label == handler.HereLabel {
			if f.Icon != nil {
				t.Errorf("here marker must use the default icon")
			}
			here++
			continue
		}
		if f.Icon == nil || f.Icon.URL != "/restaurant.svg" {
			t.Errorf("point marker %q without restaurant icon", f.Label)
		}
		points++
	}
	if here == 0 || points != 2 {
		t.Errorf("expected here marker and 2 point markers, got %d and %d", here, points)
	}

	c.send("select", "atlantis")
	c.until(func(f sessionFrame) bool { return f.Type == "error" && f.Code == "unknown_view" })
}
