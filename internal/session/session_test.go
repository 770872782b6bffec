package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PrecursorApp/reloadsrv/internal/bus"
	"github.com/PrecursorApp/reloadsrv/internal/callbackreg"
	"github.com/PrecursorApp/reloadsrv/internal/testkit"
	"github.com/PrecursorApp/reloadsrv/internal/wire"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func startServer(t *testing.T, b *bus.Bus, callbacks *callbackreg.Registry, closed chan<- struct{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		s := New(conn, b, callbacks, "proj", "", func() {
			if closed != nil {
				close(closed)
			}
		})
		s.Run()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	testkit.NoErr(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSessionDeliversBusMessage(t *testing.T) {
	b := bus.New(2 * time.Millisecond)
	srv := startServer(t, b, callbackreg.New(), nil)
	conn := dial(t, srv)

	time.Sleep(20 * time.Millisecond) // let the server subscribe
	b.Publish(wire.NewCompileWarning("proj", "unused var"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	testkit.NoErr(t, err)
	msg, err := wire.Decode(data)
	testkit.NoErr(t, err)
	testkit.Eq(t, msg.MsgName, wire.MsgCompileWarning)
}

func TestSessionHeartbeat(t *testing.T) {
	b := bus.New(2 * time.Millisecond)
	srv := startServer(t, b, callbackreg.New(), nil)
	conn := dial(t, srv)

	conn.SetReadDeadline(time.Now().Add(7 * time.Second))
	_, data, err := conn.ReadMessage()
	testkit.NoErr(t, err)
	msg, err := wire.Decode(data)
	testkit.NoErr(t, err)
	testkit.Eq(t, msg.MsgName, wire.MsgPing)
}

func TestSessionDispatchesCallback(t *testing.T) {
	b := bus.New(2 * time.Millisecond)
	callbacks := callbackreg.New()
	got := make(chan any, 1)
	callbacks.Register("on-eval", func(content any) { got <- content })

	srv := startServer(t, b, callbacks, nil)
	conn := dial(t, srv)

	frame := `{"figwheel-event":"callback","callback-name":"on-eval","content":"hi"}`
	testkit.NoErr(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))

	select {
	case content := <-got:
		testkit.Eq(t, content, any("hi"))
	case <-time.After(time.Second):
		t.Fatal("callback was not invoked")
	}
}

func TestSessionCloseInvokesOnClose(t *testing.T) {
	b := bus.New(2 * time.Millisecond)
	closed := make(chan struct{})
	srv := startServer(t, b, callbackreg.New(), closed)
	conn := dial(t, srv)
	conn.Close()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("onClose was not invoked after peer close")
	}
}
