package reloadserver

import (
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PrecursorApp/reloadsrv/internal/config"
	"github.com/PrecursorApp/reloadsrv/internal/oracle"
	"github.com/PrecursorApp/reloadsrv/internal/projectfs"
	"github.com/PrecursorApp/reloadsrv/internal/testkit"
	"github.com/PrecursorApp/reloadsrv/internal/wire"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	dir := t.TempDir()
	fs, err := projectfs.New(dir)
	testkit.NoErr(t, err)
	cfg := &config.Config{
		ServerPort:       3449,
		HTTPServerRoot:   "public",
		ResourcePaths:    []string{dir},
		CompileWaitTime:  time.Millisecond,
		BrowserTargetExt: "js",
		MacroTriggerExt:  "clj",
	}
	return New(cfg, "proj@0.1.0", fs, &oracle.StaticOracle{}, nil)
}

func TestConnectionsTracksLifecycle(t *testing.T) {
	st := newTestState(t)
	testkit.Eq(t, st.Connections(), int64(0))

	srv := httptest.NewServer(NewMux(st, nil))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/figwheel-ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	testkit.NoErr(t, err)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && st.Connections() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	testkit.Eq(t, st.Connections(), int64(1))

	conn.Close()

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) && st.Connections() != 0 {
		time.Sleep(5 * time.Millisecond)
	}
	testkit.Eq(t, st.Connections(), int64(0))
}

func TestMuxServesStaticIndex(t *testing.T) {
	dir := t.TempDir()
	testkit.NoErr(t, os.MkdirAll(dir+"/public", 0o755))
	testkit.NoErr(t, os.WriteFile(dir+"/public/index.html", []byte("hello"), 0o644))

	fs, err := projectfs.New(dir)
	testkit.NoErr(t, err)
	cfg := &config.Config{HTTPServerRoot: "public", ResourcePaths: []string{dir}, CompileWaitTime: time.Millisecond}
	st := New(cfg, "proj", fs, nil, nil)

	srv := httptest.NewServer(NewMux(st, nil))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/index.html")
	testkit.NoErr(t, err)
	testkit.Eq(t, resp.StatusCode, 200)
}

// countingOracle counts TargetFileFor resolutions so the test below
// can confirm New actually wraps a supplied Oracle in an LRU instead
// of passing it straight through.
type countingOracle struct {
	oracle.StaticOracle
	targetCalls int
}

func (o *countingOracle) TargetFileFor(ns, outputDir string) (string, error) {
	o.targetCalls++
	return o.StaticOracle.TargetFileFor(ns, outputDir)
}

func TestNewCachesSuppliedOracleTargetLookups(t *testing.T) {
	dir := t.TempDir()
	fs, err := projectfs.New(dir)
	testkit.NoErr(t, err)

	aPath := dir + "/a.js"
	testkit.NoErr(t, os.WriteFile(aPath, []byte("(ns app.a)\n"), 0o644))

	o := &countingOracle{StaticOracle: oracle.StaticOracle{Edges: map[string][]string{"app.a": {"app.b"}}}}
	cfg := &config.Config{
		HTTPServerRoot:   "public",
		ResourcePaths:    []string{dir},
		CompileWaitTime:  time.Millisecond,
		BrowserTargetExt: "js",
		OutputDir:        "out",
	}
	st := New(cfg, "proj", fs, o, nil)

	old := map[string]int64{}
	cur := map[string]int64{aPath: 1}

	_, err = st.Ingest.CheckForChanges(old, cur, nil)
	testkit.NoErr(t, err)
	firstCalls := o.targetCalls
	testkit.True(t, firstCalls > 0, "expected at least one target-file resolution")

	_, err = st.Ingest.CheckForChanges(old, cur, nil)
	testkit.NoErr(t, err)
	testkit.Eq(t, o.targetCalls, firstCalls, "repeated resolutions for the same namespace must hit the LRU, not the oracle")
}

func TestBusPublishReachesWebsocketClient(t *testing.T) {
	st := newTestState(t)
	srv := httptest.NewServer(NewMux(st, nil))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/figwheel-ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	testkit.NoErr(t, err)
	defer conn.Close()

	st.Bus.Publish(wire.NewPing(st.ProjectID))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	testkit.NoErr(t, err)
	msg, err := wire.Decode(data)
	testkit.NoErr(t, err)
	testkit.Eq(t, msg.MsgName, wire.MsgPing)
}
