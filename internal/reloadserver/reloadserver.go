// Package reloadserver owns the server-state record spec §3 and §4.I
// describe: the Digest Store, Message Bus, callback registry,
// connection counter, and CSS-pass state, plus the HTTP wiring that
// glues them to a websocket upgrade endpoint and static asset serving.
package reloadserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/PrecursorApp/reloadsrv/internal/bus"
	"github.com/PrecursorApp/reloadsrv/internal/callbackreg"
	"github.com/PrecursorApp/reloadsrv/internal/config"
	"github.com/PrecursorApp/reloadsrv/internal/csswatch"
	"github.com/PrecursorApp/reloadsrv/internal/digest"
	"github.com/PrecursorApp/reloadsrv/internal/ingest"
	"github.com/PrecursorApp/reloadsrv/internal/oracle"
	"github.com/PrecursorApp/reloadsrv/internal/projectfs"
	"github.com/PrecursorApp/reloadsrv/internal/session"
)

// State is the single configuration-plus-runtime record spec §3
// describes: created by New, consumed by every component, destroyed
// on Shutdown.
type State struct {
	Config    *config.Config
	ProjectID string

	FS        *projectfs.FS
	Digest    *digest.Store
	Bus       *bus.Bus
	Callbacks *callbackreg.Registry
	CSS       *csswatch.Watcher
	Ingest    *ingest.Ingest

	connections atomic.Int64
}

// New builds a State per spec §4.I step 2: constructs the Digest
// Store, Bus, callback registry, and CSS watcher with the configured
// defaults, then seeds the Digest Store over the dependency-file set
// (step 3).
func New(cfg *config.Config, projectID string, fs *projectfs.FS, o oracle.Oracle, cssDirs []string) *State {
	digestStore := digest.New(fs)
	messageBus := bus.New(cfg.CompileWaitTime)

	depFiles := cfg.DependencyFiles()
	digestStore.Seed(depFiles)

	if o != nil {
		if cached, err := oracle.NewCachedTargetFiles(o, 0); err == nil {
			o = cached
		} else {
			log.Printf("reloadserver: not caching target-file lookups: %v", err)
		}
	}

	st := &State{
		Config:    cfg,
		ProjectID: projectID,
		FS:        fs,
		Digest:    digestStore,
		Bus:       messageBus,
		Callbacks: callbackreg.New(),
		CSS:       csswatch.New(projectID, cssDirs),
	}
	st.Ingest = ingest.New(ingest.Config{
		Oracle:           o,
		Digest:           digestStore,
		Bus:              messageBus,
		FS:               fs,
		ProjectID:        projectID,
		OutputDir:        cfg.OutputDir,
		BrowserTargetExt: cfg.BrowserTargetExt,
		MacroTriggerExt:  cfg.MacroTriggerExt,
		DependencyFiles:  depFiles,
	})
	return st
}

// Connections reports the current live Session count (testable
// property: "Session count equals connection-count at all quiescent
// points").
func (st *State) Connections() int64 {
	return st.connections.Load()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWebsocket upgrades the request and runs a Session to
// completion, blocking until the connection closes.
func (st *State) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("reloadserver: websocket upgrade failed: %v", err)
		return
	}

	st.connections.Add(1)
	sess := session.New(conn, st.Bus, st.Callbacks, st.ProjectID, st.Config.OpenFileCommand, func() {
		st.connections.Add(-1)
	})
	sess.Run()
}

// cors applies the permissive policy spec §4.I step 4 requires: any
// origin, HEAD/OPTIONS/GET, because font resources need it.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "HEAD, OPTIONS, GET")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewMux builds the HTTP handler tree spec §4.I step 4 describes: a
// websocket upgrade at /figwheel-ws, static files from the configured
// resource roots ("/" serving index.html), then the optional user
// handler for requests no static root answered, then a 404, with
// permissive CORS over all of it.
func NewMux(st *State, userHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/figwheel-ws", st.HandleWebsocket)

	var fileServers []http.Handler
	for _, resourcePath := range st.Config.ResourcePaths {
		root := resourcePath + "/" + st.Config.HTTPServerRoot
		fileServers = append(fileServers, http.FileServer(http.Dir(root)))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if serveStatic(w, r, fileServers) {
			return
		}
		if userHandler != nil {
			userHandler.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})

	return cors(mux)
}

// serveStatic tries each file server in turn and reports whether one
// of them answered with something other than 404.
func serveStatic(w http.ResponseWriter, r *http.Request, fileServers []http.Handler) bool {
	for _, fs := range fileServers {
		rec := &statusRecorder{ResponseWriter: w}
		fs.ServeHTTP(rec, r)
		if rec.status != http.StatusNotFound {
			return true
		}
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	if code != http.StatusNotFound {
		r.ResponseWriter.WriteHeader(code)
	}
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == http.StatusNotFound {
		return len(b), nil
	}
	return r.ResponseWriter.Write(b)
}

// Server wraps an http.Server with the h2c-over-cleartext wiring the
// teacher's API server uses, so the websocket upgrade path and plain
// HTTP/1.1 clients share one listener with HTTP/2 available for
// anything that negotiates it.
type Server struct {
	httpServer *http.Server
}

// NewServer binds addr (host:port) to handler.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: h2c.NewHandler(handler, &http2.Server{}),
		},
	}
}

// Start listens and serves until Shutdown is called, logging the
// listen URL first (spec §4.I step 5).
func (s *Server) Start() error {
	log.Printf("reloadserver: listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes the listener, which closes every Session, which in
// turn unsubscribes from the Bus (spec §4.I shutdown).
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// PollLoop runs CSS + dependency-file polling until ctx is cancelled,
// the poll-driven counterpart to Change Ingest's on-demand
// CheckForChanges (spec §4.D/§4.G are both poll-based by design).
func (st *State) PollLoop(ctx context.Context, interval time.Duration, fileMtimes func() map[string]int64) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := fileMtimes()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := fileMtimes()
			if _, err := st.Ingest.CheckForChanges(last, cur, nil); err != nil {
				log.Printf("reloadserver: ingest check failed: %v", err)
			}
			last = cur
			if err := st.CSS.Check(st.Bus); err != nil {
				log.Printf("reloadserver: css check failed: %v", err)
			}
		}
	}
}
