// Command reloadserver runs the live-reload server standalone: load
// configuration, compute project-id, bind the HTTP/websocket
// endpoints, and serve until interrupted.
package main

import (
	"context"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/PrecursorApp/reloadsrv/internal/config"
	"github.com/PrecursorApp/reloadsrv/internal/devreload"
	"github.com/PrecursorApp/reloadsrv/internal/projectfs"
	"github.com/PrecursorApp/reloadsrv/internal/projectid"
	"github.com/PrecursorApp/reloadsrv/internal/reloadserver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("reloadserver: failed to load configuration: %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatalf("reloadserver: failed to resolve working directory: %v", err)
	}

	id, err := projectid.Resolve(cwd)
	if err != nil {
		log.Fatalf("reloadserver: failed to resolve project-id: %v", err)
	}

	fs, err := projectfs.New(cwd)
	if err != nil {
		log.Fatalf("reloadserver: failed to bind project root: %v", err)
	}
	projectfs.SetDefault(fs)

	st := reloadserver.New(cfg, id, fs, nil, nil)

	addr := cfg.ServerIP + ":" + strconv.Itoa(cfg.ServerPort)
	srv := reloadserver.NewServer(addr, reloadserver.NewMux(st, nil))

	pollCtx, stopPoll := context.WithCancel(context.Background())
	go st.PollLoop(pollCtx, cfg.CompileWaitTime, func() map[string]int64 { return scanMtimes(cfg.ResourcePaths) })

	depWatcher, err := devreload.New(cfg.DependencyFiles(), func() {
		if _, err := st.Ingest.CheckForChanges(map[string]int64{}, map[string]int64{}, nil); err != nil {
			log.Printf("reloadserver: devreload ingest check failed: %v", err)
		}
	})
	if err != nil {
		log.Printf("reloadserver: dependency-file watch disabled: %v", err)
	} else {
		go depWatcher.Run()
		defer depWatcher.Close()
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("reloadserver: server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("reloadserver: shutting down")
	stopPoll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("reloadserver: forced shutdown: %v", err)
	}
	log.Println("reloadserver: exiting")
}

// scanMtimes is the caller-supplied mtime source the core's Change
// Ingest contract treats as external input (spec §3: "never produced
// internally by the core"). It walks the configured resource paths
// once per poll tick; the only other filesystem watch in the binary is
// the devreload watcher over the dependency files.
func scanMtimes(roots []string) map[string]int64 {
	out := make(map[string]int64)
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			out[path] = info.ModTime().UnixNano()
			return nil
		})
	}
	return out
}
