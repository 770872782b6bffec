// Package config loads server configuration the way the gateway's
// config package does: flags first, then environment overrides, with
// an optional .env file loaded ahead of both (spec §6.3).
package config

import (
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server-level settings the binary reads from flags
// and environment. It has no field for css-dirs, ring-handler,
// unique-id, server-logfile or repl: CSS directories and a user HTTP
// handler are passed to reloadserver.New and reloadserver.NewMux as
// parameters, project-id always comes from projectid.Resolve, and the
// last two are not read at all.
type Config struct {
	ServerPort     int
	ServerIP       string
	HTTPServerRoot string
	ResourcePaths  []string
	OutputDir      string
	OutputTo       string

	BrowserTargetExt string
	MacroTriggerExt  string

	CompileWaitTime time.Duration
	ReloadClJSFiles bool

	OpenFileCommand string
}

// defaults mirror spec §6.3's documented default column.
const (
	defaultServerPort       = 3449
	defaultHTTPServerRoot   = "public"
	defaultOutputDir        = "resources/public/js/out"
	defaultCompileWaitTime  = 10 * time.Millisecond
	defaultBrowserTargetExt = "js"
	defaultMacroTriggerExt  = "clj"
	defaultResourcePath     = "resources"
)

// Load parses flags, applies environment overrides, and fills in
// documented defaults. A .env file in the working directory is loaded
// first if present; neither its absence nor a parse error is fatal,
// matching the gateway config's best-effort godotenv.Load.
func Load() (*Config, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("reloadserver", flag.ContinueOnError)
	port := fs.Int("port", defaultServerPort, "figwheel websocket/http server port")
	ip := fs.String("ip", "0.0.0.0", "server bind address")
	root := fs.String("http-server-root", defaultHTTPServerRoot, "static asset root, relative to resource-paths")
	outputDir := fs.String("output-dir", defaultOutputDir, "compiler output directory")
	outputTo := fs.String("output-to", "", "compiler output-to main file")
	resourcePaths := fs.String("resource-paths", defaultResourcePath, "comma-separated resource directories")
	openFileCommand := fs.String("open-file-command", "", "command to open a source file at a line, e.g. emacsclient")
	if len(os.Args) > 1 {
		_ = fs.Parse(os.Args[1:])
	}

	cfg := &Config{
		ServerPort:       envInt("FIGWHEEL_SERVER_PORT", *port),
		ServerIP:         envString("FIGWHEEL_SERVER_IP", *ip),
		HTTPServerRoot:   envString("FIGWHEEL_HTTP_SERVER_ROOT", *root),
		ResourcePaths:    resolveResourcePaths(envString("FIGWHEEL_RESOURCE_PATHS", *resourcePaths)),
		OutputDir:        envString("FIGWHEEL_OUTPUT_DIR", *outputDir),
		OutputTo:         envString("FIGWHEEL_OUTPUT_TO", *outputTo),
		BrowserTargetExt: envString("FIGWHEEL_BROWSER_TARGET_EXT", defaultBrowserTargetExt),
		MacroTriggerExt:  envString("FIGWHEEL_MACRO_TRIGGER_EXT", defaultMacroTriggerExt),
		CompileWaitTime:  envDuration("FIGWHEEL_COMPILE_WAIT_TIME", defaultCompileWaitTime),
		ReloadClJSFiles:  envBool("FIGWHEEL_RELOAD_CLJS_FILES", true),
		OpenFileCommand:  envString("FIGWHEEL_OPEN_FILE_COMMAND", *openFileCommand),
	}
	return cfg, nil
}

// DependencyFiles derives the spec §6.2 dependency-file set from the
// loaded configuration: output-to plus the two generated manifests
// Google Closure's module loader writes under output-dir.
func (c *Config) DependencyFiles() []string {
	var out []string
	if c.OutputTo != "" {
		out = append(out, c.OutputTo)
	}
	if c.OutputDir != "" {
		out = append(out, filepath.Join(c.OutputDir, "goog", "deps.js"))
		out = append(out, filepath.Join(c.OutputDir, "cljs_deps.js"))
	}
	return out
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

func splitNonEmpty(csv string) []string {
	var out []string
	for _, p := range strings.Split(csv, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolveResourcePaths splits csv and coerces an empty result back to
// the documented default (spec §6.3: "empty list is coerced to the
// default"), which a value like "," or all-whitespace entries would
// otherwise leave as a zero-length slice.
func resolveResourcePaths(csv string) []string {
	if paths := splitNonEmpty(csv); len(paths) > 0 {
		return paths
	}
	return []string{defaultResourcePath}
}
