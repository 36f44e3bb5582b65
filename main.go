// newsproxy: proxy a newsletter feed, strip or mark sponsored content,
// and enrich articles with representative images.
//
//	newsproxy [options]
//
// Endpoints:
//
//	GET /news?vertical=webdev&mode=drop
//	GET /resolve-image?url=https://example.com/post
//	GET /placeholder?host=example.com
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// logOut is the writer for informational/progress output.
// In silent mode it is set to io.Discard so only errors reach the user.
var logOut io.Writer = os.Stderr

// cliConfig holds parsed command-line options.
type cliConfig struct {
	addr           string
	upstream       string
	cacheDir       string
	heuristicsFile string
	userAgent      string
	imageWorkers   int
	requestBudget  time.Duration
}

// run builds the pipeline and serves HTTP, returning any startup error.
func run(cfg cliConfig) error {
	upstream, err := url.Parse(cfg.upstream)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return fmt.Errorf("invalid -upstream URL %q", cfg.upstream)
	}

	h, err := loadHeuristics(cfg.heuristicsFile)
	if err != nil {
		return err
	}

	cache, err := newBlobCache(cfg.cacheDir)
	if err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	f := newFetcher(cfg.userAgent)
	srv := newServer(f, cache, h, upstream, cfg.imageWorkers, cfg.requestBudget)

	fmt.Fprintf(logOut, "newsproxy listening on %s (upstream %s)\n", cfg.addr, upstream)
	return http.ListenAndServe(cfg.addr, srv.routes())
}

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	upstream := flag.String("upstream", "https://tldr.tech", "Upstream newsletter base URL")
	cacheDir := flag.String("cache-dir", "", "Cache directory (default: <tmp>/newsproxy-cache)")
	heuristicsFile := flag.String("heuristics", "", "JSON file overriding heuristic word lists")
	userAgent := flag.String("user-agent", defaultUA, "HTTP User-Agent header")
	imageWorkers := flag.Int("image-workers", 8, "Concurrent image resolutions per request")
	requestBudget := flag.Duration("request-budget", 25*time.Second, "Wall-clock budget per /news request")
	silent := flag.Bool("silent", false, "Suppress all output except errors")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: newsproxy [options]\n\n")
		fmt.Fprintf(os.Stderr, "Proxy a newsletter feed with sponsor filtering and image enrichment.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *silent {
		logOut = io.Discard
	}

	cfg := cliConfig{
		addr:           *addr,
		upstream:       *upstream,
		cacheDir:       *cacheDir,
		heuristicsFile: *heuristicsFile,
		userAgent:      *userAgent,
		imageWorkers:   *imageWorkers,
		requestBudget:  *requestBudget,
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
